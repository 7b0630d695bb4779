package mailqueue

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"golang.org/x/text/unicode/norm"

	"github.com/dmitrymomot/mailqueue/pkg/email"
	"github.com/dmitrymomot/mailqueue/pkg/logger"
)

// Enqueuer is the entry point for business flows that need an email sent.
// It only writes one item to the store and never talks to a provider.
type Enqueuer struct {
	repo       EnqueuerRepository
	maxRetries int
	validate   *validator.Validate
	clock      Clock
	metrics    Metrics
	logger     *slog.Logger
}

type enqueueRequest struct {
	Kind           string `validate:"required,max=64"`
	RecipientEmail string `validate:"required,mailbox,max=320"`
	RecipientName  string `validate:"max=255"`
	Token          string `validate:"max=1024"`
}

// NewEnqueuer creates a new Enqueuer. MaxRetries is captured from cfg once.
func NewEnqueuer(repo EnqueuerRepository, cfg Config, opts ...Option) (*Enqueuer, error) {
	if repo == nil {
		return nil, ErrRepositoryNil
	}
	if cfg.MaxRetries < 1 || cfg.MaxRetries > MaxRetriesLimit {
		return nil, fmt.Errorf("%w: max retries must be between 1 and %d", ErrInvalidConfig, MaxRetriesLimit)
	}

	o := newOptions(opts)

	return &Enqueuer{
		repo:       repo,
		maxRetries: cfg.MaxRetries,
		validate:   newValidator(),
		clock:      o.clock,
		metrics:    o.metrics,
		logger:     o.logger,
	}, nil
}

// newValidator adds the "mailbox" rule, which accepts exactly the addresses
// the email senders accept.
func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("mailbox", func(fl validator.FieldLevel) bool {
		return email.IsValidAddress(fl.Field().String())
	})
	return v
}

// Enqueue persists a new pending item and returns it.
func (e *Enqueuer) Enqueue(ctx context.Context, kind Kind, recipientEmail, recipientName string, opts ...EnqueueOption) (*Item, error) {
	options := &enqueueOptions{}
	for _, opt := range opts {
		opt(options)
	}

	recipientEmail = strings.TrimSpace(recipientEmail)
	// Names arrive from forms in mixed normal forms; templates expect NFC.
	recipientName = norm.NFC.String(strings.TrimSpace(recipientName))

	req := enqueueRequest{
		Kind:           string(kind),
		RecipientEmail: recipientEmail,
		RecipientName:  recipientName,
		Token:          options.token,
	}
	if err := e.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidItem, err)
	}

	item := e.buildItem(kind, recipientEmail, recipientName, options)

	if err := e.repo.Insert(ctx, item); err != nil {
		return nil, fmt.Errorf("failed to enqueue %q: %w", kind, err)
	}

	e.metrics.AddEnqueued(kind)
	e.logger.DebugContext(ctx, "queue item enqueued",
		logger.ItemID(item.ID),
		logger.Kind(kind),
		logger.NextRetryAt(item.NextRetryAt))

	return item.Clone(), nil
}

func (e *Enqueuer) buildItem(kind Kind, recipientEmail, recipientName string, options *enqueueOptions) *Item {
	now := e.clock.Now()
	nextRetryAt := now
	if options.delay > 0 {
		nextRetryAt = now.Add(options.delay)
	}

	return &Item{
		ID:             uuid.New(),
		Kind:           kind,
		RecipientEmail: recipientEmail,
		RecipientName:  recipientName,
		Token:          options.token,
		AdditionalData: options.additionalData,
		Status:         StatusPending,
		RetryCount:     0,
		MaxRetries:     e.maxRetries,
		CreatedAt:      now,
		NextRetryAt:    nextRetryAt,
		UpdatedAt:      now,
	}
}

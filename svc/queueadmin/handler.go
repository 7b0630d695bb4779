package queueadmin

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/dmitrymomot/mailqueue/handler"
	"github.com/dmitrymomot/mailqueue/pkg/binder"
	"github.com/dmitrymomot/mailqueue/pkg/mailqueue"
)

// Admin is the subset of *mailqueue.Admin the handlers use.
type Admin interface {
	Stats(ctx context.Context) (mailqueue.Stats, error)
	ListFailed(ctx context.Context) ([]*mailqueue.Item, error)
	Get(ctx context.Context, id uuid.UUID) (*mailqueue.Item, error)
	ResetForRetry(ctx context.Context, id uuid.UUID) (*mailqueue.Item, error)
}

// Enqueuer is the subset of *mailqueue.Enqueuer the handlers use.
type Enqueuer interface {
	Enqueue(ctx context.Context, kind mailqueue.Kind, recipientEmail, recipientName string, opts ...mailqueue.EnqueueOption) (*mailqueue.Item, error)
}

// Service serves the queue admin API.
type Service struct {
	admin    Admin
	enqueuer Enqueuer
	logger   *slog.Logger
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithEnqueuer enables POST /items.
func WithEnqueuer(e Enqueuer) ServiceOption {
	return func(s *Service) { s.enqueuer = e }
}

// WithLogger sets the logger for server-side failures.
func WithLogger(l *slog.Logger) ServiceOption {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewService creates the admin API over admin.
func NewService(admin Admin, opts ...ServiceOption) *Service {
	s := &Service{admin: admin, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handle returns the routes, meant to be mounted under /queue.
func (s *Service) Handle() http.Handler {
	r := chi.NewRouter()
	onError := handler.WithErrorHandler(s.errorHandler)
	byID := handler.WithBinders(binder.Path(chi.URLParam))

	r.Get("/stats", handler.Wrap(s.stats, onError))
	r.Get("/failed", handler.Wrap(s.listFailed, onError))
	r.Get("/items/{id}", handler.Wrap(s.getItem, byID, onError))
	r.Post("/items/{id}/reset", handler.Wrap(s.reset, byID, onError))
	if s.enqueuer != nil {
		r.Post("/items", handler.Wrap(s.enqueue,
			handler.WithBinders(binder.BindJSON(binder.WithMaxBodySize(maxEnqueueBody))),
			onError))
	}

	return r
}

type itemRequest struct {
	ID uuid.UUID `path:"id"`
}

func (s *Service) stats(ctx handler.Context, _ struct{}) handler.Response {
	stats, err := s.admin.Stats(ctx)
	if err != nil {
		return s.fail(ctx, err)
	}
	return handler.JSON(stats)
}

func (s *Service) listFailed(ctx handler.Context, _ struct{}) handler.Response {
	items, err := s.admin.ListFailed(ctx)
	if err != nil {
		return s.fail(ctx, err)
	}
	if items == nil {
		items = []*mailqueue.Item{}
	}
	return handler.JSON(items, handler.WithJSONMeta(map[string]any{"count": len(items)}))
}

func (s *Service) getItem(ctx handler.Context, req itemRequest) handler.Response {
	item, err := s.admin.Get(ctx, req.ID)
	if err != nil {
		return s.fail(ctx, err)
	}
	return handler.JSON(item)
}

func (s *Service) reset(ctx handler.Context, req itemRequest) handler.Response {
	item, err := s.admin.ResetForRetry(ctx, req.ID)
	if err != nil {
		return s.fail(ctx, err)
	}
	return handler.JSON(item)
}

// EnqueueRequest is the body of POST /items.
type EnqueueRequest struct {
	Kind           mailqueue.Kind `json:"kind"`
	RecipientEmail string         `json:"recipient_email"`
	RecipientName  string         `json:"recipient_name"`
	Token          string         `json:"token"`
	AdditionalData string         `json:"additional_data"`
	// Delay is a Go duration string such as "5m".
	Delay string `json:"delay"`
}

const maxEnqueueBody = 64 << 10

func (s *Service) enqueue(ctx handler.Context, req EnqueueRequest) handler.Response {
	opts := []mailqueue.EnqueueOption{
		mailqueue.WithToken(req.Token),
		mailqueue.WithAdditionalData(req.AdditionalData),
	}
	if req.Delay != "" {
		delay, err := time.ParseDuration(req.Delay)
		if err != nil || delay < 0 {
			return s.fail(ctx, fmt.Errorf("%w: delay must be a non-negative duration", mailqueue.ErrInvalidItem))
		}
		opts = append(opts, mailqueue.WithDelay(delay))
	}

	item, err := s.enqueuer.Enqueue(ctx, req.Kind, req.RecipientEmail, req.RecipientName, opts...)
	if err != nil {
		return s.fail(ctx, err)
	}
	return handler.JSON(item, handler.WithJSONStatus(http.StatusCreated))
}

package mailqueue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
	"unicode/utf8"

	"golang.org/x/time/rate"

	"github.com/dmitrymomot/mailqueue/pkg/logger"
)

// maxErrorLen bounds LastError so a chatty provider cannot bloat the store.
const maxErrorLen = 1024

// SendFunc delivers one message. A nil error means the provider accepted it.
type SendFunc func(ctx context.Context, msg Message) error

// Outcome is the result of dispatching one item.
type Outcome int

const (
	// OutcomeSkipped means the item was not claimed, usually because another poller got it first.
	OutcomeSkipped Outcome = iota
	// OutcomeSent means the item reached the sent state.
	OutcomeSent
	// OutcomeRetry means delivery failed and a retry was scheduled.
	OutcomeRetry
	// OutcomeFailed means delivery failed and retries are exhausted.
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSent:
		return "sent"
	case OutcomeRetry:
		return "retry"
	case OutcomeFailed:
		return "failed"
	default:
		return "skipped"
	}
}

// Dispatcher moves a single item through PENDING -> PROCESSING -> {SENT | PENDING | FAILED}.
type Dispatcher struct {
	repo        DispatcherRepository
	senders     map[Kind]SendFunc
	mu          sync.RWMutex
	policy      RetryPolicy
	sendTimeout time.Duration
	limiter     *rate.Limiter
	clock       Clock
	metrics     Metrics
	logger      *slog.Logger
}

// NewDispatcher creates a dispatcher with an empty send table.
func NewDispatcher(repo DispatcherRepository, cfg Config, opts ...Option) (*Dispatcher, error) {
	if repo == nil {
		return nil, ErrRepositoryNil
	}
	if cfg.SendTimeout <= 0 {
		return nil, fmt.Errorf("%w: send timeout must be positive", ErrInvalidConfig)
	}

	o := newOptions(opts)

	policy := o.policy
	if policy == nil {
		policy = cfg.RetryPolicy()
	}

	limiter := o.limiter
	if limiter == nil && cfg.SendRate > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.SendRate), max(cfg.SendBurst, 1))
	}

	return &Dispatcher{
		repo:        repo,
		senders:     make(map[Kind]SendFunc),
		policy:      policy,
		sendTimeout: cfg.SendTimeout,
		limiter:     limiter,
		clock:       o.clock,
		metrics:     o.metrics,
		logger:      o.logger,
	}, nil
}

// Register binds a send function to a kind, replacing any previous binding.
func (d *Dispatcher) Register(kind Kind, fn SendFunc) {
	if fn == nil {
		return
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	d.senders[kind] = fn
}

// RegisterSenders binds every entry of the table.
func (d *Dispatcher) RegisterSenders(table map[Kind]SendFunc) {
	for kind, fn := range table {
		d.Register(kind, fn)
	}
}

// Kinds returns the kinds that currently have a sender.
func (d *Dispatcher) Kinds() []Kind {
	d.mu.RLock()
	defer d.mu.RUnlock()

	kinds := make([]Kind, 0, len(d.senders))
	for kind := range d.senders {
		kinds = append(kinds, kind)
	}
	return kinds
}

// Dispatch claims the item, attempts delivery and persists the resulting state.
// Delivery failures are encoded in the item and never returned; the error is
// reserved for store failures.
func (d *Dispatcher) Dispatch(ctx context.Context, item *Item) (Outcome, error) {
	if item == nil {
		return OutcomeSkipped, ErrInvalidItem
	}

	fn, known := d.sender(item.Kind)

	// Wait for a send slot before claiming so a throttled item stays claimable.
	if known && d.limiter != nil {
		if err := d.limiter.Wait(ctx); err != nil {
			return OutcomeSkipped, fmt.Errorf("rate limiter wait for item %s: %w", item.ID, err)
		}
	}

	claimed, err := d.claim(ctx, item)
	if err != nil {
		return OutcomeSkipped, err
	}
	if claimed == nil {
		d.metrics.ObserveDispatch(item.Kind, OutcomeSkipped, 0)
		return OutcomeSkipped, nil
	}

	// The attempt is already visible as processing; finish it even if the caller is shutting down.
	ctx = context.WithoutCancel(ctx)

	start := time.Now()
	var sendErr error
	if known {
		sendErr = d.send(ctx, fn, claimed)
	} else {
		sendErr = fmt.Errorf("%w: %s", ErrUnknownKind, item.Kind)
	}
	duration := time.Since(start)

	if sendErr == nil {
		return d.markSent(ctx, claimed, duration)
	}
	return d.markFailed(ctx, claimed, sendErr, duration)
}

func (d *Dispatcher) sender(kind Kind) (SendFunc, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	fn, ok := d.senders[kind]
	return fn, ok
}

// claim persists PENDING -> PROCESSING. A nil item with nil error means someone else won.
func (d *Dispatcher) claim(ctx context.Context, item *Item) (*Item, error) {
	claimed := item.Clone()
	if err := claimed.moveTo(StatusProcessing, d.clock.Now()); err != nil {
		return nil, fmt.Errorf("claim item %s: %w", item.ID, err)
	}

	if err := d.repo.Save(ctx, claimed, StatusPending); err != nil {
		if errors.Is(err, ErrConflict) || errors.Is(err, ErrNotFound) {
			d.logger.DebugContext(ctx, "queue item already claimed",
				logger.ItemID(item.ID),
				logger.Kind(item.Kind))
			return nil, nil
		}
		return nil, fmt.Errorf("failed to claim item %s: %w", item.ID, err)
	}

	return claimed, nil
}

// send runs the sender with a hard timeout. A sender that ignores its context
// is abandoned once the timeout passes so one slow provider cannot stall a tick.
func (d *Dispatcher) send(ctx context.Context, fn SendFunc, item *Item) error {
	sendCtx, cancel := context.WithTimeout(ctx, d.sendTimeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				d.logger.ErrorContext(ctx, "sender panicked",
					logger.ItemID(item.ID),
					logger.Kind(item.Kind),
					slog.Any("panic", r))
				done <- fmt.Errorf("panic in sender: %v", r)
			}
		}()
		done <- fn(sendCtx, messageFromItem(item))
	}()

	select {
	case err := <-done:
		if err != nil && errors.Is(sendCtx.Err(), context.DeadlineExceeded) {
			return errors.Join(ErrSendTimeout, err)
		}
		return err
	case <-sendCtx.Done():
		return fmt.Errorf("%w after %s", ErrSendTimeout, d.sendTimeout)
	}
}

func (d *Dispatcher) markSent(ctx context.Context, item *Item, duration time.Duration) (Outcome, error) {
	now := d.clock.Now()
	if err := item.moveTo(StatusSent, now); err != nil {
		return OutcomeSkipped, err
	}
	item.SentAt = &now

	if err := d.repo.Save(ctx, item, StatusProcessing); err != nil {
		return OutcomeSkipped, fmt.Errorf("failed to mark item %s as sent: %w", item.ID, err)
	}

	d.metrics.ObserveDispatch(item.Kind, OutcomeSent, duration)
	d.logger.InfoContext(ctx, "queue item sent",
		logger.ItemID(item.ID),
		logger.Kind(item.Kind),
		logger.RetryCount(item.RetryCount),
		logger.Duration(duration))

	return OutcomeSent, nil
}

func (d *Dispatcher) markFailed(ctx context.Context, item *Item, sendErr error, duration time.Duration) (Outcome, error) {
	now := d.clock.Now()

	item.RetryCount++
	item.LastError = truncateError(sendErr.Error())

	outcome := OutcomeFailed
	next, retry := d.policy.NextRetry(item.RetryCount, item.MaxRetries, now)
	if retry {
		outcome = OutcomeRetry
		if err := item.moveTo(StatusPending, now); err != nil {
			return OutcomeSkipped, err
		}
		// Keep backoff monotonic even if a custom policy returns an earlier time.
		if next.Before(item.NextRetryAt) {
			next = item.NextRetryAt
		}
		item.NextRetryAt = next
	} else {
		if err := item.moveTo(StatusFailed, now); err != nil {
			return OutcomeSkipped, err
		}
	}

	if err := d.repo.Save(ctx, item, StatusProcessing); err != nil {
		return OutcomeSkipped, fmt.Errorf("failed to record failure of item %s: %w", item.ID, err)
	}

	d.metrics.ObserveDispatch(item.Kind, outcome, duration)

	attrs := []any{
		logger.ItemID(item.ID),
		logger.Kind(item.Kind),
		logger.RetryCount(item.RetryCount),
		logger.MaxRetries(item.MaxRetries),
		logger.Duration(duration),
		logger.Error(sendErr),
	}
	if retry {
		d.logger.WarnContext(ctx, "queue item delivery failed, retry scheduled",
			append(attrs, logger.NextRetryAt(item.NextRetryAt))...)
	} else {
		d.logger.ErrorContext(ctx, "queue item delivery failed permanently", attrs...)
	}

	return outcome, nil
}

// truncateError cuts msg to maxErrorLen bytes without splitting a rune.
func truncateError(msg string) string {
	if len(msg) <= maxErrorLen {
		return msg
	}
	cut := maxErrorLen
	for cut > 0 && !utf8.RuneStart(msg[cut]) {
		cut--
	}
	return msg[:cut]
}

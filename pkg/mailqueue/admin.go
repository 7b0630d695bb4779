package mailqueue

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/dmitrymomot/mailqueue/pkg/logger"
)

// Admin exposes read-only aggregates and the manual reset of failed items.
type Admin struct {
	repo   AdminRepository
	clock  Clock
	logger *slog.Logger
}

// NewAdmin creates the administrative facade over a store.
func NewAdmin(repo AdminRepository, opts ...Option) (*Admin, error) {
	if repo == nil {
		return nil, ErrRepositoryNil
	}

	o := newOptions(opts)

	return &Admin{
		repo:   repo,
		clock:  o.clock,
		logger: o.logger,
	}, nil
}

// Stats returns item counts per status.
func (a *Admin) Stats(ctx context.Context) (Stats, error) {
	counts, err := a.repo.CountByStatus(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("failed to count queue items: %w", err)
	}
	return StatsFromCounts(counts), nil
}

// ListFailed returns every item in the terminal failed state.
func (a *Admin) ListFailed(ctx context.Context) ([]*Item, error) {
	items, err := a.repo.ListByStatus(ctx, StatusFailed, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to list failed queue items: %w", err)
	}
	return items, nil
}

// Get returns a single item.
func (a *Admin) Get(ctx context.Context, id uuid.UUID) (*Item, error) {
	item, err := a.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get queue item %s: %w", id, err)
	}
	return item, nil
}

// ResetForRetry puts a failed item back in the queue with a fresh retry budget.
// LastError is kept for audit. Items in any other state are rejected with
// ErrNotFailed and left untouched.
func (a *Admin) ResetForRetry(ctx context.Context, id uuid.UUID) (*Item, error) {
	item, err := a.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get queue item %s: %w", id, err)
	}

	if item.Status != StatusFailed {
		return nil, fmt.Errorf("%w: item %s is %s", ErrNotFailed, id, item.Status)
	}

	now := a.clock.Now()
	reset := item.Clone()
	if err := reset.moveTo(StatusPending, now); err != nil {
		return nil, err
	}
	reset.RetryCount = 0
	reset.NextRetryAt = now

	if err := a.repo.Save(ctx, reset, StatusFailed); err != nil {
		return nil, fmt.Errorf("failed to reset queue item %s: %w", id, err)
	}

	a.logger.InfoContext(ctx, "queue item reset for retry",
		logger.ItemID(id),
		logger.Kind(reset.Kind),
		slog.String("last_error", reset.LastError))

	return reset, nil
}

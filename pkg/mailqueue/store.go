package mailqueue

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// EnqueuerRepository persists new items.
type EnqueuerRepository interface {
	// Insert stores a new item. Returns ErrAlreadyExists if the id is taken.
	Insert(ctx context.Context, item *Item) error
}

// DispatcherRepository persists state transitions.
type DispatcherRepository interface {
	// Save atomically overwrites the stored item, but only while its stored
	// status still equals expected. Returns ErrConflict when it does not and
	// ErrNotFound when the item is missing.
	Save(ctx context.Context, item *Item, expected Status) error
}

// SchedulerRepository finds work for a scheduler tick.
type SchedulerRepository interface {
	// FindReady returns pending items with NextRetryAt <= now ordered by
	// NextRetryAt, then CreatedAt. A limit of 0 returns all of them.
	FindReady(ctx context.Context, now time.Time, limit int) ([]*Item, error)
}

// AdminRepository backs the administrative operations.
type AdminRepository interface {
	DispatcherRepository

	// GetByID returns ErrNotFound when no item has the id.
	GetByID(ctx context.Context, id uuid.UUID) (*Item, error)

	// CountByStatus returns the number of items per status. Missing statuses count as zero.
	CountByStatus(ctx context.Context) (map[Status]int64, error)

	// ListByStatus returns items in the status ordered by UpdatedAt. A limit of 0 returns all.
	ListByStatus(ctx context.Context, status Status, limit int) ([]*Item, error)
}

// RecovererRepository finds items abandoned mid-send.
type RecovererRepository interface {
	DispatcherRepository

	// FindStuck returns processing items last updated before the cutoff.
	FindStuck(ctx context.Context, updatedBefore time.Time) ([]*Item, error)
}

// Store is the full persistence contract implemented by every backend.
type Store interface {
	EnqueuerRepository
	SchedulerRepository
	AdminRepository
	RecovererRepository
}

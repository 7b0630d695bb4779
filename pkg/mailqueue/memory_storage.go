package mailqueue

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStorage implements Store for tests and local development.
// Every read and write goes through a copy, so callers never alias stored items.
type MemoryStorage struct {
	mu    sync.RWMutex
	items map[uuid.UUID]*Item
}

var _ Store = (*MemoryStorage)(nil)

// NewMemoryStorage creates an empty in-memory store
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		items: make(map[uuid.UUID]*Item),
	}
}

// Insert implements EnqueuerRepository
func (ms *MemoryStorage) Insert(ctx context.Context, item *Item) error {
	if item == nil {
		return ErrInvalidItem
	}

	ms.mu.Lock()
	defer ms.mu.Unlock()

	if _, exists := ms.items[item.ID]; exists {
		return fmt.Errorf("%w: %s", ErrAlreadyExists, item.ID)
	}
	ms.items[item.ID] = item.Clone()

	return nil
}

// Save implements DispatcherRepository
func (ms *MemoryStorage) Save(ctx context.Context, item *Item, expected Status) error {
	if item == nil {
		return ErrInvalidItem
	}

	ms.mu.Lock()
	defer ms.mu.Unlock()

	stored, ok := ms.items[item.ID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, item.ID)
	}
	if stored.Status != expected {
		return fmt.Errorf("%w: %s is %s, expected %s", ErrConflict, item.ID, stored.Status, expected)
	}
	ms.items[item.ID] = item.Clone()

	return nil
}

// FindReady implements SchedulerRepository
func (ms *MemoryStorage) FindReady(ctx context.Context, now time.Time, limit int) ([]*Item, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	ready := ms.collect(func(item *Item) bool { return item.Ready(now) })
	slices.SortFunc(ready, func(a, b *Item) int {
		if c := a.NextRetryAt.Compare(b.NextRetryAt); c != 0 {
			return c
		}
		return a.CreatedAt.Compare(b.CreatedAt)
	})

	return truncate(ready, limit), nil
}

// GetByID implements AdminRepository
func (ms *MemoryStorage) GetByID(ctx context.Context, id uuid.UUID) (*Item, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	item, ok := ms.items[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return item.Clone(), nil
}

// CountByStatus implements AdminRepository
func (ms *MemoryStorage) CountByStatus(ctx context.Context) (map[Status]int64, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	counts := make(map[Status]int64, 4)
	for _, item := range ms.items {
		counts[item.Status]++
	}
	return counts, nil
}

// ListByStatus implements AdminRepository
func (ms *MemoryStorage) ListByStatus(ctx context.Context, status Status, limit int) ([]*Item, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	items := ms.collect(func(item *Item) bool { return item.Status == status })
	slices.SortFunc(items, func(a, b *Item) int {
		if c := a.UpdatedAt.Compare(b.UpdatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID.String(), b.ID.String())
	})

	return truncate(items, limit), nil
}

// FindStuck implements RecovererRepository
func (ms *MemoryStorage) FindStuck(ctx context.Context, updatedBefore time.Time) ([]*Item, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	stuck := ms.collect(func(item *Item) bool {
		return item.Status == StatusProcessing && item.UpdatedAt.Before(updatedBefore)
	})
	slices.SortFunc(stuck, func(a, b *Item) int {
		return a.UpdatedAt.Compare(b.UpdatedAt)
	})

	return stuck, nil
}

// Len returns the number of stored items
func (ms *MemoryStorage) Len() int {
	ms.mu.RLock()
	defer ms.mu.RUnlock()
	return len(ms.items)
}

// collect returns clones of matching items. Caller must hold the lock.
func (ms *MemoryStorage) collect(match func(*Item) bool) []*Item {
	var out []*Item
	for _, item := range ms.items {
		if match(item) {
			out = append(out, item.Clone())
		}
	}
	return out
}

func truncate(items []*Item, limit int) []*Item {
	if limit > 0 && len(items) > limit {
		return items[:limit]
	}
	return items
}

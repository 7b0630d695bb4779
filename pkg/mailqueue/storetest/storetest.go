// Package storetest holds the behavioural checks every mailqueue.Store must pass.
package storetest

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/mailqueue/pkg/mailqueue"
)

// Factory returns an empty store. Cleanup is registered on t.
type Factory func(t *testing.T) mailqueue.Store

// base is truncated to milliseconds so every backend round-trips it exactly.
var base = time.Now().UTC().Truncate(time.Millisecond)

func newItem(status mailqueue.Status, nextRetryAt time.Time) *mailqueue.Item {
	return &mailqueue.Item{
		ID:             uuid.New(),
		Kind:           mailqueue.KindPasswordReset,
		RecipientEmail: "user@example.com",
		RecipientName:  "User",
		Token:          "token-" + uuid.NewString(),
		AdditionalData: `{"locale":"en"}`,
		Status:         status,
		MaxRetries:     3,
		CreatedAt:      base,
		NextRetryAt:    nextRetryAt,
		UpdatedAt:      base,
	}
}

// Run executes the suite against stores produced by newStore.
func Run(t *testing.T, newStore Factory) {
	t.Run("insert and get", func(t *testing.T) {
		ctx := context.Background()
		store := newStore(t)

		item := newItem(mailqueue.StatusPending, base)
		require.NoError(t, store.Insert(ctx, item))

		got, err := store.GetByID(ctx, item.ID)
		require.NoError(t, err)
		assert.Equal(t, item, got)

		assert.ErrorIs(t, store.Insert(ctx, item), mailqueue.ErrAlreadyExists)

		_, err = store.GetByID(ctx, uuid.New())
		assert.ErrorIs(t, err, mailqueue.ErrNotFound)
	})

	t.Run("conditional save", func(t *testing.T) {
		ctx := context.Background()
		store := newStore(t)

		item := newItem(mailqueue.StatusPending, base)
		require.NoError(t, store.Insert(ctx, item))

		claimed := item.Clone()
		claimed.Status = mailqueue.StatusProcessing
		claimed.UpdatedAt = base.Add(time.Second)
		require.NoError(t, store.Save(ctx, claimed, mailqueue.StatusPending))
		assert.ErrorIs(t, store.Save(ctx, claimed, mailqueue.StatusPending), mailqueue.ErrConflict)

		sentAt := base.Add(2 * time.Second)
		sent := claimed.Clone()
		sent.Status = mailqueue.StatusSent
		sent.SentAt = &sentAt
		sent.UpdatedAt = sentAt
		require.NoError(t, store.Save(ctx, sent, mailqueue.StatusProcessing))

		got, err := store.GetByID(ctx, item.ID)
		require.NoError(t, err)
		assert.Equal(t, sent, got)

		missing := newItem(mailqueue.StatusPending, base)
		assert.ErrorIs(t, store.Save(ctx, missing, mailqueue.StatusPending), mailqueue.ErrNotFound)
	})

	t.Run("single winner on concurrent claim", func(t *testing.T) {
		ctx := context.Background()
		store := newStore(t)

		item := newItem(mailqueue.StatusPending, base)
		require.NoError(t, store.Insert(ctx, item))

		var (
			wg   sync.WaitGroup
			mu   sync.Mutex
			wins int
		)
		for range 8 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				claimed := item.Clone()
				claimed.Status = mailqueue.StatusProcessing
				if store.Save(ctx, claimed, mailqueue.StatusPending) == nil {
					mu.Lock()
					wins++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()
		assert.Equal(t, 1, wins)
	})

	t.Run("find ready ordering", func(t *testing.T) {
		ctx := context.Background()
		store := newStore(t)

		later := newItem(mailqueue.StatusPending, base.Add(time.Minute))
		sooner := newItem(mailqueue.StatusPending, base.Add(-time.Minute))
		tieOld := newItem(mailqueue.StatusPending, base)
		tieNew := newItem(mailqueue.StatusPending, base)
		tieNew.CreatedAt = base.Add(time.Second)
		future := newItem(mailqueue.StatusPending, base.Add(time.Hour))
		failed := newItem(mailqueue.StatusFailed, base)

		for _, item := range []*mailqueue.Item{later, future, tieNew, sooner, failed, tieOld} {
			require.NoError(t, store.Insert(ctx, item))
		}

		ready, err := store.FindReady(ctx, base.Add(time.Minute), 0)
		require.NoError(t, err)
		require.Len(t, ready, 4)
		assert.Equal(t, sooner.ID, ready[0].ID)
		assert.Equal(t, tieOld.ID, ready[1].ID)
		assert.Equal(t, tieNew.ID, ready[2].ID)
		assert.Equal(t, later.ID, ready[3].ID)

		limited, err := store.FindReady(ctx, base.Add(time.Minute), 1)
		require.NoError(t, err)
		require.Len(t, limited, 1)
		assert.Equal(t, sooner.ID, limited[0].ID)
	})

	t.Run("counts and lists", func(t *testing.T) {
		ctx := context.Background()
		store := newStore(t)

		for _, status := range []mailqueue.Status{
			mailqueue.StatusPending,
			mailqueue.StatusPending,
			mailqueue.StatusProcessing,
			mailqueue.StatusSent,
			mailqueue.StatusFailed,
			mailqueue.StatusFailed,
			mailqueue.StatusFailed,
		} {
			require.NoError(t, store.Insert(ctx, newItem(status, base)))
		}

		counts, err := store.CountByStatus(ctx)
		require.NoError(t, err)
		assert.Equal(t, mailqueue.Stats{Pending: 2, Processing: 1, Sent: 1, Failed: 3}, mailqueue.StatsFromCounts(counts))

		failed, err := store.ListByStatus(ctx, mailqueue.StatusFailed, 0)
		require.NoError(t, err)
		assert.Len(t, failed, 3)
		for _, item := range failed {
			assert.Equal(t, mailqueue.StatusFailed, item.Status)
		}

		two, err := store.ListByStatus(ctx, mailqueue.StatusFailed, 2)
		require.NoError(t, err)
		assert.Len(t, two, 2)
	})

	t.Run("find stuck", func(t *testing.T) {
		ctx := context.Background()
		store := newStore(t)

		stuck := newItem(mailqueue.StatusProcessing, base)
		fresh := newItem(mailqueue.StatusProcessing, base)
		fresh.UpdatedAt = base.Add(time.Hour)
		pending := newItem(mailqueue.StatusPending, base)
		for _, item := range []*mailqueue.Item{stuck, fresh, pending} {
			require.NoError(t, store.Insert(ctx, item))
		}

		found, err := store.FindStuck(ctx, base.Add(time.Minute))
		require.NoError(t, err)
		require.Len(t, found, 1)
		assert.Equal(t, stuck.ID, found[0].ID)
	})
}

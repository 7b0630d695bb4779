package mailqueue_test

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

func newStoredItem(status mailqueue.Status, nextRetryAt time.Time) *mailqueue.Item {
	return &mailqueue.Item{
		ID:             uuid.New(),
		Kind:           mailqueue.KindWelcome,
		RecipientEmail: "a@x.com",
		Status:         status,
		MaxRetries:     3,
		CreatedAt:      testEpoch,
		NextRetryAt:    nextRetryAt,
		UpdatedAt:      testEpoch,
	}
}

func TestMemoryStorage_Insert(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	ms := mailqueue.NewMemoryStorage()
	item := newStoredItem(mailqueue.StatusPending, testEpoch)

	require.NoError(t, ms.Insert(ctx, item))
	assert.ErrorIs(t, ms.Insert(ctx, item), mailqueue.ErrAlreadyExists)
	assert.ErrorIs(t, ms.Insert(ctx, nil), mailqueue.ErrInvalidItem)

	// Stored copy is isolated from the caller.
	item.RecipientEmail = "changed@x.com"
	stored, err := ms.GetByID(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, "a@x.com", stored.RecipientEmail)

	stored.RecipientEmail = "again@x.com"
	again, err := ms.GetByID(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, "a@x.com", again.RecipientEmail)
}

func TestMemoryStorage_Save(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	ms := mailqueue.NewMemoryStorage()
	item := newStoredItem(mailqueue.StatusPending, testEpoch)
	require.NoError(t, ms.Insert(ctx, item))

	claimed := item.Clone()
	claimed.Status = mailqueue.StatusProcessing
	require.NoError(t, ms.Save(ctx, claimed, mailqueue.StatusPending))

	// Second claim with a stale expectation conflicts.
	assert.ErrorIs(t, ms.Save(ctx, claimed, mailqueue.StatusPending), mailqueue.ErrConflict)

	missing := newStoredItem(mailqueue.StatusPending, testEpoch)
	assert.ErrorIs(t, ms.Save(ctx, missing, mailqueue.StatusPending), mailqueue.ErrNotFound)
}

func TestMemoryStorage_ConcurrentClaim(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	ms := mailqueue.NewMemoryStorage()
	item := newStoredItem(mailqueue.StatusPending, testEpoch)
	require.NoError(t, ms.Insert(ctx, item))

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			claimed := item.Clone()
			claimed.Status = mailqueue.StatusProcessing
			if err := ms.Save(ctx, claimed, mailqueue.StatusPending); err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, wins)
}

func TestMemoryStorage_FindReady(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	ms := mailqueue.NewMemoryStorage()

	later := newStoredItem(mailqueue.StatusPending, testEpoch.Add(time.Minute))
	sooner := newStoredItem(mailqueue.StatusPending, testEpoch.Add(-time.Minute))
	tieOld := newStoredItem(mailqueue.StatusPending, testEpoch)
	tieNew := newStoredItem(mailqueue.StatusPending, testEpoch)
	tieNew.CreatedAt = testEpoch.Add(time.Second)
	future := newStoredItem(mailqueue.StatusPending, testEpoch.Add(time.Hour))
	processing := newStoredItem(mailqueue.StatusProcessing, testEpoch)
	failed := newStoredItem(mailqueue.StatusFailed, testEpoch)

	for _, item := range []*mailqueue.Item{later, sooner, tieNew, tieOld, future, processing, failed} {
		require.NoError(t, ms.Insert(ctx, item))
	}

	ready, err := ms.FindReady(ctx, testEpoch.Add(time.Minute), 0)
	require.NoError(t, err)
	require.Len(t, ready, 4)
	assert.Equal(t, sooner.ID, ready[0].ID)
	assert.Equal(t, tieOld.ID, ready[1].ID)
	assert.Equal(t, tieNew.ID, ready[2].ID)
	assert.Equal(t, later.ID, ready[3].ID)

	limited, err := ms.FindReady(ctx, testEpoch.Add(time.Minute), 2)
	require.NoError(t, err)
	require.Len(t, limited, 2)
	assert.Equal(t, sooner.ID, limited[0].ID)
}

func TestMemoryStorage_CountAndList(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	ms := mailqueue.NewMemoryStorage()

	for _, status := range []mailqueue.Status{
		mailqueue.StatusPending, mailqueue.StatusPending,
		mailqueue.StatusSent, mailqueue.StatusFailed,
	} {
		require.NoError(t, ms.Insert(ctx, newStoredItem(status, testEpoch)))
	}

	counts, err := ms.CountByStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), counts[mailqueue.StatusPending])
	assert.Equal(t, int64(1), counts[mailqueue.StatusSent])
	assert.Equal(t, int64(1), counts[mailqueue.StatusFailed])
	assert.Zero(t, counts[mailqueue.StatusProcessing])

	pending, err := ms.ListByStatus(ctx, mailqueue.StatusPending, 0)
	require.NoError(t, err)
	assert.Len(t, pending, 2)

	one, err := ms.ListByStatus(ctx, mailqueue.StatusPending, 1)
	require.NoError(t, err)
	assert.Len(t, one, 1)
}

func TestMemoryStorage_FindStuck(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	ms := mailqueue.NewMemoryStorage()

	stuck := newStoredItem(mailqueue.StatusProcessing, testEpoch)
	fresh := newStoredItem(mailqueue.StatusProcessing, testEpoch)
	fresh.UpdatedAt = testEpoch.Add(time.Hour)
	pending := newStoredItem(mailqueue.StatusPending, testEpoch)

	for _, item := range []*mailqueue.Item{stuck, fresh, pending} {
		require.NoError(t, ms.Insert(ctx, item))
	}

	found, err := ms.FindStuck(ctx, testEpoch.Add(time.Minute))
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, stuck.ID, found[0].ID)
}

package mailqueue_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/mailqueue/pkg/mailqueue"
)

type mockEnqueuerRepo struct {
	mock.Mock
}

func (m *mockEnqueuerRepo) Insert(ctx context.Context, item *mailqueue.Item) error {
	args := m.Called(ctx, item)
	return args.Error(0)
}

func TestEnqueuer_NewEnqueuer(t *testing.T) {
	t.Parallel()

	t.Run("successful creation", func(t *testing.T) {
		t.Parallel()

		enqueuer, err := mailqueue.NewEnqueuer(&mockEnqueuerRepo{}, mailqueue.DefaultConfig())
		require.NoError(t, err)
		require.NotNil(t, enqueuer)
	})

	t.Run("nil repository error", func(t *testing.T) {
		t.Parallel()

		enqueuer, err := mailqueue.NewEnqueuer(nil, mailqueue.DefaultConfig())
		assert.ErrorIs(t, err, mailqueue.ErrRepositoryNil)
		assert.Nil(t, enqueuer)
	})

	t.Run("invalid max retries", func(t *testing.T) {
		t.Parallel()

		cfg := mailqueue.DefaultConfig()
		cfg.MaxRetries = 0
		enqueuer, err := mailqueue.NewEnqueuer(&mockEnqueuerRepo{}, cfg)
		assert.ErrorIs(t, err, mailqueue.ErrInvalidConfig)
		assert.Nil(t, enqueuer)
	})
}

func TestEnqueuer_Enqueue(t *testing.T) {
	t.Parallel()

	t.Run("persists a pending item", func(t *testing.T) {
		t.Parallel()

		clock := newFakeClock()
		metrics := newCountingMetrics()
		repo := &mockEnqueuerRepo{}
		repo.On("Insert", mock.Anything, mock.MatchedBy(func(item *mailqueue.Item) bool {
			return item.Status == mailqueue.StatusPending && item.RetryCount == 0
		})).Return(nil).Once()

		cfg := mailqueue.DefaultConfig()
		cfg.MaxRetries = 5
		enqueuer, err := mailqueue.NewEnqueuer(repo, cfg,
			mailqueue.WithClock(clock),
			mailqueue.WithMetrics(metrics),
			mailqueue.WithLogger(discardLogger()),
		)
		require.NoError(t, err)

		item, err := enqueuer.Enqueue(context.Background(), mailqueue.KindConfirmation, "a@x.com", "Alice",
			mailqueue.WithToken("tok-123"),
			mailqueue.WithAdditionalData(`{"plan":"pro"}`),
		)
		require.NoError(t, err)

		assert.NotEqual(t, "00000000-0000-0000-0000-000000000000", item.ID.String())
		assert.Equal(t, mailqueue.KindConfirmation, item.Kind)
		assert.Equal(t, "a@x.com", item.RecipientEmail)
		assert.Equal(t, "Alice", item.RecipientName)
		assert.Equal(t, "tok-123", item.Token)
		assert.Equal(t, `{"plan":"pro"}`, item.AdditionalData)
		assert.Equal(t, mailqueue.StatusPending, item.Status)
		assert.Equal(t, 0, item.RetryCount)
		assert.Equal(t, 5, item.MaxRetries)
		assert.Equal(t, testEpoch, item.CreatedAt)
		assert.Equal(t, testEpoch, item.NextRetryAt)
		assert.Nil(t, item.SentAt)
		assert.Empty(t, item.LastError)

		assert.Equal(t, 1, metrics.enqueued[mailqueue.KindConfirmation])
		repo.AssertExpectations(t)
	})

	t.Run("delay postpones the first attempt", func(t *testing.T) {
		t.Parallel()

		repo := &mockEnqueuerRepo{}
		repo.On("Insert", mock.Anything, mock.Anything).Return(nil).Once()

		enqueuer, err := mailqueue.NewEnqueuer(repo, mailqueue.DefaultConfig(),
			mailqueue.WithClock(newFakeClock()),
			mailqueue.WithLogger(discardLogger()),
		)
		require.NoError(t, err)

		item, err := enqueuer.Enqueue(context.Background(), mailqueue.KindWelcome, "b@x.com", "", mailqueue.WithDelay(time.Hour))
		require.NoError(t, err)
		assert.Equal(t, testEpoch.Add(time.Hour), item.NextRetryAt)
		assert.Equal(t, testEpoch, item.CreatedAt)
	})

	t.Run("recipient is trimmed and normalized", func(t *testing.T) {
		t.Parallel()

		repo := &mockEnqueuerRepo{}
		repo.On("Insert", mock.Anything, mock.Anything).Return(nil).Once()

		enqueuer, err := mailqueue.NewEnqueuer(repo, mailqueue.DefaultConfig(), mailqueue.WithLogger(discardLogger()))
		require.NoError(t, err)

		// "Jose" with a combining acute accent on the e.
		item, err := enqueuer.Enqueue(context.Background(), mailqueue.KindWelcome, "  b@x.com ", " Jose\u0301 ")
		require.NoError(t, err)
		assert.Equal(t, "b@x.com", item.RecipientEmail)
		assert.Equal(t, "Jos\u00e9", item.RecipientName)
	})

	t.Run("rejects invalid input", func(t *testing.T) {
		t.Parallel()

		repo := &mockEnqueuerRepo{}
		enqueuer, err := mailqueue.NewEnqueuer(repo, mailqueue.DefaultConfig(), mailqueue.WithLogger(discardLogger()))
		require.NoError(t, err)

		tests := []struct {
			name  string
			kind  mailqueue.Kind
			email string
			opts  []mailqueue.EnqueueOption
		}{
			{"empty email", mailqueue.KindWelcome, "", nil},
			{"malformed email", mailqueue.KindWelcome, "not-an-email", nil},
			// Accepted by validator's email rule but not by the senders.
			{"non-ascii local part", mailqueue.KindWelcome, "jürgen@example.com", nil},
			{"trailing dot domain", mailqueue.KindWelcome, "a@example.com.", nil},
			{"empty kind", "", "a@x.com", nil},
			{"oversized token", mailqueue.KindPasswordReset, "a@x.com", []mailqueue.EnqueueOption{mailqueue.WithToken(strings.Repeat("x", 2000))}},
		}

		for _, tt := range tests {
			item, err := enqueuer.Enqueue(context.Background(), tt.kind, tt.email, "", tt.opts...)
			assert.ErrorIs(t, err, mailqueue.ErrInvalidItem, tt.name)
			assert.Nil(t, item, tt.name)
		}

		repo.AssertNotCalled(t, "Insert", mock.Anything, mock.Anything)
	})

	t.Run("repository error", func(t *testing.T) {
		t.Parallel()

		repoErr := errors.New("database unavailable")
		repo := &mockEnqueuerRepo{}
		repo.On("Insert", mock.Anything, mock.Anything).Return(repoErr).Once()

		enqueuer, err := mailqueue.NewEnqueuer(repo, mailqueue.DefaultConfig(), mailqueue.WithLogger(discardLogger()))
		require.NoError(t, err)

		item, err := enqueuer.Enqueue(context.Background(), mailqueue.KindWelcome, "a@x.com", "")
		assert.ErrorIs(t, err, repoErr)
		assert.Nil(t, item)
	})

	t.Run("unique ids", func(t *testing.T) {
		t.Parallel()

		store := mailqueue.NewMemoryStorage()
		enqueuer, err := mailqueue.NewEnqueuer(store, mailqueue.DefaultConfig(), mailqueue.WithLogger(discardLogger()))
		require.NoError(t, err)

		for range 10 {
			_, err := enqueuer.Enqueue(context.Background(), mailqueue.KindWelcome, "a@x.com", "")
			require.NoError(t, err)
		}
		assert.Equal(t, 10, store.Len())
	})
}

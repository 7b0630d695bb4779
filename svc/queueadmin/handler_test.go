package queueadmin_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/mailqueue/handler"
	"github.com/dmitrymomot/mailqueue/pkg/mailqueue"
	"github.com/dmitrymomot/mailqueue/svc/queueadmin"
)

type envelope struct {
	Data  json.RawMessage      `json:"data"`
	Meta  map[string]any       `json:"meta"`
	Error *handler.ErrorDetail `json:"error"`
}

type fixture struct {
	store      *mailqueue.MemoryStorage
	enqueuer   *mailqueue.Enqueuer
	dispatcher *mailqueue.Dispatcher
	handler    http.Handler
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	store := mailqueue.NewMemoryStorage()
	cfg := mailqueue.DefaultConfig()
	cfg.MaxRetries = 1
	opts := []mailqueue.Option{mailqueue.WithLogger(discardLogger())}

	enq, err := mailqueue.NewEnqueuer(store, cfg, opts...)
	require.NoError(t, err)
	d, err := mailqueue.NewDispatcher(store, cfg, opts...)
	require.NoError(t, err)
	admin, err := mailqueue.NewAdmin(store, opts...)
	require.NoError(t, err)

	svc := queueadmin.NewService(admin,
		queueadmin.WithEnqueuer(enq),
		queueadmin.WithLogger(discardLogger()))

	return &fixture{
		store:      store,
		enqueuer:   enq,
		dispatcher: d,
		handler:    queueadmin.Router(queueadmin.RouterOptions{Queue: svc, Logger: discardLogger()}),
	}
}

// failed enqueues an item and burns its single attempt.
func (f *fixture) failed(t *testing.T, email string) *mailqueue.Item {
	t.Helper()

	f.dispatcher.Register(mailqueue.KindWelcome, func(context.Context, mailqueue.Message) error {
		return errors.New("mailbox unavailable")
	})
	item, err := f.enqueuer.Enqueue(context.Background(), mailqueue.KindWelcome, email, "")
	require.NoError(t, err)
	outcome, err := f.dispatcher.Dispatch(context.Background(), item)
	require.NoError(t, err)
	require.Equal(t, mailqueue.OutcomeFailed, outcome)
	return item
}

// do sends a request, with a JSON content type when body is set.
func (f *fixture) do(t *testing.T, method, path, body string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	return f.serve(t, req)
}

func (f *fixture) serve(t *testing.T, req *http.Request) (*httptest.ResponseRecorder, envelope) {
	t.Helper()

	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)

	var env envelope
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	}
	return rec, env
}

func TestStats(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.failed(t, "a@x.com")
	_, err := f.enqueuer.Enqueue(context.Background(), mailqueue.KindWelcome, "b@x.com", "")
	require.NoError(t, err)

	rec, env := f.do(t, http.MethodGet, "/queue/stats", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var stats mailqueue.Stats
	require.NoError(t, json.Unmarshal(env.Data, &stats))
	assert.Equal(t, mailqueue.Stats{Pending: 1, Failed: 1}, stats)
}

func TestListFailed(t *testing.T) {
	t.Parallel()

	f := newFixture(t)

	rec, env := f.do(t, http.MethodGet, "/queue/failed", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, string(env.Data))
	assert.EqualValues(t, 0, env.Meta["count"])

	item := f.failed(t, "a@x.com")
	rec, env = f.do(t, http.MethodGet, "/queue/failed", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var items []mailqueue.Item
	require.NoError(t, json.Unmarshal(env.Data, &items))
	require.Len(t, items, 1)
	assert.Equal(t, item.ID, items[0].ID)
	assert.Equal(t, "mailbox unavailable", items[0].LastError)
	assert.EqualValues(t, 1, env.Meta["count"])
}

func TestGetItem(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	item, err := f.enqueuer.Enqueue(context.Background(), mailqueue.KindWelcome, "a@x.com", "Alice")
	require.NoError(t, err)

	rec, env := f.do(t, http.MethodGet, "/queue/items/"+item.ID.String(), "")
	require.Equal(t, http.StatusOK, rec.Code)
	var got mailqueue.Item
	require.NoError(t, json.Unmarshal(env.Data, &got))
	assert.Equal(t, "Alice", got.RecipientName)

	rec, env = f.do(t, http.MethodGet, "/queue/items/"+uuid.NewString(), "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found", env.Error.Code)
}

func TestReset(t *testing.T) {
	t.Parallel()

	t.Run("failed item", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		item := f.failed(t, "a@x.com")

		rec, env := f.do(t, http.MethodPost, "/queue/items/"+item.ID.String()+"/reset", "")
		require.Equal(t, http.StatusOK, rec.Code)

		var got mailqueue.Item
		require.NoError(t, json.Unmarshal(env.Data, &got))
		assert.Equal(t, mailqueue.StatusPending, got.Status)
		assert.Equal(t, 0, got.RetryCount)

		stored, err := f.store.GetByID(context.Background(), item.ID)
		require.NoError(t, err)
		assert.Equal(t, mailqueue.StatusPending, stored.Status)
	})

	t.Run("pending item is a conflict", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		item, err := f.enqueuer.Enqueue(context.Background(), mailqueue.KindWelcome, "a@x.com", "")
		require.NoError(t, err)

		rec, env := f.do(t, http.MethodPost, "/queue/items/"+item.ID.String()+"/reset", "")
		assert.Equal(t, http.StatusConflict, rec.Code)
		assert.Equal(t, "not_failed", env.Error.Code)
	})

	t.Run("unknown item", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		rec, env := f.do(t, http.MethodPost, "/queue/items/"+uuid.NewString()+"/reset", "")
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Equal(t, "not_found", env.Error.Code)
	})

	t.Run("malformed id", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		rec, env := f.do(t, http.MethodPost, "/queue/items/not-a-uuid/reset", "")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "invalid_id", env.Error.Code)
	})

	t.Run("wrong method", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		rec, _ := f.do(t, http.MethodGet, "/queue/items/"+uuid.NewString()+"/reset", "")
		assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	})
}

func TestEnqueue(t *testing.T) {
	t.Parallel()

	t.Run("creates pending item", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		rec, env := f.do(t, http.MethodPost, "/queue/items",
			`{"kind":"password_reset","recipient_email":"a@x.com","recipient_name":"Alice","token":"tok","delay":"5m"}`)
		require.Equal(t, http.StatusCreated, rec.Code)

		var got mailqueue.Item
		require.NoError(t, json.Unmarshal(env.Data, &got))
		assert.Equal(t, mailqueue.KindPasswordReset, got.Kind)
		assert.Equal(t, "tok", got.Token)
		assert.Equal(t, mailqueue.StatusPending, got.Status)
		assert.True(t, got.NextRetryAt.After(got.CreatedAt))
		assert.Equal(t, 1, f.store.Len())
	})

	tests := []struct {
		name   string
		body   string
		status int
		code   string
	}{
		{"malformed json", `{"kind":`, http.StatusBadRequest, "invalid_body"},
		{"trailing data", `{"kind":"welcome","recipient_email":"a@x.com"} this is not json {{{`, http.StatusBadRequest, "invalid_body"},
		{"second object", `{"kind":"welcome","recipient_email":"a@x.com"}{"kind":"welcome"}`, http.StatusBadRequest, "invalid_body"},
		{"unknown field", `{"kind":"welcome","recipient_email":"a@x.com","priority":1}`, http.StatusBadRequest, "invalid_body"},
		{"invalid email", `{"kind":"welcome","recipient_email":"nope"}`, http.StatusUnprocessableEntity, "invalid_item"},
		{"missing kind", `{"recipient_email":"a@x.com"}`, http.StatusUnprocessableEntity, "invalid_item"},
		{"bad delay", `{"kind":"welcome","recipient_email":"a@x.com","delay":"soon"}`, http.StatusUnprocessableEntity, "invalid_item"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			f := newFixture(t)
			rec, env := f.do(t, http.MethodPost, "/queue/items", tt.body)
			assert.Equal(t, tt.status, rec.Code)
			require.NotNil(t, env.Error)
			assert.Equal(t, tt.code, env.Error.Code)
			assert.Zero(t, f.store.Len())
		})
	}
}

func TestEnqueue_ContentType(t *testing.T) {
	t.Parallel()

	const body = `{"kind":"welcome","recipient_email":"a@x.com"}`
	tests := []struct {
		name        string
		contentType string
		body        string
		status      int
		code        string
	}{
		{"missing content type", "", body, http.StatusUnsupportedMediaType, "unsupported_media_type"},
		{"form content type", "application/x-www-form-urlencoded", body, http.StatusUnsupportedMediaType, "unsupported_media_type"},
		{"empty body", "application/json", "", http.StatusBadRequest, "invalid_body"},
		{"charset parameter", "application/json; charset=utf-8", body, http.StatusCreated, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			f := newFixture(t)
			req := httptest.NewRequest(http.MethodPost, "/queue/items", strings.NewReader(tt.body))
			if tt.contentType != "" {
				req.Header.Set("Content-Type", tt.contentType)
			}
			rec, env := f.serve(t, req)
			assert.Equal(t, tt.status, rec.Code)
			if tt.code == "" {
				assert.Nil(t, env.Error)
				assert.Equal(t, 1, f.store.Len())
				return
			}
			require.NotNil(t, env.Error)
			assert.Equal(t, tt.code, env.Error.Code)
			assert.Zero(t, f.store.Len())
		})
	}
}

func TestEnqueue_DisabledWithoutEnqueuer(t *testing.T) {
	t.Parallel()

	admin, err := mailqueue.NewAdmin(mailqueue.NewMemoryStorage())
	require.NoError(t, err)
	h := queueadmin.Router(queueadmin.RouterOptions{Queue: queueadmin.NewService(admin)})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/queue/items", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	h.ServeHTTP(rec, req)
	assert.Contains(t, []int{http.StatusNotFound, http.StatusMethodNotAllowed}, rec.Code)
}

type mockAdmin struct {
	mock.Mock
}

func (m *mockAdmin) Stats(ctx context.Context) (mailqueue.Stats, error) {
	args := m.Called(ctx)
	return args.Get(0).(mailqueue.Stats), args.Error(1)
}

func (m *mockAdmin) ListFailed(ctx context.Context) ([]*mailqueue.Item, error) {
	args := m.Called(ctx)
	items, _ := args.Get(0).([]*mailqueue.Item)
	return items, args.Error(1)
}

func (m *mockAdmin) Get(ctx context.Context, id uuid.UUID) (*mailqueue.Item, error) {
	args := m.Called(ctx, id)
	item, _ := args.Get(0).(*mailqueue.Item)
	return item, args.Error(1)
}

func (m *mockAdmin) ResetForRetry(ctx context.Context, id uuid.UUID) (*mailqueue.Item, error) {
	args := m.Called(ctx, id)
	item, _ := args.Get(0).(*mailqueue.Item)
	return item, args.Error(1)
}

func TestStoreErrorsAreHidden(t *testing.T) {
	t.Parallel()

	admin := &mockAdmin{}
	admin.On("Stats", mock.Anything).Return(mailqueue.Stats{}, errors.New("pq: password authentication failed"))
	admin.On("ListFailed", mock.Anything).Return(nil, errors.New("connection reset"))

	h := queueadmin.Router(queueadmin.RouterOptions{
		Queue: queueadmin.NewService(admin, queueadmin.WithLogger(discardLogger())),
	})

	for _, path := range []string{"/queue/stats", "/queue/failed"} {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusInternalServerError, rec.Code, path)
		assert.Contains(t, rec.Body.String(), `"internal_error"`)
		assert.NotContains(t, rec.Body.String(), "password")
		assert.NotContains(t, rec.Body.String(), "connection reset")
	}
	admin.AssertExpectations(t)
}

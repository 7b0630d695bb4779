package mailqueue_test

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/mailqueue/pkg/mailqueue"
)

var testEpoch = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

// fakeClock is a manually advanced clock.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: testEpoch}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

// countingMetrics records calls for assertions.
type countingMetrics struct {
	mu        sync.Mutex
	enqueued  map[mailqueue.Kind]int
	outcomes  map[mailqueue.Outcome]int
	ticks     int
	recovered int
}

func newCountingMetrics() *countingMetrics {
	return &countingMetrics{
		enqueued: make(map[mailqueue.Kind]int),
		outcomes: make(map[mailqueue.Outcome]int),
	}
}

func (m *countingMetrics) AddEnqueued(kind mailqueue.Kind) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.enqueued[kind]++
}

func (m *countingMetrics) ObserveDispatch(_ mailqueue.Kind, outcome mailqueue.Outcome, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.outcomes[outcome]++
}

func (m *countingMetrics) ObserveTick(int, time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ticks++
}

func (m *countingMetrics) AddRecovered(count int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recovered += count
}

func (m *countingMetrics) outcome(o mailqueue.Outcome) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.outcomes[o]
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig() mailqueue.Config {
	cfg := mailqueue.DefaultConfig()
	cfg.InitialDelay = 0
	cfg.SendTimeout = time.Second
	return cfg
}

// recordingSender counts calls and returns err for every message.
type recordingSender struct {
	mu    sync.Mutex
	calls []mailqueue.Message
	err   error
}

func (s *recordingSender) Send(_ context.Context, msg mailqueue.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, msg)
	return s.err
}

func (s *recordingSender) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

// queueFixture wires every component to one memory store and fake clock.
type queueFixture struct {
	store      *mailqueue.MemoryStorage
	clock      *fakeClock
	metrics    *countingMetrics
	enqueuer   *mailqueue.Enqueuer
	dispatcher *mailqueue.Dispatcher
	scheduler  *mailqueue.Scheduler
	admin      *mailqueue.Admin
}

func newQueueFixture(t *testing.T, cfg mailqueue.Config) *queueFixture {
	t.Helper()

	f := &queueFixture{
		store:   mailqueue.NewMemoryStorage(),
		clock:   newFakeClock(),
		metrics: newCountingMetrics(),
	}
	opts := []mailqueue.Option{
		mailqueue.WithClock(f.clock),
		mailqueue.WithMetrics(f.metrics),
		mailqueue.WithLogger(discardLogger()),
	}

	var err error
	f.enqueuer, err = mailqueue.NewEnqueuer(f.store, cfg, opts...)
	require.NoError(t, err)
	f.dispatcher, err = mailqueue.NewDispatcher(f.store, cfg, opts...)
	require.NoError(t, err)
	f.scheduler, err = mailqueue.NewScheduler(f.store, f.dispatcher, cfg, opts...)
	require.NoError(t, err)
	f.admin, err = mailqueue.NewAdmin(f.store, opts...)
	require.NoError(t, err)

	return f
}

func (f *queueFixture) get(t *testing.T, item *mailqueue.Item) *mailqueue.Item {
	t.Helper()
	stored, err := f.store.GetByID(context.Background(), item.ID)
	require.NoError(t, err)
	return stored
}

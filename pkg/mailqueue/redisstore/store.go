// Package redisstore persists the mail queue in Redis.
//
// Each item is a JSON document under its own key. Two kinds of sorted sets
// index it: one per status scored by UpdatedAt, and a ready set of pending
// items scored by NextRetryAt. Conditional saves use WATCH/MULTI so a status
// change that races another writer fails with mailqueue.ErrConflict.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/dmitrymomot/mailqueue/pkg/mailqueue"
)

// DefaultPrefix namespaces every key written by the store.
const DefaultPrefix = "mailqueue"

// Store implements mailqueue.Store on top of a go-redis client.
type Store struct {
	client redis.UniversalClient
	prefix string
}

var _ mailqueue.Store = (*Store)(nil)

// Option configures the store.
type Option func(*Store)

// WithPrefix overrides DefaultPrefix.
func WithPrefix(prefix string) Option {
	return func(s *Store) {
		if prefix != "" {
			s.prefix = prefix
		}
	}
}

// New creates a store.
func New(client redis.UniversalClient, opts ...Option) *Store {
	s := &Store{client: client, prefix: DefaultPrefix}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) itemKey(id uuid.UUID) string {
	return s.prefix + ":item:" + id.String()
}

func (s *Store) statusKey(status mailqueue.Status) string {
	return s.prefix + ":status:" + string(status)
}

func (s *Store) readyKey() string {
	return s.prefix + ":ready"
}

// getter is satisfied by both the client and a WATCH transaction.
type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func score(t time.Time) float64 {
	return float64(t.UnixMilli())
}

// Insert implements mailqueue.EnqueuerRepository
func (s *Store) Insert(ctx context.Context, item *mailqueue.Item) error {
	if item == nil {
		return mailqueue.ErrInvalidItem
	}

	data, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("failed to encode queue item: %w", err)
	}

	key := s.itemKey(item.ID)
	err = s.client.Watch(ctx, func(tx *redis.Tx) error {
		n, err := tx.Exists(ctx, key).Result()
		if err != nil {
			return err
		}
		if n > 0 {
			return fmt.Errorf("%w: %s", mailqueue.ErrAlreadyExists, item.ID)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, 0)
			s.index(ctx, pipe, item)
			return nil
		})
		return err
	}, key)

	switch {
	case err == nil:
		return nil
	case errors.Is(err, mailqueue.ErrAlreadyExists):
		return err
	case errors.Is(err, redis.TxFailedErr):
		return fmt.Errorf("%w: %s", mailqueue.ErrAlreadyExists, item.ID)
	default:
		return fmt.Errorf("failed to insert queue item: %w", err)
	}
}

// Save implements mailqueue.DispatcherRepository
func (s *Store) Save(ctx context.Context, item *mailqueue.Item, expected mailqueue.Status) error {
	if item == nil {
		return mailqueue.ErrInvalidItem
	}

	data, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("failed to encode queue item: %w", err)
	}

	key := s.itemKey(item.ID)
	err = s.client.Watch(ctx, func(tx *redis.Tx) error {
		stored, err := s.load(ctx, tx, item.ID)
		if err != nil {
			return err
		}
		if stored.Status != expected {
			return fmt.Errorf("%w: %s is %s, expected %s", mailqueue.ErrConflict, item.ID, stored.Status, expected)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, 0)
			pipe.ZRem(ctx, s.statusKey(stored.Status), item.ID.String())
			pipe.ZRem(ctx, s.readyKey(), item.ID.String())
			s.index(ctx, pipe, item)
			return nil
		})
		return err
	}, key)

	switch {
	case err == nil:
		return nil
	case errors.Is(err, mailqueue.ErrConflict), errors.Is(err, mailqueue.ErrNotFound):
		return err
	case errors.Is(err, redis.TxFailedErr):
		return fmt.Errorf("%w: %s", mailqueue.ErrConflict, item.ID)
	default:
		return fmt.Errorf("failed to save queue item: %w", err)
	}
}

// index queues the secondary index writes for item.
func (s *Store) index(ctx context.Context, pipe redis.Pipeliner, item *mailqueue.Item) {
	member := item.ID.String()
	pipe.ZAdd(ctx, s.statusKey(item.Status), redis.Z{Score: score(item.UpdatedAt), Member: member})
	if item.Status == mailqueue.StatusPending {
		pipe.ZAdd(ctx, s.readyKey(), redis.Z{Score: score(item.NextRetryAt), Member: member})
	}
}

// FindReady implements mailqueue.SchedulerRepository
func (s *Store) FindReady(ctx context.Context, now time.Time, limit int) ([]*mailqueue.Item, error) {
	ids, err := s.client.ZRangeByScore(ctx, s.readyKey(), &redis.ZRangeBy{
		Min: "-inf",
		Max: strconv.FormatInt(now.UnixMilli(), 10),
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to find ready items: %w", err)
	}

	items, err := s.loadMany(ctx, ids)
	if err != nil {
		return nil, err
	}

	// The sorted set only orders by NextRetryAt at millisecond precision.
	items = slices.DeleteFunc(items, func(item *mailqueue.Item) bool { return !item.Ready(now) })
	slices.SortFunc(items, func(a, b *mailqueue.Item) int {
		if c := a.NextRetryAt.Compare(b.NextRetryAt); c != 0 {
			return c
		}
		return a.CreatedAt.Compare(b.CreatedAt)
	})

	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

// GetByID implements mailqueue.AdminRepository
func (s *Store) GetByID(ctx context.Context, id uuid.UUID) (*mailqueue.Item, error) {
	return s.load(ctx, s.client, id)
}

// CountByStatus implements mailqueue.AdminRepository
func (s *Store) CountByStatus(ctx context.Context) (map[mailqueue.Status]int64, error) {
	statuses := []mailqueue.Status{
		mailqueue.StatusPending,
		mailqueue.StatusProcessing,
		mailqueue.StatusSent,
		mailqueue.StatusFailed,
	}

	cmds := make([]*redis.IntCmd, len(statuses))
	_, err := s.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, status := range statuses {
			cmds[i] = pipe.ZCard(ctx, s.statusKey(status))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to count queue items: %w", err)
	}

	counts := make(map[mailqueue.Status]int64, len(statuses))
	for i, status := range statuses {
		counts[status] = cmds[i].Val()
	}
	return counts, nil
}

// ListByStatus implements mailqueue.AdminRepository
func (s *Store) ListByStatus(ctx context.Context, status mailqueue.Status, limit int) ([]*mailqueue.Item, error) {
	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit) - 1
	}

	ids, err := s.client.ZRange(ctx, s.statusKey(status), 0, stop).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list queue items: %w", err)
	}
	return s.loadMany(ctx, ids)
}

// FindStuck implements mailqueue.RecovererRepository
func (s *Store) FindStuck(ctx context.Context, updatedBefore time.Time) ([]*mailqueue.Item, error) {
	ids, err := s.client.ZRangeByScore(ctx, s.statusKey(mailqueue.StatusProcessing), &redis.ZRangeBy{
		Min: "-inf",
		Max: "(" + strconv.FormatInt(updatedBefore.UnixMilli(), 10),
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to find stuck items: %w", err)
	}

	items, err := s.loadMany(ctx, ids)
	if err != nil {
		return nil, err
	}
	return slices.DeleteFunc(items, func(item *mailqueue.Item) bool {
		return item.Status != mailqueue.StatusProcessing || !item.UpdatedAt.Before(updatedBefore)
	}), nil
}

func (s *Store) load(ctx context.Context, c getter, id uuid.UUID) (*mailqueue.Item, error) {
	data, err := c.Get(ctx, s.itemKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("%w: %s", mailqueue.ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to get queue item: %w", err)
	}
	return decode(data)
}

// loadMany fetches items in the order of ids, skipping ids whose document vanished.
func (s *Store) loadMany(ctx context.Context, ids []string) ([]*mailqueue.Item, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.prefix + ":item:" + id
	}

	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load queue items: %w", err)
	}

	items := make([]*mailqueue.Item, 0, len(values))
	for _, v := range values {
		raw, ok := v.(string)
		if !ok {
			continue
		}
		item, err := decode([]byte(raw))
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}

func decode(data []byte) (*mailqueue.Item, error) {
	var item mailqueue.Item
	if err := json.Unmarshal(data, &item); err != nil {
		return nil, fmt.Errorf("failed to decode queue item: %w", err)
	}
	return &item, nil
}

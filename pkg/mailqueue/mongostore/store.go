// Package mongostore persists the mail queue in a MongoDB collection.
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/dmitrymomot/mailqueue/pkg/mailqueue"
)

// DefaultCollection is the collection used when none is configured.
const DefaultCollection = "mail_queue_items"

// Store implements mailqueue.Store on a single collection.
type Store struct {
	coll *mongo.Collection
}

var _ mailqueue.Store = (*Store)(nil)

// New binds the store to the named collection of db.
func New(db *mongo.Database, collection string) *Store {
	if collection == "" {
		collection = DefaultCollection
	}
	return &Store{coll: db.Collection(collection)}
}

// EnsureIndexes creates the indexes backing FindReady, ListByStatus and FindStuck.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	_, err := s.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "status", Value: 1}, {Key: "next_retry_at", Value: 1}, {Key: "created_at", Value: 1}}},
		{Keys: bson.D{{Key: "status", Value: 1}, {Key: "updated_at", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("failed to create queue indexes: %w", err)
	}
	return nil
}

type document struct {
	ID             string     `bson:"_id"`
	Kind           string     `bson:"kind"`
	RecipientEmail string     `bson:"recipient_email"`
	RecipientName  string     `bson:"recipient_name"`
	Token          string     `bson:"token"`
	AdditionalData string     `bson:"additional_data"`
	Status         string     `bson:"status"`
	RetryCount     int        `bson:"retry_count"`
	MaxRetries     int        `bson:"max_retries"`
	LastError      string     `bson:"last_error"`
	CreatedAt      time.Time  `bson:"created_at"`
	NextRetryAt    time.Time  `bson:"next_retry_at"`
	SentAt         *time.Time `bson:"sent_at"`
	UpdatedAt      time.Time  `bson:"updated_at"`
}

func toDocument(item *mailqueue.Item) document {
	return document{
		ID:             item.ID.String(),
		Kind:           string(item.Kind),
		RecipientEmail: item.RecipientEmail,
		RecipientName:  item.RecipientName,
		Token:          item.Token,
		AdditionalData: item.AdditionalData,
		Status:         string(item.Status),
		RetryCount:     item.RetryCount,
		MaxRetries:     item.MaxRetries,
		LastError:      item.LastError,
		CreatedAt:      item.CreatedAt,
		NextRetryAt:    item.NextRetryAt,
		SentAt:         item.SentAt,
		UpdatedAt:      item.UpdatedAt,
	}
}

func (d document) toItem() (*mailqueue.Item, error) {
	id, err := uuid.Parse(d.ID)
	if err != nil {
		return nil, fmt.Errorf("invalid queue item id %q: %w", d.ID, err)
	}

	item := &mailqueue.Item{
		ID:             id,
		Kind:           mailqueue.Kind(d.Kind),
		RecipientEmail: d.RecipientEmail,
		RecipientName:  d.RecipientName,
		Token:          d.Token,
		AdditionalData: d.AdditionalData,
		Status:         mailqueue.Status(d.Status),
		RetryCount:     d.RetryCount,
		MaxRetries:     d.MaxRetries,
		LastError:      d.LastError,
		CreatedAt:      d.CreatedAt.UTC(),
		NextRetryAt:    d.NextRetryAt.UTC(),
		UpdatedAt:      d.UpdatedAt.UTC(),
	}
	if d.SentAt != nil {
		sentAt := d.SentAt.UTC()
		item.SentAt = &sentAt
	}
	return item, nil
}

// Insert implements mailqueue.EnqueuerRepository
func (s *Store) Insert(ctx context.Context, item *mailqueue.Item) error {
	if item == nil {
		return mailqueue.ErrInvalidItem
	}

	if _, err := s.coll.InsertOne(ctx, toDocument(item)); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("%w: %s", mailqueue.ErrAlreadyExists, item.ID)
		}
		return fmt.Errorf("failed to insert queue item: %w", err)
	}
	return nil
}

// Save implements mailqueue.DispatcherRepository
func (s *Store) Save(ctx context.Context, item *mailqueue.Item, expected mailqueue.Status) error {
	if item == nil {
		return mailqueue.ErrInvalidItem
	}

	id := item.ID.String()
	update := bson.M{"$set": bson.M{
		"status":        string(item.Status),
		"retry_count":   item.RetryCount,
		"max_retries":   item.MaxRetries,
		"last_error":    item.LastError,
		"next_retry_at": item.NextRetryAt,
		"sent_at":       item.SentAt,
		"updated_at":    item.UpdatedAt,
	}}

	res, err := s.coll.UpdateOne(ctx, bson.M{"_id": id, "status": string(expected)}, update)
	if err != nil {
		return fmt.Errorf("failed to update queue item: %w", err)
	}
	if res.MatchedCount == 1 {
		return nil
	}

	n, err := s.coll.CountDocuments(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("failed to check queue item: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", mailqueue.ErrNotFound, item.ID)
	}
	return fmt.Errorf("%w: %s is no longer %s", mailqueue.ErrConflict, item.ID, expected)
}

// FindReady implements mailqueue.SchedulerRepository
func (s *Store) FindReady(ctx context.Context, now time.Time, limit int) ([]*mailqueue.Item, error) {
	opts := options.Find().SetSort(bson.D{{Key: "next_retry_at", Value: 1}, {Key: "created_at", Value: 1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}

	filter := bson.M{
		"status":        string(mailqueue.StatusPending),
		"next_retry_at": bson.M{"$lte": now},
	}
	return s.find(ctx, filter, opts)
}

// GetByID implements mailqueue.AdminRepository
func (s *Store) GetByID(ctx context.Context, id uuid.UUID) (*mailqueue.Item, error) {
	var doc document
	if err := s.coll.FindOne(ctx, bson.M{"_id": id.String()}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("%w: %s", mailqueue.ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to get queue item: %w", err)
	}
	return doc.toItem()
}

// CountByStatus implements mailqueue.AdminRepository
func (s *Store) CountByStatus(ctx context.Context) (map[mailqueue.Status]int64, error) {
	cursor, err := s.coll.Aggregate(ctx, mongo.Pipeline{
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$status"},
			{Key: "count", Value: bson.D{{Key: "$sum", Value: 1}}},
		}}},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to count queue items: %w", err)
	}

	var groups []struct {
		Status string `bson:"_id"`
		Count  int64  `bson:"count"`
	}
	if err := cursor.All(ctx, &groups); err != nil {
		return nil, fmt.Errorf("failed to decode queue item counts: %w", err)
	}

	counts := make(map[mailqueue.Status]int64, len(groups))
	for _, g := range groups {
		counts[mailqueue.Status(g.Status)] = g.Count
	}
	return counts, nil
}

// ListByStatus implements mailqueue.AdminRepository
func (s *Store) ListByStatus(ctx context.Context, status mailqueue.Status, limit int) ([]*mailqueue.Item, error) {
	opts := options.Find().SetSort(bson.D{{Key: "updated_at", Value: 1}, {Key: "_id", Value: 1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	return s.find(ctx, bson.M{"status": string(status)}, opts)
}

// FindStuck implements mailqueue.RecovererRepository
func (s *Store) FindStuck(ctx context.Context, updatedBefore time.Time) ([]*mailqueue.Item, error) {
	opts := options.Find().SetSort(bson.D{{Key: "updated_at", Value: 1}})
	filter := bson.M{
		"status":     string(mailqueue.StatusProcessing),
		"updated_at": bson.M{"$lt": updatedBefore},
	}
	return s.find(ctx, filter, opts)
}

func (s *Store) find(ctx context.Context, filter any, opts *options.FindOptionsBuilder) ([]*mailqueue.Item, error) {
	cursor, err := s.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query queue items: %w", err)
	}

	var docs []document
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode queue items: %w", err)
	}

	items := make([]*mailqueue.Item, 0, len(docs))
	for _, doc := range docs {
		item, err := doc.toItem()
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}

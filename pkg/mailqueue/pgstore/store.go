// Package pgstore persists the mail queue in PostgreSQL.
//
// Every status change is a single conditional UPDATE keyed on the expected
// current status, so concurrent schedulers cannot claim the same row twice.
package pgstore

import (
	"context"
	"embed"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/dmitrymomot/mailqueue/pkg/mailqueue"
	"github.com/dmitrymomot/mailqueue/pkg/pg"
)

// Migrations holds the goose migrations for the queue table.
//
//go:embed migrations/*.sql
var Migrations embed.FS

// DB is the subset of *pgxpool.Pool the store needs.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store implements mailqueue.Store on top of a pgx pool.
type Store struct {
	db DB
}

var _ mailqueue.Store = (*Store)(nil)

// New creates a store. Run pg.Migrate with Migrations before first use.
func New(db DB) *Store {
	return &Store{db: db}
}

const itemColumns = `id, kind, recipient_email, recipient_name, token, additional_data,
	status, retry_count, max_retries, last_error, created_at, next_retry_at, sent_at, updated_at`

// Insert implements mailqueue.EnqueuerRepository
func (s *Store) Insert(ctx context.Context, item *mailqueue.Item) error {
	if item == nil {
		return mailqueue.ErrInvalidItem
	}

	query := `INSERT INTO mail_queue_items (` + itemColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`

	_, err := s.db.Exec(ctx, query,
		item.ID,
		string(item.Kind),
		item.RecipientEmail,
		item.RecipientName,
		item.Token,
		item.AdditionalData,
		string(item.Status),
		item.RetryCount,
		item.MaxRetries,
		item.LastError,
		item.CreatedAt,
		item.NextRetryAt,
		item.SentAt,
		item.UpdatedAt,
	)
	if err != nil {
		if pg.IsDuplicateKeyError(err) {
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

	query := `UPDATE mail_queue_items SET
			status = $3,
			retry_count = $4,
			max_retries = $5,
			last_error = $6,
			next_retry_at = $7,
			sent_at = $8,
			updated_at = $9
		WHERE id = $1 AND status = $2`

	tag, err := s.db.Exec(ctx, query,
		item.ID,
		string(expected),
		string(item.Status),
		item.RetryCount,
		item.MaxRetries,
		item.LastError,
		item.NextRetryAt,
		item.SentAt,
		item.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update queue item: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	var exists bool
	if err := s.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM mail_queue_items WHERE id = $1)`, item.ID).Scan(&exists); err != nil {
		return fmt.Errorf("failed to check queue item: %w", err)
	}
	if !exists {
		return fmt.Errorf("%w: %s", mailqueue.ErrNotFound, item.ID)
	}
	return fmt.Errorf("%w: %s is no longer %s", mailqueue.ErrConflict, item.ID, expected)
}

// FindReady implements mailqueue.SchedulerRepository
func (s *Store) FindReady(ctx context.Context, now time.Time, limit int) ([]*mailqueue.Item, error) {
	query := `SELECT ` + itemColumns + `
		FROM mail_queue_items
		WHERE status = $1 AND next_retry_at <= $2
		ORDER BY next_retry_at ASC, created_at ASC
		LIMIT $3`

	return s.queryItems(ctx, query, string(mailqueue.StatusPending), now, limitArg(limit))
}

// GetByID implements mailqueue.AdminRepository
func (s *Store) GetByID(ctx context.Context, id uuid.UUID) (*mailqueue.Item, error) {
	query := `SELECT ` + itemColumns + ` FROM mail_queue_items WHERE id = $1`

	rows, err := s.db.Query(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get queue item: %w", err)
	}

	item, err := pgx.CollectExactlyOneRow(rows, scanItem)
	if err != nil {
		if pg.IsNotFoundError(err) {
			return nil, fmt.Errorf("%w: %s", mailqueue.ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to get queue item: %w", err)
	}
	return item, nil
}

// CountByStatus implements mailqueue.AdminRepository
func (s *Store) CountByStatus(ctx context.Context) (map[mailqueue.Status]int64, error) {
	rows, err := s.db.Query(ctx, `SELECT status, COUNT(*) FROM mail_queue_items GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("failed to count queue items: %w", err)
	}
	defer rows.Close()

	counts := make(map[mailqueue.Status]int64, 4)
	for rows.Next() {
		var (
			status string
			count  int64
		)
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("failed to scan queue item count: %w", err)
		}
		counts[mailqueue.Status(status)] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to count queue items: %w", err)
	}
	return counts, nil
}

// ListByStatus implements mailqueue.AdminRepository
func (s *Store) ListByStatus(ctx context.Context, status mailqueue.Status, limit int) ([]*mailqueue.Item, error) {
	query := `SELECT ` + itemColumns + `
		FROM mail_queue_items
		WHERE status = $1
		ORDER BY updated_at ASC, id ASC
		LIMIT $2`

	return s.queryItems(ctx, query, string(status), limitArg(limit))
}

// FindStuck implements mailqueue.RecovererRepository
func (s *Store) FindStuck(ctx context.Context, updatedBefore time.Time) ([]*mailqueue.Item, error) {
	query := `SELECT ` + itemColumns + `
		FROM mail_queue_items
		WHERE status = $1 AND updated_at < $2
		ORDER BY updated_at ASC`

	return s.queryItems(ctx, query, string(mailqueue.StatusProcessing), updatedBefore)
}

func (s *Store) queryItems(ctx context.Context, query string, args ...any) ([]*mailqueue.Item, error) {
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query queue items: %w", err)
	}

	items, err := pgx.CollectRows(rows, scanItem)
	if err != nil {
		return nil, fmt.Errorf("failed to scan queue items: %w", err)
	}
	return items, nil
}

func scanItem(row pgx.CollectableRow) (*mailqueue.Item, error) {
	var (
		item   mailqueue.Item
		kind   string
		status string
	)
	err := row.Scan(
		&item.ID,
		&kind,
		&item.RecipientEmail,
		&item.RecipientName,
		&item.Token,
		&item.AdditionalData,
		&status,
		&item.RetryCount,
		&item.MaxRetries,
		&item.LastError,
		&item.CreatedAt,
		&item.NextRetryAt,
		&item.SentAt,
		&item.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	item.Kind = mailqueue.Kind(kind)
	item.Status = mailqueue.Status(status)
	normalizeTimes(&item)
	return &item, nil
}

// normalizeTimes converts timestamps to UTC so values compare equal to what was written.
func normalizeTimes(item *mailqueue.Item) {
	item.CreatedAt = item.CreatedAt.UTC()
	item.NextRetryAt = item.NextRetryAt.UTC()
	item.UpdatedAt = item.UpdatedAt.UTC()
	if item.SentAt != nil {
		sentAt := item.SentAt.UTC()
		item.SentAt = &sentAt
	}
}

// limitArg maps the "0 means all" convention onto LIMIT NULL.
func limitArg(limit int) any {
	if limit <= 0 {
		return nil
	}
	return limit
}

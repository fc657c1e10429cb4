// Package postgres stores the outbox in the registry database so several
// relay workers can share one backlog.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"

	"vcregistry/pkg/platform/outbox"
)

const (
	maxBatch     = 1000
	defaultLease = 30 * time.Second
)

// ErrNotPending is returned by MarkProcessed for an unknown or already
// relayed entry.
var ErrNotPending = errors.New("outbox entry not pending")

// Store claims entries with a lease: a fetched entry is invisible to other
// workers until it is marked processed or the lease runs out.
type Store struct {
	db    *sql.DB
	lease time.Duration
}

type Option func(*Store)

// WithClaimLease sets how long a fetched entry stays claimed. It should
// exceed the worst-case publish time, or a slow worker's entries are
// relayed twice.
func WithClaimLease(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.lease = d
		}
	}
}

func New(db *sql.DB, opts ...Option) *Store {
	s := &Store{db: db, lease: defaultLease}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) Append(ctx context.Context, e *outbox.Entry) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO outbox (id, topic, aggregate_type, aggregate_id, event_type, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		e.ID, e.Topic, e.AggregateType, e.AggregateID, e.EventType, e.Payload, e.CreatedAt)
	if err != nil {
		return fmt.Errorf("append outbox entry %s: %w", e.ID, err)
	}
	return nil
}

// FetchUnprocessed claims up to limit unclaimed entries in one statement.
// SKIP LOCKED keeps two workers from blocking on, or claiming, the same rows.
func (s *Store) FetchUnprocessed(ctx context.Context, limit int) ([]*outbox.Entry, error) {
	if limit <= 0 {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx, `
		WITH batch AS (
			SELECT id FROM outbox
			WHERE processed_at IS NULL
			  AND (claimed_until IS NULL OR claimed_until < NOW())
			ORDER BY created_at
			LIMIT $1
			FOR UPDATE SKIP LOCKED
		)
		UPDATE outbox o
		SET claimed_until = NOW() + make_interval(secs => $2)
		FROM batch
		WHERE o.id = batch.id
		RETURNING o.id, o.topic, o.aggregate_type, o.aggregate_id, o.event_type, o.payload, o.created_at`,
		min(limit, maxBatch), s.lease.Seconds())
	if err != nil {
		return nil, fmt.Errorf("claim outbox entries: %w", err)
	}
	defer rows.Close()

	var entries []*outbox.Entry
	for rows.Next() {
		var e outbox.Entry
		if err := rows.Scan(&e.ID, &e.Topic, &e.AggregateType, &e.AggregateID, &e.EventType, &e.Payload, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan outbox entry: %w", err)
		}
		entries = append(entries, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("claim outbox entries: %w", err)
	}
	// RETURNING has no defined order.
	slices.SortFunc(entries, func(a, b *outbox.Entry) int { return a.CreatedAt.Compare(b.CreatedAt) })
	return entries, nil
}

func (s *Store) MarkProcessed(ctx context.Context, id uuid.UUID, at time.Time) error {
	n, err := s.exec(ctx, `
		UPDATE outbox SET processed_at = $2, claimed_until = NULL
		WHERE id = $1 AND processed_at IS NULL`, id, at)
	if err != nil {
		return fmt.Errorf("mark outbox entry %s: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("mark outbox entry %s: %w", id, ErrNotPending)
	}
	return nil
}

// CountPending counts unrelayed entries, claimed or not.
func (s *Store) CountPending(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM outbox WHERE processed_at IS NULL`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count pending outbox entries: %w", err)
	}
	return n, nil
}

func (s *Store) DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error) {
	n, err := s.exec(ctx, `DELETE FROM outbox WHERE processed_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("prune outbox: %w", err)
	}
	return n, nil
}

func (s *Store) exec(ctx context.Context, query string, args ...any) (int64, error) {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	id "vcregistry/pkg/domain"
	audit "vcregistry/pkg/platform/audit"
)

const maxListLimit = 1000

// Store implements audit.Store using PostgreSQL.
type Store struct {
	db *sql.DB
}

// New creates a new PostgreSQL audit store.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Append inserts an audit event into the audit_events table.
func (s *Store) Append(ctx context.Context, event audit.Event) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_events (
			id, occurred_at, action, did, vc_id, caller,
			authority, outcome, reason, request_id
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`,
		uuid.New(),
		event.Timestamp,
		event.Action,
		string(event.DID),
		event.VCID,
		event.Caller,
		event.Authority,
		event.Outcome,
		event.Reason,
		event.RequestID,
	)
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}

// ListByDID returns the events recorded for one DID, oldest first.
func (s *Store) ListByDID(ctx context.Context, did id.DID) ([]audit.Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT occurred_at, action, did, vc_id, caller, authority, outcome, reason, request_id
		FROM audit_events
		WHERE did = $1
		ORDER BY occurred_at ASC, seq ASC
	`, string(did))
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

// ListRecent returns the N most recent events.
func (s *Store) ListRecent(ctx context.Context, limit int) ([]audit.Event, error) {
	if limit <= 0 {
		return nil, nil
	}
	limit = min(limit, maxListLimit)

	rows, err := s.db.QueryContext(ctx, `
		SELECT occurred_at, action, did, vc_id, caller, authority, outcome, reason, request_id
		FROM audit_events
		ORDER BY seq DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

func scanEvents(rows *sql.Rows) ([]audit.Event, error) {
	var events []audit.Event
	for rows.Next() {
		var (
			event audit.Event
			did   string
		)
		if err := rows.Scan(
			&event.Timestamp,
			&event.Action,
			&did,
			&event.VCID,
			&event.Caller,
			&event.Authority,
			&event.Outcome,
			&event.Reason,
			&event.RequestID,
		); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		event.DID = id.DID(did)
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit events: %w", err)
	}
	return events, nil
}

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"vcregistry/internal/registry/models"
	"vcregistry/internal/sentinel"
	id "vcregistry/pkg/domain"
)

// PostgresStateStore persists the contract singleton in registry_state.
type PostgresStateStore struct {
	db *sql.DB
}

func NewPostgresState(db *sql.DB) *PostgresStateStore {
	return &PostgresStateStore{db: db}
}

func (s *PostgresStateStore) Initialize(ctx context.Context, owner id.Address, variant models.Variant, at time.Time) (*models.ContractState, bool, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO registry_state (id, owner, variant, created_at, updated_at)
		VALUES (1, $1, $2, $3, $3)
		ON CONFLICT (id) DO NOTHING
	`, owner[:], string(variant), at)
	if err != nil {
		return nil, false, fmt.Errorf("initialize registry state: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, false, fmt.Errorf("initialize registry state rows affected: %w", err)
	}
	state, err := s.Load(ctx)
	if err != nil {
		return nil, false, err
	}
	return state, n == 1, nil
}

func (s *PostgresStateStore) Load(ctx context.Context) (*models.ContractState, error) {
	var (
		owner, authority []byte
		variant          string
		createdAt        time.Time
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT owner, authority, variant, created_at
		FROM registry_state
		WHERE id = 1
	`).Scan(&owner, &authority, &variant, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("load registry state: %w", err)
	}
	state := &models.ContractState{Variant: models.Variant(variant), CreatedAt: createdAt}
	if err := toAddress(owner, &state.Owner); err != nil {
		return nil, err
	}
	if err := toAddress(authority, &state.Authority); err != nil {
		return nil, err
	}
	return state, nil
}

func (s *PostgresStateStore) SetAuthority(ctx context.Context, authority id.Address) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE registry_state
		SET authority = $1, updated_at = NOW()
		WHERE id = 1
	`, authority[:])
	if err != nil {
		return fmt.Errorf("set authority: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("set authority rows affected: %w", err)
	}
	if n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func toAddress(b []byte, dst *id.Address) error {
	if len(b) != id.AddressLength {
		return fmt.Errorf("stored address has %d bytes: %w", len(b), sentinel.ErrInvalidState)
	}
	copy(dst[:], b)
	return nil
}

var _ StateStore = (*PostgresStateStore)(nil)

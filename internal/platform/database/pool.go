// Package database opens the registry's Postgres pool through the pgx
// database/sql driver and applies the embedded migrations.
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"vcregistry/migrations"
)

var errNotConfigured = errors.New("database not configured")

type Config struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration

	// ConnectAttempts bounds the startup pings; Postgres often comes up
	// after the registry under compose.
	ConnectAttempts int
	ConnectBackoff  time.Duration

	// Migrate applies the embedded migrations after connecting.
	Migrate bool
}

func DefaultConfig(url string) Config {
	return Config{
		URL:             url,
		MaxOpenConns:    25,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,
		ConnectAttempts: 5,
		ConnectBackoff:  time.Second,
		Migrate:         true,
	}
}

// Pool is the shared *sql.DB. A nil *Pool means no database is configured
// and every method is safe to call on it.
type Pool struct {
	db *sql.DB
}

// New connects and migrates. It returns a nil pool and no error when the
// URL is empty so callers can fall back to in-memory stores.
func New(ctx context.Context, cfg Config) (*Pool, error) {
	if cfg.URL == "" {
		return nil, nil
	}

	db, err := sql.Open("pgx", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	if err := ping(ctx, db, cfg.ConnectAttempts, cfg.ConnectBackoff); err != nil {
		_ = db.Close()
		return nil, err
	}
	if cfg.Migrate {
		if err := migrations.Apply(ctx, db); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply migrations: %w", err)
		}
	}
	return &Pool{db: db}, nil
}

// ping retries with a linearly growing backoff until the server answers,
// attempts run out, or ctx ends.
func ping(ctx context.Context, db *sql.DB, attempts int, backoff time.Duration) error {
	attempts = max(attempts, 1)
	var err error
	for i := 1; i <= attempts; i++ {
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err = db.PingContext(pingCtx)
		cancel()
		if err == nil || i == attempts {
			break
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("ping database: %w", ctx.Err())
		case <-time.After(time.Duration(i) * backoff):
		}
	}
	if err != nil {
		return fmt.Errorf("ping database after %d attempts: %w", attempts, err)
	}
	return nil
}

func (p *Pool) DB() *sql.DB {
	return p.db
}

// Health is the readiness check for the credential store.
func (p *Pool) Health(ctx context.Context) error {
	if p == nil || p.db == nil {
		return errNotConfigured
	}
	return p.db.PingContext(ctx)
}

// RegisterMetrics exposes pool statistics under the go_sql_* family.
func (p *Pool) RegisterMetrics(reg prometheus.Registerer) error {
	if p == nil || p.db == nil {
		return nil
	}
	return reg.Register(collectors.NewDBStatsCollector(p.db, "vcregistry"))
}

func (p *Pool) Close() error {
	if p == nil || p.db == nil {
		return nil
	}
	return p.db.Close()
}

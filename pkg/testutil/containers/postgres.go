//go:build integration

package containers

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"vcregistry/migrations"
)

// registryTables lists every table the migrations create, children first.
var registryTables = []string{"audit_events", "outbox", "credentials", "registry_state"}

// PostgresContainer is a migrated registry database.
type PostgresContainer struct {
	Container testcontainers.Container
	DSN       string
	DB        *sql.DB
}

// NewPostgresContainer starts Postgres and applies the embedded registry
// migrations. The container is shared through Manager and reaped by Ryuk.
func NewPostgresContainer(t *testing.T) *PostgresContainer {
	t.Helper()
	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"postgres:18-alpine",
		postgres.WithDatabase("vcregistry_test"),
		postgres.WithUsername("vcregistry"),
		postgres.WithPassword("vcregistry_test_password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		t.Fatalf("start postgres: %v", err)
	}

	fail := func(format string, args ...any) {
		_ = container.Terminate(ctx)
		t.Fatalf(format, args...)
	}

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		fail("postgres dsn: %v", err)
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		fail("open postgres: %v", err)
	}
	if err := migrations.Apply(ctx, db); err != nil {
		_ = db.Close()
		fail("apply registry migrations: %v", err)
	}

	return &PostgresContainer{Container: container, DSN: dsn, DB: db}
}

// TruncateAll empties every registry table, including the state row, so
// each test starts from an uninitialized registry.
func (p *PostgresContainer) TruncateAll(ctx context.Context) error {
	for _, table := range registryTables {
		if _, err := p.DB.ExecContext(ctx, "TRUNCATE TABLE "+table+" CASCADE"); err != nil {
			return fmt.Errorf("truncate %s: %w", table, err)
		}
	}
	return nil
}

// CountCredentials returns how many rows are stored under did.
func (p *PostgresContainer) CountCredentials(ctx context.Context, did string) (int, error) {
	var n int
	err := p.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM credentials WHERE did = $1`, did).Scan(&n)
	return n, err
}

// CountAuditEvents returns how many audit rows carry action.
func (p *PostgresContainer) CountAuditEvents(ctx context.Context, action string) (int, error) {
	var n int
	err := p.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM audit_events WHERE action = $1`, action).Scan(&n)
	return n, err
}

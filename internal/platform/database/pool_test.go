package database

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWithoutURLReturnsNilPool(t *testing.T) {
	pool, err := New(context.Background(), Config{})
	require.NoError(t, err)
	assert.Nil(t, pool)
}

func TestNilPoolIsSafe(t *testing.T) {
	var pool *Pool
	assert.ErrorIs(t, pool.Health(context.Background()), errNotConfigured)
	assert.NoError(t, pool.Close())
	assert.NoError(t, pool.RegisterMetrics(prometheus.NewRegistry()))
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig("postgres://localhost/vcregistry")
	assert.Equal(t, "postgres://localhost/vcregistry", cfg.URL)
	assert.True(t, cfg.Migrate)
	assert.Positive(t, cfg.MaxOpenConns)
	assert.Positive(t, cfg.ConnectAttempts)
}

// An unreachable server fails after the configured attempts instead of
// hanging startup.
func TestNewGivesUpOnUnreachableServer(t *testing.T) {
	cfg := DefaultConfig("postgres://vcregistry@127.0.0.1:1/vcregistry?sslmode=disable&connect_timeout=1")
	cfg.ConnectAttempts = 2
	cfg.ConnectBackoff = 10 * time.Millisecond

	pool, err := New(context.Background(), cfg)
	require.Error(t, err)
	assert.Nil(t, pool)
	assert.Contains(t, err.Error(), "after 2 attempts")
}

func TestNewStopsRetryingWhenContextEnds(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	cfg := DefaultConfig("postgres://vcregistry@127.0.0.1:1/vcregistry?sslmode=disable&connect_timeout=1")
	cfg.ConnectBackoff = time.Hour

	_, err := New(ctx, cfg)
	require.Error(t, err)
}

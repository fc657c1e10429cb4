//go:build integration

// Package containers starts the registry's backing services with
// testcontainers. Each service is started once per test binary and shared
// by every suite in it; Ryuk removes the containers when the process exits.
package containers

import (
	"sync"
	"testing"
)

// Manager hands out the shared containers.
type Manager struct {
	postgres lazy[*PostgresContainer]
	kafka    lazy[*KafkaContainer]
	redis    lazy[*RedisContainer]
}

var manager = sync.OnceValue(func() *Manager { return &Manager{} })

func GetManager() *Manager { return manager() }

// GetPostgres returns the migrated registry database.
func (m *Manager) GetPostgres(t *testing.T) *PostgresContainer {
	t.Helper()
	return m.postgres.get(t, NewPostgresContainer)
}

// GetKafka returns the broker carrying the authority topics.
func (m *Manager) GetKafka(t *testing.T) *KafkaContainer {
	t.Helper()
	return m.kafka.get(t, NewKafkaContainer)
}

// GetRedis returns the pending-request store backend.
func (m *Manager) GetRedis(t *testing.T) *RedisContainer {
	t.Helper()
	return m.redis.get(t, NewRedisContainer)
}

// lazy starts a container on first use. A start that fails the test leaves
// the slot empty so a later suite can retry.
type lazy[T any] struct {
	mu  sync.Mutex
	val T
	ok  bool
}

func (l *lazy[T]) get(t *testing.T, start func(*testing.T) T) T {
	t.Helper()
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.ok {
		l.val = start(t)
		l.ok = true
	}
	return l.val
}

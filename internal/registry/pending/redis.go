package pending

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"vcregistry/internal/registry/models"
	"vcregistry/internal/sentinel"
	id "vcregistry/pkg/domain"
)

const (
	keyPrefix = "vcregistry:"

	// DefaultOutcomeTTL bounds how long resolved requests stay queryable.
	DefaultOutcomeTTL = 7 * 24 * time.Hour
)

// The three keys of one request share a hash tag so the scripts below stay
// single-slot on a cluster.
var (
	putScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1], KEYS[2], KEYS[3]) > 0 then
	return 0
end
redis.call('SET', KEYS[1], ARGV[1])
return 1
`)

	takeScript = redis.NewScript(`
local v = redis.call('GET', KEYS[1])
if not v then
	return false
end
redis.call('DEL', KEYS[1])
redis.call('SET', KEYS[2], v)
return v
`)
)

// RedisStore keeps continuations in Redis so they survive restarts and are
// shared by replicas. Pending entries have no expiry: a request that never
// resumes stays pending.
type RedisStore struct {
	client     redis.UniversalClient
	outcomeTTL time.Duration
}

type RedisOption func(*RedisStore)

func WithOutcomeTTL(ttl time.Duration) RedisOption {
	return func(s *RedisStore) {
		if ttl > 0 {
			s.outcomeTTL = ttl
		}
	}
}

func NewRedis(client redis.UniversalClient, opts ...RedisOption) *RedisStore {
	s := &RedisStore{client: client, outcomeTTL: DefaultOutcomeTTL}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func pendingKey(requestID id.RequestID) string   { return requestKey("pending", requestID) }
func resolvingKey(requestID id.RequestID) string { return requestKey("resolving", requestID) }
func outcomeKey(requestID id.RequestID) string   { return requestKey("outcome", requestID) }

func requestKey(state string, requestID id.RequestID) string {
	return keyPrefix + state + ":{" + requestID.String() + "}"
}

func (s *RedisStore) Put(ctx context.Context, req *models.PendingRequest) error {
	payload, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("encode pending request: %w", err)
	}
	keys := []string{pendingKey(req.ID), resolvingKey(req.ID), outcomeKey(req.ID)}
	stored, err := putScript.Run(ctx, s.client, keys, payload).Int()
	if err != nil {
		return fmt.Errorf("store pending request: %w", err)
	}
	if stored == 0 {
		return sentinel.ErrAlreadyExists
	}
	return nil
}

// Take moves the entry from the pending key to the resolving key inside one
// script, so no reader observes the request in neither state.
func (s *RedisStore) Take(ctx context.Context, requestID id.RequestID) (*models.PendingRequest, error) {
	keys := []string{pendingKey(requestID), resolvingKey(requestID)}
	payload, err := takeScript.Run(ctx, s.client, keys).Text()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("take pending request: %w", err)
	}
	return decodePending([]byte(payload))
}

func (s *RedisStore) Withdraw(ctx context.Context, requestID id.RequestID) error {
	n, err := s.client.Del(ctx, pendingKey(requestID)).Result()
	if err != nil {
		return fmt.Errorf("withdraw pending request: %w", err)
	}
	if n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *RedisStore) RecordOutcome(ctx context.Context, outcome models.Outcome) error {
	payload, err := json.Marshal(outcome)
	if err != nil {
		return fmt.Errorf("encode outcome: %w", err)
	}
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, outcomeKey(outcome.RequestID), payload, s.outcomeTTL)
		pipe.Del(ctx, resolvingKey(outcome.RequestID))
		return nil
	})
	if err != nil {
		return fmt.Errorf("record outcome: %w", err)
	}
	return nil
}

// Lookup reads all three states with one MGET so the answer is a consistent
// snapshot.
func (s *RedisStore) Lookup(ctx context.Context, requestID id.RequestID) (*models.RequestStatus, error) {
	vals, err := s.client.MGet(ctx, outcomeKey(requestID), resolvingKey(requestID), pendingKey(requestID)).Result()
	if err != nil {
		return nil, fmt.Errorf("lookup request: %w", err)
	}
	if payload, ok := vals[0].(string); ok {
		var o models.Outcome
		if err := json.Unmarshal([]byte(payload), &o); err != nil {
			return nil, fmt.Errorf("decode outcome: %w", err)
		}
		return &models.RequestStatus{Outcome: &o}, nil
	}
	for i, resolving := range []bool{true, false} {
		payload, ok := vals[i+1].(string)
		if !ok {
			continue
		}
		req, err := decodePending([]byte(payload))
		if err != nil {
			return nil, err
		}
		return &models.RequestStatus{Pending: req, Resolving: resolving}, nil
	}
	return nil, sentinel.ErrNotFound
}

func decodePending(payload []byte) (*models.PendingRequest, error) {
	var req models.PendingRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return nil, fmt.Errorf("decode pending request: %w", err)
	}
	return &req, nil
}

var _ Store = (*RedisStore)(nil)

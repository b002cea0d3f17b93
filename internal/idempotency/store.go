// Package idempotency guards refund submissions against double-execution.
// A key is claimed atomically before the gateway call; a second submission
// with the same key inside the TTL is rejected as a duplicate.
package idempotency

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store claims idempotency keys. Claim returns false when the key is
// already held.
type Store interface {
	Claim(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
}

// RedisStore implements Store on redis SET NX
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore creates a new redis-backed idempotency store
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{
		client: client,
		prefix: "payments:idempotency:",
	}
}

// Claim atomically claims a key for the given TTL
func (s *RedisStore) Claim(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := s.client.SetNX(ctx, s.prefix+key, time.Now().UTC().Format(time.RFC3339), ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to claim idempotency key: %w", err)
	}
	return ok, nil
}

// Release frees a claimed key, used when the guarded call never executed.
func (s *RedisStore) Release(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.prefix+key).Err(); err != nil {
		return fmt.Errorf("failed to release idempotency key: %w", err)
	}
	return nil
}

package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// CounterStore implements repository.CounterStore using Redis.
type CounterStore struct {
	client *redis.Client
}

// NewCounterStore creates a new Redis-backed counter store.
func NewCounterStore(client *redis.Client) *CounterStore {
	return &CounterStore{client: client}
}

// Incr increments key. The expiry is applied with NX in the same transaction,
// so the window is anchored at the first hit and a key never outlives it
// without a TTL.
func (s *CounterStore) Incr(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	var incr *redis.IntCmd
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, key)
		pipe.ExpireNX(ctx, key, ttl)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("redis incr %s: %w", key, err)
	}
	return incr.Val(), nil
}

// SetFlag sets key to "1" with ttl.
func (s *CounterStore) SetFlag(ctx context.Context, key string, ttl time.Duration) error {
	if err := s.client.Set(ctx, key, "1", ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

// Exists reports whether key is present.
func (s *CounterStore) Exists(ctx context.Context, key string) (bool, error) {
	n, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("redis exists %s: %w", key, err)
	}
	return n > 0, nil
}

package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const processedKeyPrefix = "processed:"

// IdempotencyStore implements kafka.IdempotencyStore using SET NX.
type IdempotencyStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewIdempotencyStore creates a store whose claims expire after ttl.
func NewIdempotencyStore(client *redis.Client, ttl time.Duration) *IdempotencyStore {
	return &IdempotencyStore{client: client, ttl: ttl}
}

// Claim records eventID and reports whether it was not seen before.
func (s *IdempotencyStore) Claim(ctx context.Context, eventID string) (bool, error) {
	ok, err := s.client.SetNX(ctx, processedKeyPrefix+eventID, "1", s.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis claim event %s: %w", eventID, err)
	}
	return ok, nil
}

// Release forgets eventID.
func (s *IdempotencyStore) Release(ctx context.Context, eventID string) error {
	if err := s.client.Del(ctx, processedKeyPrefix+eventID).Err(); err != nil {
		return fmt.Errorf("redis release event %s: %w", eventID, err)
	}
	return nil
}

package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	apperrors "github.com/onlydeal/DevHub/pkg/errors"
)

const resetKeyPrefix = "reset:"

// ResetTokenStore implements repository.ResetTokenStore using Redis. Keys
// hold token hashes only.
type ResetTokenStore struct {
	client *redis.Client
}

// NewResetTokenStore creates a new Redis-backed reset token store.
func NewResetTokenStore(client *redis.Client) *ResetTokenStore {
	return &ResetTokenStore{client: client}
}

// Save stores tokenHash -> userID with ttl.
func (s *ResetTokenStore) Save(ctx context.Context, tokenHash, userID string, ttl time.Duration) error {
	if err := s.client.Set(ctx, resetKeyPrefix+tokenHash, userID, ttl).Err(); err != nil {
		return fmt.Errorf("redis set reset token: %w", err)
	}
	return nil
}

// Consume atomically reads and deletes tokenHash with GETDEL.
func (s *ResetTokenStore) Consume(ctx context.Context, tokenHash string) (string, error) {
	userID, err := s.client.GetDel(ctx, resetKeyPrefix+tokenHash).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", apperrors.ErrNotFound
		}
		return "", fmt.Errorf("redis getdel reset token: %w", err)
	}
	return userID, nil
}

// Delete removes tokenHash.
func (s *ResetTokenStore) Delete(ctx context.Context, tokenHash string) error {
	if err := s.client.Del(ctx, resetKeyPrefix+tokenHash).Err(); err != nil {
		return fmt.Errorf("redis del reset token: %w", err)
	}
	return nil
}

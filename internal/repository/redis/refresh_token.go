package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	apperrors "github.com/onlydeal/DevHub/pkg/errors"
)

const refreshKeyPrefix = "refresh:"

// RefreshTokenStore implements repository.RefreshTokenStore using Redis.
type RefreshTokenStore struct {
	client *redis.Client
}

// NewRefreshTokenStore creates a new Redis-backed refresh token store.
func NewRefreshTokenStore(client *redis.Client) *RefreshTokenStore {
	return &RefreshTokenStore{client: client}
}

// Get returns the current refresh token of userID.
func (s *RefreshTokenStore) Get(ctx context.Context, userID string) (string, error) {
	token, err := s.client.Get(ctx, refreshKeyPrefix+userID).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", apperrors.ErrNotFound
		}
		return "", fmt.Errorf("redis get refresh token: %w", err)
	}
	return token, nil
}

// Replace deletes any current token of userID and stores token with ttl.
func (s *RefreshTokenStore) Replace(ctx context.Context, userID, token string, ttl time.Duration) error {
	key := refreshKeyPrefix + userID
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		pipe.Set(ctx, key, token, ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis replace refresh token: %w", err)
	}
	return nil
}

// Delete removes the refresh token of userID.
func (s *RefreshTokenStore) Delete(ctx context.Context, userID string) error {
	if err := s.client.Del(ctx, refreshKeyPrefix+userID).Err(); err != nil {
		return fmt.Errorf("redis del refresh token: %w", err)
	}
	return nil
}

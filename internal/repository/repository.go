package repository

import (
	"context"
	"time"

	"github.com/onlydeal/DevHub/internal/domain"
)

// UserRepository defines the credential store operations.
type UserRepository interface {
	// Create inserts a new user. It returns ErrAlreadyExists for a taken email.
	Create(ctx context.Context, user *domain.User) error

	// GetByID retrieves a user by their unique identifier.
	GetByID(ctx context.Context, id string) (*domain.User, error)

	// GetByEmail retrieves a user by their email address.
	GetByEmail(ctx context.Context, email string) (*domain.User, error)

	// UpdatePassword replaces the stored password hash of a user.
	UpdatePassword(ctx context.Context, id, passwordHash string) error

	// UpdateProfile writes the profile fields of user.
	UpdateProfile(ctx context.Context, user *domain.User) error
}

// RefreshTokenStore holds the single current refresh token of each user.
type RefreshTokenStore interface {
	// Get returns the stored token, or ErrNotFound when none exists.
	Get(ctx context.Context, userID string) (string, error)

	// Replace deletes the current entry and stores token with ttl.
	Replace(ctx context.Context, userID, token string, ttl time.Duration) error

	// Delete removes the entry. Deleting a missing entry is not an error.
	Delete(ctx context.Context, userID string) error
}

// ResetTokenStore maps hashed password-reset tokens to user ids.
type ResetTokenStore interface {
	// Save stores tokenHash -> userID with ttl.
	Save(ctx context.Context, tokenHash, userID string, ttl time.Duration) error

	// Consume returns the user id for tokenHash and removes it in one step.
	// Only one caller can consume a given token. Returns ErrNotFound when
	// absent or expired.
	Consume(ctx context.Context, tokenHash string) (string, error)

	// Delete removes tokenHash.
	Delete(ctx context.Context, tokenHash string) error
}

// CounterStore provides the expiring counters and flags used for abuse
// tracking and rate limiting.
type CounterStore interface {
	// Incr increments key and sets ttl when the increment created it.
	Incr(ctx context.Context, key string, ttl time.Duration) (int64, error)

	// SetFlag sets key with ttl.
	SetFlag(ctx context.Context, key string, ttl time.Duration) error

	// Exists reports whether key is present.
	Exists(ctx context.Context, key string) (bool, error)
}

package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/onlydeal/DevHub/internal/domain"
	"github.com/onlydeal/DevHub/internal/event"
	"github.com/onlydeal/DevHub/internal/repository"
	apperrors "github.com/onlydeal/DevHub/pkg/errors"
)

const resetTokenBytes = 32

// RecoveryConfig holds password recovery settings.
type RecoveryConfig struct {
	ResetURLBase string
	TokenTTL     time.Duration
	BcryptCost   int
	// UniformResponse acknowledges reset requests for unknown emails
	// instead of returning NotFound.
	UniformResponse bool
	// RevokeOnPasswordChange deletes the user's refresh token after a
	// successful reset.
	RevokeOnPasswordChange bool
}

// RecoveryService implements the password reset request and confirmation.
type RecoveryService struct {
	users   repository.UserRepository
	resets  repository.ResetTokenStore
	refresh repository.RefreshTokenStore
	events  EventPublisher
	cfg     RecoveryConfig
	logger  *slog.Logger
	random  io.Reader
}

// NewRecoveryService creates a new recovery service.
func NewRecoveryService(
	users repository.UserRepository,
	resets repository.ResetTokenStore,
	refresh repository.RefreshTokenStore,
	events EventPublisher,
	cfg RecoveryConfig,
	logger *slog.Logger,
) *RecoveryService {
	return &RecoveryService{
		users:   users,
		resets:  resets,
		refresh: refresh,
		events:  events,
		cfg:     cfg,
		logger:  logger,
		random:  rand.Reader,
	}
}

// RequestReset issues a single-use reset token for email and dispatches the
// reset link out of band. Only the token's hash is stored.
func (s *RecoveryService) RequestReset(ctx context.Context, email string) error {
	email = domain.NormalizeEmail(email)
	if email == "" {
		return apperrors.InvalidInput("email is required")
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, apperrors.ErrNotFound) {
			return fmt.Errorf("get user by email: %w", err)
		}
		if s.cfg.UniformResponse {
			s.logger.InfoContext(ctx, "password reset requested for unknown email")
			return nil
		}
		return apperrors.NotFound("user")
	}

	token, err := s.newToken()
	if err != nil {
		return err
	}
	tokenHash := hashToken(token)

	if err := s.resets.Save(ctx, tokenHash, user.ID, s.cfg.TokenTTL); err != nil {
		return apperrors.Infrastructure(err)
	}

	err = s.events.PublishPasswordResetRequested(ctx, event.PasswordResetRequestedData{
		UserID:    user.ID,
		Name:      user.Name,
		Email:     user.Email,
		ResetURL:  strings.TrimRight(s.cfg.ResetURLBase, "/") + "/" + token,
		ExpiresIn: int64(s.cfg.TokenTTL / time.Second),
	})
	if err != nil {
		if delErr := s.resets.Delete(ctx, tokenHash); delErr != nil {
			s.logger.WarnContext(ctx, "failed to discard undelivered reset token",
				slog.String("user_id", user.ID),
				slog.String("error", delErr.Error()),
			)
		}
		return apperrors.Infrastructure(err)
	}

	s.logger.InfoContext(ctx, "password reset requested", slog.String("user_id", user.ID))
	return nil
}

// ConfirmReset exchanges a reset token for a new password. The token is
// consumed before the password changes, so concurrent confirms of the same
// token cannot both succeed.
func (s *RecoveryService) ConfirmReset(ctx context.Context, token, newPassword string) error {
	if token == "" {
		return apperrors.InvalidOrExpired()
	}
	if err := validatePassword(newPassword); err != nil {
		return err
	}
	hash, err := hashPassword(newPassword, s.cfg.BcryptCost)
	if err != nil {
		return err
	}

	userID, err := s.resets.Consume(ctx, hashToken(token))
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return apperrors.InvalidOrExpired()
		}
		return apperrors.Infrastructure(err)
	}

	if err := s.users.UpdatePassword(ctx, userID, hash); err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return apperrors.NotFound("user")
		}
		return fmt.Errorf("update password: %w", err)
	}

	if s.cfg.RevokeOnPasswordChange {
		revokeSession(ctx, s.refresh, userID, s.logger)
	}

	s.logger.InfoContext(ctx, "password reset completed", slog.String("user_id", userID))
	return nil
}

func (s *RecoveryService) newToken() (string, error) {
	buf := make([]byte, resetTokenBytes)
	if _, err := io.ReadFull(s.random, buf); err != nil {
		return "", fmt.Errorf("generate reset token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/onlydeal/DevHub/internal/auth"
	"github.com/onlydeal/DevHub/internal/domain"
	"github.com/onlydeal/DevHub/internal/event"
	"github.com/onlydeal/DevHub/internal/repository"
	apperrors "github.com/onlydeal/DevHub/pkg/errors"
)

// FailureRecorder receives failed login attempts keyed by client IP.
type FailureRecorder interface {
	RecordFailedLogin(ctx context.Context, ip string) bool
}

// EventPublisher publishes auth domain events.
type EventPublisher interface {
	PublishUserRegistered(ctx context.Context, user *domain.User) error
	PublishPasswordResetRequested(ctx context.Context, data event.PasswordResetRequestedData) error
}

// SessionConfig holds session manager settings.
type SessionConfig struct {
	BcryptCost int
	// RevokeOnPasswordChange deletes the user's refresh token after a
	// password change.
	RevokeOnPasswordChange bool
}

// SessionService implements signup, login, refresh, logout and the
// authenticated profile operations.
type SessionService struct {
	users     repository.UserRepository
	refresh   repository.RefreshTokenStore
	codec     *auth.TokenCodec
	failures  FailureRecorder
	events    EventPublisher
	cfg       SessionConfig
	logger    *slog.Logger
	dummyHash []byte
}

// NewSessionService creates a new session service.
func NewSessionService(
	users repository.UserRepository,
	refresh repository.RefreshTokenStore,
	codec *auth.TokenCodec,
	failures FailureRecorder,
	events EventPublisher,
	cfg SessionConfig,
	logger *slog.Logger,
) *SessionService {
	// Compared against when the email is unknown so both failure paths cost
	// one bcrypt comparison.
	dummy, _ := bcrypt.GenerateFromPassword([]byte(uuid.NewString()), cfg.BcryptCost)
	return &SessionService{
		users:     users,
		refresh:   refresh,
		codec:     codec,
		failures:  failures,
		events:    events,
		cfg:       cfg,
		logger:    logger,
		dummyHash: dummy,
	}
}

// --- Input types ---

// SignupInput holds the parameters for creating an account.
type SignupInput struct {
	Name     string
	Email    string
	Password string
}

// LoginInput holds the parameters for a login attempt.
type LoginInput struct {
	Email    string
	Password string
	ClientIP string
}

// UpdateProfileInput holds optional profile fields. Nil fields are unchanged.
type UpdateProfileInput struct {
	Name     *string
	Skills   *string
	Bio      *string
	GitHub   *string
	LinkedIn *string
	Website  *string
}

// --- Session lifecycle ---

// Signup creates an account and opens its first session.
func (s *SessionService) Signup(ctx context.Context, input SignupInput) (*domain.Session, error) {
	if input.Name == "" {
		return nil, apperrors.InvalidInput("name is required")
	}
	email := domain.NormalizeEmail(input.Email)
	if email == "" {
		return nil, apperrors.InvalidInput("email is required")
	}
	if err := validatePassword(input.Password); err != nil {
		return nil, err
	}

	_, err := s.users.GetByEmail(ctx, email)
	switch {
	case err == nil:
		return nil, apperrors.AlreadyExists("user")
	case !errors.Is(err, apperrors.ErrNotFound):
		return nil, fmt.Errorf("check existing user: %w", err)
	}

	hash, err := hashPassword(input.Password, s.cfg.BcryptCost)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	user := &domain.User{
		ID:           uuid.NewString(),
		Name:         input.Name,
		Email:        email,
		PasswordHash: hash,
		Role:         domain.RoleUser,
		Skills:       []string{},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, apperrors.ErrAlreadyExists) {
			return nil, err
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	session, err := s.openSession(ctx, user)
	if err != nil {
		return nil, err
	}

	if err := s.events.PublishUserRegistered(ctx, user); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish user_registered event",
			slog.String("user_id", user.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "user signed up", slog.String("user_id", user.ID))
	return session, nil
}

// Login verifies credentials and opens a new session, replacing any previous
// refresh token. Every failure is reported to the failure recorder.
func (s *SessionService) Login(ctx context.Context, input LoginInput) (*domain.Session, error) {
	email := domain.NormalizeEmail(input.Email)

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, apperrors.ErrNotFound) {
			return nil, fmt.Errorf("get user by email: %w", err)
		}
		if s.dummyHash != nil {
			_ = bcrypt.CompareHashAndPassword(s.dummyHash, []byte(input.Password))
		}
		return nil, s.loginFailed(ctx, input.ClientIP)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(input.Password)); err != nil {
		return nil, s.loginFailed(ctx, input.ClientIP)
	}

	session, err := s.openSession(ctx, user)
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "user logged in", slog.String("user_id", user.ID))
	return session, nil
}

func (s *SessionService) loginFailed(ctx context.Context, ip string) error {
	s.failures.RecordFailedLogin(ctx, ip)
	return apperrors.InvalidCredentials()
}

// Refresh rotates a refresh token. The presented token must verify and equal
// the stored one; the stored entry is replaced by a new token.
func (s *SessionService) Refresh(ctx context.Context, refreshToken string) (*domain.TokenPair, error) {
	if refreshToken == "" {
		return nil, apperrors.NoToken()
	}

	claims, err := s.codec.VerifyRefresh(refreshToken)
	if err != nil {
		return nil, apperrors.InvalidToken()
	}
	userID := claims.Subject

	stored, err := s.refresh.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.InvalidToken()
		}
		return nil, apperrors.Infrastructure(err)
	}
	if subtle.ConstantTimeCompare([]byte(stored), []byte(refreshToken)) != 1 {
		s.logger.WarnContext(ctx, "refresh token mismatch", slog.String("user_id", userID))
		return nil, apperrors.InvalidToken()
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.InvalidToken()
		}
		return nil, fmt.Errorf("get user for refresh: %w", err)
	}

	pair, err := s.issueAndStore(ctx, user)
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "session refreshed", slog.String("user_id", userID))
	return &pair, nil
}

// Logout revokes the refresh token of userID. It always succeeds; cache
// failures are logged.
func (s *SessionService) Logout(ctx context.Context, userID string) {
	if err := s.refresh.Delete(ctx, userID); err != nil {
		s.logger.ErrorContext(ctx, "failed to delete refresh token on logout",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
		return
	}
	s.logger.InfoContext(ctx, "user logged out", slog.String("user_id", userID))
}

// --- Profile ---

// Me returns the public projection of userID.
func (s *SessionService) Me(ctx context.Context, userID string) (*domain.PublicUser, error) {
	user, err := s.getUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	p := user.Public()
	return &p, nil
}

// UpdateProfile applies the non-nil fields of input. Skills are given as a
// comma-separated list.
func (s *SessionService) UpdateProfile(ctx context.Context, userID string, input UpdateProfileInput) (*domain.PublicUser, error) {
	user, err := s.getUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	if input.Name != nil && *input.Name != "" {
		user.Name = *input.Name
	}
	if input.Skills != nil {
		user.Skills = domain.ParseSkills(*input.Skills)
	}
	if input.Bio != nil {
		user.Bio = *input.Bio
	}
	if input.GitHub != nil {
		user.GitHub = *input.GitHub
	}
	if input.LinkedIn != nil {
		user.LinkedIn = *input.LinkedIn
	}
	if input.Website != nil {
		user.Website = *input.Website
	}
	if user.ProfileStep < 1 {
		user.ProfileStep = 1
	}

	if err := s.users.UpdateProfile(ctx, user); err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.NotFound("user")
		}
		return nil, fmt.Errorf("update profile: %w", err)
	}

	s.logger.InfoContext(ctx, "profile updated", slog.String("user_id", userID))
	p := user.Public()
	return &p, nil
}

// ChangePassword replaces the password of an authenticated user after
// verifying the current one.
func (s *SessionService) ChangePassword(ctx context.Context, userID, currentPassword, newPassword string) error {
	if err := validatePassword(newPassword); err != nil {
		return err
	}

	user, err := s.getUser(ctx, userID)
	if err != nil {
		return err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(currentPassword)); err != nil {
		return apperrors.InvalidCredentials()
	}

	hash, err := hashPassword(newPassword, s.cfg.BcryptCost)
	if err != nil {
		return err
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

	s.logger.InfoContext(ctx, "password changed", slog.String("user_id", userID))
	return nil
}

// --- Helpers ---

func (s *SessionService) getUser(ctx context.Context, userID string) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.NotFound("user")
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return user, nil
}

func (s *SessionService) openSession(ctx context.Context, user *domain.User) (*domain.Session, error) {
	pair, err := s.issueAndStore(ctx, user)
	if err != nil {
		return nil, err
	}
	return &domain.Session{Tokens: pair, User: user.Public()}, nil
}

// issueAndStore issues a fresh pair and makes its refresh token the user's
// only valid one.
func (s *SessionService) issueAndStore(ctx context.Context, user *domain.User) (domain.TokenPair, error) {
	pair, err := s.codec.IssuePair(user.ID, user.Role)
	if err != nil {
		return domain.TokenPair{}, fmt.Errorf("issue tokens: %w", err)
	}
	if err := s.refresh.Replace(ctx, user.ID, pair.RefreshToken, s.codec.RefreshTTL()); err != nil {
		return domain.TokenPair{}, apperrors.Infrastructure(err)
	}
	return pair, nil
}

func revokeSession(ctx context.Context, store repository.RefreshTokenStore, userID string, logger *slog.Logger) {
	if err := store.Delete(ctx, userID); err != nil {
		logger.ErrorContext(ctx, "failed to revoke refresh token after password change",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
	}
}

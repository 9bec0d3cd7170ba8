package service

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/onlydeal/DevHub/internal/auth"
	"github.com/onlydeal/DevHub/internal/domain"
	"github.com/onlydeal/DevHub/internal/event"
	redisrepo "github.com/onlydeal/DevHub/internal/repository/redis"
)

// --- Mock User Repository ---

type mockUserRepository struct {
	mock.Mock
}

func (m *mockUserRepository) Create(ctx context.Context, user *domain.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *mockUserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *mockUserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *mockUserRepository) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	args := m.Called(ctx, id, passwordHash)
	return args.Error(0)
}

func (m *mockUserRepository) UpdateProfile(ctx context.Context, user *domain.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

// --- Mock Failure Recorder ---

type mockFailureRecorder struct {
	mock.Mock
}

func (m *mockFailureRecorder) RecordFailedLogin(ctx context.Context, ip string) bool {
	args := m.Called(ctx, ip)
	return args.Bool(0)
}

// --- Mock Event Publisher ---

type mockEventPublisher struct {
	mock.Mock
}

func (m *mockEventPublisher) PublishUserRegistered(ctx context.Context, user *domain.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *mockEventPublisher) PublishPasswordResetRequested(ctx context.Context, data event.PasswordResetRequestedData) error {
	args := m.Called(ctx, data)
	return args.Error(0)
}

// --- Fixtures ---

const testPassword = "correct-horse-battery"

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestCodec() *auth.TokenCodec {
	return auth.NewTokenCodec(auth.CodecConfig{
		AccessSecret:  strings.Repeat("a", 32),
		RefreshSecret: strings.Repeat("r", 32),
		AccessTTL:     15 * time.Minute,
		RefreshTTL:    7 * 24 * time.Hour,
	})
}

func setupRedis(t *testing.T) (*goredis.Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return client, mr
}

func existingUser(t *testing.T) *domain.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(testPassword), bcrypt.MinCost)
	require.NoError(t, err)
	now := time.Now().UTC()
	return &domain.User{
		ID:           "6f1d0c7e-2b7a-4f0a-8d53-0c2b9f6a1e11",
		Name:         "Ada",
		Email:        "ada@devhub.io",
		PasswordHash: string(hash),
		Role:         domain.RoleUser,
		Skills:       []string{},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

type sessionFixture struct {
	svc      *SessionService
	users    *mockUserRepository
	failures *mockFailureRecorder
	events   *mockEventPublisher
	refresh  *redisrepo.RefreshTokenStore
	codec    *auth.TokenCodec
	mr       *miniredis.Miniredis
}

func newSessionFixture(t *testing.T, revoke bool) *sessionFixture {
	t.Helper()
	client, mr := setupRedis(t)
	f := &sessionFixture{
		users:    new(mockUserRepository),
		failures: new(mockFailureRecorder),
		events:   new(mockEventPublisher),
		refresh:  redisrepo.NewRefreshTokenStore(client),
		codec:    newTestCodec(),
		mr:       mr,
	}
	f.svc = NewSessionService(f.users, f.refresh, f.codec, f.failures, f.events,
		SessionConfig{BcryptCost: bcrypt.MinCost, RevokeOnPasswordChange: revoke},
		discardLogger(),
	)
	return f
}

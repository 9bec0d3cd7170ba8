package postgres

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/onlydeal/DevHub/internal/domain"
	apperrors "github.com/onlydeal/DevHub/pkg/errors"
)

func newUserTestFixture(t *testing.T) (*UserRepository, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return NewUserRepository(mock), mock
}

func sampleUser() *domain.User {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &domain.User{
		ID:           "0b8f5f0e-7c43-4d0e-9a51-3c2f4bb2a001",
		Name:         "Ada Lovelace",
		Email:        "ada@devhub.io",
		PasswordHash: "$2a$12$hash",
		Role:         domain.RoleUser,
		Skills:       []string{"go", "postgres"},
		Bio:          "engine enthusiast",
		GitHub:       "https://github.com/ada",
		ProfileStep:  1,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func userColumnNames() []string {
	return []string{
		"id", "name", "email", "password_hash", "role", "skills", "bio",
		"github", "linkedin", "website", "profile_step", "created_at", "updated_at",
	}
}

func userRow(u *domain.User) *pgxmock.Rows {
	return pgxmock.NewRows(userColumnNames()).AddRow(
		u.ID, u.Name, u.Email, u.PasswordHash, u.Role, u.Skills, u.Bio,
		u.GitHub, u.LinkedIn, u.Website, u.ProfileStep, u.CreatedAt, u.UpdatedAt,
	)
}

func anyArgs(n int) []any {
	args := make([]any, n)
	for i := range args {
		args[i] = pgxmock.AnyArg()
	}
	return args
}

// ---------------------------------------------------------------------------
// Create
// ---------------------------------------------------------------------------

func TestUserRepository_Create_Success(t *testing.T) {
	repo, mock := newUserTestFixture(t)
	u := sampleUser()

	mock.ExpectExec("INSERT INTO users").
		WithArgs(
			u.ID, u.Name, u.Email, u.PasswordHash, u.Role, u.Skills, u.Bio,
			u.GitHub, u.LinkedIn, u.Website, u.ProfileStep, u.CreatedAt, u.UpdatedAt,
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := repo.Create(context.Background(), u)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_Create_NilSkillsStoredAsEmpty(t *testing.T) {
	repo, mock := newUserTestFixture(t)
	u := sampleUser()
	u.Skills = nil

	mock.ExpectExec("INSERT INTO users").
		WithArgs(
			u.ID, u.Name, u.Email, u.PasswordHash, u.Role, []string{}, u.Bio,
			u.GitHub, u.LinkedIn, u.Website, u.ProfileStep, u.CreatedAt, u.UpdatedAt,
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, repo.Create(context.Background(), u))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_Create_DuplicateEmail(t *testing.T) {
	repo, mock := newUserTestFixture(t)
	u := sampleUser()

	mock.ExpectExec("INSERT INTO users").
		WithArgs(anyArgs(13)...).
		WillReturnError(&pgconn.PgError{Code: "23505", Message: "duplicate key value violates unique constraint"})

	err := repo.Create(context.Background(), u)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrAlreadyExists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_Create_DBError(t *testing.T) {
	repo, mock := newUserTestFixture(t)

	mock.ExpectExec("INSERT INTO users").
		WithArgs(anyArgs(13)...).
		WillReturnError(fmt.Errorf("connection refused"))

	err := repo.Create(context.Background(), sampleUser())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insert user")
	assert.False(t, errors.Is(err, apperrors.ErrAlreadyExists))
}

// ---------------------------------------------------------------------------
// GetByID / GetByEmail
// ---------------------------------------------------------------------------

func TestUserRepository_GetByID_Success(t *testing.T) {
	repo, mock := newUserTestFixture(t)
	u := sampleUser()

	mock.ExpectQuery("SELECT .+ FROM users WHERE id =").
		WithArgs(u.ID).
		WillReturnRows(userRow(u))

	got, err := repo.GetByID(context.Background(), u.ID)
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)
	assert.Equal(t, u.Email, got.Email)
	assert.Equal(t, u.PasswordHash, got.PasswordHash)
	assert.Equal(t, u.Skills, got.Skills)
	assert.Equal(t, u.ProfileStep, got.ProfileStep)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_GetByID_NotFound(t *testing.T) {
	repo, mock := newUserTestFixture(t)

	mock.ExpectQuery("SELECT .+ FROM users WHERE id =").
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	got, err := repo.GetByID(context.Background(), "missing")
	assert.Nil(t, got)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_GetByEmail_Success(t *testing.T) {
	repo, mock := newUserTestFixture(t)
	u := sampleUser()

	mock.ExpectQuery("SELECT .+ FROM users WHERE email =").
		WithArgs(u.Email).
		WillReturnRows(userRow(u))

	got, err := repo.GetByEmail(context.Background(), u.Email)
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_GetByEmail_DBError(t *testing.T) {
	repo, mock := newUserTestFixture(t)

	mock.ExpectQuery("SELECT .+ FROM users WHERE email =").
		WithArgs("ada@devhub.io").
		WillReturnError(fmt.Errorf("timeout"))

	_, err := repo.GetByEmail(context.Background(), "ada@devhub.io")
	require.Error(t, err)
	assert.False(t, errors.Is(err, apperrors.ErrNotFound))
	assert.Contains(t, err.Error(), "scan user")
}

// ---------------------------------------------------------------------------
// UpdatePassword
// ---------------------------------------------------------------------------

func TestUserRepository_UpdatePassword_Success(t *testing.T) {
	repo, mock := newUserTestFixture(t)

	mock.ExpectExec("UPDATE users SET password_hash").
		WithArgs("new-hash", pgxmock.AnyArg(), "u-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, repo.UpdatePassword(context.Background(), "u-1", "new-hash"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_UpdatePassword_NotFound(t *testing.T) {
	repo, mock := newUserTestFixture(t)

	mock.ExpectExec("UPDATE users SET password_hash").
		WithArgs("new-hash", pgxmock.AnyArg(), "gone").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := repo.UpdatePassword(context.Background(), "gone", "new-hash")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

// ---------------------------------------------------------------------------
// UpdateProfile
// ---------------------------------------------------------------------------

func TestUserRepository_UpdateProfile_Success(t *testing.T) {
	repo, mock := newUserTestFixture(t)
	u := sampleUser()
	u.Skills = []string{"go", "rust"}

	mock.ExpectExec("UPDATE users\\s+SET name").
		WithArgs(u.Name, u.Skills, u.Bio, u.GitHub, u.LinkedIn, u.Website, u.ProfileStep, pgxmock.AnyArg(), u.ID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, repo.UpdateProfile(context.Background(), u))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_UpdateProfile_NotFound(t *testing.T) {
	repo, mock := newUserTestFixture(t)

	mock.ExpectExec("UPDATE users\\s+SET name").
		WithArgs(anyArgs(9)...).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := repo.UpdateProfile(context.Background(), sampleUser())
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestIsUniqueViolation(t *testing.T) {
	assert.True(t, isUniqueViolation(&pgconn.PgError{Code: "23505"}))
	assert.True(t, isUniqueViolation(fmt.Errorf("wrapped: %w", &pgconn.PgError{Code: "23505"})))
	assert.True(t, isUniqueViolation(fmt.Errorf("ERROR: duplicate key (SQLSTATE 23505)")))
	assert.False(t, isUniqueViolation(&pgconn.PgError{Code: "23503"}))
	assert.False(t, isUniqueViolation(nil))
}

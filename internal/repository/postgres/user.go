package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/onlydeal/DevHub/internal/domain"
	"github.com/onlydeal/DevHub/pkg/database"
	apperrors "github.com/onlydeal/DevHub/pkg/errors"
)

const userColumns = `id, name, email, password_hash, role, skills, bio, github, linkedin, website, profile_step, created_at, updated_at`

// UserRepository implements repository.UserRepository using PostgreSQL.
type UserRepository struct {
	db database.DBTX
}

// NewUserRepository creates a new PostgreSQL-backed user repository.
func NewUserRepository(db database.DBTX) *UserRepository {
	return &UserRepository{db: db}
}

// Create inserts a new user into the database.
func (r *UserRepository) Create(ctx context.Context, u *domain.User) (err error) {
	query := `
		INSERT INTO users (` + userColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	ctx, end := database.TraceQuery(ctx, "CreateUser", query)
	defer func() { end(err) }()

	if u.Skills == nil {
		u.Skills = []string{}
	}

	_, err = r.db.Exec(ctx, query,
		u.ID,
		u.Name,
		u.Email,
		u.PasswordHash,
		u.Role,
		u.Skills,
		u.Bio,
		u.GitHub,
		u.LinkedIn,
		u.Website,
		u.ProfileStep,
		u.CreatedAt,
		u.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.AlreadyExists("user")
		}
		return fmt.Errorf("insert user: %w", err)
	}

	return nil
}

// GetByID retrieves a user by their ID.
func (r *UserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return r.scanUser(ctx, "GetUserByID", query, id)
}

// GetByEmail retrieves a user by their email address.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	return r.scanUser(ctx, "GetUserByEmail", query, email)
}

// UpdatePassword replaces a user's password hash.
func (r *UserRepository) UpdatePassword(ctx context.Context, id, passwordHash string) (err error) {
	query := `UPDATE users SET password_hash = $1, updated_at = $2 WHERE id = $3`

	ctx, end := database.TraceQuery(ctx, "UpdateUserPassword", query)
	defer func() { end(err) }()

	ct, err := r.db.Exec(ctx, query, passwordHash, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("user")
	}
	return nil
}

// UpdateProfile writes the profile fields of u.
func (r *UserRepository) UpdateProfile(ctx context.Context, u *domain.User) (err error) {
	u.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE users
		SET name = $1, skills = $2, bio = $3, github = $4, linkedin = $5, website = $6,
		    profile_step = $7, updated_at = $8
		WHERE id = $9`

	ctx, end := database.TraceQuery(ctx, "UpdateUserProfile", query)
	defer func() { end(err) }()

	if u.Skills == nil {
		u.Skills = []string{}
	}

	ct, err := r.db.Exec(ctx, query,
		u.Name,
		u.Skills,
		u.Bio,
		u.GitHub,
		u.LinkedIn,
		u.Website,
		u.ProfileStep,
		u.UpdatedAt,
		u.ID,
	)
	if err != nil {
		return fmt.Errorf("update profile: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("user")
	}
	return nil
}

func (r *UserRepository) scanUser(ctx context.Context, op, query string, args ...any) (_ *domain.User, err error) {
	ctx, end := database.TraceQuery(ctx, op, query)
	defer func() {
		if errors.Is(err, apperrors.ErrNotFound) {
			end(nil)
			return
		}
		end(err)
	}()

	var u domain.User
	err = r.db.QueryRow(ctx, query, args...).Scan(
		&u.ID,
		&u.Name,
		&u.Email,
		&u.PasswordHash,
		&u.Role,
		&u.Skills,
		&u.Bio,
		&u.GitHub,
		&u.LinkedIn,
		&u.Website,
		&u.ProfileStep,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}

	return &u, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return err != nil && strings.Contains(err.Error(), "23505")
}

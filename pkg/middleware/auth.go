package middleware

import (
	"context"
	"net/http"
	"strings"

	apperrors "github.com/onlydeal/DevHub/pkg/errors"
	"github.com/onlydeal/DevHub/pkg/httputil"
	"github.com/onlydeal/DevHub/pkg/logger"
)

type contextKeyType string

const (
	userIDKey contextKeyType = "user_id"
	roleKey   contextKeyType = "role"
)

// Claims is the identity extracted from a verified access token.
type Claims struct {
	UserID string
	Role   string
}

// TokenValidator verifies a bearer token and returns its claims.
type TokenValidator func(token string) (*Claims, error)

// Auth requires a valid "Authorization: Bearer <token>" header and puts the
// caller's id and role into the request context.
func Auth(validate TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok {
				httputil.WriteError(w, r, apperrors.NoToken(), nil)
				return
			}

			claims, err := validate(token)
			if err != nil {
				httputil.WriteError(w, r, apperrors.InvalidToken(), nil)
				return
			}

			ctx := WithClaims(r.Context(), claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// OptionalAuth behaves like Auth when a bearer token is present and valid, and
// passes the request through anonymously otherwise.
func OptionalAuth(validate TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token, ok := bearerToken(r); ok {
				if claims, err := validate(token); err == nil {
					r = r.WithContext(WithClaims(r.Context(), claims))
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "bearer") || strings.TrimSpace(token) == "" {
		return "", false
	}
	return strings.TrimSpace(token), true
}

// WithClaims stores claims in ctx for handlers and request logging.
func WithClaims(ctx context.Context, c *Claims) context.Context {
	ctx = context.WithValue(ctx, userIDKey, c.UserID)
	ctx = context.WithValue(ctx, roleKey, c.Role)
	return logger.WithUserID(ctx, c.UserID)
}

// RequireRole rejects callers whose role is not in roles.
func RequireRole(roles ...string) func(http.Handler) http.Handler {
	allowed := make(map[string]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := allowed[RoleFromContext(r.Context())]; !ok {
				httputil.WriteError(w, r, apperrors.Forbidden("insufficient permissions"), nil)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// UserIDFromContext returns the authenticated user id, or "".
func UserIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(userIDKey).(string); ok {
		return id
	}
	return ""
}

// RoleFromContext returns the authenticated role, or "".
func RoleFromContext(ctx context.Context) string {
	if role, ok := ctx.Value(roleKey).(string); ok {
		return role
	}
	return ""
}

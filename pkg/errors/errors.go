package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors. Every AppError wraps exactly one of these so callers can
// branch with errors.Is without inspecting codes.
var (
	ErrNotFound           = errors.New("resource not found")
	ErrAlreadyExists      = errors.New("resource already exists")
	ErrInvalidInput       = errors.New("invalid input")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrNoToken            = errors.New("no token")
	ErrInvalidToken       = errors.New("invalid token")
	ErrInvalidOrExpired   = errors.New("invalid or expired token")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrForbidden          = errors.New("forbidden")
	ErrBlocked            = errors.New("client blocked")
	ErrRateLimited        = errors.New("rate limited")
	ErrInfrastructure     = errors.New("infrastructure unavailable")
	ErrInternal           = errors.New("internal error")
)

// AppError is a user-facing error carrying a stable machine code and the HTTP
// status it maps to.
type AppError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"-"`
	Err     error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// NotFound creates a 404 error.
func NotFound(resource string) *AppError {
	return &AppError{
		Code:    "NOT_FOUND",
		Message: fmt.Sprintf("%s not found", resource),
		Status:  http.StatusNotFound,
		Err:     ErrNotFound,
	}
}

// AlreadyExists creates a 400 error for a duplicate unique field.
func AlreadyExists(resource string) *AppError {
	return &AppError{
		Code:    "ALREADY_EXISTS",
		Message: fmt.Sprintf("%s already exists", resource),
		Status:  http.StatusBadRequest,
		Err:     ErrAlreadyExists,
	}
}

// InvalidInput creates a 400 error.
func InvalidInput(message string) *AppError {
	return &AppError{
		Code:    "INVALID_INPUT",
		Message: message,
		Status:  http.StatusBadRequest,
		Err:     ErrInvalidInput,
	}
}

// InvalidCredentials creates a 401 error. The message never reveals whether the
// email or the password was wrong.
func InvalidCredentials() *AppError {
	return &AppError{
		Code:    "INVALID_CREDENTIALS",
		Message: "invalid email or password",
		Status:  http.StatusUnauthorized,
		Err:     ErrInvalidCredentials,
	}
}

// NoToken creates a 401 error for a missing token.
func NoToken() *AppError {
	return &AppError{
		Code:    "NO_TOKEN",
		Message: "no token provided",
		Status:  http.StatusUnauthorized,
		Err:     ErrNoToken,
	}
}

// InvalidToken creates a 401 error for a token that failed verification or was revoked.
func InvalidToken() *AppError {
	return &AppError{
		Code:    "INVALID_TOKEN",
		Message: "invalid token",
		Status:  http.StatusUnauthorized,
		Err:     ErrInvalidToken,
	}
}

// InvalidOrExpired creates a 400 error for a reset token that is unknown, used, or stale.
func InvalidOrExpired() *AppError {
	return &AppError{
		Code:    "INVALID_OR_EXPIRED",
		Message: "token is invalid or has expired",
		Status:  http.StatusBadRequest,
		Err:     ErrInvalidOrExpired,
	}
}

// Unauthorized creates a 401 error.
func Unauthorized(message string) *AppError {
	return &AppError{
		Code:    "UNAUTHORIZED",
		Message: message,
		Status:  http.StatusUnauthorized,
		Err:     ErrUnauthorized,
	}
}

// Forbidden creates a 403 error.
func Forbidden(message string) *AppError {
	return &AppError{
		Code:    "FORBIDDEN",
		Message: message,
		Status:  http.StatusForbidden,
		Err:     ErrForbidden,
	}
}

// Blocked creates a 403 error for a client under an IP block.
func Blocked() *AppError {
	return &AppError{
		Code:    "BLOCKED",
		Message: "access denied",
		Status:  http.StatusForbidden,
		Err:     ErrBlocked,
	}
}

// RateLimited creates a 429 error.
func RateLimited(message string) *AppError {
	return &AppError{
		Code:    "RATE_LIMITED",
		Message: message,
		Status:  http.StatusTooManyRequests,
		Err:     ErrRateLimited,
	}
}

// Infrastructure creates a 500 error for a backing store that could not be reached.
func Infrastructure(err error) *AppError {
	return &AppError{
		Code:    "INFRASTRUCTURE_ERROR",
		Message: "a backing service is unavailable",
		Status:  http.StatusInternalServerError,
		Err:     errors.Join(ErrInfrastructure, err),
	}
}

// Internal creates a 500 error.
func Internal(err error) *AppError {
	return &AppError{
		Code:    "INTERNAL_ERROR",
		Message: "an internal error occurred",
		Status:  http.StatusInternalServerError,
		Err:     err,
	}
}

// Wrap wraps an error with additional context.
func Wrap(err error, message string) error {
	return fmt.Errorf("%s: %w", message, err)
}

// HTTPStatus returns the HTTP status code for the given error.
func HTTPStatus(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Status
	}

	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrAlreadyExists), errors.Is(err, ErrInvalidInput), errors.Is(err, ErrInvalidOrExpired):
		return http.StatusBadRequest
	case errors.Is(err, ErrInvalidCredentials), errors.Is(err, ErrNoToken),
		errors.Is(err, ErrInvalidToken), errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, ErrForbidden), errors.Is(err, ErrBlocked):
		return http.StatusForbidden
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

package http

import (
	"log/slog"
	"net/http"

	"github.com/onlydeal/DevHub/internal/auth"
	"github.com/onlydeal/DevHub/internal/domain"
	"github.com/onlydeal/DevHub/internal/service"
	apperrors "github.com/onlydeal/DevHub/pkg/errors"
	"github.com/onlydeal/DevHub/pkg/httputil"
	pkgmw "github.com/onlydeal/DevHub/pkg/middleware"
	"github.com/onlydeal/DevHub/pkg/validator"
)

// AuthHandler handles HTTP requests for the /api/auth endpoints.
type AuthHandler struct {
	sessions *service.SessionService
	recovery *service.RecoveryService
	cookies  *auth.CookieManager
	logger   *slog.Logger
}

// NewAuthHandler creates a new auth HTTP handler.
func NewAuthHandler(sessions *service.SessionService, recovery *service.RecoveryService, cookies *auth.CookieManager, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{sessions: sessions, recovery: recovery, cookies: cookies, logger: logger}
}

// --- Request DTOs ---

// SignupRequest is the JSON request body for account creation.
type SignupRequest struct {
	Name     string `json:"name" validate:"required,min=1,max=100"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

// LoginRequest is the JSON request body for login.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// RequestResetRequest is the JSON request body for a password reset request.
type RequestResetRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// ConfirmResetRequest is the JSON request body for completing a password reset.
type ConfirmResetRequest struct {
	Token    string `json:"token" validate:"required,hexadecimal"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

// ChangePasswordRequest is the JSON request body for an authenticated password change.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required,min=8,max=72"`
}

// UpdateProfileRequest is the JSON request body for profile updates.
type UpdateProfileRequest struct {
	Name     *string `json:"name" validate:"omitempty,min=1,max=100"`
	Skills   *string `json:"skills" validate:"omitempty,max=500"`
	Bio      *string `json:"bio" validate:"omitempty,max=1000"`
	GitHub   *string `json:"github" validate:"omitempty,url"`
	LinkedIn *string `json:"linkedin" validate:"omitempty,url"`
	Website  *string `json:"website" validate:"omitempty,url"`
}

// --- Response types ---

// SessionResponse is returned by signup and login. The refresh token travels
// only in the cookie.
type SessionResponse struct {
	AccessToken string            `json:"access_token"`
	User        domain.PublicUser `json:"user"`
}

// TokenResponse is returned by refresh.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
}

// MessageResponse is a plain acknowledgement.
type MessageResponse struct {
	Message string `json:"message"`
}

// --- Handlers ---

// Signup handles POST /api/auth/signup
func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req SignupRequest
	if err := validator.DecodeJSON(w, r, &req); err != nil {
		httputil.WriteValidationError(w, r, err)
		return
	}

	session, err := h.sessions.Signup(r.Context(), service.SignupInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	h.writeSession(w, session)
}

// Login handles POST /api/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := validator.DecodeJSON(w, r, &req); err != nil {
		httputil.WriteValidationError(w, r, err)
		return
	}

	session, err := h.sessions.Login(r.Context(), service.LoginInput{
		Email:    req.Email,
		Password: req.Password,
		ClientIP: pkgmw.ClientIPFromRequest(r),
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	h.writeSession(w, session)
}

// Refresh handles POST /api/auth/refresh
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	pair, err := h.sessions.Refresh(r.Context(), auth.RefreshFromRequest(r))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	h.cookies.SetRefresh(w, pair.RefreshToken)
	httputil.WriteData(w, http.StatusOK, TokenResponse{AccessToken: pair.AccessToken})
}

// Logout handles POST /api/auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	h.sessions.Logout(r.Context(), pkgmw.UserIDFromContext(r.Context()))
	h.cookies.ClearRefresh(w)
	httputil.WriteData(w, http.StatusOK, MessageResponse{Message: "logged out"})
}

// RequestReset handles POST /api/auth/reset
func (h *AuthHandler) RequestReset(w http.ResponseWriter, r *http.Request) {
	var req RequestResetRequest
	if err := validator.DecodeJSON(w, r, &req); err != nil {
		httputil.WriteValidationError(w, r, err)
		return
	}

	if err := h.recovery.RequestReset(r.Context(), req.Email); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusOK, MessageResponse{Message: "password reset link sent"})
}

// ConfirmReset handles POST /api/auth/reset/confirm
func (h *AuthHandler) ConfirmReset(w http.ResponseWriter, r *http.Request) {
	var req ConfirmResetRequest
	if err := validator.DecodeJSON(w, r, &req); err != nil {
		httputil.WriteValidationError(w, r, err)
		return
	}

	if err := h.recovery.ConfirmReset(r.Context(), req.Token, req.Password); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusOK, MessageResponse{Message: "password has been reset"})
}

// ChangePassword handles POST /api/auth/update-password
func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	userID := pkgmw.UserIDFromContext(r.Context())
	if userID == "" {
		httputil.WriteError(w, r, apperrors.NoToken(), h.logger)
		return
	}

	var req ChangePasswordRequest
	if err := validator.DecodeJSON(w, r, &req); err != nil {
		httputil.WriteValidationError(w, r, err)
		return
	}

	if err := h.sessions.ChangePassword(r.Context(), userID, req.CurrentPassword, req.NewPassword); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusOK, MessageResponse{Message: "password updated"})
}

// UpdateProfile handles PUT /api/auth/profile
func (h *AuthHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	userID := pkgmw.UserIDFromContext(r.Context())
	if userID == "" {
		httputil.WriteError(w, r, apperrors.NoToken(), h.logger)
		return
	}

	var req UpdateProfileRequest
	if err := validator.DecodeJSON(w, r, &req); err != nil {
		httputil.WriteValidationError(w, r, err)
		return
	}

	user, err := h.sessions.UpdateProfile(r.Context(), userID, service.UpdateProfileInput{
		Name:     req.Name,
		Skills:   req.Skills,
		Bio:      req.Bio,
		GitHub:   req.GitHub,
		LinkedIn: req.LinkedIn,
		Website:  req.Website,
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusOK, user)
}

func (h *AuthHandler) writeSession(w http.ResponseWriter, session *domain.Session) {
	h.cookies.SetRefresh(w, session.Tokens.RefreshToken)
	httputil.WriteData(w, http.StatusOK, SessionResponse{
		AccessToken: session.Tokens.AccessToken,
		User:        session.User,
	})
}

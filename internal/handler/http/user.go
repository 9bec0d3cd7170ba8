package http

import (
	"log/slog"
	"net/http"

	"github.com/onlydeal/DevHub/internal/service"
	apperrors "github.com/onlydeal/DevHub/pkg/errors"
	"github.com/onlydeal/DevHub/pkg/httputil"
	pkgmw "github.com/onlydeal/DevHub/pkg/middleware"
)

// UserHandler handles HTTP requests for the /api/users endpoints.
type UserHandler struct {
	sessions *service.SessionService
	logger   *slog.Logger
}

// NewUserHandler creates a new user HTTP handler.
func NewUserHandler(sessions *service.SessionService, logger *slog.Logger) *UserHandler {
	return &UserHandler{sessions: sessions, logger: logger}
}

// Me handles GET /api/users/me
func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	userID := pkgmw.UserIDFromContext(r.Context())
	if userID == "" {
		httputil.WriteError(w, r, apperrors.NoToken(), h.logger)
		return
	}

	user, err := h.sessions.Me(r.Context(), userID)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusOK, user)
}

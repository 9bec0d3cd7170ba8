package auth

import (
	"net/http"
	"time"
)

// RefreshCookieName is the name of the cookie carrying the refresh token.
const RefreshCookieName = "refreshToken"

// RefreshCookiePath scopes the refresh cookie to the auth endpoints.
const RefreshCookiePath = "/api/auth"

// CookieManager writes and clears the refresh-token cookie.
type CookieManager struct {
	secure bool
	maxAge time.Duration
}

// NewCookieManager creates a cookie manager. secure should be true in production.
func NewCookieManager(secure bool, maxAge time.Duration) *CookieManager {
	return &CookieManager{secure: secure, maxAge: maxAge}
}

// SetRefresh sets the refresh cookie on w.
func (m *CookieManager) SetRefresh(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     RefreshCookieName,
		Value:    token,
		Path:     RefreshCookiePath,
		MaxAge:   int(m.maxAge.Seconds()),
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteStrictMode,
	})
}

// ClearRefresh expires the refresh cookie.
func (m *CookieManager) ClearRefresh(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     RefreshCookieName,
		Value:    "",
		Path:     RefreshCookiePath,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteStrictMode,
	})
}

// RefreshFromRequest returns the refresh cookie value, or "" when absent.
func RefreshFromRequest(r *http.Request) string {
	c, err := r.Cookie(RefreshCookieName)
	if err != nil {
		return ""
	}
	return c.Value
}

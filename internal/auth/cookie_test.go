package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCookieManager_SetRefresh(t *testing.T) {
	m := NewCookieManager(true, 7*24*time.Hour)
	rec := httptest.NewRecorder()

	m.SetRefresh(rec, "tok")

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	c := cookies[0]
	assert.Equal(t, RefreshCookieName, c.Name)
	assert.Equal(t, "tok", c.Value)
	assert.Equal(t, "/api/auth", c.Path)
	assert.Equal(t, 7*24*60*60, c.MaxAge)
	assert.True(t, c.HttpOnly)
	assert.True(t, c.Secure)
	assert.Equal(t, http.SameSiteStrictMode, c.SameSite)
}

func TestCookieManager_ClearRefresh(t *testing.T) {
	m := NewCookieManager(false, 7*24*time.Hour)
	rec := httptest.NewRecorder()

	m.ClearRefresh(rec)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, RefreshCookieName, cookies[0].Name)
	assert.Empty(t, cookies[0].Value)
	assert.Less(t, cookies[0].MaxAge, 0)
	assert.False(t, cookies[0].Secure)
}

func TestRefreshFromRequest(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/auth/refresh", nil)
	assert.Empty(t, RefreshFromRequest(req))

	req.AddCookie(&http.Cookie{Name: RefreshCookieName, Value: "tok"})
	assert.Equal(t, "tok", RefreshFromRequest(req))
}

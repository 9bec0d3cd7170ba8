package middleware

import (
	"net"
	"net/http"
	"strings"

	"github.com/onlydeal/DevHub/pkg/logger"
)

// ClientIP resolves the caller's address once per request and stores it in the
// context (see logger.ClientIPFromContext). Forwarding headers are honoured
// only when trustProxy is set, since any client can forge them.
func ClientIP(trustProxy bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := ResolveClientIP(r, trustProxy)
			next.ServeHTTP(w, r.WithContext(logger.WithClientIP(r.Context(), ip)))
		})
	}
}

// ResolveClientIP returns the left-most X-Forwarded-For entry, then X-Real-IP
// (both only when trustProxy), then the host part of RemoteAddr.
func ResolveClientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			if first := strings.TrimSpace(strings.Split(xff, ",")[0]); first != "" {
				return first
			}
		}
		if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
			return xri
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// ClientIPFromRequest returns the IP stored by ClientIP, falling back to RemoteAddr.
func ClientIPFromRequest(r *http.Request) string {
	if ip := logger.ClientIPFromContext(r.Context()); ip != "" {
		return ip
	}
	return ResolveClientIP(r, false)
}

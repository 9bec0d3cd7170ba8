package middleware

import (
	"log/slog"
	"net/http"

	"github.com/onlydeal/DevHub/pkg/logger"
)

// RequestLogger stores a logger enriched with the request's correlation id,
// client ip, user id and trace ids in the context (logger.FromContext).
// Mount it after RequestLogging, ClientIP and Tracing; routes behind Auth
// should mount it again so the user id is included.
func RequestLogger(base *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			ctx = logger.NewContext(ctx, logger.WithContext(ctx, base))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

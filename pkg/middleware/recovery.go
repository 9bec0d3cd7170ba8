package middleware

import (
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/onlydeal/DevHub/pkg/errtrack"
	"github.com/onlydeal/DevHub/pkg/httputil"
)

// Recovery turns a handler panic into a 500 envelope, logs the stack and
// reports it to the error tracker.
func Recovery(l *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				stack := debug.Stack()
				l.ErrorContext(r.Context(), "panic recovered",
					slog.Any("panic", rec),
					slog.String("stack", string(stack)),
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
				)
				errtrack.CapturePanic(r.Context(), rec, stack)
				httputil.WriteJSON(w, http.StatusInternalServerError, httputil.Response{
					Error: &httputil.ErrorResponse{Code: "INTERNAL_ERROR", Message: "an internal error occurred"},
				})
			}()

			next.ServeHTTP(w, r)
		})
	}
}

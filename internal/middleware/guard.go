package middleware

import (
	"net/http"

	"github.com/onlydeal/DevHub/internal/guard"
	apperrors "github.com/onlydeal/DevHub/pkg/errors"
	"github.com/onlydeal/DevHub/pkg/httputil"
	pkgmw "github.com/onlydeal/DevHub/pkg/middleware"
)

// AbuseGuard rejects blocked clients before any other processing, then counts
// the request on the rapid and suspicion tracks.
func AbuseGuard(g *guard.Guard) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			ip := pkgmw.ClientIPFromRequest(r)

			if g.IsBlocked(ctx, ip) {
				httputil.WriteError(w, r, apperrors.Blocked(), nil)
				return
			}

			if g.TrackRequest(ctx, ip) == guard.TooFast {
				httputil.WriteError(w, r, apperrors.RateLimited("too many requests"), nil)
				return
			}

			if g.TrackClient(ctx, ip, r.UserAgent()) == guard.Suspicious {
				httputil.WriteError(w, r, apperrors.Blocked(), nil)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

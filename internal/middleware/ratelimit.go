package middleware

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/onlydeal/DevHub/internal/repository"
	"github.com/onlydeal/DevHub/pkg/httputil"
	"github.com/onlydeal/DevHub/pkg/logger"
	pkgmw "github.com/onlydeal/DevHub/pkg/middleware"
)

// Policy is a named fixed-window limit.
type Policy struct {
	Name   string
	Max    int64
	Window time.Duration
}

// Named policies.
var (
	DefaultPolicy = Policy{Name: "default", Max: 100, Window: 15 * time.Minute}
	StrictPolicy  = Policy{Name: "strict", Max: 10, Window: 15 * time.Minute}
	AuthPolicy    = Policy{Name: "auth", Max: 5, Window: 15 * time.Minute}
)

var rateLimitedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "rate_limit_rejections_total",
	Help: "Requests rejected by the rate limiter, by policy",
}, []string{"policy"})

type rateLimitedResponse struct {
	Error      *httputil.ErrorResponse `json:"error"`
	RetryAfter int64                   `json:"retryAfter"`
}

// RateLimiter enforces fixed-window policies per identity. The identity is
// the authenticated user id when present, else the client IP.
type RateLimiter struct {
	store  repository.CounterStore
	logger *slog.Logger
	now    func() time.Time
}

// NewRateLimiter creates a limiter backed by store.
func NewRateLimiter(store repository.CounterStore, logger *slog.Logger) *RateLimiter {
	return &RateLimiter{store: store, logger: logger, now: time.Now}
}

// WithClock replaces the limiter's time source.
func (l *RateLimiter) WithClock(now func() time.Time) *RateLimiter {
	l.now = now
	return l
}

// Limit returns middleware enforcing p. Cache errors let the request through.
func (l *RateLimiter) Limit(p Policy) func(http.Handler) http.Handler {
	windowSecs := int64(p.Window / time.Second)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			identity := pkgmw.UserIDFromContext(ctx)
			if identity == "" {
				identity = pkgmw.ClientIPFromRequest(r)
			}

			now := l.now().Unix()
			windowStart := now / windowSecs * windowSecs
			resetAt := windowStart + windowSecs
			key := fmt.Sprintf("rl:%s:%s:%d", p.Name, identity, windowStart)

			count, err := l.store.Incr(ctx, key, p.Window)
			if err != nil {
				logger.WithContext(ctx, l.logger).WarnContext(ctx, "rate limiter cache unavailable, allowing request",
					slog.String("policy", p.Name),
					slog.String("error", err.Error()),
				)
				next.ServeHTTP(w, r)
				return
			}

			h := w.Header()
			h.Set("X-RateLimit-Limit", strconv.FormatInt(p.Max, 10))
			h.Set("X-RateLimit-Reset", strconv.FormatInt(resetAt, 10))

			if count > p.Max {
				retryAfter := resetAt - now
				rateLimitedTotal.WithLabelValues(p.Name).Inc()
				logger.WithContext(ctx, l.logger).WarnContext(ctx, "rate limit exceeded",
					slog.String("policy", p.Name),
					slog.String("identity", identity),
					slog.String("path", r.URL.Path),
				)
				h.Set("X-RateLimit-Remaining", "0")
				h.Set("Retry-After", strconv.FormatInt(retryAfter, 10))
				httputil.WriteJSON(w, http.StatusTooManyRequests, rateLimitedResponse{
					Error: &httputil.ErrorResponse{
						Code:      "RATE_LIMITED",
						Message:   "too many requests, please try again later",
						RequestID: logger.CorrelationIDFromContext(ctx),
					},
					RetryAfter: retryAfter,
				})
				return
			}

			h.Set("X-RateLimit-Remaining", strconv.FormatInt(p.Max-count, 10))
			next.ServeHTTP(w, r)
		})
	}
}

// Package guard tracks failed logins, request bursts and suspicious clients per
// IP address and escalates offenders to temporary blocks. Every cache call goes
// through a circuit breaker and the guard fails open: when the cache is
// unavailable requests are allowed and the outage is logged.
package guard

import (
	"context"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sony/gobreaker/v2"

	"github.com/onlydeal/DevHub/internal/repository"
	"github.com/onlydeal/DevHub/pkg/breaker"
)

// Key prefixes in the secret cache.
const (
	FailedPrefix     = "failed:"
	BlockPrefix      = "block:"
	RapidPrefix      = "rapid:"
	SuspiciousPrefix = "suspicious:"
)

// Verdict is the outcome of tracking a request.
type Verdict int

const (
	// Allow lets the request through.
	Allow Verdict = iota
	// TooFast rejects a request that pushed the client over the rapid limit.
	TooFast
	// Suspicious rejects a request that pushed the client over the suspicion limit.
	Suspicious
)

// Config holds the thresholds of each track. A track escalates when its
// counter exceeds the limit within the window.
type Config struct {
	FailedLoginLimit  int64
	FailedLoginWindow time.Duration
	FailedLoginBlock  time.Duration

	RapidLimit  int64
	RapidWindow time.Duration
	RapidBlock  time.Duration

	SuspiciousLimit  int64
	SuspiciousWindow time.Duration
	SuspiciousBlock  time.Duration
	MinUserAgentLen  int
}

// DefaultConfig returns the production thresholds.
func DefaultConfig() Config {
	return Config{
		FailedLoginLimit:  5,
		FailedLoginWindow: 300 * time.Second,
		FailedLoginBlock:  3600 * time.Second,

		RapidLimit:  50,
		RapidWindow: 60 * time.Second,
		RapidBlock:  3600 * time.Second,

		SuspiciousLimit:  10,
		SuspiciousWindow: 300 * time.Second,
		SuspiciousBlock:  1800 * time.Second,
		MinUserAgentLen:  10,
	}
}

var (
	blocksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "guard_blocks_total",
		Help: "IP blocks placed, by reason",
	}, []string{"reason"})

	rejectionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "guard_rejections_total",
		Help: "Requests rejected by the abuse guard, by reason",
	}, []string{"reason"})

	failedLoginsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "guard_failed_logins_total",
		Help: "Failed login attempts reported to the abuse guard",
	})

	failOpenTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "guard_fail_open_total",
		Help: "Guard decisions taken without the cache, by operation",
	}, []string{"operation"})
)

// Guard implements the abuse tracks on top of a counter store.
type Guard struct {
	store  repository.CounterStore
	cb     *gobreaker.CircuitBreaker[any]
	cfg    Config
	logger *slog.Logger
}

// New creates a guard. The breaker trips on cache errors only.
func New(store repository.CounterStore, cfg Config, breakerCfg breaker.Config, logger *slog.Logger) *Guard {
	return &Guard{
		store:  store,
		cb:     gobreaker.NewCircuitBreaker[any](breaker.Settings(breakerCfg, logger, nil)),
		cfg:    cfg,
		logger: logger,
	}
}

// IsBlocked reports whether ip is currently blocked. It returns false when the
// cache cannot be consulted.
func (g *Guard) IsBlocked(ctx context.Context, ip string) bool {
	blocked, err := call(g, func() (bool, error) {
		return g.store.Exists(ctx, BlockPrefix+ip)
	})
	if err != nil {
		g.failOpen(ctx, "is_blocked", ip, err)
		return false
	}
	if blocked {
		rejectionsTotal.WithLabelValues("blocked").Inc()
	}
	return blocked
}

// RecordFailedLogin counts a failed login from ip and blocks the address once
// the count exceeds the limit. It reports whether a block was placed.
func (g *Guard) RecordFailedLogin(ctx context.Context, ip string) bool {
	failedLoginsTotal.Inc()

	n, err := call(g, func() (int64, error) {
		return g.store.Incr(ctx, FailedPrefix+ip, g.cfg.FailedLoginWindow)
	})
	if err != nil {
		g.failOpen(ctx, "record_failed_login", ip, err)
		return false
	}

	g.logger.WarnContext(ctx, "failed login attempt",
		slog.String("client_ip", ip),
		slog.Int64("attempts", n),
	)

	if n <= g.cfg.FailedLoginLimit {
		return false
	}
	return g.block(ctx, ip, "failed_logins", g.cfg.FailedLoginBlock)
}

// TrackRequest counts a request from ip on the rapid track.
func (g *Guard) TrackRequest(ctx context.Context, ip string) Verdict {
	n, err := call(g, func() (int64, error) {
		return g.store.Incr(ctx, RapidPrefix+ip, g.cfg.RapidWindow)
	})
	if err != nil {
		g.failOpen(ctx, "track_request", ip, err)
		return Allow
	}
	if n <= g.cfg.RapidLimit {
		return Allow
	}

	g.block(ctx, ip, "rapid_requests", g.cfg.RapidBlock)
	rejectionsTotal.WithLabelValues("rapid_requests").Inc()
	return TooFast
}

// TrackClient counts a request with a missing or too-short User-Agent on the
// suspicion track. Well-formed clients are not counted.
func (g *Guard) TrackClient(ctx context.Context, ip, userAgent string) Verdict {
	if len(userAgent) >= g.cfg.MinUserAgentLen {
		return Allow
	}

	n, err := call(g, func() (int64, error) {
		return g.store.Incr(ctx, SuspiciousPrefix+ip, g.cfg.SuspiciousWindow)
	})
	if err != nil {
		g.failOpen(ctx, "track_client", ip, err)
		return Allow
	}
	if n <= g.cfg.SuspiciousLimit {
		return Allow
	}

	g.block(ctx, ip, "suspicious_client", g.cfg.SuspiciousBlock)
	rejectionsTotal.WithLabelValues("suspicious_client").Inc()
	return Suspicious
}

func (g *Guard) block(ctx context.Context, ip, reason string, ttl time.Duration) bool {
	_, err := call(g, func() (struct{}, error) {
		return struct{}{}, g.store.SetFlag(ctx, BlockPrefix+ip, ttl)
	})
	if err != nil {
		g.failOpen(ctx, "block", ip, err)
		return false
	}

	blocksTotal.WithLabelValues(reason).Inc()
	g.logger.WarnContext(ctx, "client ip blocked",
		slog.String("client_ip", ip),
		slog.String("reason", reason),
		slog.Duration("duration", ttl),
	)
	return true
}

func (g *Guard) failOpen(ctx context.Context, op, ip string, err error) {
	failOpenTotal.WithLabelValues(op).Inc()
	g.logger.WarnContext(ctx, "abuse guard cache unavailable, allowing request",
		slog.String("operation", op),
		slog.String("client_ip", ip),
		slog.String("error", err.Error()),
	)
}

// call runs fn through the guard's breaker.
func call[T any](g *Guard, fn func() (T, error)) (T, error) {
	var zero T
	v, err := g.cb.Execute(func() (any, error) {
		res, err := fn()
		return res, err
	})
	if err != nil {
		return zero, err
	}
	return v.(T), nil
}

package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/onlydeal/DevHub/internal/auth"
	"github.com/onlydeal/DevHub/internal/guard"
	"github.com/onlydeal/DevHub/internal/middleware"
	"github.com/onlydeal/DevHub/internal/service"
	"github.com/onlydeal/DevHub/pkg/health"
	pkgmw "github.com/onlydeal/DevHub/pkg/middleware"
)

// ServiceName labels metrics and spans emitted by the router.
const ServiceName = "devhub-auth"

// RouterConfig holds the dependencies of the HTTP surface.
type RouterConfig struct {
	Sessions   *service.SessionService
	Recovery   *service.RecoveryService
	Codec      *auth.TokenCodec
	Cookies    *auth.CookieManager
	Guard      *guard.Guard
	Limiter    *middleware.RateLimiter
	Health     *health.Handler
	CORS       pkgmw.CORSConfig
	TrustProxy bool
	PprofCIDRs []string
	Logger     *slog.Logger
}

// NewRouter creates a chi router with all auth routes registered.
func NewRouter(cfg RouterConfig) http.Handler {
	logger := cfg.Logger
	r := chi.NewRouter()

	// Global middleware
	r.Use(pkgmw.Recovery(logger))
	r.Use(pkgmw.RequestLogging(logger))
	r.Use(pkgmw.ClientIP(cfg.TrustProxy))
	r.Use(pkgmw.Tracing(ServiceName))
	r.Use(pkgmw.PrometheusMetrics(ServiceName))
	r.Use(pkgmw.CORS(cfg.CORS))

	// Health check endpoints
	if cfg.Health != nil {
		r.Get("/health/live", cfg.Health.LivenessHandler())
		r.Get("/health/ready", cfg.Health.ReadinessHandler())
	}
	r.Handle("/metrics", promhttp.Handler())
	pkgmw.RegisterPprof(r, cfg.PprofCIDRs, logger)

	validate := accessTokenValidator(cfg.Codec)
	authHandler := NewAuthHandler(cfg.Sessions, cfg.Recovery, cfg.Cookies, logger)
	userHandler := NewUserHandler(cfg.Sessions, logger)

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.AbuseGuard(cfg.Guard))
		r.Use(pkgmw.OptionalAuth(validate))
		r.Use(pkgmw.RequestLogger(logger))
		r.Use(cfg.Limiter.Limit(middleware.DefaultPolicy))

		r.Route("/auth", func(r chi.Router) {
			r.Use(pkgmw.NoStore)

			r.With(cfg.Limiter.Limit(middleware.AuthPolicy)).Post("/signup", authHandler.Signup)
			r.Post("/login", authHandler.Login)
			r.Post("/refresh", authHandler.Refresh)

			r.Group(func(r chi.Router) {
				r.Use(cfg.Limiter.Limit(middleware.StrictPolicy))
				r.Post("/reset", authHandler.RequestReset)
				r.Post("/reset/confirm", authHandler.ConfirmReset)
			})

			r.Group(func(r chi.Router) {
				r.Use(pkgmw.Auth(validate))
				r.Post("/logout", authHandler.Logout)
				r.Post("/update-password", authHandler.ChangePassword)
				r.Put("/profile", authHandler.UpdateProfile)
			})
		})

		r.Route("/users", func(r chi.Router) {
			r.Use(pkgmw.Auth(validate))
			r.Get("/me", userHandler.Me)
		})
	})

	return r
}

// accessTokenValidator bridges the token codec to the shared auth middleware.
func accessTokenValidator(codec *auth.TokenCodec) pkgmw.TokenValidator {
	return func(token string) (*pkgmw.Claims, error) {
		claims, err := codec.VerifyAccess(token)
		if err != nil {
			return nil, err
		}
		return &pkgmw.Claims{UserID: claims.Subject, Role: claims.Role}, nil
	}
}

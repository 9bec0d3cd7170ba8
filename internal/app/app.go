package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/onlydeal/DevHub/internal/auth"
	"github.com/onlydeal/DevHub/internal/config"
	"github.com/onlydeal/DevHub/internal/event"
	"github.com/onlydeal/DevHub/internal/guard"
	handler "github.com/onlydeal/DevHub/internal/handler/http"
	"github.com/onlydeal/DevHub/internal/middleware"
	"github.com/onlydeal/DevHub/internal/repository/postgres"
	redisrepo "github.com/onlydeal/DevHub/internal/repository/redis"
	"github.com/onlydeal/DevHub/internal/service"
	"github.com/onlydeal/DevHub/migrations"
	"github.com/onlydeal/DevHub/pkg/breaker"
	"github.com/onlydeal/DevHub/pkg/database"
	"github.com/onlydeal/DevHub/pkg/health"
	pkgkafka "github.com/onlydeal/DevHub/pkg/kafka"
	pkgmw "github.com/onlydeal/DevHub/pkg/middleware"
	"github.com/onlydeal/DevHub/pkg/tracing"
)

// App wires together all dependencies and runs the auth server.
type App struct {
	cfg            *config.Config
	logger         *slog.Logger
	pool           *pgxpool.Pool
	redis          *redis.Client
	producer       *pkgkafka.Producer
	httpServer     *http.Server
	tracerShutdown tracing.Shutdown
}

// NewApp creates a new application instance, initializing all dependencies.
func NewApp(cfg *config.Config, logger *slog.Logger) (*App, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Initialize OpenTelemetry tracing.
	tracerShutdown, err := tracing.InitTracer(ctx, tracing.Config{
		Enabled:        cfg.TracingEnabled,
		ServiceName:    handler.ServiceName,
		ServiceVersion: cfg.Version,
		Environment:    cfg.Environment,
		OTLPEndpoint:   cfg.OTLPEndpoint,
		SampleRate:     cfg.TraceSampleRate,
	})
	if err != nil {
		return nil, fmt.Errorf("init tracer: %w", err)
	}
	undo := newCleanup(logger)
	undo.add("tracer", tracerShutdown)

	// Initialize PostgreSQL connection pool.
	pool, err := database.NewPostgresPool(ctx, database.PostgresConfig{
		URL:      cfg.DatabaseURL,
		MaxConns: cfg.DBMaxConns,
		MinConns: cfg.DBMinConns,
	}, logger)
	if err != nil {
		undo.run()
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	undo.add("postgres", func(context.Context) error {
		pool.Close()
		return nil
	})
	logger.Info("connected to PostgreSQL")
	if err := database.RegisterPoolMetrics(prometheus.DefaultRegisterer, pool, handler.ServiceName); err != nil {
		logger.Warn("failed to register pool metrics", slog.String("error", err.Error()))
	}

	// Run database migrations.
	if cfg.RunMigrations {
		if err := database.RunMigrations(ctx, pool, migrations.FS, logger); err != nil {
			undo.run()
			return nil, fmt.Errorf("run migrations: %w", err)
		}
		logger.Info("database migrations completed")
	}

	// Configure slow query logging.
	if cfg.SlowQuery > 0 {
		database.SetSlowQueryLogging(cfg.SlowQuery, logger)
	}

	// Initialize Redis.
	redisClient, err := database.NewRedisClient(ctx, database.RedisConfig{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}, logger)
	if err != nil {
		undo.run()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	logger.Info("connected to Redis", slog.String("addr", cfg.RedisAddr))

	// Initialize Kafka producer.
	producer := pkgkafka.NewProducer(pkgkafka.ProducerConfig{
		Brokers:      cfg.KafkaBrokers,
		BatchTimeout: 10 * time.Millisecond,
		WriteTimeout: 10 * time.Second,
	}, logger)
	logger.Info("kafka producer initialized", slog.Any("brokers", cfg.KafkaBrokers))

	// Build the dependency graph.
	codec := auth.NewTokenCodec(auth.CodecConfig{
		AccessSecret:  cfg.JWTAccessSecret,
		RefreshSecret: cfg.JWTRefreshSecret,
		AccessTTL:     cfg.AccessTokenTTL,
		RefreshTTL:    cfg.RefreshTokenTTL,
	})
	userRepo := postgres.NewUserRepository(pool)
	refreshStore := redisrepo.NewRefreshTokenStore(redisClient)
	resetStore := redisrepo.NewResetTokenStore(redisClient)
	counterStore := redisrepo.NewCounterStore(redisClient)
	eventProducer := event.NewProducer(producer, logger)

	abuseGuard := guard.New(counterStore, guard.DefaultConfig(), breaker.DefaultConfig("redis-guard"), logger)

	sessions := service.NewSessionService(userRepo, refreshStore, codec, abuseGuard, eventProducer, service.SessionConfig{
		BcryptCost:             cfg.BcryptCost,
		RevokeOnPasswordChange: cfg.RevokeSessionsOnPasswordChange,
	}, logger)
	recovery := service.NewRecoveryService(userRepo, resetStore, refreshStore, eventProducer, service.RecoveryConfig{
		ResetURLBase:           cfg.ResetURLBase,
		TokenTTL:               cfg.ResetTokenTTL,
		BcryptCost:             cfg.BcryptCost,
		UniformResponse:        cfg.ResetUniformResponse,
		RevokeOnPasswordChange: cfg.RevokeSessionsOnPasswordChange,
	}, logger)

	// Health checks.
	healthHandler := health.NewHandler()
	healthHandler.RegisterCritical("postgres", func(ctx context.Context) error {
		return pool.Ping(ctx)
	})
	healthHandler.RegisterCritical("redis", func(ctx context.Context) error {
		return redisClient.Ping(ctx).Err()
	})
	healthHandler.RegisterNonCritical("kafka", func(ctx context.Context) error {
		return producer.Ping(ctx)
	})

	// HTTP router.
	router := handler.NewRouter(handler.RouterConfig{
		Sessions:   sessions,
		Recovery:   recovery,
		Codec:      codec,
		Cookies:    auth.NewCookieManager(cfg.SecureCookies(), cfg.RefreshTokenTTL),
		Guard:      abuseGuard,
		Limiter:    middleware.NewRateLimiter(counterStore, logger),
		Health:     healthHandler,
		CORS:       pkgmw.DefaultCORSConfig(cfg.CORSAllowedOrigins...),
		TrustProxy: cfg.TrustProxy,
		PprofCIDRs: cfg.PprofAllowedCIDRs,
		Logger:     logger,
	})

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadTimeout:       cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return &App{
		cfg:            cfg,
		logger:         logger,
		pool:           pool,
		redis:          redisClient,
		producer:       producer,
		httpServer:     httpServer,
		tracerShutdown: tracerShutdown,
	}, nil
}

// Run starts the HTTP server and blocks until the context is canceled.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		a.logger.Info("starting HTTP server", slog.String("addr", a.httpServer.Addr))
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case err := <-errCh:
		_ = a.Shutdown()
		return err
	}

	return a.Shutdown()
}

// Shutdown gracefully stops all components in the correct order:
// 1. HTTP server (drain in-flight requests)
// 2. Tracer (flush spans of drained requests)
// 3. Kafka producer
// 4. Redis client
// 5. PostgreSQL pool
func (a *App) Shutdown() error {
	a.logger.Info("shutting down application...")

	var errs []error

	httpCtx, httpCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer httpCancel()
	if err := a.httpServer.Shutdown(httpCtx); err != nil {
		a.logger.Error("http server shutdown error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	tracerCtx, tracerCancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer tracerCancel()
	if err := a.tracerShutdown(tracerCtx); err != nil {
		a.logger.Error("tracer shutdown error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	if err := a.producer.Close(); err != nil {
		a.logger.Error("kafka producer close error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	if err := a.redis.Close(); err != nil {
		a.logger.Error("redis close error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	a.pool.Close()

	a.logger.Info("application shutdown complete")
	return errors.Join(errs...)
}

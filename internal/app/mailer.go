package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/onlydeal/DevHub/internal/config"
	"github.com/onlydeal/DevHub/internal/mailer"
	redisrepo "github.com/onlydeal/DevHub/internal/repository/redis"
	"github.com/onlydeal/DevHub/pkg/breaker"
	"github.com/onlydeal/DevHub/pkg/database"
	"github.com/onlydeal/DevHub/pkg/health"
	"github.com/onlydeal/DevHub/pkg/httpclient"
	pkgkafka "github.com/onlydeal/DevHub/pkg/kafka"
	pkgmw "github.com/onlydeal/DevHub/pkg/middleware"
	"github.com/onlydeal/DevHub/pkg/tracing"
)

// MailerServiceName labels metrics, spans and logs of the mailer worker.
const MailerServiceName = "devhub-mailer"

// MailerApp runs the Kafka consumers that deliver auth emails, plus a small
// HTTP server for health and metrics.
type MailerApp struct {
	logger         *slog.Logger
	redis          *redis.Client
	dlqWriter      pkgkafka.MessageWriter
	consumers      []*pkgkafka.Consumer
	httpServer     *http.Server
	tracerShutdown tracing.Shutdown
}

// NewMailerApp creates the mailer worker, initializing all dependencies.
func NewMailerApp(cfg *config.Config, logger *slog.Logger) (*MailerApp, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	tracerShutdown, err := tracing.InitTracer(ctx, tracing.Config{
		Enabled:        cfg.TracingEnabled,
		ServiceName:    MailerServiceName,
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

	// Pick the delivery channel.
	var sender mailer.Sender
	if cfg.MailAPIURL != "" {
		clientCfg := httpclient.DefaultConfig()
		clientCfg.RatePerSecond = cfg.MailRatePerSec
		client := httpclient.NewCircuitBreakerClient(
			httpclient.New(clientCfg, nil),
			breaker.DefaultConfig("mail-api"),
			logger,
		)
		sender = mailer.NewHTTPSender(client, cfg.MailAPIURL, cfg.MailAPIKey, cfg.MailFrom)
	} else {
		logger.Warn("MAIL_API_URL not set, messages will only be logged")
		sender = mailer.NewLogSender(logger)
	}

	dlqWriter := pkgkafka.NewWriter(pkgkafka.ProducerConfig{
		Brokers:      cfg.KafkaBrokers,
		BatchTimeout: 10 * time.Millisecond,
		WriteTimeout: 10 * time.Second,
	})
	consumers := mailer.NewConsumers(
		mailer.ConsumerOptions{
			Brokers:      cfg.KafkaBrokers,
			GroupID:      cfg.MailerGroupID,
			MaxRetries:   3,
			RetryBackoff: time.Second,
		},
		mailer.NewWorker(sender, logger),
		redisrepo.NewIdempotencyStore(redisClient, cfg.MailerDedupeTTL),
		pkgkafka.NewDLQProducer(dlqWriter, logger),
		logger,
	)
	logger.Info("kafka consumers initialized",
		slog.Any("topics", mailer.Topics),
		slog.String("group", cfg.MailerGroupID),
		slog.String("sender", sender.Name()),
	)

	healthHandler := health.NewHandler()
	healthHandler.RegisterCritical("redis", func(ctx context.Context) error {
		return redisClient.Ping(ctx).Err()
	})
	healthHandler.RegisterNonCritical("kafka", func(ctx context.Context) error {
		return pkgkafka.PingBrokers(ctx, cfg.KafkaBrokers)
	})

	r := chi.NewRouter()
	r.Use(pkgmw.Recovery(logger))
	r.Get("/health/live", healthHandler.LivenessHandler())
	r.Get("/health/ready", healthHandler.ReadinessHandler())
	r.Handle("/metrics", promhttp.Handler())

	return &MailerApp{
		logger:    logger,
		redis:     redisClient,
		dlqWriter: dlqWriter,
		consumers: consumers,
		httpServer: &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
			Handler:           r,
			ReadHeaderTimeout: 10 * time.Second,
		},
		tracerShutdown: tracerShutdown,
	}, nil
}

// Run starts the consumers and the HTTP server and blocks until the context
// is canceled.
func (a *MailerApp) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	var wg sync.WaitGroup
	for _, consumer := range a.consumers {
		wg.Add(1)
		go func(c *pkgkafka.Consumer) {
			defer wg.Done()
			if err := c.Start(ctx); err != nil {
				a.logger.Error("kafka consumer error", slog.String("error", err.Error()))
			}
		}(consumer)
	}

	go func() {
		a.logger.Info("starting HTTP server", slog.String("addr", a.httpServer.Addr))
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case runErr = <-errCh:
	}

	// Consumers stop when ctx ends; close them in case ctx is still live.
	for _, c := range a.consumers {
		if err := c.Close(); err != nil {
			a.logger.Error("kafka consumer close error", slog.String("error", err.Error()))
		}
	}
	wg.Wait()

	return errors.Join(runErr, a.Shutdown())
}

// Shutdown stops the HTTP server, the tracer, the DLQ writer and Redis.
func (a *MailerApp) Shutdown() error {
	a.logger.Info("shutting down mailer...")

	var errs []error

	httpCtx, httpCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer httpCancel()
	if err := a.httpServer.Shutdown(httpCtx); err != nil {
		errs = append(errs, fmt.Errorf("http server: %w", err))
	}

	tracerCtx, tracerCancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer tracerCancel()
	if err := a.tracerShutdown(tracerCtx); err != nil {
		errs = append(errs, fmt.Errorf("tracer: %w", err))
	}

	if err := a.dlqWriter.Close(); err != nil {
		errs = append(errs, fmt.Errorf("dlq writer: %w", err))
	}

	if err := a.redis.Close(); err != nil {
		errs = append(errs, fmt.Errorf("redis: %w", err))
	}

	for _, err := range errs {
		a.logger.Error("shutdown error", slog.String("error", err.Error()))
	}
	a.logger.Info("mailer shutdown complete")
	return errors.Join(errs...)
}

package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/onlydeal/DevHub/internal/app"
	"github.com/onlydeal/DevHub/internal/config"
	handler "github.com/onlydeal/DevHub/internal/handler/http"
	pkgconfig "github.com/onlydeal/DevHub/pkg/config"
	"github.com/onlydeal/DevHub/pkg/errtrack"
	"github.com/onlydeal/DevHub/pkg/logger"
)

func main() {
	if err := pkgconfig.LoadDotEnv(); err != nil {
		slog.Error("failed to load .env", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Load configuration from environment variables.
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Initialize structured logger.
	log := logger.New(handler.ServiceName, cfg.LogLevel)
	log.Info("starting devhub auth server",
		slog.String("environment", cfg.Environment),
		slog.String("version", cfg.Version),
		slog.Int("http_port", cfg.HTTPPort),
	)

	if err := errtrack.Init(cfg.SentryDSN, cfg.Environment, cfg.Version); err != nil {
		log.Warn("error tracking disabled", slog.String("error", err.Error()))
	}
	defer errtrack.Flush(2 * time.Second)

	// Create the application with all dependencies wired.
	application, err := app.NewApp(cfg, log)
	if err != nil {
		log.Error("failed to initialize application", slog.String("error", err.Error()))
		errtrack.Flush(2 * time.Second)
		os.Exit(1)
	}

	// Create a context that is cancelled on SIGINT or SIGTERM.
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Run the application. This blocks until shutdown.
	if err := application.Run(ctx); err != nil {
		log.Error("application error", slog.String("error", err.Error()))
		errtrack.Flush(2 * time.Second)
		os.Exit(1)
	}

	log.Info("devhub auth server stopped")
}

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
	pkgconfig "github.com/onlydeal/DevHub/pkg/config"
	"github.com/onlydeal/DevHub/pkg/errtrack"
	"github.com/onlydeal/DevHub/pkg/logger"
)

func main() {
	if err := pkgconfig.LoadDotEnv(); err != nil {
		slog.Error("failed to load .env", slog.String("error", err.Error()))
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	log := logger.New(app.MailerServiceName, cfg.LogLevel)
	log.Info("starting devhub mailer",
		slog.String("environment", cfg.Environment),
		slog.String("group", cfg.MailerGroupID),
	)

	if err := errtrack.Init(cfg.SentryDSN, cfg.Environment, cfg.Version); err != nil {
		log.Warn("error tracking disabled", slog.String("error", err.Error()))
	}
	defer errtrack.Flush(2 * time.Second)

	mailerApp, err := app.NewMailerApp(cfg, log)
	if err != nil {
		log.Error("failed to initialize mailer", slog.String("error", err.Error()))
		errtrack.Flush(2 * time.Second)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := mailerApp.Run(ctx); err != nil {
		log.Error("mailer error", slog.String("error", err.Error()))
		errtrack.Flush(2 * time.Second)
		os.Exit(1)
	}

	log.Info("devhub mailer stopped")
}

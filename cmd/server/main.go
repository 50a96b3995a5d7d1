package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rushroster/rushroster-cloud/internal/app"
	"github.com/rushroster/rushroster-cloud/internal/config"
	"github.com/rushroster/rushroster-cloud/internal/logger"
	"github.com/rushroster/rushroster-cloud/internal/routes"
	"github.com/rushroster/rushroster-cloud/internal/worker"
)

const shutdownTimeout = 15 * time.Second

func main() {
	cfg := config.Load()

	log := logger.Init(cfg.IsDevelopment(), cfg.SentryDSN, "rushroster-server")
	defer logger.Flush()

	app, err := app.New(cfg)
	if err != nil {
		slog.Error("failed to initialize app", "error", err)
		logger.Flush()
		os.Exit(1)
	}
	defer func() {
		closeErr := app.Close()
		if closeErr != nil {
			slog.Error("failed to close app", "error", closeErr)
		}
	}()

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           routes.SetupRoutes(app),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	supervisor := worker.NewSupervisor(log, shutdownTimeout)
	supervisor.Add(worker.NewHTTPService(server, shutdownTimeout))
	supervisor.Add(worker.NewStatsJob(app.StatsService, cfg.StatsInterval))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	slog.Info("server starting",
		"port", cfg.Port,
		"env", cfg.AppEnv,
		"url", cfg.AppURL,
		"storage", cfg.StorageProvider,
		"db", cfg.DBDriver,
	)

	err = supervisor.Serve(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("supervisor stopped", "error", err)
		return
	}
	slog.Info("server stopped")
}

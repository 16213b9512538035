package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	"insured/internal/insured"
	insuredmetrics "insured/internal/insured/metrics"
	"insured/internal/platform/config"
	"insured/internal/platform/database"
	"insured/internal/platform/httpserver"
	"insured/internal/platform/logger"
	"insured/internal/platform/metrics"
	redisclient "insured/internal/platform/redis"
)

// main wires dependencies and keeps the server lifecycle small. Business
// logic lives in internal/insured.
func main() {
	cfg := config.FromEnv()
	log := logger.New(cfg.Log.Level, cfg.Log.Format)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("insured registry stopped", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	checks := map[string]httpserver.Check{}

	var db *sql.DB
	if cfg.Database.Driver != config.DriverMemory {
		var err error
		db, err = database.Open(ctx, cfg.Database)
		if err != nil {
			return err
		}
		defer db.Close()
		checks["database"] = db.PingContext
	}

	cache, err := redisclient.New(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	if cache != nil {
		defer cache.Close()
		checks["redis"] = cache.Health
	}

	reg := prometheus.DefaultRegisterer
	deps := insured.Dependencies{
		Driver:   cfg.Database.Driver,
		DB:       db,
		CacheTTL: cfg.Redis.CacheTTL,
		Logger:   log,
		Metrics:  insuredmetrics.New(reg),
	}
	if cache != nil {
		deps.Cache = cache.Client
	}
	module, err := insured.New(ctx, deps)
	if err != nil {
		return err
	}

	router := newRouter(routerDeps{
		logger:         log,
		httpMetrics:    metrics.New(reg),
		requestTimeout: cfg.Server.RequestTimeout,
		registry:       module.Handler,
		checks:         checks,
	})

	log.Info("starting insured registry",
		"addr", cfg.Server.Addr,
		"db_driver", cfg.Database.Driver,
		"cache", cache != nil,
	)
	srv := httpserver.New(cfg.Server.Addr, router)
	if err := httpserver.Run(ctx, srv, cfg.Server.ShutdownTimeout, log); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

package main

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"insured/internal/platform/httpserver"
	"insured/internal/platform/metrics"
	"insured/internal/platform/middleware"
	"insured/pkg/platform/middleware/metadata"
	"insured/pkg/platform/middleware/requesttime"
)

const healthCheckTimeout = 2 * time.Second

type routerDeps struct {
	logger         *slog.Logger
	httpMetrics    *metrics.Metrics
	metricsHandler http.Handler
	requestTimeout time.Duration
	registry       interface{ Register(chi.Router) }
	checks         map[string]httpserver.Check
}

func newRouter(deps routerDeps) http.Handler {
	r := chi.NewRouter()
	r.Use(requesttime.Middleware)
	r.Use(middleware.RequestID)
	r.Use(metadata.ClientMetadata)
	r.Use(middleware.Recovery(deps.logger))
	r.Use(middleware.Logger(deps.logger))
	r.Use(middleware.Latency(deps.httpMetrics))

	r.Get("/health", httpserver.Health(deps.checks, healthCheckTimeout))
	metricsHandler := deps.metricsHandler
	if metricsHandler == nil {
		metricsHandler = promhttp.Handler()
	}
	r.Handle("/metrics", metricsHandler)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(deps.requestTimeout))
		r.Use(middleware.ContentTypeJSON)
		deps.registry.Register(r)
	})
	return r
}

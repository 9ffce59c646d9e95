// Package httpapi exposes the scheduling service's synchronous HTTP
// surface: a direct /v1/schedule call, a /v1/batches submission path that
// stores each run the way the NATS consumer does, and the health check
// Consul polls.
package httpapi

import (
	"net/http"

	"github.com/dante-gpu/production-scheduler/internal/config"
	"github.com/dante-gpu/production-scheduler/internal/cost"
	"github.com/dante-gpu/production-scheduler/internal/store"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// NewRouter builds the chi router for the scheduling service's HTTP API.
func NewRouter(cfg *config.Config, runStore store.RunStore, estimator *cost.Estimator, isNATSConnected func() bool, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(StructuredLogger(logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(cfg.RequestTimeout))

	r.Get(cfg.HealthCheckPath, HealthHandler(isNATSConnected, logger))

	r.Route("/v1", func(r chi.Router) {
		r.Post("/schedule", ScheduleHandler(cfg, estimator, logger))
		r.Post("/batches", SubmitBatchHandler(cfg, runStore, logger))
		r.Get("/batches/{id}", GetBatchHandler(runStore, logger))
	})

	return r
}

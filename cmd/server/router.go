package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/phrazzld/fare-enricher/internal/api"
	apiMiddleware "github.com/phrazzld/fare-enricher/internal/api/middleware"
)

// setupRouter creates the router. Enrichment routes are mounted only when
// the process serves the API; health and metrics are always available.
func (app *application) setupRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(apiMiddleware.TraceMiddleware(app.logger))
	r.Use(middleware.Recoverer)
	r.Use(apiMiddleware.MetricsMiddleware(app.metrics))

	if app.config.Server.RunsAPI() {
		h := api.NewEnrichmentHandler(app.enrichmentService, app.logger)
		r.Post("/enrich-flight", h.EnrichFlight)
		r.Get("/task-status/{task_id}", h.GetTaskStatus)
		r.Get("/tasks", h.ListTasks)
		r.Get("/flights", h.ListFlights)
	}

	r.Get("/health", api.Health)
	r.Method(http.MethodGet, "/metrics", app.metrics.Handler())

	return r
}

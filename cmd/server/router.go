package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vishalm/staycrest-sub000/internal/api"
	apiMiddleware "github.com/vishalm/staycrest-sub000/internal/api/middleware"
	"github.com/vishalm/staycrest-sub000/internal/api/shared"
)

// healthResponse is the body of the health check
type healthResponse struct {
	Status  string `json:"status"`
	Workers int    `json:"workers"`
}

// setupRouter creates and configures the application router with all routes and middleware.
func (app *application) setupRouter() http.Handler {
	r := chi.NewRouter()

	// Apply standard middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(apiMiddleware.TraceMiddleware(app.logger))

	taskHandler := api.NewTaskHandler(app.pool, app.logger)
	submitLimit := apiMiddleware.RateLimit(app.config.Limits.SubmitRPS, app.config.Limits.SubmitBurst)

	r.Route("/api", func(r chi.Router) {
		r.With(submitLimit).Post("/tasks", taskHandler.SubmitTask)

		r.Get("/pool/stats", taskHandler.GetStats)
		r.Get("/pool/workers", taskHandler.GetWorkers)
	})

	r.Get("/health", app.handleHealth)
	r.Handle("/metrics", promhttp.HandlerFor(app.registry, promhttp.HandlerOpts{Registry: app.registry}))

	return r
}

// handleHealth reports 200 while the pool runs with at least one worker
func (app *application) handleHealth(w http.ResponseWriter, r *http.Request) {
	workers := app.pool.Stats().Workers.Total
	if !app.pool.Running() || workers == 0 {
		shared.RespondWithJSON(w, r, http.StatusServiceUnavailable, healthResponse{
			Status:  "unavailable",
			Workers: workers,
		})
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, healthResponse{Status: "ok", Workers: workers})
}

package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/fieldops/dispatch-api/internal/api"
)

// setupRouter configures the application router with all routes and
// middleware.
func (app *application) setupRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	allocationHandler := api.NewAllocationHandler(
		app.engine,
		app.config.Allocation.DefaultBatchSize,
		app.logger,
	)
	taskHandler := api.NewTaskHandler(app.statusService, app.logger)
	queryHandler := api.NewQueryHandler(
		app.taskStore,
		app.workerStore,
		app.syncLayer,
		app.config.Allocation.DefaultBatchSize,
		app.logger,
	)

	r.Route("/api", func(r chi.Router) {
		r.Post("/allocations/run", allocationHandler.RunAllocation)
		r.Get("/allocations/stats", allocationHandler.GetPerformanceStats)
		r.Get("/allocations/trends", allocationHandler.GetAllocationTrends)
		r.Get("/cache/stats", allocationHandler.GetCacheStats)

		r.Get("/tasks/unassigned", queryHandler.ListUnassignedTasks)
		r.Post("/tasks/{id}/status", taskHandler.UpdateStatus)

		r.Get("/workers", queryHandler.ListWorkers)
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			app.logger.Error("failed to write health check response", "error", err)
		}
	})

	return r
}

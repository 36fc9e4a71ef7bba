package api

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/fieldops/dispatch-api/internal/cache"
	"github.com/fieldops/dispatch-api/internal/platform/logger"
	"github.com/fieldops/dispatch-api/internal/store"
)

// QueryHandler serves the read-side listing endpoints. Reads go through the
// cache and fall back to the store on a miss, warming the cache on the way
// out.
type QueryHandler struct {
	tasks        store.TaskStore
	workers      store.WorkerStore
	cache        *cache.SyncLayer
	defaultLimit int
	logger       *slog.Logger
}

// NewQueryHandler creates the read-side handler.
func NewQueryHandler(
	tasks store.TaskStore,
	workers store.WorkerStore,
	cacheLayer *cache.SyncLayer,
	defaultLimit int,
	log *slog.Logger,
) *QueryHandler {
	if log == nil {
		log = slog.Default()
	}
	return &QueryHandler{
		tasks:        tasks,
		workers:      workers,
		cache:        cacheLayer,
		defaultLimit: defaultLimit,
		logger:       log,
	}
}

// ListUnassignedTasks handles GET /api/tasks/unassigned.
func (h *QueryHandler) ListUnassignedTasks(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)
	ctx := r.Context()

	if tasks, ok := h.cache.GetUnassignedTasks(ctx); ok {
		RespondJSON(w, http.StatusOK, tasks)
		return
	}

	limit := h.defaultLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			RespondError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}

	tasks, err := h.tasks.FindPendingGeocoded(ctx, limit)
	if err != nil {
		log.Error("failed to list unassigned tasks", "error", err)
		RespondError(w, http.StatusServiceUnavailable, "task store unavailable")
		return
	}

	h.cache.SetUnassignedTasks(ctx, tasks)
	RespondJSON(w, http.StatusOK, tasks)
}

// ListWorkers handles GET /api/workers.
func (h *QueryHandler) ListWorkers(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)
	ctx := r.Context()

	if workers, ok := h.cache.GetWorkers(ctx); ok {
		RespondJSON(w, http.StatusOK, workers)
		return
	}

	workers, err := h.workers.FindEligible(ctx)
	if err != nil {
		log.Error("failed to list workers", "error", err)
		RespondError(w, http.StatusServiceUnavailable, "worker store unavailable")
		return
	}

	if err := h.cache.SetWorkers(ctx, workers, time.Now().UnixNano()); err != nil {
		log.Debug("worker snapshot superseded by a newer writer", "error", err)
	}
	RespondJSON(w, http.StatusOK, workers)
}

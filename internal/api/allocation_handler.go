package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/fieldops/dispatch-api/internal/allocation"
	"github.com/fieldops/dispatch-api/internal/platform/logger"
	"github.com/fieldops/dispatch-api/internal/store"
)

// runAllocationRequest is the body of POST /api/allocations/run.
type runAllocationRequest struct {
	BatchSize int `json:"batch_size"`
}

// AllocationHandler exposes the allocation engine and its observability
// surfaces over HTTP.
type AllocationHandler struct {
	engine           *allocation.Engine
	defaultBatchSize int
	logger           *slog.Logger
}

// NewAllocationHandler creates a handler. defaultBatchSize is used when the
// request omits or zeroes batch_size.
func NewAllocationHandler(engine *allocation.Engine, defaultBatchSize int, log *slog.Logger) *AllocationHandler {
	if log == nil {
		log = slog.Default()
	}
	return &AllocationHandler{
		engine:           engine,
		defaultBatchSize: defaultBatchSize,
		logger:           log,
	}
}

// RunAllocation handles POST /api/allocations/run. Per-task allocation
// misses are part of the structured result; only store-level failures map
// to an error status (503, retryable).
func (h *AllocationHandler) RunAllocation(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	var req runAllocationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.BatchSize <= 0 {
		req.BatchSize = h.defaultBatchSize
	}

	result, err := h.engine.Allocate(r.Context(), req.BatchSize)
	if err != nil {
		log.Error("allocation run failed", "error", err)
		if store.IsRetryable(err) {
			RespondError(w, http.StatusServiceUnavailable, "allocation store unavailable, retry later")
			return
		}
		RespondError(w, http.StatusInternalServerError, "allocation run failed")
		return
	}

	RespondJSON(w, http.StatusOK, result)
}

// GetPerformanceStats handles GET /api/allocations/stats.
func (h *AllocationHandler) GetPerformanceStats(w http.ResponseWriter, _ *http.Request) {
	RespondJSON(w, http.StatusOK, h.engine.PerformanceStats())
}

// GetAllocationTrends handles GET /api/allocations/trends.
func (h *AllocationHandler) GetAllocationTrends(w http.ResponseWriter, _ *http.Request) {
	RespondJSON(w, http.StatusOK, map[string]any{
		"trend": h.engine.AllocationTrend(),
	})
}

// GetCacheStats handles GET /api/cache/stats.
func (h *AllocationHandler) GetCacheStats(w http.ResponseWriter, _ *http.Request) {
	RespondJSON(w, http.StatusOK, h.engine.CacheStats())
}

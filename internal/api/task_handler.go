package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/fieldops/dispatch-api/internal/domain"
	"github.com/fieldops/dispatch-api/internal/platform/logger"
	"github.com/fieldops/dispatch-api/internal/service"
	"github.com/fieldops/dispatch-api/internal/store"
)

// Task status actions accepted by the API.
const (
	actionAccept   = "accept"
	actionReject   = "reject"
	actionComplete = "complete"
	actionReassign = "reassign"
)

// updateStatusRequest is the body of POST /api/tasks/{id}/status.
type updateStatusRequest struct {
	Action   string `json:"action"`
	WorkerID string `json:"worker_id"`
}

// TaskHandler exposes task status transitions over HTTP.
type TaskHandler struct {
	status *service.StatusService
	logger *slog.Logger
}

// NewTaskHandler creates a handler over the status service.
func NewTaskHandler(status *service.StatusService, log *slog.Logger) *TaskHandler {
	if log == nil {
		log = slog.Default()
	}
	return &TaskHandler{status: status, logger: log}
}

// UpdateStatus handles POST /api/tasks/{id}/status.
func (h *TaskHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	taskID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		RespondError(w, http.StatusBadRequest, "invalid task id")
		return
	}

	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	workerID, err := uuid.Parse(req.WorkerID)
	if err != nil {
		RespondError(w, http.StatusBadRequest, "invalid worker id")
		return
	}

	ctx := r.Context()
	switch req.Action {
	case actionAccept:
		err = h.status.Accept(ctx, taskID, workerID)
	case actionReject:
		err = h.status.Reject(ctx, taskID, workerID)
	case actionComplete:
		err = h.status.Complete(ctx, taskID, workerID)
	case actionReassign:
		err = h.status.Reassign(ctx, taskID, workerID)
	default:
		RespondError(w, http.StatusBadRequest, "unknown action")
		return
	}

	if err != nil {
		h.respondTransitionError(w, log, taskID, req.Action, err)
		return
	}

	RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// respondTransitionError maps service errors onto HTTP statuses.
func (h *TaskHandler) respondTransitionError(
	w http.ResponseWriter,
	log *slog.Logger,
	taskID uuid.UUID,
	action string,
	err error,
) {
	var invalid *domain.ErrInvalidTransition

	switch {
	case store.IsNotFoundError(err):
		RespondError(w, http.StatusNotFound, "task not found")
	case errors.Is(err, service.ErrNotAssignedToWorker):
		RespondError(w, http.StatusConflict, err.Error())
	case errors.Is(err, service.ErrNotReallocatable):
		RespondError(w, http.StatusConflict, err.Error())
	case errors.As(err, &invalid):
		RespondError(w, http.StatusConflict, invalid.Error())
	case errors.Is(err, store.ErrUpdateFailed):
		RespondError(w, http.StatusConflict, "task status changed concurrently, reload and retry")
	default:
		log.Error("task status update failed",
			"task_id", taskID,
			"action", action,
			"error", err)
		RespondError(w, http.StatusInternalServerError, "task status update failed")
	}
}

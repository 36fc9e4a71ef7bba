package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/fieldops/dispatch-api/internal/cache"
	"github.com/fieldops/dispatch-api/internal/domain"
	"github.com/fieldops/dispatch-api/internal/platform/logger"
	"github.com/fieldops/dispatch-api/internal/store"
)

// Status service errors.
var (
	// ErrNotAssignedToWorker is returned when a worker acts on a task that
	// is not assigned to them.
	ErrNotAssignedToWorker = errors.New("task is not assigned to this worker")

	// ErrNotReallocatable is returned by the admin reassignment path for
	// tasks whose status forbids reallocation. The wrapped message names
	// the specific refusal.
	ErrNotReallocatable = errors.New("task cannot be reallocated")
)

// summary counter fields kept in the per-worker cached summary.
const (
	summaryAssigned  = "assigned"
	summaryAccepted  = "accepted"
	summaryRejected  = "rejected"
	summaryCompleted = "completed"
)

// StatusService applies worker-initiated task transitions (accept, reject,
// complete) and admin reassignment. Each operation validates the transition
// against the status state machine, persists it through a guarded update,
// and reconciles the affected caches — this is the single call site per
// domain event for cache mutation.
//
// The guarded update means a transition racing an allocation run or another
// admin action loses cleanly with store.ErrUpdateFailed instead of
// clobbering newer state.
type StatusService struct {
	tasks  store.TaskStore
	cache  *cache.SyncLayer
	logger *slog.Logger
}

// NewStatusService wires a status service.
func NewStatusService(tasks store.TaskStore, cacheLayer *cache.SyncLayer, log *slog.Logger) *StatusService {
	if log == nil {
		log = slog.Default()
	}
	return &StatusService{tasks: tasks, cache: cacheLayer, logger: log}
}

// Accept records that the assigned worker has taken the task. Accepting is
// also how a worker takes back a task they previously rejected.
func (s *StatusService) Accept(ctx context.Context, taskID, workerID uuid.UUID) error {
	return s.workerTransition(ctx, taskID, workerID, domain.TaskStatusAccepted,
		func(from domain.TaskStatus) []summaryDelta {
			if from == domain.TaskStatusRejected {
				return []summaryDelta{{summaryRejected, -1}, {summaryAccepted, +1}}
			}
			return []summaryDelta{{summaryAssigned, -1}, {summaryAccepted, +1}}
		})
}

// Reject records that the assigned worker declined the task.
func (s *StatusService) Reject(ctx context.Context, taskID, workerID uuid.UUID) error {
	return s.workerTransition(ctx, taskID, workerID, domain.TaskStatusRejected,
		func(domain.TaskStatus) []summaryDelta {
			return []summaryDelta{{summaryAssigned, -1}, {summaryRejected, +1}}
		})
}

// Complete records that the worker finished the task. Completed is
// terminal.
func (s *StatusService) Complete(ctx context.Context, taskID, workerID uuid.UUID) error {
	return s.workerTransition(ctx, taskID, workerID, domain.TaskStatusCompleted,
		func(domain.TaskStatus) []summaryDelta {
			return []summaryDelta{{summaryAccepted, -1}, {summaryCompleted, +1}}
		})
}

// Reassign moves a task to the given worker on behalf of an admin. The
// reallocation policy decides eligibility by current status; accepted and
// completed tasks refuse with their specific messages. The automatic
// allocation engine never calls this.
func (s *StatusService) Reassign(ctx context.Context, taskID, workerID uuid.UUID) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	t, err := s.tasks.GetByID(ctx, taskID)
	if err != nil {
		return fmt.Errorf("failed to load task for reassignment: %w", err)
	}

	if ok, msg := t.Status.Reallocatable(); !ok {
		return fmt.Errorf("%w: %s", ErrNotReallocatable, msg)
	}

	previousWorker := t.AssignedWorkerID

	if err := s.tasks.UpdateStatus(ctx, taskID, t.Status, domain.TaskStatusAssigned, &workerID); err != nil {
		return fmt.Errorf("failed to reassign task: %w", err)
	}

	log.Info("task reassigned",
		"task_id", taskID,
		"worker_id", workerID,
		"previous_status", t.Status)

	// Both sides of the move go stale: the receiving worker's lists and,
	// when the task was already attached to someone, the losing worker's.
	s.cache.InvalidateTask(ctx, taskID)
	s.cache.InvalidateWorker(ctx, workerID)
	if previousWorker != nil && *previousWorker != workerID {
		s.cache.InvalidateWorker(ctx, *previousWorker)
	}
	return nil
}

// summaryDelta is one in-place adjustment to a worker's cached summary.
type summaryDelta struct {
	field string
	delta int
}

// workerTransition is the shared path for accept/reject/complete: verify
// ownership, validate the transition, persist it guarded on the current
// status, then reconcile caches via the delta fast path.
func (s *StatusService) workerTransition(
	ctx context.Context,
	taskID, workerID uuid.UUID,
	to domain.TaskStatus,
	deltas func(from domain.TaskStatus) []summaryDelta,
) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	t, err := s.tasks.GetByID(ctx, taskID)
	if err != nil {
		return fmt.Errorf("failed to load task: %w", err)
	}

	if t.AssignedWorkerID == nil || *t.AssignedWorkerID != workerID {
		return ErrNotAssignedToWorker
	}
	if !t.Status.CanTransition(to) {
		return &domain.ErrInvalidTransition{From: t.Status, To: to}
	}

	if err := s.tasks.UpdateStatus(ctx, taskID, t.Status, to, nil); err != nil {
		return fmt.Errorf("failed to transition task to %s: %w", to, err)
	}

	log.Info("task status updated",
		"task_id", taskID,
		"worker_id", workerID,
		"from", t.Status,
		"to", to)

	for _, d := range deltas(t.Status) {
		s.cache.ApplyWorkerSummaryDelta(ctx, workerID, d.field, d.delta)
	}
	s.cache.InvalidateTask(ctx, taskID)
	return nil
}

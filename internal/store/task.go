package store

import (
	"context"

	"github.com/google/uuid"

	"github.com/fieldops/dispatch-api/internal/domain"
)

// AssignmentPair is one proposed (task, worker) allocation submitted to
// ConditionalBulkAssign.
type AssignmentPair struct {
	TaskID   uuid.UUID
	WorkerID uuid.UUID
}

// TaskStore defines the task repository consumed by the allocation engine
// and the status service.
type TaskStore interface {
	// FindPendingGeocoded returns up to limit unassigned, geocoded tasks in
	// creation order.
	FindPendingGeocoded(ctx context.Context, limit int) ([]domain.Task, error)

	// ConditionalBulkAssign commits the proposed pairs inside one atomic
	// transaction. Each pair is applied as a guarded update that only takes
	// effect while the task is still unassigned; pairs whose guard no longer
	// holds are silently dropped. Returns the task ids actually committed.
	//
	// The guard and the mutation are evaluated atomically by the store, so
	// at most one worker is ever assigned to a task regardless of how many
	// allocation runs race. Re-applying a pair to an already-assigned task
	// is a no-op, which makes wholesale retries of a failed batch safe.
	ConditionalBulkAssign(ctx context.Context, pairs []AssignmentPair) ([]uuid.UUID, error)

	// CountActiveByWorker returns the number of active tasks (status
	// assigned or accepted) per worker id. Workers with no active tasks are
	// present in the map with a zero count.
	CountActiveByWorker(ctx context.Context, workerIDs []uuid.UUID) (map[uuid.UUID]int, error)

	// UpdateStatus transitions a task from expected current status to next,
	// guarded on the current status so a stale caller loses cleanly with
	// ErrUpdateFailed. workerID is required when next references a worker.
	UpdateStatus(ctx context.Context, taskID uuid.UUID, from, to domain.TaskStatus, workerID *uuid.UUID) error

	// GetByID returns one task.
	GetByID(ctx context.Context, taskID uuid.UUID) (*domain.Task, error)
}

// WorkerStore defines the worker repository consumed by the allocation
// engine.
type WorkerStore interface {
	// FindEligible returns every active worker with known coordinates.
	FindEligible(ctx context.Context) ([]domain.Worker, error)
}

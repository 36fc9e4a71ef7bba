package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Task-specific validation errors.
var (
	// ErrTaskIDEmpty is returned when a task ID is empty or nil.
	ErrTaskIDEmpty = errors.New("task ID cannot be empty")

	// ErrTaskStatusInvalid is returned when a task carries an unknown status.
	ErrTaskStatusInvalid = errors.New("task status is not a known status")

	// ErrTaskCoordinatesIncomplete is returned when exactly one of the two
	// coordinates is present.
	ErrTaskCoordinatesIncomplete = errors.New("task coordinates must be both present or both absent")

	// ErrTaskAssignmentInconsistent is returned when the status and the
	// assigned-worker reference disagree.
	ErrTaskAssignmentInconsistent = errors.New("task worker reference does not match its status")
)

// Task represents one delivery unit. Coordinates are nil until the task has
// been geocoded; a task is only eligible for allocation once geocoded and
// still unassigned. A task references at most one worker at a time.
type Task struct {
	ID               uuid.UUID  `json:"id"`
	Lat              *float64   `json:"lat"`
	Lon              *float64   `json:"lon"`
	Status           TaskStatus `json:"status"`
	AssignedWorkerID *uuid.UUID `json:"assigned_worker_id"`
	AssignedAt       *time.Time `json:"assigned_at"`
	CreatedAt        time.Time  `json:"created_at"`
}

// NewTask creates an unassigned task at the given coordinates with a fresh
// UUID. Pass nil coordinates for a task that has not been geocoded yet.
func NewTask(lat, lon *float64) (*Task, error) {
	t := &Task{
		ID:        uuid.New(),
		Lat:       lat,
		Lon:       lon,
		Status:    TaskStatusUnassigned,
		CreatedAt: time.Now().UTC(),
	}

	if err := t.Validate(); err != nil {
		return nil, err
	}
	return t, nil
}

// Validate checks the task's structural invariants. Repository
// implementations validate at the boundary so the engine can trust every
// Task it sees.
func (t *Task) Validate() error {
	if t.ID == uuid.Nil {
		return ErrTaskIDEmpty
	}
	if !t.Status.IsValid() {
		return ErrTaskStatusInvalid
	}
	if (t.Lat == nil) != (t.Lon == nil) {
		return ErrTaskCoordinatesIncomplete
	}

	// Unassigned tasks must not reference a worker; every other status
	// (including rejected, which keeps the declining worker for audit) must.
	hasWorker := t.AssignedWorkerID != nil && *t.AssignedWorkerID != uuid.Nil
	if t.Status == TaskStatusUnassigned && hasWorker {
		return ErrTaskAssignmentInconsistent
	}
	if t.Status != TaskStatusUnassigned && !hasWorker {
		return ErrTaskAssignmentInconsistent
	}

	return nil
}

// Geocoded reports whether the task has coordinates.
func (t *Task) Geocoded() bool {
	return t.Lat != nil && t.Lon != nil
}

// Allocatable reports whether the automatic engine may consider this task:
// geocoded and still unassigned.
func (t *Task) Allocatable() bool {
	return t.Geocoded() && t.Status == TaskStatusUnassigned
}

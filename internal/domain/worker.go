package domain

import (
	"errors"

	"github.com/google/uuid"
)

// Worker-specific validation errors.
var (
	// ErrWorkerIDEmpty is returned when a worker ID is empty or nil.
	ErrWorkerIDEmpty = errors.New("worker ID cannot be empty")

	// ErrWorkerCoordinatesIncomplete is returned when exactly one of the two
	// coordinates is present.
	ErrWorkerCoordinatesIncomplete = errors.New("worker coordinates must be both present or both absent")
)

// Worker is an allocation target. The engine treats workers as read-only
// snapshots for the duration of one allocation run; coordinates change only
// through the location-change workflow outside this core.
//
// A worker's active-task count is derived from Task records (status assigned
// or accepted) and is deliberately not a field here.
type Worker struct {
	ID     uuid.UUID `json:"id"`
	Lat    *float64  `json:"lat"`
	Lon    *float64  `json:"lon"`
	Active bool      `json:"active"`
}

// Validate checks the worker's structural invariants.
func (w *Worker) Validate() error {
	if w.ID == uuid.Nil {
		return ErrWorkerIDEmpty
	}
	if (w.Lat == nil) != (w.Lon == nil) {
		return ErrWorkerCoordinatesIncomplete
	}
	return nil
}

// Eligible reports whether the worker may receive assignments: active with
// known coordinates.
func (w *Worker) Eligible() bool {
	return w.Active && w.Lat != nil && w.Lon != nil
}

package domain

import "github.com/google/uuid"

// Allocation pairs a task with the worker chosen for it and the exact
// great-circle distance between them.
//
// A proposed allocation is a transient, in-memory intent. It becomes
// committed only when the store's conditional update actually changed a
// still-unassigned row; everything downstream of the commit (load counters,
// cache reconciliation, distance statistics) must be derived from the
// committed subset, never from the proposed list.
type Allocation struct {
	TaskID     uuid.UUID `json:"task_id"`
	WorkerID   uuid.UUID `json:"worker_id"`
	DistanceKm float64   `json:"distance_km"`
}

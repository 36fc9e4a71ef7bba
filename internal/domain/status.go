package domain

import "fmt"

// TaskStatus is the canonical task lifecycle state. It is defined once and
// used everywhere; there is no string-constant fallback path.
type TaskStatus string

// Task lifecycle states.
const (
	// TaskStatusUnassigned is the initial state of an imported task.
	TaskStatusUnassigned TaskStatus = "unassigned"

	// TaskStatusAssigned means the allocation engine (or an admin) has
	// paired the task with a worker who has not yet responded.
	TaskStatusAssigned TaskStatus = "assigned"

	// TaskStatusAccepted means the assigned worker has taken the task.
	TaskStatusAccepted TaskStatus = "accepted"

	// TaskStatusRejected means the assigned worker declined the task.
	TaskStatusRejected TaskStatus = "rejected"

	// TaskStatusCompleted is the terminal state.
	TaskStatusCompleted TaskStatus = "completed"
)

// validTransitions is the task status state machine.
//
//	unassigned → assigned
//	assigned   → accepted | rejected
//	accepted   → completed
//	rejected   → accepted (worker re-acceptance) | assigned (admin reallocation)
//	completed  → (terminal)
var validTransitions = map[TaskStatus][]TaskStatus{
	TaskStatusUnassigned: {TaskStatusAssigned},
	TaskStatusAssigned:   {TaskStatusAccepted, TaskStatusRejected},
	TaskStatusAccepted:   {TaskStatusCompleted},
	TaskStatusRejected:   {TaskStatusAccepted, TaskStatusAssigned},
	TaskStatusCompleted:  {},
}

// IsValid reports whether s is one of the defined task statuses.
func (s TaskStatus) IsValid() bool {
	_, ok := validTransitions[s]
	return ok
}

// CanTransition reports whether a task may move from s to next.
func (s TaskStatus) CanTransition(next TaskStatus) bool {
	for _, allowed := range validTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// reallocationRefusals maps the statuses that may not be reallocated to the
// message surfaced to the admin reassignment path.
var reallocationRefusals = map[TaskStatus]string{
	TaskStatusAccepted:  "task has been accepted by its worker and cannot be reallocated",
	TaskStatusCompleted: "task is completed and cannot be reallocated",
}

// Reallocatable reports whether a task in status s may be reassigned to a
// different worker by the admin reassignment path. Unassigned, assigned, and
// rejected tasks are reallocatable by default; accepted and completed tasks
// refuse with a status-specific message.
//
// Only the admin path consults this policy. The automatic allocation engine
// never reallocates; it exclusively performs unassigned → assigned.
func (s TaskStatus) Reallocatable() (bool, string) {
	if msg, refused := reallocationRefusals[s]; refused {
		return false, msg
	}
	return true, ""
}

// ErrInvalidTransition describes a rejected status transition.
type ErrInvalidTransition struct {
	From TaskStatus
	To   TaskStatus
}

// Error implements the error interface.
func (e *ErrInvalidTransition) Error() string {
	return fmt.Sprintf("invalid task status transition from %q to %q", e.From, e.To)
}

// Package domain contains the core entities of the dispatch service: tasks,
// workers, allocations, and the task status state machine.
//
// Entities are plain tagged structs with explicit nullable-coordinate and
// enum-status fields. Validation happens at the repository boundary; the
// allocation engine assumes any Task or Worker it receives already passed
// Validate.
package domain

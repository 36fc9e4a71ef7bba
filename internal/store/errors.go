package store

import (
	"errors"
	"fmt"
)

// Common store errors used across all store implementations.
var (
	// ErrNotFound is returned when a requested entity does not exist in the
	// store.
	ErrNotFound = errors.New("entity not found")

	// ErrStoreUnavailable is returned when a repository call fails at the
	// infrastructure level (connection refused, transaction could not run).
	// Callers may retry the whole operation: every guarded write in this
	// store is idempotent, so wholesale retries are safe.
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrInvalidEntity is returned when an entity fails validation before
	// being stored. Check the wrapped error for specific validation details.
	ErrInvalidEntity = errors.New("invalid entity")

	// ErrUpdateFailed is returned when a guarded update matched no row, for
	// example a status transition whose precondition no longer holds.
	ErrUpdateFailed = errors.New("update failed")

	// ErrTransactionFailed is returned when a database transaction fails to
	// commit or when an operation within a transaction fails.
	ErrTransactionFailed = errors.New("transaction failed")

	// Entity-specific "not found" errors

	// ErrTaskNotFound indicates that the requested task does not exist.
	ErrTaskNotFound = fmt.Errorf("%w: task", ErrNotFound)

	// ErrWorkerNotFound indicates that the requested worker does not exist.
	ErrWorkerNotFound = fmt.Errorf("%w: worker", ErrNotFound)
)

// IsNotFoundError checks if the error is any kind of "not found" error.
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsRetryable checks whether the error indicates a store-level failure that
// the caller may retry wholesale.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrStoreUnavailable) || errors.Is(err, ErrTransactionFailed)
}

package postgres

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/fieldops/dispatch-api/internal/store"
)

// PostgreSQL error codes this service cares about.
const (
	// uniqueViolationCode is the PostgreSQL error code for unique constraint violations
	uniqueViolationCode = "23505"

	// foreignKeyViolationCode is the PostgreSQL error code for foreign key violations
	foreignKeyViolationCode = "23503"

	// checkViolationCode is the PostgreSQL error code for check constraint violations
	checkViolationCode = "23514"

	// connectionFailureClass is the two-character class prefix for
	// connection exceptions (08xxx).
	connectionFailureClass = "08"
)

// MapError maps a database error to an appropriate store error. It wraps
// the original error to preserve context. All database operations in this
// package route their errors through here so callers can classify with
// errors.Is alone.
func MapError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %v", store.ErrNotFound, err)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case pgErr.Code == uniqueViolationCode:
			return fmt.Errorf("%w: unique violation (%s): %v",
				store.ErrInvalidEntity, pgErr.ConstraintName, err)
		case pgErr.Code == foreignKeyViolationCode:
			return fmt.Errorf("%w: foreign key violation (%s): %v",
				store.ErrInvalidEntity, pgErr.ConstraintName, err)
		case pgErr.Code == checkViolationCode:
			return fmt.Errorf("%w: check constraint violation (%s): %v",
				store.ErrInvalidEntity, pgErr.ConstraintName, err)
		case len(pgErr.Code) >= 2 && pgErr.Code[:2] == connectionFailureClass:
			return fmt.Errorf("%w: %v", store.ErrStoreUnavailable, err)
		}
		return err
	}

	// Anything that is not a recognized server-side error is treated as an
	// infrastructure failure: driver errors, closed pools, timeouts. These
	// are the retryable class.
	return fmt.Errorf("%w: %v", store.ErrStoreUnavailable, err)
}

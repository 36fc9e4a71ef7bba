// Package postgres provides PostgreSQL implementations of the store
// interfaces. Entities are validated at this boundary; database errors are
// mapped to the store sentinel errors by MapError.
package postgres

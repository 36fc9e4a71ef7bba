package cache

import (
	"context"
	"errors"
	"time"
)

// Cache errors.
var (
	// ErrCacheMiss is returned by Client.Get when the key does not exist.
	ErrCacheMiss = errors.New("cache miss")

	// ErrCacheUnavailable wraps infrastructure-level cache failures. It is
	// always recovered inside this package and never reaches an allocation
	// result.
	ErrCacheUnavailable = errors.New("cache unavailable")

	// ErrCircuitOpen is returned while the circuit breaker is open and
	// calls fail fast without touching the network.
	ErrCircuitOpen = errors.New("cache circuit breaker open")

	// ErrVersionConflict is returned by versioned writes whose version does
	// not exceed the currently stored one. The losing writer falls back to
	// invalidation.
	ErrVersionConflict = errors.New("cache version conflict")
)

// Client is the narrow key-value cache surface the sync layer consumes.
// Implementations live under platform; tests use in-package fakes.
type Client interface {
	// Get returns the value at key, or ErrCacheMiss.
	Get(ctx context.Context, key string) (string, error)

	// Set stores value at key with the given TTL.
	Set(ctx context.Context, key, value string, ttl time.Duration) error

	// Del removes the given keys. Missing keys are not an error.
	Del(ctx context.Context, keys ...string) error

	// ScanKeys returns every key matching the glob-style pattern.
	ScanKeys(ctx context.Context, pattern string) ([]string, error)

	// Ping checks connectivity.
	Ping(ctx context.Context) error
}

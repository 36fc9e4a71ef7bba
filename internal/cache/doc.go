// Package cache implements the cache synchronization layer: a circuit
// breaker guarding an external key-value cache, pattern-based invalidation,
// an in-place delta fast path for hot counters, and optimistic versioning
// for racing snapshot publishers.
//
// The cache is never authoritative. Every public method is fail-open: on
// any cache failure the layer logs, returns a miss or swallows the error,
// and the caller reads from the store instead. A cache outage must never
// fail an allocation or a task-status operation.
package cache

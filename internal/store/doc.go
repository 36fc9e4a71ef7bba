// Package store provides abstractions for data persistence: the repository
// interfaces consumed by the allocation core, the DBTX database abstraction,
// transaction helpers, and the sentinel errors shared by all store
// implementations.
package store

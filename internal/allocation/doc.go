// Package allocation implements the task allocation engine: per-batch
// worker selection by distance and load, guarded bulk commit through the
// task store, and cache reconciliation from the committed subset.
//
// The engine is a greedy per-batch heuristic, not a global optimizer.
// Concurrent runs are safe without in-process locking because the store's
// conditional updates decide every contested assignment atomically.
package allocation

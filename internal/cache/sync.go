package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fieldops/dispatch-api/internal/domain"
)

// Cache key scheme. A worker or task mutation invalidates everything under
// the entity's prefix rather than patching each cached representation.
const (
	keyPrefix          = "dispatch"
	keyWorkersSnapshot = keyPrefix + ":workers:snapshot"
	keyUnassignedTasks = keyPrefix + ":tasks:unassigned"
	keyRunStats        = keyPrefix + ":stats:allocation:last"

	versionSuffix = ":ver"
)

func workerKeyPattern(id uuid.UUID) string {
	return fmt.Sprintf("%s:worker:%s:*", keyPrefix, id)
}

func workerSummaryKey(id uuid.UUID) string {
	return fmt.Sprintf("%s:worker:%s:summary", keyPrefix, id)
}

func taskKeyPattern(id uuid.UUID) string {
	return fmt.Sprintf("%s:task:%s:*", keyPrefix, id)
}

// SyncConfig tunes one SyncLayer instance.
type SyncConfig struct {
	// OpTimeout bounds every single cache call so a hung cache cannot block
	// allocation; a timeout counts as a breaker failure.
	OpTimeout time.Duration

	// DefaultTTL applies to every value written by the layer.
	DefaultTTL time.Duration

	// BreakerFailures and BreakerRecovery configure the circuit breaker.
	BreakerFailures int
	BreakerRecovery time.Duration
}

// DefaultSyncConfig returns the production defaults.
func DefaultSyncConfig() SyncConfig {
	return SyncConfig{
		OpTimeout:       500 * time.Millisecond,
		DefaultTTL:      5 * time.Minute,
		BreakerFailures: DefaultBreakerFailures,
		BreakerRecovery: DefaultBreakerRecovery,
	}
}

// Stats is a snapshot of the layer's counters and breaker state.
type Stats struct {
	BreakerState        BreakerState `json:"breaker_state"`
	ConsecutiveFailures int          `json:"consecutive_failures"`
	Hits                int64        `json:"hits"`
	Misses              int64        `json:"misses"`
	Errors              int64        `json:"errors"`
	Invalidations       int64        `json:"invalidations"`
	VersionConflicts    int64        `json:"version_conflicts"`
	DeltaFallbacks      int64        `json:"delta_fallbacks"`
}

// SyncLayer keeps derived read caches approximately consistent with the
// store. It is strictly non-authoritative: every public method degrades
// gracefully, so a cache outage can never fail an allocation or a status
// operation. Callers receiving a miss (ok == false) read from the store.
type SyncLayer struct {
	client  Client
	breaker *Breaker
	cfg     SyncConfig
	logger  *slog.Logger

	mu    sync.Mutex
	stats Stats
}

// NewSyncLayer creates a sync layer over the given cache client. Each layer
// owns its breaker instance.
func NewSyncLayer(client Client, cfg SyncConfig, log *slog.Logger) *SyncLayer {
	if log == nil {
		log = slog.Default()
	}
	return &SyncLayer{
		client:  client,
		breaker: NewBreaker(cfg.BreakerFailures, cfg.BreakerRecovery),
		cfg:     cfg,
		logger:  log,
	}
}

// GetWorkers returns the cached worker snapshot, or ok == false on a miss
// or any cache failure.
func (s *SyncLayer) GetWorkers(ctx context.Context) ([]domain.Worker, bool) {
	var workers []domain.Worker
	if !s.getJSON(ctx, keyWorkersSnapshot, &workers) {
		return nil, false
	}
	return workers, true
}

// SetWorkers publishes a worker snapshot under optimistic versioning. The
// write is accepted only if version exceeds the currently stored version;
// otherwise ErrVersionConflict is returned and the stale snapshot is left
// for the winning writer. Infrastructure failures are swallowed (fail-open)
// and return nil.
func (s *SyncLayer) SetWorkers(ctx context.Context, workers []domain.Worker, version int64) error {
	payload, err := json.Marshal(workers)
	if err != nil {
		s.logger.Error("failed to marshal worker snapshot", "error", err)
		return nil
	}
	return s.setVersioned(ctx, keyWorkersSnapshot, string(payload), version)
}

// GetUnassignedTasks returns the cached unassigned-task list, or ok == false.
func (s *SyncLayer) GetUnassignedTasks(ctx context.Context) ([]domain.Task, bool) {
	var tasks []domain.Task
	if !s.getJSON(ctx, keyUnassignedTasks, &tasks) {
		return nil, false
	}
	return tasks, true
}

// SetUnassignedTasks replaces the cached unassigned-task list.
func (s *SyncLayer) SetUnassignedTasks(ctx context.Context, tasks []domain.Task) {
	payload, err := json.Marshal(tasks)
	if err != nil {
		s.logger.Error("failed to marshal unassigned tasks", "error", err)
		return
	}
	s.trySet(ctx, keyUnassignedTasks, string(payload))
}

// InvalidateWorker drops every cached representation of the worker: all
// paginated/sorted task-list variants, the summary, and the shared worker
// snapshot. Stale-then-rebuilt beats patching each variant in place.
func (s *SyncLayer) InvalidateWorker(ctx context.Context, workerID uuid.UUID) {
	s.invalidatePattern(ctx, workerKeyPattern(workerID))
	s.tryDel(ctx, keyWorkersSnapshot, keyWorkersSnapshot+versionSuffix)
}

// InvalidateTask drops every cached representation of the task and the
// unassigned-task list it may appear in.
func (s *SyncLayer) InvalidateTask(ctx context.Context, taskID uuid.UUID) {
	s.invalidatePattern(ctx, taskKeyPattern(taskID))
	s.tryDel(ctx, keyUnassignedTasks)
}

// ApplyWorkerSummaryDelta adjusts one integer field of a worker's cached
// summary in place. This is the hot-path alternative to invalidation for
// status-transition counters. Any read, parse, or write failure on this
// path degrades to full invalidation of the worker's keys — never to a
// silently wrong cached value.
func (s *SyncLayer) ApplyWorkerSummaryDelta(ctx context.Context, workerID uuid.UUID, field string, delta int) {
	key := workerSummaryKey(workerID)

	raw, err := s.get(ctx, key)
	if err != nil {
		if err != ErrCacheMiss {
			s.fallbackToInvalidation(ctx, workerID, "summary read failed", err)
		}
		return
	}

	var summary map[string]int
	if err := json.Unmarshal([]byte(raw), &summary); err != nil {
		s.fallbackToInvalidation(ctx, workerID, "summary parse failed", err)
		return
	}

	summary[field] += delta
	if summary[field] < 0 {
		summary[field] = 0
	}

	payload, err := json.Marshal(summary)
	if err != nil {
		s.fallbackToInvalidation(ctx, workerID, "summary marshal failed", err)
		return
	}
	if err := s.set(ctx, key, string(payload)); err != nil {
		s.fallbackToInvalidation(ctx, workerID, "summary write failed", err)
	}
}

// PublishRunStats caches the outcome of the latest allocation run for the
// observability endpoints.
func (s *SyncLayer) PublishRunStats(ctx context.Context, result any) {
	payload, err := json.Marshal(result)
	if err != nil {
		s.logger.Error("failed to marshal run stats", "error", err)
		return
	}
	s.trySet(ctx, keyRunStats, string(payload))
}

// Ping checks cache connectivity through the breaker.
func (s *SyncLayer) Ping(ctx context.Context) error {
	return s.do(ctx, func(ctx context.Context) error {
		return s.client.Ping(ctx)
	})
}

// Stats returns a snapshot of the layer's counters and breaker state.
func (s *SyncLayer) Stats() Stats {
	s.mu.Lock()
	out := s.stats
	s.mu.Unlock()

	out.BreakerState = s.breaker.State()
	out.ConsecutiveFailures = s.breaker.ConsecutiveFailures()
	return out
}

// do runs one cache call under the breaker with the per-call timeout.
func (s *SyncLayer) do(ctx context.Context, fn func(ctx context.Context) error) error {
	return s.breaker.Do(func() error {
		callCtx, cancel := context.WithTimeout(ctx, s.cfg.OpTimeout)
		defer cancel()
		return fn(callCtx)
	})
}

// get reads one key through the breaker. A miss is not a breaker failure.
func (s *SyncLayer) get(ctx context.Context, key string) (string, error) {
	var value string
	err := s.do(ctx, func(ctx context.Context) error {
		v, err := s.client.Get(ctx, key)
		if err == ErrCacheMiss {
			value = ""
			return nil
		}
		value = v
		return err
	})
	if err != nil {
		s.count(func(st *Stats) { st.Errors++ })
		return "", fmt.Errorf("%w: %v", ErrCacheUnavailable, err)
	}
	if value == "" {
		s.count(func(st *Stats) { st.Misses++ })
		return "", ErrCacheMiss
	}
	s.count(func(st *Stats) { st.Hits++ })
	return value, nil
}

func (s *SyncLayer) set(ctx context.Context, key, value string) error {
	err := s.do(ctx, func(ctx context.Context) error {
		return s.client.Set(ctx, key, value, s.cfg.DefaultTTL)
	})
	if err != nil {
		s.count(func(st *Stats) { st.Errors++ })
		return fmt.Errorf("%w: %v", ErrCacheUnavailable, err)
	}
	return nil
}

// trySet is set with the error logged and swallowed.
func (s *SyncLayer) trySet(ctx context.Context, key, value string) {
	if err := s.set(ctx, key, value); err != nil {
		s.logger.Warn("cache write failed", "key", key, "error", err)
	}
}

func (s *SyncLayer) tryDel(ctx context.Context, keys ...string) {
	err := s.do(ctx, func(ctx context.Context) error {
		return s.client.Del(ctx, keys...)
	})
	if err != nil {
		s.count(func(st *Stats) { st.Errors++ })
		s.logger.Warn("cache delete failed", "keys", keys, "error", err)
		return
	}
	s.count(func(st *Stats) { st.Invalidations++ })
}

// getJSON reads and unmarshals one key; false on miss or any failure.
func (s *SyncLayer) getJSON(ctx context.Context, key string, out any) bool {
	raw, err := s.get(ctx, key)
	if err != nil {
		if err != ErrCacheMiss {
			s.logger.Warn("cache read failed, falling back to store", "key", key, "error", err)
		}
		return false
	}
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		s.logger.Warn("corrupt cache entry, dropping", "key", key, "error", err)
		s.tryDel(ctx, key)
		return false
	}
	return true
}

// setVersioned writes value only when version exceeds the stored version
// counter at <key>:ver. Both cells share the layer TTL.
//
// The comparison and the write are separate cache calls, so two writers
// racing through the window can both pass the check and the guard only
// holds for non-overlapping writers. The cache is non-authoritative and
// every stale entry is bounded by its TTL, so an occasional lost update
// here is tolerable; readers needing the truth go to the store.
func (s *SyncLayer) setVersioned(ctx context.Context, key, value string, version int64) error {
	verKey := key + versionSuffix

	current, err := s.get(ctx, verKey)
	if err != nil && err != ErrCacheMiss {
		s.logger.Warn("versioned write skipped, cache unavailable", "key", key, "error", err)
		return nil
	}

	if err == nil {
		stored, parseErr := strconv.ParseInt(current, 10, 64)
		if parseErr == nil && version <= stored {
			s.count(func(st *Stats) { st.VersionConflicts++ })
			return fmt.Errorf("%w: key %s version %d <= stored %d",
				ErrVersionConflict, key, version, stored)
		}
	}

	if err := s.set(ctx, key, value); err != nil {
		s.logger.Warn("versioned write failed", "key", key, "error", err)
		return nil
	}
	s.trySet(ctx, verKey, strconv.FormatInt(version, 10))
	return nil
}

// invalidatePattern scans and deletes every key matching pattern.
func (s *SyncLayer) invalidatePattern(ctx context.Context, pattern string) {
	var keys []string
	err := s.do(ctx, func(ctx context.Context) error {
		found, err := s.client.ScanKeys(ctx, pattern)
		keys = found
		return err
	})
	if err != nil {
		s.count(func(st *Stats) { st.Errors++ })
		s.logger.Warn("cache scan failed", "pattern", pattern, "error", err)
		return
	}
	if len(keys) > 0 {
		s.tryDel(ctx, keys...)
	}
}

// fallbackToInvalidation is the delta path's degradation: drop the worker's
// keys instead of risking a wrong cached value.
func (s *SyncLayer) fallbackToInvalidation(ctx context.Context, workerID uuid.UUID, reason string, err error) {
	s.count(func(st *Stats) { st.DeltaFallbacks++ })
	s.logger.Warn("summary delta degraded to invalidation",
		"worker_id", workerID,
		"reason", reason,
		"error", err)
	s.InvalidateWorker(ctx, workerID)
}

func (s *SyncLayer) count(apply func(*Stats)) {
	s.mu.Lock()
	apply(&s.stats)
	s.mu.Unlock()
}

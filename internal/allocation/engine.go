package allocation

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/fieldops/dispatch-api/internal/allocation/perf"
	"github.com/fieldops/dispatch-api/internal/allocation/spatial"
	"github.com/fieldops/dispatch-api/internal/cache"
	"github.com/fieldops/dispatch-api/internal/domain"
	"github.com/fieldops/dispatch-api/internal/platform/logger"
	"github.com/fieldops/dispatch-api/internal/store"
)

// OpAllocationRun is the performance-monitor operation name for one run.
const OpAllocationRun = "allocation_run"

// Config holds the engine tunables.
type Config struct {
	// MaxTasksPerWorker caps concurrent active tasks per worker. Candidates
	// at or above the cap are excluded before scoring.
	MaxTasksPerWorker int

	// MaxRadiusKm bounds the candidate search. Tasks with no worker inside
	// this radius fail allocation for the run.
	MaxRadiusKm float64

	// CellSizeDegrees is the spatial-index cell edge (~1.1 km at the
	// equator for 0.01°).
	CellSizeDegrees float64
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		MaxTasksPerWorker: 50,
		MaxRadiusKm:       10,
		CellSizeDegrees:   0.01,
	}
}

// Engine orchestrates one allocation run: fetch pending geocoded tasks and
// eligible workers, build the spatial index, score and select a worker per
// task, commit the batch through the store's guarded bulk assignment, then
// reconcile caches and record metrics from the committed subset.
//
// Runs may race with other runs, manual admin assignment, and worker
// accept/reject actions. No in-process locking serializes them; correctness
// rests entirely on the store's atomic conditional updates.
type Engine struct {
	tasks   store.TaskStore
	workers store.WorkerStore
	cache   *cache.SyncLayer
	monitor *perf.Monitor
	cfg     Config
	logger  *slog.Logger
}

// NewEngine wires an engine. monitor and log may be nil; a nil cache layer
// is not allowed (pass one backed by a dead client instead, it fails open).
func NewEngine(
	tasks store.TaskStore,
	workers store.WorkerStore,
	cacheLayer *cache.SyncLayer,
	monitor *perf.Monitor,
	cfg Config,
	log *slog.Logger,
) *Engine {
	if monitor == nil {
		monitor = perf.NewMonitor(perf.DefaultCapacity)
	}
	if log == nil {
		log = slog.Default()
	}
	return &Engine{
		tasks:   tasks,
		workers: workers,
		cache:   cacheLayer,
		monitor: monitor,
		cfg:     cfg,
		logger:  log,
	}
}

// Allocate runs one allocation batch of up to batchSize tasks.
//
// Per-task misses (no candidate in radius, all candidates at capacity, lost
// commit race) are counted in Result.Failed, never returned as an error.
// Store-level failures abort the whole run with a single wrapped retryable
// error and leave no partial state: the commit step is one atomic
// transaction, and its guarded updates are idempotent under retry.
func (e *Engine) Allocate(ctx context.Context, batchSize int) (*Result, error) {
	log := logger.FromContextOrDefault(ctx, e.logger)
	done := e.monitor.Start(OpAllocationRun)
	start := time.Now()

	tasks, err := e.tasks.FindPendingGeocoded(ctx, batchSize)
	if err != nil {
		done(false)
		return nil, fmt.Errorf("allocation run aborted fetching tasks: %w", err)
	}

	eligible, err := e.workers.FindEligible(ctx)
	if err != nil {
		done(false)
		return nil, fmt.Errorf("allocation run aborted fetching workers: %w", err)
	}

	result := &Result{
		TotalTasks:        len(tasks),
		WorkerUtilization: make(map[string]int),
	}

	if len(tasks) == 0 {
		log.Info("allocation run found no pending tasks")
		result.DurationMs = time.Since(start).Milliseconds()
		done(true)
		return result, nil
	}

	idx := spatial.Build(eligible, e.cfg.CellSizeDegrees)

	baseLoads, err := e.fetchLoads(ctx, eligible)
	if err != nil {
		done(false)
		return nil, fmt.Errorf("allocation run aborted fetching worker loads: %w", err)
	}

	// loads tracks capacity within this run: incremented per proposal so a
	// single batch cannot overload one worker. Durable bookkeeping below
	// uses baseLoads plus the committed subset only.
	loads := make(map[uuid.UUID]int, len(baseLoads))
	for id, n := range baseLoads {
		loads[id] = n
	}

	proposed := e.propose(tasks, idx, loads, result, log)

	committed := make(map[uuid.UUID]bool)
	if len(proposed) > 0 {
		pairs := make([]store.AssignmentPair, 0, len(proposed))
		for _, a := range proposed {
			pairs = append(pairs, store.AssignmentPair{TaskID: a.TaskID, WorkerID: a.WorkerID})
		}

		committedIDs, err := e.tasks.ConditionalBulkAssign(ctx, pairs)
		if err != nil {
			done(false)
			return nil, fmt.Errorf("allocation commit failed: %w", err)
		}
		for _, id := range committedIDs {
			committed[id] = true
		}
	}

	// Everything from here on derives from the committed subset. A proposal
	// whose guard no longer held was claimed by another writer and counts
	// as failed for this run.
	var totalDistanceKm float64
	perWorker := make(map[uuid.UUID]int)
	for _, a := range proposed {
		if !committed[a.TaskID] {
			result.Failed++
			log.Debug("proposed allocation lost commit race",
				"task_id", a.TaskID,
				"worker_id", a.WorkerID)
			continue
		}
		result.Allocated++
		totalDistanceKm += a.DistanceKm
		perWorker[a.WorkerID]++
	}

	result.AffectedWorkers = len(perWorker)
	if result.Allocated > 0 {
		result.AvgDistanceKm = totalDistanceKm / float64(result.Allocated)
	}
	if result.TotalTasks > 0 {
		result.SuccessRate = float64(result.Allocated) / float64(result.TotalTasks) * 100
	}
	for workerID, committedCount := range perWorker {
		result.WorkerUtilization[workerID.String()] = baseLoads[workerID] + committedCount
	}

	result.DurationMs = time.Since(start).Milliseconds()

	e.reconcileCaches(ctx, tasks, eligible, proposed, committed, perWorker, result, start)
	done(true)

	log.Info("allocation run completed",
		"total_tasks", result.TotalTasks,
		"allocated", result.Allocated,
		"failed", result.Failed,
		"affected_workers", result.AffectedWorkers,
		"duration_ms", result.DurationMs)

	return result, nil
}

// PerformanceStats returns aggregate timing/outcome statistics for
// allocation runs.
func (e *Engine) PerformanceStats() perf.Stats {
	return e.monitor.Stats(OpAllocationRun)
}

// AllocationTrend classifies the recent success-rate direction.
func (e *Engine) AllocationTrend() perf.Trend {
	return e.monitor.TrendFor(OpAllocationRun)
}

// CacheStats returns the cache layer's counters and breaker state.
func (e *Engine) CacheStats() cache.Stats {
	return e.cache.Stats()
}

// fetchLoads returns the current active-task count for every eligible
// worker.
func (e *Engine) fetchLoads(ctx context.Context, workers []domain.Worker) (map[uuid.UUID]int, error) {
	if len(workers) == 0 {
		return map[uuid.UUID]int{}, nil
	}
	ids := make([]uuid.UUID, 0, len(workers))
	for _, w := range workers {
		ids = append(ids, w.ID)
	}
	return e.tasks.CountActiveByWorker(ctx, ids)
}

// propose selects a worker per task in creation order, mutating loads as it
// goes and counting NoCandidate misses into result.
func (e *Engine) propose(
	tasks []domain.Task,
	idx *spatial.Index,
	loads map[uuid.UUID]int,
	result *Result,
	log *slog.Logger,
) []domain.Allocation {
	var proposed []domain.Allocation

	for _, t := range tasks {
		if !t.Geocoded() {
			// The repository contract excludes these; a stray one simply
			// fails for the run.
			result.Failed++
			continue
		}

		candidates := idx.QueryRadius(*t.Lat, *t.Lon, e.cfg.MaxRadiusKm)

		// Candidates arrive unordered from the grid cells; sort by worker
		// id so score ties break deterministically.
		sort.Slice(candidates, func(i, j int) bool {
			return candidates[i].Worker.ID.String() < candidates[j].Worker.ID.String()
		})

		best, ok := ChooseWorker(candidates, loads, e.cfg.MaxTasksPerWorker)
		if !ok {
			result.Failed++
			log.Debug("no eligible worker for task",
				"task_id", t.ID,
				"candidates_in_radius", len(candidates))
			continue
		}

		proposed = append(proposed, domain.Allocation{
			TaskID:     t.ID,
			WorkerID:   best.Worker.ID,
			DistanceKm: best.DistanceKm,
		})
		loads[best.Worker.ID]++
	}

	return proposed
}

// reconcileCaches refreshes the read caches affected by the committed
// subset. Cache failures are logged and swallowed inside the sync layer;
// nothing here can fail the run.
func (e *Engine) reconcileCaches(
	ctx context.Context,
	tasks []domain.Task,
	eligible []domain.Worker,
	proposed []domain.Allocation,
	committed map[uuid.UUID]bool,
	perWorker map[uuid.UUID]int,
	result *Result,
	start time.Time,
) {
	for workerID := range perWorker {
		e.cache.InvalidateWorker(ctx, workerID)
	}

	// Republish the worker snapshot versioned by run start time, so a slower
	// concurrent run cannot overwrite a fresher snapshot.
	if err := e.cache.SetWorkers(ctx, eligible, start.UnixNano()); err != nil {
		e.logger.Debug("worker snapshot superseded by a newer run", "error", err)
	}
	for _, a := range proposed {
		if committed[a.TaskID] {
			e.cache.InvalidateTask(ctx, a.TaskID)
		}
	}

	// Warm the unassigned-task list with the batch's leftovers so the next
	// read doesn't pay a full store round trip.
	remaining := make([]domain.Task, 0, len(tasks))
	for _, t := range tasks {
		if !committed[t.ID] {
			remaining = append(remaining, t)
		}
	}
	e.cache.SetUnassignedTasks(ctx, remaining)

	e.cache.PublishRunStats(ctx, result)
}

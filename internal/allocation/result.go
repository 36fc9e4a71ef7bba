package allocation

// Result is the structured outcome of one allocation run. It is returned
// even when some or all tasks failed to allocate; only store-level failures
// surface as an error instead.
type Result struct {
	// TotalTasks is the number of pending geocoded tasks in the batch.
	TotalTasks int `json:"total_tasks"`

	// Allocated counts committed allocations: proposals whose guarded
	// update actually changed a still-unassigned row.
	Allocated int `json:"allocated"`

	// Failed counts tasks that found no candidate (none in radius, or all
	// at capacity) plus proposals that lost the commit race.
	Failed int `json:"failed"`

	// AffectedWorkers is the number of distinct workers that received at
	// least one committed allocation.
	AffectedWorkers int `json:"affected_workers"`

	// SuccessRate is Allocated/TotalTasks as a percentage.
	SuccessRate float64 `json:"success_rate"`

	// DurationMs is the wall-clock duration of the run.
	DurationMs int64 `json:"duration_ms"`

	// AvgDistanceKm is the mean task-to-worker distance over committed
	// allocations only.
	AvgDistanceKm float64 `json:"avg_distance_km"`

	// WorkerUtilization maps each affected worker id to its active-task
	// count after the commit (pre-run load plus committed assignments).
	WorkerUtilization map[string]int `json:"worker_utilization"`
}

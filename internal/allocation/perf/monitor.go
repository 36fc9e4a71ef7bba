// Package perf provides lightweight in-process operation metrics for the
// allocation core: per-operation timing records in a bounded ring buffer,
// aggregate statistics, and a success-rate trend classifier.
//
// The monitor is purely observational; it never affects allocation outcomes.
package perf

import (
	"sync"
	"time"
)

// DefaultCapacity is the default ring-buffer size.
const DefaultCapacity = 1000

// trendWindow is how many of the most recent records the trend classifier
// compares, split into halves.
const trendWindow = 20

// trendThreshold is the success-rate delta, in percentage points, beyond
// which the trend counts as improving or declining.
const trendThreshold = 5.0

// Trend classifies the direction of recent success rates.
type Trend string

// Trend values.
const (
	TrendImproving Trend = "improving"
	TrendStable    Trend = "stable"
	TrendDeclining Trend = "declining"
)

// record is one completed operation.
type record struct {
	op       string
	start    time.Time
	duration time.Duration
	success  bool
}

// Stats aggregates the retained records of one operation.
type Stats struct {
	Operation   string        `json:"operation"`
	Count       int           `json:"count"`
	SuccessRate float64       `json:"success_rate"`
	MinDuration time.Duration `json:"min_duration"`
	MaxDuration time.Duration `json:"max_duration"`
	AvgDuration time.Duration `json:"avg_duration"`
}

// Monitor records operation timing and outcomes in a bounded ring buffer.
// All methods are safe for concurrent use.
type Monitor struct {
	mu       sync.Mutex
	records  []record
	capacity int
	next     int
	full     bool
	now      func() time.Time
}

// NewMonitor creates a monitor retaining up to capacity records. A
// non-positive capacity falls back to DefaultCapacity.
func NewMonitor(capacity int) *Monitor {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Monitor{
		records:  make([]record, capacity),
		capacity: capacity,
		now:      time.Now,
	}
}

// Start begins timing the named operation and returns a function that
// records the outcome when called:
//
//	done := monitor.Start("allocation_run")
//	...
//	done(err == nil)
func (m *Monitor) Start(op string) func(success bool) {
	start := m.now()
	return func(success bool) {
		end := m.now()
		m.mu.Lock()
		defer m.mu.Unlock()

		m.records[m.next] = record{
			op:       op,
			start:    start,
			duration: end.Sub(start),
			success:  success,
		}
		m.next = (m.next + 1) % m.capacity
		if m.next == 0 {
			m.full = true
		}
	}
}

// Stats returns aggregate statistics for the named operation over the
// retained records. A zero-count Stats is returned when nothing has been
// recorded for op.
func (m *Monitor) Stats(op string) Stats {
	m.mu.Lock()
	defer m.mu.Unlock()

	stats := Stats{Operation: op}
	var successes int
	var total time.Duration

	for _, r := range m.ordered() {
		if r.op != op {
			continue
		}
		if stats.Count == 0 || r.duration < stats.MinDuration {
			stats.MinDuration = r.duration
		}
		if r.duration > stats.MaxDuration {
			stats.MaxDuration = r.duration
		}
		total += r.duration
		stats.Count++
		if r.success {
			successes++
		}
	}

	if stats.Count > 0 {
		stats.SuccessRate = float64(successes) / float64(stats.Count) * 100
		stats.AvgDuration = total / time.Duration(stats.Count)
	}
	return stats
}

// TrendFor classifies the success-rate direction of the named operation by
// comparing the first and second half of its last trendWindow records. A
// delta above +5 percentage points is improving, below −5 declining,
// anything else stable. Fewer than two records is always stable.
func (m *Monitor) TrendFor(op string) Trend {
	m.mu.Lock()
	defer m.mu.Unlock()

	var recent []record
	for _, r := range m.ordered() {
		if r.op == op {
			recent = append(recent, r)
		}
	}
	if len(recent) > trendWindow {
		recent = recent[len(recent)-trendWindow:]
	}
	if len(recent) < 2 {
		return TrendStable
	}

	half := len(recent) / 2
	delta := successRate(recent[half:]) - successRate(recent[:half])

	switch {
	case delta > trendThreshold:
		return TrendImproving
	case delta < -trendThreshold:
		return TrendDeclining
	default:
		return TrendStable
	}
}

// ordered returns retained records oldest first. Caller must hold mu.
func (m *Monitor) ordered() []record {
	if !m.full {
		return m.records[:m.next]
	}
	out := make([]record, 0, m.capacity)
	out = append(out, m.records[m.next:]...)
	out = append(out, m.records[:m.next]...)
	return out
}

func successRate(records []record) float64 {
	if len(records) == 0 {
		return 0
	}
	var successes int
	for _, r := range records {
		if r.success {
			successes++
		}
	}
	return float64(successes) / float64(len(records)) * 100
}

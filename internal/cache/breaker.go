package cache

import (
	"sync"
	"time"
)

// BreakerState is the circuit breaker's current mode.
type BreakerState string

// Circuit breaker states.
const (
	// BreakerClosed: calls pass through; consecutive failures are counted.
	BreakerClosed BreakerState = "closed"

	// BreakerOpen: calls fail fast until the recovery timeout elapses.
	BreakerOpen BreakerState = "open"

	// BreakerHalfOpen: one probe call is allowed; success closes the
	// breaker, failure reopens it.
	BreakerHalfOpen BreakerState = "half_open"
)

// Breaker default tuning.
const (
	DefaultBreakerFailures = 5
	DefaultBreakerRecovery = 60 * time.Second
)

// Breaker is a circuit breaker guarding the external cache. Each sync layer
// instance owns its own Breaker; there is no package-level singleton, so
// tests construct fresh instances freely.
//
// State is guarded by a mutex. The check-then-act sequences are short; a
// slightly early or late trip only shifts the failure count, never
// correctness, since every caller falls back to the store anyway.
type Breaker struct {
	mu          sync.Mutex
	state       BreakerState
	failures    int
	maxFailures int
	recovery    time.Duration
	openedAt    time.Time
	now         func() time.Time
}

// NewBreaker creates a closed breaker that opens after maxFailures
// consecutive failures and probes again after the recovery timeout.
// Non-positive arguments fall back to the defaults.
func NewBreaker(maxFailures int, recovery time.Duration) *Breaker {
	if maxFailures <= 0 {
		maxFailures = DefaultBreakerFailures
	}
	if recovery <= 0 {
		recovery = DefaultBreakerRecovery
	}
	return &Breaker{
		state:       BreakerClosed,
		maxFailures: maxFailures,
		recovery:    recovery,
		now:         time.Now,
	}
}

// Do runs fn under the breaker. While open and inside the recovery window it
// returns ErrCircuitOpen without invoking fn. fn's error feeds the failure
// count; any error (including a timeout) counts as one failure.
func (b *Breaker) Do(fn func() error) error {
	if err := b.allow(); err != nil {
		return err
	}

	err := fn()
	b.record(err == nil)
	return err
}

// State returns the breaker's current state.
func (b *Breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// ConsecutiveFailures returns the current consecutive-failure count.
func (b *Breaker) ConsecutiveFailures() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.failures
}

// allow decides whether a call may proceed, moving an expired open breaker
// to half-open.
func (b *Breaker) allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == BreakerOpen {
		if b.now().Sub(b.openedAt) < b.recovery {
			return ErrCircuitOpen
		}
		b.state = BreakerHalfOpen
	}
	return nil
}

// record applies a call outcome to the breaker state.
func (b *Breaker) record(success bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if success {
		b.state = BreakerClosed
		b.failures = 0
		return
	}

	b.failures++
	if b.state == BreakerHalfOpen || b.failures >= b.maxFailures {
		b.state = BreakerOpen
		b.openedAt = b.now()
	}
}

package cache

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errBoom = errors.New("boom")

// fakeClock lets breaker tests move time forward without sleeping.
type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time {
	return c.t
}

func (c *fakeClock) advance(d time.Duration) {
	c.t = c.t.Add(d)
}

func newTestBreaker(maxFailures int, recovery time.Duration) (*Breaker, *fakeClock) {
	clock := &fakeClock{t: time.Unix(1700000000, 0)}
	b := NewBreaker(maxFailures, recovery)
	b.now = clock.now
	return b, clock
}

func fail(b *Breaker) error {
	return b.Do(func() error { return errBoom })
}

func succeed(b *Breaker) error {
	return b.Do(func() error { return nil })
}

func TestBreakerStartsClosed(t *testing.T) {
	t.Parallel()

	b, _ := newTestBreaker(5, time.Minute)

	assert.Equal(t, BreakerClosed, b.State())
	assert.NoError(t, succeed(b))
}

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	t.Parallel()

	b, _ := newTestBreaker(5, time.Minute)

	for i := 0; i < 5; i++ {
		require.ErrorIs(t, fail(b), errBoom)
	}

	assert.Equal(t, BreakerOpen, b.State())
	assert.ErrorIs(t, fail(b), ErrCircuitOpen)
}

func TestBreakerSuccessResetsFailureCount(t *testing.T) {
	t.Parallel()

	b, _ := newTestBreaker(5, time.Minute)

	for i := 0; i < 4; i++ {
		require.ErrorIs(t, fail(b), errBoom)
	}
	require.NoError(t, succeed(b))
	require.ErrorIs(t, fail(b), errBoom)

	// Four failures, a success, then one failure: still closed.
	assert.Equal(t, BreakerClosed, b.State())
	assert.Equal(t, 1, b.ConsecutiveFailures())
}

func TestBreakerHalfOpenClosesOnSuccess(t *testing.T) {
	t.Parallel()

	b, clock := newTestBreaker(2, time.Minute)

	require.ErrorIs(t, fail(b), errBoom)
	require.ErrorIs(t, fail(b), errBoom)
	require.Equal(t, BreakerOpen, b.State())

	clock.advance(61 * time.Second)

	assert.NoError(t, succeed(b))
	assert.Equal(t, BreakerClosed, b.State())
}

func TestBreakerHalfOpenReopensOnFailure(t *testing.T) {
	t.Parallel()

	b, clock := newTestBreaker(2, time.Minute)

	require.ErrorIs(t, fail(b), errBoom)
	require.ErrorIs(t, fail(b), errBoom)

	clock.advance(61 * time.Second)

	// The probe call runs and fails; the breaker reopens immediately.
	require.ErrorIs(t, fail(b), errBoom)
	assert.Equal(t, BreakerOpen, b.State())
	assert.ErrorIs(t, fail(b), ErrCircuitOpen)
}

func TestBreakerFailsFastInsideRecoveryWindow(t *testing.T) {
	t.Parallel()

	b, clock := newTestBreaker(1, time.Minute)

	require.ErrorIs(t, fail(b), errBoom)
	clock.advance(30 * time.Second)

	calls := 0
	err := b.Do(func() error {
		calls++
		return nil
	})

	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.Zero(t, calls)
}

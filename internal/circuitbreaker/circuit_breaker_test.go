package circuitbreaker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

var errUpstream = errors.New("upstream unavailable")

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestBreaker(t *testing.T, name string, config Config) (*CircuitBreaker, *fakeClock) {
	t.Helper()
	clock := &fakeClock{t: time.Unix(1700000000, 0)}
	cb := NewCircuitBreaker(name, config, zaptest.NewLogger(t))
	cb.now = clock.Now
	cb.since = clock.Now()
	return cb, clock
}

func ok() error   { return nil }
func fail() error { return errUpstream }

func TestStateString(t *testing.T) {
	assert.Equal(t, "closed", StateClosed.String())
	assert.Equal(t, "half-open", StateHalfOpen.String())
	assert.Equal(t, "open", StateOpen.String())
	assert.Equal(t, "unknown", State(9).String())
}

func TestCircuitBreakerStates(t *testing.T) {
	config := DefaultConfig()
	config.FailureThreshold = 3
	config.SuccessThreshold = 2
	config.MaxRequests = 5
	config.Timeout = 100 * time.Millisecond
	config.Interval = 0

	cb, clock := newTestBreaker(t, "sec_edgar", config)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		assert.NoError(t, cb.Execute(ctx, ok))
	}
	assert.Equal(t, StateClosed, cb.State())

	for i := 0; i < 3; i++ {
		assert.ErrorIs(t, cb.Execute(ctx, fail), errUpstream)
	}
	assert.Equal(t, StateOpen, cb.State())
	assert.ErrorIs(t, cb.Execute(ctx, ok), ErrCircuitBreakerOpen)

	clock.Advance(99 * time.Millisecond)
	assert.Equal(t, StateOpen, cb.State())
	clock.Advance(time.Millisecond)
	assert.Equal(t, StateHalfOpen, cb.State())

	assert.NoError(t, cb.Execute(ctx, ok))
	assert.Equal(t, StateHalfOpen, cb.State())
	assert.NoError(t, cb.Execute(ctx, ok))
	assert.Equal(t, StateClosed, cb.State())
}

func TestCircuitBreakerHalfOpenFailureReopens(t *testing.T) {
	config := DefaultConfig()
	config.FailureThreshold = 1
	config.Timeout = 50 * time.Millisecond

	cb, clock := newTestBreaker(t, "nhtsa", config)
	ctx := context.Background()

	_ = cb.Execute(ctx, fail)
	assert.Equal(t, StateOpen, cb.State())

	clock.Advance(80 * time.Millisecond)
	_ = cb.Execute(ctx, fail)
	assert.Equal(t, StateOpen, cb.State())
	assert.ErrorIs(t, cb.Execute(ctx, ok), ErrCircuitBreakerOpen)
}

func TestCircuitBreakerIntervalForgetsFailures(t *testing.T) {
	config := DefaultConfig()
	config.FailureThreshold = 2
	config.Interval = time.Minute

	cb, clock := newTestBreaker(t, "sec_edgar", config)
	ctx := context.Background()

	_ = cb.Execute(ctx, fail)
	clock.Advance(time.Minute)
	_ = cb.Execute(ctx, fail)
	assert.Equal(t, StateClosed, cb.State(), "failures in different windows do not add up")
	assert.Equal(t, uint32(1), cb.Counts().ConsecutiveFailures)

	_ = cb.Execute(ctx, fail)
	assert.Equal(t, StateOpen, cb.State())
}

func TestCircuitBreakerMaxRequests(t *testing.T) {
	config := DefaultConfig()
	config.FailureThreshold = 1
	config.MaxRequests = 2
	config.SuccessThreshold = 5
	config.Timeout = time.Second

	cb, clock := newTestBreaker(t, "nhtsa", config)
	ctx := context.Background()

	_ = cb.Execute(ctx, fail)
	clock.Advance(time.Second)
	require.Equal(t, StateHalfOpen, cb.State())

	for i := 0; i < 2; i++ {
		assert.NoError(t, cb.Execute(ctx, ok))
	}
	assert.ErrorIs(t, cb.Execute(ctx, ok), ErrTooManyRequests)
}

func TestCircuitBreakerCounts(t *testing.T) {
	cb, _ := newTestBreaker(t, "sec_edgar", DefaultConfig())
	ctx := context.Background()

	_ = cb.Execute(ctx, ok)
	_ = cb.Execute(ctx, fail)
	_ = cb.Execute(ctx, ok)

	counts := cb.Counts()
	assert.Equal(t, uint32(3), counts.Requests)
	assert.Equal(t, uint32(2), counts.TotalSuccesses)
	assert.Equal(t, uint32(1), counts.TotalFailures)
	assert.Equal(t, uint32(1), counts.ConsecutiveSuccesses)
	assert.Zero(t, counts.ConsecutiveFailures)
}

func TestCircuitBreakerCancelledContextNotCounted(t *testing.T) {
	config := DefaultConfig()
	config.FailureThreshold = 1
	cb, _ := newTestBreaker(t, "sec_edgar", config)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, cb.Execute(ctx, fail), context.Canceled)
	assert.Equal(t, StateClosed, cb.State())
	assert.Zero(t, cb.Counts().Requests)

	ctx, cancel = context.WithCancel(context.Background())
	err := cb.Execute(ctx, func() error {
		cancel()
		return ctx.Err()
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, StateClosed, cb.State())
	assert.Zero(t, cb.Counts().TotalFailures)
}

func TestCircuitBreakerAbandonedTrialFreesSlot(t *testing.T) {
	config := DefaultConfig()
	config.FailureThreshold = 1
	config.MaxRequests = 1
	config.SuccessThreshold = 1
	config.Timeout = time.Second

	cb, clock := newTestBreaker(t, "nhtsa", config)
	_ = cb.Execute(context.Background(), fail)
	clock.Advance(time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	_ = cb.Execute(ctx, func() error {
		cancel()
		return ctx.Err()
	})
	assert.Equal(t, StateHalfOpen, cb.State())

	assert.NoError(t, cb.Execute(context.Background(), ok), "the trial slot is free again")
	assert.Equal(t, StateClosed, cb.State())
}

func TestCircuitBreakerPanicCountsAsFailure(t *testing.T) {
	config := DefaultConfig()
	config.FailureThreshold = 1
	cb, _ := newTestBreaker(t, "sec_edgar", config)

	assert.Panics(t, func() {
		_ = cb.Execute(context.Background(), func() error { panic("boom") })
	})
	assert.Equal(t, StateOpen, cb.State())
}

func TestStaleResultIsIgnored(t *testing.T) {
	config := DefaultConfig()
	config.FailureThreshold = 1
	config.Interval = time.Minute
	cb, clock := newTestBreaker(t, "sec_edgar", config)

	err := cb.Execute(context.Background(), func() error {
		clock.Advance(time.Minute)
		return errUpstream
	})
	assert.ErrorIs(t, err, errUpstream)
	assert.Equal(t, StateClosed, cb.State(), "a result from an expired window is dropped")
}

func TestStateChangeCallbacks(t *testing.T) {
	config := DefaultConfig()
	config.FailureThreshold = 2

	var from, to State
	called := false
	config.OnStateChange = func(name string, f, next State) {
		called = true
		from, to = f, next
	}

	cb, _ := newTestBreaker(t, "sec_edgar", config)
	var watched []State
	cb.watch(func(_ string, _, next State) { watched = append(watched, next) })

	for i := 0; i < 2; i++ {
		_ = cb.Execute(context.Background(), fail)
	}

	assert.True(t, called)
	assert.Equal(t, StateClosed, from)
	assert.Equal(t, StateOpen, to)
	assert.Equal(t, []State{StateOpen}, watched)
}

func TestSettingsToConfigFillsDefaults(t *testing.T) {
	cfg := Settings{FailureThreshold: 7}.ToConfig()
	def := DefaultConfig()
	assert.Equal(t, uint32(7), cfg.FailureThreshold)
	assert.Equal(t, def.Timeout, cfg.Timeout)
	assert.Equal(t, def.MaxRequests, cfg.MaxRequests)
}

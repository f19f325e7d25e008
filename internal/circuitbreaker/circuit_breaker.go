// Package circuitbreaker guards outbound calls to evidence sources and the
// shared payload cache so a failing upstream is skipped quickly instead of
// stalling every investigation behind its timeouts.
package circuitbreaker

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

// State is the breaker position.
type State int

const (
	StateClosed State = iota
	StateHalfOpen
	StateOpen
)

var stateNames = [...]string{
	StateClosed:   "closed",
	StateHalfOpen: "half-open",
	StateOpen:     "open",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

var (
	// ErrCircuitBreakerOpen rejects a call while the upstream cools down.
	ErrCircuitBreakerOpen = errors.New("circuit breaker is open")
	// ErrTooManyRequests rejects a call once the half-open trial calls are spent.
	ErrTooManyRequests = errors.New("too many requests in half-open state")
)

// Config tunes a breaker. A zero Interval keeps closed-state failures
// until the next success.
type Config struct {
	MaxRequests      uint32        // trial calls allowed while half-open
	Interval         time.Duration // window for counting closed-state failures
	Timeout          time.Duration // cool-down while open
	FailureThreshold uint32        // consecutive failures that trip the breaker
	SuccessThreshold uint32        // consecutive half-open successes that close it
	OnStateChange    func(name string, from, to State)
}

// DefaultConfig suits a slow public API.
func DefaultConfig() Config {
	return Config{
		MaxRequests:      3,
		Interval:         60 * time.Second,
		Timeout:          10 * time.Second,
		FailureThreshold: 5,
		SuccessThreshold: 2,
	}
}

// Counts cover the current state (or the current closed window).
type Counts struct {
	Requests             uint32
	TotalSuccesses       uint32
	TotalFailures        uint32
	ConsecutiveSuccesses uint32
	ConsecutiveFailures  uint32
}

func (c *Counts) record(success bool) {
	if success {
		c.TotalSuccesses++
		c.ConsecutiveSuccesses++
		c.ConsecutiveFailures = 0
		return
	}
	c.TotalFailures++
	c.ConsecutiveFailures++
	c.ConsecutiveSuccesses = 0
}

type outcome int

const (
	succeeded outcome = iota
	failed
	abandoned
)

// CircuitBreaker tracks failures of one upstream.
type CircuitBreaker struct {
	name   string
	cfg    Config
	logger *zap.Logger
	now    func() time.Time

	mu       sync.Mutex
	state    State
	counts   Counts
	since    time.Time // start of the current state or closed window
	epoch    uint64    // bumped on every reset; results from older epochs are dropped
	watchers []func(name string, from, to State)
}

func NewCircuitBreaker(name string, config Config, logger *zap.Logger) *CircuitBreaker {
	if logger == nil {
		logger = zap.NewNop()
	}
	cb := &CircuitBreaker{
		name:   name,
		cfg:    config,
		logger: logger,
		now:    time.Now,
		state:  StateClosed,
	}
	cb.since = cb.now()
	return cb
}

// Name returns the breaker name used in logs and metrics.
func (cb *CircuitBreaker) Name() string { return cb.name }

// Execute runs fn unless the breaker rejects the call. A call cut short by
// ctx says nothing about the upstream and is not counted either way; a
// panicking fn counts as a failure.
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func() error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	epoch, err := cb.admit()
	if err != nil {
		return err
	}

	settled := false
	defer func() {
		if !settled {
			cb.settle(epoch, failed)
		}
	}()
	err = fn()
	settled = true

	switch {
	case err == nil:
		cb.settle(epoch, succeeded)
	case ctx.Err() != nil && errors.Is(err, ctx.Err()):
		cb.settle(epoch, abandoned)
	default:
		cb.settle(epoch, failed)
	}
	return err
}

// State reports the position, applying any cool-down that has elapsed.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.advance(cb.now())
	return cb.state
}

func (cb *CircuitBreaker) Counts() Counts {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.counts
}

// watch adds a state-change hook next to Config.OnStateChange.
func (cb *CircuitBreaker) watch(fn func(name string, from, to State)) {
	cb.mu.Lock()
	cb.watchers = append(cb.watchers, fn)
	cb.mu.Unlock()
}

func (cb *CircuitBreaker) admit() (uint64, error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.advance(cb.now())
	switch cb.state {
	case StateOpen:
		return 0, ErrCircuitBreakerOpen
	case StateHalfOpen:
		if cb.counts.Requests >= cb.cfg.MaxRequests {
			return 0, ErrTooManyRequests
		}
	}
	cb.counts.Requests++
	return cb.epoch, nil
}

func (cb *CircuitBreaker) settle(epoch uint64, o outcome) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	now := cb.now()
	cb.advance(now)
	if epoch != cb.epoch {
		return
	}

	switch o {
	case abandoned:
		// Give the trial slot back so a half-open breaker cannot stall.
		if cb.state == StateHalfOpen && cb.counts.Requests > 0 {
			cb.counts.Requests--
		}
	case succeeded:
		cb.counts.record(true)
		if cb.state == StateHalfOpen && cb.counts.ConsecutiveSuccesses >= cb.cfg.SuccessThreshold {
			cb.transition(StateClosed, now)
		}
	case failed:
		cb.counts.record(false)
		if cb.state == StateHalfOpen || cb.counts.ConsecutiveFailures >= cb.cfg.FailureThreshold {
			cb.transition(StateOpen, now)
		}
	}
}

// advance applies the time-driven moves: an open breaker goes half-open
// after Timeout and a closed window forgets its failures after Interval.
func (cb *CircuitBreaker) advance(now time.Time) {
	switch cb.state {
	case StateOpen:
		if !now.Before(cb.since.Add(cb.cfg.Timeout)) {
			cb.transition(StateHalfOpen, now)
		}
	case StateClosed:
		if cb.cfg.Interval > 0 && !now.Before(cb.since.Add(cb.cfg.Interval)) {
			cb.reset(now)
		}
	}
}

func (cb *CircuitBreaker) reset(now time.Time) {
	cb.epoch++
	cb.counts = Counts{}
	cb.since = now
}

func (cb *CircuitBreaker) transition(to State, now time.Time) {
	from := cb.state
	if from == to {
		return
	}
	cb.state = to
	cb.reset(now)

	cb.logger.Info("Circuit breaker state changed",
		zap.String("name", cb.name),
		zap.String("from", from.String()),
		zap.String("to", to.String()),
	)
	if cb.cfg.OnStateChange != nil {
		cb.cfg.OnStateChange(cb.name, from, to)
	}
	for _, fn := range cb.watchers {
		fn(cb.name, from, to)
	}
}

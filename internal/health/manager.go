package health

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
)

// DefaultInterval is the background check period when none is configured.
const DefaultInterval = 30 * time.Second

type checkerState struct {
	checker   Checker
	timeout   time.Duration
	critical  bool
	lastCheck time.Time
}

// Manager runs registered checkers on demand and in the background, and
// keeps the most recent result of each.
type Manager struct {
	checkers    map[string]*checkerState
	lastResults map[string]CheckResult
	interval    time.Duration
	cancel      context.CancelFunc
	done        chan struct{}
	now         func() time.Time
	logger      *zap.Logger
	mu          sync.RWMutex
}

// NewManager creates a health manager. A non-positive interval uses
// DefaultInterval.
func NewManager(interval time.Duration, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Manager{
		checkers:    make(map[string]*checkerState),
		lastResults: make(map[string]CheckResult),
		interval:    interval,
		now:         time.Now,
		logger:      logger,
	}
}

// RegisterChecker registers a health check
func (m *Manager) RegisterChecker(checker Checker) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	name := checker.Name()
	if name == "" {
		return fmt.Errorf("checker name cannot be empty")
	}
	if _, exists := m.checkers[name]; exists {
		return fmt.Errorf("checker %s already registered", name)
	}

	state := &checkerState{
		checker:  checker,
		timeout:  checker.Timeout(),
		critical: checker.IsCritical(),
	}
	if state.timeout <= 0 {
		state.timeout = 5 * time.Second
	}
	m.checkers[name] = state
	m.logger.Info("Health checker registered",
		zap.String("checker", name),
		zap.Bool("critical", state.critical),
		zap.Duration("timeout", state.timeout),
	)
	return nil
}

// UnregisterChecker removes a health check
func (m *Manager) UnregisterChecker(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.checkers[name]; !exists {
		return fmt.Errorf("checker %s not found", name)
	}
	delete(m.checkers, name)
	delete(m.lastResults, name)

	m.logger.Info("Health checker unregistered", zap.String("checker", name))
	return nil
}

// Names lists registered checkers in sorted order.
func (m *Manager) Names() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.checkers))
	for name := range m.checkers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// GetOverallHealth runs every check and returns only the rollup.
func (m *Manager) GetOverallHealth(ctx context.Context) OverallHealth {
	return m.GetDetailedHealth(ctx).Overall
}

// GetDetailedHealth runs every check now and records the results.
func (m *Manager) GetDetailedHealth(ctx context.Context) DetailedHealth {
	start := m.now()

	m.mu.RLock()
	states := make([]*checkerState, 0, len(m.checkers))
	for _, state := range m.checkers {
		states = append(states, state)
	}
	m.mu.RUnlock()

	components := make(map[string]CheckResult, len(states))
	for _, state := range states {
		components[state.checker.Name()] = m.runCheck(ctx, state)
	}

	m.mu.Lock()
	for name, result := range components {
		if _, still := m.checkers[name]; still {
			m.lastResults[name] = result
		}
	}
	m.mu.Unlock()

	detailed := Evaluate(components, start)
	detailed.Overall.Duration = m.now().Sub(start)
	return detailed
}

// GetCachedHealth evaluates the last recorded results without running
// any check.
func (m *Manager) GetCachedHealth() DetailedHealth {
	return Evaluate(m.GetLastResults(), m.now())
}

// GetLastResults returns the most recent health check results without running new checks
func (m *Manager) GetLastResults() map[string]CheckResult {
	m.mu.RLock()
	defer m.mu.RUnlock()

	results := make(map[string]CheckResult, len(m.lastResults))
	for name, result := range m.lastResults {
		results[name] = result
	}
	return results
}

func (m *Manager) runCheck(ctx context.Context, state *checkerState) CheckResult {
	checkCtx, cancel := context.WithTimeout(ctx, state.timeout)
	defer cancel()

	start := m.now()
	result := state.checker.Check(checkCtx)
	result.Component = state.checker.Name()
	result.Critical = state.critical
	result.Duration = m.now().Sub(start)
	result.Timestamp = start

	m.mu.Lock()
	state.lastCheck = start
	m.mu.Unlock()

	if result.Status != StatusHealthy {
		m.logger.Warn("Health check not healthy",
			zap.String("checker", result.Component),
			zap.String("status", result.Status.String()),
			zap.String("error", result.Error),
		)
	}
	return result
}

// Evaluate rolls component results up into a DetailedHealth. A failing
// critical component makes the service unhealthy and not ready; degraded or
// failing non-critical components only degrade it.
func Evaluate(components map[string]CheckResult, at time.Time) DetailedHealth {
	summary := Summary{Total: len(components)}
	criticalFailures, nonCriticalFailures := 0, 0
	for _, result := range components {
		switch result.Status {
		case StatusHealthy:
			summary.Healthy++
		case StatusDegraded:
			summary.Degraded++
		case StatusUnhealthy:
			summary.Unhealthy++
			if result.Critical {
				criticalFailures++
			} else {
				nonCriticalFailures++
			}
		}
		if result.Critical {
			summary.Critical++
		} else {
			summary.NonCritical++
		}
	}

	overall := OverallHealth{Timestamp: at, Live: true, Ready: true}
	switch {
	case summary.Total == 0:
		overall.Status = StatusUnknown
		overall.Message = "No health checks registered"
		overall.Ready = false
	case criticalFailures > 0:
		overall.Status = StatusUnhealthy
		overall.Message = fmt.Sprintf("%d critical component(s) failing", criticalFailures)
		overall.Ready = false
	case summary.Degraded > 0:
		overall.Status = StatusDegraded
		overall.Message = fmt.Sprintf("%d component(s) degraded", summary.Degraded)
	case nonCriticalFailures > 0:
		overall.Status = StatusDegraded
		overall.Message = fmt.Sprintf("%d non-critical component(s) failing", nonCriticalFailures)
	default:
		overall.Status = StatusHealthy
		overall.Message = fmt.Sprintf("All %d components healthy", summary.Total)
	}
	overall.Degraded = overall.Status == StatusDegraded || summary.Degraded > 0

	if components == nil {
		components = map[string]CheckResult{}
	}
	return DetailedHealth{
		Overall:    overall,
		Components: components,
		Summary:    summary,
		Timestamp:  at,
	}
}

// IsReady returns true if the service is ready to serve requests
func (m *Manager) IsReady(ctx context.Context) bool {
	return m.GetOverallHealth(ctx).Ready
}

// IsLive reports process liveness. It never runs checks: a hung upstream
// must not get the process restarted.
func (m *Manager) IsLive(context.Context) bool {
	return true
}

// Start runs all checks every interval until Stop or ctx is done.
func (m *Manager) Start(ctx context.Context) {
	m.mu.Lock()
	if m.cancel != nil {
		m.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.done = make(chan struct{})
	done := m.done
	count := len(m.checkers)
	m.mu.Unlock()

	m.logger.Info("Health manager started",
		zap.Duration("check_interval", m.interval),
		zap.Int("registered_checkers", count),
	)

	go func() {
		defer close(done)
		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				detailed := m.GetDetailedHealth(ctx)
				m.logger.Debug("Background health checks completed",
					zap.Int("checks_run", detailed.Summary.Total),
					zap.String("status", detailed.Overall.Status.String()),
				)
			}
		}
	}()
}

// Stop halts background checking and waits for the loop to exit.
func (m *Manager) Stop() {
	m.mu.Lock()
	cancel, done := m.cancel, m.done
	m.cancel, m.done = nil, nil
	m.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	m.logger.Info("Health manager stopped")
}

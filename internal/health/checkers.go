package health

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/taljindergill78/FSE570/internal/circuitbreaker"
)

// RedisHealthChecker pings the shared payload cache through its breaker.
type RedisHealthChecker struct {
	wrapper *circuitbreaker.RedisWrapper
	timeout time.Duration
}

func NewRedisHealthChecker(wrapper *circuitbreaker.RedisWrapper) *RedisHealthChecker {
	return &RedisHealthChecker{wrapper: wrapper, timeout: 5 * time.Second}
}

func (r *RedisHealthChecker) Name() string           { return "redis" }
func (r *RedisHealthChecker) IsCritical() bool       { return true }
func (r *RedisHealthChecker) Timeout() time.Duration { return r.timeout }

func (r *RedisHealthChecker) Check(ctx context.Context) CheckResult {
	if r.wrapper.IsCircuitBreakerOpen() {
		return CheckResult{
			Status:  StatusUnhealthy,
			Error:   "circuit breaker open",
			Message: "Redis circuit breaker is open",
		}
	}

	start := time.Now()
	err := r.wrapper.Ping(ctx).Err()
	latency := time.Since(start)
	if err != nil {
		return CheckResult{
			Status:  StatusUnhealthy,
			Error:   err.Error(),
			Message: "Redis ping failed",
			Details: map[string]any{"latency_ms": latency.Milliseconds()},
		}
	}

	result := CheckResult{
		Status:  StatusHealthy,
		Message: "Redis healthy",
		Details: map[string]any{
			"latency_ms":           latency.Milliseconds(),
			"circuit_breaker_open": false,
		},
	}
	if latency > 100*time.Millisecond {
		result.Status = StatusDegraded
		result.Message = "Redis responding but with high latency"
	}
	return result
}

// DataRootChecker verifies the data root exists and accepts writes; raw
// payloads and processed evidence both live under it.
type DataRootChecker struct {
	root string
}

func NewDataRootChecker(root string) *DataRootChecker {
	return &DataRootChecker{root: root}
}

func (d *DataRootChecker) Name() string           { return "data_root" }
func (d *DataRootChecker) IsCritical() bool       { return true }
func (d *DataRootChecker) Timeout() time.Duration { return 2 * time.Second }

func (d *DataRootChecker) Check(context.Context) CheckResult {
	details := map[string]any{"path": d.root}
	info, err := os.Stat(d.root)
	if err != nil {
		return CheckResult{Status: StatusUnhealthy, Error: err.Error(), Message: "Data root missing", Details: details}
	}
	if !info.IsDir() {
		return CheckResult{Status: StatusUnhealthy, Error: "not a directory", Message: "Data root is not a directory", Details: details}
	}

	tmp, err := os.CreateTemp(d.root, ".health-*")
	if err != nil {
		return CheckResult{Status: StatusUnhealthy, Error: err.Error(), Message: "Data root not writable", Details: details}
	}
	name := tmp.Name()
	tmp.Close()
	os.Remove(name)

	details["raw_dir"] = filepath.Join(d.root, "raw")
	return CheckResult{Status: StatusHealthy, Message: "Data root writable", Details: details}
}

// BreakerStates is satisfied by circuitbreaker.MetricsCollector.
type BreakerStates interface {
	States(service string) map[string]circuitbreaker.State
}

// SourceBreakerChecker reports upstream evidence sources whose breakers
// are open. Investigations still run with those sources failing, so the
// check is non-critical.
type SourceBreakerChecker struct {
	states  BreakerStates
	service string
}

func NewSourceBreakerChecker(states BreakerStates, service string) *SourceBreakerChecker {
	return &SourceBreakerChecker{states: states, service: service}
}

func (s *SourceBreakerChecker) Name() string           { return "evidence_sources" }
func (s *SourceBreakerChecker) IsCritical() bool       { return false }
func (s *SourceBreakerChecker) Timeout() time.Duration { return time.Second }

func (s *SourceBreakerChecker) Check(context.Context) CheckResult {
	states := s.states.States(s.service)
	details := make(map[string]any, len(states))
	var open []string
	for name, st := range states {
		details[name] = st.String()
		if st == circuitbreaker.StateOpen {
			open = append(open, name)
		}
	}
	sort.Strings(open)

	switch {
	case len(states) > 0 && len(open) == len(states):
		return CheckResult{Status: StatusUnhealthy, Message: "All evidence source breakers open", Details: details}
	case len(open) > 0:
		return CheckResult{Status: StatusDegraded, Message: fmt.Sprintf("Breaker open for %v", open), Details: details}
	default:
		return CheckResult{Status: StatusHealthy, Message: fmt.Sprintf("%d evidence source(s) closed", len(states)), Details: details}
	}
}

// EntityCounter is satisfied by resolver.Registry.
type EntityCounter interface {
	Len() int
}

// RegistryChecker degrades when no entities are registered: every query
// would come back unresolved.
type RegistryChecker struct {
	registry EntityCounter
}

func NewRegistryChecker(registry EntityCounter) *RegistryChecker {
	return &RegistryChecker{registry: registry}
}

func (r *RegistryChecker) Name() string           { return "entity_registry" }
func (r *RegistryChecker) IsCritical() bool       { return false }
func (r *RegistryChecker) Timeout() time.Duration { return time.Second }

func (r *RegistryChecker) Check(context.Context) CheckResult {
	n := r.registry.Len()
	if n == 0 {
		return CheckResult{Status: StatusDegraded, Message: "No entities registered", Details: map[string]any{"entities": 0}}
	}
	return CheckResult{Status: StatusHealthy, Message: fmt.Sprintf("%d entities registered", n), Details: map[string]any{"entities": n}}
}

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Investigation metrics
	InvestigationsStarted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "osint_investigations_started_total",
			Help: "Total number of investigations started",
		},
	)

	InvestigationsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "osint_investigations_completed_total",
			Help: "Total number of investigations completed",
		},
		[]string{"status"}, // ok, no_entity, error
	)

	InvestigationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "osint_investigation_duration_seconds",
			Help:    "End-to-end investigation duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	FindingsPerInvestigation = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "osint_findings_per_investigation",
			Help:    "Number of evidence rows collected per investigation",
			Buckets: []float64{0, 1, 5, 10, 50, 100, 500, 1000},
		},
	)

	// Agent dispatch metrics
	AgentExecutions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "osint_agent_executions_total",
			Help: "Total number of specialist agent invocations",
		},
		[]string{"agent", "task_type", "status"},
	)

	AgentExecutionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "osint_agent_execution_duration_seconds",
			Help:    "Specialist agent execution duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"agent"},
	)

	UnroutedTasks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "osint_unrouted_tasks_total",
			Help: "Sub-tasks skipped because no agent is registered for their target",
		},
		[]string{"target_agent"},
	)

	// Evidence source metrics
	SourceFetches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "osint_source_fetches_total",
			Help: "Evidence source lookups by outcome",
		},
		[]string{"source", "status"}, // ok, error
	)

	SourceEvidence = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "osint_source_evidence_total",
			Help: "Evidence rows produced per source",
		},
		[]string{"source"},
	)

	PayloadCacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "osint_payload_cache_hits_total",
			Help: "Raw payload cache hits",
		},
		[]string{"backend"},
	)

	PayloadCacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "osint_payload_cache_misses_total",
			Help: "Raw payload cache misses",
		},
		[]string{"backend"},
	)

	// Reflexion metrics
	ConflictsDetected = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "osint_conflicts_detected_total",
			Help: "Cross-check conflicts detected",
		},
	)

	GapsDetected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "osint_gaps_detected_total",
			Help: "Coverage gaps detected by area",
		},
		[]string{"area"},
	)

	// HTTP API metrics
	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "osint_http_requests_total",
			Help: "API requests by route and status code",
		},
		[]string{"route", "code"},
	)
)

// RecordAgentExecution records one specialist invocation.
func RecordAgentExecution(agent, taskType string, d time.Duration, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	AgentExecutions.WithLabelValues(agent, taskType, status).Inc()
	AgentExecutionDuration.WithLabelValues(agent).Observe(d.Seconds())
}

// RecordSourceFetch records one processor call and the rows it produced.
func RecordSourceFetch(source string, rows int, err error) {
	if err != nil {
		SourceFetches.WithLabelValues(source, "error").Inc()
		return
	}
	SourceFetches.WithLabelValues(source, "ok").Inc()
	SourceEvidence.WithLabelValues(source).Add(float64(rows))
}

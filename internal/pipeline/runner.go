// Package pipeline runs a full investigation: the lead orchestrator, then
// reflexion, the knowledge graph, reports, the risk dashboard and the audit
// trail.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/taljindergill78/FSE570/internal/audit"
	"github.com/taljindergill78/FSE570/internal/entities"
	"github.com/taljindergill78/FSE570/internal/graph"
	"github.com/taljindergill78/FSE570/internal/investigation"
	"github.com/taljindergill78/FSE570/internal/metrics"
	"github.com/taljindergill78/FSE570/internal/planner"
	"github.com/taljindergill78/FSE570/internal/reflexion"
	"github.com/taljindergill78/FSE570/internal/report"
	"github.com/taljindergill78/FSE570/internal/tracing"
)

// Investigator is the lead orchestrator as the pipeline sees it.
type Investigator interface {
	Run(ctx context.Context, query string) (*investigation.Context, error)
}

// Result is everything one run produced. Fields after the failing stage
// keep their zero values when Error is set.
type Result struct {
	Query            string                        `json:"query"`
	Entity           *entities.Entity              `json:"entity"`
	EntityID         string                        `json:"entity_id,omitempty"`
	EntityName       string                        `json:"entity_name,omitempty"`
	Tasks            []planner.SubTask             `json:"tasks"`
	Findings         []entities.Evidence           `json:"findings"`
	FindingsCount    int                           `json:"findings_count"`
	FindingsByAgent  map[string]int                `json:"findings_by_agent"`
	SourceFailures   []investigation.SourceFailure `json:"source_failures,omitempty"`
	Conflicts        []reflexion.Conflict          `json:"conflicts"`
	Gaps             []reflexion.Gap               `json:"gaps"`
	ConfidenceScores *reflexion.ConfidenceScores   `json:"confidence_scores"`
	GraphSummary     *graph.Summary                `json:"graph_summary,omitempty"`
	ReportMarkdown   string                        `json:"report_md"`
	ReportHTML       string                        `json:"report_html"`
	RiskScores       *report.RiskScores            `json:"risk_scores"`
	RiskDashboard    string                        `json:"risk_dashboard_cli"`
	AuditEvents      []audit.Event                 `json:"audit_events"`
	Error            string                        `json:"error,omitempty"`
	Duration         time.Duration                 `json:"duration_ns"`
}

// Runner is safe for concurrent use when its Investigator is.
type Runner struct {
	lead   Investigator
	logger *zap.Logger
}

func NewRunner(lead Investigator, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{lead: lead, logger: logger}
}

// Run executes one investigation. It never returns nil and never fails:
// agent errors and panics land in Result.Error and the audit trail.
func (r *Runner) Run(ctx context.Context, query string) *Result {
	return r.RunWithObserver(ctx, query, nil)
}

// RunWithObserver is Run with every audit event passed to observe as it is
// recorded.
func (r *Runner) RunWithObserver(ctx context.Context, query string, observe audit.Observer) (res *Result) {
	ctx, span := tracing.StartSpan(ctx, "pipeline.run")
	defer span.End()

	start := time.Now()
	trail := audit.NewTrail(r.logger)
	trail.SetObserver(observe)
	res = &Result{
		Query:           query,
		Tasks:           []planner.SubTask{},
		Findings:        []entities.Evidence{},
		FindingsByAgent: map[string]int{},
		Conflicts:       []reflexion.Conflict{},
		Gaps:            []reflexion.Gap{},
	}
	metrics.InvestigationsStarted.Inc()

	status := "ok"
	defer func() {
		if p := recover(); p != nil {
			status = "error"
			res.Error = fmt.Sprintf("panic: %v", p)
			r.logger.Error("Investigation panicked", zap.String("query", query), zap.Any("panic", p))
			trail.Record(audit.StepPipelineError, map[string]any{"error": res.Error})
		}
		res.Duration = time.Since(start)
		res.AuditEvents = trail.Events()
		metrics.InvestigationsCompleted.WithLabelValues(status).Inc()
		metrics.InvestigationDuration.Observe(res.Duration.Seconds())
	}()

	trail.Record(audit.StepQueryReceived, map[string]any{"query": query})

	ic, err := r.lead.Run(ctx, query)
	if ic != nil {
		r.collect(res, ic, trail)
	}
	if err != nil {
		status = "error"
		res.Error = err.Error()
		span.RecordError(err)
		r.logger.Error("Investigation failed", zap.String("query", query), zap.Error(err))
		trail.Record(audit.StepPipelineError, map[string]any{"error": res.Error})
		return res
	}
	if res.Entity == nil {
		status = "no_entity"
	}
	trail.Record(audit.StepPipelineCompleted, map[string]any{
		"entity_resolved": res.Entity != nil,
		"task_count":      len(res.Tasks),
	})

	r.analyze(res, ic)
	trail.Record(audit.StepReflexion, map[string]any{
		"conflicts": len(res.Conflicts),
		"gaps":      len(res.Gaps),
		"overall":   res.ConfidenceScores.Overall,
	})

	r.logger.Info("Investigation completed",
		zap.String("query", query),
		zap.String("entity_id", res.EntityID),
		zap.Int("findings", res.FindingsCount),
		zap.Int("conflicts", len(res.Conflicts)),
		zap.Int("gaps", len(res.Gaps)),
		zap.Duration("duration", time.Since(start)),
	)
	return res
}

func (r *Runner) collect(res *Result, ic *investigation.Context, trail *audit.Trail) {
	if e, ok := ic.Entity(); ok {
		res.Entity = &e
		res.EntityID = e.ID
		res.EntityName = e.Name
		trail.Record(audit.StepEntityResolved, map[string]any{"entity_id": e.ID, "name": e.Name})
	}
	res.Tasks = ic.Tasks()
	if res.Tasks == nil {
		res.Tasks = []planner.SubTask{}
	}
	if len(res.Tasks) > 0 {
		types := make([]string, len(res.Tasks))
		for i, t := range res.Tasks {
			types[i] = t.TaskType
		}
		trail.Record(audit.StepTasksPlanned, map[string]any{"task_count": len(res.Tasks), "task_types": types})
	}

	if findings := ic.AllFindings(); findings != nil {
		res.Findings = findings
	}
	res.FindingsCount = len(res.Findings)
	res.FindingsByAgent = ic.FindingsByAgent()

	res.SourceFailures = ic.SourceFailures()
	for _, f := range res.SourceFailures {
		trail.Record(audit.StepSourceFailure, map[string]any{
			"source_id": f.SourceID,
			"entity_id": f.EntityID,
			"agent_id":  f.AgentID,
			"error":     f.Error,
		})
	}
}

func (r *Runner) analyze(res *Result, ic *investigation.Context) {
	findings := res.Findings
	metrics.FindingsPerInvestigation.Observe(float64(len(findings)))

	if c := reflexion.CrossCheckFindings(findings); c != nil {
		res.Conflicts = c
	}
	metrics.ConflictsDetected.Add(float64(len(res.Conflicts)))
	if g := reflexion.DetectGaps(ic); g != nil {
		res.Gaps = g
	}
	for _, g := range res.Gaps {
		metrics.GapsDetected.WithLabelValues(g.Area).Inc()
	}
	scores := reflexion.AggregateConfidence(findings)
	res.ConfidenceScores = &scores

	nodes, edges := graph.BuildFromEvidence(findings)
	summary := graph.Summarize(nodes, edges)
	res.GraphSummary = &summary

	opts := report.Options{Query: res.Query, EntityID: res.EntityID, Graph: &summary}
	res.ReportMarkdown = report.Markdown(findings, opts)
	html, err := report.HTML(findings, opts)
	if err != nil {
		r.logger.Warn("HTML report failed", zap.Error(err))
	}
	res.ReportHTML = html

	risk := report.ComputeRiskScores(findings)
	res.RiskScores = &risk
	res.RiskDashboard = report.FormatDashboard(risk)
}

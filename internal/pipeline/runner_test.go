package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/taljindergill78/FSE570/internal/agents"
	"github.com/taljindergill78/FSE570/internal/audit"
	"github.com/taljindergill78/FSE570/internal/entities"
	"github.com/taljindergill78/FSE570/internal/investigation"
	"github.com/taljindergill78/FSE570/internal/orchestrator"
	"github.com/taljindergill78/FSE570/internal/planner"
	"github.com/taljindergill78/FSE570/internal/reflexion"
	"github.com/taljindergill78/FSE570/internal/resolver"
)

type investigatorFunc func(ctx context.Context, query string) (*investigation.Context, error)

func (f investigatorFunc) Run(ctx context.Context, query string) (*investigation.Context, error) {
	return f(ctx, query)
}

func steps(events []audit.Event) []string {
	out := make([]string, len(events))
	for i, ev := range events {
		out[i] = ev.Step
	}
	return out
}

func TestRunner_UnresolvedQuery(t *testing.T) {
	lead := orchestrator.New(resolver.DefaultRegistry(), DefaultDispatchTable(nil, nil, nil), orchestrator.Options{}, zaptest.NewLogger(t))
	res := NewRunner(lead, zaptest.NewLogger(t)).Run(context.Background(), "Acme Widgets")

	assert.Empty(t, res.Error)
	assert.Nil(t, res.Entity)
	assert.Empty(t, res.Tasks)
	assert.Zero(t, res.FindingsCount)
	require.Len(t, res.Gaps, 1)
	assert.Equal(t, reflexion.AreaEntityResolution, res.Gaps[0].Area)
	assert.Equal(t, []string{audit.StepQueryReceived, audit.StepPipelineCompleted, audit.StepReflexion}, steps(res.AuditEvents))
	assert.Contains(t, res.ReportMarkdown, "**Total findings:** 0")
	assert.Contains(t, res.RiskDashboard, "Finding count: 0")
}

func TestRunner_StubOnlyInvestigation(t *testing.T) {
	lead := orchestrator.New(resolver.DefaultRegistry(), DefaultDispatchTable(nil, nil, nil), orchestrator.Options{}, zaptest.NewLogger(t))

	var observed []string
	res := NewRunner(lead, zaptest.NewLogger(t)).RunWithObserver(context.Background(),
		"Investigate Tesla for potential money laundering",
		func(ev audit.Event) { observed = append(observed, ev.Step) })

	require.Empty(t, res.Error)
	require.NotNil(t, res.Entity)
	assert.Equal(t, resolver.TeslaID, res.EntityID)
	assert.Equal(t, "Tesla, Inc.", res.EntityName)
	assert.Len(t, res.Tasks, 5)
	assert.Equal(t, 3, res.FindingsCount)
	assert.Equal(t, map[string]int{agents.Corporate: 1, agents.Legal: 1, agents.SocialGraph: 1}, res.FindingsByAgent)

	var areas []string
	for _, g := range res.Gaps {
		areas = append(areas, g.Area)
	}
	assert.Equal(t, []string{"Sanctions / legal", "Adverse media / network", reflexion.AreaBeneficialOwnership}, areas)
	assert.Empty(t, res.Conflicts)
	require.NotNil(t, res.ConfidenceScores)
	assert.Zero(t, res.ConfidenceScores.Overall)
	require.NotNil(t, res.GraphSummary)
	assert.Equal(t, 4, res.GraphSummary.Nodes)
	assert.Contains(t, res.ReportHTML, "<h1>Investigation Evidence Report</h1>")

	assert.Equal(t, []string{
		audit.StepQueryReceived,
		audit.StepEntityResolved,
		audit.StepTasksPlanned,
		audit.StepPipelineCompleted,
		audit.StepReflexion,
	}, steps(res.AuditEvents))
	assert.Equal(t, steps(res.AuditEvents), observed)
}

func TestRunner_AgentErrorKeepsPartialResults(t *testing.T) {
	boom := errors.New("sanctions backend down")
	table := orchestrator.NewDispatchTable(
		orchestrator.AgentFunc{AgentID: agents.Corporate, Fn: func(_ context.Context, e entities.Entity, task planner.SubTask, _ *investigation.Context) ([]entities.Evidence, error) {
			return []entities.Evidence{{ID: e.ID + "_" + task.TaskType, EntityID: e.ID, Confidence: 0.9}}, nil
		}},
		orchestrator.AgentFunc{AgentID: agents.Legal, Fn: func(context.Context, entities.Entity, planner.SubTask, *investigation.Context) ([]entities.Evidence, error) {
			return nil, boom
		}},
	)
	lead := orchestrator.New(resolver.DefaultRegistry(), table, orchestrator.Options{}, zaptest.NewLogger(t))
	res := NewRunner(lead, zaptest.NewLogger(t)).Run(context.Background(), "Tesla")

	assert.Contains(t, res.Error, "sanctions backend down")
	assert.Equal(t, resolver.TeslaID, res.EntityID)
	assert.Equal(t, 1, res.FindingsCount)
	assert.Nil(t, res.ConfidenceScores)
	assert.Empty(t, res.ReportMarkdown)
	assert.Equal(t, audit.StepPipelineError, res.AuditEvents[len(res.AuditEvents)-1].Step)
}

func TestRunner_RecoversPanics(t *testing.T) {
	lead := investigatorFunc(func(context.Context, string) (*investigation.Context, error) {
		panic("nil map write")
	})
	res := NewRunner(lead, zaptest.NewLogger(t)).Run(context.Background(), "Tesla")

	assert.Equal(t, "panic: nil map write", res.Error)
	assert.Equal(t, []string{audit.StepQueryReceived, audit.StepPipelineError}, steps(res.AuditEvents))
}

func TestRunner_SourceFailuresAreAudited(t *testing.T) {
	lead := investigatorFunc(func(context.Context, string) (*investigation.Context, error) {
		ic := investigation.New()
		ic.SetEntity(resolver.DefaultEntities()[0])
		ic.RecordSourceFailure(investigation.SourceFailure{SourceID: "sec_edgar", EntityID: resolver.TeslaID, AgentID: agents.Corporate, Error: "status 503"})
		return ic, nil
	})
	res := NewRunner(lead, zaptest.NewLogger(t)).Run(context.Background(), "Tesla")

	require.Len(t, res.SourceFailures, 1)
	assert.Contains(t, steps(res.AuditEvents), audit.StepSourceFailure)

	var fetchGaps int
	for _, g := range res.Gaps {
		if g.Area == reflexion.AreaSourceFetch {
			fetchGaps++
		}
	}
	assert.Equal(t, 1, fetchGaps)
}

// Package specialists implements the agents the lead orchestrator dispatches
// sub-tasks to. Each agent switches on the task type and falls back to a
// default handler for types it does not know.
package specialists

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/taljindergill78/FSE570/internal/agents"
	"github.com/taljindergill78/FSE570/internal/entities"
	"github.com/taljindergill78/FSE570/internal/investigation"
	"github.com/taljindergill78/FSE570/internal/planner"
)

// EvidenceGateway is the slice of the source gateway the corporate agent uses.
type EvidenceGateway interface {
	EvidenceForEntity(ctx context.Context, entity entities.Entity, sourceIDs []string) ([]entities.Evidence, []investigation.SourceFailure)
}

// CorporateAgent covers filings, regulator records and corporate structure.
type CorporateAgent struct {
	gateway EvidenceGateway
	sources []string
	logger  *zap.Logger
}

// NewCorporateAgent queries sourceIDs through gateway. A nil gateway makes
// the agent return only the structure mapper placeholder.
func NewCorporateAgent(gateway EvidenceGateway, sourceIDs []string, logger *zap.Logger) *CorporateAgent {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CorporateAgent{
		gateway: gateway,
		sources: append([]string(nil), sourceIDs...),
		logger:  logger,
	}
}

func (a *CorporateAgent) ID() string { return agents.Corporate }

// Run maps beneficial ownership to the structure mapper; every other task
// pulls source evidence and appends a governance summary row. Source
// failures are recorded on the context rather than returned.
func (a *CorporateAgent) Run(ctx context.Context, entity entities.Entity, task planner.SubTask, ic *investigation.Context) ([]entities.Evidence, error) {
	if task.TaskType == agents.TaskBeneficialOwnership {
		return StructureMapperStub(entity), nil
	}
	if a.gateway == nil {
		return nil, nil
	}

	evidence, failures := a.gateway.EvidenceForEntity(ctx, entity, a.sources)
	for _, f := range failures {
		f.AgentID = a.ID()
		if ic != nil {
			ic.RecordSourceFailure(f)
		}
		a.logger.Warn("Corporate evidence source degraded",
			zap.String("task_type", task.TaskType),
			zap.String("source", f.SourceID),
			zap.String("error", f.Error),
		)
	}
	return append(evidence, SummarizeGovernanceRedFlags(evidence, entity.ID)...), nil
}

// SummarizeGovernanceRedFlags adds one governance row counting SEC filings,
// regulator records and 8-K (executive change) filings. Empty input yields
// nothing.
func SummarizeGovernanceRedFlags(evidence []entities.Evidence, entityID string) []entities.Evidence {
	if len(evidence) == 0 {
		return nil
	}
	var secCount, regCount, eightK int
	for _, e := range evidence {
		switch e.SourceType {
		case entities.SourceSECFiling:
			secCount++
			if form, _ := e.Attributes[entities.AttrForm].(string); form == "8-K" {
				eightK++
			}
		case entities.SourceRegulatorAPI:
			regCount++
		}
	}
	return []entities.Evidence{{
		ID:           entityID + "_corporate_summary",
		EntityID:     entityID,
		Date:         evidence[0].Date,
		SourceType:   entities.SourceOther,
		RiskCategory: entities.RiskGovernance,
		Summary: fmt.Sprintf(
			"Governance/regulatory summary: %d SEC filing(s), %d regulator record(s). Executive turnover events (8-K): %d.",
			secCount, regCount, eightK,
		),
		Confidence: 0.85,
		Attributes: map[string]any{
			"sec_count":     secCount,
			"reg_count":     regCount,
			"eight_k_count": eightK,
		},
	}}
}

package specialists

import (
	"context"

	"github.com/taljindergill78/FSE570/internal/agents"
	"github.com/taljindergill78/FSE570/internal/entities"
	"github.com/taljindergill78/FSE570/internal/investigation"
	"github.com/taljindergill78/FSE570/internal/planner"
)

// LegalAgent covers sanctions screening and court records.
type LegalAgent struct{}

func NewLegalAgent() *LegalAgent { return &LegalAgent{} }

func (a *LegalAgent) ID() string { return agents.Legal }

func (a *LegalAgent) Run(_ context.Context, entity entities.Entity, task planner.SubTask, _ *investigation.Context) ([]entities.Evidence, error) {
	switch task.TaskType {
	case agents.TaskSanctionsScreening:
		return SanctionsStub(entity), nil
	case agents.TaskLitigation, agents.TaskRegulatoryActions:
		return PACERStub(entity), nil
	default:
		return SanctionsStub(entity), nil
	}
}

package specialists

import (
	"context"

	"github.com/taljindergill78/FSE570/internal/agents"
	"github.com/taljindergill78/FSE570/internal/entities"
	"github.com/taljindergill78/FSE570/internal/investigation"
	"github.com/taljindergill78/FSE570/internal/planner"
)

// SocialGraphAgent covers network analysis and adverse media.
type SocialGraphAgent struct{}

func NewSocialGraphAgent() *SocialGraphAgent { return &SocialGraphAgent{} }

func (a *SocialGraphAgent) ID() string { return agents.SocialGraph }

func (a *SocialGraphAgent) Run(_ context.Context, entity entities.Entity, task planner.SubTask, _ *investigation.Context) ([]entities.Evidence, error) {
	switch task.TaskType {
	case agents.TaskNetworkAnalysis, agents.TaskAdverseMedia:
		return GNNStub(entity), nil
	default:
		return InfluenceStub(entity), nil
	}
}

// Package orchestrator drives an investigation: resolve the entity, plan
// sub-tasks, dispatch them to specialist agents and collect the findings.
package orchestrator

import (
	"context"

	"github.com/taljindergill78/FSE570/internal/entities"
	"github.com/taljindergill78/FSE570/internal/investigation"
	"github.com/taljindergill78/FSE570/internal/planner"
)

// Agent is a specialist the lead can dispatch to. Agents may read the
// investigation context, including other agents' findings.
type Agent interface {
	ID() string
	Run(ctx context.Context, entity entities.Entity, task planner.SubTask, ic *investigation.Context) ([]entities.Evidence, error)
}

// AgentFunc adapts a function to Agent under a fixed id.
type AgentFunc struct {
	AgentID string
	Fn      func(ctx context.Context, entity entities.Entity, task planner.SubTask, ic *investigation.Context) ([]entities.Evidence, error)
}

func (f AgentFunc) ID() string { return f.AgentID }

func (f AgentFunc) Run(ctx context.Context, entity entities.Entity, task planner.SubTask, ic *investigation.Context) ([]entities.Evidence, error) {
	return f.Fn(ctx, entity, task, ic)
}

// DispatchTable maps target agent ids to agents. It is built once and
// read-only afterwards.
type DispatchTable map[string]Agent

// NewDispatchTable indexes agents by ID; later agents replace earlier ones.
func NewDispatchTable(list ...Agent) DispatchTable {
	t := make(DispatchTable, len(list))
	for _, a := range list {
		t[a.ID()] = a
	}
	return t
}

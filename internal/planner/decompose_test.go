package planner

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/taljindergill78/FSE570/internal/agents"
	"github.com/taljindergill78/FSE570/internal/entities"
)

func taskTypes(tasks []SubTask) []string {
	out := make([]string, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, t.TaskType)
	}
	return out
}

func TestDecomposeMoneyLaundering(t *testing.T) {
	queries := []string{
		"Investigate Tesla for money laundering",
		"tesla AML review",
		"Who is the BENEFICIAL OWNER of Tesla",
		"check ofac exposure",
		"Proceeds of crime in Tesla Motors",
	}
	for _, q := range queries {
		t.Run(q, func(t *testing.T) {
			tasks := Decompose(q, nil)
			assert.Equal(t, []string{
				agents.TaskCorporateStructure,
				agents.TaskBeneficialOwnership,
				agents.TaskSanctionsScreening,
				agents.TaskTransactionPatterns,
				agents.TaskAdverseMedia,
			}, taskTypes(tasks))
			assert.Equal(t, agents.Corporate, tasks[0].TargetAgent)
			assert.Equal(t, agents.Legal, tasks[2].TargetAgent)
			assert.Equal(t, agents.SocialGraph, tasks[4].TargetAgent)
		})
	}
}

func TestDecomposeDefault(t *testing.T) {
	for _, q := range []string{"", "Tesla governance overview", "   "} {
		tasks := Decompose(q, nil)
		assert.Equal(t, []string{agents.TaskSECFilings, agents.TaskSanctionsScreening, agents.TaskAdverseMedia}, taskTypes(tasks))
		assert.Equal(t, "Review SEC filings and governance", tasks[0].Description)
	}
}

func TestDecomposeIgnoresEntity(t *testing.T) {
	e := entities.NewEntity("x", "X", entities.EntityIndividual, nil, nil)
	assert.Equal(t, Decompose("sanctions", nil), Decompose("sanctions", &e))
}

func TestDecomposeReturnsFreshSlice(t *testing.T) {
	first := Decompose("aml", nil)
	first[0].TaskType = "mutated"
	assert.Equal(t, agents.TaskCorporateStructure, Decompose("aml", nil)[0].TaskType)
}

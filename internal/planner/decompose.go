// Package planner turns an investigation query into an ordered list of
// sub-tasks bound to specialist agents.
package planner

import (
	"strings"

	"github.com/taljindergill78/FSE570/internal/agents"
	"github.com/taljindergill78/FSE570/internal/entities"
)

// SubTask is one unit of work for a specialist agent.
type SubTask struct {
	TaskType    string `json:"task_type"`
	TargetAgent string `json:"target_agent"`
	Description string `json:"description"`
}

// moneyLaunderingKeywords trigger the compliance branch when any appears in the query.
var moneyLaunderingKeywords = []string{
	"money laundering",
	"money-laundering",
	"laundering",
	"aml",
	"anti-money",
	"proceeds of crime",
	"shell company",
	"beneficial owner",
	"beneficial ownership",
	"sanctions",
	"ofac",
	"transaction pattern",
	"adverse media",
	"pep",
	"politically exposed",
}

var moneyLaunderingTasks = []SubTask{
	{agents.TaskCorporateStructure, agents.Corporate, "Analyze corporate structure and subsidiaries for red flags"},
	{agents.TaskBeneficialOwnership, agents.Corporate, "Map beneficial ownership and undisclosed interests"},
	{agents.TaskSanctionsScreening, agents.Legal, "Screen against OFAC and sanctions lists"},
	{agents.TaskTransactionPatterns, agents.Corporate, "Identify unusual transaction or revenue patterns"},
	{agents.TaskAdverseMedia, agents.SocialGraph, "Review adverse media and public records"},
}

var defaultTasks = []SubTask{
	{agents.TaskSECFilings, agents.Corporate, "Review SEC filings and governance"},
	{agents.TaskSanctionsScreening, agents.Legal, "Screen against sanctions lists"},
	{agents.TaskAdverseMedia, agents.SocialGraph, "Check adverse media"},
}

// IsMoneyLaunderingQuery reports whether the query contains a compliance keyword.
func IsMoneyLaunderingQuery(query string) bool {
	q := strings.ToLower(query)
	for _, kw := range moneyLaunderingKeywords {
		if strings.Contains(q, kw) {
			return true
		}
	}
	return false
}

// Decompose returns the sub-tasks for a query. The resolved entity is accepted
// for entity-specific planning later but does not change the output today.
func Decompose(query string, entity *entities.Entity) []SubTask {
	_ = entity
	src := defaultTasks
	if IsMoneyLaunderingQuery(query) {
		src = moneyLaunderingTasks
	}
	out := make([]SubTask, len(src))
	copy(out, src)
	return out
}

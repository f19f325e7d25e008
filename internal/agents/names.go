package agents

// Specialist agent identifiers. These double as the investigation context
// bucket keys, so they must stay stable across releases.
const (
	Corporate   = "corporate_agent"
	Legal       = "legal_agent"
	SocialGraph = "social_graph_agent"
)

// Task types emitted by the planner and dispatched on by the specialists.
const (
	TaskCorporateStructure  = "corporate_structure"
	TaskBeneficialOwnership = "beneficial_ownership"
	TaskSanctionsScreening  = "sanctions_screening"
	TaskTransactionPatterns = "transaction_patterns"
	TaskAdverseMedia        = "adverse_media"
	TaskSECFilings          = "sec_filings"
	TaskLitigation          = "litigation"
	TaskRegulatoryActions   = "regulatory_actions"
	TaskNetworkAnalysis     = "network_analysis"
	TaskGovernanceRedFlags  = "governance_red_flags"
	TaskInfluenceMapping    = "influence_mapping"
)

var displayNames = map[string]string{
	Corporate:   "Corporate",
	Legal:       "Legal",
	SocialGraph: "Social Graph",
}

// DisplayName returns a human label for an agent id; unknown ids are returned as-is.
func DisplayName(agentID string) string {
	if n, ok := displayNames[agentID]; ok {
		return n
	}
	return agentID
}

// All returns the known specialist ids in dispatch-table order.
func All() []string {
	return []string{Corporate, Legal, SocialGraph}
}

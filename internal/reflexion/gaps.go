package reflexion

import (
	"fmt"
	"strings"

	"github.com/taljindergill78/FSE570/internal/agents"
	"github.com/taljindergill78/FSE570/internal/investigation"
)

// Gap areas that are not tied to a watched agent.
const (
	AreaEntityResolution    = "entity_resolution"
	AreaBeneficialOwnership = "beneficial_ownership"
	AreaSourceFetch         = "source_fetch"
)

// Gap is an area of missing investigative coverage.
type Gap struct {
	Area        string `json:"area"`
	Description string `json:"description"`
	FollowUp    string `json:"suggested_follow_up,omitempty"`
}

type watchedAgent struct {
	agentID     string
	area        string
	description string
	followUp    string
}

// Agents whose integrations are placeholders; empty or stub-only output is a gap.
var watchedAgents = []watchedAgent{
	{
		agentID:     agents.Legal,
		area:        "Sanctions / legal",
		description: "Sanctions screening and PACER not yet integrated.",
		followUp:    "Add OFAC/sanctions list or CourtListener integration.",
	},
	{
		agentID:     agents.SocialGraph,
		area:        "Adverse media / network",
		description: "Social graph and adverse media not yet integrated.",
		followUp:    "Add Twitter/LinkedIn or GDELT integration.",
	},
}

// DetectGaps lists missing coverage for an investigation. Without a resolved
// entity the only gap is entity_resolution. Gaps are additive.
func DetectGaps(ic *investigation.Context) []Gap {
	if _, ok := ic.Entity(); !ok {
		return []Gap{{
			Area:        AreaEntityResolution,
			Description: "No entity resolved from query.",
			FollowUp:    "Rephrase query with a known entity name or identifier.",
		}}
	}

	var gaps []Gap
	for _, w := range watchedAgents {
		results := ic.AgentResults(w.agentID)
		if len(results) == 0 {
			gaps = append(gaps, Gap{Area: w.area, Description: w.description + " No findings returned.", FollowUp: w.followUp})
			continue
		}
		allStub := true
		for _, e := range results {
			if !e.IsStub() {
				allStub = false
				break
			}
		}
		if allStub {
			gaps = append(gaps, Gap{Area: w.area, Description: w.description + " Only stub placeholders returned.", FollowUp: w.followUp})
		}
	}

	for _, e := range ic.AgentResults(agents.Corporate) {
		if strings.Contains(e.ID, "structure_mapper") && e.IsStub() {
			gaps = append(gaps, Gap{
				Area:        AreaBeneficialOwnership,
				Description: "Beneficial ownership / structure mapping not yet integrated (OpenCorporates planned).",
				FollowUp:    "Integrate OpenCorporates API for corporate network data.",
			})
			break
		}
	}

	for _, f := range ic.SourceFailures() {
		gaps = append(gaps, Gap{
			Area:        AreaSourceFetch,
			Description: fmt.Sprintf("Source %s failed for %s: %s", f.SourceID, f.EntityID, f.Error),
			FollowUp:    fmt.Sprintf("Retry the %s fetch or check the cached payload under the data root.", f.SourceID),
		})
	}
	return gaps
}

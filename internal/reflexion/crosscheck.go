// Package reflexion runs post-hoc analyses over the evidence an
// investigation collected: consistency conflicts, coverage gaps and
// confidence aggregation. Everything here is a pure function of its input.
package reflexion

import (
	"fmt"
	"strings"

	"github.com/taljindergill78/FSE570/internal/entities"
)

// DimensionSummaryConsistency tags conflicts between summaries sharing an entity and date.
const DimensionSummaryConsistency = "summary_consistency"

const maxConflictIDs = 5

// Conflict is an inconsistency between two or more evidence rows.
type Conflict struct {
	Dimension   string   `json:"dimension"`
	EvidenceIDs []string `json:"evidence_ids"`
	Description string   `json:"description"`
}

type entityDate struct {
	entityID string
	date     string
}

// CrossCheckFindings groups dated evidence by (entity, date) and reports each
// group whose non-empty summaries disagree. Groups are reported in the order
// they were first seen; at most five ids are kept per conflict.
func CrossCheckFindings(findings []entities.Evidence) []Conflict {
	var (
		order  []entityDate
		groups = make(map[entityDate][]entities.Evidence)
	)
	for _, e := range findings {
		if e.Date == "" {
			continue
		}
		k := entityDate{e.EntityID, e.Date}
		if _, seen := groups[k]; !seen {
			order = append(order, k)
		}
		groups[k] = append(groups[k], e)
	}

	var conflicts []Conflict
	for _, k := range order {
		group := groups[k]
		if len(group) < 2 {
			continue
		}
		distinct := make(map[string]struct{}, len(group))
		for _, e := range group {
			if e.Summary == "" {
				continue
			}
			distinct[strings.TrimSpace(e.Summary)] = struct{}{}
		}
		if len(distinct) <= 1 {
			continue
		}
		n := min(len(group), maxConflictIDs)
		ids := make([]string, 0, n)
		for _, e := range group[:n] {
			ids = append(ids, e.ID)
		}
		conflicts = append(conflicts, Conflict{
			Dimension:   DimensionSummaryConsistency,
			EvidenceIDs: ids,
			Description: fmt.Sprintf("Same entity/date (%s, %s) has differing summaries across %d findings.", k.entityID, k.date, len(group)),
		})
	}
	return conflicts
}

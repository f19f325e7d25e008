package specialists

import (
	"github.com/taljindergill78/FSE570/internal/entities"
)

// Placeholder analyzers. Each returns a single zero-confidence row marked
// with the stub attribute so gap detection can tell "not integrated" apart
// from "nothing found".

func stubEvidence(entityID, suffix string, source entities.SourceType, risk entities.RiskCategory, summary string) []entities.Evidence {
	return []entities.Evidence{{
		ID:           entityID + "_" + suffix,
		EntityID:     entityID,
		SourceType:   source,
		RiskCategory: risk,
		Summary:      summary,
		Confidence:   0,
		Attributes:   map[string]any{entities.AttrStub: true},
	}}
}

// StructureMapperStub stands in for beneficial ownership mapping.
func StructureMapperStub(entity entities.Entity) []entities.Evidence {
	return stubEvidence(entity.ID, "structure_mapper_stub", entities.SourceOther, entities.RiskGovernance,
		"Structure Mapper: beneficial ownership and corporate network data not yet integrated (OpenCorporates planned).")
}

// PACERStub stands in for court record analysis.
func PACERStub(entity entities.Entity) []entities.Evidence {
	return stubEvidence(entity.ID, "pacer_stub", entities.SourceCourtRecord, entities.RiskLegal,
		"PACER/court record analysis not yet integrated (paywalled). CourtListener may be added later.")
}

// SanctionsStub stands in for sanctions list screening.
func SanctionsStub(entity entities.Entity) []entities.Evidence {
	return stubEvidence(entity.ID, "sanctions_stub", entities.SourceOther, entities.RiskLegal,
		"Sanctions screening not yet integrated (OFAC/UN/EU lists planned). No sanctions data returned.")
}

// GNNStub stands in for social network analysis.
func GNNStub(entity entities.Entity) []entities.Evidence {
	return stubEvidence(entity.ID, "gnn_stub", entities.SourceOther, entities.RiskNetwork,
		"GNN/social network analysis not yet integrated (Twitter/LinkedIn APIs planned).")
}

// InfluenceStub stands in for influence mapping.
func InfluenceStub(entity entities.Entity) []entities.Evidence {
	return stubEvidence(entity.ID, "influence_stub", entities.SourceOther, entities.RiskNetwork,
		"Influence mapping not yet integrated (social graph data required).")
}

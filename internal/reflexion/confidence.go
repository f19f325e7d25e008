package reflexion

import (
	"math"

	"github.com/taljindergill78/FSE570/internal/entities"
)

// SourceReliability weights raw confidence by how trustworthy a source type is.
var SourceReliability = map[entities.SourceType]float64{
	entities.SourceSECFiling:       0.95,
	entities.SourceSECSubmissions:  0.9,
	entities.SourceRegulatorAPI:    0.85,
	entities.SourceRegulatorReport: 0.85,
	entities.SourceCourtRecord:     0.8,
	entities.SourceNewsArticle:     0.6,
	entities.SourceOther:           0.5,
}

// ConfidenceScores is the mean confidence overall and per dimension.
type ConfidenceScores struct {
	Overall        float64                           `json:"overall"`
	ByRiskCategory map[entities.RiskCategory]float64 `json:"by_risk_category"`
	BySourceType   map[entities.SourceType]float64   `json:"by_source_type"`
}

// AggregateConfidence averages confidence overall, by risk category and by
// source type. Only the overall mean is rounded, to four decimal places.
func AggregateConfidence(findings []entities.Evidence) ConfidenceScores {
	scores := ConfidenceScores{
		ByRiskCategory: map[entities.RiskCategory]float64{},
		BySourceType:   map[entities.SourceType]float64{},
	}
	if len(findings) == 0 {
		return scores
	}

	type acc struct {
		sum float64
		n   int
	}
	byRisk := map[entities.RiskCategory]*acc{}
	bySource := map[entities.SourceType]*acc{}
	var total float64
	for _, e := range findings {
		total += e.Confidence
		if byRisk[e.RiskCategory] == nil {
			byRisk[e.RiskCategory] = &acc{}
		}
		byRisk[e.RiskCategory].sum += e.Confidence
		byRisk[e.RiskCategory].n++
		if bySource[e.SourceType] == nil {
			bySource[e.SourceType] = &acc{}
		}
		bySource[e.SourceType].sum += e.Confidence
		bySource[e.SourceType].n++
	}

	scores.Overall = round4(total / float64(len(findings)))
	for k, a := range byRisk {
		scores.ByRiskCategory[k] = a.sum / float64(a.n)
	}
	for k, a := range bySource {
		scores.BySourceType[k] = a.sum / float64(a.n)
	}
	return scores
}

// AdjustedEvidence pairs a finding with its reliability-discounted confidence.
type AdjustedEvidence struct {
	Evidence   entities.Evidence `json:"evidence"`
	Confidence float64           `json:"adjusted_confidence"`
}

// AdjustedConfidence scales each finding's confidence by its source
// reliability, capped at 1. Unlisted source types get the "other" weight.
// The input is not modified.
func AdjustedConfidence(findings []entities.Evidence) []AdjustedEvidence {
	out := make([]AdjustedEvidence, 0, len(findings))
	for _, e := range findings {
		w, ok := SourceReliability[e.SourceType]
		if !ok {
			w = SourceReliability[entities.SourceOther]
		}
		out = append(out, AdjustedEvidence{
			Evidence:   e.Clone(),
			Confidence: round4(math.Min(1, e.Confidence*w)),
		})
	}
	return out
}

func round4(v float64) float64 {
	return math.Round(v*1e4) / 1e4
}

package entities

import (
	"fmt"
	"strings"
)

// SourceType tags where a piece of evidence came from.
type SourceType string

const (
	SourceSECSubmissions  SourceType = "sec_submissions"
	SourceSECFiling       SourceType = "sec_filing"
	SourceRegulatorAPI    SourceType = "regulator_api"
	SourceRegulatorReport SourceType = "regulator_report"
	SourceCourtRecord     SourceType = "court_record"
	SourceNewsArticle     SourceType = "news_article"
	SourceOther           SourceType = "other"
)

// ParseSourceType maps a tag onto SourceType; unknown tags become SourceOther.
func ParseSourceType(s string) SourceType {
	switch t := SourceType(strings.TrimSpace(s)); t {
	case SourceSECSubmissions, SourceSECFiling, SourceRegulatorAPI, SourceRegulatorReport,
		SourceCourtRecord, SourceNewsArticle:
		return t
	default:
		return SourceOther
	}
}

// RiskCategory groups evidence for reporting and scoring.
type RiskCategory string

const (
	RiskGovernance RiskCategory = "governance"
	RiskRegulatory RiskCategory = "regulatory"
	RiskLegal      RiskCategory = "legal"
	RiskNetwork    RiskCategory = "network"
	RiskOther      RiskCategory = "other"
)

// RiskCategories lists categories in report order.
var RiskCategories = []RiskCategory{RiskGovernance, RiskRegulatory, RiskLegal, RiskNetwork, RiskOther}

// ParseRiskCategory maps a tag onto RiskCategory; unknown tags become RiskOther.
func ParseRiskCategory(s string) RiskCategory {
	switch t := RiskCategory(strings.TrimSpace(s)); t {
	case RiskGovernance, RiskRegulatory, RiskLegal, RiskNetwork:
		return t
	default:
		return RiskOther
	}
}

// MaxSummaryLen bounds Evidence.Summary; producers clip before construction.
const MaxSummaryLen = 5000

// Well-known attribute keys.
const (
	AttrStub = "stub"

	// SEC EDGAR
	AttrForm            = "form"
	AttrAccessionNumber = "accessionNumber"
	AttrPrimaryDocument = "primaryDocument"

	// NHTSA recalls
	AttrNHTSAID             = "nhtsa_id"
	AttrManufacturer        = "manufacturer"
	AttrSubject             = "subject"
	AttrComponent           = "component"
	AttrRecallType          = "recall_type"
	AttrPotentiallyAffected = "potentially_affected"
	AttrCampaignNumber      = "mfr_campaign_number"
	AttrConsequence         = "consequence_summary"
	AttrCorrectiveAction    = "corrective_action"
)

// Evidence is a single citable claim about an entity.
type Evidence struct {
	ID           string         `json:"evidence_id"`
	EntityID     string         `json:"entity_id"`
	Date         string         `json:"date"`
	SourceType   SourceType     `json:"source_type"`
	RiskCategory RiskCategory   `json:"risk_category"`
	Summary      string         `json:"summary"`
	SourceURI    string         `json:"source_uri"`
	RawLocation  string         `json:"raw_location,omitempty"`
	Confidence   float64        `json:"confidence"`
	Attributes   map[string]any `json:"attributes,omitempty"`
}

// IsStub reports whether the evidence is a placeholder carrying no real data.
func (e Evidence) IsStub() bool {
	v, ok := e.Attributes[AttrStub]
	if !ok {
		return false
	}
	switch b := v.(type) {
	case bool:
		return b
	case string:
		return strings.EqualFold(b, "true")
	default:
		return false
	}
}

// Validate enforces the confidence range.
func (e Evidence) Validate() error {
	if !(e.Confidence >= 0 && e.Confidence <= 1) {
		return fmt.Errorf("evidence %s: confidence %v out of range [0,1]", e.ID, e.Confidence)
	}
	return nil
}

// Clone returns a copy with its own attribute map.
func (e Evidence) Clone() Evidence {
	out := e
	if e.Attributes != nil {
		out.Attributes = make(map[string]any, len(e.Attributes))
		for k, v := range e.Attributes {
			out.Attributes[k] = v
		}
	}
	return out
}

// EvidenceID builds a deterministic id from entity, source and discriminator:
// lowercased, spaces replaced with underscores.
func EvidenceID(entityID, source, discriminator string) string {
	return NormalizeID(entityID + "_" + source + "_" + discriminator)
}

// NormalizeID lowercases s and replaces spaces with underscores.
func NormalizeID(s string) string {
	return strings.ReplaceAll(strings.ToLower(s), " ", "_")
}

// CloneAll copies a slice of evidence.
func CloneAll(in []Evidence) []Evidence {
	if in == nil {
		return nil
	}
	out := make([]Evidence, len(in))
	for i := range in {
		out[i] = in[i].Clone()
	}
	return out
}

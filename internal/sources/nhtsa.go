package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/taljindergill78/FSE570/internal/entities"
	"github.com/taljindergill78/FSE570/internal/util"
)

const (
	DefaultDataHubBaseURL = "https://datahub.transportation.gov"
	// RecallsViewID is the Socrata view behind "NHTSA Recalls by Manufacturer".
	RecallsViewID    = "6axg-epim"
	DefaultNHTSAPage = 5000
	nhtsaFallbackURI = "https://www.nhtsa.gov/recalls"
	nhtsaMaxPages    = 200
)

// NHTSAConfig configures the recalls processor.
type NHTSAConfig struct {
	BaseURL  string
	PageSize int
}

// NHTSAProcessor derives recall evidence for vehicle manufacturers.
type NHTSAProcessor struct {
	cfg     NHTSAConfig
	cache   PayloadCache
	fetcher Fetcher
	logger  *zap.Logger
}

func NewNHTSAProcessor(cfg NHTSAConfig, cache PayloadCache, fetcher Fetcher, logger *zap.Logger) *NHTSAProcessor {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultDataHubBaseURL
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = DefaultNHTSAPage
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NHTSAProcessor{cfg: cfg, cache: cache, fetcher: fetcher, logger: logger}
}

func (p *NHTSAProcessor) SourceID() string { return SourceNHTSA }

// MakeForEntity uses the "make" identifier, else the part of the name before
// the first comma ("Tesla, Inc." becomes "TESLA").
func MakeForEntity(entity entities.Entity) string {
	if m := entity.Identifier("make"); m != "" {
		return strings.ToUpper(m)
	}
	if entity.Name == "" {
		return ""
	}
	head, _, _ := strings.Cut(entity.Name, ",")
	return strings.ToUpper(strings.TrimSpace(head))
}

func nhtsaCacheKey(vehicleMake string) string { return "nhtsa/recalls_make_" + vehicleMake + ".json" }

func (p *NHTSAProcessor) EvidenceForEntity(ctx context.Context, entity entities.Entity) ([]entities.Evidence, error) {
	vehicleMake := MakeForEntity(entity)
	if vehicleMake == "" {
		return nil, nil
	}
	payload, err := p.Recalls(ctx, vehicleMake)
	if err != nil {
		return nil, err
	}
	records, err := extractRecallRecords(payload)
	if err != nil {
		return nil, fmt.Errorf("malformed NHTSA payload for %s: %w", vehicleMake, err)
	}
	return recordsToEvidence(records, entity.ID, p.cache.Location(nhtsaCacheKey(vehicleMake))), nil
}

// RecallsPayload is the cached shape of a recalls pull.
type RecallsPayload struct {
	Results []map[string]any `json:"results"`
	Source  string           `json:"source"`
	Where   string           `json:"where"`
}

// Recalls returns the cached recalls payload for a make, fetching every page
// from DataHub on a cache miss.
func (p *NHTSAProcessor) Recalls(ctx context.Context, vehicleMake string) ([]byte, error) {
	vehicleMake = strings.ToUpper(strings.TrimSpace(vehicleMake))
	key := nhtsaCacheKey(vehicleMake)
	data, ok, err := p.cache.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	if ok {
		return data, nil
	}

	endpoint := strings.TrimRight(p.cfg.BaseURL, "/") + "/resource/" + RecallsViewID + ".json"
	where := "upper(manufacturer) like '%" + strings.ReplaceAll(vehicleMake, "'", "''") + "%'"
	payload := RecallsPayload{Results: []map[string]any{}, Source: endpoint, Where: where}

	for page := 0; page < nhtsaMaxPages; page++ {
		q := url.Values{}
		q.Set("$limit", strconv.Itoa(p.cfg.PageSize))
		q.Set("$offset", strconv.Itoa(page*p.cfg.PageSize))
		q.Set("$where", where)

		body, err := p.fetcher.Get(ctx, endpoint, q, nil)
		if err != nil {
			return nil, fmt.Errorf("DOT DataHub request failed: %w", err)
		}
		var batch []json.RawMessage
		if err := json.Unmarshal(body, &batch); err != nil {
			return nil, fmt.Errorf("malformed DOT DataHub page at offset %d: %w", page*p.cfg.PageSize, err)
		}
		if len(batch) == 0 {
			break
		}
		for _, raw := range batch {
			var row map[string]any
			if json.Unmarshal(raw, &row) == nil && row != nil {
				payload.Results = append(payload.Results, row)
			}
		}
		if len(batch) < p.cfg.PageSize {
			break
		}
	}

	data, err = json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return nil, err
	}
	if err := p.cache.Put(ctx, key, data); err != nil {
		p.logger.Warn("Failed to cache NHTSA recalls", zap.String("key", key), zap.Error(err))
	}
	p.logger.Debug("Fetched NHTSA recalls", zap.String("make", vehicleMake), zap.Int("records", len(payload.Results)))
	return data, nil
}

func extractRecallRecords(payload []byte) ([]map[string]any, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(payload, &raw); err != nil {
		return nil, err
	}
	results, ok := raw["results"]
	if !ok {
		results = raw["Results"]
	}
	var items []json.RawMessage
	if len(results) == 0 || json.Unmarshal(results, &items) != nil {
		return nil, nil
	}
	out := make([]map[string]any, 0, len(items))
	for _, item := range items {
		var rec map[string]any
		if json.Unmarshal(item, &rec) == nil && rec != nil {
			out = append(out, rec)
		}
	}
	return out, nil
}

// field returns the first non-empty value among keys, rendered as a string.
func field(rec map[string]any, keys ...string) string {
	for _, k := range keys {
		switch v := rec[k].(type) {
		case nil:
		case string:
			if v != "" {
				return v
			}
		case float64:
			return strconv.FormatFloat(v, 'f', -1, 64)
		case bool:
			return strconv.FormatBool(v)
		default:
			return fmt.Sprint(v)
		}
	}
	return ""
}

func recordsToEvidence(records []map[string]any, entityID, rawLocation string) []entities.Evidence {
	out := make([]entities.Evidence, 0, len(records))
	for _, r := range records {
		reportDate := field(r, "report_received_date", "ReportReceivedDate")
		if reportDate == "" {
			continue
		}
		nhtsaID := field(r, "nhtsa_id", "NHTSA_ID")
		subject := field(r, "subject", "Subject")
		campaign := field(r, "mfr_campaign_number")
		defect := field(r, "defect_summary", "Summary")

		recallURL := ""
		if link, ok := r["recall_link"].(map[string]any); ok {
			recallURL = field(link, "url")
		}

		out = append(out, entities.Evidence{
			ID:           entities.EvidenceID(entityID, "nhtsa", util.FirstNonEmpty(nhtsaID, campaign, reportDate)),
			EntityID:     entityID,
			Date:         util.Clip(reportDate, 10),
			SourceType:   entities.SourceRegulatorAPI,
			RiskCategory: entities.RiskRegulatory,
			Summary:      util.Clip(strings.TrimSpace(util.FirstNonEmpty(defect, subject)), entities.MaxSummaryLen),
			SourceURI:    util.FirstNonEmpty(recallURL, nhtsaFallbackURI),
			RawLocation:  rawLocation,
			Confidence:   0.8,
			Attributes: map[string]any{
				entities.AttrNHTSAID:             nhtsaID,
				entities.AttrManufacturer:        field(r, "manufacturer"),
				entities.AttrSubject:             subject,
				entities.AttrComponent:           field(r, "component", "Component"),
				entities.AttrRecallType:          field(r, "recall_type"),
				entities.AttrPotentiallyAffected: field(r, "potentially_affected"),
				entities.AttrCampaignNumber:      campaign,
				entities.AttrConsequence:         util.Clip(strings.TrimSpace(field(r, "consequence_summary", "Consequence")), entities.MaxSummaryLen),
				entities.AttrCorrectiveAction:    util.Clip(strings.TrimSpace(field(r, "corrective_action", "Remedy")), entities.MaxSummaryLen),
			},
		})
	}
	return out
}

package sources

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/taljindergill78/FSE570/internal/entities"
)

const (
	DefaultSECBaseURL      = "https://data.sec.gov"
	DefaultSECArchivesURL  = "https://www.sec.gov/Archives"
	DefaultSECMaxFilings   = 500
	secSummaryFormFallback = "FILING"
)

var (
	// ErrMissingUserAgent is returned when a live SEC fetch is attempted
	// without a declared User-Agent, which SEC fair-access rules require.
	ErrMissingUserAgent = errors.New("missing SEC user agent: set SEC_USER_AGENT to something like \"Your Name your_email@example.com\"")
	ErrInvalidCIK       = errors.New("CIK must be digits only")
)

// governanceForms are filings that speak to control and management.
var governanceForms = map[string]bool{"8-K": true, "4": true, "DEF 14A": true}

// NormalizeCIK zero-pads a numeric CIK to ten digits.
func NormalizeCIK(cik string) (string, error) {
	cik = strings.TrimSpace(cik)
	if cik == "" {
		return "", fmt.Errorf("%w, got %q", ErrInvalidCIK, cik)
	}
	for _, r := range cik {
		if r < '0' || r > '9' {
			return "", fmt.Errorf("%w, got %q", ErrInvalidCIK, cik)
		}
	}
	if len(cik) >= 10 {
		return cik, nil
	}
	return strings.Repeat("0", 10-len(cik)) + cik, nil
}

// SECConfig configures the EDGAR submissions processor.
type SECConfig struct {
	BaseURL     string
	ArchivesURL string
	UserAgent   string
	// Forms limits evidence to these form types; empty keeps all.
	Forms      []string
	MaxFilings int
}

// SECProcessor derives filing evidence from the EDGAR submissions feed.
type SECProcessor struct {
	cfg     SECConfig
	cache   PayloadCache
	fetcher Fetcher
	logger  *zap.Logger
}

func NewSECProcessor(cfg SECConfig, cache PayloadCache, fetcher Fetcher, logger *zap.Logger) *SECProcessor {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultSECBaseURL
	}
	if cfg.ArchivesURL == "" {
		cfg.ArchivesURL = DefaultSECArchivesURL
	}
	if cfg.MaxFilings <= 0 {
		cfg.MaxFilings = DefaultSECMaxFilings
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SECProcessor{cfg: cfg, cache: cache, fetcher: fetcher, logger: logger}
}

func (p *SECProcessor) SourceID() string { return SourceSECEdgar }

func secCacheKey(cik10 string) string { return "sec/CIK" + cik10 + ".json" }

// EvidenceForEntity needs the "cik" identifier; without it there is nothing to fetch.
func (p *SECProcessor) EvidenceForEntity(ctx context.Context, entity entities.Entity) ([]entities.Evidence, error) {
	cik := entity.Identifier("cik")
	if cik == "" {
		return nil, nil
	}
	cik10, err := NormalizeCIK(cik)
	if err != nil {
		return nil, err
	}

	key := secCacheKey(cik10)
	payload, err := p.Submissions(ctx, cik10)
	if err != nil {
		return nil, err
	}
	var subs secSubmissions
	if err := json.Unmarshal(payload, &subs); err != nil {
		return nil, fmt.Errorf("malformed SEC submissions payload for CIK%s: %w", cik10, err)
	}
	return p.toEvidence(subs, entity.ID, cik10, p.cache.Location(key)), nil
}

// Submissions returns the raw submissions JSON for a normalized CIK, from
// cache when present, otherwise from EDGAR (and then cached).
func (p *SECProcessor) Submissions(ctx context.Context, cik10 string) ([]byte, error) {
	key := secCacheKey(cik10)
	data, ok, err := p.cache.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	if ok {
		return data, nil
	}

	if strings.TrimSpace(p.cfg.UserAgent) == "" {
		return nil, ErrMissingUserAgent
	}
	header := http.Header{}
	header.Set("User-Agent", p.cfg.UserAgent)
	url := strings.TrimRight(p.cfg.BaseURL, "/") + "/submissions/CIK" + cik10 + ".json"
	data, err = p.fetcher.Get(ctx, url, nil, header)
	if err != nil {
		return nil, fmt.Errorf("SEC submissions request failed: %w", err)
	}
	if !json.Valid(data) {
		return nil, fmt.Errorf("SEC submissions response for CIK%s is not JSON", cik10)
	}
	if err := p.cache.Put(ctx, key, data); err != nil {
		p.logger.Warn("Failed to cache SEC submissions", zap.String("key", key), zap.Error(err))
	}
	p.logger.Debug("Fetched SEC submissions", zap.String("cik", cik10), zap.Int("bytes", len(data)))
	return data, nil
}

type secSubmissions struct {
	Filings struct {
		Recent struct {
			Form            []string `json:"form"`
			FilingDate      []string `json:"filingDate"`
			AccessionNumber []string `json:"accessionNumber"`
			PrimaryDocument []string `json:"primaryDocument"`
		} `json:"recent"`
	} `json:"filings"`
}

type secFiling struct {
	Form, FilingDate, AccessionNumber, PrimaryDocument string
}

// recentFilings zips the columnar "recent" block, stopping at the shortest column.
func (s secSubmissions) recentFilings(forms []string) []secFiling {
	r := s.Filings.Recent
	n := min(len(r.Form), len(r.FilingDate), len(r.AccessionNumber), len(r.PrimaryDocument))
	allowed := make(map[string]bool, len(forms))
	for _, f := range forms {
		allowed[f] = true
	}
	out := make([]secFiling, 0, n)
	for i := 0; i < n; i++ {
		if len(allowed) > 0 && !allowed[r.Form[i]] {
			continue
		}
		out = append(out, secFiling{r.Form[i], r.FilingDate[i], r.AccessionNumber[i], r.PrimaryDocument[i]})
	}
	return out
}

func (p *SECProcessor) toEvidence(subs secSubmissions, entityID, cik10, rawLocation string) []entities.Evidence {
	filings := subs.recentFilings(p.cfg.Forms)
	if len(filings) > p.cfg.MaxFilings {
		filings = filings[:p.cfg.MaxFilings]
	}
	archives := strings.TrimRight(p.cfg.ArchivesURL, "/")
	cikNoPad := strings.TrimLeft(cik10, "0")
	if cikNoPad == "" {
		cikNoPad = "0"
	}

	out := make([]entities.Evidence, 0, len(filings))
	for _, f := range filings {
		if f.FilingDate == "" || f.AccessionNumber == "" {
			continue
		}
		form := f.Form
		if form == "" {
			form = secSummaryFormFallback
		}
		accNoDash := strings.ReplaceAll(f.AccessionNumber, "-", "")
		uri := archives + "/edgar/data/" + cik10 + "/" + accNoDash + "/"
		if f.PrimaryDocument != "" {
			uri = archives + "/edgar/data/" + cikNoPad + "/" + accNoDash + "/" + f.PrimaryDocument
		}
		risk := entities.RiskRegulatory
		if governanceForms[form] {
			risk = entities.RiskGovernance
		}
		date := f.FilingDate
		if len(date) >= 10 {
			date = date[:10]
		}
		out = append(out, entities.Evidence{
			ID:           entities.EvidenceID(entityID, "sec", accNoDash),
			EntityID:     entityID,
			Date:         date,
			SourceType:   entities.SourceSECFiling,
			RiskCategory: risk,
			Summary:      "SEC filing: " + form + " filed on " + f.FilingDate,
			SourceURI:    uri,
			RawLocation:  rawLocation,
			Confidence:   0.85,
			Attributes: map[string]any{
				entities.AttrForm:            form,
				entities.AttrAccessionNumber: f.AccessionNumber,
				entities.AttrPrimaryDocument: f.PrimaryDocument,
			},
		})
	}
	return out
}

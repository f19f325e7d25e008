package sources

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/taljindergill78/FSE570/internal/entities"
)

// EvidenceCSVFields is the column order of processed evidence files.
var EvidenceCSVFields = []string{
	"evidence_id",
	"entity_id",
	"date",
	"source_type",
	"risk_category",
	"summary",
	"source_uri",
	"raw_location",
	"confidence",
	"attributes",
}

const defaultCSVConfidence = 0.5

// LoadEvidenceCSV reads a processed evidence file. A missing file is empty.
// Bad confidence values fall back to 0.5 and bad attribute payloads to an
// empty map; neither rejects the row.
func LoadEvidenceCSV(path string) ([]entities.Evidence, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open evidence file: %w", err)
	}
	defer f.Close()
	return ReadEvidenceCSV(f)
}

// ReadEvidenceCSV parses evidence rows using the header to locate columns.
func ReadEvidenceCSV(r io.Reader) ([]entities.Evidence, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read evidence header: %w", err)
	}
	col := make(map[string]int, len(header))
	for i, h := range header {
		col[h] = i
	}
	get := func(rec []string, name string) string {
		if i, ok := col[name]; ok && i < len(rec) {
			return rec[i]
		}
		return ""
	}

	var out []entities.Evidence
	for {
		rec, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return out, fmt.Errorf("failed to read evidence row: %w", err)
		}

		confidence, err := strconv.ParseFloat(get(rec, "confidence"), 64)
		if err != nil || math.IsNaN(confidence) {
			confidence = defaultCSVConfidence
		}
		confidence = min(max(confidence, 0), 1)

		attrs := map[string]any{}
		if raw := get(rec, "attributes"); raw != "" {
			if json.Unmarshal([]byte(raw), &attrs) != nil || attrs == nil {
				attrs = map[string]any{}
			}
		}

		out = append(out, entities.Evidence{
			ID:           get(rec, "evidence_id"),
			EntityID:     get(rec, "entity_id"),
			Date:         get(rec, "date"),
			SourceType:   entities.ParseSourceType(get(rec, "source_type")),
			RiskCategory: entities.ParseRiskCategory(get(rec, "risk_category")),
			Summary:      get(rec, "summary"),
			SourceURI:    get(rec, "source_uri"),
			RawLocation:  get(rec, "raw_location"),
			Confidence:   confidence,
			Attributes:   attrs,
		})
	}
	return out, nil
}

// LoadEvidenceForEntity scans <processedDir>/<slug>/evidence_*.csv and keeps
// the rows owned by entityID.
func LoadEvidenceForEntity(processedDir, entityID string) ([]entities.Evidence, error) {
	dirs, err := os.ReadDir(processedDir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list processed evidence: %w", err)
	}

	var out []entities.Evidence
	for _, d := range dirs {
		if !d.IsDir() {
			continue
		}
		files, err := filepath.Glob(filepath.Join(processedDir, d.Name(), "evidence_*.csv"))
		if err != nil {
			return nil, err
		}
		sort.Strings(files)
		for _, path := range files {
			rows, err := LoadEvidenceCSV(path)
			if err != nil {
				return nil, err
			}
			for _, e := range rows {
				if e.EntityID == entityID {
					out = append(out, e)
				}
			}
		}
	}
	return out, nil
}

// WriteEvidenceCSV writes evidence in the processed format, creating parent
// directories as needed.
func WriteEvidenceCSV(path string, evidence []entities.Evidence) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create evidence file: %w", err)
	}
	if err := EncodeEvidenceCSV(f, evidence); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// EncodeEvidenceCSV writes a header and one row per evidence item.
func EncodeEvidenceCSV(w io.Writer, evidence []entities.Evidence) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(EvidenceCSVFields); err != nil {
		return err
	}
	for _, e := range evidence {
		attrs := e.Attributes
		if attrs == nil {
			attrs = map[string]any{}
		}
		attrJSON, err := json.Marshal(attrs)
		if err != nil {
			return fmt.Errorf("evidence %s: failed to encode attributes: %w", e.ID, err)
		}
		if err := cw.Write([]string{
			e.ID,
			e.EntityID,
			e.Date,
			string(e.SourceType),
			string(e.RiskCategory),
			e.Summary,
			e.SourceURI,
			e.RawLocation,
			strconv.FormatFloat(e.Confidence, 'f', -1, 64),
			string(attrJSON),
		}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

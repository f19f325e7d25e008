package sources

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taljindergill78/FSE570/internal/entities"
)

const evidenceCSV = `evidence_id,entity_id,date,source_type,risk_category,summary,source_uri,raw_location,confidence,attributes
tesla_sec_cfo_2023_08_04,tesla_inc_cik_0001318605,2023-08-04,sec_filing,governance,"CFO transition, 8-K",https://www.sec.gov/x.htm,,0.9,"{""form"": ""8-K""}"
bad_row,tesla_inc_cik_0001318605,,regulator_api,regulatory,Bad values,,,not-a-number,{oops
other_entity,acme,,other,other,Elsewhere,,,0.4,{}
nan_row,tesla_inc_cik_0001318605,2024-02-01,news_article,other,Unparsable score,,,NaN,{}
`

func TestReadEvidenceCSVDefaults(t *testing.T) {
	rows, err := ReadEvidenceCSV(strings.NewReader(evidenceCSV))
	require.NoError(t, err)
	require.Len(t, rows, 4)

	assert.Equal(t, "CFO transition, 8-K", rows[0].Summary)
	assert.InDelta(t, 0.9, rows[0].Confidence, 1e-9)
	assert.Equal(t, "8-K", rows[0].Attributes["form"])
	assert.Equal(t, entities.RiskGovernance, rows[0].RiskCategory)

	assert.InDelta(t, 0.5, rows[1].Confidence, 1e-9)
	assert.Empty(t, rows[1].Attributes)
	assert.NotNil(t, rows[1].Attributes)

	assert.Equal(t, "nan_row", rows[3].ID)
	assert.InDelta(t, 0.5, rows[3].Confidence, 1e-9)
	assert.NoError(t, rows[3].Validate())
}

func TestLoadEvidenceCSVMissingFile(t *testing.T) {
	rows, err := LoadEvidenceCSV(filepath.Join(t.TempDir(), "nope.csv"))
	assert.NoError(t, err)
	assert.Empty(t, rows)
}

func TestLoadEvidenceForEntity(t *testing.T) {
	processed := t.TempDir()
	dir := filepath.Join(processed, "tesla")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "evidence_tesla.csv"), []byte(evidenceCSV), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.csv"), []byte(evidenceCSV), 0o644))

	rows, err := LoadEvidenceForEntity(processed, "tesla_inc_cik_0001318605")
	require.NoError(t, err)
	assert.Len(t, rows, 3)

	rows, err = LoadEvidenceForEntity(filepath.Join(processed, "missing"), "x")
	assert.NoError(t, err)
	assert.Empty(t, rows)
}

func TestWriteThenLoadEvidenceCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "evidence_x.csv")
	in := []entities.Evidence{{
		ID:           "x_sec_1",
		EntityID:     "x",
		Date:         "2024-01-01",
		SourceType:   entities.SourceSECFiling,
		RiskCategory: entities.RiskRegulatory,
		Summary:      "line one\nline \"two\"",
		Confidence:   0.85,
		Attributes:   map[string]any{"form": "10-K", "stub": true},
	}}
	require.NoError(t, WriteEvidenceCSV(path, in))

	out, err := LoadEvidenceCSV(path)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, in[0].Summary, out[0].Summary)
	assert.Equal(t, in[0].Attributes, out[0].Attributes)
	assert.True(t, out[0].IsStub())
}

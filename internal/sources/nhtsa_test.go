package sources

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/taljindergill78/FSE570/internal/entities"
)

func TestMakeForEntity(t *testing.T) {
	assert.Equal(t, "TESLA", MakeForEntity(tesla))
	assert.Equal(t, "RIVIAN AUTOMOTIVE", MakeForEntity(entities.NewEntity("r", "Rivian Automotive, Inc.", entities.EntityPublicCompany, nil, nil)))
	assert.Equal(t, "", MakeForEntity(entities.Entity{ID: "x"}))
}

func TestRecordsToEvidence(t *testing.T) {
	var rows []map[string]any
	require.NoError(t, json.Unmarshal([]byte(recallsPageFixture), &rows))

	got := recordsToEvidence(rows, "tesla_inc_cik_0001318605", "/data/raw/nhtsa/recalls_make_TESLA.json")
	require.Len(t, got, 2)

	first := got[0]
	assert.Equal(t, "tesla_inc_cik_0001318605_nhtsa_24v051", first.ID)
	assert.Equal(t, "2024-01-24", first.Date)
	assert.Equal(t, entities.SourceRegulatorAPI, first.SourceType)
	assert.Equal(t, entities.RiskRegulatory, first.RiskCategory)
	assert.Equal(t, "Font size of warning indicators is too small.", first.Summary)
	assert.Equal(t, "https://www.nhtsa.gov/recalls?nhtsaId=24V051", first.SourceURI)
	assert.InDelta(t, 0.8, first.Confidence, 1e-9)
	assert.Equal(t, "2193869", first.Attributes[entities.AttrPotentiallyAffected])
	assert.Equal(t, "Over-the-air software update.", first.Attributes[entities.AttrCorrectiveAction])

	second := got[1]
	assert.Equal(t, "tesla_inc_cik_0001318605_nhtsa_sb_23_00_009", second.ID)
	assert.Equal(t, "Autosteer Controls", second.Summary)
	assert.Equal(t, "https://www.nhtsa.gov/recalls", second.SourceURI)
}

func TestNHTSAProcessorPaginatesAndCaches(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		assert.Equal(t, "/resource/6axg-epim.json", r.URL.Path)
		assert.Equal(t, "upper(manufacturer) like '%TESLA%'", r.URL.Query().Get("$where"))
		offset, _ := strconv.Atoi(r.URL.Query().Get("$offset"))
		switch offset {
		case 0:
			_, _ = w.Write([]byte(`[{"nhtsa_id":"24V001","report_received_date":"2024-01-01"},{"nhtsa_id":"24V002","report_received_date":"2024-01-02"}]`))
		case 2:
			_, _ = w.Write([]byte(`[{"nhtsa_id":"24V003","report_received_date":"2024-01-03"}]`))
		default:
			t.Errorf("unexpected offset %d", offset)
			_, _ = w.Write([]byte(`[]`))
		}
	}))
	defer srv.Close()

	logger := zaptest.NewLogger(t)
	cache := NewFileCache(t.TempDir())
	p := NewNHTSAProcessor(NHTSAConfig{BaseURL: srv.URL, PageSize: 2}, cache, NewHTTPFetcher(FetcherConfig{Name: "nhtsa-test"}, nil, logger), logger)

	got, err := p.EvidenceForEntity(context.Background(), tesla)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "tesla_inc_cik_0001318605_nhtsa_24v003", got[2].ID)
	assert.Equal(t, int32(2), atomic.LoadInt32(&hits))

	again, err := p.EvidenceForEntity(context.Background(), tesla)
	require.NoError(t, err)
	assert.Len(t, again, 3)
	assert.Equal(t, int32(2), atomic.LoadInt32(&hits), "second call is served from cache")

	raw, ok, err := cache.Get(context.Background(), "nhtsa/recalls_make_TESLA.json")
	require.NoError(t, err)
	require.True(t, ok)
	var payload RecallsPayload
	require.NoError(t, json.Unmarshal(raw, &payload))
	assert.Len(t, payload.Results, 3)
	assert.Equal(t, srv.URL+"/resource/6axg-epim.json", payload.Source)
}

func TestNHTSAProcessorMalformedPageIsNotCached(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("$offset") == "0" {
			_, _ = w.Write([]byte(`[{"nhtsa_id":"24V001","report_received_date":"2024-01-01"},{"nhtsa_id":"24V002","report_received_date":"2024-01-02"}]`))
			return
		}
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<html><body>maintenance</body></html>`))
	}))
	defer srv.Close()

	logger := zaptest.NewLogger(t)
	cache := NewFileCache(t.TempDir())
	p := NewNHTSAProcessor(NHTSAConfig{BaseURL: srv.URL, PageSize: 2}, cache, NewHTTPFetcher(FetcherConfig{Name: "nhtsa-html"}, nil, logger), logger)

	got, err := p.EvidenceForEntity(context.Background(), tesla)
	assert.ErrorContains(t, err, "malformed DOT DataHub page at offset 2")
	assert.Empty(t, got)

	_, ok, err := cache.Get(context.Background(), "nhtsa/recalls_make_TESLA.json")
	require.NoError(t, err)
	assert.False(t, ok, "partial pulls stay out of the cache")
}

func TestNHTSAProcessorUpstreamFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	logger := zaptest.NewLogger(t)
	p := NewNHTSAProcessor(NHTSAConfig{BaseURL: srv.URL}, NewFileCache(t.TempDir()), NewHTTPFetcher(FetcherConfig{Name: "nhtsa-403"}, nil, logger), logger)
	_, err := p.EvidenceForEntity(context.Background(), tesla)
	require.Error(t, err)

	var se *StatusError
	assert.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusForbidden, se.StatusCode)
}

func TestExtractRecallRecordsAcceptsLegacyKey(t *testing.T) {
	recs, err := extractRecallRecords([]byte(`{"Results":[{"NHTSA_ID":"1"}, 5]}`))
	require.NoError(t, err)
	assert.Len(t, recs, 1)

	recs, err = extractRecallRecords([]byte(`{"results":"oops"}`))
	require.NoError(t, err)
	assert.Empty(t, recs)
}

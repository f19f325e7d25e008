package sources

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/taljindergill78/FSE570/internal/entities"
)

type fakeProcessor struct {
	id    string
	rows  []entities.Evidence
	err   error
	calls int
}

func (f *fakeProcessor) SourceID() string { return f.id }

func (f *fakeProcessor) EvidenceForEntity(_ context.Context, _ entities.Entity) ([]entities.Evidence, error) {
	f.calls++
	return f.rows, f.err
}

func TestGatewayConcatenatesInRequestedOrder(t *testing.T) {
	a := &fakeProcessor{id: "a", rows: []entities.Evidence{{ID: "a1"}, {ID: "a2"}}}
	b := &fakeProcessor{id: "b", rows: []entities.Evidence{{ID: "b1"}}}
	g := NewGateway(zaptest.NewLogger(t), a, b)

	got, failures := g.EvidenceForEntity(context.Background(), entities.Entity{ID: "ent"}, []string{"b", "unknown", "a"})
	assert.Empty(t, failures)

	var ids []string
	for _, e := range got {
		ids = append(ids, e.ID)
	}
	assert.Equal(t, []string{"b1", "a1", "a2"}, ids)
}

func TestGatewayDegradesFailingSource(t *testing.T) {
	bad := &fakeProcessor{id: "bad", err: errors.New("upstream 503")}
	good := &fakeProcessor{id: "good", rows: []entities.Evidence{{ID: "g1"}}}
	g := NewGateway(zaptest.NewLogger(t), bad, good)

	got, failures := g.EvidenceForEntity(context.Background(), entities.Entity{ID: "ent"}, []string{"bad", "good"})
	require.Len(t, got, 1)
	assert.Equal(t, "g1", got[0].ID)
	require.Len(t, failures, 1)
	assert.Equal(t, "bad", failures[0].SourceID)
	assert.Equal(t, "ent", failures[0].EntityID)
	assert.Contains(t, failures[0].Error, "503")
}

func TestGatewayProcessorLookup(t *testing.T) {
	g := NewGateway(nil, &fakeProcessor{id: "a"})
	_, ok := g.Processor("a")
	assert.True(t, ok)
	_, ok = g.Processor("missing")
	assert.False(t, ok)

	g.Register(&fakeProcessor{id: "b"})
	g.Register(&fakeProcessor{id: "a"})
	assert.Equal(t, []string{"a", "b"}, g.SourceIDs())
}

func TestNewDefaultGatewayHonoursEnabled(t *testing.T) {
	g := NewDefaultGateway(Options{Enabled: []string{"nhtsa"}}, NewFileCache(t.TempDir()), zaptest.NewLogger(t))
	assert.Equal(t, []string{SourceNHTSA}, g.SourceIDs())

	all := NewDefaultGateway(Options{}, NewFileCache(t.TempDir()), zaptest.NewLogger(t))
	assert.Equal(t, []string{SourceSECEdgar, SourceNHTSA}, all.SourceIDs())
}

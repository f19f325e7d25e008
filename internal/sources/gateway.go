// Package sources turns external data sources into Evidence. Each Processor
// owns one source and a cache-or-fetch policy over its raw payloads; the
// Gateway fans a request out over an ordered list of source ids.
package sources

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/taljindergill78/FSE570/internal/entities"
	"github.com/taljindergill78/FSE570/internal/investigation"
	"github.com/taljindergill78/FSE570/internal/metrics"
	"github.com/taljindergill78/FSE570/internal/tracing"
)

// Source identifiers.
const (
	SourceSECEdgar = "sec_edgar"
	SourceNHTSA    = "nhtsa"
)

// DefaultSourceIDs is the source list the corporate agent queries.
var DefaultSourceIDs = []string{SourceSECEdgar, SourceNHTSA}

// Processor produces evidence for an entity from one source. A missing
// identifier yields no evidence and no error.
type Processor interface {
	SourceID() string
	EvidenceForEntity(ctx context.Context, entity entities.Entity) ([]entities.Evidence, error)
}

// Gateway indexes processors by source id.
type Gateway struct {
	mu         sync.RWMutex
	processors map[string]Processor
	order      []string
	logger     *zap.Logger
}

func NewGateway(logger *zap.Logger, processors ...Processor) *Gateway {
	if logger == nil {
		logger = zap.NewNop()
	}
	g := &Gateway{processors: make(map[string]Processor), logger: logger}
	for _, p := range processors {
		g.Register(p)
	}
	return g
}

// Register adds or replaces the processor for p.SourceID().
func (g *Gateway) Register(p Processor) {
	g.mu.Lock()
	defer g.mu.Unlock()
	id := p.SourceID()
	if _, ok := g.processors[id]; !ok {
		g.order = append(g.order, id)
	}
	g.processors[id] = p
}

// Processor returns the processor registered for id.
func (g *Gateway) Processor(id string) (Processor, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	p, ok := g.processors[id]
	return p, ok
}

// SourceIDs lists registered sources in registration order.
func (g *Gateway) SourceIDs() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return append([]string(nil), g.order...)
}

// EvidenceForEntity concatenates evidence from each source in order. Unknown
// ids are skipped. A failing processor contributes nothing and is reported
// in the returned failures instead of aborting the other sources.
func (g *Gateway) EvidenceForEntity(ctx context.Context, entity entities.Entity, sourceIDs []string) ([]entities.Evidence, []investigation.SourceFailure) {
	var (
		out      []entities.Evidence
		failures []investigation.SourceFailure
	)
	for _, id := range sourceIDs {
		p, ok := g.Processor(id)
		if !ok {
			g.logger.Debug("Skipping unknown evidence source", zap.String("source", id))
			continue
		}

		spanCtx, span := tracing.StartSpan(ctx, "sources."+id)
		span.SetAttributes(attribute.String("entity.id", entity.ID))
		evidence, err := p.EvidenceForEntity(spanCtx, entity)
		metrics.RecordSourceFetch(id, len(evidence), err)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			span.End()
			g.logger.Warn("Evidence source failed; continuing without it",
				zap.String("source", id),
				zap.String("entity_id", entity.ID),
				zap.Error(err),
			)
			failures = append(failures, investigation.SourceFailure{
				SourceID: id,
				EntityID: entity.ID,
				Error:    err.Error(),
			})
			continue
		}
		span.SetAttributes(attribute.Int("evidence.count", len(evidence)))
		span.End()
		out = append(out, evidence...)
	}
	return out, failures
}

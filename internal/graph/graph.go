// Package graph builds an in-memory knowledge graph linking entities to the
// evidence collected about them.
package graph

import (
	"github.com/taljindergill78/FSE570/internal/entities"
	"github.com/taljindergill78/FSE570/internal/util"
)

const (
	NodeEntity   = "entity"
	NodeEvidence = "evidence"

	RelationHasEvidence    = "has_evidence"
	RelationSameSourceType = "same_source_type"

	labelRunes = 80
)

// Node is an entity or an evidence document.
type Node struct {
	ID         string         `json:"id"`
	NodeType   string         `json:"node_type"`
	Label      string         `json:"label"`
	Attributes map[string]any `json:"attributes"`
}

// Edge is a directed relation between two nodes.
type Edge struct {
	SourceID     string         `json:"source_id"`
	TargetID     string         `json:"target_id"`
	RelationType string         `json:"relation_type"`
	Attributes   map[string]any `json:"attributes"`
}

// BuildFromEvidence returns one node per distinct entity id and evidence id,
// in first-seen order. Every row with both ids adds an entity -> evidence
// has_evidence edge, duplicates included. Rows sharing a source type are then
// chained with same_source_type edges in input order.
func BuildFromEvidence(findings []entities.Evidence) ([]Node, []Edge) {
	var (
		nodes      []Node
		edges      []Edge
		seenEntity = make(map[string]struct{})
		seenEv     = make(map[string]struct{})
	)

	for _, e := range findings {
		if e.EntityID != "" {
			if _, ok := seenEntity[e.EntityID]; !ok {
				seenEntity[e.EntityID] = struct{}{}
				nodes = append(nodes, Node{ID: e.EntityID, NodeType: NodeEntity, Label: e.EntityID, Attributes: map[string]any{}})
			}
		}
		if e.ID != "" {
			if _, ok := seenEv[e.ID]; !ok {
				seenEv[e.ID] = struct{}{}
				nodes = append(nodes, Node{
					ID:       e.ID,
					NodeType: NodeEvidence,
					Label:    util.Ellipsize(e.Summary, labelRunes),
					Attributes: map[string]any{
						"date":          e.Date,
						"source_type":   string(e.SourceType),
						"risk_category": string(e.RiskCategory),
						"confidence":    e.Confidence,
					},
				})
			}
		}
		if e.EntityID != "" && e.ID != "" {
			edges = append(edges, Edge{SourceID: e.EntityID, TargetID: e.ID, RelationType: RelationHasEvidence, Attributes: map[string]any{}})
		}
	}

	var sourceOrder []entities.SourceType
	bySource := make(map[entities.SourceType][]string)
	for _, e := range findings {
		if e.SourceType == "" || e.ID == "" {
			continue
		}
		if _, ok := bySource[e.SourceType]; !ok {
			sourceOrder = append(sourceOrder, e.SourceType)
		}
		bySource[e.SourceType] = append(bySource[e.SourceType], e.ID)
	}
	for _, st := range sourceOrder {
		ids := bySource[st]
		for i := 0; i+1 < len(ids); i++ {
			edges = append(edges, Edge{SourceID: ids[i], TargetID: ids[i+1], RelationType: RelationSameSourceType, Attributes: map[string]any{}})
		}
	}
	return nodes, edges
}

// Summary counts a graph's nodes and edges.
type Summary struct {
	Nodes         int `json:"nodes"`
	Edges         int `json:"edges"`
	EntityNodes   int `json:"entity_nodes"`
	EvidenceNodes int `json:"evidence_nodes"`
}

func Summarize(nodes []Node, edges []Edge) Summary {
	s := Summary{Nodes: len(nodes), Edges: len(edges)}
	for _, n := range nodes {
		switch n.NodeType {
		case NodeEntity:
			s.EntityNodes++
		case NodeEvidence:
			s.EvidenceNodes++
		}
	}
	return s
}

// Neighbors returns the targets of edges leaving id with the given relation,
// in edge order. An empty relation matches every edge.
func Neighbors(edges []Edge, id, relation string) []string {
	var out []string
	for _, e := range edges {
		if e.SourceID == id && (relation == "" || e.RelationType == relation) {
			out = append(out, e.TargetID)
		}
	}
	return out
}

// Package viz shapes normalized query results into a render-ready graph for
// clients, without committing to any rendering library server-side.
package viz

import (
	"fmt"
	"sort"

	"github.com/villagegraph/assistant/internal/graphstore"
)

// Node is one unique graph node across the whole result set.
type Node struct {
	ID         string         `json:"id"`
	Labels     []string       `json:"labels"`
	Properties map[string]any `json:"properties"`
}

// Edge connects two nodes by their IDs.
type Edge struct {
	Source string `json:"source"`
	Target string `json:"target"`
	Type   string `json:"type"`
}

// Graph is the deduplicated node/edge view over a query result.
type Graph struct {
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}

// Hints tells a client whether a result is worth drawing at all.
type Hints struct {
	HasNodes         bool `json:"has_nodes"`
	HasRelationships bool `json:"has_relationships"`
	RecordCount      int  `json:"record_count"`
}

// Annotate summarizes the shape of a result so clients can decide between a
// graph view and a plain table.
func Annotate(result graphstore.QueryResult) Hints {
	hints := Hints{RecordCount: len(result.Results)}
	for _, rec := range result.Results {
		for _, v := range rec {
			switch shapeOf(v) {
			case shapeNode:
				hints.HasNodes = true
			case shapeRelationship:
				hints.HasRelationships = true
			case shapePath:
				hints.HasNodes = true
				hints.HasRelationships = true
			}
		}
	}
	return hints
}

// BuildGraph walks a normalized result and assembles unique nodes plus the
// edges that can be reconstructed from it. Paths carry their endpoints
// explicitly, so every hop becomes an edge. For flat records the column map
// gives no ordering, so an edge is only inferred for the unambiguous case of
// exactly two nodes and one relationship in the same record.
func BuildGraph(result graphstore.QueryResult) Graph {
	b := &builder{seen: map[string]int{}}

	for _, rec := range result.Results {
		var recNodes []string
		var recRels []map[string]any

		// Stable iteration keeps node IDs deterministic for result
		// shapes that need synthetic identifiers.
		keys := make([]string, 0, len(rec))
		for k := range rec {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		for _, k := range keys {
			switch v := rec[k]; shapeOf(v) {
			case shapeNode:
				recNodes = append(recNodes, b.addNode(v.(map[string]any)))
			case shapeRelationship:
				recRels = append(recRels, v.(map[string]any))
			case shapePath:
				b.addPath(v.(map[string]any))
			}
		}

		if len(recNodes) == 2 && len(recRels) == 1 {
			b.addEdge(recNodes[0], recNodes[1], relType(recRels[0]))
		}
	}

	return b.graph()
}

type builder struct {
	nodes []Node
	edges []Edge
	seen  map[string]int
}

// addNode registers a normalized node map and returns its ID, deduplicating
// across records.
func (b *builder) addNode(props map[string]any) string {
	id := nodeID(props, len(b.seen))
	if _, ok := b.seen[id]; ok {
		return id
	}
	b.seen[id] = len(b.nodes)

	labels := labelList(props)
	clean := make(map[string]any, len(props))
	for k, v := range props {
		if k == "labels" {
			continue
		}
		clean[k] = v
	}
	b.nodes = append(b.nodes, Node{ID: id, Labels: labels, Properties: clean})
	return id
}

func (b *builder) addEdge(source, target, relType string) {
	b.edges = append(b.edges, Edge{Source: source, Target: target, Type: relType})
}

// addPath unrolls a normalized path, pairing hop i with nodes i and i+1.
func (b *builder) addPath(path map[string]any) {
	rawNodes, _ := path["nodes"].([]any)
	rawRels, _ := path["relationships"].([]any)

	ids := make([]string, 0, len(rawNodes))
	for _, n := range rawNodes {
		if props, ok := n.(map[string]any); ok {
			ids = append(ids, b.addNode(props))
		}
	}
	for i, r := range rawRels {
		if i+1 >= len(ids) {
			break
		}
		props, _ := r.(map[string]any)
		b.addEdge(ids[i], ids[i+1], relType(props))
	}
}

func (b *builder) graph() Graph {
	nodes := b.nodes
	if nodes == nil {
		nodes = []Node{}
	}
	edges := b.edges
	if edges == nil {
		edges = []Edge{}
	}
	return Graph{Nodes: nodes, Edges: edges}
}

type shape int

const (
	shapeScalar shape = iota
	shapeNode
	shapeRelationship
	shapePath
)

// shapeOf recognizes the markers the normalization layer stamps on each
// value: nodes carry "labels", relationships carry "type", paths carry both
// "nodes" and "relationships".
func shapeOf(v any) shape {
	m, ok := v.(map[string]any)
	if !ok {
		return shapeScalar
	}
	if _, hasNodes := m["nodes"]; hasNodes {
		if _, hasRels := m["relationships"]; hasRels {
			return shapePath
		}
	}
	if _, ok := m["labels"].([]string); ok {
		return shapeNode
	}
	if _, ok := m["labels"].([]any); ok {
		return shapeNode
	}
	if _, ok := m["type"].(string); ok {
		return shapeRelationship
	}
	return shapeScalar
}

// nodeID picks a stable identity for a node: the canonical identifier
// property, then name, then a synthetic ordinal.
func nodeID(props map[string]any, ordinal int) string {
	if id, ok := props["identifier"].(string); ok && id != "" {
		return id
	}
	if name, ok := props["name"].(string); ok && name != "" {
		return name
	}
	return fmt.Sprintf("node-%d", ordinal)
}

func labelList(props map[string]any) []string {
	switch labels := props["labels"].(type) {
	case []string:
		return labels
	case []any:
		out := make([]string, 0, len(labels))
		for _, l := range labels {
			if s, ok := l.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return []string{}
	}
}

func relType(props map[string]any) string {
	if props == nil {
		return ""
	}
	t, _ := props["type"].(string)
	return t
}

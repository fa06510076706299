package graphstore

import (
	"context"
	"fmt"
	"strings"
)

// Schema describes the graph's structure: every node label with its property
// keys, every relationship type with its property keys, and the distinct
// (source, relationship, target) patterns observed in the data.
type Schema struct {
	Status            string          `json:"status"`
	Message           string          `json:"message,omitempty"`
	NodeLabels        []LabelSchema   `json:"nodeLabels"`
	RelationshipTypes []RelTypeSchema `json:"relationshipTypes"`
	Patterns          []Pattern       `json:"patterns"`
}

// LabelSchema is one node label and the union of property keys seen on it.
type LabelSchema struct {
	Label      string   `json:"label"`
	Properties []string `json:"properties"`
}

// RelTypeSchema is one relationship type and the union of property keys seen on it.
type RelTypeSchema struct {
	RelationshipType string   `json:"relationshipType"`
	Properties       []string `json:"properties"`
}

// Pattern is one observed (sourceLabel)-[relationshipType]->(targetLabel) triple.
type Pattern struct {
	SourceLabel      string `json:"sourceLabel"`
	RelationshipType string `json:"relationshipType"`
	TargetLabel      string `json:"targetLabel"`
}

// Cypher cannot parameterize labels or relationship types, so those names are
// interpolated into query text after this check. Identifier values always go
// through bound parameters instead.
func isSafeIdentifier(name string) bool {
	if name == "" {
		return false
	}
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
		case r == '_':
		default:
			return false
		}
	}
	return true
}

// GetSchema enumerates the full schema. Failure of any sub-query degrades to
// an empty list for that part rather than failing the whole call.
func (s *Neo4jStore) GetSchema(ctx context.Context) Schema {
	schema := Schema{
		Status:            StatusSuccess,
		NodeLabels:        []LabelSchema{},
		RelationshipTypes: []RelTypeSchema{},
		Patterns:          []Pattern{},
	}

	labels := s.RunQuery(ctx, "CALL db.labels() YIELD label RETURN label ORDER BY label", nil)
	if labels.Status == StatusSuccess {
		for _, rec := range labels.Results {
			label, ok := rec["label"].(string)
			if !ok {
				continue
			}
			schema.NodeLabels = append(schema.NodeLabels, LabelSchema{
				Label:      label,
				Properties: s.labelProperties(ctx, label),
			})
		}
	} else {
		s.logger.Warn("schema label enumeration failed", "error", labels.Message)
	}

	relTypes := s.RunQuery(ctx, "CALL db.relationshipTypes() YIELD relationshipType RETURN relationshipType ORDER BY relationshipType", nil)
	if relTypes.Status == StatusSuccess {
		for _, rec := range relTypes.Results {
			relType, ok := rec["relationshipType"].(string)
			if !ok {
				continue
			}
			schema.RelationshipTypes = append(schema.RelationshipTypes, RelTypeSchema{
				RelationshipType: relType,
				Properties:       s.relTypeProperties(ctx, relType),
			})
		}
	} else {
		s.logger.Warn("schema relationship-type enumeration failed", "error", relTypes.Message)
	}

	patterns := s.RunQuery(ctx, `
		MATCH (a)-[r]->(b)
		RETURN DISTINCT labels(a)[0] AS sourceLabel, type(r) AS relationshipType, labels(b)[0] AS targetLabel
		ORDER BY sourceLabel, relationshipType, targetLabel`, nil)
	if patterns.Status == StatusSuccess {
		for _, rec := range patterns.Results {
			src, _ := rec["sourceLabel"].(string)
			rel, _ := rec["relationshipType"].(string)
			dst, _ := rec["targetLabel"].(string)
			schema.Patterns = append(schema.Patterns, Pattern{
				SourceLabel:      src,
				RelationshipType: rel,
				TargetLabel:      dst,
			})
		}
	} else {
		s.logger.Warn("schema pattern enumeration failed", "error", patterns.Message)
	}

	return schema
}

// labelProperties returns the union of property keys on nodes with the label.
// A label with no properties yields an empty, non-nil list.
func (s *Neo4jStore) labelProperties(ctx context.Context, label string) []string {
	props := []string{}
	if !isSafeIdentifier(label) {
		return props
	}

	query := fmt.Sprintf(`
		MATCH (n:%s)
		UNWIND keys(n) AS key
		RETURN DISTINCT key AS property
		ORDER BY key`, label)
	result := s.RunQuery(ctx, query, nil)
	if result.Status != StatusSuccess {
		return props
	}
	for _, rec := range result.Results {
		if p, ok := rec["property"].(string); ok {
			props = append(props, p)
		}
	}
	return props
}

// relTypeProperties returns the union of property keys on relationships of the type.
func (s *Neo4jStore) relTypeProperties(ctx context.Context, relType string) []string {
	props := []string{}
	if !isSafeIdentifier(relType) {
		return props
	}

	query := fmt.Sprintf(`
		MATCH ()-[r:%s]->()
		WHERE size(keys(r)) > 0
		UNWIND keys(r) AS key
		RETURN DISTINCT key AS property
		ORDER BY key`, relType)
	result := s.RunQuery(ctx, query, nil)
	if result.Status != StatusSuccess {
		return props
	}
	for _, rec := range result.Results {
		if p, ok := rec["property"].(string); ok {
			props = append(props, p)
		}
	}
	return props
}

// GetNodeInfo looks up one node by its identifier property.
func (s *Neo4jStore) GetNodeInfo(ctx context.Context, nodeID string) QueryResult {
	return s.RunQuery(ctx,
		"MATCH (n {identifier: $node_id}) RETURN n",
		map[string]any{"node_id": nodeID})
}

// FindRelationships returns every adjacent node and connecting relationship
// for a node. The match is undirected. An unknown identifier yields a
// success result with no rows.
func (s *Neo4jStore) FindRelationships(ctx context.Context, nodeID string) QueryResult {
	return s.RunQuery(ctx,
		"MATCH (n {identifier: $node_id})-[r]-(m) RETURN n, type(r) AS relationship, r, m",
		map[string]any{"node_id": nodeID})
}

// FindSensorReadings returns id/name/value triples for every Thing node with
// a non-null latest reading.
func (s *Neo4jStore) FindSensorReadings(ctx context.Context) QueryResult {
	return s.RunQuery(ctx, `
		MATCH (t:Thing)
		WHERE t.latest_value IS NOT NULL
		RETURN t.identifier AS id, t.name AS name, t.latest_value AS value`, nil)
}

// countByTypeAPOC batches per-label counts through apoc.cypher.run.
const countByTypeAPOC = `
	CALL db.labels() YIELD label
	CALL apoc.cypher.run('MATCH (n:' + label + ') RETURN count(n) AS count', {}) YIELD value
	RETURN label, value.count AS count`

// CountNodesByType returns the node count per label. It prefers the APOC
// batch form and falls back to one count query per label when the error
// signature indicates the extension is missing. All other errors are
// terminal for the call.
func (s *Neo4jStore) CountNodesByType(ctx context.Context) QueryResult {
	result := s.RunQuery(ctx, countByTypeAPOC, nil)
	if result.Status == StatusSuccess {
		return result
	}

	if isMissingAPOC(result.Message) {
		s.logger.Debug("apoc unavailable, counting per label", "error", result.Message)
		return s.countNodesBasic(ctx)
	}

	return result
}

// isMissingAPOC recognizes the store error signature for an absent
// batch-aggregation extension.
func isMissingAPOC(message string) bool {
	lower := strings.ToLower(message)
	return strings.Contains(lower, "apoc") ||
		(strings.Contains(lower, "unknown") && strings.Contains(lower, "procedure"))
}

// countNodesBasic issues one count query per label and assembles the results
// into the same shape as the APOC path.
func (s *Neo4jStore) countNodesBasic(ctx context.Context) QueryResult {
	labels := s.RunQuery(ctx, "CALL db.labels() YIELD label RETURN label", nil)
	if labels.Status != StatusSuccess {
		return labels
	}

	counts := []Record{}
	for _, rec := range labels.Results {
		label, ok := rec["label"].(string)
		if !ok || !isSafeIdentifier(label) {
			continue
		}

		query := fmt.Sprintf("MATCH (n:%s) RETURN count(n) AS count", label)
		countResult := s.RunQuery(ctx, query, nil)
		if countResult.Status != StatusSuccess || len(countResult.Results) == 0 {
			continue
		}

		counts = append(counts, Record{
			"label": label,
			"count": countResult.Results[0]["count"],
		})
	}

	return successResult(counts)
}

// GetNodeProperties returns the union of property keys used by nodes with the label.
func (s *Neo4jStore) GetNodeProperties(ctx context.Context, label string) QueryResult {
	if !isSafeIdentifier(label) {
		return errorResult(fmt.Sprintf("invalid node label %q", label))
	}

	query := fmt.Sprintf(`
		MATCH (n:%s)
		UNWIND keys(n) AS property
		RETURN DISTINCT property
		ORDER BY property`, label)
	return s.RunQuery(ctx, query, nil)
}

// FindNodesByType returns all nodes carrying a label, normalized.
func (s *Neo4jStore) FindNodesByType(ctx context.Context, nodeType string) QueryResult {
	if !isSafeIdentifier(nodeType) {
		return errorResult(fmt.Sprintf("invalid node label %q", nodeType))
	}

	query := fmt.Sprintf("MATCH (n:%s) RETURN n", nodeType)
	return s.RunQuery(ctx, query, nil)
}

// FindPathBetweenNodes returns the shortest undirected path between two nodes.
func (s *Neo4jStore) FindPathBetweenNodes(ctx context.Context, startID, endID string) QueryResult {
	return s.RunQuery(ctx, `
		MATCH path = shortestPath((a {identifier: $start_id})-[*]-(b {identifier: $end_id}))
		RETURN path`,
		map[string]any{"start_id": startID, "end_id": endID})
}

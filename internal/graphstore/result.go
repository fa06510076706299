package graphstore

import (
	"github.com/neo4j/neo4j-go-driver/v5/neo4j/dbtype"
)

// Result statuses.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Record is one normalized result row, keyed by column name. Values are
// scalars, normalized node maps (properties plus a "labels" list), normalized
// relationship maps, or normalized path maps ({nodes, relationships}). No
// driver-native type ever appears in a Record.
type Record map[string]any

// QueryResult is the uniform result shape for every graph operation.
// Failures are carried in-band: Status "error" plus Message, never a Go error.
type QueryResult struct {
	Status  string   `json:"status"`
	Message string   `json:"message,omitempty"`
	Results []Record `json:"results"`
}

// Errorf builds an error-status result.
func errorResult(message string) QueryResult {
	return QueryResult{Status: StatusError, Message: message}
}

func successResult(results []Record) QueryResult {
	if results == nil {
		results = []Record{}
	}
	return QueryResult{Status: StatusSuccess, Results: results}
}

// valueKind tags the closed set of raw value shapes the driver can hand us.
type valueKind int

const (
	kindScalar valueKind = iota
	kindNode
	kindRelationship
	kindPath
)

// classify maps a raw driver value onto the closed shape set. Anything that
// is not a node, relationship, or path is treated as a scalar and passed
// through unchanged (this includes lists and plain property maps).
func classify(v any) valueKind {
	switch v.(type) {
	case dbtype.Node:
		return kindNode
	case dbtype.Relationship:
		return kindRelationship
	case dbtype.Path:
		return kindPath
	default:
		return kindScalar
	}
}

// normalizeValue converts a raw driver value into its plain representation.
// The match is total over the closed shape set.
func normalizeValue(v any) any {
	switch classify(v) {
	case kindNode:
		return normalizeNode(v.(dbtype.Node))
	case kindRelationship:
		return normalizeRelationship(v.(dbtype.Relationship))
	case kindPath:
		return normalizePath(v.(dbtype.Path))
	default:
		return v
	}
}

// normalizeNode flattens a node into its property map plus an explicit
// "labels" list.
func normalizeNode(n dbtype.Node) map[string]any {
	out := make(map[string]any, len(n.Props)+1)
	for k, v := range n.Props {
		out[k] = v
	}
	labels := n.Labels
	if labels == nil {
		labels = []string{}
	}
	out["labels"] = labels
	return out
}

// normalizeRelationship flattens a relationship into its property map plus an
// explicit "type" marker.
func normalizeRelationship(r dbtype.Relationship) map[string]any {
	out := make(map[string]any, len(r.Props)+1)
	for k, v := range r.Props {
		out[k] = v
	}
	out["type"] = r.Type
	return out
}

// normalizePath expands a path into ordered normalized nodes and relationships.
func normalizePath(p dbtype.Path) map[string]any {
	nodes := make([]any, 0, len(p.Nodes))
	for _, n := range p.Nodes {
		nodes = append(nodes, normalizeNode(n))
	}
	rels := make([]any, 0, len(p.Relationships))
	for _, r := range p.Relationships {
		rels = append(rels, normalizeRelationship(r))
	}
	return map[string]any{
		"nodes":         nodes,
		"relationships": rels,
	}
}

// normalizeRows converts a raw column list plus value rows into Records.
func normalizeRows(keys []string, rows [][]any) []Record {
	records := make([]Record, 0, len(rows))
	for _, row := range rows {
		rec := make(Record, len(keys))
		for i, key := range keys {
			if i >= len(row) {
				break
			}
			rec[key] = normalizeValue(row[i])
		}
		records = append(records, rec)
	}
	return records
}

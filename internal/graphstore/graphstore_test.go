package graphstore

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j/dbtype"
)

// fakeQuery routes query text to canned raw rows, standing in for the driver.
type fakeQuery func(query string, params map[string]any) ([]string, [][]any, error)

func newTestStore(fn fakeQuery) *Neo4jStore {
	s := NewNeo4jStore()
	s.queryFn = func(ctx context.Context, query string, params map[string]any) ([]string, [][]any, error) {
		return fn(query, params)
	}
	return s
}

func TestRunQuery_NormalizesNodes(t *testing.T) {
	node := dbtype.Node{
		Id:     1,
		Labels: []string{"Thing"},
		Props:  map[string]any{"identifier": "thing-1", "name": "Capteur CO2"},
	}

	s := newTestStore(func(query string, params map[string]any) ([]string, [][]any, error) {
		return []string{"n"}, [][]any{{node}}, nil
	})

	result := s.RunQuery(context.Background(), "MATCH (n) RETURN n", nil)
	if result.Status != StatusSuccess {
		t.Fatalf("status = %q, want success", result.Status)
	}
	if len(result.Results) != 1 {
		t.Fatalf("got %d records, want 1", len(result.Results))
	}

	value := result.Results[0]["n"]
	m, ok := value.(map[string]any)
	if !ok {
		t.Fatalf("normalized node type = %T, want map[string]any", value)
	}
	if m["identifier"] != "thing-1" {
		t.Errorf("identifier = %v", m["identifier"])
	}
	labels, ok := m["labels"].([]string)
	if !ok || len(labels) != 1 || labels[0] != "Thing" {
		t.Errorf("labels = %v, want [Thing]", m["labels"])
	}
}

func TestRunQuery_NormalizesRelationshipsAndScalars(t *testing.T) {
	rel := dbtype.Relationship{
		Id:    7,
		Type:  "LOCATED_AT",
		Props: map[string]any{"since": int64(2021)},
	}

	s := newTestStore(func(query string, params map[string]any) ([]string, [][]any, error) {
		return []string{"r", "count"}, [][]any{{rel, int64(3)}}, nil
	})

	result := s.RunQuery(context.Background(), "MATCH ()-[r]-() RETURN r, 3 AS count", nil)
	if result.Status != StatusSuccess {
		t.Fatalf("status = %q", result.Status)
	}

	rec := result.Results[0]
	m, ok := rec["r"].(map[string]any)
	if !ok {
		t.Fatalf("normalized relationship type = %T", rec["r"])
	}
	if m["type"] != "LOCATED_AT" {
		t.Errorf("type = %v", m["type"])
	}
	if m["since"] != int64(2021) {
		t.Errorf("since = %v", m["since"])
	}
	if rec["count"] != int64(3) {
		t.Errorf("scalar passthrough = %v, want 3", rec["count"])
	}
}

func TestRunQuery_NormalizesPaths(t *testing.T) {
	path := dbtype.Path{
		Nodes: []dbtype.Node{
			{Id: 1, Labels: []string{"Thing"}, Props: map[string]any{"identifier": "a"}},
			{Id: 2, Labels: []string{"Location"}, Props: map[string]any{"identifier": "b"}},
		},
		Relationships: []dbtype.Relationship{
			{Id: 9, Type: "LOCATED_AT", Props: map[string]any{}},
		},
	}

	s := newTestStore(func(query string, params map[string]any) ([]string, [][]any, error) {
		return []string{"path"}, [][]any{{path}}, nil
	})

	result := s.RunQuery(context.Background(), "MATCH path = ... RETURN path", nil)
	m, ok := result.Results[0]["path"].(map[string]any)
	if !ok {
		t.Fatalf("normalized path type = %T", result.Results[0]["path"])
	}

	nodes, ok := m["nodes"].([]any)
	if !ok || len(nodes) != 2 {
		t.Fatalf("nodes = %v", m["nodes"])
	}
	first, ok := nodes[0].(map[string]any)
	if !ok {
		t.Fatalf("path node type = %T, want map", nodes[0])
	}
	if _, hasLabels := first["labels"]; !hasLabels {
		t.Error("path node missing labels key")
	}

	rels, ok := m["relationships"].([]any)
	if !ok || len(rels) != 1 {
		t.Fatalf("relationships = %v", m["relationships"])
	}
}

func TestRunQuery_ErrorsFoldedIntoResult(t *testing.T) {
	s := newTestStore(func(query string, params map[string]any) ([]string, [][]any, error) {
		return nil, nil, errors.New("connection refused")
	})

	result := s.RunQuery(context.Background(), "MATCH (n) RETURN n", nil)
	if result.Status != StatusError {
		t.Fatalf("status = %q, want error", result.Status)
	}
	if result.Message != "connection refused" {
		t.Errorf("message = %q", result.Message)
	}
}

func TestGetSchema_IncludesZeroPropertyLabels(t *testing.T) {
	s := newTestStore(func(query string, params map[string]any) ([]string, [][]any, error) {
		switch {
		case strings.Contains(query, "db.labels"):
			return []string{"label"}, [][]any{{"Ghost"}, {"Thing"}}, nil
		case strings.Contains(query, "db.relationshipTypes"):
			return []string{"relationshipType"}, nil, nil
		case strings.Contains(query, "MATCH (n:Ghost)"):
			// Label exists but no node carries any properties.
			return []string{"property"}, nil, nil
		case strings.Contains(query, "MATCH (n:Thing)"):
			return []string{"property"}, [][]any{{"identifier"}, {"name"}}, nil
		default:
			return []string{}, nil, nil
		}
	})

	schema := s.GetSchema(context.Background())
	if len(schema.NodeLabels) != 2 {
		t.Fatalf("got %d labels, want 2 (zero-property label must not be dropped)", len(schema.NodeLabels))
	}

	ghost := schema.NodeLabels[0]
	if ghost.Label != "Ghost" {
		t.Fatalf("first label = %q", ghost.Label)
	}
	if ghost.Properties == nil || len(ghost.Properties) != 0 {
		t.Errorf("Ghost properties = %v, want empty list", ghost.Properties)
	}
}

func TestGetSchema_SubQueryFailureDegrades(t *testing.T) {
	s := newTestStore(func(query string, params map[string]any) ([]string, [][]any, error) {
		if strings.Contains(query, "db.relationshipTypes") {
			return nil, nil, errors.New("boom")
		}
		return []string{"label"}, nil, nil
	})

	schema := s.GetSchema(context.Background())
	if schema.Status != StatusSuccess {
		t.Errorf("schema status = %q, want success despite sub-query failure", schema.Status)
	}
	if schema.RelationshipTypes == nil {
		t.Error("relationshipTypes is nil, want empty list")
	}
}

func TestCountNodesByType_Fallback(t *testing.T) {
	data := map[string]int64{"Thing": 12, "Location": 4}

	basicOnly := func(query string, params map[string]any) ([]string, [][]any, error) {
		switch {
		case strings.Contains(query, "apoc.cypher.run"):
			return nil, nil, errors.New("There is no procedure with the name `apoc.cypher.run` registered")
		case strings.Contains(query, "db.labels"):
			return []string{"label"}, [][]any{{"Thing"}, {"Location"}}, nil
		case strings.Contains(query, "MATCH (n:Thing)"):
			return []string{"count"}, [][]any{{data["Thing"]}}, nil
		case strings.Contains(query, "MATCH (n:Location)"):
			return []string{"count"}, [][]any{{data["Location"]}}, nil
		default:
			return nil, nil, errors.New("unexpected query: " + query)
		}
	}

	withAPOC := func(query string, params map[string]any) ([]string, [][]any, error) {
		if strings.Contains(query, "apoc.cypher.run") {
			return []string{"label", "count"}, [][]any{
				{"Thing", data["Thing"]},
				{"Location", data["Location"]},
			}, nil
		}
		return nil, nil, errors.New("unexpected query: " + query)
	}

	toMap := func(result QueryResult) map[string]int64 {
		t.Helper()
		if result.Status != StatusSuccess {
			t.Fatalf("status = %q: %s", result.Status, result.Message)
		}
		out := map[string]int64{}
		for _, rec := range result.Results {
			out[rec["label"].(string)] = rec["count"].(int64)
		}
		return out
	}

	gotAPOC := toMap(newTestStore(withAPOC).CountNodesByType(context.Background()))
	gotBasic := toMap(newTestStore(basicOnly).CountNodesByType(context.Background()))

	for label, want := range data {
		if gotAPOC[label] != want {
			t.Errorf("apoc path: %s = %d, want %d", label, gotAPOC[label], want)
		}
		if gotBasic[label] != want {
			t.Errorf("fallback path: %s = %d, want %d", label, gotBasic[label], want)
		}
	}
}

func TestCountNodesByType_NonAPOCErrorIsTerminal(t *testing.T) {
	s := newTestStore(func(query string, params map[string]any) ([]string, [][]any, error) {
		return nil, nil, errors.New("connection reset by peer")
	})

	result := s.CountNodesByType(context.Background())
	if result.Status != StatusError {
		t.Fatalf("status = %q, want error for non-extension failure", result.Status)
	}
}

func TestFindRelationships_UnknownIDIsEmptySuccess(t *testing.T) {
	s := newTestStore(func(query string, params map[string]any) ([]string, [][]any, error) {
		if params["node_id"] != "nope" {
			t.Errorf("node_id param = %v, want bound parameter", params["node_id"])
		}
		return []string{"n", "relationship", "r", "m"}, nil, nil
	})

	result := s.FindRelationships(context.Background(), "nope")
	if result.Status != StatusSuccess {
		t.Fatalf("status = %q, want success", result.Status)
	}
	if len(result.Results) != 0 {
		t.Errorf("got %d results, want 0", len(result.Results))
	}
	if result.Results == nil {
		t.Error("results is nil, want empty list")
	}
}

func TestLabelInterpolationGuard(t *testing.T) {
	s := newTestStore(func(query string, params map[string]any) ([]string, [][]any, error) {
		t.Errorf("query executed despite unsafe label: %s", query)
		return nil, nil, nil
	})

	result := s.FindNodesByType(context.Background(), "Thing) RETURN n //")
	if result.Status != StatusError {
		t.Fatalf("status = %q, want error for unsafe label", result.Status)
	}

	result = s.GetNodeProperties(context.Background(), "Bad Label")
	if result.Status != StatusError {
		t.Fatalf("status = %q, want error for unsafe label", result.Status)
	}
}

func TestIsSafeIdentifier(t *testing.T) {
	safe := []string{"Thing", "ThingType", "IS_INSTALLED_IN", "Sensor2"}
	unsafe := []string{"", "Thing Type", "Thing)", "a-b", "é"}

	for _, s := range safe {
		if !isSafeIdentifier(s) {
			t.Errorf("isSafeIdentifier(%q) = false, want true", s)
		}
	}
	for _, s := range unsafe {
		if isSafeIdentifier(s) {
			t.Errorf("isSafeIdentifier(%q) = true, want false", s)
		}
	}
}

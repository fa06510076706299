package retrieval

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/villagegraph/assistant/internal/graphstore"
)

type fakeStore struct {
	schema  graphstore.Schema
	results map[string]graphstore.QueryResult // keyed by index name param
}

func (f *fakeStore) GetSchema(ctx context.Context) graphstore.Schema {
	return f.schema
}

func (f *fakeStore) RunQuery(ctx context.Context, query string, params map[string]any) graphstore.QueryResult {
	index, _ := params["index"].(string)
	if r, ok := f.results[index]; ok {
		return r
	}
	return graphstore.QueryResult{Status: graphstore.StatusError, Message: "no such index"}
}

type fakeEmbedder struct {
	err error
}

func (f *fakeEmbedder) Name() string    { return "fake" }
func (f *fakeEmbedder) Available() bool { return true }
func (f *fakeEmbedder) Dimensions() int { return 3 }
func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []float32{0.1, 0.2, 0.3}, nil
}

func testSchema() graphstore.Schema {
	return graphstore.Schema{
		Status: graphstore.StatusSuccess,
		NodeLabels: []graphstore.LabelSchema{
			{Label: "Thing", Properties: []string{"identifier", "name"}},
		},
		RelationshipTypes: []graphstore.RelTypeSchema{},
		Patterns:          []graphstore.Pattern{},
	}
}

func TestGetContext_EmptyQueryReturnsStaticSchema(t *testing.T) {
	r := NewRetriever(&fakeStore{schema: testSchema()}, &fakeEmbedder{}, Config{Enabled: true}, nil)

	sc := r.GetContext(context.Background(), "")
	if len(sc.NodeLabels) != 1 {
		t.Fatalf("schema not carried through: %+v", sc.NodeLabels)
	}
	if !strings.Contains(sc.RelationsInfo, "No query provided") {
		t.Errorf("relations info = %q", sc.RelationsInfo)
	}
}

func TestGetContext_AttachesGroundingText(t *testing.T) {
	store := &fakeStore{
		schema: testSchema(),
		results: map[string]graphstore.QueryResult{
			"relation_docs": {
				Status: graphstore.StatusSuccess,
				Results: []graphstore.Record{
					{"relation": "LOCATED_AT", "description": "A thing is installed at a location"},
				},
			},
			"query_examples": {
				Status: graphstore.StatusSuccess,
				Results: []graphstore.Record{
					{"question": "Where is sensor X?", "query": "MATCH (t:Thing)-[r:LOCATED_AT]->(l) RETURN t, r, l"},
				},
			},
		},
	}
	cfg := Config{Enabled: true, TopK: 5, RelationIndex: "relation_docs", ExampleIndex: "query_examples"}
	r := NewRetriever(store, &fakeEmbedder{}, cfg, nil)

	sc := r.GetContext(context.Background(), "where is the CO2 sensor?")
	if !strings.Contains(sc.RelationsInfo, "Relation: LOCATED_AT") {
		t.Errorf("missing relation grounding: %q", sc.RelationsInfo)
	}
	if !strings.Contains(sc.RelationsInfo, "Question: Where is sensor X?") {
		t.Errorf("missing example grounding: %q", sc.RelationsInfo)
	}
}

func TestGetContext_EmbeddingFailureDegrades(t *testing.T) {
	r := NewRetriever(
		&fakeStore{schema: testSchema()},
		&fakeEmbedder{err: errors.New("rate limited")},
		Config{Enabled: true},
		nil,
	)

	sc := r.GetContext(context.Background(), "any question")
	if !strings.Contains(sc.RelationsInfo, "Error with vector store") {
		t.Errorf("relations info = %q, want explanatory note", sc.RelationsInfo)
	}
	if len(sc.NodeLabels) != 1 {
		t.Error("static schema must survive embedding failure")
	}
}

func TestGetContext_NilEmbedder(t *testing.T) {
	r := NewRetriever(&fakeStore{schema: testSchema()}, nil, Config{Enabled: true}, nil)

	sc := r.GetContext(context.Background(), "any question")
	if !strings.Contains(sc.RelationsInfo, "unavailable") {
		t.Errorf("relations info = %q", sc.RelationsInfo)
	}
}

func TestGetContext_IndexFailureNoted(t *testing.T) {
	store := &fakeStore{schema: testSchema(), results: map[string]graphstore.QueryResult{}}
	cfg := Config{Enabled: true, RelationIndex: "relation_docs", ExampleIndex: "query_examples"}
	r := NewRetriever(store, &fakeEmbedder{}, cfg, nil)

	sc := r.GetContext(context.Background(), "anything")
	if !strings.Contains(sc.RelationsInfo, "Error querying vector store") {
		t.Errorf("relations info = %q", sc.RelationsInfo)
	}
}

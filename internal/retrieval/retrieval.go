// Package retrieval grounds the assistant's query generation: it pairs the
// static graph schema with free-text context retrieved from persistent
// vector indexes (relation descriptions and worked question-to-query
// examples). The indexes live in the graph store and are populated out of
// band; this package only reads them.
package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/villagegraph/assistant/internal/graphstore"
	"github.com/villagegraph/assistant/internal/metrics"
	"github.com/villagegraph/assistant/internal/providers"
)

// SchemaContext is the grounding bundle handed to the orchestration loop and
// the extraction pipeline: the full schema plus retrieved free-text context.
type SchemaContext struct {
	graphstore.Schema
	RelationsInfo string `json:"relations_info"`
}

// graphReader is the slice of the graph store the retriever needs.
type graphReader interface {
	GetSchema(ctx context.Context) graphstore.Schema
	RunQuery(ctx context.Context, query string, params map[string]any) graphstore.QueryResult
}

// Config holds vector-index lookup settings.
type Config struct {
	Enabled       bool
	TopK          int
	RelationIndex string
	ExampleIndex  string
}

// Retriever produces SchemaContext for user queries.
type Retriever struct {
	store    graphReader
	embedder providers.Embedder
	config   Config
	logger   *slog.Logger
}

// NewRetriever creates a retriever. The embedder may be nil, in which case
// only the static schema portion is produced.
func NewRetriever(store graphReader, embedder providers.Embedder, cfg Config, logger *slog.Logger) *Retriever {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.TopK <= 0 {
		cfg.TopK = 15
	}
	return &Retriever{store: store, embedder: embedder, config: cfg, logger: logger}
}

// GetContext returns the static schema plus, when userQuery is non-empty and
// the vector index is reachable, nearest-neighbor grounding text. Index or
// embedding failures degrade to an explanatory note; this call never fails.
func (r *Retriever) GetContext(ctx context.Context, userQuery string) SchemaContext {
	sc := SchemaContext{Schema: r.store.GetSchema(ctx)}

	if strings.TrimSpace(userQuery) == "" {
		sc.RelationsInfo = "No query provided for vector search."
		return sc
	}
	if !r.config.Enabled || r.embedder == nil || !r.embedder.Available() {
		metrics.RetrievalsTotal.WithLabelValues("schema_only").Inc()
		sc.RelationsInfo = "Vector search unavailable: no embeddings provider configured."
		return sc
	}

	embedding, err := r.embedder.Embed(ctx, userQuery)
	if err != nil {
		metrics.RetrievalsTotal.WithLabelValues("error").Inc()
		r.logger.Error("query embedding failed", "error", err)
		sc.RelationsInfo = fmt.Sprintf("Error with vector store: %s", err)
		return sc
	}
	metrics.RetrievalsTotal.WithLabelValues("grounded").Inc()

	var b strings.Builder
	b.WriteString("Relevant relations:\n")
	b.WriteString(strings.Join(r.relevantRelations(ctx, embedding), "\n\n"))
	b.WriteString("\nQueries Examples:\n")
	b.WriteString(strings.Join(r.exampleQueries(ctx, embedding), "\n\n"))

	sc.RelationsInfo = b.String()
	return sc
}

// relevantRelations pulls the k nearest relation descriptions from the index.
func (r *Retriever) relevantRelations(ctx context.Context, embedding []float32) []string {
	result := r.store.RunQuery(ctx, `
		CALL db.index.vector.queryNodes($index, $k, $embedding) YIELD node, score
		RETURN node.relation AS relation, node.description AS description`,
		map[string]any{
			"index":     r.config.RelationIndex,
			"k":         r.config.TopK,
			"embedding": embedding,
		})
	if result.Status != graphstore.StatusSuccess {
		r.logger.Warn("relation index lookup failed", "error", result.Message)
		return []string{fmt.Sprintf("Error querying vector store: %s", result.Message)}
	}

	lines := make([]string, 0, len(result.Results))
	for _, rec := range result.Results {
		relation, _ := rec["relation"].(string)
		description, _ := rec["description"].(string)
		lines = append(lines, fmt.Sprintf("Relation: %s\nDescription: %s\n", relation, description))
	}
	return lines
}

// exampleQueries pulls the k nearest question and query pairs from the index.
func (r *Retriever) exampleQueries(ctx context.Context, embedding []float32) []string {
	result := r.store.RunQuery(ctx, `
		CALL db.index.vector.queryNodes($index, $k, $embedding) YIELD node, score
		RETURN node.question AS question, node.query AS query`,
		map[string]any{
			"index":     r.config.ExampleIndex,
			"k":         r.config.TopK,
			"embedding": embedding,
		})
	if result.Status != graphstore.StatusSuccess {
		r.logger.Warn("example index lookup failed", "error", result.Message)
		return []string{fmt.Sprintf("Error querying vector store: %s", result.Message)}
	}

	lines := make([]string, 0, len(result.Results))
	for _, rec := range result.Results {
		question, _ := rec["question"].(string)
		query, _ := rec["query"].(string)
		lines = append(lines, fmt.Sprintf("Question: %s\nQuery: %s\n", question, query))
	}
	return lines
}

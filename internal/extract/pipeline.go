package extract

import (
	"context"
	"log/slog"

	"github.com/villagegraph/assistant/internal/graphstore"
	"github.com/villagegraph/assistant/internal/metrics"
)

// Extractor runs the layered extraction pipeline over assistant answers.
type Extractor struct {
	chat   ChatClient
	model  string
	logger *slog.Logger
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithChatClient enables the LLM regeneration layers.
func WithChatClient(chat ChatClient, model string) Option {
	return func(e *Extractor) {
		e.chat = chat
		e.model = model
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Extractor) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// NewExtractor builds an Extractor. Without a chat client only the
// deterministic scanner runs.
func NewExtractor(opts ...Option) *Extractor {
	e := &Extractor{logger: slog.Default()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract recovers the Cypher query behind an answer. The deterministic
// scanner short-circuits the LLM layers entirely; when it misses, the
// schema-aware regeneration pass runs, with the legacy pass reserved for
// regeneration errors. A result with is_valid false means no query may be
// forwarded, whatever the query field contains.
func (e *Extractor) Extract(ctx context.Context, answer string, schema graphstore.Schema) Extraction {
	if query := ScanText(answer); query != "" {
		metrics.ExtractionsTotal.WithLabelValues("pattern", "valid").Inc()
		return Extraction{Query: query, IsValid: true, Notes: PatternNotes}
	}

	if e.chat == nil {
		return Extraction{Notes: "No query found"}
	}

	layer := "regenerate"
	result, err := regenerate(ctx, e.chat, e.model, answer, schema)
	if err != nil {
		e.logger.Warn("schema-aware extraction failed, trying legacy extraction", "error", err)
		layer = "legacy"
		result, err = legacyExtract(ctx, e.chat, e.model, answer)
		if err != nil {
			e.logger.Error("legacy extraction failed", "error", err)
			metrics.ExtractionsTotal.WithLabelValues(layer, "error").Inc()
			return Extraction{Notes: "Extraction failed: " + err.Error()}
		}
	}

	if !result.IsValid {
		result.Query = ""
		metrics.ExtractionsTotal.WithLabelValues(layer, "invalid").Inc()
		return result
	}
	metrics.ExtractionsTotal.WithLabelValues(layer, "valid").Inc()
	return result
}

// Package schema prints the live graph schema.
package schema

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/villagegraph/assistant/internal/config"
	"github.com/villagegraph/assistant/internal/graphstore"
	"github.com/villagegraph/assistant/internal/providers"
	"github.com/villagegraph/assistant/internal/retrieval"
)

var queryFlag string

// SchemaCmd prints the graph schema as JSON.
var SchemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Print the knowledge graph schema",
	Long: "Print the knowledge graph schema.\n\n" +
		"Reads node labels, relationship types, and observed connection patterns from the " +
		"live database. With --query, vector search enriches the output with the relations " +
		"and example queries most relevant to the question.",
	Example: `  # Print the full schema
  villagegraph schema

  # Print the schema with grounding for a question
  villagegraph schema --query "Quels capteurs sont dans la mairie?"`,
	PreRunE: validateSchema,
	RunE:    runSchema,
}

func init() {
	SchemaCmd.Flags().StringVar(&queryFlag, "query", "", "question to retrieve grounding context for")
}

func validateSchema(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true
	return nil
}

func runSchema(cmd *cobra.Command, args []string) error {
	cfg := config.Get()
	ctx := cmd.Context()

	store := graphstore.NewNeo4jStore(
		graphstore.WithConfig(graphstore.Config{
			URI:      cfg.Neo4j.URI,
			Username: cfg.Neo4j.Username,
			Password: cfg.Neo4j.ResolvePassword(),
			Database: cfg.Neo4j.Database,
		}),
		graphstore.WithLogger(slog.Default()),
	)
	if err := store.Connect(ctx); err != nil {
		return fmt.Errorf("failed to connect to graph store; %w", err)
	}
	defer store.Close(ctx)

	var embedder providers.Embedder
	if queryFlag != "" && cfg.Retrieval.Enabled {
		e, err := providers.NewEmbedder(providers.EmbedderConfig{
			Provider:   cfg.Embeddings.Provider,
			Model:      cfg.Embeddings.Model,
			Dimensions: cfg.Embeddings.Dimensions,
			APIKey:     cfg.Embeddings.ResolveAPIKey(),
		})
		if err != nil {
			slog.Warn("embeddings provider unavailable, printing schema without grounding", "error", err)
		} else {
			embedder = e
		}
	}

	retriever := retrieval.NewRetriever(store, embedder, retrieval.Config{
		Enabled:       cfg.Retrieval.Enabled,
		TopK:          cfg.Retrieval.TopK,
		RelationIndex: cfg.Retrieval.RelationIndex,
		ExampleIndex:  cfg.Retrieval.ExampleIndex,
	}, slog.Default())

	schemaCtx := retriever.GetContext(ctx, queryFlag)

	out, err := json.MarshalIndent(schemaCtx, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode schema; %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return nil
}

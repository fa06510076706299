// Package query runs ad hoc Cypher queries against the graph.
package query

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/villagegraph/assistant/internal/config"
	"github.com/villagegraph/assistant/internal/graphstore"
)

// QueryCmd runs one Cypher query and prints the normalized result.
var QueryCmd = &cobra.Command{
	Use:   "query <cypher>",
	Short: "Run a Cypher query against the knowledge graph",
	Long: "Run a Cypher query against the knowledge graph.\n\n" +
		"Executes the query read-only and prints the normalized result as JSON. " +
		"Nodes are flattened to their properties plus a labels list, relationships " +
		"to their properties plus a type, and paths to ordered node and relationship lists.",
	Example: `  # Count nodes per label
  villagegraph query "MATCH (n) RETURN labels(n), count(n)"

  # Inspect a sensor
  villagegraph query "MATCH (t:Thing {identifier: 'sensor-7'}) RETURN t"`,
	Args:    cobra.ExactArgs(1),
	PreRunE: validateQuery,
	RunE:    runQuery,
}

func validateQuery(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true
	return nil
}

func runQuery(cmd *cobra.Command, args []string) error {
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

	result := store.RunQuery(ctx, args[0], nil)

	out, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode result; %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return nil
}

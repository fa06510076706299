// Package cmd wires the villagegraph command line interface.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	configcmd "github.com/villagegraph/assistant/cmd/config"
	"github.com/villagegraph/assistant/cmd/query"
	"github.com/villagegraph/assistant/cmd/schema"
	"github.com/villagegraph/assistant/cmd/serve"
	"github.com/villagegraph/assistant/cmd/version"
	"github.com/villagegraph/assistant/internal/config"
	"github.com/villagegraph/assistant/internal/logging"
)

// logManager is the global logging manager, created in init() and upgraded
// after config loads.
var logManager *logging.Manager

var villagegraphCmd = &cobra.Command{
	Use:   "villagegraph",
	Short: "A Conversational Assistant for a Smart-Village Knowledge Graph",
	Long: "Villagegraph answers natural language questions about a smart-village IoT deployment " +
		"by pairing an LLM assistant with a Neo4j knowledge graph.\n\n" +
		"The assistant reads the live graph schema, retrieves grounding context with vector search, " +
		"and executes graph operations on the model's behalf, returning both a textual answer and " +
		"the Cypher query behind it for visualization.",
	PersistentPreRunE: runInitialize,
}

func init() {
	// Bootstrap mode logs to stderr only until config is available.
	logManager = logging.NewManager()

	villagegraphCmd.AddCommand(serve.ServeCmd)
	villagegraphCmd.AddCommand(schema.SchemaCmd)
	villagegraphCmd.AddCommand(query.QueryCmd)
	villagegraphCmd.AddCommand(configcmd.ConfigCmd)
	villagegraphCmd.AddCommand(version.VersionCmd)
}

func runInitialize(cmd *cobra.Command, args []string) error {
	logger := logManager.Logger()

	if err := config.Init(); err != nil {
		return err
	}
	cfg := config.Get()

	level, ok := logging.ParseLevel(cfg.LogLevel)
	if !ok {
		level = logging.DefaultLevel
		if cfg.LogLevel != "" {
			logger.Warn("invalid log level configured, using default",
				"configured", cfg.LogLevel, "default", "info")
		}
	}

	if err := logManager.Upgrade(cfg.LogFile, level); err != nil {
		logger.Warn("failed to enable file logging, continuing with stderr only", "error", err)
	}

	return nil
}

// Execute runs the root command.
func Execute() error {
	villagegraphCmd.SilenceErrors = true
	villagegraphCmd.SilenceUsage = true

	defer func() { _ = logManager.Close() }()

	err := villagegraphCmd.Execute()

	if err != nil {
		cmd, _, _ := villagegraphCmd.Find(os.Args[1:])
		if cmd == nil {
			cmd = villagegraphCmd
		}

		fmt.Printf("Error: %v\n", err)
		if !cmd.SilenceUsage {
			fmt.Printf("\n")
			cmd.SetOut(os.Stdout)
			_ = cmd.Usage()
		}

		return err
	}

	return nil
}

// Package subcommands implements the config subcommands.
package subcommands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/villagegraph/assistant/internal/config"
)

var (
	initPath  string
	initForce bool
)

// InitCmd writes a default configuration file.
var InitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default configuration file",
	Long: "Write a default configuration file.\n\n" +
		"Creates a commented config.yaml populated with defaults. Secrets are never " +
		"written to the file; the generated config references environment variables " +
		"for the Neo4j password and API keys instead.",
	Example: `  # Write the default config to ~/.config/villagegraph/config.yaml
  villagegraph config init

  # Write to a custom location
  villagegraph config init --path ./config.yaml`,
	PreRunE: validateInit,
	RunE:    runInit,
}

func init() {
	InitCmd.Flags().StringVar(&initPath, "path", "", "destination path (default: user config directory)")
	InitCmd.Flags().BoolVar(&initForce, "force", false, "overwrite an existing file")
}

func validateInit(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true
	return nil
}

func runInit(cmd *cobra.Command, args []string) error {
	path := initPath
	if path == "" {
		path = config.DefaultConfigPath()
	}

	if !initForce {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config file already exists at %s (use --force to overwrite)", path)
		}
	}

	cfg := config.NewDefaultConfig()
	if err := config.Write(&cfg, path); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Wrote default configuration to %s\n", path)
	return nil
}

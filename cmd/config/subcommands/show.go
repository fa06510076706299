package subcommands

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/villagegraph/assistant/internal/config"
)

// ShowCmd prints the effective configuration.
var ShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	Long: "Show the effective configuration.\n\n" +
		"Prints the configuration after merging the config file, environment " +
		"variables, and defaults. Secrets resolved from the environment are not shown.",
	Example: `  # Show effective configuration
  villagegraph config show`,
	PreRunE: validateShow,
	RunE:    runShow,
}

func validateShow(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true
	return nil
}

func runShow(cmd *cobra.Command, args []string) error {
	out, err := yaml.Marshal(config.Get())
	if err != nil {
		return fmt.Errorf("failed to marshal config; %w", err)
	}
	fmt.Fprint(cmd.OutOrStdout(), string(out))
	return nil
}

package subcommands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/villagegraph/assistant/internal/config"
)

// ValidateCmd validates the effective configuration.
var ValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the effective configuration",
	Long: "Validate the effective configuration.\n\n" +
		"Loads the configuration and reports every validation problem found. " +
		"A valid configuration prints nothing and exits zero.",
	Example: `  # Validate configuration
  villagegraph config validate`,
	PreRunE: validateValidate,
	RunE:    runValidate,
}

func validateValidate(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true
	return nil
}

func runValidate(cmd *cobra.Command, args []string) error {
	if err := config.Validate(config.Get()); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Configuration is valid")
	return nil
}

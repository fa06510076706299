// Package config provides the config parent command and subcommands.
package config

import (
	"github.com/spf13/cobra"

	"github.com/villagegraph/assistant/cmd/config/subcommands"
)

// ConfigCmd is the parent command for all config-related subcommands.
var ConfigCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage villagegraph configuration",
	Long: "Manage villagegraph configuration.\n\n" +
		"The config command allows you to initialize, view, and validate the villagegraph " +
		"configuration. Configuration is stored in a YAML file located at " +
		"~/.config/villagegraph/config.yaml by default.",
}

func init() {
	ConfigCmd.AddCommand(subcommands.InitCmd)
	ConfigCmd.AddCommand(subcommands.ShowCmd)
	ConfigCmd.AddCommand(subcommands.ValidateCmd)
}

// Package config implements configuration management subcommands.
package config

import (
	"github.com/spf13/cobra"
)

// NewCmd returns the config subcommand.
func NewCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
		Long: `Manage dittostore configuration files.

Subcommands:
  init      Create a configuration file with defaults
  validate  Validate configuration file
  show      Display current configuration
  schema    Generate JSON schema for IDE/validation`,
	}

	cmd.AddCommand(newInitCmd(), newValidateCmd(), newShowCmd(), newSchemaCmd())
	return cmd
}

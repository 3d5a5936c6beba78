package config

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marmos91/dittostore/pkg/config"
)

func newInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a configuration file",
		Long: `Create a configuration file holding the defaults.

Examples:
  # Create the default config
  dstore config init

  # Create a config at a custom location
  dstore config init --config /etc/dittostore/config.yaml

  # Overwrite an existing config
  dstore config init --force`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath, _ := cmd.Flags().GetString("config")

			if configPath == "" {
				written, err := config.InitConfig(force)
				if err != nil {
					return err
				}
				configPath = written
			} else if err := config.InitConfigToPath(configPath, force); err != nil {
				return err
			}

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Configuration file created at: %s\n", configPath)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "overwrite an existing config file")
	return cmd
}

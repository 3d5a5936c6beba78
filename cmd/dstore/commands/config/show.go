package config

import (
	"github.com/spf13/cobra"

	"github.com/marmos91/dittostore/internal/cli/output"
	"github.com/marmos91/dittostore/pkg/config"
)

func newShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Display current configuration",
		Long: `Display the effective configuration: defaults, then the config file,
then DSTORE_* environment variables.

Examples:
  # Show as YAML
  dstore config show

  # Show as JSON
  dstore config show --output json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath, _ := cmd.Flags().GetString("config")
			format, _ := cmd.Flags().GetString("output")

			var (
				cfg *config.Config
				err error
			)
			if configPath != "" {
				cfg, err = config.MustLoad(configPath)
			} else {
				cfg, err = config.Load("")
			}
			if err != nil {
				return err
			}

			if f, err := output.ParseFormat(format); err == nil && f == output.FormatJSON {
				return output.PrintJSON(cmd.OutOrStdout(), cfg)
			}
			return output.PrintYAML(cmd.OutOrStdout(), cfg)
		},
	}
	return cmd
}

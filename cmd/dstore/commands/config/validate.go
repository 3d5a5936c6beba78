package config

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marmos91/dittostore/pkg/config"
)

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate configuration file",
		Long: `Validate the dittostore configuration file.

Checks for syntax errors, missing required fields, and invalid values.

Examples:
  # Validate default config
  dstore config validate

  # Validate specific config file
  dstore config validate --config /etc/dittostore/config.yaml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath, _ := cmd.Flags().GetString("config")

			cfg, err := config.MustLoad(configPath)
			if err != nil {
				return err
			}

			displayPath := configPath
			if displayPath == "" {
				displayPath = config.GetDefaultConfigPath()
			}

			var warnings []string
			if len(cfg.Repos) == 0 {
				warnings = append(warnings, "No repository configured - <REPO:...> paths will fail")
			}
			if cfg.Stanza == "" {
				warnings = append(warnings, "No stanza configured - pass --stanza to reach the spool")
			}

			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(out, "Configuration file: %s\n", displayPath)
			_, _ = fmt.Fprintln(out, "Validation: OK")

			if len(warnings) > 0 {
				_, _ = fmt.Fprintln(out, "\nWarnings:")
				for _, w := range warnings {
					_, _ = fmt.Fprintf(out, "  - %s\n", w)
				}
			}

			_, _ = fmt.Fprintf(out, "\nConfiguration summary:\n")
			_, _ = fmt.Fprintf(out, "  Repositories:    %d\n", len(cfg.Repos))
			_, _ = fmt.Fprintf(out, "  Clusters:        %d\n", len(cfg.Pgs))
			_, _ = fmt.Fprintf(out, "  Lock path:       %s\n", cfg.LockPath)
			_, _ = fmt.Fprintf(out, "  Spool path:      %s\n", cfg.SpoolPath)
			_, _ = fmt.Fprintf(out, "  Log level:       %s\n", cfg.Logging.Level)
			return nil
		},
	}
}

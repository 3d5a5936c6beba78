package config

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/marmos91/dittostore/pkg/config"
)

func newSchemaCmd() *cobra.Command {
	var schemaOutput string

	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Generate JSON schema for configuration",
		Long: `Generate a JSON schema for the dittostore configuration file.

The schema can be used for:
  - IDE autocompletion (VS Code, IntelliJ, etc.)
  - Configuration file validation
  - Documentation generation

Examples:
  # Print schema to stdout
  dstore config schema

  # Save schema to file
  dstore config schema --file config.schema.json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			schemaJSON, err := config.Schema()
			if err != nil {
				return err
			}

			if schemaOutput != "" {
				if err := os.WriteFile(schemaOutput, schemaJSON, 0644); err != nil {
					return fmt.Errorf("failed to write schema file: %w", err)
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "JSON schema written to %s\n", schemaOutput)
				return nil
			}

			_, _ = fmt.Fprintln(cmd.OutOrStdout(), string(schemaJSON))
			return nil
		},
	}

	// --output is the global format flag, so the file is --file.
	cmd.Flags().StringVar(&schemaOutput, "file", "", "Output file (default: stdout)")
	return cmd
}

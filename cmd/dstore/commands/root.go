// Package commands implements the dstore command line.
package commands

import (
	"github.com/spf13/cobra"

	"github.com/marmos91/dittostore/cmd/dstore/commands/config"
)

var (
	// Version information injected at build time.
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// Execute runs the command line. This is called by main.main().
func Execute() error {
	return NewRootCmd().Execute()
}

// NewRootCmd builds the command tree. Each call returns fresh flag state.
func NewRootCmd() *cobra.Command {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:   "dstore",
		Short: "dittostore - storage layer for PostgreSQL backup repositories",
		Long: `dstore browses and edits the storages behind a PostgreSQL backup
repository: local files, the cluster data directory, the archive spool and
repositories on posix, cifs, s3 or badger.

Paths are either absolute local paths or expression paths:
  <REPO:ARCHIVE>/16-1/000000010000000000000001
  <REPO:BACKUP>/20240101-120000F
  <SPOOL:ARCHIVE:OUT>
  <PG:DATA>/postgresql.conf

Use "dstore [command] --help" for more information about a command.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&a.cfgFile, "config", "", "config file (default: $XDG_CONFIG_HOME/dittostore/config.yaml)")
	flags.IntVar(&a.repo, "repo", 1, "repository used by <REPO:...> paths (1-based)")
	flags.IntVar(&a.pg, "pg", 1, "cluster used by <PG:...> paths (1-based)")
	flags.StringVar(&a.stanza, "stanza", "", "stanza (overrides the configured one)")
	flags.BoolVar(&a.dryRun, "dry-run", false, "refuse every write")
	flags.StringVarP(&a.output, "output", "o", "table", "output format (table|json|yaml)")

	rootCmd.AddCommand(
		newLsCmd(a),
		newInfoCmd(a),
		newGetCmd(a),
		newPutCmd(a),
		newRmCmd(a),
		newMkdirCmd(a),
		newStopCmd(a),
		newStartCmd(a),
		newCheckStopCmd(a),
		newServeCmd(a),
		newVersionCmd(),
		newCompletionCmd(),
		config.NewCmd(),
	)

	// Hide the default completion command (we provide our own)
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	return rootCmd
}

package commands

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/marmos91/dittostore/internal/cli/output"
	"github.com/marmos91/dittostore/pkg/storage"
)

func newInfoCmd(a *app) *cobra.Command {
	var follow bool

	cmd := &cobra.Command{
		Use:   "info <path>",
		Short: "Show information about a file, path or link",
		Example: `  dstore info '<REPO:ARCHIVE>/archive.info'
  dstore info /var/lib/postgresql/16/main/PG_VERSION -o json`,
		Args: cobra.ExactArgs(1),
		RunE: a.run(func(ctx context.Context, s *session, args []string) error {
			p, err := resolve(args[0])
			if err != nil {
				return err
			}
			st, err := s.storageFor(ctx, p, false)
			if err != nil {
				return err
			}

			info, err := st.Info(ctx, p, storage.InfoOptions{FollowLink: follow})
			if err != nil {
				return err
			}
			e := newEntry(info)
			e.Name = p.String()

			if s.printer.Format() == output.FormatTable {
				return output.PrintKeyValues(s.printer.Writer(), e.keyValues())
			}
			return s.printer.Print(e)
		}),
	}

	cmd.Flags().BoolVarP(&follow, "follow", "L", false, "report on the link destination")
	return cmd
}

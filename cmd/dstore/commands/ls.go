package commands

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/marmos91/dittostore/internal/cli/output"
	"github.com/marmos91/dittostore/pkg/storage"
	"github.com/marmos91/dittostore/pkg/storage/helper"
)

func newLsCmd(a *app) *cobra.Command {
	var (
		recurse bool
		filter  string
		human   bool
	)

	cmd := &cobra.Command{
		Use:   "ls [path]",
		Short: "List a path",
		Long: `List the entries under a path, sorted by name.

The path defaults to the archive of the current stanza.

Examples:
  # List the archive of stanza main
  dstore ls --stanza main

  # List WAL segments of one archive id recursively
  dstore ls '<REPO:ARCHIVE>/16-1' --recurse

  # Only backup manifests, as JSON
  dstore ls '<REPO:BACKUP>' -r --filter 'backup\.manifest$' -o json`,
		Args: cobra.MaximumNArgs(1),
		RunE: a.run(func(ctx context.Context, s *session, args []string) error {
			arg := helper.ExprRepoArchive
			if len(args) == 1 {
				arg = args[0]
			}
			p, err := resolve(arg)
			if err != nil {
				return err
			}
			st, err := s.storageFor(ctx, p, false)
			if err != nil {
				return err
			}

			infos, err := st.InfoList(ctx, p, storage.InfoListOptions{
				Recurse:    recurse,
				Sort:       storage.SortAsc,
				Expression: filter,
			})
			if err != nil {
				return err
			}

			list := make([]entry, 0, len(infos))
			for _, info := range infos {
				list = append(list, newEntry(info))
			}
			if s.printer.Format() != output.FormatTable {
				return s.printer.Print(list)
			}
			if len(list) == 0 {
				s.printer.Messagef("No entries under %s", p)
				return nil
			}
			return output.PrintTable(s.printer.Writer(), entryTable{entries: list, human: human})
		}),
	}

	cmd.Flags().BoolVarP(&recurse, "recurse", "r", false, "list nested paths")
	cmd.Flags().StringVar(&filter, "filter", "", "regular expression on the listed names")
	cmd.Flags().BoolVarP(&human, "human", "H", false, "print sizes in binary units (Ki, Mi, Gi)")
	return cmd
}

package commands

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/marmos91/dittostore/pkg/bufpool"
	"github.com/marmos91/dittostore/pkg/storage"
)

func newGetCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "get <path> [destination]",
		Short: "Copy a file out of a storage",
		Long: `Copy a file out of a storage to a local file, or to standard output
when the destination is omitted or "-".

Examples:
  dstore get '<REPO:BACKUP>/backup.info'
  dstore get '<REPO:ARCHIVE>/16-1/000000010000000000000001' /tmp/wal`,
		Args: cobra.RangeArgs(1, 2),
		RunE: a.run(func(ctx context.Context, s *session, args []string) error {
			src, err := resolve(args[0])
			if err != nil {
				return err
			}
			st, err := s.storageFor(ctx, src, false)
			if err != nil {
				return err
			}
			rd, err := st.NewRead(ctx, src, storage.ReadOptions{})
			if err != nil {
				return err
			}

			if len(args) == 1 || args[1] == "-" {
				return stream(ctx, rd, s.printer.Writer())
			}

			dst, err := resolve(args[1])
			if err != nil {
				return err
			}
			local, err := s.hc.LocalWrite(ctx)
			if err != nil {
				return err
			}
			wr, err := local.NewWrite(ctx, dst, storage.WriteOptions{})
			if err != nil {
				return err
			}
			if _, err := storage.Copy(ctx, rd, wr); err != nil {
				return err
			}
			s.printer.Messagef("Copied %s to %s", src, dst)
			return nil
		}),
	}
	return cmd
}

func newPutCmd(a *app) *cobra.Command {
	var (
		noCreatePath bool
		noSync       bool
	)

	cmd := &cobra.Command{
		Use:   "put <source> <path>",
		Short: "Copy a local file into a storage",
		Long: `Copy a local file into a storage. Missing parent paths are created.

Examples:
  dstore put ./archive.info '<REPO:ARCHIVE>/archive.info'
  dstore put /tmp/seg '<SPOOL:ARCHIVE:OUT>/000000010000000000000001.ok'`,
		Args: cobra.ExactArgs(2),
		RunE: a.run(func(ctx context.Context, s *session, args []string) error {
			src, err := resolve(args[0])
			if err != nil {
				return err
			}
			dst, err := resolve(args[1])
			if err != nil {
				return err
			}

			local, err := s.hc.Local(ctx)
			if err != nil {
				return err
			}
			rd, err := local.NewRead(ctx, src, storage.ReadOptions{})
			if err != nil {
				return err
			}

			st, err := s.storageFor(ctx, dst, true)
			if err != nil {
				return err
			}
			wr, err := st.NewWrite(ctx, dst, storage.WriteOptions{
				NoCreatePath: noCreatePath,
				NoSyncFile:   noSync,
				NoSyncPath:   noSync,
			})
			if err != nil {
				return err
			}
			if _, err := storage.Copy(ctx, rd, wr); err != nil {
				return err
			}
			s.printer.Messagef("Copied %s to %s", src, dst)
			return nil
		}),
	}

	cmd.Flags().BoolVar(&noCreatePath, "no-create-path", false, "fail when the parent path is missing")
	cmd.Flags().BoolVar(&noSync, "no-sync", false, "skip fsync of the file and its parent")
	return cmd
}

// stream copies an opened reader to w.
func stream(ctx context.Context, rd storage.Reader, w io.Writer) error {
	if _, err := rd.Open(ctx); err != nil {
		return err
	}
	defer func() { _ = rd.Close() }()

	buf := bufpool.Get(bufpool.CopySize())
	defer bufpool.Put(buf)
	if _, err := io.CopyBuffer(w, rd, buf); err != nil {
		return fmt.Errorf("read '%s': %w", rd.Path(), err)
	}
	return rd.Close()
}

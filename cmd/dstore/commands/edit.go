package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marmos91/dittostore/pkg/storage"
)

func newRmCmd(a *app) *cobra.Command {
	var (
		recurse bool
		force   bool
	)

	cmd := &cobra.Command{
		Use:   "rm <path>",
		Short: "Remove a file or a path",
		Example: `  dstore rm '<SPOOL:ARCHIVE:OUT>/000000010000000000000001.ok'
  dstore rm '<REPO:BACKUP>/20240101-120000F' --recurse`,
		Args: cobra.ExactArgs(1),
		RunE: a.run(func(ctx context.Context, s *session, args []string) error {
			p, err := resolve(args[0])
			if err != nil {
				return err
			}
			st, err := s.storageFor(ctx, p, true)
			if err != nil {
				return err
			}

			info, err := st.Info(ctx, p, storage.InfoOptions{Level: storage.InfoLevelBasic, IgnoreMissing: true})
			if err != nil {
				return err
			}
			switch {
			case !info.Exists:
				// Object stores have no paths: a prefix shows up as missing.
				if recurse && !st.Feature(storage.FeaturePath) {
					err = st.PathRemove(ctx, p, storage.PathRemoveOptions{Recurse: true})
					break
				}
				if force {
					return nil
				}
				return fmt.Errorf("%w: '%s'", storage.ErrFileMissing, p)
			case info.Type == storage.TypePath:
				err = st.PathRemove(ctx, p, storage.PathRemoveOptions{Recurse: recurse})
			default:
				err = st.Remove(ctx, p, storage.RemoveOptions{})
			}
			if err != nil {
				return err
			}
			s.printer.Messagef("Removed %s", p)
			return nil
		}),
	}

	cmd.Flags().BoolVarP(&recurse, "recurse", "r", false, "remove a path and everything under it")
	cmd.Flags().BoolVarP(&force, "force", "f", false, "ignore a missing file")
	return cmd
}

func newMkdirCmd(a *app) *cobra.Command {
	var parents bool

	cmd := &cobra.Command{
		Use:     "mkdir <path>",
		Short:   "Create a path",
		Example: `  dstore mkdir '<REPO:BACKUP>/20240101-120000F/pg_data' --parents`,
		Args:    cobra.ExactArgs(1),
		RunE: a.run(func(ctx context.Context, s *session, args []string) error {
			p, err := resolve(args[0])
			if err != nil {
				return err
			}
			st, err := s.storageFor(ctx, p, true)
			if err != nil {
				return err
			}
			if err := st.PathCreate(ctx, p, storage.PathCreateOptions{NoParentCreate: !parents}); err != nil {
				return err
			}
			s.printer.Messagef("Created %s", p)
			return nil
		}),
	}

	cmd.Flags().BoolVarP(&parents, "parents", "p", false, "create missing parents")
	return cmd
}

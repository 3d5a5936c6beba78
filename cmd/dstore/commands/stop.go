package commands

import (
	"context"

	"github.com/spf13/cobra"
)

func newStopCmd(a *app) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "stop",
		Short: "Create the stop file",
		Long: `Create the stop file of the stanza, or the global stop file when no
stanza is set. Processes that check the stop file refuse to run while it
exists.

Examples:
  dstore stop --stanza main
  dstore stop --force`,
		Args: cobra.NoArgs,
		RunE: a.run(func(ctx context.Context, s *session, _ []string) error {
			if err := s.hc.Stop(ctx, force); err != nil {
				return err
			}
			s.printer.Messagef("Stop file in place for %s", stanzaLabel(s.hc.Stanza()))
			return nil
		}),
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "rewrite an existing stop file")
	return cmd
}

func newStartCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Remove the stop file",
		Args:  cobra.NoArgs,
		RunE: a.run(func(ctx context.Context, s *session, _ []string) error {
			if err := s.hc.Start(ctx); err != nil {
				return err
			}
			s.printer.Messagef("No stop file for %s", stanzaLabel(s.hc.Stanza()))
			return nil
		}),
	}
}

func newCheckStopCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "check-stop",
		Short: "Fail when a stop file exists",
		Long: `Exit with an error when the stop file of the stanza or the global stop
file exists.`,
		Args: cobra.NoArgs,
		RunE: a.run(func(ctx context.Context, s *session, _ []string) error {
			if err := s.hc.StopTest(ctx); err != nil {
				return err
			}
			s.printer.Messagef("No stop file for %s", stanzaLabel(s.hc.Stanza()))
			return nil
		}),
	}
}

func stanzaLabel(stanza string) string {
	if stanza == "" {
		return "all stanzas"
	}
	return "stanza " + stanza
}

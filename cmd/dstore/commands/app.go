package commands

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/marmos91/dittostore/internal/cli/output"
	"github.com/marmos91/dittostore/internal/logger"
	"github.com/marmos91/dittostore/internal/telemetry"
	"github.com/marmos91/dittostore/pkg/config"
	"github.com/marmos91/dittostore/pkg/path"
	"github.com/marmos91/dittostore/pkg/storage"
	"github.com/marmos91/dittostore/pkg/storage/helper"
)

// app holds the global flags and the state shared by one command run.
type app struct {
	cfgFile string
	repo    int
	pg      int
	stanza  string
	dryRun  bool
	output  string
}

// session is a loaded configuration with its storage context.
type session struct {
	cfg     *config.Config
	hc      *helper.Context
	printer *output.Printer

	repo int
	pg   int

	shutdownTracing func(context.Context) error
}

// loadConfig loads the configuration and applies the global flags. An
// explicit --config must exist; otherwise the default file is optional.
func (a *app) loadConfig() (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if a.cfgFile != "" {
		cfg, err = config.MustLoad(a.cfgFile)
	} else {
		cfg, err = config.Load("")
	}
	if err != nil {
		return nil, err
	}

	if a.stanza != "" {
		if err := helper.ValidStanza(a.stanza); err != nil {
			return nil, err
		}
		cfg.Stanza = a.stanza
	}
	if a.dryRun {
		cfg.DryRun = true
	}
	return cfg, nil
}

// open loads the configuration, initializes logging and tracing and builds
// the storage context. The caller must close the session.
func (a *app) open(cmd *cobra.Command) (*session, error) {
	format, err := output.ParseFormat(a.output)
	if err != nil {
		return nil, err
	}

	cfg, err := a.loadConfig()
	if err != nil {
		return nil, err
	}
	if err := logger.Init(cfg.LoggerOptions()); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	cfg.ApplyBufferSize()

	shutdown, err := telemetry.Init(cmd.Context(), cfg.TracingOptions(Version))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}

	hc := helper.New(cfg.ToHelperOptions())
	hc.DryRunInit(cfg.DryRun)

	return &session{
		cfg:             cfg,
		hc:              hc,
		printer:         output.NewPrinter(cmd.OutOrStdout(), cmd.ErrOrStderr(), format),
		repo:            a.repo - 1,
		pg:              a.pg - 1,
		shutdownTracing: shutdown,
	}, nil
}

// run wraps a command body with session setup and teardown.
func (a *app) run(fn func(ctx context.Context, s *session, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		s, err := a.open(cmd)
		if err != nil {
			return err
		}
		defer s.close(cmd.Context())

		logger.DebugCtx(cmd.Context(), "running command", logger.KeyCommand, cmd.CommandPath(), logger.KeyStanza, s.cfg.Stanza)
		return fn(cmd.Context(), s, args)
	}
}

func (s *session) close(ctx context.Context) {
	if err := s.hc.Close(); err != nil {
		logger.WarnCtx(ctx, "failed to close storages", logger.KeyError, err.Error())
	}
	if err := s.shutdownTracing(ctx); err != nil {
		logger.WarnCtx(ctx, "telemetry shutdown error", logger.KeyError, err.Error())
	}
}

// resolve parses a command line path. Relative paths are made absolute
// against the working directory.
func resolve(arg string) (path.Path, error) {
	p, err := path.Parse(arg)
	if err != nil {
		return path.Path{}, fmt.Errorf("invalid path '%s': %w", arg, err)
	}
	if !p.IsRelative() {
		return p, nil
	}

	wd, err := os.Getwd()
	if err != nil {
		return path.Path{}, err
	}
	base, err := path.Parse(wd)
	if err != nil {
		return path.Path{}, err
	}
	return p.MakeAbsolute(base)
}

// storageFor picks the storage that serves p from its root: repositories
// for <REPO:*>, the spool for <SPOOL:*>, clusters for <PG:*> and the
// local filesystem for absolute paths.
func (s *session) storageFor(ctx context.Context, p path.Path, write bool) (*storage.Storage, error) {
	root := p.Root()
	switch {
	case strings.HasPrefix(root, "<REPO:"):
		if write {
			return s.hc.RepoWrite(ctx, s.repo)
		}
		return s.hc.Repo(ctx, s.repo)
	case strings.HasPrefix(root, "<SPOOL:"):
		if write {
			return s.hc.SpoolWrite(ctx)
		}
		return s.hc.Spool(ctx)
	case strings.HasPrefix(root, "<PG:"):
		if write {
			return s.hc.PgWrite(ctx, s.pg)
		}
		return s.hc.Pg(ctx, s.pg)
	case p.IsAbsolute():
		if write {
			return s.hc.LocalWrite(ctx)
		}
		return s.hc.Local(ctx)
	default:
		return nil, fmt.Errorf("%w: no storage serves '%s'", storage.ErrExpressionUnresolved, p)
	}
}

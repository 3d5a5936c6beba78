package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/marmos91/dittostore/internal/logger"
	"github.com/marmos91/dittostore/internal/telemetry"
	"github.com/marmos91/dittostore/pkg/api"
	"github.com/marmos91/dittostore/pkg/config"
	"github.com/marmos91/dittostore/pkg/metrics"
)

func newServeCmd(a *app) *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the read-only repository browser over HTTP",
		Long: `Serve the read-only repository browser over HTTP until interrupted.

Endpoints:
  GET /health                          liveness
  GET /health/repos                    repository health
  GET /metrics                         Prometheus metrics (metrics.enabled)
  GET /api/v1/repos/{idx}/list?path=   list a path
  GET /api/v1/repos/{idx}/info?path=   info on a path
  GET /api/v1/repos/{idx}/file?path=   download a file

The configuration file is watched: a new logging level applies at once.

Examples:
  dstore serve --stanza main
  DSTORE_METRICS_ENABLED=true dstore serve --port 9090`,
		Args: cobra.NoArgs,
		RunE: a.run(func(ctx context.Context, s *session, _ []string) error {
			ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
			defer stop()

			stopProfiling, err := telemetry.InitProfiling(s.cfg.ProfilingOptions(Version))
			if err != nil {
				return fmt.Errorf("failed to initialize profiling: %w", err)
			}
			defer func() {
				if err := stopProfiling(); err != nil {
					logger.Error("profiling shutdown error", logger.KeyError, err.Error())
				}
			}()

			serverCfg := api.Config{
				Port:            s.cfg.Server.Port,
				ReadTimeout:     s.cfg.Server.ReadTimeout,
				WriteTimeout:    s.cfg.Server.WriteTimeout,
				IdleTimeout:     s.cfg.Server.IdleTimeout,
				ShutdownTimeout: s.cfg.Server.ShutdownTimeout,
			}
			if port > 0 {
				serverCfg.Port = port
			}

			// A nil registry must stay a nil interface to disable /metrics.
			var gatherer prometheus.Gatherer
			if reg := metrics.GetRegistry(); reg != nil {
				gatherer = reg
			}

			logger.Info("Configuration loaded", "source", configSource(a.cfgFile))
			logger.Info("Log level", "level", s.cfg.Logging.Level, "format", s.cfg.Logging.Format)
			logger.Info("Metrics", "enabled", gatherer != nil)
			logger.Info("Telemetry", "enabled", telemetry.IsEnabled(), "profiling", s.cfg.Telemetry.Profiling.Enabled)

			if watched := watchedConfig(a.cfgFile); watched != "" {
				go func() {
					err := config.Watch(ctx, watched, func(*config.Config) {
						logger.Info("Configuration reloaded", "source", watched)
					})
					if err != nil && !errors.Is(err, context.Canceled) {
						logger.Warn("Configuration watch stopped", logger.KeyError, err.Error())
					}
				}()
			}

			return api.NewServer(serverCfg, s.hc, gatherer).Start(ctx)
		}),
	}

	cmd.Flags().IntVar(&port, "port", 0, "HTTP port (overrides server.port)")
	return cmd
}

// watchedConfig returns the configuration file to watch, or "" when only
// defaults are in use.
func watchedConfig(cfgFile string) string {
	if cfgFile != "" {
		return cfgFile
	}
	if config.DefaultConfigExists() {
		return config.GetDefaultConfigPath()
	}
	return ""
}

func configSource(cfgFile string) string {
	if watched := watchedConfig(cfgFile); watched != "" {
		return watched
	}
	return "defaults"
}

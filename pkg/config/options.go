package config

import (
	"github.com/marmos91/dittostore/internal/logger"
	"github.com/marmos91/dittostore/internal/telemetry"
	"github.com/marmos91/dittostore/pkg/bufpool"
	"github.com/marmos91/dittostore/pkg/metrics"
	_ "github.com/marmos91/dittostore/pkg/metrics/prometheus"
	"github.com/marmos91/dittostore/pkg/storage/helper"
)

// ToHelperOptions turns the configuration into the options of a storage
// helper context. Storage metrics are installed when metrics are enabled.
func (c *Config) ToHelperOptions() helper.Options {
	opts := helper.Options{
		Stanza:    c.Stanza,
		SpoolPath: c.SpoolPath,
		LockPath:  c.LockPath,
		ModeFile:  c.ModeFile,
		ModePath:  c.ModePath,
	}

	for _, r := range c.Repos {
		repo := helper.RepoOptions{Type: r.Type, Path: r.Path}
		if r.S3 != nil {
			repo.S3 = *r.S3
		}
		if r.Badger != nil {
			repo.Badger = *r.Badger
		}
		opts.Repos = append(opts.Repos, repo)
	}
	for _, p := range c.Pgs {
		opts.Pgs = append(opts.Pgs, helper.PgOptions{Path: p.Path, ConnString: p.ConnString})
	}

	if c.Metrics.Enabled {
		metrics.InitRegistry()
		opts.Metrics = metrics.NewStorageMetrics()
	}
	return opts
}

// ApplyBufferSize sets the streaming copy buffer of the process.
func (c *Config) ApplyBufferSize() {
	bufpool.SetCopySize(int(c.BufferSize.Int64()))
}

// LoggerOptions returns the logger configuration.
func (c *Config) LoggerOptions() logger.Config {
	return logger.Config{
		Level:  c.Logging.Level,
		Format: c.Logging.Format,
		Output: c.Logging.Output,
	}
}

// TracingOptions returns the OpenTelemetry configuration.
func (c *Config) TracingOptions(version string) telemetry.Config {
	cfg := telemetry.DefaultConfig()
	cfg.Enabled = c.Telemetry.Enabled
	cfg.Endpoint = c.Telemetry.Endpoint
	cfg.Insecure = c.Telemetry.Insecure
	cfg.SampleRate = c.Telemetry.SampleRate
	if version != "" {
		cfg.ServiceVersion = version
	}
	if c.Stanza != "" {
		cfg.Attributes = map[string]string{"stanza": c.Stanza}
	}
	return cfg
}

// ProfilingOptions returns the Pyroscope configuration. The stanza, when
// set, tags every profile.
func (c *Config) ProfilingOptions(version string) telemetry.ProfilingConfig {
	cfg := telemetry.ProfilingConfig{
		Enabled:        c.Telemetry.Profiling.Enabled,
		ServiceName:    telemetry.DefaultConfig().ServiceName,
		ServiceVersion: version,
		Endpoint:       c.Telemetry.Profiling.Endpoint,
		ProfileTypes:   c.Telemetry.Profiling.ProfileTypes,
	}
	if c.Stanza != "" {
		cfg.Tags = map[string]string{"stanza": c.Stanza}
	}
	return cfg
}

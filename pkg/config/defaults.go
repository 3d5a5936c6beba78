package config

import (
	"strings"
	"time"

	"github.com/marmos91/dittostore/internal/bytesize"
	"github.com/marmos91/dittostore/internal/telemetry"
)

// Default locations.
const (
	DefaultLockPath  = "/tmp/dstore"
	DefaultSpoolPath = "/var/spool/dstore"
)

// ApplyDefaults sets default values for any unspecified configuration fields.
//
// Zero values (0, "", false, nil) are replaced with defaults. Explicit
// values are preserved.
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	applyTelemetryDefaults(&cfg.Telemetry)
	applyServerDefaults(&cfg.Server)
	applyStorageDefaults(cfg)
	for i := range cfg.Repos {
		applyRepoDefaults(&cfg.Repos[i])
	}
}

// applyLoggingDefaults sets logging defaults and normalizes values.
func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	cfg.Level = strings.ToUpper(cfg.Level)

	if cfg.Format == "" {
		cfg.Format = "text"
	}
	if cfg.Output == "" {
		cfg.Output = "stderr"
	}
}

// applyTelemetryDefaults fills tracing and profiling from the telemetry
// package defaults.
func applyTelemetryDefaults(cfg *TelemetryConfig) {
	tracing := telemetry.DefaultConfig()
	if cfg.Endpoint == "" {
		cfg.Endpoint = tracing.Endpoint
	}
	if cfg.SampleRate == 0 {
		cfg.SampleRate = tracing.SampleRate
	}

	profiling := telemetry.DefaultProfilingConfig()
	if cfg.Profiling.Endpoint == "" {
		cfg.Profiling.Endpoint = profiling.Endpoint
	}
	if len(cfg.Profiling.ProfileTypes) == 0 {
		cfg.Profiling.ProfileTypes = profiling.ProfileTypes
	}
}

// applyServerDefaults sets HTTP server defaults.
func applyServerDefaults(cfg *ServerConfig) {
	if cfg.Port == 0 {
		cfg.Port = 8080
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 10 * time.Second
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = 60 * time.Second
	}
	if cfg.IdleTimeout == 0 {
		cfg.IdleTimeout = 60 * time.Second
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 30 * time.Second
	}
}

func applyStorageDefaults(cfg *Config) {
	if cfg.LockPath == "" {
		cfg.LockPath = DefaultLockPath
	}
	if cfg.SpoolPath == "" {
		cfg.SpoolPath = DefaultSpoolPath
	}
	if cfg.BufferSize == 0 {
		cfg.BufferSize = bytesize.MiB
	}
}

func applyRepoDefaults(cfg *RepoConfig) {
	if cfg.Type == "" {
		cfg.Type = "posix"
	}
}

// GetDefaultConfig returns a Config struct with all default values applied.
func GetDefaultConfig() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}

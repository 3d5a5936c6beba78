package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/marmos91/dittostore/internal/bytesize"
	"github.com/marmos91/dittostore/pkg/storage/badger"
	"github.com/marmos91/dittostore/pkg/storage/s3"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix of environment variable overrides.
const EnvPrefix = "DSTORE"

// Config represents the dittostore configuration.
//
// Configuration sources (in order of precedence):
//  1. CLI flags (highest priority)
//  2. Environment variables (DSTORE_*)
//  3. Configuration file (YAML)
//  4. Default values (lowest priority)
type Config struct {
	// Logging controls log output behavior
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`

	// Telemetry controls OpenTelemetry tracing and Pyroscope profiling
	Telemetry TelemetryConfig `mapstructure:"telemetry" yaml:"telemetry"`

	// Metrics controls Prometheus metrics collection
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`

	// Server configures the HTTP browser started by 'dstore serve'
	Server ServerConfig `mapstructure:"server" yaml:"server"`

	// Stanza is the default stanza. Empty means commands must pass --stanza
	// when they touch stanza-scoped paths.
	Stanza string `mapstructure:"stanza" validate:"omitempty,stanza" yaml:"stanza,omitempty"`

	// LockPath is the directory holding stop files
	LockPath string `mapstructure:"lock_path" validate:"required,abspath" yaml:"lock_path"`

	// SpoolPath is the directory of the asynchronous archive queue
	SpoolPath string `mapstructure:"spool_path" validate:"required,abspath" yaml:"spool_path"`

	// DryRun refuses every writable storage
	DryRun bool `mapstructure:"dry_run" yaml:"dry_run,omitempty"`

	// BufferSize is the buffer used by streaming copies
	// Supports human-readable formats: "1Mi", "256Ki"
	// Default: 1Mi
	BufferSize bytesize.ByteSize `mapstructure:"buffer_size" yaml:"buffer_size,omitempty"`

	// ModeFile and ModePath are the modes of created files and paths.
	// Octal strings such as "0640" are accepted.
	ModeFile os.FileMode `mapstructure:"mode_file" yaml:"mode_file,omitempty"`
	ModePath os.FileMode `mapstructure:"mode_path" yaml:"mode_path,omitempty"`

	// Repos lists the repositories, repo1 first
	Repos []RepoConfig `mapstructure:"repos" validate:"dive" yaml:"repos,omitempty"`

	// Pgs lists the PostgreSQL clusters, pg1 first
	Pgs []PgConfig `mapstructure:"pgs" validate:"dive" yaml:"pgs,omitempty"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Level is the minimum log level to output
	// Valid values: DEBUG, INFO, WARN, ERROR (case-insensitive, normalized to uppercase)
	Level string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error" yaml:"level"`

	// Format specifies the log output format
	// Valid values: text, json
	Format string `mapstructure:"format" validate:"required,oneof=text json" yaml:"format"`

	// Output specifies where logs are written
	// Valid values: stdout, stderr, or a file path
	Output string `mapstructure:"output" validate:"required" yaml:"output"`
}

// TelemetryConfig controls OpenTelemetry distributed tracing.
type TelemetryConfig struct {
	// Enabled controls whether distributed tracing is enabled
	// Default: false (opt-in for telemetry)
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Endpoint is the OTLP collector endpoint (host:port)
	// Default: "localhost:4317" (standard OTLP gRPC port)
	Endpoint string `mapstructure:"endpoint" validate:"required_if=Enabled true" yaml:"endpoint"`

	// Insecure controls whether to use insecure (non-TLS) connection
	Insecure bool `mapstructure:"insecure" yaml:"insecure"`

	// SampleRate controls the trace sampling rate (0.0 to 1.0)
	// Default: 1.0 (sample all)
	SampleRate float64 `mapstructure:"sample_rate" validate:"omitempty,gte=0,lte=1" yaml:"sample_rate"`

	// Profiling contains Pyroscope continuous profiling configuration
	Profiling ProfilingConfig `mapstructure:"profiling" yaml:"profiling"`
}

// ProfilingConfig controls Pyroscope continuous profiling.
type ProfilingConfig struct {
	// Enabled controls whether continuous profiling is enabled
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Endpoint is the Pyroscope server endpoint (URL)
	// Default: "http://localhost:4040"
	Endpoint string `mapstructure:"endpoint" validate:"omitempty,url" yaml:"endpoint"`

	// ProfileTypes specifies which profile types to collect
	ProfileTypes []string `mapstructure:"profile_types" validate:"dive,oneof=cpu alloc_objects alloc_space inuse_objects inuse_space goroutines mutex_count mutex_duration block_count block_duration" yaml:"profile_types"`
}

// MetricsConfig controls Prometheus metrics.
// When Enabled is false, no metrics are collected (zero overhead).
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	// Port is the HTTP port
	// Default: 8080
	Port int `mapstructure:"port" validate:"omitempty,min=1,max=65535" yaml:"port"`

	ReadTimeout  time.Duration `mapstructure:"read_timeout" yaml:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout" yaml:"idle_timeout"`

	// ShutdownTimeout is the maximum time to wait for graceful shutdown
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"gt=0" yaml:"shutdown_timeout"`
}

// RepoConfig describes one repository.
type RepoConfig struct {
	// Type selects the driver
	// Valid values: posix, cifs, s3, badger, gcs, azure, sftp, remote
	// Default: posix
	Type string `mapstructure:"type" validate:"omitempty,oneof=posix cifs s3 badger gcs azure sftp remote" yaml:"type,omitempty"`

	// Path is the repository root: a directory for posix and cifs, the key
	// prefix for s3 and badger
	Path string `mapstructure:"path" validate:"required_if=Type posix,required_if=Type cifs" yaml:"path,omitempty"`

	// S3 is required when Type is s3
	S3 *s3.Config `mapstructure:"s3" validate:"required_if=Type s3" yaml:"s3,omitempty"`

	// Badger is required when Type is badger
	Badger *badger.Config `mapstructure:"badger" validate:"required_if=Type badger" yaml:"badger,omitempty"`
}

// PgConfig describes one PostgreSQL cluster. When Path is empty the data
// directory is asked to the cluster over ConnString.
type PgConfig struct {
	Path       string `mapstructure:"path" validate:"omitempty,abspath" yaml:"path,omitempty"`
	ConnString string `mapstructure:"conn_string" validate:"required_without=Path" yaml:"conn_string,omitempty"`
}

// Load loads configuration from file, environment, and defaults.
//
// Configuration precedence (highest to lowest):
//  1. Environment variables (DSTORE_*)
//  2. Configuration file
//  3. Default values
//
// A missing config file is not an error: the defaults are used.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setupViper(v, configPath)

	configFileFound, err := readConfigFile(v)
	if err != nil {
		return nil, err
	}

	cfg := GetDefaultConfig()
	if configFileFound {
		cfg = &Config{}
		if err := v.Unmarshal(cfg, viper.DecodeHook(configDecodeHooks())); err != nil {
			return nil, fmt.Errorf("failed to unmarshal config: %w", err)
		}
	}

	if err := applyEnv(v, cfg); err != nil {
		return nil, err
	}

	ApplyDefaults(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// MustLoad loads configuration and explains how to create a config file
// when none exists.
func MustLoad(configPath string) (*Config, error) {
	if configPath == "" {
		if !DefaultConfigExists() {
			return nil, fmt.Errorf("no configuration file found at default location: %s\n\n"+
				"Please initialize a configuration file first:\n"+
				"  dstore config init\n\n"+
				"Or specify a custom config file:\n"+
				"  dstore <command> --config /path/to/config.yaml",
				GetDefaultConfigPath())
		}
		configPath = GetDefaultConfigPath()
	} else if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("configuration file not found: %s\n\n"+
			"Please create the configuration file:\n"+
			"  dstore config init --config %s",
			configPath, configPath)
	}

	cfg, err := Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, nil
}

// SaveConfig saves the configuration to path in YAML format.
func SaveConfig(cfg *Config, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	return writeConfigFile(path, data)
}

func writeConfigFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	// Repository credentials may live in the file.
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// setupViper configures viper with environment variables and config file settings.
func setupViper(v *viper.Viper, configPath string) {
	// Example: DSTORE_LOGGING_LEVEL=DEBUG
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.AddConfigPath(getConfigDir())
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
}

// readConfigFile reads the configuration file if it exists.
// Returns (fileFound, error) where fileFound indicates if a config file was found.
func readConfigFile(v *viper.Viper) (bool, error) {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return false, nil
		}
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read config file: %w", err)
	}
	return true, nil
}

// envKeys are the scalar keys that environment variables may override.
// AutomaticEnv only reaches keys viper has seen in the file, so these are
// looked up explicitly.
var envKeys = []string{
	"logging.level", "logging.format", "logging.output",
	"stanza", "lock_path", "spool_path", "dry_run", "buffer_size",
	"metrics.enabled", "server.port",
	"telemetry.enabled", "telemetry.endpoint",
}

// applyEnv overlays environment variables on cfg.
func applyEnv(v *viper.Viper, cfg *Config) error {
	overrides := make(map[string]any)
	for _, key := range envKeys {
		if v.IsSet(key) {
			setNested(overrides, key, v.Get(key))
		}
	}
	if len(overrides) == 0 {
		return nil
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       configDecodeHooks(),
		WeaklyTypedInput: true,
		Result:           cfg,
	})
	if err != nil {
		return err
	}
	if err := decoder.Decode(overrides); err != nil {
		return fmt.Errorf("failed to apply environment: %w", err)
	}
	return nil
}

func setNested(m map[string]any, key string, value any) {
	parts := strings.Split(key, ".")
	for _, part := range parts[:len(parts)-1] {
		next, ok := m[part].(map[string]any)
		if !ok {
			next = make(map[string]any)
			m[part] = next
		}
		m = next
	}
	m[parts[len(parts)-1]] = value
}

// configDecodeHooks returns a combined decode hook for all custom types.
func configDecodeHooks() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		byteSizeDecodeHook(),
		durationDecodeHook(),
		fileModeDecodeHook(),
	)
}

// byteSizeDecodeHook converts strings like "1Mi" and plain numbers to
// bytesize.ByteSize.
func byteSizeDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != reflect.TypeOf(bytesize.ByteSize(0)) {
			return data, nil
		}

		switch v := data.(type) {
		case string:
			return bytesize.ParseByteSize(v)
		case int:
			return bytesize.ByteSize(v), nil
		case int64:
			return bytesize.ByteSize(v), nil
		case uint64:
			return bytesize.ByteSize(v), nil
		case float64:
			// YAML often deserializes numbers as float64
			return bytesize.ByteSize(v), nil
		default:
			return data, nil
		}
	}
}

// durationDecodeHook converts strings like "30s" to time.Duration.
func durationDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != reflect.TypeOf(time.Duration(0)) {
			return data, nil
		}

		switch v := data.(type) {
		case string:
			return time.ParseDuration(v)
		case int:
			// Assume nanoseconds for raw integers
			return time.Duration(v), nil
		case int64:
			return time.Duration(v), nil
		case float64:
			return time.Duration(v), nil
		default:
			return data, nil
		}
	}
}

// fileModeDecodeHook converts octal strings like "0640" to os.FileMode.
// Numbers are taken as the mode value itself.
func fileModeDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != reflect.TypeOf(os.FileMode(0)) {
			return data, nil
		}

		switch v := data.(type) {
		case string:
			mode, err := strconv.ParseUint(strings.TrimPrefix(v, "0o"), 8, 32)
			if err != nil {
				return nil, fmt.Errorf("invalid file mode %q: %w", v, err)
			}
			return os.FileMode(mode) & os.ModePerm, nil
		case int:
			return os.FileMode(v) & os.ModePerm, nil
		case int64:
			return os.FileMode(v) & os.ModePerm, nil
		case uint64:
			return os.FileMode(v) & os.ModePerm, nil
		case float64:
			return os.FileMode(v) & os.ModePerm, nil
		default:
			return data, nil
		}
	}
}

// getConfigDir returns the configuration directory path.
//
// Uses XDG_CONFIG_HOME if set, otherwise ~/.config, or falls back to current
// directory (.) if home directory cannot be determined.
func getConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "dittostore")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "dittostore")
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}

// DefaultConfigExists checks if a config file exists at the default location.
func DefaultConfigExists() bool {
	_, err := os.Stat(GetDefaultConfigPath())
	return err == nil
}

// GetConfigDir returns the configuration directory path.
func GetConfigDir() string {
	return getConfigDir()
}

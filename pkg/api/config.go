package api

import "time"

// Config configures the HTTP server.
type Config struct {
	// Port is the HTTP port.
	// Default: 8080
	Port int

	// ReadTimeout is the maximum duration for reading the entire request.
	// Default: 10s
	ReadTimeout time.Duration

	// WriteTimeout is the maximum duration before timing out writes of the
	// response. Bounds file downloads too.
	// Default: 60s
	WriteTimeout time.Duration

	// IdleTimeout is the keep-alive idle time.
	// Default: 60s
	IdleTimeout time.Duration

	// ShutdownTimeout bounds the graceful shutdown.
	// Default: 5s
	ShutdownTimeout time.Duration
}

// applyDefaults fills in zero values with sensible defaults.
func (c *Config) applyDefaults() {
	if c.Port <= 0 {
		c.Port = 8080
	}
	if c.ReadTimeout == 0 {
		c.ReadTimeout = 10 * time.Second
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = 60 * time.Second
	}
	if c.IdleTimeout == 0 {
		c.IdleTimeout = 60 * time.Second
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = 5 * time.Second
	}
}

package telemetry

import (
	"fmt"
	"sort"

	"go.opentelemetry.io/otel/attribute"
)

// Config configures tracing. A disabled config installs a no-op tracer.
type Config struct {
	Enabled        bool
	ServiceName    string
	ServiceVersion string

	// Endpoint is the OTLP gRPC collector address, "localhost:4317" by
	// default.
	Endpoint string
	Insecure bool

	// SampleRate is the fraction of root spans kept: 0 drops all, 1 and
	// above keeps all. Child spans follow their parent.
	SampleRate float64

	// Attributes are added to the resource of every span, e.g. the stanza.
	Attributes map[string]string
}

// DefaultConfig returns tracing disabled with a local collector address.
func DefaultConfig() Config {
	return Config{
		ServiceName:    "dittostore",
		ServiceVersion: "dev",
		Endpoint:       "localhost:4317",
		Insecure:       true,
		SampleRate:     1.0,
	}
}

// Validate reports an enabled config that cannot export.
func (c Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.Endpoint == "" {
		return fmt.Errorf("telemetry endpoint is required when tracing is enabled")
	}
	if c.SampleRate < 0 {
		return fmt.Errorf("telemetry sample rate must not be negative, got %v", c.SampleRate)
	}
	return nil
}

// resourceAttributes returns Attributes in a stable order.
func (c Config) resourceAttributes() []attribute.KeyValue {
	keys := make([]string, 0, len(c.Attributes))
	for k := range c.Attributes {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	attrs := make([]attribute.KeyValue, 0, len(keys))
	for _, k := range keys {
		attrs = append(attrs, attribute.String(k, c.Attributes[k]))
	}
	return attrs
}

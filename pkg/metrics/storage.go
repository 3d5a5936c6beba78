package metrics

import (
	"github.com/marmos91/dittostore/pkg/storage"
)

// NewStorageMetrics returns the storage.Metrics reporting into the
// registry.
//
// Returns nil if metrics are not enabled or no implementation has been
// registered. Pass the result to storage.WithMetrics either way:
//
//	metrics.InitRegistry()
//	s, err := posix.NewStorage(base, false, storage.WithMetrics(metrics.NewStorageMetrics()))
func NewStorageMetrics() storage.Metrics {
	if !IsEnabled() || newPrometheusStorageMetrics == nil {
		return nil
	}
	return newPrometheusStorageMetrics()
}

// newPrometheusStorageMetrics is set by pkg/metrics/prometheus so that this
// package does not import the implementation.
var newPrometheusStorageMetrics func() storage.Metrics

// RegisterStorageMetricsConstructor registers the storage metrics
// constructor. Called by pkg/metrics/prometheus during initialization.
func RegisterStorageMetricsConstructor(constructor func() storage.Metrics) {
	newPrometheusStorageMetrics = constructor
}

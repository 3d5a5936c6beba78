// Package prometheus implements the metric sets of pkg/metrics with
// client_golang. Importing it registers the constructors.
package prometheus

import (
	"time"

	"github.com/marmos91/dittostore/pkg/metrics"
	"github.com/marmos91/dittostore/pkg/storage"
	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	metrics.RegisterStorageMetricsConstructor(NewStorageMetrics)
}

// storageMetrics is the Prometheus implementation of storage.Metrics.
type storageMetrics struct {
	operationsTotal   *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
	bytesTotal        *prometheus.CounterVec
}

// NewStorageMetrics creates a Prometheus-backed storage.Metrics.
//
// Returns nil if metrics are not enabled (InitRegistry not called).
func NewStorageMetrics() storage.Metrics {
	reg := metrics.GetRegistry()
	if reg == nil {
		return nil
	}
	return newStorageMetrics(reg)
}

// newStorageMetrics registers the collectors with reg. Collectors already
// registered by an earlier call are reused.
func newStorageMetrics(reg prometheus.Registerer) *storageMetrics {
	return &storageMetrics{
		operationsTotal: register(reg, prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dstore_storage_operations_total",
				Help: "Total number of storage operations by storage type, operation and status",
			},
			[]string{"type", "operation", "status"},
		)),
		operationDuration: register(reg, prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "dstore_storage_operation_duration_milliseconds",
				Help: "Duration of storage operations in milliseconds",
				Buckets: []float64{
					1,     // 1ms - local metadata
					5,     // 5ms
					10,    // 10ms - object store metadata
					50,    // 50ms
					100,   // 100ms
					500,   // 500ms
					1000,  // 1s - handle open on a slow link
					5000,  // 5s
					30000, // 30s - Exists polling
				},
			},
			[]string{"type", "operation"},
		)),
		bytesTotal: register(reg, prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dstore_storage_bytes_total",
				Help: "Total bytes moved through storage handles by direction",
			},
			[]string{"type", "direction"},
		)),
	}
}

// register registers c, or returns the collector already registered under
// the same descriptor.
func register[C prometheus.Collector](reg prometheus.Registerer, c C) C {
	if err := reg.Register(c); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing
			}
		}
		panic(err)
	}
	return c
}

func (m *storageMetrics) ObserveOperation(storageType, operation string, d time.Duration, err error) {
	if m == nil {
		return
	}

	status := "success"
	if err != nil {
		status = "error"
	}

	m.operationsTotal.WithLabelValues(storageType, operation, status).Inc()
	m.operationDuration.WithLabelValues(storageType, operation).Observe(float64(d.Microseconds()) / 1000)
}

func (m *storageMetrics) RecordBytes(storageType, direction string, n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.bytesTotal.WithLabelValues(storageType, direction).Add(float64(n))
}


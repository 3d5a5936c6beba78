package telemetry

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func recordSpans(t *testing.T) *tracetest.InMemoryExporter {
	t.Helper()
	exp := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exp))
	install(tp)
	t.Cleanup(func() {
		_ = tp.Shutdown(context.Background())
		_, _ = Init(context.Background(), DefaultConfig())
	})
	return exp
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.False(t, cfg.Enabled)
	assert.Equal(t, "dittostore", cfg.ServiceName)
	assert.Equal(t, "localhost:4317", cfg.Endpoint)
	assert.Equal(t, 1.0, cfg.SampleRate)
}

func TestConfigValidate(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())
	assert.NoError(t, Config{}.Validate(), "disabled configs are not checked")

	cfg := DefaultConfig()
	cfg.Enabled = true
	assert.NoError(t, cfg.Validate())

	cfg.Endpoint = ""
	assert.Error(t, cfg.Validate())

	_, err := Init(context.Background(), cfg)
	assert.Error(t, err)

	cfg.Endpoint = "localhost:4317"
	cfg.SampleRate = -0.5
	assert.Error(t, cfg.Validate())
}

func TestResourceAttributes(t *testing.T) {
	cfg := DefaultConfig()
	assert.Empty(t, cfg.resourceAttributes())

	cfg.Attributes = map[string]string{"stanza": "main", "host.role": "primary"}
	assert.Equal(t, []attribute.KeyValue{
		attribute.String("host.role", "primary"),
		attribute.String("stanza", "main"),
	}, cfg.resourceAttributes())
}

func TestInitDisabled(t *testing.T) {
	ctx := context.Background()

	shutdown, err := Init(ctx, DefaultConfig())
	require.NoError(t, err)
	require.NoError(t, shutdown(ctx))
	assert.False(t, IsEnabled())

	// No-op spans carry no ids.
	ctx, span := StartSpan(ctx, "noop")
	defer span.End()
	assert.Empty(t, TraceID(ctx))
	assert.Empty(t, SpanID(ctx))
}

func TestStartStorageSpan(t *testing.T) {
	exp := recordSpans(t)

	ctx, span := StartStorageSpan(context.Background(), "posix", "info", Path("/repo/archive"))
	assert.NotEmpty(t, TraceID(ctx))
	assert.NotEmpty(t, SpanID(ctx))
	SetAttributes(ctx, Bytes(42))
	span.End()

	spans := exp.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "storage.info", spans[0].Name)

	attrs := map[attribute.Key]attribute.Value{}
	for _, kv := range spans[0].Attributes {
		attrs[kv.Key] = kv.Value
	}
	assert.Equal(t, "posix", attrs[AttrStorageType].AsString())
	assert.Equal(t, "info", attrs[AttrOperation].AsString())
	assert.Equal(t, "/repo/archive", attrs[AttrPath].AsString())
	assert.Equal(t, int64(42), attrs[AttrBytes].AsInt64())
	assert.True(t, IsEnabled())
}

func TestRecordError(t *testing.T) {
	exp := recordSpans(t)

	ctx, span := StartSpan(context.Background(), "failing")
	RecordError(ctx, nil)
	RecordError(ctx, errors.New("disk full"))
	span.End()

	spans := exp.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Error, spans[0].Status.Code)
	assert.Equal(t, "disk full", spans[0].Status.Description)
	assert.Len(t, spans[0].Events, 1)
}

func TestSampler(t *testing.T) {
	assert.Equal(t, sdktrace.AlwaysSample().Description(), samplerFor(1.5).Description())
	assert.Equal(t, sdktrace.NeverSample().Description(), samplerFor(0).Description())
	assert.Contains(t, samplerFor(0.25).Description(), "TraceIDRatioBased")
}

func TestParseProfileTypes(t *testing.T) {
	types, err := ParseProfileTypes([]string{"cpu", "inuse_space"})
	require.NoError(t, err)
	assert.Len(t, types, 2)

	_, err = ParseProfileTypes([]string{"gpu"})
	assert.Error(t, err)
}

func TestInitProfilingDisabled(t *testing.T) {
	stop, err := InitProfiling(ProfilingConfig{})
	require.NoError(t, err)
	assert.NoError(t, stop())
}

func TestDefaultProfilingConfig(t *testing.T) {
	cfg := DefaultProfilingConfig()
	assert.False(t, cfg.Enabled)
	assert.Equal(t, DefaultProfileTypes, cfg.ProfileTypes)

	cfg.ProfileTypes[0] = "mutex_count"
	assert.Equal(t, "cpu", DefaultProfileTypes[0])

	types, err := ParseProfileTypes(cfg.ProfileTypes)
	require.NoError(t, err)
	assert.Len(t, types, len(DefaultProfileTypes))
}

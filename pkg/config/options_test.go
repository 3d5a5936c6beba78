package config

import (
	"testing"

	"github.com/marmos91/dittostore/internal/bytesize"
	"github.com/marmos91/dittostore/pkg/bufpool"
	"github.com/marmos91/dittostore/pkg/metrics"
	"github.com/marmos91/dittostore/pkg/storage/helper"
	"github.com/marmos91/dittostore/pkg/storage/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToHelperOptions(t *testing.T) {
	metrics.Reset()
	t.Cleanup(metrics.Reset)

	cfg := GetDefaultConfig()
	cfg.Stanza = "main"
	cfg.ModeFile = 0o600
	cfg.Repos = []RepoConfig{
		{Type: "posix", Path: "/var/lib/pgbackrest"},
		{Type: "s3", Path: "/backups", S3: &s3.Config{Bucket: "b", Region: "us-east-1"}},
	}
	cfg.Pgs = []PgConfig{{ConnString: "postgres://localhost"}}

	opts := cfg.ToHelperOptions()
	assert.Equal(t, "main", opts.Stanza)
	assert.Equal(t, DefaultLockPath, opts.LockPath)
	assert.Equal(t, DefaultSpoolPath, opts.SpoolPath)
	assert.Equal(t, cfg.ModeFile, opts.ModeFile)
	require.Len(t, opts.Repos, 2)
	assert.Equal(t, helper.RepoOptions{Type: "posix", Path: "/var/lib/pgbackrest"}, opts.Repos[0])
	assert.Equal(t, "b", opts.Repos[1].S3.Bucket)
	assert.Equal(t, []helper.PgOptions{{ConnString: "postgres://localhost"}}, opts.Pgs)
	assert.Nil(t, opts.Metrics)

	cfg.Metrics.Enabled = true
	opts = cfg.ToHelperOptions()
	assert.NotNil(t, opts.Metrics)
	assert.True(t, metrics.IsEnabled())
}

func TestApplyBufferSize(t *testing.T) {
	t.Cleanup(func() { bufpool.SetCopySize(0) })

	cfg := GetDefaultConfig()
	cfg.BufferSize = 128 * bytesize.KiB
	cfg.ApplyBufferSize()

	assert.Equal(t, 128*1024, bufpool.CopySize())
}

func TestTelemetryOptions(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Stanza = "main"
	cfg.Telemetry.Enabled = true
	cfg.Telemetry.SampleRate = 0.25

	tc := cfg.TracingOptions("1.2.3")
	assert.True(t, tc.Enabled)
	assert.Equal(t, "localhost:4317", tc.Endpoint)
	assert.Equal(t, 0.25, tc.SampleRate)
	assert.Equal(t, "1.2.3", tc.ServiceVersion)
	assert.Equal(t, map[string]string{"stanza": "main"}, tc.Attributes)

	pc := cfg.ProfilingOptions("1.2.3")
	assert.False(t, pc.Enabled)
	assert.Equal(t, map[string]string{"stanza": "main"}, pc.Tags)
	assert.Len(t, pc.ProfileTypes, 6)

	lc := cfg.LoggerOptions()
	assert.Equal(t, "INFO", lc.Level)
}

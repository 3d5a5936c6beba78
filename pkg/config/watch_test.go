package config

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/marmos91/dittostore/internal/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatch_ReloadsLogLevel(t *testing.T) {
	logger.SetLevel("INFO")
	t.Cleanup(func() { logger.SetLevel("INFO") })

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("logging:\n  level: INFO\n"), 0644))

	ctx, cancel := context.WithCancel(t.Context())
	var reloads atomic.Int32
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, path, func(*Config) { reloads.Add(1) })
	}()

	// The watcher may not be registered yet, so keep rewriting.
	assert.Eventually(t, func() bool {
		_ = os.WriteFile(path, []byte("logging:\n  level: DEBUG\n"), 0644)
		return logger.GetLevel() == logger.LevelDebug
	}, 5*time.Second, 50*time.Millisecond)
	assert.Positive(t, reloads.Load())

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Watch did not return after cancel")
	}
}

func TestWatch_IgnoresInvalidFile(t *testing.T) {
	logger.SetLevel("WARN")
	t.Cleanup(func() { logger.SetLevel("INFO") })

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("logging:\n  level: WARN\n"), 0644))

	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()

	var reloads atomic.Int32
	go func() { _ = Watch(ctx, path, func(*Config) { reloads.Add(1) }) }()

	// Invalid levels fail validation and leave the current level alone,
	// while a sibling file does not trigger a reload.
	deadline := time.Now().Add(500 * time.Millisecond)
	for time.Now().Before(deadline) {
		_ = os.WriteFile(path, []byte("logging:\n  level: LOUD\n"), 0644)
		_ = os.WriteFile(filepath.Join(dir, "other.yaml"), []byte("x: 1\n"), 0644)
		time.Sleep(50 * time.Millisecond)
	}

	assert.Equal(t, logger.LevelWarn, logger.GetLevel())
	assert.Zero(t, reloads.Load())
}

package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func capture(t *testing.T, level, format string) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	InitWithWriter(&buf, level, format, false)
	t.Cleanup(func() { InitWithWriter(&bytes.Buffer{}, "INFO", "text", false) })
	return &buf
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want Level
		ok   bool
	}{
		{"debug", LevelDebug, true},
		{"INFO", LevelInfo, true},
		{"warning", LevelWarn, true},
		{"Error", LevelError, true},
		{"verbose", LevelInfo, false},
	}
	for _, tt := range tests {
		got, ok := ParseLevel(tt.in)
		assert.Equal(t, tt.want, got, tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
	}
}

func TestLevelFiltering(t *testing.T) {
	buf := capture(t, "WARN", "text")

	Debug("hidden debug")
	Info("hidden info")
	Warn("shown warn")
	Error("shown error")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "shown warn")
	assert.Contains(t, out, "shown error")

	SetLevel("DEBUG")
	Debug("now visible")
	assert.Contains(t, buf.String(), "now visible")
	assert.Equal(t, LevelDebug, GetLevel())
}

func TestTextFormat(t *testing.T) {
	buf := capture(t, "DEBUG", "text")

	Info("list", KeyPath, "/a b", KeyCount, 3, Err(errors.New("boom")))
	line := buf.String()

	assert.Contains(t, line, "INFO  list")
	assert.Contains(t, line, `path="/a b"`)
	assert.Contains(t, line, "count=3")
	assert.Contains(t, line, "error=boom")
	assert.True(t, strings.HasSuffix(line, "\n"))
}

func TestTextFormat_GroupsAndWith(t *testing.T) {
	buf := capture(t, "DEBUG", "text")

	With(StorageType("posix")).WithGroup("s3").Info("op", "bucket", "b")
	assert.Contains(t, buf.String(), "storage_type=posix")
	assert.Contains(t, buf.String(), "s3.bucket=b")
}

func TestJSONFormat(t *testing.T) {
	buf := capture(t, "INFO", "json")

	Info("move", KeyOldPath, "/a", KeyNewPath, "/b")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "move", rec[slog.MessageKey])
	assert.Equal(t, "/a", rec[KeyOldPath])
	assert.Equal(t, "/b", rec[KeyNewPath])
}

func TestContextFields(t *testing.T) {
	buf := capture(t, "DEBUG", "json")

	lc := (&LogContext{TraceID: "t1"}).WithCommand("archive-push").WithStanza("main")
	ctx := WithContext(context.Background(), lc)

	InfoCtx(ctx, "pushed", KeyPath, "000000010000000000000001")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "t1", rec[KeyTraceID])
	assert.Equal(t, "archive-push", rec[KeyCommand])
	assert.Equal(t, "main", rec[KeyStanza])

	assert.Nil(t, FromContext(context.Background()))
	assert.Empty(t, lc.Repo)
}

func TestLogContext_CloneIsIndependent(t *testing.T) {
	lc := &LogContext{Stanza: "a"}
	other := lc.WithStanza("b")
	assert.Equal(t, "a", lc.Stanza)
	assert.Equal(t, "b", other.Stanza)

	var nilCtx *LogContext
	assert.Nil(t, nilCtx.Clone())
	assert.Equal(t, "cmd", nilCtx.WithCommand("cmd").Command)
}

func TestInit_InvalidLevel(t *testing.T) {
	assert.Error(t, Init(Config{Level: "loud"}))
}

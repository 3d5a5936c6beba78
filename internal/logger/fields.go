package logger

import (
	"log/slog"
	"time"
)

// Standard field keys. Use these consistently so logs can be queried across
// commands and storage drivers.
const (
	// Tracing
	KeyTraceID = "trace_id"
	KeySpanID  = "span_id"

	// Command scope
	KeyCommand = "command" // CLI command or API route
	KeyStanza  = "stanza"
	KeyRepo    = "repo" // Repository index

	// Storage
	KeyStorageType = "storage_type" // posix, cifs, s3, badger, vfs, memory
	KeyOperation   = "operation"    // info, list, new_read, move, ...
	KeyPath        = "path"
	KeyOldPath     = "old_path"
	KeyNewPath     = "new_path"
	KeyBasePath    = "base_path"
	KeyExpression  = "expression"
	KeyMountPoint  = "mount_point"
	KeyBucket      = "bucket"
	KeyKey         = "key"
	KeyRegion      = "region"
	KeyEndpoint    = "endpoint"

	// I/O
	KeyOffset = "offset"
	KeyLimit  = "limit"
	KeyBytes  = "bytes"
	KeyCount  = "count"

	// Outcome
	KeyDurationMs = "duration_ms"
	KeyError      = "error"
	KeyDryRun     = "dry_run"
)

// Err returns the error attribute, or an empty attribute when err is nil.
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String(KeyError, err.Error())
}

// Path returns the path attribute.
func Path(p string) slog.Attr {
	return slog.String(KeyPath, p)
}

// StorageType returns the storage type attribute.
func StorageType(t string) slog.Attr {
	return slog.String(KeyStorageType, t)
}

// Operation returns the operation attribute.
func Operation(op string) slog.Attr {
	return slog.String(KeyOperation, op)
}

// DurationMs returns the elapsed time since start as a duration attribute.
func DurationMs(start time.Time) slog.Attr {
	return slog.Float64(KeyDurationMs, Duration(start))
}

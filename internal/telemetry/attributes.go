package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Attribute keys for storage spans.
const (
	AttrStorageType = "storage.type"
	AttrOperation   = "storage.operation"
	AttrPath        = "storage.path"
	AttrTargetPath  = "storage.target_path"
	AttrRecurse     = "storage.recurse"
	AttrOffset      = "storage.offset"
	AttrLimit       = "storage.limit"
	AttrBytes       = "storage.bytes"
	AttrCount       = "storage.count"
	AttrMountPoint  = "vfs.mount_point"
	AttrBucket      = "s3.bucket"
	AttrKey         = "s3.key"
	AttrRegion      = "s3.region"
	AttrStanza      = "pgbackrest.stanza"
)

// SpanPrefix is prepended to the operation name of storage spans.
const SpanPrefix = "storage."

// StorageType returns the storage.type attribute.
func StorageType(t string) attribute.KeyValue {
	return attribute.String(AttrStorageType, t)
}

// Path returns the storage.path attribute.
func Path(p string) attribute.KeyValue {
	return attribute.String(AttrPath, p)
}

// TargetPath returns the storage.target_path attribute, used by move and link.
func TargetPath(p string) attribute.KeyValue {
	return attribute.String(AttrTargetPath, p)
}

// Recurse returns the storage.recurse attribute.
func Recurse(r bool) attribute.KeyValue {
	return attribute.Bool(AttrRecurse, r)
}

// Bytes returns the storage.bytes attribute.
func Bytes(n int64) attribute.KeyValue {
	return attribute.Int64(AttrBytes, n)
}

// Count returns the storage.count attribute.
func Count(n int) attribute.KeyValue {
	return attribute.Int(AttrCount, n)
}

// MountPoint returns the vfs.mount_point attribute.
func MountPoint(id string) attribute.KeyValue {
	return attribute.String(AttrMountPoint, id)
}

// Bucket returns the s3.bucket attribute.
func Bucket(name string) attribute.KeyValue {
	return attribute.String(AttrBucket, name)
}

// Key returns the s3.key attribute.
func Key(key string) attribute.KeyValue {
	return attribute.String(AttrKey, key)
}

// Stanza returns the pgbackrest.stanza attribute.
func Stanza(name string) attribute.KeyValue {
	return attribute.String(AttrStanza, name)
}

// StartStorageSpan opens the span for one storage operation, named
// "storage.<operation>".
func StartStorageSpan(ctx context.Context, storageType, operation string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	all := make([]attribute.KeyValue, 0, len(attrs)+2)
	all = append(all,
		attribute.String(AttrStorageType, storageType),
		attribute.String(AttrOperation, operation),
	)
	all = append(all, attrs...)
	return StartSpan(ctx, SpanPrefix+operation, trace.WithAttributes(all...), trace.WithSpanKind(trace.SpanKindInternal))
}

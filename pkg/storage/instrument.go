package storage

import (
	"context"
	"time"

	"github.com/marmos91/dittostore/internal/logger"
	"github.com/marmos91/dittostore/internal/telemetry"
	"github.com/marmos91/dittostore/pkg/path"
	"go.opentelemetry.io/otel/attribute"
)

// Operation names used for spans, metrics and logs.
const (
	OpInfo       = "info"
	OpList       = "list"
	OpNewRead    = "new_read"
	OpNewWrite   = "new_write"
	OpPathCreate = "path_create"
	OpPathRemove = "path_remove"
	OpPathSync   = "path_sync"
	OpRemove     = "remove"
	OpLinkCreate = "link_create"
	OpMove       = "move"
	OpExists     = "exists"
)

// begin opens the span of one operation and returns the function that
// closes it, records the metric and logs the outcome.
func (s *Storage) begin(ctx context.Context, op string, p path.Path, attrs ...attribute.KeyValue) (context.Context, func(error)) {
	start := time.Now()
	attrs = append(attrs, telemetry.Path(p.String()))
	ctx, span := telemetry.StartStorageSpan(ctx, s.typ, op, attrs...)

	return ctx, func(err error) {
		telemetry.RecordError(ctx, err)
		span.End()

		if s.metrics != nil {
			s.metrics.ObserveOperation(s.typ, op, time.Since(start), err)
		}
		if err != nil {
			logger.DebugCtx(ctx, "storage operation failed",
				logger.KeyStorageType, s.typ,
				logger.KeyOperation, op,
				logger.KeyPath, p.String(),
				logger.KeyDurationMs, logger.Duration(start),
				logger.KeyError, err.Error())
			return
		}
		logger.DebugCtx(ctx, "storage operation",
			logger.KeyStorageType, s.typ,
			logger.KeyOperation, op,
			logger.KeyPath, p.String(),
			logger.KeyDurationMs, logger.Duration(start))
	}
}

func (s *Storage) recordBytes(storageType, direction string, n int64) {
	if s.metrics != nil && n > 0 {
		s.metrics.RecordBytes(storageType, direction, n)
	}
}

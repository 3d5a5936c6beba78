package logger

import "context"

type contextKey struct{}

var logContextKey = contextKey{}

// LogContext carries command-scoped fields that ctx-aware log calls prepend
// to every record.
type LogContext struct {
	TraceID string
	SpanID  string
	Command string
	Stanza  string
	Repo    string
}

// WithContext returns a context carrying lc.
func WithContext(ctx context.Context, lc *LogContext) context.Context {
	return context.WithValue(ctx, logContextKey, lc)
}

// FromContext returns the LogContext in ctx, or nil.
func FromContext(ctx context.Context) *LogContext {
	if ctx == nil {
		return nil
	}
	lc, _ := ctx.Value(logContextKey).(*LogContext)
	return lc
}

// Clone returns a copy of lc.
func (lc *LogContext) Clone() *LogContext {
	if lc == nil {
		return nil
	}
	clone := *lc
	return &clone
}

// WithCommand returns a copy of lc with the command set.
func (lc *LogContext) WithCommand(command string) *LogContext {
	clone := lc.Clone()
	if clone == nil {
		clone = &LogContext{}
	}
	clone.Command = command
	return clone
}

// WithStanza returns a copy of lc with the stanza set.
func (lc *LogContext) WithStanza(stanza string) *LogContext {
	clone := lc.Clone()
	if clone == nil {
		clone = &LogContext{}
	}
	clone.Stanza = stanza
	return clone
}

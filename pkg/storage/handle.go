package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/marmos91/dittostore/pkg/path"
)

// OpenFunc opens the content behind a read handle. It returns false, with
// no error, when the file does not exist. Offset and limit are applied by
// the function.
type OpenFunc func(ctx context.Context) (io.ReadCloser, bool, error)

// StreamReader is a Reader over a lazily opened stream. Drivers that fetch
// whole objects or ranges (s3, badger, memory) build their handles on it.
type StreamReader struct {
	typ           string
	p             path.Path
	ignoreMissing bool
	open          OpenFunc
	rc            io.ReadCloser
}

// NewStreamReader returns a reader for p of storage type typ.
func NewStreamReader(typ string, p path.Path, ignoreMissing bool, open OpenFunc) *StreamReader {
	return &StreamReader{typ: typ, p: p, ignoreMissing: ignoreMissing, open: open}
}

func (r *StreamReader) Open(ctx context.Context) (bool, error) {
	rc, exists, err := r.open(ctx)
	if err != nil {
		return false, err
	}
	if !exists {
		if r.ignoreMissing {
			return false, nil
		}
		return false, fmt.Errorf("%w: unable to open missing file '%s' for read", ErrFileMissing, r.p)
	}
	r.rc = rc
	return true, nil
}

func (r *StreamReader) Read(p []byte) (int, error) {
	if r.rc == nil {
		return 0, fmt.Errorf("%w: '%s' is not open", ErrFileRead, r.p)
	}
	return r.rc.Read(p)
}

func (r *StreamReader) Close() error {
	if r.rc == nil {
		return nil
	}
	err := r.rc.Close()
	r.rc = nil
	return err
}

func (r *StreamReader) Path() path.Path     { return r.p }
func (r *StreamReader) IgnoreMissing() bool { return r.ignoreMissing }
func (r *StreamReader) Type() string        { return r.typ }

// Window returns the part of data selected by offset and limit.
func Window(data []byte, offset uint64, limit *uint64) []byte {
	if offset >= uint64(len(data)) {
		return nil
	}
	data = data[offset:]
	if limit != nil && *limit < uint64(len(data)) {
		data = data[:*limit]
	}
	return data
}

// BytesOpener adapts an in-memory lookup to an OpenFunc.
func BytesOpener(opts ReadOptions, get func(ctx context.Context) ([]byte, bool, error)) OpenFunc {
	return func(ctx context.Context) (io.ReadCloser, bool, error) {
		data, exists, err := get(ctx)
		if err != nil || !exists {
			return nil, exists, err
		}
		return io.NopCloser(bytes.NewReader(Window(data, opts.Offset, opts.Limit))), true, nil
	}
}

// CommitFunc persists the whole content of a buffered write.
type CommitFunc func(ctx context.Context, data []byte) error

// BufferedWriter collects content in memory and commits it on Close. Object
// stores write whole objects, so their writes are always atomic.
type BufferedWriter struct {
	typ      string
	p        path.Path
	syncPath bool
	prepare  func(ctx context.Context) ([]byte, error)
	commit   CommitFunc

	ctx  context.Context
	buf  bytes.Buffer
	open bool
	done bool
}

// NewBufferedWriter returns a writer for p. prepare may be nil; when set it
// runs on Open and returns the content to append to.
func NewBufferedWriter(typ string, p path.Path, syncPath bool, prepare func(ctx context.Context) ([]byte, error), commit CommitFunc) *BufferedWriter {
	return &BufferedWriter{typ: typ, p: p, syncPath: syncPath, prepare: prepare, commit: commit}
}

func (w *BufferedWriter) Open(ctx context.Context) error {
	if w.prepare != nil {
		initial, err := w.prepare(ctx)
		if err != nil {
			return err
		}
		w.buf.Write(initial)
	}
	w.ctx = ctx
	w.open = true
	return nil
}

func (w *BufferedWriter) Write(p []byte) (int, error) {
	if !w.open || w.done {
		return 0, fmt.Errorf("%w: '%s' is not open", ErrFileWrite, w.p)
	}
	return w.buf.Write(p)
}

func (w *BufferedWriter) Close() error {
	if !w.open || w.done {
		return nil
	}
	w.done = true
	if err := w.commit(w.ctx, w.buf.Bytes()); err != nil {
		return fmt.Errorf("%w: '%s': %w", ErrFileWrite, w.p, err)
	}
	return nil
}

func (w *BufferedWriter) Abort() error {
	w.done = true
	w.buf.Reset()
	return nil
}

func (w *BufferedWriter) Path() path.Path { return w.p }
func (w *BufferedWriter) SyncPath() bool  { return w.syncPath }
func (w *BufferedWriter) Type() string    { return w.typ }

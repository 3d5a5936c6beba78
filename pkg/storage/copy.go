package storage

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/marmos91/dittostore/pkg/bufpool"
)

// Copy streams src into dst. dst is opened only when src exists; the result
// is false when src was missing and ignored. On failure dst is aborted.
func Copy(ctx context.Context, src Reader, dst Writer) (bool, error) {
	_, copied, err := copyHandles(ctx, src, dst)
	return copied, err
}

func copyHandles(ctx context.Context, src Reader, dst Writer) (int64, bool, error) {
	exists, err := src.Open(ctx)
	if err != nil {
		return 0, false, err
	}
	if !exists {
		return 0, false, nil
	}
	defer src.Close()

	if err := dst.Open(ctx); err != nil {
		return 0, false, err
	}

	buf := bufpool.Get(bufpool.CopySize())
	n, err := io.CopyBuffer(writerOnly{dst}, readerOnly{src}, buf)
	bufpool.Put(buf)
	if err != nil {
		_ = dst.Abort()
		return n, false, fmt.Errorf("copy '%s' to '%s': %w", src.Path(), dst.Path(), err)
	}

	if err := src.Close(); err != nil {
		_ = dst.Abort()
		return n, false, err
	}
	if err := dst.Close(); err != nil {
		return n, false, err
	}
	return n, true, nil
}

// readerOnly and writerOnly hide ReadFrom/WriteTo so io.CopyBuffer always
// goes through the pooled buffer.
type readerOnly struct{ io.Reader }
type writerOnly struct{ io.Writer }

// GetOptions configures Get.
type GetOptions struct {
	// ExactSize, when non-zero, reads exactly that many bytes and fails
	// with ErrFileRead on a shorter file.
	ExactSize int
}

// Get reads the content of r. It returns nil, nil when the file is missing
// and r ignores missing files.
func Get(ctx context.Context, r Reader, opts GetOptions) ([]byte, error) {
	exists, err := r.Open(ctx)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, nil
	}
	defer r.Close()

	if opts.ExactSize > 0 {
		data := make([]byte, opts.ExactSize)
		if _, err := io.ReadFull(r, data); err != nil {
			if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
				return nil, fmt.Errorf("%w: unable to read %d byte(s) from '%s'", ErrFileRead, opts.ExactSize, r.Path())
			}
			return nil, err
		}
		return data, r.Close()
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	if data == nil {
		data = []byte{}
	}
	return data, r.Close()
}

// Put writes data to w and commits it.
func Put(ctx context.Context, w Writer, data []byte) error {
	if err := w.Open(ctx); err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		_ = w.Abort()
		return err
	}
	return w.Close()
}

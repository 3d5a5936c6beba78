package posix

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/user"
	"strconv"
	"time"

	"github.com/marmos91/dittostore/pkg/path"
	"github.com/marmos91/dittostore/pkg/storage"
	"golang.org/x/sys/unix"
)

func (d *Driver) NewRead(_ context.Context, p path.Path, opts storage.ReadOptions) (storage.Reader, error) {
	return &reader{owner: d, p: p, opts: opts}, nil
}

type reader struct {
	owner *Driver
	p     path.Path
	opts  storage.ReadOptions

	f *os.File
	r io.Reader
}

func (r *reader) Open(_ context.Context) (bool, error) {
	f, err := os.Open(r.p.String())
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			if r.opts.IgnoreMissing {
				return false, nil
			}
			return false, fmt.Errorf("%w: unable to open missing file '%s' for read", storage.ErrFileMissing, r.p)
		}
		return false, fmt.Errorf("unable to open file '%s' for read: %w", r.p, err)
	}

	if r.opts.Offset > 0 {
		if _, err := f.Seek(int64(r.opts.Offset), io.SeekStart); err != nil {
			f.Close()
			return false, fmt.Errorf("unable to seek to %d in file '%s': %w", r.opts.Offset, r.p, err)
		}
	}

	r.f = f
	r.r = f
	if r.opts.Limit != nil {
		r.r = io.LimitReader(f, int64(*r.opts.Limit))
	}
	return true, nil
}

func (r *reader) Read(b []byte) (int, error) {
	if r.r == nil {
		return 0, fmt.Errorf("%w: '%s' is not open", storage.ErrFileRead, r.p)
	}
	n, err := r.r.Read(b)
	if err != nil && !errors.Is(err, io.EOF) {
		return n, fmt.Errorf("%w: '%s': %w", storage.ErrFileRead, r.p, err)
	}
	return n, err
}

func (r *reader) Close() error {
	if r.f == nil {
		return nil
	}
	err := r.f.Close()
	r.f, r.r = nil, nil
	return err
}

func (r *reader) Path() path.Path     { return r.p }
func (r *reader) IgnoreMissing() bool { return r.opts.IgnoreMissing }
func (r *reader) Type() string        { return r.owner.typ }

func (d *Driver) NewWrite(_ context.Context, p path.Path, params storage.WriteParams) (storage.Writer, error) {
	w := &writer{owner: d, p: p, params: params, name: p.String()}
	if params.Atomic {
		w.name = p.String() + TempSuffix
	}
	return w, nil
}

// writer writes to a temporary file next to the destination when atomic and
// renames it on close.
type writer struct {
	owner  *Driver
	p      path.Path
	params storage.WriteParams
	name   string // file actually written

	f    *os.File
	done bool
}

func (w *writer) flags() int {
	flags := os.O_CREATE | os.O_WRONLY | unix.O_CLOEXEC
	if w.params.Truncate {
		return flags | os.O_TRUNC
	}
	return flags | os.O_APPEND
}

func (w *writer) Open(_ context.Context) error {
	f, err := os.OpenFile(w.name, w.flags(), w.params.ModeFile)
	if errors.Is(err, fs.ErrNotExist) && w.params.CreatePath {
		parent, perr := w.p.Parent()
		if perr != nil {
			return perr
		}
		if err := os.MkdirAll(parent.String(), w.params.ModePath); err != nil {
			return fmt.Errorf("unable to create path '%s': %w", parent, err)
		}
		f, err = os.OpenFile(w.name, w.flags(), w.params.ModeFile)
	}
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: unable to open '%s' for write: missing path", storage.ErrPathMissing, w.p)
		}
		return fmt.Errorf("unable to open '%s' for write: %w", w.name, err)
	}

	if err := w.chown(f); err != nil {
		f.Close()
		_ = os.Remove(w.name)
		return err
	}
	w.f = f
	return nil
}

func (w *writer) chown(f *os.File) error {
	if w.params.User == "" && w.params.Group == "" {
		return nil
	}
	uid, gid := -1, -1
	if w.params.User != "" {
		u, err := user.Lookup(w.params.User)
		if err != nil {
			return fmt.Errorf("unable to find user '%s': %w", w.params.User, err)
		}
		uid, _ = strconv.Atoi(u.Uid)
	}
	if w.params.Group != "" {
		g, err := user.LookupGroup(w.params.Group)
		if err != nil {
			return fmt.Errorf("unable to find group '%s': %w", w.params.Group, err)
		}
		gid, _ = strconv.Atoi(g.Gid)
	}
	if err := f.Chown(uid, gid); err != nil {
		return fmt.Errorf("unable to set ownership for '%s': %w", w.name, err)
	}
	return nil
}

func (w *writer) Write(b []byte) (int, error) {
	if w.f == nil || w.done {
		return 0, fmt.Errorf("%w: '%s' is not open", storage.ErrFileWrite, w.p)
	}
	n, err := w.f.Write(b)
	if err != nil {
		return n, fmt.Errorf("%w: '%s': %w", storage.ErrFileWrite, w.name, err)
	}
	return n, nil
}

// Close syncs the file, sets its time, renames it into place and syncs the
// directory, each as configured.
func (w *writer) Close() error {
	if w.f == nil || w.done {
		return nil
	}
	w.done = true
	f := w.f
	w.f = nil

	if w.params.SyncFile {
		if err := f.Sync(); err != nil {
			f.Close()
			return fmt.Errorf("%w: unable to sync file '%s': %w", storage.ErrFileWrite, w.name, err)
		}
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("%w: unable to close file '%s': %w", storage.ErrFileWrite, w.name, err)
	}

	if !w.params.TimeModified.IsZero() {
		if err := os.Chtimes(w.name, time.Now(), w.params.TimeModified); err != nil {
			return fmt.Errorf("%w: unable to set time for '%s': %w", storage.ErrFileWrite, w.name, err)
		}
	}

	if w.params.Atomic {
		if err := os.Rename(w.name, w.p.String()); err != nil {
			return fmt.Errorf("%w: unable to move '%s' to '%s': %w", storage.ErrFileWrite, w.name, w.p, err)
		}
	}

	if w.SyncPath() {
		parent, err := w.p.Parent()
		if err != nil {
			return err
		}
		return syncDir(parent.String())
	}
	return nil
}

// Abort closes the file and removes it when it was a temporary file.
func (w *writer) Abort() error {
	if w.done {
		return nil
	}
	w.done = true
	if w.f == nil {
		return nil
	}
	f := w.f
	w.f = nil
	f.Close()
	if w.params.Atomic {
		if err := os.Remove(w.name); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("unable to remove temp file '%s': %w", w.name, err)
		}
	}
	return nil
}

func (w *writer) Path() path.Path { return w.p }
func (w *writer) SyncPath() bool {
	return w.params.SyncPath && w.owner.features.Has(storage.FeaturePathSync)
}
func (w *writer) Type() string { return w.owner.typ }

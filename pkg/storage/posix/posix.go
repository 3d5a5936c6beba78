// Package posix is the storage driver for local and mounted filesystems.
package posix

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/user"
	"sort"
	"strconv"
	"syscall"

	"github.com/marmos91/dittostore/pkg/path"
	"github.com/marmos91/dittostore/pkg/storage"
	"golang.org/x/sys/unix"
)

// Type is the storage type of the driver.
const Type = "posix"

// DefaultFeatures is the feature set of a local filesystem.
const DefaultFeatures = storage.FeaturePath | storage.FeaturePathSync | storage.FeatureHardLink |
	storage.FeatureSymLink | storage.FeatureInfoDetail

// TempSuffix is appended to the name of a file while it is written
// atomically.
const TempSuffix = ".pgbackrest.tmp"

// Driver implements storage.Driver on the os package.
type Driver struct {
	typ      string
	features storage.Feature
}

// Option configures a Driver.
type Option func(*Driver)

// WithType changes the storage type reported by handles. Drivers built on
// posix, such as cifs, use it.
func WithType(typ string) Option {
	return func(d *Driver) { d.typ = typ }
}

// WithFeatures restricts the feature set. Disabling FeaturePathSync turns
// directory syncs into no-ops.
func WithFeatures(f storage.Feature) Option {
	return func(d *Driver) { d.features = f }
}

// New returns a posix driver.
func New(opts ...Option) *Driver {
	d := &Driver{typ: Type, features: DefaultFeatures}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// NewStorage returns a posix storage rooted at base.
func NewStorage(base path.Path, write bool, opts ...storage.Option) (*storage.Storage, error) {
	return newStorage(New(), base, write, opts...)
}

// NewStorageWithDriver wraps d in a storage rooted at base.
func NewStorageWithDriver(d *Driver, base path.Path, write bool, opts ...storage.Option) (*storage.Storage, error) {
	return newStorage(d, base, write, opts...)
}

func newStorage(d *Driver, base path.Path, write bool, opts ...storage.Option) (*storage.Storage, error) {
	opts = append([]storage.Option{storage.WithWrite(write)}, opts...)
	return storage.New(d.typ, base, d, opts...)
}

var _ storage.Driver = (*Driver)(nil)
var _ storage.PathCreator = (*Driver)(nil)
var _ storage.PathSyncer = (*Driver)(nil)
var _ storage.LinkCreator = (*Driver)(nil)
var _ storage.Mover = (*Driver)(nil)

func (d *Driver) Features() storage.Feature { return d.features }

func (d *Driver) Info(_ context.Context, p path.Path, level storage.InfoLevel, followLink bool) (storage.Info, error) {
	stat := os.Lstat
	if followLink {
		stat = os.Stat
	}
	fi, err := stat(p.String())
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) || errors.Is(err, syscall.ENOTDIR) {
			return storage.Info{Level: level}, nil
		}
		return storage.Info{}, fmt.Errorf("unable to get info for '%s': %w", p, err)
	}
	return d.info(p.String(), fi, level), nil
}

func (d *Driver) info(name string, fi fs.FileInfo, level storage.InfoLevel) storage.Info {
	info := storage.Info{Name: fi.Name(), Exists: true, Level: level}
	if level < storage.InfoLevelBasic {
		return info
	}

	mode := fi.Mode()
	switch {
	case mode.IsRegular():
		info.Type = storage.TypeFile
		info.Size = uint64(fi.Size())
	case mode.IsDir():
		info.Type = storage.TypePath
	case mode&fs.ModeSymlink != 0:
		info.Type = storage.TypeLink
	default:
		info.Type = storage.TypeSpecial
	}
	info.TimeModified = fi.ModTime()

	if level < storage.InfoLevelDetail || !d.features.Has(storage.FeatureInfoDetail) {
		return info
	}
	info.Mode = mode.Perm()
	if st, ok := fi.Sys().(*syscall.Stat_t); ok {
		info.UserID = st.Uid
		info.GroupID = st.Gid
		info.User = userName(st.Uid)
		info.Group = groupName(st.Gid)
	}
	if info.Type == storage.TypeLink {
		if target, err := os.Readlink(name); err == nil {
			info.LinkDestination = target
		}
	}
	return info
}

func userName(uid uint32) string {
	u, err := user.LookupId(strconv.FormatUint(uint64(uid), 10))
	if err != nil {
		return ""
	}
	return u.Username
}

func groupName(gid uint32) string {
	g, err := user.LookupGroupId(strconv.FormatUint(uint64(gid), 10))
	if err != nil {
		return ""
	}
	return g.Name
}

func (d *Driver) List(_ context.Context, p path.Path, level storage.InfoLevel) ([]storage.Info, bool, error) {
	entries, err := os.ReadDir(p.String())
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, false, nil
		}
		if errors.Is(err, syscall.ENOTDIR) {
			return nil, false, fmt.Errorf("%w: unable to list '%s': not a directory", storage.ErrPathMissing, p)
		}
		return nil, false, fmt.Errorf("unable to list '%s': %w", p, err)
	}

	out := make([]storage.Info, 0, len(entries))
	for _, entry := range entries {
		if level < storage.InfoLevelBasic {
			out = append(out, storage.Info{Name: entry.Name(), Exists: true, Level: level})
			continue
		}
		fi, err := entry.Info()
		if err != nil {
			// Removed between ReadDir and Lstat.
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, false, fmt.Errorf("unable to get info for '%s/%s': %w", p, entry.Name(), err)
		}
		child, err := p.Append(entry.Name())
		if err != nil {
			return nil, false, err
		}
		out = append(out, d.info(child.String(), fi, level))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, true, nil
}

func (d *Driver) PathCreate(_ context.Context, p path.Path, errorOnExists, noParentCreate bool, mode os.FileMode) error {
	err := os.Mkdir(p.String(), mode)
	if errors.Is(err, fs.ErrNotExist) && !noParentCreate {
		err = os.MkdirAll(p.String(), mode)
	}
	switch {
	case err == nil:
		return nil
	case errors.Is(err, fs.ErrExist):
		if fi, serr := os.Stat(p.String()); serr == nil && !fi.IsDir() {
			return fmt.Errorf("%w: unable to create path '%s': a file exists", storage.ErrPathExists, p)
		}
		if errorOnExists {
			return fmt.Errorf("%w: unable to create path '%s'", storage.ErrPathExists, p)
		}
		return nil
	case errors.Is(err, fs.ErrNotExist):
		return fmt.Errorf("%w: unable to create path '%s': parent does not exist", storage.ErrPathMissing, p)
	default:
		return fmt.Errorf("unable to create path '%s': %w", p, err)
	}
}

// PathSync fsyncs a directory so entries created or renamed in it are
// durable.
func (d *Driver) PathSync(_ context.Context, p path.Path) error {
	if !d.features.Has(storage.FeaturePathSync) {
		return nil
	}
	return syncDir(p.String())
}

func syncDir(name string) error {
	fd, err := unix.Open(name, unix.O_RDONLY|unix.O_DIRECTORY|unix.O_CLOEXEC, 0)
	if err != nil {
		if errors.Is(err, unix.ENOENT) {
			return fmt.Errorf("%w: unable to sync missing path '%s'", storage.ErrPathMissing, name)
		}
		return fmt.Errorf("unable to open '%s' for sync: %w", name, err)
	}
	defer unix.Close(fd)

	if err := unix.Fsync(fd); err != nil {
		return fmt.Errorf("unable to sync path '%s': %w", name, err)
	}
	return nil
}

func (d *Driver) PathRemove(_ context.Context, p path.Path, recurse bool) (bool, error) {
	name := p.String()
	fi, err := os.Lstat(name)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("unable to remove path '%s': %w", p, err)
	}
	if !fi.IsDir() {
		return false, fmt.Errorf("%w: unable to remove '%s': not a directory", storage.ErrPathMissing, p)
	}

	if recurse {
		if err := os.RemoveAll(name); err != nil {
			return false, fmt.Errorf("unable to remove path '%s': %w", p, err)
		}
		return true, nil
	}

	if err := os.Remove(name); err != nil {
		if errors.Is(err, unix.ENOTEMPTY) || errors.Is(err, unix.EEXIST) {
			return false, fmt.Errorf("%w: unable to remove path '%s'", storage.ErrPathNotEmpty, p)
		}
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("unable to remove path '%s': %w", p, err)
	}
	return true, nil
}

func (d *Driver) Remove(_ context.Context, p path.Path, errorOnMissing bool) error {
	if err := unix.Unlink(p.String()); err != nil {
		if errors.Is(err, unix.ENOENT) {
			if errorOnMissing {
				return fmt.Errorf("%w: unable to remove missing file '%s'", storage.ErrFileMissing, p)
			}
			return nil
		}
		return fmt.Errorf("unable to remove file '%s': %w", p, err)
	}
	return nil
}

func (d *Driver) LinkCreate(_ context.Context, target, link path.Path, linkType storage.LinkType) error {
	var err error
	if linkType == storage.LinkHard {
		err = os.Link(target.String(), link.String())
	} else {
		err = os.Symlink(target.String(), link.String())
	}
	switch {
	case err == nil:
		return nil
	case errors.Is(err, fs.ErrExist):
		return fmt.Errorf("%w: unable to create link '%s': entry exists", storage.ErrPathExists, link)
	case errors.Is(err, fs.ErrNotExist):
		if linkType == storage.LinkHard {
			return fmt.Errorf("%w: unable to hard link '%s' to '%s'", storage.ErrFileMissing, link, target)
		}
		return fmt.Errorf("%w: unable to create link '%s': parent does not exist", storage.ErrPathMissing, link)
	default:
		return fmt.Errorf("unable to create link '%s' to '%s': %w", link, target, err)
	}
}

// Move renames src to dst. Handles from another driver, and renames across
// devices, are declined so the storage copies instead.
func (d *Driver) Move(_ context.Context, src storage.Reader, dst storage.Writer) (bool, error) {
	r, ok := src.(*reader)
	if !ok || r.owner != d {
		return false, nil
	}
	w, ok := dst.(*writer)
	if !ok || w.owner != d {
		return false, nil
	}

	from, to := src.Path().String(), dst.Path().String()
	err := os.Rename(from, to)
	if errors.Is(err, fs.ErrNotExist) && w.params.CreatePath {
		if _, serr := os.Lstat(from); serr == nil {
			parent, _ := dst.Path().Parent()
			if merr := os.MkdirAll(parent.String(), w.params.ModePath); merr != nil {
				return false, fmt.Errorf("unable to create path '%s': %w", parent, merr)
			}
			err = os.Rename(from, to)
		}
	}
	if err != nil {
		switch {
		case errors.Is(err, unix.EXDEV):
			return false, nil
		case errors.Is(err, fs.ErrNotExist):
			if _, serr := os.Lstat(from); serr != nil {
				return false, fmt.Errorf("%w: unable to move missing file '%s'", storage.ErrFileMissing, src.Path())
			}
			return false, fmt.Errorf("%w: unable to move '%s' to '%s': missing destination path", storage.ErrPathMissing, src.Path(), dst.Path())
		default:
			return false, fmt.Errorf("unable to move '%s' to '%s': %w", src.Path(), dst.Path(), err)
		}
	}

	if dst.SyncPath() {
		srcParent, _ := src.Path().Parent()
		dstParent, _ := dst.Path().Parent()
		if err := syncDir(dstParent.String()); err != nil {
			return true, err
		}
		if !srcParent.Equal(dstParent) {
			if err := syncDir(srcParent.String()); err != nil {
				return true, err
			}
		}
	}
	return true, nil
}

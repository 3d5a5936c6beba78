// Package badger is a storage driver on an embedded BadgerDB keyspace.
//
// Files are stored under "f<path>" with their modification time under
// "t<path>". Like an object store it has no directories: a path exists
// while a file key has it as a prefix.
package badger

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	badgerdb "github.com/dgraph-io/badger/v4"

	"github.com/marmos91/dittostore/internal/logger"
	"github.com/marmos91/dittostore/pkg/path"
	"github.com/marmos91/dittostore/pkg/storage"
)

// Type is the storage type of the driver.
const Type = "badger"

// Key prefixes.
const (
	prefixFile = "f"
	prefixTime = "t"
)

// Config holds configuration for the badger driver.
type Config struct {
	// Dir is the database directory. Ignored when InMemory is set.
	Dir string `mapstructure:"dir" yaml:"dir,omitempty" validate:"required_unless=InMemory true"`

	// InMemory keeps the whole database in memory.
	InMemory bool `mapstructure:"in_memory" yaml:"in_memory,omitempty"`

	// SyncWrites fsyncs every commit.
	SyncWrites bool `mapstructure:"sync_writes" yaml:"sync_writes,omitempty"`
}

// Driver implements storage.Driver on a badger database.
type Driver struct {
	db        *badgerdb.DB
	closeOnce sync.Once
	closeErr  error
}

// Open opens or creates the database described by cfg.
func Open(cfg Config) (*Driver, error) {
	var opts badgerdb.Options
	switch {
	case cfg.InMemory:
		opts = badgerdb.DefaultOptions("").WithInMemory(true)
	case cfg.Dir != "":
		opts = badgerdb.DefaultOptions(cfg.Dir)
	default:
		return nil, fmt.Errorf("%w: badger dir is required", storage.ErrInvalidStorage)
	}
	opts = opts.WithSyncWrites(cfg.SyncWrites).WithLogger(nil)

	db, err := badgerdb.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger database: %w", err)
	}
	logger.Debug("badger driver opened", logger.KeyPath, cfg.Dir, "in_memory", cfg.InMemory)
	return &Driver{db: db}, nil
}

// NewStorage wraps d in a storage rooted at base.
func NewStorage(d *Driver, base path.Path, write bool, opts ...storage.Option) (*storage.Storage, error) {
	opts = append([]storage.Option{storage.WithWrite(write)}, opts...)
	return storage.New(Type, base, d, opts...)
}

var _ storage.Driver = (*Driver)(nil)
var _ storage.Mover = (*Driver)(nil)

func (d *Driver) Features() storage.Feature { return 0 }

// Close closes the database. Later calls return the first result.
func (d *Driver) Close() error {
	d.closeOnce.Do(func() { d.closeErr = d.db.Close() })
	return d.closeErr
}

func fileKey(p path.Path) []byte { return []byte(prefixFile + p.String()) }
func timeKey(p path.Path) []byte { return []byte(prefixTime + p.String()) }

// childPrefix is the path prefix shared by every entry under p.
func childPrefix(p path.Path) string {
	if p.IsRoot() {
		return "/"
	}
	return p.String() + "/"
}

func encodeTime(t time.Time) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(t.UnixNano()))
	return buf
}

func readTime(txn *badgerdb.Txn, key []byte) (time.Time, error) {
	item, err := txn.Get(key)
	if errors.Is(err, badgerdb.ErrKeyNotFound) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, err
	}
	var t time.Time
	err = item.Value(func(v []byte) error {
		if len(v) != 8 {
			return fmt.Errorf("malformed time value for '%s'", key)
		}
		t = time.Unix(0, int64(binary.BigEndian.Uint64(v)))
		return nil
	})
	return t, err
}

func (d *Driver) Info(_ context.Context, p path.Path, level storage.InfoLevel, _ bool) (storage.Info, error) {
	info := storage.Info{Level: level}
	err := d.db.View(func(txn *badgerdb.Txn) error {
		item, err := txn.Get(fileKey(p))
		if errors.Is(err, badgerdb.ErrKeyNotFound) {
			if hasPrefix(txn, prefixFile+childPrefix(p)) {
				info = storage.Info{Name: p.Name(), Exists: true, Level: level, Type: storage.TypePath}
			}
			return nil
		}
		if err != nil {
			return err
		}

		info = storage.Info{Name: p.Name(), Exists: true, Level: level, Type: storage.TypeFile}
		if level >= storage.InfoLevelBasic {
			info.Size = uint64(item.ValueSize())
			info.TimeModified, err = readTime(txn, timeKey(p))
		}
		return err
	})
	if err != nil {
		return storage.Info{}, fmt.Errorf("badger info '%s': %w", p, err)
	}
	return info, nil
}

func hasPrefix(txn *badgerdb.Txn, prefix string) bool {
	opts := badgerdb.DefaultIteratorOptions
	opts.PrefetchValues = false
	opts.Prefix = []byte(prefix)
	it := txn.NewIterator(opts)
	defer it.Close()

	it.Seek(opts.Prefix)
	return it.ValidForPrefix(opts.Prefix)
}

func (d *Driver) List(_ context.Context, p path.Path, level storage.InfoLevel) ([]storage.Info, bool, error) {
	prefix := childPrefix(p)
	var out []storage.Info

	err := d.db.View(func(txn *badgerdb.Txn) error {
		opts := badgerdb.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(prefixFile + prefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		var lastDir string
		for it.Seek(opts.Prefix); it.ValidForPrefix(opts.Prefix); it.Next() {
			item := it.Item()
			rest := string(item.Key()[len(opts.Prefix):])

			// Keys are sorted, so nested keys of one directory are adjacent.
			if dir, _, nested := strings.Cut(rest, "/"); nested {
				if dir != lastDir {
					lastDir = dir
					out = append(out, storage.Info{Name: dir, Exists: true, Level: level, Type: storage.TypePath})
				}
				continue
			}

			info := storage.Info{Name: rest, Exists: true, Level: level}
			if level >= storage.InfoLevelBasic {
				info.Type = storage.TypeFile
				info.Size = uint64(item.ValueSize())
				mtime, err := readTime(txn, []byte(prefixTime+prefix+rest))
				if err != nil {
					return err
				}
				info.TimeModified = mtime
			}
			out = append(out, info)
		}
		return nil
	})
	if err != nil {
		return nil, false, fmt.Errorf("badger list '%s': %w", p, err)
	}
	if len(out) == 0 {
		return nil, false, nil
	}
	return out, true, nil
}

func (d *Driver) NewRead(_ context.Context, p path.Path, opts storage.ReadOptions) (storage.Reader, error) {
	open := storage.BytesOpener(opts, func(context.Context) ([]byte, bool, error) {
		data, err := d.get(p)
		if errors.Is(err, badgerdb.ErrKeyNotFound) {
			return nil, false, nil
		}
		if err != nil {
			return nil, false, fmt.Errorf("badger read '%s': %w", p, err)
		}
		return data, true, nil
	})
	return &reader{Reader: storage.NewStreamReader(Type, p, opts.IgnoreMissing, open), owner: d}, nil
}

func (d *Driver) get(p path.Path) ([]byte, error) {
	var data []byte
	err := d.db.View(func(txn *badgerdb.Txn) error {
		item, err := txn.Get(fileKey(p))
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	return data, err
}

func (d *Driver) NewWrite(_ context.Context, p path.Path, params storage.WriteParams) (storage.Writer, error) {
	var prepare func(context.Context) ([]byte, error)
	if !params.Truncate {
		prepare = func(context.Context) ([]byte, error) {
			data, err := d.get(p)
			if errors.Is(err, badgerdb.ErrKeyNotFound) {
				return nil, nil
			}
			return data, err
		}
	}

	commit := func(_ context.Context, data []byte) error {
		mtime := params.TimeModified
		if mtime.IsZero() {
			mtime = time.Now()
		}
		return d.db.Update(func(txn *badgerdb.Txn) error {
			if err := txn.Set(fileKey(p), append([]byte{}, data...)); err != nil {
				return err
			}
			return txn.Set(timeKey(p), encodeTime(mtime))
		})
	}

	return &writer{Writer: storage.NewBufferedWriter(Type, p, false, prepare, commit), owner: d}, nil
}

// PathRemove deletes every file under p in write batches.
func (d *Driver) PathRemove(_ context.Context, p path.Path, _ bool) (bool, error) {
	prefix := childPrefix(p)
	var keys [][]byte

	err := d.db.View(func(txn *badgerdb.Txn) error {
		opts := badgerdb.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(prefixFile + prefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(opts.Prefix); it.ValidForPrefix(opts.Prefix); it.Next() {
			keys = append(keys, it.Item().KeyCopy(nil))
		}
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("badger scan '%s': %w", p, err)
	}

	wb := d.db.NewWriteBatch()
	defer wb.Cancel()
	for _, k := range keys {
		if err := wb.Delete(k); err != nil {
			return false, fmt.Errorf("badger remove path '%s': %w", p, err)
		}
		if err := wb.Delete(append([]byte(prefixTime), k[len(prefixFile):]...)); err != nil {
			return false, fmt.Errorf("badger remove path '%s': %w", p, err)
		}
	}
	if err := wb.Flush(); err != nil {
		return false, fmt.Errorf("badger remove path '%s': %w", p, err)
	}
	return true, nil
}

func (d *Driver) Remove(_ context.Context, p path.Path, errorOnMissing bool) error {
	err := d.db.Update(func(txn *badgerdb.Txn) error {
		if _, err := txn.Get(fileKey(p)); err != nil {
			if errors.Is(err, badgerdb.ErrKeyNotFound) && !errorOnMissing {
				return nil
			}
			return err
		}
		if err := txn.Delete(fileKey(p)); err != nil {
			return err
		}
		return txn.Delete(timeKey(p))
	})
	if errors.Is(err, badgerdb.ErrKeyNotFound) {
		return fmt.Errorf("%w: unable to remove missing file '%s'", storage.ErrFileMissing, p)
	}
	if err != nil {
		return fmt.Errorf("badger remove '%s': %w", p, err)
	}
	return nil
}

// Move renames a file in one transaction.
func (d *Driver) Move(_ context.Context, src storage.Reader, dst storage.Writer) (bool, error) {
	r, ok := src.(*reader)
	if !ok || r.owner != d {
		return false, nil
	}
	w, ok := dst.(*writer)
	if !ok || w.owner != d {
		return false, nil
	}

	from, to := src.Path(), dst.Path()
	err := d.db.Update(func(txn *badgerdb.Txn) error {
		item, err := txn.Get(fileKey(from))
		if err != nil {
			return err
		}
		data, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		mtime, err := readTime(txn, timeKey(from))
		if err != nil {
			return err
		}
		if err := txn.Set(fileKey(to), data); err != nil {
			return err
		}
		if err := txn.Set(timeKey(to), encodeTime(mtime)); err != nil {
			return err
		}
		if err := txn.Delete(fileKey(from)); err != nil {
			return err
		}
		return txn.Delete(timeKey(from))
	})
	if errors.Is(err, badgerdb.ErrKeyNotFound) {
		return false, fmt.Errorf("%w: unable to move missing file '%s'", storage.ErrFileMissing, from)
	}
	if err != nil {
		return false, fmt.Errorf("badger move '%s' to '%s': %w", from, to, err)
	}
	return true, nil
}

type reader struct {
	storage.Reader
	owner *Driver
}

type writer struct {
	storage.Writer
	owner *Driver
}

// Package storage is the uniform façade over every storage backend.
//
// A Storage wraps one Driver with a fixed absolute base path. Every path
// argument is resolved against that base first (see StoragePath), so the
// same relative path or path expression addresses a posix directory, an S3
// prefix or a badger keyspace alike.
//
// Operations that only need the Driver contract, such as Copy, Get, Put and
// the copy fallback of Move, are implemented once here.
package storage

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/marmos91/dittostore/pkg/path"
)

const (
	DefaultModeFile os.FileMode = 0o640
	DefaultModePath os.FileMode = 0o750
)

// Metrics receives one observation per façade operation. A nil Metrics
// disables collection.
type Metrics interface {
	ObserveOperation(storageType, operation string, duration time.Duration, err error)
	RecordBytes(storageType, direction string, n int64)
}

// Byte directions reported to Metrics.RecordBytes.
const (
	DirectionRead  = "read"
	DirectionWrite = "write"
)

// Storage is the façade over one driver.
type Storage struct {
	typ      string
	base     path.Path
	driver   Driver
	features Feature
	modeFile os.FileMode
	modePath os.FileMode
	write    bool
	resolver Resolver
	metrics  Metrics
}

// Option configures a Storage.
type Option func(*Storage)

// WithModeFile sets the mode of new files. Zero keeps DefaultModeFile.
func WithModeFile(mode os.FileMode) Option {
	return func(s *Storage) {
		if mode != 0 {
			s.modeFile = mode
		}
	}
}

// WithModePath sets the mode of new directories. Zero keeps DefaultModePath.
func WithModePath(mode os.FileMode) Option {
	return func(s *Storage) {
		if mode != 0 {
			s.modePath = mode
		}
	}
}

// WithWrite enables mutating operations.
func WithWrite(write bool) Option {
	return func(s *Storage) { s.write = write }
}

// WithResolver installs the path expression resolver.
func WithResolver(r Resolver) Option {
	return func(s *Storage) { s.resolver = r }
}

// WithMetrics installs an operation observer.
func WithMetrics(m Metrics) Option {
	return func(s *Storage) { s.metrics = m }
}

// New builds a façade of type typ rooted at base.
func New(typ string, base path.Path, driver Driver, opts ...Option) (*Storage, error) {
	if typ == "" {
		return nil, fmt.Errorf("%w: storage type is required", ErrInvalidStorage)
	}
	if driver == nil {
		return nil, fmt.Errorf("%w: %s driver is nil", ErrInvalidStorage, typ)
	}
	if !base.IsAbsolute() {
		return nil, fmt.Errorf("%w: base path '%s' must be absolute", ErrInvalidStorage, base)
	}

	features := driver.Features()
	if err := checkFeatures(typ, driver, features); err != nil {
		return nil, err
	}

	s := &Storage{
		typ:      typ,
		base:     base,
		driver:   driver,
		features: features,
		modeFile: DefaultModeFile,
		modePath: DefaultModePath,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func checkFeatures(typ string, driver Driver, f Feature) error {
	if f.Has(FeaturePathSync) && !f.Has(FeaturePath) {
		return fmt.Errorf("%w: %s has path-sync without path", ErrInvalidStorage, typ)
	}
	if f&(FeatureHardLink|FeatureSymLink) != 0 {
		if !f.Has(FeaturePath) {
			return fmt.Errorf("%w: %s has links without path", ErrInvalidStorage, typ)
		}
		if _, ok := driver.(LinkCreator); !ok {
			return fmt.Errorf("%w: %s has links but cannot create them", ErrInvalidStorage, typ)
		}
	}
	if f.Has(FeaturePath) {
		if _, ok := driver.(PathCreator); !ok {
			return fmt.Errorf("%w: %s has path but cannot create paths", ErrInvalidStorage, typ)
		}
	}
	if f.Has(FeaturePathSync) {
		if _, ok := driver.(PathSyncer); !ok {
			return fmt.Errorf("%w: %s has path-sync but cannot sync paths", ErrInvalidStorage, typ)
		}
	}
	if f.Has(FeaturePathExpressionResolver) {
		if _, ok := driver.(ExpressionResolver); !ok {
			return fmt.Errorf("%w: %s has path-expression but no resolver", ErrInvalidStorage, typ)
		}
	}
	return nil
}

// Type returns the backend family, e.g. "posix" or "vfs".
func (s *Storage) Type() string { return s.typ }

// Base returns the absolute base path.
func (s *Storage) Base() path.Path { return s.base }

// Write reports whether mutating operations are allowed.
func (s *Storage) Write() bool { return s.write }

// Features returns the capability bit-set of the driver.
func (s *Storage) Features() Feature { return s.features }

// Feature reports whether the storage has every bit of f.
func (s *Storage) Feature(f Feature) bool { return s.features.Has(f) }

// Driver returns the wrapped driver.
func (s *Storage) Driver() Driver { return s.driver }

// ModeFile returns the default mode of new files.
func (s *Storage) ModeFile() os.FileMode { return s.modeFile }

// ModePath returns the default mode of new directories.
func (s *Storage) ModePath() os.FileMode { return s.modePath }

// NeedsPathExpression reports whether expressions are resolved by this
// storage, either through a resolver or by the driver.
func (s *Storage) NeedsPathExpression() bool {
	return s.resolver != nil || s.features.Has(FeaturePathExpressionResolver)
}

func (s *Storage) String() string {
	return fmt.Sprintf("{type: %s, path: %s, write: %t}", s.typ, s.base, s.write)
}

// Close releases the driver when it holds resources.
func (s *Storage) Close() error {
	if c, ok := s.driver.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// StoragePath resolves p against the base path:
//
//   - the zero path is the base itself
//   - an expression is passed to the resolver, whose relative result is
//     joined to the base
//   - an absolute path is used as-is, but must lie under the base unless
//     noEnforce is set
//   - a relative path is joined to the base and must stay under it unless
//     noEnforce is set
func (s *Storage) StoragePath(p path.Path, noEnforce bool) (path.Path, error) {
	switch {
	case p.IsZero():
		return s.base, nil

	case p.IsExpression():
		rel, err := s.resolveExpression(p)
		if err != nil {
			return path.Path{}, err
		}
		if !rel.IsRelative() {
			return path.Path{}, fmt.Errorf("%w: expression '%s' resolved to '%s', which is not relative",
				ErrExpressionUnresolved, p, rel)
		}
		return s.base.Join(rel)

	case p.IsAbsolute():
		if !noEnforce && !p.IsRelativeTo(s.base) {
			return path.Path{}, fmt.Errorf("%w: absolute path '%s' is not in base path '%s'", ErrPathNotContained, p, s.base)
		}
		return p, nil

	default:
		out, err := s.base.Join(p)
		if err != nil {
			return path.Path{}, err
		}
		if !noEnforce && !out.IsRelativeTo(s.base) {
			return path.Path{}, fmt.Errorf("%w: relative path '%s' leaves base path '%s'", ErrPathNotContained, p, s.base)
		}
		return out, nil
	}
}

func (s *Storage) resolveExpression(p path.Path) (path.Path, error) {
	switch {
	case s.resolver != nil:
		rel, err := s.resolver(p)
		if err != nil {
			return path.Path{}, fmt.Errorf("%w: %w", ErrExpressionUnresolved, err)
		}
		return rel, nil

	case s.features.Has(FeaturePathExpressionResolver):
		// Checked by New.
		rel, err := s.driver.(ExpressionResolver).ResolvePathExpression(p)
		if err != nil {
			return path.Path{}, fmt.Errorf("%w: %w", ErrExpressionUnresolved, err)
		}
		return rel, nil

	default:
		return path.Path{}, fmt.Errorf("%w: expression '%s' not valid without a resolver", ErrExpressionUnresolved, p)
	}
}

func (s *Storage) requireWrite(op string) error {
	if !s.write {
		return fmt.Errorf("%w: %s on %s storage at '%s'", ErrReadOnly, op, s.typ, s.base)
	}
	return nil
}

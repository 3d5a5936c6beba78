package storage

import (
	"context"
	"io"
	"os"
	"strings"
	"time"

	"github.com/marmos91/dittostore/pkg/path"
)

// Feature is a capability bit-set advertised by a driver.
type Feature uint32

const (
	// FeaturePath means directories are real entities that must be created
	// and can be listed empty. Object stores do not have it.
	FeaturePath Feature = 1 << iota

	// FeaturePathSync means directory entries can be flushed to durable
	// storage. Requires FeaturePath.
	FeaturePathSync

	// FeatureHardLink means hard links can be created. Requires FeaturePath.
	FeatureHardLink

	// FeatureSymLink means symbolic links can be created. Requires FeaturePath.
	FeatureSymLink

	// FeatureInfoDetail means Info can report owner, mode and link target.
	FeatureInfoDetail

	// FeaturePathExpressionResolver means the driver resolves path
	// expressions itself (see ExpressionResolver).
	FeaturePathExpressionResolver
)

var featureNames = []struct {
	f    Feature
	name string
}{
	{FeaturePath, "path"},
	{FeaturePathSync, "path-sync"},
	{FeatureHardLink, "hard-link"},
	{FeatureSymLink, "sym-link"},
	{FeatureInfoDetail, "info-detail"},
	{FeaturePathExpressionResolver, "path-expression"},
}

// Has reports whether every bit of other is set in f.
func (f Feature) Has(other Feature) bool { return f&other == other }

func (f Feature) String() string {
	var names []string
	for _, fn := range featureNames {
		if f.Has(fn.f) {
			names = append(names, fn.name)
		}
	}
	if len(names) == 0 {
		return "none"
	}
	return strings.Join(names, ",")
}

// InfoLevel selects how much Info has to gather.
type InfoLevel int

const (
	// InfoLevelDefault resolves to detail when the storage offers
	// FeatureInfoDetail and to basic otherwise.
	InfoLevelDefault InfoLevel = iota
	// InfoLevelExists only fills Exists.
	InfoLevelExists
	// InfoLevelBasic adds type, size and modification time.
	InfoLevelBasic
	// InfoLevelDetail adds mode, owner and link destination.
	InfoLevelDetail
)

func (l InfoLevel) String() string {
	switch l {
	case InfoLevelExists:
		return "exists"
	case InfoLevelBasic:
		return "basic"
	case InfoLevelDetail:
		return "detail"
	default:
		return "default"
	}
}

// Type is the kind of a storage entry.
type Type int

const (
	TypeFile Type = iota
	TypePath
	TypeLink
	TypeSpecial
)

func (t Type) String() string {
	switch t {
	case TypeFile:
		return "file"
	case TypePath:
		return "path"
	case TypeLink:
		return "link"
	default:
		return "special"
	}
}

// LinkType selects the kind of link LinkCreate makes.
type LinkType int

const (
	LinkSymbolic LinkType = iota
	LinkHard
)

// Info describes one entry. Fields beyond Exists are filled according to
// Level.
type Info struct {
	Name   string // relative to the listed path; empty for Info
	Exists bool
	Level  InfoLevel

	// Basic
	Type         Type
	Size         uint64
	TimeModified time.Time

	// Detail
	Mode            os.FileMode
	UserID          uint32
	GroupID         uint32
	User            string
	Group           string
	LinkDestination string
}

// ReadOptions are passed to Driver.NewRead.
type ReadOptions struct {
	IgnoreMissing bool
	Offset        uint64
	Limit         *uint64 // nil reads to the end
}

// WriteParams are passed to Driver.NewWrite with defaults already applied.
type WriteParams struct {
	ModeFile     os.FileMode
	ModePath     os.FileMode
	User         string
	Group        string
	TimeModified time.Time // zero keeps the time of the write

	CreatePath bool // create missing parent directories
	SyncFile   bool // flush file data before close returns
	SyncPath   bool // flush the parent directory after close
	Atomic     bool // write to a temporary name and rename on close
	Truncate   bool // replace existing content; false appends
}

// Reader is a read handle. Open must be called first; it returns false when
// the file is missing and the handle was created with IgnoreMissing. Close
// may be called more than once.
type Reader interface {
	io.Reader
	Open(ctx context.Context) (bool, error)
	Close() error

	Path() path.Path
	IgnoreMissing() bool
	Type() string
}

// Writer is a write handle. Close commits the content, Abort discards it.
// Either may be called after the other; only the first has an effect.
type Writer interface {
	io.Writer
	Open(ctx context.Context) error
	Close() error
	Abort() error

	Path() path.Path
	SyncPath() bool
	Type() string
}

// Driver is the contract every backend implements. Paths handed to a driver
// are already resolved against the storage base, so they are always
// absolute.
type Driver interface {
	Features() Feature

	// Info reports on p. A missing entry is Info{Exists: false} with a nil
	// error.
	Info(ctx context.Context, p path.Path, level InfoLevel, followLink bool) (Info, error)

	// List returns the direct children of p. The bool is false when p does
	// not exist.
	List(ctx context.Context, p path.Path, level InfoLevel) ([]Info, bool, error)

	NewRead(ctx context.Context, p path.Path, opts ReadOptions) (Reader, error)
	NewWrite(ctx context.Context, p path.Path, params WriteParams) (Writer, error)

	// PathRemove removes a directory. The bool is false when it was missing.
	PathRemove(ctx context.Context, p path.Path, recurse bool) (bool, error)

	// Remove removes a file. A missing file is ErrFileMissing only when
	// errorOnMissing is set.
	Remove(ctx context.Context, p path.Path, errorOnMissing bool) error
}

// PathCreator is implemented by drivers with FeaturePath.
type PathCreator interface {
	PathCreate(ctx context.Context, p path.Path, errorOnExists, noParentCreate bool, mode os.FileMode) error
}

// PathSyncer is implemented by drivers with FeaturePathSync.
type PathSyncer interface {
	PathSync(ctx context.Context, p path.Path) error
}

// LinkCreator is implemented by drivers with FeatureHardLink or
// FeatureSymLink.
type LinkCreator interface {
	LinkCreate(ctx context.Context, target, link path.Path, linkType LinkType) error
}

// Mover is implemented by drivers that can rename natively. Move returns
// false, with no error, when it cannot handle this pair of handles (for
// example across devices); the façade then copies.
type Mover interface {
	Move(ctx context.Context, src Reader, dst Writer) (bool, error)
}

// ExpressionResolver is implemented by drivers with
// FeaturePathExpressionResolver. The result must be relative to the
// storage base.
type ExpressionResolver interface {
	ResolvePathExpression(p path.Path) (path.Path, error)
}

// Resolver turns an expression-rooted path into a relative path. It must
// fail on expressions it does not know.
type Resolver func(p path.Path) (path.Path, error)

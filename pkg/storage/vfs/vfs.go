// Package vfs composes several storages into one.
//
// Each mount point pairs a child storage with a path expression such as
// <REPO:ARCHIVE>. The composed storage resolves the expression to a private
// virtual base /VFS/mount-point-<folder>, and every operation on a path
// under that base is routed to the child. Children never see virtual paths.
package vfs

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/google/uuid"

	"github.com/marmos91/dittostore/internal/logger"
	"github.com/marmos91/dittostore/pkg/path"
	"github.com/marmos91/dittostore/pkg/storage"
)

// Type is the storage type of a composed storage.
const Type = "vfs"

// Root is the parent of every virtual base.
const Root = "/VFS"

var (
	// ErrNoMountPoints indicates New was called with an empty list.
	ErrNoMountPoints = errors.New("vfs requires at least one mount point")

	// ErrInvalidMountPoint indicates a mount point with a nil storage, a
	// storage that needs path expressions itself, or a malformed
	// expression or virtual folder.
	ErrInvalidMountPoint = errors.New("invalid vfs mount point")

	// ErrDuplicateMountPoint indicates two mount points sharing an
	// expression or a virtual folder.
	ErrDuplicateMountPoint = errors.New("duplicate vfs mount point")

	// ErrMountPointNotFound indicates a path outside every virtual base, or
	// an expression no mount point owns.
	ErrMountPointNotFound = errors.New("no vfs mount point for path")

	// ErrAmbiguousMountPoint indicates a path under more than one virtual
	// base. New rejects configurations where this can happen.
	ErrAmbiguousMountPoint = errors.New("path matches more than one vfs mount point")
)

// MountPoint describes one child of a composed storage.
type MountPoint struct {
	// Storage is the child. It must not need path expressions.
	Storage *storage.Storage

	// Expression is the root token routed to the child, e.g. "<PG:DATA>".
	Expression string

	// VirtualFolder names the virtual base. Empty picks a random UUID.
	VirtualFolder string

	// Resolver maps an expression path to a path relative to the child
	// base. Nil strips the expression.
	Resolver storage.Resolver
}

type mount struct {
	storage    *storage.Storage
	expression string
	base       path.Path
	resolver   storage.Resolver
}

// Driver routes operations to the children.
type Driver struct {
	mounts   []mount
	features storage.Feature
}

var (
	_ storage.Driver             = (*Driver)(nil)
	_ storage.PathCreator        = (*Driver)(nil)
	_ storage.PathSyncer         = (*Driver)(nil)
	_ storage.LinkCreator        = (*Driver)(nil)
	_ storage.Mover              = (*Driver)(nil)
	_ storage.ExpressionResolver = (*Driver)(nil)
)

// New builds a composed storage rooted at "/". On success the children are
// owned by the result and *mountPoints is cleared.
func New(mountPoints *[]MountPoint, opts ...storage.Option) (*storage.Storage, error) {
	d, err := newDriver(mountPoints)
	if err != nil {
		return nil, err
	}
	s, err := storage.New(Type, path.MustParse("/"), d, opts...)
	if err != nil {
		return nil, err
	}
	*mountPoints = nil
	return s, nil
}

func newDriver(mountPoints *[]MountPoint) (*Driver, error) {
	if mountPoints == nil || len(*mountPoints) == 0 {
		return nil, ErrNoMountPoints
	}

	d := &Driver{features: ^storage.Feature(0)}
	expressions := make(map[string]bool)
	folders := make(map[string]bool)

	for _, mp := range *mountPoints {
		if mp.Storage == nil {
			return nil, fmt.Errorf("%w: '%s' has no storage", ErrInvalidMountPoint, mp.Expression)
		}
		if mp.Storage.NeedsPathExpression() {
			return nil, fmt.Errorf("%w: the storage '%s' cannot be used as a mount point", ErrInvalidMountPoint, mp.Storage.Type())
		}
		if !path.ValidExpression(mp.Expression) {
			return nil, fmt.Errorf("%w: invalid expression '%s'", ErrInvalidMountPoint, mp.Expression)
		}
		if expressions[mp.Expression] {
			return nil, fmt.Errorf("%w: expression '%s'", ErrDuplicateMountPoint, mp.Expression)
		}
		expressions[mp.Expression] = true

		folder := mp.VirtualFolder
		if folder == "" {
			folder = uuid.NewString()
		}
		if err := validateFolder(folder); err != nil {
			return nil, err
		}
		if folders[folder] {
			return nil, fmt.Errorf("%w: virtual folder '%s'", ErrDuplicateMountPoint, folder)
		}
		folders[folder] = true

		base, err := path.MustParse(Root).Append("mount-point-" + folder)
		if err != nil {
			return nil, err
		}

		d.features &= mp.Storage.Features()
		d.mounts = append(d.mounts, mount{
			storage:    mp.Storage,
			expression: mp.Expression,
			base:       base,
			resolver:   mp.Resolver,
		})
		logger.Debug("vfs mount point added",
			logger.KeyMountPoint, mp.Expression,
			logger.KeyBasePath, base.String(),
			logger.KeyStorageType, mp.Storage.Type())
	}

	d.features |= storage.FeaturePathExpressionResolver
	return d, nil
}

// validateFolder accepts exactly one plain path component.
func validateFolder(folder string) error {
	p, err := path.Parse(folder)
	if err != nil || !p.IsRelative() || p.Len() != 1 || p.Component(0) != folder {
		return fmt.Errorf("%w: virtual folder '%s' must be a single path component", ErrInvalidMountPoint, folder)
	}
	return nil
}

func (d *Driver) Features() storage.Feature { return d.features }

// VirtualBase returns the virtual base of the mount point owning
// expression.
func (d *Driver) VirtualBase(expression string) (path.Path, bool) {
	if m := d.byExpression(expression); m != nil {
		return m.base, true
	}
	return path.Path{}, false
}

// MountStorage returns the child storage owning expression.
func (d *Driver) MountStorage(expression string) (*storage.Storage, bool) {
	if m := d.byExpression(expression); m != nil {
		return m.storage, true
	}
	return nil, false
}

// Close closes every child once, even when it backs several mount points.
func (d *Driver) Close() error {
	var errs []error
	closed := make(map[*storage.Storage]bool, len(d.mounts))
	for _, m := range d.mounts {
		if closed[m.storage] {
			continue
		}
		closed[m.storage] = true
		if err := m.storage.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (d *Driver) byExpression(expression string) *mount {
	for i := range d.mounts {
		if d.mounts[i].expression == expression {
			return &d.mounts[i]
		}
	}
	return nil
}

// route finds the mount point of a virtual path and returns the matching
// real path in the child.
func (d *Driver) route(p path.Path) (*mount, path.Path, error) {
	var found *mount
	for i := range d.mounts {
		if p.IsRelativeTo(d.mounts[i].base) {
			if found != nil {
				return nil, path.Path{}, fmt.Errorf("%w: '%s'", ErrAmbiguousMountPoint, p)
			}
			found = &d.mounts[i]
		}
	}
	if found == nil {
		return nil, path.Path{}, fmt.Errorf("%w: '%s'", ErrMountPointNotFound, p)
	}

	rel, err := p.MakeRelativeTo(found.base)
	if err != nil {
		return nil, path.Path{}, err
	}
	realPath, err := found.storage.StoragePath(rel, false)
	if err != nil {
		return nil, path.Path{}, err
	}
	return found, realPath, nil
}

// ResolvePathExpression maps an expression path onto the virtual base of
// its mount point.
func (d *Driver) ResolvePathExpression(p path.Path) (path.Path, error) {
	m := d.byExpression(p.Root())
	if m == nil {
		return path.Path{}, fmt.Errorf("%w: invalid expression '%s'", ErrMountPointNotFound, p)
	}

	var rel path.Path
	var err error
	if m.resolver == nil {
		rel, err = p.ResolveExpression(path.Path{})
	} else {
		rel, err = m.resolver(p)
	}
	if err != nil {
		return path.Path{}, err
	}
	if !rel.IsRelative() {
		return path.Path{}, fmt.Errorf("the path expression resolver for '%s' must return a relative path, got '%s'", p, rel)
	}

	abs, err := rel.MakeAbsolute(m.base)
	if err != nil {
		return path.Path{}, err
	}
	// The façade joins this to the VFS base "/".
	return abs.MakeRelativeTo(path.MustParse("/"))
}

func (d *Driver) Info(ctx context.Context, p path.Path, level storage.InfoLevel, followLink bool) (storage.Info, error) {
	m, realPath, err := d.route(p)
	if err != nil {
		return storage.Info{}, err
	}
	return m.storage.Driver().Info(ctx, realPath, level, followLink)
}

func (d *Driver) List(ctx context.Context, p path.Path, level storage.InfoLevel) ([]storage.Info, bool, error) {
	m, realPath, err := d.route(p)
	if err != nil {
		return nil, false, err
	}
	return m.storage.Driver().List(ctx, realPath, level)
}

func (d *Driver) NewRead(ctx context.Context, p path.Path, opts storage.ReadOptions) (storage.Reader, error) {
	m, realPath, err := d.route(p)
	if err != nil {
		return nil, err
	}
	inner, err := m.storage.Driver().NewRead(ctx, realPath, opts)
	if err != nil {
		return nil, err
	}
	return &reader{Reader: inner, p: p, mount: m}, nil
}

func (d *Driver) NewWrite(ctx context.Context, p path.Path, params storage.WriteParams) (storage.Writer, error) {
	m, realPath, err := d.route(p)
	if err != nil {
		return nil, err
	}
	inner, err := m.storage.Driver().NewWrite(ctx, realPath, params)
	if err != nil {
		return nil, err
	}
	return &writer{Writer: inner, p: p, mount: m}, nil
}

func (d *Driver) PathCreate(ctx context.Context, p path.Path, errorOnExists, noParentCreate bool, mode os.FileMode) error {
	m, realPath, err := d.route(p)
	if err != nil {
		return err
	}
	creator, ok := m.storage.Driver().(storage.PathCreator)
	if !ok {
		return fmt.Errorf("%w: %s storage has no paths to create", storage.ErrFeatureUnsupported, m.storage.Type())
	}
	return creator.PathCreate(ctx, realPath, errorOnExists, noParentCreate, mode)
}

func (d *Driver) PathSync(ctx context.Context, p path.Path) error {
	m, realPath, err := d.route(p)
	if err != nil {
		return err
	}
	if !m.storage.Feature(storage.FeaturePathSync) {
		return nil
	}
	return m.storage.Driver().(storage.PathSyncer).PathSync(ctx, realPath)
}

func (d *Driver) PathRemove(ctx context.Context, p path.Path, recurse bool) (bool, error) {
	m, realPath, err := d.route(p)
	if err != nil {
		return false, err
	}
	return m.storage.Driver().PathRemove(ctx, realPath, recurse)
}

func (d *Driver) Remove(ctx context.Context, p path.Path, errorOnMissing bool) error {
	m, realPath, err := d.route(p)
	if err != nil {
		return err
	}
	return m.storage.Driver().Remove(ctx, realPath, errorOnMissing)
}

// LinkCreate creates the link in the child owning link. An absolute
// target inside the same mount point is translated to its real path;
// relative symlink targets are kept as given.
func (d *Driver) LinkCreate(ctx context.Context, target, link path.Path, linkType storage.LinkType) error {
	m, realPath, err := d.route(link)
	if err != nil {
		return err
	}
	creator, ok := m.storage.Driver().(storage.LinkCreator)
	if !ok {
		return fmt.Errorf("%w: %s storage cannot create links", storage.ErrFeatureUnsupported, m.storage.Type())
	}

	if target.IsAbsolute() {
		tm, realTarget, err := d.route(target)
		if err != nil {
			return err
		}
		if tm != m {
			return fmt.Errorf("%w: link '%s' and target '%s' are on different mount points", storage.ErrInvalidOptions, link, target)
		}
		target = realTarget
	}
	return creator.LinkCreate(ctx, target, realPath, linkType)
}

// Move renames natively when both handles route to the same child and the
// child can move. Otherwise it declines and the façade copies.
func (d *Driver) Move(ctx context.Context, src storage.Reader, dst storage.Writer) (bool, error) {
	r, ok := src.(*reader)
	if !ok {
		return false, nil
	}
	w, ok := dst.(*writer)
	if !ok || r.mount != w.mount {
		return false, nil
	}
	mover, ok := r.mount.storage.Driver().(storage.Mover)
	if !ok {
		return false, nil
	}
	return mover.Move(ctx, r.Reader, w.Writer)
}

// reader and writer report virtual paths and the vfs type so the façade
// keeps routing through the compositor.
type reader struct {
	storage.Reader
	p     path.Path
	mount *mount
}

func (r *reader) Path() path.Path { return r.p }
func (r *reader) Type() string    { return Type }

type writer struct {
	storage.Writer
	p     path.Path
	mount *mount
}

func (w *writer) Path() path.Path { return w.p }
func (w *writer) Type() string    { return Type }

// Package memory is an in-process storage driver.
//
// It backs tests and dry runs. With FeaturePath (the default) it behaves
// like a filesystem with explicit directories; without it, directories are
// implied by key prefixes like in an object store.
package memory

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/marmos91/dittostore/pkg/path"
	"github.com/marmos91/dittostore/pkg/storage"
)

// Type is the storage type reported by handles.
const Type = "memory"

// DefaultFeatures is the filesystem-like feature set.
const DefaultFeatures = storage.FeaturePath | storage.FeaturePathSync | storage.FeatureSymLink |
	storage.FeatureHardLink | storage.FeatureInfoDetail

type node struct {
	dir   bool
	link  string // symlink target, empty for files and directories
	data  []byte
	mode  os.FileMode
	mtime time.Time
	user  string
	group string
}

// Driver keeps entries in a map keyed by absolute path.
type Driver struct {
	mu       sync.RWMutex
	typ      string
	features storage.Feature
	nodes    map[string]*node
	synced   []string
	now      func() time.Time
}

// Option configures a Driver.
type Option func(*Driver)

// WithFeatures overrides DefaultFeatures.
func WithFeatures(f storage.Feature) Option {
	return func(d *Driver) { d.features = f }
}

// WithType changes the storage type reported by handles.
func WithType(typ string) Option {
	return func(d *Driver) { d.typ = typ }
}

// WithClock replaces time.Now for modification times.
func WithClock(now func() time.Time) Option {
	return func(d *Driver) { d.now = now }
}

// New returns an empty driver.
func New(opts ...Option) *Driver {
	d := &Driver{
		typ:      Type,
		features: DefaultFeatures,
		nodes:    make(map[string]*node),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.hasPaths() {
		d.nodes["/"] = &node{dir: true, mode: storage.DefaultModePath | os.ModeDir, mtime: d.now()}
	}
	return d
}

// NewStorage wraps a new driver in a façade rooted at base.
func NewStorage(base string, write bool, opts ...Option) (*storage.Storage, error) {
	root, err := path.Parse(base)
	if err != nil {
		return nil, err
	}
	d := New(opts...)
	return storage.New(d.typ, root, d, storage.WithWrite(write))
}

func (d *Driver) Features() storage.Feature { return d.features }

func (d *Driver) hasPaths() bool { return d.features.Has(storage.FeaturePath) }

// Synced returns the directories passed to PathSync, in call order.
func (d *Driver) Synced() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append([]string(nil), d.synced...)
}

// resolveLink follows symlinks from key until a non-link node.
func (d *Driver) resolveLink(key string) (*node, bool) {
	for range 16 {
		n, ok := d.nodes[key]
		if !ok || n.link == "" {
			return n, ok
		}
		if strings.HasPrefix(n.link, "/") {
			key = n.link
			continue
		}
		p, err := path.Parse(key)
		if err != nil {
			return nil, false
		}
		parent, err := p.Parent()
		if err != nil {
			return nil, false
		}
		target, err := parent.Join(path.MustParse(n.link))
		if err != nil {
			return nil, false
		}
		key = target.String()
	}
	return nil, false
}

func (d *Driver) hasChildren(key string) bool {
	prefix := childPrefix(key)
	for k := range d.nodes {
		if strings.HasPrefix(k, prefix) && k != key {
			return true
		}
	}
	return false
}

func childPrefix(key string) string {
	if key == "/" {
		return "/"
	}
	return key + "/"
}

func (d *Driver) Info(_ context.Context, p path.Path, level storage.InfoLevel, followLink bool) (storage.Info, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	key := p.String()
	n, ok := d.nodes[key]
	if ok && followLink && n.link != "" {
		n, ok = d.resolveLink(key)
	}
	if !ok {
		if !d.hasPaths() && d.hasChildren(key) {
			return storage.Info{Exists: true, Level: level, Type: storage.TypePath}, nil
		}
		return storage.Info{Level: level}, nil
	}
	return d.info(p.Name(), n, level), nil
}

func (d *Driver) info(name string, n *node, level storage.InfoLevel) storage.Info {
	info := storage.Info{Name: name, Exists: true, Level: level}
	if level < storage.InfoLevelBasic {
		return info
	}

	switch {
	case n.link != "":
		info.Type = storage.TypeLink
	case n.dir:
		info.Type = storage.TypePath
	default:
		info.Type = storage.TypeFile
		info.Size = uint64(len(n.data))
	}
	info.TimeModified = n.mtime

	if level >= storage.InfoLevelDetail && d.features.Has(storage.FeatureInfoDetail) {
		info.Mode = n.mode.Perm()
		info.User = n.user
		info.Group = n.group
		info.LinkDestination = n.link
	}
	return info
}

func (d *Driver) List(_ context.Context, p path.Path, level storage.InfoLevel) ([]storage.Info, bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	key := p.String()
	if d.hasPaths() {
		n, ok := d.nodes[key]
		if !ok {
			return nil, false, nil
		}
		if !n.dir {
			return nil, false, fmt.Errorf("%w: unable to list '%s': not a directory", storage.ErrPathMissing, p)
		}
	}

	prefix := childPrefix(key)
	seen := make(map[string]bool)
	var out []storage.Info
	for k, n := range d.nodes {
		if k == key || !strings.HasPrefix(k, prefix) {
			continue
		}
		rest := k[len(prefix):]
		if i := strings.IndexByte(rest, '/'); i >= 0 {
			// Only object stores reach here with nested keys: the first
			// component is an implied directory.
			if !d.hasPaths() && !seen[rest[:i]] {
				seen[rest[:i]] = true
				out = append(out, storage.Info{Name: rest[:i], Exists: true, Level: level, Type: storage.TypePath})
			}
			continue
		}
		if seen[rest] {
			continue
		}
		seen[rest] = true
		out = append(out, d.info(rest, n, level))
	}

	if !d.hasPaths() && len(out) == 0 {
		return nil, false, nil
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	if out == nil {
		out = []storage.Info{}
	}
	return out, true, nil
}

func (d *Driver) NewRead(_ context.Context, p path.Path, opts storage.ReadOptions) (storage.Reader, error) {
	key := p.String()
	open := storage.BytesOpener(opts, func(context.Context) ([]byte, bool, error) {
		d.mu.RLock()
		defer d.mu.RUnlock()

		n, ok := d.resolveLink(key)
		if !ok {
			return nil, false, nil
		}
		if n.dir {
			return nil, false, fmt.Errorf("%w: '%s' is a directory", storage.ErrFileRead, p)
		}
		return append([]byte(nil), n.data...), true, nil
	})
	return &reader{Reader: storage.NewStreamReader(d.typ, p, opts.IgnoreMissing, open), owner: d}, nil
}

func (d *Driver) NewWrite(_ context.Context, p path.Path, params storage.WriteParams) (storage.Writer, error) {
	key := p.String()
	syncPath := params.SyncPath && d.features.Has(storage.FeaturePathSync)

	prepare := func(context.Context) ([]byte, error) {
		d.mu.Lock()
		defer d.mu.Unlock()

		if err := d.ensureParent(p, params.CreatePath, params.ModePath); err != nil {
			return nil, err
		}
		if !params.Truncate {
			if n, ok := d.nodes[key]; ok && !n.dir {
				return append([]byte(nil), n.data...), nil
			}
		}
		return nil, nil
	}

	commit := func(_ context.Context, data []byte) error {
		d.mu.Lock()
		defer d.mu.Unlock()

		if err := d.ensureParent(p, params.CreatePath, params.ModePath); err != nil {
			return err
		}
		mtime := params.TimeModified
		if mtime.IsZero() {
			mtime = d.now()
		}
		n := &node{
			data:  append([]byte(nil), data...),
			mode:  params.ModeFile,
			mtime: mtime,
			user:  params.User,
			group: params.Group,
		}
		// Hard links share the node, so update in place.
		if existing, ok := d.nodes[key]; ok && !existing.dir && existing.link == "" {
			*existing = *n
		} else {
			d.nodes[key] = n
		}
		if syncPath {
			parent, _ := p.Parent()
			d.synced = append(d.synced, parent.String())
		}
		return nil
	}

	w := storage.NewBufferedWriter(d.typ, p, syncPath, prepare, commit)
	return &writer{Writer: w, owner: d, params: params}, nil
}

// ensureParent checks or creates the parent of p. Callers hold the lock.
func (d *Driver) ensureParent(p path.Path, create bool, mode os.FileMode) error {
	if !d.hasPaths() {
		return nil
	}
	parent, err := p.Parent()
	if err != nil {
		return err
	}
	if n, ok := d.nodes[parent.String()]; ok {
		if !n.dir {
			return fmt.Errorf("%w: parent '%s' is not a directory", storage.ErrPathMissing, parent)
		}
		return nil
	}
	if !create {
		return fmt.Errorf("%w: unable to open '%s' for write: parent '%s' does not exist", storage.ErrPathMissing, p, parent)
	}
	return d.mkdirAll(parent, mode)
}

func (d *Driver) mkdirAll(p path.Path, mode os.FileMode) error {
	for i := 0; i <= p.Len(); i++ {
		comps := p.Components()[:i]
		prefix, err := path.MustParse("/").Append(comps...)
		if err != nil {
			return err
		}
		key := prefix.String()
		if n, ok := d.nodes[key]; ok {
			if !n.dir {
				return fmt.Errorf("%w: '%s' is not a directory", storage.ErrPathMissing, key)
			}
			continue
		}
		d.nodes[key] = &node{dir: true, mode: mode | os.ModeDir, mtime: d.now()}
	}
	return nil
}

func (d *Driver) PathCreate(_ context.Context, p path.Path, errorOnExists, noParentCreate bool, mode os.FileMode) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	key := p.String()
	if n, ok := d.nodes[key]; ok {
		if !n.dir {
			return fmt.Errorf("%w: unable to create path '%s': a file exists", storage.ErrPathExists, p)
		}
		if errorOnExists {
			return fmt.Errorf("%w: unable to create path '%s'", storage.ErrPathExists, p)
		}
		return nil
	}

	parent, err := p.Parent()
	if err != nil {
		return err
	}
	if _, ok := d.nodes[parent.String()]; !ok {
		if noParentCreate {
			return fmt.Errorf("%w: unable to create path '%s': parent does not exist", storage.ErrPathMissing, p)
		}
	}
	return d.mkdirAll(p, mode)
}

func (d *Driver) PathSync(_ context.Context, p path.Path) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if n, ok := d.nodes[p.String()]; !ok || !n.dir {
		return fmt.Errorf("%w: unable to sync missing path '%s'", storage.ErrPathMissing, p)
	}
	d.synced = append(d.synced, p.String())
	return nil
}

func (d *Driver) LinkCreate(_ context.Context, target, link path.Path, linkType storage.LinkType) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	key := link.String()
	if _, ok := d.nodes[key]; ok {
		return fmt.Errorf("%w: unable to create link '%s': entry exists", storage.ErrPathExists, link)
	}
	if err := d.ensureParent(link, false, 0); err != nil {
		return err
	}

	if linkType == storage.LinkHard {
		n, ok := d.nodes[target.String()]
		if !ok || n.dir {
			return fmt.Errorf("%w: unable to hard link missing file '%s'", storage.ErrFileMissing, target)
		}
		d.nodes[key] = n
		return nil
	}

	d.nodes[key] = &node{link: target.String(), mode: 0o777, mtime: d.now()}
	return nil
}

func (d *Driver) PathRemove(_ context.Context, p path.Path, recurse bool) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	key := p.String()
	if d.hasPaths() {
		n, ok := d.nodes[key]
		if !ok {
			return false, nil
		}
		if !n.dir {
			return false, fmt.Errorf("%w: unable to remove '%s': not a directory", storage.ErrPathMissing, p)
		}
		if !recurse && d.hasChildren(key) {
			return false, fmt.Errorf("%w: unable to remove path '%s'", storage.ErrPathNotEmpty, p)
		}
	}

	prefix := childPrefix(key)
	for k := range d.nodes {
		if strings.HasPrefix(k, prefix) && k != "/" {
			delete(d.nodes, k)
		}
	}
	if key != "/" {
		delete(d.nodes, key)
	}
	return true, nil
}

func (d *Driver) Remove(_ context.Context, p path.Path, errorOnMissing bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	key := p.String()
	n, ok := d.nodes[key]
	if !ok {
		if errorOnMissing {
			return fmt.Errorf("%w: unable to remove missing file '%s'", storage.ErrFileMissing, p)
		}
		return nil
	}
	if n.dir {
		return fmt.Errorf("%w: unable to remove '%s': is a directory", storage.ErrFileWrite, p)
	}
	delete(d.nodes, key)
	return nil
}

// Move renames within the same driver. Handles from another driver are
// declined so the façade copies.
func (d *Driver) Move(_ context.Context, src storage.Reader, dst storage.Writer) (bool, error) {
	r, ok := src.(*reader)
	if !ok || r.owner != d {
		return false, nil
	}
	w, ok := dst.(*writer)
	if !ok || w.owner != d {
		return false, nil
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	from, to := src.Path().String(), dst.Path().String()
	n, exists := d.nodes[from]
	if !exists {
		return false, fmt.Errorf("%w: unable to move missing file '%s'", storage.ErrFileMissing, src.Path())
	}
	if err := d.ensureParent(dst.Path(), w.params.CreatePath, w.params.ModePath); err != nil {
		return false, err
	}
	delete(d.nodes, from)
	d.nodes[to] = n

	if dst.SyncPath() {
		for _, p := range []path.Path{src.Path(), dst.Path()} {
			parent, _ := p.Parent()
			d.synced = append(d.synced, parent.String())
		}
	}
	return true, nil
}

type reader struct {
	storage.Reader
	owner *Driver
}

type writer struct {
	storage.Writer
	owner  *Driver
	params storage.WriteParams
}

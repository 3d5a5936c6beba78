// Package helper builds and caches the named storages every command uses:
// local, pg, repo and spool.
//
// A Context is created once per process from Options. Each accessor builds
// its storage on first use and returns the same instance afterwards. Write
// accessors refuse to build anything until DryRunInit(false) was called,
// so a command that forgets to initialize dry-run, or runs in dry-run mode,
// cannot get a writable storage.
package helper

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/marmos91/dittostore/internal/logger"
	"github.com/marmos91/dittostore/pkg/path"
	"github.com/marmos91/dittostore/pkg/pgcluster"
	"github.com/marmos91/dittostore/pkg/storage"
	"github.com/marmos91/dittostore/pkg/storage/badger"
	"github.com/marmos91/dittostore/pkg/storage/posix"
	"github.com/marmos91/dittostore/pkg/storage/vfs"
)

var (
	// ErrWriteInDryRun indicates a write accessor was called in dry-run
	// mode or before DryRunInit.
	ErrWriteInDryRun = errors.New("unable to get writable storage in dry-run mode or before dry-run is initialized")

	// ErrStanzaRequired indicates a stanza-scoped storage was requested
	// without a stanza.
	ErrStanzaRequired = errors.New("stanza cannot be empty for this storage")

	// ErrInvalidStanza indicates a stanza that is not a single path
	// component.
	ErrInvalidStanza = errors.New("invalid stanza")

	// ErrStanzaInitialized indicates SetStanza was called with a different
	// stanza after a stanza-scoped storage was built.
	ErrStanzaInitialized = errors.New("stanza is already initialized")

	// ErrInvalidIndex indicates a pg or repo index outside the configured
	// list.
	ErrInvalidIndex = errors.New("invalid storage index")

	// ErrPathRequired indicates a storage whose location is not configured.
	ErrPathRequired = errors.New("storage path is required")
)

// PgOptions locates the data directory of one PostgreSQL cluster.
type PgOptions struct {
	// Path is the data directory. When empty it is discovered through
	// ConnString.
	Path string

	// ConnString is a libpq connection string or URL.
	ConnString string
}

// Options configure a Context.
type Options struct {
	Stanza    string
	SpoolPath string
	LockPath  string

	Repos   []RepoOptions
	Pgs     []PgOptions
	Helpers []DriverHelper

	// Metrics is installed on every storage built by the context.
	Metrics storage.Metrics

	// ModeFile and ModePath are the modes of files and paths created by
	// writable storages. Zero keeps the storage defaults.
	ModeFile os.FileMode
	ModePath os.FileMode

	// DataDirectory discovers a pg data directory. Defaults to
	// pgcluster.DataDirectory.
	DataDirectory func(ctx context.Context, connString string) (string, error)
}

// cell builds a storage once. A failed build is not cached.
type cell struct {
	mu sync.Mutex
	s  *storage.Storage
}

func (c *cell) get(build func() (*storage.Storage, error)) (*storage.Storage, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.s != nil {
		return c.s, nil
	}
	s, err := build()
	if err != nil {
		return nil, err
	}
	c.s = s
	return s, nil
}

func (c *cell) reset() *storage.Storage {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.s
	c.s = nil
	return s
}

// Context is the storage registry of one process.
type Context struct {
	opts Options

	mu         sync.Mutex
	stanza     string
	stanzaInit bool
	dryRunInit bool
	dryRun     bool

	local, localWrite cell
	spool, spoolWrite cell
	pg, pgWrite       []cell
	repo, repoWrite   []cell

	shared sharedDrivers
}

// New returns a Context. Nothing is built until an accessor is called.
func New(opts Options) *Context {
	if opts.DataDirectory == nil {
		opts.DataDirectory = pgcluster.DataDirectory
	}
	return &Context{
		opts:      opts,
		stanza:    opts.Stanza,
		pg:        make([]cell, len(opts.Pgs)),
		pgWrite:   make([]cell, len(opts.Pgs)),
		repo:      make([]cell, len(opts.Repos)),
		repoWrite: make([]cell, len(opts.Repos)),
		shared:    sharedDrivers{badger: make(map[int]*badger.Driver)},
	}
}

// DryRunInit records the dry-run mode. Write accessors fail until it is
// called with false.
func (c *Context) DryRunInit(dryRun bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.dryRunInit = true
	c.dryRun = dryRun
	logger.Debug("storage dry-run initialized", logger.KeyDryRun, dryRun)
}

func (c *Context) requireWrite() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.dryRunInit || c.dryRun {
		return ErrWriteInDryRun
	}
	return nil
}

// SetStanza replaces the stanza. It fails once a stanza-scoped storage
// captured a different one.
func (c *Context) SetStanza(stanza string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if stanza != "" {
		if err := ValidStanza(stanza); err != nil {
			return err
		}
	}
	if c.stanzaInit && stanza != c.stanza {
		return fmt.Errorf("%w: '%s' cannot change to '%s'", ErrStanzaInitialized, c.stanza, stanza)
	}
	c.stanza = stanza
	return nil
}

// Stanza returns the current stanza.
func (c *Context) Stanza() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stanza
}

// captureStanza freezes the stanza on first stanza-scoped access.
func (c *Context) captureStanza(required bool) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if required && c.stanza == "" {
		return "", ErrStanzaRequired
	}
	c.stanzaInit = true
	return c.stanza, nil
}

func (c *Context) storageOptions(write bool) []storage.Option {
	opts := []storage.Option{storage.WithWrite(write)}
	if c.opts.Metrics != nil {
		opts = append(opts, storage.WithMetrics(c.opts.Metrics))
	}
	if c.opts.ModeFile != 0 {
		opts = append(opts, storage.WithModeFile(c.opts.ModeFile))
	}
	if c.opts.ModePath != 0 {
		opts = append(opts, storage.WithModePath(c.opts.ModePath))
	}
	return opts
}

// Local returns read-only posix storage rooted at "/".
func (c *Context) Local(_ context.Context) (*storage.Storage, error) {
	return c.local.get(func() (*storage.Storage, error) { return c.newLocal(false) })
}

// LocalWrite returns writable posix storage rooted at "/".
func (c *Context) LocalWrite(_ context.Context) (*storage.Storage, error) {
	if err := c.requireWrite(); err != nil {
		return nil, err
	}
	return c.localWrite.get(func() (*storage.Storage, error) { return c.newLocal(true) })
}

func (c *Context) newLocal(write bool) (*storage.Storage, error) {
	s, err := posix.NewStorage(path.MustParse("/"), write, c.storageOptions(write)...)
	if err != nil {
		return nil, err
	}
	logger.Debug("local storage created", logger.KeyStorageType, s.Type(), "write", write)
	return s, nil
}

// Pg returns read-only storage for the data directory of pg idx, mounted
// at <PG:DATA>.
func (c *Context) Pg(ctx context.Context, idx int) (*storage.Storage, error) {
	if err := checkIndex("pg", idx, len(c.pg)); err != nil {
		return nil, err
	}
	return c.pg[idx].get(func() (*storage.Storage, error) { return c.newPg(ctx, idx, false) })
}

// PgWrite returns writable storage for the data directory of pg idx.
func (c *Context) PgWrite(ctx context.Context, idx int) (*storage.Storage, error) {
	if err := c.requireWrite(); err != nil {
		return nil, err
	}
	if err := checkIndex("pg", idx, len(c.pgWrite)); err != nil {
		return nil, err
	}
	return c.pgWrite[idx].get(func() (*storage.Storage, error) { return c.newPg(ctx, idx, true) })
}

func (c *Context) newPg(ctx context.Context, idx int, write bool) (*storage.Storage, error) {
	pg := c.opts.Pgs[idx]
	dir := pg.Path
	if dir == "" {
		if pg.ConnString == "" {
			return nil, fmt.Errorf("%w: pg%d has neither a path nor a connection string", ErrPathRequired, idx+1)
		}
		var err error
		if dir, err = c.opts.DataDirectory(ctx, pg.ConnString); err != nil {
			return nil, fmt.Errorf("unable to discover pg%d data directory: %w", idx+1, err)
		}
	}

	base, err := path.Parse(dir)
	if err != nil {
		return nil, fmt.Errorf("invalid pg%d path '%s': %w", idx+1, dir, err)
	}
	child, err := posix.NewStorage(base, write)
	if err != nil {
		return nil, err
	}

	mounts := []vfs.MountPoint{{
		Storage:       child,
		Expression:    ExprPgData,
		VirtualFolder: pgDataFolder,
	}}
	s, err := vfs.New(&mounts, c.storageOptions(write)...)
	if err != nil {
		return nil, err
	}
	logger.DebugCtx(ctx, "pg storage created", logger.KeyBasePath, base.String(), "pg", idx+1, "write", write)
	return s, nil
}

// RepoCount returns the number of configured repositories.
func (c *Context) RepoCount() int { return len(c.repo) }

// Repo returns read-only storage for repository idx.
func (c *Context) Repo(ctx context.Context, idx int) (*storage.Storage, error) {
	if err := checkIndex("repo", idx, len(c.repo)); err != nil {
		return nil, err
	}
	stanza, err := c.captureStanza(false)
	if err != nil {
		return nil, err
	}
	return c.repo[idx].get(func() (*storage.Storage, error) { return c.newRepo(ctx, idx, stanza, false) })
}

// RepoWrite returns writable storage for repository idx.
func (c *Context) RepoWrite(ctx context.Context, idx int) (*storage.Storage, error) {
	if err := c.requireWrite(); err != nil {
		return nil, err
	}
	if err := checkIndex("repo", idx, len(c.repoWrite)); err != nil {
		return nil, err
	}
	stanza, err := c.captureStanza(false)
	if err != nil {
		return nil, err
	}
	return c.repoWrite[idx].get(func() (*storage.Storage, error) { return c.newRepo(ctx, idx, stanza, true) })
}

// Spool returns read-only posix storage at the spool path. A stanza is
// required.
func (c *Context) Spool(_ context.Context) (*storage.Storage, error) {
	stanza, err := c.captureStanza(true)
	if err != nil {
		return nil, err
	}
	return c.spool.get(func() (*storage.Storage, error) { return c.newSpool(stanza, false) })
}

// SpoolWrite returns writable posix storage at the spool path.
func (c *Context) SpoolWrite(_ context.Context) (*storage.Storage, error) {
	if err := c.requireWrite(); err != nil {
		return nil, err
	}
	stanza, err := c.captureStanza(true)
	if err != nil {
		return nil, err
	}
	return c.spoolWrite.get(func() (*storage.Storage, error) { return c.newSpool(stanza, true) })
}

func (c *Context) newSpool(stanza string, write bool) (*storage.Storage, error) {
	if c.opts.SpoolPath == "" {
		return nil, fmt.Errorf("%w: spool path is not set", ErrPathRequired)
	}
	base, err := path.Parse(c.opts.SpoolPath)
	if err != nil {
		return nil, fmt.Errorf("invalid spool path '%s': %w", c.opts.SpoolPath, err)
	}
	opts := append(c.storageOptions(write), storage.WithResolver(SpoolResolver(stanza)))
	s, err := posix.NewStorage(base, write, opts...)
	if err != nil {
		return nil, err
	}
	logger.Debug("spool storage created", logger.KeyBasePath, base.String(), logger.KeyStanza, stanza, "write", write)
	return s, nil
}

func checkIndex(kind string, idx, n int) error {
	if idx < 0 || idx >= n {
		return fmt.Errorf("%w: %s index %d, %d configured", ErrInvalidIndex, kind, idx, n)
	}
	return nil
}

// Close closes every cached storage and forgets them, along with the
// captured stanza and dry-run state.
func (c *Context) Close() error {
	var errs []error
	closeCell := func(cl *cell) {
		if s := cl.reset(); s != nil {
			if err := s.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}

	closeCell(&c.local)
	closeCell(&c.localWrite)
	closeCell(&c.spool)
	closeCell(&c.spoolWrite)
	for i := range c.pg {
		closeCell(&c.pg[i])
		closeCell(&c.pgWrite[i])
	}
	for i := range c.repo {
		closeCell(&c.repo[i])
		closeCell(&c.repoWrite[i])
	}
	if err := c.shared.close(); err != nil {
		errs = append(errs, err)
	}

	c.mu.Lock()
	c.stanza = c.opts.Stanza
	c.stanzaInit = false
	c.dryRunInit = false
	c.dryRun = false
	c.mu.Unlock()

	return errors.Join(errs...)
}

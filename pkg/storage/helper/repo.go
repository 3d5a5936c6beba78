package helper

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sync"

	"github.com/marmos91/dittostore/internal/logger"
	"github.com/marmos91/dittostore/pkg/path"
	"github.com/marmos91/dittostore/pkg/storage"
	"github.com/marmos91/dittostore/pkg/storage/badger"
	"github.com/marmos91/dittostore/pkg/storage/cifs"
	"github.com/marmos91/dittostore/pkg/storage/posix"
	"github.com/marmos91/dittostore/pkg/storage/s3"
	"github.com/marmos91/dittostore/pkg/storage/vfs"
)

// Path expressions.
const (
	ExprPgData          = "<PG:DATA>"
	ExprRepoArchive     = "<REPO:ARCHIVE>"
	ExprRepoBackup      = "<REPO:BACKUP>"
	ExprSpoolArchive    = "<SPOOL:ARCHIVE>"
	ExprSpoolArchiveIn  = "<SPOOL:ARCHIVE:IN>"
	ExprSpoolArchiveOut = "<SPOOL:ARCHIVE:OUT>"
)

// Top-level repository directories.
const (
	PathArchive = "archive"
	PathBackup  = "backup"
)

// Fixed virtual folders, so virtual paths are stable across runs.
const (
	pgDataFolder      = "6c910630-d9c1-43f4-9702-bb4bdb5d0173"
	repoArchiveFolder = "ae2370d3-2df1-44ed-881b-ff3fa167adfb"
	repoBackupFolder  = "0c7a8f52-93d4-4b1e-a6f0-5d2e81c4b7a9"
)

// Repository types.
const (
	RepoPosix  = "posix"
	RepoCIFS   = "cifs"
	RepoS3     = "s3"
	RepoBadger = "badger"
	RepoGCS    = "gcs"
	RepoAzure  = "azure"
	RepoSFTP   = "sftp"
	RepoRemote = "remote"
)

var (
	// ErrInvalidRepoType indicates a repository type nothing knows.
	ErrInvalidRepoType = errors.New("invalid repository type")

	// ErrUnsupportedRepoType indicates a known repository type that needs
	// a registered DriverHelper.
	ErrUnsupportedRepoType = errors.New("repository type requires a registered driver helper")

	// ErrInvalidExpression indicates an expression a resolver does not own.
	ErrInvalidExpression = errors.New("invalid path expression")
)

// walName matches a WAL segment name: timeline, log and segment, 8 hex
// digits each.
var walName = regexp.MustCompile(`^[0-F]{24}`)

// RepoOptions describe one repository.
type RepoOptions struct {
	// Type selects the driver. Empty means posix.
	Type string

	// Path is the repository root: a directory for posix and cifs, the key
	// prefix for s3 and badger.
	Path string

	S3     s3.Config
	Badger badger.Config
}

// DriverHelper builds the child storage of a repository type. Helpers are
// tried before the built-in drivers.
type DriverHelper struct {
	Type string
	New  func(ctx context.Context, repo RepoOptions, write bool) (*storage.Storage, error)
}

func (c *Context) newRepo(ctx context.Context, idx int, stanza string, write bool) (*storage.Storage, error) {
	repo := c.opts.Repos[idx]
	if repo.Type == "" {
		repo.Type = RepoPosix
	}

	child, err := c.newRepoChild(ctx, idx, repo, write)
	if err != nil {
		return nil, fmt.Errorf("repo%d: %w", idx+1, err)
	}

	resolver := RepoResolver(stanza)
	mounts := []vfs.MountPoint{
		{Storage: child, Expression: ExprRepoArchive, VirtualFolder: repoArchiveFolder, Resolver: resolver},
		{Storage: child, Expression: ExprRepoBackup, VirtualFolder: repoBackupFolder, Resolver: resolver},
	}
	s, err := vfs.New(&mounts, c.storageOptions(write)...)
	if err != nil {
		_ = child.Close()
		return nil, err
	}
	logger.DebugCtx(ctx, "repo storage created",
		logger.KeyRepo, idx+1,
		logger.KeyStorageType, child.Type(),
		logger.KeyBasePath, child.Base().String(),
		logger.KeyStanza, stanza,
		"write", write)
	return s, nil
}

func (c *Context) newRepoChild(ctx context.Context, idx int, repo RepoOptions, write bool) (*storage.Storage, error) {
	for _, h := range c.opts.Helpers {
		if h.Type == repo.Type {
			return h.New(ctx, repo, write)
		}
	}

	switch repo.Type {
	case RepoPosix, RepoCIFS:
		if repo.Path == "" {
			return nil, fmt.Errorf("%w: %s repository path is not set", ErrPathRequired, repo.Type)
		}
		base, err := path.Parse(repo.Path)
		if err != nil {
			return nil, err
		}
		if repo.Type == RepoCIFS {
			return cifs.NewStorage(base, write)
		}
		return posix.NewStorage(base, write)

	case RepoS3:
		base, err := prefix(repo.Path)
		if err != nil {
			return nil, err
		}
		d, err := s3.NewFromConfig(ctx, repo.S3)
		if err != nil {
			return nil, err
		}
		return s3.NewStorage(d, base, write)

	case RepoBadger:
		base, err := prefix(repo.Path)
		if err != nil {
			return nil, err
		}
		d, err := c.shared.openBadger(idx, repo.Badger)
		if err != nil {
			return nil, err
		}
		return badger.NewStorage(d, base, write)

	case RepoGCS, RepoAzure, RepoSFTP, RepoRemote:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedRepoType, repo.Type)

	default:
		return nil, fmt.Errorf("%w: '%s'", ErrInvalidRepoType, repo.Type)
	}
}

// prefix parses an object store prefix; empty is the bucket root.
func prefix(p string) (path.Path, error) {
	if p == "" {
		return path.MustParse("/"), nil
	}
	return path.Parse(p)
}

// sharedDrivers holds drivers that the read and write storage of one
// repository must share, such as a badger database that allows a single
// opener.
type sharedDrivers struct {
	mu     sync.Mutex
	badger map[int]*badger.Driver
}

func (sd *sharedDrivers) openBadger(idx int, cfg badger.Config) (*badger.Driver, error) {
	sd.mu.Lock()
	defer sd.mu.Unlock()

	if d, ok := sd.badger[idx]; ok {
		return d, nil
	}
	d, err := badger.Open(cfg)
	if err != nil {
		return nil, err
	}
	sd.badger[idx] = d
	return d, nil
}

// close closes every shared driver and forgets them. Driver Close is
// idempotent, so storages built on them may close them too.
func (sd *sharedDrivers) close() error {
	sd.mu.Lock()
	defer sd.mu.Unlock()

	var errs []error
	for idx, d := range sd.badger {
		if err := d.Close(); err != nil {
			errs = append(errs, err)
		}
		delete(sd.badger, idx)
	}
	return errors.Join(errs...)
}

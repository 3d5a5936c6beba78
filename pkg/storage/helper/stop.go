package helper

import (
	"context"
	"errors"
	"fmt"

	"github.com/marmos91/dittostore/internal/logger"
	"github.com/marmos91/dittostore/pkg/path"
	"github.com/marmos91/dittostore/pkg/storage"
)

// StopFileExt is the extension of stop files.
const StopFileExt = ".stop"

// ErrStopFile indicates a stop file blocks the command.
var ErrStopFile = errors.New("stop file exists")

// StopFilePath returns <lockPath>/<stanza>.stop, or <lockPath>/all.stop
// when stanza is empty.
func StopFilePath(lockPath, stanza string) (path.Path, error) {
	if lockPath == "" {
		return path.Path{}, fmt.Errorf("%w: lock path is not set", ErrPathRequired)
	}
	base, err := path.Parse(lockPath)
	if err != nil {
		return path.Path{}, fmt.Errorf("invalid lock path '%s': %w", lockPath, err)
	}
	if !base.IsAbsolute() {
		return path.Path{}, fmt.Errorf("%w: lock path '%s' must be absolute", ErrPathRequired, lockPath)
	}

	name := "all"
	if stanza != "" {
		if err := ValidStanza(stanza); err != nil {
			return path.Path{}, err
		}
		name = stanza
	}
	return base.Append(name + StopFileExt)
}

// StopTest fails with ErrStopFile when the stop file of the current stanza
// or the global stop file exists.
func (c *Context) StopTest(ctx context.Context) error {
	local, err := c.Local(ctx)
	if err != nil {
		return err
	}

	if stanza := c.Stanza(); stanza != "" {
		p, err := StopFilePath(c.opts.LockPath, stanza)
		if err != nil {
			return err
		}
		found, err := local.Exists(ctx, p, storage.ExistsOptions{})
		if err != nil {
			return err
		}
		if found {
			return fmt.Errorf("%w for stanza %s", ErrStopFile, stanza)
		}
	}

	p, err := StopFilePath(c.opts.LockPath, "")
	if err != nil {
		return err
	}
	found, err := local.Exists(ctx, p, storage.ExistsOptions{})
	if err != nil {
		return err
	}
	if found {
		return fmt.Errorf("%w for all stanzas", ErrStopFile)
	}
	return nil
}

// Stop creates the stop file of the current stanza, or the global one when
// no stanza is set. An existing stop file is kept unless force is set, in
// which case it is rewritten.
func (c *Context) Stop(ctx context.Context, force bool) error {
	p, err := StopFilePath(c.opts.LockPath, c.Stanza())
	if err != nil {
		return err
	}
	local, err := c.LocalWrite(ctx)
	if err != nil {
		return err
	}

	found, err := local.Exists(ctx, p, storage.ExistsOptions{})
	if err != nil {
		return err
	}
	if found && !force {
		logger.WarnCtx(ctx, "stop file already exists", logger.KeyPath, p.String(), logger.KeyStanza, c.Stanza())
		return nil
	}

	w, err := local.NewWrite(ctx, p, storage.WriteOptions{})
	if err != nil {
		return err
	}
	if err := storage.Put(ctx, w, nil); err != nil {
		return fmt.Errorf("unable to create stop file '%s': %w", p, err)
	}
	logger.InfoCtx(ctx, "stop file created", logger.KeyPath, p.String(), logger.KeyStanza, c.Stanza())
	return nil
}

// Start removes the stop file created by Stop.
func (c *Context) Start(ctx context.Context) error {
	p, err := StopFilePath(c.opts.LockPath, c.Stanza())
	if err != nil {
		return err
	}
	local, err := c.LocalWrite(ctx)
	if err != nil {
		return err
	}

	err = local.Remove(ctx, p, storage.RemoveOptions{ErrorOnMissing: true})
	if errors.Is(err, storage.ErrFileMissing) {
		logger.WarnCtx(ctx, "stop file does not exist", logger.KeyPath, p.String(), logger.KeyStanza, c.Stanza())
		return nil
	}
	if err != nil {
		return fmt.Errorf("unable to remove stop file '%s': %w", p, err)
	}
	logger.InfoCtx(ctx, "stop file removed", logger.KeyPath, p.String(), logger.KeyStanza, c.Stanza())
	return nil
}

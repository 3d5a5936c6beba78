package storage

import (
	"context"
	"fmt"
	"os"
	"regexp"
	"sort"
	"time"

	"github.com/marmos91/dittostore/internal/telemetry"
	"github.com/marmos91/dittostore/pkg/path"
)

// InfoOptions configures Storage.Info.
type InfoOptions struct {
	Level         InfoLevel
	IgnoreMissing bool
	FollowLink    bool
	NoPathEnforce bool
}

// ListOptions configures Storage.List.
type ListOptions struct {
	ErrorOnMissing bool
	NullOnMissing  bool   // return nil instead of an empty list when missing
	Expression     string // regular expression matched against names
}

// SortOrder orders InfoList results by name.
type SortOrder int

const (
	SortNone SortOrder = iota
	// SortAsc lists a directory before its content.
	SortAsc
	// SortDesc lists the content of a directory before the directory
	// itself, which is the order needed to remove a tree.
	SortDesc
)

// InfoListOptions configures Storage.InfoList.
type InfoListOptions struct {
	Level          InfoLevel
	ErrorOnMissing bool
	NullOnMissing  bool
	Recurse        bool
	Sort           SortOrder
	Expression     string
}

// WriteOptions configures Storage.NewWrite. The zero value is an atomic,
// synced, truncating write that creates missing parents.
type WriteOptions struct {
	ModeFile     os.FileMode
	ModePath     os.FileMode
	User         string
	Group        string
	TimeModified time.Time

	NoCreatePath bool
	NoSyncFile   bool
	NoSyncPath   bool
	NoAtomic     bool
	NoTruncate   bool // requires NoAtomic
}

// PathCreateOptions configures Storage.PathCreate.
type PathCreateOptions struct {
	ErrorOnExists  bool
	NoParentCreate bool
	Mode           os.FileMode
}

// PathRemoveOptions configures Storage.PathRemove.
type PathRemoveOptions struct {
	ErrorOnMissing bool
	Recurse        bool
}

// RemoveOptions configures Storage.Remove.
type RemoveOptions struct {
	ErrorOnMissing bool
}

// ExistsOptions configures Storage.Exists.
type ExistsOptions struct {
	Timeout time.Duration
}

func (s *Storage) infoLevel(level InfoLevel) InfoLevel {
	if level != InfoLevelDefault {
		return level
	}
	if s.features.Has(FeatureInfoDetail) {
		return InfoLevelDetail
	}
	return InfoLevelBasic
}

// Info reports on a file, path or link.
func (s *Storage) Info(ctx context.Context, p path.Path, opts InfoOptions) (info Info, err error) {
	resolved, err := s.StoragePath(p, opts.NoPathEnforce)
	if err != nil {
		return Info{}, err
	}
	ctx, done := s.begin(ctx, OpInfo, resolved)
	defer func() { done(err) }()

	level := s.infoLevel(opts.Level)

	// Object stores are never asked about their root.
	if resolved.IsRoot() && !s.features.Has(FeaturePath) {
		info = Info{Level: level}
	} else {
		info, err = s.driver.Info(ctx, resolved, level, opts.FollowLink)
		if err != nil {
			return Info{}, err
		}
	}

	if !info.Exists && !opts.IgnoreMissing {
		return Info{}, fmt.Errorf("%w: unable to get info for missing path/file '%s'", ErrFileMissing, resolved)
	}
	return info, nil
}

// List returns the names of the direct children of p, sorted.
func (s *Storage) List(ctx context.Context, p path.Path, opts ListOptions) ([]string, error) {
	infos, err := s.InfoList(ctx, p, InfoListOptions{
		Level:          InfoLevelExists,
		ErrorOnMissing: opts.ErrorOnMissing,
		NullOnMissing:  opts.NullOnMissing,
		Sort:           SortAsc,
		Expression:     opts.Expression,
	})
	if err != nil || infos == nil {
		return nil, err
	}

	names := make([]string, len(infos))
	for i, info := range infos {
		names[i] = info.Name
	}
	return names, nil
}

// InfoList returns the entries under p. With Recurse, names of nested
// entries are relative to p ("a/b"). Expression filters entries but
// does not stop recursion into non-matching directories.
func (s *Storage) InfoList(ctx context.Context, p path.Path, opts InfoListOptions) (result []Info, err error) {
	if opts.ErrorOnMissing && opts.NullOnMissing {
		return nil, fmt.Errorf("%w: error-on-missing and null-on-missing are exclusive", ErrInvalidOptions)
	}

	var filter *regexp.Regexp
	if opts.Expression != "" {
		if filter, err = regexp.Compile(opts.Expression); err != nil {
			return nil, fmt.Errorf("%w: expression '%s': %w", ErrInvalidOptions, opts.Expression, err)
		}
	}

	resolved, err := s.StoragePath(p, false)
	if err != nil {
		return nil, err
	}
	ctx, done := s.begin(ctx, OpList, resolved, telemetry.Recurse(opts.Recurse))
	defer func() {
		telemetry.SetAttributes(ctx, telemetry.Count(len(result)))
		done(err)
	}()

	level := s.infoLevel(opts.Level)
	if opts.Recurse && level < InfoLevelBasic {
		level = InfoLevelBasic
	}

	entries, exists, err := s.driver.List(ctx, resolved, level)
	if err != nil {
		return nil, err
	}
	if !exists {
		if opts.ErrorOnMissing && s.features.Has(FeaturePath) {
			return nil, fmt.Errorf("%w: unable to list files for missing path '%s'", ErrPathMissing, resolved)
		}
		if opts.NullOnMissing {
			return nil, nil
		}
		return []Info{}, nil
	}

	result = make([]Info, 0, len(entries))
	w := walker{driver: s.driver, level: level, opts: opts, filter: filter}
	if err := w.walk(ctx, resolved, "", entries, &result); err != nil {
		return nil, err
	}
	return result, nil
}

type walker struct {
	driver Driver
	level  InfoLevel
	opts   InfoListOptions
	filter *regexp.Regexp
}

func (w walker) walk(ctx context.Context, dir path.Path, prefix string, entries []Info, out *[]Info) error {
	sortInfos(entries, w.opts.Sort)

	for _, entry := range entries {
		name := entry.Name
		if prefix != "" {
			name = prefix + "/" + entry.Name
		}
		match := w.filter == nil || w.filter.MatchString(name)

		if match && w.opts.Sort != SortDesc {
			*out = append(*out, renamed(entry, name))
		}

		if w.opts.Recurse && entry.Type == TypePath {
			child, err := dir.Append(entry.Name)
			if err != nil {
				return err
			}
			children, exists, err := w.driver.List(ctx, child, w.level)
			if err != nil {
				return err
			}
			// A directory removed since the parent was listed is skipped.
			if exists {
				if err := w.walk(ctx, child, name, children, out); err != nil {
					return err
				}
			}
		}

		if match && w.opts.Sort == SortDesc {
			*out = append(*out, renamed(entry, name))
		}
	}
	return nil
}

func renamed(info Info, name string) Info {
	info.Name = name
	return info
}

func sortInfos(infos []Info, order SortOrder) {
	switch order {
	case SortAsc:
		sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	case SortDesc:
		sort.Slice(infos, func(i, j int) bool { return infos[i].Name > infos[j].Name })
	}
}

// NewRead returns a read handle for p. Nothing is opened until Open.
func (s *Storage) NewRead(ctx context.Context, p path.Path, opts ReadOptions) (r Reader, err error) {
	resolved, err := s.StoragePath(p, false)
	if err != nil {
		return nil, err
	}
	ctx, done := s.begin(ctx, OpNewRead, resolved)
	defer func() { done(err) }()

	return s.driver.NewRead(ctx, resolved, opts)
}

// NewWrite returns a write handle for p. Zero modes take the storage
// defaults.
func (s *Storage) NewWrite(ctx context.Context, p path.Path, opts WriteOptions) (w Writer, err error) {
	if err := s.requireWrite(OpNewWrite); err != nil {
		return nil, err
	}
	if opts.NoTruncate && !opts.NoAtomic {
		return nil, fmt.Errorf("%w: no-truncate requires no-atomic", ErrInvalidOptions)
	}

	resolved, err := s.StoragePath(p, false)
	if err != nil {
		return nil, err
	}
	ctx, done := s.begin(ctx, OpNewWrite, resolved)
	defer func() { done(err) }()

	params := WriteParams{
		ModeFile:     orMode(opts.ModeFile, s.modeFile),
		ModePath:     orMode(opts.ModePath, s.modePath),
		User:         opts.User,
		Group:        opts.Group,
		TimeModified: opts.TimeModified,
		CreatePath:   !opts.NoCreatePath,
		SyncFile:     !opts.NoSyncFile,
		SyncPath:     !opts.NoSyncPath,
		Atomic:       !opts.NoAtomic,
		Truncate:     !opts.NoTruncate,
	}
	return s.driver.NewWrite(ctx, resolved, params)
}

func orMode(mode, fallback os.FileMode) os.FileMode {
	if mode == 0 {
		return fallback
	}
	return mode
}

// PathCreate creates a directory. The storage must have FeaturePath.
func (s *Storage) PathCreate(ctx context.Context, p path.Path, opts PathCreateOptions) (err error) {
	if err := s.requireWrite(OpPathCreate); err != nil {
		return err
	}
	if !s.features.Has(FeaturePath) {
		return fmt.Errorf("%w: %s storage has no paths to create", ErrFeatureUnsupported, s.typ)
	}

	resolved, err := s.StoragePath(p, false)
	if err != nil {
		return err
	}
	ctx, done := s.begin(ctx, OpPathCreate, resolved)
	defer func() { done(err) }()

	return s.driver.(PathCreator).PathCreate(ctx, resolved, opts.ErrorOnExists, opts.NoParentCreate, orMode(opts.Mode, s.modePath))
}

// PathExists reports whether p exists and is a directory. The storage must
// have FeaturePath.
func (s *Storage) PathExists(ctx context.Context, p path.Path) (bool, error) {
	if !s.features.Has(FeaturePath) {
		return false, fmt.Errorf("%w: %s storage has no paths", ErrFeatureUnsupported, s.typ)
	}
	info, err := s.Info(ctx, p, InfoOptions{Level: InfoLevelBasic, IgnoreMissing: true, FollowLink: true})
	if err != nil {
		return false, err
	}
	return info.Exists && info.Type == TypePath, nil
}

// PathRemove removes a directory, and its content with Recurse. A storage
// without FeaturePath can only remove recursively and never reports a
// missing path.
func (s *Storage) PathRemove(ctx context.Context, p path.Path, opts PathRemoveOptions) (err error) {
	if err := s.requireWrite(OpPathRemove); err != nil {
		return err
	}
	if !s.features.Has(FeaturePath) && (opts.ErrorOnMissing || !opts.Recurse) {
		return fmt.Errorf("%w: %s storage removes paths only recursively without error-on-missing",
			ErrInvalidOptions, s.typ)
	}

	resolved, err := s.StoragePath(p, false)
	if err != nil {
		return err
	}
	ctx, done := s.begin(ctx, OpPathRemove, resolved, telemetry.Recurse(opts.Recurse))
	defer func() { done(err) }()

	removed, err := s.driver.PathRemove(ctx, resolved, opts.Recurse)
	if err != nil {
		return err
	}
	if !removed && opts.ErrorOnMissing {
		return fmt.Errorf("%w: unable to remove missing path '%s'", ErrPathMissing, resolved)
	}
	return nil
}

// PathSync flushes a directory. It is a no-op for storages without
// FeaturePathSync.
func (s *Storage) PathSync(ctx context.Context, p path.Path) (err error) {
	if err := s.requireWrite(OpPathSync); err != nil {
		return err
	}
	if !s.features.Has(FeaturePathSync) {
		return nil
	}
	syncer := s.driver.(PathSyncer)

	resolved, err := s.StoragePath(p, false)
	if err != nil {
		return err
	}
	ctx, done := s.begin(ctx, OpPathSync, resolved)
	defer func() { done(err) }()

	return syncer.PathSync(ctx, resolved)
}

// Remove removes a file.
func (s *Storage) Remove(ctx context.Context, p path.Path, opts RemoveOptions) (err error) {
	if err := s.requireWrite(OpRemove); err != nil {
		return err
	}

	resolved, err := s.StoragePath(p, false)
	if err != nil {
		return err
	}
	ctx, done := s.begin(ctx, OpRemove, resolved)
	defer func() { done(err) }()

	return s.driver.Remove(ctx, resolved, opts.ErrorOnMissing)
}

// LinkCreate creates link pointing at target. A symbolic link keeps a
// relative target as given; hard link targets are resolved like any other
// path.
func (s *Storage) LinkCreate(ctx context.Context, target, link path.Path, linkType LinkType) (err error) {
	if err := s.requireWrite(OpLinkCreate); err != nil {
		return err
	}

	want := FeatureSymLink
	if linkType == LinkHard {
		want = FeatureHardLink
	}
	if !s.features.Has(want) {
		return fmt.Errorf("%w: %s storage does not support %s", ErrFeatureUnsupported, s.typ, want)
	}

	if linkType == LinkHard || !target.IsRelative() {
		if target, err = s.StoragePath(target, false); err != nil {
			return err
		}
	}
	resolved, err := s.StoragePath(link, false)
	if err != nil {
		return err
	}
	ctx, done := s.begin(ctx, OpLinkCreate, resolved, telemetry.TargetPath(target.String()))
	defer func() { done(err) }()

	return s.driver.(LinkCreator).LinkCreate(ctx, target, resolved, linkType)
}

// Move moves src to dst. Both handles must come from this storage and src
// must not ignore a missing file. The driver is asked to rename first; when
// it declines, the content is copied, the source removed, and the source
// directory synced if the destination syncs its own.
func (s *Storage) Move(ctx context.Context, src Reader, dst Writer) (err error) {
	if err := s.requireWrite(OpMove); err != nil {
		return err
	}
	if src.IgnoreMissing() {
		return fmt.Errorf("%w: move source '%s' cannot ignore missing", ErrInvalidOptions, src.Path())
	}
	if src.Type() != s.typ || dst.Type() != s.typ {
		return fmt.Errorf("%w: move from %s to %s on %s storage", ErrInvalidOptions, src.Type(), dst.Type(), s.typ)
	}

	ctx, done := s.begin(ctx, OpMove, src.Path(), telemetry.TargetPath(dst.Path().String()))
	defer func() { done(err) }()

	if mover, ok := s.driver.(Mover); ok {
		moved, err := mover.Move(ctx, src, dst)
		if err != nil {
			return err
		}
		if moved {
			return nil
		}
	}

	n, _, err := copyHandles(ctx, src, dst)
	if err != nil {
		return err
	}
	s.recordBytes(s.typ, DirectionRead, n)
	s.recordBytes(s.typ, DirectionWrite, n)
	telemetry.SetAttributes(ctx, telemetry.Bytes(n))

	if err := s.driver.Remove(ctx, src.Path(), true); err != nil {
		return err
	}

	if dst.SyncPath() && s.features.Has(FeaturePathSync) {
		parent, err := src.Path().Parent()
		if err != nil {
			return err
		}
		return s.driver.(PathSyncer).PathSync(ctx, parent)
	}
	return nil
}

// Exists reports whether p is a plain file, polling until it appears or
// the timeout elapses. A zero timeout checks once.
func (s *Storage) Exists(ctx context.Context, p path.Path, opts ExistsOptions) (found bool, err error) {
	resolved, err := s.StoragePath(p, false)
	if err != nil {
		return false, err
	}
	ctx, done := s.begin(ctx, OpExists, resolved)
	defer func() { done(err) }()

	deadline := time.Now().Add(opts.Timeout)
	wait := 100 * time.Millisecond

	for {
		info, err := s.driver.Info(ctx, resolved, InfoLevelBasic, true)
		if err != nil {
			return false, err
		}
		if info.Exists && info.Type == TypeFile {
			return true, nil
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return false, nil
		}
		if wait > remaining {
			wait = remaining
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return false, ctx.Err()
		case <-timer.C:
		}
		wait = min(wait*2, time.Second)
	}
}

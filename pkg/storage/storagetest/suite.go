// Package storagetest is the conformance suite every storage driver runs.
//
// Usage from a driver package:
//
//	func TestConformance(t *testing.T) {
//		storagetest.RunConformanceSuite(t, func(t *testing.T) *storage.Storage {
//			return newTestStorage(t)
//		})
//	}
package storagetest

import (
	"bytes"
	"testing"
	"time"

	"github.com/marmos91/dittostore/pkg/path"
	"github.com/marmos91/dittostore/pkg/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Factory returns a fresh, empty, writable storage for one subtest.
type Factory func(t *testing.T) *storage.Storage

// RunConformanceSuite runs every driver contract test against the storages
// returned by factory.
func RunConformanceSuite(t *testing.T, factory Factory) {
	t.Helper()

	t.Run("PutGet", func(t *testing.T) { testPutGet(t, factory(t)) })
	t.Run("ReadMissing", func(t *testing.T) { testReadMissing(t, factory(t)) })
	t.Run("ReadWindow", func(t *testing.T) { testReadWindow(t, factory(t)) })
	t.Run("Overwrite", func(t *testing.T) { testOverwrite(t, factory(t)) })
	t.Run("Append", func(t *testing.T) { testAppend(t, factory(t)) })
	t.Run("Abort", func(t *testing.T) { testAbort(t, factory(t)) })
	t.Run("Info", func(t *testing.T) { testInfo(t, factory(t)) })
	t.Run("List", func(t *testing.T) { testList(t, factory(t)) })
	t.Run("ListRecurse", func(t *testing.T) { testListRecurse(t, factory(t)) })
	t.Run("ListMissing", func(t *testing.T) { testListMissing(t, factory(t)) })
	t.Run("Remove", func(t *testing.T) { testRemove(t, factory(t)) })
	t.Run("PathRemove", func(t *testing.T) { testPathRemove(t, factory(t)) })
	t.Run("Exists", func(t *testing.T) { testExists(t, factory(t)) })
	t.Run("Move", func(t *testing.T) { testMove(t, factory(t)) })
	t.Run("Copy", func(t *testing.T) { testCopy(t, factory(t)) })
	t.Run("PathCreate", func(t *testing.T) { testPathCreate(t, factory(t)) })
}

// Put writes data to p on s.
func Put(t *testing.T, s *storage.Storage, p string, data []byte) {
	t.Helper()
	w, err := s.NewWrite(t.Context(), path.MustParse(p), storage.WriteOptions{})
	require.NoError(t, err)
	require.NoError(t, storage.Put(t.Context(), w, data))
}

// Get reads p from s, failing the test when it is missing.
func Get(t *testing.T, s *storage.Storage, p string) []byte {
	t.Helper()
	r, err := s.NewRead(t.Context(), path.MustParse(p), storage.ReadOptions{})
	require.NoError(t, err)
	data, err := storage.Get(t.Context(), r, storage.GetOptions{})
	require.NoError(t, err)
	return data
}

func testPutGet(t *testing.T, s *storage.Storage) {
	content := bytes.Repeat([]byte("pgbackrest"), 1000)
	Put(t, s, "dir/file.txt", content)
	assert.Equal(t, content, Get(t, s, "dir/file.txt"))

	Put(t, s, "empty", nil)
	assert.Equal(t, []byte{}, Get(t, s, "empty"))
}

func testReadMissing(t *testing.T, s *storage.Storage) {
	ctx := t.Context()

	r, err := s.NewRead(ctx, path.MustParse("missing"), storage.ReadOptions{IgnoreMissing: true})
	require.NoError(t, err)
	data, err := storage.Get(ctx, r, storage.GetOptions{})
	require.NoError(t, err)
	assert.Nil(t, data)

	r, err = s.NewRead(ctx, path.MustParse("missing"), storage.ReadOptions{})
	require.NoError(t, err)
	_, err = r.Open(ctx)
	assert.ErrorIs(t, err, storage.ErrFileMissing)
}

func testReadWindow(t *testing.T, s *storage.Storage) {
	ctx := t.Context()
	Put(t, s, "window", []byte("0123456789"))

	limit := uint64(3)
	r, err := s.NewRead(ctx, path.MustParse("window"), storage.ReadOptions{Offset: 4, Limit: &limit})
	require.NoError(t, err)
	data, err := storage.Get(ctx, r, storage.GetOptions{})
	require.NoError(t, err)
	assert.Equal(t, "456", string(data))

	r, err = s.NewRead(ctx, path.MustParse("window"), storage.ReadOptions{Offset: 7})
	require.NoError(t, err)
	data, err = storage.Get(ctx, r, storage.GetOptions{})
	require.NoError(t, err)
	assert.Equal(t, "789", string(data))

	r, err = s.NewRead(ctx, path.MustParse("window"), storage.ReadOptions{})
	require.NoError(t, err)
	_, err = storage.Get(ctx, r, storage.GetOptions{ExactSize: 20})
	assert.ErrorIs(t, err, storage.ErrFileRead)
}

func testOverwrite(t *testing.T, s *storage.Storage) {
	Put(t, s, "f", []byte("first version"))
	Put(t, s, "f", []byte("second"))
	assert.Equal(t, "second", string(Get(t, s, "f")))
}

func testAppend(t *testing.T, s *storage.Storage) {
	ctx := t.Context()
	Put(t, s, "log", []byte("a"))

	w, err := s.NewWrite(ctx, path.MustParse("log"), storage.WriteOptions{NoAtomic: true, NoTruncate: true})
	require.NoError(t, err)
	require.NoError(t, storage.Put(ctx, w, []byte("b")))
	assert.Equal(t, "ab", string(Get(t, s, "log")))

	_, err = s.NewWrite(ctx, path.MustParse("log"), storage.WriteOptions{NoTruncate: true})
	assert.ErrorIs(t, err, storage.ErrInvalidOptions)
}

func testAbort(t *testing.T, s *storage.Storage) {
	ctx := t.Context()
	w, err := s.NewWrite(ctx, path.MustParse("aborted"), storage.WriteOptions{})
	require.NoError(t, err)
	require.NoError(t, w.Open(ctx))
	_, err = w.Write([]byte("partial"))
	require.NoError(t, err)
	require.NoError(t, w.Abort())
	require.NoError(t, w.Close())

	found, err := s.Exists(ctx, path.MustParse("aborted"), storage.ExistsOptions{})
	require.NoError(t, err)
	assert.False(t, found)
}

func testInfo(t *testing.T, s *storage.Storage) {
	ctx := t.Context()
	mtime := time.Unix(1700000000, 0)

	w, err := s.NewWrite(ctx, path.MustParse("sub/info.dat"), storage.WriteOptions{TimeModified: mtime})
	require.NoError(t, err)
	require.NoError(t, storage.Put(ctx, w, []byte("12345")))

	info, err := s.Info(ctx, path.MustParse("sub/info.dat"), storage.InfoOptions{Level: storage.InfoLevelBasic})
	require.NoError(t, err)
	assert.True(t, info.Exists)
	assert.Equal(t, storage.TypeFile, info.Type)
	assert.Equal(t, uint64(5), info.Size)
	assert.Equal(t, mtime.Unix(), info.TimeModified.Unix())

	_, err = s.Info(ctx, path.MustParse("nope"), storage.InfoOptions{})
	assert.ErrorIs(t, err, storage.ErrFileMissing)

	info, err = s.Info(ctx, path.MustParse("nope"), storage.InfoOptions{IgnoreMissing: true})
	require.NoError(t, err)
	assert.False(t, info.Exists)

	if s.Feature(storage.FeaturePath) {
		info, err = s.Info(ctx, path.MustParse("sub"), storage.InfoOptions{Level: storage.InfoLevelBasic})
		require.NoError(t, err)
		assert.Equal(t, storage.TypePath, info.Type)
	}
}

func testList(t *testing.T, s *storage.Storage) {
	ctx := t.Context()
	Put(t, s, "list/b", []byte("b"))
	Put(t, s, "list/a", []byte("a"))
	Put(t, s, "list/c.backup", []byte("c"))
	Put(t, s, "list/nested/x", []byte("x"))

	names, err := s.List(ctx, path.MustParse("list"), storage.ListOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c.backup", "nested"}, names)

	names, err = s.List(ctx, path.MustParse("list"), storage.ListOptions{Expression: `\.backup$`})
	require.NoError(t, err)
	assert.Equal(t, []string{"c.backup"}, names)
}

func testListRecurse(t *testing.T, s *storage.Storage) {
	ctx := t.Context()
	Put(t, s, "tree/a/1", []byte("1"))
	Put(t, s, "tree/a/2", []byte("2"))
	Put(t, s, "tree/b", []byte("b"))

	infos, err := s.InfoList(ctx, path.MustParse("tree"), storage.InfoListOptions{Recurse: true, Sort: storage.SortAsc})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "a/1", "a/2", "b"}, names(infos))

	infos, err = s.InfoList(ctx, path.MustParse("tree"), storage.InfoListOptions{Recurse: true, Sort: storage.SortDesc})
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "a/2", "a/1", "a"}, names(infos))
}

func names(infos []storage.Info) []string {
	out := make([]string, len(infos))
	for i, info := range infos {
		out[i] = info.Name
	}
	return out
}

func testListMissing(t *testing.T, s *storage.Storage) {
	ctx := t.Context()

	got, err := s.List(ctx, path.MustParse("absent"), storage.ListOptions{})
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)

	got, err = s.List(ctx, path.MustParse("absent"), storage.ListOptions{NullOnMissing: true})
	require.NoError(t, err)
	assert.Nil(t, got)

	_, err = s.List(ctx, path.MustParse("absent"), storage.ListOptions{ErrorOnMissing: true, NullOnMissing: true})
	assert.ErrorIs(t, err, storage.ErrInvalidOptions)

	if s.Feature(storage.FeaturePath) {
		_, err = s.List(ctx, path.MustParse("absent"), storage.ListOptions{ErrorOnMissing: true})
		assert.ErrorIs(t, err, storage.ErrPathMissing)
	}
}

func testRemove(t *testing.T, s *storage.Storage) {
	ctx := t.Context()
	Put(t, s, "gone", []byte("x"))

	require.NoError(t, s.Remove(ctx, path.MustParse("gone"), storage.RemoveOptions{ErrorOnMissing: true}))
	found, err := s.Exists(ctx, path.MustParse("gone"), storage.ExistsOptions{})
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, s.Remove(ctx, path.MustParse("gone"), storage.RemoveOptions{}))
	err = s.Remove(ctx, path.MustParse("gone"), storage.RemoveOptions{ErrorOnMissing: true})
	assert.ErrorIs(t, err, storage.ErrFileMissing)
}

func testPathRemove(t *testing.T, s *storage.Storage) {
	ctx := t.Context()
	Put(t, s, "rm/a/b/c", []byte("c"))
	Put(t, s, "rm/top", []byte("t"))
	Put(t, s, "keep/me", []byte("k"))

	require.NoError(t, s.PathRemove(ctx, path.MustParse("rm"), storage.PathRemoveOptions{Recurse: true}))

	got, err := s.List(ctx, path.MustParse("rm"), storage.ListOptions{NullOnMissing: true})
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.Equal(t, "k", string(Get(t, s, "keep/me")))

	if s.Feature(storage.FeaturePath) {
		err = s.PathRemove(ctx, path.MustParse("rm"), storage.PathRemoveOptions{ErrorOnMissing: true, Recurse: true})
		assert.ErrorIs(t, err, storage.ErrPathMissing)

		err = s.PathRemove(ctx, path.MustParse("keep"), storage.PathRemoveOptions{})
		assert.ErrorIs(t, err, storage.ErrPathNotEmpty)
	}
}

func testExists(t *testing.T, s *storage.Storage) {
	ctx := t.Context()
	Put(t, s, "dir/present", []byte("x"))

	found, err := s.Exists(ctx, path.MustParse("dir/present"), storage.ExistsOptions{})
	require.NoError(t, err)
	assert.True(t, found)

	found, err = s.Exists(ctx, path.MustParse("dir/absent"), storage.ExistsOptions{Timeout: 150 * time.Millisecond})
	require.NoError(t, err)
	assert.False(t, found)

	// Directories are not files.
	if s.Feature(storage.FeaturePath) {
		found, err = s.Exists(ctx, path.MustParse("dir"), storage.ExistsOptions{})
		require.NoError(t, err)
		assert.False(t, found)

		isPath, err := s.PathExists(ctx, path.MustParse("dir"))
		require.NoError(t, err)
		assert.True(t, isPath)
	}
}

func testMove(t *testing.T, s *storage.Storage) {
	ctx := t.Context()
	Put(t, s, "from/file", []byte("payload"))

	r, err := s.NewRead(ctx, path.MustParse("from/file"), storage.ReadOptions{})
	require.NoError(t, err)
	w, err := s.NewWrite(ctx, path.MustParse("to/deeper/file"), storage.WriteOptions{})
	require.NoError(t, err)
	require.NoError(t, s.Move(ctx, r, w))

	assert.Equal(t, "payload", string(Get(t, s, "to/deeper/file")))
	found, err := s.Exists(ctx, path.MustParse("from/file"), storage.ExistsOptions{})
	require.NoError(t, err)
	assert.False(t, found)
}

func testCopy(t *testing.T, s *storage.Storage) {
	ctx := t.Context()
	Put(t, s, "orig", []byte("copy me"))

	r, err := s.NewRead(ctx, path.MustParse("orig"), storage.ReadOptions{})
	require.NoError(t, err)
	w, err := s.NewWrite(ctx, path.MustParse("dup"), storage.WriteOptions{})
	require.NoError(t, err)
	copied, err := storage.Copy(ctx, r, w)
	require.NoError(t, err)
	assert.True(t, copied)
	assert.Equal(t, "copy me", string(Get(t, s, "dup")))

	r, err = s.NewRead(ctx, path.MustParse("no-source"), storage.ReadOptions{IgnoreMissing: true})
	require.NoError(t, err)
	w, err = s.NewWrite(ctx, path.MustParse("no-dest"), storage.WriteOptions{})
	require.NoError(t, err)
	copied, err = storage.Copy(ctx, r, w)
	require.NoError(t, err)
	assert.False(t, copied)

	found, err := s.Exists(ctx, path.MustParse("no-dest"), storage.ExistsOptions{})
	require.NoError(t, err)
	assert.False(t, found)
}

func testPathCreate(t *testing.T, s *storage.Storage) {
	ctx := t.Context()

	if !s.Feature(storage.FeaturePath) {
		err := s.PathCreate(ctx, path.MustParse("p"), storage.PathCreateOptions{})
		assert.ErrorIs(t, err, storage.ErrFeatureUnsupported)
		return
	}

	require.NoError(t, s.PathCreate(ctx, path.MustParse("p/q/r"), storage.PathCreateOptions{}))
	isPath, err := s.PathExists(ctx, path.MustParse("p/q/r"))
	require.NoError(t, err)
	assert.True(t, isPath)

	require.NoError(t, s.PathCreate(ctx, path.MustParse("p/q/r"), storage.PathCreateOptions{}))
	err = s.PathCreate(ctx, path.MustParse("p/q/r"), storage.PathCreateOptions{ErrorOnExists: true})
	assert.ErrorIs(t, err, storage.ErrPathExists)

	err = s.PathCreate(ctx, path.MustParse("x/y"), storage.PathCreateOptions{NoParentCreate: true})
	assert.ErrorIs(t, err, storage.ErrPathMissing)

	names, err := s.List(ctx, path.MustParse("p/q/r"), storage.ListOptions{ErrorOnMissing: true})
	require.NoError(t, err)
	assert.Empty(t, names)

	require.NoError(t, s.PathSync(ctx, path.MustParse("p/q")))
}

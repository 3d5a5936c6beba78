package posix_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/marmos91/dittostore/pkg/path"
	"github.com/marmos91/dittostore/pkg/storage"
	"github.com/marmos91/dittostore/pkg/storage/memory"
	"github.com/marmos91/dittostore/pkg/storage/posix"
	"github.com/marmos91/dittostore/pkg/storage/storagetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStorage(t *testing.T) (*storage.Storage, string) {
	t.Helper()
	dir := t.TempDir()
	s, err := posix.NewStorage(path.MustParse(dir), true)
	require.NoError(t, err)
	return s, dir
}

func TestConformance(t *testing.T) {
	storagetest.RunConformanceSuite(t, func(t *testing.T) *storage.Storage {
		s, _ := newStorage(t)
		return s
	})
}

func TestAtomicWriteLeavesNoTempFile(t *testing.T) {
	s, dir := newStorage(t)
	ctx := t.Context()

	w, err := s.NewWrite(ctx, path.MustParse("archive/000000010000000000000001"), storage.WriteOptions{})
	require.NoError(t, err)
	require.NoError(t, w.Open(ctx))
	_, err = w.Write([]byte("wal"))
	require.NoError(t, err)

	// Until close only the temp file exists.
	_, err = os.Stat(filepath.Join(dir, "archive", "000000010000000000000001"+posix.TempSuffix))
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(dir, "archive", "000000010000000000000001"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	require.NoError(t, w.Close())

	entries, err := os.ReadDir(filepath.Join(dir, "archive"))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "000000010000000000000001", entries[0].Name())
}

func TestNonAtomicWriteGoesToTarget(t *testing.T) {
	s, dir := newStorage(t)
	ctx := t.Context()

	w, err := s.NewWrite(ctx, path.MustParse("direct"), storage.WriteOptions{NoAtomic: true})
	require.NoError(t, err)
	require.NoError(t, w.Open(ctx))
	_, err = w.Write([]byte("x"))
	require.NoError(t, err)

	_, err = os.Stat(filepath.Join(dir, "direct"))
	require.NoError(t, err)
	require.NoError(t, w.Close())
}

func TestInfoDetail(t *testing.T) {
	s, dir := newStorage(t)
	ctx := t.Context()

	w, err := s.NewWrite(ctx, path.MustParse("f"), storage.WriteOptions{ModeFile: 0o600})
	require.NoError(t, err)
	require.NoError(t, storage.Put(ctx, w, []byte("abc")))
	require.NoError(t, os.Symlink("f", filepath.Join(dir, "l")))

	info, err := s.Info(ctx, path.MustParse("f"), storage.InfoOptions{})
	require.NoError(t, err)
	assert.Equal(t, storage.InfoLevelDetail, info.Level)
	assert.Equal(t, storage.TypeFile, info.Type)
	assert.EqualValues(t, 0o600, info.Mode)
	assert.Equal(t, uint32(os.Getuid()), info.UserID)

	info, err = s.Info(ctx, path.MustParse("l"), storage.InfoOptions{})
	require.NoError(t, err)
	assert.Equal(t, storage.TypeLink, info.Type)
	assert.Equal(t, "f", info.LinkDestination)

	info, err = s.Info(ctx, path.MustParse("l"), storage.InfoOptions{FollowLink: true})
	require.NoError(t, err)
	assert.Equal(t, storage.TypeFile, info.Type)
	assert.Equal(t, uint64(3), info.Size)
}

func TestLinkCreate(t *testing.T) {
	s, _ := newStorage(t)
	ctx := t.Context()
	storagetest.Put(t, s, "target", []byte("data"))

	require.NoError(t, s.LinkCreate(ctx, path.MustParse("target"), path.MustParse("hard"), storage.LinkHard))
	require.NoError(t, s.LinkCreate(ctx, path.MustParse("target"), path.MustParse("sym"), storage.LinkSymbolic))

	assert.Equal(t, "data", string(storagetest.Get(t, s, "hard")))
	assert.Equal(t, "data", string(storagetest.Get(t, s, "sym")))

	err := s.LinkCreate(ctx, path.MustParse("target"), path.MustParse("sym"), storage.LinkSymbolic)
	assert.ErrorIs(t, err, storage.ErrPathExists)
}

func TestPathSyncMissing(t *testing.T) {
	s, _ := newStorage(t)
	err := s.PathSync(t.Context(), path.MustParse("missing"))
	assert.ErrorIs(t, err, storage.ErrPathMissing)
}

func TestListFileIsError(t *testing.T) {
	s, _ := newStorage(t)
	storagetest.Put(t, s, "plain", []byte("x"))

	_, err := s.List(t.Context(), path.MustParse("plain"), storage.ListOptions{})
	assert.ErrorIs(t, err, storage.ErrPathMissing)
}

func TestMoveDeclinesForeignHandles(t *testing.T) {
	s, _ := newStorage(t)
	mem, err := memory.NewStorage("/", true, memory.WithType(posix.Type))
	require.NoError(t, err)
	ctx := t.Context()

	storagetest.Put(t, s, "src", []byte("x"))
	r, err := s.NewRead(ctx, path.MustParse("src"), storage.ReadOptions{})
	require.NoError(t, err)
	w, err := mem.NewWrite(ctx, path.MustParse("/dst"), storage.WriteOptions{})
	require.NoError(t, err)

	moved, err := s.Driver().(storage.Mover).Move(ctx, r, w)
	require.NoError(t, err)
	assert.False(t, moved)
}

func TestMoveMissingSource(t *testing.T) {
	s, _ := newStorage(t)
	ctx := t.Context()

	r, err := s.NewRead(ctx, path.MustParse("nothing"), storage.ReadOptions{})
	require.NoError(t, err)
	w, err := s.NewWrite(ctx, path.MustParse("dst"), storage.WriteOptions{})
	require.NoError(t, err)
	assert.ErrorIs(t, s.Move(ctx, r, w), storage.ErrFileMissing)
}

func TestWithoutPathSync(t *testing.T) {
	dir := t.TempDir()
	d := posix.New(posix.WithFeatures(storage.FeaturePath))
	s, err := posix.NewStorageWithDriver(d, path.MustParse(dir), true)
	require.NoError(t, err)

	w, err := s.NewWrite(t.Context(), path.MustParse("f"), storage.WriteOptions{})
	require.NoError(t, err)
	assert.False(t, w.SyncPath())
	assert.NoError(t, s.PathSync(t.Context(), path.MustParse("does-not-exist")))
}

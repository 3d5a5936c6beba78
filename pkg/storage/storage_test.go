package storage_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/marmos91/dittostore/pkg/path"
	"github.com/marmos91/dittostore/pkg/storage"
	"github.com/marmos91/dittostore/pkg/storage/memory"
	"github.com/marmos91/dittostore/pkg/storage/storagetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStorage(t *testing.T, base string, opts ...storage.Option) *storage.Storage {
	t.Helper()
	opts = append([]storage.Option{storage.WithWrite(true)}, opts...)
	s, err := storage.New(memory.Type, path.MustParse(base), memory.New(), opts...)
	require.NoError(t, err)
	return s
}

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name   string
		typ    string
		base   string
		driver storage.Driver
	}{
		{"empty type", "", "/", memory.New()},
		{"nil driver", "memory", "/", nil},
		{"relative base", "memory", "repo", memory.New()},
		{"expression base", "memory", "<REPO>", memory.New()},
		{"path sync without path", "memory", "/", memory.New(memory.WithFeatures(storage.FeaturePathSync))},
		{"links without path", "memory", "/", memory.New(memory.WithFeatures(storage.FeatureSymLink))},
		{"resolver bit without resolver", "memory", "/", memory.New(memory.WithFeatures(storage.FeaturePathExpressionResolver))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := storage.New(tt.typ, path.MustParse(tt.base), tt.driver)
			assert.ErrorIs(t, err, storage.ErrInvalidStorage)
		})
	}
}

func TestAccessors(t *testing.T) {
	s := newStorage(t, "/repo", storage.WithModeFile(0o600), storage.WithModePath(0))

	assert.Equal(t, memory.Type, s.Type())
	assert.Equal(t, "/repo", s.Base().String())
	assert.True(t, s.Write())
	assert.Equal(t, memory.DefaultFeatures, s.Features())
	assert.True(t, s.Feature(storage.FeaturePath|storage.FeatureSymLink))
	assert.False(t, s.Feature(storage.FeaturePathExpressionResolver))
	assert.Equal(t, 0o600, int(s.ModeFile()))
	assert.Equal(t, storage.DefaultModePath, s.ModePath())
	assert.False(t, s.NeedsPathExpression())
	assert.Equal(t, "{type: memory, path: /repo, write: true}", s.String())
	assert.NoError(t, s.Close())
}

func TestStoragePath(t *testing.T) {
	resolver := func(p path.Path) (path.Path, error) {
		switch p.Root() {
		case "<REPO:ARCHIVE>":
			return path.MustParse("archive/demo").Append(p.Components()...)
		case "<BAD>":
			return path.MustParse("/abs"), nil
		}
		return path.Path{}, fmt.Errorf("unknown expression '%s'", p.Root())
	}
	s := newStorage(t, "/repo", storage.WithResolver(resolver))
	assert.True(t, s.NeedsPathExpression())

	tests := []struct {
		name      string
		in        path.Path
		noEnforce bool
		want      string
		err       error
	}{
		{name: "zero is base", in: path.Path{}, want: "/repo"},
		{name: "relative", in: path.MustParse("a/b"), want: "/repo/a/b"},
		{name: "absolute inside", in: path.MustParse("/repo/x"), want: "/repo/x"},
		{name: "absolute is base", in: path.MustParse("/repo"), want: "/repo"},
		{name: "absolute outside", in: path.MustParse("/etc/passwd"), err: storage.ErrPathNotContained},
		{name: "sibling prefix", in: path.MustParse("/repository"), err: storage.ErrPathNotContained},
		{name: "absolute outside no enforce", in: path.MustParse("/etc"), noEnforce: true, want: "/etc"},
		{name: "relative escape", in: path.MustParse("../etc"), err: storage.ErrPathNotContained},
		{name: "relative escape no enforce", in: path.MustParse("../etc"), noEnforce: true, want: "/etc"},
		{name: "expression", in: path.MustParse("<REPO:ARCHIVE>/16-1"), want: "/repo/archive/demo/16-1"},
		{name: "expression root", in: path.MustParse("<REPO:ARCHIVE>"), want: "/repo/archive/demo"},
		{name: "unknown expression", in: path.MustParse("<NOPE>/x"), err: storage.ErrExpressionUnresolved},
		{name: "resolver returns absolute", in: path.MustParse("<BAD>"), err: storage.ErrExpressionUnresolved},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.StoragePath(tt.in, tt.noEnforce)
			if tt.err != nil {
				assert.ErrorIs(t, err, tt.err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.String())
		})
	}
}

func TestStoragePath_ExpressionWithoutResolver(t *testing.T) {
	s := newStorage(t, "/repo")
	_, err := s.StoragePath(path.MustParse("<REPO:ARCHIVE>"), false)
	assert.ErrorIs(t, err, storage.ErrExpressionUnresolved)
}

// Operations never touch entries outside the base.
func TestContainmentEnforced(t *testing.T) {
	d := memory.New()
	outside, err := storage.New(memory.Type, path.MustParse("/"), d, storage.WithWrite(true))
	require.NoError(t, err)
	inside, err := storage.New(memory.Type, path.MustParse("/repo"), d, storage.WithWrite(true))
	require.NoError(t, err)
	ctx := t.Context()

	storagetest.Put(t, outside, "/secret", []byte("x"))

	_, err = inside.Info(ctx, path.MustParse("/secret"), storage.InfoOptions{})
	assert.ErrorIs(t, err, storage.ErrPathNotContained)
	_, err = inside.NewRead(ctx, path.MustParse("../secret"), storage.ReadOptions{})
	assert.ErrorIs(t, err, storage.ErrPathNotContained)
	err = inside.Remove(ctx, path.MustParse("/secret"), storage.RemoveOptions{})
	assert.ErrorIs(t, err, storage.ErrPathNotContained)
	err = inside.PathRemove(ctx, path.MustParse("/"), storage.PathRemoveOptions{Recurse: true})
	assert.ErrorIs(t, err, storage.ErrPathNotContained)

	info, err := inside.Info(ctx, path.MustParse("/secret"), storage.InfoOptions{NoPathEnforce: true})
	require.NoError(t, err)
	assert.True(t, info.Exists)
}

func TestReadOnly(t *testing.T) {
	s, err := storage.New(memory.Type, path.MustParse("/"), memory.New())
	require.NoError(t, err)
	ctx := t.Context()

	_, err = s.NewWrite(ctx, path.MustParse("f"), storage.WriteOptions{})
	assert.ErrorIs(t, err, storage.ErrReadOnly)
	assert.ErrorIs(t, s.Remove(ctx, path.MustParse("f"), storage.RemoveOptions{}), storage.ErrReadOnly)
	assert.ErrorIs(t, s.PathCreate(ctx, path.MustParse("d"), storage.PathCreateOptions{}), storage.ErrReadOnly)
	assert.ErrorIs(t, s.PathRemove(ctx, path.MustParse("d"), storage.PathRemoveOptions{}), storage.ErrReadOnly)
	assert.ErrorIs(t, s.PathSync(ctx, path.MustParse("d")), storage.ErrReadOnly)
	assert.ErrorIs(t, s.LinkCreate(ctx, path.MustParse("a"), path.MustParse("b"), storage.LinkSymbolic), storage.ErrReadOnly)

	found, err := s.Exists(ctx, path.MustParse("f"), storage.ExistsOptions{})
	require.NoError(t, err)
	assert.False(t, found)
}

func TestInfoList_ExpressionDoesNotStopRecursion(t *testing.T) {
	s := newStorage(t, "/repo")
	storagetest.Put(t, s, "backup/20240101-000000F/backup.manifest", []byte("m"))
	storagetest.Put(t, s, "backup/20240101-000000F/pg_data/base", []byte("b"))
	storagetest.Put(t, s, "backup/backup.info", []byte("i"))

	infos, err := s.InfoList(t.Context(), path.MustParse("backup"), storage.InfoListOptions{
		Recurse:    true,
		Sort:       storage.SortAsc,
		Expression: `manifest$`,
	})
	require.NoError(t, err)
	require.Len(t, infos, 1)
	assert.Equal(t, "20240101-000000F/backup.manifest", infos[0].Name)
	assert.Equal(t, storage.InfoLevelDetail, infos[0].Level)
}

func TestInfoList_RecurseRaisesLevel(t *testing.T) {
	s := newStorage(t, "/repo")
	storagetest.Put(t, s, "a/b", []byte("b"))

	infos, err := s.InfoList(t.Context(), path.MustParse(""), storage.InfoListOptions{
		Level:   storage.InfoLevelExists,
		Recurse: true,
		Sort:    storage.SortAsc,
	})
	require.NoError(t, err)
	require.Len(t, infos, 2)
	assert.Equal(t, storage.TypePath, infos[0].Type)
	assert.Equal(t, storage.InfoLevelBasic, infos[0].Level)
}

func TestInfoList_InvalidExpression(t *testing.T) {
	s := newStorage(t, "/repo")
	_, err := s.InfoList(t.Context(), path.MustParse(""), storage.InfoListOptions{Expression: "("})
	assert.ErrorIs(t, err, storage.ErrInvalidOptions)
}

func TestPathOpsWithoutPathFeature(t *testing.T) {
	s, err := storage.New(memory.Type, path.MustParse("/"), memory.New(memory.WithFeatures(0)), storage.WithWrite(true))
	require.NoError(t, err)
	ctx := t.Context()

	_, err = s.PathExists(ctx, path.MustParse("x"))
	assert.ErrorIs(t, err, storage.ErrFeatureUnsupported)
	err = s.PathRemove(ctx, path.MustParse("x"), storage.PathRemoveOptions{})
	assert.ErrorIs(t, err, storage.ErrInvalidOptions)
	err = s.PathRemove(ctx, path.MustParse("x"), storage.PathRemoveOptions{Recurse: true, ErrorOnMissing: true})
	assert.ErrorIs(t, err, storage.ErrInvalidOptions)
	assert.NoError(t, s.PathSync(ctx, path.MustParse("x")))

	names, err := s.List(ctx, path.MustParse("x"), storage.ListOptions{ErrorOnMissing: true})
	require.NoError(t, err)
	assert.Empty(t, names)
}

// noMove hides the native move of the wrapped driver.
type noMove struct{ storage.Driver }

func TestMove_CopyFallback(t *testing.T) {
	metrics := &fakeMetrics{}
	s, err := storage.New(memory.Type, path.MustParse("/"), noMove{memory.New(memory.WithFeatures(0))},
		storage.WithWrite(true), storage.WithMetrics(metrics))
	require.NoError(t, err)
	ctx := t.Context()

	storagetest.Put(t, s, "src", []byte("0123456789"))
	r, err := s.NewRead(ctx, path.MustParse("src"), storage.ReadOptions{})
	require.NoError(t, err)
	w, err := s.NewWrite(ctx, path.MustParse("dst/file"), storage.WriteOptions{})
	require.NoError(t, err)
	require.NoError(t, s.Move(ctx, r, w))

	assert.Equal(t, "0123456789", string(storagetest.Get(t, s, "dst/file")))
	found, err := s.Exists(ctx, path.MustParse("src"), storage.ExistsOptions{})
	require.NoError(t, err)
	assert.False(t, found)
	assert.Equal(t, int64(10), metrics.bytes(storage.DirectionWrite))
}

func TestMove_Preconditions(t *testing.T) {
	s := newStorage(t, "/")
	other, err := storage.New("posix", path.MustParse("/"), memory.New(memory.WithType("posix")), storage.WithWrite(true))
	require.NoError(t, err)
	ctx := t.Context()

	r, err := s.NewRead(ctx, path.MustParse("a"), storage.ReadOptions{IgnoreMissing: true})
	require.NoError(t, err)
	w, err := s.NewWrite(ctx, path.MustParse("b"), storage.WriteOptions{})
	require.NoError(t, err)
	assert.ErrorIs(t, s.Move(ctx, r, w), storage.ErrInvalidOptions)

	r, err = s.NewRead(ctx, path.MustParse("a"), storage.ReadOptions{})
	require.NoError(t, err)
	w, err = other.NewWrite(ctx, path.MustParse("b"), storage.WriteOptions{})
	require.NoError(t, err)
	assert.ErrorIs(t, s.Move(ctx, r, w), storage.ErrInvalidOptions)
}

func TestExists_WaitsForFile(t *testing.T) {
	s := newStorage(t, "/")
	ctx := t.Context()

	go func() {
		time.Sleep(150 * time.Millisecond)
		if w, err := s.NewWrite(ctx, path.MustParse("late"), storage.WriteOptions{}); err == nil {
			_ = storage.Put(ctx, w, []byte("x"))
		}
	}()

	found, err := s.Exists(ctx, path.MustParse("late"), storage.ExistsOptions{Timeout: 5 * time.Second})
	require.NoError(t, err)
	assert.True(t, found)
}

func TestExists_ContextCanceled(t *testing.T) {
	s := newStorage(t, "/")
	ctx, cancel := context.WithTimeout(t.Context(), 50*time.Millisecond)
	defer cancel()

	_, err := s.Exists(ctx, path.MustParse("never"), storage.ExistsOptions{Timeout: time.Minute})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestMetricsObserveOperations(t *testing.T) {
	metrics := &fakeMetrics{}
	s := newStorage(t, "/", storage.WithMetrics(metrics))
	ctx := t.Context()

	storagetest.Put(t, s, "f", []byte("x"))
	_, err := s.Info(ctx, path.MustParse("missing"), storage.InfoOptions{})
	require.Error(t, err)

	assert.Equal(t, 1, metrics.count(storage.OpNewWrite, false))
	assert.Equal(t, 1, metrics.count(storage.OpInfo, true))
}

func TestGet_ExactSize(t *testing.T) {
	s := newStorage(t, "/")
	ctx := t.Context()
	storagetest.Put(t, s, "f", []byte("abcdef"))

	r, err := s.NewRead(ctx, path.MustParse("f"), storage.ReadOptions{})
	require.NoError(t, err)
	data, err := storage.Get(ctx, r, storage.GetOptions{ExactSize: 4})
	require.NoError(t, err)
	assert.Equal(t, "abcd", string(data))
}

func TestFeatureString(t *testing.T) {
	assert.Equal(t, "none", storage.Feature(0).String())
	assert.Equal(t, "path,sym-link", (storage.FeaturePath | storage.FeatureSymLink).String())
}

type observation struct {
	op     string
	failed bool
}

type fakeMetrics struct {
	mu    sync.Mutex
	ops   []observation
	moved map[string]int64
}

func (m *fakeMetrics) ObserveOperation(_, operation string, _ time.Duration, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ops = append(m.ops, observation{op: operation, failed: err != nil})
}

func (m *fakeMetrics) RecordBytes(_, direction string, n int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.moved == nil {
		m.moved = make(map[string]int64)
	}
	m.moved[direction] += n
}

func (m *fakeMetrics) count(op string, failed bool) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, o := range m.ops {
		if o.op == op && o.failed == failed {
			n++
		}
	}
	return n
}

func (m *fakeMetrics) bytes(direction string) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.moved[direction]
}

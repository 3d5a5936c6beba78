package cifs_test

import (
	"testing"

	"github.com/marmos91/dittostore/pkg/path"
	"github.com/marmos91/dittostore/pkg/storage"
	"github.com/marmos91/dittostore/pkg/storage/cifs"
	"github.com/marmos91/dittostore/pkg/storage/storagetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStorage(t *testing.T) *storage.Storage {
	t.Helper()
	s, err := cifs.NewStorage(path.MustParse(t.TempDir()), true)
	require.NoError(t, err)
	return s
}

func TestConformance(t *testing.T) {
	storagetest.RunConformanceSuite(t, newStorage)
}

func TestFeatures(t *testing.T) {
	s := newStorage(t)

	assert.Equal(t, cifs.Type, s.Type())
	assert.True(t, s.Feature(storage.FeaturePath|storage.FeatureInfoDetail))
	assert.False(t, s.Feature(storage.FeaturePathSync))

	err := s.LinkCreate(t.Context(), path.MustParse("a"), path.MustParse("b"), storage.LinkSymbolic)
	assert.ErrorIs(t, err, storage.ErrFeatureUnsupported)
}

func TestWritesDoNotSyncPath(t *testing.T) {
	s := newStorage(t)

	w, err := s.NewWrite(t.Context(), path.MustParse("f"), storage.WriteOptions{})
	require.NoError(t, err)
	assert.False(t, w.SyncPath())
	assert.Equal(t, cifs.Type, w.Type())
}

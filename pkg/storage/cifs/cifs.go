// Package cifs is the storage driver for repositories on CIFS/SMB mounts.
//
// It is the posix driver without directory syncs or links, which CIFS
// mounts do not reliably support.
package cifs

import (
	"github.com/marmos91/dittostore/pkg/path"
	"github.com/marmos91/dittostore/pkg/storage"
	"github.com/marmos91/dittostore/pkg/storage/posix"
)

// Type is the storage type of the driver.
const Type = "cifs"

// Features is the feature set of a CIFS mount.
const Features = storage.FeaturePath | storage.FeatureInfoDetail

// New returns a cifs driver.
func New() *posix.Driver {
	return posix.New(posix.WithType(Type), posix.WithFeatures(Features))
}

// NewStorage returns a cifs storage rooted at base.
func NewStorage(base path.Path, write bool, opts ...storage.Option) (*storage.Storage, error) {
	return posix.NewStorageWithDriver(New(), base, write, opts...)
}

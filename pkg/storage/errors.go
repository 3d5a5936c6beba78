package storage

import "errors"

// ============================================================================
// Storage Errors
// ============================================================================

// Drivers wrap these sentinels with fmt.Errorf("%w: ...") so callers can
// test them with errors.Is regardless of the backend that produced them.
// Low-level I/O failures are returned as-is and keep their identity.

var (
	// ErrInvalidStorage indicates a façade was built from an inconsistent
	// driver: a relative base path, a nil driver, or feature bits that
	// require a capability the driver does not implement.
	ErrInvalidStorage = errors.New("invalid storage")

	// ErrPathNotContained indicates an absolute path outside the storage
	// base was used while containment was enforced.
	ErrPathNotContained = errors.New("path is not in base path")

	// ErrExpressionUnresolved indicates a path expression could not be
	// turned into a relative path: no resolver, unknown expression, or a
	// resolver that returned a rooted path.
	ErrExpressionUnresolved = errors.New("unable to resolve path expression")

	// ErrFileMissing indicates a file does not exist and the caller did not
	// ask to ignore it.
	ErrFileMissing = errors.New("file missing")

	// ErrPathMissing indicates a directory does not exist.
	ErrPathMissing = errors.New("path missing")

	// ErrPathExists indicates a directory already exists and the caller
	// asked for an error in that case.
	ErrPathExists = errors.New("path already exists")

	// ErrPathNotEmpty indicates a non-recursive remove of a directory that
	// still has entries.
	ErrPathNotEmpty = errors.New("path not empty")

	// ErrFileRead indicates fewer bytes than required could be read.
	ErrFileRead = errors.New("unable to read file")

	// ErrFileWrite indicates the driver could not persist a write.
	ErrFileWrite = errors.New("unable to write file")

	// ErrReadOnly indicates a mutating operation on a read-only storage.
	ErrReadOnly = errors.New("storage is read-only")

	// ErrFeatureUnsupported indicates the storage does not offer the
	// capability an operation needs.
	ErrFeatureUnsupported = errors.New("storage feature not supported")

	// ErrInvalidOptions indicates mutually exclusive or incomplete options.
	ErrInvalidOptions = errors.New("invalid options")
)

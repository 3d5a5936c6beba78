package path

import "errors"

// Path errors. Callers should use errors.Is, the returned errors carry the
// offending input in their message.
var (
	// ErrMalformedPath indicates an invalid character, an empty or
	// unterminated expression, or a missing separator after an expression.
	ErrMalformedPath = errors.New("malformed path")

	// ErrPathEscapesRoot indicates a ".." component that would go above an
	// absolute or expression root.
	ErrPathEscapesRoot = errors.New("cannot go back past the root")

	// ErrRootMismatch indicates an operation on two paths whose roots differ
	// (type or expression token).
	ErrRootMismatch = errors.New("path roots do not match")

	// ErrNotExpression indicates that an expression-rooted path was required.
	ErrNotExpression = errors.New("path is not rooted by an expression")

	// ErrNotRelative indicates that a relative path was required.
	ErrNotRelative = errors.New("path is not relative")
)

// Package path implements the structured path value used to address every
// storage.
//
// A Path is either relative, rooted at "/" or rooted at an expression such as
// <REPO:ARCHIVE>. Expression roots are placeholders that a storage resolves
// later through its resolver callback.
//
// Paths are immutable: every operation returns a new value and the string
// rendering is computed once when the value is built.
package path

import (
	"fmt"
	"strings"
)

// RootType tags how a path is rooted.
type RootType int

const (
	// RootNone is a relative path.
	RootNone RootType = iota
	// RootSlash is an absolute path rooted at "/".
	RootSlash
	// RootExpression is a path rooted at a named expression like <REPO:BACKUP>.
	RootExpression
)

func (r RootType) String() string {
	switch r {
	case RootNone:
		return "none"
	case RootSlash:
		return "slash"
	case RootExpression:
		return "expression"
	default:
		return fmt.Sprintf("RootType(%d)", int(r))
	}
}

const (
	separator = '/'
	current   = "."
	parent    = ".."
)

// Path is a parsed and cleaned path. The zero value is the empty relative
// path, rendered as ".".
type Path struct {
	root       RootType
	expression string
	components []string
	rendered   string
}

// Root returns the root token: "" for relative paths, "/" for absolute paths
// and the expression (brackets included) for expression paths.
func (p Path) Root() string {
	switch p.root {
	case RootSlash:
		return "/"
	case RootExpression:
		return p.expression
	default:
		return ""
	}
}

// RootType returns the root tag.
func (p Path) RootType() RootType { return p.root }

// Len returns the number of components after the root.
func (p Path) Len() int { return len(p.components) }

// Component returns the component at index i (0 is the first after the root).
func (p Path) Component(i int) string { return p.components[i] }

// Components returns a copy of the components after the root.
func (p Path) Components() []string {
	out := make([]string, len(p.components))
	copy(out, p.components)
	return out
}

// IsRelative reports whether the path has no root.
func (p Path) IsRelative() bool { return p.root == RootNone }

// IsAbsolute reports whether the path is rooted at "/".
func (p Path) IsAbsolute() bool { return p.root == RootSlash }

// IsExpression reports whether the path is rooted at an expression.
func (p Path) IsExpression() bool { return p.root == RootExpression }

// IsRoot reports whether the path is a bare root ("/" or "<EXPR>").
func (p Path) IsRoot() bool { return p.root != RootNone && len(p.components) == 0 }

// IsZero reports whether the path is the empty relative path.
func (p Path) IsZero() bool { return p.root == RootNone && len(p.components) == 0 }

// Name returns the last component, or "" when the path has none or ends in "..".
func (p Path) Name() string {
	if len(p.components) == 0 {
		return ""
	}
	name := p.components[len(p.components)-1]
	if name == parent {
		return ""
	}
	return name
}

// String renders the path. Rooted paths start with their root token and an
// empty relative path renders as ".".
func (p Path) String() string {
	if p.rendered == "" {
		return render(p.root, p.expression, p.components)
	}
	return p.rendered
}

// Equal reports whether both paths have the same root and the same components
// in the same order. Comparison is byte-wise.
func (p Path) Equal(other Path) bool {
	if p.root != other.root || p.expression != other.expression || len(p.components) != len(other.components) {
		return false
	}
	for i := range p.components {
		if p.components[i] != other.components[i] {
			return false
		}
	}
	return true
}

// MarshalText implements encoding.TextMarshaler.
func (p Path) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *Path) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

func render(root RootType, expression string, components []string) string {
	var sb strings.Builder
	switch root {
	case RootSlash:
		sb.WriteByte(separator)
	case RootExpression:
		sb.WriteString(expression)
		if len(components) > 0 {
			sb.WriteByte(separator)
		}
	default:
		if len(components) == 0 {
			return current
		}
	}
	for i, c := range components {
		if i > 0 {
			sb.WriteByte(separator)
		}
		sb.WriteString(c)
	}
	return sb.String()
}

// newPath finalizes a path from already validated and cleaned components.
func newPath(root RootType, expression string, components []string) Path {
	if len(components) == 0 {
		components = nil
	}
	return Path{
		root:       root,
		expression: expression,
		components: components,
		rendered:   render(root, expression, components),
	}
}

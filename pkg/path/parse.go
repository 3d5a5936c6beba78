package path

import (
	"fmt"
	"strings"
)

// Parse parses and cleans a path string.
//
// A leading "/" makes the path absolute. A leading "<" starts an expression
// root made of letters, digits and ':' that must be closed by '>' and
// followed by a separator or the end of the string. Components may not
// contain NUL. "." components are dropped and ".." components fold into
// their predecessor; going above an absolute or expression root is an error.
func Parse(s string) (Path, error) {
	b := NewBuilder()
	rest := s

	switch {
	case strings.HasPrefix(s, "/"):
		b.Slash()
		rest = s[1:]
	case strings.HasPrefix(s, "<"):
		expr, err := scanExpression(s)
		if err != nil {
			return Path{}, err
		}
		b.Expression(expr)
		rest = s[len(expr):]
	}

	for len(rest) > 0 {
		if rest[0] == separator {
			rest = rest[1:]
			continue
		}
		end := strings.IndexByte(rest, separator)
		if end < 0 {
			end = len(rest)
		}
		if strings.IndexByte(rest[:end], 0) >= 0 {
			return Path{}, fmt.Errorf("%w: invalid character in '%s'", ErrMalformedPath, strings.ReplaceAll(s, "\x00", "\\0"))
		}
		b.Append(rest[:end])
		rest = rest[end:]
	}

	p, err := b.Build()
	if err != nil {
		return Path{}, fmt.Errorf("'%s': %w", s, err)
	}
	return p, nil
}

// MustParse is Parse for constants and tests. It panics on error.
func MustParse(s string) Path {
	p, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return p
}

// scanExpression returns the expression token at the start of s, brackets
// included.
func scanExpression(s string) (string, error) {
	i := 1
	for i < len(s) && isExpressionChar(s[i]) {
		i++
	}
	if i >= len(s) || s[i] != '>' {
		return "", fmt.Errorf("%w: unterminated expression in '%s'", ErrMalformedPath, s)
	}
	i++
	if i < 3 {
		return "", fmt.Errorf("%w: empty expression in '%s'", ErrMalformedPath, s)
	}
	if i < len(s) && s[i] != separator {
		return "", fmt.Errorf("%w: expression in '%s' must be followed by a separator", ErrMalformedPath, s)
	}
	return s[:i], nil
}

func isExpressionChar(c byte) bool {
	return c == ':' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

// ValidExpression reports whether expr is a well formed expression token such
// as <REPO:ARCHIVE>.
func ValidExpression(expr string) bool {
	got, err := scanExpression(expr)
	return err == nil && got == expr
}

// Builder accumulates a root and components, validating each component as it
// is added. Build cleans the result.
type Builder struct {
	root       RootType
	expression string
	components []string
	err        error
}

// NewBuilder returns a builder for a relative path.
func NewBuilder() *Builder {
	return &Builder{}
}

// Slash roots the path at "/".
func (b *Builder) Slash() *Builder {
	b.root = RootSlash
	b.expression = ""
	return b
}

// Expression roots the path at expr, which must include its brackets.
func (b *Builder) Expression(expr string) *Builder {
	if !ValidExpression(expr) && b.err == nil {
		b.err = fmt.Errorf("%w: invalid expression '%s'", ErrMalformedPath, expr)
	}
	b.root = RootExpression
	b.expression = expr
	return b
}

// From seeds the builder with the root and components of p.
func (b *Builder) From(p Path) *Builder {
	b.root = p.root
	b.expression = p.expression
	b.components = append(b.components[:0], p.components...)
	return b
}

// Append adds components in order.
func (b *Builder) Append(components ...string) *Builder {
	for _, c := range components {
		if err := validateComponent(c); err != nil && b.err == nil {
			b.err = err
		}
		b.components = append(b.components, c)
	}
	return b
}

// Build cleans the accumulated components and returns the path.
func (b *Builder) Build() (Path, error) {
	if b.err != nil {
		return Path{}, b.err
	}
	comps, err := clean(b.root != RootNone, b.components)
	if err != nil {
		return Path{}, err
	}
	return newPath(b.root, b.expression, comps), nil
}

func validateComponent(c string) error {
	if c == "" {
		return fmt.Errorf("%w: empty component", ErrMalformedPath)
	}
	if strings.IndexByte(c, separator) >= 0 || strings.IndexByte(c, 0) >= 0 {
		return fmt.Errorf("%w: invalid character in component '%s'", ErrMalformedPath, strings.ReplaceAll(c, "\x00", "\\0"))
	}
	return nil
}

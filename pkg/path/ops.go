package path

import "fmt"

// join puts components after the root and components of base, then cleans.
func join(base Path, components []string) (Path, error) {
	all := make([]string, 0, len(base.components)+len(components))
	all = append(all, base.components...)
	all = append(all, components...)
	comps, err := clean(base.root != RootNone, all)
	if err != nil {
		return Path{}, err
	}
	return newPath(base.root, base.expression, comps), nil
}

// MakeAbsolute roots a relative path at base. Rooted paths are returned
// unchanged.
func (p Path) MakeAbsolute(base Path) (Path, error) {
	if p.root != RootNone {
		return p, nil
	}
	if base.root == RootNone {
		return Path{}, fmt.Errorf("%w: base '%s' must be rooted", ErrRootMismatch, base)
	}
	out, err := join(base, p.components)
	if err != nil {
		return Path{}, fmt.Errorf("'%s' in base '%s': %w", p, base, err)
	}
	return out, nil
}

// MakeRelativeTo returns the relative path that leads from base to p. Both
// paths must have the same root; a mismatch is ErrRootMismatch.
func (p Path) MakeRelativeTo(base Path) (Path, error) {
	if p.root == RootNone || p.root != base.root || p.expression != base.expression {
		return Path{}, fmt.Errorf("%w: '%s' is not comparable to '%s'", ErrRootMismatch, p, base)
	}

	i := 0
	for i < len(p.components) && i < len(base.components) && p.components[i] == base.components[i] {
		i++
	}

	comps := make([]string, 0, len(base.components)-i+len(p.components)-i)
	for range base.components[i:] {
		comps = append(comps, parent)
	}
	comps = append(comps, p.components[i:]...)

	out, err := clean(false, comps)
	if err != nil {
		return Path{}, err
	}
	return newPath(RootNone, "", out), nil
}

// ResolveExpression replaces the expression root of p with base, keeping the
// components of p after those of base. The result has the root of base.
func (p Path) ResolveExpression(base Path) (Path, error) {
	if p.root != RootExpression {
		return Path{}, fmt.Errorf("%w: '%s'", ErrNotExpression, p)
	}
	out, err := join(base, p.components)
	if err != nil {
		return Path{}, fmt.Errorf("resolve '%s' with '%s': %w", p, base, err)
	}
	return out, nil
}

// Join appends a relative path to p.
func (p Path) Join(rel Path) (Path, error) {
	if rel.root != RootNone {
		return Path{}, fmt.Errorf("%w: '%s'", ErrNotRelative, rel)
	}
	out, err := join(p, rel.components)
	if err != nil {
		return Path{}, fmt.Errorf("join '%s' to '%s': %w", rel, p, err)
	}
	return out, nil
}

// Append returns p with components added at the end. "." and ".." are
// allowed and cleaned.
func (p Path) Append(components ...string) (Path, error) {
	for _, c := range components {
		if err := validateComponent(c); err != nil {
			return Path{}, err
		}
	}
	out, err := join(p, components)
	if err != nil {
		return Path{}, fmt.Errorf("append to '%s': %w", p, err)
	}
	return out, nil
}

// Prepend returns p with components inserted right after the root.
func (p Path) Prepend(components ...string) (Path, error) {
	for _, c := range components {
		if err := validateComponent(c); err != nil {
			return Path{}, err
		}
	}
	all := make([]string, 0, len(components)+len(p.components))
	all = append(all, components...)
	all = append(all, p.components...)
	comps, err := clean(p.root != RootNone, all)
	if err != nil {
		return Path{}, fmt.Errorf("prepend to '%s': %w", p, err)
	}
	return newPath(p.root, p.expression, comps), nil
}

// SetName replaces the last component, or appends name when p has none.
func (p Path) SetName(name string) (Path, error) {
	if err := validateComponent(name); err != nil {
		return Path{}, err
	}
	if len(p.components) == 0 || p.Name() == "" {
		return p.Append(name)
	}
	comps := p.Components()
	comps[len(comps)-1] = name
	comps, err := clean(p.root != RootNone, comps)
	if err != nil {
		return Path{}, err
	}
	return newPath(p.root, p.expression, comps), nil
}

// Parent returns p with ".." appended and cleaned, which drops the last real
// component. The parent of a bare root is an error.
func (p Path) Parent() (Path, error) {
	return p.Append(parent)
}

// SetParent keeps the name of p and places it under dir.
func (p Path) SetParent(dir Path) (Path, error) {
	name := p.Name()
	if name == "" {
		return Path{}, fmt.Errorf("%w: '%s' has no name", ErrMalformedPath, p)
	}
	return dir.Append(name)
}

// IsRelativeTo reports whether p is base or lies below it. Both must share
// the same root. Every absolute path is relative to "/".
func (p Path) IsRelativeTo(base Path) bool {
	if p.root != base.root || p.expression != base.expression {
		return false
	}
	if len(base.components) > len(p.components) {
		return false
	}
	for i, c := range base.components {
		if p.components[i] != c {
			return false
		}
	}
	return true
}

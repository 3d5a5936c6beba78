package path

// clean reduces components left to right as a stack: "." is dropped and ".."
// pops the previous component unless that component is itself "..". A ".."
// with nothing to pop is kept on relative paths and rejected on rooted ones.
func clean(rooted bool, components []string) ([]string, error) {
	out := make([]string, 0, len(components))
	for _, c := range components {
		switch c {
		case current:
			continue
		case parent:
			if n := len(out); n > 0 && out[n-1] != parent {
				out = out[:n-1]
				continue
			}
			if rooted {
				return nil, ErrPathEscapesRoot
			}
			out = append(out, c)
		default:
			out = append(out, c)
		}
	}
	return out, nil
}

// Clean returns p with "." and ".." reduced. Paths returned by this package are
// always clean, so Clean only revalidates and is idempotent.
func (p Path) Clean() (Path, error) {
	comps, err := clean(p.root != RootNone, p.components)
	if err != nil {
		return Path{}, err
	}
	return newPath(p.root, p.expression, comps), nil
}

package pickle

import (
	"strings"

	"github.com/robert-malhotra/go-h5pickle/store"
)

// Patterns address nodes by path: "/"-separated segments where a literal
// segment matches exactly, "*" matches any single segment, and "**"
// matches any run of segments including none. A trailing "@attr" suffix
// selects an attribute of the matched node instead of the node itself.

// FindGroup returns the first group under root whose path relative to
// root matches pattern. Children are visited depth-first in name order,
// so the match is deterministic. Root itself is a candidate for patterns
// that reduce to the empty path, such as "**".
func FindGroup(root *store.Group, pattern string) (*store.Group, error) {
	segs := splitPattern(pattern)
	if g := findGroup(root, nil, segs); g != nil {
		return g, nil
	}
	return nil, &PatternNotFoundError{Pattern: pattern}
}

func splitPattern(pattern string) []string {
	pattern = strings.Trim(pattern, "/")
	if pattern == "" {
		return nil
	}
	return strings.Split(pattern, "/")
}

func findGroup(g *store.Group, path, pattern []string) *store.Group {
	if matchSegments(pattern, path) {
		return g
	}
	names := g.Members()
	sortStrings(names)
	for _, name := range names {
		child, err := g.OpenGroup(name)
		if err != nil {
			continue // datasets are not addressable by pattern
		}
		if found := findGroup(child, append(path, name), pattern); found != nil {
			return found
		}
	}
	return nil
}

func matchSegments(pattern, path []string) bool {
	for {
		switch {
		case len(pattern) == 0:
			return len(path) == 0
		case pattern[0] == "**":
			if matchSegments(pattern[1:], path) {
				return true
			}
			if len(path) == 0 {
				return false
			}
			path = path[1:]
		case len(path) == 0:
			return false
		case pattern[0] == "*" || pattern[0] == path[0]:
			pattern = pattern[1:]
			path = path[1:]
		default:
			return false
		}
	}
}

// LoadByPattern locates the first node under root matching pattern and
// reconstructs it. A "@attr" suffix returns the named attribute of the
// matched node instead. Matched groups without a type tag load as a plain
// map of their contents.
func (e *Engine) LoadByPattern(root *store.Group, pattern string) (any, error) {
	objPattern, attr := pattern, ""
	if strings.Contains(pattern, "@") {
		var err error
		objPattern, attr, err = store.ParseAttrPath(pattern)
		if err != nil {
			return nil, err
		}
	}

	grp, err := FindGroup(root, objPattern)
	if err != nil {
		return nil, err
	}
	if attr != "" {
		v, ok := grp.Attr(attr)
		if !ok {
			return nil, &PatternNotFoundError{Pattern: pattern}
		}
		return v, nil
	}
	if !grp.HasAttr(AttrTypeName) {
		return e.loadGroupAsMap(grp)
	}
	return e.LoadFrom(grp)
}

// loadGroupAsMap reconstructs an untagged group as map[string]any: every
// non-reserved attribute becomes an entry, every tagged child group loads
// recursively, every untagged child group becomes a nested map, and every
// dataset reads back as its native slice.
func (e *Engine) loadGroupAsMap(grp *store.Group) (map[string]any, error) {
	out := make(map[string]any)

	for _, name := range grp.Attrs() {
		if IsReservedAttr(name) {
			continue
		}
		v, _ := grp.Attr(name)
		out[name] = v
	}

	for _, name := range grp.Members() {
		if ds, err := grp.OpenDataset(name); err == nil {
			v, err := ds.ReadValue()
			if err != nil {
				return nil, err
			}
			out[name] = v
			continue
		}
		child, err := grp.OpenGroup(name)
		if err != nil {
			return nil, err
		}
		if child.HasAttr(AttrTypeName) {
			v, err := e.LoadFrom(child)
			if err != nil {
				return nil, err
			}
			out[name] = v
		} else {
			v, err := e.loadGroupAsMap(child)
			if err != nil {
				return nil, err
			}
			out[name] = v
		}
	}
	return out, nil
}

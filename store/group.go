package store

import (
	"fmt"
	"path"
)

// Group is a namespace node: an ordered collection of named child groups
// and datasets, plus small scalar attributes.
type Group struct {
	attrList

	file     *File
	parent   *Group
	name     string
	children []child
}

// child is either a group or a dataset, never both.
type child struct {
	name    string
	group   *Group
	dataset *Dataset
}

// Name returns the group's own name. The root group is named "/".
func (g *Group) Name() string {
	if g.parent == nil {
		return "/"
	}
	return g.name
}

// Path returns the absolute path of the group within the file.
func (g *Group) Path() string {
	if g.parent == nil {
		return "/"
	}
	return path.Join(g.parent.Path(), g.name)
}

// File returns the file the group belongs to.
func (g *Group) File() *File {
	return g.file
}

func (g *Group) index(name string) int {
	for i := range g.children {
		if g.children[i].name == name {
			return i
		}
	}
	return -1
}

// Exists reports whether a child (group or dataset) with the given name exists.
func (g *Group) Exists(name string) bool {
	return g.index(name) >= 0
}

// Members returns the child names in insertion order.
func (g *Group) Members() []string {
	out := make([]string, len(g.children))
	for i := range g.children {
		out[i] = g.children[i].name
	}
	return out
}

// NumObjects returns the number of children.
func (g *Group) NumObjects() int {
	return len(g.children)
}

// CreateGroup creates a new subgroup with the given name.
func (g *Group) CreateGroup(name string) (*Group, error) {
	if err := g.file.checkWritable(); err != nil {
		return nil, err
	}
	if err := validName(name); err != nil {
		return nil, err
	}
	if g.Exists(name) {
		return nil, fmt.Errorf("creating group %q in %q: %w", name, g.Path(), ErrExists)
	}

	sub := &Group{file: g.file, parent: g, name: name}
	g.children = append(g.children, child{name: name, group: sub})
	g.file.dirty = true
	return sub, nil
}

// CreateDataset creates a dataset holding the given data, which must be a
// slice of a numeric, bool, or string element type. The dataset shape
// defaults to one dimension of the slice length; use Dataset.SetShape for
// multidimensional payloads.
func (g *Group) CreateDataset(name string, data any) (*Dataset, error) {
	if err := g.file.checkWritable(); err != nil {
		return nil, err
	}
	if err := validName(name); err != nil {
		return nil, err
	}
	if g.Exists(name) {
		return nil, fmt.Errorf("creating dataset %q in %q: %w", name, g.Path(), ErrExists)
	}

	ds, err := newDataset(g, name, data)
	if err != nil {
		return nil, err
	}
	g.children = append(g.children, child{name: name, dataset: ds})
	g.file.dirty = true
	return ds, nil
}

// Delete removes the named child and its whole subtree.
func (g *Group) Delete(name string) error {
	if err := g.file.checkWritable(); err != nil {
		return err
	}
	i := g.index(name)
	if i < 0 {
		return fmt.Errorf("deleting %q from %q: %w", name, g.Path(), ErrNotFound)
	}
	g.children = append(g.children[:i], g.children[i+1:]...)
	g.file.dirty = true
	return nil
}

// OpenGroup opens a subgroup by relative path.
func (g *Group) OpenGroup(relativePath string) (*Group, error) {
	obj, err := g.open(relativePath)
	if err != nil {
		return nil, err
	}
	sub, ok := obj.(*Group)
	if !ok {
		return nil, fmt.Errorf("%q: %w", relativePath, ErrNotGroup)
	}
	return sub, nil
}

// OpenDataset opens a dataset by relative path.
func (g *Group) OpenDataset(relativePath string) (*Dataset, error) {
	obj, err := g.open(relativePath)
	if err != nil {
		return nil, err
	}
	ds, ok := obj.(*Dataset)
	if !ok {
		return nil, fmt.Errorf("%q: %w", relativePath, ErrNotDataset)
	}
	return ds, nil
}

// Open opens a child object (group or dataset) by relative path.
func (g *Group) Open(relativePath string) (any, error) {
	return g.open(relativePath)
}

func (g *Group) open(relativePath string) (any, error) {
	parts := SplitPath(relativePath)
	if len(parts) == 0 {
		return g, nil
	}

	current := g
	for i, name := range parts {
		idx := current.index(name)
		if idx < 0 {
			return nil, fmt.Errorf("%q in %q: %w", name, current.Path(), ErrNotFound)
		}
		c := current.children[idx]

		if i == len(parts)-1 {
			if c.group != nil {
				return c.group, nil
			}
			return c.dataset, nil
		}

		if c.group == nil {
			return nil, fmt.Errorf("%q in path %q: %w", name, relativePath, ErrNotGroup)
		}
		current = c.group
	}

	// Unreachable: the loop always returns on the last component.
	return nil, ErrNotFound
}

// SetAttr sets a scalar attribute on the group. Supported value types are
// bool, signed and unsigned integers, floats, string, and []byte.
func (g *Group) SetAttr(name string, value any) error {
	if err := g.file.checkWritable(); err != nil {
		return err
	}
	if err := g.set(name, value); err != nil {
		return fmt.Errorf("setting attribute %q on %q: %w", name, g.Path(), err)
	}
	g.file.dirty = true
	return nil
}

// Attr returns the named attribute value, normalized to one of bool,
// int64, uint64, float64, string, or []byte.
func (g *Group) Attr(name string) (any, bool) {
	return g.get(name)
}

// Attrs returns the attribute names in insertion order.
func (g *Group) Attrs() []string {
	return g.names()
}

// HasAttr reports whether the group has the named attribute.
func (g *Group) HasAttr(name string) bool {
	return g.has(name)
}

// DeleteAttr removes the named attribute if present.
func (g *Group) DeleteAttr(name string) error {
	if err := g.file.checkWritable(); err != nil {
		return err
	}
	if g.delete(name) {
		g.file.dirty = true
	}
	return nil
}

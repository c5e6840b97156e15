package store

import (
	"errors"
	"path"
)

// ErrStopWalk can be returned from a WalkFunc to stop traversal early.
// Walk swallows it and returns nil.
var ErrStopWalk = errors.New("stop walk")

// WalkFunc is called for each object during traversal. obj is either
// *Group or *Dataset. Return ErrStopWalk to stop, or any other error to
// abort the walk with that error.
type WalkFunc func(path string, obj any) error

// Walk traverses all groups and datasets under g in child insertion order,
// calling fn for each object including g itself.
func Walk(g *Group, fn WalkFunc) error {
	err := walkGroup(g, fn)
	if errors.Is(err, ErrStopWalk) {
		return nil
	}
	return err
}

func walkGroup(g *Group, fn WalkFunc) error {
	if err := fn(g.Path(), g); err != nil {
		return err
	}

	for _, c := range g.children {
		if c.group != nil {
			if err := walkGroup(c.group, fn); err != nil {
				return err
			}
			continue
		}
		if err := fn(path.Join(g.Path(), c.name), c.dataset); err != nil {
			return err
		}
	}
	return nil
}

package pickle

import "fmt"

// TypeResolutionError is returned when a persisted type tag cannot be
// mapped back to a Go type at load time, usually because the owning
// package never registered the type in this process.
type TypeResolutionError struct {
	Tag string
	Err error
}

func (e *TypeResolutionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("cannot resolve type tag %q: %v", e.Tag, e.Err)
	}
	return fmt.Sprintf("cannot resolve type tag %q", e.Tag)
}

func (e *TypeResolutionError) Unwrap() error { return e.Err }

// NameCollisionError is returned when a dump would overwrite an existing
// sibling and overwriting was not requested. The existing sibling is left
// untouched.
type NameCollisionError struct {
	Parent string
	Name   string
}

func (e *NameCollisionError) Error() string {
	return fmt.Sprintf("name %q already exists in group %q", e.Name, e.Parent)
}

// MalformedPickleError is returned when a structural expectation is
// violated: a missing type attribute, a missing expected child, or a
// payload that does not decode.
type MalformedPickleError struct {
	Path   string
	Reason string
}

func (e *MalformedPickleError) Error() string {
	return fmt.Sprintf("malformed pickle at %q: %s", e.Path, e.Reason)
}

// ReconstructionError is returned when a loader was resolved and invoked
// but reconstruction of the object failed. It wraps the original cause.
type ReconstructionError struct {
	Path string
	Err  error
}

func (e *ReconstructionError) Error() string {
	return fmt.Sprintf("reconstructing object at %q: %v", e.Path, e.Err)
}

func (e *ReconstructionError) Unwrap() error { return e.Err }

// PatternNotFoundError is returned when a pattern lookup matches nothing.
type PatternNotFoundError struct {
	Pattern string
}

func (e *PatternNotFoundError) Error() string {
	return fmt.Sprintf("no match for pattern %q", e.Pattern)
}

// DispatchError reports a dispatch that resolved to nothing. Given the
// generic fallback this should be unreachable; it exists to surface
// registry bugs instead of hiding them.
type DispatchError struct {
	Type string
}

func (e *DispatchError) Error() string {
	return fmt.Sprintf("no dump or load function for type %s", e.Type)
}

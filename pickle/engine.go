// Package pickle persists Go object graphs into a hierarchical container
// with native groups, attributes, and datasets instead of a flat byte
// stream. A registry-based dispatch engine picks a structural encoding per
// runtime type and falls back to a generic byte codec for everything else.
package pickle

import (
	"errors"
	"fmt"
	"reflect"

	"go.uber.org/zap"

	"github.com/robert-malhotra/go-h5pickle/store"
)

// Reserved attribute keys carried by every structurally encoded group.
// Object field names never collide with these: the engine rejects them.
const (
	// AttrTypeName holds the type identity tag.
	AttrTypeName = "__type_name"
	// AttrPickle marks a generic-fallback payload; its value names the
	// byte codec used.
	AttrPickle = "__pickle"
	// AttrVersion holds the pickling layout version.
	AttrVersion = "__version"
)

// Version is the pickling layout version written to every object group.
const Version = 2

// DefaultAttributeSizeLimit is the payload size below which byte payloads
// are stored as attributes rather than datasets.
const DefaultAttributeSizeLimit = 1 << 13

var reservedAttrs = []string{AttrTypeName, AttrPickle, AttrVersion}

// IsReservedAttr reports whether name is reserved for engine metadata.
func IsReservedAttr(name string) bool {
	for _, r := range reservedAttrs {
		if name == r {
			return true
		}
	}
	return false
}

// Engine orchestrates dump and load against a dispatch registry. Engines
// are cheap; tests construct a fresh registry and engine per case to stay
// hermetic.
type Engine struct {
	reg       *Registry
	log       *zap.Logger
	attrLimit int
}

// EngineOption configures an engine.
type EngineOption func(*Engine)

// WithLogger sets the engine's debug logger.
func WithLogger(log *zap.Logger) EngineOption {
	return func(e *Engine) {
		e.log = log
	}
}

// WithAttributeSizeLimit overrides the attribute-vs-dataset payload
// threshold. Both storage forms load identically.
func WithAttributeSizeLimit(n int) EngineOption {
	return func(e *Engine) {
		e.attrLimit = n
	}
}

// NewEngine returns an engine dispatching through reg.
func NewEngine(reg *Registry, opts ...EngineOption) *Engine {
	e := &Engine{
		reg:       reg,
		log:       zap.NewNop(),
		attrLimit: DefaultAttributeSizeLimit,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Registry returns the engine's dispatch registry.
func (e *Engine) Registry() *Registry {
	return e.reg
}

type dumpConfig struct {
	overwrite bool
}

// DumpOption configures a single dump call.
type DumpOption func(*dumpConfig)

// WithOverwrite allows a dump to replace an existing sibling of the same
// name. Without it a collision fails fast with NameCollisionError.
func WithOverwrite() DumpOption {
	return func(c *dumpConfig) {
		c.overwrite = true
	}
}

// DumpTo serializes obj as a new child group of parent. An empty name is
// replaced by a generated collision-free positional name. The returned
// group is the node just written.
func (e *Engine) DumpTo(parent *store.Group, name string, obj any, opts ...DumpOption) (*store.Group, error) {
	var cfg dumpConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	if name == "" {
		name = nextName(parent)
	} else if parent.Exists(name) {
		if !cfg.overwrite {
			return nil, &NameCollisionError{Parent: parent.Path(), Name: name}
		}
		if err := parent.Delete(name); err != nil {
			return nil, err
		}
	}

	grp, err := parent.CreateGroup(name)
	if err != nil {
		return nil, err
	}
	if err := e.DumpInto(grp, obj); err != nil {
		// Do not leave a half-written sibling behind.
		_ = parent.Delete(name)
		return nil, err
	}
	return grp, nil
}

// DumpInto serializes obj into an existing group, tagging the group
// itself. This is how top-level objects occupy the root group.
func (e *Engine) DumpInto(grp *store.Group, obj any) error {
	if grp.HasAttr(AttrTypeName) {
		return fmt.Errorf("group %q already holds an object", grp.Path())
	}

	t := typeOfValue(obj)
	fn, isFallback := e.reg.resolveDump(t)
	if fn == nil {
		return &DispatchError{Type: typeString(t)}
	}

	tag := e.reg.encodeTag(t)
	if err := grp.SetAttr(AttrTypeName, tag); err != nil {
		return err
	}
	if err := grp.SetAttr(AttrVersion, int64(Version)); err != nil {
		return err
	}
	if isFallback {
		if err := grp.SetAttr(AttrPickle, "gob"); err != nil {
			return err
		}
	}

	e.log.Debug("dump",
		zap.String("path", grp.Path()),
		zap.String("tag", tag),
		zap.Bool("fallback", isFallback))

	w := &Writer{eng: e, grp: grp}
	if err := fn(w, obj); err != nil {
		return fmt.Errorf("dumping %s at %q: %w", tag, grp.Path(), err)
	}
	return nil
}

// LoadFrom reconstructs the object stored in grp. A missing type tag is a
// MalformedPickleError; an unresolvable tag is a TypeResolutionError; a
// loader failure surfaces as a ReconstructionError wrapping the cause.
func (e *Engine) LoadFrom(grp *store.Group) (any, error) {
	raw, ok := grp.Attr(AttrTypeName)
	if !ok {
		return nil, &MalformedPickleError{Path: grp.Path(), Reason: "missing " + AttrTypeName + " attribute"}
	}
	tag, ok := raw.(string)
	if !ok {
		return nil, &MalformedPickleError{Path: grp.Path(), Reason: AttrTypeName + " attribute is not a string"}
	}

	r := &Reader{eng: e, grp: grp}

	// Fallback payloads decode unconditionally through the byte codec;
	// the tag is informational there.
	if grp.HasAttr(AttrPickle) {
		e.log.Debug("load", zap.String("path", grp.Path()), zap.String("tag", tag), zap.Bool("fallback", true))
		return e.invoke(loadFallback, r)
	}

	if tag == tagNone {
		return nil, nil
	}

	t, err := e.reg.decodeTag(tag)
	if err != nil {
		return nil, err
	}
	fn, _ := e.reg.resolveLoad(t)
	if fn == nil {
		return nil, &DispatchError{Type: typeString(t)}
	}

	e.log.Debug("load", zap.String("path", grp.Path()), zap.String("tag", tag))

	r.target = t
	return e.invoke(fn, r)
}

// invoke runs a load function, converting panics and foreign errors into
// ReconstructionError while letting the engine's own error taxonomy pass
// through untouched.
func (e *Engine) invoke(fn LoadFunc, r *Reader) (obj any, err error) {
	defer func() {
		if p := recover(); p != nil {
			obj = nil
			err = &ReconstructionError{Path: r.grp.Path(), Err: fmt.Errorf("panic: %v", p)}
		}
	}()

	obj, err = fn(r)
	if err != nil && !isEngineError(err) {
		err = &ReconstructionError{Path: r.grp.Path(), Err: err}
	}
	if err != nil {
		return nil, err
	}
	return obj, nil
}

func isEngineError(err error) bool {
	var (
		trErr *TypeResolutionError
		ncErr *NameCollisionError
		mpErr *MalformedPickleError
		rcErr *ReconstructionError
		pnErr *PatternNotFoundError
		dpErr *DispatchError
	)
	return errors.As(err, &trErr) ||
		errors.As(err, &ncErr) ||
		errors.As(err, &mpErr) ||
		errors.As(err, &rcErr) ||
		errors.As(err, &pnErr) ||
		errors.As(err, &dpErr)
}

func typeOfValue(obj any) reflect.Type {
	if obj == nil {
		return nil
	}
	return reflect.TypeOf(obj)
}

func typeString(t reflect.Type) string {
	if t == nil {
		return "<nil>"
	}
	return t.String()
}

// Writer is the scoped view handed to dump functions. It wraps the group
// being written and carries the engine reference so structural functions
// can recurse without subclassing anything.
type Writer struct {
	eng *Engine
	grp *store.Group
}

// Engine returns the engine driving this dump.
func (w *Writer) Engine() *Engine { return w.eng }

// Group returns the group being written.
func (w *Writer) Group() *store.Group { return w.grp }

// Path returns the absolute path of the group being written.
func (w *Writer) Path() string { return w.grp.Path() }

// SetAttr stores a scalar attribute on the object's group. Reserved
// metadata keys are rejected.
func (w *Writer) SetAttr(name string, value any) error {
	if IsReservedAttr(name) {
		return fmt.Errorf("attribute name %q is reserved", name)
	}
	return w.grp.SetAttr(name, value)
}

// CreateDataset stores a bulk array payload under the object's group.
func (w *Writer) CreateDataset(name string, data any) (*store.Dataset, error) {
	return w.grp.CreateDataset(name, data)
}

// Dump recursively serializes a nested value as a child of the object's
// group. An empty name generates a positional one.
func (w *Writer) Dump(name string, obj any) (*store.Group, error) {
	return w.eng.DumpTo(w.grp, name, obj)
}

// DumpBytes stores an opaque byte payload under the given name, as an
// attribute when small and a dataset when large. Reader.LoadBytes reads
// either form back.
func (w *Writer) DumpBytes(name string, payload []byte) error {
	if len(payload) < w.eng.attrLimit {
		return w.grp.SetAttr(name, payload)
	}
	_, err := w.grp.CreateDataset(name, payload)
	return err
}

// Reader is the scoped view handed to load functions.
type Reader struct {
	eng    *Engine
	grp    *store.Group
	target reflect.Type
}

// Engine returns the engine driving this load.
func (r *Reader) Engine() *Engine { return r.eng }

// Group returns the group being read.
func (r *Reader) Group() *store.Group { return r.grp }

// Path returns the absolute path of the group being read.
func (r *Reader) Path() string { return r.grp.Path() }

// TargetType returns the type decoded from the group's tag. Custom load
// functions registered for a single type may ignore it; shared loaders
// use it to construct the exact persisted type.
func (r *Reader) TargetType() reflect.Type { return r.target }

// Attr returns a scalar attribute of the object's group.
func (r *Reader) Attr(name string) (any, bool) {
	return r.grp.Attr(name)
}

// Dataset opens a dataset child by name.
func (r *Reader) Dataset(name string) (*store.Dataset, error) {
	return r.grp.OpenDataset(name)
}

// HasChild reports whether a child node with the given name exists.
func (r *Reader) HasChild(name string) bool {
	return r.grp.Exists(name)
}

// Load recursively reconstructs the child object with the given name.
func (r *Reader) Load(name string) (any, error) {
	child, err := r.grp.OpenGroup(name)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, &MalformedPickleError{Path: r.grp.Path(), Reason: "missing expected child " + name}
		}
		return nil, err
	}
	return r.eng.LoadFrom(child)
}

// LoadBytes reads back a payload written by Writer.DumpBytes, whichever
// storage form was chosen.
func (r *Reader) LoadBytes(name string) ([]byte, error) {
	if raw, ok := r.grp.Attr(name); ok {
		b, ok := raw.([]byte)
		if !ok {
			return nil, &MalformedPickleError{Path: r.grp.Path(), Reason: "attribute " + name + " is not a byte payload"}
		}
		return b, nil
	}
	ds, err := r.grp.OpenDataset(name)
	if err != nil {
		return nil, &MalformedPickleError{Path: r.grp.Path(), Reason: "missing byte payload " + name}
	}
	return ds.ReadRaw()
}

// Children returns the names of child nodes in lexicographic order, which
// for generated names equals insertion order.
func (r *Reader) Children() []string {
	names := r.grp.Members()
	sortStrings(names)
	return names
}

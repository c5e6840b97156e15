package pickle

import (
	"encoding/gob"
	"fmt"
	"reflect"

	"go.uber.org/zap"
)

// DumpFunc writes one object into the already-created and already-tagged
// group wrapped by w. It may recurse into the engine through w.Dump.
type DumpFunc func(w *Writer, obj any) error

// LoadFunc reconstructs one object from the group wrapped by r. It may
// recurse into the engine through r.Load.
type LoadFunc func(r *Reader) (any, error)

// Registry holds the type-dispatch tables: one open-ended mapping from
// type to dump function and one from type to load function, plus the
// type-name registry the tag codec resolves against. Registration is
// additive for the process lifetime; re-registering an exact type
// replaces the previous entry.
type Registry struct {
	dumpers map[reflect.Type]DumpFunc
	loaders map[reflect.Type]LoadFunc

	// Interface registrations, kept in registration order. Resolution
	// checks them newest first so later extensions win.
	dumpIfaces []ifaceEntry[DumpFunc]
	loadIfaces []ifaceEntry[LoadFunc]

	names     map[string]reflect.Type
	typeNames map[reflect.Type]string

	log *zap.Logger
}

type ifaceEntry[F any] struct {
	iface reflect.Type
	fn    F
}

// RegistryOption configures a new registry.
type RegistryOption func(*Registry)

// WithRegistryLogger sets the logger used to report registration
// replacements.
func WithRegistryLogger(log *zap.Logger) RegistryOption {
	return func(r *Registry) {
		r.log = log
	}
}

// NewRegistry returns an empty registry. Built-in scalar and container
// kinds are handled structurally without explicit entries; the generic
// gob fallback covers everything else.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		dumpers:   make(map[reflect.Type]DumpFunc),
		loaders:   make(map[reflect.Type]LoadFunc),
		names:     make(map[string]reflect.Type),
		typeNames: make(map[reflect.Type]string),
		log:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// typeOf normalizes a registration target: a reflect.Type is used as-is,
// a pointer-to-interface names the interface type, anything else names
// its own runtime type.
func typeOf(v any) reflect.Type {
	if t, ok := v.(reflect.Type); ok {
		return t
	}
	t := reflect.TypeOf(v)
	if t != nil && t.Kind() == reflect.Pointer && t.Elem().Kind() == reflect.Interface {
		return t.Elem()
	}
	return t
}

// Register records the type of v in the tag-name registry under its
// qualified name and registers it with the gob fallback codec. Struct
// types additionally become eligible for the reflective structural codec.
func (r *Registry) Register(v any) {
	t := typeOf(v)
	r.RegisterName(t.PkgPath()+"."+t.Name(), v)
}

// RegisterName is like Register with an explicit tag name.
func (r *Registry) RegisterName(name string, v any) {
	t := typeOf(v)
	if t == nil || t.Name() == "" {
		panic(fmt.Sprintf("pickle: cannot register unnamed type %v", t))
	}

	if old, ok := r.names[name]; ok && old != t {
		r.log.Debug("replacing type-name registration",
			zap.String("name", name),
			zap.String("old", old.String()),
			zap.String("new", t.String()))
	}
	r.names[name] = t
	r.typeNames[t] = name

	gob.RegisterName(name, reflect.New(t).Elem().Interface())
}

// RegisterDump installs fn as the dump function for the exact type of v
// (or the interface type when v is a pointer to an interface). An existing
// registration for the same type is replaced silently.
func (r *Registry) RegisterDump(v any, fn DumpFunc) {
	t := typeOf(v)
	if t == nil {
		panic("pickle: cannot register a dump function for the nil type")
	}

	if t.Kind() == reflect.Interface {
		r.dumpIfaces = append(r.dumpIfaces, ifaceEntry[DumpFunc]{iface: t, fn: fn})
		return
	}

	if _, ok := r.dumpers[t]; ok {
		r.log.Debug("replacing dump registration", zap.String("type", t.String()))
	}
	r.dumpers[t] = fn
	r.ensureNamed(t)
}

// RegisterLoad installs fn as the load function for the exact type of v.
func (r *Registry) RegisterLoad(v any, fn LoadFunc) {
	t := typeOf(v)
	if t == nil {
		panic("pickle: cannot register a load function for the nil type")
	}

	if t.Kind() == reflect.Interface {
		r.loadIfaces = append(r.loadIfaces, ifaceEntry[LoadFunc]{iface: t, fn: fn})
		return
	}

	if _, ok := r.loaders[t]; ok {
		r.log.Debug("replacing load registration", zap.String("type", t.String()))
	}
	r.loaders[t] = fn
	r.ensureNamed(t)
}

// ensureNamed makes a custom-handled named type resolvable from its tag
// without a separate Register call.
func (r *Registry) ensureNamed(t reflect.Type) {
	base := t
	for base.Kind() == reflect.Pointer {
		base = base.Elem()
	}
	if base.Name() == "" || base.PkgPath() == "" {
		return
	}
	if _, ok := r.typeNames[base]; !ok {
		name := base.PkgPath() + "." + base.Name()
		r.names[name] = base
		r.typeNames[base] = name
	}
}

func (r *Registry) nameOf(t reflect.Type) (string, bool) {
	name, ok := r.typeNames[t]
	return name, ok
}

func (r *Registry) typeOfName(name string) (reflect.Type, bool) {
	t, ok := r.names[name]
	return t, ok
}

// isRegistered reports whether t participates in structural encoding as a
// named type (either through a name registration or a custom handler).
func (r *Registry) isRegistered(t reflect.Type) bool {
	if _, ok := r.typeNames[t]; ok {
		return true
	}
	if _, ok := r.dumpers[t]; ok {
		return true
	}
	_, ok := r.loaders[t]
	return ok
}

// resolveDump returns the dump function for the runtime type t: the exact
// entry, else the nearest registered embedded ancestor, else the newest
// matching interface registration, else the builtin structural handler for
// the kind, else the generic fallback. The returned flag reports the
// fallback path.
func (r *Registry) resolveDump(t reflect.Type) (DumpFunc, bool) {
	if t == nil {
		return dumpNil, false
	}
	if fn, ok := r.dumpers[t]; ok {
		return fn, false
	}

	for _, at := range ancestorChain(t) {
		if fn, ok := r.dumpers[at]; ok {
			return fn, false
		}
	}

	for i := len(r.dumpIfaces) - 1; i >= 0; i-- {
		entry := r.dumpIfaces[i]
		if t.Implements(entry.iface) || reflect.PointerTo(t).Implements(entry.iface) {
			return entry.fn, false
		}
	}

	if fn := r.builtinDump(t); fn != nil {
		return fn, false
	}
	return dumpFallback, true
}

// resolveLoad mirrors resolveDump for the load direction.
func (r *Registry) resolveLoad(t reflect.Type) (LoadFunc, bool) {
	if t == nil {
		return loadNil, false
	}
	if fn, ok := r.loaders[t]; ok {
		return fn, false
	}

	for _, at := range ancestorChain(t) {
		if fn, ok := r.loaders[at]; ok {
			return fn, false
		}
	}

	for i := len(r.loadIfaces) - 1; i >= 0; i-- {
		entry := r.loadIfaces[i]
		if t.Implements(entry.iface) || reflect.PointerTo(t).Implements(entry.iface) {
			return entry.fn, false
		}
	}

	if fn := r.builtinLoad(t); fn != nil {
		return fn, false
	}
	return loadFallback, true
}

// ancestorChain returns the embedded-type ancestors of t in breadth-first
// order, nearest level first. This is the static Go analog of a
// method-resolution-order walk: a type embedding another inherits its
// registered encoding unless it registers its own.
func ancestorChain(t reflect.Type) []reflect.Type {
	base := t
	if base.Kind() == reflect.Pointer {
		base = base.Elem()
	}
	if base.Kind() != reflect.Struct {
		return nil
	}

	var chain []reflect.Type
	seen := map[reflect.Type]bool{base: true}
	queue := embeddedTypes(base)

	for len(queue) > 0 {
		at := queue[0]
		queue = queue[1:]
		if seen[at] {
			continue
		}
		seen[at] = true
		chain = append(chain, at)
		if at.Kind() == reflect.Struct {
			queue = append(queue, embeddedTypes(at)...)
		}
	}
	return chain
}

func embeddedTypes(t reflect.Type) []reflect.Type {
	var out []reflect.Type
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.Anonymous {
			continue
		}
		ft := f.Type
		if ft.Kind() == reflect.Pointer {
			ft = ft.Elem()
		}
		out = append(out, ft)
	}
	return out
}

// tagDecodable reports whether the tag written for t would resolve back
// to t at load time. Composites over unregistered named types, non-empty
// interfaces, and anonymous structs produce tags this process cannot
// decode, so they must not be encoded structurally.
func (r *Registry) tagDecodable(t reflect.Type) bool {
	if t == nil {
		return true
	}
	if _, ok := r.typeNames[t]; ok {
		return true
	}
	switch t.Kind() {
	case reflect.Slice, reflect.Array, reflect.Pointer:
		return r.tagDecodable(t.Elem())
	case reflect.Map:
		return r.tagDecodable(t.Key()) && r.tagDecodable(t.Elem())
	case reflect.Interface:
		return t == typeAny
	}
	return t.PkgPath() == "" && t.Name() != ""
}

// builtinDump returns the structural handler for builtin kinds. Named
// types outside the builtin set take part only after registration, so an
// unregistered type can never accidentally shadow the generic fallback.
func (r *Registry) builtinDump(t reflect.Type) DumpFunc {
	if !r.builtinEligible(t) || !r.tagDecodable(t) {
		return nil
	}
	switch t.Kind() {
	case reflect.Bool, reflect.String,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return dumpScalar
	case reflect.Slice:
		if t.Elem().Kind() == reflect.Uint8 {
			return dumpBytes
		}
		return dumpSequence
	case reflect.Array:
		return dumpSequence
	case reflect.Map:
		if !scalarKind(t.Key().Kind()) {
			return nil // unsupported key type, use the fallback
		}
		if t.Elem() == typeUnit {
			return dumpSet
		}
		return dumpMap
	case reflect.Pointer:
		if t.Elem().Kind() == reflect.Interface {
			// The pointee's concrete type would be lost; let the
			// fallback codec carry it.
			return nil
		}
		return dumpPointer
	case reflect.Struct:
		return dumpStruct
	}
	return nil
}

func (r *Registry) builtinLoad(t reflect.Type) LoadFunc {
	if !r.builtinEligible(t) {
		return nil
	}
	switch t.Kind() {
	case reflect.Bool, reflect.String,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return loadScalar
	case reflect.Slice:
		if t.Elem().Kind() == reflect.Uint8 {
			return loadBytes
		}
		return loadSequence
	case reflect.Array:
		return loadSequence
	case reflect.Map:
		if !scalarKind(t.Key().Kind()) && t.Key() != typeAny {
			return nil
		}
		if t.Elem() == typeUnit {
			return loadSet
		}
		return loadMap
	case reflect.Pointer:
		if t.Elem().Kind() == reflect.Interface {
			return nil
		}
		return loadPointer
	case reflect.Struct:
		return loadStruct
	}
	return nil
}

// builtinEligible reports whether t may use the builtin structural
// handlers: predeclared types, unnamed composites, and registered named
// types qualify; unregistered named types go through the fallback.
func (r *Registry) builtinEligible(t reflect.Type) bool {
	if t.Name() == "" || t.PkgPath() == "" {
		return true
	}
	return r.isRegistered(t)
}

func scalarKind(k reflect.Kind) bool {
	switch k {
	case reflect.Bool, reflect.String,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}

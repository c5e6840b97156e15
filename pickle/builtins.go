package pickle

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"strings"
)

// Builtin structural encodings. Scalars store a "value" attribute;
// sequences of scalar element kinds store one "entry" dataset; other
// sequences store one positional child per element; maps store one child
// per key, named by the formatted key, in sorted key order.

func dumpNil(w *Writer, obj any) error {
	return nil
}

func loadNil(r *Reader) (any, error) {
	return nil, nil
}

// {{{ scalars

func dumpScalar(w *Writer, obj any) error {
	return w.SetAttr("value", scalarAttrValue(reflect.ValueOf(obj)))
}

func loadScalar(r *Reader) (any, error) {
	raw, ok := r.Attr("value")
	if !ok {
		return nil, &MalformedPickleError{Path: r.Path(), Reason: "missing value attribute"}
	}
	return convertScalar(raw, r.TargetType())
}

// scalarAttrValue widens a scalar to its storable representation.
func scalarAttrValue(v reflect.Value) any {
	switch v.Kind() {
	case reflect.Bool:
		return v.Bool()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return v.Int()
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return v.Uint()
	case reflect.Float32, reflect.Float64:
		return v.Float()
	case reflect.String:
		return v.String()
	default:
		return v.Interface()
	}
}

func convertScalar(raw any, t reflect.Type) (any, error) {
	if t == nil || t == typeAny {
		return raw, nil
	}
	rv := reflect.ValueOf(raw)
	if !rv.Type().ConvertibleTo(t) {
		return nil, fmt.Errorf("cannot convert stored %T to %s", raw, t)
	}
	return rv.Convert(t).Interface(), nil
}

// }}}

// {{{ bytes

func dumpBytes(w *Writer, obj any) error {
	v := reflect.ValueOf(obj)
	b := make([]byte, v.Len())
	reflect.Copy(reflect.ValueOf(b), v)
	return w.DumpBytes("value", b)
}

func loadBytes(r *Reader) (any, error) {
	b, err := r.LoadBytes("value")
	if err != nil {
		return nil, err
	}
	t := r.TargetType()
	if t == nil || t == typeBytes {
		return b, nil
	}
	out := reflect.MakeSlice(t, len(b), len(b))
	reflect.Copy(out, reflect.ValueOf(b))
	return out.Interface(), nil
}

// }}}

// {{{ sequences

func dumpSequence(w *Writer, obj any) error {
	v := reflect.ValueOf(obj)
	elem := v.Type().Elem()

	// Homogeneous scalar payloads become one dataset instead of
	// per-element children.
	if scalarKind(elem.Kind()) {
		s := reflect.MakeSlice(reflect.SliceOf(elem), v.Len(), v.Len())
		reflect.Copy(s, v)
		_, err := w.CreateDataset("entry", s.Interface())
		return err
	}

	for i := 0; i < v.Len(); i++ {
		if _, err := w.Dump("", v.Index(i).Interface()); err != nil {
			return err
		}
	}
	return nil
}

func loadSequence(r *Reader) (any, error) {
	t := r.TargetType()
	if t == nil {
		t = typeListAny
	}

	if r.HasChild("entry") {
		ds, err := r.Dataset("entry")
		if err != nil {
			return nil, err
		}
		native, err := ds.ReadValue()
		if err != nil {
			return nil, err
		}
		nv := reflect.ValueOf(native)
		out, err := makeSequence(t, nv.Len(), r)
		if err != nil {
			return nil, err
		}
		for i := 0; i < nv.Len(); i++ {
			if err := assignValue(out.Index(i), nv.Index(i).Interface()); err != nil {
				return nil, err
			}
		}
		return out.Interface(), nil
	}

	names := r.Children()
	out, err := makeSequence(t, len(names), r)
	if err != nil {
		return nil, err
	}
	for i, name := range names {
		val, err := r.Load(name)
		if err != nil {
			return nil, err
		}
		if err := assignValue(out.Index(i), val); err != nil {
			return nil, err
		}
	}
	return out.Interface(), nil
}

func makeSequence(t reflect.Type, n int, r *Reader) (reflect.Value, error) {
	switch t.Kind() {
	case reflect.Slice:
		return reflect.MakeSlice(t, n, n), nil
	case reflect.Array:
		if t.Len() != n {
			return reflect.Value{}, &MalformedPickleError{
				Path:   r.Path(),
				Reason: fmt.Sprintf("expected %d elements for %s, found %d", t.Len(), t, n),
			}
		}
		return reflect.New(t).Elem(), nil
	default:
		return reflect.Value{}, fmt.Errorf("cannot load sequence into %s", t)
	}
}

// }}}

// {{{ maps and sets

func dumpMap(w *Writer, obj any) error {
	v := reflect.ValueOf(obj)

	type entry struct {
		name string
		key  reflect.Value
	}
	entries := make([]entry, 0, v.Len())

	iter := v.MapRange()
	for iter.Next() {
		name, err := formatMapKey(iter.Key())
		if err != nil {
			return err
		}
		entries = append(entries, entry{name: name, key: iter.Key()})
	}

	// Sorted key order keeps identical inputs byte-identical on disk.
	sort.Slice(entries, func(i, j int) bool { return entries[i].name < entries[j].name })

	for _, e := range entries {
		if _, err := w.Dump(e.name, v.MapIndex(e.key).Interface()); err != nil {
			return err
		}
	}
	return nil
}

func loadMap(r *Reader) (any, error) {
	t := r.TargetType()
	if t == nil {
		t = typeDictAny
	}

	names := r.Children()
	out := reflect.MakeMapWithSize(t, len(names))
	for _, name := range names {
		key, err := parseMapKey(name, t.Key())
		if err != nil {
			return nil, &MalformedPickleError{Path: r.Path(), Reason: err.Error()}
		}
		val, err := r.Load(name)
		if err != nil {
			return nil, err
		}
		ev := reflect.New(t.Elem()).Elem()
		if err := assignValue(ev, val); err != nil {
			return nil, err
		}
		out.SetMapIndex(key, ev)
	}
	return out.Interface(), nil
}

func dumpSet(w *Writer, obj any) error {
	v := reflect.ValueOf(obj)
	keys := v.MapKeys()
	sort.Slice(keys, func(i, j int) bool {
		return fmt.Sprint(keys[i].Interface()) < fmt.Sprint(keys[j].Interface())
	})

	for _, k := range keys {
		if k.Kind() == reflect.Interface {
			k = k.Elem()
		}
		if _, err := w.Dump("", k.Interface()); err != nil {
			return err
		}
	}
	return nil
}

func loadSet(r *Reader) (any, error) {
	t := r.TargetType()
	out := reflect.MakeMap(t)
	for _, name := range r.Children() {
		val, err := r.Load(name)
		if err != nil {
			return nil, err
		}
		kv := reflect.New(t.Key()).Elem()
		if err := assignValue(kv, val); err != nil {
			return nil, err
		}
		out.SetMapIndex(kv, reflect.Zero(t.Elem()))
	}
	return out.Interface(), nil
}

func formatMapKey(k reflect.Value) (string, error) {
	if k.Kind() == reflect.Interface {
		k = k.Elem()
	}
	switch k.Kind() {
	case reflect.String:
		s := k.String()
		if s == "" || strings.Contains(s, "/") || strings.HasPrefix(s, "__") {
			return "", fmt.Errorf("map key %q cannot be used as a child name", s)
		}
		return s, nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(k.Int(), 10), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return strconv.FormatUint(k.Uint(), 10), nil
	case reflect.Bool:
		return strconv.FormatBool(k.Bool()), nil
	case reflect.Float32, reflect.Float64:
		return strconv.FormatFloat(k.Float(), 'g', -1, 64), nil
	default:
		return "", fmt.Errorf("unsupported map key kind %s", k.Kind())
	}
}

func parseMapKey(name string, t reflect.Type) (reflect.Value, error) {
	if t.Kind() == reflect.Interface {
		return reflect.ValueOf(name), nil
	}
	switch t.Kind() {
	case reflect.String:
		return reflect.ValueOf(name).Convert(t), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := strconv.ParseInt(name, 10, 64)
		if err != nil {
			return reflect.Value{}, fmt.Errorf("map key %q: %w", name, err)
		}
		return reflect.ValueOf(n).Convert(t), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n, err := strconv.ParseUint(name, 10, 64)
		if err != nil {
			return reflect.Value{}, fmt.Errorf("map key %q: %w", name, err)
		}
		return reflect.ValueOf(n).Convert(t), nil
	case reflect.Bool:
		b, err := strconv.ParseBool(name)
		if err != nil {
			return reflect.Value{}, fmt.Errorf("map key %q: %w", name, err)
		}
		return reflect.ValueOf(b).Convert(t), nil
	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(name, 64)
		if err != nil {
			return reflect.Value{}, fmt.Errorf("map key %q: %w", name, err)
		}
		return reflect.ValueOf(f).Convert(t), nil
	default:
		return reflect.Value{}, fmt.Errorf("unsupported map key type %s", t)
	}
}

// }}}

// {{{ pointers

// Pointer levels share one group, so the nil marker records the pointer
// depth of the nil value. A nil inner pointer under a non-nil outer one
// must not read as a nil outer.
func dumpPointer(w *Writer, obj any) error {
	v := reflect.ValueOf(obj)
	if v.IsNil() {
		return w.SetAttr("nil", int64(pointerDepth(v.Type())))
	}

	et := v.Type().Elem()
	fn, _ := w.eng.reg.resolveDump(et)
	if fn == nil {
		return &DispatchError{Type: et.String()}
	}
	return fn(w, v.Elem().Interface())
}

func pointerDepth(t reflect.Type) int {
	d := 0
	for t.Kind() == reflect.Pointer {
		d++
		t = t.Elem()
	}
	return d
}

func loadPointer(r *Reader) (any, error) {
	t := r.TargetType()
	if raw, ok := r.Attr("nil"); ok {
		if depth, ok := raw.(int64); ok && int(depth) == pointerDepth(t) {
			return reflect.Zero(t).Interface(), nil
		}
		// The nil belongs to a deeper pointer level; keep unwrapping.
	}

	et := t.Elem()
	fn, _ := r.eng.reg.resolveLoad(et)
	if fn == nil {
		return nil, &DispatchError{Type: et.String()}
	}

	val, err := fn(&Reader{eng: r.eng, grp: r.grp, target: et})
	if err != nil {
		return nil, err
	}

	pv := reflect.New(et)
	if err := assignValue(pv.Elem(), val); err != nil {
		return nil, err
	}
	return pv.Interface(), nil
}

// }}}

// {{{ structs

// dumpStruct is the dataclass analog: exported scalar fields become
// attributes, everything else becomes a named child.
func dumpStruct(w *Writer, obj any) error {
	v := reflect.ValueOf(obj)
	t := v.Type()

	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if f.PkgPath != "" { // unexported
			continue
		}
		fv := v.Field(i)
		if scalarKind(f.Type.Kind()) {
			if err := w.SetAttr(f.Name, scalarAttrValue(fv)); err != nil {
				return err
			}
			continue
		}
		if _, err := w.Dump(f.Name, fv.Interface()); err != nil {
			return err
		}
	}
	return nil
}

func loadStruct(r *Reader) (any, error) {
	t := r.TargetType()
	pv := reflect.New(t).Elem()

	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if f.PkgPath != "" {
			continue
		}

		if raw, ok := r.Attr(f.Name); ok {
			val, err := convertScalar(raw, f.Type)
			if err != nil {
				return nil, &MalformedPickleError{Path: r.Path(), Reason: fmt.Sprintf("field %s: %v", f.Name, err)}
			}
			pv.Field(i).Set(reflect.ValueOf(val))
			continue
		}

		if r.HasChild(f.Name) {
			val, err := r.Load(f.Name)
			if err != nil {
				return nil, err
			}
			if err := assignValue(pv.Field(i), val); err != nil {
				return nil, err
			}
		}
		// Missing fields stay at their zero value.
	}
	return pv.Interface(), nil
}

// }}}

// {{{ generic fallback

// dumpFallback serializes through the external byte codec. The type tag
// is still recorded for diagnostics even though loading ignores it.
func dumpFallback(w *Writer, obj any) error {
	registerGobType(obj)

	var buf bytes.Buffer
	payload := obj
	if err := gob.NewEncoder(&buf).Encode(&payload); err != nil {
		return fmt.Errorf("fallback encode: %w", err)
	}
	return w.DumpBytes("state", buf.Bytes())
}

func loadFallback(r *Reader) (any, error) {
	b, err := r.LoadBytes("state")
	if err != nil {
		return nil, err
	}
	var out any
	if err := gob.NewDecoder(bytes.NewReader(b)).Decode(&out); err != nil {
		return nil, fmt.Errorf("fallback decode: %w", err)
	}
	return out, nil
}

// registerGobType makes the concrete type known to gob. Registering the
// same type twice is harmless; conflicting names panic inside gob, which
// would otherwise abort a dump that can still proceed.
func registerGobType(obj any) {
	defer func() {
		_ = recover()
	}()
	gob.Register(obj)
}

// }}}

// assignValue stores a loaded value into a settable destination,
// converting between compatible representations.
func assignValue(dst reflect.Value, val any) error {
	if val == nil {
		dst.Set(reflect.Zero(dst.Type()))
		return nil
	}
	rv := reflect.ValueOf(val)
	if rv.Type().AssignableTo(dst.Type()) {
		dst.Set(rv)
		return nil
	}
	if rv.Type().ConvertibleTo(dst.Type()) {
		dst.Set(rv.Convert(dst.Type()))
		return nil
	}
	return fmt.Errorf("cannot store loaded %s into %s", rv.Type(), dst.Type())
}

// Package numeric persists n-dimensional numeric arrays with their shape
// and element type intact, using the container's native dataset storage
// for the bulk payload instead of the generic byte fallback. Importing
// the package registers its types with the default pickle registry.
package numeric

import (
	"fmt"
	"reflect"

	"github.com/robert-malhotra/go-h5pickle/pickle"
	"github.com/robert-malhotra/go-h5pickle/store"
)

// Array is an n-dimensional homogeneous array: a flat row-major payload
// plus a shape. Data holds a slice of a scalar element type; an []any
// payload makes an object array whose elements serialize individually.
type Array struct {
	Data  any
	Shape []uint64
}

// NewArray wraps a flat slice with a shape. With no dimensions given the
// array is one-dimensional.
func NewArray(data any, shape ...uint64) (Array, error) {
	v := reflect.ValueOf(data)
	if !v.IsValid() || v.Kind() != reflect.Slice {
		return Array{}, fmt.Errorf("array data must be a slice, got %T", data)
	}
	if len(shape) == 0 {
		shape = []uint64{uint64(v.Len())}
	}
	total := uint64(1)
	for _, dim := range shape {
		total *= dim
	}
	if total != uint64(v.Len()) {
		return Array{}, fmt.Errorf("shape %v does not match %d elements", shape, v.Len())
	}
	return Array{Data: data, Shape: append([]uint64(nil), shape...)}, nil
}

// Len returns the total number of elements.
func (a Array) Len() int {
	v := reflect.ValueOf(a.Data)
	if !v.IsValid() || v.Kind() != reflect.Slice {
		return 0
	}
	return v.Len()
}

// Ndim returns the number of dimensions.
func (a Array) Ndim() int {
	return len(a.Shape)
}

// IsObject reports whether the array holds heterogeneous elements.
func (a Array) IsObject() bool {
	_, ok := a.Data.([]any)
	return ok
}

func init() {
	pickle.RegisterName("numeric.Array", Array{})
	pickle.RegisterDump(Array{}, dumpArray)
	pickle.RegisterLoad(Array{}, loadArray)

	pickle.RegisterName("numeric.dtype", store.Invalid)
	pickle.RegisterDump(store.Invalid, dumpDtype)
	pickle.RegisterLoad(store.Invalid, loadDtype)
}

func dumpArray(w *pickle.Writer, obj any) error {
	var a Array
	switch v := obj.(type) {
	case Array:
		a = v
	case *Array:
		a = *v
	default:
		return fmt.Errorf("expected numeric.Array, got %T", obj)
	}

	if elems, ok := a.Data.([]any); ok {
		if _, err := w.CreateDataset("shape", a.Shape); err != nil {
			return err
		}
		for _, el := range elems {
			if _, err := w.Dump("", el); err != nil {
				return err
			}
		}
		return nil
	}

	ds, err := w.CreateDataset("entry", a.Data)
	if err != nil {
		return err
	}
	if len(a.Shape) > 0 {
		return ds.SetShape(a.Shape...)
	}
	return nil
}

func loadArray(r *pickle.Reader) (any, error) {
	if r.HasChild("entry") {
		ds, err := r.Dataset("entry")
		if err != nil {
			return nil, err
		}
		data, err := ds.ReadValue()
		if err != nil {
			return nil, err
		}
		return Array{Data: data, Shape: ds.Shape()}, nil
	}

	ds, err := r.Dataset("shape")
	if err != nil {
		return nil, fmt.Errorf("object array at %q has no shape", r.Path())
	}
	var shape []uint64
	if err := ds.Read(&shape); err != nil {
		return nil, err
	}

	var elems []any
	for _, name := range r.Children() {
		if name == "shape" {
			continue
		}
		el, err := r.Load(name)
		if err != nil {
			return nil, err
		}
		elems = append(elems, el)
	}
	return Array{Data: elems, Shape: shape}, nil
}

func dumpDtype(w *pickle.Writer, obj any) error {
	dt, ok := obj.(store.Dtype)
	if !ok {
		return fmt.Errorf("expected store.Dtype, got %T", obj)
	}
	return w.SetAttr("dtype", dt.String())
}

func loadDtype(r *pickle.Reader) (any, error) {
	raw, ok := r.Attr("dtype")
	if !ok {
		return nil, fmt.Errorf("dtype node at %q has no dtype attribute", r.Path())
	}
	name, ok := raw.(string)
	if !ok {
		return nil, fmt.Errorf("dtype attribute at %q is not a string", r.Path())
	}
	return store.ParseDtype(name)
}

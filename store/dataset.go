package store

import (
	"fmt"
	"math"
	"path"
	"reflect"
)

// Dataset is a namespace node holding a homogeneous array payload.
type Dataset struct {
	attrList

	parent *Group
	name   string

	dtype Dtype
	shape []uint64
	n     int // total number of elements
	raw   []byte
}

func newDataset(parent *Group, name string, data any) (*Dataset, error) {
	v := reflect.ValueOf(data)
	if !v.IsValid() || v.Kind() != reflect.Slice {
		return nil, fmt.Errorf("dataset data must be a slice, got %T", data)
	}

	dt, err := dtypeOf(v.Type().Elem())
	if err != nil {
		return nil, err
	}

	return &Dataset{
		parent: parent,
		name:   name,
		dtype:  dt,
		shape:  []uint64{uint64(v.Len())},
		n:      v.Len(),
		raw:    encodeElements(v, dt),
	}, nil
}

// Name returns the dataset name.
func (d *Dataset) Name() string {
	return d.name
}

// Path returns the absolute path of the dataset within the file.
func (d *Dataset) Path() string {
	return path.Join(d.parent.Path(), d.name)
}

// Dtype returns the element type.
func (d *Dataset) Dtype() Dtype {
	return d.dtype
}

// Shape returns the dataset dimensions.
func (d *Dataset) Shape() []uint64 {
	out := make([]uint64, len(d.shape))
	copy(out, d.shape)
	return out
}

// Len returns the total number of elements.
func (d *Dataset) Len() int {
	return d.n
}

// SetShape reshapes the dataset. The product of the dimensions must equal
// the number of stored elements.
func (d *Dataset) SetShape(dims ...uint64) error {
	if err := d.parent.file.checkWritable(); err != nil {
		return err
	}
	total, ok := shapeSize(dims)
	if !ok || total != uint64(d.n) {
		return fmt.Errorf("shape %v does not match %d elements", dims, d.n)
	}
	d.shape = append([]uint64(nil), dims...)
	d.parent.file.dirty = true
	return nil
}

// shapeSize multiplies the dimensions, reporting false when the product
// overflows uint64. A wrapped product must never pass for a valid shape.
func shapeSize(dims []uint64) (uint64, bool) {
	total := uint64(1)
	for _, dim := range dims {
		if dim != 0 && total > math.MaxUint64/dim {
			return 0, false
		}
		total *= dim
	}
	return total, true
}

// ReadRaw returns the raw on-disk payload bytes.
func (d *Dataset) ReadRaw() ([]byte, error) {
	out := make([]byte, len(d.raw))
	copy(out, d.raw)
	return out, nil
}

// Read reads the dataset into dest, which must be a pointer to a slice.
// Elements are converted to the destination element type when the
// conversion is lossless by Go conversion rules.
func (d *Dataset) Read(dest any) error {
	dv := reflect.ValueOf(dest)
	if dv.Kind() != reflect.Pointer || dv.Elem().Kind() != reflect.Slice {
		return fmt.Errorf("dataset read destination must be a pointer to a slice, got %T", dest)
	}

	native, err := decodeElements(d.raw, d.dtype, d.n)
	if err != nil {
		return err
	}

	slot := dv.Elem()
	if native.Type() == slot.Type() {
		slot.Set(native)
		return nil
	}

	destElem := slot.Type().Elem()
	if !native.Type().Elem().ConvertibleTo(destElem) {
		return fmt.Errorf("cannot read %s dataset into %s", d.dtype, slot.Type())
	}

	out := reflect.MakeSlice(slot.Type(), d.n, d.n)
	for i := 0; i < d.n; i++ {
		out.Index(i).Set(native.Index(i).Convert(destElem))
	}
	slot.Set(out)
	return nil
}

// ReadValue decodes the dataset into a slice of its native element type.
func (d *Dataset) ReadValue() (any, error) {
	native, err := decodeElements(d.raw, d.dtype, d.n)
	if err != nil {
		return nil, err
	}
	return native.Interface(), nil
}

// ReadFloat64 reads the dataset as float64 values.
func (d *Dataset) ReadFloat64() ([]float64, error) {
	var out []float64
	err := d.Read(&out)
	return out, err
}

// ReadInt64 reads the dataset as int64 values.
func (d *Dataset) ReadInt64() ([]int64, error) {
	var out []int64
	err := d.Read(&out)
	return out, err
}

// ReadString reads the dataset as string values.
func (d *Dataset) ReadString() ([]string, error) {
	var out []string
	err := d.Read(&out)
	return out, err
}

// SetAttr sets a scalar attribute on the dataset.
func (d *Dataset) SetAttr(name string, value any) error {
	if err := d.parent.file.checkWritable(); err != nil {
		return err
	}
	if err := d.set(name, value); err != nil {
		return fmt.Errorf("setting attribute %q on %q: %w", name, d.Path(), err)
	}
	d.parent.file.dirty = true
	return nil
}

// Attr returns the named attribute value.
func (d *Dataset) Attr(name string) (any, bool) {
	return d.get(name)
}

// Attrs returns the attribute names in insertion order.
func (d *Dataset) Attrs() []string {
	return d.names()
}

// HasAttr reports whether the dataset has the named attribute.
func (d *Dataset) HasAttr(name string) bool {
	return d.has(name)
}

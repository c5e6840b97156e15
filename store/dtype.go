package store

import (
	"encoding/binary"
	"fmt"
	"math"
	"reflect"
)

// Dtype identifies the element type of a dataset.
type Dtype uint8

const (
	Invalid Dtype = iota
	Int8
	Int16
	Int32
	Int64
	Uint8
	Uint16
	Uint32
	Uint64
	Float32
	Float64
	Bool
	String
)

var dtypeNames = map[Dtype]string{
	Int8:    "int8",
	Int16:   "int16",
	Int32:   "int32",
	Int64:   "int64",
	Uint8:   "uint8",
	Uint16:  "uint16",
	Uint32:  "uint32",
	Uint64:  "uint64",
	Float32: "float32",
	Float64: "float64",
	Bool:    "bool",
	String:  "string",
}

func (dt Dtype) String() string {
	if name, ok := dtypeNames[dt]; ok {
		return name
	}
	return fmt.Sprintf("dtype(%d)", uint8(dt))
}

// ParseDtype resolves a dtype name as produced by Dtype.String.
func ParseDtype(name string) (Dtype, error) {
	for dt, n := range dtypeNames {
		if n == name {
			return dt, nil
		}
	}
	return Invalid, fmt.Errorf("unknown dtype %q", name)
}

// Size returns the fixed element size in bytes, or 0 for variable-length
// element types.
func (dt Dtype) Size() int {
	switch dt {
	case Int8, Uint8, Bool:
		return 1
	case Int16, Uint16:
		return 2
	case Int32, Uint32, Float32:
		return 4
	case Int64, Uint64, Float64:
		return 8
	default:
		return 0
	}
}

// GoType returns the Go element type corresponding to the dtype.
func (dt Dtype) GoType() (reflect.Type, error) {
	switch dt {
	case Int8:
		return reflect.TypeOf(int8(0)), nil
	case Int16:
		return reflect.TypeOf(int16(0)), nil
	case Int32:
		return reflect.TypeOf(int32(0)), nil
	case Int64:
		return reflect.TypeOf(int64(0)), nil
	case Uint8:
		return reflect.TypeOf(uint8(0)), nil
	case Uint16:
		return reflect.TypeOf(uint16(0)), nil
	case Uint32:
		return reflect.TypeOf(uint32(0)), nil
	case Uint64:
		return reflect.TypeOf(uint64(0)), nil
	case Float32:
		return reflect.TypeOf(float32(0)), nil
	case Float64:
		return reflect.TypeOf(float64(0)), nil
	case Bool:
		return reflect.TypeOf(false), nil
	case String:
		return reflect.TypeOf(""), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrCorrupt, dt)
	}
}

// dtypeOf maps a Go element kind to a dtype.
func dtypeOf(t reflect.Type) (Dtype, error) {
	switch t.Kind() {
	case reflect.Int8:
		return Int8, nil
	case reflect.Int16:
		return Int16, nil
	case reflect.Int32:
		return Int32, nil
	case reflect.Int64, reflect.Int:
		return Int64, nil
	case reflect.Uint8:
		return Uint8, nil
	case reflect.Uint16:
		return Uint16, nil
	case reflect.Uint32:
		return Uint32, nil
	case reflect.Uint64, reflect.Uint:
		return Uint64, nil
	case reflect.Float32:
		return Float32, nil
	case reflect.Float64:
		return Float64, nil
	case reflect.Bool:
		return Bool, nil
	case reflect.String:
		return String, nil
	default:
		return Invalid, fmt.Errorf("unsupported dataset element type: %s", t)
	}
}

// encodeElements serializes a slice value of a supported element kind into
// the little-endian on-disk representation.
func encodeElements(v reflect.Value, dt Dtype) []byte {
	n := v.Len()
	var buf []byte

	switch dt {
	case String:
		for i := 0; i < n; i++ {
			s := v.Index(i).String()
			buf = binary.AppendUvarint(buf, uint64(len(s)))
			buf = append(buf, s...)
		}
		return buf
	case Bool:
		buf = make([]byte, n)
		for i := 0; i < n; i++ {
			if v.Index(i).Bool() {
				buf[i] = 1
			}
		}
		return buf
	}

	size := dt.Size()
	buf = make([]byte, 0, n*size)
	for i := 0; i < n; i++ {
		buf = appendElement(buf, v.Index(i), dt)
	}
	return buf
}

func appendElement(buf []byte, v reflect.Value, dt Dtype) []byte {
	switch dt {
	case Int8, Int16, Int32, Int64:
		u := uint64(v.Int())
		switch dt.Size() {
		case 1:
			return append(buf, byte(u))
		case 2:
			return binary.LittleEndian.AppendUint16(buf, uint16(u))
		case 4:
			return binary.LittleEndian.AppendUint32(buf, uint32(u))
		default:
			return binary.LittleEndian.AppendUint64(buf, u)
		}
	case Uint8, Uint16, Uint32, Uint64:
		u := v.Uint()
		switch dt.Size() {
		case 1:
			return append(buf, byte(u))
		case 2:
			return binary.LittleEndian.AppendUint16(buf, uint16(u))
		case 4:
			return binary.LittleEndian.AppendUint32(buf, uint32(u))
		default:
			return binary.LittleEndian.AppendUint64(buf, u)
		}
	case Float32:
		return binary.LittleEndian.AppendUint32(buf, math.Float32bits(float32(v.Float())))
	case Float64:
		return binary.LittleEndian.AppendUint64(buf, math.Float64bits(v.Float()))
	}
	return buf
}

// decodeElements deserializes raw dataset bytes into a new slice of the
// dtype's native Go element type.
func decodeElements(raw []byte, dt Dtype, n int) (reflect.Value, error) {
	elem, err := dt.GoType()
	if err != nil {
		return reflect.Value{}, err
	}
	out := reflect.MakeSlice(reflect.SliceOf(elem), n, n)

	if dt == String {
		off := 0
		for i := 0; i < n; i++ {
			length, k := binary.Uvarint(raw[off:])
			if k <= 0 || length > uint64(len(raw)-off-k) {
				return reflect.Value{}, fmt.Errorf("%w: truncated string dataset", ErrCorrupt)
			}
			off += k
			out.Index(i).SetString(string(raw[off : off+int(length)]))
			off += int(length)
		}
		return out, nil
	}

	size := dt.Size()
	if len(raw) < n*size {
		return reflect.Value{}, fmt.Errorf("%w: dataset payload too short", ErrCorrupt)
	}

	for i := 0; i < n; i++ {
		b := raw[i*size:]
		var u uint64
		switch size {
		case 1:
			u = uint64(b[0])
		case 2:
			u = uint64(binary.LittleEndian.Uint16(b))
		case 4:
			u = uint64(binary.LittleEndian.Uint32(b))
		default:
			u = binary.LittleEndian.Uint64(b)
		}

		el := out.Index(i)
		switch dt {
		case Int8:
			el.SetInt(int64(int8(u)))
		case Int16:
			el.SetInt(int64(int16(u)))
		case Int32:
			el.SetInt(int64(int32(u)))
		case Int64:
			el.SetInt(int64(u))
		case Uint8, Uint16, Uint32, Uint64:
			el.SetUint(u)
		case Float32:
			el.SetFloat(float64(math.Float32frombits(uint32(u))))
		case Float64:
			el.SetFloat(math.Float64frombits(u))
		case Bool:
			el.SetBool(u != 0)
		}
	}
	return out, nil
}

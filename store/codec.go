package store

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/cespare/xxhash/v2"
)

// On-disk image layout:
//
//	magic (8 bytes) | version (u16 LE) | flags (u16 LE) | payload | xxhash64(payload) (u64 LE)
//
// The payload is the recursively encoded root group. All integers are
// little-endian; lengths and counts are unsigned varints.

var magic = [8]byte{0x89, 'H', '5', 'P', '\r', '\n', 0x1a, '\n'}

const formatVersion = 1

const (
	nodeGroup   = 'G'
	nodeDataset = 'D'
)

// encodeImage serializes the whole tree into a container image.
func encodeImage(root *Group) []byte {
	payload := encodeGroup(nil, root)

	img := make([]byte, 0, len(payload)+20)
	img = append(img, magic[:]...)
	img = binary.LittleEndian.AppendUint16(img, formatVersion)
	img = binary.LittleEndian.AppendUint16(img, 0) // flags, reserved
	img = append(img, payload...)
	img = binary.LittleEndian.AppendUint64(img, xxhash.Sum64(payload))
	return img
}

func encodeGroup(buf []byte, g *Group) []byte {
	buf = append(buf, nodeGroup)
	buf = appendString(buf, g.name)
	buf = encodeAttrs(buf, &g.attrList)
	buf = binary.AppendUvarint(buf, uint64(len(g.children)))
	for _, c := range g.children {
		if c.group != nil {
			buf = encodeGroup(buf, c.group)
		} else {
			buf = encodeDataset(buf, c.dataset)
		}
	}
	return buf
}

func encodeDataset(buf []byte, d *Dataset) []byte {
	buf = append(buf, nodeDataset)
	buf = appendString(buf, d.name)
	buf = append(buf, byte(d.dtype))
	buf = binary.AppendUvarint(buf, uint64(len(d.shape)))
	for _, dim := range d.shape {
		buf = binary.AppendUvarint(buf, dim)
	}
	buf = binary.AppendUvarint(buf, uint64(d.n))
	buf = encodeAttrs(buf, &d.attrList)
	buf = binary.AppendUvarint(buf, uint64(len(d.raw)))
	buf = append(buf, d.raw...)
	return buf
}

func encodeAttrs(buf []byte, l *attrList) []byte {
	buf = binary.AppendUvarint(buf, uint64(len(l.attrs)))
	for _, a := range l.attrs {
		buf = appendString(buf, a.name)
		buf = append(buf, byte(a.kind))
		switch a.kind {
		case attrBool:
			b := byte(0)
			if a.value.(bool) {
				b = 1
			}
			buf = append(buf, b)
		case attrInt64:
			buf = binary.LittleEndian.AppendUint64(buf, uint64(a.value.(int64)))
		case attrUint64:
			buf = binary.LittleEndian.AppendUint64(buf, a.value.(uint64))
		case attrFloat64:
			buf = binary.LittleEndian.AppendUint64(buf, math.Float64bits(a.value.(float64)))
		case attrString:
			buf = appendString(buf, a.value.(string))
		case attrBytes:
			b := a.value.([]byte)
			buf = binary.AppendUvarint(buf, uint64(len(b)))
			buf = append(buf, b...)
		}
	}
	return buf
}

func appendString(buf []byte, s string) []byte {
	buf = binary.AppendUvarint(buf, uint64(len(s)))
	return append(buf, s...)
}

// decodeImage validates and parses a container image into a tree rooted at
// a new root group owned by f.
func decodeImage(img []byte, f *File) (*Group, error) {
	if len(img) < len(magic)+4+8 {
		return nil, ErrNotStore
	}
	for i, b := range magic {
		if img[i] != b {
			return nil, ErrNotStore
		}
	}

	version := binary.LittleEndian.Uint16(img[8:])
	if version != formatVersion {
		return nil, fmt.Errorf("%w: %d", ErrVersion, version)
	}

	payload := img[12 : len(img)-8]
	sum := binary.LittleEndian.Uint64(img[len(img)-8:])
	if xxhash.Sum64(payload) != sum {
		return nil, ErrChecksum
	}

	dec := &decoder{buf: payload}
	root, err := dec.group(f, nil)
	if err != nil {
		return nil, err
	}
	if dec.off != len(dec.buf) {
		return nil, fmt.Errorf("%w: %d trailing bytes", ErrCorrupt, len(dec.buf)-dec.off)
	}
	return root, nil
}

type decoder struct {
	buf []byte
	off int
}

func (d *decoder) fail(what string) error {
	return fmt.Errorf("%w: truncated %s at offset %d", ErrCorrupt, what, d.off)
}

func (d *decoder) u8() (byte, error) {
	if d.off >= len(d.buf) {
		return 0, d.fail("byte")
	}
	b := d.buf[d.off]
	d.off++
	return b, nil
}

func (d *decoder) u64() (uint64, error) {
	if d.off+8 > len(d.buf) {
		return 0, d.fail("u64")
	}
	v := binary.LittleEndian.Uint64(d.buf[d.off:])
	d.off += 8
	return v, nil
}

func (d *decoder) uvarint() (uint64, error) {
	v, n := binary.Uvarint(d.buf[d.off:])
	if n <= 0 {
		return 0, d.fail("uvarint")
	}
	d.off += n
	return v, nil
}

func (d *decoder) bytes() ([]byte, error) {
	n, err := d.uvarint()
	if err != nil {
		return nil, err
	}
	// Compare against the remaining payload, not the absolute offset: a
	// declared length near 2^64 must not wrap the check and reach make.
	if n > uint64(len(d.buf)-d.off) {
		return nil, d.fail("bytes")
	}
	out := make([]byte, n)
	copy(out, d.buf[d.off:d.off+int(n)])
	d.off += int(n)
	return out, nil
}

func (d *decoder) string() (string, error) {
	b, err := d.bytes()
	return string(b), err
}

func (d *decoder) group(f *File, parent *Group) (*Group, error) {
	tag, err := d.u8()
	if err != nil {
		return nil, err
	}
	if tag != nodeGroup {
		return nil, fmt.Errorf("%w: expected group node, got %q", ErrCorrupt, tag)
	}

	g := &Group{file: f, parent: parent}
	if g.name, err = d.string(); err != nil {
		return nil, err
	}
	if err := d.attrs(&g.attrList); err != nil {
		return nil, err
	}

	n, err := d.uvarint()
	if err != nil {
		return nil, err
	}
	for i := uint64(0); i < n; i++ {
		if d.off >= len(d.buf) {
			return nil, d.fail("child node")
		}
		switch d.buf[d.off] {
		case nodeGroup:
			sub, err := d.group(f, g)
			if err != nil {
				return nil, err
			}
			g.children = append(g.children, child{name: sub.name, group: sub})
		case nodeDataset:
			ds, err := d.dataset(g)
			if err != nil {
				return nil, err
			}
			g.children = append(g.children, child{name: ds.name, dataset: ds})
		default:
			return nil, fmt.Errorf("%w: unknown node tag %q", ErrCorrupt, d.buf[d.off])
		}
	}
	return g, nil
}

func (d *decoder) dataset(parent *Group) (*Dataset, error) {
	if _, err := d.u8(); err != nil { // node tag, already checked by caller
		return nil, err
	}

	ds := &Dataset{parent: parent}
	var err error
	if ds.name, err = d.string(); err != nil {
		return nil, err
	}

	dt, err := d.u8()
	if err != nil {
		return nil, err
	}
	ds.dtype = Dtype(dt)
	if _, err := ds.dtype.GoType(); err != nil {
		return nil, err
	}

	ndims, err := d.uvarint()
	if err != nil {
		return nil, err
	}
	// Each dimension occupies at least one byte, so a rank larger than the
	// remaining payload cannot be honest. Checked before allocating.
	if ndims > uint64(len(d.buf)-d.off) {
		return nil, d.fail("shape")
	}
	ds.shape = make([]uint64, ndims)
	for i := range ds.shape {
		if ds.shape[i], err = d.uvarint(); err != nil {
			return nil, err
		}
	}

	n, err := d.uvarint()
	if err != nil {
		return nil, err
	}

	if err := d.attrs(&ds.attrList); err != nil {
		return nil, err
	}
	if ds.raw, err = d.bytes(); err != nil {
		return nil, err
	}

	if sz := uint64(ds.dtype.Size()); sz > 0 {
		if uint64(len(ds.raw))%sz != 0 || n != uint64(len(ds.raw))/sz {
			return nil, fmt.Errorf("%w: dataset %q declares %d elements for %d payload bytes",
				ErrCorrupt, ds.name, n, len(ds.raw))
		}
	} else if n > uint64(len(ds.raw)) {
		// Variable-length elements take at least one byte each.
		return nil, fmt.Errorf("%w: dataset %q declares %d elements for %d payload bytes",
			ErrCorrupt, ds.name, n, len(ds.raw))
	}
	ds.n = int(n)

	if total, ok := shapeSize(ds.shape); !ok || total != n {
		return nil, fmt.Errorf("%w: dataset %q shape %v does not match %d elements",
			ErrCorrupt, ds.name, ds.shape, n)
	}
	return ds, nil
}

func (d *decoder) attrs(l *attrList) error {
	n, err := d.uvarint()
	if err != nil {
		return err
	}
	for i := uint64(0); i < n; i++ {
		name, err := d.string()
		if err != nil {
			return err
		}
		kind, err := d.u8()
		if err != nil {
			return err
		}

		var value any
		switch attrKind(kind) {
		case attrBool:
			b, err := d.u8()
			if err != nil {
				return err
			}
			value = b != 0
		case attrInt64:
			u, err := d.u64()
			if err != nil {
				return err
			}
			value = int64(u)
		case attrUint64:
			u, err := d.u64()
			if err != nil {
				return err
			}
			value = u
		case attrFloat64:
			u, err := d.u64()
			if err != nil {
				return err
			}
			value = math.Float64frombits(u)
		case attrString:
			s, err := d.string()
			if err != nil {
				return err
			}
			value = s
		case attrBytes:
			b, err := d.bytes()
			if err != nil {
				return err
			}
			value = b
		default:
			return fmt.Errorf("%w: unknown attribute kind %d", ErrCorrupt, kind)
		}
		l.attrs = append(l.attrs, attr{name: name, kind: attrKind(kind), value: value})
	}
	return nil
}

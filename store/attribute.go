package store

import (
	"fmt"
	"strings"
)

// attrKind tags the on-disk representation of an attribute value.
type attrKind uint8

const (
	attrBool attrKind = iota + 1
	attrInt64
	attrUint64
	attrFloat64
	attrString
	attrBytes
)

// attr is a small named scalar attached to a group or dataset.
type attr struct {
	name  string
	kind  attrKind
	value any
}

// normalizeAttr converts a caller-supplied value into one of the supported
// attribute representations: bool, int64, uint64, float64, string, []byte.
func normalizeAttr(value any) (attrKind, any, error) {
	switch v := value.(type) {
	case bool:
		return attrBool, v, nil
	case int:
		return attrInt64, int64(v), nil
	case int8:
		return attrInt64, int64(v), nil
	case int16:
		return attrInt64, int64(v), nil
	case int32:
		return attrInt64, int64(v), nil
	case int64:
		return attrInt64, v, nil
	case uint:
		return attrUint64, uint64(v), nil
	case uint8:
		return attrUint64, uint64(v), nil
	case uint16:
		return attrUint64, uint64(v), nil
	case uint32:
		return attrUint64, uint64(v), nil
	case uint64:
		return attrUint64, v, nil
	case float32:
		return attrFloat64, float64(v), nil
	case float64:
		return attrFloat64, v, nil
	case string:
		return attrString, v, nil
	case []byte:
		return attrBytes, v, nil
	default:
		return 0, nil, fmt.Errorf("unsupported attribute type %T", value)
	}
}

// validName reports whether a child or attribute name is storable.
// Names are path components, so they cannot be empty or contain '/'.
func validName(name string) error {
	if name == "" || strings.Contains(name, "/") {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}

// attrList is an insertion-ordered attribute collection shared by groups
// and datasets.
type attrList struct {
	attrs []attr
}

func (l *attrList) set(name string, value any) error {
	if err := validName(name); err != nil {
		return err
	}
	kind, v, err := normalizeAttr(value)
	if err != nil {
		return err
	}
	for i := range l.attrs {
		if l.attrs[i].name == name {
			l.attrs[i].kind = kind
			l.attrs[i].value = v
			return nil
		}
	}
	l.attrs = append(l.attrs, attr{name: name, kind: kind, value: v})
	return nil
}

func (l *attrList) get(name string) (any, bool) {
	for i := range l.attrs {
		if l.attrs[i].name == name {
			return l.attrs[i].value, true
		}
	}
	return nil, false
}

func (l *attrList) has(name string) bool {
	_, ok := l.get(name)
	return ok
}

func (l *attrList) names() []string {
	out := make([]string, len(l.attrs))
	for i := range l.attrs {
		out[i] = l.attrs[i].name
	}
	return out
}

func (l *attrList) delete(name string) bool {
	for i := range l.attrs {
		if l.attrs[i].name == name {
			l.attrs = append(l.attrs[:i], l.attrs[i+1:]...)
			return true
		}
	}
	return false
}

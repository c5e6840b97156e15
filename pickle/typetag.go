package pickle

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
)

// Type tags are the persisted type identity of every structurally encoded
// object. Built-in scalar and generic container types use short portable
// aliases; other builtin kinds use their Go spellings; composite types use
// a recursive grammar ("[]T", "[N]T", "map[K]V", "set[T]", "*T"); named
// types use their registered name, or their fully qualified
// "pkgpath.Name" when dumped without registration.

const tagNone = "None"

var (
	typeAny     = reflect.TypeOf((*any)(nil)).Elem()
	typeBytes   = reflect.TypeOf([]byte(nil))
	typeListAny = reflect.TypeOf([]any(nil))
	typeDictAny = reflect.TypeOf(map[string]any(nil))
	typeUnit    = reflect.TypeOf(struct{}{})
)

// tagAliases maps types to their short persisted alias.
var tagAliases = map[reflect.Type]string{
	reflect.TypeOf(false):      "bool",
	reflect.TypeOf(int(0)):     "int",
	reflect.TypeOf(float64(0)): "float",
	reflect.TypeOf(""):         "str",
	typeBytes:                  "bytes",
	typeListAny:                "list",
	typeDictAny:                "dict",
}

// leafTypes resolves leaf tag names back to types. It accepts both the
// short aliases and the Go spellings, plus the legacy "tuple" and "set"
// aliases written by older producers.
var leafTypes = map[string]reflect.Type{
	"bool":    reflect.TypeOf(false),
	"int":     reflect.TypeOf(int(0)),
	"int8":    reflect.TypeOf(int8(0)),
	"int16":   reflect.TypeOf(int16(0)),
	"int32":   reflect.TypeOf(int32(0)),
	"int64":   reflect.TypeOf(int64(0)),
	"uint":    reflect.TypeOf(uint(0)),
	"uint8":   reflect.TypeOf(uint8(0)),
	"uint16":  reflect.TypeOf(uint16(0)),
	"uint32":  reflect.TypeOf(uint32(0)),
	"uint64":  reflect.TypeOf(uint64(0)),
	"float":   reflect.TypeOf(float64(0)),
	"float32": reflect.TypeOf(float32(0)),
	"float64": reflect.TypeOf(float64(0)),
	"str":     reflect.TypeOf(""),
	"string":  reflect.TypeOf(""),
	"bytes":   typeBytes,
	"list":    typeListAny,
	"dict":    typeDictAny,
	"any":     typeAny,
	"tuple":   typeListAny,
	"set":     reflect.TypeOf(map[any]struct{}(nil)),
}

// encodeTag returns the type identity string for t. A nil type stands for
// the nil value.
func (r *Registry) encodeTag(t reflect.Type) string {
	if t == nil {
		return tagNone
	}
	if name, ok := r.nameOf(t); ok {
		return name
	}
	if alias, ok := tagAliases[t]; ok {
		return alias
	}

	switch t.Kind() {
	case reflect.Slice:
		return "[]" + r.encodeTag(t.Elem())
	case reflect.Array:
		return fmt.Sprintf("[%d]%s", t.Len(), r.encodeTag(t.Elem()))
	case reflect.Map:
		if t.Elem() == typeUnit {
			return "set[" + r.encodeTag(t.Key()) + "]"
		}
		return "map[" + r.encodeTag(t.Key()) + "]" + r.encodeTag(t.Elem())
	case reflect.Pointer:
		return "*" + r.encodeTag(t.Elem())
	}

	if t.PkgPath() == "" {
		if t == typeAny {
			return "any"
		}
		if t.Name() != "" {
			return t.Name()
		}
		// Anonymous types reach the generic fallback, where the tag is
		// informational only.
		return t.String()
	}
	return t.PkgPath() + "." + t.Name()
}

// decodeTag resolves a type identity string back to a type. The nil type
// with a nil error is returned for the "None" tag.
func (r *Registry) decodeTag(tag string) (reflect.Type, error) {
	t, rest, err := r.parseTag(tag)
	if err != nil {
		return nil, &TypeResolutionError{Tag: tag, Err: err}
	}
	if rest != "" {
		return nil, &TypeResolutionError{Tag: tag, Err: fmt.Errorf("trailing %q", rest)}
	}
	return t, nil
}

// parseTag parses one type expression from the front of s and returns the
// unconsumed remainder.
func (r *Registry) parseTag(s string) (reflect.Type, string, error) {
	switch {
	case s == tagNone:
		return nil, "", nil

	case strings.HasPrefix(s, "*"):
		elem, rest, err := r.parseTag(s[1:])
		if err != nil {
			return nil, "", err
		}
		return reflect.PointerTo(elem), rest, nil

	case strings.HasPrefix(s, "[]"):
		elem, rest, err := r.parseTag(s[2:])
		if err != nil {
			return nil, "", err
		}
		return reflect.SliceOf(elem), rest, nil

	case strings.HasPrefix(s, "map["):
		key, rest, err := r.parseBracketed(s[len("map["):])
		if err != nil {
			return nil, "", err
		}
		elem, rest, err := r.parseTag(rest)
		if err != nil {
			return nil, "", err
		}
		return reflect.MapOf(key, elem), rest, nil

	case strings.HasPrefix(s, "set["):
		key, rest, err := r.parseBracketed(s[len("set["):])
		if err != nil {
			return nil, "", err
		}
		return reflect.MapOf(key, typeUnit), rest, nil

	case strings.HasPrefix(s, "["):
		i := strings.IndexByte(s, ']')
		if i < 0 {
			return nil, "", fmt.Errorf("unterminated array length")
		}
		n, err := strconv.Atoi(s[1:i])
		if err != nil || n < 0 {
			return nil, "", fmt.Errorf("invalid array length %q", s[1:i])
		}
		elem, rest, err := r.parseTag(s[i+1:])
		if err != nil {
			return nil, "", err
		}
		return reflect.ArrayOf(n, elem), rest, nil
	}

	return r.parseLeaf(s)
}

// parseBracketed parses a complete type expression terminated by the ']'
// that closes the already-consumed opening bracket.
func (r *Registry) parseBracketed(s string) (reflect.Type, string, error) {
	depth := 1
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '[':
			depth++
		case ']':
			depth--
			if depth == 0 {
				t, rest, err := r.parseTag(s[:i])
				if err != nil {
					return nil, "", err
				}
				if rest != "" {
					return nil, "", fmt.Errorf("trailing %q in key type", rest)
				}
				return t, s[i+1:], nil
			}
		}
	}
	return nil, "", fmt.Errorf("unbalanced brackets")
}

// parseLeaf resolves a leaf name: a builtin alias, a Go kind spelling, or
// a registered type name.
func (r *Registry) parseLeaf(s string) (reflect.Type, string, error) {
	// A leaf extends to the end of the expression; composite syntax never
	// follows a leaf name.
	if t, ok := leafTypes[s]; ok {
		return t, "", nil
	}
	if t, ok := r.typeOfName(s); ok {
		return t, "", nil
	}
	return nil, "", fmt.Errorf("unknown type name %q", s)
}

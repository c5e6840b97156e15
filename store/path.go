package store

import (
	"fmt"
	"strings"
)

// SplitPath splits a slash-delimited path into its components, ignoring
// leading and trailing slashes and empty components.
func SplitPath(p string) []string {
	p = strings.Trim(p, "/")
	if p == "" {
		return nil
	}
	parts := strings.Split(p, "/")
	out := parts[:0]
	for _, part := range parts {
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

// ParseAttrPath splits an attribute path of the form "group/object@attr"
// into the object path and the attribute name.
//
// Examples:
//   - "@root_attr"         - attribute on the root group
//   - "data@units"         - attribute on object "data"
//   - "sensors/temp@scale" - attribute on nested object "temp"
func ParseAttrPath(p string) (objectPath, attrName string, err error) {
	i := strings.LastIndex(p, "@")
	if i < 0 {
		return "", "", fmt.Errorf("%w: missing '@' in attribute path %q", ErrInvalidName, p)
	}
	objectPath, attrName = p[:i], p[i+1:]
	if attrName == "" {
		return "", "", fmt.Errorf("%w: empty attribute name in %q", ErrInvalidName, p)
	}
	return objectPath, attrName, nil
}

// JoinAttrPath builds an attribute path from an object path and an
// attribute name.
func JoinAttrPath(objectPath, attrName string) string {
	return objectPath + "@" + attrName
}

// Package store implements a single-file hierarchical container with
// groups, attributes, and datasets, in the spirit of HDF5. The tree is
// held in memory and flushed to disk as a checksummed binary image.
package store

import "errors"

// Common errors
var (
	ErrNotStore    = errors.New("not a container file")
	ErrVersion     = errors.New("unsupported container version")
	ErrChecksum    = errors.New("container checksum mismatch")
	ErrCorrupt     = errors.New("container is corrupt")
	ErrNotFound    = errors.New("object not found")
	ErrExists      = errors.New("object already exists")
	ErrNotGroup    = errors.New("object is not a group")
	ErrNotDataset  = errors.New("object is not a dataset")
	ErrClosed      = errors.New("file is closed")
	ErrReadOnly    = errors.New("file is not writable")
	ErrInvalidName = errors.New("invalid name")
)

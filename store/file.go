package store

import (
	"fmt"
	"os"
)

// File represents an open container file. The group/dataset tree is kept
// in memory; Flush serializes it back to disk in one pass.
type File struct {
	path     string
	root     *Group
	writable bool
	closed   bool
	dirty    bool
	mode     os.FileMode
}

type fileOptions struct {
	mode os.FileMode
}

// FileOption configures file creation.
type FileOption func(*fileOptions)

func defaultFileOptions() *fileOptions {
	return &fileOptions{mode: 0o644}
}

// WithFileMode sets the permission bits used when the container file is
// created.
func WithFileMode(mode os.FileMode) FileOption {
	return func(o *fileOptions) {
		o.mode = mode
	}
}

// Create creates a new container file at the given path, truncating any
// existing file.
func Create(path string, opts ...FileOption) (*File, error) {
	options := defaultFileOptions()
	for _, opt := range opts {
		opt(options)
	}

	f := &File{
		path:     path,
		writable: true,
		dirty:    true,
		mode:     options.mode,
	}
	f.root = &Group{file: f}

	// Write the empty container immediately so the path exists and is
	// readable even before the first Flush.
	if err := f.Flush(); err != nil {
		return nil, err
	}
	return f, nil
}

// Open opens an existing container file for reading.
func Open(path string) (*File, error) {
	return open(path, false)
}

// OpenReadWrite opens an existing container file for reading and writing.
func OpenReadWrite(path string) (*File, error) {
	return open(path, true)
}

func open(path string, writable bool) (*File, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("opening container: %w", err)
	}

	f := &File{path: path, writable: writable, mode: 0o644}
	root, err := decodeImage(buf, f)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	f.root = root
	return f, nil
}

// Root returns the root group of the file.
func (f *File) Root() *Group {
	return f.root
}

// Path returns the file path.
func (f *File) Path() string {
	return f.path
}

// Writable reports whether the file accepts modifications.
func (f *File) Writable() bool {
	return f.writable && !f.closed
}

func (f *File) checkWritable() error {
	if f.closed {
		return ErrClosed
	}
	if !f.writable {
		return ErrReadOnly
	}
	return nil
}

// Flush serializes the in-memory tree to disk if it has been modified.
func (f *File) Flush() error {
	if f.closed {
		return ErrClosed
	}
	if !f.writable || !f.dirty {
		return nil
	}

	img := encodeImage(f.root)
	if err := os.WriteFile(f.path, img, f.mode); err != nil {
		return fmt.Errorf("flushing container: %w", err)
	}
	f.dirty = false
	return nil
}

// Close flushes pending changes and marks the file closed.
func (f *File) Close() error {
	if f.closed {
		return nil
	}
	if f.writable && f.dirty {
		if err := f.Flush(); err != nil {
			return err
		}
	}
	f.closed = true
	return nil
}

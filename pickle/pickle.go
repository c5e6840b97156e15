package pickle

import (
	"fmt"

	"github.com/robert-malhotra/go-h5pickle/store"
)

// The package-level API mirrors Engine methods against a shared default
// engine, so callers that need no custom wiring can dump and load in one
// line. Libraries extending the format register their types here from
// init functions.
var (
	defaultRegistry = NewRegistry()
	defaultEngine   = NewEngine(defaultRegistry)
)

// DefaultEngine returns the engine used by the package-level functions.
func DefaultEngine() *Engine { return defaultEngine }

// Register records the type of v in the default registry. See
// Registry.Register.
func Register(v any) { defaultRegistry.Register(v) }

// RegisterName records the type of v under an explicit tag name in the
// default registry.
func RegisterName(name string, v any) { defaultRegistry.RegisterName(name, v) }

// RegisterDump installs a custom dump function in the default registry.
func RegisterDump(v any, fn DumpFunc) { defaultRegistry.RegisterDump(v, fn) }

// RegisterLoad installs a custom load function in the default registry.
func RegisterLoad(v any, fn LoadFunc) { defaultRegistry.RegisterLoad(v, fn) }

type callConfig struct {
	name     string
	pattern  string
	dumpOpts []DumpOption
}

// Option configures a package-level Dump or Load call.
type Option func(*callConfig)

// WithName dumps the object as a named child of the destination root
// instead of occupying the root itself, or loads the named child instead
// of the root.
func WithName(name string) Option {
	return func(c *callConfig) {
		c.name = name
	}
}

// WithPattern loads the first object matching a path pattern instead of
// the root. See FindGroup for the pattern grammar.
func WithPattern(pattern string) Option {
	return func(c *callConfig) {
		c.pattern = pattern
	}
}

// WithDumpOptions forwards per-dump options such as WithOverwrite.
func WithDumpOptions(opts ...DumpOption) Option {
	return func(c *callConfig) {
		c.dumpOpts = append(c.dumpOpts, opts...)
	}
}

// Dump serializes obj into dest using the default engine. dest may be a
// filename (created or truncated, then flushed and closed), an open
// writable *store.File, or a *store.Group to write into directly. Without
// WithName the object occupies the destination group itself.
func Dump(obj any, dest any, opts ...Option) error {
	var cfg callConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	switch d := dest.(type) {
	case string:
		f, err := store.Create(d)
		if err != nil {
			return err
		}
		if err := dumpRoot(defaultEngine, f.Root(), obj, &cfg); err != nil {
			_ = f.Close()
			return err
		}
		return f.Close()
	case *store.File:
		if err := dumpRoot(defaultEngine, d.Root(), obj, &cfg); err != nil {
			return err
		}
		return d.Flush()
	case *store.Group:
		return dumpRoot(defaultEngine, d, obj, &cfg)
	}
	return fmt.Errorf("pickle: cannot dump into destination of type %T", dest)
}

func dumpRoot(e *Engine, root *store.Group, obj any, cfg *callConfig) error {
	if cfg.name != "" {
		_, err := e.DumpTo(root, cfg.name, obj, cfg.dumpOpts...)
		return err
	}
	return e.DumpInto(root, obj)
}

// Load reconstructs an object from src using the default engine. src may
// be a filename (opened read-only and closed before returning), an open
// *store.File, or a *store.Group. Without options the root object is
// loaded; an untagged root loads as a plain map of its contents.
func Load(src any, opts ...Option) (any, error) {
	var cfg callConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	switch s := src.(type) {
	case string:
		f, err := store.Open(s)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		return loadRoot(defaultEngine, f.Root(), &cfg)
	case *store.File:
		return loadRoot(defaultEngine, s.Root(), &cfg)
	case *store.Group:
		return loadRoot(defaultEngine, s, &cfg)
	}
	return nil, fmt.Errorf("pickle: cannot load from source of type %T", src)
}

func loadRoot(e *Engine, root *store.Group, cfg *callConfig) (any, error) {
	if cfg.pattern != "" {
		return e.LoadByPattern(root, cfg.pattern)
	}
	grp := root
	if cfg.name != "" {
		child, err := root.OpenGroup(cfg.name)
		if err != nil {
			return nil, err
		}
		grp = child
	}
	if !grp.HasAttr(AttrTypeName) {
		return e.loadGroupAsMap(grp)
	}
	return e.LoadFrom(grp)
}

package pickle

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type animal struct {
	Legs int
}

type dog struct {
	animal
	Name string
}

type namer interface {
	TagName() string
}

type tagged struct {
	N string
}

func (v tagged) TagName() string { return v.N }

func TestResolveExactBeatsAncestor(t *testing.T) {
	reg := NewRegistry()

	reg.RegisterDump(animal{}, func(w *Writer, obj any) error {
		return w.SetAttr("handler", "animal")
	})
	reg.RegisterDump(dog{}, func(w *Writer, obj any) error {
		return w.SetAttr("handler", "dog")
	})

	fn, fallback := reg.resolveDump(reflect.TypeOf(dog{}))
	require.NotNil(t, fn)
	assert.False(t, fallback)

	f := newTestStore(t)
	e := NewEngine(reg)
	grp, err := e.DumpTo(f.Root(), "d", dog{})
	require.NoError(t, err)

	v, ok := grp.Attr("handler")
	require.True(t, ok)
	assert.Equal(t, "dog", v)
}

func TestResolveEmbeddedAncestor(t *testing.T) {
	reg := NewRegistry()
	reg.RegisterDump(animal{}, func(w *Writer, obj any) error {
		return w.SetAttr("handler", "animal")
	})

	// dog has no handler of its own; the embedded animal's applies.
	f := newTestStore(t)
	e := NewEngine(reg)
	grp, err := e.DumpTo(f.Root(), "d", dog{animal: animal{Legs: 4}})
	require.NoError(t, err)

	v, ok := grp.Attr("handler")
	require.True(t, ok)
	assert.Equal(t, "animal", v)
}

func TestResolveInterfaceNewestFirst(t *testing.T) {
	reg := NewRegistry()
	reg.RegisterDump((*namer)(nil), func(w *Writer, obj any) error {
		return w.SetAttr("handler", "old")
	})
	reg.RegisterDump((*namer)(nil), func(w *Writer, obj any) error {
		return w.SetAttr("handler", "new")
	})
	reg.Register(tagged{})

	f := newTestStore(t)
	e := NewEngine(reg)
	grp, err := e.DumpTo(f.Root(), "v", tagged{N: "x"})
	require.NoError(t, err)

	v, ok := grp.Attr("handler")
	require.True(t, ok)
	assert.Equal(t, "new", v)
}

func TestReplaceRegistrationSilently(t *testing.T) {
	reg := NewRegistry()
	reg.RegisterDump(animal{}, func(w *Writer, obj any) error {
		return w.SetAttr("handler", "first")
	})
	reg.RegisterDump(animal{}, func(w *Writer, obj any) error {
		return w.SetAttr("handler", "second")
	})

	f := newTestStore(t)
	grp, err := NewEngine(reg).DumpTo(f.Root(), "a", animal{})
	require.NoError(t, err)

	v, _ := grp.Attr("handler")
	assert.Equal(t, "second", v)
}

func TestUnregisteredNamedTypeFallsBack(t *testing.T) {
	type secret struct {
		Code int
	}

	reg := NewRegistry()
	_, fallback := reg.resolveDump(reflect.TypeOf(secret{}))
	assert.True(t, fallback)

	// Registration makes the same type structural.
	reg.Register(secret{})
	_, fallback = reg.resolveDump(reflect.TypeOf(secret{}))
	assert.False(t, fallback)
}

func TestPointerToFallbackTypeFallsBack(t *testing.T) {
	type secret struct {
		Code int
	}

	reg := NewRegistry()
	_, fallback := reg.resolveDump(reflect.TypeOf(&secret{}))
	assert.True(t, fallback)

	_, fallback = reg.resolveDump(reflect.TypeOf((*any)(nil)))
	assert.True(t, fallback)

	// Composites over an unregistered named type would write a tag that
	// cannot be decoded, so they fall back whole too.
	_, fallback = reg.resolveDump(reflect.TypeOf([]secret(nil)))
	assert.True(t, fallback)

	_, fallback = reg.resolveDump(reflect.TypeOf(map[string]secret(nil)))
	assert.True(t, fallback)
}

func TestRegisterUnnamedPanics(t *testing.T) {
	reg := NewRegistry()
	assert.Panics(t, func() {
		reg.Register(struct{ X int }{})
	})
}

func TestRegisterDumpEnablesTag(t *testing.T) {
	type gadget struct {
		ID int
	}

	reg := NewRegistry()
	reg.RegisterDump(gadget{}, func(w *Writer, obj any) error { return nil })

	tag := reg.encodeTag(reflect.TypeOf(gadget{}))
	got, err := reg.decodeTag(tag)
	require.NoError(t, err)
	assert.Equal(t, reflect.TypeOf(gadget{}), got)
}

func TestTypeOfNormalization(t *testing.T) {
	assert.Equal(t, reflect.TypeOf(animal{}), typeOf(animal{}))
	assert.Equal(t, reflect.TypeOf(animal{}), typeOf(reflect.TypeOf(animal{})))

	// A pointer to an interface names the interface itself.
	it := typeOf((*namer)(nil))
	assert.Equal(t, reflect.Interface, it.Kind())
}

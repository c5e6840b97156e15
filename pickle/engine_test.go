package pickle

import (
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robert-malhotra/go-h5pickle/store"
)

func newTestStore(t *testing.T) *store.File {
	t.Helper()
	f, err := store.Create(filepath.Join(t.TempDir(), "test.h5p"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = f.Close() })
	return f
}

func roundTripWith(t *testing.T, reg *Registry, obj any) any {
	t.Helper()
	e := NewEngine(reg)
	f := newTestStore(t)

	grp, err := e.DumpTo(f.Root(), "obj", obj)
	require.NoError(t, err)

	got, err := e.LoadFrom(grp)
	require.NoError(t, err)
	return got
}

func roundTrip(t *testing.T, obj any) any {
	t.Helper()
	return roundTripWith(t, NewRegistry(), obj)
}

func TestDumpMetadata(t *testing.T) {
	f := newTestStore(t)
	e := NewEngine(NewRegistry())

	grp, err := e.DumpTo(f.Root(), "x", 42)
	require.NoError(t, err)

	tag, ok := grp.Attr(AttrTypeName)
	require.True(t, ok)
	assert.Equal(t, "int", tag)

	ver, ok := grp.Attr(AttrVersion)
	require.True(t, ok)
	assert.Equal(t, int64(Version), ver)

	assert.False(t, grp.HasAttr(AttrPickle))
}

func TestDumpNameCollision(t *testing.T) {
	f := newTestStore(t)
	e := NewEngine(NewRegistry())

	_, err := e.DumpTo(f.Root(), "x", 1)
	require.NoError(t, err)

	_, err = e.DumpTo(f.Root(), "x", 2)
	var ncErr *NameCollisionError
	require.ErrorAs(t, err, &ncErr)
	assert.Equal(t, "x", ncErr.Name)

	// The original survives a refused overwrite.
	got, err := e.LoadFrom(mustGroup(t, f.Root(), "x"))
	require.NoError(t, err)
	assert.Equal(t, 1, got)

	_, err = e.DumpTo(f.Root(), "x", 2, WithOverwrite())
	require.NoError(t, err)

	got, err = e.LoadFrom(mustGroup(t, f.Root(), "x"))
	require.NoError(t, err)
	assert.Equal(t, 2, got)
}

func mustGroup(t *testing.T, parent *store.Group, name string) *store.Group {
	t.Helper()
	g, err := parent.OpenGroup(name)
	require.NoError(t, err)
	return g
}

func TestAutoNaming(t *testing.T) {
	f := newTestStore(t)
	e := NewEngine(NewRegistry())

	for i := 0; i < 3; i++ {
		_, err := e.DumpTo(f.Root(), "", i*10)
		require.NoError(t, err)
	}

	members := f.Root().Members()
	require.Equal(t, []string{"entry_00000000", "entry_00000001", "entry_00000002"}, members)

	for i, name := range members {
		got, err := e.LoadFrom(mustGroup(t, f.Root(), name))
		require.NoError(t, err)
		assert.Equal(t, i*10, got)
	}
}

func TestAutoNamingSkipsTaken(t *testing.T) {
	f := newTestStore(t)
	e := NewEngine(NewRegistry())

	_, err := e.DumpTo(f.Root(), "entry_00000001", "taken")
	require.NoError(t, err)

	_, err = e.DumpTo(f.Root(), "", "a")
	require.NoError(t, err)
	_, err = e.DumpTo(f.Root(), "", "b")
	require.NoError(t, err)

	assert.True(t, f.Root().Exists("entry_00000002"))
	assert.Equal(t, 3, f.Root().NumObjects())
}

func TestDumpIntoOccupiedGroup(t *testing.T) {
	f := newTestStore(t)
	e := NewEngine(NewRegistry())

	require.NoError(t, e.DumpInto(f.Root(), 1))
	assert.Error(t, e.DumpInto(f.Root(), 2))
}

func TestFailedDumpLeavesNoSibling(t *testing.T) {
	type boom struct{}

	reg := NewRegistry()
	reg.RegisterDump(boom{}, func(w *Writer, obj any) error {
		return fmt.Errorf("refused")
	})

	f := newTestStore(t)
	e := NewEngine(reg)

	_, err := e.DumpTo(f.Root(), "b", boom{})
	require.Error(t, err)
	assert.False(t, f.Root().Exists("b"))
}

func TestReservedAttrRejected(t *testing.T) {
	type sneaky struct{}

	reg := NewRegistry()
	reg.RegisterDump(sneaky{}, func(w *Writer, obj any) error {
		return w.SetAttr(AttrTypeName, "forged")
	})

	f := newTestStore(t)
	_, err := NewEngine(reg).DumpTo(f.Root(), "s", sneaky{})
	assert.Error(t, err)
}

func TestLoadMissingTag(t *testing.T) {
	f := newTestStore(t)
	g, err := f.Root().CreateGroup("plain")
	require.NoError(t, err)

	_, err = NewEngine(NewRegistry()).LoadFrom(g)
	var mpErr *MalformedPickleError
	require.ErrorAs(t, err, &mpErr)
	assert.Equal(t, "/plain", mpErr.Path)
}

func TestLoadUnknownTag(t *testing.T) {
	f := newTestStore(t)
	g, err := f.Root().CreateGroup("mystery")
	require.NoError(t, err)
	require.NoError(t, g.SetAttr(AttrTypeName, "no.such.Type"))

	_, err = NewEngine(NewRegistry()).LoadFrom(g)
	var trErr *TypeResolutionError
	require.ErrorAs(t, err, &trErr)
	assert.Equal(t, "no.such.Type", trErr.Tag)
}

func TestLoaderPanicBecomesError(t *testing.T) {
	type fragile struct{}

	reg := NewRegistry()
	reg.RegisterDump(fragile{}, func(w *Writer, obj any) error { return nil })
	reg.RegisterLoad(fragile{}, func(r *Reader) (any, error) {
		panic("broken loader")
	})

	f := newTestStore(t)
	e := NewEngine(reg)
	grp, err := e.DumpTo(f.Root(), "f", fragile{})
	require.NoError(t, err)

	_, err = e.LoadFrom(grp)
	var rcErr *ReconstructionError
	require.ErrorAs(t, err, &rcErr)
	assert.Contains(t, rcErr.Error(), "broken loader")
}

func TestAttributeSizeLimit(t *testing.T) {
	reg := NewRegistry()
	e := NewEngine(reg, WithAttributeSizeLimit(8))
	f := newTestStore(t)

	small := []byte("abc")
	grp, err := e.DumpTo(f.Root(), "small", small)
	require.NoError(t, err)
	assert.True(t, grp.HasAttr("value"))
	assert.False(t, grp.Exists("value"))

	big := []byte("0123456789abcdef")
	grp, err = e.DumpTo(f.Root(), "big", big)
	require.NoError(t, err)
	assert.False(t, grp.HasAttr("value"))
	assert.True(t, grp.Exists("value"))

	// Both storage forms load identically.
	got, err := e.LoadFrom(mustGroup(t, f.Root(), "small"))
	require.NoError(t, err)
	assert.Equal(t, small, got)

	got, err = e.LoadFrom(mustGroup(t, f.Root(), "big"))
	require.NoError(t, err)
	assert.Equal(t, big, got)
}

func TestDeepNesting(t *testing.T) {
	v := any(7)
	for i := 0; i < 40; i++ {
		v = []any{v}
	}

	got := roundTrip(t, v)
	assert.Equal(t, v, got)
}

func TestRoundTripThroughDisk(t *testing.T) {
	path := filepath.Join(t.TempDir(), "disk.h5p")

	f, err := store.Create(path)
	require.NoError(t, err)

	e := NewEngine(NewRegistry())
	_, err = e.DumpTo(f.Root(), "payload", map[string]any{
		"name":   "run-1",
		"count":  3,
		"values": []float64{0.5, 1.5},
	})
	require.NoError(t, err)
	require.NoError(t, f.Close())

	f2, err := store.Open(path)
	require.NoError(t, err)
	defer f2.Close()

	got, err := NewEngine(NewRegistry()).LoadFrom(mustGroup(t, f2.Root(), "payload"))
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"name":   "run-1",
		"count":  3,
		"values": []float64{0.5, 1.5},
	}, got)
}

package pickle

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robert-malhotra/go-h5pickle/store"
)

func TestDumpLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "obj.h5p")

	in := map[string]any{
		"experiment": "trial-7",
		"samples":    []float64{0.1, 0.2, 0.3},
		"repeat":     4,
	}
	require.NoError(t, Dump(in, path))

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, in, got)
}

func TestDumpTruncatesExisting(t *testing.T) {
	path := filepath.Join(t.TempDir(), "obj.h5p")

	require.NoError(t, Dump("first", path))
	require.NoError(t, Dump("second", path))

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "second", got)
}

func TestDumpWithName(t *testing.T) {
	path := filepath.Join(t.TempDir(), "multi.h5p")

	f, err := store.Create(path)
	require.NoError(t, err)
	require.NoError(t, Dump(10, f, WithName("first")))
	require.NoError(t, Dump("twenty", f, WithName("second")))
	require.NoError(t, f.Close())

	got, err := Load(path, WithName("first"))
	require.NoError(t, err)
	assert.Equal(t, 10, got)

	got, err = Load(path, WithName("second"))
	require.NoError(t, err)
	assert.Equal(t, "twenty", got)

	// The untagged root loads as a map of its named children.
	got, err = Load(path)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"first": 10, "second": "twenty"}, got)
}

func TestDumpNameCollisionTopLevel(t *testing.T) {
	f := newTestStore(t)

	require.NoError(t, Dump(1, f, WithName("x")))
	err := Dump(2, f, WithName("x"))
	var ncErr *NameCollisionError
	require.ErrorAs(t, err, &ncErr)

	require.NoError(t, Dump(2, f, WithName("x"), WithDumpOptions(WithOverwrite())))
	got, err := Load(f, WithName("x"))
	require.NoError(t, err)
	assert.Equal(t, 2, got)
}

func TestLoadWithPattern(t *testing.T) {
	f := newTestStore(t)
	require.NoError(t, Dump([]int{1, 2}, f, WithName("left")))
	require.NoError(t, Dump([]int{3}, f, WithName("right")))

	got, err := Load(f, WithPattern("**/right"))
	require.NoError(t, err)
	assert.Equal(t, []int{3}, got)

	got, err = Load(f, WithPattern("left@"+AttrTypeName))
	require.NoError(t, err)
	assert.Equal(t, "[]int", got)
}

func TestDumpIntoGroup(t *testing.T) {
	f := newTestStore(t)
	sub, err := f.Root().CreateGroup("nested")
	require.NoError(t, err)

	require.NoError(t, Dump(3.5, sub))

	got, err := Load(sub)
	require.NoError(t, err)
	assert.Equal(t, 3.5, got)
}

func TestDumpBadDestination(t *testing.T) {
	assert.Error(t, Dump(1, 42))

	_, err := Load(42)
	assert.Error(t, err)
}

func TestDeterministicOutput(t *testing.T) {
	in := map[string]any{
		"zeta":  1,
		"alpha": []int{2, 3},
		"mid":   "value",
	}

	dir := t.TempDir()
	p1 := filepath.Join(dir, "one.h5p")
	p2 := filepath.Join(dir, "two.h5p")
	require.NoError(t, Dump(in, p1))
	require.NoError(t, Dump(in, p2))

	b1, err := os.ReadFile(p1)
	require.NoError(t, err)
	b2, err := os.ReadFile(p2)
	require.NoError(t, err)
	assert.Equal(t, b1, b2, "identical inputs produce byte-identical files")
}

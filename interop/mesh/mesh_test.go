package mesh

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robert-malhotra/go-h5pickle/interop/numeric"
	"github.com/robert-malhotra/go-h5pickle/pickle"
)

func sampleMesh(t *testing.T) Mesh {
	t.Helper()

	vertices, err := numeric.NewArray([]float64{0, 0, 1, 0, 0, 1, 1, 1}, 4, 2)
	require.NoError(t, err)

	indices, err := numeric.NewArray([]int32{0, 1, 2, 1, 3, 2}, 2, 3)
	require.NoError(t, err)

	nodes, err := numeric.NewArray([]float64{0.5, 0.25, 0.75, 0.5}, 2, 2)
	require.NoError(t, err)

	return Mesh{
		Dim:      2,
		Vertices: vertices,
		Groups: []ElementGroup{
			{Order: 1, VertexIndices: indices, Nodes: nodes},
		},
	}
}

func TestMeshRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mesh.h5p")

	in := sampleMesh(t)
	require.NoError(t, pickle.Dump(in, path))

	got, err := pickle.Load(path)
	require.NoError(t, err)
	require.IsType(t, Mesh{}, got)

	out := got.(Mesh)
	assert.Equal(t, in, out)
	assert.Equal(t, 1, out.NumGroups())
}

func TestDOFArrayRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dof.h5p")

	a1, err := numeric.NewArray([]float64{1, 2, 3})
	require.NoError(t, err)
	a2, err := numeric.NewArray([]float64{4, 5, 6, 7}, 2, 2)
	require.NoError(t, err)

	in := DOFArray{Arrays: []numeric.Array{a1, a2}}
	require.NoError(t, pickle.Dump(in, path))

	got, err := pickle.Load(path)
	require.NoError(t, err)
	require.IsType(t, DOFArray{}, got)
	assert.Equal(t, in, got)
	assert.Equal(t, 2, got.(DOFArray).NumEntries())
}

func TestMeshInsideContainer(t *testing.T) {
	path := filepath.Join(t.TempDir(), "both.h5p")

	in := map[string]any{
		"mesh":  sampleMesh(t),
		"label": "unit square",
	}
	require.NoError(t, pickle.Dump(in, path))

	got, err := pickle.Load(path, pickle.WithPattern("**/mesh"))
	require.NoError(t, err)
	assert.Equal(t, in["mesh"], got)
}

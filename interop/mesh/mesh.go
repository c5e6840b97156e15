// Package mesh persists discretization containers built from numeric
// arrays. The types carry no custom encodings: registering them under
// stable names is enough for the structural codec to map exported scalar
// fields to attributes and everything else to child nodes. Importing the
// package registers its types with the default pickle registry.
package mesh

import (
	"github.com/robert-malhotra/go-h5pickle/interop/numeric"
	"github.com/robert-malhotra/go-h5pickle/pickle"
)

// DOFArray is a degrees-of-freedom payload: one array per element group.
type DOFArray struct {
	Arrays []numeric.Array
}

// ElementGroup describes one homogeneous batch of mesh elements.
type ElementGroup struct {
	Order         int
	VertexIndices numeric.Array
	Nodes         numeric.Array
}

// Mesh is a collection of element groups sharing one vertex array.
type Mesh struct {
	Dim      int
	Vertices numeric.Array
	Groups   []ElementGroup
}

func init() {
	pickle.RegisterName("mesh.DOFArray", DOFArray{})
	pickle.RegisterName("mesh.ElementGroup", ElementGroup{})
	pickle.RegisterName("mesh.Mesh", Mesh{})
}

// NumGroups returns the number of element groups.
func (m Mesh) NumGroups() int {
	return len(m.Groups)
}

// NumEntries returns the number of per-group arrays.
func (d DOFArray) NumEntries() int {
	return len(d.Arrays)
}

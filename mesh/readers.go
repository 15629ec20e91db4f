package mesh

import (
	"fmt"

	"github.com/notargets/femkernel/element"
	"github.com/notargets/gocfd/DG3D/mesh/readers"
)

// ReadMeshFile loads a tetrahedral mesh file (Gambit neutral, Gmsh, SU2, as
// supported by the gocfd readers) and builds a closed Mesh from it. The
// partition assignment stored in the file, if any, is returned as cell →
// partition.
func ReadMeshFile(path string) (m *Mesh, cellPartitions []int, err error) {
	msh, err := readers.ReadMeshFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("reading mesh file %s: %w", path, err)
	}

	if m, err = tetMesh(msh.Vertices, msh.EtoV); err != nil {
		return nil, nil, fmt.Errorf("mesh file %s: %w", path, err)
	}

	if len(msh.EToP) == len(msh.EtoV) {
		cellPartitions = append([]int(nil), msh.EToP...)
	}
	return m, cellPartitions, nil
}

// tetMesh checks file supplied connectivity against the vertex list and
// builds the mesh. Bad indices are returned as errors so the editor never
// sees them.
func tetMesh(vertices [][]float64, cells [][]int) (*Mesh, error) {
	if len(cells) == 0 {
		return nil, fmt.Errorf("no tetrahedra")
	}
	for i, x := range vertices {
		if len(x) < 3 {
			return nil, fmt.Errorf("vertex %d has %d coordinates, need 3", i, len(x))
		}
	}
	// Verify that this mesh holds only valid tetrahedra
	nv := len(vertices)
	for k, verts := range cells {
		if len(verts) != 4 {
			return nil, fmt.Errorf("element %d has %d vertices, only tetrahedra are supported", k, len(verts))
		}
		for j, v := range verts {
			if v < 0 || v >= nv {
				return nil, fmt.Errorf("element %d references vertex %d, valid range [0, %d)", k, v, nv)
			}
			for _, w := range verts[:j] {
				if w == v {
					return nil, fmt.Errorf("element %d repeats vertex %d", k, v)
				}
			}
		}
	}

	m := New()
	var ed Editor
	ed.Open(m, element.Tetrahedron, 3, 3)
	ed.InitVertices(nv)
	for i, x := range vertices {
		ed.AddVertex(i, x[0], x[1], x[2])
	}
	ed.InitCells(len(cells))
	for k, verts := range cells {
		ed.AddCell(k, verts...)
	}
	ed.Close()
	return m, nil
}

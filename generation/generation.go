// Package generation builds simple simplex meshes of reference domains.
package generation

import (
	"context"
	"fmt"

	"github.com/notargets/femkernel/comm"
	"github.com/notargets/femkernel/element"
	"github.com/notargets/femkernel/mesh"
	"github.com/notargets/femkernel/partitions"
)

// UnitTetrahedron builds the mesh of the reference tetrahedron with
// vertices (0,0,0), (1,0,0), (0,1,0), (0,0,1). It is collective over c:
// the root edits the single cell and distributes it, receiver ranks wait
// for their part, which is empty for every rank but the root.
func UnitTetrahedron(ctx context.Context, c comm.Comm) (*mesh.Mesh, *partitions.Halo, error) {
	role := comm.RoleOf(c)
	if role == comm.Receiver {
		return partitions.BuildDistributedMesh(ctx, c, role, nil)
	}

	m := mesh.New()
	var ed mesh.Editor
	ed.Open(m, element.Tetrahedron, 3, 3)
	ed.InitVertices(4)
	for i, x := range element.Tetrahedron.ReferenceVertices() {
		ed.AddVertex(i, x...)
	}
	ed.InitCells(1)
	ed.AddCell(0, 0, 1, 2, 3)
	ed.Close()

	return partitions.BuildDistributedMesh(ctx, c, role, m)
}

// BoxMesh returns a serial mesh of the unit cube split into nx × ny × nz
// hexahedra, each cut into six tetrahedra sharing its main diagonal
func BoxMesh(nx, ny, nz int) *mesh.Mesh {
	if nx < 1 || ny < 1 || nz < 1 {
		panic(fmt.Sprintf("box mesh needs positive cell counts, got %d×%d×%d", nx, ny, nz))
	}
	vid := func(i, j, k int) int { return i + (nx+1)*(j+(ny+1)*k) }

	m := mesh.New()
	var ed mesh.Editor
	ed.Open(m, element.Tetrahedron, 3, 3)
	ed.InitVertices((nx + 1) * (ny + 1) * (nz + 1))
	for k := 0; k <= nz; k++ {
		for j := 0; j <= ny; j++ {
			for i := 0; i <= nx; i++ {
				ed.AddVertex(vid(i, j, k),
					float64(i)/float64(nx), float64(j)/float64(ny), float64(k)/float64(nz))
			}
		}
	}

	// Axis orderings of the six paths from corner (0,0,0) to (1,1,1)
	paths := [6][3]int{{0, 1, 2}, {0, 2, 1}, {1, 0, 2}, {1, 2, 0}, {2, 0, 1}, {2, 1, 0}}
	ed.InitCells(6 * nx * ny * nz)
	cell := 0
	for k := 0; k < nz; k++ {
		for j := 0; j < ny; j++ {
			for i := 0; i < nx; i++ {
				for _, path := range paths {
					p := [3]int{i, j, k}
					verts := make([]int, 0, 4)
					verts = append(verts, vid(p[0], p[1], p[2]))
					for _, axis := range path {
						p[axis]++
						verts = append(verts, vid(p[0], p[1], p[2]))
					}
					ed.AddCell(cell, verts...)
					cell++
				}
			}
		}
	}
	ed.Close()
	return m
}

// RectangleMesh returns a serial mesh of the unit square split into nx × ny
// quadrilaterals, each cut into two triangles along the diagonal
func RectangleMesh(nx, ny int) *mesh.Mesh {
	if nx < 1 || ny < 1 {
		panic(fmt.Sprintf("rectangle mesh needs positive cell counts, got %d×%d", nx, ny))
	}
	vid := func(i, j int) int { return i + (nx+1)*j }

	m := mesh.New()
	var ed mesh.Editor
	ed.Open(m, element.Triangle, 2, 2)
	ed.InitVertices((nx + 1) * (ny + 1))
	for j := 0; j <= ny; j++ {
		for i := 0; i <= nx; i++ {
			ed.AddVertex(vid(i, j), float64(i)/float64(nx), float64(j)/float64(ny))
		}
	}
	ed.InitCells(2 * nx * ny)
	cell := 0
	for j := 0; j < ny; j++ {
		for i := 0; i < nx; i++ {
			ed.AddCell(cell, vid(i, j), vid(i+1, j), vid(i+1, j+1))
			ed.AddCell(cell+1, vid(i, j), vid(i, j+1), vid(i+1, j+1))
			cell += 2
		}
	}
	ed.Close()
	return m
}

// Package fem holds function spaces over a mesh and the discrete operators
// between them.
package fem

import (
	"fmt"

	"github.com/notargets/femkernel/element"
	"github.com/notargets/femkernel/mesh"
)

// DofMap numbers the degrees of freedom of an element layout over a mesh.
// DOFs attached to entities of dimension d follow those of dimension d-1,
// entity by entity. Within a cell, local DOFs are ordered by dimension and
// then by the reference cell's local entity table.
type DofMap struct {
	dofsPerEntity []int
	offsets       []int   // [dim] first global DOF on entities of dimension dim
	cellDofs      [][]int // [cell] global DOFs in local order
	cellSize      int
	numDofs       int
}

// BuildDofMap lays out the DOFs of el over the entities of m
func BuildDofMap(m *mesh.Mesh, el *element.FiniteElement) *DofMap {
	if el.Cell != m.CellType() {
		panic(fmt.Sprintf("%s element on a %s mesh", el.Cell, m.CellType()))
	}
	D := m.Dim()
	dm := &DofMap{
		dofsPerEntity: append([]int(nil), el.DofsPerEntity...),
		offsets:       make([]int, D+1),
		cellDofs:      make([][]int, m.NumCells()),
		cellSize:      el.SpaceDimension(),
	}
	n := 0
	for d := 0; d <= D; d++ {
		dm.offsets[d] = n
		n += dm.dofsPerEntity[d] * m.NumEntities(d)
	}
	dm.numDofs = n

	top := m.Topology()
	for c := range dm.cellDofs {
		dofs := make([]int, 0, dm.cellSize)
		for d := 0; d <= D; d++ {
			k := dm.dofsPerEntity[d]
			if k == 0 {
				continue
			}
			for _, e := range top.CellEntities(d, c) {
				for i := 0; i < k; i++ {
					dofs = append(dofs, dm.offsets[d]+e*k+i)
				}
			}
		}
		dm.cellDofs[c] = dofs
	}
	return dm
}

// NumDofs returns the number of DOFs on this process
func (dm *DofMap) NumDofs() int { return dm.numDofs }

// NumCellDofs returns the number of DOFs on one cell
func (dm *DofMap) NumCellDofs() int { return dm.cellSize }

// CellDofs returns the global DOFs of cell c in local order. The slice must
// not be modified.
func (dm *DofMap) CellDofs(c int) []int { return dm.cellDofs[c] }

// EntityDofs returns the DOFs attached to entity e of dimension dim
func (dm *DofMap) EntityDofs(dim, e int) []int {
	k := dm.dofsPerEntity[dim]
	out := make([]int, k)
	for i := range out {
		out[i] = dm.offsets[dim] + e*k + i
	}
	return out
}

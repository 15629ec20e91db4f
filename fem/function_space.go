package fem

import (
	"fmt"

	"github.com/notargets/femkernel/element"
	"github.com/notargets/femkernel/mesh"
)

// FunctionSpace is a finite element laid out over a mesh
type FunctionSpace struct {
	mesh    *mesh.Mesh
	element *element.FiniteElement
	dofmap  *DofMap
}

// NewFunctionSpace builds the DOF layout of el over the closed mesh m
func NewFunctionSpace(m *mesh.Mesh, el *element.FiniteElement) *FunctionSpace {
	if m == nil || el == nil {
		panic("function space needs a mesh and an element")
	}
	return &FunctionSpace{
		mesh:    m,
		element: el,
		dofmap:  BuildDofMap(m, el),
	}
}

// Mesh returns the underlying mesh
func (V *FunctionSpace) Mesh() *mesh.Mesh { return V.mesh }

// Element returns the element
func (V *FunctionSpace) Element() *element.FiniteElement { return V.element }

// DofMap returns the DOF layout
func (V *FunctionSpace) DofMap() *DofMap { return V.dofmap }

// Dim returns the number of DOFs of the space on this process
func (V *FunctionSpace) Dim() int { return V.dofmap.NumDofs() }

func (V *FunctionSpace) String() string {
	return fmt.Sprintf("%s space, %d dofs", V.element.ShortName, V.Dim())
}

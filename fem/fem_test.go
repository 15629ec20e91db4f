package fem

import (
	"testing"

	"github.com/notargets/femkernel/element"
	"github.com/notargets/femkernel/generation"
	"github.com/notargets/femkernel/mesh"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func referenceTet(globalVertices []int) *mesh.Mesh {
	m := mesh.New()
	var ed mesh.Editor
	ed.Open(m, element.Tetrahedron, 3, 3)
	ed.InitVertices(4)
	for i, x := range element.Tetrahedron.ReferenceVertices() {
		ed.AddVertex(i, x...)
	}
	ed.InitCells(1)
	ed.AddCell(0, 0, 1, 2, 3)
	if globalVertices != nil {
		ed.SetDistribution(globalVertices, []int{0}, make([]bool, 4), 4, 1)
	}
	ed.Close()
	return m
}

func spaces(m *mesh.Mesh) (V0, V1 *FunctionSpace) {
	ct := m.CellType()
	return NewFunctionSpace(m, element.NewN1Curl(ct)), NewFunctionSpace(m, element.NewLagrange(ct, 1))
}

func nodal(m *mesh.Mesh, f func(x []float64) float64) []float64 {
	u := make([]float64, m.NumVertices())
	for v := range u {
		u[v] = f(m.Geometry().Point(v))
	}
	return u
}

func TestDofMap(t *testing.T) {
	m := generation.BoxMesh(1, 1, 1)
	V0, V1 := spaces(m)
	assert.Equal(t, 19, V0.Dim())
	assert.Equal(t, 8, V1.Dim())
	assert.Equal(t, 6, V0.DofMap().NumCellDofs())
	assert.Equal(t, 4, V1.DofMap().NumCellDofs())
	assert.Equal(t, m.CellVertices(3), V1.DofMap().CellDofs(3))
	assert.Equal(t, m.Topology().CellEntities(1, 2), V0.DofMap().CellDofs(2))
	assert.Equal(t, []int{5}, V0.DofMap().EntityDofs(1, 5))

	assert.Panics(t, func() { NewFunctionSpace(m, element.NewLagrange(element.Triangle, 1)) })
}

func TestGradientReferenceTet(t *testing.T) {
	m := referenceTet(nil)
	V0, V1 := spaces(m)
	A, err := BuildGradient(V0, V1)
	require.NoError(t, err)

	rows, cols := A.Dims()
	assert.Equal(t, 6, rows)
	assert.Equal(t, 4, cols)
	assert.Equal(t, 12, A.NNZ())

	// f(x) = x on edges (2,3),(1,3),(1,2),(0,3),(0,2),(0,1)
	u := nodal(m, func(x []float64) float64 { return x[0] })
	assert.Equal(t, []float64{0, -1, -1, 0, 0, 1}, A.MulVec(u))
}

func TestGradientOrientationFollowsGlobalIndices(t *testing.T) {
	// Reversed global numbering flips every edge
	m := referenceTet([]int{3, 2, 1, 0})
	V0, V1 := spaces(m)
	A, err := BuildGradient(V0, V1)
	require.NoError(t, err)
	u := nodal(m, func(x []float64) float64 { return x[0] })
	assert.Equal(t, []float64{0, 1, 1, 0, 0, -1}, A.MulVec(u))
}

func TestGradientBoxMesh(t *testing.T) {
	m := generation.BoxMesh(2, 2, 2)
	V0, V1 := spaces(m)
	A, err := BuildGradient(V0, V1)
	require.NoError(t, err)
	assert.Equal(t, 2*m.NumEntities(1), A.NNZ())

	// Constants are annihilated
	ones := nodal(m, func([]float64) float64 { return 1 })
	for e, v := range A.MulVec(ones) {
		assert.Zero(t, v, "edge %d", e)
	}

	// Linear functions give the exact difference along each edge, from the
	// lower to the higher vertex index
	grad := []float64{2, 3, -1}
	u := nodal(m, func(x []float64) float64 { return 2*x[0] + 3*x[1] - x[2] + 5 })
	Au := A.MulVec(u)
	top := m.Topology()
	for e := 0; e < m.NumEntities(1); e++ {
		ev := top.EntityVertices(1, e)
		lo, hi := m.Geometry().Point(ev[0]), m.Geometry().Point(ev[1])
		want := 0.0
		for k := range grad {
			want += grad[k] * (hi[k] - lo[k])
		}
		assert.InDelta(t, want, Au[e], 1e-12, "edge %d", e)

		cols, vals := A.RowNonZeros(e)
		assert.Equal(t, []int{ev[0], ev[1]}, cols)
		assert.Equal(t, []float64{-1, 1}, vals)
	}
}

func TestGradientTriangles(t *testing.T) {
	m := generation.RectangleMesh(2, 1)
	V0, V1 := spaces(m)
	A, err := BuildGradient(V0, V1)
	require.NoError(t, err)
	rows, cols := A.Dims()
	assert.Equal(t, m.NumEntities(1), rows)
	assert.Equal(t, m.NumVertices(), cols)
	ones := nodal(m, func([]float64) float64 { return 1 })
	for _, v := range A.MulVec(ones) {
		assert.Zero(t, v)
	}
}

func TestGradientRejectsWrongSpaces(t *testing.T) {
	m := referenceTet(nil)
	V0, V1 := spaces(m)
	assert.Panics(t, func() { _, _ = BuildGradient(V1, V1) })
	assert.Panics(t, func() { _, _ = BuildGradient(V0, V0) })

	other := referenceTet(nil)
	_, W1 := spaces(other)
	assert.Panics(t, func() { _, _ = BuildGradient(V0, W1) })
}

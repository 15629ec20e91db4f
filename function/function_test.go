package function

import (
	"errors"
	"testing"

	"github.com/notargets/femkernel/element"
	"github.com/notargets/femkernel/fem"
	"github.com/notargets/femkernel/generation"
	"github.com/notargets/femkernel/mesh"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func p1(m *mesh.Mesh) *fem.FunctionSpace {
	return fem.NewFunctionSpace(m, element.NewLagrange(m.CellType(), 1))
}

func TestInterpolate(t *testing.T) {
	m := generation.BoxMesh(1, 1, 1)
	u := NewFunction(p1(m), "u")
	require.NoError(t, u.Interpolate(func(x []float64) float64 { return x[0] + 2*x[1] }))
	for v := 0; v < m.NumVertices(); v++ {
		x := m.Geometry().Point(v)
		assert.Equal(t, x[0]+2*x[1], u.Vector()[v])
	}

	w := NewFunction(fem.NewFunctionSpace(m, element.NewN1Curl(element.Tetrahedron)), "w")
	err := w.Interpolate(func([]float64) float64 { return 1 })
	assert.ErrorIs(t, err, ErrNotNodal)
}

func TestCellGradient(t *testing.T) {
	m := generation.BoxMesh(2, 1, 1)
	u := NewFunction(p1(m), "u")
	require.NoError(t, u.Interpolate(func(x []float64) float64 { return 3*x[0] - x[1] + 2*x[2] + 1 }))
	for c := 0; c < m.NumCells(); c++ {
		g, err := u.CellGradient(c)
		require.NoError(t, err)
		assert.InDeltaSlice(t, []float64{3, -1, 2}, g, 1e-12, "cell %d", c)
	}

	tri := generation.RectangleMesh(1, 1)
	w := NewFunction(p1(tri), "w")
	require.NoError(t, w.Interpolate(func(x []float64) float64 { return x[1] }))
	g, err := w.CellGradient(1)
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{0, 1}, g, 1e-12)

	e := NewFunction(fem.NewFunctionSpace(m, element.NewN1Curl(element.Tetrahedron)), "e")
	_, err = e.CellGradient(0)
	assert.ErrorIs(t, err, ErrNotNodal)
}

func TestConstant(t *testing.T) {
	k := NewConstant("k", 2, 2)
	assert.Equal(t, 4, k.Size())
	assert.False(t, k.IsSet())
	assert.Nil(t, k.Value())
	assert.Error(t, k.Set(1, 2))
	require.NoError(t, k.Set(1, 2, 3, 4))
	assert.True(t, k.IsSet())
	assert.Equal(t, []float64{1, 2, 3, 4}, k.Value())

	assert.Equal(t, 1, NewConstant("s").Size())
	assert.Panics(t, func() { NewConstant("bad", 0) })
}

// sumKernel writes scale × (sum of coefficient values) + x of the first node
func sumKernel(out, coeffs, constants, coords []float64) {
	s := 0.0
	for _, c := range coeffs {
		s += c
	}
	out[0] = constants[0]*s + coords[0]
	out[1] = float64(len(coords))
}

func TestEval(t *testing.T) {
	m := generation.BoxMesh(1, 1, 1)
	u := NewFunction(p1(m), "u")
	require.NoError(t, u.Interpolate(func(x []float64) float64 { return x[0] }))
	scale := NewConstant("scale")
	e := NewExpression(m, sumKernel, 1, 2, []*Function{u}, []*Constant{scale})
	assert.Equal(t, 2, e.Size())

	values := mat.NewDense(3, 2, nil)
	cells := []int{4, 1, 4}

	err := Eval(values, e, cells)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnsetConstant))
	assert.Contains(t, err.Error(), "scale")
	assert.False(t, e.AllConstantsSet())

	require.NoError(t, scale.Set(2))
	require.NoError(t, Eval(values, e, cells))

	g := m.Geometry()
	for i, c := range cells {
		s := 0.0
		for _, v := range m.CellVertices(c) {
			s += g.Point(v)[0]
		}
		want := 2*s + g.Point(g.CellNodes(c)[0])[0]
		assert.InDelta(t, want, values.At(i, 0), 1e-14, "row %d", i)
		assert.Equal(t, 12.0, values.At(i, 1))
	}
	// Repeated cells give identical rows
	assert.Equal(t, values.RawRowView(0), values.RawRowView(2))
}

func TestEvalEmptyCells(t *testing.T) {
	m := generation.BoxMesh(1, 1, 1)
	e := NewExpression(m, sumKernel, 1, 2, nil, []*Constant{NewConstant("k")})
	values := mat.NewDense(1, 2, []float64{42, 42})

	// Constants are checked even when no cell is requested
	assert.ErrorIs(t, Eval(values, e, nil), ErrUnsetConstant)

	require.NoError(t, e.Constants[0].Set(1))
	require.NoError(t, Eval(values, e, []int{}))
	assert.Equal(t, []float64{42, 42}, values.RawRowView(0))
}

func TestEvalZeroesScratch(t *testing.T) {
	m := generation.RectangleMesh(2, 2)
	var coordLen int
	accumulate := func(out, coeffs, constants, coords []float64) {
		coordLen = len(coords)
		for k := range out {
			out[k] += 1
		}
	}
	e := NewExpression(m, accumulate, 2, 3, nil, nil)
	cells := []int{0, 1, 2, 3, 7}
	values := mat.NewDense(len(cells), e.Size(), nil)
	require.NoError(t, Eval(values, e, cells))
	for i := range cells {
		for k := 0; k < e.Size(); k++ {
			assert.Equal(t, 1.0, values.At(i, k))
		}
	}
	// Three nodes restricted to the two geometric dimensions
	assert.Equal(t, 6, coordLen)
}

func TestEvalValidation(t *testing.T) {
	m := generation.BoxMesh(1, 1, 1)
	e := NewExpression(m, sumKernel, 1, 2, nil, nil)
	assert.Error(t, Eval(mat.NewDense(1, 3, nil), e, []int{0}))
	assert.Error(t, Eval(mat.NewDense(1, 2, nil), e, []int{0, 1}))
	assert.Error(t, Eval(mat.NewDense(1, 2, nil), e, []int{6}))
	assert.Error(t, Eval(nil, e, []int{0}))
}

func TestPackCoefficients(t *testing.T) {
	m := generation.BoxMesh(1, 1, 1)
	u := NewFunction(p1(m), "u")
	w := NewFunction(p1(m), "w")
	for i := range u.Vector() {
		u.Vector()[i] = float64(i)
		w.Vector()[i] = float64(-i)
	}
	e := NewExpression(m, sumKernel, 1, 1, []*Function{u, w}, nil)
	packed := PackCoefficients(e)
	r, c := packed.Dims()
	assert.Equal(t, m.NumCells(), r)
	assert.Equal(t, 8, c)
	for cell := 0; cell < r; cell++ {
		for j, v := range m.CellVertices(cell) {
			assert.Equal(t, float64(v), packed.At(cell, j))
			assert.Equal(t, float64(-v), packed.At(cell, 4+j))
		}
	}
	assert.Nil(t, PackCoefficients(NewExpression(m, sumKernel, 1, 1, nil, nil)))

	other := NewFunction(p1(generation.BoxMesh(1, 1, 1)), "other")
	assert.Panics(t, func() { NewExpression(m, sumKernel, 1, 1, []*Function{other}, nil) })
}

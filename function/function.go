// Package function holds finite element functions, constants and the
// evaluation of compiled expressions over mesh cells.
package function

import (
	"errors"
	"fmt"

	"github.com/notargets/femkernel/element"
	"github.com/notargets/femkernel/fem"
	"gonum.org/v1/gonum/mat"
)

// Function is a finite element function: a space and its DOF values
type Function struct {
	name  string
	space *fem.FunctionSpace
	x     []float64
}

// NewFunction returns the zero function on V
func NewFunction(V *fem.FunctionSpace, name string) *Function {
	return &Function{name: name, space: V, x: make([]float64, V.Dim())}
}

// Name returns the function name
func (u *Function) Name() string { return u.name }

// Space returns the function space
func (u *Function) Space() *fem.FunctionSpace { return u.space }

// Vector returns the DOF values. The slice is shared with u.
func (u *Function) Vector() []float64 { return u.x }

// ErrNotNodal is returned when interpolating into a space whose DOFs are
// not point values at the vertices
var ErrNotNodal = errors.New("interpolation needs a P1 Lagrange space")

// Interpolate sets the DOFs of a P1 function to the values of f at the
// mesh vertices
func (u *Function) Interpolate(f func(x []float64) float64) error {
	el := u.space.Element()
	if !el.Is(element.Lagrange, 1, el.Cell) {
		return fmt.Errorf("function %q in %s space: %w", u.name, el.ShortName, ErrNotNodal)
	}
	m := u.space.Mesh()
	g := m.Geometry()
	dm := u.space.DofMap()
	for v := 0; v < m.NumVertices(); v++ {
		u.x[dm.EntityDofs(0, v)[0]] = f(g.Point(v))
	}
	return nil
}

// CellGradient returns the gradient of a P1 function on cell c, constant
// over the cell, with gdim components. The cell must not be embedded in a
// higher dimensional space.
func (u *Function) CellGradient(c int) ([]float64, error) {
	el := u.space.Element()
	if !el.Is(element.Lagrange, 1, el.Cell) {
		return nil, fmt.Errorf("function %q in %s space: %w", u.name, el.ShortName, ErrNotNodal)
	}
	am, err := u.space.Mesh().CellMap(c)
	if err != nil {
		return nil, err
	}
	invT, err := am.InverseTranspose()
	if err != nil {
		return nil, fmt.Errorf("cell %d: %w", c, err)
	}

	// Reference gradient of the linear interpolant: u(v_i) - u(v_0)
	dofs := u.space.DofMap().CellDofs(c)
	tdim := len(dofs) - 1
	ref := mat.NewVecDense(tdim, nil)
	for i := 1; i <= tdim; i++ {
		ref.SetVec(i-1, u.x[dofs[i]]-u.x[dofs[0]])
	}
	var grad mat.VecDense
	grad.MulVec(invT, ref)
	return grad.RawVector().Data, nil
}

// ErrUnsetConstant is returned when an expression is evaluated while one of
// its constants has no value
var ErrUnsetConstant = errors.New("constant has no value")

// Constant is a named tensor value shared by every cell. It has no value
// until Set is called.
type Constant struct {
	name  string
	shape []int
	value []float64
}

// NewConstant returns an unset constant of the given shape; no shape means
// a scalar
func NewConstant(name string, shape ...int) *Constant {
	for _, s := range shape {
		if s < 1 {
			panic(fmt.Sprintf("constant %q has invalid shape %v", name, shape))
		}
	}
	return &Constant{name: name, shape: append([]int(nil), shape...)}
}

// Name returns the constant name
func (k *Constant) Name() string { return k.name }

// Shape returns the tensor shape, empty for a scalar
func (k *Constant) Shape() []int { return append([]int(nil), k.shape...) }

// Size returns the number of scalar components
func (k *Constant) Size() int {
	n := 1
	for _, s := range k.shape {
		n *= s
	}
	return n
}

// Set assigns the value in row major order
func (k *Constant) Set(values ...float64) error {
	if len(values) != k.Size() {
		return fmt.Errorf("constant %q needs %d values, got %d", k.name, k.Size(), len(values))
	}
	k.value = append([]float64(nil), values...)
	return nil
}

// IsSet reports whether the constant has a value
func (k *Constant) IsSet() bool { return k.value != nil }

// Value returns a copy of the value, nil when unset
func (k *Constant) Value() []float64 {
	if k.value == nil {
		return nil
	}
	return append([]float64(nil), k.value...)
}

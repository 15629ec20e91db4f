package function

import (
	"fmt"

	"github.com/notargets/femkernel/mesh"
	"gonum.org/v1/gonum/mat"
)

// TabulateFn is a compiled kernel evaluating an expression on one cell.
// out holds NumPoints × ValueSize values and is zero on entry, coeffs is the
// packed coefficient row of the cell, constants the packed constants and
// coords the cell's geometric nodes, gdim values per node.
type TabulateFn func(out, coeffs, constants, coords []float64)

// Expression couples a tabulation kernel with the coefficients and
// constants it reads
type Expression struct {
	Mesh         *mesh.Mesh
	Tabulate     TabulateFn
	Coefficients []*Function
	Constants    []*Constant
	NumPoints    int
	ValueSize    int
}

// NewExpression returns an expression on m producing numPoints × valueSize
// values per cell
func NewExpression(m *mesh.Mesh, fn TabulateFn, numPoints, valueSize int,
	coefficients []*Function, constants []*Constant) *Expression {
	if m == nil || fn == nil {
		panic("expression needs a mesh and a tabulation kernel")
	}
	if numPoints < 1 || valueSize < 1 {
		panic(fmt.Sprintf("invalid expression layout %d points × %d values", numPoints, valueSize))
	}
	for _, u := range coefficients {
		if u.Space().Mesh() != m {
			panic(fmt.Sprintf("coefficient %q lives on another mesh", u.Name()))
		}
	}
	return &Expression{
		Mesh:         m,
		Tabulate:     fn,
		Coefficients: coefficients,
		Constants:    constants,
		NumPoints:    numPoints,
		ValueSize:    valueSize,
	}
}

// Size returns the number of values produced per cell
func (e *Expression) Size() int { return e.NumPoints * e.ValueSize }

// AllConstantsSet reports whether every constant has a value
func (e *Expression) AllConstantsSet() bool {
	for _, k := range e.Constants {
		if !k.IsSet() {
			return false
		}
	}
	return true
}

// PackCoefficients gathers the cell DOF values of every coefficient: row c
// holds the values on cell c, coefficient after coefficient in local DOF
// order. It returns nil when there is nothing to pack.
func PackCoefficients(e *Expression) *mat.Dense {
	width := 0
	for _, u := range e.Coefficients {
		width += u.Space().DofMap().NumCellDofs()
	}
	nc := e.Mesh.NumCells()
	if width == 0 || nc == 0 {
		return nil
	}
	packed := mat.NewDense(nc, width, nil)
	for c := 0; c < nc; c++ {
		row := packed.RawRowView(c)
		off := 0
		for _, u := range e.Coefficients {
			x := u.Vector()
			for _, dof := range u.Space().DofMap().CellDofs(c) {
				row[off] = x[dof]
				off++
			}
		}
	}
	return packed
}

// PackConstants concatenates the constant values. It fails with
// ErrUnsetConstant naming the first constant without a value.
func PackConstants(e *Expression) ([]float64, error) {
	var packed []float64
	for _, k := range e.Constants {
		if !k.IsSet() {
			return nil, fmt.Errorf("constant %q: %w", k.Name(), ErrUnsetConstant)
		}
		packed = append(packed, k.value...)
	}
	return packed, nil
}

// Eval tabulates e on activeCells and writes the values for
// activeCells[i] into row i of values, which needs at least
// len(activeCells) rows and e.Size() columns. Cells may repeat and come in
// any order. Rows past len(activeCells) are left untouched.
func Eval(values *mat.Dense, e *Expression, activeCells []int) error {
	constants, err := PackConstants(e)
	if err != nil {
		return err
	}
	if len(activeCells) == 0 {
		return nil
	}
	if values == nil {
		return fmt.Errorf("no output buffer for %d cells", len(activeCells))
	}
	if r, c := values.Dims(); r < len(activeCells) || c != e.Size() {
		return fmt.Errorf("output is %d×%d, need at least %d×%d", r, c, len(activeCells), e.Size())
	}
	nc := e.Mesh.NumCells()
	for _, c := range activeCells {
		if c < 0 || c >= nc {
			return fmt.Errorf("cell %d out of range [0, %d)", c, nc)
		}
	}

	coeffs := PackCoefficients(e)
	g := e.Mesh.Geometry()
	gdim := g.Dim()
	coords := make([]float64, g.NumCellNodes()*gdim)
	scratch := make([]float64, e.Size())

	for i, c := range activeCells {
		for j, node := range g.CellNodes(c) {
			copy(coords[j*gdim:(j+1)*gdim], g.X().RawRowView(node)[:gdim])
		}
		for k := range scratch {
			scratch[k] = 0
		}
		var row []float64
		if coeffs != nil {
			row = coeffs.RawRowView(c)
		}
		e.Tabulate(scratch, row, constants, coords)
		values.SetRow(i, scratch)
	}
	return nil
}

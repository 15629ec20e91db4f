package element

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// AffineMap is the map x = x0 + J*X from the reference simplex to a
// physical cell. Coordinates are the cell vertex rows, restricted to the
// geometric dimension gdim; for a cell of topological dimension d the
// Jacobian is [gdim × d].
type AffineMap struct {
	Origin []float64  // x0, the first vertex
	J      *mat.Dense // ∂x/∂X
	Cell   CellType   // Reference cell
}

// NewAffineMap builds the affine map of a simplex cell from its packed
// vertex coordinates (row-major, one row of length gdim per vertex)
func NewAffineMap(cell CellType, coords []float64, gdim int) (*AffineMap, error) {
	nv := cell.NumVertices()
	if len(coords) != nv*gdim {
		return nil, fmt.Errorf("%s needs %d coordinates for gdim %d, got %d",
			cell, nv*gdim, gdim, len(coords))
	}
	tdim := cell.Dim()
	if tdim > gdim {
		return nil, fmt.Errorf("%s cannot be embedded in %d dimensions", cell, gdim)
	}

	am := &AffineMap{
		Origin: append([]float64(nil), coords[:gdim]...),
		J:      mat.NewDense(gdim, max(tdim, 1), nil),
		Cell:   cell,
	}
	for j := 0; j < tdim; j++ {
		for i := 0; i < gdim; i++ {
			am.J.Set(i, j, coords[(j+1)*gdim+i]-coords[i])
		}
	}
	return am, nil
}

// Det returns the (pseudo-)determinant of the Jacobian, sqrt(det(JᵀJ)) for
// embedded cells
func (am *AffineMap) Det() float64 {
	gdim, tdim := am.J.Dims()
	if am.Cell.Dim() == 0 {
		return 1
	}
	if gdim == tdim {
		return mat.Det(am.J)
	}
	var jtj mat.Dense
	jtj.Mul(am.J.T(), am.J)
	d := mat.Det(&jtj)
	if d < 0 {
		return 0
	}
	return math.Sqrt(d)
}

// Volume returns the measure of the physical cell
func (am *AffineMap) Volume() float64 {
	fact := 1.0
	for k := 2; k <= am.Cell.Dim(); k++ {
		fact *= float64(k)
	}
	return math.Abs(am.Det()) / fact
}

// InverseTranspose returns J⁻ᵀ for a non-embedded cell, mapping reference
// gradients to physical gradients
func (am *AffineMap) InverseTranspose() (*mat.Dense, error) {
	gdim, tdim := am.J.Dims()
	if gdim != tdim {
		return nil, fmt.Errorf("inverse of a %d×%d Jacobian", gdim, tdim)
	}
	var inv mat.Dense
	if err := inv.Inverse(am.J); err != nil {
		return nil, fmt.Errorf("degenerate cell: %w", err)
	}
	var invT mat.Dense
	invT.CloneFrom(inv.T())
	return &invT, nil
}

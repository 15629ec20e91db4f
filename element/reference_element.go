package element

import "fmt"

// Family identifies a finite element family
type Family uint8

const (
	Lagrange Family = iota // H1 conforming nodal element
	N1Curl                 // Nedelec first kind, H(curl) conforming
)

func (f Family) String() string {
	switch f {
	case Lagrange:
		return "Lagrange"
	case N1Curl:
		return "N1curl"
	default:
		return fmt.Sprintf("Family(%d)", uint8(f))
	}
}

// ElementProperties contains metadata describing a finite element
type ElementProperties struct {
	Name          string   // Full descriptive name (e.g., "Lagrange Tetrahedron Order 1")
	ShortName     string   // Abbreviated name (e.g., "P1Tet")
	Family        Family   // Element family
	Cell          CellType // Reference cell shape
	Degree        int      // Polynomial degree
	ValueSize     int      // Number of scalar components of a basis function
	DofsPerEntity []int    // [dim] number of DOFs attached to each entity of that dimension
	Dimensions    Dimensionality
}

// FiniteElement describes the local DOF layout of an element
type FiniteElement struct {
	ElementProperties
}

// NewLagrange returns the nodal Lagrange element of the given degree.
// Only degree 1 is supported.
func NewLagrange(cell CellType, degree int) *FiniteElement {
	if degree != 1 {
		panic(fmt.Sprintf("Lagrange degree %d not supported, only degree 1", degree))
	}
	dofs := make([]int, cell.Dim()+1)
	dofs[0] = 1
	return &FiniteElement{ElementProperties{
		Name:          fmt.Sprintf("Lagrange %s Order %d", titleCase(cell), degree),
		ShortName:     fmt.Sprintf("P%d%s", degree, shortCell(cell)),
		Family:        Lagrange,
		Cell:          cell,
		Degree:        degree,
		ValueSize:     1,
		DofsPerEntity: dofs,
		Dimensions:    cell.Dimensions(),
	}}
}

// NewN1Curl returns the lowest order Nedelec (first kind) edge element
func NewN1Curl(cell CellType) *FiniteElement {
	if cell.Dim() < 2 {
		panic(fmt.Sprintf("N1curl is not defined on %s cells", cell))
	}
	dofs := make([]int, cell.Dim()+1)
	dofs[1] = 1
	return &FiniteElement{ElementProperties{
		Name:          fmt.Sprintf("Nedelec 1st kind H(curl) %s Order 1", titleCase(cell)),
		ShortName:     "N1curl" + shortCell(cell),
		Family:        N1Curl,
		Cell:          cell,
		Degree:        1,
		ValueSize:     cell.Dim(),
		DofsPerEntity: dofs,
		Dimensions:    cell.Dimensions(),
	}}
}

// SpaceDimension returns the number of local DOFs on one cell
func (fe *FiniteElement) SpaceDimension() int {
	n := 0
	for d, k := range fe.DofsPerEntity {
		n += k * fe.Cell.NumEntities(d)
	}
	return n
}

// Is reports whether the element belongs to the family at the given degree
// on the given cell
func (fe *FiniteElement) Is(family Family, degree int, cell CellType) bool {
	return fe.Family == family && fe.Degree == degree && fe.Cell == cell
}

func titleCase(ct CellType) string {
	s := ct.String()
	if s == "" {
		return s
	}
	return string(s[0]-'a'+'A') + s[1:]
}

func shortCell(ct CellType) string {
	switch ct {
	case Interval:
		return "Int"
	case Triangle:
		return "Tri"
	case Tetrahedron:
		return "Tet"
	default:
		return "Pt"
	}
}

package element

import "fmt"

// Dimensionality represents the topological dimension of a cell
type Dimensionality uint8

const (
	D0 Dimensionality = iota // points
	D1                       // intervals
	D2                       // triangles
	D3                       // tetrahedra
)

// CellType identifies the shape of a simplex cell
type CellType uint8

const (
	Point CellType = iota
	Interval
	Triangle
	Tetrahedron
)

func (ct CellType) String() string {
	switch ct {
	case Point:
		return "point"
	case Interval:
		return "interval"
	case Triangle:
		return "triangle"
	case Tetrahedron:
		return "tetrahedron"
	default:
		return fmt.Sprintf("CellType(%d)", uint8(ct))
	}
}

// CellTypeFromDim returns the simplex of topological dimension dim
func CellTypeFromDim(dim int) CellType {
	if dim < 0 || dim > 3 {
		panic(fmt.Sprintf("no simplex cell of dimension %d", dim))
	}
	return CellType(dim)
}

// Dim returns the topological dimension of the cell
func (ct CellType) Dim() int { return int(ct) }

// Dimensions returns the dimensionality of the cell
func (ct CellType) Dimensions() Dimensionality { return Dimensionality(ct) }

// NumVertices returns the number of vertices of the cell
func (ct CellType) NumVertices() int { return ct.Dim() + 1 }

// NumEntities returns the number of sub-entities of dimension dim
func (ct CellType) NumEntities(dim int) int {
	return len(ct.EntityVertices(dim))
}

// Local entity-to-vertex tables in UFC ordering: facet i is opposite vertex i
// and every entity lists its vertices in ascending local order.
var (
	pointEntities = [][][]int{
		{{0}},
	}
	intervalEntities = [][][]int{
		{{0}, {1}},
		{{0, 1}},
	}
	triangleEntities = [][][]int{
		{{0}, {1}, {2}},
		{{1, 2}, {0, 2}, {0, 1}},
		{{0, 1, 2}},
	}
	tetrahedronEntities = [][][]int{
		{{0}, {1}, {2}, {3}},
		{{2, 3}, {1, 3}, {1, 2}, {0, 3}, {0, 2}, {0, 1}},
		{{1, 2, 3}, {0, 2, 3}, {0, 1, 3}, {0, 1, 2}},
		{{0, 1, 2, 3}},
	}
)

// EntityVertices returns, for each local entity of dimension dim, the local
// vertex indices that define it. The returned slices must not be modified.
func (ct CellType) EntityVertices(dim int) [][]int {
	var table [][][]int
	switch ct {
	case Point:
		table = pointEntities
	case Interval:
		table = intervalEntities
	case Triangle:
		table = triangleEntities
	case Tetrahedron:
		table = tetrahedronEntities
	default:
		panic(fmt.Sprintf("unknown cell type %d", ct))
	}
	if dim < 0 || dim >= len(table) {
		panic(fmt.Sprintf("%s has no entities of dimension %d", ct, dim))
	}
	return table[dim]
}

// ReferenceVertices returns the vertex coordinates of the reference simplex,
// vertex 0 at the origin and vertex i at the unit vector e_{i-1}
func (ct CellType) ReferenceVertices() [][]float64 {
	d := ct.Dim()
	verts := make([][]float64, d+1)
	for i := range verts {
		verts[i] = make([]float64, d)
		if i > 0 {
			verts[i][i-1] = 1
		}
	}
	return verts
}

package mesh

import (
	"fmt"
	"strings"

	"github.com/notargets/femkernel/element"
	"gonum.org/v1/gonum/mat"
)

// Mesh is an unstructured simplex mesh: a topology of entities of every
// dimension 0..D, the vertex coordinates, and the domain markers attached to
// its entities. A Mesh is created through an Editor and its connectivity is
// immutable once the editor is closed.
type Mesh struct {
	topology *Topology
	geometry *Geometry
	domains  *MeshDomains

	// Distributed bookkeeping. For a serial mesh the global indices are the
	// local ones and no vertex is a ghost.
	globalVertexIndices []int  // [local vertex] → global vertex index
	globalCellIndices   []int  // [local cell] → global cell index
	ghostVertices       []bool // [local vertex] → true if owned by another rank
	numGlobalVertices   int
	numGlobalCells      int

	closed bool
}

// New returns an empty mesh, ready to be opened by an Editor
func New() *Mesh {
	m := &Mesh{}
	m.domains = newMeshDomains(m)
	return m
}

// Topology returns the mesh topology. It panics if the mesh is not closed.
func (m *Mesh) Topology() *Topology {
	m.mustBeClosed()
	return m.topology
}

// Geometry returns the mesh geometry. It panics if the mesh is not closed.
func (m *Mesh) Geometry() *Geometry {
	m.mustBeClosed()
	return m.geometry
}

// Domains returns the domain markers of the mesh
func (m *Mesh) Domains() *MeshDomains { return m.domains }

// IsClosed reports whether the mesh has been finalised by an Editor
func (m *Mesh) IsClosed() bool { return m.closed }

// Dim returns the topological dimension
func (m *Mesh) Dim() int { return m.Topology().Dim() }

// CellType returns the cell shape
func (m *Mesh) CellType() element.CellType { return m.Topology().CellType() }

// NumVertices returns the number of local vertices
func (m *Mesh) NumVertices() int { return m.Topology().Size(0) }

// NumCells returns the number of local cells
func (m *Mesh) NumCells() int { return m.Topology().Size(m.Dim()) }

// NumEntities returns the number of local entities of dimension dim
func (m *Mesh) NumEntities(dim int) int { return m.Topology().Size(dim) }

// CellVertices returns the vertex indices of cell c in local order
func (m *Mesh) CellVertices(c int) []int {
	return m.Topology().EntityVertices(m.Dim(), c)
}

// GlobalVertexIndex returns the global index of local vertex v
func (m *Mesh) GlobalVertexIndex(v int) int { return m.globalVertexIndices[v] }

// GlobalCellIndex returns the global index of local cell c
func (m *Mesh) GlobalCellIndex(c int) int { return m.globalCellIndices[c] }

// GlobalVertexIndices returns a copy of the local-to-global vertex map
func (m *Mesh) GlobalVertexIndices() []int {
	return append([]int(nil), m.globalVertexIndices...)
}

// GlobalCellIndices returns a copy of the local-to-global cell map
func (m *Mesh) GlobalCellIndices() []int {
	return append([]int(nil), m.globalCellIndices...)
}

// IsGhostVertex reports whether local vertex v is owned by another process
func (m *Mesh) IsGhostVertex(v int) bool { return m.ghostVertices[v] }

// NumOwnedVertices returns the number of local vertices this process owns
func (m *Mesh) NumOwnedVertices() int {
	n := 0
	for _, g := range m.ghostVertices {
		if !g {
			n++
		}
	}
	return n
}

// NumGlobalVertices returns the number of vertices across all processes
func (m *Mesh) NumGlobalVertices() int { return m.numGlobalVertices }

// NumGlobalCells returns the number of cells across all processes
func (m *Mesh) NumGlobalCells() int { return m.numGlobalCells }

// IsDistributed reports whether the mesh is one part of a distributed mesh
func (m *Mesh) IsDistributed() bool {
	return m.numGlobalCells != m.NumCells() || m.numGlobalVertices != m.NumVertices()
}

func (m *Mesh) mustBeClosed() {
	if !m.closed {
		panic("mesh is not closed, finish editing with Editor.Close first")
	}
}

// CellMap returns the affine map from the reference cell to cell c
func (m *Mesh) CellMap(c int) (*element.AffineMap, error) {
	g := m.Geometry()
	coords := make([]float64, 0, g.NumCellNodes()*g.Dim())
	for _, n := range g.CellNodes(c) {
		coords = append(coords, g.x.RawRowView(n)[:g.gdim]...)
	}
	return element.NewAffineMap(m.CellType(), coords, g.gdim)
}

// Measure returns the summed volume (area, length) of the local cells
func (m *Mesh) Measure() float64 {
	total := 0.0
	for c := 0; c < m.NumCells(); c++ {
		am, err := m.CellMap(c)
		if err != nil {
			panic(err)
		}
		total += am.Volume()
	}
	return total
}

// String returns a short summary of the mesh
func (m *Mesh) String() string {
	if !m.closed {
		return "<open mesh>"
	}
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%s mesh, tdim=%d gdim=%d:", m.CellType(), m.Dim(), m.geometry.Dim()))
	for d := 0; d <= m.Dim(); d++ {
		sb.WriteString(fmt.Sprintf(" %d", m.NumEntities(d)))
	}
	if m.IsDistributed() {
		sb.WriteString(fmt.Sprintf(" (global cells %d, ghost vertices %d)",
			m.numGlobalCells, m.NumVertices()-m.NumOwnedVertices()))
	}
	return sb.String()
}

// Topology holds the entities of every dimension and their vertex
// connectivity. Entity indices are contiguous and zero based in every
// dimension.
type Topology struct {
	cellType element.CellType
	dim      int

	// [dim][entity] → sorted vertex indices (cells keep their input order)
	entityVertices [][][]int
	// [dim][cell] → entity indices following the local entity table
	cellEntities [][][]int
}

// Dim returns the topological dimension
func (t *Topology) Dim() int { return t.dim }

// CellType returns the cell shape
func (t *Topology) CellType() element.CellType { return t.cellType }

// Size returns the number of entities of dimension dim
func (t *Topology) Size(dim int) int {
	t.checkDim(dim)
	return len(t.entityVertices[dim])
}

// EntityVertices returns the vertices of entity i of dimension dim. The
// slice must not be modified.
func (t *Topology) EntityVertices(dim, i int) []int {
	t.checkDim(dim)
	return t.entityVertices[dim][i]
}

// CellEntities returns the indices of the dimension-dim entities of cell c,
// in the order of the reference cell's local entity table
func (t *Topology) CellEntities(dim, c int) []int {
	t.checkDim(dim)
	return t.cellEntities[dim][c]
}

func (t *Topology) checkDim(dim int) {
	if dim < 0 || dim > t.dim {
		panic(fmt.Sprintf("entity dimension %d out of range [0, %d]", dim, t.dim))
	}
}

type entityKey [4]int

func makeEntityKey(verts []int) (key entityKey, sorted []int) {
	sorted = append([]int(nil), verts...)
	// At most 4 vertices, insertion sort
	for i := 1; i < len(sorted); i++ {
		for j := i; j > 0 && sorted[j] < sorted[j-1]; j-- {
			sorted[j], sorted[j-1] = sorted[j-1], sorted[j]
		}
	}
	for i := range key {
		key[i] = -1
	}
	copy(key[:], sorted)
	return
}

// buildTopology numbers the entities of every intermediate dimension in the
// order they are first met while walking the cells
func buildTopology(ct element.CellType, numVertices int, cells [][]int) *Topology {
	D := ct.Dim()
	t := &Topology{
		cellType:       ct,
		dim:            D,
		entityVertices: make([][][]int, D+1),
		cellEntities:   make([][][]int, D+1),
	}

	// Vertices
	t.entityVertices[0] = make([][]int, numVertices)
	for v := range t.entityVertices[0] {
		t.entityVertices[0][v] = []int{v}
	}
	t.cellEntities[0] = cells

	// Cells
	t.entityVertices[D] = cells
	t.cellEntities[D] = make([][]int, len(cells))
	for c := range cells {
		t.cellEntities[D][c] = []int{c}
	}

	// Intermediate dimensions
	for d := 1; d < D; d++ {
		local := ct.EntityVertices(d)
		index := make(map[entityKey]int)
		t.cellEntities[d] = make([][]int, len(cells))
		verts := make([]int, d+1)
		for c, cv := range cells {
			ce := make([]int, len(local))
			for i, lv := range local {
				for j, l := range lv {
					verts[j] = cv[l]
				}
				key, sorted := makeEntityKey(verts)
				e, ok := index[key]
				if !ok {
					e = len(t.entityVertices[d])
					index[key] = e
					t.entityVertices[d] = append(t.entityVertices[d], sorted)
				}
				ce[i] = e
			}
			t.cellEntities[d][c] = ce
		}
	}
	return t
}

// Geometry holds the vertex coordinates and the geometric dofmap
type Geometry struct {
	gdim int
	// [numNodes × 3] node coordinates, unused components are zero; nil
	// when the mesh part holds no vertices
	x *mat.Dense
	// [cell] → geometric node indices; equal to the cell vertices for
	// affine simplices
	dofmap [][]int
}

// Dim returns the geometric dimension
func (g *Geometry) Dim() int { return g.gdim }

// X returns the [numNodes × 3] coordinate matrix, nil for an empty mesh
// part. It must not be modified.
func (g *Geometry) X() *mat.Dense { return g.x }

// NumNodes returns the number of geometric nodes
func (g *Geometry) NumNodes() int {
	if g.x == nil {
		return 0
	}
	r, _ := g.x.Dims()
	return r
}

// Point returns the gdim coordinates of node i
func (g *Geometry) Point(i int) []float64 {
	return append([]float64(nil), g.x.RawRowView(i)[:g.gdim]...)
}

// CellNodes returns the geometric nodes of cell c
func (g *Geometry) CellNodes(c int) []int { return g.dofmap[c] }

// NumCellNodes returns the number of geometric nodes per cell
func (g *Geometry) NumCellNodes() int {
	if len(g.dofmap) == 0 {
		return 0
	}
	return len(g.dofmap[0])
}

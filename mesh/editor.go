package mesh

import (
	"fmt"

	"github.com/notargets/femkernel/element"
	"gonum.org/v1/gonum/mat"
)

// Editor builds a Mesh through the edit protocol:
//
//	Open → InitVertices → AddVertex... → InitCells → AddCell... → Close
//
// Any call out of that order, or with an index out of range, is a
// programming error and panics.
type Editor struct {
	mesh     *Mesh
	cellType element.CellType
	tdim     int
	gdim     int

	numVertices int
	numCells    int
	coords      []float64 // [numVertices × 3]
	vertexAdded []bool
	cells       [][]int
	cellAdded   []bool

	globalVertices []int
	globalCells    []int
	ghostVertices  []bool
	numGlobalVerts int
	numGlobalCells int
	distributed    bool

	state editorState
}

type editorState uint8

const (
	editorClosed editorState = iota
	editorOpen
	editorVertices
	editorCells
)

// Open starts editing an empty mesh
func (e *Editor) Open(m *Mesh, cellType element.CellType, tdim, gdim int) {
	if e.state != editorClosed {
		panic("mesh editor is already open")
	}
	if m == nil {
		panic("cannot open a nil mesh")
	}
	if m.closed {
		panic("mesh is already closed, create a new mesh to edit")
	}
	if tdim < 1 || tdim > 3 || element.CellTypeFromDim(tdim) != cellType {
		panic(fmt.Sprintf("cell type %s does not have topological dimension %d", cellType, tdim))
	}
	if gdim < tdim || gdim > 3 {
		panic(fmt.Sprintf("geometric dimension %d invalid for topological dimension %d", gdim, tdim))
	}
	*e = Editor{
		mesh:     m,
		cellType: cellType,
		tdim:     tdim,
		gdim:     gdim,
		state:    editorOpen,
	}
}

// InitVertices declares the number of vertices. It must precede AddVertex.
func (e *Editor) InitVertices(n int) {
	if e.state != editorOpen {
		panic("InitVertices must be called once, right after Open")
	}
	if n < 0 {
		panic(fmt.Sprintf("negative vertex count %d", n))
	}
	e.numVertices = n
	e.coords = make([]float64, 3*n)
	e.vertexAdded = make([]bool, n)
	e.state = editorVertices
}

// AddVertex sets the coordinates of vertex i. Exactly gdim coordinates are
// required.
func (e *Editor) AddVertex(i int, x ...float64) {
	if e.state != editorVertices {
		panic("AddVertex called before InitVertices or after InitCells")
	}
	if i < 0 || i >= e.numVertices {
		panic(fmt.Sprintf("vertex index %d out of range [0, %d)", i, e.numVertices))
	}
	if len(x) != e.gdim {
		panic(fmt.Sprintf("vertex %d has %d coordinates, geometric dimension is %d", i, len(x), e.gdim))
	}
	copy(e.coords[3*i:], x)
	e.vertexAdded[i] = true
}

// InitCells declares the number of cells. It must follow the vertices.
func (e *Editor) InitCells(n int) {
	if e.state != editorVertices {
		panic("InitCells must follow InitVertices")
	}
	if n < 0 {
		panic(fmt.Sprintf("negative cell count %d", n))
	}
	e.numCells = n
	e.cells = make([][]int, n)
	e.cellAdded = make([]bool, n)
	e.state = editorCells
}

// AddCell sets the vertices of cell i
func (e *Editor) AddCell(i int, vertices ...int) {
	if e.state != editorCells {
		panic("AddCell called before InitCells")
	}
	if i < 0 || i >= e.numCells {
		panic(fmt.Sprintf("cell index %d out of range [0, %d)", i, e.numCells))
	}
	if nv := e.cellType.NumVertices(); len(vertices) != nv {
		panic(fmt.Sprintf("cell %d has %d vertices, %s needs %d", i, len(vertices), e.cellType, nv))
	}
	for j, v := range vertices {
		if v < 0 || v >= e.numVertices {
			panic(fmt.Sprintf("cell %d vertex %d out of range [0, %d)", i, v, e.numVertices))
		}
		for _, w := range vertices[:j] {
			if w == v {
				panic(fmt.Sprintf("cell %d repeats vertex %d", i, v))
			}
		}
	}
	e.cells[i] = append([]int(nil), vertices...)
	e.cellAdded[i] = true
}

// SetDistribution records the global numbering of the local entities of a
// distributed mesh part. It is called between InitCells and Close.
func (e *Editor) SetDistribution(globalVertices, globalCells []int, ghostVertices []bool,
	numGlobalVertices, numGlobalCells int) {
	if e.state != editorCells {
		panic("SetDistribution must follow InitCells")
	}
	if len(globalVertices) != e.numVertices || len(ghostVertices) != e.numVertices {
		panic(fmt.Sprintf("distribution has %d/%d vertex entries, mesh has %d vertices",
			len(globalVertices), len(ghostVertices), e.numVertices))
	}
	if len(globalCells) != e.numCells {
		panic(fmt.Sprintf("distribution has %d cell entries, mesh has %d cells",
			len(globalCells), e.numCells))
	}
	e.globalVertices = append([]int(nil), globalVertices...)
	e.globalCells = append([]int(nil), globalCells...)
	e.ghostVertices = append([]bool(nil), ghostVertices...)
	e.numGlobalVerts = numGlobalVertices
	e.numGlobalCells = numGlobalCells
	e.distributed = true
}

// Close finalises the mesh: every declared vertex and cell must have been
// added. Topology, geometry and the domain marker store are built here.
func (e *Editor) Close() {
	if e.state != editorCells {
		panic("Close called before InitCells")
	}
	for i, ok := range e.vertexAdded {
		if !ok {
			panic(fmt.Sprintf("vertex %d was declared but never added", i))
		}
	}
	for i, ok := range e.cellAdded {
		if !ok {
			panic(fmt.Sprintf("cell %d was declared but never added", i))
		}
	}

	m := e.mesh
	m.topology = buildTopology(e.cellType, e.numVertices, e.cells)

	dofmap := make([][]int, e.numCells)
	for c, verts := range e.cells {
		dofmap[c] = verts
	}
	m.geometry = &Geometry{
		gdim:   e.gdim,
		dofmap: dofmap,
	}
	if e.numVertices > 0 {
		m.geometry.x = mat.NewDense(e.numVertices, 3, e.coords)
	}

	if !e.distributed {
		m.globalVertexIndices = identity(e.numVertices)
		m.globalCellIndices = identity(e.numCells)
		m.ghostVertices = make([]bool, e.numVertices)
		m.numGlobalVertices = e.numVertices
		m.numGlobalCells = e.numCells
	} else {
		m.globalVertexIndices = e.globalVertices
		m.globalCellIndices = e.globalCells
		m.ghostVertices = e.ghostVertices
		m.numGlobalVertices = e.numGlobalVerts
		m.numGlobalCells = e.numGlobalCells
	}

	m.closed = true
	m.domains.Init(e.tdim)

	*e = Editor{}
}

func identity(n int) []int {
	r := make([]int, n)
	for i := range r {
		r[i] = i
	}
	return r
}

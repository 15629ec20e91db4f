package partitions

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/notargets/femkernel/comm"
	"github.com/notargets/femkernel/element"
	"github.com/notargets/femkernel/mesh"
	"github.com/notargets/femkernel/utils"
	"go.uber.org/zap"
)

// Halo holds the ghost exchange lists of one partition of a distributed
// mesh. Indices are local vertex indices of that partition.
type Halo struct {
	Partition int
	NumOwned  int
	Pick      map[int][]int // target partition → owned vertices to send
	Place     map[int][]int // source partition → ghost vertices to fill
}

// Neighbours returns the partitions this one exchanges data with, ascending
func (h *Halo) Neighbours() []int {
	set := make(map[int]struct{})
	for q := range h.Pick {
		set[q] = struct{}{}
	}
	for q := range h.Place {
		set[q] = struct{}{}
	}
	out := make([]int, 0, len(set))
	for q := range set {
		out = append(out, q)
	}
	sort.Ints(out)
	return out
}

// NumGhosts returns the number of ghost vertices filled by Update
func (h *Halo) NumGhosts() int {
	n := 0
	for _, idx := range h.Place {
		n += len(idx)
	}
	return n
}

type haloValues []float64

// Update sends the owned entries of values to the neighbours that hold
// them as ghosts and overwrites the local ghost entries with the owners'
// values. Every rank of the group must call Update.
func (h *Halo) Update(ctx context.Context, c comm.Comm, values []float64) error {
	if c.Rank() != h.Partition {
		return fmt.Errorf("halo of partition %d used on rank %d", h.Partition, c.Rank())
	}
	for _, q := range sortedKeys(h.Pick) {
		idx := h.Pick[q]
		buf := make(haloValues, len(idx))
		for i, v := range idx {
			buf[i] = values[v]
		}
		if err := c.Send(ctx, q, buf); err != nil {
			return err
		}
	}
	for _, q := range sortedKeys(h.Place) {
		msg, err := c.Recv(ctx, q)
		if err != nil {
			return err
		}
		buf, ok := msg.(haloValues)
		if !ok {
			return fmt.Errorf("halo update from rank %d: unexpected message %T", q, msg)
		}
		idx := h.Place[q]
		if len(buf) != len(idx) {
			return fmt.Errorf("halo update from rank %d: %d values for %d ghosts", q, len(buf), len(idx))
		}
		for i, v := range idx {
			values[v] = buf[i]
		}
	}
	return nil
}

func sortedKeys(m map[int][]int) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}

// ErrRoleMismatch is returned when the role passed to a collective does not
// match the rank it runs on
var ErrRoleMismatch = errors.New("role does not match rank")

type options struct {
	strategy      PartitionStrategy
	cellPartition []int
}

// Option configures BuildDistributedMesh
type Option func(*options)

// WithStrategy selects the partitioning strategy used by the root
func WithStrategy(s PartitionStrategy) Option {
	return func(o *options) { o.strategy = s }
}

// WithCellPartition distributes the mesh following a precomputed cell to
// partition assignment, one entry per cell
func WithCellPartition(cToP []int) Option {
	return func(o *options) { o.cellPartition = cToP }
}

// meshPart is the share of the mesh sent to one rank
type meshPart struct {
	CellType          element.CellType
	GDim              int
	Coords            []float64 // [numVertices × GDim]
	Cells             [][]int   // local vertex indices
	GlobalVertices    []int
	GlobalCells       []int
	Ghosts            []bool
	NumGlobalVertices int
	NumGlobalCells    int
	VertexMarkers     []mesh.Marker
	CellMarkers       []mesh.Marker
	Halo              *Halo
}

// BuildDistributedMesh is collective over c. The Root rank partitions the
// closed mesh m into c.Size() parts, keeps part 0 and sends every other rank
// its cells, vertex coordinates, global numbering and the vertex and cell
// markers. Receiver ranks pass a nil mesh and block until their part has
// arrived. Every rank returns its local mesh and halo.
//
// On a group of one process m is returned unchanged.
func BuildDistributedMesh(ctx context.Context, c comm.Comm, role comm.Role, m *mesh.Mesh,
	opts ...Option) (*mesh.Mesh, *Halo, error) {
	switch role {
	case comm.Receiver:
		if c.Rank() == 0 {
			return nil, nil, fmt.Errorf("receiver on rank 0: %w", ErrRoleMismatch)
		}
		return receivePart(ctx, c)
	case comm.Root:
		if c.Rank() != 0 {
			return nil, nil, fmt.Errorf("root on rank %d: %w", c.Rank(), ErrRoleMismatch)
		}
	default:
		return nil, nil, fmt.Errorf("unknown role %s", role)
	}

	if m == nil || !m.IsClosed() {
		return nil, nil, fmt.Errorf("root must pass a closed mesh")
	}
	if c.Size() == 1 {
		return m, &Halo{NumOwned: m.NumVertices(), Pick: map[int][]int{}, Place: map[int][]int{}}, nil
	}

	cfg := options{strategy: GraphPartition}
	for _, o := range opts {
		o(&cfg)
	}

	var (
		layout *PartitionLayout
		err    error
	)
	if cfg.cellPartition != nil {
		if len(cfg.cellPartition) != m.NumCells() {
			return nil, nil, fmt.Errorf("cell partition has %d entries, mesh has %d cells",
				len(cfg.cellPartition), m.NumCells())
		}
		layout, err = NewPartitionLayout(append([]int(nil), cfg.cellPartition...), c.Size())
	} else {
		pb := &PartitionBuilder{
			Mesh:          NewMeshConnectivity(m),
			NumPartitions: c.Size(),
			Strategy:      cfg.strategy,
		}
		layout, err = pb.BuildPartitions()
	}
	if err != nil {
		return nil, nil, err
	}

	cellVertices := make([][]int, m.NumCells())
	for k := range cellVertices {
		cellVertices[k] = m.CellVertices(k)
	}
	hc, err := NewHaloConnector(m.NumVertices(), cellVertices, layout.CToP, c.Size())
	if err != nil {
		return nil, nil, err
	}
	if err := hc.Verify(); err != nil {
		return nil, nil, fmt.Errorf("halo connector: %w", err)
	}

	stats := layout.PartitionStatistics()
	utils.Logger().Info("distributing mesh",
		zap.Int("ranks", c.Size()),
		zap.Int("cells", m.NumCells()),
		zap.Int("vertices", m.NumVertices()),
		zap.Int("min_cells", stats.MinCells),
		zap.Int("max_cells", stats.MaxCells),
		zap.Float64("imbalance", stats.Imbalance))

	for p := 1; p < c.Size(); p++ {
		if err := c.Send(ctx, p, extractPart(m, hc, p)); err != nil {
			return nil, nil, err
		}
	}
	own := extractPart(m, hc, 0)
	return buildPart(own), own.Halo, nil
}

func receivePart(ctx context.Context, c comm.Comm) (*mesh.Mesh, *Halo, error) {
	msg, err := c.Recv(ctx, 0)
	if err != nil {
		return nil, nil, err
	}
	part, ok := msg.(*meshPart)
	if !ok {
		return nil, nil, fmt.Errorf("rank %d: expected a mesh part, got %T", c.Rank(), msg)
	}
	local := buildPart(part)
	utils.Logger().Debug("received mesh part",
		zap.Int("rank", c.Rank()),
		zap.Int("cells", local.NumCells()),
		zap.Int("vertices", local.NumVertices()),
		zap.Int("ghosts", local.NumVertices()-local.NumOwnedVertices()))
	return local, part.Halo, nil
}

func extractPart(m *mesh.Mesh, hc *HaloConnector, p int) *meshPart {
	g := m.Geometry()
	gdim := g.Dim()
	verts := hc.LocalToGlobalVertex[p]
	cells := hc.LocalToGlobalCell[p]
	vmap := hc.GlobalToLocalVertex[p]

	part := &meshPart{
		CellType:          m.CellType(),
		GDim:              gdim,
		Coords:            make([]float64, 0, len(verts)*gdim),
		Cells:             make([][]int, len(cells)),
		GlobalVertices:    make([]int, len(verts)),
		GlobalCells:       make([]int, len(cells)),
		Ghosts:            make([]bool, len(verts)),
		NumGlobalVertices: m.NumGlobalVertices(),
		NumGlobalCells:    m.NumGlobalCells(),
		Halo:              hc.Halo(p),
	}
	for local, v := range verts {
		part.Coords = append(part.Coords, g.Point(v)...)
		part.GlobalVertices[local] = m.GlobalVertexIndex(v)
		part.Ghosts[local] = local >= hc.NumOwned[p]
	}
	cmap := make(map[int]int, len(cells))
	for local, k := range cells {
		cmap[k] = local
		part.GlobalCells[local] = m.GlobalCellIndex(k)
		cv := m.CellVertices(k)
		lv := make([]int, len(cv))
		for i, v := range cv {
			lv[i] = vmap[v]
		}
		part.Cells[local] = lv
	}

	md := m.Domains()
	for _, mk := range md.Markers(0) {
		if local, ok := vmap[mk.Entity]; ok {
			part.VertexMarkers = append(part.VertexMarkers, mesh.Marker{Entity: local, Value: mk.Value})
		}
	}
	for _, mk := range md.Markers(m.Dim()) {
		if local, ok := cmap[mk.Entity]; ok {
			part.CellMarkers = append(part.CellMarkers, mesh.Marker{Entity: local, Value: mk.Value})
		}
	}
	return part
}

func buildPart(part *meshPart) *mesh.Mesh {
	local := mesh.New()
	var ed mesh.Editor
	tdim := part.CellType.Dim()
	ed.Open(local, part.CellType, tdim, part.GDim)
	ed.InitVertices(len(part.GlobalVertices))
	for v := range part.GlobalVertices {
		ed.AddVertex(v, part.Coords[v*part.GDim:(v+1)*part.GDim]...)
	}
	ed.InitCells(len(part.Cells))
	for k, cv := range part.Cells {
		ed.AddCell(k, cv...)
	}
	ed.SetDistribution(part.GlobalVertices, part.GlobalCells, part.Ghosts,
		part.NumGlobalVertices, part.NumGlobalCells)
	ed.Close()

	md := local.Domains()
	for _, mk := range part.VertexMarkers {
		md.SetMarker(mk.Entity, mk.Value, 0)
	}
	for _, mk := range part.CellMarkers {
		md.SetMarker(mk.Entity, mk.Value, tdim)
	}
	return local
}

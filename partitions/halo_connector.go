package partitions

import (
	"fmt"
	"sort"
)

// HaloConnector manages pick and place indices for the shared vertices of
// a cell partition. Each vertex is owned by the lowest partition whose cells
// touch it; every other partition touching it holds a ghost copy. Vertices
// no cell touches are owned by partition 0.
//
// Local vertex numbering in partition p lists its owned vertices first, then
// its ghosts, each group in ascending global order.
type HaloConnector struct {
	NumPartitions int
	NumVertices   int // Global vertex count

	// Input connectivity
	CellVertices [][]int // Cell → global vertices
	CToP         []int   // Cell → partition mapping

	VertexOwner []int // Global vertex → owning partition

	// Partition mappings
	CellsPerPartition   []int         // Cells per partition
	LocalToGlobalCell   [][]int       // [partition][localCell] → globalCell
	LocalToGlobalVertex [][]int       // [partition][localVertex] → globalVertex
	GlobalToLocalVertex []map[int]int // [partition][globalVertex] → localVertex
	NumOwned            []int         // Owned vertices per partition

	// Pick/Place indices per partition
	PickIndices  [][]PickBuffer  // [sourcePartition][targetPartition]
	PlaceIndices [][]PlaceBuffer // [targetPartition][sourcePartition]
}

// PickBuffer contains indices for gathering owned values to send
type PickBuffer struct {
	Indices         []int // Local vertex indices in the source partition
	TargetPartition int
}

// PlaceBuffer contains indices for scattering received values
type PlaceBuffer struct {
	Indices         []int // Local ghost vertex indices in the target partition
	SourcePartition int
}

// NewHaloConnector creates a halo connector from cell connectivity and a
// cell to partition assignment
func NewHaloConnector(numVertices int, cellVertices [][]int, cToP []int, numPartitions int) (*HaloConnector, error) {
	// Validate inputs
	if numVertices < 0 || numPartitions < 1 {
		return nil, fmt.Errorf("invalid dimensions: numVertices=%d, numPartitions=%d", numVertices, numPartitions)
	}
	if len(cToP) != len(cellVertices) {
		return nil, fmt.Errorf("CToP length %d does not match cell count %d", len(cToP), len(cellVertices))
	}
	for c, p := range cToP {
		if p < 0 || p >= numPartitions {
			return nil, fmt.Errorf("cell %d assigned to partition %d, valid range [0, %d)", c, p, numPartitions)
		}
		for _, v := range cellVertices[c] {
			if v < 0 || v >= numVertices {
				return nil, fmt.Errorf("cell %d vertex %d out of range [0, %d)", c, v, numVertices)
			}
		}
	}

	hc := &HaloConnector{
		NumPartitions: numPartitions,
		NumVertices:   numVertices,
		CellVertices:  cellVertices,
		CToP:          cToP,
	}

	hc.buildCellMappings()
	hc.buildVertexMappings()
	hc.initializeBuffers()
	hc.BuildIndices()

	return hc, nil
}

// buildCellMappings numbers the cells of each partition in ascending
// global order
func (hc *HaloConnector) buildCellMappings() {
	hc.CellsPerPartition = make([]int, hc.NumPartitions)
	hc.LocalToGlobalCell = make([][]int, hc.NumPartitions)
	for globalCell, p := range hc.CToP {
		hc.CellsPerPartition[p]++
		hc.LocalToGlobalCell[p] = append(hc.LocalToGlobalCell[p], globalCell)
	}
}

// buildVertexMappings assigns vertex owners and local vertex numbers
func (hc *HaloConnector) buildVertexMappings() {
	hc.VertexOwner = make([]int, hc.NumVertices)
	for v := range hc.VertexOwner {
		hc.VertexOwner[v] = -1
	}
	touches := make([]map[int]struct{}, hc.NumPartitions)
	for p := range touches {
		touches[p] = make(map[int]struct{})
	}
	for c, p := range hc.CToP {
		for _, v := range hc.CellVertices[c] {
			touches[p][v] = struct{}{}
			if hc.VertexOwner[v] < 0 || p < hc.VertexOwner[v] {
				hc.VertexOwner[v] = p
			}
		}
	}
	for v, owner := range hc.VertexOwner {
		if owner < 0 {
			hc.VertexOwner[v] = 0
			touches[0][v] = struct{}{}
		}
	}

	hc.LocalToGlobalVertex = make([][]int, hc.NumPartitions)
	hc.GlobalToLocalVertex = make([]map[int]int, hc.NumPartitions)
	hc.NumOwned = make([]int, hc.NumPartitions)
	for p := 0; p < hc.NumPartitions; p++ {
		var owned, ghosts []int
		for v := range touches[p] {
			if hc.VertexOwner[v] == p {
				owned = append(owned, v)
			} else {
				ghosts = append(ghosts, v)
			}
		}
		sort.Ints(owned)
		sort.Ints(ghosts)
		hc.NumOwned[p] = len(owned)
		hc.LocalToGlobalVertex[p] = append(owned, ghosts...)
		hc.GlobalToLocalVertex[p] = make(map[int]int, len(hc.LocalToGlobalVertex[p]))
		for local, global := range hc.LocalToGlobalVertex[p] {
			hc.GlobalToLocalVertex[p][global] = local
		}
	}
}

// initializeBuffers creates empty pick and place buffer structures
func (hc *HaloConnector) initializeBuffers() {
	hc.PickIndices = make([][]PickBuffer, hc.NumPartitions)
	hc.PlaceIndices = make([][]PlaceBuffer, hc.NumPartitions)

	for p := 0; p < hc.NumPartitions; p++ {
		hc.PickIndices[p] = make([]PickBuffer, hc.NumPartitions)
		hc.PlaceIndices[p] = make([]PlaceBuffer, hc.NumPartitions)

		for q := 0; q < hc.NumPartitions; q++ {
			hc.PickIndices[p][q] = PickBuffer{
				Indices:         make([]int, 0),
				TargetPartition: q,
			}
			hc.PlaceIndices[p][q] = PlaceBuffer{
				Indices:         make([]int, 0),
				SourcePartition: q,
			}
		}
	}
}

// BuildIndices constructs pick and place indices for all partitions. Ghosts
// are walked in ascending global order so both sides of every pair agree on
// the message layout.
func (hc *HaloConnector) BuildIndices() {
	for p := 0; p < hc.NumPartitions; p++ {
		for local := hc.NumOwned[p]; local < len(hc.LocalToGlobalVertex[p]); local++ {
			global := hc.LocalToGlobalVertex[p][local]
			owner := hc.VertexOwner[global]
			ownerLocal := hc.GlobalToLocalVertex[owner][global]

			// Owner sends this vertex to partition p
			hc.PickIndices[owner][p].Indices = append(hc.PickIndices[owner][p].Indices, ownerLocal)

			// Partition p places the received value at its ghost slot
			hc.PlaceIndices[p][owner].Indices = append(hc.PlaceIndices[p][owner].Indices, local)
		}
	}
}

// GetPickIndices returns pick indices for sending from source to target partition
func (hc *HaloConnector) GetPickIndices(sourcePartition, targetPartition int) []int {
	if sourcePartition < 0 || sourcePartition >= hc.NumPartitions ||
		targetPartition < 0 || targetPartition >= hc.NumPartitions {
		return nil
	}
	return hc.PickIndices[sourcePartition][targetPartition].Indices
}

// GetPlaceIndices returns place indices for target partition receiving from source
func (hc *HaloConnector) GetPlaceIndices(targetPartition, sourcePartition int) []int {
	if targetPartition < 0 || targetPartition >= hc.NumPartitions ||
		sourcePartition < 0 || sourcePartition >= hc.NumPartitions {
		return nil
	}
	return hc.PlaceIndices[targetPartition][sourcePartition].Indices
}

// Verify checks index validity and conservation properties
func (hc *HaloConnector) Verify() error {
	// Verify 1: Local validity - picks address owned vertices only
	for p := 0; p < hc.NumPartitions; p++ {
		for q := 0; q < hc.NumPartitions; q++ {
			for _, idx := range hc.PickIndices[p][q].Indices {
				if idx < 0 || idx >= hc.NumOwned[p] {
					return fmt.Errorf("invalid pick index %d for partition %d (owned %d)",
						idx, p, hc.NumOwned[p])
				}
			}
			for _, idx := range hc.PlaceIndices[p][q].Indices {
				if idx < hc.NumOwned[p] || idx >= len(hc.LocalToGlobalVertex[p]) {
					return fmt.Errorf("invalid place index %d for partition %d", idx, p)
				}
			}
		}
	}

	// Verify 2: Correspondence - pick and place arrays have same length and
	// name the same global vertices
	for p := 0; p < hc.NumPartitions; p++ {
		for q := 0; q < hc.NumPartitions; q++ {
			pick := hc.PickIndices[p][q].Indices
			place := hc.PlaceIndices[q][p].Indices
			if len(pick) != len(place) {
				return fmt.Errorf("length mismatch: pick[%d][%d]=%d, place[%d][%d]=%d",
					p, q, len(pick), q, p, len(place))
			}
			for i := range pick {
				gp := hc.LocalToGlobalVertex[p][pick[i]]
				gq := hc.LocalToGlobalVertex[q][place[i]]
				if gp != gq {
					return fmt.Errorf("pick[%d][%d][%d] is vertex %d, place is vertex %d", p, q, i, gp, gq)
				}
			}
		}
	}

	// Verify 3: Conservation - every vertex is owned exactly once and every
	// ghost is placed exactly once
	totalOwned, totalGhosts, totalPlaces := 0, 0, 0
	for p := 0; p < hc.NumPartitions; p++ {
		totalOwned += hc.NumOwned[p]
		totalGhosts += len(hc.LocalToGlobalVertex[p]) - hc.NumOwned[p]
		for q := 0; q < hc.NumPartitions; q++ {
			totalPlaces += len(hc.PlaceIndices[p][q].Indices)
		}
	}
	if totalOwned != hc.NumVertices {
		return fmt.Errorf("conservation error: %d owned vertices, mesh has %d", totalOwned, hc.NumVertices)
	}
	if totalPlaces != totalGhosts {
		return fmt.Errorf("conservation error: total places %d != total ghosts %d", totalPlaces, totalGhosts)
	}

	return nil
}

// Exchange copies owned values to the ghost copies of every partition.
// values[p] is indexed by the local vertices of partition p.
func (hc *HaloConnector) Exchange(values [][]float64) error {
	if len(values) != hc.NumPartitions {
		return fmt.Errorf("got values for %d partitions, have %d", len(values), hc.NumPartitions)
	}
	for p := 0; p < hc.NumPartitions; p++ {
		if len(values[p]) != len(hc.LocalToGlobalVertex[p]) {
			return fmt.Errorf("partition %d: %d values for %d vertices", p, len(values[p]), len(hc.LocalToGlobalVertex[p]))
		}
	}
	for src := 0; src < hc.NumPartitions; src++ {
		for dst := 0; dst < hc.NumPartitions; dst++ {
			pick := hc.PickIndices[src][dst].Indices
			place := hc.PlaceIndices[dst][src].Indices
			for i := range pick {
				values[dst][place[i]] = values[src][pick[i]]
			}
		}
	}
	return nil
}

// Halo extracts the exchange lists of one partition
func (hc *HaloConnector) Halo(p int) *Halo {
	h := &Halo{
		Partition: p,
		NumOwned:  hc.NumOwned[p],
		Pick:      make(map[int][]int),
		Place:     make(map[int][]int),
	}
	for q := 0; q < hc.NumPartitions; q++ {
		if idx := hc.PickIndices[p][q].Indices; len(idx) > 0 {
			h.Pick[q] = append([]int(nil), idx...)
		}
		if idx := hc.PlaceIndices[p][q].Indices; len(idx) > 0 {
			h.Place[q] = append([]int(nil), idx...)
		}
	}
	return h
}

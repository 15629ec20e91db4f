package partitions

import (
	"fmt"
	"math"

	"github.com/notargets/femkernel/element"
	"github.com/notargets/femkernel/mesh"
)

// PartitionBuilder constructs partitions from mesh connectivity
type PartitionBuilder struct {
	// Mesh connectivity
	Mesh *MeshConnectivity

	// Partitioning parameters. NumPartitions wins when positive, otherwise
	// the count follows from TargetPartitionSize.
	NumPartitions       int
	TargetPartitionSize int // Desired cells per partition
	Strategy            PartitionStrategy
}

// MeshConnectivity provides the mesh topology needed for partitioning
type MeshConnectivity struct {
	NumCells     int
	CellVertices [][]int // Cell to vertex connectivity

	// Facet connectivity for keeping partitions compact. CToC[c][f] is the
	// cell across local facet f of c, or c itself on the boundary.
	CToC [][]int
}

// PartitionStrategy defines how cells are grouped
type PartitionStrategy int

const (
	// Simple strategies
	BlockPartition PartitionStrategy = iota // Consecutive cells
	RoundRobin                              // Distribute cyclically

	// Graph-based strategy: cells are ordered by a breadth first walk over
	// facet neighbours, then split into consecutive blocks
	GraphPartition
)

func (s PartitionStrategy) String() string {
	switch s {
	case BlockPartition:
		return "block"
	case RoundRobin:
		return "round-robin"
	case GraphPartition:
		return "graph"
	default:
		return fmt.Sprintf("PartitionStrategy(%d)", int(s))
	}
}

// NewMeshConnectivity extracts the cell connectivity of a closed mesh.
// Cells sharing a facet entity are neighbours.
func NewMeshConnectivity(m *mesh.Mesh) *MeshConnectivity {
	D := m.Dim()
	nc := m.NumCells()
	mc := &MeshConnectivity{
		NumCells:     nc,
		CellVertices: make([][]int, nc),
		CToC:         make([][]int, nc),
	}
	top := m.Topology()
	// facet → first cell seen on it
	owner := make(map[int]int)
	for c := 0; c < nc; c++ {
		mc.CellVertices[c] = append([]int(nil), m.CellVertices(c)...)
		facets := top.CellEntities(D-1, c)
		mc.CToC[c] = make([]int, len(facets))
		for f, facet := range facets {
			mc.CToC[c][f] = c
			if other, ok := owner[facet]; ok {
				mc.CToC[c][f] = other
				for g, of := range top.CellEntities(D-1, other) {
					if of == facet {
						mc.CToC[other][g] = c
					}
				}
			} else {
				owner[facet] = c
			}
		}
	}
	return mc
}

// NewCellConnectivity builds the connectivity of raw cells of the given
// type without constructing a mesh
func NewCellConnectivity(ct element.CellType, cells [][]int) *MeshConnectivity {
	D := ct.Dim()
	local := ct.EntityVertices(D - 1)
	mc := &MeshConnectivity{
		NumCells:     len(cells),
		CellVertices: cells,
		CToC:         make([][]int, len(cells)),
	}
	type facetRef struct{ cell, face int }
	seen := make(map[[3]int]facetRef)
	for c, cv := range cells {
		mc.CToC[c] = make([]int, len(local))
		for f, lv := range local {
			mc.CToC[c][f] = c
			key := [3]int{-1, -1, -1}
			for i, l := range lv {
				key[i] = cv[l]
			}
			sortKey(key[:len(lv)])
			if ref, ok := seen[key]; ok {
				mc.CToC[c][f] = ref.cell
				mc.CToC[ref.cell][ref.face] = c
			} else {
				seen[key] = facetRef{c, f}
			}
		}
	}
	return mc
}

func sortKey(k []int) {
	for i := 1; i < len(k); i++ {
		for j := i; j > 0 && k[j] < k[j-1]; j-- {
			k[j], k[j-1] = k[j-1], k[j]
		}
	}
}

// BuildPartitions creates a partition layout from mesh connectivity
func (pb *PartitionBuilder) BuildPartitions() (*PartitionLayout, error) {
	if pb.Mesh == nil {
		return nil, fmt.Errorf("partition builder has no mesh connectivity")
	}
	// Determine number of partitions needed
	numPartitions := pb.calculateNumPartitions()

	// Partition the cells
	cToP := pb.partitionCells(numPartitions)

	return NewPartitionLayout(cToP, numPartitions)
}

// NewPartitionLayout builds the layout of an existing cell to partition
// assignment, such as one read from a mesh file
func NewPartitionLayout(cToP []int, numPartitions int) (*PartitionLayout, error) {
	if numPartitions < 1 {
		return nil, fmt.Errorf("invalid partition count %d", numPartitions)
	}
	for c, p := range cToP {
		if p < 0 || p >= numPartitions {
			return nil, fmt.Errorf("cell %d assigned to partition %d, valid range [0, %d)", c, p, numPartitions)
		}
	}

	// Create partition structures
	partitions := createPartitions(cToP, numPartitions)

	layout := &PartitionLayout{
		Partitions:    partitions,
		MaxCells:      calculateMaxCells(partitions),
		TotalCells:    len(cToP),
		NumPartitions: numPartitions,
		CToP:          cToP,
	}

	// Validate the layout
	if err := layout.ValidateLayout(); err != nil {
		return nil, fmt.Errorf("invalid partition layout: %w", err)
	}

	return layout, nil
}

// calculateNumPartitions determines the partition count
func (pb *PartitionBuilder) calculateNumPartitions() int {
	if pb.NumPartitions > 0 {
		return pb.NumPartitions
	}
	numPartitions := 1
	if pb.TargetPartitionSize > 0 {
		numPartitions = int(math.Ceil(float64(pb.Mesh.NumCells) / float64(pb.TargetPartitionSize)))
	}

	// Ensure at least one partition
	if numPartitions < 1 {
		numPartitions = 1
	}

	return numPartitions
}

// partitionCells assigns cells to partitions
func (pb *PartitionBuilder) partitionCells(numPartitions int) []int {
	n := pb.Mesh.NumCells
	switch pb.Strategy {
	case RoundRobin:
		// Distribute cells cyclically
		cToP := make([]int, n)
		for i := 0; i < n; i++ {
			cToP[i] = i % numPartitions
		}
		return cToP

	case GraphPartition:
		if pb.Mesh.CToC == nil {
			return blockPartition(identityOrder(n), numPartitions)
		}
		return blockPartition(pb.breadthFirstOrder(), numPartitions)

	default:
		return blockPartition(identityOrder(n), numPartitions)
	}
}

// blockPartition splits order into numPartitions consecutive blocks
func blockPartition(order []int, numPartitions int) []int {
	cToP := make([]int, len(order))
	cellsPerPartition := int(math.Ceil(float64(len(order)) / float64(numPartitions)))
	if cellsPerPartition < 1 {
		cellsPerPartition = 1
	}
	for i, c := range order {
		cToP[c] = i / cellsPerPartition
		if cToP[c] >= numPartitions {
			cToP[c] = numPartitions - 1
		}
	}
	return cToP
}

// breadthFirstOrder visits every cell, walking facet neighbours from the
// lowest unvisited cell of each connected component
func (pb *PartitionBuilder) breadthFirstOrder() []int {
	n := pb.Mesh.NumCells
	visited := make([]bool, n)
	order := make([]int, 0, n)
	for start := 0; start < n; start++ {
		if visited[start] {
			continue
		}
		visited[start] = true
		queue := []int{start}
		for len(queue) > 0 {
			c := queue[0]
			queue = queue[1:]
			order = append(order, c)
			for _, nb := range pb.Mesh.CToC[c] {
				if !visited[nb] {
					visited[nb] = true
					queue = append(queue, nb)
				}
			}
		}
	}
	return order
}

func identityOrder(n int) []int {
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	return order
}

// createPartitions builds partition structures from cell assignments
func createPartitions(cToP []int, numPartitions int) []Partition {
	partitions := make([]Partition, numPartitions)

	// Initialize partitions
	for i := range partitions {
		partitions[i] = Partition{
			ID:    i,
			Cells: make([]int, 0),
		}
	}

	// Assign cells to partitions
	for cell, part := range cToP {
		partitions[part].Cells = append(partitions[part].Cells, cell)
		partitions[part].NumCells++
	}

	return partitions
}

// calculateMaxCells finds maximum cells across all partitions
func calculateMaxCells(partitions []Partition) int {
	maxCells := 0
	for _, p := range partitions {
		if p.NumCells > maxCells {
			maxCells = p.NumCells
		}
	}
	return maxCells
}

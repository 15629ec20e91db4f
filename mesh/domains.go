package mesh

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/notargets/femkernel/utils"
	"go.uber.org/zap"
)

// DefaultUnsetValue marks entities that carry no domain marker
const DefaultUnsetValue uint64 = math.MaxUint64

// ErrNoSuchMarker is returned when looking up an entity that has no marker
var ErrNoSuchMarker = errors.New("marked entity index does not exist in marked set")

// MeshDomains stores subdomain and boundary markers: for every topological
// dimension 0..MaxDim a sparse map from entity index to tag. Dense cell and
// facet tag arrays are built from it on demand and cached until the markers
// are cleared or replaced.
//
// MeshDomains is safe for concurrent queries; mutation must not race with
// other calls on the same store.
type MeshDomains struct {
	mesh    *Mesh
	markers []map[int]uint64 // [dim] entity → tag

	mu           sync.Mutex
	cellDomains  *MeshFunction
	facetDomains *MeshFunction
}

func newMeshDomains(m *Mesh) *MeshDomains {
	return &MeshDomains{mesh: m}
}

// Init drops all markers and allocates empty marker maps for dimensions
// 0..dim
func (md *MeshDomains) Init(dim int) {
	if dim < 0 {
		panic(fmt.Sprintf("negative marker dimension %d", dim))
	}
	md.mu.Lock()
	defer md.mu.Unlock()
	md.clearLocked()
	md.markers = make([]map[int]uint64, dim+1)
	for d := range md.markers {
		md.markers[d] = make(map[int]uint64)
	}
}

// MaxDim returns the highest dimension with a marker map, 0 when empty
func (md *MeshDomains) MaxDim() int {
	md.mu.Lock()
	defer md.mu.Unlock()
	if len(md.markers) == 0 {
		return 0
	}
	return len(md.markers) - 1
}

// NumMarked returns the number of marked entities of dimension dim
func (md *MeshDomains) NumMarked(dim int) int {
	md.mu.Lock()
	defer md.mu.Unlock()
	return len(md.markersAt(dim))
}

// IsEmpty reports whether no entity of any dimension is marked
func (md *MeshDomains) IsEmpty() bool {
	md.mu.Lock()
	defer md.mu.Unlock()
	for _, m := range md.markers {
		if len(m) > 0 {
			return false
		}
	}
	return true
}

// SetMarker tags entity with value at dimension dim. An entity keeps the
// first tag it is given: SetMarker returns false, and changes nothing, if the
// entity is already marked.
func (md *MeshDomains) SetMarker(entity int, value uint64, dim int) bool {
	md.mu.Lock()
	defer md.mu.Unlock()
	md.checkDim(dim)
	if _, ok := md.markers[dim][entity]; ok {
		return false
	}
	md.markers[dim][entity] = value
	return true
}

// GetMarker returns the tag of entity at dimension dim
func (md *MeshDomains) GetMarker(entity, dim int) (uint64, error) {
	md.mu.Lock()
	defer md.mu.Unlock()
	value, ok := md.markersAt(dim)[entity]
	if !ok {
		return 0, fmt.Errorf("entity %d of dimension %d: %w", entity, dim, ErrNoSuchMarker)
	}
	return value, nil
}

// Marker is one (entity, tag) pair
type Marker struct {
	Entity int
	Value  uint64
}

// Markers returns the markers of dimension dim sorted by entity index
func (md *MeshDomains) Markers(dim int) []Marker {
	md.mu.Lock()
	defer md.mu.Unlock()
	m := md.markersAt(dim)
	out := make([]Marker, 0, len(m))
	for e, v := range m {
		out = append(out, Marker{Entity: e, Value: v})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Entity < out[j].Entity })
	return out
}

// Clear removes every marker map and the cached dense arrays. Queries then
// report no markers; Init must be called again before markers can be set.
func (md *MeshDomains) Clear() {
	md.mu.Lock()
	defer md.mu.Unlock()
	md.clearLocked()
}

// CopyFrom replaces the markers with a deep copy of other's markers. Cached
// dense arrays are dropped, not copied, and rebuilt against this mesh on the
// next query.
func (md *MeshDomains) CopyFrom(other *MeshDomains) {
	if md == other {
		return
	}
	other.mu.Lock()
	markers := make([]map[int]uint64, len(other.markers))
	for d, m := range other.markers {
		markers[d] = make(map[int]uint64, len(m))
		for e, v := range m {
			markers[d][e] = v
		}
	}
	other.mu.Unlock()

	md.mu.Lock()
	defer md.mu.Unlock()
	md.clearLocked()
	md.markers = markers
}

// CellDomains returns the dense cell tag array: every cell of the mesh maps
// to its marker or to unsetValue. It returns nil when no cell is marked.
//
// The array is built on the first call and cached; later calls return the
// cached array even if they pass a different unsetValue.
func (md *MeshDomains) CellDomains(unsetValue uint64) *MeshFunction {
	md.mu.Lock()
	defer md.mu.Unlock()
	D := md.mesh.Dim()
	if len(md.markersAt(D)) > 0 && md.cellDomains == nil {
		md.cellDomains = md.meshFunction(D, unsetValue)
	}
	return md.cellDomains
}

// FacetDomains is CellDomains for the facets (dimension D-1)
func (md *MeshDomains) FacetDomains(unsetValue uint64) *MeshFunction {
	md.mu.Lock()
	defer md.mu.Unlock()
	D := md.mesh.Dim()
	if len(md.markersAt(D-1)) > 0 && md.facetDomains == nil {
		md.facetDomains = md.meshFunction(D-1, unsetValue)
	}
	return md.facetDomains
}

func (md *MeshDomains) meshFunction(dim int, unsetValue uint64) *MeshFunction {
	mf := NewMeshFunction(md.mesh, dim, unsetValue)
	for entity, value := range md.markers[dim] {
		if entity < 0 || entity >= len(mf.values) {
			panic(fmt.Sprintf("marked entity %d of dimension %d out of range [0, %d)",
				entity, dim, len(mf.values)))
		}
		if value == unsetValue {
			utils.Logger().Warn("domain marker equals the value used to indicate an unset entity",
				zap.Int("dim", dim), zap.Int("entity", entity), zap.Uint64("value", value))
		}
		mf.values[entity] = value
	}
	return mf
}

func (md *MeshDomains) clearLocked() {
	md.markers = nil
	md.cellDomains = nil
	md.facetDomains = nil
}

// markersAt returns the marker map of dimension dim, nil when Init has not
// allocated it. Queries treat a missing map as empty.
func (md *MeshDomains) markersAt(dim int) map[int]uint64 {
	if dim < 0 {
		panic(fmt.Sprintf("negative marker dimension %d", dim))
	}
	if dim >= len(md.markers) {
		return nil
	}
	return md.markers[dim]
}

func (md *MeshDomains) checkDim(dim int) {
	if dim < 0 || dim >= len(md.markers) {
		panic(fmt.Sprintf("marker dimension %d out of range [0, %d)", dim, len(md.markers)))
	}
}

// MeshFunction is a dense array of values, one per mesh entity of a fixed
// dimension
type MeshFunction struct {
	dim    int
	values []uint64
}

// NewMeshFunction returns a mesh function over the dimension-dim entities of
// m with every entry set to value
func NewMeshFunction(m *Mesh, dim int, value uint64) *MeshFunction {
	n := m.NumEntities(dim)
	mf := &MeshFunction{dim: dim, values: make([]uint64, n)}
	for i := range mf.values {
		mf.values[i] = value
	}
	return mf
}

// Dim returns the entity dimension
func (mf *MeshFunction) Dim() int { return mf.dim }

// Size returns the number of entities
func (mf *MeshFunction) Size() int { return len(mf.values) }

// At returns the value of entity i
func (mf *MeshFunction) At(i int) uint64 { return mf.values[i] }

// Values returns a copy of the values
func (mf *MeshFunction) Values() []uint64 {
	return append([]uint64(nil), mf.values...)
}

// Where returns the entities whose value equals v, in ascending order
func (mf *MeshFunction) Where(v uint64) []int {
	var out []int
	for i, x := range mf.values {
		if x == v {
			out = append(out, i)
		}
	}
	return out
}

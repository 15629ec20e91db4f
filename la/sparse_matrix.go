// Package la wraps the sparse matrix storage used for discrete operators.
package la

import (
	"errors"
	"fmt"
	"sort"

	"github.com/james-bowman/sparse"
	"gonum.org/v1/gonum/mat"
)

// InsertMode selects how repeated writes to one entry combine
type InsertMode uint8

const (
	// AddValues sums every contribution to an entry
	AddValues InsertMode = iota
	// InsertConsistent stores the first value written to an entry; a later
	// write must carry the same value
	InsertConsistent
)

func (m InsertMode) String() string {
	switch m {
	case AddValues:
		return "add"
	case InsertConsistent:
		return "insert-consistent"
	default:
		return fmt.Sprintf("InsertMode(%d)", uint8(m))
	}
}

// ErrInconsistentInsert is returned when an InsertConsistent matrix is
// written twice at one entry with different values
var ErrInconsistentInsert = errors.New("conflicting values inserted at one matrix entry")

// SparseMatrix is assembled in dictionary of keys form and converted to CSR
// by Assemble. Once assembled it is read only.
type SparseMatrix struct {
	rows, cols int
	mode       InsertMode

	dok       *sparse.DOK // nil for a matrix with no rows or no columns
	written   map[[2]int]struct{}
	csr       *sparse.CSR
	assembled bool
}

// NewSparseMatrix returns an empty rows × cols matrix
func NewSparseMatrix(rows, cols int, mode InsertMode) *SparseMatrix {
	if rows < 0 || cols < 0 {
		panic(fmt.Sprintf("invalid matrix shape %d×%d", rows, cols))
	}
	sm := &SparseMatrix{
		rows:    rows,
		cols:    cols,
		mode:    mode,
		written: make(map[[2]int]struct{}),
	}
	if rows > 0 && cols > 0 {
		sm.dok = sparse.NewDOK(rows, cols)
	}
	return sm
}

// Dims returns the matrix shape
func (sm *SparseMatrix) Dims() (r, c int) { return sm.rows, sm.cols }

// Mode returns the insert mode
func (sm *SparseMatrix) Mode() InsertMode { return sm.mode }

// IsAssembled reports whether Assemble has been called
func (sm *SparseMatrix) IsAssembled() bool { return sm.assembled }

// SetBlock writes the dense block at the given global rows and columns.
// Zero entries of the block are not stored.
func (sm *SparseMatrix) SetBlock(rows, cols []int, block mat.Matrix) error {
	if sm.assembled {
		panic("cannot write to an assembled matrix")
	}
	br, bc := block.Dims()
	if br != len(rows) || bc != len(cols) {
		return fmt.Errorf("block is %d×%d, got %d rows and %d columns", br, bc, len(rows), len(cols))
	}
	for _, r := range rows {
		if r < 0 || r >= sm.rows {
			return fmt.Errorf("row %d out of range [0, %d)", r, sm.rows)
		}
	}
	for _, c := range cols {
		if c < 0 || c >= sm.cols {
			return fmt.Errorf("column %d out of range [0, %d)", c, sm.cols)
		}
	}

	// An InsertConsistent block is checked in full before anything is
	// written, so a conflict leaves the matrix unchanged
	if sm.mode == InsertConsistent {
		pending := make(map[[2]int]float64)
		for i, r := range rows {
			for j, c := range cols {
				v := block.At(i, j)
				if v == 0 {
					continue
				}
				key := [2]int{r, c}
				old, seen := pending[key]
				if !seen {
					if _, seen = sm.written[key]; seen {
						old = sm.dok.At(r, c)
					}
				}
				if seen && old != v {
					return fmt.Errorf("entry (%d, %d) holds %g, got %g: %w", r, c, old, v, ErrInconsistentInsert)
				}
				pending[key] = v
			}
		}
		for key, v := range pending {
			sm.dok.Set(key[0], key[1], v)
			sm.written[key] = struct{}{}
		}
		return nil
	}

	for i, r := range rows {
		for j, c := range cols {
			v := block.At(i, j)
			if v == 0 {
				continue
			}
			sm.dok.Set(r, c, sm.dok.At(r, c)+v)
			sm.written[[2]int{r, c}] = struct{}{}
		}
	}
	return nil
}

// Assemble freezes the matrix into compressed sparse row form
func (sm *SparseMatrix) Assemble() {
	if sm.assembled {
		return
	}
	if sm.dok != nil {
		sm.csr = sm.dok.ToCSR()
	}
	sm.dok = nil
	sm.assembled = true
}

// At returns entry (i, j)
func (sm *SparseMatrix) At(i, j int) float64 {
	if i < 0 || i >= sm.rows || j < 0 || j >= sm.cols {
		panic(fmt.Sprintf("entry (%d, %d) out of range for %d×%d matrix", i, j, sm.rows, sm.cols))
	}
	if sm.csr != nil {
		return sm.csr.At(i, j)
	}
	return sm.dok.At(i, j)
}

// NNZ returns the number of stored entries
func (sm *SparseMatrix) NNZ() int {
	return len(sm.written)
}

// CSR returns the assembled matrix, nil when the matrix has no rows or no
// columns. It panics before Assemble.
func (sm *SparseMatrix) CSR() *sparse.CSR {
	sm.mustBeAssembled()
	return sm.csr
}

// DoNonZero calls fn for every stored entry of the assembled matrix
func (sm *SparseMatrix) DoNonZero(fn func(i, j int, v float64)) {
	sm.mustBeAssembled()
	if sm.csr != nil {
		sm.csr.DoNonZero(fn)
	}
}

// MulVec returns A·x
func (sm *SparseMatrix) MulVec(x []float64) []float64 {
	sm.mustBeAssembled()
	if len(x) != sm.cols {
		panic(fmt.Sprintf("vector length %d does not match %d columns", len(x), sm.cols))
	}
	y := make([]float64, sm.rows)
	if sm.csr != nil {
		sm.csr.MulVecTo(y, false, x)
	}
	return y
}

// RowNonZeros returns the column indices and values of row i, by ascending
// column
func (sm *SparseMatrix) RowNonZeros(i int) (cols []int, vals []float64) {
	sm.mustBeAssembled()
	if i < 0 || i >= sm.rows {
		panic(fmt.Sprintf("row %d out of range [0, %d)", i, sm.rows))
	}
	if sm.csr == nil {
		return nil, nil
	}
	n := sm.csr.RowNNZ(i)
	cols, vals = make([]int, 0, n), make([]float64, 0, n)
	sm.csr.DoRowNonZero(i, func(_, j int, v float64) {
		cols = append(cols, j)
		vals = append(vals, v)
	})
	sort.Sort(rowEntries{cols, vals})
	return cols, vals
}

type rowEntries struct {
	cols []int
	vals []float64
}

func (r rowEntries) Len() int           { return len(r.cols) }
func (r rowEntries) Less(a, b int) bool { return r.cols[a] < r.cols[b] }
func (r rowEntries) Swap(a, b int) {
	r.cols[a], r.cols[b] = r.cols[b], r.cols[a]
	r.vals[a], r.vals[b] = r.vals[b], r.vals[a]
}

func (sm *SparseMatrix) mustBeAssembled() {
	if !sm.assembled {
		panic("matrix is not assembled, call Assemble first")
	}
}

package fem

import (
	"fmt"

	"github.com/notargets/femkernel/element"
	"github.com/notargets/femkernel/la"
	"github.com/notargets/femkernel/utils"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"
)

// BuildGradient returns the discrete gradient mapping the linear Lagrange
// space V1 into the lowest order Nedelec space V0 on the same mesh. Row e of
// the matrix holds +1 at the edge's vertex with the larger global index and
// -1 at the other one, so the result does not depend on cell geometry.
//
// Edges shared by several cells receive identical rows from each of them;
// they are inserted once. BuildGradient panics if the spaces are not of
// the required kinds or live on different meshes.
func BuildGradient(V0, V1 *FunctionSpace) (*la.SparseMatrix, error) {
	m := V0.Mesh()
	ct := m.CellType()
	if V1.Mesh() != m {
		panic("gradient spaces must share a mesh")
	}
	if !V0.Element().Is(element.N1Curl, 1, ct) {
		panic(fmt.Sprintf("gradient target space must be lowest order N1curl on %s, got %s",
			ct, V0.Element().ShortName))
	}
	if !V1.Element().Is(element.Lagrange, 1, ct) {
		panic(fmt.Sprintf("gradient source space must be P1 on %s, got %s",
			ct, V1.Element().ShortName))
	}

	edges := ct.EntityVertices(1)
	nv := ct.NumVertices()
	A := la.NewSparseMatrix(V0.Dim(), V1.Dim(), la.InsertConsistent)
	block := mat.NewDense(len(edges), nv, nil)
	dm0, dm1 := V0.DofMap(), V1.DofMap()

	for c := 0; c < m.NumCells(); c++ {
		cv := m.CellVertices(c)
		block.Zero()
		for i, e := range edges {
			a, b := e[0], e[1]
			if m.GlobalVertexIndex(cv[a]) > m.GlobalVertexIndex(cv[b]) {
				a, b = b, a
			}
			block.Set(i, a, -1)
			block.Set(i, b, 1)
		}
		if err := A.SetBlock(dm0.CellDofs(c), dm1.CellDofs(c), block); err != nil {
			return nil, fmt.Errorf("cell %d: %w", c, err)
		}
	}
	A.Assemble()

	rows, cols := A.Dims()
	utils.Logger().Debug("built discrete gradient",
		zap.Int("rows", rows), zap.Int("cols", cols), zap.Int("nnz", A.NNZ()))
	return A, nil
}

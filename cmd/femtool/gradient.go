package main

import (
	"fmt"
	"math"

	"github.com/notargets/femkernel/element"
	"github.com/notargets/femkernel/fem"
	"github.com/notargets/femkernel/function"
	"github.com/spf13/cobra"
)

func newGradientCmd() *cobra.Command {
	var n int
	gradientCmd := &cobra.Command{
		Use:   "gradient [file]",
		Short: "Assemble the discrete gradient from P1 to lowest order N1curl",
		Long: `Builds the discrete gradient on a mesh file or a box mesh, reports its
size and number of stored entries, and checks that it maps constants to zero
and the coordinate function x to the x extent of every edge.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var path string
			if len(args) == 1 {
				path = args[0]
			}
			m, _, err := loadMesh(path, n)
			if err != nil {
				return err
			}
			V0 := fem.NewFunctionSpace(m, element.NewN1Curl(m.CellType()))
			V1 := fem.NewFunctionSpace(m, element.NewLagrange(m.CellType(), 1))
			G, err := fem.BuildGradient(V0, V1)
			if err != nil {
				return err
			}
			rows, cols := G.Dims()
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "gradient %s -> %s: %d×%d, %d non-zeros\n", V1, V0, rows, cols, G.NNZ())

			one := function.NewFunction(V1, "one")
			if err := one.Interpolate(func([]float64) float64 { return 1 }); err != nil {
				return err
			}
			fmt.Fprintf(out, "  max |G·1|   = %.3e\n", maxAbs(G.MulVec(one.Vector())))

			x := function.NewFunction(V1, "x")
			if err := x.Interpolate(func(p []float64) float64 { return p[0] }); err != nil {
				return err
			}
			gx := G.MulVec(x.Vector())
			g := m.Geometry()
			worst := 0.0
			for e := 0; e < m.NumEntities(1); e++ {
				verts := m.Topology().EntityVertices(1, e)
				lo, hi := verts[0], verts[1]
				if m.GlobalVertexIndex(lo) > m.GlobalVertexIndex(hi) {
					lo, hi = hi, lo
				}
				want := g.Point(hi)[0] - g.Point(lo)[0]
				row := V0.DofMap().EntityDofs(1, e)[0]
				worst = math.Max(worst, math.Abs(gx[row]-want))
			}
			fmt.Fprintf(out, "  max |G·x - dx| = %.3e\n", worst)

			// The cellwise P1 gradient of x is the unit vector along x
			cellWorst := 0.0
			if m.Geometry().Dim() == m.Dim() {
				for c := 0; c < m.NumCells(); c++ {
					grad, err := x.CellGradient(c)
					if err != nil {
						return err
					}
					for i, gi := range grad {
						want := 0.0
						if i == 0 {
							want = 1
						}
						cellWorst = math.Max(cellWorst, math.Abs(gi-want))
					}
				}
			}
			fmt.Fprintf(out, "  max |∇x - e_x| = %.3e\n", cellWorst)
			return nil
		},
	}
	gradientCmd.Flags().IntVar(&n, "n", 2, "Box mesh resolution when no file is given")
	return gradientCmd
}

func maxAbs(v []float64) float64 {
	m := 0.0
	for _, x := range v {
		m = math.Max(m, math.Abs(x))
	}
	return m
}

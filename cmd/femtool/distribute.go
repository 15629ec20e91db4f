package main

import (
	"context"
	"fmt"
	"time"

	"github.com/notargets/femkernel/comm"
	"github.com/notargets/femkernel/mesh"
	"github.com/notargets/femkernel/partitions"
	"github.com/notargets/femkernel/utils"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// rankReport is what one rank learned about its part
type rankReport struct {
	Cells, Vertices, Ghosts, Neighbours int
	HaloErrors                          int
}

func newDistributeCmd() *cobra.Command {
	var (
		ranks      int
		n          int
		strategyID string
		timeout    time.Duration
	)
	distributeCmd := &cobra.Command{
		Use:   "distribute [file]",
		Short: "Distribute a mesh over an in-process group and check the halo",
		Long: `Runs the distributed mesh construction on a local group of ranks. Rank 0
reads the mesh file or builds a box mesh and partitions it. Every rank then
fills its owned vertices with their global index, exchanges the halo and
checks that every ghost vertex received its owner's value.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if ranks < 1 {
				return fmt.Errorf("need at least one rank, got %d", ranks)
			}
			strategy, err := parseStrategy(strategyID)
			if err != nil {
				return err
			}
			var path string
			if len(args) == 1 {
				path = args[0]
			}
			var global *mesh.Mesh
			if global, _, err = loadMesh(path, n); err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			reports := make([]rankReport, ranks)
			err = comm.Run(ctx, ranks, func(ctx context.Context, c comm.Comm) error {
				role := comm.RoleOf(c)
				var input *mesh.Mesh
				if role == comm.Root {
					input = global
				}
				local, halo, err := partitions.BuildDistributedMesh(ctx, c, role, input,
					partitions.WithStrategy(strategy))
				if err != nil {
					return err
				}
				values := make([]float64, local.NumVertices())
				for v := range values {
					if local.IsGhostVertex(v) {
						values[v] = -1
					} else {
						values[v] = float64(local.GlobalVertexIndex(v))
					}
				}
				if err := halo.Update(ctx, c, values); err != nil {
					return err
				}
				r := rankReport{
					Cells:      local.NumCells(),
					Vertices:   local.NumVertices(),
					Ghosts:     halo.NumGhosts(),
					Neighbours: len(halo.Neighbours()),
				}
				for v, x := range values {
					if x != float64(local.GlobalVertexIndex(v)) {
						r.HaloErrors++
					}
				}
				reports[c.Rank()] = r
				utils.Logger().Info("rank ready",
					zap.Int("rank", c.Rank()),
					zap.Stringer("role", role),
					zap.Int("cells", r.Cells),
					zap.Int("vertices", r.Vertices),
					zap.Int("ghosts", r.Ghosts))
				return c.Barrier(ctx)
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			total, bad := 0, 0
			for rank, r := range reports {
				fmt.Fprintf(out, "rank %d: %d cells, %d vertices (%d ghosts), %d neighbours\n",
					rank, r.Cells, r.Vertices, r.Ghosts, r.Neighbours)
				total += r.Cells
				bad += r.HaloErrors
			}
			fmt.Fprintf(out, "cells %d/%d\n", total, global.NumCells())
			if total != global.NumCells() {
				return fmt.Errorf("distributed %d cells of %d", total, global.NumCells())
			}
			if bad > 0 {
				return fmt.Errorf("%d ghost vertices hold a stale value after the halo update", bad)
			}
			return nil
		},
	}
	distributeCmd.Flags().IntVar(&ranks, "ranks", 2, "Number of ranks in the local group")
	distributeCmd.Flags().IntVar(&n, "n", 2, "Box mesh resolution when no file is given")
	distributeCmd.Flags().StringVar(&strategyID, "strategy", partitions.GraphPartition.String(), "Partition strategy")
	distributeCmd.Flags().DurationVar(&timeout, "timeout", time.Minute, "Operation timeout")
	return distributeCmd
}

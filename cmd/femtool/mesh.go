package main

import (
	"fmt"

	"github.com/notargets/femkernel/generation"
	"github.com/notargets/femkernel/mesh"
	"github.com/notargets/femkernel/partitions"
	"github.com/notargets/femkernel/utils"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// loadMesh reads path, or builds an n×n×n box mesh when path is empty
func loadMesh(path string, n int) (*mesh.Mesh, []int, error) {
	if path != "" {
		return mesh.ReadMeshFile(path)
	}
	if n < 1 {
		return nil, nil, fmt.Errorf("box size must be positive, got %d", n)
	}
	return generation.BoxMesh(n, n, n), nil, nil
}

func parseStrategy(name string) (partitions.PartitionStrategy, error) {
	for _, s := range []partitions.PartitionStrategy{
		partitions.BlockPartition, partitions.RoundRobin, partitions.GraphPartition,
	} {
		if s.String() == name {
			return s, nil
		}
	}
	return 0, fmt.Errorf("unknown partition strategy %q", name)
}

func newMeshCmd() *cobra.Command {
	meshCmd := &cobra.Command{
		Use:   "mesh",
		Short: "Mesh inspection",
	}

	var (
		n          int
		numParts   int
		strategyID string
	)
	infoCmd := &cobra.Command{
		Use:   "info [file]",
		Short: "Print entity counts, domains and an optional partitioning",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var path string
			if len(args) == 1 {
				path = args[0]
			}
			m, fileParts, err := loadMesh(path, n)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, m)
			fmt.Fprintf(out, "  measure: %.6g\n", m.Measure())
			for d := 0; d <= m.Dim(); d++ {
				fmt.Fprintf(out, "  dim %d: %d entities, %d marked\n",
					d, m.NumEntities(d), m.Domains().NumMarked(d))
			}
			if cd := m.Domains().CellDomains(mesh.DefaultUnsetValue); cd != nil {
				counts := make(map[uint64]int)
				for _, v := range cd.Values() {
					counts[v]++
				}
				fmt.Fprintf(out, "  cell domains: %v\n", counts)
			}
			if len(fileParts) > 0 {
				layout, err := partitions.NewPartitionLayout(fileParts, maxInt(fileParts)+1)
				if err != nil {
					return fmt.Errorf("partition stored in %s: %w", path, err)
				}
				utils.Logger().Debug("mesh file carries a partition",
					zap.String("file", path), zap.Int("partitions", layout.NumPartitions))
				fmt.Fprintf(out, "  file partitions: %d\n", layout.NumPartitions)
			}

			if numParts < 1 {
				return nil
			}
			strategy, err := parseStrategy(strategyID)
			if err != nil {
				return err
			}
			pb := &partitions.PartitionBuilder{
				Mesh:          partitions.NewMeshConnectivity(m),
				NumPartitions: numParts,
				Strategy:      strategy,
			}
			layout, err := pb.BuildPartitions()
			if err != nil {
				return err
			}
			stats := layout.PartitionStatistics()
			fmt.Fprintf(out, "  %s partitions: %d, cells min %d max %d avg %.1f, imbalance %.3f\n",
				strategy, stats.NumPartitions, stats.MinCells, stats.MaxCells, stats.AvgCells, stats.Imbalance)
			return nil
		},
	}
	infoCmd.Flags().IntVar(&n, "n", 2, "Box mesh resolution when no file is given")
	infoCmd.Flags().IntVar(&numParts, "partitions", 0, "Partition the cells into this many parts")
	infoCmd.Flags().StringVar(&strategyID, "strategy", partitions.GraphPartition.String(), "Partition strategy")

	meshCmd.AddCommand(infoCmd)
	return meshCmd
}

func maxInt(values []int) int {
	largest := values[0]
	for _, v := range values[1:] {
		if v > largest {
			largest = v
		}
	}
	return largest
}

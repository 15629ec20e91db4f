// Command femtool inspects meshes and exercises the finite element kernels
// from the command line.
package main

import (
	"fmt"
	"os"

	"github.com/notargets/femkernel/utils"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func newRootCmd() *cobra.Command {
	var verbose bool

	rootCmd := &cobra.Command{
		Use:   "femtool",
		Short: "Finite element mesh and operator tool",
		Long: `femtool builds or reads tetrahedral meshes, assembles the discrete
gradient operator, distributes meshes over an in-process group of ranks and
checks adaptive solver parameter files.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			config := zap.NewProductionConfig()
			if verbose {
				config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
			}
			logger, err := config.Build()
			if err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}
			utils.SetLogger(logger)
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = utils.Logger().Sync()
		},
	}
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	rootCmd.AddCommand(newMeshCmd())
	rootCmd.AddCommand(newGradientCmd())
	rootCmd.AddCommand(newDistributeCmd())
	rootCmd.AddCommand(newParamsCmd())
	return rootCmd
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

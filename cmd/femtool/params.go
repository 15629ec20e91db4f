package main

import (
	"fmt"

	"github.com/notargets/femkernel/adaptivity"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newParamsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "params [file]",
		Short: "Validate adaptive solver parameters and print the effective values",
		Long: `Reads an adaptive solver parameter file on top of the defaults, validates
it and prints the resulting configuration. Without a file the defaults are
printed.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p := adaptivity.DefaultParameters()
			if len(args) == 1 {
				var err error
				if p, err = adaptivity.LoadParameters(args[0]); err != nil {
					return err
				}
			}
			data, err := yaml.Marshal(p)
			if err != nil {
				return fmt.Errorf("encode parameters: %w", err)
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
}

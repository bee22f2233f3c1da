package main

import (
	"github.com/bohica-labs/writescore-installer/internal/formula"
	"github.com/bohica-labs/writescore-installer/internal/installer"
	"github.com/spf13/cobra"
)

// createCaveatsCommand creates the caveats subcommand
func createCaveatsCommand() *cobra.Command {
	caveatsCmd := &cobra.Command{
		Use:   "caveats [flags]",
		Short: "Print the formula's caveats",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			d, err := formula.Resolve(formulaFile)
			if err != nil {
				return err
			}
			installer.EmitCaveats(cmd.OutOrStdout(), d.Caveats)
			return nil
		},
	}
	addFormulaFlag(caveatsCmd)
	return caveatsCmd
}

package main

import (
	"fmt"

	"github.com/bohica-labs/writescore-installer/internal/formula"
	"github.com/bohica-labs/writescore-installer/internal/installer"
	"github.com/spf13/cobra"
)

// createUninstallCommand creates the uninstall subcommand
func createUninstallCommand() *cobra.Command {
	uninstallCmd := &cobra.Command{
		Use:   "uninstall [flags]",
		Short: "Remove an installed formula and its links",
		Args:  cobra.NoArgs,
		RunE:  executeUninstall,
	}
	addFormulaFlag(uninstallCmd)
	addPrefixFlag(uninstallCmd)
	return uninstallCmd
}

func executeUninstall(cmd *cobra.Command, _ []string) error {
	d, err := formula.Resolve(formulaFile)
	if err != nil {
		return err
	}
	layout, err := resolveLayout()
	if err != nil {
		return err
	}
	if err := installer.Uninstall(d, layout); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Uninstalled %s\n", d.FullName())
	return nil
}

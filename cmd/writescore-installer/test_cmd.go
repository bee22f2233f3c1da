package main

import (
	"fmt"

	"github.com/bohica-labs/writescore-installer/internal/formula"
	"github.com/bohica-labs/writescore-installer/internal/installer"
	"github.com/spf13/cobra"
)

// createTestCommand creates the test subcommand
func createTestCommand() *cobra.Command {
	testCmd := &cobra.Command{
		Use:   "test [flags]",
		Short: "Run the smoke test of an installed formula",
		Long: `Test runs the installed binary with the formula's test arguments and checks
that the output contains the expected text, e.g. "writescore --version"
must print WriteScore.`,
		Args: cobra.NoArgs,
		RunE: executeTest,
	}
	addFormulaFlag(testCmd)
	addPrefixFlag(testCmd)
	return testCmd
}

func executeTest(cmd *cobra.Command, _ []string) error {
	d, err := formula.Resolve(formulaFile)
	if err != nil {
		return err
	}
	layout, err := resolveLayout()
	if err != nil {
		return err
	}
	if err := installer.Test(cmd.Context(), d, layout); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s: test passed\n", d.FullName())
	return nil
}

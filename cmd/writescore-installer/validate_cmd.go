package main

import (
	"fmt"

	"github.com/bohica-labs/writescore-installer/internal/formula"
	"github.com/bohica-labs/writescore-installer/internal/utils/logger"
	"github.com/spf13/cobra"
)

// createValidateCommand creates the validate subcommand
func createValidateCommand() *cobra.Command {
	validateCmd := &cobra.Command{
		Use:   "validate [flags] FORMULA_FILE",
		Short: "Validate a formula file",
		Long: `Validate a formula file against the formula schema and check its values
without installing anything. The file must be YAML.`,
		Args: cobra.ExactArgs(1),
		RunE: executeValidate,
	}
	return validateCmd
}

// executeValidate handles the validate command logic
func executeValidate(cmd *cobra.Command, args []string) error {
	log := logger.Logger()
	formulaPath := args[0]

	log.Infof("validating formula file: %s", formulaPath)
	d, err := formula.LoadFile(formulaPath)
	if err != nil {
		return fmt.Errorf("formula validation failed: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%s is valid: %s (requires %s)\n", formulaPath, d.FullName(), d.DependsOn)
	if verbose {
		fmt.Fprintf(cmd.OutOrStdout(), "  source:   %s\n", d.URL)
		fmt.Fprintf(cmd.OutOrStdout(), "  binaries: %v\n", d.Binaries)
		for i, a := range d.PostInstall {
			fmt.Fprintf(cmd.OutOrStdout(), "  post-install %d: python %v\n", i+1, a.Args)
		}
	}
	return nil
}

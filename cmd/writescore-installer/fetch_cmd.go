package main

import (
	"fmt"

	"github.com/bohica-labs/writescore-installer/internal/formula"
	"github.com/bohica-labs/writescore-installer/internal/installer"
	"github.com/spf13/cobra"
)

// createFetchCommand creates the fetch subcommand
func createFetchCommand() *cobra.Command {
	fetchCmd := &cobra.Command{
		Use:   "fetch [flags]",
		Short: "Download and verify the source archive without installing",
		Args:  cobra.NoArgs,
		RunE:  executeFetch,
	}
	addFormulaFlag(fetchCmd)
	return fetchCmd
}

func executeFetch(cmd *cobra.Command, _ []string) error {
	d, err := formula.Resolve(formulaFile)
	if err != nil {
		return err
	}
	opts, err := buildInstallOptions(cmd)
	if err != nil {
		return err
	}

	res, err := installer.Fetch(cmd.Context(), d, opts)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s\nsha256 %s (%d bytes)\n", res.Path, res.SHA256, res.Size)
	return nil
}

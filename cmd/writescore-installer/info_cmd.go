package main

import (
	"fmt"
	"strings"

	"github.com/bohica-labs/writescore-installer/internal/formula"
	"github.com/bohica-labs/writescore-installer/internal/installer"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// outputFormat is a pflag.Value accepting yaml or json.
type outputFormat string

var _ pflag.Value = (*outputFormat)(nil)

func (f *outputFormat) String() string { return string(*f) }

func (f *outputFormat) Set(v string) error {
	switch v = strings.ToLower(v); v {
	case "yaml", "json":
		*f = outputFormat(v)
		return nil
	default:
		return fmt.Errorf("expected yaml or json, got %q", v)
	}
}

func (f *outputFormat) Type() string { return "format" }

var infoFormat = outputFormat("yaml")

// createInfoCommand creates the info subcommand
func createInfoCommand() *cobra.Command {
	infoCmd := &cobra.Command{
		Use:   "info [flags]",
		Short: "Show the formula and whether it is installed",
		Args:  cobra.NoArgs,
		RunE:  executeInfo,
	}
	addFormulaFlag(infoCmd)
	addPrefixFlag(infoCmd)
	infoCmd.Flags().Var(&infoFormat, "format", "Output format: yaml or json")
	return infoCmd
}

func executeInfo(cmd *cobra.Command, _ []string) error {
	d, err := formula.Resolve(formulaFile)
	if err != nil {
		return err
	}
	data, err := formula.Marshal(d, infoFormat.String())
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), strings.TrimRight(string(data), "\n"))

	// installation status goes to stderr so stdout stays machine-readable
	layout, err := resolveLayout()
	if err != nil {
		return err
	}
	receipt, err := installer.InstalledReceipt(d, layout)
	if err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "%s: not installed\n", d.FullName())
		return nil
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "%s: installed %s in %s (Python %s)\n",
		d.FullName(), receipt.InstalledAt, layout.KegDir(d), receipt.Runtime.Version)
	return nil
}

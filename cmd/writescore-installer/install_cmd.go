package main

import (
	"fmt"
	"path/filepath"
	"time"

	globalcfg "github.com/bohica-labs/writescore-installer/internal/config"
	"github.com/bohica-labs/writescore-installer/internal/formula"
	"github.com/bohica-labs/writescore-installer/internal/installer"
	utilscfg "github.com/bohica-labs/writescore-installer/internal/utils/config"
	"github.com/bohica-labs/writescore-installer/internal/utils/logger"
	"github.com/bohica-labs/writescore-installer/internal/utils/network"
	"github.com/spf13/cobra"
)

// Install command flags
var (
	formulaFile    string
	prefixOverride string
	runTest        bool
	keepFailed     bool
)

// installFunc runs the pipeline; tests replace it.
var installFunc = installer.Install

func addFormulaFlag(cmd *cobra.Command) {
	cmd.Flags().StringVar(&formulaFile, "formula", "", "Formula file (default: built-in writescore formula)")
}

func addPrefixFlag(cmd *cobra.Command) {
	cmd.Flags().StringVar(&prefixOverride, "prefix", "", "Install prefix (overrides configuration)")
}

// createInstallCommand creates the install subcommand
func createInstallCommand() *cobra.Command {
	installCmd := &cobra.Command{
		Use:   "install [flags]",
		Short: "Fetch, verify and install the formula",
		Long: `Install downloads the formula's source archive, checks its SHA-256 digest,
creates a virtual environment bound to the required Python version, installs
the package and its dependencies, runs the post-install actions and prints
the caveats. Any failure aborts the install and removes the environment.`,
		Args: cobra.NoArgs,
		RunE: executeInstall,
	}

	addFormulaFlag(installCmd)
	addPrefixFlag(installCmd)
	installCmd.Flags().BoolVar(&runTest, "test", false, "Run the formula's smoke test after installing")
	installCmd.Flags().BoolVar(&keepFailed, "keep-failed", false, "Keep the keg of a failed install for inspection")
	return installCmd
}

func effectiveConfig() globalcfg.GlobalConfig {
	cfg := *globalcfg.Global()
	if prefixOverride != "" {
		cfg.Prefix = prefixOverride
	}
	return cfg
}

// resolveLayout locates the prefix and cellar without creating anything.
func resolveLayout() (installer.Layout, error) {
	cfg := effectiveConfig()
	helpers := utilscfg.NewConfigHelpers(&cfg)
	prefix, err := helpers.Prefix()
	if err != nil {
		return installer.Layout{}, fmt.Errorf("resolving prefix: %w", err)
	}
	cellar, err := helpers.CellarDir()
	if err != nil {
		return installer.Layout{}, fmt.Errorf("resolving cellar: %w", err)
	}
	return installer.NewLayout(prefix, cellar), nil
}

// buildInstallOptions resolves the configured directories into installer
// options. Directories are created as needed.
func buildInstallOptions(cmd *cobra.Command) (installer.Options, error) {
	layout, err := resolveLayout()
	if err != nil {
		return installer.Options{}, err
	}
	cfg := effectiveConfig()
	helpers := utilscfg.NewConfigHelpers(&cfg)

	cacheDir, err := helpers.CreateCacheDir()
	if err != nil {
		return installer.Options{}, err
	}
	workDir, err := helpers.CreateWorkDir()
	if err != nil {
		return installer.Options{}, err
	}
	reportDir, err := helpers.ReportDir()
	if err != nil {
		return installer.Options{}, err
	}

	timeout := cfg.HTTPTimeout
	if timeout <= 0 {
		timeout = 10 * time.Minute
	}

	return installer.Options{
		Layout:     layout,
		CacheDir:   cacheDir,
		WorkDir:    workDir,
		ReportDir:  reportDir,
		Python:     cfg.Python,
		HTTPClient: network.NewSecureHTTPClient(timeout),
		Progress:   cmd.ErrOrStderr(),
		Out:        cmd.OutOrStdout(),
		RunTest:    runTest,
		KeepFailed: keepFailed,
	}, nil
}

// executeInstall handles the install command logic
func executeInstall(cmd *cobra.Command, _ []string) error {
	log := logger.Logger()

	d, err := formula.Resolve(formulaFile)
	if err != nil {
		return err
	}
	opts, err := buildInstallOptions(cmd)
	if err != nil {
		return err
	}

	start := time.Now()
	res, err := installFunc(cmd.Context(), d, opts)
	if err != nil {
		return err
	}

	log.Infof("%s installed in %s (%s)", d.FullName(), res.Keg, time.Since(start).Round(time.Second))
	for _, l := range res.Links {
		log.Infof("  %s", filepath.Base(l))
	}
	return nil
}

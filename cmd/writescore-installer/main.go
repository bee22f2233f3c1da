package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/bohica-labs/writescore-installer/internal/config"
	"github.com/bohica-labs/writescore-installer/internal/failure"
	"github.com/bohica-labs/writescore-installer/internal/utils/logger"
	"github.com/spf13/cobra"
)

// Version is set at build time with -ldflags "-X main.Version=...".
var Version = "dev"

// Global command flags
var (
	configFile string
	logLevel   string
	logFile    string
	verbose    bool
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	root := createRootCommand()
	root.SetArgs(args)
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return failure.ExitCode(err)
	}
	return 0
}

// createRootCommand builds the command tree
func createRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "writescore-installer",
		Short: "Install WriteScore into an isolated Python environment",
		Long: `writescore-installer fetches the WriteScore source archive, verifies its
SHA-256 digest, installs it with its dependencies into a dedicated virtual
environment, downloads the spaCy language model it needs and links the
writescore command into the prefix.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       Version,
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Path to configuration file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "Also write JSON logs to this file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")

	rootCmd.AddCommand(createInstallCommand())
	rootCmd.AddCommand(createFetchCommand())
	rootCmd.AddCommand(createTestCommand())
	rootCmd.AddCommand(createCaveatsCommand())
	rootCmd.AddCommand(createUninstallCommand())
	rootCmd.AddCommand(createValidateCommand())
	rootCmd.AddCommand(createInfoCommand())
	rootCmd.AddCommand(createConfigCommand())

	attachLoggingHooks(rootCmd)
	return rootCmd
}

// attachLoggingHooks makes every subcommand load the configuration and set
// up logging before it runs.
func attachLoggingHooks(root *cobra.Command) {
	for _, sub := range root.Commands() {
		sub.PersistentPreRunE = func(cmd *cobra.Command, _ []string) error {
			return setupEnvironment(cmd)
		}
	}
}

// resolveRequestedLogLevel returns the level asked for on the command line:
// --log-level wins, --verbose means debug, otherwise "".
func resolveRequestedLogLevel(cmd *cobra.Command) string {
	if logLevel != "" {
		return logLevel
	}
	if cmd == nil {
		return ""
	}
	if f := cmd.Flags().Lookup("verbose"); f != nil && f.Changed && f.Value.String() == "true" {
		return "debug"
	}
	return ""
}

func setupEnvironment(cmd *cobra.Command) error {
	cfg, err := config.LoadGlobalConfig(configFile)
	if err != nil {
		return err
	}
	if level := resolveRequestedLogLevel(cmd); level != "" {
		cfg.Logging.Level = level
	}
	if logFile != "" {
		cfg.Logging.File = logFile
	}

	if err := logger.Setup(logger.Options{
		Level:      cfg.Logging.Level,
		File:       cfg.Logging.File,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
	}); err != nil {
		return err
	}
	config.SetGlobal(cfg)

	if src := cfg.Source(); src != "" {
		logger.Logger().Debugf("loaded configuration from %s", src)
	}
	return nil
}

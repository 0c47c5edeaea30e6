// Package app provides the application context and dependency wiring
// for the crosscheck CLI: configuration, logging, and the command tree.
package app

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// App carries the CLI's shared dependencies.
type App struct {
	version string
	commit  string
	date    string

	config *Config
	logger *zerolog.Logger
}

// New creates an App with configuration loaded from the environment.
func New(version, commit, date string) (*App, error) {
	config, err := LoadConfig()
	if err != nil {
		return nil, err
	}

	logger := NewLogger(config)
	return &App{
		version: version,
		commit:  commit,
		date:    date,
		config:  config,
		logger:  &logger,
	}, nil
}

// Version returns the version string.
func (a *App) Version() string {
	return a.version
}

// Config returns the application configuration.
func (a *App) Config() *Config {
	return a.config
}

// Logger returns the application logger.
func (a *App) Logger() *zerolog.Logger {
	return a.logger
}

// Execute runs the CLI with the given arguments.
func (a *App) Execute(ctx context.Context, args []string) error {
	rootCmd := a.createRootCommand()
	rootCmd.SetArgs(args)
	return rootCmd.ExecuteContext(ctx)
}

// createRootCommand builds the root command and its flag set.
func (a *App) createRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:     "crosscheck",
		Short:   "Dataset reconciliation and validation",
		Version: a.version,
		Long: `Crosscheck reconciles two tabular data sources against each other and
validates individual sources against configurable data quality rules.

Rules live in a YAML run configuration alongside the data source
locations and column mappings. Each run produces a timestamped report
directory with the findings, summaries, and execution log.`,
		PersistentPreRunE: a.setupCommand,
		SilenceUsage:      true,
		SilenceErrors:     true,
	}

	rootCmd.PersistentFlags().BoolVarP(&a.config.Verbose, "verbose", "v", false, "verbose output (shortcut for --log-level=debug)")
	rootCmd.PersistentFlags().BoolVarP(&a.config.Quiet, "quiet", "q", false, "minimal output (shortcut for --log-level=warn)")
	rootCmd.PersistentFlags().StringVar(&a.config.LogLevel, "log-level", "", "log level: trace, debug, info, warn, error (overrides -v/-q)")
	rootCmd.PersistentFlags().IntVar(&a.config.Workers, "workers", 0, "rule worker pool size (default: number of CPUs)")
	rootCmd.PersistentFlags().StringVar(&a.config.OutputDir, "output-dir", "", "override the configured output directory")

	rootCmd.SetVersionTemplate("crosscheck {{.Version}}\n")

	rootCmd.AddCommand(a.NewRunCommand())
	rootCmd.AddCommand(a.NewReconcileCommand())
	rootCmd.AddCommand(a.NewValidateCommand())
	rootCmd.AddCommand(a.NewSuggestCommand())
	rootCmd.AddCommand(a.NewTranslateCommand())
	rootCmd.AddCommand(a.NewVersionCommand())

	return rootCmd
}

// setupCommand runs before any subcommand and rebuilds the logger with
// the parsed flag values.
func (a *App) setupCommand(*cobra.Command, []string) error {
	logger := NewLogger(a.config)
	a.logger = &logger
	return nil
}

// ContextWithSignals creates a context cancelled on SIGINT or SIGTERM.
func ContextWithSignals(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
}

// ExitOnError prints the error and exits with status 1.
func ExitOnError(err error) {
	if err != nil {
		_, _ = os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(1)
	}
}

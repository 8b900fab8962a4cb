package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"slices"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/navstack/internal/config"
	"github.com/roach88/navstack/internal/engine"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose    bool
	Format     string // "json" | "text"
	ConfigFile string

	// Config is filled in before a subcommand runs. Commands built without
	// the root command (tests) see config.Default().
	Config *config.Config
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// settings returns the loaded configuration or the defaults.
func (o *RootOptions) settings() config.Config {
	if o.Config != nil {
		return *o.Config
	}
	return config.Default()
}

// formatter returns an OutputFormatter bound to the command's writers.
func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   o.Verbose,
	}
}

// NewRootCommand creates the root command for the navstack CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "navstack",
		Short: "navstack - navigation stack engine",
		Long: `A navigation stack engine with interceptors, nested stacks and deep links.

Catalogs declare locations, guards and deep links in CUE. Scenarios drive a
real engine built from a catalog and compare the trace with golden files.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return NewExitError(ExitCommandError,
					fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}

			v, err := config.New(opts.ConfigFile)
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to load config", err)
			}
			if err := config.BindFlags(v, cmd.Flags()); err != nil {
				return WrapExitError(ExitCommandError, "failed to load config", err)
			}
			cfg, err := config.Load(v)
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid config", err)
			}
			opts.Config = &cfg

			level, err := logLevel(opts.Verbose, cfg.LogLevel)
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid log level", err)
			}
			installLogger(cmd.ErrOrStderr(), level)
			return nil
		},
	}

	// Global flags
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.ConfigFile, "config", "", "config file (default .navstack.yaml)")
	cmd.PersistentFlags().Int("max-redirects", engine.DefaultMaxRedirects, "redirect hops allowed per request")
	cmd.PersistentFlags().String("journal", "", "SQLite navigation journal path")
	cmd.PersistentFlags().String("log-level", "info", "log level (debug|info|warn|error)")

	cmd.AddCommand(NewValidateCommand(opts))
	cmd.AddCommand(NewCompileCommand(opts))
	cmd.AddCommand(NewResolveCommand(opts))
	cmd.AddCommand(NewRunCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))
	cmd.AddCommand(NewTraceCommand(opts))
	cmd.AddCommand(NewReplayCommand(opts))

	return cmd
}

// Execute runs the CLI and returns the process exit code. SIGINT and
// SIGTERM cancel the command context, which stops validate --watch.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := NewRootCommand().ExecuteContext(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
	}
	return GetExitCode(err)
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	return slices.Contains(ValidFormats, format)
}

// catalogArg returns the catalog directory: the positional argument if
// given, otherwise the configured catalog.
func catalogArg(opts *RootOptions, args []string) (string, error) {
	if len(args) > 0 {
		return args[0], nil
	}
	if dir := opts.settings().Catalog; dir != "" {
		return dir, nil
	}
	return "", NewExitError(ExitCommandError, "catalog directory required (argument or catalog in config)")
}

// journalArg returns the journal path: the --db flag if set, otherwise the
// configured journal.
func journalArg(opts *RootOptions, db string) (string, error) {
	if db != "" {
		return db, nil
	}
	if path := opts.settings().Journal; path != "" {
		return path, nil
	}
	return "", NewExitError(ExitCommandError, "journal path required (--db or journal in config)")
}

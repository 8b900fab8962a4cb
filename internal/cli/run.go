package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/navstack/internal/harness"
	"github.com/roach88/navstack/internal/store"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Database string
}

// RunResult is the JSON payload of the run command.
type RunResult struct {
	Scenario string `json:"scenario"`
	*harness.Result
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <scenario-file>",
		Short: "Run one scenario and print its trace",
		Long: `Run a single scenario file and print the step-by-step trace.

Unlike test, run does not compare golden files. When a journal is given
(--db, or journal in config) the scenario's transitions are recorded as a
new session, ready for trace and replay.

Exit codes:
  0 - Every expect clause and assertion matched
  1 - The scenario failed
  2 - Command error (unreadable scenario, invalid catalog, etc.)

Examples:
  navstack run ./scenarios/login.yaml
  navstack run ./scenarios/login.yaml --db ./nav.db`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScenarioFile(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "journal the run into this SQLite database")

	return cmd
}

func runScenarioFile(opts *RunOptions, file string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)
	ctx := cmd.Context()

	scenario, err := harness.LoadScenario(file)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load scenario", err)
	}

	var journal *store.Store
	path := opts.Database
	if path == "" {
		path = opts.settings().Journal
	}
	if path != "" {
		journal, err = store.Open(path)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to open journal", err)
		}
		defer journal.Close()
		formatter.VerboseLog("Journaling to %s", path)
	}

	result, err := harness.RunJournaled(ctx, scenario, journal)
	if err != nil {
		return WrapExitError(ExitCommandError, "scenario execution failed", err)
	}

	if formatter.JSON() {
		resp := CLIResponse{Status: "ok", Data: RunResult{Scenario: scenario.Name, Result: result}}
		if !result.Pass {
			resp.Status = "error"
			resp.Error = &CLIError{Code: "E_TEST_FAILED", Message: fmt.Sprintf("scenario %s failed", scenario.Name)}
		}
		if err := formatter.Encode(resp); err != nil {
			return err
		}
	} else {
		w := formatter.Writer
		fmt.Fprintf(w, "Scenario: %s\n", scenario.Name)
		fmt.Fprintf(w, "  %s\n\n", scenario.Description)
		harness.RenderTrace(w, result.Trace)
		fmt.Fprintln(w)
		if result.Pass {
			fmt.Fprintln(w, "✓ Scenario passed")
		} else {
			fmt.Fprintln(w, "✗ Scenario failed")
			for _, e := range result.Errors {
				fmt.Fprintf(w, "  %s\n", e)
			}
		}
	}

	if !result.Pass {
		return NewExitError(ExitFailure, fmt.Sprintf("scenario %s failed", scenario.Name))
	}
	return nil
}

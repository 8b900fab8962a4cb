package cli

import (
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"

	"github.com/spf13/cobra"
)

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	Database string
	Session  string // optional - specific session only
}

// ReplaySessionResult holds the replay result for a single session.
type ReplaySessionResult struct {
	Session     string         `json:"session"`
	Label       string         `json:"label"`
	Transitions int            `json:"transitions"`
	Outcomes    map[string]int `json:"outcomes"`
	Version     int64          `json:"version"`
	Root        []string       `json:"root"`
	Active      []string       `json:"active"`
	Consistent  bool           `json:"consistent"`
	Breaks      []ReplayBreak  `json:"breaks,omitempty"`
}

// ReplayBreak is a transition that did not start where the previous one ended.
type ReplayBreak struct {
	Seq  int64  `json:"seq"`
	Want string `json:"want"`
	Got  string `json:"got"`
}

// ReplayResult holds the overall replay result.
type ReplayResult struct {
	Sessions      []ReplaySessionResult `json:"sessions"`
	TotalSessions int                   `json:"total_sessions"`
	AllConsistent bool                  `json:"all_consistent"`
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Replay the navigation journal and verify continuity",
		Long: `Replay journaled sessions in order and verify that every transition
starts from the snapshot the previous one ended in.

A break means transitions were lost or recorded out of order. For each
session the command reports outcome counts and the final stacks.

Exit codes:
  0 - All sessions replay without breaks
  1 - At least one session has a break
  2 - Command error (journal not found, etc.)

Examples:
  navstack replay --db ./nav.db
  navstack replay --db ./nav.db --session 0190...
  navstack replay --db ./nav.db --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to the journal (default: journal from config)")
	cmd.Flags().StringVar(&opts.Session, "session", "", "replay specific session only")

	return cmd
}

func runReplay(opts *ReplayOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()
	formatter := opts.formatter(cmd)

	path, err := journalArg(opts.RootOptions, opts.Database)
	if err != nil {
		return err
	}
	st, err := openJournal(path)
	if err != nil {
		return err
	}
	defer st.Close()

	sessions, err := selectSessions(ctx, st, opts.Session)
	if err != nil {
		return err
	}

	result := ReplayResult{
		Sessions:      make([]ReplaySessionResult, 0, len(sessions)),
		TotalSessions: len(sessions),
		AllConsistent: true,
	}
	if len(sessions) == 0 {
		if formatter.JSON() {
			return formatter.Success(result)
		}
		fmt.Fprintln(formatter.Writer, "No sessions found in journal.")
		return nil
	}

	for _, info := range sessions {
		state, err := st.ReplaySession(ctx, info.ID)
		if err != nil {
			return WrapExitError(ExitCommandError, fmt.Sprintf("failed to replay session %s", info.ID), err)
		}
		formatter.VerboseLog("replayed %s: %d transition(s)", info.ID, info.Transitions)

		sr := ReplaySessionResult{
			Session:     info.ID,
			Label:       info.Label,
			Transitions: info.Transitions,
			Outcomes:    state.Outcomes,
			Version:     state.Version,
			Root:        state.RootPaths,
			Active:      state.ActivePaths,
			Consistent:  state.Consistent(),
		}
		for _, b := range state.Breaks {
			sr.Breaks = append(sr.Breaks, ReplayBreak{Seq: b.Seq, Want: b.Want, Got: b.Got})
		}
		result.Sessions = append(result.Sessions, sr)
		if !sr.Consistent {
			result.AllConsistent = false
		}
	}

	if formatter.JSON() {
		return outputReplayJSON(formatter, result)
	}
	return outputReplayText(formatter.Writer, result, opts.Verbose)
}

// outputReplayJSON outputs the replay result as JSON.
func outputReplayJSON(formatter *OutputFormatter, result ReplayResult) error {
	response := CLIResponse{Status: "ok", Data: result}
	if !result.AllConsistent {
		response.Status = "error"
		response.Error = &CLIError{
			Code:    "E_JOURNAL_BREAK",
			Message: "journal continuity check failed",
		}
	}
	if err := formatter.Encode(response); err != nil {
		return err
	}
	if !result.AllConsistent {
		return NewExitError(ExitFailure, "journal continuity check failed")
	}
	return nil
}

// outputReplayText outputs the replay result as text.
func outputReplayText(w io.Writer, result ReplayResult, verbose bool) error {
	fmt.Fprintf(w, "Replay Summary: %d session(s)\n", result.TotalSessions)
	fmt.Fprintln(w)

	for _, s := range result.Sessions {
		status := "✓"
		if !s.Consistent {
			status = "✗"
		}
		fmt.Fprintf(w, "%s Session: %s (%s)\n", status, s.Session, s.Label)
		fmt.Fprintf(w, "  Transitions: %d (%s)\n", s.Transitions, formatOutcomes(s.Outcomes))
		if verbose {
			fmt.Fprintf(w, "  Version: %d\n", s.Version)
			fmt.Fprintf(w, "  Root:    [%s]\n", strings.Join(s.Root, " "))
			fmt.Fprintf(w, "  Active:  [%s]\n", strings.Join(s.Active, " "))
		}
		for _, b := range s.Breaks {
			fmt.Fprintf(w, "  Break at seq %d: expected %s, got %s\n", b.Seq, truncateID(b.Want), truncateID(b.Got))
		}
		fmt.Fprintln(w)
	}

	if result.AllConsistent {
		fmt.Fprintln(w, "✓ All sessions replay consistently")
		return nil
	}
	fmt.Fprintln(w, "✗ Journal continuity check failed")
	return NewExitError(ExitFailure, "journal continuity check failed")
}

// formatOutcomes renders outcome counts sorted by outcome name.
func formatOutcomes(outcomes map[string]int) string {
	if len(outcomes) == 0 {
		return "none"
	}
	parts := make([]string, 0, len(outcomes))
	for _, k := range slices.Sorted(maps.Keys(outcomes)) {
		parts = append(parts, fmt.Sprintf("%d %s", outcomes[k], k))
	}
	return strings.Join(parts, ", ")
}

package cli

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/navstack/internal/engine"
	"github.com/roach88/navstack/internal/store"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Database string
	Session  string // default: latest session
	Op       string
	Outcome  string
	Limit    int
	List     bool
}

// SessionSummary describes one journal session.
type SessionSummary struct {
	ID          string    `json:"id"`
	Label       string    `json:"label"`
	StartedAt   time.Time `json:"started_at"`
	Transitions int       `json:"transitions"`
	LastSeq     int64     `json:"last_seq"`
}

// TraceEntry is one journaled transition.
type TraceEntry struct {
	Seq         int64    `json:"seq"`
	ID          string   `json:"id"`
	Op          string   `json:"op"`
	Target      string   `json:"target"`
	Input       []string `json:"input,omitempty"`
	Outcome     string   `json:"outcome"`
	ErrorCode   string   `json:"error_code,omitempty"`
	Error       string   `json:"error,omitempty"`
	Redirects   []string `json:"redirects,omitempty"`
	BlockedBy   string   `json:"blocked_by,omitempty"`
	Reason      string   `json:"reason,omitempty"`
	Version     int64    `json:"version"`
	Root        []string `json:"root"`
	Active      []string `json:"active"`
	DurationNS  int64    `json:"duration_ns"`
	Fingerprint string   `json:"fingerprint"`
}

// TraceResult holds the complete trace output.
type TraceResult struct {
	Session     SessionSummary `json:"session"`
	Transitions []TraceEntry   `json:"transitions"`
	Stats       TraceStats     `json:"stats"`
}

// TraceStats counts the listed transitions per outcome.
type TraceStats struct {
	Total     int `json:"total"`
	Committed int `json:"committed"`
	Blocked   int `json:"blocked"`
	Deferred  int `json:"deferred"`
	Errors    int `json:"errors"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "List journaled navigation transitions",
		Long: `List the transitions recorded in a navigation journal.

Shows one line per processed request of a session: the operation, its
input, the outcome, redirect hops and the resulting stacks. Without
--session the most recent session is shown; --list prints the sessions.

Examples:
  navstack trace --db ./nav.db
  navstack trace --db ./nav.db --list
  navstack trace --db ./nav.db --session 0190... --outcome blocked
  navstack trace --db ./nav.db --op deeplink --limit 10 --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to the journal (default: journal from config)")
	cmd.Flags().StringVar(&opts.Session, "session", "", "session ID (default: latest)")
	cmd.Flags().StringVar(&opts.Op, "op", "", "only transitions of this operation")
	cmd.Flags().StringVar(&opts.Outcome, "outcome", "", "only transitions with this outcome")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "maximum number of transitions (0 = all)")
	cmd.Flags().BoolVar(&opts.List, "list", false, "list sessions instead of transitions")

	return cmd
}

func runTrace(opts *TraceOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()
	formatter := opts.formatter(cmd)

	path, err := journalArg(opts.RootOptions, opts.Database)
	if err != nil {
		return err
	}
	if opts.Limit < 0 {
		return NewExitError(ExitCommandError, fmt.Sprintf("--limit must be non-negative, got %d", opts.Limit))
	}

	st, err := openJournal(path)
	if err != nil {
		return err
	}
	defer st.Close()

	if opts.List {
		sessions, err := selectSessions(ctx, st, "")
		if err != nil {
			return err
		}
		return outputSessions(formatter, sessions)
	}

	var info store.SessionInfo
	if opts.Session != "" {
		sessions, err := selectSessions(ctx, st, opts.Session)
		if err != nil {
			return err
		}
		info = sessions[0]
	} else {
		info, err = st.LatestSession(ctx)
		if isNotFound(err) {
			if formatter.JSON() {
				return formatter.Success(TraceResult{Transitions: []TraceEntry{}})
			}
			fmt.Fprintln(formatter.Writer, "No sessions found in journal.")
			return nil
		}
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to read sessions", err)
		}
	}

	entries, err := st.ReadTransitions(ctx, info.ID, store.Filter{
		Op:      engine.Op(opts.Op),
		Outcome: opts.Outcome,
		Limit:   opts.Limit,
	})
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read transitions", err)
	}

	result := TraceResult{
		Session:     summarize(info),
		Transitions: make([]TraceEntry, 0, len(entries)),
	}
	for _, e := range entries {
		result.Transitions = append(result.Transitions, traceEntry(e))
		result.Stats.count(e.Outcome)
	}

	if formatter.JSON() {
		return formatter.Success(result)
	}
	outputTraceText(formatter.Writer, result, opts.Verbose)
	return nil
}

func (s *TraceStats) count(outcome string) {
	s.Total++
	switch outcome {
	case string(engine.OutcomeCommitted):
		s.Committed++
	case string(engine.OutcomeBlocked):
		s.Blocked++
	case string(engine.OutcomeDeferred):
		s.Deferred++
	default:
		s.Errors++
	}
}

func summarize(info store.SessionInfo) SessionSummary {
	return SessionSummary{
		ID:          info.ID,
		Label:       info.Label,
		StartedAt:   info.StartedAt.UTC(),
		Transitions: info.Transitions,
		LastSeq:     info.LastSeq,
	}
}

func traceEntry(e store.Entry) TraceEntry {
	te := TraceEntry{
		Seq:         e.Seq,
		ID:          e.ID,
		Op:          string(e.Op),
		Target:      e.Target.String(),
		Input:       e.Input,
		Outcome:     e.Outcome,
		ErrorCode:   string(e.ErrorCode),
		Error:       e.Error,
		BlockedBy:   e.BlockedBy,
		Reason:      e.Reason,
		Version:     e.Version,
		Root:        e.RootPaths,
		Active:      e.ActivePaths,
		DurationNS:  e.Duration.Nanoseconds(),
		Fingerprint: e.After,
	}
	for _, hop := range e.Redirects {
		te.Redirects = append(te.Redirects, hop.String())
	}
	return te
}

// outputSessions prints the session list.
func outputSessions(formatter *OutputFormatter, sessions []store.SessionInfo) error {
	summaries := make([]SessionSummary, len(sessions))
	for i, s := range sessions {
		summaries[i] = summarize(s)
	}
	if formatter.JSON() {
		return formatter.Success(summaries)
	}

	w := formatter.Writer
	if len(summaries) == 0 {
		fmt.Fprintln(w, "No sessions found in journal.")
		return nil
	}
	for _, s := range summaries {
		fmt.Fprintf(w, "%s  %s  %3d transition(s)  %s\n",
			s.ID, s.StartedAt.Format(time.RFC3339), s.Transitions, s.Label)
	}
	return nil
}

// outputTraceText outputs the trace result as text.
func outputTraceText(w io.Writer, result TraceResult, verbose bool) {
	fmt.Fprintf(w, "Session: %s (%s)\n", result.Session.ID, result.Session.Label)
	fmt.Fprintf(w, "Started: %s\n", result.Session.StartedAt.Format(time.RFC3339))
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Transitions ===")
	if len(result.Transitions) == 0 {
		fmt.Fprintln(w, "  (no transitions)")
	}
	for _, t := range result.Transitions {
		formatTraceEntry(w, t, verbose)
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Stats ===")
	fmt.Fprintf(w, "  Total:     %d\n", result.Stats.Total)
	fmt.Fprintf(w, "  Committed: %d\n", result.Stats.Committed)
	fmt.Fprintf(w, "  Blocked:   %d\n", result.Stats.Blocked)
	fmt.Fprintf(w, "  Deferred:  %d\n", result.Stats.Deferred)
	fmt.Fprintf(w, "  Errors:    %d\n", result.Stats.Errors)
}

// formatTraceEntry formats a single transition for text output.
func formatTraceEntry(w io.Writer, t TraceEntry, verbose bool) {
	var b strings.Builder
	fmt.Fprintf(&b, "  [%d] %s", t.Seq, t.Op)
	if len(t.Input) > 0 {
		fmt.Fprintf(&b, " %s", strings.Join(t.Input, ","))
	}
	fmt.Fprintf(&b, " (%s) -> %s", t.Target, t.Outcome)
	switch {
	case t.ErrorCode != "":
		fmt.Fprintf(&b, " %s", t.ErrorCode)
	case t.BlockedBy != "":
		fmt.Fprintf(&b, " by %s: %s", t.BlockedBy, t.Reason)
	}
	fmt.Fprintf(&b, "  v%d active=[%s]", t.Version, strings.Join(t.Active, " "))
	fmt.Fprintln(w, b.String())

	for _, hop := range t.Redirects {
		fmt.Fprintf(w, "       redirect %s\n", hop)
	}
	if verbose {
		fmt.Fprintf(w, "       ID: %s  after: %s  took: %s\n",
			truncateID(t.ID), truncateID(t.Fingerprint), time.Duration(t.DurationNS))
	}
}

// truncateID truncates a long ID for display.
func truncateID(id string) string {
	if len(id) <= 16 {
		return id
	}
	return id[:8] + "..." + id[len(id)-8:]
}

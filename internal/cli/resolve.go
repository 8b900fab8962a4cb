package cli

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/navstack/internal/compiler"
	"github.com/roach88/navstack/internal/engine"
	"github.com/roach88/navstack/internal/guard"
	"github.com/roach88/navstack/internal/ir"
	"github.com/roach88/navstack/internal/store"
)

// ResolveOptions holds flags for the resolve command.
type ResolveOptions struct {
	*RootOptions
	Initial string
	Flags   []string

	// Keys overrides entry key generation (for testing).
	// If nil, keys are UUIDv7.
	Keys engine.KeyGenerator
}

// ResolveResult is the outcome of applying one deep link.
type ResolveResult struct {
	URI       string   `json:"uri"`
	Outcome   string   `json:"outcome"` // committed, blocked, deferred or error
	ErrorCode string   `json:"error_code,omitempty"`
	Error     string   `json:"error,omitempty"`
	Redirects []string `json:"redirects,omitempty"`
	BlockedBy string   `json:"blocked_by,omitempty"`
	Reason    string   `json:"reason,omitempty"`
	Version   int64    `json:"version"`
	Root      []string `json:"root"`
	Active    []string `json:"active"`
	Top       string   `json:"top"`

	snapshot ir.Snapshot
}

// NewResolveCommand creates the resolve command.
func NewResolveCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ResolveOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "resolve [catalog-dir] <uri>",
		Short: "Dry-run a deep link against a fresh engine",
		Long: `Resolve a deep link against a fresh engine built from a catalog.

The engine starts at --initial, with the catalog's guards and the given
flags. The deep link runs through the full interceptor chain and the
resulting stacks are printed. When a journal is configured, the request is
recorded as a new session.

Exit codes:
  0 - Deep link committed, blocked or deferred
  1 - Deep link failed (empty, invalid, redirect cycle, ...)
  2 - Command error (invalid catalog, unknown initial location, etc.)

Examples:
  navstack resolve ./catalog app://item/42 --initial home
  navstack resolve ./catalog app://me --initial home --flag authenticated
  navstack resolve app://me --initial home --journal nav.db`,
		Args:          cobra.RangeArgs(1, 2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := catalogArg(rootOpts, args[:len(args)-1])
			if err != nil {
				return err
			}
			return runResolve(cmd.Context(), opts, dir, args[len(args)-1], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Initial, "initial", "", "name of the initial location (required)")
	_ = cmd.MarkFlagRequired("initial")
	cmd.Flags().StringSliceVar(&opts.Flags, "flag", nil, "guard flags to set (repeatable)")

	return cmd
}

func runResolve(ctx context.Context, opts *ResolveOptions, dir, uri string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)
	cfg := opts.settings()

	catalog, err := loadValidCatalog(dir)
	if err != nil {
		return err
	}

	eng, closeJournal, err := buildEngine(ctx, opts, catalog, cfg.Journal, "resolve "+uri)
	if err != nil {
		return err
	}
	defer closeJournal()
	defer eng.Close()

	res, err := eng.DeepLink(ctx, uri)
	result := newResolveResult(uri, eng.Snapshot(), res, err)

	if formatter.JSON() {
		resp := CLIResponse{Status: "ok", Data: result}
		if err != nil {
			resp.Status = "error"
			resp.Error = &CLIError{Code: ErrCodeResolveFailed, Message: err.Error(), Details: result.ErrorCode}
		}
		if encErr := formatter.Encode(resp); encErr != nil {
			return encErr
		}
	} else {
		outputResolveText(formatter.Writer, result, opts.Verbose)
	}

	if err != nil {
		return WrapExitError(ExitFailure, "deep link failed", err)
	}
	return nil
}

// buildEngine creates an engine from catalog starting at opts.Initial.
// If journalPath is set, requests are journaled under a new session; the
// returned func closes the journal.
func buildEngine(ctx context.Context, opts *ResolveOptions, catalog *compiler.Catalog, journalPath, label string) (*engine.Engine, func(), error) {
	initial, err := catalog.Location(opts.Initial)
	if err != nil {
		return nil, nil, WrapExitError(ExitCommandError, "invalid initial location", err)
	}

	flags := guard.NewFlags()
	for _, f := range opts.Flags {
		flags.Set(f)
	}
	interceptors, err := catalog.Interceptors(flags)
	if err != nil {
		return nil, nil, WrapExitError(ExitCommandError, "failed to build guards", err)
	}
	router, err := catalog.Router()
	if err != nil {
		return nil, nil, WrapExitError(ExitCommandError, "failed to build deep link router", err)
	}

	engineOpts := []engine.Option{
		engine.WithInterceptors(interceptors...),
		engine.WithResolver(router),
		engine.WithMaxRedirects(opts.settings().MaxRedirects),
	}
	if opts.Keys != nil {
		engineOpts = append(engineOpts, engine.WithKeyGenerator(opts.Keys))
	}

	closeJournal := func() {}
	if journalPath != "" {
		st, err := store.Open(journalPath)
		if err != nil {
			return nil, nil, WrapExitError(ExitCommandError, "failed to open journal", err)
		}
		session, err := st.BeginSession(ctx, label)
		if err != nil {
			st.Close()
			return nil, nil, WrapExitError(ExitCommandError, "failed to start journal session", err)
		}
		engineOpts = append(engineOpts, engine.WithJournal(session))
		closeJournal = func() { st.Close() }
	}

	eng, err := engine.New(initial, engineOpts...)
	if err != nil {
		closeJournal()
		return nil, nil, WrapExitError(ExitCommandError, "failed to create engine", err)
	}
	return eng, closeJournal, nil
}

func newResolveResult(uri string, current ir.Snapshot, res engine.Result, err error) ResolveResult {
	snap := res.Snapshot
	out := ResolveResult{URI: uri, Outcome: string(res.Outcome)}
	if err != nil {
		// A failed request leaves the state untouched.
		snap = current
		out.Outcome = "error"
		out.ErrorCode = string(engine.CodeOf(err))
		out.Error = err.Error()
	}
	for _, hop := range res.Redirects {
		out.Redirects = append(out.Redirects, hop.String())
	}
	out.BlockedBy = res.BlockedBy
	out.Reason = res.Reason
	out.Version = snap.Version
	out.Root = snap.RootPaths()
	out.Active = snap.ActivePaths()
	if top, ok := snap.Top(); ok {
		out.Top = top.Path()
	}
	out.snapshot = snap
	return out
}

// outputResolveText prints the outcome and the resulting stack tree.
func outputResolveText(w io.Writer, r ResolveResult, verbose bool) {
	fmt.Fprintf(w, "URI: %s\n", r.URI)
	switch {
	case r.ErrorCode != "":
		fmt.Fprintf(w, "✗ %s: %s\n", r.ErrorCode, r.Error)
	case r.BlockedBy != "":
		fmt.Fprintf(w, "Outcome: blocked by %s: %s\n", r.BlockedBy, r.Reason)
	default:
		fmt.Fprintf(w, "Outcome: %s\n", r.Outcome)
	}
	for _, hop := range r.Redirects {
		fmt.Fprintf(w, "  redirect %s\n", hop)
	}
	fmt.Fprintln(w)

	fmt.Fprintf(w, "Root:   [%s]\n", strings.Join(r.Root, " "))
	fmt.Fprintf(w, "Active: [%s]\n", strings.Join(r.Active, " "))
	fmt.Fprintf(w, "Top:    %s\n", r.Top)

	if verbose {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "Tree (version %d):\n", r.Version)
		writeTree(w, r.snapshot)
	}
}

// writeTree prints every entry of the snapshot, indented by nesting depth.
// Entries on the active walk are marked with "*".
func writeTree(w io.Writer, snap ir.Snapshot) {
	active := map[string]bool{}
	for _, frame := range snap.ActiveChain() {
		active[frame.Scope] = true
	}
	snap.Walk(func(scope string, depth int, n ir.Node) bool {
		mark := " "
		if active[scope] {
			mark = "*"
		}
		fmt.Fprintf(w, "%s%s %s [%s]\n", strings.Repeat("  ", depth+1), mark, n.Path(), n.Key)
		return true
	})
}

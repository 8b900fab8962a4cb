package harness

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/roach88/navstack/internal/compiler"
	"github.com/roach88/navstack/internal/engine"
	"github.com/roach88/navstack/internal/guard"
	"github.com/roach88/navstack/internal/ir"
	"github.com/roach88/navstack/internal/store"
)

// Harness executes one scenario against a real engine.
type Harness struct {
	catalog *compiler.Catalog
	engine  *engine.Engine
	flags   *guard.Flags
	journal *store.Store
	session *store.Session

	// ownsJournal is set when the harness opened the journal itself.
	ownsJournal bool
}

// Run executes a scenario and returns the result.
//
// Each run loads and validates the scenario's catalog, builds a fresh
// engine with sequential entry keys and an in-memory journal, then runs the
// steps in order. Step mismatches and assertion failures are reported in
// Result.Errors; the returned error is reserved for setup failures.
func Run(ctx context.Context, scenario *Scenario) (*Result, error) {
	return RunJournaled(ctx, scenario, nil)
}

// RunJournaled is Run with the transitions recorded into journal, as one
// session labelled with the scenario name. A nil journal uses a private
// in-memory store. The caller keeps ownership of journal.
func RunJournaled(ctx context.Context, scenario *Scenario, journal *store.Store) (*Result, error) {
	h, err := newHarness(ctx, scenario, journal)
	if err != nil {
		return nil, err
	}
	defer h.close()

	result := NewResult()
	for i, step := range scenario.Steps {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		ev, err := h.execute(ctx, i+1, step)
		if err != nil {
			return nil, fmt.Errorf("step %d: %w", i+1, err)
		}
		result.Trace = append(result.Trace, ev)
		for _, msg := range checkExpect(ev, step.Expect) {
			result.AddError(fmt.Sprintf("step %d (%s): %s", i+1, ev.Op, msg))
		}
	}

	final := h.engine.Snapshot()
	result.Root = final.RootPaths()
	result.Active = final.ActivePaths()

	for _, msg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(msg)
	}

	// The journal must replay without breaks; a break means the engine
	// skipped a request.
	st, err := h.journal.ReplaySession(ctx, h.session.ID())
	if err != nil {
		return nil, fmt.Errorf("replay journal: %w", err)
	}
	if !st.Consistent() {
		result.AddError(fmt.Sprintf("journal is not continuous at seq %d", st.Breaks[0].Seq))
	}

	slog.Debug("scenario finished",
		"scenario", scenario.Name,
		"steps", len(scenario.Steps),
		"pass", result.Pass,
	)
	return result, nil
}

func newHarness(ctx context.Context, scenario *Scenario, journal *store.Store) (*Harness, error) {
	catalog, err := compiler.LoadCatalog(scenario.Catalog)
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}
	if errs := compiler.ValidateCatalog(catalog); len(errs) > 0 {
		return nil, fmt.Errorf("invalid catalog: %w", errors.Join(validationErrors(errs)...))
	}

	initial, err := catalog.Location(scenario.Initial)
	if err != nil {
		return nil, fmt.Errorf("initial location: %w", err)
	}

	flags := guard.NewFlags()
	for _, f := range scenario.Flags {
		flags.Set(f)
	}
	interceptors, err := catalog.Interceptors(flags)
	if err != nil {
		return nil, fmt.Errorf("guards: %w", err)
	}
	router, err := catalog.Router()
	if err != nil {
		return nil, fmt.Errorf("deep links: %w", err)
	}

	owns := journal == nil
	if owns {
		journal, err = store.Open(":memory:")
		if err != nil {
			return nil, fmt.Errorf("failed to create in-memory journal: %w", err)
		}
	}
	release := func() {
		if owns {
			journal.Close()
		}
	}
	session, err := journal.BeginSession(ctx, scenario.Name)
	if err != nil {
		release()
		return nil, err
	}

	opts := []engine.Option{
		engine.WithInterceptors(interceptors...),
		engine.WithResolver(router),
		engine.WithKeyGenerator(engine.NewSequenceGenerator("k")),
		engine.WithJournal(session),
	}
	if scenario.MaxRedirects != nil {
		opts = append(opts, engine.WithMaxRedirects(*scenario.MaxRedirects))
	}
	eng, err := engine.New(initial, opts...)
	if err != nil {
		release()
		return nil, err
	}

	return &Harness{
		catalog:     catalog,
		engine:      eng,
		flags:       flags,
		journal:     journal,
		session:     session,
		ownsJournal: owns,
	}, nil
}

func (h *Harness) close() {
	h.engine.Close()
	if h.ownsJournal {
		h.journal.Close()
	}
}

// execute runs one step. Engine errors are part of the trace, not failures
// of execute; only unusable steps (unknown location names) return an error.
func (h *Harness) execute(ctx context.Context, n int, step Step) (TraceEvent, error) {
	ev := TraceEvent{Step: n, Op: step.Action()}

	target := engine.TargetNearest
	if step.Root {
		target = engine.TargetRoot
	}

	var (
		res    engine.Result
		navErr error
	)
	switch ev.Op {
	case ActionSetFlag:
		h.flags.Set(step.SetFlag)
		ev.Input = []string{step.SetFlag}
		ev.Outcome = outcomeOK
		h.describe(&ev, h.engine.Snapshot())
		return ev, nil

	case ActionClearFlag:
		h.flags.Clear(step.ClearFlag)
		ev.Input = []string{step.ClearFlag}
		ev.Outcome = outcomeOK
		h.describe(&ev, h.engine.Snapshot())
		return ev, nil

	case ActionNavigate:
		loc, err := h.catalog.Location(step.Navigate)
		if err != nil {
			return ev, err
		}
		ev.Input = []string{loc.Path()}
		res, navErr = h.engine.Navigate(ctx, loc, target)

	case ActionPop:
		res, navErr = h.engine.Pop(ctx, target)

	case ActionReplace:
		locs, err := h.catalog.LocationsFor(step.Replace)
		if err != nil {
			return ev, err
		}
		ev.Input = ir.Paths(locs)
		res, navErr = h.engine.Replace(ctx, locs, target)

	case ActionSwitch:
		ev.Input = []string{fmt.Sprint(*step.Switch)}
		target = engine.TargetNearest
		res, navErr = h.engine.SwitchChild(ctx, *step.Switch)

	case ActionDeepLink:
		ev.Input = []string{step.DeepLink}
		target = engine.TargetRoot
		res, navErr = h.engine.DeepLink(ctx, step.DeepLink)

	default:
		return ev, errors.New("no action")
	}

	ev.Target = target.String()
	if navErr != nil {
		ev.Outcome = "error"
		ev.Error = string(engine.CodeOf(navErr))
		h.describe(&ev, h.engine.Snapshot())
		return ev, nil
	}

	ev.Outcome = string(res.Outcome)
	ev.BlockedBy = res.BlockedBy
	ev.Reason = res.Reason
	for _, hop := range res.Redirects {
		ev.Redirects = append(ev.Redirects, hop.String())
	}
	h.describe(&ev, res.Snapshot)
	return ev, nil
}

// describe fills the state fields of ev from snap.
func (h *Harness) describe(ev *TraceEvent, snap ir.Snapshot) {
	ev.Version = snap.Version
	ev.Root = snap.RootPaths()
	ev.Active = snap.ActivePaths()
	if top, ok := snap.Top(); ok {
		ev.Top = top.Path()
	}
}

// checkExpect compares a trace event with the step's expect clause.
// A step without an expect clause must not fail.
func checkExpect(ev TraceEvent, exp *Expect) []string {
	if exp == nil {
		if ev.Outcome == "error" {
			return []string{fmt.Sprintf("unexpected error %s", ev.Error)}
		}
		return nil
	}

	var errs []string
	mismatch := func(field string, want, got any) {
		errs = append(errs, fmt.Sprintf("%s: expected %v, got %v", field, want, got))
	}

	switch {
	case exp.Error != "":
		if ev.Error != exp.Error {
			mismatch("error", exp.Error, orNone(ev.Error))
		}
	case ev.Outcome == "error":
		errs = append(errs, fmt.Sprintf("unexpected error %s", ev.Error))
	case exp.Outcome != "" && ev.Outcome != exp.Outcome:
		mismatch("outcome", exp.Outcome, ev.Outcome)
	}

	if exp.Root != nil && !slices.Equal(exp.Root, ev.Root) {
		mismatch("root", exp.Root, ev.Root)
	}
	if exp.Active != nil && !slices.Equal(exp.Active, ev.Active) {
		mismatch("active", exp.Active, ev.Active)
	}
	if exp.Top != "" && exp.Top != ev.Top {
		mismatch("top", exp.Top, ev.Top)
	}
	if exp.BlockedBy != "" && exp.BlockedBy != ev.BlockedBy {
		mismatch("blocked_by", exp.BlockedBy, orNone(ev.BlockedBy))
	}
	if exp.Redirects != nil && *exp.Redirects != len(ev.Redirects) {
		mismatch("redirects", *exp.Redirects, len(ev.Redirects))
	}
	return errs
}

func orNone(s string) string {
	if s == "" {
		return "none"
	}
	return s
}

func validationErrors(errs []compiler.ValidationError) []error {
	out := make([]error, len(errs))
	for i, e := range errs {
		out[i] = e
	}
	return out
}

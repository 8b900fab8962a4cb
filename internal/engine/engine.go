package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/roach88/navstack/internal/ir"
)

// Outcome is the caller-visible result kind of a request that did not fail.
type Outcome string

const (
	// OutcomeCommitted means the request was applied.
	OutcomeCommitted Outcome = "committed"

	// OutcomeBlocked means an interceptor vetoed the request. State is unchanged.
	OutcomeBlocked Outcome = "blocked"

	// OutcomeDeferred means a deep link resolver deferred. State is unchanged.
	OutcomeDeferred Outcome = "deferred"
)

// Result describes a processed request.
type Result struct {
	Outcome Outcome

	// Snapshot is the state after the request.
	Snapshot ir.Snapshot

	// Redirects lists the redirect hops applied, in order.
	Redirects []Hop

	// BlockedBy names the interceptor that blocked, and Reason is its reason.
	BlockedBy string
	Reason    string
}

// Committed reports whether the request was applied.
func (r Result) Committed() bool {
	return r.Outcome == OutcomeCommitted
}

// Blocked reports whether an interceptor vetoed the request.
func (r Result) Blocked() bool {
	return r.Outcome == OutcomeBlocked
}

// Engine is the navigation engine.
//
// The engine owns the root stack and every branch stack. Mutating
// operations (Navigate, Pop, Replace, SwitchChild, DeepLink) are serialized
// through a FIFO writer queue: each runs to completion, including the
// interceptor chain and any blocking interceptor or resolver, before the
// next begins. Queued requests see the state left by the ones before them.
//
// Reads (Snapshot, Top) never wait. Snapshots are immutable and can be
// held and compared freely.
//
// Thread-safety model:
//   - All methods are safe for concurrent use
//   - Mutations are applied one at a time in arrival order
//   - Observers and the journal are called while the writer turn is held
type Engine struct {
	state atomic.Pointer[ir.Snapshot]
	queue *writerQueue

	versions *Clock
	requests *Clock
	keys     KeyGenerator

	pipeline     *pipeline
	resolver     Resolver
	maxRedirects int
	journal      Journal
	observers    ObserverBuilder
	scopes       *scopeRegistry

	closed atomic.Bool
}

// Option configures an Engine.
type Option func(*Engine)

// WithInterceptors appends interceptors to the chain. They are evaluated in
// the order given.
func WithInterceptors(ics ...Interceptor) Option {
	return func(e *Engine) {
		e.pipeline.interceptors = append(e.pipeline.interceptors, ics...)
	}
}

// WithResolver sets the deep link resolver.
func WithResolver(r Resolver) Option {
	return func(e *Engine) {
		e.resolver = r
	}
}

// WithObserverBuilder sets the per-scope observer builder.
func WithObserverBuilder(b ObserverBuilder) Option {
	return func(e *Engine) {
		e.observers = b
	}
}

// WithKeyGenerator sets the entry key generator.
//
// Default: UUIDv7Generator
func WithKeyGenerator(g KeyGenerator) Option {
	return func(e *Engine) {
		e.keys = g
	}
}

// WithMaxRedirects sets the redirect bound per request.
//
// Default: 10 (DefaultMaxRedirects). Zero forbids redirects.
func WithMaxRedirects(n int) Option {
	return func(e *Engine) {
		e.maxRedirects = n
	}
}

// WithJournal records every processed request to j.
func WithJournal(j Journal) Option {
	return func(e *Engine) {
		e.journal = j
	}
}

// WithClock sets the clock that stamps snapshot versions.
func WithClock(c *Clock) Option {
	return func(e *Engine) {
		e.versions = c
	}
}

// New creates an Engine whose root stack holds initial.
//
// The initial location is not intercepted. If it is stateful its branches
// are created immediately.
func New(initial ir.Location, opts ...Option) (*Engine, error) {
	if initial == nil {
		return nil, errors.New("engine: initial location is required")
	}

	e := &Engine{
		queue:        newWriterQueue(),
		versions:     NewClock(),
		requests:     NewClock(),
		keys:         UUIDv7Generator{},
		pipeline:     &pipeline{},
		maxRedirects: DefaultMaxRedirects,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.maxRedirects < 0 {
		return nil, fmt.Errorf("engine: max redirects must be >= 0, got %d", e.maxRedirects)
	}

	e.scopes = newScopeRegistry(e.observers)
	e.scopes.open(Scope{ID: ir.RootScope, Index: -1, Path: initial.Path()})

	m := newMutation("", e.keys, nil, e.maxRedirects)
	m.root = []ir.Node{m.newNode(initial, ir.RootScope)}
	e.commit(m)

	slog.Info("engine started",
		"initial", initial.Path(),
		"interceptors", len(e.pipeline.interceptors),
		"resolver", e.resolver != nil,
		"max_redirects", e.maxRedirects,
	)
	return e, nil
}

// Snapshot returns the current navigation snapshot. It never blocks.
func (e *Engine) Snapshot() ir.Snapshot {
	return *e.state.Load()
}

// Top returns the location currently displayed: the top of the deepest
// active stack, or the stateful location owning an empty active branch.
func (e *Engine) Top() ir.Location {
	n, ok := e.Snapshot().Top()
	if !ok {
		return nil
	}
	return n.Location
}

// Pending returns the number of mutating requests in the writer queue,
// including the one being processed.
func (e *Engine) Pending() int {
	return e.queue.pending()
}

// Close stops the engine from accepting mutations. Requests still waiting
// in the queue fail with ENGINE_CLOSED; the request being processed
// finishes. Snapshot and Top keep working. Close is idempotent.
func (e *Engine) Close() error {
	if e.closed.Swap(true) {
		return nil
	}
	e.queue.close()
	slog.Info("engine closed")
	return nil
}

// Navigate pushes loc onto the target stack after interception.
//
// A Redirect pushes every substitute location in order. If loc is stateful,
// its branches are created with one entry per child.
func (e *Engine) Navigate(ctx context.Context, loc ir.Location, target Target) (Result, error) {
	req := request{op: OpNavigate, target: target, input: pathsOf(loc)}
	return e.do(ctx, req, func(ctx context.Context, snap ir.Snapshot, m *mutation) (Result, error) {
		if loc == nil {
			return Result{}, newInvalidStackError(OpNavigate, "nil location")
		}
		scope := targetScope(snap, target)

		p := Proposal{Op: OpNavigate, Target: target, Location: loc, Batch: []ir.Location{loc}}
		v, err := e.pipeline.run(ctx, p, snap, m.budget)
		if err != nil {
			return Result{}, err
		}
		if v.blocked() {
			return blockedResult(v, m), nil
		}
		if err := m.push(scope, v.locations); err != nil {
			return Result{}, err
		}
		return Result{Outcome: OutcomeCommitted, Redirects: m.budget.used()}, nil
	})
}

// Pop removes the top entry of the target stack. It is not intercepted.
//
// Popping the only root entry fails with INVALID_STACK_OPERATION. Popping
// the last entry of a branch is allowed and leaves the branch empty.
func (e *Engine) Pop(ctx context.Context, target Target) (Result, error) {
	req := request{op: OpPop, target: target}
	return e.do(ctx, req, func(_ context.Context, snap ir.Snapshot, m *mutation) (Result, error) {
		if err := m.pop(targetScope(snap, target)); err != nil {
			return Result{}, err
		}
		return Result{Outcome: OutcomeCommitted}, nil
	})
}

// Replace installs locs as the target stack's entries, all or nothing.
//
// Every location is intercepted individually; redirects are spliced in
// place. A Block on any location leaves the stack untouched.
func (e *Engine) Replace(ctx context.Context, locs []ir.Location, target Target) (Result, error) {
	req := request{op: OpReplace, target: target, input: pathsOf(locs...)}
	return e.do(ctx, req, func(ctx context.Context, snap ir.Snapshot, m *mutation) (Result, error) {
		if err := checkLocations(OpReplace, locs); err != nil {
			return Result{}, err
		}
		base := Proposal{Op: OpReplace, Target: target}
		return e.replace(ctx, snap, m, base, targetScope(snap, target), locs)
	})
}

// SwitchChild makes child index the active branch of the deepest stateful
// entry on the active walk. It is not intercepted and never clears the
// histories of other branches.
func (e *Engine) SwitchChild(ctx context.Context, index int) (Result, error) {
	req := request{op: OpSwitch, target: TargetNearest, input: []string{strconv.Itoa(index)}}
	return e.do(ctx, req, func(_ context.Context, snap ir.Snapshot, m *mutation) (Result, error) {
		owner, ok := switchOwner(snap)
		if !ok {
			return Result{}, newInvalidStackError(OpSwitch, "no stateful entry on the active walk")
		}
		if index < 0 || index >= len(owner.Branches) {
			return Result{}, newInvalidStackError(OpSwitch,
				"child index %d out of range [0,%d) for %s", index, len(owner.Branches), owner.Path())
		}
		if owner.Active != index {
			if err := m.setActive(owner.Key, index); err != nil {
				return Result{}, err
			}
		}
		return Result{Outcome: OutcomeCommitted}, nil
	})
}

// DeepLink resolves uri through the configured Resolver.
//
// A deferred resolution leaves the state unchanged. Otherwise the resolved
// locations replace the root stack exactly as Replace(locs, TargetRoot)
// would, interceptors included.
func (e *Engine) DeepLink(ctx context.Context, uri string) (Result, error) {
	req := request{op: OpDeepLink, target: TargetRoot, input: []string{uri}}
	return e.do(ctx, req, func(ctx context.Context, snap ir.Snapshot, m *mutation) (Result, error) {
		u, err := parseURI(uri)
		if err != nil {
			return Result{}, err
		}
		if e.resolver == nil {
			return Result{}, &NavError{Code: ErrCodeNoResolver, Op: OpDeepLink, Message: "no deep link resolver configured"}
		}

		res, err := e.resolver.Resolve(ctx, u, snap)
		if err != nil {
			return Result{}, &NavError{Code: ErrCodeResolverFailed, Op: OpDeepLink, Message: uri, Err: err}
		}
		if res.Deferred {
			slog.Debug("deep link deferred", "uri", uri)
			return Result{Outcome: OutcomeDeferred}, nil
		}
		if len(res.Locations) == 0 {
			return Result{}, &NavError{
				Code:    ErrCodeDeepLinkEmpty,
				Op:      OpDeepLink,
				Message: fmt.Sprintf("resolver returned no locations for %s", uri),
			}
		}
		if err := checkLocations(OpDeepLink, res.Locations); err != nil {
			return Result{}, err
		}

		base := Proposal{Op: OpDeepLink, Target: TargetRoot, URI: u}
		return e.replace(ctx, snap, m, base, ir.RootScope, res.Locations)
	})
}

func (e *Engine) replace(ctx context.Context, snap ir.Snapshot, m *mutation, base Proposal, scope string, locs []ir.Location) (Result, error) {
	v, err := e.pipeline.runBatch(ctx, base, locs, snap, m.budget)
	if err != nil {
		return Result{}, err
	}
	if v.blocked() {
		return blockedResult(v, m), nil
	}
	if err := m.replace(scope, v.locations); err != nil {
		return Result{}, err
	}
	return Result{Outcome: OutcomeCommitted, Redirects: m.budget.used()}, nil
}

// request describes a mutating call for logs, spans and the journal.
type request struct {
	op     Op
	target Target
	input  []string
}

// applyFunc computes a request's result against the latest snapshot.
// Changes go into m; they are committed only if the outcome is committed.
type applyFunc func(ctx context.Context, snap ir.Snapshot, m *mutation) (Result, error)

// do runs one mutating request under the writer queue.
//
// Requests are numbered and journaled only once they hold the turn. A
// request rejected before that (closed engine, cancelled while queued) never
// saw a snapshot, so it is logged and counted but leaves no transition.
func (e *Engine) do(ctx context.Context, req request, apply applyFunc) (Result, error) {
	start := time.Now()

	ctx, span := startRequestSpan(ctx, req.op, req.target)
	defer span.End()

	slog.Debug("request accepted", "op", req.op, "target", req.target, "input", req.input)

	if e.closed.Load() {
		err := newClosedError(req.op)
		e.reject(ctx, req, err, start)
		endRequestSpan(span, Result{}, err)
		return Result{}, err
	}

	t, err := e.queue.acquire(ctx)
	if err != nil {
		if errors.Is(err, errQueueClosed) {
			err = newClosedError(req.op)
		}
		e.reject(ctx, req, err, start)
		endRequestSpan(span, Result{}, err)
		return Result{}, err
	}
	defer e.queue.release(t)

	seq := e.requests.Next()
	before := e.Snapshot()
	m := newMutation(req.op, e.keys, before.Root, e.maxRedirects)

	res, err := apply(ctx, before, m)
	switch {
	case err != nil:
		res = Result{}
	case res.Outcome == OutcomeCommitted && m.changed:
		res.Snapshot = e.commit(m)
	default:
		res.Snapshot = before
	}

	e.finish(ctx, seq, req, before, res, err, start)
	endRequestSpan(span, res, err)
	return res, err
}

// reject logs and counts a request that failed before taking the turn.
func (e *Engine) reject(ctx context.Context, req request, err error, start time.Time) {
	slog.Warn("navigation rejected",
		"op", req.op,
		"code", CodeOf(err),
		"error", err,
	)
	recordRequest(ctx, req.op, outcomeError, time.Since(start))
}

// commit publishes the mutation as the new snapshot, updates scope
// registrations and notifies observers.
func (e *Engine) commit(m *mutation) ir.Snapshot {
	snap := ir.Snapshot{Version: e.versions.Next(), Root: m.root}
	e.state.Store(&snap)

	for _, id := range m.closed {
		e.scopes.close(id)
	}
	for _, s := range m.opened {
		e.scopes.open(s)
	}
	e.scopes.dispatch(m.notices)
	return snap
}

// finish logs, records metrics and journals a processed request.
// Called with the writer turn held.
func (e *Engine) finish(ctx context.Context, seq int64, req request, before ir.Snapshot, res Result, err error, start time.Time) {
	elapsed := time.Since(start)

	outcome := string(res.Outcome)
	switch {
	case err != nil:
		outcome = outcomeError
		slog.Warn("navigation failed",
			"seq", seq,
			"op", req.op,
			"code", CodeOf(err),
			"error", err,
		)
	case res.Outcome == OutcomeBlocked:
		slog.Info("navigation blocked",
			"seq", seq,
			"op", req.op,
			"by", res.BlockedBy,
			"reason", res.Reason,
		)
	default:
		slog.Info("navigation "+outcome,
			"seq", seq,
			"op", req.op,
			"version", res.Snapshot.Version,
			"active", res.Snapshot.ActivePaths(),
			"redirects", len(res.Redirects),
		)
	}

	recordRequest(ctx, req.op, outcome, elapsed)

	if e.journal == nil {
		return
	}
	t := newTransition(seq, req, before, res, err, elapsed)
	if jerr := e.journal.Record(context.WithoutCancel(ctx), t); jerr != nil {
		slog.Error("journal write failed", "seq", seq, "op", req.op, "error", jerr)
	}
}

// targetScope resolves a Target against snap using the active walk.
func targetScope(snap ir.Snapshot, target Target) string {
	if target == TargetRoot {
		return ir.RootScope
	}
	scope, _ := snap.ActiveStack()
	return scope
}

// switchOwner finds the deepest stateful entry at the top of a stack on the
// active walk.
func switchOwner(snap ir.Snapshot) (ir.Node, bool) {
	chain := snap.ActiveChain()
	for i := len(chain) - 1; i >= 0; i-- {
		entries := chain[i].Entries
		if len(entries) == 0 {
			continue
		}
		if top := entries[len(entries)-1]; top.IsStateful() {
			return top, true
		}
	}
	return ir.Node{}, false
}

func blockedResult(v verdict, m *mutation) Result {
	return Result{
		Outcome:   OutcomeBlocked,
		Redirects: m.budget.used(),
		BlockedBy: v.blockedBy,
		Reason:    v.reason,
	}
}

func checkLocations(op Op, locs []ir.Location) error {
	if len(locs) == 0 {
		return newInvalidStackError(op, "replace requires at least one location")
	}
	for i, loc := range locs {
		if loc == nil {
			return newInvalidStackError(op, "location %d is nil", i)
		}
	}
	return nil
}

func parseURI(raw string) (*url.URL, error) {
	if raw == "" {
		return nil, &NavError{Code: ErrCodeDeepLinkInvalid, Op: OpDeepLink, Message: "empty URI"}
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, &NavError{Code: ErrCodeDeepLinkInvalid, Op: OpDeepLink, Message: raw, Err: err}
	}
	return u, nil
}

func pathsOf(locs ...ir.Location) []string {
	out := make([]string, 0, len(locs))
	for _, l := range locs {
		if l != nil {
			out = append(out, l.Path())
		}
	}
	return out
}

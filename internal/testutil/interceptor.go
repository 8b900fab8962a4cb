package testutil

import (
	"context"
	"sync"

	"github.com/roach88/navstack/internal/engine"
	"github.com/roach88/navstack/internal/ir"
)

// RecordingInterceptor wraps a decision function and records the path of
// every proposal it sees.
type RecordingInterceptor struct {
	name   string
	decide func(p engine.Proposal) engine.Decision

	mu    sync.Mutex
	calls []string
}

// NewRecordingInterceptor creates a named interceptor. A nil decide allows
// everything.
func NewRecordingInterceptor(name string, decide func(p engine.Proposal) engine.Decision) *RecordingInterceptor {
	if decide == nil {
		decide = func(engine.Proposal) engine.Decision { return engine.Allow() }
	}
	return &RecordingInterceptor{name: name, decide: decide}
}

// Name implements the optional naming interface used in results.
func (r *RecordingInterceptor) Name() string {
	return r.name
}

// Intercept records the proposal and returns the decision.
func (r *RecordingInterceptor) Intercept(_ context.Context, p engine.Proposal, _ ir.Snapshot) (engine.Decision, error) {
	r.mu.Lock()
	r.calls = append(r.calls, p.Location.Path())
	r.mu.Unlock()
	return r.decide(p), nil
}

// Calls returns the proposed paths seen so far.
func (r *RecordingInterceptor) Calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.calls))
	copy(out, r.calls)
	return out
}

// RedirectPath redirects proposals for from to the given locations.
func RedirectPath(from string, to ...ir.Location) func(engine.Proposal) engine.Decision {
	return func(p engine.Proposal) engine.Decision {
		if p.Location.Path() == from {
			return engine.Redirect(to...)
		}
		return engine.Allow()
	}
}

// BlockPath blocks proposals for path.
func BlockPath(path, reason string) func(engine.Proposal) engine.Decision {
	return func(p engine.Proposal) engine.Decision {
		if p.Location.Path() == path {
			return engine.Block(reason)
		}
		return engine.Allow()
	}
}

// Gate is an interceptor that blocks inside Intercept until Open is called.
// Used to hold the writer turn while other requests queue up.
type Gate struct {
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

// NewGate creates a closed gate.
func NewGate() *Gate {
	return &Gate{
		entered: make(chan struct{}, 16),
		release: make(chan struct{}),
	}
}

// Intercept waits for Open (or ctx) and then allows.
func (g *Gate) Intercept(ctx context.Context, _ engine.Proposal, _ ir.Snapshot) (engine.Decision, error) {
	g.entered <- struct{}{}
	select {
	case <-g.release:
		return engine.Allow(), nil
	case <-ctx.Done():
		return engine.Decision{}, ctx.Err()
	}
}

// Entered is signalled each time a request reaches the gate.
func (g *Gate) Entered() <-chan struct{} {
	return g.entered
}

// Open releases every current and future caller.
func (g *Gate) Open() {
	g.once.Do(func() { close(g.release) })
}

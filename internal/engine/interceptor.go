package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"

	"github.com/roach88/navstack/internal/ir"
)

// Op names an engine operation.
type Op string

const (
	OpNavigate Op = "navigate"
	OpPop      Op = "pop"
	OpReplace  Op = "replace"
	OpSwitch   Op = "switch"
	OpDeepLink Op = "deeplink"
)

// Target selects the stack an operation applies to.
type Target int

const (
	// TargetNearest is the deepest stack on the active walk.
	TargetNearest Target = iota

	// TargetRoot is the root stack.
	TargetRoot
)

// String returns the string representation of Target.
func (t Target) String() string {
	if t == TargetRoot {
		return "root"
	}
	return "nearest"
}

// Verdict is the kind of an interceptor Decision.
type Verdict int

const (
	VerdictAllow Verdict = iota
	VerdictRedirect
	VerdictBlock
)

// String returns the string representation of Verdict.
func (v Verdict) String() string {
	switch v {
	case VerdictAllow:
		return "allow"
	case VerdictRedirect:
		return "redirect"
	case VerdictBlock:
		return "block"
	default:
		return "unknown"
	}
}

// Decision is an interceptor's answer to a Proposal.
type Decision struct {
	Verdict Verdict

	// Locations replaces the proposed location on Redirect.
	Locations []ir.Location

	// Reason is reported to the caller on Block.
	Reason string
}

// Allow lets the proposal through unchanged.
func Allow() Decision {
	return Decision{Verdict: VerdictAllow}
}

// Redirect substitutes locs for the proposed location. The substitutes are
// run through the whole chain again.
func Redirect(locs ...ir.Location) Decision {
	return Decision{Verdict: VerdictRedirect, Locations: locs}
}

// Block vetoes the request. The stack is left unchanged.
func Block(reason string) Decision {
	return Decision{Verdict: VerdictBlock, Reason: reason}
}

// Proposal describes one location about to be installed.
type Proposal struct {
	// Op is the operation that produced the proposal.
	Op Op

	// Target is the stack the location is headed for.
	Target Target

	// Location is the location under review.
	Location ir.Location

	// Batch holds every location of a replace or deep link; Index is the
	// position of Location within it. For navigate Batch has one element.
	Batch []ir.Location
	Index int

	// URI is set for deep links.
	URI *url.URL

	// Hops is the number of redirects already spent by this request.
	Hops int
}

// Interceptor reviews proposed navigations.
//
// Intercept may block (an auth check, a storage read); the engine holds
// every other mutating request until it returns. Interceptors must not call
// back into the engine and must not keep per-request state: the same
// interceptor is asked again for every redirect hop.
type Interceptor interface {
	Intercept(ctx context.Context, p Proposal, snap ir.Snapshot) (Decision, error)
}

// InterceptorFunc adapts a function to Interceptor.
type InterceptorFunc func(ctx context.Context, p Proposal, snap ir.Snapshot) (Decision, error)

// Intercept calls f.
func (f InterceptorFunc) Intercept(ctx context.Context, p Proposal, snap ir.Snapshot) (Decision, error) {
	return f(ctx, p, snap)
}

// Named attaches a name to an interceptor for results, logs and errors.
func Named(name string, i Interceptor) Interceptor {
	return namedInterceptor{name: name, Interceptor: i}
}

type namedInterceptor struct {
	name string
	Interceptor
}

func (n namedInterceptor) Name() string { return n.name }

// interceptorName returns the interceptor's Name() or its position.
func interceptorName(i Interceptor, idx int) string {
	if n, ok := i.(interface{ Name() string }); ok && n.Name() != "" {
		return n.Name()
	}
	return fmt.Sprintf("interceptor[%d]", idx)
}

// verdict is the pipeline's result for one proposal after redirects.
type verdict struct {
	locations []ir.Location
	blockedBy string
	reason    string
}

func (v verdict) blocked() bool {
	return v.blockedBy != ""
}

// pipeline evaluates the interceptor chain in registration order.
type pipeline struct {
	interceptors []Interceptor
}

// run resolves p through the chain. The first non-Allow decision
// short-circuits the rest. A Redirect re-runs each substitute from the
// start of the chain, spending from budget on every hop.
func (pl *pipeline) run(ctx context.Context, p Proposal, snap ir.Snapshot, budget *redirectBudget) (verdict, error) {
	for idx, ic := range pl.interceptors {
		name := interceptorName(ic, idx)
		p.Hops = len(budget.hops)

		d, err := ic.Intercept(ctx, p, snap)
		if err != nil {
			return verdict{}, newInterceptorError(p.Op, name, err)
		}

		switch d.Verdict {
		case VerdictAllow:
			continue

		case VerdictBlock:
			slog.Debug("navigation blocked",
				"op", p.Op,
				"path", p.Location.Path(),
				"by", name,
				"reason", d.Reason,
			)
			return verdict{blockedBy: name, reason: d.Reason}, nil

		case VerdictRedirect:
			if len(d.Locations) == 0 {
				return verdict{}, newInterceptorError(p.Op, name, errors.New("redirect without locations"))
			}
			for _, loc := range d.Locations {
				if loc == nil {
					return verdict{}, newInterceptorError(p.Op, name, errors.New("redirect to nil location"))
				}
			}
			hop := Hop{By: name, From: p.Location.Path(), To: ir.Paths(d.Locations)}
			if err := budget.spend(p.Op, hop); err != nil {
				return verdict{}, err
			}
			recordRedirect(ctx, p.Op)
			slog.Debug("navigation redirected",
				"op", p.Op,
				"from", hop.From,
				"to", hop.To,
				"by", name,
				"hop", len(budget.hops),
			)

			var out []ir.Location
			for _, loc := range d.Locations {
				sub := p
				sub.Location = loc
				v, err := pl.run(ctx, sub, snap, budget)
				if err != nil {
					return verdict{}, err
				}
				if v.blocked() {
					return v, nil
				}
				out = append(out, v.locations...)
			}
			return verdict{locations: out}, nil

		default:
			return verdict{}, newInterceptorError(p.Op, name, fmt.Errorf("unknown verdict %d", d.Verdict))
		}
	}
	return verdict{locations: []ir.Location{p.Location}}, nil
}

// runBatch resolves every location of a replace or deep link. Any Block
// aborts the whole batch.
func (pl *pipeline) runBatch(ctx context.Context, base Proposal, locs []ir.Location, snap ir.Snapshot, budget *redirectBudget) (verdict, error) {
	var out []ir.Location
	for i, loc := range locs {
		p := base
		p.Location = loc
		p.Batch = locs
		p.Index = i
		v, err := pl.run(ctx, p, snap, budget)
		if err != nil {
			return verdict{}, err
		}
		if v.blocked() {
			return v, nil
		}
		out = append(out, v.locations...)
	}
	return verdict{locations: out}, nil
}

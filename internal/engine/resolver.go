package engine

import (
	"context"
	"net/url"

	"github.com/roach88/navstack/internal/ir"
)

// Resolution is a deep link resolver's answer.
type Resolution struct {
	// Deferred asks the engine to do nothing now. The resolver is
	// responsible for re-triggering navigation later.
	Deferred bool

	// Locations is the new root stack, bottom first. Must be non-empty
	// unless Deferred.
	Locations []ir.Location
}

// Resolved returns a Resolution that replaces the root stack with locs.
func Resolved(locs ...ir.Location) Resolution {
	return Resolution{Locations: locs}
}

// Defer returns a Resolution that leaves the stack unchanged.
func Defer() Resolution {
	return Resolution{Deferred: true}
}

// Resolver turns an external URI into a root stack.
//
// Resolve runs while the engine holds the writer turn, against the latest
// snapshot; it may block. A non-deferred result is applied exactly like a
// replace of the root stack, interceptors included.
type Resolver interface {
	Resolve(ctx context.Context, uri *url.URL, snap ir.Snapshot) (Resolution, error)
}

// ResolverFunc adapts a function to Resolver.
type ResolverFunc func(ctx context.Context, uri *url.URL, snap ir.Snapshot) (Resolution, error)

// Resolve calls f.
func (f ResolverFunc) Resolve(ctx context.Context, uri *url.URL, snap ir.Snapshot) (Resolution, error) {
	return f(ctx, uri, snap)
}

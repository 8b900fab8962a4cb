// Package testutil provides shared fixtures for navstack tests: locations,
// recording observers and interceptors, and engine construction helpers.
package testutil

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/navstack/internal/engine"
	"github.com/roach88/navstack/internal/ir"
)

// Common locations.
var (
	Home     = ir.NewSimple("/home")
	Page1    = ir.NewSimple("/page1")
	Page2    = ir.NewSimple("/page2")
	Detail   = ir.NewSimple("/detail")
	Login    = ir.NewSimple("/login")
	Settings = ir.NewSimple("/settings")
	ChildA   = ir.NewSimple("/a")
	ChildB   = ir.NewSimple("/b")
)

// Shell returns a stateful location "/shell" with the given children.
// With no children it uses ChildA and ChildB.
func Shell(initial int, children ...ir.Location) *ir.Stateful {
	if len(children) == 0 {
		children = []ir.Location{ChildA, ChildB}
	}
	return ir.MustStateful("/shell", children, initial)
}

// NewEngine builds an engine with sequential keys "k1", "k2", ... and
// closes it when the test ends.
func NewEngine(t *testing.T, initial ir.Location, opts ...engine.Option) *engine.Engine {
	t.Helper()
	opts = append([]engine.Option{engine.WithKeyGenerator(engine.NewSequenceGenerator("k"))}, opts...)
	e, err := engine.New(initial, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { e.Close() })
	return e
}

// RootPaths returns the engine's current root stack paths.
func RootPaths(e *engine.Engine) []string {
	return e.Snapshot().RootPaths()
}

// BranchPaths returns the paths of the branch with the given scope, or nil.
func BranchPaths(snap ir.Snapshot, scope string) []string {
	b, ok := snap.Branch(scope)
	if !ok {
		return nil
	}
	out := make([]string, len(b.Entries))
	for i, n := range b.Entries {
		out[i] = n.Path()
	}
	return out
}

package engine

import (
	"log/slog"

	"github.com/roach88/navstack/internal/ir"
)

// Scope identifies one navigation stack: the root, or one branch of a
// stateful entry.
type Scope struct {
	// ID is ir.RootScope or ir.BranchScope(owner key, index).
	ID string

	// Parent is the scope the owning entry lives in. Empty for the root.
	Parent string

	// Owner is the key of the stateful entry. Empty for the root.
	Owner string

	// Index is the child index. -1 for the root.
	Index int

	// Path is the path of the location that seeded the stack: the
	// initial location for the root, the child location for a branch.
	Path string
}

// IsRoot reports whether s is the root scope.
func (s Scope) IsRoot() bool {
	return s.ID == ir.RootScope
}

// Observer receives mutations of a single scope after they commit.
//
// Calls happen while the engine still holds the writer turn, so observers
// see mutations in commit order. Observers must not call back into the
// engine.
type Observer interface {
	DidPush(scope Scope, entry ir.Node)
	DidPop(scope Scope, entry ir.Node)
	DidReplace(scope Scope, previous, current []ir.Node)
}

// ObserverBuilder returns fresh observers for a newly created scope.
//
// It is invoked once for the root when the engine is built and once for
// every branch when its stateful entry is created. Each call must return
// newly allocated observers: an observer shared between scopes would
// receive interleaved notifications that it cannot tell apart.
type ObserverBuilder func(scope Scope) []Observer

// BaseObserver implements Observer with no-ops. Embed it to override only
// the notifications you need.
type BaseObserver struct{}

func (BaseObserver) DidPush(Scope, ir.Node) {}
func (BaseObserver) DidPop(Scope, ir.Node) {}
func (BaseObserver) DidReplace(Scope, []ir.Node, []ir.Node) {}

// noticeKind distinguishes pending observer notifications.
type noticeKind int

const (
	noticePush noticeKind = iota + 1
	noticePop
	noticeReplace
)

// notice is a notification recorded during a mutation and dispatched after
// commit.
type notice struct {
	kind     noticeKind
	scope    string
	entry    ir.Node
	previous []ir.Node
	current  []ir.Node
}

// scopeRegistry holds the observers of every live scope.
// Only touched while holding the writer turn.
type scopeRegistry struct {
	build  ObserverBuilder
	scopes map[string]Scope
	obs    map[string][]Observer
}

func newScopeRegistry(build ObserverBuilder) *scopeRegistry {
	return &scopeRegistry{
		build:  build,
		scopes: make(map[string]Scope),
		obs:    make(map[string][]Observer),
	}
}

// open registers scope and builds its observers.
func (r *scopeRegistry) open(scope Scope) {
	r.scopes[scope.ID] = scope
	if r.build == nil {
		return
	}
	r.obs[scope.ID] = r.build(scope)
	slog.Debug("scope opened", "scope", scope.ID, "observers", len(r.obs[scope.ID]))
}

// close drops a scope and its observers.
func (r *scopeRegistry) close(id string) {
	delete(r.scopes, id)
	delete(r.obs, id)
}

// live returns the number of registered scopes.
func (r *scopeRegistry) live() int {
	return len(r.scopes)
}

// dispatch delivers notices to the observers of their scopes.
func (r *scopeRegistry) dispatch(notices []notice) {
	for _, n := range notices {
		scope, ok := r.scopes[n.scope]
		if !ok {
			continue
		}
		for _, o := range r.obs[n.scope] {
			switch n.kind {
			case noticePush:
				o.DidPush(scope, n.entry)
			case noticePop:
				o.DidPop(scope, n.entry)
			case noticeReplace:
				o.DidReplace(scope, n.previous, n.current)
			}
		}
	}
}

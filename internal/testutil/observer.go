package testutil

import (
	"fmt"
	"strings"
	"sync"

	"github.com/roach88/navstack/internal/engine"
	"github.com/roach88/navstack/internal/ir"
)

// Recorder collects observer notifications from every scope it builds
// observers for. Each built observer is a distinct instance.
//
// Safe for concurrent use.
type Recorder struct {
	mu        sync.Mutex
	events    []string
	scopes    []engine.Scope
	observers []*RecordingObserver
}

// Builder returns an engine.ObserverBuilder backed by r.
func (r *Recorder) Builder() engine.ObserverBuilder {
	return func(scope engine.Scope) []engine.Observer {
		o := &RecordingObserver{rec: r}
		r.mu.Lock()
		r.scopes = append(r.scopes, scope)
		r.observers = append(r.observers, o)
		r.mu.Unlock()
		return []engine.Observer{o}
	}
}

// Events returns the notifications received so far, formatted as
// "push root /page1", "pop k2/0 /detail", "replace root [/a] -> [/b]".
func (r *Recorder) Events() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	copy(out, r.events)
	return out
}

// Scopes returns the scopes observers were built for, in build order.
func (r *Recorder) Scopes() []engine.Scope {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]engine.Scope, len(r.scopes))
	copy(out, r.scopes)
	return out
}

// Observers returns every observer instance built.
func (r *Recorder) Observers() []*RecordingObserver {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*RecordingObserver, len(r.observers))
	copy(out, r.observers)
	return out
}

func (r *Recorder) add(event string) {
	r.mu.Lock()
	r.events = append(r.events, event)
	r.mu.Unlock()
}

// RecordingObserver forwards notifications to its Recorder.
type RecordingObserver struct {
	rec *Recorder
}

func (o *RecordingObserver) DidPush(scope engine.Scope, entry ir.Node) {
	o.rec.add(fmt.Sprintf("push %s %s", scope.ID, entry.Path()))
}

func (o *RecordingObserver) DidPop(scope engine.Scope, entry ir.Node) {
	o.rec.add(fmt.Sprintf("pop %s %s", scope.ID, entry.Path()))
}

func (o *RecordingObserver) DidReplace(scope engine.Scope, previous, current []ir.Node) {
	o.rec.add(fmt.Sprintf("replace %s [%s] -> [%s]", scope.ID, joinPaths(previous), joinPaths(current)))
}

func joinPaths(nodes []ir.Node) string {
	paths := make([]string, len(nodes))
	for i, n := range nodes {
		paths[i] = n.Path()
	}
	return strings.Join(paths, " ")
}

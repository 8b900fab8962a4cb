package ir

import "strconv"

// RootScope is the scope identifier of the root stack.
const RootScope = "root"

// BranchScope returns the scope identifier of branch index under the
// stateful entry with the given key.
func BranchScope(entryKey string, index int) string {
	return entryKey + "/" + strconv.Itoa(index)
}

// Snapshot is the externally observable navigation state: the root stack and,
// for every stateful entry, all of its branch stacks.
//
// Snapshots are immutable once built. The rendering layer diffs consecutive
// snapshots by Node.Key to decide what to mount, unmount, or keep alive.
type Snapshot struct {
	// Version increases with every committed mutation. It is not part of
	// the Fingerprint.
	Version int64

	// Root holds the root stack, bottom first.
	Root []Node
}

// Node is one resolved stack entry.
type Node struct {
	// Key is stable for the lifetime of the entry.
	Key string

	// Location is the destination this entry was created from.
	Location Location

	// Active is the active branch index for stateful entries, -1 otherwise.
	Active int

	// Branches holds one stack per declared child, in child order.
	// Empty for simple entries.
	Branches []Branch
}

// Branch is one child's independent stack under a stateful entry.
type Branch struct {
	Index   int
	Scope   string
	Entries []Node
}

// Path returns the location path of the node.
func (n Node) Path() string {
	if n.Location == nil {
		return ""
	}
	return n.Location.Path()
}

// IsStateful reports whether the node owns branches.
func (n Node) IsStateful() bool {
	return n.Location != nil && n.Location.Kind() == KindStateful
}

// ActiveBranch returns the active branch of a stateful node.
func (n Node) ActiveBranch() (Branch, bool) {
	if !n.IsStateful() || n.Active < 0 || n.Active >= len(n.Branches) {
		return Branch{}, false
	}
	return n.Branches[n.Active], true
}

// Render invokes the location's factory for this entry.
// Returns nil if the location has no factory.
func (n Node) Render() Directive {
	if n.Location == nil || n.Location.Factory() == nil {
		return nil
	}
	return n.Location.Factory()(n.Key, n.Location)
}

// Len returns the number of root entries.
func (s Snapshot) Len() int {
	return len(s.Root)
}

// RootPaths returns the paths of the root stack, bottom first.
func (s Snapshot) RootPaths() []string {
	return nodePaths(s.Root)
}

// RootKeys returns the keys of the root stack, bottom first.
func (s Snapshot) RootKeys() []string {
	out := make([]string, len(s.Root))
	for i, n := range s.Root {
		out[i] = n.Key
	}
	return out
}

// Keys returns every entry key in the tree in depth-first order.
func (s Snapshot) Keys() []string {
	var out []string
	s.Walk(func(_ string, _ int, n Node) bool {
		out = append(out, n.Key)
		return true
	})
	return out
}

// Frame is one stack on the active walk.
type Frame struct {
	Scope   string
	Entries []Node
}

// ActiveChain returns the stacks on the active walk, root first.
//
// Walk rule: start at the root stack; while the top entry is stateful,
// descend into its active branch. The walk stops at the first stack whose
// top is simple, or at an empty branch. Every operation that needs "the
// nearest active stack" goes through this walk.
func (s Snapshot) ActiveChain() []Frame {
	chain := []Frame{{Scope: RootScope, Entries: s.Root}}
	entries := s.Root
	for len(entries) > 0 {
		b, ok := entries[len(entries)-1].ActiveBranch()
		if !ok {
			break
		}
		chain = append(chain, Frame{Scope: b.Scope, Entries: b.Entries})
		entries = b.Entries
	}
	return chain
}

// ActiveStack returns the deepest stack on the active walk: the stack that a
// navigation without the root flag targets.
func (s Snapshot) ActiveStack() (scope string, entries []Node) {
	chain := s.ActiveChain()
	last := chain[len(chain)-1]
	return last.Scope, last.Entries
}

// ActivePaths returns the paths of ActiveStack.
func (s Snapshot) ActivePaths() []string {
	_, entries := s.ActiveStack()
	return nodePaths(entries)
}

// Top returns the entry currently displayed: the top of ActiveStack, or the
// stateful entry owning an empty active branch.
func (s Snapshot) Top() (Node, bool) {
	chain := s.ActiveChain()
	for i := len(chain) - 1; i >= 0; i-- {
		if entries := chain[i].Entries; len(entries) > 0 {
			return entries[len(entries)-1], true
		}
	}
	return Node{}, false
}

// Branch looks up a branch by scope identifier anywhere in the tree.
func (s Snapshot) Branch(scope string) (Branch, bool) {
	var found Branch
	var ok bool
	s.Walk(func(_ string, _ int, n Node) bool {
		for _, b := range n.Branches {
			if b.Scope == scope {
				found, ok = b, true
				return false
			}
		}
		return true
	})
	return found, ok
}

// Walk visits every node depth first, parents before their branches.
// fn receives the scope the node lives in and its nesting depth.
// Returning false stops the walk.
func (s Snapshot) Walk(fn func(scope string, depth int, n Node) bool) {
	walkNodes(RootScope, 0, s.Root, fn)
}

func walkNodes(scope string, depth int, nodes []Node, fn func(string, int, Node) bool) bool {
	for _, n := range nodes {
		if !fn(scope, depth, n) {
			return false
		}
		for _, b := range n.Branches {
			if !walkNodes(b.Scope, depth+1, b.Entries, fn) {
				return false
			}
		}
	}
	return true
}

// Fingerprint returns a content-addressed identity of the tree shape
// (keys, paths, active indices). Two snapshots with the same fingerprint
// render identically.
func (s Snapshot) Fingerprint() string {
	return MustSnapshotFingerprint(s)
}

// canonicalMap converts the snapshot to a map for canonical JSON.
func (s Snapshot) canonicalMap() map[string]any {
	return map[string]any{
		"version": SnapshotVersion,
		"root":    canonicalNodes(s.Root),
	}
}

func canonicalNodes(nodes []Node) []any {
	out := make([]any, len(nodes))
	for i, n := range nodes {
		m := map[string]any{
			"key":  n.Key,
			"path": n.Path(),
		}
		if n.IsStateful() {
			branches := make([]any, len(n.Branches))
			for j, b := range n.Branches {
				branches[j] = map[string]any{
					"index":   b.Index,
					"entries": canonicalNodes(b.Entries),
				}
			}
			m["active"] = n.Active
			m["branches"] = branches
		}
		out[i] = m
	}
	return out
}

func nodePaths(nodes []Node) []string {
	out := make([]string, len(nodes))
	for i, n := range nodes {
		out[i] = n.Path()
	}
	return out
}

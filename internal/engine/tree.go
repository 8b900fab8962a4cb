package engine

import (
	"slices"

	"github.com/roach88/navstack/internal/ir"
)

// mutation accumulates one request's changes to the stack tree.
//
// Snapshots are shared with readers, so the tree is never edited in place:
// every edit copies the slices along the path from the root to the edited
// stack and leaves everything else shared. A request that fails or is
// blocked simply drops its mutation.
type mutation struct {
	op     Op
	keys   KeyGenerator
	budget *redirectBudget

	root    []ir.Node
	changed bool

	opened  []Scope
	closed  []string
	notices []notice
}

func newMutation(op Op, keys KeyGenerator, root []ir.Node, maxRedirects int) *mutation {
	return &mutation{
		op:     op,
		keys:   keys,
		budget: newRedirectBudget(maxRedirects),
		root:   root,
	}
}

// stackEdit transforms one stack. It must not modify its input slice.
type stackEdit func(entries []ir.Node) ([]ir.Node, error)

// newNode creates an entry for loc in scope. A stateful location gets one
// branch per child, each seeded with that child, recursively.
func (m *mutation) newNode(loc ir.Location, scope string) ir.Node {
	n := ir.Node{Key: m.keys.Generate(), Location: loc, Active: -1}

	s, ok := loc.(*ir.Stateful)
	if !ok {
		return n
	}
	n.Active = s.Initial()
	n.Branches = make([]ir.Branch, s.ChildCount())
	for i, child := range s.Children() {
		id := ir.BranchScope(n.Key, i)
		m.opened = append(m.opened, Scope{
			ID:     id,
			Parent: scope,
			Owner:  n.Key,
			Index:  i,
			Path:   child.Path(),
		})
		n.Branches[i] = ir.Branch{
			Index:   i,
			Scope:   id,
			Entries: []ir.Node{m.newNode(child, id)},
		}
	}
	return n
}

// discard records every branch scope below nodes as closed.
func (m *mutation) discard(nodes ...ir.Node) {
	for _, n := range nodes {
		for _, b := range n.Branches {
			m.closed = append(m.closed, b.Scope)
			m.discard(b.Entries...)
		}
	}
}

// edit applies fn to the stack identified by scope.
func (m *mutation) edit(scope string, fn stackEdit) error {
	if scope == ir.RootScope {
		out, err := fn(m.root)
		if err != nil {
			return err
		}
		m.root = out
		m.changed = true
		return nil
	}

	out, found, err := editIn(m.root, scope, fn)
	if err != nil {
		return err
	}
	if !found {
		return newInvalidStackError(m.op, "unknown scope %q", scope)
	}
	m.root = out
	m.changed = true
	return nil
}

func editIn(nodes []ir.Node, scope string, fn stackEdit) ([]ir.Node, bool, error) {
	for i, n := range nodes {
		for j, b := range n.Branches {
			var (
				entries []ir.Node
				found   bool
				err     error
			)
			if b.Scope == scope {
				entries, err = fn(b.Entries)
				found = true
			} else {
				entries, found, err = editIn(b.Entries, scope, fn)
			}
			if err != nil {
				return nil, true, err
			}
			if !found {
				continue
			}

			branches := slices.Clone(n.Branches)
			branches[j].Entries = entries
			n.Branches = branches

			out := slices.Clone(nodes)
			out[i] = n
			return out, true, nil
		}
	}
	return nodes, false, nil
}

// push appends one entry per location to the stack.
func (m *mutation) push(scope string, locs []ir.Location) error {
	return m.edit(scope, func(entries []ir.Node) ([]ir.Node, error) {
		out := make([]ir.Node, len(entries), len(entries)+len(locs))
		copy(out, entries)
		for _, loc := range locs {
			n := m.newNode(loc, scope)
			out = append(out, n)
			m.notices = append(m.notices, notice{kind: noticePush, scope: scope, entry: n})
		}
		return out, nil
	})
}

// pop removes the top entry of the stack.
func (m *mutation) pop(scope string) error {
	return m.edit(scope, func(entries []ir.Node) ([]ir.Node, error) {
		switch {
		case len(entries) == 0:
			return nil, newInvalidStackError(m.op, "stack %s is empty", scope)
		case scope == ir.RootScope && len(entries) == 1:
			return nil, newInvalidStackError(m.op, "cannot pop the last root entry")
		}
		top := entries[len(entries)-1]
		m.discard(top)
		m.notices = append(m.notices, notice{kind: noticePop, scope: scope, entry: top})
		return slices.Clone(entries[:len(entries)-1]), nil
	})
}

// replace installs locs as the stack's entries.
//
// Leading positions whose previous entry has the same structure (see
// ir.SameStructure) keep their key and branch state; the location value is
// updated. From the first mismatch on, entries are created fresh and the
// rest of the previous stack is discarded.
func (m *mutation) replace(scope string, locs []ir.Location) error {
	return m.edit(scope, func(entries []ir.Node) ([]ir.Node, error) {
		if len(locs) == 0 {
			return nil, newInvalidStackError(m.op, "replace requires at least one location")
		}

		out := make([]ir.Node, len(locs))
		kept := 0
		for i, loc := range locs {
			if kept == i && i < len(entries) && ir.SameStructure(entries[i].Location, loc) {
				n := entries[i]
				n.Location = loc
				out[i] = n
				kept++
				continue
			}
			out[i] = m.newNode(loc, scope)
		}
		m.discard(entries[kept:]...)

		m.notices = append(m.notices, notice{
			kind:     noticeReplace,
			scope:    scope,
			previous: entries,
			current:  out,
		})
		return out, nil
	})
}

// setActive changes the active branch of the stateful entry with key.
func (m *mutation) setActive(key string, index int) error {
	out, found := setActiveIn(m.root, key, index)
	if !found {
		return newInvalidStackError(m.op, "no entry with key %q", key)
	}
	m.root = out
	m.changed = true
	return nil
}

func setActiveIn(nodes []ir.Node, key string, index int) ([]ir.Node, bool) {
	for i, n := range nodes {
		if n.Key == key {
			n.Active = index
			out := slices.Clone(nodes)
			out[i] = n
			return out, true
		}
		for j, b := range n.Branches {
			entries, found := setActiveIn(b.Entries, key, index)
			if !found {
				continue
			}
			branches := slices.Clone(n.Branches)
			branches[j].Entries = entries
			n.Branches = branches

			out := slices.Clone(nodes)
			out[i] = n
			return out, true
		}
	}
	return nodes, false
}

package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/navstack/internal/ir"
)

func shellLoc() *ir.Stateful {
	return ir.MustStateful("/shell", []ir.Location{ir.NewSimple("/a"), ir.NewSimple("/b")}, 0)
}

func seed(t *testing.T, loc ir.Location) (*SequenceGenerator, []ir.Node) {
	t.Helper()
	keys := NewSequenceGenerator("n")
	m := newMutation("", keys, nil, DefaultMaxRedirects)
	m.root = []ir.Node{m.newNode(loc, ir.RootScope)}
	return keys, m.root
}

func TestMutation_NewNodeOpensScopes(t *testing.T) {
	m := newMutation(OpNavigate, NewSequenceGenerator("n"), nil, DefaultMaxRedirects)
	n := m.newNode(shellLoc(), ir.RootScope)

	assert.Equal(t, "n1", n.Key)
	assert.Equal(t, 0, n.Active)
	require.Len(t, n.Branches, 2)
	assert.Equal(t, "n1/0", n.Branches[0].Scope)
	assert.Equal(t, "n2", n.Branches[0].Entries[0].Key)

	require.Len(t, m.opened, 2)
	assert.Equal(t, Scope{ID: "n1/0", Parent: ir.RootScope, Owner: "n1", Index: 0, Path: "/a"}, m.opened[0])
	assert.Equal(t, "n1/1", m.opened[1].ID)
}

func TestMutation_PushCopiesOnWrite(t *testing.T) {
	keys, root := seed(t, shellLoc())
	before := ir.Snapshot{Root: root}
	fp := before.Fingerprint()

	m := newMutation(OpNavigate, keys, root, DefaultMaxRedirects)
	require.NoError(t, m.push("n1/0", []ir.Location{ir.NewSimple("/detail")}))

	after := ir.Snapshot{Root: m.root}
	b, ok := after.Branch("n1/0")
	require.True(t, ok)
	assert.Len(t, b.Entries, 2)
	assert.Equal(t, fp, before.Fingerprint(), "input tree untouched")

	require.Len(t, m.notices, 1)
	assert.Equal(t, noticePush, m.notices[0].kind)
	assert.Equal(t, "n1/0", m.notices[0].scope)
}

func TestMutation_UnknownScope(t *testing.T) {
	keys, root := seed(t, ir.NewSimple("/home"))
	m := newMutation(OpNavigate, keys, root, DefaultMaxRedirects)

	err := m.push("nope/0", []ir.Location{ir.NewSimple("/x")})
	assert.True(t, IsInvalidStackOperation(err))
	assert.False(t, m.changed)
}

func TestMutation_PopClosesScopes(t *testing.T) {
	keys, root := seed(t, ir.NewSimple("/home"))
	m := newMutation(OpNavigate, keys, root, DefaultMaxRedirects)
	require.NoError(t, m.push(ir.RootScope, []ir.Location{shellLoc()}))

	m2 := newMutation(OpPop, keys, m.root, DefaultMaxRedirects)
	require.NoError(t, m2.pop(ir.RootScope))
	assert.Equal(t, []string{"n2/0", "n2/1"}, m2.closed)
	assert.Len(t, m2.root, 1)

	m3 := newMutation(OpPop, keys, m2.root, DefaultMaxRedirects)
	assert.True(t, IsInvalidStackOperation(m3.pop(ir.RootScope)))
}

func TestMutation_ReplaceReconcile(t *testing.T) {
	keys, root := seed(t, shellLoc())
	m := newMutation(OpNavigate, keys, root, DefaultMaxRedirects)
	require.NoError(t, m.push(ir.RootScope, []ir.Location{ir.NewSimple("/x"), ir.NewSimple("/y")}))
	// root: n1 shell, n4 /x, n5 /y

	r := newMutation(OpReplace, keys, m.root, DefaultMaxRedirects)
	require.NoError(t, r.replace(ir.RootScope, []ir.Location{shellLoc(), ir.NewSimple("/z"), ir.NewSimple("/y")}))

	got := ir.Snapshot{Root: r.root}
	assert.Equal(t, []string{"n1", "n6", "n7"}, got.RootKeys(), "reuse stops at the first mismatch")
	assert.Empty(t, r.closed, "kept shell keeps its branch scopes")

	r2 := newMutation(OpReplace, keys, r.root, DefaultMaxRedirects)
	require.NoError(t, r2.replace(ir.RootScope, []ir.Location{ir.NewSimple("/only")}))
	assert.Equal(t, []string{"n1/0", "n1/1"}, r2.closed)
}

func TestMutation_SetActive(t *testing.T) {
	keys, root := seed(t, shellLoc())
	m := newMutation(OpSwitch, keys, root, DefaultMaxRedirects)

	require.NoError(t, m.setActive("n1", 1))
	assert.Equal(t, 1, m.root[0].Active)
	assert.Equal(t, 0, root[0].Active, "input tree untouched")

	assert.True(t, IsInvalidStackOperation(m.setActive("missing", 0)))
}

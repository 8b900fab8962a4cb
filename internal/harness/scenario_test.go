package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const minimalScenario = `
name: minimal
description: "one step"
catalog: catalog
initial: home
steps:
  - navigate: login
`

func TestParseScenario(t *testing.T) {
	s, err := ParseScenario([]byte(`
name: full
description: "every step kind"
catalog: ./catalog
initial: home
flags: [beta]
max_redirects: 2
steps:
  - navigate: login
    root: true
    expect: {outcome: committed, root: [/home, /login], redirects: 0}
  - pop: true
  - replace: [home]
  - switch: 0
    expect: {error: INVALID_STACK_OPERATION}
  - deeplink: app://item/1
  - set_flag: x
  - clear_flag: x
assertions:
  - type: final_state
    root: [/home]
`))
	require.NoError(t, err)

	assert.Equal(t, "full", s.Name)
	assert.Equal(t, []string{"beta"}, s.Flags)
	require.NotNil(t, s.MaxRedirects)
	assert.Equal(t, 2, *s.MaxRedirects)

	actions := make([]string, len(s.Steps))
	for i, st := range s.Steps {
		actions[i] = st.Action()
	}
	assert.Equal(t, []string{
		ActionNavigate, ActionPop, ActionReplace, ActionSwitch,
		ActionDeepLink, ActionSetFlag, ActionClearFlag,
	}, actions)

	assert.True(t, s.Steps[0].Root)
	require.NotNil(t, s.Steps[0].Expect.Redirects)
	assert.Equal(t, 0, *s.Steps[0].Expect.Redirects)
	require.NotNil(t, s.Steps[3].Switch)
	assert.Equal(t, 0, *s.Steps[3].Switch)
	assert.Equal(t, "INVALID_STACK_OPERATION", s.Steps[3].Expect.Error)
}

func TestParseScenarioErrors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"unknown field", minimalScenario + "step: []\n", "field step not found"},
		{"missing name", `{description: d, catalog: c, initial: h, steps: [{pop: true}]}`, "name is required"},
		{"missing description", `{name: n, catalog: c, initial: h, steps: [{pop: true}]}`, "description is required"},
		{"missing catalog", `{name: n, description: d, initial: h, steps: [{pop: true}]}`, "catalog is required"},
		{"missing initial", `{name: n, description: d, catalog: c, steps: [{pop: true}]}`, "initial is required"},
		{"no steps", `{name: n, description: d, catalog: c, initial: h}`, "steps list is required"},
		{"negative redirects", `{name: n, description: d, catalog: c, initial: h, max_redirects: -1, steps: [{pop: true}]}`, "max_redirects"},
		{"empty step", `{name: n, description: d, catalog: c, initial: h, steps: [{root: true}]}`, "exactly one action"},
		{"two actions", `{name: n, description: d, catalog: c, initial: h, steps: [{pop: true, navigate: a}]}`, "exactly one action"},
		{"empty replace", `{name: n, description: d, catalog: c, initial: h, steps: [{replace: []}]}`, "at least one location"},
		{"root on switch", `{name: n, description: d, catalog: c, initial: h, steps: [{switch: 1, root: true}]}`, "root applies"},
		{"outcome and error", `{name: n, description: d, catalog: c, initial: h, steps: [{pop: true, expect: {outcome: committed, error: X}}]}`, "mutually exclusive"},
		{"assertion without type", `{name: n, description: d, catalog: c, initial: h, steps: [{pop: true}], assertions: [{}]}`, "type is required"},
		{"unknown assertion", `{name: n, description: d, catalog: c, initial: h, steps: [{pop: true}], assertions: [{type: magic}]}`, "unknown assertion type"},
		{"outcome_count without outcome", `{name: n, description: d, catalog: c, initial: h, steps: [{pop: true}], assertions: [{type: outcome_count}]}`, "outcome is required"},
		{"visited_order without paths", `{name: n, description: d, catalog: c, initial: h, steps: [{pop: true}], assertions: [{type: visited_order}]}`, "paths list is required"},
		{"final_state empty", `{name: n, description: d, catalog: c, initial: h, steps: [{pop: true}], assertions: [{type: final_state}]}`, "root or active"},
		{"redirected empty", `{name: n, description: d, catalog: c, initial: h, steps: [{pop: true}], assertions: [{type: redirected}]}`, "from or to"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadScenario_ResolvesCatalog(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dir, "catalog"), 0o755))
	path := filepath.Join(dir, "minimal.yaml")
	require.NoError(t, os.WriteFile(path, []byte(minimalScenario), 0o644))

	s, err := LoadScenario(path)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "catalog"), s.Catalog)
}

func TestLoadScenario_Errors(t *testing.T) {
	_, err := LoadScenario(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")

	dir := t.TempDir()
	path := filepath.Join(dir, "minimal.yaml")
	require.NoError(t, os.WriteFile(path, []byte(minimalScenario), 0o644))
	_, err = LoadScenario(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "catalog not found")
}

package harness

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/navstack/internal/store"
)

func TestRunWithGolden(t *testing.T) {
	for _, name := range []string{"auth_redirect", "deeplink_and_loops"} {
		t.Run(name, func(t *testing.T) {
			scenario, err := LoadScenario("testdata/" + name + ".yaml")
			require.NoError(t, err)

			result, err := RunWithGolden(t, scenario)
			require.NoError(t, err)
			assert.True(t, result.Pass, "errors: %v", result.Errors)
			assert.Empty(t, result.Errors)
		})
	}
}

func TestRun_FinalState(t *testing.T) {
	scenario, err := LoadScenario("testdata/deeplink_and_loops.yaml")
	require.NoError(t, err)

	result, err := Run(context.Background(), scenario)
	require.NoError(t, err)
	assert.Equal(t, []string{"/home", "/login"}, result.Root)
	assert.Equal(t, []string{"/home", "/login"}, result.Active)
	require.Len(t, result.Trace, len(scenario.Steps))
	assert.Equal(t, "REDIRECT_CYCLE", result.Trace[6].Error)
}

func TestRun_ExpectMismatch(t *testing.T) {
	scenario := &Scenario{
		Name:        "mismatch",
		Description: "wrong expectations",
		Catalog:     "testdata/catalog",
		Initial:     "home",
		Steps: []Step{
			{Navigate: "profile", Expect: &Expect{Root: []string{"/home", "/me"}}},
			{Pop: true, Root: true},
			{Pop: true, Root: true},
			{Navigate: "item", Expect: &Expect{Outcome: "blocked"}},
		},
	}

	result, err := Run(context.Background(), scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 3)
	assert.Contains(t, result.Errors[0], "step 1 (navigate): root: expected [/home /me], got [/home /login]")
	assert.Contains(t, result.Errors[1], "step 3 (pop): unexpected error INVALID_STACK_OPERATION")
	assert.Contains(t, result.Errors[2], "step 4 (navigate): outcome: expected blocked, got committed")
}

func TestRun_FlagsAndAssertions(t *testing.T) {
	scenario := &Scenario{
		Name:        "flags",
		Description: "initial flags apply to the first step",
		Catalog:     "testdata/catalog",
		Initial:     "home",
		Flags:       []string{"authenticated", "maintenance"},
		Steps: []Step{
			{Navigate: "profile", Expect: &Expect{Outcome: "committed", Top: "/me", Redirects: new(int)}},
			{Navigate: "item", Expect: &Expect{Outcome: "blocked", BlockedBy: "maintenance"}},
		},
		Assertions: []Assertion{
			{Type: AssertFinalState, Root: []string{"/home", "/me"}},
			{Type: AssertRedirected, To: "/login"},
		},
	}

	result, err := Run(context.Background(), scenario)
	require.NoError(t, err)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "assertion 1")
	assert.Contains(t, result.Errors[0], "no matching redirect")
}

func TestRun_SetupErrors(t *testing.T) {
	tests := []struct {
		name     string
		scenario Scenario
		want     string
	}{
		{"missing catalog", Scenario{Catalog: "testdata/nope", Initial: "home"}, "load catalog"},
		{"unknown initial", Scenario{Catalog: "testdata/catalog", Initial: "ghost"}, "initial location"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.scenario.Name = tt.name
			tt.scenario.Steps = []Step{{Pop: true}}
			_, err := Run(context.Background(), &tt.scenario)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestRun_UnknownLocationInStep(t *testing.T) {
	scenario := &Scenario{
		Name:    "unknown",
		Catalog: "testdata/catalog",
		Initial: "home",
		Steps:   []Step{{Navigate: "ghost"}},
	}
	_, err := Run(context.Background(), scenario)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "step 1")
}

func TestRun_Cancelled(t *testing.T) {
	scenario, err := LoadScenario("testdata/auth_redirect.yaml")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = Run(ctx, scenario)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRenderTrace(t *testing.T) {
	trace := []TraceEvent{
		{Step: 1, Op: "navigate", Input: []string{"/me"}, Target: "nearest", Outcome: "committed",
			Redirects: []string{"auth: /me => /login"}, Root: []string{"/home", "/login"}, Active: []string{"/home", "/login"}},
		{Step: 2, Op: "navigate", Input: []string{"/item"}, Target: "nearest", Outcome: "blocked",
			BlockedBy: "maintenance", Reason: "down", Root: []string{"/home"}, Active: []string{"/home"}},
		{Step: 3, Op: "pop", Target: "root", Outcome: "error", Error: "INVALID_STACK_OPERATION",
			Root: []string{"/home"}, Active: []string{"/home"}},
	}

	var buf bytes.Buffer
	RenderTrace(&buf, trace)
	assert.Equal(t, `[1] navigate /me (nearest) -> committed  root=[/home /login] active=[/home /login]
      redirect auth: /me => /login
[2] navigate /item (nearest) -> blocked by maintenance: down  root=[/home] active=[/home]
[3] pop (root) -> error INVALID_STACK_OPERATION  root=[/home] active=[/home]
`, buf.String())
}

func TestGoldenTrace_OmitsEmptyFields(t *testing.T) {
	result := NewResult()
	result.Trace = append(result.Trace, TraceEvent{
		Step: 1, Op: "set_flag", Input: []string{"beta"}, Outcome: "ok",
		Version: 1, Root: []string{"/home"}, Active: []string{"/home"}, Top: "/home",
	})

	data, err := GoldenTrace("flag", result)
	require.NoError(t, err)
	assert.Equal(t,
		`{"scenario_name":"flag","trace":[{"active":["/home"],"input":["beta"],"op":"set_flag","outcome":"ok","root":["/home"],"step":1,"top":"/home","version":1}]}`,
		string(data))
}

func TestRunJournaled_SharedStore(t *testing.T) {
	ctx := context.Background()
	st, err := store.Open(filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	defer st.Close()

	for _, name := range []string{"auth_redirect", "deeplink_and_loops"} {
		scenario, err := LoadScenario("testdata/" + name + ".yaml")
		require.NoError(t, err)
		result, err := RunJournaled(ctx, scenario, st)
		require.NoError(t, err)
		assert.True(t, result.Pass, "errors: %v", result.Errors)
	}

	// The caller's store stays open and holds one session per run.
	sessions, err := st.ListSessions(ctx)
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	labels := []string{sessions[0].Label, sessions[1].Label}
	assert.ElementsMatch(t, []string{"auth_redirect", "deeplink_and_loops"}, labels)

	for _, s := range sessions {
		assert.Positive(t, s.Transitions)
		state, err := st.ReplaySession(ctx, s.ID)
		require.NoError(t, err)
		assert.True(t, state.Consistent())
	}
}

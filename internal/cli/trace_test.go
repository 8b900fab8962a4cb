package cli

import (
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/navstack/internal/store"
)

// journalWith runs the named fixture scenarios into a fresh journal and
// returns its path.
func journalWith(t *testing.T, scenarios ...string) string {
	t.Helper()
	dir := fixtureDir(t)
	dbPath := filepath.Join(t.TempDir(), "nav.db")
	for _, name := range scenarios {
		_, _, err := execute(NewRunCommand(&RootOptions{Format: "text"}),
			filepath.Join(dir, name+".yaml"), "--db", dbPath)
		require.NoError(t, err, name)
	}
	return dbPath
}

func decodeTrace(t *testing.T, out string) TraceResult {
	t.Helper()
	var resp struct {
		Status string      `json:"status"`
		Data   TraceResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.Equal(t, "ok", resp.Status)
	return resp.Data
}

func TestTraceLatestSession(t *testing.T) {
	dbPath := journalWith(t, "deeplink_and_loops", "auth_redirect")

	out, _, err := execute(NewTraceCommand(&RootOptions{Format: "text"}), "--db", dbPath)
	require.NoError(t, err)

	assert.Contains(t, out, "(auth_redirect)")
	assert.Contains(t, out, "=== Transitions ===")
	assert.Contains(t, out, "navigate /me (nearest) -> committed")
	assert.Contains(t, out, "redirect auth: /me => /login")
	assert.Contains(t, out, "-> blocked by maintenance: down for maintenance")
	assert.Contains(t, out, "-> error INVALID_STACK_OPERATION")
	assert.Contains(t, out, "=== Stats ===")
	assert.Contains(t, out, "Total:     10")
	assert.Contains(t, out, "Committed: 7")
	assert.Contains(t, out, "Blocked:   1")
	assert.Contains(t, out, "Deferred:  1")
	assert.Contains(t, out, "Errors:    1")
	assert.NotContains(t, out, "ID:")
}

func TestTraceJSON(t *testing.T) {
	dbPath := journalWith(t, "auth_redirect")

	out, _, err := execute(NewTraceCommand(&RootOptions{Format: "json"}), "--db", dbPath)
	require.NoError(t, err)
	result := decodeTrace(t, out)

	assert.Equal(t, "auth_redirect", result.Session.Label)
	assert.Equal(t, 10, result.Session.Transitions)
	require.Len(t, result.Transitions, 10)

	first := result.Transitions[0]
	assert.Equal(t, "navigate", first.Op)
	assert.Equal(t, []string{"/me"}, first.Input)
	assert.Equal(t, "committed", first.Outcome)
	assert.Equal(t, []string{"auth: /me => /login"}, first.Redirects)
	assert.Equal(t, []string{"/home", "/login"}, first.Root)

	for i := 1; i < len(result.Transitions); i++ {
		assert.Greater(t, result.Transitions[i].Seq, result.Transitions[i-1].Seq)
	}
	assert.Equal(t, TraceStats{Total: 10, Committed: 7, Blocked: 1, Deferred: 1, Errors: 1}, result.Stats)
}

func TestTraceFilters(t *testing.T) {
	dbPath := journalWith(t, "auth_redirect")

	tests := []struct {
		name string
		args []string
		want int
	}{
		{"by op", []string{"--op", "deeplink"}, 2},
		{"by outcome", []string{"--outcome", "committed"}, 7},
		{"op and outcome", []string{"--op", "navigate", "--outcome", "blocked"}, 1},
		{"limit", []string{"--limit", "3"}, 3},
		{"no match", []string{"--op", "replace"}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append([]string{"--db", dbPath}, tt.args...)
			out, _, err := execute(NewTraceCommand(&RootOptions{Format: "json"}), args...)
			require.NoError(t, err)
			result := decodeTrace(t, out)
			assert.Len(t, result.Transitions, tt.want)
			assert.Equal(t, tt.want, result.Stats.Total)
		})
	}
}

func TestTraceListAndSelectSession(t *testing.T) {
	dbPath := journalWith(t, "auth_redirect", "deeplink_and_loops")

	out, _, err := execute(NewTraceCommand(&RootOptions{Format: "json"}), "--db", dbPath, "--list")
	require.NoError(t, err)
	var resp struct {
		Data []SessionSummary `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.Len(t, resp.Data, 2)
	assert.Equal(t, "auth_redirect", resp.Data[0].Label)
	assert.Equal(t, "deeplink_and_loops", resp.Data[1].Label)

	out, _, err = execute(NewTraceCommand(&RootOptions{Format: "json"}), "--db", dbPath, "--session", resp.Data[0].ID)
	require.NoError(t, err)
	assert.Equal(t, "auth_redirect", decodeTrace(t, out).Session.Label)

	text, _, err := execute(NewTraceCommand(&RootOptions{Format: "text"}), "--db", dbPath, "--list")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(text), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasSuffix(lines[1], "deeplink_and_loops"))
}

func TestTraceVerbose(t *testing.T) {
	dbPath := journalWith(t, "auth_redirect")

	out, _, err := execute(NewTraceCommand(&RootOptions{Format: "text", Verbose: true}), "--db", dbPath, "--limit", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "ID: ")
	assert.Contains(t, out, "...")
	assert.Contains(t, out, "took: ")
}

func TestTraceEmptyJournal(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "nav.db")
	st, err := store.Open(dbPath)
	require.NoError(t, err)
	require.NoError(t, st.Close())

	out, _, err := execute(NewTraceCommand(&RootOptions{Format: "text"}), "--db", dbPath)
	require.NoError(t, err)
	assert.Contains(t, out, "No sessions found in journal.")

	out, _, err = execute(NewTraceCommand(&RootOptions{Format: "text"}), "--db", dbPath, "--list")
	require.NoError(t, err)
	assert.Contains(t, out, "No sessions found in journal.")
}

func TestTraceErrors(t *testing.T) {
	dbPath := journalWith(t, "auth_redirect")

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"missing journal", []string{"--db", filepath.Join(t.TempDir(), "none.db")}, "journal not found"},
		{"no journal configured", nil, "journal path required"},
		{"unknown session", []string{"--db", dbPath, "--session", "nope"}, "session nope"},
		{"negative limit", []string{"--db", dbPath, "--limit=-1"}, "--limit must be non-negative"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := execute(NewTraceCommand(&RootOptions{Format: "text"}), tt.args...)
			require.Error(t, err)
			assert.Equal(t, ExitCommandError, GetExitCode(err))
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestTruncateID(t *testing.T) {
	assert.Equal(t, "short", truncateID("short"))
	assert.Equal(t, "0190a1b2...c3d4e5f6", truncateID("0190a1b2-0000-7000-8000-0000c3d4e5f6"))
}

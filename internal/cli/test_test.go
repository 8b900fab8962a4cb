package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTestCommandMissingArgs(t *testing.T) {
	_, _, err := execute(NewTestCommand(&RootOptions{Format: "text"}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "accepts 1 arg")
}

func TestTestCommandNonExistentScenariosDir(t *testing.T) {
	_, _, err := execute(NewTestCommand(&RootOptions{Format: "text"}), "/nonexistent/scenarios")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "scenarios directory")
}

func TestTestCommandInvalidParallel(t *testing.T) {
	_, _, err := execute(NewTestCommand(&RootOptions{Format: "text"}), t.TempDir(), "--parallel", "0")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "--parallel must be at least 1")
}

func TestTestCommandEmptyScenariosDir(t *testing.T) {
	out, _, err := execute(NewTestCommand(&RootOptions{Format: "text"}), t.TempDir())
	require.NoError(t, err)
	assert.Contains(t, out, "No scenarios found")
}

func TestTestCommandEmptyScenariosDirJSON(t *testing.T) {
	out, _, err := execute(NewTestCommand(&RootOptions{Format: "json"}), t.TempDir())
	require.NoError(t, err)

	var resp struct {
		Status string     `json:"status"`
		Data   TestResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, 0, resp.Data.Total)
}

func TestTestCommandGoldenWorkflow(t *testing.T) {
	dir := fixtureDir(t)

	// No golden files yet: scenarios pass and report them missing.
	out, _, err := execute(NewTestCommand(&RootOptions{Format: "json"}), dir)
	require.NoError(t, err)
	result := decodeTestResult(t, out)
	assert.Equal(t, 2, result.Passed)
	for _, sr := range result.Scenarios {
		assert.Equal(t, GoldenMissing, sr.Golden, sr.Name)
	}

	// --update writes them.
	out, _, err = execute(NewTestCommand(&RootOptions{Format: "text"}), dir, "--update")
	require.NoError(t, err)
	assert.Contains(t, out, "✓ auth_redirect (golden updated)")
	assert.Contains(t, out, "✓ deeplink_and_loops (golden updated)")
	assert.FileExists(t, filepath.Join(dir, "golden", "auth_redirect.golden"))

	// A second run matches byte for byte.
	out, _, err = execute(NewTestCommand(&RootOptions{Format: "json"}), dir, "--parallel", "1")
	require.NoError(t, err)
	result = decodeTestResult(t, out)
	require.Len(t, result.Scenarios, 2)
	for _, sr := range result.Scenarios {
		assert.True(t, sr.Pass, sr.Name)
		assert.Equal(t, GoldenMatched, sr.Golden, sr.Name)
	}

	// A drifted golden file fails the scenario.
	writeFile(t, filepath.Join(dir, "golden", "auth_redirect.golden"), `{"scenario":"auth_redirect"}`)
	out, _, err = execute(NewTestCommand(&RootOptions{Format: "text"}), dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ auth_redirect")
	assert.Contains(t, out, "trace does not match golden file")
	assert.Contains(t, out, "✓ deeplink_and_loops")
	assert.Contains(t, out, "Test Summary: 1 passed, 1 failed, 2 total")
}

func TestTestCommandFilter(t *testing.T) {
	dir := fixtureDir(t)

	out, _, err := execute(NewTestCommand(&RootOptions{Format: "text"}), dir, "--filter", "deep*")
	require.NoError(t, err)
	assert.Contains(t, out, "✓ deeplink_and_loops")
	assert.NotContains(t, out, "auth_redirect")
	assert.Contains(t, out, "Test Summary: 1 passed, 0 failed, 1 total")
	assert.Contains(t, out, "✓ All scenarios passed")
}

func TestTestCommandFailingScenario(t *testing.T) {
	dir := fixtureDir(t)
	writeFile(t, filepath.Join(dir, "failing.yaml"), failingScenario)
	writeFile(t, filepath.Join(dir, "broken.yaml"), "name: broken\nsteps: [\n")

	out, errOut, err := execute(NewTestCommand(&RootOptions{Format: "text", Verbose: true}), dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ failing")
	assert.Contains(t, out, "✗ broken.yaml")
	assert.Contains(t, out, "failed to load scenario")
	assert.Contains(t, out, "Test Summary: 2 passed, 2 failed, 4 total")
	// Verbose mode renders the failing trace.
	assert.Contains(t, errOut, "[1] navigate /item")
}

func TestTestCommandFailingScenarioJSON(t *testing.T) {
	dir := fixtureDir(t)
	writeFile(t, filepath.Join(dir, "failing.yaml"), failingScenario)

	out, _, err := execute(NewTestCommand(&RootOptions{Format: "json"}), dir)
	require.Error(t, err)

	var resp struct {
		Status string     `json:"status"`
		Data   TestResult `json:"data"`
		Error  *CLIError  `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.Equal(t, "E_TEST_FAILED", resp.Error.Code)
	assert.Equal(t, 1, resp.Data.Failed)
}

func TestUpdateGoldenFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "golden", "x.golden")
	require.NoError(t, updateGoldenFile(path, []byte("data")))

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "data", string(got))
}

func decodeTestResult(t *testing.T, out string) TestResult {
	t.Helper()
	var resp struct {
		Data TestResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	return resp.Data
}

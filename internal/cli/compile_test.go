package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/navstack/internal/compiler"
)

// compiledCatalog mirrors the canonical JSON written by compile.
type compiledCatalog struct {
	Locations []struct {
		Name     string   `json:"name"`
		Path     string   `json:"path"`
		Title    string   `json:"title"`
		Children []string `json:"children"`
		Initial  *int     `json:"initial"`
	} `json:"locations"`
	Guards []struct {
		Name     string   `json:"name"`
		Match    []string `json:"match"`
		Redirect string   `json:"redirect"`
		Block    string   `json:"block"`
	} `json:"guards"`
	DeepLinks []struct {
		Pattern   string   `json:"pattern"`
		Locations []string `json:"locations"`
		Defer     bool     `json:"defer"`
	} `json:"deeplinks"`
}

func TestCompileToStdout(t *testing.T) {
	dir := filepath.Join(fixtureDir(t), "catalog")

	out, _, err := execute(NewCompileCommand(&RootOptions{Format: "text"}), dir)
	require.NoError(t, err)

	data := strings.TrimSuffix(out, "\n")
	assert.True(t, strings.HasPrefix(data, `{"deeplinks":[`), "keys are sorted")
	assert.NotContains(t, data, "\n")

	var c compiledCatalog
	require.NoError(t, json.Unmarshal([]byte(data), &c))
	require.Len(t, c.Locations, 6)
	assert.Equal(t, "feed", c.Locations[0].Name)

	shell := c.Locations[5]
	assert.Equal(t, "shell", shell.Name)
	assert.Equal(t, []string{"feed", "profile"}, shell.Children)
	require.NotNil(t, shell.Initial)
	assert.Equal(t, 1, *shell.Initial)
	assert.Nil(t, c.Locations[0].Initial)

	require.Len(t, c.Guards, 4)
	assert.Equal(t, "auth", c.Guards[0].Name)
	assert.Equal(t, "login", c.Guards[0].Redirect)
	assert.Equal(t, "down for maintenance", c.Guards[1].Block)

	require.Len(t, c.DeepLinks, 3)
	assert.True(t, c.DeepLinks[2].Defer)
}

func TestCompileOutputToFile(t *testing.T) {
	dir := filepath.Join(fixtureDir(t), "catalog")
	outputFile := filepath.Join(t.TempDir(), "catalog.json")

	out, _, err := execute(NewCompileCommand(&RootOptions{Format: "text"}), dir, "-o", outputFile)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ Compiled 6 location(s), 4 guard(s), 3 deep link(s)")
	assert.Contains(t, out, "shell /shell → [feed, profile] (initial 1)")
	assert.Contains(t, out, "Wrote canonical catalog to "+outputFile)

	first, err := os.ReadFile(outputFile)
	require.NoError(t, err)

	// Compiling again yields the same bytes.
	_, _, err = execute(NewCompileCommand(&RootOptions{Format: "text"}), dir, "--output", outputFile)
	require.NoError(t, err)
	second, err := os.ReadFile(outputFile)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestCompileJSON(t *testing.T) {
	dir := filepath.Join(fixtureDir(t), "catalog")

	out, _, err := execute(NewCompileCommand(&RootOptions{Format: "json"}), dir)
	require.NoError(t, err)

	var resp struct {
		Status string           `json:"status"`
		Data   compiler.Catalog `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, []string{"feed", "home", "item", "login", "profile", "shell"}, resp.Data.Names())
}

func TestCompileInvalidCatalog(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "catalog.cue"), brokenRefsCatalog)
	outputFile := filepath.Join(t.TempDir(), "catalog.json")

	out, _, err := execute(NewCompileCommand(&RootOptions{Format: "text"}), dir, "-o", outputFile)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ Validation failed")
	assert.NoFileExists(t, outputFile)
}

func TestCompileMissingDirectory(t *testing.T) {
	out, _, err := execute(NewCompileCommand(&RootOptions{Format: "text"}), filepath.Join(t.TempDir(), "missing"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "Error [E005]")
}

func TestCompileWriteFailure(t *testing.T) {
	dir := filepath.Join(fixtureDir(t), "catalog")
	outputFile := filepath.Join(t.TempDir(), "missing", "catalog.json")

	out, _, err := execute(NewCompileCommand(&RootOptions{Format: "text"}), dir, "-o", outputFile)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "Error [E007]")
}

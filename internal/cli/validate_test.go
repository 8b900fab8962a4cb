package cli

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const brokenRefsCatalog = `package catalog

location: home: {}
location: shell: {children: ["home", "ghost"]}
`

func TestValidateValidCatalog(t *testing.T) {
	dir := fixtureDir(t)

	out, _, err := execute(NewValidateCommand(&RootOptions{Format: "text"}), filepath.Join(dir, "catalog"))
	require.NoError(t, err)
	assert.Contains(t, out, "✓ Catalog valid (6 locations, 4 guards, 3 deep links)")
}

func TestValidateValidCatalogJSON(t *testing.T) {
	dir := fixtureDir(t)

	out, _, err := execute(NewValidateCommand(&RootOptions{Format: "json"}), filepath.Join(dir, "catalog"))
	require.NoError(t, err)

	var resp struct {
		Status string           `json:"status"`
		Data   ValidationResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.True(t, resp.Data.Valid)
	assert.Equal(t, 1, resp.Data.Files)
	assert.Equal(t, 6, resp.Data.Locations)
}

func TestValidateUsesConfiguredCatalog(t *testing.T) {
	dir := fixtureDir(t)
	opts := &RootOptions{Format: "text"}
	cfg := opts.settings()
	cfg.Catalog = filepath.Join(dir, "catalog")
	opts.Config = &cfg

	out, _, err := execute(NewValidateCommand(opts))
	require.NoError(t, err)
	assert.Contains(t, out, "✓ Catalog valid")
}

func TestValidateLoadErrors(t *testing.T) {
	tests := []struct {
		name  string
		setup func(t *testing.T) string
		want  string
	}{
		{
			name:  "missing directory",
			setup: func(t *testing.T) string { return filepath.Join(t.TempDir(), "missing") },
			want:  "Error [E005]: catalog directory not found",
		},
		{
			name:  "empty directory",
			setup: func(t *testing.T) string { return t.TempDir() },
			want:  "Error [E003]: no CUE files found",
		},
		{
			name: "not a directory",
			setup: func(t *testing.T) string {
				file := filepath.Join(t.TempDir(), "x.cue")
				writeFile(t, file, "location: a: {}\n")
				return file
			},
			want: "Error [E005]: not a directory",
		},
		{
			name: "shape error",
			setup: func(t *testing.T) string {
				dir := t.TempDir()
				writeFile(t, filepath.Join(dir, "bad.cue"), "package catalog\n\nlocation: s: {children: []}\n")
				return dir
			},
			want: "location.s.children: children must not be empty",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, _, err := execute(NewValidateCommand(&RootOptions{Format: "text"}), tt.setup(t))
			require.Error(t, err)
			assert.Equal(t, ExitCommandError, GetExitCode(err))
			assert.Contains(t, out, tt.want)
		})
	}
}

func TestValidateLoadErrorJSON(t *testing.T) {
	out, _, err := execute(NewValidateCommand(&RootOptions{Format: "json"}), t.TempDir())
	require.Error(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeNoFiles, resp.Error.Code)
}

func TestValidateReferenceErrors(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "catalog.cue"), brokenRefsCatalog)

	out, _, err := execute(NewValidateCommand(&RootOptions{Format: "text"}), dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, err.Error(), "validation failed with 1 error(s)")
	assert.Contains(t, out, "✗ Validation failed")
	assert.Contains(t, out, "E102: location.shell.children[1]")
}

func TestValidateReferenceErrorsJSON(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "catalog.cue"), brokenRefsCatalog)

	out, _, err := execute(NewValidateCommand(&RootOptions{Format: "json"}), dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp struct {
		Status string           `json:"status"`
		Data   ValidationResult `json:"data"`
		Error  *CLIError        `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.False(t, resp.Data.Valid)
	require.Len(t, resp.Data.Errors, 1)
	assert.Equal(t, "E102", resp.Data.Errors[0].Code)
	assert.Equal(t, "E102", resp.Error.Code)
}

func TestValidateVerbose(t *testing.T) {
	dir := fixtureDir(t)

	_, errOut, err := execute(NewValidateCommand(&RootOptions{Format: "text", Verbose: true}), filepath.Join(dir, "catalog"))
	require.NoError(t, err)
	assert.Contains(t, errOut, "Found 1 CUE file(s)")
}

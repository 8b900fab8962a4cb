package cli

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatchCatalog(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "catalog.cue"), "location: home: {}\n")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	calls := make(chan struct{}, 16)
	done := make(chan error, 1)
	go func() {
		done <- watchCatalog(ctx, dir, 10*time.Millisecond, func() { calls <- struct{}{} })
	}()

	waitCall := func() {
		t.Helper()
		select {
		case <-calls:
		case <-time.After(5 * time.Second):
			t.Fatal("timed out waiting for validation")
		}
	}

	// Initial run.
	waitCall()

	// Non-CUE files are ignored.
	writeFile(t, filepath.Join(dir, "notes.txt"), "hello")
	writeFile(t, filepath.Join(dir, "catalog.cue"), "location: home: {}\nlocation: login: {}\n")
	waitCall()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not stop")
	}
}

func TestWatchCatalogMissingDir(t *testing.T) {
	err := watchCatalog(context.Background(), filepath.Join(t.TempDir(), "missing"), time.Millisecond, func() {
		t.Fatal("fn must not run")
	})
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestValidateWatchStopsOnCancel(t *testing.T) {
	dir := fixtureDir(t)
	ctx, cancel := context.WithCancel(context.Background())

	cmd := NewValidateCommand(&RootOptions{Format: "text"})
	cmd.SetContext(ctx)
	out := &syncBuffer{}
	cmd.SetOut(out)
	cmd.SetErr(out)
	cmd.SetArgs([]string{filepath.Join(dir, "catalog"), "--watch", "--debounce", "10ms"})

	done := make(chan error, 1)
	go func() { done <- cmd.Execute() }()

	require.Eventually(t, func() bool {
		return strings.Contains(out.String(), "✓ Catalog valid")
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("validate --watch did not stop")
	}
}

package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/roach88/navstack/internal/engine"
	"github.com/roach88/navstack/internal/ir"
)

// createTestStore creates a new store in a temp directory with a fixed clock.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	s.now = func() time.Time { return time.Unix(1700000000, 0) }
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestSession begins a session on s.
func createTestSession(t *testing.T, s *Store) *Session {
	t.Helper()
	sess, err := s.BeginSession(context.Background(), "test")
	if err != nil {
		t.Fatalf("BeginSession() failed: %v", err)
	}
	return sess
}

// createTestTransition creates a committed transition chained from before to after.
func createTestTransition(seq int64, op engine.Op, before, after string) engine.Transition {
	id, err := ir.TransitionID(seq, string(op), before, after)
	if err != nil {
		panic(err)
	}
	return engine.Transition{
		ID:          id,
		Seq:         seq,
		Op:          op,
		Target:      engine.TargetNearest,
		Input:       []string{"/home"},
		Outcome:     string(engine.OutcomeCommitted),
		Before:      before,
		After:       after,
		Version:     seq,
		RootPaths:   []string{"/home"},
		ActivePaths: []string{"/home"},
		Duration:    time.Millisecond,
	}
}

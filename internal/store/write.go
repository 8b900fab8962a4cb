package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/roach88/navstack/internal/engine"
)

// Session journals the requests of one engine run.
// It implements engine.Journal.
type Session struct {
	store *Store
	id    string
}

var _ engine.Journal = (*Session)(nil)

// BeginSession registers a new journal session and returns it.
// The session ID is a UUIDv7, so sessions sort by start time.
func (s *Store) BeginSession(ctx context.Context, label string) (*Session, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("session id: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO sessions (id, label, started_at) VALUES (?, ?, ?)
	`, id.String(), label, s.now().UnixNano())
	if err != nil {
		return nil, fmt.Errorf("begin session: %w", err)
	}
	return &Session{store: s, id: id.String()}, nil
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// Record writes a transition to the journal.
// Idempotent: recording the same transition twice is a no-op.
func (s *Session) Record(ctx context.Context, t engine.Transition) error {
	if t.ID == "" {
		return fmt.Errorf("record transition %d: missing id", t.Seq)
	}

	input, err := marshalStrings("input", t.Input)
	if err != nil {
		return err
	}
	redirects, err := marshalHops(t.Redirects)
	if err != nil {
		return err
	}
	rootPaths, err := marshalStrings("root_paths", t.RootPaths)
	if err != nil {
		return err
	}
	activePaths, err := marshalStrings("active_paths", t.ActivePaths)
	if err != nil {
		return err
	}

	_, err = s.store.db.ExecContext(ctx, `
		INSERT INTO transitions (
			session_id, id, seq, op, target, input, outcome, error_code, error,
			redirects, blocked_by, reason, before_fp, after_fp, version,
			root_paths, active_paths, duration_ns, recorded_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(session_id, id) DO NOTHING
	`,
		s.id, t.ID, t.Seq, string(t.Op), t.Target.String(), input, t.Outcome,
		string(t.ErrorCode), t.Error, redirects, t.BlockedBy, t.Reason,
		t.Before, t.After, t.Version, rootPaths, activePaths,
		t.Duration.Nanoseconds(), s.store.now().UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("record transition %d: %w", t.Seq, err)
	}
	return nil
}

package store

import (
	"context"
	"fmt"
)

// SessionState is the result of walking a session's journal in seq order.
type SessionState struct {
	Session SessionInfo

	// Outcomes counts transitions per outcome.
	Outcomes map[string]int

	// Version, RootPaths and ActivePaths describe the last journaled state.
	Version     int64
	RootPaths   []string
	ActivePaths []string

	// Breaks lists places where a transition did not start from the state
	// the previous one ended in. A healthy session has none; a break means
	// journal writes were lost.
	Breaks []Break
}

// Break is a discontinuity between two consecutive transitions.
type Break struct {
	Seq  int64
	Want string
	Got  string
}

// Consistent reports whether the session replays without breaks.
func (st SessionState) Consistent() bool {
	return len(st.Breaks) == 0
}

// ReplaySession walks a session's transitions in order and checks that each
// one starts from the fingerprint the previous one ended in.
func (s *Store) ReplaySession(ctx context.Context, sessionID string) (SessionState, error) {
	info, err := s.session(ctx, sessionID)
	if err != nil {
		return SessionState{}, err
	}

	entries, err := s.ReadTransitions(ctx, sessionID, Filter{})
	if err != nil {
		return SessionState{}, fmt.Errorf("replay session: %w", err)
	}

	st := SessionState{Session: info, Outcomes: map[string]int{}}
	var prev string
	for i, e := range entries {
		st.Outcomes[e.Outcome]++
		if i > 0 && e.Before != prev {
			st.Breaks = append(st.Breaks, Break{Seq: e.Seq, Want: prev, Got: e.Before})
		}
		prev = e.After
		st.Version = e.Version
		st.RootPaths = e.RootPaths
		st.ActivePaths = e.ActivePaths
	}
	return st, nil
}

// session looks up one session summary by ID.
func (s *Store) session(ctx context.Context, id string) (SessionInfo, error) {
	sessions, err := s.ListSessions(ctx)
	if err != nil {
		return SessionInfo{}, err
	}
	for _, info := range sessions {
		if info.ID == id {
			return info, nil
		}
	}
	return SessionInfo{}, fmt.Errorf("session %s: %w", id, ErrNotFound)
}

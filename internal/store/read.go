package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/roach88/navstack/internal/engine"
)

// ErrNotFound is returned when a session or transition does not exist.
var ErrNotFound = errors.New("not found")

// SessionInfo summarises one journal session.
type SessionInfo struct {
	ID          string
	Label       string
	StartedAt   time.Time
	Transitions int
	LastSeq     int64
}

// Entry is a journaled transition with its storage metadata.
type Entry struct {
	SessionID  string
	RecordedAt time.Time
	engine.Transition
}

// Filter narrows ReadTransitions. Zero values match everything.
type Filter struct {
	Op      engine.Op
	Outcome string

	// AfterSeq skips transitions with seq <= AfterSeq.
	AfterSeq int64

	// Limit caps the number of rows; 0 means no limit.
	Limit int
}

// ListSessions returns all sessions ordered by ID. Session IDs are UUIDv7,
// so this is start order.
//
// Returns an empty slice (not nil) if the journal is empty.
func (s *Store) ListSessions(ctx context.Context) ([]SessionInfo, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT s.id, s.label, s.started_at, COUNT(t.id), COALESCE(MAX(t.seq), 0)
		FROM sessions s
		LEFT JOIN transitions t ON t.session_id = s.id
		GROUP BY s.id
		ORDER BY s.id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	sessions := []SessionInfo{}
	for rows.Next() {
		var info SessionInfo
		var started int64
		if err := rows.Scan(&info.ID, &info.Label, &started, &info.Transitions, &info.LastSeq); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		info.StartedAt = time.Unix(0, started)
		sessions = append(sessions, info)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}
	return sessions, nil
}

// LatestSession returns the most recently started session.
func (s *Store) LatestSession(ctx context.Context) (SessionInfo, error) {
	sessions, err := s.ListSessions(ctx)
	if err != nil {
		return SessionInfo{}, err
	}
	if len(sessions) == 0 {
		return SessionInfo{}, fmt.Errorf("latest session: %w", ErrNotFound)
	}
	return sessions[len(sessions)-1], nil
}

// ReadTransitions returns the transitions of a session ordered by seq.
//
// Returns an empty slice (not nil) if nothing matches.
func (s *Store) ReadTransitions(ctx context.Context, sessionID string, f Filter) ([]Entry, error) {
	var (
		where = []string{"session_id = ?"}
		args  = []any{sessionID}
	)
	if f.Op != "" {
		where = append(where, "op = ?")
		args = append(args, string(f.Op))
	}
	if f.Outcome != "" {
		where = append(where, "outcome = ?")
		args = append(args, f.Outcome)
	}
	if f.AfterSeq > 0 {
		where = append(where, "seq > ?")
		args = append(args, f.AfterSeq)
	}

	query := selectTransitions + " WHERE " + strings.Join(where, " AND ") +
		" ORDER BY seq ASC, id COLLATE BINARY ASC"
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query transitions: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transitions: %w", err)
	}
	return entries, nil
}

// ReadTransition returns one transition by ID.
func (s *Store) ReadTransition(ctx context.Context, sessionID, id string) (Entry, error) {
	row := s.db.QueryRowContext(ctx, selectTransitions+" WHERE session_id = ? AND id = ?", sessionID, id)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, fmt.Errorf("transition %s: %w", id, ErrNotFound)
	}
	return e, err
}

const selectTransitions = `
	SELECT session_id, id, seq, op, target, input, outcome, error_code, error,
		redirects, blocked_by, reason, before_fp, after_fp, version,
		root_paths, active_paths, duration_ns, recorded_at
	FROM transitions`

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (Entry, error) {
	var (
		e                                   Entry
		op, target, errCode                 string
		input, redirects, rootPaths, active string
		durationNS, recordedAt              int64
	)
	err := row.Scan(
		&e.SessionID, &e.ID, &e.Seq, &op, &target, &input, &e.Outcome,
		&errCode, &e.Error, &redirects, &e.BlockedBy, &e.Reason,
		&e.Before, &e.After, &e.Version, &rootPaths, &active,
		&durationNS, &recordedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, err
	}
	if err != nil {
		return Entry{}, fmt.Errorf("scan transition: %w", err)
	}

	e.Op = engine.Op(op)
	e.ErrorCode = engine.ErrorCode(errCode)
	e.Duration = time.Duration(durationNS)
	e.RecordedAt = time.Unix(0, recordedAt)

	if e.Target, err = parseTarget(target); err != nil {
		return Entry{}, fmt.Errorf("transition %s: %w", e.ID, err)
	}
	if e.Input, err = unmarshalStrings("input", input); err != nil {
		return Entry{}, err
	}
	if e.Redirects, err = unmarshalHops(redirects); err != nil {
		return Entry{}, err
	}
	if e.RootPaths, err = unmarshalStrings("root_paths", rootPaths); err != nil {
		return Entry{}, err
	}
	if e.ActivePaths, err = unmarshalStrings("active_paths", active); err != nil {
		return Entry{}, err
	}
	return e, nil
}

// Package store provides the SQLite navigation journal.
//
// The journal is append-only and holds:
//   - Sessions: one per engine run (BeginSession)
//   - Transitions: one row per processed request, written by Session.Record
//
// A Session implements engine.Journal, so an engine wired with
// engine.WithJournal(session) journals every request it processes:
// committed, blocked, deferred and failed alike.
//
// # Ordering
//
// All queries order by seq, the engine's request sequence, and never by
// recorded_at. Two engines journaling into the same file write to different
// sessions.
//
// # Idempotency
//
// Transitions are keyed by (session_id, id) where id is the
// content-addressed transition identity (ir.TransitionID). Re-recording a
// transition is a no-op.
//
// # Database Configuration
//
//   - WAL mode: concurrent reads during writes
//   - synchronous=NORMAL
//   - busy_timeout=5000
//   - foreign_keys=ON: transitions must belong to a session
//
// List columns (input, paths, redirects) are stored as canonical JSON
// produced by ir.MarshalCanonical.
package store

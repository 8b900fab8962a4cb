package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/roach88/navstack/internal/ir"
)

// Journal records every processed request.
//
// Record is called while the engine still holds the writer turn, so
// transitions arrive in processing order with consecutive Seq values.
// Requests rejected before taking the turn are not recorded. A failing journal never fails the
// request: the error is logged and processing continues.
type Journal interface {
	Record(ctx context.Context, t Transition) error
}

// Transition is the journal record of one request.
type Transition struct {
	// ID is the content-addressed identity of the transition.
	ID string

	// Seq is the request sequence number, in processing order.
	Seq int64

	Op     Op
	Target Target

	// Input holds the requested paths, the child index, or the URI.
	Input []string

	// Outcome is "committed", "blocked", "deferred" or "error".
	Outcome string

	ErrorCode ErrorCode
	Error     string

	Redirects []Hop
	BlockedBy string
	Reason    string

	// Before and After are snapshot fingerprints.
	Before string
	After  string

	// Version is the snapshot version after the request.
	Version int64

	// RootPaths and ActivePaths describe the snapshot after the request.
	RootPaths   []string
	ActivePaths []string

	Duration time.Duration
}

// outcomeError is the journal and metrics outcome for failed requests.
const outcomeError = "error"

// newTransition builds the journal record for a finished request.
func newTransition(seq int64, req request, before ir.Snapshot, res Result, err error, elapsed time.Duration) Transition {
	after := before
	if err == nil {
		after = res.Snapshot
	}

	t := Transition{
		Seq:         seq,
		Op:          req.op,
		Target:      req.target,
		Input:       req.input,
		Outcome:     string(res.Outcome),
		Redirects:   res.Redirects,
		BlockedBy:   res.BlockedBy,
		Reason:      res.Reason,
		Before:      before.Fingerprint(),
		After:       after.Fingerprint(),
		Version:     after.Version,
		RootPaths:   after.RootPaths(),
		ActivePaths: after.ActivePaths(),
		Duration:    elapsed,
	}
	if err != nil {
		t.Outcome = outcomeError
		t.ErrorCode = CodeOf(err)
		t.Error = err.Error()
	}

	id, idErr := ir.TransitionID(seq, string(req.op), t.Before, t.After)
	if idErr != nil {
		slog.Error("transition id failed", "seq", seq, "error", idErr)
	}
	t.ID = id
	return t
}

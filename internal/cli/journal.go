package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/roach88/navstack/internal/store"
)

// openJournal opens an existing journal for reading. Unlike store.Open it
// refuses to create a new database file.
func openJournal(path string) (*store.Store, error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, NewExitError(ExitCommandError, fmt.Sprintf("journal not found: %s", path))
		}
		return nil, WrapExitError(ExitCommandError, "failed to access journal", err)
	}
	st, err := store.Open(path)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open journal", err)
	}
	return st, nil
}

// selectSessions returns the session with id, or every session if id is
// empty.
func selectSessions(ctx context.Context, st *store.Store, id string) ([]store.SessionInfo, error) {
	sessions, err := st.ListSessions(ctx)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to list sessions", err)
	}
	if id == "" {
		return sessions, nil
	}
	for _, s := range sessions {
		if s.ID == id {
			return []store.SessionInfo{s}, nil
		}
	}
	return nil, WrapExitError(ExitCommandError, fmt.Sprintf("session %s", id), store.ErrNotFound)
}

// isNotFound reports whether err is a missing session or transition.
func isNotFound(err error) bool {
	return errors.Is(err, store.ErrNotFound)
}

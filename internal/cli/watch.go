package cli

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// watchCatalog calls fn once, then again after every burst of .cue file
// changes in dir, until ctx is done. A burst ends after debounce without
// further events.
func watchCatalog(ctx context.Context, dir string, debounce time.Duration, fn func()) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to start watcher", err)
	}
	defer w.Close()

	if err := w.Add(dir); err != nil {
		return WrapExitError(ExitCommandError, fmt.Sprintf("failed to watch %s", dir), err)
	}

	fn()

	var (
		timer *time.Timer
		fire  <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Ext(event.Name) != ".cue" {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
				!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
				continue
			}
			slog.Debug("catalog changed", "file", event.Name, "op", event.Op.String())
			if timer == nil {
				timer = time.NewTimer(debounce)
			} else {
				timer.Reset(debounce)
			}
			fire = timer.C

		case <-fire:
			fire = nil
			fn()

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			slog.Warn("catalog watch error", "dir", dir, "error", err)
		}
	}
}

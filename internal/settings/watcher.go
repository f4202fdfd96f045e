package settings

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// ReloadCallback is called after an external edit changed the settings.
type ReloadCallback func(s Settings)

// Watch observes the settings file for external edits and reloads the
// store when one lands, until ctx is cancelled. Only the state directory
// is watched; vault content is never watched, its discovery stays lazy.
//
// Events are debounced because editors and atomic writers emit bursts
// (create temp, write, rename).
func Watch(ctx context.Context, store *Store, logger *slog.Logger, cb ReloadCallback) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	dir := filepath.Dir(store.Path())
	base := filepath.Base(store.Path())
	if err := w.Add(dir); err != nil {
		return err
	}

	logger.Info("settings watcher: started", slog.String("file", store.Path()))

	var reloadTimer *time.Timer
	var reloadCh <-chan time.Time

	scheduleReload := func() {
		if reloadTimer == nil {
			reloadTimer = time.NewTimer(200 * time.Millisecond)
			reloadCh = reloadTimer.C
		} else {
			reloadTimer.Reset(200 * time.Millisecond)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if reloadTimer != nil {
				reloadTimer.Stop()
			}
			logger.Info("settings watcher: stopped")
			return nil

		case <-reloadCh:
			next, changed, reloadErr := store.Reload()
			if reloadErr != nil {
				logger.Warn("settings watcher: reload failed", slog.String("error", reloadErr.Error()))
				continue
			}
			if !changed {
				continue
			}
			logger.Info("settings watcher: reloaded after external edit")
			if cb != nil {
				cb(next)
			}

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Base(ev.Name) != base {
				continue
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) != 0 {
				scheduleReload()
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("settings watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

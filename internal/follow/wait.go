package follow

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// waitForFile blocks until path exists, ctx is done or stop is closed.
// Directory create events wake it early; the poll interval is the fallback
// when the directory cannot be watched (it may not exist yet either).
// A file that appeared before the stop or cancel is still reported as
// found, so its contents get read.
func waitForFile(ctx context.Context, path string, poll time.Duration, stop <-chan struct{}, logger *slog.Logger) error {
	if exists(path) {
		return nil
	}

	var events chan fsnotify.Event
	var errs chan error

	watcher, err := fsnotify.NewWatcher()
	if err == nil {
		defer watcher.Close()
		if err := watcher.Add(filepath.Dir(path)); err != nil {
			logger.Debug("watching log directory failed, polling only", "path", path, "error", err)
		} else {
			events = watcher.Events
			errs = watcher.Errors
		}
	} else {
		logger.Debug("file watcher unavailable, polling only", "error", err)
	}

	// The file may have appeared while the watch was being set up.
	if exists(path) {
		return nil
	}

	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			if exists(path) {
				return nil
			}
			return ctx.Err()
		case <-stop:
			if exists(path) {
				return nil
			}
			return errStopped
		case <-ticker.C:
			if exists(path) {
				return nil
			}
		case event, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) != 0 &&
				filepath.Clean(event.Name) == filepath.Clean(path) && exists(path) {
				return nil
			}
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			logger.Debug("log directory watcher error", "error", err)
		}
	}
}

func exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

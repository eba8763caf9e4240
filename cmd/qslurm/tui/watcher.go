package tui

import (
	"path/filepath"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/fsnotify/fsnotify"

	"github.com/tuanbt/qslurm/internal/jobs"
)

// loadJobs returns a tea.Cmd that reads the job records.
func loadJobs(reg *jobs.Registry) tea.Cmd {
	return func() tea.Msg {
		records, err := reg.LoadAll()
		return JobsUpdatedMsg{Jobs: records, Err: err}
	}
}

// watchJobsFile returns a tea.Cmd that waits for the job records file to
// change and then reloads it. The directory is watched because the file is
// replaced by rename on every save.
// On error, it emits a WatcherErrorMsg. It returns nil once done is closed.
func watchJobsFile(reg *jobs.Registry, done <-chan struct{}) tea.Cmd {
	return func() tea.Msg {
		watcher, err := fsnotify.NewWatcher()
		if err != nil {
			return WatcherErrorMsg{Error: err}
		}
		defer watcher.Close()

		path := filepath.Clean(reg.Path())
		if err := watcher.Add(filepath.Dir(path)); err != nil {
			return WatcherErrorMsg{Error: err}
		}

		for {
			select {
			case <-done:
				return nil
			case event, ok := <-watcher.Events:
				if !ok {
					return WatcherErrorMsg{Error: nil}
				}
				if filepath.Clean(event.Name) != path {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
					// Small debounce to avoid rapid-fire events
					time.Sleep(10 * time.Millisecond)
					return loadJobs(reg)()
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return WatcherErrorMsg{Error: nil}
				}
				return WatcherErrorMsg{Error: err}
			}
		}
	}
}

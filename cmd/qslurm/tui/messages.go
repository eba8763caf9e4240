// Package tui provides the terminal user interface for qslurm.
package tui

import (
	"github.com/tuanbt/qslurm/internal/control"
	"github.com/tuanbt/qslurm/internal/follow"
	"github.com/tuanbt/qslurm/internal/jobs"
	"github.com/tuanbt/qslurm/internal/monitor"
	"github.com/tuanbt/qslurm/internal/scheduler"
)

// LineMsg carries one classified log line from the session.
type LineMsg struct {
	Line      follow.Line
	Directive control.Directive
}

// StatusMsg carries the latest squeue row for the monitored job.
type StatusMsg struct {
	Snapshot *scheduler.Snapshot
}

// StateMsg reports a session state change.
type StateMsg struct {
	State monitor.State
}

// FinishedMsg is the session's last event. The program quits on it.
type FinishedMsg struct {
	Finished monitor.Finished
}

// refreshMsg drives the throttled redraw.
type refreshMsg struct{}

// QueueMsg carries a fresh squeue listing for the queue view.
type QueueMsg struct {
	Rows []scheduler.Snapshot
	Err  error
}

// queueTickMsg schedules the next squeue listing.
type queueTickMsg struct{}

// JobsUpdatedMsg signals that the job records file changed.
type JobsUpdatedMsg struct {
	Jobs []jobs.Job
	Err  error
}

// WatcherErrorMsg signals that the records file watcher failed. The queue
// view keeps working without it.
type WatcherErrorMsg struct {
	Error error
}

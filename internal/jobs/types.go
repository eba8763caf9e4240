// Package jobs records the batch jobs submitted or monitored through qslurm.
package jobs

import (
	"time"
)

// Status is the last state qslurm observed for a job.
type Status string

const (
	// StatusSubmitted indicates sbatch accepted the job.
	StatusSubmitted Status = "submitted"

	// StatusRunning indicates a monitor session saw the job's log.
	StatusRunning Status = "running"

	// StatusFinished indicates the job left the queue while monitored.
	StatusFinished Status = "finished"

	// StatusCancelled indicates the job was cancelled through qslurm.
	StatusCancelled Status = "cancelled"
)

// IsTerminal returns true if the status is a final state.
func (s Status) IsTerminal() bool {
	return s == StatusFinished || s == StatusCancelled
}

// Job is one recorded batch job.
type Job struct {
	// ID is the scheduler's job id.
	ID string `json:"id"`

	// Script is the sbatch script the job was submitted from, if known.
	Script string `json:"script,omitempty"`

	// LogPath is the job's stdout log.
	LogPath string `json:"log_path"`

	// ErrPath is the job's stderr log.
	ErrPath string `json:"err_path,omitempty"`

	Status Status `json:"status"`

	SubmittedAt time.Time `json:"submitted_at"`
	UpdatedAt   time.Time `json:"updated_at,omitempty"`
	FinishedAt  time.Time `json:"finished_at,omitempty"`
}

// NewJob creates a submitted job record.
func NewJob(id, script, logPath, errPath string) *Job {
	now := time.Now()
	return &Job{
		ID:          id,
		Script:      script,
		LogPath:     logPath,
		ErrPath:     errPath,
		Status:      StatusSubmitted,
		SubmittedAt: now,
		UpdatedAt:   now,
	}
}

// SetStatus moves the job to status. Terminal statuses stamp FinishedAt.
func (j *Job) SetStatus(status Status) {
	j.Status = status
	j.UpdatedAt = time.Now()
	if status.IsTerminal() && j.FinishedAt.IsZero() {
		j.FinishedAt = j.UpdatedAt
	}
}

// Duration returns how long the job has been/was tracked.
func (j *Job) Duration() time.Duration {
	if j.SubmittedAt.IsZero() {
		return 0
	}
	if !j.FinishedAt.IsZero() {
		return j.FinishedAt.Sub(j.SubmittedAt)
	}
	return time.Since(j.SubmittedAt)
}

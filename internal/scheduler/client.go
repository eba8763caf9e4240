// Package scheduler wraps the Slurm command-line tools qslurm talks to.
package scheduler

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// ErrJobNotFound is returned when squeue has no row for a job.
var ErrJobNotFound = errors.New("job not found in queue")

// JobID names one scheduled job.
type JobID string

// Snapshot is one squeue row.
type Snapshot struct {
	JobID    JobID
	Queue    string
	Name     string
	User     string
	State    string
	Elapsed  string
	Nodes    string
	NodeList string
}

// StatusClient answers live status queries for a single job.
type StatusClient interface {
	Status(ctx context.Context, id JobID) (*Snapshot, error)
}

// Client provides the scheduler operations qslurm uses.
type Client interface {
	StatusClient
	Queue(ctx context.Context) ([]Snapshot, error)
	Submit(ctx context.Context, script string) (JobID, error)
	Cancel(ctx context.Context, id JobID) error
	IsInstalled() bool
}

// squeueFormat lists the columns of Snapshot in order, pipe separated.
const squeueFormat = "%i|%P|%j|%u|%T|%M|%D|%R"

// OSClient implements Client by running the Slurm binaries.
type OSClient struct {
	squeue  string
	sbatch  string
	scancel string
	workDir string
}

// NewClient returns a new OSClient.
func NewClient(squeue, sbatch, scancel, workDir string) *OSClient {
	return &OSClient{
		squeue:  squeue,
		sbatch:  sbatch,
		scancel: scancel,
		workDir: workDir,
	}
}

// Run executes a scheduler command.
func (c *OSClient) Run(ctx context.Context, name string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = c.workDir
	var stderr bytes.Buffer
	var stdout bytes.Buffer
	cmd.Stderr = &stderr
	cmd.Stdout = &stdout

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("%s failed: %w (stderr: %s)", name, err, strings.TrimSpace(stderr.String()))
	}
	return strings.TrimSpace(stdout.String()), nil
}

// IsInstalled checks if squeue is available.
func (c *OSClient) IsInstalled() bool {
	_, err := exec.LookPath(c.squeue)
	return err == nil
}

// Status returns the live squeue row for one job.
// squeue exits non-zero for job ids it no longer knows; callers treat that
// the same as an empty result.
func (c *OSClient) Status(ctx context.Context, id JobID) (*Snapshot, error) {
	out, err := c.Run(ctx, c.squeue, "--noheader", "--jobs="+string(id), "--format="+squeueFormat)
	if err != nil {
		return nil, err
	}
	rows := ParseRows(out)
	for i := range rows {
		if rows[i].JobID == id {
			return &rows[i], nil
		}
	}
	return nil, ErrJobNotFound
}

// Queue returns every row squeue currently shows.
func (c *OSClient) Queue(ctx context.Context) ([]Snapshot, error) {
	out, err := c.Run(ctx, c.squeue, "--noheader", "--format="+squeueFormat)
	if err != nil {
		return nil, err
	}
	return ParseRows(out), nil
}

// Submit runs sbatch on a script and returns the new job id.
func (c *OSClient) Submit(ctx context.Context, script string) (JobID, error) {
	out, err := c.Run(ctx, c.sbatch, script)
	if err != nil {
		return "", err
	}
	return ParseSubmitted(out)
}

// Cancel runs scancel for a job.
func (c *OSClient) Cancel(ctx context.Context, id JobID) error {
	_, err := c.Run(ctx, c.scancel, string(id))
	return err
}

// ParseRows parses squeue output produced with squeueFormat. Blank and
// malformed lines are skipped.
func ParseRows(out string) []Snapshot {
	var rows []Snapshot
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		fields := strings.SplitN(line, "|", 8)
		if len(fields) < 8 {
			continue
		}
		for i := range fields {
			fields[i] = strings.TrimSpace(fields[i])
		}
		rows = append(rows, Snapshot{
			JobID:    JobID(fields[0]),
			Queue:    fields[1],
			Name:     fields[2],
			User:     fields[3],
			State:    fields[4],
			Elapsed:  fields[5],
			Nodes:    fields[6],
			NodeList: fields[7],
		})
	}
	return rows
}

// ParseSubmitted extracts the job id from sbatch output
// ("Submitted batch job 12345"); the id is the last field.
func ParseSubmitted(out string) (JobID, error) {
	fields := strings.Fields(out)
	if len(fields) == 0 {
		return "", fmt.Errorf("empty sbatch output")
	}
	id := strings.TrimSpace(fields[len(fields)-1])
	for _, r := range id {
		if (r < '0' || r > '9') && r != '_' {
			return "", fmt.Errorf("unexpected sbatch output: %q", out)
		}
	}
	return JobID(id), nil
}

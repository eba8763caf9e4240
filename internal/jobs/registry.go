package jobs

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

var (
	// ErrNoJobs is returned by Last when nothing has been recorded.
	ErrNoJobs = errors.New("no jobs recorded")

	// ErrNotFound is returned when a job id has no record.
	ErrNotFound = errors.New("job not recorded")
)

// Registry stores job records in a JSON file.
type Registry struct {
	filePath string
	mu       sync.RWMutex
}

// NewRegistry creates a registry backed by filePath.
func NewRegistry(filePath string) *Registry {
	return &Registry{
		filePath: filePath,
	}
}

// Path returns the backing file.
func (r *Registry) Path() string {
	return r.filePath
}

// LoadAll reads every record, oldest first. A missing file is empty.
func (r *Registry) LoadAll() ([]Job, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.loadAllLocked()
}

// Add records a new job, replacing any record with the same id.
func (r *Registry) Add(job *Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	jobs, err := r.loadAllLocked()
	if err != nil {
		return err
	}

	kept := jobs[:0]
	for _, existing := range jobs {
		if existing.ID != job.ID {
			kept = append(kept, existing)
		}
	}
	kept = append(kept, *job)
	return r.saveAllLocked(kept)
}

// Get returns the record for id.
func (r *Registry) Get(id string) (*Job, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	jobs, err := r.loadAllLocked()
	if err != nil {
		return nil, err
	}

	for i := range jobs {
		if jobs[i].ID == id {
			result := jobs[i]
			return &result, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
}

// Last returns the most recently added record.
func (r *Registry) Last() (*Job, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	jobs, err := r.loadAllLocked()
	if err != nil {
		return nil, err
	}
	if len(jobs) == 0 {
		return nil, ErrNoJobs
	}
	result := jobs[len(jobs)-1]
	return &result, nil
}

// UpdateStatus changes the status of a recorded job.
func (r *Registry) UpdateStatus(id string, status Status) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	jobs, err := r.loadAllLocked()
	if err != nil {
		return err
	}

	for i := range jobs {
		if jobs[i].ID == id {
			jobs[i].SetStatus(status)
			return r.saveAllLocked(jobs)
		}
	}
	return fmt.Errorf("%w: %s", ErrNotFound, id)
}

// Cleanup removes finished and cancelled records and returns how many were
// removed.
func (r *Registry) Cleanup() (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	jobs, err := r.loadAllLocked()
	if err != nil {
		return 0, err
	}

	kept := make([]Job, 0, len(jobs))
	for _, j := range jobs {
		if !j.Status.IsTerminal() {
			kept = append(kept, j)
		}
	}

	removed := len(jobs) - len(kept)
	if removed > 0 {
		if err := r.saveAllLocked(kept); err != nil {
			return 0, err
		}
	}
	return removed, nil
}

// CountByStatus returns the count of records in each status.
func (r *Registry) CountByStatus() (map[Status]int, error) {
	jobs, err := r.LoadAll()
	if err != nil {
		return nil, err
	}

	counts := make(map[Status]int)
	for _, j := range jobs {
		counts[j.Status]++
	}
	return counts, nil
}

// saveAllLocked writes records via a temp file and rename (caller must hold lock).
func (r *Registry) saveAllLocked(jobs []Job) error {
	if dir := filepath.Dir(r.filePath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create state directory: %w", err)
		}
	}

	data, err := json.MarshalIndent(jobs, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal jobs: %w", err)
	}

	tmpPath := r.filePath + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := os.Rename(tmpPath, r.filePath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}

// loadAllLocked reads records without acquiring the lock (caller must hold lock).
func (r *Registry) loadAllLocked() ([]Job, error) {
	data, err := os.ReadFile(r.filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return []Job{}, nil
		}
		return nil, fmt.Errorf("failed to read jobs file: %w", err)
	}

	var jobs []Job
	if err := json.Unmarshal(data, &jobs); err != nil {
		return nil, fmt.Errorf("failed to parse jobs file: %w", err)
	}
	return jobs, nil
}

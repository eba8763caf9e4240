package monitor

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tuanbt/qslurm/internal/scheduler"
)

// Poller queries a job's status on a fixed interval and reports completion
// once the job has been absent from the queue for threshold queries in a row.
// Query failures count as absent.
type Poller struct {
	client    scheduler.StatusClient
	id        scheduler.JobID
	interval  time.Duration
	threshold int
	track     bool
	logger    *slog.Logger

	latest    atomic.Pointer[scheduler.Snapshot]
	updates   chan struct{}
	completed chan struct{}
	once      sync.Once
	queries   atomic.Int64
}

// NewPoller creates a poller. With track false it only detects completion
// and never publishes snapshots.
func NewPoller(client scheduler.StatusClient, id scheduler.JobID, interval time.Duration, threshold int, track bool, logger *slog.Logger) *Poller {
	if threshold < 1 {
		threshold = 1
	}
	return &Poller{
		client:    client,
		id:        id,
		interval:  interval,
		threshold: threshold,
		track:     track,
		logger:    logger,
		updates:   make(chan struct{}, 1),
		completed: make(chan struct{}),
	}
}

// Completed is closed once the job is considered finished.
func (p *Poller) Completed() <-chan struct{} {
	return p.completed
}

// Updates receives a signal whenever a new snapshot is stored. Signals
// coalesce; read Latest for the value.
func (p *Poller) Updates() <-chan struct{} {
	return p.updates
}

// Latest returns the most recent snapshot, or nil.
func (p *Poller) Latest() *scheduler.Snapshot {
	return p.latest.Load()
}

// Queries returns how many status queries have been made.
func (p *Poller) Queries() int64 {
	return p.queries.Load()
}

// Run polls until completion or until ctx is done. The first query is
// immediate.
func (p *Poller) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	absent := 0
	for {
		snap, err := p.client.Status(ctx, p.id)
		p.queries.Add(1)
		if ctx.Err() != nil {
			return nil
		}

		if err != nil || snap == nil {
			absent++
			if err != nil && !errors.Is(err, scheduler.ErrJobNotFound) {
				p.logger.Warn("status query failed, treating job as absent", "job_id", p.id, "error", err)
			}
			if absent >= p.threshold {
				p.logger.Info("job no longer in queue", "job_id", p.id, "absent_queries", absent)
				p.complete()
				return nil
			}
		} else {
			absent = 0
			p.store(snap)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func (p *Poller) store(snap *scheduler.Snapshot) {
	if !p.track {
		return
	}
	p.latest.Store(snap)
	select {
	case p.updates <- struct{}{}:
	default:
	}
}

func (p *Poller) complete() {
	p.once.Do(func() { close(p.completed) })
}

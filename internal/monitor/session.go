package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/tuanbt/qslurm/internal/control"
	"github.com/tuanbt/qslurm/internal/follow"
	"github.com/tuanbt/qslurm/internal/scheduler"
)

// Sink receives everything a session produces. All calls come from the
// goroutine running Session.Run.
type Sink interface {
	State(state State)
	Line(line follow.Line, directive control.Directive)
	Status(snap *scheduler.Snapshot)
	Finished(fin Finished)
}

// Finished is the last event of a session.
type Finished struct {
	SessionID string
	JobID     scheduler.JobID
	LogPath   string
	Reason    Reason
	Lines     int
	Err       error
}

// Options configures a Session.
type Options struct {
	JobID           scheduler.JobID
	LogPath         string
	ShowStatus      bool
	StatusInterval  time.Duration
	AbsentThreshold int
	PullWait        time.Duration
}

// Session coordinates one monitoring run. It owns the session state and is
// the only writer of it.
type Session struct {
	id     string
	opts   Options
	source follow.Source
	poller *Poller
	sink   Sink
	logger *slog.Logger

	state atomic.Int32
	lines int
}

// NewSession creates a session. status may be nil, in which case the job is
// never considered complete and the session ends only when interrupted or
// when the source ends.
func NewSession(opts Options, source follow.Source, status scheduler.StatusClient, sink Sink, logger *slog.Logger) *Session {
	id := uuid.NewString()
	logger = logger.With("session_id", id, "job_id", string(opts.JobID))

	s := &Session{
		id:     id,
		opts:   opts,
		source: source,
		sink:   sink,
		logger: logger,
	}
	if status != nil {
		s.poller = NewPoller(status, opts.JobID, opts.StatusInterval, opts.AbsentThreshold, opts.ShowStatus, logger)
	}
	return s
}

// ID returns the session's unique id.
func (s *Session) ID() string {
	return s.id
}

// State returns the current state. Safe to call from any goroutine.
func (s *Session) State() State {
	return State(s.state.Load())
}

// advance moves to next if it lies ahead of the current state.
func (s *Session) advance(next State) bool {
	cur := s.State()
	if next <= cur {
		s.logger.Debug("ignoring backward state change", "from", cur.String(), "to", next.String())
		return false
	}
	s.state.Store(int32(next))
	s.logger.Info("session state changed", "from", cur.String(), "to", next.String())
	s.sink.State(next)
	return true
}

// Run follows the job until it completes, the source ends or ctx is done,
// then drains every remaining line and returns once all background work has
// stopped. Cancelling ctx starts draining; it does not abandon lines.
func (s *Session) Run(ctx context.Context) (Finished, error) {
	if s.State() != WaitingForLog {
		return Finished{}, fmt.Errorf("session already ran")
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	defer cancel()

	g, gctx := errgroup.WithContext(runCtx)
	if err := s.source.Start(gctx); err != nil {
		return Finished{}, fmt.Errorf("failed to start log follower: %w", err)
	}

	pollCtx, stopPolling := context.WithCancel(gctx)
	defer stopPolling()
	if s.poller != nil {
		g.Go(func() error { return s.poller.Run(pollCtx) })
	}
	g.Go(func() error {
		<-s.source.Done()
		return nil
	})

	s.logger.Info("monitoring job", "log_path", s.opts.LogPath, "show_status", s.opts.ShowStatus)
	s.sink.State(WaitingForLog)

	mux := NewMux(s.source, s.opts.PullWait)

	reason, ready := s.waitForLog(ctx)
	if ready {
		s.advance(Streaming)
		reason = s.stream(ctx, mux)
	}

	s.advance(Draining)
	stopPolling()
	s.source.Stop()
	s.drain(mux)

	err := g.Wait()
	s.advance(Terminated)

	fin := Finished{
		SessionID: s.id,
		JobID:     s.opts.JobID,
		LogPath:   s.opts.LogPath,
		Reason:    reason,
		Lines:     s.lines,
		Err:       s.source.Err(),
	}
	s.logger.Info("session finished", "reason", string(reason), "lines", s.lines)
	s.sink.Finished(fin)
	return fin, err
}

func (s *Session) waitForLog(ctx context.Context) (Reason, bool) {
	for {
		select {
		case <-s.source.Ready():
			return "", true
		case <-s.completed():
			return ReasonCompleted, false
		case <-s.source.Done():
			return ReasonSourceEnded, false
		case <-ctx.Done():
			return ReasonInterrupted, false
		case <-s.statusUpdates():
			s.publishStatus()
		}
	}
}

func (s *Session) stream(ctx context.Context, mux *Mux) Reason {
	for {
		select {
		case <-s.completed():
			return ReasonCompleted
		case <-s.source.Done():
			if err := s.source.Err(); err != nil {
				s.logger.Warn("log follower ended unexpectedly", "error", err)
			}
			return ReasonSourceEnded
		case <-ctx.Done():
			return ReasonInterrupted
		case <-s.statusUpdates():
			s.publishStatus()
		default:
		}

		if line, ok := mux.Next(ctx); ok {
			s.deliver(line)
		}
	}
}

// drain pulls until both channels are closed and empty. The source has been
// stopped, so this is bounded by what was already written.
func (s *Session) drain(mux *Mux) {
	ctx := context.Background()
	for !mux.Exhausted() {
		if line, ok := mux.Next(ctx); ok {
			s.deliver(line)
		}
	}
}

func (s *Session) deliver(line follow.Line) {
	s.lines++
	s.sink.Line(line, control.Classify(line.Text))
}

func (s *Session) publishStatus() {
	if !s.opts.ShowStatus || s.poller == nil {
		return
	}
	if snap := s.poller.Latest(); snap != nil {
		s.sink.Status(snap)
	}
}

func (s *Session) completed() <-chan struct{} {
	if s.poller == nil {
		return nil
	}
	return s.poller.Completed()
}

func (s *Session) statusUpdates() <-chan struct{} {
	if s.poller == nil {
		return nil
	}
	return s.poller.Updates()
}

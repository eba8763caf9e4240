package monitor

import (
	"context"
	"time"

	"github.com/tuanbt/qslurm/internal/follow"
)

// Mux merges a source's two line channels. It alternates which channel it
// tries first so neither starves, and keeps each channel's order.
type Mux struct {
	out    <-chan follow.Line
	errs   <-chan follow.Line
	prefer follow.Channel
	wait   time.Duration
}

// NewMux creates a Mux over src. wait bounds how long Next blocks when both
// channels are empty.
func NewMux(src follow.Source, wait time.Duration) *Mux {
	return &Mux{
		out:    src.Output(),
		errs:   src.Errors(),
		prefer: follow.Output,
		wait:   wait,
	}
}

// Exhausted reports whether both channels have been closed and emptied.
func (m *Mux) Exhausted() bool {
	return m.out == nil && m.errs == nil
}

// Next returns the next line. ok is false when nothing arrived within the
// wait, when ctx is done or when the Mux is exhausted.
func (m *Mux) Next(ctx context.Context) (follow.Line, bool) {
	first, second := m.prefer, other(m.prefer)
	if line, ok := m.try(first); ok {
		return line, true
	}
	if line, ok := m.try(second); ok {
		return line, true
	}
	if m.Exhausted() {
		return follow.Line{}, false
	}

	timer := time.NewTimer(m.wait)
	defer timer.Stop()

	for {
		select {
		case line, ok := <-m.out:
			if !ok {
				m.out = nil
				if m.Exhausted() {
					return follow.Line{}, false
				}
				continue
			}
			m.prefer = follow.Error
			return line, true
		case line, ok := <-m.errs:
			if !ok {
				m.errs = nil
				if m.Exhausted() {
					return follow.Line{}, false
				}
				continue
			}
			m.prefer = follow.Output
			return line, true
		case <-timer.C:
			return follow.Line{}, false
		case <-ctx.Done():
			return follow.Line{}, false
		}
	}
}

// try makes one non-blocking receive on a channel.
func (m *Mux) try(ch follow.Channel) (follow.Line, bool) {
	src := &m.out
	if ch == follow.Error {
		src = &m.errs
	}
	if *src == nil {
		return follow.Line{}, false
	}

	select {
	case line, ok := <-*src:
		if !ok {
			*src = nil
			return follow.Line{}, false
		}
		m.prefer = other(ch)
		return line, true
	default:
		return follow.Line{}, false
	}
}

func other(ch follow.Channel) follow.Channel {
	if ch == follow.Output {
		return follow.Error
	}
	return follow.Output
}

package tui

import (
	"fmt"
	"io"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/tuanbt/qslurm/internal/control"
	"github.com/tuanbt/qslurm/internal/follow"
	"github.com/tuanbt/qslurm/internal/monitor"
	"github.com/tuanbt/qslurm/internal/scheduler"
)

// Sender is the part of *tea.Program a ProgramSink needs.
type Sender interface {
	Send(msg tea.Msg)
}

// ProgramSink forwards session events to a running bubbletea program.
type ProgramSink struct {
	program Sender
}

// NewProgramSink creates a sink sending to p.
func NewProgramSink(p Sender) *ProgramSink {
	return &ProgramSink{program: p}
}

func (s *ProgramSink) State(state monitor.State) {
	s.program.Send(StateMsg{State: state})
}

func (s *ProgramSink) Line(line follow.Line, d control.Directive) {
	s.program.Send(LineMsg{Line: line, Directive: d})
}

func (s *ProgramSink) Status(snap *scheduler.Snapshot) {
	s.program.Send(StatusMsg{Snapshot: snap})
}

func (s *ProgramSink) Finished(fin monitor.Finished) {
	s.program.Send(FinishedMsg{Finished: fin})
}

// PlainSink writes session events one after another, for output that is
// not a terminal or when the interactive UI is turned off.
type PlainSink struct {
	w          io.Writer
	renderer   *Renderer
	logPath    string
	showStatus bool
	lastState  string
}

// NewPlainSink creates a PlainSink writing to w.
func NewPlainSink(w io.Writer, renderer *Renderer, logPath string, showStatus bool) *PlainSink {
	return &PlainSink{
		w:          w,
		renderer:   renderer,
		logPath:    logPath,
		showStatus: showStatus,
	}
}

func (s *PlainSink) State(state monitor.State) {
	if state == monitor.WaitingForLog {
		fmt.Fprintln(s.w, StyleDimmed.Render("Waiting for "+s.logPath+" ..."))
	}
}

func (s *PlainSink) Line(line follow.Line, d control.Directive) {
	switch d.Kind {
	case control.BannerStart:
		fmt.Fprintln(s.w, StyleBanner.Render("==> "+d.Text))
		return
	case control.BannerStop:
		fmt.Fprintln(s.w, StyleBanner.Render("<== done"))
		return
	}
	if text, ok := s.renderer.Render(line, d); ok {
		fmt.Fprintln(s.w, text)
	}
}

// Status prints a line only when the job's scheduler state changes.
func (s *PlainSink) Status(snap *scheduler.Snapshot) {
	if !s.showStatus || snap == nil || snap.State == s.lastState {
		return
	}
	s.lastState = snap.State
	fmt.Fprintf(s.w, "%s job %s %s on %s (%s)\n",
		StyleDimmed.Render("[status]"), snap.JobID, StateStyle(snap.State).Render(snap.State), snap.NodeList, snap.Elapsed)
}

func (s *PlainSink) Finished(fin monitor.Finished) {
	fmt.Fprintln(s.w, StyleFinished.Render(FinishLine(fin)))
}

package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/tuanbt/qslurm/cmd/qslurm/tui"
	"github.com/tuanbt/qslurm/internal/jobs"
	"github.com/tuanbt/qslurm/internal/logger"
	"github.com/tuanbt/qslurm/internal/monitor"
	"github.com/tuanbt/qslurm/internal/scheduler"
)

func newMonitorCmd(a *app) *cobra.Command {
	var (
		showStatus bool
		noUI       bool
	)

	cmd := &cobra.Command{
		Use:   "monitor [job-id]",
		Short: "Follow a job's logs until it leaves the queue",
		Long: "Follow a job's stdout and stderr logs until the job leaves the queue.\n" +
			"Without a job id the last recorded job is used.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.requireScheduler(); err != nil {
				return err
			}
			id, record, err := a.resolveJob(args)
			if err != nil {
				return err
			}

			req := sessionRequest{
				jobID:      id,
				logPath:    a.cfg.JobLogPath(id),
				errPath:    a.cfg.JobErrPath(id),
				status:     a.client,
				showStatus: showStatus || a.cfg.ShowStatus,
				noUI:       noUI,
			}
			if record != nil {
				req.record = record
				if record.LogPath != "" {
					req.logPath = record.LogPath
				}
				if record.ErrPath != "" {
					req.errPath = record.ErrPath
				}
			}

			_, err = a.runSession(cmd.Context(), cmd.OutOrStdout(), req)
			return err
		},
	}

	cmd.Flags().BoolVarP(&showStatus, "status", "s", false, "Show live squeue status")
	cmd.Flags().BoolVar(&noUI, "no-ui", false, "Print plain output instead of the interactive view")
	return cmd
}

// sessionRequest describes one monitor session.
type sessionRequest struct {
	jobID      string
	logPath    string
	errPath    string
	status     scheduler.StatusClient
	showStatus bool
	noUI       bool
	record     *jobs.Job
}

// runSession runs a monitor session with the UI suited to the terminal.
func (a *app) runSession(ctx context.Context, out io.Writer, req sessionRequest) (monitor.Finished, error) {
	log, cleanup, err := logger.NewEmbeddedLogger(a.cfg)
	if err != nil {
		return monitor.Finished{}, fmt.Errorf("failed to create logger: %w", err)
	}
	defer cleanup()

	isTTY := isInteractiveTerminal()
	mode := chooseUI(isTTY, req.noUI, req.showStatus)
	source := a.newSource(req.logPath, req.errPath, log)
	opts := monitor.Options{
		JobID:           scheduler.JobID(req.jobID),
		LogPath:         req.logPath,
		ShowStatus:      req.showStatus,
		StatusInterval:  a.cfg.StatusInterval(),
		AbsentThreshold: a.cfg.AbsentThreshold,
		PullWait:        a.cfg.PullWait(),
	}

	if mode == uiPlain {
		renderer := tui.NewRenderer(markdownStyle(isTTY), terminalWidth(80))
		var sink monitor.Sink = tui.NewPlainSink(out, renderer, req.logPath, req.showStatus)
		sink = a.recording(sink, req.record, log)
		return monitor.NewSession(opts, source, req.status, sink, log).Run(ctx)
	}

	sessCtx, stopFollowing := context.WithCancel(ctx)
	defer stopFollowing()

	viewMode := tui.ModeStream
	var programOpts []tea.ProgramOption
	if mode == uiDashboard {
		viewMode = tui.ModeDashboard
		programOpts = append(programOpts, tea.WithAltScreen())
	}

	model := tui.NewModel(tui.Options{
		Mode:          viewMode,
		JobID:         req.jobID,
		LogPath:       req.logPath,
		LogPanelLimit: a.cfg.LogPanelLimit,
		Refresh:       a.cfg.RefreshInterval(),
		MarkdownStyle: markdownStyle(isTTY),
		StopFollowing: stopFollowing,
	})
	p := tea.NewProgram(model, programOpts...)
	sink := a.recording(tui.NewProgramSink(p), req.record, log)
	session := monitor.NewSession(opts, source, req.status, sink, log)

	type result struct {
		fin monitor.Finished
		err error
	}
	done := make(chan result, 1)
	go func() {
		fin, err := session.Run(sessCtx)
		done <- result{fin: fin, err: err}
	}()

	_, uiErr := p.Run()
	// The UI may exit first on a forced quit; the session still drains.
	stopFollowing()
	res := <-done

	if uiErr != nil {
		return res.fin, fmt.Errorf("failed to run monitor UI: %w", uiErr)
	}
	if mode == uiDashboard {
		fmt.Fprintln(out, tui.StyleFinished.Render(tui.FinishLine(res.fin)))
	}
	return res.fin, res.err
}

// recording wraps sink so the job record follows the session, when there
// is a record.
func (a *app) recording(sink monitor.Sink, record *jobs.Job, log *slog.Logger) monitor.Sink {
	if record == nil {
		return sink
	}
	return &recordingSink{Sink: sink, registry: a.registry, jobID: record.ID, logger: log}
}

// recordingSink marks the job running once its log appears and finished
// when it leaves the queue.
type recordingSink struct {
	monitor.Sink
	registry *jobs.Registry
	jobID    string
	logger   *slog.Logger
}

func (s *recordingSink) State(state monitor.State) {
	if state == monitor.Streaming {
		s.update(jobs.StatusRunning)
	}
	s.Sink.State(state)
}

func (s *recordingSink) Finished(fin monitor.Finished) {
	if fin.Reason == monitor.ReasonCompleted {
		s.update(jobs.StatusFinished)
	}
	s.Sink.Finished(fin)
}

func (s *recordingSink) update(status jobs.Status) {
	if err := s.registry.UpdateStatus(s.jobID, status); err != nil {
		s.logger.Warn("failed to update job record", "job_id", s.jobID, "status", string(status), "error", err)
	}
}

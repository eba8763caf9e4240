package tui

import (
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"

	"github.com/tuanbt/qslurm/internal/monitor"
	"github.com/tuanbt/qslurm/internal/scheduler"
)

// ViewMode selects how the monitor draws.
type ViewMode int

const (
	// ModeDashboard is the full-screen status and log panel layout.
	ModeDashboard ViewMode = iota
	// ModeStream prints lines inline above a single spinner line.
	ModeStream
)

// Options configures a monitor Model.
type Options struct {
	Mode          ViewMode
	JobID         string
	LogPath       string
	LogPanelLimit int
	Refresh       time.Duration
	MarkdownStyle string
	StopFollowing func()
}

// Model is the bubbletea model for one monitor session.
type Model struct {
	Mode    ViewMode
	JobID   string
	LogPath string

	// Models
	LogView  viewport.Model
	Spinner  spinner.Model
	Help     help.Model
	Keys     KeyMap
	Renderer *Renderer

	// Session state
	Status   *scheduler.Snapshot
	State    monitor.State
	Banner   string
	Finished *monitor.Finished

	// Log panel. Pending holds rendered text received since the last
	// refresh; Lines holds the wrapped lines currently in the panel.
	Pending []string
	Lines   []string
	Limit   int
	Refresh time.Duration

	Width    int
	Height   int
	Ready    bool
	Paused   bool
	Stopping bool
	Notice   string

	StopFollowing func()
}

// NewModel creates a monitor model.
func NewModel(opts Options) Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = StyleNeon

	refresh := opts.Refresh
	if refresh <= 0 {
		refresh = time.Second
	}
	style := opts.MarkdownStyle
	if style == "" {
		style = "dark"
	}

	return Model{
		Mode:          opts.Mode,
		JobID:         opts.JobID,
		LogPath:       opts.LogPath,
		LogView:       viewport.New(0, 0),
		Spinner:       s,
		Help:          help.New(),
		Keys:          DefaultKeyMap(),
		Renderer:      NewRenderer(style, 80),
		State:         monitor.WaitingForLog,
		Limit:         opts.LogPanelLimit,
		Refresh:       refresh,
		StopFollowing: opts.StopFollowing,
	}
}

// panelBudget is how many wrapped lines the log panel keeps.
func (m Model) panelBudget() int {
	return max(m.LogView.Height, m.Limit)
}

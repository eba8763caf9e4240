package tui

import (
	"os"
	"strings"
	"time"

	osc52 "github.com/aymanbagabas/go-osc52/v2"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/x/ansi"
	"github.com/muesli/reflow/wordwrap"

	"github.com/tuanbt/qslurm/internal/control"
	"github.com/tuanbt/qslurm/internal/monitor"
)

func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.Spinner.Tick,
		refreshTick(m.Refresh),
	)
}

// refreshTick drives the redraw. Lines arriving between ticks are only
// buffered.
func refreshTick(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(time.Time) tea.Msg {
		return refreshMsg{}
	})
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.Keys.Quit):
			// A second press gives up on draining.
			if m.Stopping || m.Finished != nil {
				return m, tea.Quit
			}
			m.Stopping = true
			m.Notice = "stopping, flushing remaining lines..."
			if m.StopFollowing != nil {
				m.StopFollowing()
			}
			return m, nil
		case key.Matches(msg, m.Keys.Pause):
			m.Paused = !m.Paused
			if !m.Paused {
				m.LogView.GotoBottom()
			}
			return m, nil
		case key.Matches(msg, m.Keys.Copy):
			m.Notice = "log path copied"
			return m, osc52CopyCmd(m.LogPath)
		case key.Matches(msg, m.Keys.Refresh):
			return m, m.flush()
		}

		if m.Mode == ModeDashboard {
			var cmd tea.Cmd
			m.LogView, cmd = m.LogView.Update(msg)
			return m, cmd
		}
		return m, nil

	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Height = msg.Height
		m.Ready = true
		m.updateLayout()
		return m, nil

	case StateMsg:
		m.State = msg.State
		return m, nil

	case StatusMsg:
		m.Status = msg.Snapshot
		return m, nil

	case LineMsg:
		switch msg.Directive.Kind {
		case control.BannerStart:
			m.Banner = msg.Directive.Text
		case control.BannerStop:
			m.Banner = ""
		}
		if text, ok := m.Renderer.Render(msg.Line, msg.Directive); ok {
			m.Pending = append(m.Pending, text)
		}
		return m, nil

	case refreshMsg:
		if m.Finished != nil {
			return m, nil
		}
		return m, tea.Batch(m.flush(), refreshTick(m.Refresh))

	case FinishedMsg:
		fin := msg.Finished
		m.Finished = &fin
		m.State = monitor.Terminated
		m.Banner = ""
		return m, tea.Sequence(m.flush(), tea.Quit)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.Spinner, cmd = m.Spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

// flush moves pending text onto the screen. In dashboard mode the log panel
// keeps at most panelBudget wrapped lines, dropping the oldest first.
func (m *Model) flush() tea.Cmd {
	if len(m.Pending) == 0 {
		return nil
	}
	pending := m.Pending
	m.Pending = nil

	if m.Mode == ModeStream {
		return tea.Println(strings.Join(pending, "\n"))
	}

	width := m.LogView.Width
	for _, text := range pending {
		for _, line := range strings.Split(text, "\n") {
			if width > 0 && ansi.StringWidth(line) > width {
				line = wordwrap.String(line, width)
			}
			m.Lines = append(m.Lines, strings.Split(line, "\n")...)
		}
	}

	if budget := m.panelBudget(); budget > 0 && len(m.Lines) > budget {
		m.Lines = append([]string(nil), m.Lines[len(m.Lines)-budget:]...)
	}

	m.LogView.SetContent(strings.Join(m.Lines, "\n"))
	if !m.Paused {
		m.LogView.GotoBottom()
	}
	return nil
}

func (m *Model) updateLayout() {
	if m.Width == 0 || m.Height == 0 {
		return
	}

	m.Renderer.SetWidth(m.Width - 4)
	if m.Mode == ModeStream {
		return
	}

	headerHeight := 1
	statusHeight := 6 // 4 rows + border
	footerHeight := 1
	// Log pane border (2) and its label (1).
	logHeight := m.Height - headerHeight - statusHeight - footerHeight - 3

	m.LogView.Width = m.Width - 2
	m.LogView.Height = max(logHeight, 0)
	m.LogView.SetContent(strings.Join(m.Lines, "\n"))
	if !m.Paused {
		m.LogView.GotoBottom()
	}
}

// osc52CopyCmd copies text to the system clipboard through the terminal.
func osc52CopyCmd(text string) tea.Cmd {
	return func() tea.Msg {
		seq := osc52.New(text).Limit(100 * 1024)

		term := strings.ToLower(os.Getenv("TERM"))
		if tmux := os.Getenv("TMUX"); tmux != "" || strings.HasPrefix(term, "tmux") {
			seq = seq.Tmux()
		} else if strings.HasPrefix(term, "screen") {
			seq = seq.Screen()
		}

		_, _ = seq.WriteTo(os.Stdout)
		return nil
	}
}

package tui

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/tuanbt/qslurm/internal/jobs"
	"github.com/tuanbt/qslurm/internal/scheduler"
)

// QueueLister is the scheduler call the queue view needs.
type QueueLister interface {
	Queue(ctx context.Context) ([]scheduler.Snapshot, error)
}

// TopModel shows the live squeue listing. Jobs recorded by qslurm are
// marked.
type TopModel struct {
	Client   QueueLister
	Registry *jobs.Registry
	Interval time.Duration

	List    list.Model
	Spinner spinner.Model
	Keys    KeyMap

	Rows        []scheduler.Snapshot
	Recorded    map[string]bool
	Loading     bool
	Err         error
	LastRefresh time.Time
	Width       int
	Height      int

	// done ends the records watcher once the program has exited.
	done chan struct{}
}

// NewTopModel creates the queue view.
func NewTopModel(client QueueLister, reg *jobs.Registry, interval time.Duration) TopModel {
	l := list.New([]list.Item{}, QueueDelegate{}, 0, 0)
	l.SetShowTitle(false)
	l.SetShowStatusBar(false)
	l.SetFilteringEnabled(true)
	l.SetShowHelp(false)

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = StyleNeon

	if interval <= 0 {
		interval = time.Second
	}

	return TopModel{
		Client:   client,
		Registry: reg,
		Interval: interval,
		List:     l,
		Spinner:  s,
		Keys:     DefaultKeyMap(),
		Recorded: make(map[string]bool),
		Loading:  true,
		done:     make(chan struct{}),
	}
}

// Close stops background watching. Call it once, after the program exits.
func (m TopModel) Close() {
	close(m.done)
}

func (m TopModel) Init() tea.Cmd {
	cmds := []tea.Cmd{m.Spinner.Tick, fetchQueue(m.Client)}
	if m.Registry != nil {
		cmds = append(cmds, loadJobs(m.Registry), watchJobsFile(m.Registry, m.done))
	}
	return tea.Batch(cmds...)
}

// fetchQueue returns a tea.Cmd that lists the queue once.
func fetchQueue(client QueueLister) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		rows, err := client.Queue(ctx)
		return QueueMsg{Rows: rows, Err: err}
	}
}

func queueTick(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(time.Time) tea.Msg {
		return queueTickMsg{}
	})
}

func (m TopModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.List.FilterState() != list.Filtering {
			switch {
			case key.Matches(msg, m.Keys.Quit):
				return m, tea.Quit
			case key.Matches(msg, m.Keys.Refresh):
				m.Loading = true
				return m, fetchQueue(m.Client)
			}
		}

	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Height = msg.Height
		// header (1) + border (2) + footer (1)
		m.List.SetSize(msg.Width-4, max(msg.Height-4, 0))
		return m, nil

	case QueueMsg:
		m.Loading = false
		m.Err = msg.Err
		if msg.Err == nil {
			m.Rows = msg.Rows
			m.LastRefresh = time.Now()
			m.List.SetItems(m.items())
		}
		return m, queueTick(m.Interval)

	case queueTickMsg:
		return m, fetchQueue(m.Client)

	case JobsUpdatedMsg:
		if msg.Err == nil {
			m.Recorded = make(map[string]bool, len(msg.Jobs))
			for _, j := range msg.Jobs {
				m.Recorded[j.ID] = true
			}
			m.List.SetItems(m.items())
		}
		// Re-arm the watcher
		if m.Registry != nil {
			return m, watchJobsFile(m.Registry, m.done)
		}
		return m, nil

	case WatcherErrorMsg:
		// Records stay as last loaded; the queue keeps refreshing.
		return m, nil

	case spinner.TickMsg:
		m.Spinner, cmd = m.Spinner.Update(msg)
		return m, cmd
	}

	m.List, cmd = m.List.Update(msg)
	return m, cmd
}

func (m TopModel) items() []list.Item {
	items := make([]list.Item, len(m.Rows))
	for i, r := range m.Rows {
		items[i] = QueueItem{
			ID:       string(r.JobID),
			Name:     r.Name,
			State:    r.State,
			Queue:    r.Queue,
			User:     r.User,
			Elapsed:  r.Elapsed,
			Nodes:    r.Nodes,
			NodeList: r.NodeList,
			Recorded: m.Recorded[string(r.JobID)],
		}
	}
	return items
}

func (m TopModel) View() string {
	if m.Width == 0 {
		return "Initialising queue view..."
	}

	headerStr := fmt.Sprintf(" QSLURM QUEUE | JOBS: %d | MINE: %d ", len(m.Rows), m.countRecorded())
	if m.Loading {
		headerStr += "| " + m.Spinner.View() + " "
	} else if !m.LastRefresh.IsZero() {
		headerStr += "| " + m.LastRefresh.Format("15:04:05") + " "
	}
	header := StyleHeader.Width(m.Width).Render(headerStr)

	var body string
	switch {
	case m.Err != nil:
		body = StyleStderr.Render(fmt.Sprintf("squeue failed: %v", m.Err))
	case len(m.Rows) == 0 && !m.Loading:
		body = StyleDimmed.Render("Queue is empty.")
	default:
		body = m.List.View()
	}
	pane := StylePaneBorder.Width(m.Width - 2).Height(max(m.Height-4, 0)).Render(body)

	footer := StyleDimmed.Render(" [j/k] Nav [/] Filter [r] Refresh [q] Quit   * recorded by qslurm")
	return lipgloss.JoinVertical(lipgloss.Left, header, pane, footer)
}

func (m TopModel) countRecorded() int {
	n := 0
	for _, r := range m.Rows {
		if m.Recorded[string(r.JobID)] {
			n++
		}
	}
	return n
}

package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"github.com/tuanbt/qslurm/internal/monitor"
	"github.com/tuanbt/qslurm/internal/scheduler"
)

func (m Model) View() string {
	if m.Mode == ModeStream {
		return m.streamView()
	}
	if m.Width == 0 || !m.Ready {
		return "Initialising monitor..."
	}

	header := StyleHeader.Width(m.Width).Render(m.headerText())
	status := StylePaneBorder.Width(m.Width - 2).Render(m.statusPanel())

	label := StyleGridLabel.Render(" LOG ") + " " +
		StyleDimmed.Render(ansi.Truncate(m.LogPath, max(m.Width-10, 1), "…"))
	border := StylePaneBorderFocus
	if m.Paused {
		border = StylePaneBorder
	}
	logPane := border.Width(m.Width - 2).Render(
		lipgloss.JoinVertical(lipgloss.Left, label, m.LogView.View()),
	)

	footer := m.Help.ShortHelpView(m.Keys.ShortHelp())
	if m.Notice != "" {
		footer += "  " + StyleNeon.Render(m.Notice)
	}

	return lipgloss.JoinVertical(lipgloss.Left, header, status, logPane, footer)
}

func (m Model) headerText() string {
	text := fmt.Sprintf(" QSLURM | JOB %s | %s ", m.JobID, strings.ToUpper(m.State.String()))
	if m.Paused {
		text += "| PAUSED "
	}
	if m.Banner != "" {
		text += "| " + m.Spinner.View() + " " + m.Banner + " "
	}
	if m.State == monitor.WaitingForLog {
		text += "| " + m.Spinner.View() + " waiting for " + m.LogPath + " "
	}
	return ansi.Truncate(text, m.Width, "…")
}

func (m Model) statusPanel() string {
	s := m.Status
	if s == nil {
		s = &scheduler.Snapshot{JobID: scheduler.JobID(m.JobID)}
	}

	half := max((m.Width-4)/2, 12)
	field := func(label, value string, style lipgloss.Style) string {
		if value == "" {
			value = "-"
		}
		value = ansi.Truncate(value, max(half-11, 1), "…")
		return lipgloss.NewStyle().Width(half).Render(StyleFieldLabel.Render(label) + style.Render(value))
	}

	rows := []string{
		field("Job", string(s.JobID), StyleFieldValue) + field("State", s.State, StateStyle(s.State)),
		field("Name", s.Name, StyleFieldValue) + field("User", s.User, StyleFieldValue),
		field("Queue", s.Queue, StyleFieldValue) + field("Elapsed", s.Elapsed, StyleFieldValue),
		field("Nodes", s.Nodes, StyleFieldValue) + field("NodeList", s.NodeList, StyleFieldValue),
	}
	return strings.Join(rows, "\n")
}

func (m Model) streamView() string {
	if m.Finished != nil {
		return StyleFinished.Render(FinishLine(*m.Finished)) + "\n"
	}

	var text string
	switch {
	case m.Banner != "":
		text = StyleBanner.Render(m.Banner)
	case m.Stopping:
		text = StyleDimmed.Render("stopping, flushing remaining lines...")
	case m.State == monitor.WaitingForLog:
		text = StyleDimmed.Render("waiting for " + m.LogPath)
	default:
		text = StyleDimmed.Render("following job " + m.JobID)
	}
	return m.Spinner.View() + " " + text + "\n"
}

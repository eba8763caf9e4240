package tui

import (
	"fmt"
	"io"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/x/ansi"
)

// QueueItem implements list.Item for one squeue row.
type QueueItem struct {
	ID       string
	Name     string
	State    string
	Queue    string
	User     string
	Elapsed  string
	Nodes    string
	NodeList string
	Recorded bool
}

func (i QueueItem) FilterValue() string { return i.Name }

type QueueDelegate struct{}

func (d QueueDelegate) Height() int                               { return 2 }
func (d QueueDelegate) Spacing() int                              { return 0 }
func (d QueueDelegate) Update(msg tea.Msg, m *list.Model) tea.Cmd { return nil }

func (d QueueDelegate) Render(w io.Writer, m list.Model, index int, listItem list.Item) {
	it, ok := listItem.(QueueItem)
	if !ok {
		return
	}

	width := m.Width()
	if width <= 0 {
		width = 80
	}

	mark := " "
	if it.Recorded {
		mark = "*"
	}
	titleStr := fmt.Sprintf("%s[%s] %s", mark, it.ID, it.Name)
	titleStr = ansi.Truncate(titleStr, max(width-16, 10), "…")
	state := StateStyle(it.State).Render(it.State)

	detail := fmt.Sprintf("%s | %s | %s | %s node(s) %s", it.Queue, it.User, it.Elapsed, it.Nodes, it.NodeList)
	detail = ansi.Truncate(detail, max(width-6, 10), "…")

	if index == m.Index() {
		fmt.Fprint(w, StyleRowSelected.Render(fmt.Sprintf("> %s", titleStr))+" "+state+"\n")
		fmt.Fprint(w, StyleDimmed.Render(fmt.Sprintf("    %s", detail)))
	} else {
		fmt.Fprint(w, StyleRowDimmed.Render(fmt.Sprintf("  %s", titleStr))+" "+state+"\n")
		fmt.Fprint(w, StyleDimmed.Render(fmt.Sprintf("    %s", detail)))
	}
}

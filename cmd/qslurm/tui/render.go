package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"github.com/tuanbt/qslurm/internal/control"
	"github.com/tuanbt/qslurm/internal/follow"
	"github.com/tuanbt/qslurm/internal/monitor"
)

// Renderer turns classified log lines into display text. Headings and
// markdown blocks go through glamour.
type Renderer struct {
	style    string
	width    int
	markdown *glamour.TermRenderer
}

// NewRenderer creates a renderer. style is a glamour standard style name
// ("dark", "light", "notty", ...).
func NewRenderer(style string, width int) *Renderer {
	r := &Renderer{style: style}
	r.SetWidth(width)
	return r
}

// SetWidth changes the wrap width. The markdown renderer is rebuilt on the
// next use.
func (r *Renderer) SetWidth(width int) {
	if width <= 0 {
		width = 80
	}
	if width != r.width {
		r.width = width
		r.markdown = nil
	}
}

// Markdown renders a markdown body, falling back to the raw text if glamour
// fails.
func (r *Renderer) Markdown(body string) string {
	if r.markdown == nil {
		md, err := glamour.NewTermRenderer(
			glamour.WithStylePath(r.style),
			glamour.WithWordWrap(r.width),
		)
		if err != nil {
			return body
		}
		r.markdown = md
	}

	out, err := r.markdown.Render(body)
	if err != nil {
		return body
	}
	return strings.Trim(out, "\n")
}

// Render returns the display text for one line. Banner directives produce
// no text; they drive the spinner instead.
func (r *Renderer) Render(line follow.Line, d control.Directive) (string, bool) {
	switch d.Kind {
	case control.BannerStart, control.BannerStop:
		return "", false
	case control.SectionBreak:
		return r.Markdown("# " + d.Text), true
	case control.RichBlock:
		return r.center(r.Markdown(d.Text)), true
	default:
		if line.Channel == follow.Error {
			return StyleStderr.Render(d.Text), true
		}
		return d.Text, true
	}
}

func (r *Renderer) center(block string) string {
	lines := strings.Split(block, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimRight(l, " ")
	}
	return lipgloss.PlaceHorizontal(r.width, lipgloss.Center, strings.Join(lines, "\n"))
}

// FinishLine is the last line shown for a session.
func FinishLine(fin monitor.Finished) string {
	if fin.Reason == monitor.ReasonInterrupted {
		return fmt.Sprintf("Stopped following job %s. Log: %s", fin.JobID, fin.LogPath)
	}
	return fmt.Sprintf("Job %s finished. Log: %s", fin.JobID, fin.LogPath)
}

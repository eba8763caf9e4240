package tui

import "github.com/charmbracelet/lipgloss"

var (
	// Colors
	ColorBg      = lipgloss.Color("#080808")
	ColorFg      = lipgloss.Color("#D1D1D1")
	ColorNeon    = lipgloss.Color("#00FF9C") // running
	ColorBlue    = lipgloss.Color("#00E5FF") // headings
	ColorPink    = lipgloss.Color("#FF007A") // stderr, failures
	ColorAmber   = lipgloss.Color("#FFB000") // pending
	ColorBorder  = lipgloss.Color("#333333")
	ColorDimmed  = lipgloss.Color("#666666")
	ColorSuccess = lipgloss.Color("#00B894")

	// Styles
	StyleHeader = lipgloss.NewStyle().
			Background(ColorBorder).
			Foreground(ColorNeon).
			Bold(true).
			Padding(0, 1)

	StylePaneBorder = lipgloss.NewStyle().
			Border(lipgloss.NormalBorder()).
			BorderForeground(ColorBorder)

	StylePaneBorderFocus = lipgloss.NewStyle().
				Border(lipgloss.NormalBorder()).
				BorderForeground(ColorNeon)

	StyleGridLabel = lipgloss.NewStyle().
			Foreground(ColorBg).
			Background(ColorNeon).
			Bold(true).
			Padding(0, 1)

	StyleFieldLabel = lipgloss.NewStyle().
			Foreground(ColorDimmed).
			Width(10)

	StyleFieldValue = lipgloss.NewStyle().
			Foreground(ColorFg)

	StyleRowSelected = lipgloss.NewStyle().
				Border(lipgloss.NormalBorder(), false, false, false, true).
				BorderForeground(ColorNeon).
				PaddingLeft(1).
				Foreground(ColorNeon)

	StyleRowDimmed = lipgloss.NewStyle().
			Foreground(ColorFg).
			PaddingLeft(2)

	StyleDimmed = lipgloss.NewStyle().
			Foreground(ColorDimmed)

	StyleNeon = lipgloss.NewStyle().
			Foreground(ColorNeon)

	StyleStderr = lipgloss.NewStyle().
			Foreground(ColorPink)

	StyleBanner = lipgloss.NewStyle().
			Foreground(ColorBlue).
			Bold(true)

	StyleFinished = lipgloss.NewStyle().
			Foreground(ColorSuccess).
			Bold(true)

	StyleStatePending = lipgloss.NewStyle().Foreground(ColorAmber)
	StyleStateRunning = lipgloss.NewStyle().Foreground(ColorNeon)
	StyleStateDone    = lipgloss.NewStyle().Foreground(ColorBlue)
	StyleStateFailed  = lipgloss.NewStyle().Foreground(ColorPink)
	StyleStateNeutral = lipgloss.NewStyle().Foreground(ColorDimmed)
)

// StateStyle picks the style for a Slurm job state.
func StateStyle(state string) lipgloss.Style {
	switch state {
	case "PENDING", "CONFIGURING", "REQUEUED", "SUSPENDED":
		return StyleStatePending
	case "RUNNING", "COMPLETING":
		return StyleStateRunning
	case "COMPLETED":
		return StyleStateDone
	case "FAILED", "CANCELLED", "TIMEOUT", "NODE_FAIL", "OUT_OF_MEMORY", "PREEMPTED":
		return StyleStateFailed
	default:
		return StyleStateNeutral
	}
}

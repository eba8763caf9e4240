package main

import (
	"os"
	"strings"

	"golang.org/x/term"
)

// uiMode is how a session is shown.
type uiMode int

const (
	uiPlain uiMode = iota
	uiStream
	uiDashboard
)

func isInteractiveTerminal() bool {
	if !term.IsTerminal(int(os.Stdin.Fd())) || !term.IsTerminal(int(os.Stdout.Fd())) {
		return false
	}
	t := strings.TrimSpace(strings.ToLower(os.Getenv("TERM")))
	return t != "" && t != "dumb"
}

// chooseUI picks the dashboard when live status is wanted, the inline
// stream otherwise, and plain output off a terminal.
func chooseUI(isTTY, noUI, showStatus bool) uiMode {
	if !isTTY || noUI {
		return uiPlain
	}
	if showStatus {
		return uiDashboard
	}
	return uiStream
}

// terminalWidth returns the stdout width, or fallback when unknown.
func terminalWidth(fallback int) int {
	w, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || w <= 0 {
		return fallback
	}
	return w
}

// markdownStyle picks the glamour style for the output.
func markdownStyle(isTTY bool) string {
	if isTTY {
		return "dark"
	}
	return "notty"
}

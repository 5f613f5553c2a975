package cli

import (
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205"))

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42"))

	warnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))

	hintStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))
)

type markers struct {
	ok   string
	warn string
	fail string
}

var (
	unicodeMarkers = markers{ok: "✓", warn: "!", fail: "✗"}
	plainMarkers   = markers{ok: "OK", warn: "WARN", fail: "FAIL"}
)

func markersFor(w io.Writer) markers {
	if isTerminal(w) {
		return unicodeMarkers
	}
	return plainMarkers
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

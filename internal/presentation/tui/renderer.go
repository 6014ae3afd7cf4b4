package tui

import (
	"os"

	"github.com/charmbracelet/glamour"
	"golang.org/x/term"
)

// Interactive reports whether f is attached to a terminal.
func Interactive(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// NewRenderer returns a markdown renderer. Rich output goes through glamour;
// otherwise, or when glamour cannot start, markdown is passed through.
func NewRenderer(rich bool) func(string) (string, error) {
	plain := func(md string) (string, error) { return md, nil }
	if !rich {
		return plain
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(), // Automatically detect light/dark background
		glamour.WithWordWrap(100),
	)
	if err != nil {
		return plain
	}
	return r.Render
}

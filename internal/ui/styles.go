// Package ui renders chat output for the terminal client.
package ui

import (
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

// Theme holds the colours used by the terminal client.
type Theme struct {
	Primary   lipgloss.Color
	Secondary lipgloss.Color
	Error     lipgloss.Color
	Muted     lipgloss.Color
	Text      lipgloss.Color
	Border    lipgloss.Color
}

// DefaultTheme is gruvbox.
func DefaultTheme() *Theme {
	return &Theme{
		Primary:   lipgloss.Color("#b8bb26"), // green
		Secondary: lipgloss.Color("#83a598"), // aqua
		Error:     lipgloss.Color("#fb4934"), // red
		Muted:     lipgloss.Color("#928374"), // gray
		Text:      lipgloss.Color("#ebdbb2"),
		Border:    lipgloss.Color("#83a598"),
	}
}

// Styles are lipgloss styles bound to one output. Colour is dropped
// automatically when the output is not a terminal.
type Styles struct {
	Title   lipgloss.Style
	Muted   lipgloss.Style
	Error   lipgloss.Style
	Tool    lipgloss.Style
	ToolBox lipgloss.Style
	Header  lipgloss.Style
}

func NewStyles(w io.Writer, theme *Theme) *Styles {
	if theme == nil {
		theme = DefaultTheme()
	}
	r := lipgloss.NewRenderer(w)
	return &Styles{
		Title: r.NewStyle().Bold(true).Foreground(theme.Text),
		Muted: r.NewStyle().Foreground(theme.Muted),
		Error: r.NewStyle().Bold(true).Foreground(theme.Error),
		Tool:  r.NewStyle().Bold(true).Foreground(theme.Primary),
		ToolBox: r.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(theme.Border).
			Padding(0, 1),
		Header: r.NewStyle().Bold(true).Foreground(theme.Secondary),
	}
}

// TerminalWidth returns the width of w when it is a terminal, else 80.
func TerminalWidth(w io.Writer) int {
	if f, ok := w.(*os.File); ok {
		if width, _, err := term.GetSize(int(f.Fd())); err == nil && width > 0 {
			return width
		}
	}
	return 80
}

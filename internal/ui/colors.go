package ui

import "github.com/charmbracelet/lipgloss"

// Scheme names the colors the browser draws with.
type Scheme struct {
	Accent  lipgloss.Color
	Success lipgloss.Color
	Danger  lipgloss.Color
	Caution lipgloss.Color
	Muted   lipgloss.Color
}

var defaultScheme = Scheme{
	Accent:  "#7D56F4",
	Success: "#04B575",
	Danger:  "#FF0000",
	Caution: "#FFA500",
	Muted:   "#626262",
}

var styles = NewPalette(defaultScheme)

// Palette holds the rendered styles for headings, status lines, help text and tag chips.
type Palette struct {
	title lipgloss.Style
	ok    lipgloss.Style
	err   lipgloss.Style
	warn  lipgloss.Style
	help  lipgloss.Style
	tag   lipgloss.Style
}

func NewPalette(s Scheme) *Palette {
	fg := func(c lipgloss.Color) lipgloss.Style { return lipgloss.NewStyle().Foreground(c) }

	return &Palette{
		title: fg(s.Accent).Bold(true).MarginBottom(1),
		ok:    fg(s.Success).Bold(true),
		err:   fg(s.Danger).Bold(true),
		warn:  fg(s.Caution),
		help:  fg(s.Muted).Italic(true),
		tag: fg(s.Accent).
			Padding(0, 1).
			Border(lipgloss.RoundedBorder()).
			BorderForeground(s.Muted),
	}
}

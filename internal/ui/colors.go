package ui

import (
	"github.com/charmbracelet/lipgloss"
)

// Spotify green, success, error, warning, muted
var styles = NewPalette("#1DB954", "#04B575", "#E22134", "#FFA500", "#626262")

// interface Painter defines coloring text with [lipgloss] styles
type Painter interface {
	On(string, lipgloss.Color) string // Sets background color
	As(string, lipgloss.Color) string // Sets foreground color
}

// struct Palette is a simple stylesheet built with named [lipgloss.Style] fields
type Palette struct {
	title lipgloss.Style
	ok    lipgloss.Style
	err   lipgloss.Style
	warn  lipgloss.Style
	help  lipgloss.Style
	card  lipgloss.Style
	bar   lipgloss.Style
}

var _ Painter = (*Palette)(nil)

func NewPalette(t, s, e, w, h string) *Palette {
	return &Palette{
		title: NewBold(t).MarginBottom(1),
		ok:    NewBold(s),
		err:   NewBold(e),
		warn:  NewStyle(w),
		help:  NewEm(h),
		card:  lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color(h)).Padding(0, 1),
		bar:   NewStyle(t),
	}
}

// On renders s on a bg background.
func (p *Palette) On(s string, bg lipgloss.Color) string {
	return lipgloss.NewStyle().Background(bg).Render(s)
}

// As renders s in fg.
func (p *Palette) As(s string, fg lipgloss.Color) string {
	return lipgloss.NewStyle().Foreground(fg).Render(s)
}

func NewStyle(fg string) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(lipgloss.Color(fg))
}

func NewBold(fg string) lipgloss.Style {
	return NewStyle(fg).Bold(true)
}

func NewEm(fg string) lipgloss.Style {
	return NewStyle(fg).Italic(true)
}

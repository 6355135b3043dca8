package main

import (
	"github.com/charmbracelet/lipgloss"
)

// palette is a small stylesheet of named [lipgloss.Style] fields.
type palette struct {
	title lipgloss.Style
	ok    lipgloss.Style
	err   lipgloss.Style
	warn  lipgloss.Style
	help  lipgloss.Style
	label lipgloss.Style
}

func newPalette(t, s, e, w, h string) *palette {
	return &palette{
		title: newBold(t),
		ok:    newBold(s),
		err:   newBold(e),
		warn:  newStyle(w),
		help:  newEm(h),
		label: newStyle(h),
	}
}

func defaultPalette() *palette {
	return newPalette("#7D56F4", "#04B575", "#FF0000", "#FFA500", "#626262")
}

func newStyle(fg string) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(lipgloss.Color(fg))
}

func newBold(fg string) lipgloss.Style {
	return newStyle(fg).Bold(true)
}

func newEm(fg string) lipgloss.Style {
	return newStyle(fg).Italic(true)
}

// stateStyle colors a connection state name.
func (p *palette) stateStyle(state string) lipgloss.Style {
	switch state {
	case "connected":
		return p.ok
	case "authenticating":
		return p.warn
	default:
		return p.err
	}
}

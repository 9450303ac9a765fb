package ui

import (
	"github.com/charmbracelet/lipgloss"
)

const (
	purple = lipgloss.Color("#7D56F4")
	green  = lipgloss.Color("#04B575")
	red    = lipgloss.Color("#FF5F5F")
	orange = lipgloss.Color("#FFA500")
	gray   = lipgloss.Color("#626262")
	cyan   = lipgloss.Color("#5FD7FF")
)

var styles = palette{
	title: lipgloss.NewStyle().Foreground(purple).Bold(true).MarginBottom(1),
	ok:    lipgloss.NewStyle().Foreground(green).Bold(true),
	err:   lipgloss.NewStyle().Foreground(red).Bold(true),
	warn:  lipgloss.NewStyle().Foreground(orange),
	help:  lipgloss.NewStyle().Foreground(gray).Italic(true),
	id:    lipgloss.NewStyle().Foreground(cyan),
}

// palette holds the prompt's styles by role.
type palette struct {
	title, ok, err, warn, help, id lipgloss.Style
}

func (p palette) Title(s string) string { return p.title.Render(s) }
func (p palette) OK(s string) string    { return p.ok.Render(s) }
func (p palette) Err(s string) string   { return p.err.Render(s) }
func (p palette) Warn(s string) string  { return p.warn.Render(s) }
func (p palette) Help(s string) string  { return p.help.Render(s) }

// ID renders a manifest id.
func (p palette) ID(s string) string { return p.id.Render(s) }

package tui

import (
	"charm.land/lipgloss/v2"
)

// Styles contains all lipgloss styles for the progress UI.
type Styles struct {
	Title   lipgloss.Style
	Stage   lipgloss.Style
	Counter lipgloss.Style
	LogLine lipgloss.Style
	Error   lipgloss.Style
	Success lipgloss.Style
	Help    lipgloss.Style
}

// DefaultStyles returns the default style configuration.
func DefaultStyles() Styles {
	return Styles{
		Title:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212")),
		Stage:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86")),
		Counter: lipgloss.NewStyle().Foreground(lipgloss.Color("250")),
		LogLine: lipgloss.NewStyle().Foreground(lipgloss.Color("240")),
		Error:   lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
		Success: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("84")),
		Help:    lipgloss.NewStyle().Foreground(lipgloss.Color("240")),
	}
}

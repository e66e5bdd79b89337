package ui

import "github.com/charmbracelet/lipgloss"

// Styles groups the lipgloss styles used by the client views.
type Styles struct {
	Header    lipgloss.Style
	Status    lipgloss.Style
	Error     lipgloss.Style
	Timestamp lipgloss.Style
	Nick      lipgloss.Style
	SelfNick  lipgloss.Style
	System    lipgloss.Style
	Action    lipgloss.Style
	Notice    lipgloss.Style
	Sidebar   lipgloss.Style
	TabActive lipgloss.Style
	Tab       lipgloss.Style
}

// DefaultStyles returns the standard color scheme.
func DefaultStyles() Styles {
	return Styles{
		Header:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63")),
		Status:    lipgloss.NewStyle().Foreground(lipgloss.Color("241")),
		Error:     lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
		Timestamp: lipgloss.NewStyle().Foreground(lipgloss.Color("240")),
		Nick:      lipgloss.NewStyle().Foreground(lipgloss.Color("39")),
		SelfNick:  lipgloss.NewStyle().Foreground(lipgloss.Color("213")),
		System:    lipgloss.NewStyle().Foreground(lipgloss.Color("244")).Italic(true),
		Action:    lipgloss.NewStyle().Foreground(lipgloss.Color("135")).Italic(true),
		Notice:    lipgloss.NewStyle().Foreground(lipgloss.Color("178")),
		Sidebar:   lipgloss.NewStyle().Foreground(lipgloss.Color("108")),
		TabActive: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("229")).Background(lipgloss.Color("63")),
		Tab:       lipgloss.NewStyle().Foreground(lipgloss.Color("245")),
	}
}

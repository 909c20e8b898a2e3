package ui

import (
	"github.com/charmbracelet/lipgloss"
)

// Styles contains all the style definitions for the UI
type Styles struct {
	Title       lipgloss.Style
	Tab         lipgloss.Style
	ActiveTab   lipgloss.Style
	Dim         lipgloss.Style
	Status      lipgloss.Style
	Filter      lipgloss.Style
	Help        lipgloss.Style
	Highlight   lipgloss.Style
	SelectionBg lipgloss.Style
	Deleting    lipgloss.Style
	Price       lipgloss.Style
	Error       lipgloss.Style
}

// NewStyles creates a new Styles instance with default values
func NewStyles() *Styles {
	return &Styles{
		Title: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("99")).
			MarginBottom(1),
		Tab:       lipgloss.NewStyle().Faint(true).Padding(0, 1),
		ActiveTab: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205")).Padding(0, 1),
		Dim:       lipgloss.NewStyle().Faint(true),
		Status: lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")).
			MarginTop(1),
		Filter:      lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
		Help:        lipgloss.NewStyle().Faint(true).MarginTop(1),
		Highlight:   lipgloss.NewStyle().Foreground(lipgloss.Color("205")),
		SelectionBg: lipgloss.NewStyle().Background(lipgloss.Color("236")),
		Deleting:    lipgloss.NewStyle().Faint(true).Strikethrough(true),
		Price:       lipgloss.NewStyle().Foreground(lipgloss.Color("33")),
		Error:       lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
	}
}

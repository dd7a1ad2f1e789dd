package main

import "github.com/charmbracelet/lipgloss"

// Theme defines the visual styling for the triage dashboard.
type Theme struct {
	Primary   lipgloss.Color
	Secondary lipgloss.Color
	Success   lipgloss.Color
	Warning   lipgloss.Color
	Error     lipgloss.Color
	Muted     lipgloss.Color
}

// DefaultTheme returns the default theme for triage-dash.
func DefaultTheme() Theme {
	return Theme{
		Primary:   lipgloss.Color("12"),  // Blue
		Secondary: lipgloss.Color("14"),  // Cyan
		Success:   lipgloss.Color("10"),  // Green
		Warning:   lipgloss.Color("11"),  // Yellow
		Error:     lipgloss.Color("9"),   // Red
		Muted:     lipgloss.Color("240"), // Gray
	}
}

// Styles holds the pre-built lipgloss styles derived from a Theme.
type Styles struct {
	Title     lipgloss.Style
	Section   lipgloss.Style
	Muted     lipgloss.Style
	StatusOK  lipgloss.Style
	StatusBad lipgloss.Style
}

// NewStyles builds the style set for a theme.
func NewStyles(theme Theme) Styles {
	return Styles{
		Title:     lipgloss.NewStyle().Bold(true).Foreground(theme.Primary),
		Section:   lipgloss.NewStyle().Bold(true).Foreground(theme.Secondary).MarginTop(1),
		Muted:     lipgloss.NewStyle().Foreground(theme.Muted),
		StatusOK:  lipgloss.NewStyle().Foreground(theme.Success),
		StatusBad: lipgloss.NewStyle().Foreground(theme.Error),
	}
}

// availabilityColor maps an executor availability state to a theme color.
func availabilityColor(theme Theme, availability string) lipgloss.Color {
	switch availability {
	case "available":
		return theme.Success
	case "busy":
		return theme.Warning
	case "offline":
		return theme.Muted
	default:
		return theme.Error
	}
}

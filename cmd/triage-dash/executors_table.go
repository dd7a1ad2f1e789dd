package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/lipgloss"

	"triage/pkg/registry"
)

// newExecutorsTable builds the executors panel as a bubbles table.
func newExecutorsTable(theme Theme) table.Model {
	columns := []table.Column{
		{Title: "Executor", Width: 16},
		{Title: "State", Width: 10},
		{Title: "Load", Width: 12},
		{Title: "Skills", Width: 28},
	}

	t := table.New(
		table.WithColumns(columns),
		table.WithFocused(true),
		table.WithHeight(8),
	)

	styles := table.DefaultStyles()
	styles.Header = styles.Header.
		Bold(true).
		Foreground(theme.Primary).
		BorderStyle(lipgloss.NormalBorder()).
		BorderBottom(true).
		BorderForeground(theme.Muted)
	styles.Selected = styles.Selected.
		Foreground(theme.Secondary).
		Bold(true)
	t.SetStyles(styles)

	return t
}

// executorRows converts a registry snapshot into table rows.
func executorRows(executors []registry.Executor) []table.Row {
	rows := make([]table.Row, 0, len(executors))
	for _, ex := range executors {
		rows = append(rows, table.Row{
			ex.ID,
			string(ex.Availability),
			loadCell(ex.CurrentLoad, ex.MaxLoad),
			strings.Join(ex.Skills, ", "),
		})
	}
	return rows
}

// loadCell renders current/max load with a small bar so saturation is
// visible at a glance.
func loadCell(current, maximum int) string {
	const barWidth = 5
	filled := 0
	if maximum > 0 {
		filled = current * barWidth / maximum
		if filled > barWidth {
			filled = barWidth
		}
	}
	bar := strings.Repeat("█", filled) + strings.Repeat("░", barWidth-filled)
	return fmt.Sprintf("%d/%d %s", current, maximum, bar)
}

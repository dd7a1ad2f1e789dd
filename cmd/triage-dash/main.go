// Package main implements the triage-dash terminal dashboard: a live view
// of executors, rules, active assignments, and recent allocation decisions.
package main

import (
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/mattn/go-isatty"
)

// isStdoutTTY reports whether stdout is an interactive terminal. The
// dashboard refuses to start when piped so it never spews ANSI into logs.
func isStdoutTTY() bool {
	fd := os.Stdout.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

func main() {
	if !isStdoutTTY() {
		fmt.Fprintln(os.Stderr, "triage-dash requires an interactive terminal; use 'triage status' for scripted output")
		os.Exit(1)
	}

	p := tea.NewProgram(newModel(), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error running dashboard: %v\n", err)
		os.Exit(1)
	}
}

package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"triage/pkg/auditlog"
	"triage/pkg/server"
)

// tickMsg drives the periodic refresh.
type tickMsg time.Time

// statusMsg carries the engine snapshot. nil means the engine is offline.
type statusMsg *server.Response

// decisionsMsg carries recent audit rows. nil means the audit log is
// unavailable (engine running without --db, or not yet created).
type decisionsMsg []auditlog.Decision

// tickCmd schedules the next refresh tick.
func tickCmd() tea.Cmd {
	return tea.Tick(2*time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// fetchStatusCmd fetches the engine snapshot over the socket.
func fetchStatusCmd(socketPath string) tea.Cmd {
	return func() tea.Msg {
		resp, err := fetchStatus(context.Background(), socketPath)
		if err != nil {
			return statusMsg(nil)
		}
		return statusMsg(resp)
	}
}

// fetchDecisionsCmd reads recent decisions from the audit log.
func fetchDecisionsCmd(dbPath string) tea.Cmd {
	return func() tea.Msg {
		decisions, err := fetchDecisions(context.Background(), dbPath)
		if err != nil {
			return decisionsMsg(nil)
		}
		return decisionsMsg(decisions)
	}
}

// Model is the Bubble Tea model for the triage dashboard.
type Model struct {
	socketPath string
	dbPath     string

	engineOnline bool
	status       *server.Response
	decisions    []auditlog.Decision

	executors table.Model
	theme     Theme
	styles    Styles

	width  int
	height int
}

// newModel creates the dashboard model with resolved paths.
func newModel() Model {
	theme := DefaultTheme()
	return Model{
		socketPath: defaultSocketPath(),
		dbPath:     defaultAuditDBPath(),
		executors:  newExecutorsTable(theme),
		theme:      theme,
		styles:     NewStyles(theme),
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		fetchStatusCmd(m.socketPath),
		fetchDecisionsCmd(m.dbPath),
		watchAuditDir(m.dbPath),
		tickCmd(),
	)
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "r":
			return m, tea.Batch(fetchStatusCmd(m.socketPath), fetchDecisionsCmd(m.dbPath))
		}
		var cmd tea.Cmd
		m.executors, cmd = m.executors.Update(msg)
		return m, cmd

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case statusMsg:
		if msg == nil {
			m.engineOnline = false
			m.status = nil
			m.executors.SetRows(nil)
		} else {
			m.engineOnline = true
			m.status = msg
			m.executors.SetRows(executorRows(msg.Executors))
		}

	case decisionsMsg:
		m.decisions = msg

	case auditChangeMsg:
		// New rows landed; refresh the panel and re-arm the watcher.
		return m, tea.Batch(fetchDecisionsCmd(m.dbPath), watchAuditDir(m.dbPath))

	case tickMsg:
		return m, tea.Batch(fetchStatusCmd(m.socketPath), fetchDecisionsCmd(m.dbPath), tickCmd())
	}

	return m, nil
}

// View implements tea.Model.
func (m Model) View() string {
	var sb strings.Builder

	sb.WriteString(m.styles.Title.Render("triage"))
	sb.WriteString("  ")
	if m.engineOnline {
		sb.WriteString(m.styles.StatusOK.Render("● engine online"))
	} else {
		sb.WriteString(m.styles.StatusBad.Render("● engine offline"))
	}
	sb.WriteString("\n")

	sb.WriteString(m.styles.Section.Render("Executors"))
	sb.WriteString("\n")
	if m.engineOnline && len(m.status.Executors) > 0 {
		sb.WriteString(m.executors.View())
		sb.WriteString("\n")
		sb.WriteString(m.renderAvailabilitySummary())
	} else {
		sb.WriteString(m.styles.Muted.Render("  no executors"))
	}
	sb.WriteString("\n")

	sb.WriteString(m.styles.Section.Render("Rules"))
	sb.WriteString("\n")
	sb.WriteString(m.renderRules())

	sb.WriteString(m.styles.Section.Render("Active assignments"))
	sb.WriteString("\n")
	sb.WriteString(m.renderAssignments())

	sb.WriteString(m.styles.Section.Render("Recent decisions"))
	sb.WriteString("\n")
	sb.WriteString(m.renderDecisions())

	sb.WriteString("\n")
	sb.WriteString(m.styles.Muted.Render("q quit · r refresh"))
	return sb.String()
}

// renderAvailabilitySummary renders per-state executor counts, colored by
// availability.
func (m Model) renderAvailabilitySummary() string {
	counts := map[string]int{}
	for _, ex := range m.status.Executors {
		counts[string(ex.Availability)]++
	}
	parts := make([]string, 0, 3)
	for _, state := range []string{"available", "busy", "offline"} {
		if counts[state] == 0 {
			continue
		}
		style := lipgloss.NewStyle().Foreground(availabilityColor(m.theme, state))
		parts = append(parts, style.Render(fmt.Sprintf("%d %s", counts[state], state)))
	}
	if len(parts) == 0 {
		return ""
	}
	return "  " + strings.Join(parts, "  ") + "\n"
}

// renderRules renders the rule list in evaluation order.
func (m Model) renderRules() string {
	if !m.engineOnline || len(m.status.Rules) == 0 {
		return m.styles.Muted.Render("  no rules") + "\n"
	}
	var sb strings.Builder
	for _, r := range m.status.Rules {
		state := m.styles.StatusOK.Render("active")
		if !r.Active {
			state = m.styles.Muted.Render("inactive")
		}
		sb.WriteString(fmt.Sprintf("  %2d. %-24s %s/%s/%s  %s  matched=%d  %s\n",
			r.Order, r.Name,
			r.Conditions.Category, r.Conditions.Priority, r.Conditions.Type,
			r.Strategy, r.Matched, state))
	}
	return sb.String()
}

// renderAssignments renders in-flight work.
func (m Model) renderAssignments() string {
	if !m.engineOnline || len(m.status.Assignments) == 0 {
		return m.styles.Muted.Render("  none") + "\n"
	}
	var sb strings.Builder
	for _, a := range m.status.Assignments {
		sb.WriteString(fmt.Sprintf("  %s  ticket=%s  executor=%s\n", a.ID, a.TicketID, a.ExecutorID))
	}
	return sb.String()
}

// renderDecisions renders the audit tail, newest first.
func (m Model) renderDecisions() string {
	if len(m.decisions) == 0 {
		return m.styles.Muted.Render("  no audit log") + "\n"
	}
	var sb strings.Builder
	for _, d := range m.decisions {
		sb.WriteString(fmt.Sprintf("  %s  %s  %s\n",
			d.CreatedAt.Local().Format("15:04:05"),
			decisionBadge(m.theme, d.Type),
			decisionLine(d)))
	}
	return sb.String()
}

// decisionBadge colors the decision type.
func decisionBadge(theme Theme, decisionType string) string {
	var color lipgloss.Color
	switch decisionType {
	case auditlog.TypeAssigned:
		color = theme.Success
	case auditlog.TypeRelease:
		color = theme.Secondary
	case auditlog.TypeUnmatched, auditlog.TypeNoCandidate:
		color = theme.Warning
	default:
		color = theme.Muted
	}
	return lipgloss.NewStyle().Foreground(color).Render(fmt.Sprintf("%-12s", decisionType))
}

// decisionLine summarizes one audit row.
func decisionLine(d auditlog.Decision) string {
	switch {
	case d.ExecutorID != "" && d.TicketID != "":
		return fmt.Sprintf("ticket %s -> %s", d.TicketID, d.ExecutorID)
	case d.TicketID != "":
		return fmt.Sprintf("ticket %s", d.TicketID)
	case d.ExecutorID != "":
		return fmt.Sprintf("executor %s %s", d.ExecutorID, d.Detail)
	default:
		return d.Detail
	}
}

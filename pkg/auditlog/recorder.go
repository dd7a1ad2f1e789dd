// Package auditlog persists allocation decisions to SQLite so operators can
// answer "why did this ticket land on that executor" after the fact. The
// Recorder is the write side, wired into the dispatcher; the Reader is the
// read side used by status tooling and the dashboard.
package auditlog

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite" // SQLite driver

	"triage/pkg/engine"
	"triage/pkg/ticket"
)

// Recorder writes dispatch outcomes to the decisions table. It implements
// engine.Recorder.
type Recorder struct {
	db *sql.DB
}

// NewRecorder creates a Recorder and applies the audit schema.
func NewRecorder(ctx context.Context, db *sql.DB) (*Recorder, error) {
	if _, err := db.ExecContext(ctx, SchemaDDL); err != nil {
		return nil, fmt.Errorf("init audit schema: %w", err)
	}
	return &Recorder{db: db}, nil
}

// RecordDispatch stores one terminal dispatch outcome.
func (r *Recorder) RecordDispatch(ctx context.Context, tk ticket.Ticket, res engine.Result) error {
	executorID := ""
	assignmentID := ""
	if res.Assignment != nil {
		executorID = res.Assignment.ExecutorID
		assignmentID = res.Assignment.ID
	}
	detail := fmt.Sprintf("category=%s priority=%s type=%s", tk.Category, tk.Priority, tk.Type)
	if tk.RequiredSkill != "" {
		detail += " skill=" + tk.RequiredSkill
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO decisions (type, ticket_id, executor_id, rule_id, assignment_id, detail)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		string(res.Outcome), tk.ID, executorID, res.RuleID, assignmentID, detail,
	)
	if err != nil {
		return fmt.Errorf("audit dispatch insert: %w", err)
	}
	return nil
}

// RecordRelease stores a capacity release for an assignment.
func (r *Recorder) RecordRelease(ctx context.Context, a engine.Assignment) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO decisions (type, ticket_id, executor_id, rule_id, assignment_id)
		 VALUES (?, ?, ?, ?, ?)`,
		TypeRelease, a.TicketID, a.ExecutorID, a.RuleID, a.ID,
	)
	if err != nil {
		return fmt.Errorf("audit release insert: %w", err)
	}
	return nil
}

// RecordPresence stores an availability or capacity change from the
// presence feed.
func (r *Recorder) RecordPresence(ctx context.Context, executorID, change string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO decisions (type, executor_id, detail) VALUES (?, ?, ?)`,
		TypePresence, executorID, change,
	)
	if err != nil {
		return fmt.Errorf("audit presence insert: %w", err)
	}
	return nil
}

package auditlog

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strings"
	"time"
)

// Decision is a single row from the audit log.
type Decision struct {
	ID           int64
	Type         string
	TicketID     string
	ExecutorID   string
	RuleID       string
	AssignmentID string
	Detail       string
	CreatedAt    time.Time
}

// QueryOpts specifies filter criteria for querying decisions.
type QueryOpts struct {
	// ExecutorID filters decisions touching a specific executor.
	ExecutorID string

	// Type filters to a decision type (assigned, unmatched, no_candidate,
	// release, presence).
	Type string

	// After filters decisions created at or after this time.
	After *time.Time

	// Before filters decisions created at or before this time.
	Before *time.Time

	// Limit restricts the number of results, newest first (0 = no limit).
	Limit int
}

// Reader provides read-only access to the audit log.
type Reader struct {
	db *sql.DB
}

// NewReader opens the audit database in read-only mode with WAL so readers
// never block the serving dispatcher. Returns an error if the database file
// does not exist.
func NewReader(dbPath string) (*Reader, error) {
	if _, err := os.Stat(dbPath); err != nil {
		return nil, fmt.Errorf("audit database not found: %w", err)
	}

	dsn := fmt.Sprintf("file:%s?mode=ro&_journal_mode=WAL", dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open audit database: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping audit database: %w", err)
	}
	return &Reader{db: db}, nil
}

// Close releases the database connection. Safe to call multiple times.
func (r *Reader) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Query retrieves decisions matching opts, newest first. Returns an empty
// slice when nothing matches.
func (r *Reader) Query(ctx context.Context, opts QueryOpts) ([]Decision, error) {
	query, args := buildQuery(opts)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query decisions: %w", err)
	}
	defer rows.Close()

	var out []Decision
	for rows.Next() {
		var d Decision
		var createdAt string
		err := rows.Scan(&d.ID, &d.Type, &d.TicketID, &d.ExecutorID,
			&d.RuleID, &d.AssignmentID, &d.Detail, &createdAt)
		if err != nil {
			return nil, fmt.Errorf("scan decision: %w", err)
		}
		if createdAt != "" {
			ts, err := parseSQLiteTime(createdAt)
			if err != nil {
				return nil, fmt.Errorf("parse created_at: %w", err)
			}
			d.CreatedAt = ts
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate decisions: %w", err)
	}
	return out, nil
}

// parseSQLiteTime handles the two timestamp layouts SQLite emits.
func parseSQLiteTime(s string) (time.Time, error) {
	if ts, err := time.Parse("2006-01-02 15:04:05", s); err == nil {
		return ts, nil
	}
	return time.Parse(time.RFC3339, s)
}

// buildQuery constructs the SQL and arguments for opts.
func buildQuery(opts QueryOpts) (string, []any) {
	var conditions []string
	var args []any

	// COALESCE the nullable columns so rows written without them (presence
	// changes, releases) scan into plain strings.
	query := `SELECT id, type, COALESCE(ticket_id, ''), COALESCE(executor_id, ''),
		COALESCE(rule_id, ''), COALESCE(assignment_id, ''), COALESCE(detail, ''),
		created_at FROM decisions WHERE 1=1`

	if opts.ExecutorID != "" {
		conditions = append(conditions, "executor_id = ?")
		args = append(args, opts.ExecutorID)
	}
	if opts.Type != "" {
		conditions = append(conditions, "type = ?")
		args = append(args, opts.Type)
	}
	if opts.After != nil {
		conditions = append(conditions, "created_at >= ?")
		args = append(args, opts.After.UTC().Format("2006-01-02 15:04:05"))
	}
	if opts.Before != nil {
		conditions = append(conditions, "created_at <= ?")
		args = append(args, opts.Before.UTC().Format("2006-01-02 15:04:05"))
	}

	if len(conditions) > 0 {
		query += " AND " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY id DESC"
	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", opts.Limit)
	}
	return query, args
}

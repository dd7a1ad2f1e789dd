package auditlog

// SchemaDDL defines the SQLite schema for the dispatch audit log. One
// append-only table records every terminal dispatch outcome, release and
// presence change. The log is history for operators and the dashboard, not
// authoritative engine state.
// Execute against a SQLite database with: db.Exec(SchemaDDL)
const SchemaDDL = `
-- Append-only record of allocation decisions and presence changes
CREATE TABLE IF NOT EXISTS decisions (
    id INTEGER PRIMARY KEY,
    type TEXT NOT NULL,
    ticket_id TEXT,
    executor_id TEXT,
    rule_id TEXT,
    assignment_id TEXT,
    detail TEXT,
    created_at TEXT NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_decisions_type ON decisions(type);
CREATE INDEX IF NOT EXISTS idx_decisions_executor ON decisions(executor_id);
CREATE INDEX IF NOT EXISTS idx_decisions_created ON decisions(created_at);
`

// Decision type constants, stored in decisions.type.
const (
	TypeAssigned    = "assigned"
	TypeUnmatched   = "unmatched"
	TypeNoCandidate = "no_candidate"
	TypeRelease     = "release"
	TypePresence    = "presence"
)

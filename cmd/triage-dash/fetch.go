package main

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"triage/pkg/auditlog"
	"triage/pkg/server"
)

// fetchTimeout bounds one engine socket or audit DB round-trip.
const fetchTimeout = 5 * time.Second

// recentDecisionLimit is how many audit rows the decisions panel shows.
const recentDecisionLimit = 20

// defaultSocketPath returns the engine socket path from env or default.
func defaultSocketPath() string {
	if v := os.Getenv("TRIAGE_SOCKET_PATH"); v != "" {
		return v
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".triage", "triage.sock")
}

// defaultAuditDBPath returns the audit log path from env or default.
func defaultAuditDBPath() string {
	if v := os.Getenv("TRIAGE_DB_PATH"); v != "" {
		return v
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".triage", "audit.db")
}

// fetchStatus asks the running engine for its full snapshot. A nil response
// with an error means the engine is offline.
func fetchStatus(ctx context.Context, socketPath string) (*server.Response, error) {
	ctx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()

	client := &server.Client{SocketPath: socketPath, Timeout: fetchTimeout}
	resp, err := client.Do(ctx, server.Request{Op: server.OpStatus})
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// fetchDecisions reads the most recent allocation decisions from the audit
// log. The reader is opened per call; read-only WAL mode keeps this safe
// alongside the serving engine.
func fetchDecisions(ctx context.Context, dbPath string) ([]auditlog.Decision, error) {
	ctx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()

	reader, err := auditlog.NewReader(dbPath)
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	return reader.Query(ctx, auditlog.QueryOpts{Limit: recentDecisionLimit})
}

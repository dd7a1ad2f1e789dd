package main

import (
	"fmt"
	"os"
	"path/filepath"
)

// triageDir is the default state directory name under the user's home.
const triageDir = ".triage"

// Paths holds all resolved triage state file paths.
// Use ResolvePaths() to populate this struct with defaults + env overrides.
type Paths struct {
	TriageHome  string // ~/.triage or TRIAGE_HOME
	SocketPath  string // triage.sock or TRIAGE_SOCKET_PATH
	AuditDBPath string // audit.db or TRIAGE_DB_PATH
}

// ResolvePaths returns all triage paths, respecting env var overrides.
// Environment variables:
//   - TRIAGE_HOME: base directory for all triage state (default: ~/.triage)
//   - TRIAGE_SOCKET_PATH: engine UDS socket (default: $TRIAGE_HOME/triage.sock)
//   - TRIAGE_DB_PATH: audit log database (default: $TRIAGE_HOME/audit.db)
//
// Specific env vars override both the default and the TRIAGE_HOME base.
func ResolvePaths() (*Paths, error) {
	home, err := resolveTriageHome()
	if err != nil {
		return nil, err
	}

	return &Paths{
		TriageHome:  home,
		SocketPath:  resolvePathWithEnv("TRIAGE_SOCKET_PATH", home, "triage.sock"),
		AuditDBPath: resolvePathWithEnv("TRIAGE_DB_PATH", home, "audit.db"),
	}, nil
}

// resolveTriageHome returns the state directory from TRIAGE_HOME or ~/.triage.
func resolveTriageHome() (string, error) {
	if v := os.Getenv("TRIAGE_HOME"); v != "" {
		return v, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home dir: %w", err)
	}
	return filepath.Join(home, triageDir), nil
}

// resolvePathWithEnv returns the path from envKey if set, otherwise joins base + suffix.
func resolvePathWithEnv(envKey, base, suffix string) string {
	if v := os.Getenv(envKey); v != "" {
		return v
	}
	return filepath.Join(base, suffix)
}

// Package integration_test provides end-to-end lifecycle tests for triage:
// a real engine behind a real Unix domain socket, with the SQLite audit log
// attached, driven through the same client the CLI uses.
package integration_test

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"triage/pkg/auditlog"
	"triage/pkg/config"
	"triage/pkg/engine"
	"triage/pkg/server"
	"triage/pkg/ticket"
)

const e2eConfig = `
executors:
  - id: mike
    name: Mike Johnson
    skills: [hvac, electrical]
    max_load: 4
  - id: robert
    name: Robert Lee
    skills: [hvac]
    max_load: 4

rules:
  - id: critical-hvac
    name: Critical HVAC Issues
    category: HVAC
    priority: Critical
    pool: [mike, robert]
    strategy: Least Loaded
  - id: general-hvac
    name: General HVAC
    category: HVAC
    pool: [mike, robert]
    strategy: Round Robin
`

// startStack spins up the full serving stack from a config file, the same
// way "triage serve" does: config -> registry + rules -> engine + audit ->
// socket server.
func startStack(t *testing.T) (*server.Client, string) {
	t.Helper()

	tmpDir := t.TempDir()
	cfgPath := filepath.Join(tmpDir, "triage.yaml")
	if err := os.WriteFile(cfgPath, []byte(e2eConfig), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	reg, rs, err := config.Build(cfg)
	if err != nil {
		t.Fatalf("build config: %v", err)
	}

	dbPath := filepath.Join(tmpDir, "audit.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	recorder, err := auditlog.NewRecorder(context.Background(), db)
	if err != nil {
		t.Fatalf("open audit log: %v", err)
	}

	sockPath := filepath.Join(tmpDir, "triage.sock")
	srv := server.New(server.Config{SocketPath: sockPath}, engine.New(reg, rs, recorder), recorder)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			if err != nil && !errors.Is(err, context.Canceled) {
				t.Errorf("server exited with error: %v", err)
			}
		case <-time.After(2 * time.Second):
			t.Error("server did not shut down")
		}
	})

	client := &server.Client{SocketPath: sockPath, Timeout: 2 * time.Second}
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if _, err := client.Do(context.Background(), server.Request{Op: server.OpStatus}); err == nil {
			return client, dbPath
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("server socket never became ready")
	return nil, ""
}

// TestE2E_FullLifecycle walks the complete flow: dispatch through both
// rules, observe loads over the wire, flip presence, release, and verify
// every step landed in the audit log.
func TestE2E_FullLifecycle(t *testing.T) {
	if testing.Short() {
		t.Skip("integration test")
	}

	client, dbPath := startStack(t)
	ctx := context.Background()

	// Critical ticket hits the first rule; both executors are idle so least
	// loaded tie-breaks to mike (listed first).
	resp, err := client.Do(ctx, server.Request{
		Op:     server.OpDispatch,
		Ticket: &ticket.Ticket{ID: "t-crit", Category: "HVAC", Priority: ticket.PriorityCritical},
	})
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if resp.Result.Outcome != engine.OutcomeAssigned || resp.Result.Assignment.ExecutorID != "mike" {
		t.Fatalf("critical ticket: got %+v", resp.Result)
	}
	critAssignment := resp.Result.Assignment.ID

	// Non-critical HVAC falls through to the round robin rule; a fresh
	// cursor starts at the front of the pool, so mike again.
	resp, err = client.Do(ctx, server.Request{
		Op:     server.OpDispatch,
		Ticket: &ticket.Ticket{ID: "t-gen", Category: "HVAC", Priority: ticket.PriorityLow},
	})
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if resp.Result.Outcome != engine.OutcomeAssigned {
		t.Fatalf("general ticket not assigned: %+v", resp.Result)
	}
	if resp.Result.RuleID != "general-hvac" {
		t.Errorf("general ticket matched rule %s, want general-hvac", resp.Result.RuleID)
	}

	// Loads visible in the status snapshot.
	resp, err = client.Do(ctx, server.Request{Op: server.OpStatus})
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	total := 0
	for _, ex := range resp.Executors {
		total += ex.CurrentLoad
	}
	if total != 2 {
		t.Errorf("total load = %d, want 2", total)
	}
	if len(resp.Assignments) != 2 {
		t.Errorf("active assignments = %d, want 2", len(resp.Assignments))
	}

	// Robert goes busy; a skill-gated electrical ticket can still only go
	// to mike anyway.
	if _, err := client.Do(ctx, server.Request{
		Op: server.OpSetAvailability, ExecutorID: "robert", Availability: "busy",
	}); err != nil {
		t.Fatalf("presence set: %v", err)
	}
	resp, err = client.Do(ctx, server.Request{
		Op: server.OpDispatch,
		Ticket: &ticket.Ticket{
			ID: "t-elec", Category: "HVAC", Priority: ticket.PriorityHigh, RequiredSkill: "electrical",
		},
	})
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if resp.Result.Assignment == nil || resp.Result.Assignment.ExecutorID != "mike" {
		t.Fatalf("electrical ticket: got %+v", resp.Result)
	}

	// Release the critical assignment; mike's load drops.
	if _, err := client.Do(ctx, server.Request{
		Op: server.OpRelease, AssignmentID: critAssignment,
	}); err != nil {
		t.Fatalf("release: %v", err)
	}
	resp, err = client.Do(ctx, server.Request{Op: server.OpStatus})
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	for _, ex := range resp.Executors {
		if ex.ID == "mike" && ex.CurrentLoad != 2 {
			t.Errorf("mike load after release = %d, want 2", ex.CurrentLoad)
		}
	}

	// Every step is in the audit log: 3 assignments, 1 release, 1 presence.
	reader, err := auditlog.NewReader(dbPath)
	if err != nil {
		t.Fatalf("open audit reader: %v", err)
	}
	defer reader.Close()

	counts := map[string]int{}
	decisions, err := reader.Query(ctx, auditlog.QueryOpts{})
	if err != nil {
		t.Fatalf("query audit log: %v", err)
	}
	for _, d := range decisions {
		counts[d.Type]++
	}
	if counts[auditlog.TypeAssigned] != 3 {
		t.Errorf("assigned audit rows = %d, want 3", counts[auditlog.TypeAssigned])
	}
	if counts[auditlog.TypeRelease] != 1 {
		t.Errorf("release audit rows = %d, want 1", counts[auditlog.TypeRelease])
	}
	if counts[auditlog.TypePresence] != 1 {
		t.Errorf("presence audit rows = %d, want 1", counts[auditlog.TypePresence])
	}
}

// TestE2E_ConcurrentDispatchRespectsCapacity floods the socket with more
// tickets than the roster can hold and verifies capacity is never exceeded.
func TestE2E_ConcurrentDispatchRespectsCapacity(t *testing.T) {
	if testing.Short() {
		t.Skip("integration test")
	}

	client, _ := startStack(t)
	ctx := context.Background()

	// Combined capacity is 8; send 20.
	const tickets = 20
	var wg sync.WaitGroup
	outcomes := make(chan string, tickets)
	for i := 0; i < tickets; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			resp, err := client.Do(ctx, server.Request{
				Op:     server.OpDispatch,
				Ticket: &ticket.Ticket{Category: "HVAC", Priority: ticket.PriorityMedium},
			})
			if err != nil {
				t.Errorf("dispatch %d: %v", n, err)
				return
			}
			outcomes <- string(resp.Result.Outcome)
		}(i)
	}
	wg.Wait()
	close(outcomes)

	assigned, noCandidate := 0, 0
	for o := range outcomes {
		switch o {
		case string(engine.OutcomeAssigned):
			assigned++
		case string(engine.OutcomeNoCandidate):
			noCandidate++
		default:
			t.Errorf("unexpected outcome %q", o)
		}
	}
	if assigned != 8 {
		t.Errorf("assigned = %d, want exactly 8 (combined capacity)", assigned)
	}
	if noCandidate != tickets-8 {
		t.Errorf("no_candidate = %d, want %d", noCandidate, tickets-8)
	}

	// Loads are saturated, not exceeded.
	resp, err := client.Do(ctx, server.Request{Op: server.OpStatus})
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	for _, ex := range resp.Executors {
		if ex.CurrentLoad > ex.MaxLoad {
			t.Errorf("executor %s over capacity: %d/%d", ex.ID, ex.CurrentLoad, ex.MaxLoad)
		}
		if ex.CurrentLoad != ex.MaxLoad {
			t.Errorf("executor %s not saturated: %d/%d", ex.ID, ex.CurrentLoad, ex.MaxLoad)
		}
	}
}

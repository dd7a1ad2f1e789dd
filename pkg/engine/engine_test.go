package engine //nolint:testpackage // white-box tests use the nowFunc/newID hooks

import (
	"context"
	"fmt"
	"testing"
	"time"

	"triage/pkg/registry"
	"triage/pkg/rules"
	"triage/pkg/strategy"
	"triage/pkg/ticket"
)

// newTestDispatcher builds a dispatcher with deterministic time and IDs
// over a fresh registry and rule set.
func newTestDispatcher(t *testing.T) (*Dispatcher, *registry.Registry, *rules.RuleSet) {
	t.Helper()
	reg := registry.NewRegistry()
	rs := rules.NewRuleSet(reg)
	d := New(reg, rs, nil)

	d.nowFunc = func() time.Time { return time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC) }
	seq := 0
	d.newID = func() string {
		seq++
		return fmt.Sprintf("asg-%d", seq)
	}
	return d, reg, rs
}

func addExecutor(t *testing.T, reg *registry.Registry, id string, maxLoad, load int, skills ...string) {
	t.Helper()
	err := reg.Add(registry.Executor{ID: id, Name: id, Skills: skills, MaxLoad: maxLoad, CurrentLoad: load})
	if err != nil {
		t.Fatalf("add executor %s: %v", id, err)
	}
}

func hvacCriticalTicket(id string) ticket.Ticket {
	return ticket.Ticket{ID: id, Category: "HVAC", Priority: ticket.PriorityCritical, Type: "Repair"}
}

func TestDispatchLeastLoadedPicksLowerLoad(t *testing.T) {
	t.Parallel()

	d, reg, rs := newTestDispatcher(t)
	addExecutor(t, reg, "mike", 10, 5)
	addExecutor(t, reg, "robert", 10, 3)
	err := rs.Add(rules.Rule{
		ID:   "critical-hvac",
		Name: "Critical HVAC Issues",
		Conditions: rules.Conditions{
			Category: "HVAC", Priority: "Critical", Type: rules.Any,
		},
		Pool:     []string{"mike", "robert"},
		Strategy: strategy.LeastLoaded,
		Active:   true,
	})
	if err != nil {
		t.Fatalf("add rule: %v", err)
	}

	res := d.Dispatch(context.Background(), hvacCriticalTicket("t-1"))
	if res.Outcome != OutcomeAssigned {
		t.Fatalf("outcome = %s, want assigned", res.Outcome)
	}
	if res.Assignment.ExecutorID != "robert" {
		t.Errorf("assigned to %s, want robert (lower load)", res.Assignment.ExecutorID)
	}
	if res.RuleID != "critical-hvac" {
		t.Errorf("rule id = %s, want critical-hvac", res.RuleID)
	}

	robert, _ := reg.Get("robert")
	if robert.CurrentLoad != 4 {
		t.Errorf("robert load = %d, want 4", robert.CurrentLoad)
	}

	r, _ := rs.Get("critical-hvac")
	if r.Matched != 1 {
		t.Errorf("matched count = %d, want 1", r.Matched)
	}
}

func TestDispatchRoundRobinRotatesThroughPool(t *testing.T) {
	t.Parallel()

	d, reg, rs := newTestDispatcher(t)
	addExecutor(t, reg, "mike", 10, 0)
	addExecutor(t, reg, "robert", 10, 0)
	err := rs.Add(rules.Rule{
		ID:         "critical-hvac",
		Name:       "Critical HVAC Issues",
		Conditions: rules.Conditions{Category: "HVAC", Priority: "Critical", Type: rules.Any},
		Pool:       []string{"mike", "robert"},
		Strategy:   strategy.RoundRobin,
		Active:     true,
	})
	if err != nil {
		t.Fatalf("add rule: %v", err)
	}

	want := []string{"mike", "robert", "mike"}
	for i, w := range want {
		res := d.Dispatch(context.Background(), hvacCriticalTicket(fmt.Sprintf("t-%d", i)))
		if res.Outcome != OutcomeAssigned {
			t.Fatalf("ticket %d: outcome = %s, want assigned", i, res.Outcome)
		}
		if res.Assignment.ExecutorID != w {
			t.Errorf("ticket %d assigned to %s, want %s", i, res.Assignment.ExecutorID, w)
		}
	}
}

func TestDispatchUnmatchedWhenNoRuleApplies(t *testing.T) {
	t.Parallel()

	d, reg, rs := newTestDispatcher(t)
	addExecutor(t, reg, "mike", 10, 0)
	err := rs.Add(rules.Rule{
		ID:         "critical-hvac",
		Name:       "Critical HVAC Issues",
		Conditions: rules.Conditions{Category: "HVAC", Priority: "Critical", Type: rules.Any},
		Pool:       []string{"mike"},
		Strategy:   strategy.LeastLoaded,
		Active:     true,
	})
	if err != nil {
		t.Fatalf("add rule: %v", err)
	}

	res := d.Dispatch(context.Background(), ticket.Ticket{
		ID: "t-1", Category: "Plumbing", Priority: ticket.PriorityLow, Type: "Any",
	})
	if res.Outcome != OutcomeUnmatched {
		t.Fatalf("outcome = %s, want unmatched", res.Outcome)
	}
	if res.Assignment != nil || res.RuleID != "" {
		t.Errorf("unmatched result should carry no rule or assignment: %+v", res)
	}
}

func TestDispatchFirstMatchWinsByOrder(t *testing.T) {
	t.Parallel()

	d, reg, rs := newTestDispatcher(t)
	addExecutor(t, reg, "mike", 10, 0)
	addExecutor(t, reg, "sarah", 10, 0)

	// Both rules match an HVAC/Critical ticket; the lower-order one must win.
	for i, r := range []rules.Rule{
		{ID: "broad", Name: "All HVAC", Conditions: rules.Conditions{Category: "HVAC"},
			Pool: []string{"mike"}, Strategy: strategy.LeastLoaded, Active: true},
		{ID: "narrow", Name: "Critical HVAC", Conditions: rules.Conditions{Category: "HVAC", Priority: "Critical"},
			Pool: []string{"sarah"}, Strategy: strategy.LeastLoaded, Active: true},
	} {
		if err := rs.Add(r); err != nil {
			t.Fatalf("add rule %d: %v", i, err)
		}
	}

	res := d.Dispatch(context.Background(), hvacCriticalTicket("t-1"))
	if res.RuleID != "broad" {
		t.Fatalf("matched rule = %s, want broad (lowest order)", res.RuleID)
	}
	if res.Assignment.ExecutorID != "mike" {
		t.Errorf("assigned to %s, want mike", res.Assignment.ExecutorID)
	}

	// Move the narrow rule to the top; it must now win.
	if err := rs.Reorder("narrow", 1); err != nil {
		t.Fatalf("reorder: %v", err)
	}
	res = d.Dispatch(context.Background(), hvacCriticalTicket("t-2"))
	if res.RuleID != "narrow" {
		t.Fatalf("matched rule after reorder = %s, want narrow", res.RuleID)
	}
}

func TestDispatchInactiveRulesSkipped(t *testing.T) {
	t.Parallel()

	d, reg, rs := newTestDispatcher(t)
	addExecutor(t, reg, "mike", 10, 0)
	err := rs.Add(rules.Rule{
		ID: "r1", Name: "HVAC", Conditions: rules.Conditions{Category: "HVAC"},
		Pool: []string{"mike"}, Strategy: strategy.LeastLoaded, Active: true,
	})
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := rs.SetActive("r1", false); err != nil {
		t.Fatalf("deactivate: %v", err)
	}

	res := d.Dispatch(context.Background(), hvacCriticalTicket("t-1"))
	if res.Outcome != OutcomeUnmatched {
		t.Errorf("outcome = %s, want unmatched (rule inactive)", res.Outcome)
	}
}

func TestDispatchNoCandidateWhenPoolIneligible(t *testing.T) {
	t.Parallel()

	d, reg, rs := newTestDispatcher(t)
	addExecutor(t, reg, "mike", 10, 0)
	addExecutor(t, reg, "robert", 10, 0)
	addExecutor(t, reg, "fallback", 10, 0)

	// First rule matches but its whole pool is offline. The dispatch must
	// terminate NoCandidate, not fall through to the second rule.
	for _, r := range []rules.Rule{
		{ID: "primary", Name: "HVAC primary", Conditions: rules.Conditions{Category: "HVAC"},
			Pool: []string{"mike", "robert"}, Strategy: strategy.LeastLoaded, Active: true},
		{ID: "secondary", Name: "HVAC backup", Conditions: rules.Conditions{Category: "HVAC"},
			Pool: []string{"fallback"}, Strategy: strategy.LeastLoaded, Active: true},
	} {
		if err := rs.Add(r); err != nil {
			t.Fatalf("add rule: %v", err)
		}
	}
	_ = reg.SetAvailability("mike", registry.Offline)
	_ = reg.SetAvailability("robert", registry.Offline)

	res := d.Dispatch(context.Background(), hvacCriticalTicket("t-1"))
	if res.Outcome != OutcomeNoCandidate {
		t.Fatalf("outcome = %s, want no_candidate", res.Outcome)
	}
	if res.RuleID != "primary" {
		t.Errorf("no_candidate rule = %s, want primary (no fall-through)", res.RuleID)
	}
	fb, _ := reg.Get("fallback")
	if fb.CurrentLoad != 0 {
		t.Errorf("fallback pool must not receive the ticket, load = %d", fb.CurrentLoad)
	}
}

func TestDispatchBusyExecutorsExcluded(t *testing.T) {
	t.Parallel()

	d, reg, rs := newTestDispatcher(t)
	addExecutor(t, reg, "mike", 10, 0)
	addExecutor(t, reg, "robert", 10, 9)
	err := rs.Add(rules.Rule{
		ID: "r1", Name: "HVAC", Conditions: rules.Conditions{Category: "HVAC"},
		Pool: []string{"mike", "robert"}, Strategy: strategy.LeastLoaded, Active: true,
	})
	if err != nil {
		t.Fatalf("add: %v", err)
	}

	// mike has the lower load but is Busy: hard exclusion independent of load.
	_ = reg.SetAvailability("mike", registry.Busy)

	res := d.Dispatch(context.Background(), hvacCriticalTicket("t-1"))
	if res.Outcome != OutcomeAssigned || res.Assignment.ExecutorID != "robert" {
		t.Errorf("got %+v, want assignment to robert", res)
	}
}

func TestDispatchEmptyPoolRuleIsNonMatching(t *testing.T) {
	t.Parallel()

	d, reg, rs := newTestDispatcher(t)
	addExecutor(t, reg, "mike", 10, 0)

	// Empty pool and unknown-only pool rules are treated as non-matching at
	// dispatch time; the next rule in order takes the ticket.
	for _, r := range []rules.Rule{
		{ID: "empty", Name: "empty pool", Conditions: rules.Conditions{Category: "HVAC"},
			Strategy: strategy.LeastLoaded, Active: true},
		{ID: "working", Name: "working", Conditions: rules.Conditions{Category: "HVAC"},
			Pool: []string{"mike"}, Strategy: strategy.LeastLoaded, Active: true},
	} {
		if err := rs.Add(r); err != nil {
			t.Fatalf("add rule: %v", err)
		}
	}

	res := d.Dispatch(context.Background(), hvacCriticalTicket("t-1"))
	if res.Outcome != OutcomeAssigned || res.RuleID != "working" {
		t.Errorf("got %+v, want assignment via rule working", res)
	}
}

func TestDispatchRequiredSkillFiltersPool(t *testing.T) {
	t.Parallel()

	d, reg, rs := newTestDispatcher(t)
	addExecutor(t, reg, "mike", 10, 0, "electrical")
	addExecutor(t, reg, "robert", 10, 5, "hvac")
	err := rs.Add(rules.Rule{
		ID: "r1", Name: "HVAC", Conditions: rules.Conditions{Category: "HVAC"},
		Pool: []string{"mike", "robert"}, Strategy: strategy.LeastLoaded, Active: true,
	})
	if err != nil {
		t.Fatalf("add: %v", err)
	}

	tk := hvacCriticalTicket("t-1")
	tk.RequiredSkill = "HVAC"

	res := d.Dispatch(context.Background(), tk)
	if res.Outcome != OutcomeAssigned || res.Assignment.ExecutorID != "robert" {
		t.Errorf("got %+v, want robert (only skill match despite higher load)", res)
	}

	// Nobody carries the skill: NoCandidate.
	tk.RequiredSkill = "plumbing"
	res = d.Dispatch(context.Background(), tk)
	if res.Outcome != OutcomeNoCandidate {
		t.Errorf("outcome = %s, want no_candidate", res.Outcome)
	}
}

func TestReleaseReturnsCapacityIdempotently(t *testing.T) {
	t.Parallel()

	d, reg, rs := newTestDispatcher(t)
	addExecutor(t, reg, "mike", 10, 5)
	err := rs.Add(rules.Rule{
		ID: "r1", Name: "HVAC", Conditions: rules.Conditions{Category: "HVAC"},
		Pool: []string{"mike"}, Strategy: strategy.LeastLoaded, Active: true,
	})
	if err != nil {
		t.Fatalf("add: %v", err)
	}

	res := d.Dispatch(context.Background(), hvacCriticalTicket("t-1"))
	if res.Outcome != OutcomeAssigned {
		t.Fatalf("outcome = %s, want assigned", res.Outcome)
	}
	mike, _ := reg.Get("mike")
	if mike.CurrentLoad != 6 {
		t.Fatalf("load after assign = %d, want 6", mike.CurrentLoad)
	}

	ctx := context.Background()
	if err := d.Release(ctx, res.Assignment.ID); err != nil {
		t.Fatalf("release: %v", err)
	}
	mike, _ = reg.Get("mike")
	if mike.CurrentLoad != 5 {
		t.Errorf("load after release = %d, want pre-assignment 5", mike.CurrentLoad)
	}

	// Releasing the same assignment again must not decrement further.
	for i := 0; i < 3; i++ {
		if err := d.Release(ctx, res.Assignment.ID); err != nil {
			t.Fatalf("repeat release %d: %v", i, err)
		}
	}
	mike, _ = reg.Get("mike")
	if mike.CurrentLoad != 5 {
		t.Errorf("load after repeated release = %d, want 5", mike.CurrentLoad)
	}

	// Unknown assignment IDs are tolerated the same way.
	if err := d.Release(ctx, "never-existed"); err != nil {
		t.Errorf("release unknown assignment: %v", err)
	}
}

func TestActiveAssignmentsTracksLifecycle(t *testing.T) {
	t.Parallel()

	d, reg, rs := newTestDispatcher(t)
	addExecutor(t, reg, "mike", 10, 0)
	err := rs.Add(rules.Rule{
		ID: "r1", Name: "HVAC", Conditions: rules.Conditions{Category: "HVAC"},
		Pool: []string{"mike"}, Strategy: strategy.LeastLoaded, Active: true,
	})
	if err != nil {
		t.Fatalf("add: %v", err)
	}

	ctx := context.Background()
	a1 := d.Dispatch(ctx, hvacCriticalTicket("t-1"))
	a2 := d.Dispatch(ctx, hvacCriticalTicket("t-2"))
	if a1.Outcome != OutcomeAssigned || a2.Outcome != OutcomeAssigned {
		t.Fatal("expected two assignments")
	}

	if got := len(d.ActiveAssignments()); got != 2 {
		t.Fatalf("active = %d, want 2", got)
	}
	if err := d.Release(ctx, a1.Assignment.ID); err != nil {
		t.Fatalf("release: %v", err)
	}
	active := d.ActiveAssignments()
	if len(active) != 1 || active[0].ID != a2.Assignment.ID {
		t.Errorf("active after release = %+v, want only %s", active, a2.Assignment.ID)
	}
}

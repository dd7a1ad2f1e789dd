// Package engine implements the ticket allocation dispatcher: it walks the
// rule set in priority order, filters the matched rule's pool down to
// eligible candidates, runs the rule's assignment strategy, and reserves
// capacity through the executor registry. Strategy selection stays pure;
// the one genuinely concurrent operation (capacity reservation) is confined
// to the registry, and selection losses are retried a bounded number of
// times.
package engine

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"triage/pkg/registry"
	"triage/pkg/rules"
	"triage/pkg/strategy"
	"triage/pkg/ticket"
)

// maxSelectAttempts bounds the Selecting -> Reserving -> Retry loop. Each
// attempt that loses the reservation race excludes the lost executor before
// re-selecting.
const maxSelectAttempts = 3

// Outcome is the terminal state of one dispatch.
type Outcome string

// Dispatch outcome constants.
const (
	OutcomeAssigned    Outcome = "assigned"     // assignment produced
	OutcomeUnmatched   Outcome = "unmatched"    // no active rule matched; intake routes manually
	OutcomeNoCandidate Outcome = "no_candidate" // rule matched but no eligible executor; escalate
)

// Assignment is the engine's output for a successful dispatch. Immutable
// once produced; capacity is returned via Release when the ticket closes.
type Assignment struct {
	ID         string    `json:"id"`
	TicketID   string    `json:"ticket_id"`
	ExecutorID string    `json:"executor_id"`
	RuleID     string    `json:"rule_id"`
	AssignedAt time.Time `json:"assigned_at"`
}

// Result is the structured outcome of one dispatch. Unmatched and
// NoCandidate are expected business outcomes, not errors; returning them as
// values forces calling code to handle them.
type Result struct {
	Outcome    Outcome     `json:"outcome"`
	RuleID     string      `json:"rule_id,omitempty"` // matched rule, set for assigned and no_candidate
	Assignment *Assignment `json:"assignment,omitempty"`
}

// Recorder receives terminal dispatch outcomes and releases for the audit
// log. Recording is best-effort; the dispatcher never fails a dispatch over
// an audit write.
type Recorder interface {
	RecordDispatch(ctx context.Context, tk ticket.Ticket, res Result) error
	RecordRelease(ctx context.Context, a Assignment) error
}

// Dispatcher owns all engine state explicitly: the executor registry, the
// rule set, and the active assignment table. No ambient globals; callers
// hold a handle.
type Dispatcher struct {
	registry *registry.Registry
	rules    *rules.RuleSet
	audit    Recorder // optional

	mu     sync.Mutex
	active map[string]Assignment // by assignment ID

	// nowFunc and newID allow tests to control time and identifiers.
	nowFunc func() time.Time
	newID   func() string
}

// New creates a Dispatcher over the given registry and rule set. audit may
// be nil to disable outcome recording.
func New(reg *registry.Registry, rs *rules.RuleSet, audit Recorder) *Dispatcher {
	return &Dispatcher{
		registry: reg,
		rules:    rs,
		audit:    audit,
		active:   make(map[string]Assignment),
		nowFunc:  time.Now,
		newID:    func() string { return uuid.New().String() },
	}
}

// Registry returns the executor registry backing this dispatcher.
func (d *Dispatcher) Registry() *registry.Registry { return d.registry }

// Rules returns the rule set backing this dispatcher.
func (d *Dispatcher) Rules() *rules.RuleSet { return d.rules }

// Dispatch decides the assignment for one ticket. The first active rule
// (by order) whose conditions match wins; no later rule is considered even
// if it would also match. A matched rule whose pool yields no eligible
// executor terminates as NoCandidate rather than falling through.
func (d *Dispatcher) Dispatch(ctx context.Context, tk ticket.Ticket) Result {
	rule, ok := d.matchRule(tk)
	if !ok {
		res := Result{Outcome: OutcomeUnmatched}
		d.recordDispatch(ctx, tk, res)
		return res
	}

	res := d.selectAndReserve(ctx, rule, tk)
	d.recordDispatch(ctx, tk, res)
	return res
}

// matchRule walks the ordered active rules and returns the first whose
// conditions match the ticket. A rule whose pool is empty or references
// only unknown executors is treated as non-matching, never as an error.
func (d *Dispatcher) matchRule(tk ticket.Ticket) (rules.Rule, bool) {
	for _, r := range d.rules.OrderedActive() {
		if !rules.Matches(r.Conditions, tk) {
			continue
		}
		if !d.poolViable(r) {
			continue
		}
		return r, true
	}
	return rules.Rule{}, false
}

// poolViable reports whether at least one pool entry resolves to a known
// executor.
func (d *Dispatcher) poolViable(r rules.Rule) bool {
	for _, id := range r.Pool {
		if d.registry.Exists(id) {
			return true
		}
	}
	return false
}

// selectAndReserve runs the Selecting/Reserving loop for the matched rule.
// For round-robin rules the per-rule cursor lock is held across the whole
// loop so concurrent dispatches matching the same rule serialize and the
// rotation stays coherent.
func (d *Dispatcher) selectAndReserve(ctx context.Context, rule rules.Rule, tk ticket.Ticket) Result {
	var cur *strategy.Cursor
	if rule.Strategy == strategy.RoundRobin {
		c, ok := d.rules.Cursor(rule.ID)
		if !ok {
			// Rule deleted since the snapshot; its cursor went with it.
			c = strategy.NewCursor()
		}
		cur = c
		cur.Lock()
		defer cur.Unlock()
	}

	excluded := make(map[string]bool)
	for attempt := 0; attempt < maxSelectAttempts; attempt++ {
		candidates := d.eligibleCandidates(rule, tk, excluded)
		if len(candidates) == 0 {
			return Result{Outcome: OutcomeNoCandidate, RuleID: rule.ID}
		}

		last := -1
		if cur != nil {
			last = cur.Last()
		}
		sel, ok := strategy.Select(rule.Strategy, candidates, last)
		if !ok {
			return Result{Outcome: OutcomeNoCandidate, RuleID: rule.ID}
		}

		if err := d.registry.TryReserve(sel.ID); err != nil {
			// Capacity or availability lost the race since selection.
			// Exclude the loser and re-select.
			excluded[sel.ID] = true
			continue
		}

		if cur != nil {
			cur.Advance(sel.PoolIndex)
		}
		d.rules.RecordMatch(rule.ID)

		a := Assignment{
			ID:         d.newID(),
			TicketID:   tk.ID,
			ExecutorID: sel.ID,
			RuleID:     rule.ID,
			AssignedAt: d.nowFunc(),
		}
		d.mu.Lock()
		d.active[a.ID] = a
		d.mu.Unlock()

		return Result{Outcome: OutcomeAssigned, RuleID: rule.ID, Assignment: &a}
	}

	return Result{Outcome: OutcomeNoCandidate, RuleID: rule.ID}
}

// eligibleCandidates intersects the rule's pool with executors that are
// Available, under capacity, and skill-matched when the ticket requires a
// skill. Candidates come back in pool order, which the strategies rely on
// for deterministic tie-breaks.
func (d *Dispatcher) eligibleCandidates(rule rules.Rule, tk ticket.Ticket, excluded map[string]bool) []strategy.Candidate {
	var out []strategy.Candidate
	for i, id := range rule.Pool {
		if excluded[id] {
			continue
		}
		ex, err := d.registry.Get(id)
		if err != nil {
			// Unknown pool entries are skipped, never fatal.
			continue
		}
		if ex.Availability != registry.Available {
			continue
		}
		if ex.CurrentLoad >= ex.MaxLoad {
			continue
		}
		if tk.RequiredSkill != "" && !ex.HasSkill(tk.RequiredSkill) {
			continue
		}
		out = append(out, strategy.Candidate{ID: id, PoolIndex: i, Load: ex.CurrentLoad})
	}
	return out
}

// Release returns an assignment's capacity to its executor. Releasing an
// assignment that is unknown or already released is a no-op, so duplicate
// release signals from intake are tolerated and load never goes negative.
func (d *Dispatcher) Release(ctx context.Context, assignmentID string) error {
	d.mu.Lock()
	a, ok := d.active[assignmentID]
	if ok {
		delete(d.active, assignmentID)
	}
	d.mu.Unlock()
	if !ok {
		return nil
	}

	if err := d.registry.Release(a.ExecutorID); err != nil {
		return err
	}
	if d.audit != nil {
		_ = d.audit.RecordRelease(ctx, a)
	}
	return nil
}

// ActiveAssignments returns a snapshot of the assignments that have not
// been released, ordered by assignment time.
func (d *Dispatcher) ActiveAssignments() []Assignment {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]Assignment, 0, len(d.active))
	for _, a := range d.active {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].AssignedAt.Equal(out[j].AssignedAt) {
			return out[i].AssignedAt.Before(out[j].AssignedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// recordDispatch forwards a terminal outcome to the audit recorder,
// best-effort.
func (d *Dispatcher) recordDispatch(ctx context.Context, tk ticket.Ticket, res Result) {
	if d.audit != nil {
		_ = d.audit.RecordDispatch(ctx, tk, res)
	}
}

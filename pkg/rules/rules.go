// Package rules holds the ordered allocation rule set and the condition
// matcher. Rule order is a total priority order, dense and tie-free;
// iteration always happens over snapshots so concurrent dispatches never
// observe a half-renumbered set.
package rules

import (
	"sort"
	"sync"
	"sync/atomic"

	"triage/pkg/strategy"
)

// Rule is a snapshot of one allocation rule. Order is its 1-based rank in
// the evaluation sequence; Matched is an observability counter incremented
// only by the dispatcher on successful assignment.
type Rule struct {
	ID         string        `json:"id"`
	Order      int           `json:"order"`
	Name       string        `json:"name"`
	Conditions Conditions    `json:"conditions"`
	Pool       []string      `json:"pool"`
	Strategy   strategy.Kind `json:"strategy"`
	Active     bool          `json:"active"`
	Matched    uint64        `json:"matched"`
}

// ExecutorDirectory answers whether an executor ID exists. Implemented by
// the executor registry; an interface keeps this package decoupled for
// tests.
type ExecutorDirectory interface {
	Exists(id string) bool
}

// ruleState is the live record for one rule. The matched counter is atomic
// so dispatch-time increments skip the set-level lock; the cursor carries
// the per-rule round-robin lock.
type ruleState struct {
	rule    Rule
	matched atomic.Uint64
	cursor  *strategy.Cursor
}

// RuleSet is the concurrent-safe ordered rule collection.
type RuleSet struct {
	mu      sync.RWMutex
	dir     ExecutorDirectory
	ordered []*ruleState // ascending by rule.Order, kept dense (1..n)
	byID    map[string]*ruleState
}

// NewRuleSet creates an empty rule set validating pools against dir.
func NewRuleSet(dir ExecutorDirectory) *RuleSet {
	return &RuleSet{dir: dir, byID: make(map[string]*ruleState)}
}

// validate rejects malformed rules before storage. Empty condition fields
// are normalized to the Any wildcard; an empty pool is legal (the rule is
// simply non-matching at dispatch time).
func (rs *RuleSet) validate(r *Rule) error {
	if r.ID == "" {
		return &ValidationError{RuleID: r.ID, Reason: "empty id"}
	}
	if r.Name == "" {
		return &ValidationError{RuleID: r.ID, Reason: "empty name"}
	}
	if !r.Strategy.Valid() {
		return &ValidationError{RuleID: r.ID, Reason: "unknown strategy"}
	}
	if r.Conditions.Category == "" {
		r.Conditions.Category = Any
	}
	if r.Conditions.Priority == "" {
		r.Conditions.Priority = Any
	}
	if r.Conditions.Type == "" {
		r.Conditions.Type = Any
	}

	var unknown []string
	for _, id := range r.Pool {
		if !rs.dir.Exists(id) {
			unknown = append(unknown, id)
		}
	}
	if len(unknown) > 0 {
		return &InvalidPoolError{RuleID: r.ID, Unknown: unknown}
	}
	return nil
}

// Add appends a rule at the end of the evaluation order. The rule's Order
// field is assigned by the set; any caller-provided value is ignored.
func (rs *RuleSet) Add(r Rule) error {
	if err := rs.validate(&r); err != nil {
		return err
	}

	rs.mu.Lock()
	defer rs.mu.Unlock()
	if _, exists := rs.byID[r.ID]; exists {
		return &ValidationError{RuleID: r.ID, Reason: "duplicate id"}
	}
	r.Order = len(rs.ordered) + 1
	st := &ruleState{rule: r, cursor: strategy.NewCursor()}
	rs.ordered = append(rs.ordered, st)
	rs.byID[r.ID] = st
	return nil
}

// Update replaces a rule's name, conditions, pool, strategy and active flag.
// Order and the matched counter are preserved. An edited pool resets the
// rule's round-robin cursor.
func (rs *RuleSet) Update(r Rule) error {
	if err := rs.validate(&r); err != nil {
		return err
	}

	rs.mu.Lock()
	defer rs.mu.Unlock()
	st, ok := rs.byID[r.ID]
	if !ok {
		return &NotFoundError{RuleID: r.ID}
	}

	poolChanged := !equalPools(st.rule.Pool, r.Pool)
	r.Order = st.rule.Order
	st.rule = r
	if poolChanged {
		st.cursor.Reset()
	}
	return nil
}

// Delete removes a rule and discards its round-robin cursor. Remaining
// rules are renumbered so the order stays dense.
func (rs *RuleSet) Delete(ruleID string) error {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	st, ok := rs.byID[ruleID]
	if !ok {
		return &NotFoundError{RuleID: ruleID}
	}

	delete(rs.byID, ruleID)
	idx := st.rule.Order - 1
	rs.ordered = append(rs.ordered[:idx], rs.ordered[idx+1:]...)
	rs.renumberLocked()
	return nil
}

// SetActive flips a rule's active flag without touching its order or cursor.
func (rs *RuleSet) SetActive(ruleID string, active bool) error {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	st, ok := rs.byID[ruleID]
	if !ok {
		return &NotFoundError{RuleID: ruleID}
	}
	st.rule.Active = active
	return nil
}

// SetPool replaces a rule's executor pool. The pool is validated against
// the directory and the round-robin cursor resets to before the first entry.
func (rs *RuleSet) SetPool(ruleID string, pool []string) error {
	probe := Rule{ID: ruleID, Name: "probe", Strategy: strategy.RoundRobin, Pool: pool}
	if err := rs.validate(&probe); err != nil {
		return err
	}

	rs.mu.Lock()
	defer rs.mu.Unlock()
	st, ok := rs.byID[ruleID]
	if !ok {
		return &NotFoundError{RuleID: ruleID}
	}
	st.rule.Pool = append([]string(nil), pool...)
	st.cursor.Reset()
	return nil
}

// Reorder moves a rule to newOrder and renumbers the affected rules in one
// atomic step, so the total order stays dense and tie-free. newOrder is
// clamped into [1, len].
func (rs *RuleSet) Reorder(ruleID string, newOrder int) error {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	st, ok := rs.byID[ruleID]
	if !ok {
		return &NotFoundError{RuleID: ruleID}
	}

	if newOrder < 1 {
		newOrder = 1
	}
	if newOrder > len(rs.ordered) {
		newOrder = len(rs.ordered)
	}

	from := st.rule.Order - 1
	to := newOrder - 1
	if from == to {
		return nil
	}

	rs.ordered = append(rs.ordered[:from], rs.ordered[from+1:]...)
	rs.ordered = append(rs.ordered[:to], append([]*ruleState{st}, rs.ordered[to:]...)...)
	rs.renumberLocked()
	return nil
}

// renumberLocked rewrites Order fields to match slice positions (1..n).
func (rs *RuleSet) renumberLocked() {
	for i, st := range rs.ordered {
		st.rule.Order = i + 1
	}
}

// Get returns a snapshot of one rule.
func (rs *RuleSet) Get(ruleID string) (Rule, error) {
	rs.mu.RLock()
	defer rs.mu.RUnlock()
	st, ok := rs.byID[ruleID]
	if !ok {
		return Rule{}, &NotFoundError{RuleID: ruleID}
	}
	return st.snapshot(), nil
}

// OrderedActive returns a fresh snapshot of the active rules in ascending
// order. The slice is safe to iterate without holding any lock; a
// concurrent reorder or edit produces a new snapshot for later callers but
// never mutates this one.
func (rs *RuleSet) OrderedActive() []Rule {
	rs.mu.RLock()
	defer rs.mu.RUnlock()
	out := make([]Rule, 0, len(rs.ordered))
	for _, st := range rs.ordered {
		if st.rule.Active {
			out = append(out, st.snapshot())
		}
	}
	return out
}

// Rules returns a snapshot of every rule, active or not, in order.
func (rs *RuleSet) Rules() []Rule {
	rs.mu.RLock()
	defer rs.mu.RUnlock()
	out := make([]Rule, 0, len(rs.ordered))
	for _, st := range rs.ordered {
		out = append(out, st.snapshot())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Order < out[j].Order })
	return out
}

// Cursor returns the live round-robin cursor for a rule. The dispatcher
// locks it across select-reserve so same-rule dispatches serialize.
func (rs *RuleSet) Cursor(ruleID string) (*strategy.Cursor, bool) {
	rs.mu.RLock()
	defer rs.mu.RUnlock()
	st, ok := rs.byID[ruleID]
	if !ok {
		return nil, false
	}
	return st.cursor, true
}

// RecordMatch increments a rule's matched counter. Called only by the
// dispatcher after a successful assignment. Unknown IDs (rule deleted since
// the snapshot) are ignored.
func (rs *RuleSet) RecordMatch(ruleID string) {
	rs.mu.RLock()
	st, ok := rs.byID[ruleID]
	rs.mu.RUnlock()
	if ok {
		st.matched.Add(1)
	}
}

// snapshot builds a detached Rule copy. Callers hold at least the read lock.
func (st *ruleState) snapshot() Rule {
	r := st.rule
	r.Pool = append([]string(nil), st.rule.Pool...)
	r.Matched = st.matched.Load()
	return r
}

// equalPools reports whether two pools hold the same IDs in the same order.
func equalPools(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Package strategy implements the assignment strategies that pick one
// executor from a rule's pre-filtered candidate pool. The strategy set is a
// closed enum dispatching to a pure selection function per kind; selection
// never mutates executor load, and round-robin state lives in a per-rule
// Cursor owned by the rule set.
package strategy

import (
	"fmt"
	"strings"
	"sync"
)

// Kind identifies an assignment strategy.
type Kind string

// Strategy constants.
const (
	RoundRobin  Kind = "round_robin"
	LeastLoaded Kind = "least_loaded"
)

// Valid reports whether k is a known strategy kind.
func (k Kind) Valid() bool {
	switch k {
	case RoundRobin, LeastLoaded:
		return true
	default:
		return false
	}
}

// ParseKind converts a strategy name into a Kind. It accepts both the
// canonical snake_case form and the spaced display form ("Round Robin"),
// case-insensitively.
func ParseKind(s string) (Kind, error) {
	normalized := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), " ", "_")
	k := Kind(normalized)
	if !k.Valid() {
		return "", fmt.Errorf("unknown strategy %q", s)
	}
	return k, nil
}

// Candidate is a pre-filtered executor eligible for selection: present in
// the rule's pool, available, under capacity, and skill-matched. PoolIndex
// is the executor's position in the rule's ordered pool; candidates are
// always presented in ascending PoolIndex order.
type Candidate struct {
	ID        string
	PoolIndex int
	Load      int
}

// Select dispatches to the selection function for k. Returns false when the
// candidate list is empty. Implementations can assume candidates are sorted
// by PoolIndex.
func Select(k Kind, candidates []Candidate, last int) (Candidate, bool) {
	switch k {
	case RoundRobin:
		return selectRoundRobin(candidates, last)
	case LeastLoaded:
		return selectLeastLoaded(candidates)
	default:
		return Candidate{}, false
	}
}

// selectRoundRobin returns the candidate whose pool position follows last
// (wrapping). Fairness is by pool-position rotation, not by call count, so
// a skipped ineligible executor does not consume a turn for the executors
// ranked after it. last is -1 before any assignment.
func selectRoundRobin(candidates []Candidate, last int) (Candidate, bool) {
	if len(candidates) == 0 {
		return Candidate{}, false
	}
	// First candidate strictly after the cursor position.
	for _, c := range candidates {
		if c.PoolIndex > last {
			return c, true
		}
	}
	// Wrap to the earliest pool position.
	return candidates[0], true
}

// selectLeastLoaded returns the candidate with minimum load. Ties break by
// earliest pool position, which the ascending PoolIndex order gives for
// free, so identical inputs always produce identical output.
func selectLeastLoaded(candidates []Candidate) (Candidate, bool) {
	if len(candidates) == 0 {
		return Candidate{}, false
	}
	best := candidates[0]
	for _, c := range candidates[1:] {
		if c.Load < best.Load {
			best = c
		}
	}
	return best, true
}

// Cursor holds a rule's round-robin position: the pool index of the last
// successfully assigned executor, -1 initially and after a pool edit. The
// embedded mutex is the per-rule lock; the dispatcher holds it across its
// whole select-reserve sequence so concurrent dispatches matching the same
// rule serialize on it.
type Cursor struct {
	sync.Mutex
	last int
}

// NewCursor returns a cursor positioned before the first pool entry.
func NewCursor() *Cursor {
	return &Cursor{last: -1}
}

// Last returns the stored pool index. Callers must hold the cursor lock.
func (c *Cursor) Last() int { return c.last }

// Advance records a successful assignment at the given pool index. Callers
// must hold the cursor lock.
func (c *Cursor) Advance(poolIndex int) { c.last = poolIndex }

// Reset moves the cursor back before the first pool entry. Called when the
// rule's pool is edited. Acquires the lock itself.
func (c *Cursor) Reset() {
	c.Lock()
	defer c.Unlock()
	c.last = -1
}

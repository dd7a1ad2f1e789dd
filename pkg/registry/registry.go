// Package registry maintains the authoritative in-memory view of executors:
// their skills, availability, and current versus maximum concurrent load.
// TryReserve/Release form the engine's only mandatory mutual-exclusion
// boundary; every mutation of an executor's load goes through a single
// per-executor lock so a check-and-increment is one atomic step.
package registry

import (
	"sort"
	"strings"
	"sync"
)

// Availability is an executor's presence state, fed by an external
// directory/presence collaborator.
type Availability string

// Availability constants.
const (
	Available Availability = "available"
	Busy      Availability = "busy"    // hard exclusion from new assignments, independent of load
	Offline   Availability = "offline" // blocks new assignments; existing ones are not evicted
)

// Valid reports whether a is a known availability state.
func (a Availability) Valid() bool {
	switch a {
	case Available, Busy, Offline:
		return true
	default:
		return false
	}
}

// ParseAvailability converts a case-insensitive string into an Availability.
func ParseAvailability(s string) (Availability, bool) {
	a := Availability(strings.ToLower(strings.TrimSpace(s)))
	return a, a.Valid()
}

// Executor is a snapshot of one worker's registry state. Snapshots are value
// copies; mutating one has no effect on the registry.
type Executor struct {
	ID           string       `json:"id"`
	Name         string       `json:"name"`
	Skills       []string     `json:"skills,omitempty"`
	Availability Availability `json:"availability"`
	CurrentLoad  int          `json:"current_load"`
	MaxLoad      int          `json:"max_load"`
}

// HasSkill reports whether the executor carries the given skill tag.
// Comparison is case-insensitive, matching condition evaluation.
func (e Executor) HasSkill(skill string) bool {
	for _, s := range e.Skills {
		if strings.EqualFold(s, skill) {
			return true
		}
	}
	return false
}

// entry is the mutable registry record for one executor. Its mutex guards
// every field so reserve is a single atomic check-and-increment.
type entry struct {
	mu sync.Mutex
	ex Executor
}

// Registry is the concurrent-safe executor directory. The outer RWMutex
// guards only the map; per-executor state is guarded by each entry's own
// lock, keeping reservation contention local to one executor.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*entry
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]*entry)}
}

// Add registers an executor. MaxLoad must be positive and CurrentLoad within
// bounds; availability defaults to Available when unset.
func (r *Registry) Add(ex Executor) error {
	if ex.ID == "" {
		return &ValidationError{ExecutorID: ex.ID, Reason: "empty id"}
	}
	if ex.MaxLoad < 1 {
		return &ValidationError{ExecutorID: ex.ID, Reason: "max load must be positive"}
	}
	if ex.CurrentLoad < 0 || ex.CurrentLoad > ex.MaxLoad {
		return &ValidationError{ExecutorID: ex.ID, Reason: "current load out of bounds"}
	}
	if ex.Availability == "" {
		ex.Availability = Available
	}
	if !ex.Availability.Valid() {
		return &ValidationError{ExecutorID: ex.ID, Reason: "unknown availability state"}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.entries[ex.ID]; exists {
		return &ValidationError{ExecutorID: ex.ID, Reason: "duplicate id"}
	}
	r.entries[ex.ID] = &entry{ex: ex}
	return nil
}

// lookup returns the live entry for id, or a NotFoundError.
func (r *Registry) lookup(id string) (*entry, error) {
	r.mu.RLock()
	e, ok := r.entries[id]
	r.mu.RUnlock()
	if !ok {
		return nil, &NotFoundError{ExecutorID: id}
	}
	return e, nil
}

// Get returns a snapshot of the executor with the given ID.
func (r *Registry) Get(id string) (Executor, error) {
	e, err := r.lookup(id)
	if err != nil {
		return Executor{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ex, nil
}

// Exists reports whether the registry knows the given executor ID. Used by
// rule-pool validation.
func (r *Registry) Exists(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.entries[id]
	return ok
}

// TryReserve atomically checks that the executor is Available and under its
// maximum load, then increments its current load. Two simultaneous
// reservations against the last free slot cannot both succeed.
func (r *Registry) TryReserve(id string) error {
	e, err := r.lookup(id)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.ex.Availability != Available {
		return &NotAvailableError{ExecutorID: id, Availability: e.ex.Availability}
	}
	if e.ex.CurrentLoad >= e.ex.MaxLoad {
		return &CapacityError{ExecutorID: id, MaxLoad: e.ex.MaxLoad}
	}
	e.ex.CurrentLoad++
	return nil
}

// Release decrements the executor's current load, floored at zero. Releasing
// an unloaded executor is a no-op so duplicate release signals are tolerated.
func (r *Registry) Release(id string) error {
	e, err := r.lookup(id)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.ex.CurrentLoad > 0 {
		e.ex.CurrentLoad--
	}
	return nil
}

// SetAvailability applies an external presence update. Transitioning to
// Offline does not evict existing assignments; it only blocks new ones.
func (r *Registry) SetAvailability(id string, state Availability) error {
	if !state.Valid() {
		return &ValidationError{ExecutorID: id, Reason: "unknown availability state"}
	}
	e, err := r.lookup(id)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.ex.Availability = state
	return nil
}

// SetMaxLoad adjusts an executor's capacity ceiling. Shrinking below the
// current load does not evict assignments; the executor simply accepts no
// new work until its load drains under the new ceiling.
func (r *Registry) SetMaxLoad(id string, max int) error {
	if max < 1 {
		return &ValidationError{ExecutorID: id, Reason: "max load must be positive"}
	}
	e, err := r.lookup(id)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.ex.MaxLoad = max
	return nil
}

// Snapshot returns value copies of all executors, sorted by ID for
// deterministic display.
func (r *Registry) Snapshot() []Executor {
	r.mu.RLock()
	entries := make([]*entry, 0, len(r.entries))
	for _, e := range r.entries {
		entries = append(entries, e)
	}
	r.mu.RUnlock()

	out := make([]Executor, 0, len(entries))
	for _, e := range entries {
		e.mu.Lock()
		out = append(out, e.ex)
		e.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

package server

import (
	"triage/pkg/engine"
	"triage/pkg/registry"
	"triage/pkg/rules"
	"triage/pkg/ticket"
)

// Operation names accepted over the socket.
const (
	OpDispatch        = "dispatch"
	OpRelease         = "release"
	OpSetAvailability = "presence.set"
	OpSetMaxLoad      = "presence.maxload"
	OpRulesList       = "rules.list"
	OpRuleActivate    = "rules.activate"
	OpRuleDeactivate  = "rules.deactivate"
	OpRuleReorder     = "rules.reorder"
	OpRuleSetPool     = "rules.setpool"
	OpStatus          = "status"
)

// Request is one line-delimited JSON request from a client. Fields beyond
// Op are populated per operation.
type Request struct {
	Op string `json:"op"`

	Ticket       *ticket.Ticket `json:"ticket,omitempty"`        // dispatch
	AssignmentID string         `json:"assignment_id,omitempty"` // release
	ExecutorID   string         `json:"executor_id,omitempty"`   // presence ops
	Availability string         `json:"availability,omitempty"`  // presence.set
	MaxLoad      int            `json:"max_load,omitempty"`      // presence.maxload
	RuleID       string         `json:"rule_id,omitempty"`       // rule ops
	Order        int            `json:"order,omitempty"`         // rules.reorder
	Pool         []string       `json:"pool,omitempty"`          // rules.setpool
}

// Response is the single JSON line answering a Request. Expected business
// outcomes (unmatched, no candidate) come back inside Result with OK true;
// Error is reserved for operation failures.
type Response struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`

	Result      *engine.Result      `json:"result,omitempty"`      // dispatch
	Executors   []registry.Executor `json:"executors,omitempty"`   // status
	Rules       []rules.Rule        `json:"rules,omitempty"`       // rules.list, status
	Assignments []engine.Assignment `json:"assignments,omitempty"` // status
}

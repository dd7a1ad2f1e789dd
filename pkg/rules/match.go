package rules

import (
	"strings"

	"triage/pkg/ticket"
)

// Any is the wildcard condition value matching every ticket field.
const Any = "Any"

// Conditions describe which tickets a rule applies to. Each field is either
// a concrete value or the wildcard Any.
type Conditions struct {
	Category string `json:"category"`
	Priority string `json:"priority"`
	Type     string `json:"type"`
}

// isWildcard reports whether v is the Any wildcard (case-insensitive).
func isWildcard(v string) bool {
	return strings.EqualFold(v, Any)
}

// fieldMatches applies the exact-or-wildcard policy for one condition field.
// An empty ticket field never matches a non-wildcard condition (fail closed).
func fieldMatches(cond, value string) bool {
	if isWildcard(cond) {
		return true
	}
	if value == "" {
		return false
	}
	return strings.EqualFold(cond, value)
}

// Matches evaluates a rule's conditions against a ticket. All three fields
// must match (logical AND); comparison is case-insensitive exact-or-wildcard
// only, keeping evaluation deterministic and auditable.
func Matches(c Conditions, tk ticket.Ticket) bool {
	return fieldMatches(c.Category, tk.Category) &&
		fieldMatches(c.Priority, string(tk.Priority)) &&
		fieldMatches(c.Type, tk.Type)
}

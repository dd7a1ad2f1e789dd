// Package ticket defines the ticket model consumed by the allocation engine.
// Tickets are produced by external intake (web form, email gateway); the
// engine only reads them.
package ticket

import (
	"fmt"
	"strings"
)

// Priority classifies ticket urgency. Stored as its display string so config
// files and wire payloads stay human-readable.
type Priority string

// Priority constants, lowest to highest.
const (
	PriorityLow      Priority = "Low"
	PriorityMedium   Priority = "Medium"
	PriorityHigh     Priority = "High"
	PriorityCritical Priority = "Critical"
)

// Valid reports whether p is one of the four known priority values.
func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical:
		return true
	default:
		return false
	}
}

// ParsePriority converts a case-insensitive string into a Priority.
func ParsePriority(s string) (Priority, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "low":
		return PriorityLow, nil
	case "medium":
		return PriorityMedium, nil
	case "high":
		return PriorityHigh, nil
	case "critical":
		return PriorityCritical, nil
	default:
		return "", fmt.Errorf("unknown priority %q", s)
	}
}

// Ticket is a single support request awaiting assignment.
type Ticket struct {
	ID            string   `json:"id"`
	Category      string   `json:"category"`
	Priority      Priority `json:"priority"`
	Type          string   `json:"type"`
	RequiredSkill string   `json:"required_skill,omitempty"` // empty = no skill constraint
}

package rules

import (
	"fmt"
	"strings"
)

// NotFoundError reports a lookup of a rule ID the rule set does not hold.
type NotFoundError struct {
	RuleID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("rule %s not found", e.RuleID)
}

// InvalidPoolError reports a rule whose executor pool references IDs the
// executor directory does not know. Raised at configuration time, where it
// surfaces to the configuring operator, never at dispatch time.
type InvalidPoolError struct {
	RuleID  string
	Unknown []string
}

func (e *InvalidPoolError) Error() string {
	return fmt.Sprintf("rule %s pool references unknown executors: %s",
		e.RuleID, strings.Join(e.Unknown, ", "))
}

// ValidationError reports a malformed rule definition.
type ValidationError struct {
	RuleID string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("rule %s invalid: %s", e.RuleID, e.Reason)
}

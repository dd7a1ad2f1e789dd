package rules //nolint:testpackage // white-box tests share package helpers

import (
	"testing"

	"triage/pkg/ticket"
)

func TestMatches(t *testing.T) {
	t.Parallel()

	hvacCritical := ticket.Ticket{
		ID:       "t-1",
		Category: "HVAC",
		Priority: ticket.PriorityCritical,
		Type:     "Repair",
	}

	cases := []struct {
		name string
		cond Conditions
		tk   ticket.Ticket
		want bool
	}{
		{
			name: "exact match all fields",
			cond: Conditions{Category: "HVAC", Priority: "Critical", Type: "Repair"},
			tk:   hvacCritical,
			want: true,
		},
		{
			name: "wildcard type",
			cond: Conditions{Category: "HVAC", Priority: "Critical", Type: Any},
			tk:   hvacCritical,
			want: true,
		},
		{
			name: "all wildcards",
			cond: Conditions{Category: Any, Priority: Any, Type: Any},
			tk:   hvacCritical,
			want: true,
		},
		{
			name: "case-insensitive comparison",
			cond: Conditions{Category: "hvac", Priority: "CRITICAL", Type: "repair"},
			tk:   hvacCritical,
			want: true,
		},
		{
			name: "case-insensitive wildcard",
			cond: Conditions{Category: "any", Priority: "ANY", Type: Any},
			tk:   hvacCritical,
			want: true,
		},
		{
			name: "category mismatch fails the whole rule",
			cond: Conditions{Category: "Plumbing", Priority: "Critical", Type: "Repair"},
			tk:   hvacCritical,
			want: false,
		},
		{
			name: "priority mismatch",
			cond: Conditions{Category: "HVAC", Priority: "Low", Type: Any},
			tk:   hvacCritical,
			want: false,
		},
		{
			name: "empty ticket field fails closed against concrete condition",
			cond: Conditions{Category: "HVAC", Priority: "Critical", Type: "Repair"},
			tk:   ticket.Ticket{Category: "HVAC", Priority: ticket.PriorityCritical},
			want: false,
		},
		{
			name: "empty ticket field passes a wildcard",
			cond: Conditions{Category: "HVAC", Priority: "Critical", Type: Any},
			tk:   ticket.Ticket{Category: "HVAC", Priority: ticket.PriorityCritical},
			want: true,
		},
		{
			name: "fully empty ticket only matches all-wildcard rule",
			cond: Conditions{Category: Any, Priority: Any, Type: Any},
			tk:   ticket.Ticket{},
			want: true,
		},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := Matches(tc.cond, tc.tk); got != tc.want {
				t.Errorf("Matches(%+v, %+v) = %v, want %v", tc.cond, tc.tk, got, tc.want)
			}
		})
	}
}

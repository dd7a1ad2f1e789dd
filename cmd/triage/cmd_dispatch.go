package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"triage/pkg/engine"
	"triage/pkg/server"
	"triage/pkg/ticket"
)

// newDispatchCmd creates the "triage dispatch" subcommand: it submits one
// ticket to the running engine and reports the decision.
func newDispatchCmd() *cobra.Command {
	var socketPath string
	var ticketID string
	var category string
	var priority string
	var ticketType string
	var skill string

	cmd := &cobra.Command{
		Use:   "dispatch",
		Short: "Dispatch one ticket through the allocation rules",
		RunE: func(cmd *cobra.Command, _ []string) error {
			prio, err := ticket.ParsePriority(priority)
			if err != nil {
				return err
			}

			client, err := newClient(socketPath)
			if err != nil {
				return err
			}
			resp, err := client.Do(cmd.Context(), server.Request{
				Op: server.OpDispatch,
				Ticket: &ticket.Ticket{
					ID:            ticketID,
					Category:      category,
					Priority:      prio,
					Type:          ticketType,
					RequiredSkill: skill,
				},
			})
			if err != nil {
				return err
			}

			printResult(cmd.OutOrStdout(), resp.Result)
			return nil
		},
	}

	cmd.Flags().StringVar(&socketPath, "socket", "", "UDS socket path")
	cmd.Flags().StringVar(&ticketID, "id", "", "ticket id (generated when omitted)")
	cmd.Flags().StringVar(&category, "category", "", "ticket category")
	cmd.Flags().StringVar(&priority, "priority", "", "ticket priority (low|medium|high|critical)")
	cmd.Flags().StringVar(&ticketType, "type", "", "ticket type")
	cmd.Flags().StringVar(&skill, "skill", "", "required executor skill")
	_ = cmd.MarkFlagRequired("category")
	_ = cmd.MarkFlagRequired("priority")
	return cmd
}

// printResult renders one dispatch outcome for the operator.
func printResult(w io.Writer, res *engine.Result) {
	if res == nil {
		fmt.Fprintln(w, "no result")
		return
	}
	switch res.Outcome {
	case engine.OutcomeAssigned:
		a := res.Assignment
		fmt.Fprintf(w, "assigned: ticket %s -> executor %s (rule %s, assignment %s)\n",
			a.TicketID, a.ExecutorID, a.RuleID, a.ID)
	case engine.OutcomeUnmatched:
		fmt.Fprintln(w, "unmatched: no active rule applies; route manually")
	case engine.OutcomeNoCandidate:
		fmt.Fprintf(w, "no candidate: rule %s matched but no executor is eligible; escalate\n", res.RuleID)
	default:
		fmt.Fprintf(w, "unknown outcome %q\n", res.Outcome)
	}
}

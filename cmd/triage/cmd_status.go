package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"triage/pkg/server"
)

// newStatusCmd creates "triage status": a snapshot of executors, rules, and
// active assignments from a running engine.
func newStatusCmd() *cobra.Command {
	var socketPath string

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show executors, rules, and active assignments",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient(socketPath)
			if err != nil {
				return err
			}
			resp, err := client.Do(cmd.Context(), server.Request{Op: server.OpStatus})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()

			fmt.Fprintln(out, "Executors:")
			w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "  ID\tNAME\tAVAILABILITY\tLOAD\tSKILLS")
			for _, ex := range resp.Executors {
				fmt.Fprintf(w, "  %s\t%s\t%s\t%d/%d\t%s\n",
					ex.ID, ex.Name, ex.Availability, ex.CurrentLoad, ex.MaxLoad, joinSkills(ex.Skills))
			}
			w.Flush()

			fmt.Fprintln(out)
			fmt.Fprintln(out, "Rules:")
			printRules(cmd, resp.Rules)

			fmt.Fprintln(out)
			fmt.Fprintf(out, "Active assignments: %d\n", len(resp.Assignments))
			for _, a := range resp.Assignments {
				fmt.Fprintf(out, "  %s ticket=%s executor=%s rule=%s\n",
					a.ID, a.TicketID, a.ExecutorID, a.RuleID)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&socketPath, "socket", "", "UDS socket path")
	return cmd
}

func joinSkills(skills []string) string {
	if len(skills) == 0 {
		return "-"
	}
	return strings.Join(skills, ",")
}

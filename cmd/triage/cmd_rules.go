package main

import (
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"triage/pkg/rules"
	"triage/pkg/server"
)

// newRulesCmd creates the "triage rules" subcommand group for inspecting and
// administering the ordered rule set on a running engine.
func newRulesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "Inspect and administer allocation rules",
	}
	cmd.AddCommand(
		newRulesListCmd(),
		newRulesEnableCmd(),
		newRulesDisableCmd(),
		newRulesReorderCmd(),
		newRulesSetPoolCmd(),
	)
	return cmd
}

func newRulesListCmd() *cobra.Command {
	var socketPath string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List rules in evaluation order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient(socketPath)
			if err != nil {
				return err
			}
			resp, err := client.Do(cmd.Context(), server.Request{Op: server.OpRulesList})
			if err != nil {
				return err
			}
			printRules(cmd, resp.Rules)
			return nil
		},
	}

	cmd.Flags().StringVar(&socketPath, "socket", "", "UDS socket path")
	return cmd
}

func printRules(cmd *cobra.Command, rs []rules.Rule) {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ORDER\tID\tNAME\tCONDITIONS\tPOOL\tSTRATEGY\tACTIVE\tMATCHED")
	for _, r := range rs {
		cond := fmt.Sprintf("%s/%s/%s", r.Conditions.Category, r.Conditions.Priority, r.Conditions.Type)
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\t%v\t%d\n",
			r.Order, r.ID, r.Name, cond, strings.Join(r.Pool, ","), r.Strategy, r.Active, r.Matched)
	}
	w.Flush()
}

func newRulesEnableCmd() *cobra.Command {
	var socketPath string

	cmd := &cobra.Command{
		Use:   "enable <rule-id>",
		Short: "Activate a rule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient(socketPath)
			if err != nil {
				return err
			}
			if _, err := client.Do(cmd.Context(), server.Request{
				Op:     server.OpRuleActivate,
				RuleID: args[0],
			}); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "rule %s enabled\n", args[0])
			return nil
		},
	}

	cmd.Flags().StringVar(&socketPath, "socket", "", "UDS socket path")
	return cmd
}

func newRulesDisableCmd() *cobra.Command {
	var socketPath string

	cmd := &cobra.Command{
		Use:   "disable <rule-id>",
		Short: "Deactivate a rule without deleting it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient(socketPath)
			if err != nil {
				return err
			}
			if _, err := client.Do(cmd.Context(), server.Request{
				Op:     server.OpRuleDeactivate,
				RuleID: args[0],
			}); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "rule %s disabled\n", args[0])
			return nil
		},
	}

	cmd.Flags().StringVar(&socketPath, "socket", "", "UDS socket path")
	return cmd
}

func newRulesReorderCmd() *cobra.Command {
	var socketPath string

	cmd := &cobra.Command{
		Use:   "reorder <rule-id> <order>",
		Short: "Move a rule to a new position in the evaluation order",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			order, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("parse order %q: %w", args[1], err)
			}
			client, err := newClient(socketPath)
			if err != nil {
				return err
			}
			if _, err := client.Do(cmd.Context(), server.Request{
				Op:     server.OpRuleReorder,
				RuleID: args[0],
				Order:  order,
			}); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "rule %s -> order %d\n", args[0], order)
			return nil
		},
	}

	cmd.Flags().StringVar(&socketPath, "socket", "", "UDS socket path")
	return cmd
}

func newRulesSetPoolCmd() *cobra.Command {
	var socketPath string

	cmd := &cobra.Command{
		Use:   "set-pool <rule-id> <executor-id>...",
		Short: "Replace a rule's executor pool",
		Long: `Replaces the rule's executor pool. The rotation cursor resets, so the
next round-robin pick starts from the front of the new pool.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient(socketPath)
			if err != nil {
				return err
			}
			if _, err := client.Do(cmd.Context(), server.Request{
				Op:     server.OpRuleSetPool,
				RuleID: args[0],
				Pool:   args[1:],
			}); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "rule %s pool -> [%s]\n", args[0], strings.Join(args[1:], ", "))
			return nil
		},
	}

	cmd.Flags().StringVar(&socketPath, "socket", "", "UDS socket path")
	return cmd
}

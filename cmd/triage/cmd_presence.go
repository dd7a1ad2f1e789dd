package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"triage/pkg/server"
)

// newPresenceCmd creates the "triage presence" subcommand group, the entry
// point for the external directory/presence feed.
func newPresenceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "presence",
		Short: "Update executor availability and capacity",
	}
	cmd.AddCommand(newPresenceSetCmd(), newPresenceMaxLoadCmd())
	return cmd
}

// newPresenceSetCmd creates "triage presence set <executor> <state>".
func newPresenceSetCmd() *cobra.Command {
	var socketPath string

	cmd := &cobra.Command{
		Use:   "set <executor-id> <available|busy|offline>",
		Short: "Set an executor's availability state",
		Long: `Sets an executor's availability. Going offline blocks new assignments
but never evicts work already assigned.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient(socketPath)
			if err != nil {
				return err
			}
			if _, err := client.Do(cmd.Context(), server.Request{
				Op:           server.OpSetAvailability,
				ExecutorID:   args[0],
				Availability: args[1],
			}); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "executor %s -> %s\n", args[0], args[1])
			return nil
		},
	}

	cmd.Flags().StringVar(&socketPath, "socket", "", "UDS socket path")
	return cmd
}

// newPresenceMaxLoadCmd creates "triage presence maxload <executor> <n>".
func newPresenceMaxLoadCmd() *cobra.Command {
	var socketPath string

	cmd := &cobra.Command{
		Use:   "maxload <executor-id> <n>",
		Short: "Set an executor's maximum concurrent load",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("parse max load %q: %w", args[1], err)
			}
			client, err := newClient(socketPath)
			if err != nil {
				return err
			}
			if _, err := client.Do(cmd.Context(), server.Request{
				Op:         server.OpSetMaxLoad,
				ExecutorID: args[0],
				MaxLoad:    n,
			}); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "executor %s max load -> %d\n", args[0], n)
			return nil
		},
	}

	cmd.Flags().StringVar(&socketPath, "socket", "", "UDS socket path")
	return cmd
}

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"triage/pkg/server"
)

// newReleaseCmd creates the "triage release" subcommand: it returns an
// assignment's capacity when the ticket closes or is reassigned.
func newReleaseCmd() *cobra.Command {
	var socketPath string

	cmd := &cobra.Command{
		Use:   "release <assignment-id>",
		Short: "Release an assignment's capacity",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient(socketPath)
			if err != nil {
				return err
			}
			if _, err := client.Do(cmd.Context(), server.Request{
				Op:           server.OpRelease,
				AssignmentID: args[0],
			}); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "released %s\n", args[0])
			return nil
		},
	}

	cmd.Flags().StringVar(&socketPath, "socket", "", "UDS socket path")
	return cmd
}

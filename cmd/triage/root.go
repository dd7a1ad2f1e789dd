package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"triage/internal/buildinfo"
)

// newRootCmd creates the root triage command with all subcommands attached.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "triage",
		Short:         "Ticket allocation engine",
		Long:          "triage assigns incoming facility tickets to executors\nusing ordered allocation rules, per-executor capacity and availability.",
		Version:       fmt.Sprintf("triage %s", buildinfo.String()),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.SetVersionTemplate("{{.Version}}\n")

	cmd.AddCommand(
		newServeCmd(),
		newDispatchCmd(),
		newReleaseCmd(),
		newPresenceCmd(),
		newRulesCmd(),
		newStatusCmd(),
		newSimulateCmd(),
	)

	return cmd
}

package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"triage/pkg/config"
	"triage/pkg/engine"
	"triage/pkg/ticket"
)

// newSimulateCmd creates "triage simulate": replays a stream of tickets
// through an in-process engine built from a config file, without touching a
// running server. Useful for dry-running rule changes before deploying them.
func newSimulateCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "simulate <tickets.jsonl>",
		Short: "Replay a ticket stream against a config, in process",
		Long: `Reads one JSON ticket per line from the given file and dispatches each
through an engine built fresh from --config. Nothing is persisted and no
server is contacted; load accumulates across the run so later tickets see
the capacity consumed by earlier ones.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			reg, rs, err := config.Build(cfg)
			if err != nil {
				return err
			}
			disp := engine.New(reg, rs, nil)

			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("open ticket stream: %w", err)
			}
			defer f.Close()

			var assigned, unmatched, noCandidate int
			perExecutor := map[string]int{}

			scanner := bufio.NewScanner(f)
			line := 0
			for scanner.Scan() {
				line++
				raw := scanner.Bytes()
				if len(raw) == 0 {
					continue
				}
				var tk ticket.Ticket
				if err := json.Unmarshal(raw, &tk); err != nil {
					return fmt.Errorf("line %d: %w", line, err)
				}
				if tk.ID == "" {
					tk.ID = fmt.Sprintf("sim-%d", line)
				}

				res := disp.Dispatch(cmd.Context(), tk)
				switch res.Outcome {
				case engine.OutcomeAssigned:
					assigned++
					perExecutor[res.Assignment.ExecutorID]++
				case engine.OutcomeUnmatched:
					unmatched++
				case engine.OutcomeNoCandidate:
					noCandidate++
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: ", tk.ID)
				printResult(cmd.OutOrStdout(), &res)
			}
			if err := scanner.Err(); err != nil {
				return fmt.Errorf("read ticket stream: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out)
			fmt.Fprintf(out, "%d tickets: %d assigned, %d unmatched, %d without candidate\n",
				line, assigned, unmatched, noCandidate)

			w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "EXECUTOR\tASSIGNED\tLOAD")
			for _, ex := range reg.Snapshot() {
				fmt.Fprintf(w, "%s\t%d\t%d/%d\n", ex.ID, perExecutor[ex.ID], ex.CurrentLoad, ex.MaxLoad)
			}
			w.Flush()
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to executors and rules config")
	_ = cmd.MarkFlagRequired("config")
	return cmd
}

package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"triage/pkg/auditlog"
	"triage/pkg/config"
	"triage/pkg/engine"
	"triage/pkg/server"
)

// newServeCmd creates the "triage serve" subcommand: it loads the seed
// configuration, builds the engine, and serves it over the UDS socket until
// interrupted.
func newServeCmd() *cobra.Command {
	var configPath string
	var socketPath string
	var dbPath string
	var noAudit bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the allocation engine",
		Long: `Loads executors and allocation rules from the configuration file,
then serves dispatch, presence and rule-admin operations over a Unix socket.
Every terminal dispatch outcome is recorded to the SQLite audit log.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			paths, err := ResolvePaths()
			if err != nil {
				return fmt.Errorf("resolve paths: %w", err)
			}
			if socketPath == "" {
				socketPath = paths.SocketPath
			}
			if dbPath == "" {
				dbPath = paths.AuditDBPath
			}

			f, err := config.Load(configPath)
			if err != nil {
				return err
			}
			reg, rs, err := config.Build(f)
			if err != nil {
				return fmt.Errorf("build engine state: %w", err)
			}

			if err := os.MkdirAll(paths.TriageHome, 0o700); err != nil {
				return fmt.Errorf("create state dir: %w", err)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			var recorder *auditlog.Recorder
			if !noAudit {
				db, err := openDB(dbPath)
				if err != nil {
					return err
				}
				defer func() { _ = db.Close() }()
				recorder, err = auditlog.NewRecorder(ctx, db)
				if err != nil {
					return err
				}
			}

			var auditRec engine.Recorder
			var presenceRec server.PresenceRecorder
			if recorder != nil {
				auditRec = recorder
				presenceRec = recorder
			}

			eng := engine.New(reg, rs, auditRec)
			srv := server.New(server.Config{SocketPath: socketPath}, eng, presenceRec)

			log.Printf("serve: %d executors, %d rules, socket %s",
				len(reg.Snapshot()), len(rs.Rules()), socketPath)
			return srv.Run(ctx)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to the YAML or TOML configuration file")
	cmd.Flags().StringVar(&socketPath, "socket", "", "UDS socket path (default: $TRIAGE_HOME/triage.sock)")
	cmd.Flags().StringVar(&dbPath, "db", "", "audit database path (default: $TRIAGE_HOME/audit.db)")
	cmd.Flags().BoolVar(&noAudit, "no-audit", false, "disable the SQLite audit log")
	_ = cmd.MarkFlagRequired("config")
	return cmd
}

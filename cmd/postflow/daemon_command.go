package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"postflow/internal/config"
	"postflow/internal/daemon"
	"postflow/internal/logging"
	"postflow/internal/queue"
	"postflow/internal/workflow"
)

func newDaemonCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "daemon",
		Short: "Run cycles in the foreground until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			signalCtx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			return ctx.withStore(func(cfg *config.Config, store *queue.Store) error {
				if ctx.logLevelFlag != nil && strings.TrimSpace(*ctx.logLevelFlag) != "" {
					cfg.Logging.Level = strings.TrimSpace(*ctx.logLevelFlag)
				}
				logger, err := logging.NewFromConfig(cfg)
				if err != nil {
					return fmt.Errorf("init logger: %w", err)
				}

				orch, err := workflow.Build(cfg, store, workflow.BuildOptions{Logger: logger})
				if err != nil {
					return err
				}
				d, err := daemon.New(cfg, store, logger, orch)
				if err != nil {
					return fmt.Errorf("create daemon: %w", err)
				}

				logger.Info("postflow daemon starting",
					logging.String("database", cfg.DatabasePath()),
					logging.Int("pid", os.Getpid()),
				)
				if err := d.Run(signalCtx); err != nil {
					if errors.Is(err, daemon.ErrAlreadyRunning) {
						return fmt.Errorf("%w (lock %s)", err, cfg.LockPath())
					}
					return err
				}
				logger.Info("postflow daemon shutting down")
				return nil
			})
		},
	}
}

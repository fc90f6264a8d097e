package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"postflow/internal/config"
	"postflow/internal/notifications"
	"postflow/internal/preflight"
	"postflow/internal/queue"
	"postflow/internal/workflow"
)

func newHealthCommand(ctx *commandContext) *cobra.Command {
	var notify bool

	cmd := &cobra.Command{
		Use:   "health",
		Short: "Check directories, the item store and remote services",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := ctx.commandLogger()
			if err != nil {
				return err
			}
			return ctx.withStore(func(cfg *config.Config, store *queue.Store) error {
				out := cmd.OutOrStdout()
				colorize := shouldColorize(out)

				fmt.Fprintln(out, "Preflight")
				results := preflight.RunAll(cmd.Context(), cfg, store)
				healthy := preflight.Passed(results)
				for _, result := range results {
					kind := statusOK
					if !result.Passed {
						kind = statusError
					}
					fmt.Fprintln(out, renderStatusLine(result.Name, kind, result.Detail, colorize))
				}

				fmt.Fprintln(out, "Stages")
				orch, err := workflow.Build(cfg, store, workflow.BuildOptions{Logger: logger})
				if err != nil {
					healthy = false
					fmt.Fprintln(out, renderStatusLine("wiring", statusError, err.Error(), colorize))
				} else {
					for _, h := range orch.Health(cmd.Context()) {
						kind := statusOK
						if !h.Ready {
							kind = statusError
							healthy = false
						}
						fmt.Fprintln(out, renderStatusLine(h.Name, kind, h.Detail, colorize))
					}
				}

				if notify {
					fmt.Fprintln(out, "Notifications")
					fmt.Fprintln(out, sendTestNotification(cmd, cfg, colorize))
				}

				if !healthy {
					return errors.New("health checks failed")
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&notify, "notify", false, "Also send a test notification")
	return cmd
}

func sendTestNotification(cmd *cobra.Command, cfg *config.Config, colorize bool) string {
	if strings.TrimSpace(cfg.Notifications.NtfyTopic) == "" {
		return renderStatusLine("ntfy", statusWarn, "ntfy topic not configured", colorize)
	}
	if err := notifications.NewService(cfg).Publish(cmd.Context(), notifications.EventTest, nil); err != nil {
		return renderStatusLine("ntfy", statusError, err.Error(), colorize)
	}
	return renderStatusLine("ntfy", statusOK, "test notification sent", colorize)
}

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"postflow/internal/config"
	"postflow/internal/queue"
)

func newMetricsCommand(ctx *commandContext) *cobra.Command {
	metricsCmd := &cobra.Command{
		Use:   "metrics",
		Short: "Engagement counters of published items",
	}
	metricsCmd.AddCommand(newMetricsRecordCommand(ctx))
	return metricsCmd
}

func newMetricsRecordCommand(ctx *commandContext) *cobra.Command {
	var likes, comments, saves, shares int64

	cmd := &cobra.Command{
		Use:   "record <id>",
		Short: "Store measured engagement for a published item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseItemID(args[0])
			if err != nil {
				return err
			}
			return ctx.withStore(func(_ *config.Config, store *queue.Store) error {
				item, err := store.GetByID(cmd.Context(), id)
				if err != nil {
					return err
				}
				if item == nil {
					return fmt.Errorf("item %d not found", id)
				}

				// Counters not given on the command line keep their stored value.
				engagement := item.Engagement
				flags := cmd.Flags()
				if flags.Changed("likes") {
					engagement.Likes = likes
				}
				if flags.Changed("comments") {
					engagement.Comments = comments
				}
				if flags.Changed("saves") {
					engagement.Saves = saves
				}
				if flags.Changed("shares") {
					engagement.Shares = shares
				}

				updated, err := store.RecordEngagement(cmd.Context(), id, item.Revision, engagement)
				if err != nil {
					return err
				}
				e := updated.Engagement
				fmt.Fprintf(cmd.OutOrStdout(), "Item %d: likes=%d comments=%d saves=%d shares=%d\n",
					id, e.Likes, e.Comments, e.Saves, e.Shares)
				return nil
			})
		},
	}

	cmd.Flags().Int64Var(&likes, "likes", 0, "Like count")
	cmd.Flags().Int64Var(&comments, "comments", 0, "Comment count")
	cmd.Flags().Int64Var(&saves, "saves", 0, "Save count")
	cmd.Flags().Int64Var(&shares, "shares", 0, "Share count")
	return cmd
}

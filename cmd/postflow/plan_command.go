package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"postflow/internal/catalog"
	"postflow/internal/config"
	"postflow/internal/planner"
	"postflow/internal/queue"
)

func newPlanCommand(ctx *commandContext) *cobra.Command {
	var days int
	var startFlag string

	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Create one draft per calendar day",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := ctx.commandLogger()
			if err != nil {
				return err
			}
			return ctx.withStore(func(cfg *config.Config, store *queue.Store) error {
				if !cmd.Flags().Changed("days") {
					days = cfg.Planner.HorizonDays
				}
				if days <= 0 {
					return fmt.Errorf("--days must be positive, got %d", days)
				}
				start, err := parseDay(cfg, startFlag)
				if err != nil {
					return err
				}
				cat, err := catalog.Load(cfg.Paths.CatalogPath)
				if err != nil {
					return fmt.Errorf("load catalog: %w", err)
				}
				loc, err := cfg.Location()
				if err != nil {
					return err
				}
				p := planner.New(store, cat, loc, nil, logger)
				if start.IsZero() {
					start = p.Today()
				}

				result, err := p.Plan(cmd.Context(), start, days)
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				rows := make([][]string, 0, days)
				for _, entry := range p.Calendar(start, days) {
					rows = append(rows, []string{entry.Slot, string(entry.Kind), dash(entry.Sign + entry.Theme)})
				}
				fmt.Fprint(out, renderTable([]string{"Day", "Kind", "Topic"}, rows, nil))
				fmt.Fprintf(out, "Planned %d new drafts (%d days already planned)\n", result.Advanced, result.Skipped)
				return nil
			})
		},
	}

	cmd.Flags().IntVarP(&days, "days", "d", 0, "Number of days to plan (default planner.horizon_days)")
	cmd.Flags().StringVar(&startFlag, "start", "", "First day to plan, YYYY-MM-DD (default today)")
	return cmd
}

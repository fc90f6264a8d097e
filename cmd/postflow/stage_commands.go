package main

import (
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"postflow/internal/config"
	"postflow/internal/stageexec"
	"postflow/internal/workflow"
)

func newStageCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var startFlag, endFlag string

	cmd := &cobra.Command{
		Use:       "stage <" + strings.Join(workflow.StageVerbs, "|") + ">",
		Short:     "Run one batch of a single stage",
		Args:      cobra.ExactArgs(1),
		ValidArgs: workflow.StageVerbs,
		RunE: func(cmd *cobra.Command, args []string) error {
			verb := strings.ToLower(strings.TrimSpace(args[0]))
			if !slices.Contains(workflow.StageVerbs, verb) {
				return fmt.Errorf("unknown stage %q (want one of %s)", args[0], strings.Join(workflow.StageVerbs, ", "))
			}
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			window, err := parseScheduleWindow(cfg, startFlag, endFlag)
			if err != nil {
				return err
			}
			return ctx.withOrchestrator(window, func(_ *config.Config, o *workflow.Orchestrator) error {
				result, err := o.RunStage(cmd.Context(), verb, limit)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprint(out, renderStageResults([]stageexec.Result{result}))
				printFailures(out, result.Failures, result.Transient)
				return nil
			})
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Maximum items to claim (default workflow.batch_size)")
	cmd.Flags().StringVar(&startFlag, "start", "", "Earliest publish day for the schedule stage, YYYY-MM-DD")
	cmd.Flags().StringVar(&endFlag, "end", "", "Last publish day for the schedule stage, YYYY-MM-DD")
	return cmd
}

func newRunCommand(ctx *commandContext) *cobra.Command {
	var planDays int
	var limit int
	var startFlag, endFlag string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Plan and run every stage once",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("plan-days") {
				planDays = cfg.Planner.HorizonDays
			}
			window, err := parseScheduleWindow(cfg, startFlag, endFlag)
			if err != nil {
				return err
			}
			return ctx.withOrchestrator(window, func(_ *config.Config, o *workflow.Orchestrator) error {
				summary, err := o.RunCycle(cmd.Context(), workflow.RunOptions{PlanDays: planDays, Limit: limit})
				out := cmd.OutOrStdout()
				if len(summary.Stages) > 0 {
					fmt.Fprint(out, renderStageResults(summary.Stages))
				}
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "Run %s: planned %d, advanced %d, published %d, failed %d, pending %d (%s)\n",
					summary.RunID, summary.Planned, summary.Advanced, summary.Published,
					summary.Failed, summary.Pending, summary.Duration.Round(time.Millisecond))
				printFailures(out, summary.Failures, nil)
				return nil
			})
		},
	}

	cmd.Flags().IntVar(&planDays, "plan-days", 0, "Days to plan ahead before running (default planner.horizon_days)")
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Maximum items per stage batch (default workflow.batch_size)")
	cmd.Flags().StringVar(&startFlag, "schedule-start", "", "Earliest publish day for the schedule stage, YYYY-MM-DD")
	cmd.Flags().StringVar(&endFlag, "schedule-end", "", "Last publish day for the schedule stage, YYYY-MM-DD")
	return cmd
}

func renderStageResults(results []stageexec.Result) string {
	rows := make([][]string, 0, len(results))
	for _, result := range results {
		rows = append(rows, []string{
			result.Stage,
			strconv.Itoa(result.Claimed),
			strconv.Itoa(result.Advanced),
			strconv.Itoa(result.Pending),
			strconv.Itoa(result.Failed),
			strconv.Itoa(result.Skipped),
			result.Duration.Round(time.Millisecond).String(),
		})
	}
	return renderTable(
		[]string{"Stage", "Claimed", "Advanced", "Pending", "Failed", "Skipped", "Duration"},
		rows,
		[]columnAlignment{alignLeft, alignRight, alignRight, alignRight, alignRight, alignRight, alignRight},
	)
}

func printFailures(out io.Writer, failed, transient []stageexec.Failure) {
	for _, failure := range failed {
		fmt.Fprintf(out, "Item %d failed: %s\n", failure.ItemID, failure.Reason)
	}
	for _, failure := range transient {
		fmt.Fprintf(out, "Item %d pending: %s\n", failure.ItemID, failure.Reason)
	}
}

package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"postflow/internal/config"
	"postflow/internal/queue"
)

func newQueueCommand(ctx *commandContext) *cobra.Command {
	queueCmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect items and return failed items to their stage",
	}

	queueCmd.AddCommand(newQueueStatusCommand(ctx))
	queueCmd.AddCommand(newQueueListCommand(ctx))
	queueCmd.AddCommand(newQueueShowCommand(ctx))
	queueCmd.AddCommand(newQueueRetryCommand(ctx))
	queueCmd.AddCommand(newQueueEventsCommand(ctx))

	return queueCmd
}

func newQueueStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show item counts per status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(_ *config.Config, store *queue.Store) error {
				stats, err := store.Stats(cmd.Context())
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				rows := buildQueueStatusRows(stats, shouldColorize(out))
				if len(rows) == 0 {
					fmt.Fprintln(out, "Queue is empty")
					return nil
				}
				fmt.Fprint(out, renderTable([]string{"Status", "Count"}, rows, []columnAlignment{alignLeft, alignRight}))
				return nil
			})
		},
	}
}

func newQueueListCommand(ctx *commandContext) *cobra.Command {
	var statusFlags []string
	var kindFlags []string
	var fromFlag, toFlag string
	var due bool
	var newest bool
	var limit uint64

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List items",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, store *queue.Store) error {
				filter := queue.Filter{Order: queue.OrderID, Limit: limit}
				for _, raw := range splitFlagValues(statusFlags) {
					status, ok := queue.ParseStatus(raw)
					if !ok {
						return fmt.Errorf("unknown status %q", raw)
					}
					filter.Statuses = append(filter.Statuses, status)
				}
				for _, raw := range splitFlagValues(kindFlags) {
					kind, ok := queue.ParseKind(raw)
					if !ok {
						return fmt.Errorf("unknown kind %q", raw)
					}
					filter.Kinds = append(filter.Kinds, kind)
				}
				from, err := parseDay(cfg, fromFlag)
				if err != nil {
					return err
				}
				to, err := parseDay(cfg, toFlag)
				if err != nil {
					return err
				}
				if !from.IsZero() {
					filter.PlannedFrom = &from
					filter.Order = queue.OrderPlanned
				}
				if !to.IsZero() {
					// --to is inclusive of the named day.
					end := to.AddDate(0, 0, 1)
					filter.PlannedTo = &end
					filter.Order = queue.OrderPlanned
				}
				if due {
					now := time.Now()
					filter.DueBy = &now
					filter.Order = queue.OrderPlanned
				}
				if newest {
					filter.Order = queue.OrderNewest
				}

				items, err := store.Query(cmd.Context(), filter)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(items) == 0 {
					fmt.Fprintln(out, "No matching items")
					return nil
				}
				loc, _ := cfg.Location()
				fmt.Fprint(out, renderTable(
					[]string{"ID", "Day", "Kind", "Topic", "Status", "Publish At", "Updated"},
					buildQueueListRows(items, loc, shouldColorize(out)),
					[]columnAlignment{alignRight},
				))
				return nil
			})
		},
	}

	cmd.Flags().StringSliceVarP(&statusFlags, "status", "s", nil, "Filter by status (repeatable)")
	cmd.Flags().StringSliceVarP(&kindFlags, "kind", "k", nil, "Filter by kind (repeatable)")
	cmd.Flags().StringVar(&fromFlag, "from", "", "Only items planned to publish on or after this day, YYYY-MM-DD")
	cmd.Flags().StringVar(&toFlag, "to", "", "Only items planned to publish on or before this day, YYYY-MM-DD")
	cmd.Flags().BoolVar(&due, "due", false, "Only items whose publish time has passed")
	cmd.Flags().BoolVar(&newest, "newest", false, "Sort newest first")
	cmd.Flags().Uint64Var(&limit, "limit", 0, "Maximum rows to show")
	return cmd
}

func newQueueShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show every field of one item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseItemID(args[0])
			if err != nil {
				return err
			}
			return ctx.withStore(func(cfg *config.Config, store *queue.Store) error {
				item, err := store.GetByID(cmd.Context(), id)
				if err != nil {
					return err
				}
				if item == nil {
					return fmt.Errorf("item %d not found", id)
				}
				loc, _ := cfg.Location()
				printItemDetails(cmd.OutOrStdout(), item, loc)
				return nil
			})
		},
	}
}

func newQueueRetryCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "retry <id>...",
		Short: "Return failed items to the status they failed from",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parsePositiveIDs(args)
			if err != nil {
				return err
			}
			return ctx.withStore(func(_ *config.Config, store *queue.Store) error {
				out := cmd.OutOrStdout()
				for _, id := range ids {
					item, err := store.GetByID(cmd.Context(), id)
					if err != nil {
						return err
					}
					switch {
					case item == nil:
						fmt.Fprintf(out, "Item %d not found\n", id)
						continue
					case item.Status != queue.StatusFailed:
						fmt.Fprintf(out, "Item %d is %s (only failed items can be retried)\n", id, item.Status)
						continue
					}
					updated, err := store.Requeue(cmd.Context(), id, item.Revision)
					if errors.Is(err, queue.ErrStaleRevision) {
						fmt.Fprintf(out, "Item %d changed while retrying; run the command again\n", id)
						continue
					}
					if err != nil {
						return err
					}
					fmt.Fprintf(out, "Item %d returned to %s\n", id, updated.Status)
				}
				return nil
			})
		},
	}
}

func newQueueEventsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "events <id>",
		Short: "Show the audit trail of one item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseItemID(args[0])
			if err != nil {
				return err
			}
			return ctx.withStore(func(cfg *config.Config, store *queue.Store) error {
				events, err := store.Events(cmd.Context(), id)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(events) == 0 {
					fmt.Fprintf(out, "No events for item %d\n", id)
					return nil
				}
				loc, _ := cfg.Location()
				fmt.Fprint(out, renderTable(
					[]string{"Rev", "When", "Stage", "From", "To", "Detail"},
					buildEventRows(events, loc),
					[]columnAlignment{alignRight},
				))
				return nil
			})
		},
	}
}

func parseItemID(arg string) (int64, error) {
	ids, err := parsePositiveIDs([]string{arg})
	if err != nil {
		return 0, err
	}
	return ids[0], nil
}

func parsePositiveIDs(args []string) ([]int64, error) {
	ids := make([]int64, 0, len(args))
	for _, arg := range args {
		id, err := strconv.ParseInt(strings.TrimSpace(arg), 10, 64)
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("invalid item id %q", arg)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func splitFlagValues(values []string) []string {
	var out []string
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

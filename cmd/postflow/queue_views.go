package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"postflow/internal/queue"
)

func buildQueueStatusRows(stats map[queue.Status]int, colorize bool) [][]string {
	rows := make([][]string, 0, len(stats))
	for _, status := range queue.AllStatuses() {
		count, ok := stats[status]
		if !ok || count == 0 {
			continue
		}
		label := paint(string(status), statusKindColor(itemStatusKind(status)), colorize)
		rows = append(rows, []string{label, strconv.Itoa(count)})
	}
	return rows
}

func buildQueueListRows(items []*queue.Item, loc *time.Location, colorize bool) [][]string {
	rows := make([][]string, 0, len(items))
	for _, item := range items {
		status := string(item.Status)
		if item.Status == queue.StatusFailed && item.FailedFrom != "" {
			status = fmt.Sprintf("%s (from %s)", status, item.FailedFrom)
		}
		rows = append(rows, []string{
			strconv.FormatInt(item.ID, 10),
			dash(item.PlanSlot),
			string(item.Kind),
			dash(item.Topic()),
			paint(status, statusKindColor(itemStatusKind(item.Status)), colorize),
			formatOptionalTime(item.PlannedPublishAt, loc),
			formatOptionalTime(&item.UpdatedAt, loc),
		})
	}
	return rows
}

func buildEventRows(events []queue.Event, loc *time.Location) [][]string {
	rows := make([][]string, 0, len(events))
	for _, event := range events {
		created := event.CreatedAt
		rows = append(rows, []string{
			strconv.FormatInt(event.Revision, 10),
			formatOptionalTime(&created, loc),
			event.Stage,
			dash(string(event.FromStatus)),
			string(event.ToStatus),
			dash(event.Detail),
		})
	}
	return rows
}

func printItemDetails(out io.Writer, item *queue.Item, loc *time.Location) {
	field := func(label, value string) {
		fmt.Fprintf(out, "%-18s %s\n", label+":", value)
	}
	field("ID", strconv.FormatInt(item.ID, 10))
	field("Status", string(item.Status))
	field("Kind", string(item.Kind))
	field("Day", dash(item.PlanSlot))
	field("Sign", dash(item.Sign))
	field("Theme", dash(item.Theme))
	field("Display text", dash(item.DisplayText))
	field("Tags", dash(strings.Join(item.Tags, " ")))
	field("Asset", dash(item.AssetRef))
	field("Publish at", formatOptionalTime(item.PlannedPublishAt, loc))
	field("Published at", formatOptionalTime(item.PublishedAt, loc))
	field("External ID", dash(item.ExternalID))
	if item.Status == queue.StatusFailed {
		field("Failed from", string(item.FailedFrom))
		field("Failed stage", dash(item.FailedStage))
		field("Failure", dash(item.FailureReason))
	}
	if len(item.Corrections) > 0 {
		field("Corrections", strings.Join(item.Corrections, "; "))
	}
	if item.Status == queue.StatusPublished {
		e := item.Engagement
		field("Engagement", fmt.Sprintf("likes=%d comments=%d saves=%d shares=%d", e.Likes, e.Comments, e.Saves, e.Shares))
	}
	field("Revision", strconv.FormatInt(item.Revision, 10))
	field("Created", formatOptionalTime(&item.CreatedAt, loc))
	field("Updated", formatOptionalTime(&item.UpdatedAt, loc))
	if caption := strings.TrimSpace(item.Caption); caption != "" {
		fmt.Fprintln(out)
		fmt.Fprintln(out, "Caption:")
		for _, line := range strings.Split(caption, "\n") {
			fmt.Fprintln(out, "  "+line)
		}
	}
}

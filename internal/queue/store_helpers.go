package queue

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// timestampLayout is fixed width so stored values sort lexically in time order.
const timestampLayout = "2006-01-02T15:04:05.000000000Z07:00"

var itemColumnList = []string{
	"id", "kind", "sign", "theme", "plan_slot", "display_text", "caption", "tags_json",
	"asset_ref", "planned_publish_at", "published_at", "external_id", "status",
	"failed_from", "failed_stage", "failure_reason", "corrections_json",
	"likes", "comments", "saves", "shares", "revision", "created_at", "updated_at",
}

var itemColumns = strings.Join(itemColumnList, ", ")

type rowScanner interface {
	Scan(dest ...any) error
}

func scanItem(scanner rowScanner) (*Item, error) {
	var (
		id            int64
		kind          string
		sign          sql.NullString
		theme         sql.NullString
		planSlot      sql.NullString
		displayText   sql.NullString
		caption       sql.NullString
		tagsJSON      sql.NullString
		assetRef      sql.NullString
		plannedRaw    sql.NullString
		publishedRaw  sql.NullString
		externalID    sql.NullString
		statusStr     string
		failedFrom    sql.NullString
		failedStage   sql.NullString
		failureReason sql.NullString
		corrections   sql.NullString
		engagement    Engagement
		revision      int64
		createdRaw    string
		updatedRaw    string
	)

	if err := scanner.Scan(
		&id,
		&kind,
		&sign,
		&theme,
		&planSlot,
		&displayText,
		&caption,
		&tagsJSON,
		&assetRef,
		&plannedRaw,
		&publishedRaw,
		&externalID,
		&statusStr,
		&failedFrom,
		&failedStage,
		&failureReason,
		&corrections,
		&engagement.Likes,
		&engagement.Comments,
		&engagement.Saves,
		&engagement.Shares,
		&revision,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	item := &Item{
		ID:            id,
		Kind:          Kind(kind),
		Sign:          sign.String,
		Theme:         theme.String,
		PlanSlot:      planSlot.String,
		DisplayText:   displayText.String,
		Caption:       caption.String,
		AssetRef:      assetRef.String,
		ExternalID:    externalID.String,
		Status:        Status(statusStr),
		FailedFrom:    Status(failedFrom.String),
		FailedStage:   failedStage.String,
		FailureReason: failureReason.String,
		Engagement:    engagement,
		Revision:      revision,
	}

	var err error
	if item.Tags, err = decodeStrings(tagsJSON.String); err != nil {
		return nil, fmt.Errorf("decode tags for item %d: %w", id, err)
	}
	if item.Corrections, err = decodeStrings(corrections.String); err != nil {
		return nil, fmt.Errorf("decode corrections for item %d: %w", id, err)
	}
	if item.PlannedPublishAt, err = parseNullableTime(plannedRaw); err != nil {
		return nil, fmt.Errorf("parse planned publish time for item %d: %w", id, err)
	}
	if item.PublishedAt, err = parseNullableTime(publishedRaw); err != nil {
		return nil, fmt.Errorf("parse publish time for item %d: %w", id, err)
	}
	if created, err := parseTimeString(createdRaw); err == nil {
		item.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw); err == nil {
		item.UpdatedAt = updated
	}
	return item, nil
}

func scanItems(rows *sql.Rows) ([]*Item, error) {
	defer rows.Close()
	var items []*Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func loadItem(ctx context.Context, q queryer, id int64) (*Item, error) {
	row := q.QueryRowContext(ctx, "SELECT "+itemColumns+" FROM items WHERE id = ?", id)
	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("load item %d: %w", id, err)
	}
	return item, nil
}

func insertEvent(ctx context.Context, tx *sql.Tx, event Event) error {
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO item_events (item_id, stage, from_status, to_status, revision, detail, created_at)
         VALUES (?, ?, ?, ?, ?, ?, ?)`,
		event.ItemID,
		event.Stage,
		nullableString(string(event.FromStatus)),
		string(event.ToStatus),
		event.Revision,
		nullableString(event.Detail),
		formatTime(event.CreatedAt),
	); err != nil {
		return fmt.Errorf("record event for item %d: %w", event.ItemID, err)
	}
	return nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullableTime(value *time.Time) any {
	if value == nil {
		return nil
	}
	return formatTime(*value)
}

func formatTime(value time.Time) string {
	return value.UTC().Format(timestampLayout)
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	return time.Parse(time.RFC3339Nano, value)
}

func parseNullableTime(value sql.NullString) (*time.Time, error) {
	if !value.Valid || value.String == "" {
		return nil, nil
	}
	t, err := parseTimeString(value.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func encodeStrings(values []string) (any, error) {
	if len(values) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(values)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

func decodeStrings(raw string) ([]string, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	var values []string
	if err := json.Unmarshal([]byte(raw), &values); err != nil {
		return nil, err
	}
	return values, nil
}

func isUniqueViolation(err error, column string) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed: "+column)
}

func statusStrings(statuses []Status) []string {
	out := make([]string, 0, len(statuses))
	for _, status := range statuses {
		out = append(out, string(status))
	}
	return out
}

func kindStrings(kinds []Kind) []string {
	out := make([]string, 0, len(kinds))
	for _, kind := range kinds {
		out = append(out, string(kind))
	}
	return out
}

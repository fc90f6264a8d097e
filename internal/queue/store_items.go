package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
)

// Create persists item at draft with revision 0 and returns the stored copy.
// A zero ID asks the store to assign one; a caller-supplied ID that already
// exists fails with ErrDuplicate. A PlanSlot already held by another item
// fails with ErrSlotTaken.
func (s *Store) Create(ctx context.Context, item *Item) (*Item, error) {
	ctx = ensureContext(ctx)
	if item == nil {
		return nil, errors.New("create item: nil item")
	}
	if _, ok := ParseKind(string(item.Kind)); !ok {
		return nil, fmt.Errorf("create item: unknown kind %q", item.Kind)
	}
	if item.ID < 0 {
		return nil, fmt.Errorf("create item: invalid id %d", item.ID)
	}

	now := s.now()
	created := &Item{
		ID:          item.ID,
		Kind:        item.Kind,
		Sign:        strings.TrimSpace(item.Sign),
		Theme:       strings.TrimSpace(item.Theme),
		PlanSlot:    strings.TrimSpace(item.PlanSlot),
		DisplayText: item.DisplayText,
		Caption:     item.Caption,
		Status:      StatusDraft,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if len(item.Tags) > 0 {
		created.Tags = append([]string(nil), item.Tags...)
	}
	tags, err := encodeStrings(created.Tags)
	if err != nil {
		return nil, fmt.Errorf("create item: encode tags: %w", err)
	}

	var explicitID any
	if created.ID != 0 {
		explicitID = created.ID
	}

	err = s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`INSERT INTO items (id, kind, sign, theme, plan_slot, display_text, caption, tags_json, status, revision, created_at, updated_at)
             VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, 0, ?, ?)`,
			explicitID,
			string(created.Kind),
			nullableString(created.Sign),
			nullableString(created.Theme),
			nullableString(created.PlanSlot),
			nullableString(created.DisplayText),
			nullableString(created.Caption),
			tags,
			string(StatusDraft),
			formatTime(now),
			formatTime(now),
		)
		switch {
		case isUniqueViolation(err, "items.plan_slot"):
			return fmt.Errorf("%w: %s", ErrSlotTaken, created.PlanSlot)
		case isUniqueViolation(err, "items.id"):
			return fmt.Errorf("%w: %d", ErrDuplicate, created.ID)
		case err != nil:
			return fmt.Errorf("insert item: %w", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("read inserted id: %w", err)
		}
		created.ID = id
		return insertEvent(ctx, tx, Event{
			ItemID:    id,
			Stage:     "create",
			ToStatus:  StatusDraft,
			Revision:  0,
			Detail:    created.PlanSlot,
			CreatedAt: now,
		})
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// GetByID fetches an item by its identifier. It returns (nil, nil) when the
// item does not exist.
func (s *Store) GetByID(ctx context.Context, id int64) (*Item, error) {
	item, err := loadItem(ensureContext(ctx), s.db, id)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	return item, err
}

// Order selects the sort order for Query.
type Order int

const (
	// OrderID sorts by ascending identifier, the claim order.
	OrderID Order = iota
	// OrderPlanned sorts by planned publish timestamp, then identifier.
	OrderPlanned
	// OrderNewest sorts by descending identifier.
	OrderNewest
)

// Filter narrows Query results. Zero values do not filter. Time bounds are
// inclusive at From and exclusive at To.
type Filter struct {
	Statuses    []Status
	Kinds       []Kind
	PlannedFrom *time.Time
	PlannedTo   *time.Time
	DueBy       *time.Time
	CreatedFrom *time.Time
	CreatedTo   *time.Time
	Order       Order
	Limit       uint64
}

// Query returns read-only projections of the items matching filter.
func (s *Store) Query(ctx context.Context, filter Filter) ([]*Item, error) {
	ctx = ensureContext(ctx)
	q := s.builder.Select(itemColumnList...).From("items")
	if len(filter.Statuses) > 0 {
		q = q.Where(sq.Eq{"status": statusStrings(filter.Statuses)})
	}
	if len(filter.Kinds) > 0 {
		q = q.Where(sq.Eq{"kind": kindStrings(filter.Kinds)})
	}
	if filter.PlannedFrom != nil {
		q = q.Where(sq.GtOrEq{"planned_publish_at": formatTime(*filter.PlannedFrom)})
	}
	if filter.PlannedTo != nil {
		q = q.Where(sq.Lt{"planned_publish_at": formatTime(*filter.PlannedTo)})
	}
	if filter.DueBy != nil {
		q = q.Where(sq.NotEq{"planned_publish_at": nil}).
			Where(sq.LtOrEq{"planned_publish_at": formatTime(*filter.DueBy)})
	}
	if filter.CreatedFrom != nil {
		q = q.Where(sq.GtOrEq{"created_at": formatTime(*filter.CreatedFrom)})
	}
	if filter.CreatedTo != nil {
		q = q.Where(sq.Lt{"created_at": formatTime(*filter.CreatedTo)})
	}
	switch filter.Order {
	case OrderPlanned:
		q = q.OrderBy("planned_publish_at ASC", "id ASC")
	case OrderNewest:
		q = q.OrderBy("id DESC")
	default:
		q = q.OrderBy("id ASC")
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}

	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build item query: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query items: %w", err)
	}
	items, err := scanItems(rows)
	if err != nil {
		return nil, fmt.Errorf("scan items: %w", err)
	}
	return items, nil
}

// Claim returns up to limit items in status, oldest first, each carrying the
// revision it was read at. Claim never mutates the store.
func (s *Store) Claim(ctx context.Context, status Status, limit int) ([]*Item, error) {
	if limit <= 0 {
		return nil, nil
	}
	return s.Query(ctx, Filter{Statuses: []Status{status}, Order: OrderID, Limit: uint64(limit)})
}

// ClaimDue returns up to limit scheduled items whose planned publish
// timestamp is at or before now, earliest first.
func (s *Store) ClaimDue(ctx context.Context, now time.Time, limit int) ([]*Item, error) {
	if limit <= 0 {
		return nil, nil
	}
	return s.Query(ctx, Filter{
		Statuses: []Status{StatusScheduled},
		DueBy:    &now,
		Order:    OrderPlanned,
		Limit:    uint64(limit),
	})
}

// LatestPlannedPublish returns the greatest planned publish timestamp ever
// assigned, or nil when nothing has been scheduled yet.
func (s *Store) LatestPlannedPublish(ctx context.Context) (*time.Time, error) {
	var raw sql.NullString
	err := s.db.QueryRowContext(ensureContext(ctx),
		`SELECT MAX(planned_publish_at) FROM items WHERE planned_publish_at IS NOT NULL`,
	).Scan(&raw)
	if err != nil {
		return nil, fmt.Errorf("latest planned publish: %w", err)
	}
	return parseNullableTime(raw)
}

// PlanSlotsBetween returns the plan slots already used in [from, to].
func (s *Store) PlanSlotsBetween(ctx context.Context, from, to string) (map[string]int64, error) {
	query, args, err := s.builder.Select("plan_slot", "id").
		From("items").
		Where(sq.GtOrEq{"plan_slot": from}).
		Where(sq.LtOrEq{"plan_slot": to}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build plan slot query: %w", err)
	}
	rows, err := s.db.QueryContext(ensureContext(ctx), query, args...)
	if err != nil {
		return nil, fmt.Errorf("query plan slots: %w", err)
	}
	defer rows.Close()

	slots := make(map[string]int64)
	for rows.Next() {
		var (
			slot string
			id   int64
		)
		if err := rows.Scan(&slot, &id); err != nil {
			return nil, err
		}
		slots[slot] = id
	}
	return slots, rows.Err()
}

// Events returns the audit trail for an item, oldest first.
func (s *Store) Events(ctx context.Context, id int64) ([]Event, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx),
		`SELECT id, item_id, stage, from_status, to_status, revision, detail, created_at
         FROM item_events WHERE item_id = ? ORDER BY id`, id)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var (
			event      Event
			fromStatus sql.NullString
			toStatus   string
			detail     sql.NullString
			createdRaw string
		)
		if err := rows.Scan(&event.ID, &event.ItemID, &event.Stage, &fromStatus, &toStatus, &event.Revision, &detail, &createdRaw); err != nil {
			return nil, err
		}
		event.FromStatus = Status(fromStatus.String)
		event.ToStatus = Status(toStatus)
		event.Detail = detail.String
		if created, err := parseTimeString(createdRaw); err == nil {
			event.CreatedAt = created
		}
		events = append(events, event)
	}
	return events, rows.Err()
}

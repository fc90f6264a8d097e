package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// mutation edits next (a copy of current) and returns the audit event fields.
type mutation func(current, next *Item) (stage, detail string, err error)

// mutate is the revision-checked write shared by every store mutation. The
// revision read, the update and the audit row commit in one transaction.
func (s *Store) mutate(ctx context.Context, id, expectedRevision int64, fn mutation) (*Item, error) {
	ctx = ensureContext(ctx)
	var updated *Item
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		current, err := loadItem(ctx, tx, id)
		if err != nil {
			return err
		}
		if current.Revision != expectedRevision {
			return fmt.Errorf("%w: item %d at revision %d, expected %d", ErrStaleRevision, id, current.Revision, expectedRevision)
		}

		next := current.Clone()
		stage, detail, err := fn(current, next)
		if err != nil {
			return err
		}
		if err := checkInvariants(next); err != nil {
			return err
		}
		next.Revision = current.Revision + 1
		next.UpdatedAt = s.now()

		if err := writeItem(ctx, tx, next, expectedRevision); err != nil {
			return err
		}
		updated = next
		return insertEvent(ctx, tx, Event{
			ItemID:     id,
			Stage:      stage,
			FromStatus: current.Status,
			ToStatus:   next.Status,
			Revision:   next.Revision,
			Detail:     detail,
			CreatedAt:  next.UpdatedAt,
		})
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func writeItem(ctx context.Context, tx *sql.Tx, item *Item, expectedRevision int64) error {
	tags, err := encodeStrings(item.Tags)
	if err != nil {
		return fmt.Errorf("encode tags: %w", err)
	}
	corrections, err := encodeStrings(item.Corrections)
	if err != nil {
		return fmt.Errorf("encode corrections: %w", err)
	}
	res, err := tx.ExecContext(ctx,
		`UPDATE items
         SET display_text = ?, caption = ?, tags_json = ?, asset_ref = ?,
             planned_publish_at = ?, published_at = ?, external_id = ?, status = ?,
             failed_from = ?, failed_stage = ?, failure_reason = ?, corrections_json = ?,
             likes = ?, comments = ?, saves = ?, shares = ?, revision = ?, updated_at = ?
         WHERE id = ? AND revision = ?`,
		nullableString(item.DisplayText),
		nullableString(item.Caption),
		tags,
		nullableString(item.AssetRef),
		nullableTime(item.PlannedPublishAt),
		nullableTime(item.PublishedAt),
		nullableString(item.ExternalID),
		string(item.Status),
		nullableString(string(item.FailedFrom)),
		nullableString(item.FailedStage),
		nullableString(item.FailureReason),
		corrections,
		item.Engagement.Likes,
		item.Engagement.Comments,
		item.Engagement.Saves,
		item.Engagement.Shares,
		item.Revision,
		formatTime(item.UpdatedAt),
		item.ID,
		expectedRevision,
	)
	if isUniqueViolation(err, "items.planned_publish_at") {
		return fmt.Errorf("%w: planned publish %s", ErrSlotTaken, formatTime(*item.PlannedPublishAt))
	}
	if err != nil {
		return fmt.Errorf("update item %d: %w", item.ID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update item %d: %w", item.ID, err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: item %d changed during commit", ErrStaleRevision, item.ID)
	}
	return nil
}

// Commit atomically verifies that item id is still at expectedRevision,
// applies the transition and bumps the revision. A revision mismatch returns
// ErrStaleRevision and leaves the item untouched. Moving an item to failed
// goes through MarkFailed instead.
func (s *Store) Commit(ctx context.Context, id, expectedRevision int64, tr Transition) (*Item, error) {
	if tr.To == StatusFailed {
		return nil, fmt.Errorf("%w: use MarkFailed to fail item %d", ErrInvalidTransition, id)
	}
	return s.mutate(ctx, id, expectedRevision, func(current, next *Item) (string, string, error) {
		if err := checkTransition(current, tr.To); err != nil {
			return "", "", err
		}
		if err := applyPatch(next, tr.Patch); err != nil {
			return "", "", err
		}
		if current.Status == StatusFailed {
			clearFailure(next)
		}
		next.Status = tr.To
		return stageOrDefault(tr.Stage, "commit"), tr.Detail, nil
	})
}

// MarkFailed moves a non-terminal item to failed, recording the status it
// failed from, the stage and the reason. The same revision discipline as
// Commit applies.
func (s *Store) MarkFailed(ctx context.Context, id, expectedRevision int64, stage, reason string) (*Item, error) {
	stage = strings.TrimSpace(stage)
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = stageOrDefault(stage, "stage") + " failed"
	}
	return s.mutate(ctx, id, expectedRevision, func(current, next *Item) (string, string, error) {
		if err := checkTransition(current, StatusFailed); err != nil {
			return "", "", err
		}
		next.Status = StatusFailed
		next.FailedFrom = current.Status
		next.FailedStage = stage
		next.FailureReason = reason
		return stageOrDefault(stage, "fail"), reason, nil
	})
}

// Requeue returns a failed item to the status it failed from so the stage
// that rejected it picks it up again.
func (s *Store) Requeue(ctx context.Context, id, expectedRevision int64) (*Item, error) {
	return s.mutate(ctx, id, expectedRevision, func(current, next *Item) (string, string, error) {
		if current.Status != StatusFailed {
			return "", "", fmt.Errorf("%w: item %d is %s, not failed", ErrInvalidTransition, id, current.Status)
		}
		if err := checkTransition(current, current.FailedFrom); err != nil {
			return "", "", err
		}
		detail := "previous failure: " + current.FailureReason
		next.Status = current.FailedFrom
		clearFailure(next)
		return "requeue", detail, nil
	})
}

// RecordEngagement stores measured counters on a published item.
func (s *Store) RecordEngagement(ctx context.Context, id, expectedRevision int64, engagement Engagement) (*Item, error) {
	if engagement.Likes < 0 || engagement.Comments < 0 || engagement.Saves < 0 || engagement.Shares < 0 {
		return nil, errors.New("record engagement: counters must not be negative")
	}
	return s.mutate(ctx, id, expectedRevision, func(current, next *Item) (string, string, error) {
		if current.Status != StatusPublished {
			return "", "", fmt.Errorf("%w: engagement on %s item %d", ErrInvalidTransition, current.Status, id)
		}
		next.Engagement = engagement
		detail := fmt.Sprintf("likes=%d comments=%d saves=%d shares=%d",
			engagement.Likes, engagement.Comments, engagement.Saves, engagement.Shares)
		return "metrics", detail, nil
	})
}

func clearFailure(item *Item) {
	item.FailedFrom = ""
	item.FailedStage = ""
	item.FailureReason = ""
}

func stageOrDefault(stage, fallback string) string {
	if stage = strings.TrimSpace(stage); stage != "" {
		return stage
	}
	return fallback
}

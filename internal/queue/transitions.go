package queue

import (
	"errors"
	"fmt"
	"slices"
	"time"
)

var (
	// ErrStaleRevision reports that the item changed since it was read.
	ErrStaleRevision = errors.New("stale revision")
	// ErrInvalidTransition reports a status change outside the transition table.
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrInvariant reports a commit whose resulting fields break an item invariant.
	ErrInvariant = errors.New("item invariant violated")
	// ErrNotFound reports an unknown item identifier.
	ErrNotFound = errors.New("item not found")
	// ErrDuplicate reports an explicit identifier that already exists.
	ErrDuplicate = errors.New("duplicate item identifier")
	// ErrSlotTaken reports a plan slot that already holds an item.
	ErrSlotTaken = errors.New("plan slot already taken")
)

// transitions lists every permitted status change. Entries out of failed
// are further restricted to the status the item failed from.
var transitions = map[Status][]Status{
	StatusDraft:     {StatusGenerated, StatusFailed},
	StatusGenerated: {StatusValidated, StatusFailed},
	StatusValidated: {StatusRendered, StatusFailed},
	StatusRendered:  {StatusScheduled, StatusFailed},
	StatusScheduled: {StatusPublished, StatusFailed},
	StatusPublished: nil,
	StatusFailed:    {StatusDraft, StatusGenerated, StatusValidated, StatusRendered, StatusScheduled},
}

// CanTransition reports whether from → to appears in the transition table.
func CanTransition(from, to Status) bool {
	return slices.Contains(transitions[from], to)
}

func checkTransition(item *Item, to Status) error {
	if !CanTransition(item.Status, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, item.Status, to)
	}
	if item.Status == StatusFailed && item.FailedFrom != to {
		return fmt.Errorf("%w: failed item re-enters %s, not %s", ErrInvalidTransition, item.FailedFrom, to)
	}
	return nil
}

// Patch carries the fields a stage sets alongside its status change. Nil
// pointers and nil slices leave the stored value untouched; an empty non-nil
// Tags slice clears the tags. Corrections are appended.
type Patch struct {
	DisplayText      *string
	Caption          *string
	Tags             []string
	AssetRef         *string
	PlannedPublishAt *time.Time
	PublishedAt      *time.Time
	ExternalID       *string
	Corrections      []string
}

// IsZero reports whether the patch changes nothing.
func (p Patch) IsZero() bool {
	return p.DisplayText == nil && p.Caption == nil && p.Tags == nil && p.AssetRef == nil &&
		p.PlannedPublishAt == nil && p.PublishedAt == nil && p.ExternalID == nil && len(p.Corrections) == 0
}

// Transition is a target status plus the fields written with it.
type Transition struct {
	To    Status
	Patch Patch
	// Stage names the writer for the audit trail.
	Stage string
	// Detail is an optional audit note.
	Detail string
}

func applyPatch(item *Item, patch Patch) error {
	if patch.PlannedPublishAt != nil && item.PlannedPublishAt != nil {
		return fmt.Errorf("%w: planned publish timestamp already set", ErrInvariant)
	}
	if patch.DisplayText != nil {
		item.DisplayText = *patch.DisplayText
	}
	if patch.Caption != nil {
		item.Caption = *patch.Caption
	}
	if patch.Tags != nil {
		item.Tags = slices.Clone(patch.Tags)
	}
	if patch.AssetRef != nil {
		item.AssetRef = *patch.AssetRef
	}
	if patch.PlannedPublishAt != nil {
		t := patch.PlannedPublishAt.UTC()
		item.PlannedPublishAt = &t
	}
	if patch.PublishedAt != nil {
		t := patch.PublishedAt.UTC()
		item.PublishedAt = &t
	}
	if patch.ExternalID != nil {
		item.ExternalID = *patch.ExternalID
	}
	if len(patch.Corrections) > 0 {
		item.Corrections = append(item.Corrections, patch.Corrections...)
	}
	return nil
}

// checkInvariants validates the field rules tied to each lattice position.
func checkInvariants(item *Item) error {
	rank := item.Status.rank()
	if rank < 0 {
		return nil
	}
	rendered := StatusRendered.rank()
	scheduled := StatusScheduled.rank()
	switch {
	case rank < rendered && item.AssetRef != "":
		return fmt.Errorf("%w: asset reference set before %s", ErrInvariant, StatusRendered)
	case rank >= rendered && item.AssetRef == "":
		return fmt.Errorf("%w: %s item without asset reference", ErrInvariant, item.Status)
	case rank < scheduled && item.PlannedPublishAt != nil:
		return fmt.Errorf("%w: planned publish timestamp set before %s", ErrInvariant, StatusScheduled)
	case rank >= scheduled && item.PlannedPublishAt == nil:
		return fmt.Errorf("%w: %s item without planned publish timestamp", ErrInvariant, item.Status)
	case item.Status == StatusPublished && item.PublishedAt == nil:
		return fmt.Errorf("%w: published item without publish timestamp", ErrInvariant)
	case item.Status != StatusPublished && item.PublishedAt != nil:
		return fmt.Errorf("%w: publish timestamp on %s item", ErrInvariant, item.Status)
	}
	return nil
}

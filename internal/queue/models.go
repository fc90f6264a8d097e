package queue

import (
	"slices"
	"strings"
	"time"
)

// Status represents the lifecycle of a content item.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusGenerated Status = "generated"
	StatusValidated Status = "validated"
	StatusRendered  Status = "rendered"
	StatusScheduled Status = "scheduled"
	StatusPublished Status = "published"
	StatusFailed    Status = "failed"
)

// lattice is the success path in order. StatusFailed sits beside it.
var lattice = []Status{
	StatusDraft,
	StatusGenerated,
	StatusValidated,
	StatusRendered,
	StatusScheduled,
	StatusPublished,
}

var allStatuses = append(slices.Clone(lattice), StatusFailed)

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	return slices.Clone(allStatuses)
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// IsTerminal reports whether no stage ever picks the status up again on its own.
func (s Status) IsTerminal() bool {
	return s == StatusPublished || s == StatusFailed
}

// rank is the position on the success path, -1 for failed or unknown.
func (s Status) rank() int {
	return slices.Index(lattice, s)
}

// Kind is the closed set of content formats.
type Kind string

const (
	KindSinglePhrase   Kind = "single_phrase"
	KindSignCarousel   Kind = "sign_carousel"
	KindThemeCarousel  Kind = "theme_carousel"
	KindEducational    Kind = "educational"
	KindWeeklyForecast Kind = "weekly_forecast"
	KindMotivational   Kind = "motivational"
)

var allKinds = []Kind{
	KindSinglePhrase,
	KindSignCarousel,
	KindThemeCarousel,
	KindEducational,
	KindWeeklyForecast,
	KindMotivational,
}

// AllKinds returns the known kinds in canonical order.
func AllKinds() []Kind {
	return slices.Clone(allKinds)
}

// ParseKind converts a string into a known Kind. Hyphens are accepted.
func ParseKind(value string) (Kind, bool) {
	normalized := Kind(strings.ReplaceAll(strings.ToLower(strings.TrimSpace(value)), "-", "_"))
	if slices.Contains(allKinds, normalized) {
		return normalized, true
	}
	return "", false
}

// UsesSign reports whether items of this kind carry a zodiac sign topic.
func (k Kind) UsesSign() bool {
	return k == KindSignCarousel || k == KindWeeklyForecast
}

// UsesTheme reports whether items of this kind carry a theme topic.
func (k Kind) UsesTheme() bool {
	return k == KindThemeCarousel || k == KindEducational || k == KindMotivational
}

// Engagement holds the out-of-band counters measured after publication.
type Engagement struct {
	Likes    int64
	Comments int64
	Saves    int64
	Shares   int64
}

// Item is a content item persisted in SQLite.
type Item struct {
	ID               int64
	Kind             Kind
	Sign             string
	Theme            string
	PlanSlot         string
	DisplayText      string
	Caption          string
	Tags             []string
	AssetRef         string
	PlannedPublishAt *time.Time
	PublishedAt      *time.Time
	ExternalID       string
	Status           Status
	FailedFrom       Status
	FailedStage      string
	FailureReason    string
	Corrections      []string
	Engagement       Engagement
	Revision         int64
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Topic returns the sign or theme the item is about, if any.
func (i *Item) Topic() string {
	if i == nil {
		return ""
	}
	if i.Sign != "" {
		return i.Sign
	}
	return i.Theme
}

// Clone returns a deep copy so capabilities can revise fields freely.
func (i *Item) Clone() *Item {
	if i == nil {
		return nil
	}
	cp := *i
	cp.Tags = slices.Clone(i.Tags)
	cp.Corrections = slices.Clone(i.Corrections)
	if i.PlannedPublishAt != nil {
		t := *i.PlannedPublishAt
		cp.PlannedPublishAt = &t
	}
	if i.PublishedAt != nil {
		t := *i.PublishedAt
		cp.PublishedAt = &t
	}
	return &cp
}

// Event is one row of the per-item audit trail.
type Event struct {
	ID         int64
	ItemID     int64
	Stage      string
	FromStatus Status
	ToStatus   Status
	Revision   int64
	Detail     string
	CreatedAt  time.Time
}

// HealthSummary describes aggregated item counts per lifecycle bucket.
type HealthSummary struct {
	Total      int
	InProgress int
	Scheduled  int
	Published  int
	Failed     int
}

// DatabaseHealth captures diagnostic information about the item database.
type DatabaseHealth struct {
	DBPath           string
	DatabaseExists   bool
	DatabaseReadable bool
	SchemaVersion    int
	TableExists      bool
	MissingColumns   []string
	IntegrityCheck   bool
	TotalItems       int
	Error            string
}

package validator

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"unicode"

	"postflow/internal/catalog"
	"postflow/internal/config"
	"postflow/internal/logging"
	"postflow/internal/queue"
	"postflow/internal/services"
)

// StageName labels validator log lines and audit events.
const StageName = "validator"

// ReasonEmptyContent is the rejection reason for items without copy.
const ReasonEmptyContent = "empty content"

// Limits bounds the copy an item may carry.
type Limits struct {
	MaxDisplayText int
	MaxCaption     int
	MaxTags        int
}

// LimitsFromConfig reads the validator section.
func LimitsFromConfig(cfg *config.Config) Limits {
	return Limits{
		MaxDisplayText: cfg.Validator.MaxDisplayText,
		MaxCaption:     cfg.Validator.MaxCaption,
		MaxTags:        cfg.Validator.MaxTags,
	}
}

// Verdict is the outcome of checking one item. Item is the revised copy;
// the input item is never modified.
type Verdict struct {
	Item        *queue.Item
	Accepted    bool
	Reason      string
	Corrections []string
}

// Validator is the generated → validated capability.
type Validator struct {
	catalog *catalog.Catalog
	limits  Limits
	logger  *slog.Logger
}

// New constructs a Validator.
func New(cat *catalog.Catalog, limits Limits, logger *slog.Logger) *Validator {
	if cat == nil {
		cat = catalog.Default()
	}
	return &Validator{
		catalog: cat,
		limits:  limits,
		logger:  logging.NewComponentLogger(logger, StageName),
	}
}

// SetLogger implements stage.LoggerAware.
func (v *Validator) SetLogger(logger *slog.Logger) {
	v.logger = logger
}

// Check applies the content policy to item. It has no side effects.
func (v *Validator) Check(item *queue.Item) Verdict {
	revised := item.Clone()
	var corrections []string

	for _, text := range []string{revised.DisplayText, revised.Caption, strings.Join(revised.Tags, " ")} {
		if match, found := v.catalog.FindBanned(text); found {
			return Verdict{Item: revised, Reason: fmt.Sprintf("banned phrase %q", match)}
		}
	}

	display, changed := collapseWhitespace(revised.DisplayText)
	if changed {
		corrections = append(corrections, "collapsed whitespace in display text")
	}
	caption, changed := collapseCaption(revised.Caption)
	if changed {
		corrections = append(corrections, "collapsed whitespace in caption")
	}
	if display == "" || caption == "" {
		return Verdict{Item: revised, Reason: ReasonEmptyContent}
	}

	display, replacedDisplay := v.catalog.ApplyReplacements(display)
	caption, replacedCaption := v.catalog.ApplyReplacements(caption)
	for _, word := range uniqueSorted(append(replacedDisplay, replacedCaption...)) {
		corrections = append(corrections, fmt.Sprintf("replaced %q", word))
	}

	if truncated, ok := truncateWords(display, v.limits.MaxDisplayText); ok {
		display = truncated
		corrections = append(corrections, fmt.Sprintf("truncated display text to %d characters", v.limits.MaxDisplayText))
	}
	if truncated, ok := truncateWords(caption, v.limits.MaxCaption); ok {
		caption = truncated
		corrections = append(corrections, fmt.Sprintf("truncated caption to %d characters", v.limits.MaxCaption))
	}

	tags, tagNotes := v.normalizeTags(revised)
	corrections = append(corrections, tagNotes...)

	revised.DisplayText = display
	revised.Caption = caption
	revised.Tags = tags
	return Verdict{Item: revised, Accepted: true, Corrections: corrections}
}

// Work runs Check and turns a rejection into a validation error.
func (v *Validator) Work(ctx context.Context, item *queue.Item) (queue.Patch, error) {
	verdict := v.Check(item)
	if !verdict.Accepted {
		return queue.Patch{}, services.Wrap(services.ErrValidation, StageName, "check content", verdict.Reason, nil)
	}
	if len(verdict.Corrections) > 0 {
		logging.WithContext(ctx, v.logger).Info(
			"content auto-corrected",
			logging.String(logging.FieldEventType, "content_corrected"),
			logging.String("corrections", strings.Join(verdict.Corrections, "; ")),
		)
	}
	revised := verdict.Item
	return queue.Patch{
		DisplayText: &revised.DisplayText,
		Caption:     &revised.Caption,
		Tags:        revised.Tags,
		Corrections: verdict.Corrections,
	}, nil
}

func (v *Validator) normalizeTags(item *queue.Item) ([]string, []string) {
	var notes []string
	tags := catalog.DedupeTags(item.Tags)
	if !slices.Equal(tags, item.Tags) {
		notes = append(notes, "normalized tags")
	}
	for _, topicTag := range catalog.TopicTags(item.Sign, item.Theme) {
		if !containsFold(tags, topicTag) {
			// Topic tags go first so the cap below never drops them.
			tags = append([]string{topicTag}, tags...)
			notes = append(notes, "added topic tag "+topicTag)
		}
	}
	if limit := v.limits.MaxTags; limit > 0 && len(tags) > limit {
		tags = tags[:limit]
		notes = append(notes, fmt.Sprintf("capped tags at %d", limit))
	}
	if tags == nil {
		tags = []string{}
	}
	return tags, notes
}

func containsFold(tags []string, want string) bool {
	return slices.ContainsFunc(tags, func(tag string) bool {
		return strings.EqualFold(tag, want)
	})
}

func collapseWhitespace(text string) (string, bool) {
	collapsed := strings.Join(strings.Fields(text), " ")
	return collapsed, collapsed != text
}

// collapseCaption collapses whitespace inside each paragraph but keeps blank
// lines between paragraphs.
func collapseCaption(text string) (string, bool) {
	var paragraphs []string
	for _, block := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n\n") {
		if collapsed, _ := collapseWhitespace(block); collapsed != "" {
			paragraphs = append(paragraphs, collapsed)
		}
	}
	out := strings.Join(paragraphs, "\n\n")
	return out, out != text
}

// truncateWords shortens text to at most limit runes, cutting at the last
// word boundary and ending with an ellipsis.
func truncateWords(text string, limit int) (string, bool) {
	runes := []rune(text)
	if limit <= 0 || len(runes) <= limit {
		return text, false
	}
	if limit == 1 {
		return "…", true
	}
	cut := runes[:limit-1]
	if idx := lastSpace(cut); idx > len(cut)/2 {
		cut = cut[:idx]
	}
	trimmed := strings.TrimRightFunc(string(cut), func(r rune) bool {
		return unicode.IsSpace(r) || unicode.IsPunct(r)
	})
	return trimmed + "…", true
}

func lastSpace(runes []rune) int {
	for i := len(runes) - 1; i >= 0; i-- {
		if unicode.IsSpace(runes[i]) {
			return i
		}
	}
	return -1
}

func uniqueSorted(values []string) []string {
	slices.Sort(values)
	return slices.Compact(values)
}

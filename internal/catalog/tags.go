package catalog

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"postflow/internal/queue"
)

// Hashtag turns a word or phrase into a #CamelCase tag. Characters that are
// neither letters nor digits are dropped. It returns "" when nothing is left.
func Hashtag(value string) string {
	value = strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(value), "#"))
	if value == "" {
		return ""
	}
	words := strings.FieldsFunc(value, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	// A Caser holds state and must not be shared between goroutines.
	caser := cases.Title(language.BrazilianPortuguese)
	var b strings.Builder
	for _, word := range words {
		if isCamelCase(word) {
			b.WriteString(word)
			continue
		}
		b.WriteString(caser.String(word))
	}
	if b.Len() == 0 {
		return ""
	}
	return "#" + b.String()
}

// isCamelCase reports whether word mixes cases after its first letter, as
// in NutriSigno, so Hashtag keeps it intact. All-caps words do not count.
func isCamelCase(word string) bool {
	runes := []rune(word)
	if len(runes) < 2 || !unicode.IsUpper(runes[0]) {
		return false
	}
	var upper, lower bool
	for _, r := range runes[1:] {
		upper = upper || unicode.IsUpper(r)
		lower = lower || unicode.IsLower(r)
	}
	return upper && lower
}

// KindTag returns the hashtag configured for kind, or one derived from the
// kind name.
func (c *Catalog) KindTag(kind queue.Kind) string {
	for _, entry := range c.Kinds {
		if entry.Kind == kind && strings.TrimSpace(entry.Tag) != "" {
			return Hashtag(entry.Tag)
		}
	}
	return Hashtag(string(kind))
}

// TopicTags returns the hashtags for an item's sign and theme.
func TopicTags(sign, theme string) []string {
	var tags []string
	if tag := Hashtag(sign); tag != "" {
		tags = append(tags, tag)
	}
	if tag := Hashtag(theme); tag != "" {
		tags = append(tags, tag)
	}
	return tags
}

// ComposeTags builds the canonical tag list for an item: base tags, topic
// tags, the kind tag, then extra, without duplicates.
func (c *Catalog) ComposeTags(kind queue.Kind, sign, theme string, extra ...string) []string {
	candidates := make([]string, 0, len(c.BaseTags)+3+len(extra))
	candidates = append(candidates, c.BaseTags...)
	candidates = append(candidates, TopicTags(sign, theme)...)
	candidates = append(candidates, c.KindTag(kind))
	candidates = append(candidates, extra...)
	return DedupeTags(candidates)
}

// DedupeTags normalizes every entry with Hashtag and drops empties and
// case-insensitive repeats, keeping first occurrences.
func DedupeTags(tags []string) []string {
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, raw := range tags {
		tag := Hashtag(raw)
		if tag == "" {
			continue
		}
		key := strings.ToLower(tag)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, tag)
	}
	return out
}

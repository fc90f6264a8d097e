package catalog

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"postflow/internal/queue"
)

//go:embed catalog.yaml
var defaultCatalog []byte

// KindWeight is one entry of the kind rotation.
type KindWeight struct {
	Kind   queue.Kind `yaml:"kind"`
	Weight int        `yaml:"weight"`
	Tag    string     `yaml:"tag"`
}

// Replacement swaps a whole word in generated copy.
type Replacement struct {
	From string `yaml:"from"`
	To   string `yaml:"to"`
}

// Catalog is the editorial vocabulary shared by the planner, the generators
// and the validator.
type Catalog struct {
	Kinds         []KindWeight  `yaml:"kinds"`
	Signs         []string      `yaml:"signs"`
	Themes        []string      `yaml:"themes"`
	BaseTags      []string      `yaml:"base_tags"`
	BannedPhrases []string      `yaml:"banned_phrases"`
	Replacements  []Replacement `yaml:"replacements"`

	rotation     []queue.Kind
	banned       []*regexp.Regexp
	replacements []compiledReplacement
}

type compiledReplacement struct {
	from    string
	pattern *regexp.Regexp
	to      string
}

// Default returns the embedded catalog.
func Default() *Catalog {
	cat, err := Parse(defaultCatalog)
	if err != nil {
		panic(fmt.Sprintf("catalog: embedded default is invalid: %v", err))
	}
	return cat
}

// Parse decodes, validates and compiles a catalog payload.
func Parse(data []byte) (*Catalog, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("catalog: payload is empty")
	}
	var cat Catalog
	if err := yaml.Unmarshal(data, &cat); err != nil {
		return nil, fmt.Errorf("catalog: decode: %w", err)
	}
	if err := cat.compile(); err != nil {
		return nil, err
	}
	return &cat, nil
}

// Load reads the catalog at path. An empty path selects the embedded default.
func Load(path string) (*Catalog, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return Default(), nil
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("catalog: stat %s: %w", path, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("catalog: %s is a directory", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("catalog: read %s: %w", path, err)
	}
	cat, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("catalog: %s: %w", filepath.Clean(path), err)
	}
	return cat, nil
}

func (c *Catalog) compile() error {
	c.rotation = c.rotation[:0]
	for i, entry := range c.Kinds {
		kind, ok := queue.ParseKind(string(entry.Kind))
		if !ok {
			return fmt.Errorf("catalog: kinds[%d]: unknown kind %q", i, entry.Kind)
		}
		if entry.Weight < 0 {
			return fmt.Errorf("catalog: kinds[%d]: weight must be non-negative", i)
		}
		weight := entry.Weight
		if weight == 0 {
			weight = 1
		}
		c.Kinds[i] = KindWeight{Kind: kind, Weight: weight, Tag: strings.TrimSpace(entry.Tag)}
		for range weight {
			c.rotation = append(c.rotation, kind)
		}
	}
	if len(c.rotation) == 0 {
		return fmt.Errorf("catalog: at least one kind is required")
	}

	c.Signs = trimNonEmpty(c.Signs)
	c.Themes = trimNonEmpty(c.Themes)
	for _, kind := range c.rotation {
		if kind.UsesSign() && len(c.Signs) == 0 {
			return fmt.Errorf("catalog: kind %s needs at least one sign", kind)
		}
		if kind.UsesTheme() && len(c.Themes) == 0 {
			return fmt.Errorf("catalog: kind %s needs at least one theme", kind)
		}
	}
	c.BaseTags = trimNonEmpty(c.BaseTags)

	c.banned = c.banned[:0]
	for _, phrase := range trimNonEmpty(c.BannedPhrases) {
		re, err := regexp.Compile("(?i)" + phrase)
		if err != nil {
			return fmt.Errorf("catalog: banned phrase %q: %w", phrase, err)
		}
		c.banned = append(c.banned, re)
	}

	c.replacements = c.replacements[:0]
	for _, repl := range c.Replacements {
		from := strings.TrimSpace(repl.From)
		if from == "" {
			return fmt.Errorf("catalog: replacement with empty source word")
		}
		re, err := regexp.Compile(`(?i)\b` + regexp.QuoteMeta(from) + `\b`)
		if err != nil {
			return fmt.Errorf("catalog: replacement %q: %w", from, err)
		}
		c.replacements = append(c.replacements, compiledReplacement{from: from, pattern: re, to: repl.To})
	}
	return nil
}

// Rotation returns the kind cycle with weights expanded.
func (c *Catalog) Rotation() []queue.Kind {
	return slices.Clone(c.rotation)
}

// FindBanned returns the first prohibited phrase found in text.
func (c *Catalog) FindBanned(text string) (string, bool) {
	for _, re := range c.banned {
		if match := re.FindString(text); match != "" {
			return match, true
		}
	}
	return "", false
}

// ApplyReplacements swaps every configured word in text and reports which
// source words were found.
func (c *Catalog) ApplyReplacements(text string) (string, []string) {
	var applied []string
	for _, repl := range c.replacements {
		if !repl.pattern.MatchString(text) {
			continue
		}
		text = repl.pattern.ReplaceAllLiteralString(text, repl.to)
		applied = append(applied, repl.from)
	}
	return text, applied
}

func trimNonEmpty(values []string) []string {
	out := make([]string, 0, len(values))
	for _, value := range values {
		if value = strings.TrimSpace(value); value != "" {
			out = append(out, value)
		}
	}
	return out
}

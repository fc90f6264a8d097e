package generator

import (
	"context"
	"fmt"
	"strings"

	"postflow/internal/queue"
	"postflow/internal/services"
	"postflow/internal/services/llm"
)

const systemPrompt = `You write Instagram posts for NutriSigno, a profile that mixes astrology
with evidence-based nutrition. Write in Brazilian Portuguese with a gentle,
down-to-earth tone.

Rules:
- Never promise cures, miracles, weight-loss numbers, detox programmes or
  guaranteed results.
- Ground every suggestion in everyday nutrition habits (water, fibre, colour
  on the plate, sleep, mindful pauses).
- display_text is the sentence printed on the image: at most 180 characters.
- caption is the post caption: two to four short sentences.
- tags is a list of up to 8 hashtags, each starting with #.

Respond with JSON only, exactly:
{"display_text": "...", "caption": "...", "tags": ["#..."]}`

// Completer is the chat completion call the LLM backend needs.
type Completer interface {
	CompleteJSON(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// LLMBackend drafts copy with a chat completion model.
type LLMBackend struct {
	client Completer
}

// NewLLMBackend wraps client.
func NewLLMBackend(client Completer) *LLMBackend {
	return &LLMBackend{client: client}
}

// Name identifies the backend in logs.
func (*LLMBackend) Name() string { return "llm" }

type llmContent struct {
	DisplayText string   `json:"display_text"`
	Caption     string   `json:"caption"`
	Tags        []string `json:"tags"`
}

// Generate asks the model for copy about item.
func (b *LLMBackend) Generate(ctx context.Context, item *queue.Item) (Content, error) {
	raw, err := b.client.CompleteJSON(ctx, systemPrompt, userPrompt(item))
	if err != nil {
		return Content{}, err
	}
	var parsed llmContent
	if err := llm.DecodeJSON(raw, &parsed); err != nil {
		return Content{}, services.Wrap(services.ErrExternal, StageName, "decode completion", "model returned malformed JSON", err)
	}
	if strings.TrimSpace(parsed.DisplayText) == "" || strings.TrimSpace(parsed.Caption) == "" {
		return Content{}, services.Wrap(services.ErrExternal, StageName, "decode completion", "model returned empty copy", nil)
	}
	return Content{
		DisplayText: parsed.DisplayText,
		Caption:     parsed.Caption,
		Tags:        parsed.Tags,
	}, nil
}

// HealthCheck verifies the model endpoint when the client supports it.
func (b *LLMBackend) HealthCheck(ctx context.Context) error {
	if checker, ok := b.client.(interface{ HealthCheck(context.Context) error }); ok {
		return checker.HealthCheck(ctx)
	}
	return nil
}

func userPrompt(item *queue.Item) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Post format: %s\n", kindDescriptions[item.Kind])
	if item.Sign != "" {
		fmt.Fprintf(&b, "Zodiac sign: %s\n", item.Sign)
	}
	if item.Theme != "" {
		fmt.Fprintf(&b, "Theme: %s\n", item.Theme)
	}
	if item.PlanSlot != "" {
		fmt.Fprintf(&b, "Planned for: %s\n", item.PlanSlot)
	}
	return b.String()
}

var kindDescriptions = map[queue.Kind]string{
	queue.KindSinglePhrase:   "single phrase card with one memorable sentence",
	queue.KindSignCarousel:   "carousel with three food micro-habits for the sign",
	queue.KindThemeCarousel:  "carousel about caring for the theme through food",
	queue.KindEducational:    "educational post explaining the theme simply",
	queue.KindWeeklyForecast: "weekly nutrition focus for the sign",
	queue.KindMotivational:   "motivational, realistic message about the theme",
}

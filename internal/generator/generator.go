package generator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"postflow/internal/catalog"
	"postflow/internal/config"
	"postflow/internal/logging"
	"postflow/internal/queue"
	"postflow/internal/services"
	"postflow/internal/services/llm"
	"postflow/internal/stage"
)

// StageName labels generator log lines and audit events.
const StageName = "generator"

// Content is the copy a backend drafts for one item.
type Content struct {
	DisplayText string
	Caption     string
	Tags        []string
}

// Backend drafts copy for an item.
type Backend interface {
	Name() string
	Generate(ctx context.Context, item *queue.Item) (Content, error)
}

// Generator is the draft → generated capability.
type Generator struct {
	backend Backend
	catalog *catalog.Catalog
	logger  *slog.Logger
}

// New constructs a Generator around backend.
func New(backend Backend, cat *catalog.Catalog, logger *slog.Logger) *Generator {
	if cat == nil {
		cat = catalog.Default()
	}
	return &Generator{
		backend: backend,
		catalog: cat,
		logger:  logging.NewComponentLogger(logger, StageName),
	}
}

// NewFromConfig selects the backend named by generator.backend.
func NewFromConfig(cfg *config.Config, cat *catalog.Catalog, logger *slog.Logger) (*Generator, error) {
	switch cfg.Generator.Backend {
	case "", "template":
		return New(TemplateBackend{}, cat, logger), nil
	case "llm":
		llmCfg := cfg.GetLLM()
		client := llm.NewClient(llm.Config{
			APIKey:         llmCfg.APIKey,
			BaseURL:        llmCfg.BaseURL,
			Model:          llmCfg.Model,
			Referer:        llmCfg.Referer,
			Title:          llmCfg.Title,
			TimeoutSeconds: llmCfg.TimeoutSeconds,
		})
		return New(NewLLMBackend(client), cat, logger), nil
	default:
		return nil, fmt.Errorf("generator: unknown backend %q", cfg.Generator.Backend)
	}
}

// SetLogger implements stage.LoggerAware.
func (g *Generator) SetLogger(logger *slog.Logger) {
	g.logger = logger
}

// Work drafts the item's display text, caption and tags. Tags always start
// with the catalog base tags and the item's topic and kind tags.
func (g *Generator) Work(ctx context.Context, item *queue.Item) (queue.Patch, error) {
	if g.backend == nil {
		return queue.Patch{}, services.Wrap(services.ErrConfiguration, StageName, "generate", "no generator backend configured", nil)
	}
	content, err := g.backend.Generate(ctx, item)
	if err != nil {
		if services.IsClassified(err) || errors.Is(err, context.DeadlineExceeded) {
			return queue.Patch{}, err
		}
		return queue.Patch{}, services.Wrap(services.ErrPermanent, StageName, "generate",
			fmt.Sprintf("%s backend failed", g.backend.Name()), err)
	}

	display := strings.TrimSpace(content.DisplayText)
	caption := strings.TrimSpace(content.Caption)
	tags := g.catalog.ComposeTags(item.Kind, item.Sign, item.Theme, content.Tags...)

	logging.WithContext(ctx, g.logger).Debug(
		"copy drafted",
		logging.String("backend", g.backend.Name()),
		logging.Int("display_chars", len([]rune(display))),
		logging.Int("caption_chars", len([]rune(caption))),
		logging.Int("tags", len(tags)),
	)
	return queue.Patch{DisplayText: &display, Caption: &caption, Tags: tags}, nil
}

// PrepareBatch implements stage.BatchPreparer. Backends that can report
// reachability are checked once before the batch so an unreachable model
// leaves every draft pending instead of failing item by item.
func (g *Generator) PrepareBatch(ctx context.Context, items []*queue.Item) error {
	if g.backend == nil || len(items) == 0 {
		return nil
	}
	checker, ok := g.backend.(interface{ HealthCheck(context.Context) error })
	if !ok {
		return nil
	}
	if err := checker.HealthCheck(ctx); err != nil {
		return services.Wrap(services.ErrExternal, StageName, "prepare batch",
			fmt.Sprintf("%s backend unreachable", g.backend.Name()), err)
	}
	return nil
}

// HealthCheck implements stage.HealthChecker.
func (g *Generator) HealthCheck(ctx context.Context) stage.Health {
	if g.backend == nil {
		return stage.Unhealthy(StageName, "no backend configured")
	}
	if checker, ok := g.backend.(interface{ HealthCheck(context.Context) error }); ok {
		if err := checker.HealthCheck(ctx); err != nil {
			return stage.Unhealthy(StageName, err.Error())
		}
	}
	return stage.Healthy(StageName)
}

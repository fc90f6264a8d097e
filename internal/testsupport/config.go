package testsupport

import (
	"path/filepath"
	"testing"

	"postflow/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.DataDir = filepath.Join(base, "data")
	cfgVal.Paths.RenderDir = filepath.Join(base, "renders")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.OutboxDir = filepath.Join(base, "outbox")
	cfgVal.Scheduler.Timezone = "UTC"
	cfgVal.Workflow.Concurrency = 2
	cfgVal.Workflow.CapabilityTimeout = 5

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	if err := builder.cfg.EnsureDirectories(); err != nil {
		t.Fatalf("create config directories: %v", err)
	}
	return builder.cfg
}

// WithPublishTime overrides the daily scheduler slot.
func WithPublishTime(hour, minute int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Scheduler.PublishHour = hour
		b.cfg.Scheduler.PublishMinute = minute
	}
}

// WithBatchSize overrides the per-stage batch size.
func WithBatchSize(size int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Workflow.BatchSize = size
	}
}

// WithRenderSize shrinks the canvas so renderer tests stay fast.
func WithRenderSize(width, height int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Render.Width = width
		b.cfg.Render.Height = height
		b.cfg.Render.Margin = width / 10
		b.cfg.Render.FontSize = float64(height) / 24
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.DataDir)
}

package preflight

import (
	"context"
	"strings"

	"postflow/internal/config"
	"postflow/internal/queue"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes all applicable preflight checks for the given config.
// Remote checks only run for the backends that are selected.
func RunAll(ctx context.Context, cfg *config.Config, store *queue.Store) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("Data directory", cfg.Paths.DataDir),
		CheckDirectoryAccess("Render directory", cfg.Paths.RenderDir),
		CheckDirectoryAccess("Log directory", cfg.Paths.LogDir),
	}
	if usesOutbox(cfg) {
		results = append(results, CheckDirectoryAccess("Outbox directory", cfg.Paths.OutboxDir))
	}
	results = append(results, CheckStore(ctx, store))

	if strings.EqualFold(strings.TrimSpace(cfg.Generator.Backend), "llm") {
		results = append(results, CheckLLM(ctx, "Generator LLM", cfg.GetLLM()))
	}
	if strings.EqualFold(strings.TrimSpace(cfg.Publisher.Backend), "graph") {
		results = append(results, CheckGraph(ctx, cfg.Publisher))
	}
	return results
}

// Passed reports whether every result passed.
func Passed(results []Result) bool {
	for _, result := range results {
		if !result.Passed {
			return false
		}
	}
	return true
}

func usesOutbox(cfg *config.Config) bool {
	backend := strings.ToLower(strings.TrimSpace(cfg.Publisher.Backend))
	return backend == "" || backend == "outbox"
}

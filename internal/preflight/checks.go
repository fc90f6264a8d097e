package preflight

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"postflow/internal/config"
	"postflow/internal/queue"
	"postflow/internal/services/graph"
	"postflow/internal/services/llm"
)

// CheckLLM verifies that the LLM API is reachable and the key is valid.
// It uses a 30-second timeout and a single attempt (no retries).
func CheckLLM(ctx context.Context, name string, cfg config.LLMConfig) Result {
	if cfg.APIKey == "" {
		return Result{Name: name, Detail: "API key missing"}
	}

	checkCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	client := llm.NewClient(llm.Config{
		APIKey:  cfg.APIKey,
		BaseURL: cfg.BaseURL,
		Model:   cfg.Model,
		Referer: cfg.Referer,
		Title:   cfg.Title,
	}, llm.WithRetryMaxAttempts(1))

	if err := client.HealthCheck(checkCtx); err != nil {
		return Result{Name: name, Detail: summarizeError("LLM API", err)}
	}
	return Result{Name: name, Passed: true, Detail: "API reachable"}
}

// CheckGraph verifies that the Graph API access token can read the
// configured Instagram account.
func CheckGraph(ctx context.Context, cfg config.Publisher) Result {
	const name = "Graph API"

	if strings.TrimSpace(cfg.AccessToken) == "" {
		return Result{Name: name, Detail: "access token missing"}
	}
	if strings.TrimSpace(cfg.IGUserID) == "" {
		return Result{Name: name, Detail: "ig_user_id missing"}
	}
	if strings.TrimSpace(cfg.AssetBaseURL) == "" {
		return Result{Name: name, Detail: "asset_base_url missing"}
	}

	checkCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client := graph.NewClient(graph.Config{
		BaseURL:     cfg.GraphBaseURL,
		AccessToken: cfg.AccessToken,
		IGUserID:    cfg.IGUserID,
	})
	if err := client.VerifyToken(checkCtx); err != nil {
		return Result{Name: name, Detail: summarizeError("Graph API", err)}
	}
	return Result{Name: name, Passed: true, Detail: "token valid"}
}

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckStore verifies the item database schema and integrity.
func CheckStore(ctx context.Context, store *queue.Store) Result {
	const name = "Item database"

	if store == nil {
		return Result{Name: name, Detail: "store unavailable"}
	}
	health, err := store.CheckHealth(ctx)
	switch {
	case err != nil:
		return Result{Name: name, Detail: err.Error()}
	case !health.DatabaseExists:
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", health.DBPath)}
	case len(health.MissingColumns) > 0:
		return Result{Name: name, Detail: fmt.Sprintf("missing columns: %s (recreate the database)", strings.Join(health.MissingColumns, ", "))}
	case !health.IntegrityCheck:
		return Result{Name: name, Detail: "integrity check failed"}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("schema v%d, %d items", health.SchemaVersion, health.TotalItems)}
}

// summarizeError produces a human-readable summary for remote check failures.
func summarizeError(service string, err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Sprintf("health check timed out (%s unresponsive)", service)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Sprintf("health check timed out (%s unreachable)", service)
	}
	return err.Error()
}

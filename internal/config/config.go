package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains on-disk locations used by the pipeline.
type Paths struct {
	DataDir     string `toml:"data_dir"`
	RenderDir   string `toml:"render_dir"`
	LogDir      string `toml:"log_dir"`
	OutboxDir   string `toml:"outbox_dir"`
	CatalogPath string `toml:"catalog_path"`
	FontPath    string `toml:"font_path"`
	LogoPath    string `toml:"logo_path"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Workflow contains batch sizing and daemon timing.
type Workflow struct {
	BatchSize          int `toml:"batch_size"`
	Concurrency        int `toml:"concurrency"`
	CapabilityTimeout  int `toml:"capability_timeout_seconds"`
	PollInterval       int `toml:"poll_interval_seconds"`
	ErrorRetryInterval int `toml:"error_retry_seconds"`
}

// Planner controls how far ahead the calendar is filled.
type Planner struct {
	HorizonDays int `toml:"horizon_days"`
}

// Generator selects the text generation backend.
type Generator struct {
	Backend string `toml:"backend"`
}

// LLM contains chat completion connection settings.
type LLM struct {
	APIKey         string `toml:"api_key"`
	BaseURL        string `toml:"base_url"`
	Model          string `toml:"model"`
	Referer        string `toml:"referer"`
	Title          string `toml:"title"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Validator contains content policy limits.
type Validator struct {
	MaxDisplayText int `toml:"max_display_text"`
	MaxCaption     int `toml:"max_caption"`
	MaxTags        int `toml:"max_tags"`
}

// Render contains image composition settings.
type Render struct {
	Width        int     `toml:"width"`
	Height       int     `toml:"height"`
	Margin       int     `toml:"margin"`
	FontSize     float64 `toml:"font_size"`
	WrapWidth    int     `toml:"wrap_width"`
	Ellipses     int     `toml:"ellipses"`
	Background   string  `toml:"background"`
	Primary      string  `toml:"primary"`
	Accent       string  `toml:"accent"`
	AccentDark   string  `toml:"accent_dark"`
	Gold         string  `toml:"gold"`
	LogoFraction float64 `toml:"logo_fraction"`
}

// Scheduler contains the daily publish slot.
type Scheduler struct {
	PublishHour   int    `toml:"publish_hour"`
	PublishMinute int    `toml:"publish_minute"`
	Timezone      string `toml:"timezone"`
}

// Publisher selects and configures the publish backend.
type Publisher struct {
	Backend        string `toml:"backend"`
	GraphBaseURL   string `toml:"graph_base_url"`
	AccessToken    string `toml:"access_token"`
	IGUserID       string `toml:"ig_user_id"`
	AssetBaseURL   string `toml:"asset_base_url"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	RunSummary     bool   `toml:"run_summary"`
	Failures       bool   `toml:"failures"`
}

// Config encapsulates all configuration values for postflow.
//
// Configuration sections by subsystem:
//   - Paths: data, render, outbox and asset locations
//   - Logging: log format and level
//   - Workflow: batch size, worker concurrency, capability timeout, polling
//   - Planner: planning horizon
//   - Generator / LLM: text generation backend and chat completion settings
//   - Validator: content length and tag limits
//   - Render: canvas size and palette
//   - Scheduler: daily publish slot
//   - Publisher: outbox or Graph API backend
//   - Notifications: ntfy push notification settings
type Config struct {
	Paths         Paths         `toml:"paths"`
	Logging       Logging       `toml:"logging"`
	Workflow      Workflow      `toml:"workflow"`
	Planner       Planner       `toml:"planner"`
	Generator     Generator     `toml:"generator"`
	LLM           LLM           `toml:"llm"`
	Validator     Validator     `toml:"validator"`
	Render        Render        `toml:"render"`
	Scheduler     Scheduler     `toml:"scheduler"`
	Publisher     Publisher     `toml:"publisher"`
	Notifications Notifications `toml:"notifications"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("postflow.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the directories the pipeline writes into.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.RenderDir, c.Paths.LogDir, c.Paths.OutboxDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// DatabasePath returns the item store location.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Paths.DataDir, "postflow.db")
}

// LockPath returns the daemon single-instance lock location.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.DataDir, "postflow.lock")
}

// CapabilityTimeout bounds a single capability call.
func (c *Config) CapabilityTimeout() time.Duration {
	return time.Duration(c.Workflow.CapabilityTimeout) * time.Second
}

// PollInterval is the delay between daemon cycles.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Workflow.PollInterval) * time.Second
}

// ErrorRetryInterval is the delay after a cycle ended with an infrastructure error.
func (c *Config) ErrorRetryInterval() time.Duration {
	return time.Duration(c.Workflow.ErrorRetryInterval) * time.Second
}

// Location resolves the scheduler timezone.
func (c *Config) Location() (*time.Location, error) {
	name := strings.TrimSpace(c.Scheduler.Timezone)
	if name == "" || strings.EqualFold(name, "local") {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("scheduler.timezone: %w", err)
	}
	return loc, nil
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

// LLMConfig contains the chat completion settings handed to the LLM client.
type LLMConfig struct {
	APIKey         string
	BaseURL        string
	Model          string
	Referer        string
	Title          string
	TimeoutSeconds int
}

// GetLLM returns the trimmed LLM connection settings.
func (c *Config) GetLLM() LLMConfig {
	return LLMConfig{
		APIKey:         strings.TrimSpace(c.LLM.APIKey),
		BaseURL:        strings.TrimSpace(c.LLM.BaseURL),
		Model:          strings.TrimSpace(c.LLM.Model),
		Referer:        strings.TrimSpace(c.LLM.Referer),
		Title:          strings.TrimSpace(c.LLM.Title),
		TimeoutSeconds: c.LLM.TimeoutSeconds,
	}
}

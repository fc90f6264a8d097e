package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeLogging()
	c.normalizeGenerator()
	c.normalizeLLM()
	c.normalizePublisher()
	return nil
}

func (c *Config) normalizePaths() error {
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if strings.TrimSpace(c.Paths.RenderDir) == "" {
		c.Paths.RenderDir = defaultRenderDir
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if strings.TrimSpace(c.Paths.OutboxDir) == "" {
		c.Paths.OutboxDir = defaultOutboxDir
	}

	fields := []struct {
		key   string
		value *string
	}{
		{"paths.data_dir", &c.Paths.DataDir},
		{"paths.render_dir", &c.Paths.RenderDir},
		{"paths.log_dir", &c.Paths.LogDir},
		{"paths.outbox_dir", &c.Paths.OutboxDir},
		{"paths.catalog_path", &c.Paths.CatalogPath},
		{"paths.font_path", &c.Paths.FontPath},
		{"paths.logo_path", &c.Paths.LogoPath},
	}
	for _, field := range fields {
		expanded, err := expandPath(strings.TrimSpace(*field.value))
		if err != nil {
			return fmt.Errorf("%s: %w", field.key, err)
		}
		*field.value = expanded
	}
	return nil
}

func (c *Config) normalizeLogging() {
	format := strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if format == "" {
		format = defaultLogFormat
	}
	c.Logging.Format = format

	level := strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if level == "" {
		level = defaultLogLevel
	}
	c.Logging.Level = level
}

func (c *Config) normalizeGenerator() {
	backend := strings.ToLower(strings.TrimSpace(c.Generator.Backend))
	if backend == "" {
		backend = defaultGeneratorBackend
	}
	c.Generator.Backend = backend
}

func (c *Config) normalizeLLM() {
	if strings.TrimSpace(c.LLM.APIKey) == "" {
		for _, key := range []string{"POSTFLOW_LLM_API_KEY", "OPENROUTER_API_KEY"} {
			if value, ok := os.LookupEnv(key); ok && strings.TrimSpace(value) != "" {
				c.LLM.APIKey = strings.TrimSpace(value)
				break
			}
		}
	}
	c.LLM.BaseURL = strings.TrimSpace(c.LLM.BaseURL)
	if c.LLM.BaseURL == "" {
		c.LLM.BaseURL = defaultLLMBaseURL
	}
	c.LLM.Model = strings.TrimSpace(c.LLM.Model)
	if c.LLM.Model == "" {
		c.LLM.Model = defaultLLMModel
	}
	if c.LLM.TimeoutSeconds <= 0 {
		c.LLM.TimeoutSeconds = defaultLLMTimeoutSeconds
	}
}

func (c *Config) normalizePublisher() {
	backend := strings.ToLower(strings.TrimSpace(c.Publisher.Backend))
	if backend == "" {
		backend = defaultPublisherBackend
	}
	c.Publisher.Backend = backend

	if strings.TrimSpace(c.Publisher.AccessToken) == "" {
		if value, ok := os.LookupEnv("INSTAGRAM_ACCESS_TOKEN"); ok {
			c.Publisher.AccessToken = strings.TrimSpace(value)
		}
	}
	if strings.TrimSpace(c.Publisher.IGUserID) == "" {
		if value, ok := os.LookupEnv("INSTAGRAM_IG_USER_ID"); ok {
			c.Publisher.IGUserID = strings.TrimSpace(value)
		}
	}
	c.Publisher.GraphBaseURL = strings.TrimRight(strings.TrimSpace(c.Publisher.GraphBaseURL), "/")
	if c.Publisher.GraphBaseURL == "" {
		c.Publisher.GraphBaseURL = defaultGraphBaseURL
	}
	c.Publisher.AssetBaseURL = strings.TrimRight(strings.TrimSpace(c.Publisher.AssetBaseURL), "/")
}

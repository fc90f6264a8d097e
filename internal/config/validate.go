package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateLogging(); err != nil {
		return err
	}
	if err := c.validateWorkflow(); err != nil {
		return err
	}
	if err := c.validateGenerator(); err != nil {
		return err
	}
	if err := c.validateValidator(); err != nil {
		return err
	}
	if err := c.validateRender(); err != nil {
		return err
	}
	if err := c.validateScheduler(); err != nil {
		return err
	}
	if err := c.validatePublisher(); err != nil {
		return err
	}
	if c.Notifications.RequestTimeout <= 0 {
		return errors.New("notifications.request_timeout must be positive")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	return nil
}

func (c *Config) validateWorkflow() error {
	if err := ensurePositiveMap(map[string]int{
		"workflow.batch_size":                 c.Workflow.BatchSize,
		"workflow.concurrency":                c.Workflow.Concurrency,
		"workflow.capability_timeout_seconds": c.Workflow.CapabilityTimeout,
		"workflow.poll_interval_seconds":      c.Workflow.PollInterval,
		"workflow.error_retry_seconds":        c.Workflow.ErrorRetryInterval,
		"planner.horizon_days":                c.Planner.HorizonDays,
	}); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateGenerator() error {
	switch c.Generator.Backend {
	case "template":
		return nil
	case "llm":
		if strings.TrimSpace(c.LLM.APIKey) == "" {
			return errors.New("llm.api_key must be set when generator.backend is \"llm\" (or set POSTFLOW_LLM_API_KEY)")
		}
		return nil
	default:
		return fmt.Errorf("generator.backend: unsupported value %q", c.Generator.Backend)
	}
}

func (c *Config) validateValidator() error {
	return ensurePositiveMap(map[string]int{
		"validator.max_display_text": c.Validator.MaxDisplayText,
		"validator.max_caption":      c.Validator.MaxCaption,
		"validator.max_tags":         c.Validator.MaxTags,
	})
}

func (c *Config) validateRender() error {
	if err := ensurePositiveMap(map[string]int{
		"render.width":      c.Render.Width,
		"render.height":     c.Render.Height,
		"render.wrap_width": c.Render.WrapWidth,
	}); err != nil {
		return err
	}
	if c.Render.Margin < 0 || 2*c.Render.Margin >= c.Render.Width {
		return errors.New("render.margin must leave room for text")
	}
	if c.Render.FontSize <= 0 {
		return errors.New("render.font_size must be positive")
	}
	if c.Render.Ellipses < 0 {
		return errors.New("render.ellipses must not be negative")
	}
	if c.Render.LogoFraction <= 0 || c.Render.LogoFraction >= 1 {
		return errors.New("render.logo_fraction must be between 0 and 1")
	}
	for key, value := range map[string]string{
		"render.background":  c.Render.Background,
		"render.primary":     c.Render.Primary,
		"render.accent":      c.Render.Accent,
		"render.accent_dark": c.Render.AccentDark,
		"render.gold":        c.Render.Gold,
	} {
		if !isHexColor(value) {
			return fmt.Errorf("%s must be a #RRGGBB color", key)
		}
	}
	return nil
}

func (c *Config) validateScheduler() error {
	if c.Scheduler.PublishHour < 0 || c.Scheduler.PublishHour > 23 {
		return errors.New("scheduler.publish_hour must be between 0 and 23")
	}
	if c.Scheduler.PublishMinute < 0 || c.Scheduler.PublishMinute > 59 {
		return errors.New("scheduler.publish_minute must be between 0 and 59")
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePublisher() error {
	if c.Publisher.TimeoutSeconds <= 0 {
		return errors.New("publisher.timeout_seconds must be positive")
	}
	switch c.Publisher.Backend {
	case "outbox":
		return nil
	case "graph":
		if strings.TrimSpace(c.Publisher.AccessToken) == "" {
			return errors.New("publisher.access_token must be set when publisher.backend is \"graph\" (or set INSTAGRAM_ACCESS_TOKEN)")
		}
		if strings.TrimSpace(c.Publisher.IGUserID) == "" {
			return errors.New("publisher.ig_user_id must be set when publisher.backend is \"graph\" (or set INSTAGRAM_IG_USER_ID)")
		}
		if c.Publisher.AssetBaseURL == "" {
			return errors.New("publisher.asset_base_url must be set when publisher.backend is \"graph\"")
		}
		return nil
	default:
		return fmt.Errorf("publisher.backend: unsupported value %q", c.Publisher.Backend)
	}
}

func isHexColor(value string) bool {
	value = strings.TrimSpace(value)
	if len(value) != 7 || value[0] != '#' {
		return false
	}
	for _, r := range value[1:] {
		switch {
		case r >= '0' && r <= '9', r >= 'a' && r <= 'f', r >= 'A' && r <= 'F':
		default:
			return false
		}
	}
	return true
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}

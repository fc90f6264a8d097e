package main

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"postflow/internal/config"
	"postflow/internal/logging"
	"postflow/internal/queue"
	"postflow/internal/workflow"
)

type commandContext struct {
	configFlag   *string
	logLevelFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error

	loggerOnce sync.Once
	logger     *slog.Logger
	loggerErr  error
}

func newCommandContext(configFlag, logLevelFlag *string) *commandContext {
	return &commandContext{
		configFlag:   configFlag,
		logLevelFlag: logLevelFlag,
	}
}

func (c *commandContext) configPath() string {
	if c.configFlag == nil {
		return ""
	}
	return strings.TrimSpace(*c.configFlag)
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		cfg, _, _, err := config.Load(c.configPath())
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

// commandLogger logs to stderr and the shared log file so command output on
// stdout stays machine-readable.
func (c *commandContext) commandLogger() (*slog.Logger, error) {
	c.loggerOnce.Do(func() {
		cfg, err := c.ensureConfig()
		if err != nil {
			c.loggerErr = err
			return
		}
		level := cfg.Logging.Level
		if c.logLevelFlag != nil && strings.TrimSpace(*c.logLevelFlag) != "" {
			level = strings.TrimSpace(*c.logLevelFlag)
		}
		logPath := filepath.Join(cfg.Paths.LogDir, "postflow.log")
		c.logger, c.loggerErr = logging.New(logging.Options{
			Level:            level,
			Format:           cfg.Logging.Format,
			OutputPaths:      []string{"stderr", logPath},
			ErrorOutputPaths: []string{"stderr", logPath},
		})
		if c.loggerErr != nil {
			c.loggerErr = fmt.Errorf("init logger: %w", c.loggerErr)
		}
	})
	return c.logger, c.loggerErr
}

func (c *commandContext) withStore(fn func(cfg *config.Config, store *queue.Store) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	store, err := queue.Open(cfg)
	if err != nil {
		return fmt.Errorf("open item store: %w", err)
	}
	defer store.Close()
	return fn(cfg, store)
}

func (c *commandContext) withOrchestrator(window scheduleWindow, fn func(cfg *config.Config, o *workflow.Orchestrator) error) error {
	logger, err := c.commandLogger()
	if err != nil {
		return err
	}
	return c.withStore(func(cfg *config.Config, store *queue.Store) error {
		o, err := workflow.Build(cfg, store, workflow.BuildOptions{
			Logger:        logger,
			ScheduleStart: window.start,
			ScheduleEnd:   window.end,
		})
		if err != nil {
			return err
		}
		return fn(cfg, o)
	})
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

// scheduleWindow bounds the days the schedule stage may assign.
type scheduleWindow struct {
	start time.Time
	end   time.Time
}

func parseScheduleWindow(cfg *config.Config, startValue, endValue string) (scheduleWindow, error) {
	start, err := parseDay(cfg, startValue)
	if err != nil {
		return scheduleWindow{}, err
	}
	end, err := parseDay(cfg, endValue)
	if err != nil {
		return scheduleWindow{}, err
	}
	if !start.IsZero() && !end.IsZero() && end.Before(start) {
		return scheduleWindow{}, fmt.Errorf("schedule end %s is before start %s", end.Format(time.DateOnly), start.Format(time.DateOnly))
	}
	return scheduleWindow{start: start, end: end}, nil
}

// parseDay reads a YYYY-MM-DD flag value as midnight in the configured
// timezone. An empty value yields the zero time.
func parseDay(cfg *config.Config, value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, nil
	}
	loc, err := cfg.Location()
	if err != nil {
		return time.Time{}, err
	}
	day, err := time.ParseInLocation("2006-01-02", value, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q (want YYYY-MM-DD)", value)
	}
	return day, nil
}

func formatOptionalTime(value *time.Time, loc *time.Location) string {
	if value == nil || value.IsZero() {
		return "-"
	}
	if loc == nil {
		loc = time.UTC
	}
	return value.In(loc).Format("2006-01-02 15:04 MST")
}

func dash(value string) string {
	if strings.TrimSpace(value) == "" {
		return "-"
	}
	return value
}

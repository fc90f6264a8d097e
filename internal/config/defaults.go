package config

const (
	defaultConfigPath           = "~/.config/postflow/config.toml"
	defaultDataDir              = "~/.local/share/postflow"
	defaultRenderDir            = "~/.local/share/postflow/renders"
	defaultLogDir               = "~/.local/share/postflow/logs"
	defaultOutboxDir            = "~/.local/share/postflow/outbox"
	defaultLogFormat            = "console"
	defaultLogLevel             = "info"
	defaultBatchSize            = 20
	defaultConcurrency          = 4
	defaultCapabilityTimeout    = 120
	defaultPollInterval         = 300
	defaultErrorRetryInterval   = 60
	defaultHorizonDays          = 7
	defaultGeneratorBackend     = "template"
	defaultLLMBaseURL           = "https://openrouter.ai/api/v1/chat/completions"
	defaultLLMModel             = "google/gemini-3-flash-preview"
	defaultLLMTitle             = "postflow"
	defaultLLMTimeoutSeconds    = 60
	defaultMaxDisplayText       = 220
	defaultMaxCaption           = 2200
	defaultMaxTags              = 30
	defaultRenderWidth          = 1080
	defaultRenderHeight         = 1350
	defaultRenderMargin         = 120
	defaultRenderFontSize       = 56
	defaultRenderWrapWidth      = 28
	defaultRenderEllipses       = 6
	defaultRenderBackground     = "#F9F6FF"
	defaultRenderPrimary        = "#4B2F68"
	defaultRenderAccent         = "#C2A7FF"
	defaultRenderAccentDark     = "#1C102B"
	defaultRenderGold           = "#F5C76B"
	defaultRenderLogoFraction   = 0.18
	defaultPublishHour          = 9
	defaultPublisherBackend     = "outbox"
	defaultGraphBaseURL         = "https://graph.facebook.com/v21.0"
	defaultPublisherTimeout     = 60
	defaultNotifyRequestTimeout = 10
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir:   defaultDataDir,
			RenderDir: defaultRenderDir,
			LogDir:    defaultLogDir,
			OutboxDir: defaultOutboxDir,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
		Workflow: Workflow{
			BatchSize:          defaultBatchSize,
			Concurrency:        defaultConcurrency,
			CapabilityTimeout:  defaultCapabilityTimeout,
			PollInterval:       defaultPollInterval,
			ErrorRetryInterval: defaultErrorRetryInterval,
		},
		Planner: Planner{
			HorizonDays: defaultHorizonDays,
		},
		Generator: Generator{
			Backend: defaultGeneratorBackend,
		},
		LLM: LLM{
			BaseURL:        defaultLLMBaseURL,
			Model:          defaultLLMModel,
			Title:          defaultLLMTitle,
			TimeoutSeconds: defaultLLMTimeoutSeconds,
		},
		Validator: Validator{
			MaxDisplayText: defaultMaxDisplayText,
			MaxCaption:     defaultMaxCaption,
			MaxTags:        defaultMaxTags,
		},
		Render: Render{
			Width:        defaultRenderWidth,
			Height:       defaultRenderHeight,
			Margin:       defaultRenderMargin,
			FontSize:     defaultRenderFontSize,
			WrapWidth:    defaultRenderWrapWidth,
			Ellipses:     defaultRenderEllipses,
			Background:   defaultRenderBackground,
			Primary:      defaultRenderPrimary,
			Accent:       defaultRenderAccent,
			AccentDark:   defaultRenderAccentDark,
			Gold:         defaultRenderGold,
			LogoFraction: defaultRenderLogoFraction,
		},
		Scheduler: Scheduler{
			PublishHour: defaultPublishHour,
			Timezone:    "Local",
		},
		Publisher: Publisher{
			Backend:        defaultPublisherBackend,
			GraphBaseURL:   defaultGraphBaseURL,
			TimeoutSeconds: defaultPublisherTimeout,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyRequestTimeout,
			RunSummary:     true,
			Failures:       true,
		},
	}
}

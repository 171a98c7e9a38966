package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Mailbox    MailboxConfig    `yaml:"mailbox" mapstructure:"mailbox"`
	Stages     StagesConfig     `yaml:"stages" mapstructure:"stages"`
	Monitor    MonitorConfig    `yaml:"monitor" mapstructure:"monitor"`
	Classify   ClassifyConfig   `yaml:"classify" mapstructure:"classify"`
	Anthropic  AnthropicConfig  `yaml:"anthropic" mapstructure:"anthropic"`
	Salesforce SalesforceConfig `yaml:"salesforce" mapstructure:"salesforce"`
	Pricing    PricingConfig    `yaml:"pricing" mapstructure:"pricing"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the tracking backend.
type StoreConfig struct {
	// Driver is one of xlsx, sqlite, postgres.
	Driver string `yaml:"driver" mapstructure:"driver"`
	// Path is the workbook or sqlite file location for file-backed drivers.
	Path        string `yaml:"path" mapstructure:"path"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// MailboxConfig configures where inbound replies are read from.
type MailboxConfig struct {
	Path       string `yaml:"path" mapstructure:"path"`
	SinceHours int    `yaml:"since_hours" mapstructure:"since_hours"`
}

// StagesConfig points at an external stage table. Empty means the built-in
// ten-stage table.
type StagesConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// MonitorConfig configures the continuous reply monitor.
type MonitorConfig struct {
	IntervalMins    int      `yaml:"interval_mins" mapstructure:"interval_mins"`
	FollowupDays    int      `yaml:"followup_days" mapstructure:"followup_days"`
	SpamDomains     []string `yaml:"spam_domains" mapstructure:"spam_domains"`
	ActivityLogPath string   `yaml:"activity_log_path" mapstructure:"activity_log_path"`
	DLQMaxRetries   int      `yaml:"dlq_max_retries" mapstructure:"dlq_max_retries"`
}

// ClassifyConfig tunes the two-tier classifier.
type ClassifyConfig struct {
	UseAI               bool    `yaml:"use_ai" mapstructure:"use_ai"`
	BlendThreshold      float64 `yaml:"blend_threshold" mapstructure:"blend_threshold"`
	ComplexWordLimit    int     `yaml:"complex_word_limit" mapstructure:"complex_word_limit"`
	SmallBatchThreshold int     `yaml:"small_batch_threshold" mapstructure:"small_batch_threshold"`
	NoBatch             bool    `yaml:"no_batch" mapstructure:"no_batch"`
}

// AnthropicConfig holds Anthropic API settings. SonnetModel is the model the
// intent engine classifies with.
type AnthropicConfig struct {
	Key         string `yaml:"key" mapstructure:"key"`
	SonnetModel string `yaml:"sonnet_model" mapstructure:"sonnet_model"`
}

// SalesforceConfig holds Salesforce JWT auth settings.
type SalesforceConfig struct {
	Enabled  bool    `yaml:"enabled" mapstructure:"enabled"`
	ClientID string  `yaml:"client_id" mapstructure:"client_id"`
	Username string  `yaml:"username" mapstructure:"username"`
	KeyPath  string  `yaml:"key_path" mapstructure:"key_path"`
	LoginURL string  `yaml:"login_url" mapstructure:"login_url"`
	RPS      float64 `yaml:"rps" mapstructure:"rps"`
}

// PricingConfig holds Anthropic pricing rates keyed by model ID.
type PricingConfig struct {
	Anthropic map[string]ModelPricing `yaml:"anthropic" mapstructure:"anthropic"`
}

// ModelPricing holds per-model token pricing (USD per million tokens).
type ModelPricing struct {
	Input         float64 `yaml:"input" mapstructure:"input"`
	Output        float64 `yaml:"output" mapstructure:"output"`
	BatchDiscount float64 `yaml:"batch_discount" mapstructure:"batch_discount"`
	CacheWriteMul float64 `yaml:"cache_write_mul" mapstructure:"cache_write_mul"`
	CacheReadMul  float64 `yaml:"cache_read_mul" mapstructure:"cache_read_mul"`
}

// ServerConfig configures the status server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("OUTREACH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "xlsx")
	v.SetDefault("store.path", "email_tracking.xlsx")
	v.SetDefault("mailbox.path", "replies.jsonl")
	v.SetDefault("mailbox.since_hours", 24)
	v.SetDefault("monitor.interval_mins", 30)
	v.SetDefault("monitor.followup_days", 3)
	v.SetDefault("monitor.activity_log_path", "activity_log.json")
	v.SetDefault("monitor.dlq_max_retries", 3)
	v.SetDefault("classify.use_ai", true)
	v.SetDefault("classify.blend_threshold", 0.75)
	v.SetDefault("classify.complex_word_limit", 100)
	v.SetDefault("classify.small_batch_threshold", 8)
	v.SetDefault("anthropic.sonnet_model", "claude-sonnet-4-5-20250929")
	v.SetDefault("salesforce.login_url", "https://login.salesforce.com")
	v.SetDefault("salesforce.rps", 5.0)
	v.SetDefault("server.port", 8080)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks that the fields required for the given run mode are set.
// Mode is one of check, monitor, serve, migrate, sync.
func (c *Config) Validate(mode string) error {
	var missing []string

	requireStore := func() {
		switch c.Store.Driver {
		case "xlsx", "sqlite":
			if c.Store.Path == "" {
				missing = append(missing, "store.path is required")
			}
		case "postgres":
			if c.Store.DatabaseURL == "" {
				missing = append(missing, "store.database_url is required")
			}
		default:
			missing = append(missing, "store.driver must be xlsx, sqlite or postgres")
		}
	}

	requireClassify := func() {
		if c.Classify.UseAI && c.Anthropic.Key == "" {
			missing = append(missing, "anthropic.key is required when classify.use_ai is set")
		}
		if c.Classify.BlendThreshold < 0 || c.Classify.BlendThreshold > 1 {
			missing = append(missing, "classify.blend_threshold must be between 0 and 1")
		}
	}

	switch mode {
	case "check":
		requireStore()
		requireClassify()
	case "monitor":
		requireStore()
		requireClassify()
		if c.Monitor.IntervalMins < 1 {
			missing = append(missing, "monitor.interval_mins must be >= 1")
		}
		if c.Monitor.FollowupDays < 0 {
			missing = append(missing, "monitor.followup_days must be >= 0")
		}
	case "serve":
		requireStore()
		if c.Server.Port <= 0 {
			missing = append(missing, "server.port must be > 0")
		}
	case "migrate":
		if c.Store.DatabaseURL == "" {
			missing = append(missing, "store.database_url is required")
		}
	case "sync":
		requireStore()
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if c.Salesforce.Enabled {
		if c.Salesforce.ClientID == "" {
			missing = append(missing, "salesforce.client_id is required when salesforce.enabled is set")
		}
		if c.Salesforce.Username == "" {
			missing = append(missing, "salesforce.username is required when salesforce.enabled is set")
		}
	}

	if len(missing) > 0 {
		return eris.New("config: " + strings.Join(missing, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}

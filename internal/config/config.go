package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/guard-tgbot-go/internal/replies"
	"github.com/spf13/viper"
)

type Config struct {
	Bot        BotConfig        `mapstructure:"bot"`
	Generative GenerativeConfig `mapstructure:"generative"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Moderation ModerationConfig `mapstructure:"moderation"`
	RateLimit  RateLimitConfig  `mapstructure:"rate_limit"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	Monitoring MonitoringConfig `mapstructure:"monitoring"`
}

type BotConfig struct {
	Token         string        `mapstructure:"token"`
	Webhook       WebhookConfig `mapstructure:"webhook"`
	UpdateTimeout int           `mapstructure:"update_timeout"`
}

type WebhookConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	URL     string `mapstructure:"url"`
	Port    int    `mapstructure:"port"`
}

// GenerativeConfig points the reply source at any OpenAI-compatible
// chat-completions endpoint.
type GenerativeConfig struct {
	Enabled     bool    `mapstructure:"enabled"`
	BaseURL     string  `mapstructure:"base_url"`
	APIKey      string  `mapstructure:"api_key"`
	Model       string  `mapstructure:"model"`
	MaxTokens   int     `mapstructure:"max_tokens"`
	Temperature float32 `mapstructure:"temperature"`
}

type StorageConfig struct {
	Type   string       `mapstructure:"type"`
	Redis  RedisConfig  `mapstructure:"redis"`
	Memory MemoryConfig `mapstructure:"memory"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type MemoryConfig struct {
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
}

// ModerationConfig is the whole decision surface of the bot: phrase sets,
// the static reply table, the flagged-user lists and the TTL windows.
type ModerationConfig struct {
	Phrases      PhrasesConfig    `mapstructure:"phrases"`
	Replies      []replies.Entry  `mapstructure:"replies"`
	NoisyUserIDs []int64          `mapstructure:"noisy_user_ids"`
	History      HistoryConfig    `mapstructure:"history"`
	Burst        BurstConfig      `mapstructure:"burst"`
	Escalation   EscalationConfig `mapstructure:"escalation"`
}

type PhrasesConfig struct {
	Affirming []string `mapstructure:"affirming"`
	Hostile   []string `mapstructure:"hostile"`
	Vulgar    []string `mapstructure:"vulgar"`
}

type HistoryConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	Size    int           `mapstructure:"size"`
	TTL     time.Duration `mapstructure:"ttl"`
	LineCap int           `mapstructure:"line_cap"`
}

type BurstConfig struct {
	Enabled       bool          `mapstructure:"enabled"`
	Threshold     int           `mapstructure:"threshold"`
	Capacity      int           `mapstructure:"capacity"`
	TTL           time.Duration `mapstructure:"ttl"`
	FallbackReply string        `mapstructure:"fallback_reply"`
}

type EscalationConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	Threshold       int           `mapstructure:"threshold"`
	CounterTTL      time.Duration `mapstructure:"counter_ttl"`
	OverrideUserIDs []int64       `mapstructure:"override_user_ids"`
}

type RateLimitConfig struct {
	Enabled           bool `mapstructure:"enabled"`
	RequestsPerMinute int  `mapstructure:"requests_per_minute"`
	Burst             int  `mapstructure:"burst"`
}

type LoggingConfig struct {
	Level  string     `mapstructure:"level"`
	Format string     `mapstructure:"format"`
	Output string     `mapstructure:"output"`
	File   FileConfig `mapstructure:"file"`
}

type FileConfig struct {
	Path       string `mapstructure:"path"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
}

type MonitoringConfig struct {
	Metrics MetricsConfig `mapstructure:"metrics"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Port    int    `mapstructure:"port"`
	Path    string `mapstructure:"path"`
}

// LoadConfig loads configuration from file and environment variables
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")

	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	v.BindEnv("bot.token", "BOT_TOKEN")
	v.BindEnv("generative.api_key", "OPENAI_API_KEY")
	v.BindEnv("generative.base_url", "OPENAI_BASE_URL")
	v.BindEnv("generative.model", "OPENAI_MODEL")
	v.BindEnv("storage.redis.password", "REDIS_PASSWORD")
	v.BindEnv("storage.redis.db", "REDIS_DB")

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// REDIS_HOST/REDIS_PORT override the configured address as a pair
	if redisHost := v.GetString("REDIS_HOST"); redisHost != "" {
		redisPort := v.GetString("REDIS_PORT")
		if redisPort == "" {
			redisPort = "6379"
		}
		config.Storage.Redis.Addr = fmt.Sprintf("%s:%s", redisHost, redisPort)
	}

	applyDefaults(&config)

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

// applyDefaults fills the windows and limits the original deployment used.
func applyDefaults(cfg *Config) {
	if cfg.Generative.Model == "" {
		cfg.Generative.Model = "gpt-4o-mini"
	}
	if cfg.Generative.MaxTokens == 0 {
		cfg.Generative.MaxTokens = 60
	}
	if cfg.Generative.Temperature == 0 {
		cfg.Generative.Temperature = 0.7
	}
	if cfg.Storage.Type == "" {
		cfg.Storage.Type = "disabled"
	}
	if cfg.Storage.Memory.CleanupInterval == 0 {
		cfg.Storage.Memory.CleanupInterval = 10 * time.Minute
	}
	if cfg.Moderation.History.Size == 0 {
		cfg.Moderation.History.Size = 5
	}
	if cfg.Moderation.History.TTL == 0 {
		cfg.Moderation.History.TTL = 5 * time.Minute
	}
	if cfg.Moderation.History.LineCap == 0 {
		cfg.Moderation.History.LineCap = 200
	}
	if cfg.Moderation.Burst.Threshold == 0 {
		cfg.Moderation.Burst.Threshold = 2
	}
	if cfg.Moderation.Burst.Capacity == 0 {
		cfg.Moderation.Burst.Capacity = 10
	}
	if cfg.Moderation.Burst.TTL == 0 {
		cfg.Moderation.Burst.TTL = 90 * time.Second
	}
	if cfg.Moderation.Escalation.Threshold == 0 {
		cfg.Moderation.Escalation.Threshold = 3
	}
	if cfg.Moderation.Escalation.CounterTTL == 0 {
		cfg.Moderation.Escalation.CounterTTL = 24 * time.Hour
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "text"
	}
}

func validateConfig(cfg *Config) error {
	if cfg.Bot.Token == "" {
		return fmt.Errorf("bot token is required")
	}
	switch cfg.Storage.Type {
	case "redis", "memory", "disabled":
	default:
		return fmt.Errorf("unsupported storage type: %s", cfg.Storage.Type)
	}
	if cfg.Storage.Type == "redis" && cfg.Storage.Redis.Addr == "" {
		return fmt.Errorf("redis storage requires an address")
	}
	if cfg.Generative.Enabled && cfg.Generative.APIKey == "" {
		return fmt.Errorf("generative source requires an api key")
	}
	if cfg.Bot.Webhook.Enabled && !strings.HasPrefix(cfg.Bot.Webhook.URL, "https://") {
		return fmt.Errorf("webhook url must be https")
	}
	return nil
}

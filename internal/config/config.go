package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all LLM Quota Guardian configuration.
type Config struct {
	Storage     StorageConfig     `mapstructure:"storage"`
	Credentials CredentialsConfig `mapstructure:"credentials"`
	Usage       UsageConfig       `mapstructure:"usage"`
	Thresholds  ThresholdsConfig  `mapstructure:"thresholds"`
	Alerts      AlertsConfig      `mapstructure:"alerts"`
	Server      ServerConfig      `mapstructure:"server"`
	Logging     LoggingConfig     `mapstructure:"logging"`
}

// StorageConfig selects and configures the alert state backend.
type StorageConfig struct {
	Backend    string     `mapstructure:"backend"` // file, sqlite, nats
	Path       string     `mapstructure:"path"`
	SQLitePath string     `mapstructure:"sqlite_path"`
	NATS       NATSConfig `mapstructure:"nats"`
}

// NATSConfig defines the JetStream key-value backend.
type NATSConfig struct {
	URL          string `mapstructure:"url"`
	Bucket       string `mapstructure:"bucket"`
	Key          string `mapstructure:"key"`
	CreateBucket bool   `mapstructure:"create_bucket"`
}

// CredentialsConfig defines where the bearer token comes from and how it is renewed.
type CredentialsConfig struct {
	Source          string        `mapstructure:"source"` // file, keychain, env
	Path            string        `mapstructure:"path"`
	KeychainService string        `mapstructure:"keychain_service"`
	Token           string        `mapstructure:"token"`
	GracePeriod     time.Duration `mapstructure:"grace_period"`
	RefreshCommand  string        `mapstructure:"refresh_command"`
	RefreshArgs     []string      `mapstructure:"refresh_args"`
	RefreshTimeout  time.Duration `mapstructure:"refresh_timeout"`
}

// UsageConfig defines the usage API client.
type UsageConfig struct {
	URL        string        `mapstructure:"url"`
	BetaHeader string        `mapstructure:"beta_header"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

// ThresholdsConfig holds the alert thresholds of each window, in percent.
type ThresholdsConfig struct {
	FiveHour []int `mapstructure:"five_hour"`
	Weekly   []int `mapstructure:"weekly"`
}

// AlertsConfig defines alerting integrations.
type AlertsConfig struct {
	Slack    SlackConfig    `mapstructure:"slack"`
	Webhook  WebhookConfig  `mapstructure:"webhook"`
	Telegram TelegramConfig `mapstructure:"telegram"`
	Desktop  DesktopConfig  `mapstructure:"desktop"`
}

// SlackConfig defines Slack webhook settings.
type SlackConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	WebhookURL string `mapstructure:"webhook_url"`
	Channel    string `mapstructure:"channel"`
}

// WebhookConfig defines generic webhook settings.
type WebhookConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	URL     string `mapstructure:"url"`
	Secret  string `mapstructure:"secret"`
}

// TelegramConfig defines Telegram bot settings.
type TelegramConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	BotToken string `mapstructure:"bot_token"`
	ChatID   string `mapstructure:"chat_id"`
	APIBase  string `mapstructure:"api_base"`
}

// DesktopConfig toggles native desktop notifications.
type DesktopConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// ServerConfig defines the HTTP trigger endpoint.
type ServerConfig struct {
	Listen       string        `mapstructure:"listen"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	Interval     time.Duration `mapstructure:"interval"` // 0 disables the in-process ticker
}

// LoggingConfig defines logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from .env files, the config file and environment variables.
func Load(cfgFile string) (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("find home directory: %w", err)
	}

	loadDotEnv(".env", filepath.Join(home, ".lqg", ".env"))

	v := viper.New()
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(filepath.Join(home, ".lqg"))
		v.AddConfigPath(".")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	// Defaults
	v.SetDefault("storage.backend", "file")
	v.SetDefault("storage.path", filepath.Join(xdg.StateHome, "lqg", "alert-state.json"))
	v.SetDefault("storage.sqlite_path", filepath.Join(xdg.StateHome, "lqg", "lqg.db"))
	v.SetDefault("storage.nats.url", "nats://127.0.0.1:4222")
	v.SetDefault("storage.nats.bucket", "lqg")
	v.SetDefault("storage.nats.key", "alert_state")
	v.SetDefault("storage.nats.create_bucket", true)
	v.SetDefault("credentials.source", "file")
	v.SetDefault("credentials.path", filepath.Join(home, ".claude", ".credentials.json"))
	v.SetDefault("credentials.keychain_service", "Claude Code-credentials")
	v.SetDefault("credentials.grace_period", "5m")
	v.SetDefault("credentials.refresh_command", "claude")
	v.SetDefault("credentials.refresh_args", []string{"-p", "ok", "--max-turns", "1"})
	v.SetDefault("credentials.refresh_timeout", "2m")
	v.SetDefault("usage.url", "https://api.anthropic.com/api/oauth/usage")
	v.SetDefault("usage.beta_header", "oauth-2025-04-20")
	v.SetDefault("usage.timeout", "15s")
	v.SetDefault("thresholds.five_hour", []int{75, 90, 95, 100})
	v.SetDefault("thresholds.weekly", []int{50, 75, 90, 95, 100})
	v.SetDefault("alerts.slack.channel", "#llm-quota")
	v.SetDefault("server.listen", ":8080")
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "5m")
	v.SetDefault("server.interval", "0s")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	// Environment variables
	v.SetEnvPrefix("LQG")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file (ignore if not found)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values that would otherwise fail late, inside a check.
func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case "file", "sqlite", "nats":
	default:
		return fmt.Errorf("unknown storage backend %q", c.Storage.Backend)
	}
	switch c.Credentials.Source {
	case "file", "keychain", "env":
	default:
		return fmt.Errorf("unknown credentials source %q", c.Credentials.Source)
	}
	for name, values := range map[string][]int{
		"thresholds.five_hour": c.Thresholds.FiveHour,
		"thresholds.weekly":    c.Thresholds.Weekly,
	} {
		for _, v := range values {
			if v <= 0 {
				return fmt.Errorf("%s: threshold %d must be positive", name, v)
			}
		}
	}
	return nil
}

// loadDotEnv loads the first .env file found. Existing variables win.
func loadDotEnv(paths ...string) {
	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			_ = godotenv.Load(path)
			return
		}
	}
}

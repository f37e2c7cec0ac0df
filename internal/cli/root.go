package cli

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/ogulcanaydogan/LLM-Quota-Guardian/internal/config"
	"github.com/ogulcanaydogan/LLM-Quota-Guardian/pkg/alerts"
	"github.com/ogulcanaydogan/LLM-Quota-Guardian/pkg/credentials"
	"github.com/ogulcanaydogan/LLM-Quota-Guardian/pkg/engine"
	"github.com/ogulcanaydogan/LLM-Quota-Guardian/pkg/storage"
	"github.com/ogulcanaydogan/LLM-Quota-Guardian/pkg/usage"
	"github.com/spf13/cobra"
)

// Version is set at build time via ldflags.
var Version = "dev"

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "lqg",
	Short: "LLM Quota Guardian - usage threshold alerts for rate-limited AI quotas",
	Long: `LLM Quota Guardian samples the rolling 5-hour and weekly usage of an AI
subscription, notifies once per threshold crossing in each window, and keeps
the OAuth credential fresh so checks can run unattended from cron or a ticker.`,
	SilenceUsage: true,
}

// Execute runs the CLI.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ~/.lqg/config.yaml)")
}

// loadConfig loads the configuration.
func loadConfig() (*config.Config, error) {
	return config.Load(cfgFile)
}

// newLogger creates a structured logger from config.
func newLogger(cfg *config.Config) *slog.Logger {
	level := slog.LevelInfo
	switch cfg.Logging.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	var handler slog.Handler
	if cfg.Logging.Format == "text" {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	} else {
		handler = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	}

	return slog.New(handler)
}

// initStore creates the configured state backend. history is nil for backends
// that keep no check history.
func initStore(cfg *config.Config) (storage.Store, storage.HistoryStore, error) {
	switch cfg.Storage.Backend {
	case "sqlite":
		db, err := storage.NewSQLite(cfg.Storage.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return db, db, nil
	case "nats":
		kv, err := storage.NewNATS(storage.NATSConfig{
			URL:          strings.Split(cfg.Storage.NATS.URL, ","),
			Bucket:       cfg.Storage.NATS.Bucket,
			Key:          cfg.Storage.NATS.Key,
			CreateBucket: cfg.Storage.NATS.CreateBucket,
		})
		if err != nil {
			return nil, nil, err
		}
		return kv, nil, nil
	case "file", "":
		return storage.NewFile(cfg.Storage.Path), nil, nil
	default:
		return nil, nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
}

// initNotifiers creates alert notifiers from config.
func initNotifiers(cfg *config.Config) []alerts.Notifier {
	var notifiers []alerts.Notifier

	if cfg.Alerts.Slack.Enabled && cfg.Alerts.Slack.WebhookURL != "" {
		notifiers = append(notifiers, alerts.NewSlackNotifier(
			cfg.Alerts.Slack.WebhookURL,
			cfg.Alerts.Slack.Channel,
		))
	}

	if cfg.Alerts.Webhook.Enabled && cfg.Alerts.Webhook.URL != "" {
		notifiers = append(notifiers, alerts.NewWebhookNotifier(
			cfg.Alerts.Webhook.URL,
			cfg.Alerts.Webhook.Secret,
		))
	}

	if cfg.Alerts.Telegram.Enabled {
		notifiers = append(notifiers, alerts.NewTelegramNotifier(
			cfg.Alerts.Telegram.BotToken,
			cfg.Alerts.Telegram.ChatID,
			cfg.Alerts.Telegram.APIBase,
		))
	}

	if cfg.Alerts.Desktop.Enabled {
		notifiers = append(notifiers, alerts.NewDesktopNotifier())
	}

	return notifiers
}

// initCredentials creates the credential provider for the configured source.
func initCredentials(cfg *config.Config, logger *slog.Logger) (*credentials.Provider, error) {
	var source credentials.Source
	switch cfg.Credentials.Source {
	case "file", "":
		source = credentials.NewFileSource(cfg.Credentials.Path)
	case "keychain":
		source = credentials.NewKeychainSource(cfg.Credentials.KeychainService)
	case "env":
		source = credentials.NewStaticSource(cfg.Credentials.Token)
	default:
		return nil, fmt.Errorf("unknown credentials source %q", cfg.Credentials.Source)
	}

	var refresher credentials.Refresher
	if cfg.Credentials.RefreshCommand != "" {
		refresher = credentials.NewCommandRefresher(
			cfg.Credentials.RefreshCommand,
			cfg.Credentials.RefreshArgs,
			cfg.Credentials.RefreshTimeout,
			logger,
		)
	}
	return credentials.NewProvider(source, refresher, logger), nil
}

// initEngine creates a fully wired engine. The caller closes the returned store.
func initEngine(cfg *config.Config, logger *slog.Logger) (*engine.Engine, storage.Store, storage.HistoryStore, error) {
	provider, err := initCredentials(cfg, logger)
	if err != nil {
		return nil, nil, nil, err
	}

	store, history, err := initStore(cfg)
	if err != nil {
		return nil, nil, nil, err
	}

	notifiers := initNotifiers(cfg)
	dispatcher := alerts.NewDispatcher(notifiers, logger)
	logger.Debug("engine wired",
		"store", store.Name(),
		"credentials", cfg.Credentials.Source,
		"notifiers", dispatcher.Notifiers(),
	)

	eng := engine.New(
		provider,
		usage.NewClient(cfg.Usage.URL, cfg.Usage.BetaHeader, cfg.Usage.Timeout),
		store,
		dispatcher,
		logger,
		engine.Options{
			Thresholds: engine.Thresholds{
				FiveHour: cfg.Thresholds.FiveHour,
				Weekly:   cfg.Thresholds.Weekly,
			},
			GracePeriod: cfg.Credentials.GracePeriod,
			History:     history,
		},
	)
	return eng, store, history, nil
}

// Package config handles application configuration from environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Text generation providers.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

// Config holds the application configuration.
type Config struct {
	TelegramBotToken string
	NotifyChatID     int64
	AllowedUsers     []int64

	OpenAIAPIKey    string
	OpenAIBaseURL   string
	TextProvider    string
	TextModel       string
	ImageModel      string
	AnthropicAPIKey string

	HistoryURLTemplate string
	DatabasePath       string
	ImagesDir          string
	LogLevel           string

	ScanBatchLimit int
	ScanPacing     time.Duration
	ScanTimeout    time.Duration
	WatchTick      time.Duration
}

// LoadDotEnv loads variables from the given files (".env" when none are
// given) without overriding the environment. Missing files are ignored.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		TelegramBotToken:   os.Getenv("TELEGRAM_BOT_TOKEN"),
		OpenAIAPIKey:       os.Getenv("OPENAI_API_KEY"),
		OpenAIBaseURL:      os.Getenv("OPENAI_BASE_URL"),
		TextProvider:       strings.ToLower(envOrDefault("TEXT_PROVIDER", ProviderOpenAI)),
		TextModel:          os.Getenv("TEXT_MODEL"),
		ImageModel:         os.Getenv("IMAGE_MODEL"),
		AnthropicAPIKey:    os.Getenv("ANTHROPIC_API_KEY"),
		HistoryURLTemplate: os.Getenv("HISTORY_URL_TEMPLATE"),
		DatabasePath:       envOrDefault("DATABASE_PATH", "./data/reposter.db"),
		ImagesDir:          envOrDefault("IMAGES_DIR", "./data/images"),
		LogLevel:           envOrDefault("LOG_LEVEL", "info"),
	}

	switch cfg.TextProvider {
	case ProviderOpenAI, ProviderAnthropic:
	default:
		return nil, fmt.Errorf("invalid TEXT_PROVIDER %q: want %s or %s", cfg.TextProvider, ProviderOpenAI, ProviderAnthropic)
	}

	if tmpl := cfg.HistoryURLTemplate; tmpl != "" && strings.Count(tmpl, "%s") != 1 {
		return nil, fmt.Errorf("HISTORY_URL_TEMPLATE must contain exactly one %%s: %q", tmpl)
	}

	if raw := os.Getenv("ALLOWED_USERS"); raw != "" {
		for _, s := range strings.Split(raw, ",") {
			s = strings.TrimSpace(s)
			if s == "" {
				continue
			}
			uid, err := strconv.ParseInt(s, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("invalid user ID %q in ALLOWED_USERS: %w", s, err)
			}
			cfg.AllowedUsers = append(cfg.AllowedUsers, uid)
		}
	}

	var err error
	if cfg.NotifyChatID, err = envInt64("NOTIFY_CHAT_ID", 0); err != nil {
		return nil, err
	}
	if cfg.ScanBatchLimit, err = envPositiveInt("SCAN_BATCH_LIMIT", 5); err != nil {
		return nil, err
	}
	if cfg.ScanPacing, err = envDuration("SCAN_PACING", time.Second); err != nil {
		return nil, err
	}
	if cfg.ScanTimeout, err = envDuration("SCAN_TIMEOUT", 2*time.Minute); err != nil {
		return nil, err
	}
	if cfg.WatchTick, err = envDuration("WATCH_TICK", time.Minute); err != nil {
		return nil, err
	}
	if cfg.ScanTimeout == 0 || cfg.WatchTick == 0 {
		return nil, fmt.Errorf("SCAN_TIMEOUT and WATCH_TICK must be positive")
	}

	return cfg, nil
}

// RequireTelegram reports whether the bot token needed for publishing is set.
func (c *Config) RequireTelegram() error {
	if c.TelegramBotToken == "" {
		return fmt.Errorf("TELEGRAM_BOT_TOKEN is required")
	}
	return nil
}

// RequireAI reports whether the keys of the configured providers are set.
// Images are always generated with OpenAI.
func (c *Config) RequireAI() error {
	if c.OpenAIAPIKey == "" {
		return fmt.Errorf("OPENAI_API_KEY is required")
	}
	if c.TextProvider == ProviderAnthropic && c.AnthropicAPIKey == "" {
		return fmt.Errorf("ANTHROPIC_API_KEY is required when TEXT_PROVIDER=%s", ProviderAnthropic)
	}
	return nil
}

// IsUserAllowed checks whether a user ID is in the allow list.
// Returns true if the allow list is empty (all users permitted).
func (c *Config) IsUserAllowed(userID int64) bool {
	if len(c.AllowedUsers) == 0 {
		return true
	}
	for _, id := range c.AllowedUsers {
		if id == userID {
			return true
		}
	}
	return false
}

func envOrDefault(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func envInt64(key string, def int64) (int64, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	return v, nil
}

func envPositiveInt(key string, def int) (int, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	if v <= 0 {
		return 0, fmt.Errorf("invalid %s %q: must be positive", key, raw)
	}
	return v, nil
}

func envDuration(key string, def time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def, nil
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	if v < 0 {
		return 0, fmt.Errorf("invalid %s %q: must not be negative", key, raw)
	}
	return v, nil
}

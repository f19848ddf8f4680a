package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Port              string
	DatabaseURL       string
	BotToken          string
	PublicChannelID   int64
	PublicChannelName string
	VerifyBaseURL     string
	HelpURL           string
	AdminID           int64

	// LinkTTL of 0 means links are permanent and unscoped. Any positive
	// value switches on the time-limited, owner-scoped policy.
	LinkTTL                  time.Duration
	AutoDeleteDelay          time.Duration
	CleanupInterval          time.Duration
	BatchDeleteAfterDelivery bool
	PINMaxAttempts           int
	SessionIdle              time.Duration

	WebhookSecret   string
	WebhookURL      string
	TelegramAPIBase string
}

// Load reads configuration from the environment. Missing or malformed
// required values are collected and returned as a single error so the
// process can refuse to start with a complete report.
func Load() (*Config, error) {
	var missing []string

	cfg := &Config{
		Port:              getEnv("PORT", "8080"),
		DatabaseURL:       requireEnv("DATABASE_URL", &missing),
		BotToken:          requireEnv("BOT_TOKEN", &missing),
		PublicChannelID:   requireEnvInt64("PUBLIC_CHANNEL_ID", &missing),
		PublicChannelName: requireEnv("PUBLIC_CHANNEL_NAME", &missing),
		VerifyBaseURL:     requireEnv("VERIFY_BASE_URL", &missing),
		HelpURL:           getEnv("HELP_URL", ""),
		AdminID:           requireEnvInt64("ADMIN_ID", &missing),

		LinkTTL:                  getEnvSeconds("LINK_TTL_SECONDS", 0),
		AutoDeleteDelay:          getEnvSeconds("AUTO_DELETE_SECONDS", 120*time.Second),
		CleanupInterval:          getEnvSeconds("CLEANUP_INTERVAL_SECONDS", time.Hour),
		BatchDeleteAfterDelivery: getEnvBool("BATCH_DELETE_AFTER_DELIVERY", false),
		PINMaxAttempts:           getEnvInt("PIN_MAX_ATTEMPTS", 5),
		SessionIdle:              getEnvSeconds("SESSION_IDLE_SECONDS", 30*time.Minute),

		WebhookSecret:   getEnv("WEBHOOK_SECRET", ""),
		WebhookURL:      getEnv("WEBHOOK_URL", ""),
		TelegramAPIBase: getEnv("TELEGRAM_API_BASE", ""),
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("missing or invalid required environment variables: %s",
			strings.Join(missing, ", "))
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvSeconds(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if secs, err := strconv.ParseInt(val, 10, 64); err == nil {
			return time.Duration(secs) * time.Second
		}
	}
	return fallback
}

func requireEnv(key string, missing *[]string) string {
	val := os.Getenv(key)
	if val == "" {
		*missing = append(*missing, key)
	}
	return val
}

func requireEnvInt64(key string, missing *[]string) int64 {
	val := os.Getenv(key)
	if val == "" {
		*missing = append(*missing, key)
		return 0
	}
	n, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		*missing = append(*missing, key)
		return 0
	}
	return n
}

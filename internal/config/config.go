package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all configuration for the application
type Config struct {
	// Server configuration
	Port  string
	Debug bool

	// Bot behavior
	BotUsername       string
	TriggerPhrase     string
	MaxReplyLength    int
	MinTrustedVouches int

	// Trusted-list configuration
	TrustedListURL string
	TrustedListTTL time.Duration

	// X (Twitter) API credentials
	APIKey            string
	APIKeySecret      string
	AccessToken       string
	AccessTokenSecret string
	BearerToken       string

	// Audit archive (optional)
	StorageAccount   string
	StorageContainer string

	// Operator alerting (optional)
	TeamsWebhookURL   string
	NotificationEmail string
	SMTPHost          string
	SMTPPort          int
	SMTPUsername      string
	SMTPPassword      string
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Port:  getEnv("PORT", "8080"),
		Debug: getBoolEnv("DEBUG", false),

		BotUsername:       getEnv("BOT_USERNAME", "projectrugguard"),
		TriggerPhrase:     getEnv("TRIGGER_PHRASE", "riddle me this"),
		MaxReplyLength:    getIntEnv("MAX_REPLY_LENGTH", 280),
		MinTrustedVouches: getIntEnv("MIN_TRUSTED_VOUCHES", 3),

		TrustedListURL: getEnv("TRUSTED_LIST_URL", "https://raw.githubusercontent.com/devsyrem/turst-list/main/list"),
		TrustedListTTL: getDurationEnv("TRUSTED_LIST_TTL", time.Hour),

		APIKey:            getEnv("X_API_KEY", ""),
		APIKeySecret:      getEnv("X_API_KEY_SECRET", ""),
		AccessToken:       getEnv("X_ACCESS_TOKEN", ""),
		AccessTokenSecret: getEnv("X_ACCESS_TOKEN_SECRET", ""),
		BearerToken:       getEnv("X_BEARER_TOKEN", ""),

		StorageAccount:   getEnv("AZURE_STORAGE_ACCOUNT", ""),
		StorageContainer: getEnv("AZURE_STORAGE_CONTAINER", "trust-reports"),

		TeamsWebhookURL:   getEnv("TEAMS_WEBHOOK_URL", ""),
		NotificationEmail: getEnv("NOTIFICATION_EMAIL", ""),
		SMTPHost:          getEnv("SMTP_HOST", ""),
		SMTPPort:          getIntEnv("SMTP_PORT", 587),
		SMTPUsername:      getEnv("SMTP_USERNAME", ""),
		SMTPPassword:      getEnv("SMTP_PASSWORD", ""),
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.APIKey == "" || c.APIKeySecret == "" || c.AccessToken == "" ||
		c.AccessTokenSecret == "" || c.BearerToken == "" {
		return fmt.Errorf("all five X API credentials must be set (X_API_KEY, X_API_KEY_SECRET, X_ACCESS_TOKEN, X_ACCESS_TOKEN_SECRET, X_BEARER_TOKEN)")
	}

	if c.TriggerPhrase == "" {
		return fmt.Errorf("TRIGGER_PHRASE must not be empty")
	}

	if c.MaxReplyLength <= 0 {
		return fmt.Errorf("MAX_REPLY_LENGTH must be positive")
	}

	if c.TrustedListURL == "" {
		return fmt.Errorf("TRUSTED_LIST_URL must not be empty")
	}

	if c.TrustedListTTL <= 0 {
		return fmt.Errorf("TRUSTED_LIST_TTL must be positive")
	}

	if c.NotificationEmail != "" {
		if c.SMTPHost == "" || c.SMTPUsername == "" || c.SMTPPassword == "" {
			return fmt.Errorf("SMTP configuration is required when NOTIFICATION_EMAIL is set")
		}
	}

	return nil
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

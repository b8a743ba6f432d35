// Package config loads application configuration from environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"
)

// Default number of history messages fetched around a reacted-to message.
const defaultContextMessageCount = 3

// Config holds all application configuration.
type Config struct {
	// Slack settings
	SlackBotToken      string
	SlackSigningSecret string

	// GitHub settings. Either a static token, or GitHub App installation
	// credentials (app id + installation id + private key).
	GitHubToken            string
	GitHubAppID            int64
	GitHubInstallationID   int64
	GitHubPrivateKeyBase64 string

	// Reaction pattern source. Firestore when a project is configured,
	// otherwise the static REACTION_PATTERNS table.
	FirestoreProjectID  string
	FirestoreDatabaseID string
	ReactionPatterns    string

	// Admin API
	APIAdminKey string

	// Pipeline settings
	ContextMessageCount int

	// Server settings
	Port                  string
	GinMode               string
	LogLevel              string
	ServerReadTimeout     time.Duration
	ServerWriteTimeout    time.Duration
	ServerShutdownTimeout time.Duration
}

// Load reads configuration from environment variables and validates it.
func Load() (*Config, error) {
	cfg := &Config{
		SlackBotToken:      os.Getenv("SLACK_BOT_TOKEN"),
		SlackSigningSecret: os.Getenv("SLACK_SIGNING_SECRET"),

		GitHubToken:            os.Getenv("GITHUB_TOKEN"),
		GitHubPrivateKeyBase64: os.Getenv("GITHUB_PRIVATE_KEY_BASE64"),

		FirestoreProjectID:  os.Getenv("FIRESTORE_PROJECT_ID"),
		FirestoreDatabaseID: getEnvDefault("FIRESTORE_DATABASE_ID", "(default)"),
		ReactionPatterns:    os.Getenv("REACTION_PATTERNS"),

		APIAdminKey: os.Getenv("API_ADMIN_KEY"),

		Port:     getEnvDefault("PORT", "8080"),
		GinMode:  getEnvDefault("GIN_MODE", "debug"),
		LogLevel: getEnvDefault("LOG_LEVEL", "info"),
	}

	var err error
	if cfg.GitHubAppID, err = getEnvInt64("GITHUB_APP_ID", 0); err != nil {
		return nil, err
	}
	if cfg.GitHubInstallationID, err = getEnvInt64("GITHUB_INSTALLATION_ID", 0); err != nil {
		return nil, err
	}
	if cfg.ContextMessageCount, err = getEnvInt("CONTEXT_MESSAGE_COUNT", defaultContextMessageCount); err != nil {
		return nil, err
	}
	if cfg.ServerReadTimeout, err = getEnvDuration("SERVER_READ_TIMEOUT", 30*time.Second); err != nil {
		return nil, err
	}
	if cfg.ServerWriteTimeout, err = getEnvDuration("SERVER_WRITE_TIMEOUT", 30*time.Second); err != nil {
		return nil, err
	}
	if cfg.ServerShutdownTimeout, err = getEnvDuration("SERVER_SHUTDOWN_TIMEOUT", 30*time.Second); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// validate checks that all required configuration is present and consistent.
func (c *Config) validate() error {
	if c.SlackBotToken == "" {
		return errors.New("required environment variable SLACK_BOT_TOKEN is not set")
	}

	hasAppAuth := c.GitHubAppID != 0 || c.GitHubInstallationID != 0 || c.GitHubPrivateKeyBase64 != ""
	if c.GitHubToken == "" && !hasAppAuth {
		return errors.New("either GITHUB_TOKEN or GitHub App credentials must be set")
	}
	if hasAppAuth && (c.GitHubAppID == 0 || c.GitHubInstallationID == 0 || c.GitHubPrivateKeyBase64 == "") {
		return errors.New(
			"GITHUB_APP_ID, GITHUB_INSTALLATION_ID and GITHUB_PRIVATE_KEY_BASE64 must be set together")
	}

	if c.FirestoreProjectID == "" && c.ReactionPatterns == "" {
		return errors.New("either FIRESTORE_PROJECT_ID or REACTION_PATTERNS must be set")
	}

	if c.GinMode != "debug" && c.GinMode != "release" && c.GinMode != "test" {
		return fmt.Errorf("invalid GIN_MODE: %s (must be debug, release, or test)", c.GinMode)
	}
	if c.LogLevel != "debug" && c.LogLevel != "info" && c.LogLevel != "warn" && c.LogLevel != "error" {
		return fmt.Errorf("invalid LOG_LEVEL: %s (must be debug, info, warn, or error)", c.LogLevel)
	}

	if c.ContextMessageCount <= 0 {
		return errors.New("CONTEXT_MESSAGE_COUNT must be positive")
	}
	if c.ServerReadTimeout <= 0 {
		return errors.New("SERVER_READ_TIMEOUT must be positive")
	}
	if c.ServerWriteTimeout <= 0 {
		return errors.New("SERVER_WRITE_TIMEOUT must be positive")
	}
	if c.ServerShutdownTimeout <= 0 {
		return errors.New("SERVER_SHUTDOWN_TIMEOUT must be positive")
	}

	return nil
}

// getEnvDefault gets an environment variable with a default value.
func getEnvDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt gets an integer environment variable with a default value.
func getEnvInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid integer value for %s: %s", key, value)
	}
	return n, nil
}

// getEnvInt64 gets a 64-bit integer environment variable with a default value.
func getEnvInt64(key string, defaultValue int64) (int64, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid integer value for %s: %s", key, value)
	}
	return n, nil
}

// getEnvDuration gets a duration environment variable with a default value.
func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid duration value for %s: %s", key, value)
	}
	return d, nil
}

// Package config provides configuration management for the ledger.
// It loads configuration from environment variables and .env files.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config represents the application configuration.
type Config struct {
	DBPath      string // SQLite database file
	Currency    string // display symbol, e.g. "$"
	HorizonDays int    // default occurrence generation horizon
	LookupsFile string // optional YAML lookup catalog
	Debug       bool
}

// Load loads configuration from environment variables.
// It automatically loads .env file from the current directory if available.
// You can optionally specify a custom .env file path.
func Load(envPath ...string) (*Config, error) {
	if len(envPath) > 0 && envPath[0] != "" {
		if err := godotenv.Load(envPath[0]); err != nil {
			return nil, fmt.Errorf("failed to load .env file: %w", err)
		}
	} else {
		// Try to load .env from current directory (ignore error if not found)
		_ = godotenv.Load()
	}

	horizonDays, err := parseIntEnv("LEDGER_HORIZON_DAYS", 90)
	if err != nil {
		return nil, fmt.Errorf("invalid LEDGER_HORIZON_DAYS: %w", err)
	}

	config := &Config{
		DBPath:      getEnvOrDefault("LEDGER_DB_PATH", "./data/ledger.db"),
		Currency:    getEnvOrDefault("CURRENCY_SYMBOL", "$"),
		HorizonDays: horizonDays,
		LookupsFile: os.Getenv("LEDGER_LOOKUPS_FILE"),
		Debug:       os.Getenv("DEBUG") == "true",
	}

	return config, nil
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.DBPath == "" {
		return fmt.Errorf("missing required configuration: LEDGER_DB_PATH\nPlease check your .env file or environment variables")
	}
	if c.HorizonDays <= 0 {
		return fmt.Errorf("LEDGER_HORIZON_DAYS must be positive, got %d", c.HorizonDays)
	}
	return nil
}

// getEnvOrDefault returns the value of the environment variable or a default value if not set.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// parseIntEnv parses an int from an environment variable.
// Returns defaultValue if the environment variable is not set.
func parseIntEnv(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}

	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid integer value for %s: %s", key, value)
	}

	return parsed, nil
}

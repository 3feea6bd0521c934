// Package config loads and validates service configuration from the
// environment, with an optional .env file for local development.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds every tunable the service reads at startup.
type Config struct {
	Addr                string
	Env                 string
	LogSinks            []string
	LogFilePath         string
	SpawnDelayMin       time.Duration
	SpawnDelayMax       time.Duration
	Seed                int64
	JoinRatePerSecond   float64
	JoinBurst           int64
	ReportInterval      time.Duration
	EnableDebugEndpoint bool
}

// Load reads the .env file when present, then the environment, then
// validates the result. A missing .env file is not an error.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := &Config{
		Addr:                getEnvWithDefault("ADDR", ":8080"),
		Env:                 getEnvWithDefault("ENV", "dev"),
		LogSinks:            splitList(getEnvWithDefault("LOG_SINKS", "console")),
		LogFilePath:         os.Getenv("LOG_FILE_PATH"),
		SpawnDelayMin:       getDurationEnvWithDefault("SPAWN_DELAY_MIN_MS", 700*time.Millisecond),
		SpawnDelayMax:       getDurationEnvWithDefault("SPAWN_DELAY_MAX_MS", 1800*time.Millisecond),
		Seed:                getInt64EnvWithDefault("RNG_SEED", 0),
		JoinRatePerSecond:   getFloatEnvWithDefault("JOIN_RATE_PER_SECOND", 1),
		JoinBurst:           getInt64EnvWithDefault("JOIN_BURST", 5),
		ReportInterval:      getDurationEnvWithDefault("REPORT_INTERVAL_MS", 5*time.Minute),
		EnableDebugEndpoint: getEnvWithDefault("ENABLE_DEBUG_ENDPOINT", "false") == "true",
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func validate(cfg *Config) error {
	if cfg.Addr == "" {
		return fmt.Errorf("ADDR cannot be empty")
	}
	if err := validateEnv(cfg.Env); err != nil {
		return err
	}
	for _, sink := range cfg.LogSinks {
		switch sink {
		case "console", "json":
		default:
			return fmt.Errorf("LOG_SINKS entry %q is not one of console, json", sink)
		}
	}
	if contains(cfg.LogSinks, "json") && cfg.LogFilePath == "" {
		return fmt.Errorf("LOG_FILE_PATH is required when the json sink is enabled")
	}
	if cfg.SpawnDelayMin <= 0 {
		return fmt.Errorf("SPAWN_DELAY_MIN_MS must be positive, got %s", cfg.SpawnDelayMin)
	}
	if cfg.SpawnDelayMax < cfg.SpawnDelayMin {
		return fmt.Errorf("SPAWN_DELAY_MAX_MS must be at least SPAWN_DELAY_MIN_MS")
	}
	if cfg.JoinRatePerSecond <= 0 {
		return fmt.Errorf("JOIN_RATE_PER_SECOND must be positive, got %v", cfg.JoinRatePerSecond)
	}
	if cfg.JoinBurst <= 0 {
		return fmt.Errorf("JOIN_BURST must be positive, got %d", cfg.JoinBurst)
	}
	if cfg.ReportInterval < time.Second {
		return fmt.Errorf("REPORT_INTERVAL_MS must be at least 1000, got %s", cfg.ReportInterval)
	}
	return nil
}

func validateEnv(env string) error {
	switch strings.ToLower(env) {
	case "dev", "staging", "prod", "test":
		return nil
	}
	return fmt.Errorf("ENV must be one of dev, staging, prod, test, got: %s", env)
}

func contains(values []string, want string) bool {
	for _, value := range values {
		if value == want {
			return true
		}
	}
	return false
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getInt64EnvWithDefault(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseInt(value, 10, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getFloatEnvWithDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getDurationEnvWithDefault reads a millisecond count.
func getDurationEnvWithDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseInt(value, 10, 64); err == nil && parsed > 0 {
			return time.Duration(parsed) * time.Millisecond
		}
	}
	return defaultValue
}

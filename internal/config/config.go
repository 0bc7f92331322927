// Package config provides application configuration management.
// It loads settings from environment variables (optionally via a .env file)
// and provides defaults for server mode and warmup mode.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Store backends accepted by NYCU_STORE_BACKEND.
const (
	StoreRedis  = "redis"
	StoreSQLite = "sqlite"
	StoreMemory = "memory"
)

// DefaultUpstreamEndpoint is the catalog API base; operation names are appended.
const DefaultUpstreamEndpoint = "https://timetable.nycu.edu.tw/?r=main/"

// ValidationMode selects which settings are required.
type ValidationMode int

const (
	// ServerMode validates everything the HTTP service needs.
	ServerMode ValidationMode = iota
	// WarmupMode validates only what the one-shot warmup command needs.
	WarmupMode
)

// Config holds all application configuration
type Config struct {
	// Server Configuration
	Port            string
	LogLevel        string
	ShutdownTimeout time.Duration

	// Upstream Configuration
	UpstreamEndpoint string
	UpstreamTimeout  time.Duration // 0 disables the client timeout
	UpstreamThrottle time.Duration // Delay after each department hierarchy request

	// Store Configuration
	StoreBackend  string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	DataDir       string

	// API
	SuggestionLimit int
	APIRateLimit    float64 // Requests per minute per client IP (0 = unlimited)
	APIRateBurst    int

	// Background Tasks
	WarmupPeriods             int           // Number of recent academic periods to warm
	DepartmentRefreshInterval time.Duration // 0 disables scheduled refresh
	WarmupGracePeriod         time.Duration
	WaitForWarmup             bool

	// Metrics Authentication
	MetricsUsername string // Username for /metrics Basic Auth
	MetricsPassword string // Password for /metrics Basic Auth (empty = no auth)

	// Better Stack
	BetterStackToken    string
	BetterStackEndpoint string

	// Sentry
	SentryToken       string
	SentryHost        string
	SentryEnvironment string
	SentrySampleRate  float64

	// R2 Snapshot
	R2Endpoint        string
	R2AccessKeyID     string
	R2SecretAccessKey string
	R2BucketName      string
	R2SnapshotKey     string
	SnapshotInterval  time.Duration
}

// Load reads configuration for server mode.
func Load() (*Config, error) {
	return LoadForMode(ServerMode)
}

// LoadForMode reads configuration from environment variables and validates
// it for the given mode. A .env file in the working directory is loaded first
// when present.
func LoadForMode(mode ValidationMode) (*Config, error) {
	// Try to load .env file (ignore error if file doesn't exist)
	_ = godotenv.Load()

	cfg := &Config{
		Port:            getEnv(EnvPort, "10000"),
		LogLevel:        getEnv(EnvLogLevel, "info"),
		ShutdownTimeout: getDurationEnv(EnvShutdownTimeout, GracefulShutdown),

		UpstreamEndpoint: getEnv(EnvUpstreamEndpoint, DefaultUpstreamEndpoint),
		UpstreamTimeout:  getDurationEnv(EnvUpstreamTimeout, 0),
		UpstreamThrottle: getDurationEnv(EnvUpstreamThrottle, UpstreamThrottle),

		StoreBackend:  strings.ToLower(getEnv(EnvStoreBackend, StoreSQLite)),
		RedisAddr:     getEnv(EnvRedisAddr, "localhost:6379"),
		RedisPassword: getEnv(EnvRedisPassword, ""),
		RedisDB:       getIntEnv(EnvRedisDB, 0),
		DataDir:       getEnv(EnvDataDir, getDefaultDataDir()),

		SuggestionLimit: getIntEnv(EnvSuggestionLimit, 10),
		APIRateLimit:    getFloatEnv(EnvAPIRateLimit, 120),
		APIRateBurst:    getIntEnv(EnvAPIRateBurst, 20),

		WarmupPeriods:             getIntEnv(EnvWarmupPeriods, 2),
		DepartmentRefreshInterval: getDurationEnv(EnvDepartmentRefreshInterval, 24*time.Hour),
		WarmupGracePeriod:         getDurationEnv(EnvWarmupGracePeriod, WarmupGracePeriod),
		WaitForWarmup:             getBoolEnv(EnvWaitForWarmup, false),

		MetricsUsername: getEnv(EnvMetricsUsername, "prometheus"),
		MetricsPassword: getEnv(EnvMetricsPassword, ""),

		BetterStackToken:    getEnv(EnvBetterStackToken, ""),
		BetterStackEndpoint: getEnv(EnvBetterStackEndpoint, ""),

		SentryToken:       getEnv(EnvSentryToken, ""),
		SentryHost:        getEnv(EnvSentryHost, ""),
		SentryEnvironment: getEnv(EnvSentryEnvironment, "production"),
		SentrySampleRate:  getFloatEnv(EnvSentrySampleRate, 1.0),

		R2Endpoint:        getEnv(EnvR2Endpoint, ""),
		R2AccessKeyID:     getEnv(EnvR2AccessKeyID, ""),
		R2SecretAccessKey: getEnv(EnvR2SecretAccessKey, ""),
		R2BucketName:      getEnv(EnvR2BucketName, ""),
		R2SnapshotKey:     getEnv(EnvR2SnapshotKey, "snapshots/store.db.zst"),
		SnapshotInterval:  getDurationEnv(EnvSnapshotInterval, 6*time.Hour),
	}

	if err := cfg.ValidateForMode(mode); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks the configuration for server mode.
func (c *Config) Validate() error {
	return c.ValidateForMode(ServerMode)
}

// ValidateForMode checks that the values required by mode are usable.
func (c *Config) ValidateForMode(mode ValidationMode) error {
	var errs []error

	if mode == ServerMode {
		if c.Port == "" {
			errs = append(errs, fmt.Errorf("%s is required", EnvPort))
		}
		if c.SuggestionLimit <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %d", EnvSuggestionLimit, c.SuggestionLimit))
		}
		if c.APIRateLimit < 0 {
			errs = append(errs, fmt.Errorf("%s cannot be negative, got %v", EnvAPIRateLimit, c.APIRateLimit))
		}
		if c.DepartmentRefreshInterval < 0 {
			errs = append(errs, fmt.Errorf("%s cannot be negative, got %v", EnvDepartmentRefreshInterval, c.DepartmentRefreshInterval))
		}
	}

	if c.UpstreamEndpoint == "" {
		errs = append(errs, fmt.Errorf("%s is required", EnvUpstreamEndpoint))
	}
	if c.UpstreamTimeout < 0 {
		errs = append(errs, fmt.Errorf("%s cannot be negative, got %v", EnvUpstreamTimeout, c.UpstreamTimeout))
	}
	if c.UpstreamThrottle < 0 {
		errs = append(errs, fmt.Errorf("%s cannot be negative, got %v", EnvUpstreamThrottle, c.UpstreamThrottle))
	}
	if c.WarmupPeriods < 0 {
		errs = append(errs, fmt.Errorf("%s cannot be negative, got %d", EnvWarmupPeriods, c.WarmupPeriods))
	}

	switch c.StoreBackend {
	case StoreRedis:
		if c.RedisAddr == "" {
			errs = append(errs, fmt.Errorf("%s is required for the redis backend", EnvRedisAddr))
		}
	case StoreSQLite:
		if c.DataDir == "" {
			errs = append(errs, fmt.Errorf("%s is required for the sqlite backend", EnvDataDir))
		}
	case StoreMemory:
	default:
		errs = append(errs, fmt.Errorf("%s must be one of redis, sqlite, memory, got %q", EnvStoreBackend, c.StoreBackend))
	}

	if c.R2Enabled() && c.StoreBackend != StoreSQLite {
		errs = append(errs, errors.New("R2 snapshots require the sqlite backend"))
	}

	return errors.Join(errs...)
}

// R2Enabled reports whether every R2 snapshot setting is present.
func (c *Config) R2Enabled() bool {
	return c.R2Endpoint != "" && c.R2AccessKeyID != "" && c.R2SecretAccessKey != "" && c.R2BucketName != ""
}

// SentryEnabled reports whether error tracking is configured.
func (c *Config) SentryEnabled() bool {
	return c.SentryToken != "" && c.SentryHost != ""
}

// SQLitePath returns the full path to the SQLite store file
func (c *Config) SQLitePath() string {
	return filepath.Join(c.DataDir, "store.db")
}

// getEnv retrieves environment variable with fallback to default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getIntEnv retrieves integer environment variable with fallback to default value
func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getBoolEnv retrieves boolean environment variable with fallback to default value
func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// getDurationEnv retrieves duration environment variable with fallback to default value
func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// getFloatEnv retrieves float64 environment variable with fallback to default value
func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

// getDefaultDataDir returns platform-specific default data directory
func getDefaultDataDir() string {
	if runtime.GOOS == "windows" {
		return "./data"
	}
	return "/data"
}

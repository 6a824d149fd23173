package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config represents the application configuration
type Config struct {
	Database  DatabaseConfig  `mapstructure:"database"`
	Platform  PlatformConfig  `mapstructure:"platform"`
	Scanner   ScannerConfig   `mapstructure:"scanner"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Server    ServerConfig    `mapstructure:"server"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	DSN string `mapstructure:"dsn"` // SQLite file path
}

// PlatformConfig holds settings for the messaging platform gateway
type PlatformConfig struct {
	BaseURL string `mapstructure:"base_url"` // MTProto bridge endpoint
	Session string `mapstructure:"session"`  // Session identity on the bridge
	APIID   int    `mapstructure:"api_id"`
	APIHash string `mapstructure:"api_hash"`
	// Rate limiting for platform calls
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
	// Bounded retry on transport errors and 5xx; zero disables retries
	MaxRetries   int           `mapstructure:"max_retries"`
	RetryBackoff time.Duration `mapstructure:"retry_backoff"`
	// Per-request timeout; zero leaves calls bounded only by the caller's context
	Timeout time.Duration `mapstructure:"timeout"`
}

// ScannerConfig holds scan pass limits
type ScannerConfig struct {
	SearchLimit  int `mapstructure:"search_limit"`
	MessageLimit int `mapstructure:"message_limit"`
}

// SchedulerConfig holds background scheduling settings
type SchedulerConfig struct {
	ScanCron   string `mapstructure:"scan_cron"` // Empty disables scheduled passes
	RunOnStart bool   `mapstructure:"run_on_start"`
}

// ServerConfig holds HTTP API settings
type ServerConfig struct {
	Addr                  string  `mapstructure:"addr"`
	ScanTriggersPerMinute float64 `mapstructure:"scan_triggers_per_minute"`
}

// LoggingConfig holds logging settings
type LoggingConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // json or console
	Output string `mapstructure:"output"` // stdout or file path
}

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	// Load .env file if present (ignore errors if not found)
	_ = godotenv.Load()
	_ = godotenv.Load(".env.local")

	v := viper.New()

	// Set defaults
	setDefaults(v)

	// Config file
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		// Look for config in current directory and configs folder
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")

		// Also check user's home directory
		home, err := os.UserHomeDir()
		if err == nil {
			v.AddConfigPath(filepath.Join(home, ".channel-scout"))
		}
	}

	// Environment variables
	v.SetEnvPrefix("SCOUT")
	v.AutomaticEnv()

	// Explicit bindings for nested keys (Viper doesn't auto-bind underscored nested keys)
	v.BindEnv("database.dsn", "SCOUT_DATABASE_DSN")
	v.BindEnv("platform.base_url", "SCOUT_PLATFORM_BASE_URL")
	v.BindEnv("platform.session", "SCOUT_PLATFORM_SESSION")
	v.BindEnv("platform.api_id", "SCOUT_PLATFORM_API_ID", "API_ID")
	v.BindEnv("platform.api_hash", "SCOUT_PLATFORM_API_HASH", "API_HASH")
	v.BindEnv("platform.max_retries", "SCOUT_PLATFORM_MAX_RETRIES")
	v.BindEnv("scheduler.scan_cron", "SCOUT_SCHEDULER_SCAN_CRON")
	v.BindEnv("server.addr", "SCOUT_SERVER_ADDR")
	v.BindEnv("logging.level", "SCOUT_LOGGING_LEVEL")
	v.BindEnv("logging.format", "SCOUT_LOGGING_FORMAT")

	// Read config file (ignore if not found)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Database defaults
	dataDir := os.Getenv("DATA_DIR")
	if dataDir == "" {
		dataDir = "./data"
	}
	v.SetDefault("database.dsn", filepath.Join(dataDir, "tkcs.db"))

	// Platform defaults
	v.SetDefault("platform.base_url", "http://localhost:8081")
	v.SetDefault("platform.session", "scanner_session")
	v.SetDefault("platform.requests_per_second", 1.0)
	v.SetDefault("platform.burst", 5)
	v.SetDefault("platform.max_retries", 0)
	v.SetDefault("platform.retry_backoff", "1s")
	v.SetDefault("platform.timeout", "0s")

	// Scanner defaults
	v.SetDefault("scanner.search_limit", 50)
	v.SetDefault("scanner.message_limit", 50)

	// Scheduler defaults
	v.SetDefault("scheduler.scan_cron", "")
	v.SetDefault("scheduler.run_on_start", false)

	// Server defaults
	v.SetDefault("server.addr", ":8000")
	v.SetDefault("server.scan_triggers_per_minute", 6.0)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("logging.output", "stdout")
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Platform.BaseURL == "" {
		return fmt.Errorf("platform.base_url is required")
	}
	if c.Platform.Session == "" {
		return fmt.Errorf("platform.session is required")
	}
	if c.Platform.APIID == 0 || c.Platform.APIHash == "" {
		return fmt.Errorf("platform.api_id and platform.api_hash are required")
	}
	if c.Platform.RequestsPerSecond <= 0 {
		return fmt.Errorf("platform.requests_per_second must be positive")
	}
	if c.Platform.Burst < 1 {
		return fmt.Errorf("platform.burst must be at least 1")
	}
	if c.Server.ScanTriggersPerMinute < 0 {
		return fmt.Errorf("server.scan_triggers_per_minute must not be negative")
	}
	if c.Scanner.SearchLimit <= 0 || c.Scanner.MessageLimit <= 0 {
		return fmt.Errorf("scanner limits must be positive")
	}
	return nil
}

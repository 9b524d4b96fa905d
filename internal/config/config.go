package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the complete application configuration
type Config struct {
	Input    InputConfig    `mapstructure:"input"`
	Sampling SamplingConfig `mapstructure:"sampling"`
	Analysis AnalysisConfig `mapstructure:"analysis"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Telegram TelegramConfig `mapstructure:"telegram"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// InputConfig describes where observations come from and how raw columns map to the series schema
type InputConfig struct {
	Path             string  `mapstructure:"path"`
	Sheet            string  `mapstructure:"sheet"` // xlsx only; empty = first sheet
	TimestampColumn  string  `mapstructure:"timestamp_column"`
	PriceColumn      string  `mapstructure:"price_column"`
	ConfidenceColumn string  `mapstructure:"confidence_column"`
	ConfidenceScale  float64 `mapstructure:"confidence_scale"` // raw confidence * scale = bps
	Timezone         string  `mapstructure:"timezone"`
}

// SamplingConfig holds variance-guided downsampling parameters
type SamplingConfig struct {
	TargetSize int `mapstructure:"target_size"`
	WindowSize int `mapstructure:"window_size"`
}

// AnalysisConfig holds breach detection and correlation parameters
type AnalysisConfig struct {
	ThresholdBps      float64 `mapstructure:"threshold_bps"`
	LookbackPeriods   int     `mapstructure:"lookback_periods"`
	CorrelationMethod string  `mapstructure:"correlation_method"`
}

// StorageConfig holds the SQLite series cache configuration
type StorageConfig struct {
	DBPath string `mapstructure:"db_path"`
	Feed   string `mapstructure:"feed"`
}

// TelegramConfig holds Telegram notification configuration
type TelegramConfig struct {
	BotToken       string        `mapstructure:"bot_token"`
	ChatID         string        `mapstructure:"chat_id"`
	Enabled        bool          `mapstructure:"enabled"`
	MaxRetries     int           `mapstructure:"max_retries"`
	RetryDelayBase time.Duration `mapstructure:"retry_delay_base"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from file and environment variables.
// An empty path loads defaults and environment overrides only.
func Load(path string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	// Enable environment variable override, e.g. ORACLE_CONF_ANALYSIS_THRESHOLD_BPS
	v.SetEnvPrefix("ORACLE_CONF")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// setDefaults configures default values for all configuration options
func setDefaults(v *viper.Viper) {
	// Input defaults
	v.SetDefault("input.path", "data/raw/prices.csv")
	v.SetDefault("input.sheet", "")
	v.SetDefault("input.timestamp_column", "publishTime")
	v.SetDefault("input.price_column", "price")
	v.SetDefault("input.confidence_column", "confidence")
	v.SetDefault("input.confidence_scale", 10000.0)
	v.SetDefault("input.timezone", "UTC")

	// Sampling defaults
	v.SetDefault("sampling.target_size", 10000)
	v.SetDefault("sampling.window_size", 100)

	// Analysis defaults (300 bps = 3%)
	v.SetDefault("analysis.threshold_bps", 300.0)
	v.SetDefault("analysis.lookback_periods", 10)
	v.SetDefault("analysis.correlation_method", "pearson")

	// Storage defaults
	v.SetDefault("storage.db_path", "")
	v.SetDefault("storage.feed", "default")

	// Telegram defaults
	v.SetDefault("telegram.enabled", false)
	v.SetDefault("telegram.bot_token", "")
	v.SetDefault("telegram.chat_id", "")
	v.SetDefault("telegram.max_retries", 3)
	v.SetDefault("telegram.retry_delay_base", "1s")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
}

// Validate checks that all configuration values are valid
func (c *Config) Validate() error {
	// Validate Input config
	if c.Input.TimestampColumn == "" {
		return fmt.Errorf("input.timestamp_column is required")
	}
	if c.Input.PriceColumn == "" {
		return fmt.Errorf("input.price_column is required")
	}
	if c.Input.ConfidenceColumn == "" {
		return fmt.Errorf("input.confidence_column is required")
	}
	if c.Input.ConfidenceScale <= 0 {
		return fmt.Errorf("input.confidence_scale must be positive")
	}
	if _, err := time.LoadLocation(c.Input.Timezone); err != nil {
		return fmt.Errorf("input.timezone is invalid: %w", err)
	}

	// Validate Sampling config
	if c.Sampling.WindowSize < 1 {
		return fmt.Errorf("sampling.window_size must be at least 1")
	}
	if c.Sampling.TargetSize < c.Sampling.WindowSize {
		return fmt.Errorf("sampling.target_size must be at least sampling.window_size")
	}

	// Validate Analysis config
	if c.Analysis.ThresholdBps < 0 {
		return fmt.Errorf("analysis.threshold_bps must not be negative")
	}
	if c.Analysis.LookbackPeriods < 1 {
		return fmt.Errorf("analysis.lookback_periods must be at least 1")
	}
	validMethods := map[string]bool{"pearson": true, "spearman": true, "kendall": true}
	if !validMethods[strings.ToLower(c.Analysis.CorrelationMethod)] {
		return fmt.Errorf("analysis.correlation_method must be one of: pearson, spearman, kendall")
	}

	// Validate Storage config
	if c.Storage.Feed == "" {
		return fmt.Errorf("storage.feed is required")
	}

	// Validate Telegram config
	if c.Telegram.Enabled {
		if c.Telegram.BotToken == "" {
			return fmt.Errorf("telegram.bot_token is required when telegram is enabled")
		}
		if c.Telegram.ChatID == "" {
			return fmt.Errorf("telegram.chat_id is required when telegram is enabled")
		}
	}

	// Validate Logging config
	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("logging.format must be one of: json, text")
	}

	return nil
}

// Package config provides configuration management for the market data manager.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Database DatabaseConfig `mapstructure:"database"`
	Source   SourceConfig   `mapstructure:"source"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	UI       UIConfig       `mapstructure:"ui"`
}

// DatabaseConfig holds database configuration.
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// SourceConfig holds market data provider configuration.
type SourceConfig struct {
	ChartURL       string `mapstructure:"chart_url"`
	SearchURL      string `mapstructure:"search_url"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	File       bool   `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

// UIConfig holds UI-related configuration.
type UIConfig struct {
	ColorEnabled bool   `mapstructure:"color_enabled"`
	DateFormat   string `mapstructure:"date_format"`
}

// DefaultConfigDir returns the default configuration directory.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".config/portfolio-lab"
	}
	return filepath.Join(home, ".config", "portfolio-lab")
}

// Load loads configuration from the specified directory.
// If configDir is empty, uses the default config directory.
func Load(configDir string) (*Config, error) {
	if configDir == "" {
		configDir = DefaultConfigDir()
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(configDir)

	setDefaults(v, configDir)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("loading config.toml: %w", err)
		}
		if err := createTemplateConfig(configDir); err != nil {
			return nil, fmt.Errorf("writing config template: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config.toml: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper, configDir string) {
	v.SetDefault("database.path", filepath.Join(configDir, "portfolio.db"))
	v.SetDefault("source.chart_url", "https://query1.finance.yahoo.com/v8/finance/chart")
	v.SetDefault("source.search_url", "https://query2.finance.yahoo.com/v1/finance/search")
	v.SetDefault("source.timeout_seconds", 30)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.file", true)
	v.SetDefault("logging.max_size_mb", 50)
	v.SetDefault("logging.max_backups", 5)
	v.SetDefault("logging.max_age_days", 30)
	v.SetDefault("ui.color_enabled", true)
	v.SetDefault("ui.date_format", "2006-01-02")
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("PORTFOLIO_LAB_DB"); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv("PORTFOLIO_LAB_CHART_URL"); v != "" {
		cfg.Source.ChartURL = v
	}
	if v := os.Getenv("PORTFOLIO_LAB_SEARCH_URL"); v != "" {
		cfg.Source.SearchURL = v
	}
	if v := os.Getenv("PORTFOLIO_LAB_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return fmt.Errorf("database.path must not be empty")
	}
	if c.Source.ChartURL == "" {
		return fmt.Errorf("source.chart_url must not be empty")
	}
	if c.Source.SearchURL == "" {
		return fmt.Errorf("source.search_url must not be empty")
	}
	if c.Source.TimeoutSeconds <= 0 {
		return fmt.Errorf("source.timeout_seconds must be positive")
	}
	switch c.Logging.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid logging level: %s", c.Logging.Level)
	}
	return nil
}

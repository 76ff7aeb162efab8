// Package config loads vidsync configuration from defaults, an optional
// YAML file, environment variables, and runtime overrides, in that order
// of increasing precedence.
package config

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

// Config is the resolved application configuration.
type Config struct {
	API     APIConfig     `mapstructure:"api"`
	Feed    FeedConfig    `mapstructure:"feed"`
	Server  ServerConfig  `mapstructure:"server"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// APIConfig describes the remote video-task API.
type APIConfig struct {
	BaseURL   string        `mapstructure:"base_url"`
	Token     string        `mapstructure:"token"`
	Timeout   time.Duration `mapstructure:"timeout"`
	RateLimit float64       `mapstructure:"rate_limit"`
}

// FeedConfig tunes the sync feed.
type FeedConfig struct {
	PollInterval   time.Duration `mapstructure:"poll_interval"`
	PollWhenHidden bool          `mapstructure:"poll_when_hidden"`
	CacheTTL       time.Duration `mapstructure:"cache_ttl"`
	Limit          int           `mapstructure:"limit"`
}

// ServerConfig configures the embedded dev server.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ProcessingAfter time.Duration `mapstructure:"processing_after"`
	CompleteAfter   time.Duration `mapstructure:"complete_after"`
}

// LoggingConfig configures the zap logger and its rotating file sink.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("api.base_url", "http://localhost:8480")
	v.SetDefault("api.token", "")
	v.SetDefault("api.timeout", "30s")
	v.SetDefault("api.rate_limit", 0)

	v.SetDefault("feed.poll_interval", "5s")
	v.SetDefault("feed.poll_when_hidden", false)
	v.SetDefault("feed.cache_ttl", "30s")
	v.SetDefault("feed.limit", 20)

	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.port", 8480)
	v.SetDefault("server.processing_after", "5s")
	v.SetDefault("server.complete_after", "20s")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("logging.file", "")
	v.SetDefault("logging.max_size_mb", 10)
	v.SetDefault("logging.max_backups", 3)
	v.SetDefault("logging.max_age_days", 14)
}

// Load resolves configuration. Optional override maps apply last and win
// over file and environment values.
func Load(ctx context.Context, overrides ...map[string]any) (*Config, error) {
	return LoadFrom(ctx, "", overrides...)
}

// LoadFrom is Load with an explicit config file path. An empty path falls
// back to the default search locations; a set path must exist.
func LoadFrom(ctx context.Context, file string, overrides ...map[string]any) (*Config, error) {
	_ = ctx

	v := viper.New()
	setDefaults(v)

	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	} else {
		v.SetConfigName("vidsync")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/vidsync")

		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config file: %w", err)
			}
		}
	}

	v.SetEnvPrefix("VIDSYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for _, override := range overrides {
		if err := v.MergeConfigMap(override); err != nil {
			return nil, fmt.Errorf("merge overrides: %w", err)
		}
	}

	var cfg Config
	decodeHook := mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	)
	if err := v.Unmarshal(&cfg, viper.DecodeHook(decodeHook)); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.API.BaseURL == "" {
		return fmt.Errorf("api.base_url must be set")
	}
	if c.Feed.Limit < 1 || c.Feed.Limit > 100 {
		return fmt.Errorf("feed.limit must be between 1 and 100, got %d", c.Feed.Limit)
	}
	if c.Feed.PollInterval <= 0 {
		return fmt.Errorf("feed.poll_interval must be positive")
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}
	return nil
}

// Package config provides configuration management for the audit
// service. Values are loaded from a .env file, environment variables,
// and an optional config.yaml, in that order of precedence, with
// production-safe defaults underneath.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/counselrank/audit-service/internal/crawler"
	"github.com/counselrank/audit-service/internal/logger"
	"github.com/counselrank/audit-service/internal/scorer"
)

// Config represents the application configuration.
type Config struct {
	App           AppConfig           `mapstructure:"app"`
	Logger        LoggerConfig        `mapstructure:"logger"`
	Server        ServerConfig        `mapstructure:"server"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Redis         RedisConfig         `mapstructure:"redis"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	Crawler       CrawlerConfig       `mapstructure:"crawler"`
	Scoring       scorer.Weights      `mapstructure:"scoring"`
	Storage       StorageConfig       `mapstructure:"storage"`
}

// AppConfig holds application identity settings.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
	Debug       bool   `mapstructure:"debug"`
}

// LoggerConfig holds logging settings.
type LoggerConfig struct {
	Level       string `mapstructure:"level"`
	Encoding    string `mapstructure:"encoding"`
	Development bool   `mapstructure:"development"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Address      string        `mapstructure:"address"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password" json:"-"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

// RedisConfig holds Redis queue settings.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password" json:"-"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

// ElasticsearchConfig holds optional search index settings.
type ElasticsearchConfig struct {
	Enabled   bool     `mapstructure:"enabled"`
	Addresses []string `mapstructure:"addresses"`
	Username  string   `mapstructure:"username"`
	Password  string   `mapstructure:"password" json:"-"`
	APIKey    string   `mapstructure:"api_key" json:"-"`
	Index     string   `mapstructure:"index"`
}

// CrawlerConfig holds crawl budget and politeness settings.
type CrawlerConfig struct {
	MaxPages    int           `mapstructure:"max_pages"`
	Concurrency int           `mapstructure:"concurrency"`
	CrawlDelay  time.Duration `mapstructure:"crawl_delay"`
	MaxDuration time.Duration `mapstructure:"max_duration"`
	UserAgent   string        `mapstructure:"user_agent"`
	StoreHTML   bool          `mapstructure:"store_html"`
}

// StorageConfig holds artifact storage settings.
type StorageConfig struct {
	ArtifactDir string `mapstructure:"artifact_dir"`
}

// Load reads configuration from the environment and the optional
// config file at path (empty = search the working directory), applies
// defaults, and validates the result.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	if c.Crawler.MaxPages <= 0 {
		return fmt.Errorf("crawler.max_pages must be positive, got %d", c.Crawler.MaxPages)
	}
	if c.Crawler.Concurrency <= 0 {
		return fmt.Errorf("crawler.concurrency must be positive, got %d", c.Crawler.Concurrency)
	}
	if c.Crawler.MaxDuration <= 0 {
		return fmt.Errorf("crawler.max_duration must be positive, got %v", c.Crawler.MaxDuration)
	}

	if err := c.Scoring.Validate(); err != nil {
		return fmt.Errorf("scoring: %w", err)
	}

	if c.Elasticsearch.Enabled && len(c.Elasticsearch.Addresses) == 0 {
		return errors.New("elasticsearch.addresses required when elasticsearch is enabled")
	}

	return nil
}

// LoggerSettings converts the logger section into the logger package's
// config type.
func (c *Config) LoggerSettings() logger.Config {
	return logger.Config{
		Level:       c.Logger.Level,
		Encoding:    c.Logger.Encoding,
		Development: c.Logger.Development,
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app", map[string]any{
		"name":        "audit-service",
		"version":     "1.0.0",
		"environment": "production",
		"debug":       false,
	})

	v.SetDefault("logger", map[string]any{
		"level":       "info",
		"encoding":    "json",
		"development": false,
	})

	v.SetDefault("server", map[string]any{
		"address":       ":8080",
		"read_timeout":  "15s",
		"write_timeout": "15s",
		"idle_timeout":  "60s",
	})

	v.SetDefault("database", map[string]any{
		"host":    "localhost",
		"port":    "5432",
		"user":    "audit",
		"dbname":  "audit",
		"sslmode": "disable",
	})

	v.SetDefault("redis", map[string]any{
		"addr":   "localhost:6379",
		"db":     0,
		"prefix": "audit",
	})

	v.SetDefault("elasticsearch", map[string]any{
		"enabled":   false,
		"addresses": []string{"http://127.0.0.1:9200"},
		"index":     "audit-findings",
	})

	v.SetDefault("crawler", map[string]any{
		"max_pages":    crawler.DefaultMaxPages,
		"concurrency":  crawler.DefaultConcurrency,
		"crawl_delay":  "1s",
		"max_duration": "30m",
		"user_agent":   crawler.DefaultUserAgent,
		"store_html":   true,
	})

	weights := scorer.DefaultWeights()
	v.SetDefault("scoring", map[string]any{
		"categories": weights.Categories,
		"severities": weights.Severities,
	})

	v.SetDefault("storage", map[string]any{
		"artifact_dir": "./artifacts",
	})
}

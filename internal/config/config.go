// Package config loads the service configuration from a YAML file plus
// environment overrides for secrets (.env files are honored in development).
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the spot ingestion service.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Sioma      SiomaConfig      `yaml:"sioma"`
	Storage    StorageConfig    `yaml:"storage"`
	Redis      RedisConfig      `yaml:"redis"`
	Ingest     IngestConfig     `yaml:"ingest"`
	Validation ValidationConfig `yaml:"validation"`
}

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Host           string   `yaml:"host"`
	Port           int      `yaml:"port"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// SiomaConfig holds SIOMA API credentials and client tuning.
type SiomaConfig struct {
	BaseURL         string `yaml:"base_url"`
	Token           string `yaml:"token"`
	TimeoutSeconds  int    `yaml:"timeout_seconds"`
	MaxRetries      int    `yaml:"max_retries"`
	CatalogTTLSecs  int    `yaml:"catalog_ttl_seconds"`
}

// StorageConfig holds the Postgres run-log settings. An empty DSN runs the
// service stateless (no run history).
type StorageConfig struct {
	DSN string `yaml:"dsn"`
}

// RedisConfig holds the optional catalog cache settings.
type RedisConfig struct {
	Addr string `yaml:"addr"`
}

// IngestConfig holds the S3 bucket watcher settings.
type IngestConfig struct {
	Enabled         bool   `yaml:"enabled"`
	S3Bucket        string `yaml:"s3_bucket"`
	S3Region        string `yaml:"s3_region"`
	AWSProfile      string `yaml:"aws_profile"`
	FincaID         string `yaml:"finca_id"`
	IntervalMinutes int    `yaml:"interval_minutes"`
}

// ValidationConfig holds pipeline defaults.
type ValidationConfig struct {
	AutoRemoveDuplicates *bool `yaml:"auto_remove_duplicates"`
}

// AutoRemoveDuplicatesOrDefault returns the configured flag, defaulting to
// true (the upload UI behavior).
func (v ValidationConfig) AutoRemoveDuplicatesOrDefault() bool {
	if v.AutoRemoveDuplicates == nil {
		return true
	}
	return *v.AutoRemoveDuplicates
}

// CatalogTTL returns the lote-catalog cache TTL.
func (s SiomaConfig) CatalogTTL() time.Duration {
	if s.CatalogTTLSecs <= 0 {
		return 5 * time.Minute
	}
	return time.Duration(s.CatalogTTLSecs) * time.Second
}

// Timeout returns the SIOMA HTTP timeout.
func (s SiomaConfig) Timeout() time.Duration {
	if s.TimeoutSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(s.TimeoutSeconds) * time.Second
}

// Interval returns the ingest polling interval.
func (i IngestConfig) Interval() time.Duration {
	if i.IntervalMinutes <= 0 {
		return 5 * time.Minute
	}
	return time.Duration(i.IntervalMinutes) * time.Minute
}

// Load reads a YAML config file and applies defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	applyDefaults(&cfg)
	return &cfg, nil
}

// LoadFromEnv loads the YAML config and layers environment overrides on
// top. A .env file is loaded first when present (development convenience;
// missing is fine).
func LoadFromEnv(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	if v := os.Getenv("SERVER_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("SIOMA_API_BASE_URL"); v != "" {
		cfg.Sioma.BaseURL = v
	}
	if v := os.Getenv("SIOMA_API_TOKEN"); v != "" {
		cfg.Sioma.Token = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Storage.DSN = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}

	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if len(cfg.Server.AllowedOrigins) == 0 {
		cfg.Server.AllowedOrigins = []string{"http://localhost:3000"}
	}
	if cfg.Sioma.BaseURL == "" {
		cfg.Sioma.BaseURL = "https://api.sioma.example.com/v1"
	}
	if cfg.Sioma.MaxRetries == 0 {
		cfg.Sioma.MaxRetries = 3
	}
	if cfg.Ingest.IntervalMinutes == 0 {
		cfg.Ingest.IntervalMinutes = 5
	}
}

package exilium

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// Config is the runtime configuration. Values are resolved in three layers:
// code defaults, then an optional YAML file, then environment variables.
type Config struct {
	// MongoURI is the primary store connection string. Empty means run on
	// the file store alone.
	MongoURI      string `yaml:"mongo_uri" env:"EXILIUM_MONGO_URI"`
	MongoDatabase string `yaml:"mongo_database" env:"EXILIUM_MONGO_DATABASE"`

	// DataPath is the JSON fallback file, always written regardless of the
	// primary store's health.
	DataPath string `yaml:"data_path" env:"EXILIUM_DATA_PATH"`

	// ConnectRetries bounds the initial connection attempts before giving
	// up and starting in fallback mode.
	ConnectRetries int `yaml:"connect_retries" env:"EXILIUM_CONNECT_RETRIES"`
	// ReconnectEvery is a cron spec for fallback-mode reconnect attempts.
	ReconnectEvery string `yaml:"reconnect_every" env:"EXILIUM_RECONNECT_EVERY"`

	SnapshotTTL time.Duration `yaml:"snapshot_ttl" env:"EXILIUM_SNAPSHOT_TTL"`

	LogLevel string `yaml:"log_level" env:"EXILIUM_LOG_LEVEL"`
}

// DefaultConfig returns the code-level defaults.
func DefaultConfig() *Config {
	return &Config{
		MongoDatabase:  "exilium",
		DataPath:       "data/db.json",
		ConnectRetries: 5,
		ReconnectEvery: "@every 2m",
		SnapshotTTL:    DefaultSnapshotTTL,
		LogLevel:       "info",
	}
}

// LoadConfig resolves the configuration. path may be empty to skip the YAML
// layer; a named file that does not exist is an error.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.MongoDatabase == "" {
		return fmt.Errorf("mongo_database must not be empty")
	}
	if c.DataPath == "" {
		return fmt.Errorf("data_path must not be empty")
	}
	if c.ConnectRetries < 0 {
		return fmt.Errorf("connect_retries must be >= 0")
	}
	if c.SnapshotTTL < 0 {
		return fmt.Errorf("snapshot_ttl must be >= 0")
	}
	return nil
}

// Package config provides configuration management for Shardmind.
// Settings come from three layers: built-in defaults, an optional YAML
// config file, and environment variables with the SHARDMIND_ prefix.
// Environment variables win over the file, the file over defaults.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration settings for the Shardmind service.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Store     StoreConfig     `yaml:"store"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Engine    EngineConfig    `yaml:"engine"`
	Security  SecurityConfig  `yaml:"security"`
	Notify    NotifyConfig    `yaml:"notify"`
}

// ServerConfig contains HTTP server configuration.
type ServerConfig struct {
	Port int    `yaml:"port"` // Server port (default: 7070)
	Host string `yaml:"host"` // Server host (default: 127.0.0.1)
}

// StoreConfig contains shard store configuration.
type StoreConfig struct {
	Capacity        int    `yaml:"capacity"`         // Hard bound on stored shards (default: 10000)
	DataPath        string `yaml:"data_path"`        // Data directory for snapshots and event spool (default: ./data)
	SnapshotEnabled bool   `yaml:"snapshot_enabled"` // Persist periodic snapshots to SQLite (default: true)
	ArchiveDSN      string `yaml:"archive_dsn"`      // PostgreSQL DSN for the pruned-shard archive (empty = archival disabled)
}

// EmbeddingConfig contains embedding provider configuration.
type EmbeddingConfig struct {
	Provider  string `yaml:"provider"`   // feature-hash or remote (default: feature-hash)
	RemoteURL string `yaml:"remote_url"` // Base URL of the remote embedding service
	Model     string `yaml:"model"`      // Model name for the remote provider (default: nomic-embed-text)
	CacheSize int    `yaml:"cache_size"` // LRU embedding cache entries, 0 disables (default: 4096)
}

// EngineConfig contains background scheduler configuration.
type EngineConfig struct {
	ConsolidationInterval time.Duration `yaml:"consolidation_interval"` // Consolidation pass interval (default: 1h)
	SnapshotInterval      time.Duration `yaml:"snapshot_interval"`      // Snapshot interval (default: 15m)
}

// SecurityConfig contains security and authentication settings.
type SecurityConfig struct {
	SecurityMode string `yaml:"security_mode"` // development or production (default: development)
	APIToken     string `yaml:"api_token"`     // API authentication token
}

// NotifyConfig contains event spool settings.
type NotifyConfig struct {
	SpoolEnabled bool `yaml:"spool_enabled"` // Write store events to {data_path}/events (default: false)
}

// LoadConfig loads configuration from environment variables layered
// over built-in defaults.
func LoadConfig() (*Config, error) {
	cfg := defaults()
	applyEnv(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadConfigFile loads configuration from a YAML file, then applies
// environment overrides on top.
func LoadConfigFile(path string) (*Config, error) {
	cfg := defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: failed to read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: failed to parse %s: %w", path, err)
	}

	applyEnv(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints the type system cannot.
func (c *Config) Validate() error {
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("config: server port out of range: %d", c.Server.Port)
	}
	if c.Store.Capacity < 1 {
		return fmt.Errorf("config: store capacity must be >= 1, got %d", c.Store.Capacity)
	}
	if c.Embedding.Provider != "feature-hash" && c.Embedding.Provider != "remote" {
		return fmt.Errorf("config: unknown embedding provider %q", c.Embedding.Provider)
	}
	if c.Embedding.Provider == "remote" && c.Embedding.RemoteURL == "" {
		return fmt.Errorf("config: remote embedding provider requires remote_url")
	}
	if c.Engine.ConsolidationInterval <= 0 {
		return fmt.Errorf("config: consolidation interval must be > 0, got %v", c.Engine.ConsolidationInterval)
	}
	if c.Security.SecurityMode == "production" && c.Security.APIToken == "" {
		return fmt.Errorf("config: production mode requires an API token")
	}
	return nil
}

func defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Port: 7070,
			Host: "127.0.0.1",
		},
		Store: StoreConfig{
			Capacity:        10000,
			DataPath:        "./data",
			SnapshotEnabled: true,
		},
		Embedding: EmbeddingConfig{
			Provider:  "feature-hash",
			Model:     "nomic-embed-text",
			CacheSize: 4096,
		},
		Engine: EngineConfig{
			ConsolidationInterval: time.Hour,
			SnapshotInterval:      15 * time.Minute,
		},
		Security: SecurityConfig{
			SecurityMode: "development",
		},
	}
}

func applyEnv(cfg *Config) {
	cfg.Server.Port = getEnvInt("SHARDMIND_PORT", cfg.Server.Port)
	cfg.Server.Host = getEnv("SHARDMIND_HOST", cfg.Server.Host)

	cfg.Store.Capacity = getEnvInt("SHARDMIND_CAPACITY", cfg.Store.Capacity)
	cfg.Store.DataPath = getEnv("SHARDMIND_DATA_PATH", cfg.Store.DataPath)
	cfg.Store.SnapshotEnabled = getEnvBool("SHARDMIND_SNAPSHOT_ENABLED", cfg.Store.SnapshotEnabled)
	cfg.Store.ArchiveDSN = getEnv("SHARDMIND_ARCHIVE_DSN", cfg.Store.ArchiveDSN)

	cfg.Embedding.Provider = getEnv("SHARDMIND_EMBEDDING_PROVIDER", cfg.Embedding.Provider)
	cfg.Embedding.RemoteURL = getEnv("SHARDMIND_EMBEDDING_URL", cfg.Embedding.RemoteURL)
	cfg.Embedding.Model = getEnv("SHARDMIND_EMBEDDING_MODEL", cfg.Embedding.Model)
	cfg.Embedding.CacheSize = getEnvInt("SHARDMIND_EMBEDDING_CACHE_SIZE", cfg.Embedding.CacheSize)

	cfg.Engine.ConsolidationInterval = getEnvDuration("SHARDMIND_CONSOLIDATION_INTERVAL", cfg.Engine.ConsolidationInterval)
	cfg.Engine.SnapshotInterval = getEnvDuration("SHARDMIND_SNAPSHOT_INTERVAL", cfg.Engine.SnapshotInterval)

	cfg.Security.SecurityMode = getEnv("SHARDMIND_SECURITY_MODE", cfg.Security.SecurityMode)
	cfg.Security.APIToken = getEnv("SHARDMIND_API_TOKEN", cfg.Security.APIToken)

	cfg.Notify.SpoolEnabled = getEnvBool("SHARDMIND_NOTIFY_SPOOL", cfg.Notify.SpoolEnabled)
}

// getEnv retrieves a string environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt retrieves an integer environment variable or returns a
// default value. Unparseable values fall back to the default.
func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}

// getEnvBool retrieves a boolean environment variable or returns a
// default value.
func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}

// getEnvDuration retrieves a duration environment variable or returns
// a default value.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}

// Package config loads discovery engine configuration from a YAML file with
// environment variable overrides for secrets and deploy-time settings.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	// DefaultReadTimeoutSeconds is the default HTTP read timeout in seconds
	DefaultReadTimeoutSeconds = 10
	// DefaultWriteTimeoutSeconds is the default HTTP write timeout in seconds
	DefaultWriteTimeoutSeconds = 30
	// DefaultShutdownTimeoutSeconds is the default shutdown timeout in seconds
	DefaultShutdownTimeoutSeconds = 30

	defaultAPIAddress      = ":8085"
	defaultSafetyLimit     = 20
	defaultReinvokeDelay   = 3 * time.Second
	defaultPromoteInterval = time.Second
	defaultMaxDeliveries   = 5
)

// Config is the root configuration for both the worker and the API process.
type Config struct {
	Debug         bool                `yaml:"debug"` // Controls log level and format
	Server        ServerConfig        `yaml:"server"`
	Database      DatabaseConfig      `yaml:"database"`
	Redis         RedisConfig         `yaml:"redis"`
	Engine        EngineConfig        `yaml:"engine"`
	Platforms     PlatformsConfig     `yaml:"platforms"`
	Elasticsearch ElasticsearchConfig `yaml:"elasticsearch"`
}

// ServerConfig holds status API server settings.
type ServerConfig struct {
	Address      string        `yaml:"address"`       // e.g., ":8085"
	ReadTimeout  time.Duration `yaml:"read_timeout"`  // Default: 10s
	WriteTimeout time.Duration `yaml:"write_timeout"` // Default: 30s
}

// DatabaseConfig holds PostgreSQL settings.
type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     string `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`
	SSLMode  string `yaml:"sslmode"`
}

// RedisConfig holds invocation queue settings.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix"` // Key prefix, default "discovery"
}

// EngineConfig holds controller and dispatcher tuning. These are explicit
// construction-time knobs, never read from globals.
type EngineConfig struct {
	SafetyLimit     int           `yaml:"safety_limit"`     // Max upstream calls per job
	ReinvokeDelay   time.Duration `yaml:"reinvoke_delay"`   // Delay between invocations
	PromoteInterval time.Duration `yaml:"promote_interval"` // Delayed-set promotion cadence
	MaxDeliveries   int64         `yaml:"max_deliveries"`   // Drop threshold for poisoned messages
}

// PlatformConfig holds one upstream search API's settings.
type PlatformConfig struct {
	BaseURL          string        `yaml:"base_url"`
	APIKey           string        `yaml:"api_key"`
	RateLimitRPS     float64       `yaml:"rate_limit_rps"`
	EnrichmentFanout int           `yaml:"enrichment_fanout"`
	PageSize         int           `yaml:"page_size"`
	Timeout          time.Duration `yaml:"timeout"`
}

// PlatformsConfig holds the per-platform adapter settings.
type PlatformsConfig struct {
	TikTok    PlatformConfig `yaml:"tiktok"`
	Instagram PlatformConfig `yaml:"instagram"`
	YouTube   PlatformConfig `yaml:"youtube"`
}

// ElasticsearchConfig holds the optional completed-results index sink.
type ElasticsearchConfig struct {
	Enabled  bool   `yaml:"enabled"`
	URL      string `yaml:"url"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Index    string `yaml:"index"` // Default "discovered_creators"
}

// Validate checks if the server configuration is valid and sets defaults.
func (c *ServerConfig) Validate() error {
	if c.Address == "" {
		c.Address = defaultAPIAddress
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = DefaultReadTimeoutSeconds * time.Second
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = DefaultWriteTimeoutSeconds * time.Second
	}
	return nil
}

// Validate checks if the configuration is valid and returns an error if not.
func (c *Config) Validate() error {
	if c.Database.Host == "" {
		return errors.New("database.host is required")
	}
	if c.Database.User == "" {
		return errors.New("database.user is required")
	}
	if c.Database.DBName == "" {
		return errors.New("database.dbname is required")
	}
	if c.Redis.Addr == "" {
		return errors.New("redis.addr is required")
	}
	if c.Engine.SafetyLimit <= 0 {
		return fmt.Errorf("engine.safety_limit must be positive, got %d", c.Engine.SafetyLimit)
	}
	if c.Elasticsearch.Enabled && c.Elasticsearch.URL == "" {
		return errors.New("elasticsearch.url is required when elasticsearch.enabled is true")
	}
	return nil
}

func setDefaults(cfg *Config) {
	if cfg.Database.Port == "" {
		cfg.Database.Port = "5432"
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Redis.Prefix == "" {
		cfg.Redis.Prefix = "discovery"
	}
	if cfg.Engine.SafetyLimit == 0 {
		cfg.Engine.SafetyLimit = defaultSafetyLimit
	}
	if cfg.Engine.ReinvokeDelay == 0 {
		cfg.Engine.ReinvokeDelay = defaultReinvokeDelay
	}
	if cfg.Engine.PromoteInterval == 0 {
		cfg.Engine.PromoteInterval = defaultPromoteInterval
	}
	if cfg.Engine.MaxDeliveries == 0 {
		cfg.Engine.MaxDeliveries = defaultMaxDeliveries
	}
	if cfg.Elasticsearch.Index == "" {
		cfg.Elasticsearch.Index = "discovered_creators"
	}
}

// overrideWithEnvVars overrides configuration with environment variables.
// Secrets are expected to arrive this way in deployed environments.
func overrideWithEnvVars(cfg *Config) {
	if v := os.Getenv("DATABASE_HOST"); v != "" {
		cfg.Database.Host = v
	}
	if v := os.Getenv("DATABASE_PORT"); v != "" {
		cfg.Database.Port = v
	}
	if v := os.Getenv("DATABASE_USER"); v != "" {
		cfg.Database.User = v
	}
	if v := os.Getenv("DATABASE_PASSWORD"); v != "" {
		cfg.Database.Password = v
	}
	if v := os.Getenv("DATABASE_NAME"); v != "" {
		cfg.Database.DBName = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("ES_URL"); v != "" {
		cfg.Elasticsearch.URL = v
	}
	if v := os.Getenv("ES_PASSWORD"); v != "" {
		cfg.Elasticsearch.Password = v
	}
	if v := os.Getenv("TIKTOK_API_KEY"); v != "" {
		cfg.Platforms.TikTok.APIKey = v
	}
	if v := os.Getenv("INSTAGRAM_API_KEY"); v != "" {
		cfg.Platforms.Instagram.APIKey = v
	}
	if v := os.Getenv("YOUTUBE_API_KEY"); v != "" {
		cfg.Platforms.YouTube.APIKey = v
	}
	if v := os.Getenv("APP_DEBUG"); v != "" {
		cfg.Debug = parseBool(v)
	}
}

// Load reads, defaults, env-overrides, and validates the configuration.
func Load(path string) (*Config, error) {
	// Local development convenience; absent .env is fine.
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	setDefaults(&cfg)
	overrideWithEnvVars(&cfg)

	if err := cfg.Server.Validate(); err != nil {
		return nil, fmt.Errorf("server config validation: %w", err)
	}
	if port := os.Getenv("DISCOVERY_API_PORT"); port != "" {
		cfg.Server.Address = ":" + port
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// parseBool parses a string value as a boolean.
// Returns true for "true", "1", "yes" (case-insensitive), false otherwise.
func parseBool(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	return s == "true" || s == "1" || s == "yes"
}

package config

import (
	"fmt"
	"time"

	"github.com/bizsim/agegate/internal/client"
	"github.com/bizsim/agegate/internal/policy"
	"github.com/bizsim/agegate/internal/telemetry"
	"github.com/bizsim/agegate/internal/util/logger"
)

// Config is the full service configuration, loaded from YAML with
// environment expansion.
type Config struct {
	Env     string        `yaml:"env"`
	Port    int           `yaml:"port"`
	Version string        `yaml:"version"`
	Logger  logger.Config `yaml:"logger"`

	// JWTSigningKey guards the admin endpoints (cache clear).
	JWTSigningKey string `yaml:"jwt_signing_key"`

	Thresholds *policy.Model `yaml:"thresholds"`

	Cache   CacheConfig           `yaml:"cache"`
	Bridge  BridgeConfig          `yaml:"bridge"`
	Storage StorageConfig         `yaml:"storage"`
	Redis   client.RedisConfig    `yaml:"redis"`
	Kafka   telemetry.KafkaConfig `yaml:"kafka"`
}

// CacheConfig tunes the cache trust rules and the retry policy.
type CacheConfig struct {
	MaxAge      time.Duration `yaml:"max_age"`
	MaxAttempts int           `yaml:"max_attempts"`
	RetryBase   time.Duration `yaml:"retry_base"`
}

// BridgeConfig selects and configures the upstream signal source.
type BridgeConfig struct {
	Endpoint string        `yaml:"endpoint"`
	Timeout  time.Duration `yaml:"timeout"`
}

// StorageConfig selects the persistence backend and adapter.
type StorageConfig struct {
	// Backend: "badger" (default), "redis", "postgres", "memory".
	Backend string `yaml:"backend"`

	// Encrypted selects the encrypting adapter over the plain one.
	Encrypted bool `yaml:"encrypted"`

	// Path is the badger database directory.
	Path string `yaml:"path"`

	// DatabaseURL is the postgres DSN when Backend is "postgres".
	DatabaseURL string `yaml:"database_url"`

	// Namespace prefixes keys on shared backends (redis, postgres).
	Namespace string `yaml:"namespace"`
}

// Model returns the configured threshold model, falling back to the shipped
// defaults when the config omits the section.
func (c *Config) Model() policy.Model {
	if c.Thresholds == nil {
		return policy.DefaultModel()
	}
	return *c.Thresholds
}

// Validate applies defaults and rejects unusable combinations.
func (c *Config) Validate() error {
	if c.Port == 0 {
		c.Port = 8080
	}
	if c.Version == "" {
		return fmt.Errorf("config: version tag is required (cache invalidation depends on it)")
	}
	if c.Cache.MaxAge == 0 {
		c.Cache.MaxAge = 24 * time.Hour
	}
	if c.Storage.Backend == "" {
		c.Storage.Backend = "badger"
	}
	switch c.Storage.Backend {
	case "badger":
		if c.Storage.Path == "" {
			c.Storage.Path = "./data/agegate"
		}
	case "redis":
		if c.Redis.Address == "" {
			return fmt.Errorf("config: storage backend redis requires redis.address")
		}
	case "postgres":
		if c.Storage.DatabaseURL == "" {
			return fmt.Errorf("config: storage backend postgres requires storage.database_url")
		}
	case "memory":
	default:
		return fmt.Errorf("config: unknown storage backend %q", c.Storage.Backend)
	}
	if c.Bridge.Endpoint == "" {
		return fmt.Errorf("config: bridge.endpoint is required")
	}
	return nil
}

// Package config loads service configuration from defaults, an optional
// YAML file, and TRAILEX_-prefixed environment variables, in that order
// of precedence (environment wins).
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the full service configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Kafka    KafkaConfig    `mapstructure:"kafka"`
	Engine   EngineConfig   `mapstructure:"engine"`
	Log      LogConfig      `mapstructure:"log"`
}

type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

// DatabaseConfig selects the order store. Driver "memory" keeps orders
// in process; "postgres" and "sqlite" persist them through gorm.
type DatabaseConfig struct {
	Driver          string `mapstructure:"driver"`
	DSN             string `mapstructure:"dsn"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime_seconds"`
}

// ConnMaxLifetimeDuration converts the configured lifetime seconds.
func (d DatabaseConfig) ConnMaxLifetimeDuration() time.Duration {
	return time.Duration(d.ConnMaxLifetime) * time.Second
}

type KafkaConfig struct {
	Enabled bool     `mapstructure:"enabled"`
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

type EngineConfig struct {
	BatchSize    int `mapstructure:"batch_size"`
	PoolCapacity int `mapstructure:"pool_capacity"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

// Load reads configuration. path may be empty, in which case only the
// search paths below are consulted and a missing file is not an error.
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("database.driver", "memory")
	v.SetDefault("database.dsn", "")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime_seconds", 3600)
	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.topic", "trailex.orders")
	v.SetDefault("engine.batch_size", 25)
	v.SetDefault("engine.pool_capacity", 10000)
	v.SetDefault("log.level", "info")

	v.SetEnvPrefix("TRAILEX")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/trailex")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.Database.Driver {
	case "memory":
	case "postgres", "sqlite":
		if c.Database.DSN == "" {
			return fmt.Errorf("database driver %q requires a dsn", c.Database.Driver)
		}
	default:
		return fmt.Errorf("unknown database driver %q", c.Database.Driver)
	}
	if c.Engine.BatchSize < 0 || c.Engine.PoolCapacity < 0 {
		return fmt.Errorf("engine batch_size and pool_capacity must not be negative")
	}
	return nil
}

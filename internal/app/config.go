package app

import (
	"errors"
	"fmt"
	"strings"
	"time"

	mapstructure "github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"github.com/charlesng35/linker/internal/resolver"
)

// Config represents the runtime configuration for the linker backend.
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Links       LinksConfig       `mapstructure:"links"`
	Cache       CacheConfig       `mapstructure:"cache"`
	Maintenance MaintenanceConfig `mapstructure:"maintenance"`
	Monitoring  MonitoringConfig  `mapstructure:"monitoring"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port     int    `mapstructure:"port"`
	LogLevel string `mapstructure:"log_level"`
	// BaseURL is prepended to codes when building short URLs. Empty means
	// derive from the request host.
	BaseURL string `mapstructure:"base_url"`
}

// DatabaseConfig describes connection options for the supported databases.
type DatabaseConfig struct {
	Driver   string       `mapstructure:"driver"`
	Path     string       `mapstructure:"path"`
	DSN      string       `mapstructure:"dsn"`
	Postgres DBAuthConfig `mapstructure:"postgres"`
	MySQL    DBAuthConfig `mapstructure:"mysql"`
}

// DBAuthConfig represents host based database parameters.
type DBAuthConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Database string `mapstructure:"database"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

// LinksConfig tunes code generation and store access.
type LinksConfig struct {
	CodeLength   int           `mapstructure:"code_length"`
	CodeAlphabet string        `mapstructure:"code_alphabet"`
	MaxAttempts  int           `mapstructure:"max_attempts"`
	StoreTimeout time.Duration `mapstructure:"store_timeout"`
}

// CacheConfig bounds the in-memory resolution cache.
type CacheConfig struct {
	Capacity int           `mapstructure:"capacity"`
	TTL      time.Duration `mapstructure:"ttl"`
	IdleTTL  time.Duration `mapstructure:"idle_ttl"`
}

// MaintenanceConfig controls background cleanup.
type MaintenanceConfig struct {
	Purge PurgeConfig `mapstructure:"purge"`
}

// PurgeConfig controls permanent removal of tombstoned rows.
type PurgeConfig struct {
	Enabled   bool          `mapstructure:"enabled"`
	Schedule  string        `mapstructure:"schedule"`
	Retention time.Duration `mapstructure:"retention"`
}

// MonitoringConfig enables health checks and metrics.
type MonitoringConfig struct {
	Prometheus PrometheusConfig `mapstructure:"prometheus"`
	Health     HealthConfig     `mapstructure:"health_check"`
}

// PrometheusConfig toggles metrics endpoints.
type PrometheusConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Endpoint string `mapstructure:"endpoint"`
}

// HealthConfig toggles health endpoints.
type HealthConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// EngineConfig maps configuration onto the resolver's tuning knobs.
func (c *Config) EngineConfig() resolver.Config {
	return resolver.Config{
		MaxAttempts:  c.Links.MaxAttempts,
		StoreTimeout: c.Links.StoreTimeout,
		Cache: resolver.CacheConfig{
			Capacity: c.Cache.Capacity,
			TTL:      c.Cache.TTL,
			IdleTTL:  c.Cache.IdleTTL,
		},
	}
}

// LoadConfig initialises application configuration using Viper with sensible defaults.
func LoadConfig(paths ...string) (*Config, error) {
	v := viper.NewWithOptions(viper.ExperimentalBindStruct())
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.AddConfigPath("./config")
	for _, path := range paths {
		v.AddConfigPath(path)
	}

	setDefaults(v)

	v.SetEnvPrefix("LINKER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var cfgErr viper.ConfigFileNotFoundError
		if !errors.As(err, &cfgErr) {
			return nil, fmt.Errorf("config: read file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config, decodeHook()); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.log_level", "info")
	v.SetDefault("server.base_url", "")

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "./data/linker.sqlite")

	v.SetDefault("links.code_length", 8)
	v.SetDefault("links.code_alphabet", resolver.DefaultAlphabet)
	v.SetDefault("links.max_attempts", 5)
	v.SetDefault("links.store_timeout", "3s")

	v.SetDefault("cache.capacity", 1000)
	v.SetDefault("cache.ttl", "5m")
	v.SetDefault("cache.idle_ttl", "1m")

	v.SetDefault("maintenance.purge.enabled", true)
	v.SetDefault("maintenance.purge.schedule", "@daily")
	v.SetDefault("maintenance.purge.retention", "720h") // 30 days

	v.SetDefault("monitoring.prometheus.enabled", true)
	v.SetDefault("monitoring.prometheus.endpoint", "/metrics")
	v.SetDefault("monitoring.health_check.enabled", true)
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}

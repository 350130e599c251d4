// Package config loads the service configuration from an optional
// config.yaml and FITTRACK_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. FITTRACK_HTTP_ADDR.
const EnvPrefix = "FITTRACK"

// Event delivery modes.
const (
	EventsInline = "inline"
	EventsQueue  = "queue"
)

// Config holds all configuration for the service.
type Config struct {
	HTTP      HTTPConfig      `mapstructure:"http"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Events    EventsConfig    `mapstructure:"events"`
	Quota     QuotaConfig     `mapstructure:"quota"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Log       LogConfig       `mapstructure:"log"`
}

type HTTPConfig struct {
	Addr            string        `mapstructure:"addr"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// EventsConfig selects how domain events reach the observers: "inline"
// dispatches on the bus right after commit, "queue" goes through River.
type EventsConfig struct {
	Mode              string        `mapstructure:"mode"`
	Workers           int           `mapstructure:"workers"`
	ReplenishInterval time.Duration `mapstructure:"replenish_interval"`
	ObserverTimeout   time.Duration `mapstructure:"observer_timeout"`
}

type QuotaConfig struct {
	ConsumeOnReject bool `mapstructure:"consume_on_reject"`
}

type AuthConfig struct {
	Secret string        `mapstructure:"secret"`
	Issuer string        `mapstructure:"issuer"`
	TTL    time.Duration `mapstructure:"ttl"`
}

// RedisConfig enables the notification stream sink when Addr is set.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Stream   string `mapstructure:"stream"`
}

type TelemetryConfig struct {
	Exporter    string `mapstructure:"exporter"`
	Environment string `mapstructure:"environment"`
	Insecure    bool   `mapstructure:"insecure"`
}

// LogConfig controls the slog handler. File enables rotation through
// lumberjack; an empty File logs to stderr.
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("http.addr", ":8080")
	v.SetDefault("http.shutdown_timeout", "10s")
	v.SetDefault("database.path", "fittrack.db")
	v.SetDefault("events.mode", EventsInline)
	v.SetDefault("events.workers", 10)
	v.SetDefault("events.replenish_interval", "1h")
	v.SetDefault("events.observer_timeout", "5s")
	v.SetDefault("quota.consume_on_reject", false)
	v.SetDefault("auth.secret", "")
	v.SetDefault("auth.issuer", "fittrack")
	v.SetDefault("auth.ttl", "24h")
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.stream", "fittrack:notifications")
	v.SetDefault("telemetry.exporter", "none")
	v.SetDefault("telemetry.environment", "development")
	v.SetDefault("telemetry.insecure", true)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size_mb", 50)
	v.SetDefault("log.max_backups", 3)
	v.SetDefault("log.max_age_days", 28)
}

// Load reads configuration. path may name a config file or a directory
// searched for config.yaml; a missing config.yaml in a directory is not an
// error. Environment variables override file values.
func Load(path string) (Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path == "" {
		path = "."
	}
	if info, err := os.Stat(path); err == nil && !info.IsDir() {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath(path)
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decoding config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the enumerated settings.
func (c Config) Validate() error {
	switch c.Events.Mode {
	case EventsInline, EventsQueue:
	default:
		return fmt.Errorf("events.mode must be %q or %q, got %q", EventsInline, EventsQueue, c.Events.Mode)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("log.format must be \"text\" or \"json\", got %q", c.Log.Format)
	}
	switch c.Telemetry.Exporter {
	case "none", "stdout", "otlp":
	default:
		return fmt.Errorf("telemetry.exporter must be \"none\", \"stdout\" or \"otlp\", got %q", c.Telemetry.Exporter)
	}
	if c.Database.Path == "" {
		return errors.New("database.path is required")
	}
	return nil
}

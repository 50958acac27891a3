package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable read by Load.
const EnvPrefix = "FARE"

// envAliases lists well-known variable names accepted in addition to the
// prefixed form. The prefixed form wins when both are set.
var envAliases = map[string]string{
	"database.url":    "DATABASE_URL",
	"pricing.api_key": "SERPAPI_KEY",
	"queue.redis_url": "REDIS_URL",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.log_level", "info")
	v.SetDefault("server.mode", ModeAll)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("database.url", "")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.auto_migrate", true)

	v.SetDefault("pricing.api_key", "")
	v.SetDefault("pricing.base_url", "https://serpapi.com/search.json")
	v.SetDefault("pricing.engine", "google_flights")
	v.SetDefault("pricing.currency", "USD")
	v.SetDefault("pricing.locale", "en")
	v.SetDefault("pricing.timeout", 200*time.Second)
	v.SetDefault("pricing.requests_per_second", 5.0)
	v.SetDefault("pricing.burst", 1)

	v.SetDefault("queue.driver", QueueDriverMemory)
	v.SetDefault("queue.redis_url", "")
	v.SetDefault("queue.key", "fare-enricher:enrichment")
	v.SetDefault("queue.group", "enrichers")
	v.SetDefault("queue.size", 100)
	v.SetDefault("queue.claim_idle", time.Hour)

	v.SetDefault("task.worker_count", 2)
	v.SetDefault("task.max_retries", 3)
	v.SetDefault("task.base_delay", 60*time.Second)
	v.SetDefault("task.multiplier", 2.0)
	v.SetDefault("task.max_delay", 30*time.Minute)
	v.SetDefault("task.recover_pending", true)
}

// Load configuration from environment variables and optionally config files.
// A .env file in the working directory is loaded first without overriding
// variables that are already set; environment variables take precedence over
// values from a config.yaml file. Returns a populated Config struct or an
// error if loading or validation fails.
func Load() (*Config, error) {
	// A missing .env file is the normal case outside local development.
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	return load(v)
}

func load(v *viper.Viper) (*Config, error) {
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for key, alias := range envAliases {
		prefixed := EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, prefixed, alias); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", key, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks cfg against its struct tags.
func Validate(cfg *Config) error {
	if err := validator.New().Struct(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

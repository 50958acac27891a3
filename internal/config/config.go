package config

import "time"

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server   ServerConfig   `mapstructure:"server" validate:"required"`
	Database DatabaseConfig `mapstructure:"database" validate:"required"`
	Pricing  PricingConfig  `mapstructure:"pricing" validate:"required"`
	Queue    QueueConfig    `mapstructure:"queue" validate:"required"`
	Task     TaskConfig     `mapstructure:"task" validate:"required"`
}

// Process roles selected by ServerConfig.Mode.
const (
	ModeAll    = "all"
	ModeAPI    = "api"
	ModeWorker = "worker"
)

// Queue drivers selected by QueueConfig.Driver.
const (
	QueueDriverMemory = "memory"
	QueueDriverRedis  = "redis"
)

// ServerConfig contains all server-related configuration settings.
type ServerConfig struct {
	Port            int           `mapstructure:"port" validate:"required,gt=0,lt=65536"`
	LogLevel        string        `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
	Mode            string        `mapstructure:"mode" validate:"required,oneof=all api worker"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"gt=0"`
}

// RunsAPI reports whether this process serves HTTP traffic.
func (s ServerConfig) RunsAPI() bool {
	return s.Mode == ModeAll || s.Mode == ModeAPI
}

// RunsWorkers reports whether this process consumes enrichment jobs.
func (s ServerConfig) RunsWorkers() bool {
	return s.Mode == ModeAll || s.Mode == ModeWorker
}

// DatabaseConfig contains all database-related configuration settings.
type DatabaseConfig struct {
	URL          string `mapstructure:"url" validate:"required,url"`
	MaxOpenConns int    `mapstructure:"max_open_conns" validate:"gte=1"`
	MaxIdleConns int    `mapstructure:"max_idle_conns" validate:"gte=0"`
	AutoMigrate  bool   `mapstructure:"auto_migrate"`
}

// PricingConfig configures the third-party flight search API.
type PricingConfig struct {
	APIKey            string        `mapstructure:"api_key" validate:"required"`
	BaseURL           string        `mapstructure:"base_url" validate:"required,url"`
	Engine            string        `mapstructure:"engine" validate:"required"`
	Currency          string        `mapstructure:"currency" validate:"required,len=3"`
	Locale            string        `mapstructure:"locale" validate:"required"`
	Timeout           time.Duration `mapstructure:"timeout" validate:"gt=0"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second" validate:"gte=0"`
	Burst             int           `mapstructure:"burst" validate:"gte=1"`
}

// QueueConfig selects and configures the job queue between API and workers.
type QueueConfig struct {
	Driver    string        `mapstructure:"driver" validate:"required,oneof=memory redis"`
	RedisURL  string        `mapstructure:"redis_url" validate:"required_if=Driver redis"`
	Key       string        `mapstructure:"key" validate:"required"`
	Group     string        `mapstructure:"group" validate:"required"`
	Size      int           `mapstructure:"size" validate:"gte=1"`
	ClaimIdle time.Duration `mapstructure:"claim_idle" validate:"gt=0"`
}

// TaskConfig configures the enrichment worker pool and its retry policy.
type TaskConfig struct {
	WorkerCount    int           `mapstructure:"worker_count" validate:"gte=1"`
	MaxRetries     int           `mapstructure:"max_retries" validate:"gte=0"`
	BaseDelay      time.Duration `mapstructure:"base_delay" validate:"gte=0"`
	Multiplier     float64       `mapstructure:"multiplier" validate:"gte=1"`
	MaxDelay       time.Duration `mapstructure:"max_delay" validate:"gtefield=BaseDelay"`
	RecoverPending bool          `mapstructure:"recover_pending"`
}

package config

import (
	"fmt"
	"time"
)

// Notifier holds all runtime configuration of the self-hosted fan-out bus.
// Every field has a sensible default; DATABASE_URL and SUBSCRIPTION_URL are required.
type Notifier struct {
	Log Log `yaml:"log"`

	// Server
	HTTPPort        string        `yaml:"http_port" env:"HTTP_PORT" env-default:"8080"`
	ReadTimeout     time.Duration `yaml:"read_timeout" env:"READ_TIMEOUT" env-default:"5s"`
	WriteTimeout    time.Duration `yaml:"write_timeout" env:"WRITE_TIMEOUT" env-default:"10s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT" env-default:"30s"`

	// Database
	DatabaseURL    string `yaml:"database_url" env:"DATABASE_URL" env-required:"true"`
	DBMaxConns     int32  `yaml:"db_max_conns" env:"DB_MAX_CONNS" env-default:"25"`
	DBMinConns     int32  `yaml:"db_min_conns" env:"DB_MIN_CONNS" env-default:"5"`
	MigrationsPath string `yaml:"migrations_path" env:"MIGRATIONS_PATH" env-default:"migrations"`

	// Topic and its single static subscription
	TopicARN        string `yaml:"topic_arn" env:"TOPIC_ARN" env-default:"arn:local:sns:deadman-switch"`
	SubscriptionURL string `yaml:"subscription_url" env:"SUBSCRIPTION_URL" env-required:"true"`

	// Delivery
	DeliveryTimeout time.Duration `yaml:"delivery_timeout" env:"DELIVERY_TIMEOUT" env-default:"15s"`
	Workers         int           `yaml:"workers" env:"DELIVERY_WORKERS" env-default:"4"`
	QueueSize       int           `yaml:"queue_size" env:"QUEUE_SIZE" env-default:"5000"`
	RateLimit       int           `yaml:"rate_limit" env:"RATE_LIMIT_PER_SUBSCRIPTION" env-default:"100"`
	MaxRetries      int           `yaml:"max_retries" env:"MAX_RETRIES" env-default:"3"`

	// Retry backoff durations: index 0 = first retry delay, etc.
	RetryBackoffRaw string          `yaml:"retry_backoff" env:"RETRY_BACKOFF" env-default:"5s,30s,120s"`
	RetryBackoff    []time.Duration `yaml:"-" env:"-"`

	// Background worker poll intervals
	RetryInterval    time.Duration `yaml:"retry_interval" env:"RETRY_INTERVAL" env-default:"10s"`
	RecoveryInterval time.Duration `yaml:"recovery_interval" env:"RECOVERY_INTERVAL" env-default:"30s"`
	RecoveryAge      time.Duration `yaml:"recovery_age" env:"RECOVERY_AGE" env-default:"1m"`
	RecoveryStuckAge time.Duration `yaml:"recovery_stuck_age" env:"RECOVERY_STUCK_AGE" env-default:"15m"`
}

// LoadNotifier reads and validates the notifier configuration.
func LoadNotifier() (*Notifier, error) {
	cfg := &Notifier{}
	if err := read(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects values the bus cannot run with and fills RetryBackoff.
func (c *Notifier) Validate() error {
	if err := validateEndpoint("SUBSCRIPTION_URL", c.SubscriptionURL); err != nil {
		return err
	}
	if c.Workers < 1 {
		return fmt.Errorf("DELIVERY_WORKERS must be at least 1")
	}
	if c.QueueSize < 1 {
		return fmt.Errorf("QUEUE_SIZE must be at least 1")
	}
	if c.RateLimit < 1 {
		return fmt.Errorf("RATE_LIMIT_PER_SUBSCRIPTION must be at least 1")
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("MAX_RETRIES must not be negative")
	}
	if c.RecoveryStuckAge <= c.DeliveryTimeout {
		return fmt.Errorf("RECOVERY_STUCK_AGE must exceed DELIVERY_TIMEOUT")
	}
	backoff, err := parseDurations(c.RetryBackoffRaw)
	if err != nil {
		return fmt.Errorf("RETRY_BACKOFF: %w", err)
	}
	c.RetryBackoff = backoff
	return nil
}

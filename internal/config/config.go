package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/notifyhub/deadman-switch/internal/domain"
)

// Log configures the zap logger shared by every binary.
type Log struct {
	Level string `yaml:"level" env:"LOG_LEVEL" env-default:"info"`
}

// NewLogger builds a production zap logger at the configured level.
func (l Log) NewLogger() (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(l.Level)
	if err != nil {
		return nil, fmt.Errorf("parse log level: %w", err)
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(level)
	return cfg.Build()
}

// read loads cfg from the YAML file named by CONFIG_FILE when set, then
// applies environment overrides. Without a file only the environment is read.
func read(cfg any) error {
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cleanenv.ReadConfig(path, cfg); err != nil {
			return fmt.Errorf("config error: %w", err)
		}
		return nil
	}
	if err := cleanenv.ReadEnv(cfg); err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	return nil
}

func parseDurations(raw string) ([]time.Duration, error) {
	var out []time.Duration
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		d, err := time.ParseDuration(part)
		if err != nil {
			return nil, fmt.Errorf("parse duration %q: %w", part, err)
		}
		if d <= 0 {
			return nil, fmt.Errorf("duration %q must be positive", part)
		}
		out = append(out, d)
	}
	if len(out) == 0 {
		return nil, errors.New("at least one duration is required")
	}
	return out, nil
}

func validateEndpoint(name, raw string) error {
	if err := domain.ValidateEndpoint(raw); err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}

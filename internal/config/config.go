// Package config provides centralized configuration for the muninn engine.
// It uses envconfig for environment variable loading and validator for
// struct validation.
package config

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
)

const (
	// EnvironmentProduction is the production environment identifier.
	EnvironmentProduction = "production"
)

// Config holds the complete application configuration.
type Config struct {
	App           AppConfig           `envconfig:"APP"`
	Engine        EngineConfig        `envconfig:"ENGINE"`
	Mixer         MixerConfig         `envconfig:"MIXER"`
	Store         StoreConfig         `envconfig:"STORE"`
	Redis         RedisConfig         `envconfig:"REDIS"`
	Database      DatabaseConfig      `envconfig:"DB"`
	HostAPI       HostAPIConfig       `envconfig:"HOSTAPI"`
	Observability ObservabilityConfig `envconfig:"OBSERVABILITY"`
}

// AppConfig contains core application settings.
type AppConfig struct {
	Name            string        `envconfig:"NAME" default:"muninn"`
	Version         string        `envconfig:"VERSION" default:"dev"`
	Environment     string        `envconfig:"ENV" default:"development" validate:"oneof=development staging production"`
	LogLevel        string        `envconfig:"LOG_LEVEL" default:"info" validate:"oneof=debug info warn error"`
	LogFormat       string        `envconfig:"LOG_FORMAT" default:"text" validate:"oneof=json text"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"30s"`
}

// Load reads configuration from environment variables with the MUNINN
// prefix.
func Load() (*Config, error) {
	cfg := &Config{}

	if err := envconfig.Process("MUNINN", cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment variables: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate performs validation on the loaded configuration.
func (c *Config) Validate() error {
	validate := validator.New()

	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("validation error: %w", err)
	}

	if err := c.Mixer.Validate(c.App.Environment); err != nil {
		return err
	}
	if err := c.Store.Validate(); err != nil {
		return err
	}
	switch c.Store.Backend {
	case StoreBackendRedis:
		if err := c.Redis.Validate(c.App.Environment); err != nil {
			return err
		}
	case StoreBackendPostgres:
		if err := c.Database.Validate(); err != nil {
			return err
		}
	}
	if err := c.HostAPI.Validate(); err != nil {
		return err
	}
	if err := c.Observability.Validate(); err != nil {
		return err
	}

	return nil
}

// LogConfig logs the current configuration (without sensitive data).
func (c *Config) LogConfig(log *slog.Logger) {
	log.Info("configuration loaded",
		slog.String("app_name", c.App.Name),
		slog.String("version", c.App.Version),
		slog.String("environment", c.App.Environment),
		slog.String("log_level", c.App.LogLevel),
		slog.String("log_format", c.App.LogFormat),
		slog.Duration("shutdown_timeout", c.App.ShutdownTimeout),
		slog.String("store_backend", c.Store.Backend),
		slog.String("mixer_base_url", c.Mixer.BaseURL),
		slog.String("hostapi_port", c.HostAPI.Port),
		slog.String("observability_port", c.Observability.Port),
		slog.Bool("ignore_tooltips", c.Engine.IgnoreTooltips),
	)
}

// validatePort checks that a port string is a valid TCP port number.
func validatePort(port, component string) error {
	if port == "" {
		return fmt.Errorf("%s port is required", component)
	}
	n, err := strconv.Atoi(port)
	if err != nil || n < 1 || n > 65535 {
		return fmt.Errorf("%s port %q is not a valid port number", component, port)
	}
	return nil
}

// validateHost checks that a host string is present and has no scheme or
// path components.
func validateHost(host, component string) error {
	if host == "" {
		return fmt.Errorf("%s host is required", component)
	}
	if strings.Contains(host, "://") || strings.Contains(host, "/") {
		return fmt.Errorf("%s host %q must not contain a scheme or path", component, host)
	}
	return nil
}

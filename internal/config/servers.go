package config

import "time"

// HostAPIConfig configures the host-integration HTTP server (daemon mode).
type HostAPIConfig struct {
	Port string `envconfig:"PORT" default:"8080"`

	ReadTimeout  time.Duration `envconfig:"READ_TIMEOUT" default:"10s" validate:"min=1s"`
	WriteTimeout time.Duration `envconfig:"WRITE_TIMEOUT" default:"10s" validate:"min=1s"`
	IdleTimeout  time.Duration `envconfig:"IDLE_TIMEOUT" default:"60s" validate:"min=1s"`
}

// Validate checks the host API server configuration.
func (c *HostAPIConfig) Validate() error {
	return validatePort(c.Port, "hostapi")
}

// ObservabilityConfig holds configuration for the observability server
// (health probes and metrics).
type ObservabilityConfig struct {
	Port string `envconfig:"PORT" default:"9090"`

	// Timeout is the unified safety valve for read/write/probe operations.
	Timeout time.Duration `envconfig:"TIMEOUT" default:"5s" validate:"min=1s"`

	LivenessPath  string `envconfig:"LIVENESS_PATH" default:"/healthz"`
	ReadinessPath string `envconfig:"READINESS_PATH" default:"/readyz"`
	MetricsPath   string `envconfig:"METRICS_PATH" default:"/metrics"`
}

// Validate checks the observability server configuration.
func (c *ObservabilityConfig) Validate() error {
	return validatePort(c.Port, "observability")
}

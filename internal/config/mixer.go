package config

import (
	"fmt"
	"strings"
	"time"
)

// MixerConfig configures the HTTP client for the campaign mixer service.
type MixerConfig struct {
	// BaseURL is the root of the mixer API, e.g. "https://mixer.example.com".
	BaseURL string `envconfig:"BASE_URL"`

	// SubscriptionKey authenticates this app with the mixer.
	SubscriptionKey string `envconfig:"SUBSCRIPTION_KEY"`

	// DeviceID identifies the installation in ping and permission requests.
	DeviceID string `envconfig:"DEVICE_ID"`

	RequestTimeout time.Duration `envconfig:"REQUEST_TIMEOUT" default:"10s" validate:"min=1s"`

	// Retry settings for transient (5xx) mixer failures.
	MaxRetries   int           `envconfig:"MAX_RETRIES" default:"3" validate:"min=0"`
	RetryBackoff time.Duration `envconfig:"RETRY_BACKOFF" default:"500ms" validate:"min=1ms"`
}

// Validate checks the mixer configuration. The base URL and subscription key
// are mandatory in production; development environments may run against a
// local stub without either.
func (c *MixerConfig) Validate(environment string) error {
	if c.BaseURL != "" && !strings.HasPrefix(c.BaseURL, "http://") && !strings.HasPrefix(c.BaseURL, "https://") {
		return fmt.Errorf("mixer base URL %q must start with http:// or https://", c.BaseURL)
	}

	if environment == EnvironmentProduction {
		if c.BaseURL == "" {
			return fmt.Errorf("mixer base URL is required in production environment")
		}
		if !strings.HasPrefix(c.BaseURL, "https://") {
			return fmt.Errorf("mixer base URL must use https in production environment")
		}
		if c.SubscriptionKey == "" {
			return fmt.Errorf("mixer subscription key is required in production environment")
		}
	}

	return nil
}

package config

import (
	"fmt"
	"slices"
)

// Supported persistent store backends.
const (
	StoreBackendMemory   = "memory"
	StoreBackendRedis    = "redis"
	StoreBackendPostgres = "postgres"
)

// StoreConfig selects and tunes the user-data persistence backend.
type StoreConfig struct {
	// Backend selects where per-user campaign state is persisted.
	// "memory" keeps state for the process lifetime only (tests, dev).
	Backend string `envconfig:"BACKEND" default:"memory"`

	// KeyPrefix namespaces all persisted keys (redis keys, postgres rows).
	KeyPrefix string `envconfig:"KEY_PREFIX" default:"muninn:user"`
}

// Validate checks the store configuration.
func (c *StoreConfig) Validate() error {
	valid := []string{StoreBackendMemory, StoreBackendRedis, StoreBackendPostgres}
	if !slices.Contains(valid, c.Backend) {
		return fmt.Errorf("store backend %q is not one of %v", c.Backend, valid)
	}
	if c.KeyPrefix == "" {
		return fmt.Errorf("store key prefix is required")
	}
	return nil
}

// Package store provides the persistence layer for per-user campaign state.
// Containers are addressed by the identity cache key; a distinguished
// "last user" slot mirrors the most recently active identity's data.
package store

import (
	"context"
	"encoding/json"

	"github.com/rafaeljc/muninn/internal/campaign"
)

// Container is the persisted bundle for one identity set: the locally
// tracked campaign state (impressions/opt-out, test campaigns excluded) and
// the cached display-permission decisions per campaign.
type Container struct {
	Campaigns   []campaign.Campaign                   `json:"campaignData"`
	Permissions map[string]campaign.DisplayPermission `json:"displayPermissions,omitempty"`
}

// UserStore is the persistence contract for user containers.
//
// Load returns (nil, nil) for both a true miss and malformed persisted data:
// a container that cannot be decoded is treated as absent, never as an
// error. Save is last-write-wins; the engine guarantees single-writer
// access per key.
type UserStore interface {
	Load(ctx context.Context, key string) (*Container, error)
	Save(ctx context.Context, key string, c *Container) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// encodeContainer serializes a container for persistence. All backends
// share one JSON representation so data written by one backend stays
// readable if the deployment migrates to another.
func encodeContainer(c *Container) ([]byte, error) {
	return json.Marshal(c)
}

// decodeContainer deserializes persisted bytes. A decode failure returns
// nil (cache miss) rather than an error.
func decodeContainer(data []byte) *Container {
	var c Container
	if err := json.Unmarshal(data, &c); err != nil {
		return nil
	}
	return &c
}

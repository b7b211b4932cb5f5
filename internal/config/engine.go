package config

import "time"

// EngineConfig tunes the campaign lifecycle engine itself.
type EngineConfig struct {
	// IgnoreTooltips drops tooltip-variant campaigns at sync time
	// (feature-flag gate for hosts without tooltip rendering).
	IgnoreTooltips bool `envconfig:"IGNORE_TOOLTIPS" default:"false"`

	// DefaultPingInterval is used until the first mixer response supplies
	// its own next-ping interval.
	DefaultPingInterval time.Duration `envconfig:"DEFAULT_PING_INTERVAL" default:"60s" validate:"min=1s"`

	// MaxCampaignDelay caps the per-campaign dispatch pacing delay so a
	// misconfigured campaign cannot stall the queue indefinitely.
	MaxCampaignDelay time.Duration `envconfig:"MAX_CAMPAIGN_DELAY" default:"1m" validate:"min=0"`

	// ImageCacheCapacity bounds the number of resolved campaign images kept
	// in memory.
	ImageCacheCapacity int `envconfig:"IMAGE_CACHE_CAPACITY" default:"64" validate:"min=1"`

	// ImageCacheTTL expires cached images so long-running daemons pick up
	// re-published assets.
	ImageCacheTTL time.Duration `envconfig:"IMAGE_CACHE_TTL" default:"15m" validate:"min=1s"`

	// MessageHoldDuration is how long the daemon presenter keeps each
	// display open before resolving it. Zero resolves immediately.
	MessageHoldDuration time.Duration `envconfig:"MESSAGE_HOLD_DURATION" default:"0s" validate:"min=0"`
}

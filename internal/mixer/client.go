// Package mixer implements the HTTP client for the campaign mixer service:
// the periodic ping that delivers the campaign list and the per-campaign
// display-permission check.
package mixer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/rafaeljc/muninn/internal/campaign"
	"github.com/rafaeljc/muninn/internal/config"
	"github.com/rafaeljc/muninn/internal/identity"
	"github.com/rafaeljc/muninn/internal/retry"
	"github.com/rafaeljc/muninn/internal/validation"
)

const (
	pingPath       = "/ping"
	permissionPath = "/display_permission"

	headerSubscriptionKey = "Subscription-Id"
	headerDeviceID        = "Device-Id"
	headerRequestID       = "Request-Id"
)

// PingRequest is the payload sent to the mixer's ping endpoint.
type PingRequest struct {
	AppVersion      string                 `json:"appVersion"`
	SupportedTypes  []campaign.DisplayType `json:"supportedCampaignTypes"`
	UserIdentifiers []identity.Identifier  `json:"userIdentifiers"`
}

// PingResponse is the mixer's campaign delivery.
type PingResponse struct {
	NextPingMillis    int64               `json:"nextPingMillis"`
	CurrentPingMillis int64               `json:"currentPingMillis"`
	Campaigns         []campaign.Campaign `json:"data"`
}

// PermissionRequest is the payload for a display-permission check.
type PermissionRequest struct {
	CampaignID      string                `json:"campaignId"`
	AppVersion      string                `json:"appVersion"`
	UserIdentifiers []identity.Identifier `json:"userIdentifiers"`
	LastPingMillis  int64                 `json:"lastPingInMillis"`
}

// Client talks to the mixer over HTTP. It is safe for concurrent use.
type Client struct {
	logger     *slog.Logger
	cfg        *config.MixerConfig
	httpClient *http.Client
	appVersion string
}

// NewClient creates a mixer client.
func NewClient(logger *slog.Logger, cfg *config.MixerConfig, appVersion string) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	validation.AssertNotNil(cfg, "mixer config")

	return &Client{
		logger:     logger,
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.RequestTimeout},
		appVersion: appVersion,
	}
}

// Ping fetches the current campaign list for the given identity set.
// Transient (5xx) failures are retried with exponential backoff.
func (c *Client) Ping(ctx context.Context, ids []identity.Identifier) (*PingResponse, error) {
	req := PingRequest{
		AppVersion: c.appVersion,
		SupportedTypes: []campaign.DisplayType{
			campaign.DisplayTypeModal,
			campaign.DisplayTypeFull,
			campaign.DisplayTypeSlide,
			campaign.DisplayTypeHTML,
			campaign.DisplayTypeTooltip,
		},
		UserIdentifiers: ids,
	}

	var resp PingResponse
	backoff := retry.Backoff{Base: c.cfg.RetryBackoff, MaxAttempts: c.cfg.MaxRetries + 1}
	err := retry.Do(ctx, c.logger, "mixer ping", backoff, func(ctx context.Context) error {
		// Decode into a fresh value so fields partially filled by a
		// failed attempt cannot leak into the next one.
		var attempt PingResponse
		if err := c.post(ctx, pingPath, req, &attempt); err != nil {
			return err
		}
		resp = attempt
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// CheckDisplayPermission asks the mixer whether a campaign may be shown
// right now. It is not retried: a permission check is only meaningful at
// the moment of dispatch, and the caller treats failure as denial.
func (c *Client) CheckDisplayPermission(ctx context.Context, campaignID string, ids []identity.Identifier, lastPingMillis int64) (campaign.DisplayPermission, error) {
	req := PermissionRequest{
		CampaignID:      campaignID,
		AppVersion:      c.appVersion,
		UserIdentifiers: ids,
		LastPingMillis:  lastPingMillis,
	}

	var resp campaign.DisplayPermission
	if err := c.post(ctx, permissionPath, req, &resp); err != nil {
		return campaign.DisplayPermission{}, err
	}
	return resp, nil
}

// Name identifies this component in readiness probes.
func (c *Client) Name() string { return "mixer" }

// Check verifies the mixer endpoint is reachable. A configured-but-empty
// base URL reports healthy: daemon setups without a mixer run on cached
// data only.
func (c *Client) Check(ctx context.Context) error {
	if c.cfg.BaseURL == "" {
		return nil
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, c.cfg.BaseURL, nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	_ = resp.Body.Close()
	return nil
}

// post sends one JSON request and decodes the JSON response into out. 5xx
// responses come back as retryable errors; 4xx responses are terminal.
func (c *Client) post(ctx context.Context, path string, payload, out any) error {
	if c.cfg.BaseURL == "" {
		return fmt.Errorf("mixer base URL is not configured")
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode %s request: %w", path, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build %s request: %w", path, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(headerSubscriptionKey, c.cfg.SubscriptionKey)
	req.Header.Set(headerDeviceID, c.cfg.DeviceID)
	req.Header.Set(headerRequestID, uuid.NewString())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s request failed: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		// Drain so the connection can be reused.
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		err := fmt.Errorf("%s returned status %d", path, resp.StatusCode)
		if resp.StatusCode >= 400 && resp.StatusCode < 500 {
			return retry.Permanent(err)
		}
		return err
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", path, err)
	}
	return nil
}

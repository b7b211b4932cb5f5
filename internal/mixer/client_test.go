package mixer

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rafaeljc/muninn/internal/campaign"
	"github.com/rafaeljc/muninn/internal/config"
	"github.com/rafaeljc/muninn/internal/identity"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
}

func testConfig(baseURL string) *config.MixerConfig {
	return &config.MixerConfig{
		BaseURL:         baseURL,
		SubscriptionKey: "sub-key",
		DeviceID:        "device-1",
		RequestTimeout:  5 * time.Second,
		MaxRetries:      2,
		RetryBackoff:    time.Millisecond,
	}
}

func testIdentifiers() []identity.Identifier {
	return []identity.Identifier{{Type: identity.TypeUserID, Identifier: "alice"}}
}

func TestNewClient(t *testing.T) {
	t.Parallel()

	assert.Panics(t, func() { NewClient(testLogger(), nil, "1.0.0") })
	assert.NotPanics(t, func() { NewClient(testLogger(), testConfig(""), "1.0.0") })
}

func TestClient_Ping(t *testing.T) {
	t.Parallel()

	t.Run("Should send identifiers and auth headers and decode the campaign list", func(t *testing.T) {
		t.Parallel()
		var got PingRequest
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/ping", r.URL.Path)
			assert.Equal(t, "sub-key", r.Header.Get("Subscription-Id"))
			assert.Equal(t, "device-1", r.Header.Get("Device-Id"))
			assert.NotEmpty(t, r.Header.Get("Request-Id"))
			require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

			_ = json.NewEncoder(w).Encode(PingResponse{
				NextPingMillis:    60000,
				CurrentPingMillis: 1700000000000,
				Campaigns:         []campaign.Campaign{{ID: "c1", MaxImpressions: 3}},
			})
		}))
		t.Cleanup(srv.Close)

		c := NewClient(testLogger(), testConfig(srv.URL), "2.1.0")
		resp, err := c.Ping(context.Background(), testIdentifiers())

		require.NoError(t, err)
		assert.Equal(t, int64(60000), resp.NextPingMillis)
		require.Len(t, resp.Campaigns, 1)
		assert.Equal(t, "c1", resp.Campaigns[0].ID)

		assert.Equal(t, "2.1.0", got.AppVersion)
		assert.Equal(t, testIdentifiers(), got.UserIdentifiers)
		assert.NotEmpty(t, got.SupportedTypes)
	})

	t.Run("Should retry transient failures", func(t *testing.T) {
		t.Parallel()
		var hits atomic.Int64
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			if hits.Add(1) == 1 {
				w.WriteHeader(http.StatusInternalServerError)
				return
			}
			_ = json.NewEncoder(w).Encode(PingResponse{NextPingMillis: 1000})
		}))
		t.Cleanup(srv.Close)

		c := NewClient(testLogger(), testConfig(srv.URL), "1.0.0")
		resp, err := c.Ping(context.Background(), nil)

		require.NoError(t, err)
		assert.Equal(t, int64(1000), resp.NextPingMillis)
		assert.Equal(t, int64(2), hits.Load())
	})

	t.Run("Should not leak fields from a partially decoded failed attempt", func(t *testing.T) {
		t.Parallel()
		var hits atomic.Int64
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			if hits.Add(1) == 1 {
				// Valid prefix fills the campaign list before the
				// decode fails on the malformed interval.
				_, _ = w.Write([]byte(`{"data":[{"campaignId":"ghost"}],"nextPingMillis":"soon"}`))
				return
			}
			_ = json.NewEncoder(w).Encode(PingResponse{NextPingMillis: 1000})
		}))
		t.Cleanup(srv.Close)

		c := NewClient(testLogger(), testConfig(srv.URL), "1.0.0")
		resp, err := c.Ping(context.Background(), nil)

		require.NoError(t, err)
		assert.Equal(t, int64(1000), resp.NextPingMillis)
		assert.Empty(t, resp.Campaigns, "failed attempt must not contribute campaigns")
	})

	t.Run("Should not retry client errors", func(t *testing.T) {
		t.Parallel()
		var hits atomic.Int64
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			hits.Add(1)
			w.WriteHeader(http.StatusUnauthorized)
		}))
		t.Cleanup(srv.Close)

		c := NewClient(testLogger(), testConfig(srv.URL), "1.0.0")
		_, err := c.Ping(context.Background(), nil)

		require.Error(t, err)
		assert.Contains(t, err.Error(), "status 401")
		assert.Equal(t, int64(1), hits.Load())
	})

	t.Run("Should fail after exhausting retries", func(t *testing.T) {
		t.Parallel()
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		t.Cleanup(srv.Close)

		c := NewClient(testLogger(), testConfig(srv.URL), "1.0.0")
		_, err := c.Ping(context.Background(), nil)

		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed after 3 attempts")
	})

	t.Run("Should fail without a configured base URL", func(t *testing.T) {
		t.Parallel()
		c := NewClient(testLogger(), testConfig(""), "1.0.0")
		_, err := c.Ping(context.Background(), nil)

		require.Error(t, err)
		assert.Contains(t, err.Error(), "not configured")
	})
}

func TestClient_CheckDisplayPermission(t *testing.T) {
	t.Parallel()

	t.Run("Should decode the permission verdict", func(t *testing.T) {
		t.Parallel()
		var got PermissionRequest
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/display_permission", r.URL.Path)
			require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
			_ = json.NewEncoder(w).Encode(campaign.DisplayPermission{Display: true, PerformPing: true})
		}))
		t.Cleanup(srv.Close)

		c := NewClient(testLogger(), testConfig(srv.URL), "1.0.0")
		perm, err := c.CheckDisplayPermission(context.Background(), "c1", testIdentifiers(), 1234)

		require.NoError(t, err)
		assert.True(t, perm.Display)
		assert.True(t, perm.PerformPing)
		assert.Equal(t, "c1", got.CampaignID)
		assert.Equal(t, int64(1234), got.LastPingMillis)
	})

	t.Run("Should not retry a failed permission check", func(t *testing.T) {
		t.Parallel()
		var hits atomic.Int64
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			hits.Add(1)
			w.WriteHeader(http.StatusInternalServerError)
		}))
		t.Cleanup(srv.Close)

		c := NewClient(testLogger(), testConfig(srv.URL), "1.0.0")
		_, err := c.CheckDisplayPermission(context.Background(), "c1", nil, 0)

		require.Error(t, err)
		assert.Equal(t, int64(1), hits.Load())
	})
}

func TestClient_Check(t *testing.T) {
	t.Parallel()

	t.Run("Should pass with no mixer configured", func(t *testing.T) {
		t.Parallel()
		c := NewClient(testLogger(), testConfig(""), "1.0.0")
		assert.NoError(t, c.Check(context.Background()))
	})

	t.Run("Should pass against a reachable endpoint", func(t *testing.T) {
		t.Parallel()
		srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
		t.Cleanup(srv.Close)

		c := NewClient(testLogger(), testConfig(srv.URL), "1.0.0")
		assert.NoError(t, c.Check(context.Background()))
	})

	t.Run("Should fail against an unreachable endpoint", func(t *testing.T) {
		t.Parallel()
		c := NewClient(testLogger(), testConfig("http://127.0.0.1:1"), "1.0.0")
		assert.Error(t, c.Check(context.Background()))
	})
}

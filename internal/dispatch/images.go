package dispatch

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/maypok86/otter"

	"github.com/rafaeljc/muninn/internal/campaign"
)

// maxImageBytes bounds a single downloaded asset. Campaign images beyond
// this are treated as failed resolutions.
const maxImageBytes = 5 << 20

// Resources holds the resolved presentation assets for one campaign. A nil
// slot means resolution failed or no asset was configured; the presenter
// must tolerate either.
type Resources struct {
	Hero     []byte
	Carousel [][]byte
}

// ImageResolver downloads campaign images, caching resolved bytes so
// repeated displays of the same campaign do not refetch assets.
type ImageResolver struct {
	logger *slog.Logger
	client *http.Client
	cache  otter.Cache[string, []byte]
}

// NewImageResolver creates a resolver with an in-memory cache of the given
// capacity and TTL.
func NewImageResolver(logger *slog.Logger, client *http.Client, capacity int, ttl time.Duration) (*ImageResolver, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}

	cache, err := otter.MustBuilder[string, []byte](capacity).
		WithTTL(ttl).
		Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build image cache: %w", err)
	}

	return &ImageResolver{logger: logger, client: client, cache: cache}, nil
}

// ResolveCampaign resolves the hero image and all carousel slides for a
// campaign. Individual failures leave the corresponding slot nil; the
// campaign is displayed regardless.
func (r *ImageResolver) ResolveCampaign(ctx context.Context, c campaign.Campaign) Resources {
	var res Resources

	if url := c.Payload.ResourceURL; url != "" {
		res.Hero = r.resolve(ctx, url)
	}

	if len(c.Payload.Carousel) > 0 {
		res.Carousel = make([][]byte, len(c.Payload.Carousel))
		for i, slide := range c.Payload.Carousel {
			if slide.ImageURL == "" {
				continue
			}
			res.Carousel[i] = r.resolve(ctx, slide.ImageURL)
		}
	}

	return res
}

// resolve fetches one asset, consulting the cache first. Returns nil on
// any failure.
func (r *ImageResolver) resolve(ctx context.Context, url string) []byte {
	if data, ok := r.cache.Get(url); ok {
		return data
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		r.logger.Warn("invalid image url", slog.String("url", url), slog.String("error", err.Error()))
		return nil
	}

	resp, err := r.client.Do(req)
	if err != nil {
		r.logger.Warn("image fetch failed", slog.String("url", url), slog.String("error", err.Error()))
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		r.logger.Warn("image fetch returned non-200",
			slog.String("url", url),
			slog.Int("status", resp.StatusCode),
		)
		return nil
	}

	// Read one byte past the cap so truncation is detectable.
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes+1))
	if err != nil {
		r.logger.Warn("image read failed", slog.String("url", url), slog.String("error", err.Error()))
		return nil
	}
	if len(data) > maxImageBytes {
		r.logger.Warn("image exceeds size limit",
			slog.String("url", url),
			slog.Int("limit_bytes", maxImageBytes),
		)
		return nil
	}

	r.cache.Set(url, data)
	return data
}

// Close releases the cache and its background goroutines.
func (r *ImageResolver) Close() {
	r.cache.Close()
}

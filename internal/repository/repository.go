// Package repository owns the in-memory campaign list: it merges freshly
// fetched mixer payloads with locally persisted impression/opt-out state and
// keeps the persisted store in step with every mutation.
package repository

import (
	"context"
	"log/slog"
	"sync"

	"github.com/rafaeljc/muninn/internal/campaign"
	"github.com/rafaeljc/muninn/internal/identity"
	"github.com/rafaeljc/muninn/internal/observability"
	"github.com/rafaeljc/muninn/internal/store"
)

// KeySource provides the persisted-store key for the current user. The
// identity resolver implements it.
type KeySource interface {
	CurrentKey() string
}

// CampaignRepository is the source of truth for the in-memory campaign and
// tooltip list. All mutations are serialized by a single mutex: sync,
// dispatch and event-driven validation may call in from different
// goroutines.
type CampaignRepository struct {
	logger *slog.Logger
	store  store.UserStore
	keys   KeySource

	mu             sync.Mutex
	campaigns      []campaign.Campaign
	permissions    map[string]campaign.DisplayPermission
	lastSyncMillis int64
}

// New creates a repository over the given store and key source.
func New(logger *slog.Logger, st store.UserStore, keys KeySource) *CampaignRepository {
	if logger == nil {
		logger = slog.Default()
	}
	if st == nil {
		panic("repository: user store cannot be nil")
	}
	if keys == nil {
		panic("repository: key source cannot be nil")
	}
	return &CampaignRepository{
		logger:      logger,
		store:       st,
		keys:        keys,
		permissions: make(map[string]campaign.DisplayPermission),
	}
}

// List returns a snapshot of the current campaign list in server order.
func (r *CampaignRepository) List() []campaign.Campaign {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]campaign.Campaign, len(r.campaigns))
	copy(out, r.campaigns)
	return out
}

// Get returns the campaign with the given id, if present.
func (r *CampaignRepository) Get(id string) (campaign.Campaign, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.campaigns {
		if c.ID == id {
			return c, true
		}
	}
	return campaign.Campaign{}, false
}

// CurrentCacheKey returns the persisted-store key of the user the
// repository is currently serving.
func (r *CampaignRepository) CurrentCacheKey() string {
	return r.keys.CurrentKey()
}

// LastSyncMillis returns the timestamp of the most recent successful sync.
func (r *CampaignRepository) LastSyncMillis() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastSyncMillis
}

// SyncWith replaces the in-memory list with the new payload, preserving
// locally tracked impression/opt-out state for campaigns whose id already
// existed:
//
//   - new campaigns start with ImpressionsLeft = MaxImpressions;
//   - existing campaigns keep their impressions adjusted by the delta when
//     MaxImpressions changed, clamped to [0, new MaxImpressions];
//   - campaigns absent from the payload are dropped;
//   - tooltip entries are excluded entirely when ignoreTooltips is set.
//
// The merged non-test subset is then persisted for the current user and
// mirrored into the last-user slot.
func (r *CampaignRepository) SyncWith(ctx context.Context, list []campaign.Campaign, timestampMillis int64, ignoreTooltips bool) error {
	r.mu.Lock()

	previous := make(map[string]campaign.Campaign, len(r.campaigns))
	for _, c := range r.campaigns {
		previous[c.ID] = c
	}

	merged := make([]campaign.Campaign, 0, len(list))
	for _, incoming := range list {
		if ignoreTooltips && incoming.IsTooltip() {
			continue
		}
		merged = append(merged, mergeCampaign(incoming, previous))
	}

	r.campaigns = merged
	r.lastSyncMillis = timestampMillis
	observability.CampaignsInRepository.Set(float64(len(merged)))

	err := r.persistLocked(ctx)
	r.mu.Unlock()

	r.logger.Debug("campaign list synced",
		slog.Int("campaigns", len(merged)),
		slog.Int64("timestamp_ms", timestampMillis),
	)
	return err
}

// mergeCampaign applies the impression-preserving merge policy for one
// incoming campaign.
func mergeCampaign(incoming campaign.Campaign, previous map[string]campaign.Campaign) campaign.Campaign {
	old, existed := previous[incoming.ID]
	if !existed {
		incoming.ImpressionsLeft = incoming.MaxImpressions
		return incoming
	}

	// Adjust by the budget delta rather than resetting, so impressions
	// already used stay used when the server raises or lowers the cap.
	left := old.ImpressionsLeft + (incoming.MaxImpressions - old.MaxImpressions)
	incoming.ImpressionsLeft = clamp(left, 0, incoming.MaxImpressions)
	incoming.IsOptedOut = old.IsOptedOut
	return incoming
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// DecrementImpressionsLeft lowers the campaign's remaining budget by one,
// flooring at zero, and persists the change (unless the campaign is a test
// campaign). Unknown ids are a no-op: the campaign may have been dropped by
// a concurrent sync.
func (r *CampaignRepository) DecrementImpressionsLeft(ctx context.Context, id string) (campaign.Campaign, bool) {
	return r.adjustImpressions(ctx, id, -1)
}

// IncrementImpressionsLeft restores one impression to the campaign's
// budget and persists the change (unless the campaign is a test campaign).
func (r *CampaignRepository) IncrementImpressionsLeft(ctx context.Context, id string) (campaign.Campaign, bool) {
	return r.adjustImpressions(ctx, id, +1)
}

func (r *CampaignRepository) adjustImpressions(ctx context.Context, id string, delta int) (campaign.Campaign, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range r.campaigns {
		if r.campaigns[i].ID != id {
			continue
		}

		left := r.campaigns[i].ImpressionsLeft + delta
		if left < 0 {
			left = 0
		}
		r.campaigns[i].ImpressionsLeft = left
		updated := r.campaigns[i]

		if !updated.IsTest {
			if err := r.persistLocked(ctx); err != nil {
				r.logger.Warn("failed to persist impression change",
					slog.String("campaign_id", id),
					slog.String("error", err.Error()),
				)
			}
		}
		return updated, true
	}
	return campaign.Campaign{}, false
}

// OptOutCampaign marks the campaign as opted out and persists the change
// (unless the campaign is a test campaign). It returns nil when the id is
// no longer present.
func (r *CampaignRepository) OptOutCampaign(ctx context.Context, id string) *campaign.Campaign {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range r.campaigns {
		if r.campaigns[i].ID != id {
			continue
		}

		r.campaigns[i].IsOptedOut = true
		updated := r.campaigns[i]

		if !updated.IsTest {
			if err := r.persistLocked(ctx); err != nil {
				r.logger.Warn("failed to persist opt-out",
					slog.String("campaign_id", id),
					slog.String("error", err.Error()),
				)
			}
		}
		return &updated
	}
	return nil
}

// LoadCachedData seeds the in-memory list from the current user's persisted
// container. When syncWithLastUser is set, campaigns present in the
// last-user slot but absent from the current container are merged in as
// fallback defaults, used on the anonymous -> identified transition so a
// first-time login inherits the anonymous session's impression state. On a
// change between two registered identities it must stay false, so one
// user's state never leaks into another's.
func (r *CampaignRepository) LoadCachedData(ctx context.Context, syncWithLastUser bool) {
	key := r.keys.CurrentKey()

	current, err := r.store.Load(ctx, key)
	if err != nil {
		r.logger.Warn("failed to load cached user data", slog.String("error", err.Error()))
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.campaigns = nil
	r.permissions = make(map[string]campaign.DisplayPermission)
	if current != nil {
		r.campaigns = current.Campaigns
		if current.Permissions != nil {
			r.permissions = current.Permissions
		}
	}

	if !syncWithLastUser {
		observability.CampaignsInRepository.Set(float64(len(r.campaigns)))
		return
	}

	last, err := r.store.Load(ctx, identity.LastUserKey)
	if err != nil {
		r.logger.Warn("failed to load last-user data", slog.String("error", err.Error()))
	}
	if last != nil {
		known := make(map[string]struct{}, len(r.campaigns))
		for _, c := range r.campaigns {
			known[c.ID] = struct{}{}
		}
		for _, c := range last.Campaigns {
			if _, ok := known[c.ID]; !ok {
				r.campaigns = append(r.campaigns, c)
			}
		}
	}
	observability.CampaignsInRepository.Set(float64(len(r.campaigns)))
}

// ClearLastUserData wipes the last-user slot. Called once an identity
// change is confirmed so a stale identity cannot leak into the next
// transition.
func (r *CampaignRepository) ClearLastUserData(ctx context.Context) {
	if err := r.store.Delete(ctx, identity.LastUserKey); err != nil {
		r.logger.Warn("failed to clear last-user data", slog.String("error", err.Error()))
	}
}

// CachedPermission returns the cached display-permission decision for a
// campaign, if one was stored for the current user.
func (r *CampaignRepository) CachedPermission(id string) (campaign.DisplayPermission, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.permissions[id]
	return p, ok
}

// StorePermission caches a display-permission decision for a campaign and
// persists it alongside the campaign state.
func (r *CampaignRepository) StorePermission(ctx context.Context, id string, p campaign.DisplayPermission) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.permissions[id] = p
	if err := r.persistLocked(ctx); err != nil {
		r.logger.Warn("failed to persist display permission",
			slog.String("campaign_id", id),
			slog.String("error", err.Error()),
		)
	}
}

// ClearPermissions drops all cached display-permission decisions. The
// engine calls this when the campaign list changes, so stale server
// decisions do not outlive the campaigns they were granted for.
func (r *CampaignRepository) ClearPermissions() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.permissions = make(map[string]campaign.DisplayPermission)
}

// persistLocked writes the non-test subset of the current state to the
// current user's container and mirrors it into the last-user slot. Callers
// must hold r.mu.
func (r *CampaignRepository) persistLocked(ctx context.Context) error {
	persisted := make([]campaign.Campaign, 0, len(r.campaigns))
	for _, c := range r.campaigns {
		if c.IsTest {
			continue
		}
		persisted = append(persisted, c)
	}

	container := &store.Container{
		Campaigns:   persisted,
		Permissions: r.permissions,
	}

	key := r.keys.CurrentKey()
	if err := r.store.Save(ctx, key, container); err != nil {
		return err
	}
	return r.store.Save(ctx, identity.LastUserKey, container)
}

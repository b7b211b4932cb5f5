package engine

import (
	"context"
	"log/slog"

	"github.com/rafaeljc/muninn/internal/campaign"
	"github.com/rafaeljc/muninn/internal/identity"
	"github.com/rafaeljc/muninn/internal/observability"
	"github.com/rafaeljc/muninn/internal/repository"
)

// permissionOracle adapts the remote permission client to the dispatcher's
// synchronous interface. Responses are cached in the repository until the
// next campaign sync; any failure to reach the client counts as denial so
// the dispatcher can keep draining its queue.
type permissionOracle struct {
	logger   *slog.Logger
	client   PermissionClient
	repo     *repository.CampaignRepository
	resolver *identity.Resolver
}

func (o *permissionOracle) CheckPermission(ctx context.Context, campaignID string) campaign.DisplayPermission {
	if p, ok := o.repo.CachedPermission(campaignID); ok {
		observability.PermissionChecks.WithLabelValues("cached").Inc()
		return p
	}

	p, err := o.client.CheckDisplayPermission(ctx, campaignID, o.resolver.Current(), o.repo.LastSyncMillis())
	if err != nil {
		o.logger.Warn("display permission check failed, treating as denied",
			slog.String("campaign_id", campaignID),
			slog.String("error", err.Error()),
		)
		observability.PermissionChecks.WithLabelValues("error").Inc()
		return campaign.DisplayPermission{Display: false, PerformPing: false}
	}

	o.repo.StorePermission(ctx, campaignID, p)
	if p.Display {
		observability.PermissionChecks.WithLabelValues("granted").Inc()
	} else {
		observability.PermissionChecks.WithLabelValues("denied").Inc()
	}
	return p
}

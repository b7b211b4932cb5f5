// Package eligibility implements the campaign validation pass: the pure
// decision procedure that combines matcher and repository state to select
// the campaigns that should move to the ready queue.
package eligibility

import (
	"errors"
	"log/slog"
	"time"

	"github.com/rafaeljc/muninn/internal/campaign"
	"github.com/rafaeljc/muninn/internal/event"
	"github.com/rafaeljc/muninn/internal/match"
)

// CampaignSource supplies the current campaign list in server order.
type CampaignSource interface {
	List() []campaign.Campaign
}

// Handler receives each campaign that passed validation along with the
// event set that was consumed for it.
type Handler func(c campaign.Campaign, consumed []event.Event)

// Validator scans the campaign list and reports the campaigns whose
// trigger sets are satisfied and whose local state allows display.
type Validator struct {
	logger    *slog.Logger
	campaigns CampaignSource
	matcher   *match.Matcher
	now       func() time.Time
}

// NewValidator creates a validator over the given campaign source and
// matcher.
func NewValidator(logger *slog.Logger, campaigns CampaignSource, matcher *match.Matcher) *Validator {
	if logger == nil {
		logger = slog.Default()
	}
	if campaigns == nil {
		panic("eligibility: campaign source cannot be nil")
	}
	if matcher == nil {
		panic("eligibility: matcher cannot be nil")
	}
	return &Validator{
		logger:    logger,
		campaigns: campaigns,
		matcher:   matcher,
		now:       time.Now,
	}
}

// Validate runs one validation pass in list order, invoking the handler for
// every campaign that should be triggered. For each accepted campaign the
// matched event set is consumed atomically first; a campaign whose
// consumption races with a concurrent clear is skipped silently rather than
// failing the pass.
//
// Test campaigns get no bypass here: they are still excluded when opted
// out, outdated or impression-exhausted. Their only special treatment is
// the dispatcher's permission step.
func (v *Validator) Validate(handler Handler) {
	if handler == nil {
		panic("eligibility: handler cannot be nil")
	}

	now := v.now()
	for _, c := range v.campaigns.List() {
		if c.ImpressionsLeft <= 0 || c.IsOptedOut || c.IsOutdated(now) {
			continue
		}
		if len(c.Triggers) == 0 {
			// Zero triggers is an explicit invalid state, always excluded.
			continue
		}
		if !v.matcher.ContainsAllRequiredEvents(c) {
			continue
		}

		// Consume a minimal satisfying set, not the whole bucket: leftover
		// duplicate copies must stay available so the campaign can fire
		// again on a later pass.
		consumed, ok := match.SatisfyingSet(c, v.matcher.MatchedEvents(c))
		if !ok {
			continue
		}
		if err := v.matcher.RemoveSetOfMatchedEvents(consumed, c); err != nil {
			if !errors.Is(err, match.ErrEventSetNotFound) && !errors.Is(err, match.ErrEventSetAlreadyUsed) {
				v.logger.Warn("unexpected event consumption failure",
					slog.String("campaign_id", c.ID),
					slog.String("error", err.Error()),
				)
			}
			continue
		}

		handler(c, consumed)
	}
}

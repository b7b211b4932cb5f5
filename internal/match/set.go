package match

import (
	"github.com/rafaeljc/muninn/internal/campaign"
	"github.com/rafaeljc/muninn/internal/event"
)

// SatisfyingSet selects, from the available events, a minimal set that
// satisfies every trigger of the campaign: one distinct event copy per
// trigger, plus the anchor view-appeared event for tooltip campaigns. The
// returned set is what the validator consumes on acceptance, so leftover
// duplicate copies stay available for a later pass.
//
// A campaign with no triggers (explicit invalid state) or a tooltip without
// an anchor never has a satisfying set.
func SatisfyingSet(c campaign.Campaign, available []event.Event) ([]event.Event, bool) {
	if len(c.Triggers) == 0 {
		return nil, false
	}

	claimed := make([]bool, len(available))
	selected := make([]event.Event, 0, len(c.Triggers)+1)

	for _, t := range c.Triggers {
		i := claimIndex(available, claimed, func(e event.Event) bool { return TriggerSatisfied(t, e) })
		if i < 0 {
			return nil, false
		}
		selected = append(selected, available[i])
	}

	if c.IsTooltip() {
		viewID := c.TooltipViewID()
		if viewID == "" {
			return nil, false
		}
		i := claimIndex(available, claimed, func(e event.Event) bool {
			return e.Type == event.TypeViewAppeared && e.ViewID == viewID
		})
		if i < 0 {
			return nil, false
		}
		selected = append(selected, available[i])
	}

	return selected, true
}

// claimIndex finds and claims the first unclaimed event satisfying pred,
// returning its index or -1.
func claimIndex(events []event.Event, claimed []bool, pred func(event.Event) bool) int {
	for i, e := range events {
		if claimed[i] || !pred(e) {
			continue
		}
		claimed[i] = true
		return i
	}
	return -1
}

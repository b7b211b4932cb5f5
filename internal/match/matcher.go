// Package match implements the per-campaign event-accumulation state
// machine: it records every qualifying event the host app logs, answers
// whether a campaign's trigger set is currently satisfied, and supports
// atomic consumption of a matched event set when a campaign is dispatched.
package match

import (
	"errors"
	"log/slog"
	"sync"

	"github.com/rafaeljc/muninn/internal/campaign"
	"github.com/rafaeljc/muninn/internal/event"
	"github.com/rafaeljc/muninn/internal/observability"
)

var (
	// ErrEventSetNotFound is returned by RemoveSetOfMatchedEvents when any
	// requested event (or required count of duplicates) is not present in
	// the campaign's bucket.
	ErrEventSetNotFound = errors.New("match: could not find requested set of events")

	// ErrEventSetAlreadyUsed is returned when a persistent-only event set
	// was already consumed for this campaign and no new qualifying event
	// has arrived since.
	ErrEventSetAlreadyUsed = errors.New("match: provided set of events have already been used")
)

// CampaignSource supplies the current campaign list. The repository
// implements it.
type CampaignSource interface {
	List() []campaign.Campaign
}

// Matcher tracks matched events per campaign.
//
// Non-persistent events are stored as separate copies in per-campaign
// buckets and removed on consumption or on ClearNonPersistentEvents.
// Persistent events are stored once, globally, and are never removed;
// re-consumption of an all-persistent set is blocked per campaign by a
// "used" marker that re-arms when the persistent event is observed again.
type Matcher struct {
	logger    *slog.Logger
	campaigns CampaignSource

	mu sync.Mutex
	// buckets holds non-persistent event copies keyed by campaign id.
	buckets map[string][]event.Event
	// persistent holds at most one copy of each distinct persistent event.
	persistent []event.Event
	// usedPersistentOnly marks campaigns whose all-persistent trigger set
	// has been consumed.
	usedPersistentOnly map[string]struct{}
}

// NewMatcher creates a matcher over the given campaign source.
func NewMatcher(logger *slog.Logger, campaigns CampaignSource) *Matcher {
	if logger == nil {
		logger = slog.Default()
	}
	if campaigns == nil {
		panic("match: campaign source cannot be nil")
	}
	return &Matcher{
		logger:             logger,
		campaigns:          campaigns,
		buckets:            make(map[string][]event.Event),
		usedPersistentOnly: make(map[string]struct{}),
	}
}

// MatchAndStore records the event against every campaign with a matching
// trigger. A single occurrence is appended once per matching campaign;
// duplicate events accumulate as separate copies so a campaign requiring
// one login can fire twice from two logins.
func (m *Matcher) MatchAndStore(e event.Event) {
	list := m.campaigns.List()

	m.mu.Lock()
	defer m.mu.Unlock()

	stored := 0
	for _, c := range list {
		if !eventAppliesTo(e, c) {
			continue
		}

		if e.IsPersistent() {
			// A fresh observation of a persistent event re-arms the
			// consumption guard for every campaign it qualifies for.
			delete(m.usedPersistentOnly, c.ID)
			if !m.hasPersistentLocked(e) {
				m.persistent = append(m.persistent, e)
			}
			stored++
			continue
		}

		m.buckets[c.ID] = append(m.buckets[c.ID], e)
		stored++
	}

	if stored > 0 {
		observability.MatchesStored.Add(float64(stored))
		m.logger.Debug("event matched",
			slog.String("event", e.NormalizedName()),
			slog.Int("campaigns", stored),
		)
	}
}

// eventAppliesTo reports whether the event satisfies at least one trigger
// of the campaign, honoring the tooltip gating rules: view-appeared events
// only ever apply to tooltip campaigns with the same anchor view, and they
// apply to those regardless of the trigger list.
func eventAppliesTo(e event.Event, c campaign.Campaign) bool {
	if e.Type == event.TypeViewAppeared {
		return c.IsTooltip() && c.TooltipViewID() != "" && c.TooltipViewID() == e.ViewID
	}
	for _, t := range c.Triggers {
		if TriggerSatisfied(t, e) {
			return true
		}
	}
	return false
}

// ContainsAllRequiredEvents reports whether every trigger of the campaign
// has at least one unconsumed matching event recorded, each satisfied by a
// distinct event copy. Tooltip campaigns additionally require a
// view-appeared event for their anchor view. A campaign with no triggers
// never matches.
func (m *Matcher) ContainsAllRequiredEvents(c campaign.Campaign) bool {
	m.mu.Lock()
	available := m.availableLocked(c.ID)
	m.mu.Unlock()

	_, ok := SatisfyingSet(c, available)
	return ok
}

// MatchedEvents returns a read-only snapshot of the events currently stored
// for the campaign: its non-persistent bucket plus all persistent events.
func (m *Matcher) MatchedEvents(c campaign.Campaign) []event.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.availableLocked(c.ID)
}

func (m *Matcher) availableLocked(campaignID string) []event.Event {
	out := make([]event.Event, 0, len(m.persistent)+len(m.buckets[campaignID]))
	out = append(out, m.persistent...)
	out = append(out, m.buckets[campaignID]...)
	return out
}

// RemoveSetOfMatchedEvents atomically consumes exactly one copy of each
// listed event from the campaign's bucket.
//
// Non-persistent events are removed; persistent events stay in place, but
// when the requested set consists solely of persistent events the campaign
// is marked used and a second consumption fails with
// ErrEventSetAlreadyUsed until a fresh qualifying event arrives. Any
// missing event fails the whole call with ErrEventSetNotFound and leaves
// the bucket untouched.
func (m *Matcher) RemoveSetOfMatchedEvents(events []event.Event, c campaign.Campaign) error {
	if len(events) == 0 {
		return ErrEventSetNotFound
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	bucket := m.buckets[c.ID]
	consumed := make([]bool, len(bucket))
	persistentOnly := true

	for _, requested := range events {
		if requested.IsPersistent() {
			if !m.hasPersistentLocked(requested) {
				return ErrEventSetNotFound
			}
			continue
		}
		persistentOnly = false

		if !claimEvent(bucket, consumed, requested) {
			return ErrEventSetNotFound
		}
	}

	if persistentOnly {
		if _, used := m.usedPersistentOnly[c.ID]; used {
			return ErrEventSetAlreadyUsed
		}
		m.usedPersistentOnly[c.ID] = struct{}{}
		return nil
	}

	// All requested copies are present; drop them in one pass.
	remaining := bucket[:0]
	for i, e := range bucket {
		if !consumed[i] {
			remaining = append(remaining, e)
		}
	}
	m.buckets[c.ID] = remaining
	return nil
}

// claimEvent marks the first unconsumed bucket entry equal to the requested
// event. Entries match by occurrence ID when the requested event carries
// one, falling back to semantic equality for events reconstructed by
// callers.
func claimEvent(bucket []event.Event, consumed []bool, requested event.Event) bool {
	for i, e := range bucket {
		if consumed[i] {
			continue
		}
		if (requested.ID != "" && e.ID == requested.ID) || (requested.ID == "" && e.Equal(requested)) {
			consumed[i] = true
			return true
		}
	}
	return false
}

func (m *Matcher) hasPersistentLocked(e event.Event) bool {
	for _, p := range m.persistent {
		if p.Equal(e) {
			return true
		}
	}
	return false
}

// ClearNonPersistentEvents removes all non-persistent event copies for all
// campaigns. Persistent events and their consumption markers are untouched.
// The engine calls this on every identity change and logout.
func (m *Matcher) ClearNonPersistentEvents() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.buckets = make(map[string][]event.Event)
}

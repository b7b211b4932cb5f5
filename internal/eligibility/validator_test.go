package eligibility

import (
	"bytes"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rafaeljc/muninn/internal/campaign"
	"github.com/rafaeljc/muninn/internal/event"
	"github.com/rafaeljc/muninn/internal/match"
)

type staticSource struct{ list []campaign.Campaign }

func (s *staticSource) List() []campaign.Campaign { return s.list }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
}

func readyCampaign(id string) campaign.Campaign {
	return campaign.Campaign{
		ID:              id,
		Type:            campaign.DisplayTypeModal,
		MaxImpressions:  3,
		ImpressionsLeft: 3,
		HasNoEndDate:    true,
		Triggers:        []campaign.Trigger{{EventType: event.TypeLoginSuccessful}},
	}
}

func setup(campaigns ...campaign.Campaign) (*Validator, *match.Matcher) {
	src := &staticSource{list: campaigns}
	m := match.NewMatcher(testLogger(), src)
	return NewValidator(testLogger(), src, m), m
}

func collect(v *Validator) []string {
	var fired []string
	v.Validate(func(c campaign.Campaign, _ []event.Event) {
		fired = append(fired, c.ID)
	})
	return fired
}

func TestValidator_Validate(t *testing.T) {
	t.Parallel()

	t.Run("Should trigger a satisfied campaign and consume its events", func(t *testing.T) {
		t.Parallel()
		c := readyCampaign("c1")
		v, m := setup(c)
		m.MatchAndStore(event.NewLoginSuccessful())

		assert.Equal(t, []string{"c1"}, collect(v))
		assert.Empty(t, collect(v), "consumed events do not fire twice")
	})

	t.Run("Should fire twice when matched twice", func(t *testing.T) {
		t.Parallel()
		c := readyCampaign("c1")
		v, m := setup(c)
		m.MatchAndStore(event.NewLoginSuccessful())
		m.MatchAndStore(event.NewLoginSuccessful())

		assert.Equal(t, []string{"c1"}, collect(v))
		assert.Equal(t, []string{"c1"}, collect(v), "the second copy fires a second pass")
		assert.Empty(t, collect(v))
	})

	t.Run("Should skip campaigns with exhausted impressions", func(t *testing.T) {
		t.Parallel()
		c := readyCampaign("c1")
		c.ImpressionsLeft = 0
		v, m := setup(c)
		m.MatchAndStore(event.NewLoginSuccessful())

		assert.Empty(t, collect(v))
	})

	t.Run("Should enforce impression exhaustion for test campaigns too", func(t *testing.T) {
		t.Parallel()
		c := readyCampaign("c1")
		c.IsTest = true
		c.ImpressionsLeft = 0
		v, m := setup(c)
		m.MatchAndStore(event.NewLoginSuccessful())

		assert.Empty(t, collect(v), "test campaigns get no validation bypass")
	})

	t.Run("Should skip opted-out campaigns", func(t *testing.T) {
		t.Parallel()
		c := readyCampaign("c1")
		c.IsOptedOut = true
		v, m := setup(c)
		m.MatchAndStore(event.NewLoginSuccessful())

		assert.Empty(t, collect(v))
	})

	t.Run("Should skip outdated campaigns", func(t *testing.T) {
		t.Parallel()
		c := readyCampaign("c1")
		c.HasNoEndDate = false
		c.EndTimeMillis = time.Now().Add(-time.Hour).UnixMilli()
		v, m := setup(c)
		m.MatchAndStore(event.NewLoginSuccessful())

		assert.Empty(t, collect(v))
	})

	t.Run("Should skip campaigns with no triggers", func(t *testing.T) {
		t.Parallel()
		c := readyCampaign("c1")
		c.Triggers = nil
		v, _ := setup(c)

		assert.Empty(t, collect(v))
	})

	t.Run("Should skip unsatisfied campaigns", func(t *testing.T) {
		t.Parallel()
		v, m := setup(readyCampaign("c1"))
		m.MatchAndStore(event.NewPurchaseSuccessful())

		assert.Empty(t, collect(v))
	})

	t.Run("Should visit campaigns in list order", func(t *testing.T) {
		t.Parallel()
		v, m := setup(readyCampaign("c1"), readyCampaign("c2"))
		m.MatchAndStore(event.NewLoginSuccessful())
		m.MatchAndStore(event.NewLoginSuccessful())

		assert.Equal(t, []string{"c1", "c2"}, collect(v))
	})

	t.Run("Should skip persistent-only sets already used", func(t *testing.T) {
		t.Parallel()
		c := readyCampaign("c1")
		c.Triggers = []campaign.Trigger{{EventType: event.TypeAppStart}}
		v, m := setup(c)
		m.MatchAndStore(event.NewAppStart())

		assert.Equal(t, []string{"c1"}, collect(v))
		assert.Empty(t, collect(v), "the persistent event is marked used")

		m.MatchAndStore(event.NewAppStart())
		assert.Equal(t, []string{"c1"}, collect(v), "a fresh app start re-arms the campaign")
	})

	t.Run("Should pass the consumed set to the handler", func(t *testing.T) {
		t.Parallel()
		c := readyCampaign("c1")
		v, m := setup(c)
		m.MatchAndStore(event.NewLoginSuccessful())

		var got []event.Event
		v.Validate(func(_ campaign.Campaign, consumed []event.Event) {
			got = consumed
		})
		require.Len(t, got, 1)
		assert.Equal(t, event.TypeLoginSuccessful, got[0].Type)
	})

	t.Run("Should panic on nil handler", func(t *testing.T) {
		t.Parallel()
		v, _ := setup()
		assert.Panics(t, func() { v.Validate(nil) })
	})
}

package campaign

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCampaign_Contexts(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		title string
		want  []string
	}{
		{
			name:  "Should return nil for a title without markers",
			title: "Spring Sale",
			want:  nil,
		},
		{
			name:  "Should extract a single marker",
			title: "[promo] Spring Sale",
			want:  []string{"promo"},
		},
		{
			name:  "Should extract multiple markers in order",
			title: "[promo] [vip] Spring Sale",
			want:  []string{"promo", "vip"},
		},
		{
			name:  "Should skip empty markers",
			title: "[] [promo] Sale",
			want:  []string{"promo"},
		},
		{
			name:  "Should ignore an unclosed bracket",
			title: "[promo] Sale [unclosed",
			want:  []string{"promo"},
		},
		{
			name:  "Should trim whitespace inside markers",
			title: "[ promo ] Sale",
			want:  []string{"promo"},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			c := Campaign{Payload: Payload{Title: tt.title}}
			assert.Equal(t, tt.want, c.Contexts())
		})
	}
}

func TestCampaign_IsOutdated(t *testing.T) {
	t.Parallel()

	now := time.Now()

	t.Run("Should never expire with HasNoEndDate", func(t *testing.T) {
		t.Parallel()
		c := Campaign{HasNoEndDate: true, EndTimeMillis: 1}
		assert.False(t, c.IsOutdated(now))
	})

	t.Run("Should expire once the end time has passed", func(t *testing.T) {
		t.Parallel()
		c := Campaign{EndTimeMillis: now.Add(-time.Hour).UnixMilli()}
		assert.True(t, c.IsOutdated(now))
	})

	t.Run("Should stay active before the end time", func(t *testing.T) {
		t.Parallel()
		c := Campaign{EndTimeMillis: now.Add(time.Hour).UnixMilli()}
		assert.False(t, c.IsOutdated(now))
	})
}

func TestCampaign_Delay(t *testing.T) {
	t.Parallel()

	assert.Equal(t, time.Duration(0), Campaign{}.Delay())
	assert.Equal(t, time.Duration(0), Campaign{Payload: Payload{DelayMillis: -5}}.Delay())
	assert.Equal(t, 1500*time.Millisecond, Campaign{Payload: Payload{DelayMillis: 1500}}.Delay())
}

func TestCampaign_Tooltip(t *testing.T) {
	t.Parallel()

	t.Run("Should expose the anchor view for tooltip campaigns", func(t *testing.T) {
		t.Parallel()
		c := Campaign{
			Type:    DisplayTypeTooltip,
			Payload: Payload{Tooltip: &TooltipSettings{ViewID: "home_banner"}},
		}
		assert.True(t, c.IsTooltip())
		assert.Equal(t, "home_banner", c.TooltipViewID())
	})

	t.Run("Should return no anchor for a tooltip without settings", func(t *testing.T) {
		t.Parallel()
		c := Campaign{Type: DisplayTypeTooltip}
		assert.Empty(t, c.TooltipViewID())
	})

	t.Run("Should return no anchor for non-tooltip campaigns", func(t *testing.T) {
		t.Parallel()
		c := Campaign{Type: DisplayTypeModal, Payload: Payload{Tooltip: &TooltipSettings{ViewID: "x"}}}
		assert.False(t, c.IsTooltip())
		assert.Empty(t, c.TooltipViewID())
	})
}

func TestDisplayType_String(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "modal", DisplayTypeModal.String())
	assert.Equal(t, "tooltip", DisplayTypeTooltip.String())
	assert.Equal(t, "invalid", DisplayTypeInvalid.String())
}

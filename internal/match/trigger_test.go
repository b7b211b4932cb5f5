package match

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/rafaeljc/muninn/internal/campaign"
	"github.com/rafaeljc/muninn/internal/event"
)

func TestTriggerSatisfied(t *testing.T) {
	t.Parallel()

	attr := func(name, value string, typ event.AttributeType) event.Attribute {
		return event.Attribute{Name: name, Value: value, Type: typ}
	}

	tests := []struct {
		name    string
		trigger campaign.Trigger
		event   event.Event
		want    bool
	}{
		{
			name:    "Should match a built-in event by type alone",
			trigger: campaign.Trigger{EventType: event.TypeLoginSuccessful},
			event:   event.NewLoginSuccessful(),
			want:    true,
		},
		{
			name:    "Should not match a different event type",
			trigger: campaign.Trigger{EventType: event.TypeLoginSuccessful},
			event:   event.NewPurchaseSuccessful(),
			want:    false,
		},
		{
			name:    "Should never match an invalid trigger type",
			trigger: campaign.Trigger{},
			event:   event.NewLoginSuccessful(),
			want:    false,
		},
		{
			name:    "Should match custom events by name case-insensitively",
			trigger: campaign.Trigger{EventType: event.TypeCustom, EventName: "Points_Earned"},
			event:   event.NewCustom("points_earned"),
			want:    true,
		},
		{
			name:    "Should not match a custom event with a different name",
			trigger: campaign.Trigger{EventType: event.TypeCustom, EventName: "points_earned"},
			event:   event.NewCustom("badge_unlocked"),
			want:    false,
		},
		{
			name: "Should require the attribute to be present",
			trigger: campaign.Trigger{
				EventType: event.TypeCustom,
				EventName: "buy",
				Attributes: []campaign.TriggerAttribute{
					{Name: "sku", Value: "a1", Type: event.AttributeTypeString, Operator: campaign.OperatorEquals},
				},
			},
			event: event.NewCustom("buy"),
			want:  false,
		},
		{
			name: "Should require the attribute type to agree",
			trigger: campaign.Trigger{
				EventType: event.TypeCustom,
				EventName: "buy",
				Attributes: []campaign.TriggerAttribute{
					{Name: "amount", Value: "10", Type: event.AttributeTypeInteger, Operator: campaign.OperatorEquals},
				},
			},
			event: event.NewCustom("buy", attr("amount", "10", event.AttributeTypeString)),
			want:  false,
		},
		{
			name: "Should compare string attributes case-insensitively",
			trigger: campaign.Trigger{
				EventType: event.TypeCustom,
				EventName: "buy",
				Attributes: []campaign.TriggerAttribute{
					{Name: "tier", Value: "GOLD", Type: event.AttributeTypeString, Operator: campaign.OperatorEquals},
				},
			},
			event: event.NewCustom("buy", attr("tier", "gold", event.AttributeTypeString)),
			want:  true,
		},
		{
			name: "Should apply greater-than on integers",
			trigger: campaign.Trigger{
				EventType: event.TypeCustom,
				EventName: "buy",
				Attributes: []campaign.TriggerAttribute{
					{Name: "amount", Value: "100", Type: event.AttributeTypeInteger, Operator: campaign.OperatorGreaterThan},
				},
			},
			event: event.NewCustom("buy", attr("amount", "150", event.AttributeTypeInteger)),
			want:  true,
		},
		{
			name: "Should apply less-than on doubles",
			trigger: campaign.Trigger{
				EventType: event.TypeCustom,
				EventName: "buy",
				Attributes: []campaign.TriggerAttribute{
					{Name: "price", Value: "9.99", Type: event.AttributeTypeDouble, Operator: campaign.OperatorLessThan},
				},
			},
			event: event.NewCustom("buy", attr("price", "5.50", event.AttributeTypeDouble)),
			want:  true,
		},
		{
			name: "Should compare booleans for equality",
			trigger: campaign.Trigger{
				EventType: event.TypeCustom,
				EventName: "buy",
				Attributes: []campaign.TriggerAttribute{
					{Name: "first", Value: "true", Type: event.AttributeTypeBoolean, Operator: campaign.OperatorEquals},
				},
			},
			event: event.NewCustom("buy", attr("first", "True", event.AttributeTypeBoolean)),
			want:  true,
		},
		{
			name: "Should allow tolerance on time equality",
			trigger: campaign.Trigger{
				EventType: event.TypeCustom,
				EventName: "buy",
				Attributes: []campaign.TriggerAttribute{
					{Name: "at", Value: "1000000", Type: event.AttributeTypeTimeInMillis, Operator: campaign.OperatorEquals},
				},
			},
			event: event.NewCustom("buy", attr("at", "1000800", event.AttributeTypeTimeInMillis)),
			want:  true,
		},
		{
			name: "Should reject time equality outside the tolerance",
			trigger: campaign.Trigger{
				EventType: event.TypeCustom,
				EventName: "buy",
				Attributes: []campaign.TriggerAttribute{
					{Name: "at", Value: "1000000", Type: event.AttributeTypeTimeInMillis, Operator: campaign.OperatorEquals},
				},
			},
			event: event.NewCustom("buy", attr("at", "1002000", event.AttributeTypeTimeInMillis)),
			want:  false,
		},
		{
			name: "Should apply is-blank regardless of attribute type",
			trigger: campaign.Trigger{
				EventType: event.TypeCustom,
				EventName: "buy",
				Attributes: []campaign.TriggerAttribute{
					{Name: "note", Type: event.AttributeTypeString, Operator: campaign.OperatorIsBlank},
				},
			},
			event: event.NewCustom("buy", attr("note", "   ", event.AttributeTypeString)),
			want:  true,
		},
		{
			name: "Should apply is-not-blank",
			trigger: campaign.Trigger{
				EventType: event.TypeCustom,
				EventName: "buy",
				Attributes: []campaign.TriggerAttribute{
					{Name: "note", Type: event.AttributeTypeString, Operator: campaign.OperatorIsNotBlank},
				},
			},
			event: event.NewCustom("buy", attr("note", "hi", event.AttributeTypeString)),
			want:  true,
		},
		{
			name: "Should never match ordering operators on strings",
			trigger: campaign.Trigger{
				EventType: event.TypeCustom,
				EventName: "buy",
				Attributes: []campaign.TriggerAttribute{
					{Name: "tier", Value: "a", Type: event.AttributeTypeString, Operator: campaign.OperatorGreaterThan},
				},
			},
			event: event.NewCustom("buy", attr("tier", "b", event.AttributeTypeString)),
			want:  false,
		},
		{
			name: "Should never match unparsable numeric values",
			trigger: campaign.Trigger{
				EventType: event.TypeCustom,
				EventName: "buy",
				Attributes: []campaign.TriggerAttribute{
					{Name: "amount", Value: "10", Type: event.AttributeTypeInteger, Operator: campaign.OperatorEquals},
				},
			},
			event: event.NewCustom("buy", attr("amount", "ten", event.AttributeTypeInteger)),
			want:  false,
		},
		{
			name: "Should require all attribute predicates to pass",
			trigger: campaign.Trigger{
				EventType: event.TypeCustom,
				EventName: "buy",
				Attributes: []campaign.TriggerAttribute{
					{Name: "tier", Value: "gold", Type: event.AttributeTypeString, Operator: campaign.OperatorEquals},
					{Name: "amount", Value: "100", Type: event.AttributeTypeInteger, Operator: campaign.OperatorGreaterThan},
				},
			},
			event: event.NewCustom("buy",
				attr("tier", "gold", event.AttributeTypeString),
				attr("amount", "50", event.AttributeTypeInteger),
			),
			want: false,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, TriggerSatisfied(tt.trigger, tt.event))
		})
	}
}

func TestSatisfyingSet(t *testing.T) {
	t.Parallel()

	t.Run("Should select one distinct copy per trigger", func(t *testing.T) {
		t.Parallel()
		c := campaign.Campaign{
			ID:   "c1",
			Type: campaign.DisplayTypeModal,
			Triggers: []campaign.Trigger{
				{EventType: event.TypeLoginSuccessful},
				{EventType: event.TypeLoginSuccessful},
			},
		}
		a, b := event.NewLoginSuccessful(), event.NewLoginSuccessful()

		set, ok := SatisfyingSet(c, []event.Event{a, b})
		assert.True(t, ok)
		assert.Len(t, set, 2)
		assert.NotEqual(t, set[0].ID, set[1].ID)
	})

	t.Run("Should leave extra copies unselected", func(t *testing.T) {
		t.Parallel()
		c := campaign.Campaign{
			ID:       "c1",
			Type:     campaign.DisplayTypeModal,
			Triggers: []campaign.Trigger{{EventType: event.TypeLoginSuccessful}},
		}
		set, ok := SatisfyingSet(c, []event.Event{event.NewLoginSuccessful(), event.NewLoginSuccessful()})
		assert.True(t, ok)
		assert.Len(t, set, 1)
	})

	t.Run("Should include the anchor view event for tooltips", func(t *testing.T) {
		t.Parallel()
		tip := campaign.Campaign{
			ID:       "tip",
			Type:     campaign.DisplayTypeTooltip,
			Triggers: []campaign.Trigger{{EventType: event.TypeLoginSuccessful}},
			Payload:  campaign.Payload{Tooltip: &campaign.TooltipSettings{ViewID: "home"}},
		}
		set, ok := SatisfyingSet(tip, []event.Event{event.NewLoginSuccessful(), event.NewViewAppeared("home")})
		assert.True(t, ok)
		assert.Len(t, set, 2)
	})

	t.Run("Should fail for a tooltip without an anchor", func(t *testing.T) {
		t.Parallel()
		tip := campaign.Campaign{
			ID:       "tip",
			Type:     campaign.DisplayTypeTooltip,
			Triggers: []campaign.Trigger{{EventType: event.TypeLoginSuccessful}},
		}
		_, ok := SatisfyingSet(tip, []event.Event{event.NewLoginSuccessful(), event.NewViewAppeared("home")})
		assert.False(t, ok)
	})

	t.Run("Should fail for a campaign with no triggers", func(t *testing.T) {
		t.Parallel()
		_, ok := SatisfyingSet(campaign.Campaign{ID: "c1"}, []event.Event{event.NewLoginSuccessful()})
		assert.False(t, ok)
	})
}

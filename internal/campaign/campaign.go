// Package campaign defines the domain model for in-app messaging campaigns
// as delivered by the mixer service, plus the locally tracked state
// (impressions left, opt-out) layered on top of each campaign.
package campaign

import (
	"strings"
	"time"

	"github.com/rafaeljc/muninn/internal/event"
)

// DisplayType discriminates how a campaign is rendered. The numeric values
// mirror the mixer wire contract and must not be reordered.
type DisplayType int

const (
	DisplayTypeInvalid DisplayType = iota
	DisplayTypeModal
	DisplayTypeFull
	DisplayTypeSlide
	DisplayTypeHTML
	DisplayTypeTooltip
)

// String returns the wire name of the display type.
func (t DisplayType) String() string {
	switch t {
	case DisplayTypeModal:
		return "modal"
	case DisplayTypeFull:
		return "full"
	case DisplayTypeSlide:
		return "slide"
	case DisplayTypeHTML:
		return "html"
	case DisplayTypeTooltip:
		return "tooltip"
	default:
		return "invalid"
	}
}

// TriggerAttribute is a single predicate over a custom-event attribute.
type TriggerAttribute struct {
	Name     string              `json:"name"`
	Value    string              `json:"value"`
	Type     event.AttributeType `json:"type"`
	Operator Operator            `json:"operator"`
}

// Trigger is one condition a qualifying event must satisfy. All triggers of
// a campaign must be satisfied (by distinct event copies) before the
// campaign becomes eligible.
type Trigger struct {
	EventType  event.Type         `json:"eventType"`
	EventName  string             `json:"eventName"`
	Attributes []TriggerAttribute `json:"attributes,omitempty"`
}

// CarouselImage is one slide of a carousel payload. Only the image URL
// matters to the engine; the rest is presentation data.
type CarouselImage struct {
	ImageURL string `json:"imageUrl"`
	AltText  string `json:"altText,omitempty"`
	Link     string `json:"link,omitempty"`
}

// TooltipSettings anchors a tooltip campaign to a host view.
type TooltipSettings struct {
	ViewID        string `json:"id"`
	Position      string `json:"position,omitempty"`
	AutoDisappear int    `json:"autoDisappear,omitempty"`
}

// Payload carries the presentation data of a campaign. The engine only ever
// reads the title (context markers), the dispatch delay, the image URLs and
// the tooltip anchor; everything else is opaque to this module and handed to
// the presenter untouched.
type Payload struct {
	Title          string           `json:"title"`
	DelayMillis    int64            `json:"delayMillis"`
	ResourceURL    string           `json:"resourceUrl,omitempty"`
	Carousel       []CarouselImage  `json:"carousel,omitempty"`
	Tooltip        *TooltipSettings `json:"tooltip,omitempty"`
	MessageBody    string           `json:"messageBody,omitempty"`
	BackgroundHex  string           `json:"backgroundColor,omitempty"`
	HeaderHex      string           `json:"headerColor,omitempty"`
	ClickableImage bool             `json:"clickableImage,omitempty"`
}

// Campaign is a displayable messaging unit. The wire fields come from the
// mixer; ImpressionsLeft and IsOptedOut are locally tracked mutable state
// that the repository persists across syncs (except for test campaigns).
type Campaign struct {
	ID             string      `json:"campaignId"`
	Type           DisplayType `json:"type"`
	IsTest         bool        `json:"isTest"`
	MaxImpressions int         `json:"maxImpressions"`
	HasNoEndDate   bool        `json:"hasNoEndDate"`
	EndTimeMillis  int64       `json:"endTimeMillis"`
	Dismissable    bool        `json:"isCampaignDismissable"`
	Triggers       []Trigger   `json:"triggers"`
	Payload        Payload     `json:"messagePayload"`

	// Local state. ImpressionsLeft is always clamped to
	// [0, MaxImpressions] by the repository.
	ImpressionsLeft int  `json:"impressionsLeft"`
	IsOptedOut      bool `json:"isOptedOut"`
}

// DisplayPermission is the mixer's per-campaign display decision.
// PerformPing asks the client to refresh its campaign list regardless of the
// display outcome.
type DisplayPermission struct {
	Display     bool `json:"display"`
	PerformPing bool `json:"performPing"`
}

// IsTooltip reports whether this campaign is the tooltip variant, which is
// additionally gated by a view-appeared event for its anchor view.
func (c Campaign) IsTooltip() bool {
	return c.Type == DisplayTypeTooltip
}

// TooltipViewID returns the anchor view identifier for tooltip campaigns,
// or "" when the campaign is not a tooltip or carries no anchor.
func (c Campaign) TooltipViewID() string {
	if !c.IsTooltip() || c.Payload.Tooltip == nil {
		return ""
	}
	return c.Payload.Tooltip.ViewID
}

// IsOutdated reports whether the campaign's end date has passed. Campaigns
// flagged with HasNoEndDate never expire.
func (c Campaign) IsOutdated(now time.Time) bool {
	if c.HasNoEndDate {
		return false
	}
	return c.EndTimeMillis < now.UnixMilli()
}

// Delay returns the pacing delay the dispatcher must wait after displaying
// this campaign before moving to the next queued one.
func (c Campaign) Delay() time.Duration {
	if c.Payload.DelayMillis <= 0 {
		return 0
	}
	return time.Duration(c.Payload.DelayMillis) * time.Millisecond
}

// Contexts extracts the context markers embedded in the campaign title.
// Markers are bracket-delimited substrings: a title of "[promo] [vip] Sale"
// yields ["promo", "vip"]. Campaigns without markers return nil and skip the
// host approval gate entirely.
func (c Campaign) Contexts() []string {
	var contexts []string
	title := c.Payload.Title
	for {
		open := strings.Index(title, "[")
		if open < 0 {
			break
		}
		end := strings.Index(title[open:], "]")
		if end < 0 {
			break
		}
		if ctx := strings.TrimSpace(title[open+1 : open+end]); ctx != "" {
			contexts = append(contexts, ctx)
		}
		title = title[open+end+1:]
	}
	return contexts
}

package hostapi

import (
	"strings"

	"github.com/rafaeljc/muninn/internal/campaign"
	"github.com/rafaeljc/muninn/internal/event"
)

// eventTypes maps the wire names accepted by POST /events to event types.
var eventTypes = map[string]event.Type{
	"app_start":           event.TypeAppStart,
	"login_successful":    event.TypeLoginSuccessful,
	"purchase_successful": event.TypePurchaseSuccessful,
	"custom":              event.TypeCustom,
	"view_appeared":       event.TypeViewAppeared,
}

// attributeTypes maps wire names to attribute value types.
var attributeTypes = map[string]event.AttributeType{
	"string":       event.AttributeTypeString,
	"integer":      event.AttributeTypeInteger,
	"double":       event.AttributeTypeDouble,
	"boolean":      event.AttributeTypeBoolean,
	"timeInMillis": event.AttributeTypeTimeInMillis,
}

// AttributeRequest is one typed key/value pair on a custom event.
type AttributeRequest struct {
	Name  string `json:"name"`
	Value string `json:"value"`
	Type  string `json:"type"`
}

// LogEventRequest defines the payload for logging an event.
type LogEventRequest struct {
	// Type selects the event kind: app_start, login_successful,
	// purchase_successful, custom or view_appeared.
	Type string `json:"type"`

	// Name is required for custom events and ignored otherwise.
	Name string `json:"name,omitempty"`

	// ViewID is required for view_appeared events.
	ViewID string `json:"viewId,omitempty"`

	// Attributes are only honored on custom and purchase_successful
	// events.
	Attributes []AttributeRequest `json:"attributes,omitempty"`
}

// Sanitize trims whitespace so lookups behave predictably.
func (r *LogEventRequest) Sanitize() {
	r.Type = strings.TrimSpace(r.Type)
	r.Name = strings.TrimSpace(r.Name)
	r.ViewID = strings.TrimSpace(r.ViewID)
	for i := range r.Attributes {
		r.Attributes[i].Name = strings.TrimSpace(r.Attributes[i].Name)
		r.Attributes[i].Type = strings.TrimSpace(r.Attributes[i].Type)
	}
}

// Validate checks the request against the event model's rules.
func (r *LogEventRequest) Validate() *ErrorResponse {
	t, ok := eventTypes[r.Type]
	if !ok {
		return &ErrorResponse{
			Code:    "ERR_INVALID_INPUT",
			Message: "Unknown event type: " + r.Type,
		}
	}

	if t == event.TypeCustom && r.Name == "" {
		return &ErrorResponse{
			Code:    "ERR_INVALID_INPUT",
			Message: "Custom events require a name",
		}
	}
	if t == event.TypeViewAppeared && r.ViewID == "" {
		return &ErrorResponse{
			Code:    "ERR_INVALID_INPUT",
			Message: "view_appeared events require a viewId",
		}
	}

	for _, a := range r.Attributes {
		if a.Name == "" {
			return &ErrorResponse{
				Code:    "ERR_INVALID_INPUT",
				Message: "Attribute name is required",
			}
		}
		if _, ok := attributeTypes[a.Type]; !ok {
			return &ErrorResponse{
				Code:    "ERR_INVALID_INPUT",
				Message: "Unknown attribute type: " + a.Type,
			}
		}
	}

	return nil
}

// ToEvent converts a validated request into a domain event.
func (r *LogEventRequest) ToEvent() event.Event {
	attrs := make([]event.Attribute, 0, len(r.Attributes))
	for _, a := range r.Attributes {
		attrs = append(attrs, event.Attribute{
			Name:  a.Name,
			Value: a.Value,
			Type:  attributeTypes[a.Type],
		})
	}

	switch eventTypes[r.Type] {
	case event.TypeAppStart:
		return event.NewAppStart()
	case event.TypeLoginSuccessful:
		return event.NewLoginSuccessful()
	case event.TypePurchaseSuccessful:
		return event.NewPurchaseSuccessful(attrs...)
	case event.TypeViewAppeared:
		return event.NewViewAppeared(r.ViewID)
	default:
		return event.NewCustom(r.Name, attrs...)
	}
}

// SetIdentityRequest defines the payload for registering user credentials.
type SetIdentityRequest struct {
	UserID               string `json:"userId,omitempty"`
	IDTrackingIdentifier string `json:"idTrackingIdentifier,omitempty"`
	AccessToken          string `json:"accessToken,omitempty"`
}

// Sanitize trims whitespace from all credential fields.
func (r *SetIdentityRequest) Sanitize() {
	r.UserID = strings.TrimSpace(r.UserID)
	r.IDTrackingIdentifier = strings.TrimSpace(r.IDTrackingIdentifier)
	r.AccessToken = strings.TrimSpace(r.AccessToken)
}

// Validate rejects credential combinations the identity layer would
// silently downgrade to anonymous, so callers get an explicit error
// instead.
func (r *SetIdentityRequest) Validate() *ErrorResponse {
	if r.AccessToken != "" && r.UserID == "" {
		return &ErrorResponse{
			Code:    "ERR_INVALID_INPUT",
			Message: "An access token requires a userId",
		}
	}
	return nil
}

// IdentityResponse reports the identity state after an update.
type IdentityResponse struct {
	Anonymous bool   `json:"anonymous"`
	CacheKey  string `json:"cacheKey"`
}

// CampaignResponse is the read-only projection of a stored campaign.
type CampaignResponse struct {
	ID              string `json:"campaignId"`
	Type            string `json:"type"`
	IsTest          bool   `json:"isTest"`
	MaxImpressions  int    `json:"maxImpressions"`
	ImpressionsLeft int    `json:"impressionsLeft"`
	IsOptedOut      bool   `json:"isOptedOut"`
	Title           string `json:"title,omitempty"`
}

func mapCampaignToResponse(c campaign.Campaign) CampaignResponse {
	return CampaignResponse{
		ID:              c.ID,
		Type:            c.Type.String(),
		IsTest:          c.IsTest,
		MaxImpressions:  c.MaxImpressions,
		ImpressionsLeft: c.ImpressionsLeft,
		IsOptedOut:      c.IsOptedOut,
		Title:           c.Payload.Title,
	}
}

// CampaignListResponse wraps GET /campaigns results.
type CampaignListResponse struct {
	Data           []CampaignResponse `json:"data"`
	LastSyncMillis int64              `json:"lastSyncMillis"`
}

// CloseMessageRequest defines the payload for closing the current
// message.
type CloseMessageRequest struct {
	// ClearQueue also discards campaigns queued behind the one on
	// display.
	ClearQueue bool `json:"clearQueue"`
}

// ErrorResponse represents a standard structured API error.
type ErrorResponse struct {
	// Code is a machine-readable error code (e.g., "ERR_INVALID_INPUT").
	Code string `json:"code"`

	// Message is a human-readable description of the error.
	Message string `json:"message"`
}

// Package event defines the events a host application can log against the
// campaign engine, plus the typed attribute values used for custom-event
// trigger matching.
package event

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Type identifies the kind of event being logged. The numeric values mirror
// the mixer wire contract and must not be reordered.
type Type int

const (
	TypeInvalid Type = iota
	TypeAppStart
	TypeLoginSuccessful
	TypePurchaseSuccessful
	TypeCustom
	TypeViewAppeared
)

// String returns the canonical lower-camel event name for built-in types.
// Custom events carry their own name and return "custom".
func (t Type) String() string {
	switch t {
	case TypeAppStart:
		return "app_start"
	case TypeLoginSuccessful:
		return "login_successful"
	case TypePurchaseSuccessful:
		return "purchase_successful"
	case TypeCustom:
		return "custom"
	case TypeViewAppeared:
		return "view_appeared"
	default:
		return "invalid"
	}
}

// IsPersistent reports whether events of this type survive consumption and
// ClearNonPersistentEvents. Only app-start qualifies: it describes a session
// fact that remains true for the lifetime of the process, so multiple
// campaigns may match it independently.
func (t Type) IsPersistent() bool {
	return t == TypeAppStart
}

// AttributeType describes how a custom attribute value must be parsed and
// compared. The numeric values mirror the mixer wire contract.
type AttributeType int

const (
	AttributeTypeInvalid AttributeType = iota
	AttributeTypeString
	AttributeTypeInteger
	AttributeTypeDouble
	AttributeTypeBoolean
	AttributeTypeTimeInMillis
)

// Attribute is a single typed key/value pair attached to a custom event.
// Values are carried as strings and parsed according to Type at comparison
// time, matching the wire representation used by trigger definitions.
type Attribute struct {
	Name  string        `json:"name"`
	Value string        `json:"value"`
	Type  AttributeType `json:"type"`
}

// Event is a single occurrence logged by the host application.
//
// Name comparison is case-insensitive everywhere in the engine; the original
// casing is preserved here for display and persistence.
type Event struct {
	// ID is a per-occurrence identifier. Two otherwise identical events get
	// distinct IDs so that duplicate copies can be consumed independently.
	ID string `json:"id"`

	Name      string `json:"name"`
	Type      Type   `json:"type"`
	Timestamp int64  `json:"timestamp"`

	// Attributes is only populated for custom events.
	Attributes []Attribute `json:"attributes,omitempty"`

	// ViewID is only populated for view-appeared events. It names the view
	// a tooltip campaign is anchored to.
	ViewID string `json:"viewId,omitempty"`
}

// NewAppStart returns a persistent app-start event.
func NewAppStart() Event {
	return newEvent(TypeAppStart, TypeAppStart.String())
}

// NewLoginSuccessful returns a login-successful event.
func NewLoginSuccessful() Event {
	return newEvent(TypeLoginSuccessful, TypeLoginSuccessful.String())
}

// NewPurchaseSuccessful returns a purchase-successful event with optional
// purchase attributes.
func NewPurchaseSuccessful(attrs ...Attribute) Event {
	e := newEvent(TypePurchaseSuccessful, TypePurchaseSuccessful.String())
	e.Attributes = attrs
	return e
}

// NewCustom returns a custom event with the given name and attributes.
func NewCustom(name string, attrs ...Attribute) Event {
	e := newEvent(TypeCustom, name)
	e.Attributes = attrs
	return e
}

// NewViewAppeared returns a view-appeared event for the given view
// identifier. These events only ever match tooltip campaigns.
func NewViewAppeared(viewID string) Event {
	e := newEvent(TypeViewAppeared, TypeViewAppeared.String())
	e.ViewID = viewID
	return e
}

func newEvent(t Type, name string) Event {
	return Event{
		ID:        uuid.NewString(),
		Name:      name,
		Type:      t,
		Timestamp: time.Now().UnixMilli(),
	}
}

// IsPersistent reports whether this event survives consumption and
// non-persistent clearing.
func (e Event) IsPersistent() bool {
	return e.Type.IsPersistent()
}

// NormalizedName returns the event name lowered for case-insensitive
// comparison.
func (e Event) NormalizedName() string {
	return strings.ToLower(e.Name)
}

// Attribute looks up a custom attribute by its lower-cased name.
func (e Event) Attribute(name string) (Attribute, bool) {
	name = strings.ToLower(name)
	for _, a := range e.Attributes {
		if strings.ToLower(a.Name) == name {
			return a, true
		}
	}
	return Attribute{}, false
}

// Equal reports semantic equality, ignoring the per-occurrence ID and
// timestamp. It is used when counting duplicate copies in matcher buckets.
func (e Event) Equal(other Event) bool {
	if e.Type != other.Type || e.NormalizedName() != other.NormalizedName() || e.ViewID != other.ViewID {
		return false
	}
	if len(e.Attributes) != len(other.Attributes) {
		return false
	}
	for i, a := range e.Attributes {
		b := other.Attributes[i]
		if a.Type != b.Type || !strings.EqualFold(a.Name, b.Name) || a.Value != b.Value {
			return false
		}
	}
	return true
}

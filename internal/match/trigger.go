package match

import (
	"strconv"
	"strings"

	"github.com/rafaeljc/muninn/internal/campaign"
	"github.com/rafaeljc/muninn/internal/event"
)

// timeToleranceMillis is the slack applied to equality comparisons of
// time-in-millis attributes: clients and campaign authors rarely agree on
// exact milliseconds, so two timestamps within a second are considered
// equal.
const timeToleranceMillis = 1000

// TriggerSatisfied reports whether a single event satisfies a single
// trigger. Name comparison is case-insensitive; custom-event attribute
// predicates are applied with the trigger's operator against the event's
// typed values.
func TriggerSatisfied(t campaign.Trigger, e event.Event) bool {
	if t.EventType == event.TypeInvalid || t.EventType != e.Type {
		return false
	}

	// Built-in events are identified by type alone. Custom events must
	// also match the trigger's event name.
	if t.EventType == event.TypeCustom && !strings.EqualFold(t.EventName, e.Name) {
		return false
	}

	for _, attr := range t.Attributes {
		got, ok := e.Attribute(attr.Name)
		if !ok {
			return false
		}
		if got.Type != attr.Type {
			return false
		}
		if !attributeSatisfied(attr, got.Value) {
			return false
		}
	}
	return true
}

// attributeSatisfied applies one trigger attribute predicate against the
// event's raw value. Operator/type combinations without a meaningful
// comparison never match.
func attributeSatisfied(attr campaign.TriggerAttribute, value string) bool {
	switch attr.Operator {
	case campaign.OperatorIsBlank:
		return strings.TrimSpace(value) == ""
	case campaign.OperatorIsNotBlank:
		return strings.TrimSpace(value) != ""
	}

	switch attr.Type {
	case event.AttributeTypeString:
		return compareStrings(attr.Operator, value, attr.Value)
	case event.AttributeTypeInteger:
		return compareInts(attr.Operator, value, attr.Value, 0)
	case event.AttributeTypeDouble:
		return compareDoubles(attr.Operator, value, attr.Value)
	case event.AttributeTypeBoolean:
		return compareBools(attr.Operator, value, attr.Value)
	case event.AttributeTypeTimeInMillis:
		return compareInts(attr.Operator, value, attr.Value, timeToleranceMillis)
	default:
		return false
	}
}

func compareStrings(op campaign.Operator, got, want string) bool {
	switch op {
	case campaign.OperatorEquals:
		return strings.EqualFold(got, want)
	case campaign.OperatorIsNotEqual:
		return !strings.EqualFold(got, want)
	default:
		// Ordering comparisons are not defined for strings.
		return false
	}
}

func compareInts(op campaign.Operator, got, want string, tolerance int64) bool {
	g, err := strconv.ParseInt(strings.TrimSpace(got), 10, 64)
	if err != nil {
		return false
	}
	w, err := strconv.ParseInt(strings.TrimSpace(want), 10, 64)
	if err != nil {
		return false
	}

	switch op {
	case campaign.OperatorEquals:
		return absInt64(g-w) <= tolerance
	case campaign.OperatorIsNotEqual:
		return absInt64(g-w) > tolerance
	case campaign.OperatorGreaterThan:
		return g > w
	case campaign.OperatorLessThan:
		return g < w
	default:
		return false
	}
}

func compareDoubles(op campaign.Operator, got, want string) bool {
	g, err := strconv.ParseFloat(strings.TrimSpace(got), 64)
	if err != nil {
		return false
	}
	w, err := strconv.ParseFloat(strings.TrimSpace(want), 64)
	if err != nil {
		return false
	}

	switch op {
	case campaign.OperatorEquals:
		return g == w
	case campaign.OperatorIsNotEqual:
		return g != w
	case campaign.OperatorGreaterThan:
		return g > w
	case campaign.OperatorLessThan:
		return g < w
	default:
		return false
	}
}

func compareBools(op campaign.Operator, got, want string) bool {
	g, err := strconv.ParseBool(strings.TrimSpace(strings.ToLower(got)))
	if err != nil {
		return false
	}
	w, err := strconv.ParseBool(strings.TrimSpace(strings.ToLower(want)))
	if err != nil {
		return false
	}

	switch op {
	case campaign.OperatorEquals:
		return g == w
	case campaign.OperatorIsNotEqual:
		return g != w
	default:
		return false
	}
}

func absInt64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}

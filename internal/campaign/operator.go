package campaign

// Operator is the comparison applied between a trigger attribute predicate
// and the value carried by a logged event. The numeric values mirror the
// mixer wire contract and must not be reordered.
type Operator int

const (
	OperatorInvalid Operator = iota
	OperatorEquals
	OperatorIsNotEqual
	OperatorGreaterThan
	OperatorLessThan
	OperatorIsBlank
	OperatorIsNotBlank
)

// String returns the operator name as used in logs.
func (o Operator) String() string {
	switch o {
	case OperatorEquals:
		return "equals"
	case OperatorIsNotEqual:
		return "isNotEqual"
	case OperatorGreaterThan:
		return "greaterThan"
	case OperatorLessThan:
		return "lessThan"
	case OperatorIsBlank:
		return "isBlank"
	case OperatorIsNotBlank:
		return "isNotBlank"
	default:
		return "invalid"
	}
}

package narrow

// Operator is the closed set of narrow operators. Legacy spellings are
// translated by LookupOperator and never reach the compiler.
type Operator int

const (
	OpUnknown Operator = iota
	OpHas
	OpIn
	OpIs
	OpChannel
	OpChannels
	OpTopic
	OpSender
	OpNear
	OpID
	OpDM
	OpDMIncluding
	OpGroupPMWith
	OpSearch
	OpWith
)

var operatorNames = [...]string{
	OpUnknown:     "unknown",
	OpHas:         "has",
	OpIn:          "in",
	OpIs:          "is",
	OpChannel:     "channel",
	OpChannels:    "channels",
	OpTopic:       "topic",
	OpSender:      "sender",
	OpNear:        "near",
	OpID:          "id",
	OpDM:          "dm",
	OpDMIncluding: "dm-including",
	OpGroupPMWith: "group-pm-with",
	OpSearch:      "search",
	OpWith:        "with",
}

// legacyAliases maps retired operator spellings to their current kind.
var legacyAliases = map[string]Operator{
	"stream":        OpChannel,
	"streams":       OpChannels,
	"pm-with":       OpDM,
	"pm_with":       OpDM,
	"group_pm_with": OpGroupPMWith,
}

// String returns the canonical operator name.
func (o Operator) String() string {
	if o < 0 || int(o) >= len(operatorNames) {
		return operatorNames[OpUnknown]
	}
	return operatorNames[o]
}

// LookupOperator resolves an operator name, including legacy aliases.
// Unknown names return OpUnknown.
func LookupOperator(name string) Operator {
	if op, ok := legacyAliases[name]; ok {
		return op
	}
	for op, n := range operatorNames {
		if Operator(op) != OpUnknown && n == name {
			return Operator(op)
		}
	}
	return OpUnknown
}

// OperandClass is the accepted operand shape for an operator.
type OperandClass int

const (
	ClassString         OperandClass = iota // plain string
	ClassIDOrString                         // string or integer
	ClassIDList                             // string or list of integers
	ClassNonEmptyString                     // string that is not blank
)

// ClassOf returns the operand class for a raw operator name. The table is
// keyed by the spelling the client sent, legacy names included.
func ClassOf(name string) OperandClass {
	switch name {
	case "channel", "stream", "id", "sender", "group-pm-with", "dm-including", "with":
		return ClassIDOrString
	case "dm", "pm-with":
		return ClassIDList
	case "search":
		return ClassNonEmptyString
	default:
		return ClassString
	}
}

package narrow

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// Term is one (operator, operand, negated) filter unit.
//
// Operator keeps the spelling the client sent so error messages and the
// shape table see the original name; Op is the resolved kind the compiler
// dispatches on.
type Term struct {
	Operator string
	Op       Operator
	Operand  Operand
	Negated  bool
}

// Narrow is an ordered list of terms. Terms are conjoined.
type Narrow []Term

// NewTerm builds a validated term.
func NewTerm(operator string, operand Operand, negated bool) (Term, error) {
	if err := checkOperand(operand, ClassOf(operator)); err != nil {
		return Term{}, err
	}
	return Term{
		Operator: operator,
		Op:       LookupOperator(operator),
		Operand:  operand,
		Negated:  negated,
	}, nil
}

// MustTerm is NewTerm for literals known to be valid. It panics otherwise.
func MustTerm(operator string, operand Operand) Term {
	t, err := NewTerm(operator, operand, false)
	if err != nil {
		panic(err)
	}
	return t
}

// Negate returns a copy of t with negation flipped.
func (t Term) Negate() Term {
	t.Negated = !t.Negated
	return t
}

type termRecord struct {
	Operator json.RawMessage `json:"operator"`
	Operand  json.RawMessage `json:"operand"`
	Negated  json.RawMessage `json:"negated"`
}

// UnmarshalJSON accepts the legacy ["operator", "operand"] pair or the
// {"operator", "operand", "negated"} record.
func (t *Term) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return newValidationError("narrow", "dict or list required")
	}

	switch data[0] {
	case '[':
		var pair []json.RawMessage
		if err := json.Unmarshal(data, &pair); err != nil {
			return newValidationError("narrow", "element is not a string pair")
		}
		if len(pair) != 2 {
			return newValidationError("narrow", "element is not a string pair")
		}
		var op, operand string
		if json.Unmarshal(pair[0], &op) != nil || json.Unmarshal(pair[1], &operand) != nil {
			return newValidationError("narrow", "element is not a string pair")
		}
		parsed, err := NewTerm(op, String(operand), false)
		if err != nil {
			return err
		}
		*t = parsed
		return nil

	case '{':
		var rec termRecord
		if err := json.Unmarshal(data, &rec); err != nil {
			return newValidationError("narrow", "malformed term: %v", err)
		}
		if isNull(rec.Operand) {
			return newValidationError("operand", "operand is missing")
		}
		if isNull(rec.Operator) {
			return newValidationError("operator", "operator is missing")
		}
		var op string
		if err := json.Unmarshal(rec.Operator, &op); err != nil {
			return newValidationError("operator", "operator is not a string")
		}
		operand, err := decodeOperand(rec.Operand, ClassOf(op))
		if err != nil {
			return err
		}
		negated := false
		if !isNull(rec.Negated) {
			if err := json.Unmarshal(rec.Negated, &negated); err != nil {
				return newValidationError("negated", "negated is not a boolean")
			}
		}
		*t = Term{Operator: op, Op: LookupOperator(op), Operand: operand, Negated: negated}
		return nil

	default:
		return newValidationError("narrow", "dict or list required")
	}
}

// MarshalJSON always writes the record form.
func (t Term) MarshalJSON() ([]byte, error) {
	operand, err := marshalOperand(t.Operand)
	if err != nil {
		return nil, err
	}
	return json.Marshal(struct {
		Operator string          `json:"operator"`
		Operand  json.RawMessage `json:"operand"`
		Negated  bool            `json:"negated"`
	}{t.Operator, operand, t.Negated})
}

func isNull(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

// ParseNarrow decodes a JSON array of terms. Validation errors carry the
// index of the offending term in their field name.
func ParseNarrow(data []byte) (Narrow, error) {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, newValidationError("narrow", "narrow is not a list")
	}

	n := make(Narrow, 0, len(raw))
	for i, elem := range raw {
		var t Term
		if err := t.UnmarshalJSON(elem); err != nil {
			var ve *ValidationError
			if errors.As(err, &ve) {
				if ve.Field == "narrow" {
					ve.Field = fmt.Sprintf("narrow[%d]", i)
				} else {
					ve.Field = fmt.Sprintf("narrow[%d].%s", i, ve.Field)
				}
			}
			return nil, err
		}
		n = append(n, t)
	}
	return n, nil
}

// Has reports whether the narrow contains a term with the given kind.
func (n Narrow) Has(op Operator) bool {
	for _, t := range n {
		if t.Op == op {
			return true
		}
	}
	return false
}

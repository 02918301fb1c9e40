package narrow

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Operand is a sealed interface over the operand shapes a term may carry.
// Only String, Int and IntList implement it.
type Operand interface {
	operand()
}

// String is a textual operand: a name, an email, a keyword or free text.
type String string

func (String) operand() {}

// Int is a numeric id operand.
type Int int64

func (Int) operand() {}

// IntList is a list of user ids, used by the dm operator.
type IntList []int64

func (IntList) operand() {}

// Text renders an operand the way error descriptions show it.
func Text(o Operand) string {
	switch v := o.(type) {
	case String:
		return string(v)
	case Int:
		return strconv.FormatInt(int64(v), 10)
	case IntList:
		parts := make([]string, len(v))
		for i, id := range v {
			parts[i] = strconv.FormatInt(id, 10)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	default:
		return fmt.Sprintf("%v", o)
	}
}

// AsString returns the operand as a string when it is one.
func AsString(o Operand) (string, bool) {
	s, ok := o.(String)
	return string(s), ok
}

// AsID returns the operand as an integer id. Strings made only of digits
// are accepted, matching how ids travel in URLs.
func AsID(o Operand) (int64, bool) {
	switch v := o.(type) {
	case Int:
		return int64(v), true
	case String:
		if v == "" || strings.TrimLeft(string(v), "0123456789") != "" {
			return 0, false
		}
		n, err := strconv.ParseInt(string(v), 10, 64)
		if err != nil {
			return 0, false
		}
		return n, true
	default:
		return 0, false
	}
}

func marshalOperand(o Operand) ([]byte, error) {
	switch v := o.(type) {
	case String:
		return json.Marshal(string(v))
	case Int:
		return json.Marshal(int64(v))
	case IntList:
		if v == nil {
			return []byte("[]"), nil
		}
		return json.Marshal([]int64(v))
	default:
		return nil, fmt.Errorf("unknown operand type: %T", o)
	}
}

// decodeOperand decodes a raw JSON operand and checks it against class.
// Numbers must be integers; floats are rejected rather than truncated.
func decodeOperand(data []byte, class OperandClass) (Operand, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, newValidationError("operand", "malformed operand: %v", err)
	}
	if raw == nil {
		return nil, newValidationError("operand", "operand is missing")
	}
	return convertOperand(raw, class)
}

func convertOperand(raw any, class OperandClass) (Operand, error) {
	switch class {
	case ClassIDOrString:
		switch v := raw.(type) {
		case string:
			return String(v), nil
		case json.Number:
			if n, ok := integer(v); ok {
				return Int(n), nil
			}
		}
		return nil, newValidationError("operand", "operand is not a string or integer")

	case ClassIDList:
		switch v := raw.(type) {
		case string:
			return String(v), nil
		case []any:
			ids := make(IntList, 0, len(v))
			for i, elem := range v {
				num, ok := elem.(json.Number)
				if !ok {
					return nil, newValidationError(fmt.Sprintf("operand[%d]", i), "operand[%d] is not an integer", i)
				}
				n, ok := integer(num)
				if !ok {
					return nil, newValidationError(fmt.Sprintf("operand[%d]", i), "operand[%d] is not an integer", i)
				}
				ids = append(ids, n)
			}
			return ids, nil
		}
		return nil, newValidationError("operand", "operand is not a string or an integer list")

	case ClassNonEmptyString:
		s, ok := raw.(string)
		if !ok {
			return nil, newValidationError("operand", "operand is not a string")
		}
		if strings.TrimSpace(s) == "" {
			return nil, newValidationError("operand", "operand cannot be blank.")
		}
		return String(s), nil

	default:
		s, ok := raw.(string)
		if !ok {
			return nil, newValidationError("operand", "operand is not a string")
		}
		return String(s), nil
	}
}

// checkOperand validates an already-typed operand against class.
func checkOperand(o Operand, class OperandClass) error {
	switch v := o.(type) {
	case nil:
		return newValidationError("operand", "operand is missing")
	case String:
		if class == ClassNonEmptyString && strings.TrimSpace(string(v)) == "" {
			return newValidationError("operand", "operand cannot be blank.")
		}
		return nil
	case Int:
		if class != ClassIDOrString {
			return newValidationError("operand", "operand is not a string")
		}
		return nil
	case IntList:
		if class != ClassIDList {
			return newValidationError("operand", "operand is not a string")
		}
		return nil
	default:
		return newValidationError("operand", "unsupported operand type %T", o)
	}
}

func integer(n json.Number) (int64, bool) {
	s := string(n)
	if strings.ContainsAny(s, ".eE") {
		return 0, false
	}
	i, err := n.Int64()
	if err != nil {
		return 0, false
	}
	return i, true
}

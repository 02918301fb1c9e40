package queryir

import (
	"fmt"
	"reflect"
)

// ValidationResult lists structural problems found in a tree.
type ValidationResult struct {
	Valid    bool
	Problems []string
}

// Validate checks that a query tree is well formed: no nil nodes, every
// select has a source and output columns, limits are non-negative and a
// page has at least one part.
//
// Validate is a pure function.
func Validate(q Query) ValidationResult {
	v := &validator{problems: []string{}}
	v.validateQuery(q)
	return ValidationResult{Valid: len(v.problems) == 0, Problems: v.problems}
}

type validator struct {
	problems []string
}

func (v *validator) addProblem(format string, args ...any) {
	v.problems = append(v.problems, fmt.Sprintf(format, args...))
}

func (v *validator) validateQuery(q Query) {
	switch query := q.(type) {
	case nil:
		v.addProblem("nil query")
	case *Select:
		if query == nil {
			v.addProblem("nil select")
			return
		}
		v.validateSelect(query)
	case *Page:
		if query == nil || len(query.Parts) == 0 {
			v.addProblem("page without parts")
			return
		}
		if query.OrderBy == "" {
			v.addProblem("page without ordering column")
		}
		for _, part := range query.Parts {
			v.validateQuery(part)
		}
	default:
		v.addProblem("unknown query type %T", q)
	}
}

func (v *validator) validateSelect(s *Select) {
	if s.From.Name == "" {
		v.addProblem("select without source table")
	}
	if len(s.Columns) == 0 {
		v.addProblem("select without output columns")
	}
	if s.Limit < 0 {
		v.addProblem("negative limit %d", s.Limit)
	}
	for _, c := range s.Columns {
		v.validateValue(c.Value)
	}
	for _, j := range s.Joins {
		if j.Table.Name == "" {
			v.addProblem("join without table")
		}
		v.validatePredicate(j.On)
	}
	for _, p := range s.Where {
		v.validatePredicate(p)
	}
	for _, o := range s.OrderBy {
		v.validateValue(o.Value)
	}
}

func (v *validator) validatePredicate(p Predicate) {
	switch pred := p.(type) {
	case nil:
		v.addProblem("nil predicate")
	case Const, Truthy:
	case Compare:
		v.validateValue(pred.Left)
		v.validateValue(pred.Right)
	case In:
		v.validateValue(pred.Left)
	case Like:
		v.validateValue(pred.Left)
	case TextSearch:
		if pred.Mode != SearchKeyword && pred.Mode != SearchStemmed {
			v.addProblem("text search with unknown mode %d", pred.Mode)
		}
	case Exists:
		if pred.From.Name == "" {
			v.addProblem("exists without source table")
		}
		for _, sub := range pred.Where {
			v.validatePredicate(sub)
		}
	case And:
		for _, sub := range pred.Predicates {
			v.validatePredicate(sub)
		}
	case Or:
		for _, sub := range pred.Predicates {
			v.validatePredicate(sub)
		}
	case Not:
		v.validatePredicate(pred.Predicate)
	default:
		v.addProblem("unknown predicate type %T", p)
	}
}

func (v *validator) validateValue(val Value) {
	switch x := val.(type) {
	case nil:
		v.addProblem("nil value")
	case Col, Int, Str, Null:
	case BitAnd:
		v.validateValue(x.Left)
	case Lower:
		v.validateValue(x.Arg)
	case EscapeHTML:
		v.validateValue(x.Arg)
	case MatchPositions:
		v.validateValue(x.Source)
	default:
		v.addProblem("unknown value type %T", val)
	}
}

// CheckNarrowing verifies that derived was obtained from base only by
// appending WHERE conjuncts and output columns. Anything else (a changed
// source, extra joins, dropped or rewritten conjuncts, a new limit) could
// admit rows base does not, and is reported as an error.
func CheckNarrowing(base, derived *Select) error {
	if base == nil || derived == nil {
		return fmt.Errorf("check narrowing: nil select")
	}
	if derived.From != base.From {
		return fmt.Errorf("check narrowing: source changed from %q to %q", base.From.Name, derived.From.Name)
	}
	if len(derived.Joins) != len(base.Joins) || !hasPrefix(derived.Joins, base.Joins) {
		return fmt.Errorf("check narrowing: joins changed")
	}
	if derived.Limit != base.Limit || len(derived.OrderBy) != len(base.OrderBy) || !hasPrefix(derived.OrderBy, base.OrderBy) {
		return fmt.Errorf("check narrowing: ordering or limit changed")
	}
	if !hasPrefix(derived.Where, base.Where) {
		return fmt.Errorf("check narrowing: base conjuncts not preserved")
	}
	if !hasPrefix(derived.Columns, base.Columns) {
		return fmt.Errorf("check narrowing: base columns not preserved")
	}
	if res := Validate(derived); !res.Valid {
		return fmt.Errorf("check narrowing: %v", res.Problems)
	}
	return nil
}

func hasPrefix[T any](s, prefix []T) bool {
	if len(s) < len(prefix) {
		return false
	}
	for i := range prefix {
		if !reflect.DeepEqual(s[i], prefix[i]) {
			return false
		}
	}
	return true
}

package queryir

import "slices"

// Eq builds l = r.
func Eq(l, r Value) Compare { return Compare{Left: l, Op: OpEq, Right: r} }

// Ne builds l <> r.
func Ne(l, r Value) Compare { return Compare{Left: l, Op: OpNe, Right: r} }

// Le builds l <= r.
func Le(l, r Value) Compare { return Compare{Left: l, Op: OpLe, Right: r} }

// Ge builds l >= r.
func Ge(l, r Value) Compare { return Compare{Left: l, Op: OpGe, Right: r} }

// FlagSet is true when any bit of mask is set in col.
func FlagSet(col Col, mask int64) Compare {
	return Ne(BitAnd{Left: col, Mask: mask}, Int(0))
}

// FlagClear is true when no bit of mask is set in col.
func FlagClear(col Col, mask int64) Compare {
	return Eq(BitAnd{Left: col, Mask: mask}, Int(0))
}

// AllOf builds a conjunction.
func AllOf(preds ...Predicate) And { return And{Predicates: preds} }

// AnyOf builds a disjunction.
func AnyOf(preds ...Predicate) Or { return Or{Predicates: preds} }

// Negate wraps p in NOT.
func Negate(p Predicate) Not { return Not{Predicate: p} }

// Clone returns a copy of s whose slices can be appended to without
// affecting s.
func (s *Select) Clone() *Select {
	c := *s
	c.Columns = slices.Clone(s.Columns)
	c.Joins = slices.Clone(s.Joins)
	c.Where = slices.Clone(s.Where)
	c.OrderBy = slices.Clone(s.OrderBy)
	return &c
}

// Filter returns a copy of s with preds appended to its conjuncts.
func (s *Select) Filter(preds ...Predicate) *Select {
	c := s.Clone()
	c.Where = append(c.Where, preds...)
	return c
}

// AddColumns returns a copy of s with extra output columns.
func (s *Select) AddColumns(cols ...Column) *Select {
	c := s.Clone()
	c.Columns = append(c.Columns, cols...)
	return c
}

// Ordered returns a copy of s with the given ordering and limit.
func (s *Select) Ordered(limit int, order ...Order) *Select {
	c := s.Clone()
	c.OrderBy = order
	c.Limit = limit
	return c
}

// HasColumn reports whether s outputs a column with the given alias.
func (s *Select) HasColumn(alias string) bool {
	for _, c := range s.Columns {
		if c.Alias == alias {
			return true
		}
	}
	return false
}

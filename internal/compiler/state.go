package compiler

import (
	"slices"

	"github.com/roach88/narrow/internal/narrow"
	"github.com/roach88/narrow/internal/queryir"
)

// State accumulates what the terms of one narrow contribute. It is a
// value: every With* method returns a new State and leaves the receiver
// untouched.
type State struct {
	Where   []queryir.Predicate
	Columns []queryir.Column

	ChannelNarrow bool
	DMNarrow      bool
}

// WithWhere returns s with extra conjuncts.
func (s State) WithWhere(preds ...queryir.Predicate) State {
	s.Where = append(slices.Clone(s.Where), preds...)
	return s
}

// WithColumns returns s with extra output columns.
func (s State) WithColumns(cols ...queryir.Column) State {
	s.Columns = append(slices.Clone(s.Columns), cols...)
	return s
}

// mark records a channel or DM scope. Negated terms do not scope the
// result and are ignored.
func (s State) mark(negated, channel, dm bool) (State, error) {
	if negated {
		return s, nil
	}
	s.ChannelNarrow = s.ChannelNarrow || channel
	s.DMNarrow = s.DMNarrow || dm
	if s.ChannelNarrow && s.DMNarrow {
		return s, &narrow.CombinationError{Desc: "No message can be both a channel message and direct message"}
	}
	return s, nil
}

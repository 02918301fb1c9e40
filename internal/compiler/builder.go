// Package compiler lowers narrow terms to query conditions.
package compiler

import (
	"context"
	"log/slog"
	"strings"

	"github.com/roach88/narrow/internal/model"
	"github.com/roach88/narrow/internal/narrow"
	"github.com/roach88/narrow/internal/queryir"
	"github.com/roach88/narrow/internal/search"
)

// Columns of the joined messages ("m") and user_messages ("um") tables
// that narrow conditions read.
var (
	colRecipient = queryir.Col{Table: "m", Name: "recipient_id"}
	colSender    = queryir.Col{Table: "m", Name: "sender_id"}
	colRealm     = queryir.Col{Table: "m", Name: "realm_id"}
	colTopic     = queryir.Col{Table: "m", Name: "topic"}
	colFlags     = queryir.Col{Table: "um", Name: "flags"}
)

// Builder compiles narrow terms into conditions on a base query.
//
// Every operator only appends WHERE conjuncts or read-only output
// columns, so a compiled query never returns a row its base query would
// not. Compile verifies this structurally before returning.
type Builder struct {
	Realm model.Realm

	// Viewer is nil for anonymous web-public queries.
	Viewer *model.Viewer

	// MessageID is the message id column of the base query: um.message_id
	// with the per-user join, m.id without it.
	MessageID queryir.Col

	Directory Directory
	Mutes     MuteExclusion
	Mirror    MirrorPolicy
	Search    search.Strategy
}

// Compiled is a narrowed select.
type Compiled struct {
	Select     *queryir.Select
	IsSearch   bool
	IsDMNarrow bool
}

func (b *Builder) webPublic() bool { return b.Viewer == nil }

// Compile applies every term of n to base. Search operands are merged
// into a single term applied last.
func (b *Builder) Compile(ctx context.Context, base *queryir.Select, n narrow.Narrow) (*Compiled, error) {
	var (
		st       State
		err      error
		searches []string
	)
	for _, t := range n {
		if t.Op == narrow.OpSearch {
			searches = append(searches, narrow.Text(t.Operand))
			continue
		}
		if st, err = b.AddTerm(ctx, st, t); err != nil {
			return nil, err
		}
	}

	if len(searches) > 0 {
		st = st.WithColumns(
			queryir.Column{Value: queryir.EscapeHTML{Arg: colTopic}, Alias: "escaped_topic_name"},
			queryir.Column{Value: search.RenderedCol, Alias: "rendered_content"},
		)
		merged := narrow.Term{Operator: "search", Op: narrow.OpSearch, Operand: narrow.String(strings.Join(searches, " "))}
		if st, err = b.AddTerm(ctx, st, merged); err != nil {
			return nil, err
		}
	}

	derived := base.Filter(st.Where...).AddColumns(st.Columns...)
	if err := queryir.CheckNarrowing(base, derived); err != nil {
		return nil, &narrow.InternalError{Message: err.Error()}
	}

	slog.Debug("narrow compiled",
		"terms", len(n),
		"conditions", len(st.Where),
		"search", len(searches) > 0,
		"dm_narrow", st.DMNarrow,
	)
	return &Compiled{Select: derived, IsSearch: len(searches) > 0, IsDMNarrow: st.DMNarrow}, nil
}

// AddTerm returns st extended by one term.
func (b *Builder) AddTerm(ctx context.Context, st State, t narrow.Term) (State, error) {
	var (
		pred queryir.Predicate
		err  error
	)

	switch t.Op {
	case narrow.OpHas:
		pred, err = b.byHas(narrow.Text(t.Operand))
	case narrow.OpIn:
		pred, err = b.byIn(ctx, narrow.Text(t.Operand))
	case narrow.OpIs:
		st, pred, err = b.byIs(ctx, st, narrow.Text(t.Operand), t.Negated)
	case narrow.OpChannel:
		if st, err = st.mark(t.Negated, true, false); err == nil {
			pred, err = b.byChannel(ctx, t.Operand)
		}
	case narrow.OpChannels:
		if st, err = st.mark(t.Negated, true, false); err == nil {
			pred, err = b.byChannels(ctx, narrow.Text(t.Operand))
		}
	case narrow.OpTopic:
		if st, err = st.mark(t.Negated, true, false); err == nil {
			pred = b.byTopic(narrow.Text(t.Operand))
		}
	case narrow.OpSender:
		pred, err = b.bySender(ctx, t.Operand)
	case narrow.OpNear:
		return st, nil
	case narrow.OpID:
		pred, err = b.byID(t.Operand)
	case narrow.OpDM:
		if st, err = b.authenticated(st, t); err == nil {
			pred, err = b.byDM(ctx, t.Operand)
		}
	case narrow.OpDMIncluding:
		if st, err = b.authenticated(st, t); err == nil {
			pred, err = b.byDMIncluding(ctx, t.Operand)
		}
	case narrow.OpGroupPMWith:
		if st, err = b.authenticated(st, t); err == nil {
			pred, err = b.byGroupPMWith(ctx, t.Operand)
		}
	case narrow.OpSearch:
		return b.bySearch(st, narrow.Text(t.Operand), t.Negated), nil
	default:
		// Includes "with", which must be resolved before compiling.
		return st, narrow.BadNarrow("unknown operator %s", t.Operator)
	}
	if err != nil {
		return st, err
	}
	if pred == nil {
		return st, nil
	}
	if t.Negated {
		pred = queryir.Negate(pred)
	}
	return st.WithWhere(pred), nil
}

// authenticated rejects per-user operators on web-public queries and
// records the DM scope.
func (b *Builder) authenticated(st State, t narrow.Term) (State, error) {
	if b.webPublic() {
		return st, narrow.BadNarrow("%s is not allowed in web-public queries", t.Operator)
	}
	return st.mark(t.Negated, false, true)
}

func (b *Builder) bySearch(st State, operand string, negated bool) State {
	strategy := b.Search
	if strategy == nil {
		strategy = search.Stemmed{Config: search.DefaultConfig}
	}
	m := strategy.Match(operand, negated)
	return st.
		WithColumns(
			queryir.Column{Value: m.ContentMatches, Alias: "content_matches"},
			queryir.Column{Value: m.TopicMatches, Alias: "topic_matches"},
		).
		WithWhere(m.Conditions...)
}

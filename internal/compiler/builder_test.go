package compiler

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/narrow/internal/model"
	"github.com/roach88/narrow/internal/narrow"
	"github.com/roach88/narrow/internal/queryir"
	"github.com/roach88/narrow/internal/querysql"
	"github.com/roach88/narrow/internal/search"
)

var (
	realm  = model.Realm{ID: 1, Name: "zulip"}
	viewer = model.Viewer{UserID: 10, RealmID: 1, RecipientID: 110, CanAccessPublic: true}

	umMessageID = queryir.Col{Table: "um", Name: "message_id"}
	mID         = queryir.Col{Table: "m", Name: "id"}
)

func userBase() *queryir.Select {
	return &queryir.Select{
		Columns: []queryir.Column{
			{Value: umMessageID, Alias: "message_id"},
			{Value: colFlags, Alias: "flags"},
		},
		From: queryir.Table{Name: "user_messages", Alias: "um"},
		Joins: []queryir.Join{{
			Table: queryir.Table{Name: "messages", Alias: "m"},
			On:    queryir.Eq(umMessageID, mID),
		}},
		Where: []queryir.Predicate{queryir.Eq(queryir.Col{Table: "um", Name: "user_id"}, queryir.Int(viewer.UserID))},
	}
}

func realmBase() *queryir.Select {
	return &queryir.Select{
		Columns: []queryir.Column{{Value: mID, Alias: "message_id"}},
		From:    queryir.Table{Name: "messages", Alias: "m"},
		Where:   []queryir.Predicate{queryir.Eq(colRealm, queryir.Int(realm.ID))},
	}
}

func newBuilder(dir *fakeDirectory) *Builder {
	v := viewer
	return &Builder{
		Realm:     realm,
		Viewer:    &v,
		MessageID: umMessageID,
		Directory: dir,
		Mutes:     MuteExclusion{Directory: dir, Mutes: dir},
		Search:    search.Stemmed{Config: "english"},
	}
}

func newWebPublicBuilder(dir *fakeDirectory) *Builder {
	return &Builder{
		Realm:     realm,
		MessageID: mID,
		Directory: dir,
		Mutes:     MuteExclusion{Directory: dir, Mutes: dir},
	}
}

func term(operator string, operand narrow.Operand) narrow.Term {
	return narrow.MustTerm(operator, operand)
}

// added compiles b over base and renders the conjuncts the narrow added.
func added(t *testing.T, b *Builder, base *queryir.Select, terms ...narrow.Term) (string, []any) {
	t.Helper()
	c, err := b.Compile(context.Background(), base, terms)
	require.NoError(t, err)
	extra := c.Select.Where[len(base.Where):]
	if len(extra) == 0 {
		return "", nil
	}
	sql, args, err := querysql.CompilePredicate(querysql.SQLite, queryir.AllOf(extra...))
	require.NoError(t, err)
	return sql, args
}

func compileErr(t *testing.T, b *Builder, base *queryir.Select, terms ...narrow.Term) error {
	t.Helper()
	_, err := b.Compile(context.Background(), base, terms)
	require.Error(t, err)
	return err
}

func TestCompile_SimpleOperators(t *testing.T) {
	tests := []struct {
		name string
		term narrow.Term
		sql  string
		args []any
	}{
		{"has link", term("has", narrow.String("link")), "(m.has_link)", nil},
		{"has reaction", term("has", narrow.String("reaction")), "(EXISTS (SELECT 1 FROM reactions rx WHERE rx.message_id = um.message_id))", nil},
		{"channel by name", term("channel", narrow.String("Verona")), "(m.recipient_id = ?)", []any{int64(201)}},
		{"channel by id", term("channel", narrow.Int(2)), "(m.recipient_id = ?)", []any{int64(202)}},
		{"legacy stream", term("stream", narrow.String("Verona")), "(m.recipient_id = ?)", []any{int64(201)}},
		{"channels public", term("channels", narrow.String("public")), "(m.recipient_id IN (?, ?))", []any{int64(201), int64(202)}},
		{"channels web-public", term("channels", narrow.String("web-public")), "(m.recipient_id IN (?))", []any{int64(201)}},
		{"topic", term("topic", narrow.String("Lunch")), "(lower(m.topic) = lower(?))", []any{"Lunch"}},
		{"sender by email", term("sender", narrow.String("othello@zulip.com")), "(m.sender_id = ?)", []any{int64(11)}},
		{"sender by id", term("sender", narrow.Int(12)), "(m.sender_id = ?)", []any{int64(12)}},
		{"id", term("id", narrow.String("123")), "(um.message_id = ?)", []any{int64(123)}},
		{"is starred", term("is", narrow.String("starred")), "((um.flags & ?) <> ?)", []any{model.FlagStarred, int64(0)}},
		{"is unread", term("is", narrow.String("unread")), "((um.flags & ?) = ?)", []any{model.FlagRead, int64(0)}},
		{"is mentioned", term("is", narrow.String("mentioned")), "((um.flags & ?) <> ?)", []any{model.MentionFlags, int64(0)}},
		{"is alerted", term("is", narrow.String("alerted")), "((um.flags & ?) <> ?)", []any{model.FlagHasAlertWord, int64(0)}},
		{"is private", term("is", narrow.String("private")), "((um.flags & ?) <> ?)", []any{model.FlagIsPrivate, int64(0)}},
		{"is resolved", term("is", narrow.String("resolved")), `(m.topic LIKE ? ESCAPE '\')`, []any{"✔ %"}},
		{
			"is followed",
			term("is", narrow.String("followed")),
			"(EXISTS (SELECT 1 FROM user_topics ut WHERE ut.user_id = ? AND ut.visibility_policy = ? AND ut.recipient_id = m.recipient_id AND lower(ut.topic_name) = lower(m.topic)))",
			[]any{int64(10), int64(3)},
		},
		{"negated", term("channel", narrow.String("Verona")).Negate(), "(NOT (m.recipient_id = ?))", []any{int64(201)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sql, args := added(t, newBuilder(newFakeDirectory()), userBase(), tt.term)
			assert.Equal(t, tt.sql, sql)
			assert.Equal(t, tt.args, args)
		})
	}
}

func TestCompile_NoOpOperators(t *testing.T) {
	for _, tm := range []narrow.Term{
		term("near", narrow.String("55")),
		term("in", narrow.String("all")),
	} {
		sql, _ := added(t, newBuilder(newFakeDirectory()), userBase(), tm)
		assert.Empty(t, sql, tm.Operator)
	}
}

func TestCompile_BadOperands(t *testing.T) {
	tests := []struct {
		term narrow.Term
		msg  string
	}{
		{term("has", narrow.String("video")), "Invalid narrow operator: unknown 'has' operand video"},
		{term("in", narrow.String("nowhere")), "Invalid narrow operator: unknown 'in' operand nowhere"},
		{term("is", narrow.String("sleepy")), "Invalid narrow operator: unknown 'is' operand sleepy"},
		{term("channel", narrow.String("Elsinore")), "Invalid narrow operator: unknown channel Elsinore"},
		{term("channel", narrow.Int(99)), "Invalid narrow operator: unknown channel 99"},
		{term("channels", narrow.String("all")), "Invalid narrow operator: unknown channels operand all"},
		{term("sender", narrow.String("ghost@zulip.com")), "Invalid narrow operator: unknown user ghost@zulip.com"},
		{term("id", narrow.String("12a")), "Invalid narrow operator: Invalid message ID"},
		{term("id", narrow.Int(model.MaxMessageID + 1)), "Invalid narrow operator: Invalid message ID"},
		{term("id", narrow.Int(-1)), "Invalid narrow operator: Invalid message ID"},
		{term("dm", narrow.String("ghost@zulip.com")), "Invalid narrow operator: unknown user in ghost@zulip.com"},
		{term("dm", narrow.IntList{11, 99}), "Invalid narrow operator: unknown user in [11, 99]"},
		{term("dm-including", narrow.Int(99)), "Invalid narrow operator: unknown user 99"},
		{term("group-pm-with", narrow.String("ghost@zulip.com")), "Invalid narrow operator: unknown user ghost@zulip.com"},
		{term("frobnicate", narrow.String("x")), "Invalid narrow operator: unknown operator frobnicate"},
		{term("with", narrow.String("12")), "Invalid narrow operator: unknown operator with"},
	}
	for _, tt := range tests {
		t.Run(tt.msg, func(t *testing.T) {
			err := compileErr(t, newBuilder(newFakeDirectory()), userBase(), tt.term)
			assert.True(t, narrow.IsBadNarrow(err))
			assert.EqualError(t, err, tt.msg)
		})
	}
}

func TestCompile_StorageErrorsPropagate(t *testing.T) {
	dir := newFakeDirectory()
	boom := errors.New("connection reset")
	dir.failWith = boom

	err := compileErr(t, newBuilder(dir), userBase(), term("sender", narrow.Int(11)))
	assert.ErrorIs(t, err, boom)
	assert.False(t, narrow.IsBadNarrow(err))
}

func TestCompile_DirectMessages(t *testing.T) {
	tests := []struct {
		name string
		term narrow.Term
		sql  string
		args []any
	}{
		{
			"one to one",
			term("dm", narrow.IntList{11}),
			"(((um.flags & ?) <> ? AND m.realm_id = ? AND ((m.sender_id = ? AND m.recipient_id = ?) OR (m.sender_id = ? AND m.recipient_id = ?))))",
			[]any{model.FlagIsPrivate, int64(0), int64(1), int64(11), int64(110), int64(10), int64(111)},
		},
		{
			"one to one by email with self listed",
			term("dm", narrow.String("othello@zulip.com,hamlet@zulip.com")),
			"(((um.flags & ?) <> ? AND m.realm_id = ? AND ((m.sender_id = ? AND m.recipient_id = ?) OR (m.sender_id = ? AND m.recipient_id = ?))))",
			[]any{model.FlagIsPrivate, int64(0), int64(1), int64(11), int64(110), int64(10), int64(111)},
		},
		{
			"self",
			term("dm", narrow.IntList{10}),
			"(((um.flags & ?) <> ? AND m.realm_id = ? AND m.sender_id = ? AND m.recipient_id = ?))",
			[]any{model.FlagIsPrivate, int64(0), int64(1), int64(10), int64(110)},
		},
		{"group", term("dm", narrow.IntList{12, 11}), "(m.recipient_id = ?)", []any{int64(301)}},
		{"missing group", term("dm", narrow.IntList{11, 13}), "((1 = 0))", nil},
		{"empty list", term("dm", narrow.IntList{}), "((1 = 0))", nil},
		{"including self", term("dm-including", narrow.Int(10)), "((um.flags & ?) <> ?)", []any{model.FlagIsPrivate, int64(0)}},
		{
			"including other",
			term("dm-including", narrow.String("iago@zulip.com")),
			"(((um.flags & ?) <> ? AND m.realm_id = ? AND ((m.sender_id = ? AND m.recipient_id = ?) OR (m.sender_id = ? AND m.recipient_id = ?) OR m.recipient_id IN (?, ?))))",
			[]any{model.FlagIsPrivate, int64(0), int64(1), int64(12), int64(110), int64(10), int64(112), int64(301), int64(302)},
		},
		{
			"group pm with",
			term("group-pm-with", narrow.String("othello@zulip.com")),
			"(((um.flags & ?) <> ? AND m.realm_id = ? AND m.recipient_id IN (?)))",
			[]any{model.FlagIsPrivate, int64(0), int64(1), int64(301)},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sql, args := added(t, newBuilder(newFakeDirectory()), userBase(), tt.term)
			assert.Equal(t, tt.sql, sql)
			assert.Equal(t, tt.args, args)
		})
	}
}

func TestCompile_ChannelAndDMAreExclusive(t *testing.T) {
	tests := []struct {
		name  string
		terms []narrow.Term
	}{
		{"channel then dm", []narrow.Term{term("channel", narrow.String("Verona")), term("dm", narrow.IntList{11})}},
		{"dm then topic", []narrow.Term{term("dm", narrow.IntList{11}), term("topic", narrow.String("x"))}},
		{"is dm and channels", []narrow.Term{term("is", narrow.String("dm")), term("channels", narrow.String("public"))}},
		{"negated is dm and dm", []narrow.Term{term("is", narrow.String("dm")).Negate(), term("dm-including", narrow.Int(11))}},
		{"group pm with and channel", []narrow.Term{term("group-pm-with", narrow.Int(11)), term("channel", narrow.Int(1))}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := compileErr(t, newBuilder(newFakeDirectory()), userBase(), tt.terms...)
			assert.True(t, narrow.IsCombination(err))
			assert.EqualError(t, err, "Invalid narrow operator combination: No message can be both a channel message and direct message")
		})
	}
}

func TestCompile_NegatedTermsSkipExclusion(t *testing.T) {
	b := newBuilder(newFakeDirectory())
	c, err := b.Compile(context.Background(), userBase(), narrow.Narrow{
		term("channel", narrow.String("Verona")).Negate(),
		term("dm", narrow.IntList{11}),
	})
	require.NoError(t, err)
	assert.True(t, c.IsDMNarrow)

	_, err = b.Compile(context.Background(), userBase(), narrow.Narrow{
		term("is", narrow.String("dm")),
		term("topic", narrow.String("x")).Negate(),
	})
	assert.NoError(t, err)
}

func TestCompile_WebPublic(t *testing.T) {
	b := newWebPublicBuilder(newFakeDirectory())

	sql, args := added(t, b, realmBase(), term("channel", narrow.String("Verona")), term("is", narrow.String("resolved")))
	assert.Equal(t, `(m.recipient_id = ? AND m.topic LIKE ? ESCAPE '\')`, sql)
	assert.Equal(t, []any{int64(201), "✔ %"}, args)

	sql, _ = added(t, b, realmBase(), term("has", narrow.String("reaction")))
	assert.Equal(t, "(EXISTS (SELECT 1 FROM reactions rx WHERE rx.message_id = m.id))", sql)

	for _, tm := range []narrow.Term{
		term("dm", narrow.IntList{11}),
		term("dm-including", narrow.Int(11)),
		term("group-pm-with", narrow.Int(11)),
		term("in", narrow.String("home")),
		term("is", narrow.String("starred")),
		term("channel", narrow.String("Denmark")),
	} {
		err := compileErr(t, b, realmBase(), tm)
		assert.True(t, narrow.IsBadNarrow(err), tm.Operator)
	}

	err := compileErr(t, b, realmBase(), term("channel", narrow.String("Denmark")))
	assert.EqualError(t, err, "Invalid narrow operator: unknown web-public channel Denmark")
}

func TestCompile_SearchMergedAndAppliedLast(t *testing.T) {
	b := newBuilder(newFakeDirectory())
	base := userBase()

	c, err := b.Compile(context.Background(), base, narrow.Narrow{
		term("search", narrow.String("foo")),
		term("channel", narrow.String("Verona")),
		term("search", narrow.String("bar")).Negate(),
	})
	require.NoError(t, err)
	assert.True(t, c.IsSearch)

	var aliases []string
	for _, col := range c.Select.Columns[len(base.Columns):] {
		aliases = append(aliases, col.Alias)
	}
	assert.Equal(t, []string{"escaped_topic_name", "rendered_content", "content_matches", "topic_matches"}, aliases)

	where := c.Select.Where[len(base.Where):]
	require.Len(t, where, 2)
	assert.Equal(t, queryir.Eq(colRecipient, queryir.Int(201)), where[0])

	ts, ok := where[1].(queryir.TextSearch)
	require.True(t, ok, "merged search term is never negated")
	assert.Equal(t, "foo bar", ts.Query)
}

func TestCompile_SearchPhrases(t *testing.T) {
	sql, args := added(t, newBuilder(newFakeDirectory()), userBase(), term("search", narrow.String(`"big deal"`)))
	assert.Equal(t,
		`((m.content LIKE ? ESCAPE '\' OR (m.topic LIKE ? ESCAPE '\' AND m.is_channel_message)) AND ((lower(m.content) LIKE ? ESCAPE '\' OR lower(m.topic) LIKE ? ESCAPE '\') AND (lower(m.content) LIKE ? ESCAPE '\' OR lower(m.topic) LIKE ? ESCAPE '\')))`,
		sql)
	assert.Equal(t, []any{"%big deal%", "%big deal%", "%big%", "%big%", "%deal%", "%deal%"}, args)
}

func TestCompile_MuteOperators(t *testing.T) {
	b := newBuilder(newFakeDirectory())

	home := "((NOT (m.recipient_id IN (?)) OR (m.recipient_id = ? AND lower(m.topic) = lower(?))) AND NOT (((m.recipient_id = ? AND lower(m.topic) = lower(?)))))"
	args := []any{int64(202), int64(202), "lunch", int64(201), "spam"}

	sql, got := added(t, b, userBase(), term("in", narrow.String("home")))
	assert.Equal(t, "("+home+")", sql)
	assert.Equal(t, args, got)

	sql, got = added(t, b, userBase(), term("is", narrow.String("muted")))
	assert.Equal(t, "(NOT ("+home+"))", sql)
	assert.Equal(t, args, got)
}

func TestCompile_MuteOperatorsWithoutMutes(t *testing.T) {
	dir := newFakeDirectory()
	dir.mutedChans = nil
	dir.policies = nil
	b := newBuilder(dir)

	sql, _ := added(t, b, userBase(), term("in", narrow.String("home")))
	assert.Equal(t, "((1 = 1))", sql)

	sql, _ = added(t, b, userBase(), term("is", narrow.String("muted")))
	assert.Equal(t, "((1 = 0))", sql)
}

func TestCompile_OnlyAppendsToBase(t *testing.T) {
	base := userBase()
	before := base.Clone()

	c, err := newBuilder(newFakeDirectory()).Compile(context.Background(), base, narrow.Narrow{
		term("channel", narrow.String("Verona")),
		term("topic", narrow.String("lunch")),
		term("search", narrow.String("pizza")),
	})
	require.NoError(t, err)
	assert.NoError(t, queryir.CheckNarrowing(base, c.Select))
	assert.Equal(t, before, base)
}

func TestState_IsAValue(t *testing.T) {
	s1 := State{}.WithWhere(queryir.True)
	s2 := s1.WithWhere(queryir.False)
	s3 := s1.WithWhere(queryir.True)

	assert.Len(t, s1.Where, 1)
	assert.Equal(t, []queryir.Predicate{queryir.True, queryir.False}, s2.Where)
	assert.Equal(t, []queryir.Predicate{queryir.True, queryir.True}, s3.Where)
}

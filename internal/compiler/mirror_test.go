package compiler

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/narrow/internal/model"
	"github.com/roach88/narrow/internal/narrow"
)

func TestMirrorPolicy_ChannelBase(t *testing.T) {
	var p MirrorPolicy
	tests := map[string]string{
		"social":         "social",
		"UnUnSocial.d.D": "social",
		"un":             "un",
		"unun":           "un",
		"social.d.x":     "social.d.x",
	}
	for in, want := range tests {
		assert.Equal(t, want, p.ChannelBase(in), in)
	}
}

func TestMirrorPolicy_ChannelRecipients(t *testing.T) {
	dir := &fakeDirectory{channels: []model.Channel{
		{ID: 1, Name: "social", RecipientID: 1},
		{ID: 2, Name: "unsocial", RecipientID: 2},
		{ID: 3, Name: "Social.D", RecipientID: 3},
		{ID: 4, Name: "socialist", RecipientID: 4},
		{ID: 5, Name: "ununsocial.d.d", RecipientID: 5},
		{ID: 6, Name: "social.d", RecipientID: 6, Deactivated: true},
	}}

	ids, err := MirrorPolicy{}.ChannelRecipients(context.Background(), dir, 1, "unsocial.d")
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2, 3, 5}, ids)
}

func TestMirrorPolicy_TopicNames(t *testing.T) {
	var p MirrorPolicy
	assert.Equal(t, []string{"foo", "foo.d", "foo.d.d", "foo.d.d.d", "foo.d.d.d.d"}, p.TopicNames("foo.d.d"))
	assert.Equal(t, p.TopicNames("foo"), p.TopicNames("foo.D"))
	assert.Equal(t, p.TopicNames("foo"), p.TopicNames("foo.d.D"))

	personal := p.TopicNames("personal.d")
	assert.Len(t, personal, 15)
	assert.Equal(t, "", personal[0])
	assert.Equal(t, "personal", personal[5])
	assert.Equal(t, `(instance "").d.d.d.d`, personal[14])
	assert.Equal(t, personal, p.TopicNames(""))
}

func TestCompile_MirrorRealm(t *testing.T) {
	dir := newFakeDirectory()
	dir.channels = append(dir.channels, model.Channel{ID: 7, RealmID: 1, Name: "unVerona.d", RecipientID: 207, InviteOnly: true})
	b := newBuilder(dir)
	b.Realm.MirrorRealm = true

	sql, args := added(t, b, userBase(), term("channel", narrow.String("Verona")))
	assert.Equal(t, "(m.recipient_id IN (?, ?))", sql)
	assert.Equal(t, []any{int64(201), int64(207)}, args)

	sql, args = added(t, b, userBase(), term("topic", narrow.String("lunch.d")))
	assert.Equal(t, "((lower(m.topic) = lower(?) OR lower(m.topic) = lower(?) OR lower(m.topic) = lower(?) OR lower(m.topic) = lower(?) OR lower(m.topic) = lower(?)))", sql)
	assert.Equal(t, []any{"lunch", "lunch.d", "lunch.d.d", "lunch.d.d.d", "lunch.d.d.d.d"}, args)
}

package testutil

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWorld_LoadsFixture(t *testing.T) {
	w := NewWorld(t)

	assert.Equal(t, "zulip", w.Realm.Name)
	assert.Equal(t, int64(15), w.Messages.Current())

	hamlet := w.Viewer(t, Hamlet)
	assert.Equal(t, int64(110), hamlet.RecipientID)
	assert.True(t, hamlet.CanAccessPublic)

	polonius := w.Viewer(t, Polonius)
	assert.True(t, polonius.IsGuest)
	assert.False(t, polonius.CanAccessPublic)
}


func TestDefaultWorld_IsACopy(t *testing.T) {
	a := DefaultWorld()
	a[0] = 'X'
	assert.NotEqual(t, a[0], DefaultWorld()[0])
}

func TestWorld_Send(t *testing.T) {
	w := NewWorld(t)

	ids := w.Send(t, Othello, 201, "bulk", 3, Hamlet, Othello)
	assert.Equal(t, []int64{16, 17, 18}, ids)

	rows, err := w.Store.QueryMessages(context.Background(),
		"SELECT message_id, flags FROM user_messages WHERE user_id = ? AND message_id >= ? ORDER BY message_id",
		[]any{Hamlet, int64(16)})
	require.NoError(t, err)
	require.Len(t, rows, 3)
	for _, r := range rows {
		require.NotNil(t, r.Flags)
		assert.Zero(t, *r.Flags)
	}
}

package store

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/roach88/narrow/internal/model"
)

func TestAccessMessage(t *testing.T) {
	s := createSeededStore(t)
	ctx := context.Background()

	tests := []struct {
		name    string
		user    int64
		message int64
		want    *model.Conversation
	}{
		{
			name: "received channel message", user: 10, message: 2,
			want: &model.Conversation{MessageID: 2, Recipient: model.Recipient{ID: 202, Type: model.RecipientChannel, TypeID: 2}, ChannelID: 2, Topic: "lunch"},
		},
		{
			name: "public history without receipt", user: 11, message: 7,
			want: &model.Conversation{MessageID: 7, Recipient: model.Recipient{ID: 201, Type: model.RecipientChannel, TypeID: 1}, ChannelID: 1, Topic: "✔ build"},
		},
		{
			name: "direct message seen by sender", user: 10, message: 3,
			want: &model.Conversation{MessageID: 3, Recipient: model.Recipient{ID: 111, Type: model.RecipientPersonal, TypeID: 11}, ParticipantIDs: []int64{11}},
		},
		{
			name: "direct message seen by recipient", user: 11, message: 3,
			want: &model.Conversation{MessageID: 3, Recipient: model.Recipient{ID: 111, Type: model.RecipientPersonal, TypeID: 11}, ParticipantIDs: []int64{10}},
		},
		{
			name: "group direct message", user: 12, message: 4,
			want: &model.Conversation{MessageID: 4, Recipient: model.Recipient{ID: 301, Type: model.RecipientGroup, TypeID: 301}, ParticipantIDs: []int64{10, 11, 12}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			viewer, err := s.LoadViewer(ctx, tt.user)
			if err != nil {
				t.Fatalf("LoadViewer() failed: %v", err)
			}
			got, err := s.AccessMessage(ctx, viewer, tt.message)
			if err != nil {
				t.Fatalf("AccessMessage() failed: %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("AccessMessage mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestAccessMessage_Denied(t *testing.T) {
	s := createSeededStore(t)
	ctx := context.Background()

	tests := []struct {
		name    string
		user    int64
		message int64
	}{
		{"invite-only without receipt", 11, 5},
		{"group dm outsider", 13, 4},
		{"direct message outsider", 12, 3},
		{"missing message", 10, 999},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			viewer, err := s.LoadViewer(ctx, tt.user)
			if err != nil {
				t.Fatalf("LoadViewer() failed: %v", err)
			}
			_, err = s.AccessMessage(ctx, viewer, tt.message)
			if !errors.Is(err, model.ErrNotFound) {
				t.Errorf("AccessMessage() error = %v, want ErrNotFound", err)
			}
		})
	}
}

func TestAccessWebPublicMessage(t *testing.T) {
	s := createSeededStore(t)
	ctx := context.Background()

	conv, err := s.AccessWebPublicMessage(ctx, 1, 1)
	if err != nil {
		t.Fatalf("AccessWebPublicMessage() failed: %v", err)
	}
	if conv.ChannelID != 1 || conv.Topic != "lunch" {
		t.Errorf("conversation = %+v", conv)
	}

	for _, id := range []int64{2, 3} {
		if _, err := s.AccessWebPublicMessage(ctx, 1, id); !errors.Is(err, model.ErrNotFound) {
			t.Errorf("AccessWebPublicMessage(%d) error = %v, want ErrNotFound", id, err)
		}
	}
	if _, err := s.AccessWebPublicMessage(ctx, 2, 1); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("cross-realm error = %v, want ErrNotFound", err)
	}
}

func TestSeed_DirectMessagesArePrivate(t *testing.T) {
	s := createSeededStore(t)

	var flags int64
	if err := s.db.QueryRow(`SELECT flags FROM user_messages WHERE user_id = 10 AND message_id = 3`).Scan(&flags); err != nil {
		t.Fatalf("query flags: %v", err)
	}
	if flags != model.FlagRead|model.FlagIsPrivate {
		t.Errorf("flags = %d, want read|is_private", flags)
	}

	var channelMessage bool
	if err := s.db.QueryRow(`SELECT is_channel_message FROM messages WHERE id = 1`).Scan(&channelMessage); err != nil {
		t.Fatalf("query message: %v", err)
	}
	if !channelMessage {
		t.Error("channel message not marked is_channel_message")
	}
}

func TestQueryMessages(t *testing.T) {
	s := createSeededStore(t)

	rows, err := s.QueryMessages(context.Background(), `
		SELECT um.message_id AS message_id, um.flags AS flags, m.rendered_content AS rendered_content,
			NULL AS content_matches, m.realm_id
		FROM user_messages um JOIN messages m ON m.id = um.message_id
		WHERE um.user_id = ? ORDER BY message_id
	`, []any{int64(11)})
	if err != nil {
		t.Fatalf("QueryMessages() failed: %v", err)
	}

	ids := make([]int64, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, r.ID)
		if r.Flags == nil {
			t.Errorf("message %d: nil flags", r.ID)
		}
		if r.ContentMatches != nil {
			t.Errorf("message %d: content matches = %v, want nil", r.ID, r.ContentMatches)
		}
	}
	if diff := cmp.Diff([]int64{1, 3, 4}, ids); diff != "" {
		t.Errorf("message ids mismatch (-want +got):\n%s", diff)
	}
	if rows[0].RenderedContent != "<p>pizza time</p>" {
		t.Errorf("rendered = %q", rows[0].RenderedContent)
	}
}

func TestMatchArray_Scan(t *testing.T) {
	tests := []struct {
		name string
		src  any
		want []model.MatchRange
	}{
		{"null", nil, nil},
		{"empty", "{}", []model.MatchRange{}},
		{"pairs", []byte("{{1,3},{10,4}}"), []model.MatchRange{{1, 3}, {10, 4}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var m matchArray
			if err := m.Scan(tt.src); err != nil {
				t.Fatalf("Scan() failed: %v", err)
			}
			if diff := cmp.Diff(tt.want, m.ranges); diff != "" {
				t.Errorf("ranges mismatch (-want +got):\n%s", diff)
			}
		})
	}

	var m matchArray
	if err := m.Scan("{1,2,3}"); err == nil {
		t.Error("expected error for odd element count")
	}
	if err := m.Scan(42); err == nil {
		t.Error("expected error for non-text source")
	}
}

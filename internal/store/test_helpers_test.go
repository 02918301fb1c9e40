package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/roach88/narrow/internal/model"
)

// createTestStore creates a new temp-dir store for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createSeededStore creates a store holding testSeed.
func createSeededStore(t *testing.T) *Store {
	t.Helper()
	s := createTestStore(t)
	if err := s.WriteSeed(context.Background(), testSeed()); err != nil {
		t.Fatalf("WriteSeed() failed: %v", err)
	}
	return s
}

func testSeed() Seed {
	return Seed{
		Realms: []model.Realm{
			{ID: 1, Name: "zulip"},
			{ID: 2, Name: "lear"},
		},
		Users: []SeedUser{
			{ID: 10, RealmID: 1, Email: "hamlet@zulip.com", FullName: "King Hamlet", RecipientID: 110},
			{ID: 11, RealmID: 1, Email: "othello@zulip.com", FullName: "Othello", RecipientID: 111},
			{ID: 12, RealmID: 1, Email: "iago@zulip.com", FullName: "Iago", RecipientID: 112},
			{ID: 13, RealmID: 1, Email: "cordelia@zulip.com", FullName: "Cordelia", RecipientID: 113},
			{ID: 14, RealmID: 1, Email: "polonius@zulip.com", FullName: "Polonius", RecipientID: 114, Guest: true},
			{ID: 15, RealmID: 2, Email: "bot@zulip.com", FullName: "Notification Bot", RecipientID: 115, CrossRealm: true},
		},
		Groups: []SeedGroup{
			{ID: 1, RealmID: 1, Name: "admins", Members: []int64{10}},
			{ID: 2, RealmID: 1, Name: "staff", Members: []int64{11}, Subgroups: []int64{1}},
			{ID: 3, RealmID: 1, Name: "everyone", Subgroups: []int64{2}},
		},
		Channels: []SeedChannel{
			{ID: 1, RealmID: 1, Name: "Verona", RecipientID: 201, WebPublic: true},
			{ID: 2, RealmID: 1, Name: "Denmark", RecipientID: 202},
			{ID: 3, RealmID: 1, Name: "secret", RecipientID: 203, InviteOnly: true},
			{ID: 4, RealmID: 1, Name: "scotland", RecipientID: 204, InviteOnly: true, PrivateHistory: true},
		},
		GroupDMs: []SeedGroupDM{
			{RecipientID: 301, Members: []int64{12, 10, 11}},
			{RecipientID: 302, Members: []int64{10, 12, 13}},
		},
		Subscriptions: []SeedSubscription{
			{UserID: 10, RecipientID: 201},
			{UserID: 10, RecipientID: 202, Muted: true},
			{UserID: 10, RecipientID: 203},
			{UserID: 11, RecipientID: 201},
			{UserID: 12, RecipientID: 203},
			{UserID: 12, RecipientID: 204},
			{UserID: 14, RecipientID: 201},
		},
		Messages: []SeedMessage{
			{ID: 1, SenderID: 10, RecipientID: 201, Topic: "lunch", Content: "pizza time",
				Receipts: []SeedReceipt{{UserID: 10, Flags: []string{"read"}}, {UserID: 11}}},
			{ID: 2, SenderID: 11, RecipientID: 202, Topic: "lunch", Content: "eat food",
				Receipts: []SeedReceipt{{UserID: 10}}},
			{ID: 3, SenderID: 10, RecipientID: 111, Content: "hi",
				Receipts: []SeedReceipt{{UserID: 10, Flags: []string{"read"}}, {UserID: 11}}},
			{ID: 4, SenderID: 11, RecipientID: 301, Content: "group hello",
				Receipts: []SeedReceipt{{UserID: 10}, {UserID: 11, Flags: []string{"read"}}, {UserID: 12}}},
			{ID: 5, SenderID: 12, RecipientID: 203, Topic: "plans", Content: "classified",
				Receipts: []SeedReceipt{{UserID: 10, Flags: []string{"starred"}}, {UserID: 12}}},
			{ID: 6, SenderID: 12, RecipientID: 204, Topic: "highlands", Content: "heather",
				Receipts: []SeedReceipt{{UserID: 12}}},
			{ID: 7, SenderID: 13, RecipientID: 201, Topic: "✔ build", Content: "fixed", HasLink: true,
				Receipts: []SeedReceipt{{UserID: 10, Flags: []string{"mentioned"}}}},
		},
		Reactions: []SeedReaction{
			{ID: 1, MessageID: 1, UserID: 11, Emoji: "tada"},
		},
		Topics: []SeedTopic{
			{UserID: 10, ChannelID: 1, Topic: "lunch", Policy: "followed"},
			{UserID: 10, ChannelID: 2, Topic: "spam", Policy: "muted"},
		},
	}
}

package compiler

import (
	"context"
	"fmt"
	"slices"

	"github.com/roach88/narrow/internal/model"
)

type fakeDirectory struct {
	channels   []model.Channel
	users      []model.User
	groups     map[int64][]int64 // recipient id -> sorted member ids
	mutedChans map[int64][]model.Channel
	policies   map[int64][]model.TopicPolicy
	failWith   error
}

func (f *fakeDirectory) ChannelByName(_ context.Context, _ int64, name string) (*model.Channel, error) {
	for _, ch := range f.channels {
		if ch.Name == name {
			return &ch, nil
		}
	}
	return nil, fmt.Errorf("channel %q: %w", name, model.ErrNotFound)
}

func (f *fakeDirectory) ChannelByID(_ context.Context, _ int64, id int64) (*model.Channel, error) {
	for _, ch := range f.channels {
		if ch.ID == id {
			return &ch, nil
		}
	}
	return nil, fmt.Errorf("channel %d: %w", id, model.ErrNotFound)
}

func (f *fakeDirectory) ActiveChannels(context.Context, int64) ([]model.Channel, error) {
	var out []model.Channel
	for _, ch := range f.channels {
		if !ch.Deactivated {
			out = append(out, ch)
		}
	}
	return out, nil
}

func (f *fakeDirectory) ChannelRecipients(_ context.Context, _ int64, webPublic bool) ([]int64, error) {
	var ids []int64
	for _, ch := range f.channels {
		if ch.Deactivated || ch.InviteOnly || (webPublic && !ch.WebPublic) {
			continue
		}
		ids = append(ids, ch.RecipientID)
	}
	return ids, nil
}

func (f *fakeDirectory) UserByEmail(_ context.Context, _ int64, email string) (*model.User, error) {
	if f.failWith != nil {
		return nil, f.failWith
	}
	for _, u := range f.users {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, fmt.Errorf("user %q: %w", email, model.ErrNotFound)
}

func (f *fakeDirectory) UserByID(_ context.Context, _ int64, id int64) (*model.User, error) {
	if f.failWith != nil {
		return nil, f.failWith
	}
	for _, u := range f.users {
		if u.ID == id {
			return &u, nil
		}
	}
	return nil, fmt.Errorf("user %d: %w", id, model.ErrNotFound)
}

func (f *fakeDirectory) UsersByEmails(ctx context.Context, realmID int64, emails []string) ([]model.User, error) {
	out := make([]model.User, 0, len(emails))
	for _, e := range emails {
		u, err := f.UserByEmail(ctx, realmID, e)
		if err != nil {
			return nil, err
		}
		out = append(out, *u)
	}
	return out, nil
}

func (f *fakeDirectory) UsersByIDs(ctx context.Context, realmID int64, ids []int64) ([]model.User, error) {
	out := make([]model.User, 0, len(ids))
	for _, id := range ids {
		u, err := f.UserByID(ctx, realmID, id)
		if err != nil {
			return nil, err
		}
		out = append(out, *u)
	}
	return out, nil
}

func (f *fakeDirectory) GroupDMRecipient(_ context.Context, _ int64, userIDs []int64) (int64, error) {
	for rid, members := range f.groups {
		if slices.Equal(members, userIDs) {
			return rid, nil
		}
	}
	return 0, fmt.Errorf("group %v: %w", userIDs, model.ErrNotFound)
}

func (f *fakeDirectory) GroupDMRecipients(_ context.Context, userID int64) ([]int64, error) {
	var out []int64
	for rid, members := range f.groups {
		if slices.Contains(members, userID) {
			out = append(out, rid)
		}
	}
	slices.Sort(out)
	return out, nil
}

func (f *fakeDirectory) MutedChannels(_ context.Context, userID int64) ([]model.Channel, error) {
	return f.mutedChans[userID], nil
}

func (f *fakeDirectory) TopicPolicies(_ context.Context, userID int64) ([]model.TopicPolicy, error) {
	return f.policies[userID], nil
}

var (
	hamlet   = model.User{ID: 10, RealmID: 1, Email: "hamlet@zulip.com", RecipientID: 110, IsActive: true}
	othello  = model.User{ID: 11, RealmID: 1, Email: "othello@zulip.com", RecipientID: 111, IsActive: true}
	iago     = model.User{ID: 12, RealmID: 1, Email: "iago@zulip.com", RecipientID: 112, IsActive: true}
	cordelia = model.User{ID: 13, RealmID: 1, Email: "cordelia@zulip.com", RecipientID: 113, IsActive: true}

	verona  = model.Channel{ID: 1, RealmID: 1, Name: "Verona", RecipientID: 201, WebPublic: true}
	denmark = model.Channel{ID: 2, RealmID: 1, Name: "Denmark", RecipientID: 202}
	secret  = model.Channel{ID: 3, RealmID: 1, Name: "Secret", RecipientID: 203, InviteOnly: true}
)

func newFakeDirectory() *fakeDirectory {
	return &fakeDirectory{
		channels: []model.Channel{verona, denmark, secret},
		users:    []model.User{hamlet, othello, iago, cordelia},
		groups: map[int64][]int64{
			301: {10, 11, 12},
			302: {10, 12, 13},
		},
		mutedChans: map[int64][]model.Channel{10: {denmark}},
		policies: map[int64][]model.TopicPolicy{10: {
			{RecipientID: 202, ChannelID: 2, Topic: "lunch", Visibility: model.TopicUnmuted},
			{RecipientID: 201, ChannelID: 1, Topic: "spam", Visibility: model.TopicMuted},
		}},
	}
}

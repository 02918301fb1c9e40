package compiler

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/narrow/internal/model"
	"github.com/roach88/narrow/internal/narrow"
	"github.com/roach88/narrow/internal/queryir"
	"github.com/roach88/narrow/internal/querysql"
)

func (b *Builder) byHas(operand string) (queryir.Predicate, error) {
	switch operand {
	case "reaction":
		return queryir.Exists{
			From:  queryir.Table{Name: "reactions", Alias: "rx"},
			Where: []queryir.Predicate{queryir.Eq(queryir.Col{Table: "rx", Name: "message_id"}, b.MessageID)},
		}, nil
	case "attachment", "image", "link":
		return queryir.Truthy{Col: queryir.Col{Table: "m", Name: "has_" + operand}}, nil
	default:
		return nil, narrow.BadNarrow("unknown 'has' operand %s", operand)
	}
}

func (b *Builder) byIn(ctx context.Context, operand string) (queryir.Predicate, error) {
	if b.webPublic() {
		return nil, narrow.BadNarrow("in is not allowed in web-public queries")
	}
	switch operand {
	case "home":
		conds, err := b.Mutes.Conditions(ctx, b.Realm, *b.Viewer, nil)
		if err != nil {
			return nil, err
		}
		if len(conds) == 0 {
			return queryir.True, nil
		}
		return queryir.AllOf(conds...), nil
	case "all":
		return nil, nil
	default:
		return nil, narrow.BadNarrow("unknown 'in' operand %s", operand)
	}
}

func (b *Builder) byIs(ctx context.Context, st State, operand string, negated bool) (State, queryir.Predicate, error) {
	if operand == "resolved" {
		return st, queryir.Like{Left: colTopic, Pattern: querysql.EscapeLike(model.ResolvedTopicPrefix) + "%"}, nil
	}
	if b.webPublic() {
		return st, nil, narrow.BadNarrow("is:%s is not allowed in web-public queries", operand)
	}

	switch operand {
	case "dm", "private":
		var err error
		if negated {
			// Excluding DMs leaves only channel messages.
			st, err = st.mark(false, true, false)
		} else {
			st, err = st.mark(false, false, true)
		}
		if err != nil {
			return st, nil, err
		}
		return st, queryir.FlagSet(colFlags, model.FlagIsPrivate), nil
	case "starred":
		return st, queryir.FlagSet(colFlags, model.FlagStarred), nil
	case "unread":
		return st, queryir.FlagClear(colFlags, model.FlagRead), nil
	case "mentioned":
		return st, queryir.FlagSet(colFlags, model.MentionFlags), nil
	case "alerted":
		return st, queryir.FlagSet(colFlags, model.FlagHasAlertWord), nil
	case "followed":
		return st, followedTopic(b.Viewer.UserID), nil
	case "muted":
		conds, err := b.Mutes.Conditions(ctx, b.Realm, *b.Viewer, nil)
		if err != nil {
			return st, nil, err
		}
		if len(conds) == 0 {
			return st, queryir.False, nil
		}
		return st, queryir.Negate(queryir.AllOf(conds...)), nil
	default:
		return st, nil, narrow.BadNarrow("unknown 'is' operand %s", operand)
	}
}

// followedTopic matches messages in topics the user follows.
func followedTopic(userID int64) queryir.Predicate {
	ut := func(name string) queryir.Col { return queryir.Col{Table: "ut", Name: name} }
	return queryir.Exists{
		From: queryir.Table{Name: "user_topics", Alias: "ut"},
		Where: []queryir.Predicate{
			queryir.Eq(ut("user_id"), queryir.Int(userID)),
			queryir.Eq(ut("visibility_policy"), queryir.Int(int64(model.TopicFollowed))),
			queryir.Eq(ut("recipient_id"), colRecipient),
			queryir.Eq(queryir.Lower{Arg: ut("topic_name")}, queryir.Lower{Arg: colTopic}),
		},
	}
}

func (b *Builder) byChannel(ctx context.Context, operand narrow.Operand) (queryir.Predicate, error) {
	ch, err := channelByOperand(ctx, b.Directory, b.Realm.ID, operand)
	if errors.Is(err, model.ErrNotFound) {
		return nil, narrow.BadNarrow("unknown channel %s", narrow.Text(operand))
	}
	if err != nil {
		return nil, fmt.Errorf("channel lookup: %w", err)
	}
	if b.webPublic() && !ch.WebPublic {
		return nil, narrow.BadNarrow("unknown web-public channel %s", narrow.Text(operand))
	}

	if b.Realm.MirrorRealm {
		ids, err := b.Mirror.ChannelRecipients(ctx, b.Directory, b.Realm.ID, ch.Name)
		if err != nil {
			return nil, err
		}
		return queryir.In{Left: colRecipient, Values: ids}, nil
	}
	return queryir.Eq(colRecipient, queryir.Int(ch.RecipientID)), nil
}

// channelByOperand looks a channel up by id for integer operands and by
// name otherwise.
func channelByOperand(ctx context.Context, dir Directory, realmID int64, operand narrow.Operand) (*model.Channel, error) {
	if id, ok := operand.(narrow.Int); ok {
		return dir.ChannelByID(ctx, realmID, int64(id))
	}
	return dir.ChannelByName(ctx, realmID, narrow.Text(operand))
}

func (b *Builder) byChannels(ctx context.Context, operand string) (queryir.Predicate, error) {
	var webPublic bool
	switch operand {
	case "public":
	case "web-public":
		webPublic = true
	default:
		return nil, narrow.BadNarrow("unknown channels operand %s", operand)
	}
	ids, err := b.Directory.ChannelRecipients(ctx, b.Realm.ID, webPublic)
	if err != nil {
		return nil, fmt.Errorf("channel recipients: %w", err)
	}
	return queryir.In{Left: colRecipient, Values: ids}, nil
}

func (b *Builder) byTopic(operand string) queryir.Predicate {
	if b.Realm.MirrorRealm {
		return b.Mirror.TopicCondition(operand)
	}
	return topicMatch(colTopic, operand)
}

// topicMatch compares topics case-insensitively.
func topicMatch(col queryir.Col, topic string) queryir.Predicate {
	return queryir.Eq(queryir.Lower{Arg: col}, queryir.Lower{Arg: queryir.Str(topic)})
}

func (b *Builder) lookupUser(ctx context.Context, operand narrow.Operand) (*model.User, error) {
	var (
		u   *model.User
		err error
	)
	if id, ok := operand.(narrow.Int); ok {
		u, err = b.Directory.UserByID(ctx, b.Realm.ID, int64(id))
	} else {
		u, err = b.Directory.UserByEmail(ctx, b.Realm.ID, narrow.Text(operand))
	}
	if errors.Is(err, model.ErrNotFound) {
		return nil, narrow.BadNarrow("unknown user %s", narrow.Text(operand))
	}
	if err != nil {
		return nil, fmt.Errorf("user lookup: %w", err)
	}
	return u, nil
}

func (b *Builder) bySender(ctx context.Context, operand narrow.Operand) (queryir.Predicate, error) {
	u, err := b.lookupUser(ctx, operand)
	if err != nil {
		return nil, err
	}
	return queryir.Eq(colSender, queryir.Int(u.ID)), nil
}

func (b *Builder) byID(operand narrow.Operand) (queryir.Predicate, error) {
	id, ok := narrow.AsID(operand)
	if !ok || id < 0 || id > model.MaxMessageID {
		return nil, narrow.BadNarrow("Invalid message ID")
	}
	return queryir.Eq(b.MessageID, queryir.Int(id)), nil
}

// dmFlag restricts to DMs the viewer received or sent, within the realm.
func (b *Builder) dmFlag() []queryir.Predicate {
	return []queryir.Predicate{
		queryir.FlagSet(colFlags, model.FlagIsPrivate),
		queryir.Eq(colRealm, queryir.Int(b.Realm.ID)),
	}
}

// between matches the 1:1 conversation of the viewer and other in either
// direction. Personal recipients only name the receiver, so both
// (sender, recipient) pairs are needed.
func (b *Builder) between(other *model.User) queryir.Or {
	v := b.Viewer
	return queryir.AnyOf(
		queryir.AllOf(
			queryir.Eq(colSender, queryir.Int(other.ID)),
			queryir.Eq(colRecipient, queryir.Int(v.RecipientID)),
		),
		queryir.AllOf(
			queryir.Eq(colSender, queryir.Int(v.UserID)),
			queryir.Eq(colRecipient, queryir.Int(other.RecipientID)),
		),
	)
}

func (b *Builder) byDM(ctx context.Context, operand narrow.Operand) (queryir.Predicate, error) {
	users, err := b.dmUsers(ctx, operand)
	if errors.Is(err, model.ErrNotFound) {
		return nil, narrow.BadNarrow("unknown user in %s", narrow.Text(operand))
	}
	if err != nil {
		return nil, fmt.Errorf("dm users: %w", err)
	}
	if len(users) == 0 {
		return queryir.False, nil
	}

	v := b.Viewer
	members := []int64{v.UserID}
	var other *model.User
	for i := range users {
		if users[i].ID != v.UserID {
			other = &users[i]
		}
		if !slices.Contains(members, users[i].ID) {
			members = append(members, users[i].ID)
		}
	}

	if len(members) > 2 {
		slices.Sort(members)
		rid, err := b.Directory.GroupDMRecipient(ctx, b.Realm.ID, members)
		if errors.Is(err, model.ErrNotFound) {
			return queryir.False, nil
		}
		if err != nil {
			return nil, fmt.Errorf("group dm lookup: %w", err)
		}
		return queryir.Eq(colRecipient, queryir.Int(rid)), nil
	}

	if other != nil {
		return queryir.AllOf(append(b.dmFlag(), b.between(other))...), nil
	}
	return queryir.AllOf(append(b.dmFlag(),
		queryir.Eq(colSender, queryir.Int(v.UserID)),
		queryir.Eq(colRecipient, queryir.Int(v.RecipientID)),
	)...), nil
}

func (b *Builder) dmUsers(ctx context.Context, operand narrow.Operand) ([]model.User, error) {
	switch o := operand.(type) {
	case narrow.IntList:
		if len(o) == 0 {
			return nil, nil
		}
		return b.Directory.UsersByIDs(ctx, b.Realm.ID, o)
	case narrow.String:
		return b.Directory.UsersByEmails(ctx, b.Realm.ID, strings.Split(string(o), ","))
	default:
		return nil, fmt.Errorf("dm operand %s: %w", narrow.Text(operand), model.ErrNotFound)
	}
}

// sharedGroupDMs lists the group DM recipients both the viewer and other
// belong to.
func (b *Builder) sharedGroupDMs(ctx context.Context, other *model.User) ([]int64, error) {
	mine, err := b.Directory.GroupDMRecipients(ctx, b.Viewer.UserID)
	if err != nil {
		return nil, fmt.Errorf("group dm recipients: %w", err)
	}
	theirs, err := b.Directory.GroupDMRecipients(ctx, other.ID)
	if err != nil {
		return nil, fmt.Errorf("group dm recipients: %w", err)
	}
	var shared []int64
	for _, id := range mine {
		if slices.Contains(theirs, id) && !slices.Contains(shared, id) {
			shared = append(shared, id)
		}
	}
	slices.Sort(shared)
	return shared, nil
}

func (b *Builder) byDMIncluding(ctx context.Context, operand narrow.Operand) (queryir.Predicate, error) {
	other, err := b.lookupUser(ctx, operand)
	if err != nil {
		return nil, err
	}
	if other.ID == b.Viewer.UserID {
		return queryir.FlagSet(colFlags, model.FlagIsPrivate), nil
	}

	groups, err := b.sharedGroupDMs(ctx, other)
	if err != nil {
		return nil, err
	}
	either := b.between(other)
	return queryir.AllOf(append(b.dmFlag(), queryir.AnyOf(
		either.Predicates[0],
		either.Predicates[1],
		queryir.In{Left: colRecipient, Values: groups},
	))...), nil
}

func (b *Builder) byGroupPMWith(ctx context.Context, operand narrow.Operand) (queryir.Predicate, error) {
	other, err := b.lookupUser(ctx, operand)
	if err != nil {
		return nil, err
	}
	groups, err := b.sharedGroupDMs(ctx, other)
	if err != nil {
		return nil, err
	}
	return queryir.AllOf(append(b.dmFlag(), queryir.In{Left: colRecipient, Values: groups})...), nil
}

package compiler

import (
	"context"

	"github.com/roach88/narrow/internal/model"
)

// Directory resolves the names and ids that appear in narrow operands.
// Lookups that find nothing return an error wrapping model.ErrNotFound.
type Directory interface {
	// ChannelByName and ChannelByID skip access checks: viewing the
	// history of a channel one has left is legitimate.
	ChannelByName(ctx context.Context, realmID int64, name string) (*model.Channel, error)
	ChannelByID(ctx context.Context, realmID int64, id int64) (*model.Channel, error)

	// ActiveChannels lists every non-deactivated channel in the realm.
	ActiveChannels(ctx context.Context, realmID int64) ([]model.Channel, error)

	// ChannelRecipients enumerates the recipient ids of the realm's public
	// channels, or of its web-public channels when webPublic is set,
	// ordered by channel id.
	ChannelRecipients(ctx context.Context, realmID int64, webPublic bool) ([]int64, error)

	// UserByEmail and UserByID include cross-realm system users.
	UserByEmail(ctx context.Context, realmID int64, email string) (*model.User, error)
	UserByID(ctx context.Context, realmID int64, id int64) (*model.User, error)

	// UsersByEmails and UsersByIDs fail if any entry is unknown.
	// Deactivated users are returned.
	UsersByEmails(ctx context.Context, realmID int64, emails []string) ([]model.User, error)
	UsersByIDs(ctx context.Context, realmID int64, ids []int64) ([]model.User, error)

	// GroupDMRecipient finds the group DM conversation whose members are
	// exactly userIDs. It never creates one.
	GroupDMRecipient(ctx context.Context, realmID int64, userIDs []int64) (int64, error)

	// GroupDMRecipients lists the group DM recipient ids userID takes part in.
	GroupDMRecipients(ctx context.Context, userID int64) ([]int64, error)
}

// MuteSource reports a user's mute settings.
type MuteSource interface {
	// MutedChannels lists channels the user is actively subscribed to
	// with muting enabled.
	MutedChannels(ctx context.Context, userID int64) ([]model.Channel, error)

	// TopicPolicies lists every per-topic visibility policy of the user,
	// deactivated channels included.
	TopicPolicies(ctx context.Context, userID int64) ([]model.TopicPolicy, error)
}

// Package model holds the realm, user, channel and recipient types shared
// by the narrow compiler, the fetch engine and the store.
package model

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned by directory lookups when the referenced entity
// does not exist (or is not visible through the lookup used).
var ErrNotFound = errors.New("not found")

const (
	// MaxSentinel is larger than any message id; anchoring to it means
	// "the newest end of the view".
	MaxSentinel int64 = 10000000000000000

	// MaxMessageID is the largest id the `id` operator accepts.
	MaxMessageID int64 = 2147483647
)

// RecipientType identifies the kind of conversation a recipient row is.
type RecipientType int

const (
	RecipientPersonal RecipientType = 1
	RecipientChannel  RecipientType = 2
	RecipientGroup    RecipientType = 3
)

func (t RecipientType) String() string {
	switch t {
	case RecipientPersonal:
		return "personal"
	case RecipientChannel:
		return "channel"
	case RecipientGroup:
		return "group"
	default:
		return "unknown"
	}
}

// Realm is a tenant.
type Realm struct {
	ID   int64  `json:"id" yaml:"id"`
	Name string `json:"name" yaml:"name"`

	// MirrorRealm enables the legacy channel/topic suffix equivalence.
	MirrorRealm bool `json:"mirror_realm" yaml:"mirror_realm"`

	// FirstVisibleMessageID hides older history from every member.
	FirstVisibleMessageID int64 `json:"first_visible_message_id" yaml:"first_visible_message_id"`
}

// Viewer is the authenticated user a query runs for. A nil *Viewer means
// an anonymous web-public query.
type Viewer struct {
	UserID          int64 `json:"user_id"`
	RealmID         int64 `json:"realm_id"`
	RecipientID     int64 `json:"recipient_id"`
	IsGuest         bool  `json:"is_guest"`
	CanAccessPublic bool  `json:"can_access_public"`
}

// User is a user account, possibly a cross-realm system bot.
type User struct {
	ID           int64
	RealmID      int64
	Email        string
	FullName     string
	RecipientID  int64
	IsCrossRealm bool
	IsActive     bool
}

// Channel is a channel row, looked up without access checks.
type Channel struct {
	ID                         int64
	RealmID                    int64
	Name                       string
	RecipientID                int64
	InviteOnly                 bool
	WebPublic                  bool
	HistoryPublicToSubscribers bool
	InMirrorRealm              bool
	Deactivated                bool
}

// IsPublic reports whether the channel is visible to every non-guest member.
func (c Channel) IsPublic() bool {
	return !c.InviteOnly && !c.InMirrorRealm
}

// Recipient identifies a conversation target.
type Recipient struct {
	ID     int64
	Type   RecipientType
	TypeID int64
}

// Conversation describes where an accessible message lives.
type Conversation struct {
	MessageID int64
	Recipient Recipient
	ChannelID int64
	Topic     string

	// ParticipantIDs lists the other members of a DM conversation as seen
	// by the viewer; a self DM lists the viewer.
	ParticipantIDs []int64
}

// TopicVisibility is a per-user topic policy.
type TopicVisibility int

const (
	TopicMuted    TopicVisibility = 1
	TopicUnmuted  TopicVisibility = 2
	TopicFollowed TopicVisibility = 3
)

// TopicPolicy is one user_topics row.
type TopicPolicy struct {
	RecipientID int64
	ChannelID   int64
	Topic       string
	Visibility  TopicVisibility
}

// ParseTopicVisibility maps a policy name to its value.
func ParseTopicVisibility(name string) (TopicVisibility, error) {
	switch name {
	case "muted":
		return TopicMuted, nil
	case "unmuted":
		return TopicUnmuted, nil
	case "followed":
		return TopicFollowed, nil
	default:
		return 0, fmt.Errorf("unknown topic visibility %q", name)
	}
}

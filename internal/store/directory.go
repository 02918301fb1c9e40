package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/roach88/narrow/internal/model"
)

const channelColumns = `id, realm_id, name, recipient_id, invite_only, is_web_public,
	history_public_to_subscribers, is_in_mirror_realm, deactivated`

const userColumns = `id, realm_id, email, full_name, recipient_id, is_cross_realm, is_active`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanChannel(row rowScanner) (model.Channel, error) {
	var (
		ch  model.Channel
		rid sql.NullInt64
	)
	err := row.Scan(&ch.ID, &ch.RealmID, &ch.Name, &rid, &ch.InviteOnly, &ch.WebPublic,
		&ch.HistoryPublicToSubscribers, &ch.InMirrorRealm, &ch.Deactivated)
	ch.RecipientID = rid.Int64
	return ch, err
}

func scanUser(row rowScanner) (model.User, error) {
	var (
		u   model.User
		rid sql.NullInt64
	)
	err := row.Scan(&u.ID, &u.RealmID, &u.Email, &u.FullName, &rid, &u.IsCrossRealm, &u.IsActive)
	u.RecipientID = rid.Int64
	return u, err
}

// notFound maps sql.ErrNoRows to model.ErrNotFound.
func notFound(err error, format string, args ...any) error {
	what := fmt.Sprintf(format, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", what, model.ErrNotFound)
	}
	return fmt.Errorf("%s: %w", what, err)
}

func collectChannels(rows *sql.Rows) ([]model.Channel, error) {
	defer rows.Close()
	channels := []model.Channel{}
	for rows.Next() {
		ch, err := scanChannel(rows)
		if err != nil {
			return nil, fmt.Errorf("scan channel: %w", err)
		}
		channels = append(channels, ch)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate channels: %w", err)
	}
	return channels, nil
}

func collectIDs(rows *sql.Rows) ([]int64, error) {
	defer rows.Close()
	ids := []int64{}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ids: %w", err)
	}
	return ids, nil
}

// LoadRealm returns a realm by id.
func (s *Store) LoadRealm(ctx context.Context, id int64) (model.Realm, error) {
	var r model.Realm
	err := s.queryRow(ctx, `
		SELECT id, name, mirror_realm, first_visible_message_id
		FROM realms WHERE id = ?
	`, id).Scan(&r.ID, &r.Name, &r.MirrorRealm, &r.FirstVisibleMessageID)
	if err != nil {
		return model.Realm{}, notFound(err, "realm %d", id)
	}
	return r, nil
}

// LoadViewer returns the viewer identity of an active user.
func (s *Store) LoadViewer(ctx context.Context, userID int64) (*model.Viewer, error) {
	var (
		v      model.Viewer
		rid    sql.NullInt64
		mirror bool
	)
	err := s.queryRow(ctx, `
		SELECT u.id, u.realm_id, u.recipient_id, u.is_guest, r.mirror_realm
		FROM users u JOIN realms r ON r.id = u.realm_id
		WHERE u.id = ? AND u.is_active
	`, userID).Scan(&v.UserID, &v.RealmID, &rid, &v.IsGuest, &mirror)
	if err != nil {
		return nil, notFound(err, "user %d", userID)
	}
	v.RecipientID = rid.Int64
	v.CanAccessPublic = !v.IsGuest && !mirror
	return &v, nil
}

// ChannelByName matches names case-insensitively, without access checks.
func (s *Store) ChannelByName(ctx context.Context, realmID int64, name string) (*model.Channel, error) {
	ch, err := scanChannel(s.queryRow(ctx, `
		SELECT `+channelColumns+`
		FROM channels WHERE realm_id = ? AND lower(name) = lower(?)
	`, realmID, name))
	if err != nil {
		return nil, notFound(err, "channel %q", name)
	}
	return &ch, nil
}

// ChannelByID looks a channel up without access checks.
func (s *Store) ChannelByID(ctx context.Context, realmID int64, id int64) (*model.Channel, error) {
	ch, err := scanChannel(s.queryRow(ctx, `
		SELECT `+channelColumns+`
		FROM channels WHERE realm_id = ? AND id = ?
	`, realmID, id))
	if err != nil {
		return nil, notFound(err, "channel %d", id)
	}
	return &ch, nil
}

// ActiveChannels lists the realm's channels that are not deactivated.
func (s *Store) ActiveChannels(ctx context.Context, realmID int64) ([]model.Channel, error) {
	rows, err := s.query(ctx, `
		SELECT `+channelColumns+`
		FROM channels WHERE realm_id = ? AND NOT deactivated
		ORDER BY id
	`, realmID)
	if err != nil {
		return nil, fmt.Errorf("query active channels: %w", err)
	}
	return collectChannels(rows)
}

// ChannelRecipients enumerates public (or web-public) channel recipients.
func (s *Store) ChannelRecipients(ctx context.Context, realmID int64, webPublic bool) ([]int64, error) {
	query := `
		SELECT recipient_id FROM channels
		WHERE realm_id = ? AND NOT invite_only AND history_public_to_subscribers
		AND recipient_id IS NOT NULL`
	if webPublic {
		query += ` AND is_web_public AND NOT deactivated`
	}
	rows, err := s.query(ctx, query+` ORDER BY id`, realmID)
	if err != nil {
		return nil, fmt.Errorf("query channel recipients: %w", err)
	}
	return collectIDs(rows)
}

// emailKey normalizes an email for lookup.
func emailKey(email string) string {
	return norm.NFC.String(email)
}

// UserByEmail finds a realm member or cross-realm user by email.
func (s *Store) UserByEmail(ctx context.Context, realmID int64, email string) (*model.User, error) {
	u, err := scanUser(s.queryRow(ctx, `
		SELECT `+userColumns+`
		FROM users WHERE lower(email) = lower(?) AND (realm_id = ? OR is_cross_realm)
		ORDER BY is_cross_realm, id LIMIT 1
	`, emailKey(email), realmID))
	if err != nil {
		return nil, notFound(err, "user %q", email)
	}
	return &u, nil
}

// UserByID finds a realm member or cross-realm user by id.
func (s *Store) UserByID(ctx context.Context, realmID int64, id int64) (*model.User, error) {
	u, err := scanUser(s.queryRow(ctx, `
		SELECT `+userColumns+`
		FROM users WHERE id = ? AND (realm_id = ? OR is_cross_realm)
	`, id, realmID))
	if err != nil {
		return nil, notFound(err, "user %d", id)
	}
	return &u, nil
}

// UsersByEmails resolves every email or fails with model.ErrNotFound.
func (s *Store) UsersByEmails(ctx context.Context, realmID int64, emails []string) ([]model.User, error) {
	users := make([]model.User, 0, len(emails))
	for _, e := range emails {
		u, err := s.UserByEmail(ctx, realmID, e)
		if err != nil {
			return nil, err
		}
		users = append(users, *u)
	}
	return users, nil
}

// UsersByIDs resolves realm members by id or fails with model.ErrNotFound.
func (s *Store) UsersByIDs(ctx context.Context, realmID int64, ids []int64) ([]model.User, error) {
	users := make([]model.User, 0, len(ids))
	for _, id := range ids {
		u, err := scanUser(s.queryRow(ctx, `
			SELECT `+userColumns+`
			FROM users WHERE id = ? AND realm_id = ?
		`, id, realmID))
		if err != nil {
			return nil, notFound(err, "user %d", id)
		}
		users = append(users, u)
	}
	return users, nil
}

// memberKey is the canonical key of a group DM: sorted ids, comma joined.
func memberKey(sortedIDs []int64) string {
	parts := make([]string, len(sortedIDs))
	for i, id := range sortedIDs {
		parts[i] = strconv.FormatInt(id, 10)
	}
	return strings.Join(parts, ",")
}

// GroupDMRecipient finds an existing group DM for exactly these members.
func (s *Store) GroupDMRecipient(ctx context.Context, _ int64, userIDs []int64) (int64, error) {
	var rid sql.NullInt64
	err := s.queryRow(ctx, `
		SELECT recipient_id FROM direct_message_groups WHERE member_key = ?
	`, memberKey(userIDs)).Scan(&rid)
	if err == nil && !rid.Valid {
		err = sql.ErrNoRows
	}
	if err != nil {
		return 0, notFound(err, "group dm %v", userIDs)
	}
	return rid.Int64, nil
}

// GroupDMRecipients lists the group DMs userID is subscribed to.
func (s *Store) GroupDMRecipients(ctx context.Context, userID int64) ([]int64, error) {
	rows, err := s.query(ctx, `
		SELECT s.recipient_id
		FROM subscriptions s JOIN recipients r ON r.id = s.recipient_id
		WHERE s.user_id = ? AND r.type = ?
		ORDER BY s.recipient_id
	`, userID, int64(model.RecipientGroup))
	if err != nil {
		return nil, fmt.Errorf("query group dm recipients: %w", err)
	}
	return collectIDs(rows)
}

// MutedChannels lists channels the user actively subscribes to muted.
func (s *Store) MutedChannels(ctx context.Context, userID int64) ([]model.Channel, error) {
	rows, err := s.query(ctx, `
		SELECT c.id, c.realm_id, c.name, c.recipient_id, c.invite_only, c.is_web_public,
			c.history_public_to_subscribers, c.is_in_mirror_realm, c.deactivated
		FROM subscriptions s JOIN channels c ON c.recipient_id = s.recipient_id
		WHERE s.user_id = ? AND s.active AND s.is_muted
		ORDER BY c.id
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("query muted channels: %w", err)
	}
	return collectChannels(rows)
}

// TopicPolicies lists the user's per-topic visibility policies.
func (s *Store) TopicPolicies(ctx context.Context, userID int64) ([]model.TopicPolicy, error) {
	rows, err := s.query(ctx, `
		SELECT recipient_id, channel_id, topic_name, visibility_policy
		FROM user_topics WHERE user_id = ?
		ORDER BY recipient_id, topic_name
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("query topic policies: %w", err)
	}
	defer rows.Close()

	policies := []model.TopicPolicy{}
	for rows.Next() {
		var p model.TopicPolicy
		if err := rows.Scan(&p.RecipientID, &p.ChannelID, &p.Topic, &p.Visibility); err != nil {
			return nil, fmt.Errorf("scan topic policy: %w", err)
		}
		policies = append(policies, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate topic policies: %w", err)
	}
	return policies, nil
}

// IsSubscribed reports whether userID actively subscribes to recipientID.
func (s *Store) IsSubscribed(ctx context.Context, userID, recipientID int64) (bool, error) {
	var n int
	err := s.queryRow(ctx, `
		SELECT COUNT(*) FROM subscriptions
		WHERE user_id = ? AND recipient_id = ? AND active
	`, userID, recipientID).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("query subscription: %w", err)
	}
	return n > 0, nil
}

// CanAccessChannelHistory reports whether the viewer may read the
// channel's past messages: every non-guest may read public channels,
// and subscribers may read channels whose history is public to them.
func (s *Store) CanAccessChannelHistory(ctx context.Context, viewer model.Viewer, ch model.Channel) (bool, error) {
	if ch.RealmID != viewer.RealmID {
		return false, nil
	}
	if ch.IsPublic() && !viewer.IsGuest {
		return true, nil
	}
	if !ch.HistoryPublicToSubscribers {
		return false, nil
	}
	return s.IsSubscribed(ctx, viewer.UserID, ch.RecipientID)
}

// RecursiveGroupIDs lists the groups userID belongs to, directly or via
// subgroups.
func (s *Store) RecursiveGroupIDs(ctx context.Context, userID int64) ([]int64, error) {
	rows, err := s.query(ctx, `
		WITH RECURSIVE member_of(id) AS (
			SELECT group_id FROM group_members WHERE user_id = ?
			UNION
			SELECT gs.supergroup_id
			FROM group_subgroups gs JOIN member_of m ON gs.subgroup_id = m.id
		)
		SELECT id FROM member_of ORDER BY id
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("query recursive groups: %w", err)
	}
	return collectIDs(rows)
}

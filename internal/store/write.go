package store

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"html"
	"io"
	"slices"

	"golang.org/x/text/unicode/norm"
	"gopkg.in/yaml.v3"

	"github.com/roach88/narrow/internal/model"
)

// Seed describes a realm's worth of rows to load in one transaction.
// Recipient ids are explicit so fixtures can refer to them.
type Seed struct {
	Realms        []model.Realm      `yaml:"realms"`
	Users         []SeedUser         `yaml:"users"`
	Groups        []SeedGroup        `yaml:"groups"`
	Channels      []SeedChannel      `yaml:"channels"`
	GroupDMs      []SeedGroupDM      `yaml:"group_dms"`
	Subscriptions []SeedSubscription `yaml:"subscriptions"`
	Messages      []SeedMessage      `yaml:"messages"`
	Reactions     []SeedReaction     `yaml:"reactions"`
	Topics        []SeedTopic        `yaml:"topics"`
}

// ParseSeed decodes a YAML seed, rejecting unknown keys. An empty
// document is an empty seed.
func ParseSeed(data []byte) (Seed, error) {
	var seed Seed
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&seed); err != nil && !errors.Is(err, io.EOF) {
		return Seed{}, fmt.Errorf("parse seed: %w", err)
	}
	return seed, nil
}

type SeedUser struct {
	ID          int64  `yaml:"id"`
	RealmID     int64  `yaml:"realm"`
	Email       string `yaml:"email"`
	FullName    string `yaml:"full_name"`
	RecipientID int64  `yaml:"recipient"`
	Guest       bool   `yaml:"guest"`
	CrossRealm  bool   `yaml:"cross_realm"`
	Inactive    bool   `yaml:"inactive"`
}

type SeedGroup struct {
	ID        int64   `yaml:"id"`
	RealmID   int64   `yaml:"realm"`
	Name      string  `yaml:"name"`
	Members   []int64 `yaml:"members"`
	Subgroups []int64 `yaml:"subgroups"`
}

type SeedChannel struct {
	ID          int64  `yaml:"id"`
	RealmID     int64  `yaml:"realm"`
	Name        string `yaml:"name"`
	RecipientID int64  `yaml:"recipient"`
	InviteOnly  bool   `yaml:"invite_only"`
	WebPublic   bool   `yaml:"web_public"`
	// PrivateHistory clears history_public_to_subscribers.
	PrivateHistory bool `yaml:"private_history"`
	MirrorRealm    bool `yaml:"mirror_realm"`
	Deactivated    bool `yaml:"deactivated"`
}

// SeedGroupDM creates the group and subscribes every member to it.
type SeedGroupDM struct {
	RecipientID int64   `yaml:"recipient"`
	Members     []int64 `yaml:"members"`
}

type SeedSubscription struct {
	UserID      int64 `yaml:"user"`
	RecipientID int64 `yaml:"recipient"`
	Muted       bool  `yaml:"muted"`
	Inactive    bool  `yaml:"inactive"`
}

type SeedMessage struct {
	ID            int64  `yaml:"id"`
	SenderID      int64  `yaml:"sender"`
	RecipientID   int64  `yaml:"recipient"`
	Topic         string `yaml:"topic"`
	Content       string `yaml:"content"`
	Rendered      string `yaml:"rendered"`
	HasAttachment bool   `yaml:"has_attachment"`
	HasImage      bool   `yaml:"has_image"`
	HasLink       bool   `yaml:"has_link"`
	// Receipts are the per-user rows; flags are named, e.g. [read, starred].
	Receipts []SeedReceipt `yaml:"receipts"`
}

type SeedReceipt struct {
	UserID int64    `yaml:"user"`
	Flags  []string `yaml:"flags"`
}

type SeedReaction struct {
	ID        int64  `yaml:"id"`
	MessageID int64  `yaml:"message"`
	UserID    int64  `yaml:"user"`
	Emoji     string `yaml:"emoji"`
}

type SeedTopic struct {
	UserID    int64  `yaml:"user"`
	ChannelID int64  `yaml:"channel"`
	Topic     string `yaml:"topic"`
	Policy    string `yaml:"policy"`
}

// writer binds a transaction to the store's placeholder style.
type writer struct {
	s  *Store
	tx *sql.Tx
}

func (w writer) exec(ctx context.Context, what, query string, args ...any) error {
	if _, err := w.tx.ExecContext(ctx, w.s.rebind(query), args...); err != nil {
		return fmt.Errorf("write %s: %w", what, err)
	}
	return nil
}

func (w writer) recipient(ctx context.Context, id int64, typ model.RecipientType, typeID int64) error {
	return w.exec(ctx, "recipient", `
		INSERT INTO recipients (id, type, type_id) VALUES (?, ?, ?)
	`, id, int64(typ), typeID)
}

// WriteSeed inserts every row of seed atomically. Rows are written in
// dependency order; a failure rolls the whole seed back.
func (s *Store) WriteSeed(ctx context.Context, seed Seed) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("write seed: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	w := writer{s: s, tx: tx}
	steps := []func(context.Context, Seed) error{
		w.realms, w.users, w.groups, w.channels, w.groupDMs,
		w.subscriptions, w.messages, w.reactions, w.topics,
	}
	for _, step := range steps {
		if err := step(ctx, seed); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("write seed: commit: %w", err)
	}
	return nil
}

func (w writer) realms(ctx context.Context, seed Seed) error {
	for _, r := range seed.Realms {
		err := w.exec(ctx, "realm", `
			INSERT INTO realms (id, name, mirror_realm, first_visible_message_id)
			VALUES (?, ?, ?, ?)
		`, r.ID, r.Name, r.MirrorRealm, r.FirstVisibleMessageID)
		if err != nil {
			return err
		}
	}
	return nil
}

func (w writer) users(ctx context.Context, seed Seed) error {
	for _, u := range seed.Users {
		if err := w.recipient(ctx, u.RecipientID, model.RecipientPersonal, u.ID); err != nil {
			return err
		}
		err := w.exec(ctx, "user", `
			INSERT INTO users (id, realm_id, email, full_name, recipient_id, is_guest, is_cross_realm, is_active)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`, u.ID, u.RealmID, norm.NFC.String(u.Email), u.FullName, u.RecipientID, u.Guest, u.CrossRealm, !u.Inactive)
		if err != nil {
			return err
		}
	}
	return nil
}

func (w writer) groups(ctx context.Context, seed Seed) error {
	for _, g := range seed.Groups {
		err := w.exec(ctx, "user group", `
			INSERT INTO user_groups (id, realm_id, name) VALUES (?, ?, ?)
		`, g.ID, g.RealmID, g.Name)
		if err != nil {
			return err
		}
		for _, m := range g.Members {
			if err := w.exec(ctx, "group member", `
				INSERT INTO group_members (group_id, user_id) VALUES (?, ?)
			`, g.ID, m); err != nil {
				return err
			}
		}
	}
	// Subgroups may point forward, so they go in after every group exists.
	for _, g := range seed.Groups {
		for _, sub := range g.Subgroups {
			if err := w.exec(ctx, "subgroup", `
				INSERT INTO group_subgroups (supergroup_id, subgroup_id) VALUES (?, ?)
			`, g.ID, sub); err != nil {
				return err
			}
		}
	}
	return nil
}

func (w writer) channels(ctx context.Context, seed Seed) error {
	for _, c := range seed.Channels {
		if err := w.recipient(ctx, c.RecipientID, model.RecipientChannel, c.ID); err != nil {
			return err
		}
		err := w.exec(ctx, "channel", `
			INSERT INTO channels (id, realm_id, name, recipient_id, invite_only, is_web_public,
				history_public_to_subscribers, is_in_mirror_realm, deactivated)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, c.ID, c.RealmID, c.Name, c.RecipientID, c.InviteOnly, c.WebPublic,
			!c.PrivateHistory, c.MirrorRealm, c.Deactivated)
		if err != nil {
			return err
		}
	}
	return nil
}

func (w writer) groupDMs(ctx context.Context, seed Seed) error {
	for _, g := range seed.GroupDMs {
		members := slices.Clone(g.Members)
		slices.Sort(members)
		members = slices.Compact(members)

		if err := w.recipient(ctx, g.RecipientID, model.RecipientGroup, g.RecipientID); err != nil {
			return err
		}
		err := w.exec(ctx, "group dm", `
			INSERT INTO direct_message_groups (id, member_key, recipient_id) VALUES (?, ?, ?)
		`, g.RecipientID, memberKey(members), g.RecipientID)
		if err != nil {
			return err
		}
		for _, m := range members {
			if err := w.exec(ctx, "group dm subscription", `
				INSERT INTO subscriptions (user_id, recipient_id, active, is_muted) VALUES (?, ?, ?, ?)
			`, m, g.RecipientID, true, false); err != nil {
				return err
			}
		}
	}
	return nil
}

func (w writer) subscriptions(ctx context.Context, seed Seed) error {
	for _, sub := range seed.Subscriptions {
		err := w.exec(ctx, "subscription", `
			INSERT INTO subscriptions (user_id, recipient_id, active, is_muted) VALUES (?, ?, ?, ?)
		`, sub.UserID, sub.RecipientID, !sub.Inactive, sub.Muted)
		if err != nil {
			return err
		}
	}
	return nil
}

func (w writer) messages(ctx context.Context, seed Seed) error {
	for _, m := range seed.Messages {
		var (
			realmID int64
			typ     model.RecipientType
		)
		err := w.tx.QueryRowContext(ctx, w.s.rebind(`
			SELECT u.realm_id, r.type FROM users u, recipients r WHERE u.id = ? AND r.id = ?
		`), m.SenderID, m.RecipientID).Scan(&realmID, &typ)
		if err != nil {
			return notFound(err, "write message %d: sender %d or recipient %d", m.ID, m.SenderID, m.RecipientID)
		}

		rendered := m.Rendered
		if rendered == "" && m.Content != "" {
			rendered = "<p>" + html.EscapeString(m.Content) + "</p>"
		}
		err = w.exec(ctx, "message", `
			INSERT INTO messages (id, realm_id, sender_id, recipient_id, topic, content, rendered_content,
				has_attachment, has_image, has_link, is_channel_message)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, m.ID, realmID, m.SenderID, m.RecipientID, m.Topic, m.Content, rendered,
			m.HasAttachment, m.HasImage, m.HasLink, typ == model.RecipientChannel)
		if err != nil {
			return err
		}

		for _, rc := range m.Receipts {
			flags, err := model.ParseFlags(rc.Flags)
			if err != nil {
				return fmt.Errorf("write message %d: %w", m.ID, err)
			}
			if typ != model.RecipientChannel {
				flags |= model.FlagIsPrivate
			}
			if err := w.exec(ctx, "user message", `
				INSERT INTO user_messages (user_id, message_id, flags) VALUES (?, ?, ?)
			`, rc.UserID, m.ID, flags); err != nil {
				return err
			}
		}
	}
	return nil
}

func (w writer) reactions(ctx context.Context, seed Seed) error {
	for _, r := range seed.Reactions {
		err := w.exec(ctx, "reaction", `
			INSERT INTO reactions (id, message_id, user_id, emoji_name) VALUES (?, ?, ?, ?)
		`, r.ID, r.MessageID, r.UserID, r.Emoji)
		if err != nil {
			return err
		}
	}
	return nil
}

func (w writer) topics(ctx context.Context, seed Seed) error {
	for _, t := range seed.Topics {
		policy, err := model.ParseTopicVisibility(t.Policy)
		if err != nil {
			return fmt.Errorf("write topic policy: %w", err)
		}
		err = w.exec(ctx, "topic policy", `
			INSERT INTO user_topics (user_id, channel_id, recipient_id, topic_name, visibility_policy)
			SELECT ?, id, recipient_id, ?, ? FROM channels WHERE id = ?
		`, t.UserID, t.Topic, int64(policy), t.ChannelID)
		if err != nil {
			return err
		}
	}
	return nil
}

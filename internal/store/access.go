package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/narrow/internal/model"
)

type messageHeader struct {
	realmID   int64
	recipient model.Recipient
	topic     string
}

func (s *Store) messageHeader(ctx context.Context, messageID int64) (messageHeader, error) {
	var h messageHeader
	err := s.queryRow(ctx, `
		SELECT m.realm_id, r.id, r.type, r.type_id, m.topic
		FROM messages m JOIN recipients r ON r.id = m.recipient_id
		WHERE m.id = ?
	`, messageID).Scan(&h.realmID, &h.recipient.ID, &h.recipient.Type, &h.recipient.TypeID, &h.topic)
	if err != nil {
		return messageHeader{}, notFound(err, "message %d", messageID)
	}
	return h, nil
}

func (s *Store) hasUserMessage(ctx context.Context, userID, messageID int64) (bool, error) {
	var n int
	err := s.queryRow(ctx, `
		SELECT COUNT(*) FROM user_messages WHERE user_id = ? AND message_id = ?
	`, userID, messageID).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("query user message: %w", err)
	}
	return n > 0, nil
}

// conversation fills in the participants of a message's conversation.
// For a 1:1 DM that is the other party, for a group DM every member.
func (s *Store) conversation(ctx context.Context, messageID int64, h messageHeader, viewerID int64) (*model.Conversation, error) {
	conv := &model.Conversation{MessageID: messageID, Recipient: h.recipient, Topic: h.topic}
	switch h.recipient.Type {
	case model.RecipientChannel:
		conv.ChannelID = h.recipient.TypeID
	case model.RecipientPersonal:
		var sender int64
		err := s.queryRow(ctx, `SELECT sender_id FROM messages WHERE id = ?`, messageID).Scan(&sender)
		if err != nil {
			return nil, notFound(err, "message %d", messageID)
		}
		other := h.recipient.TypeID
		if other == viewerID {
			other = sender
		}
		conv.ParticipantIDs = []int64{other}
	case model.RecipientGroup:
		rows, err := s.query(ctx, `
			SELECT user_id FROM subscriptions WHERE recipient_id = ? ORDER BY user_id
		`, h.recipient.ID)
		if err != nil {
			return nil, fmt.Errorf("query group members: %w", err)
		}
		ids, err := collectIDs(rows)
		if err != nil {
			return nil, err
		}
		conv.ParticipantIDs = ids
	}
	return conv, nil
}

// AccessMessage returns the conversation of a message the viewer may
// read: one they received, or one in a channel whose history they can
// access.
func (s *Store) AccessMessage(ctx context.Context, viewer *model.Viewer, messageID int64) (*model.Conversation, error) {
	if viewer == nil {
		return nil, fmt.Errorf("access message: nil viewer")
	}
	h, err := s.messageHeader(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if h.realmID != viewer.RealmID {
		return nil, fmt.Errorf("message %d: %w", messageID, model.ErrNotFound)
	}

	received, err := s.hasUserMessage(ctx, viewer.UserID, messageID)
	if err != nil {
		return nil, err
	}
	if !received {
		if h.recipient.Type != model.RecipientChannel {
			return nil, fmt.Errorf("message %d: %w", messageID, model.ErrNotFound)
		}
		ch, err := s.ChannelByID(ctx, viewer.RealmID, h.recipient.TypeID)
		if err != nil {
			return nil, err
		}
		ok, err := s.CanAccessChannelHistory(ctx, *viewer, *ch)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("message %d: %w", messageID, model.ErrNotFound)
		}
	}
	return s.conversation(ctx, messageID, h, viewer.UserID)
}

// AccessWebPublicMessage returns the conversation of a message in an
// active web-public channel of the realm.
func (s *Store) AccessWebPublicMessage(ctx context.Context, realmID, messageID int64) (*model.Conversation, error) {
	h, err := s.messageHeader(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if h.realmID != realmID || h.recipient.Type != model.RecipientChannel {
		return nil, fmt.Errorf("message %d: %w", messageID, model.ErrNotFound)
	}
	ch, err := s.ChannelByID(ctx, realmID, h.recipient.TypeID)
	if err != nil {
		return nil, err
	}
	if !ch.WebPublic || ch.Deactivated {
		return nil, fmt.Errorf("message %d: %w", messageID, model.ErrNotFound)
	}
	return s.conversation(ctx, messageID, h, 0)
}

// QueryMessages runs a compiled fetch query and scans the rows by column
// name. Columns the query does not select keep their zero value.
func (s *Store) QueryMessages(ctx context.Context, query string, args []any) ([]model.MessageRow, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("query messages columns: %w", err)
	}

	out := []model.MessageRow{}
	for rows.Next() {
		var (
			row       model.MessageRow
			flags     sql.NullInt64
			topic     sql.NullString
			rendered  sql.NullString
			content   matchArray
			topicHits matchArray
			skip      any
		)
		dest := make([]any, len(cols))
		for i, c := range cols {
			switch c {
			case "message_id", "id":
				dest[i] = &row.ID
			case "flags":
				dest[i] = &flags
			case "escaped_topic_name":
				dest[i] = &topic
			case "rendered_content":
				dest[i] = &rendered
			case "content_matches":
				dest[i] = &content
			case "topic_matches":
				dest[i] = &topicHits
			default:
				dest[i] = &skip
			}
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scan message row: %w", err)
		}
		if flags.Valid {
			f := flags.Int64
			row.Flags = &f
		}
		row.EscapedTopic = topic.String
		row.RenderedContent = rendered.String
		row.ContentMatches = content.ranges
		row.TopicMatches = topicHits.ranges
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate message rows: %w", err)
	}
	return out, nil
}

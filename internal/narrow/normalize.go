package narrow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/roach88/narrow/internal/model"
)

// EmptyTopicFallbackName is the legacy display name of the empty topic.
const EmptyTopicFallbackName = "general chat"

// RenameGeneralChat maps the legacy "general chat" topic name to the
// empty topic. Other names pass through.
func RenameGeneralChat(topic string) string {
	if topic == EmptyTopicFallbackName {
		return ""
	}
	return topic
}

// MessageAccess resolves a message id to its conversation, enforcing read
// access. Both methods return model.ErrNotFound when the message does not
// exist or the caller may not see it.
type MessageAccess interface {
	AccessMessage(ctx context.Context, viewer *model.Viewer, messageID int64) (*model.Conversation, error)
	AccessWebPublicMessage(ctx context.Context, realmID, messageID int64) (*model.Conversation, error)
}

// Normalizer rewrites a narrow before compilation.
type Normalizer struct {
	Access MessageAccess

	// CanonicalTopic canonicalizes the first topic operand. Nil means
	// RenameGeneralChat.
	CanonicalTopic func(string) string
}

// Normalize applies the empty-topic fallback and resolves a `with` term.
// The input narrow is not modified. A nil viewer selects the anonymous
// web-public access path.
func (n *Normalizer) Normalize(ctx context.Context, realm model.Realm, viewer *model.Viewer, in Narrow) (Narrow, error) {
	out := make(Narrow, len(in))
	copy(out, in)

	out = n.renameEmptyTopic(out)
	return n.resolveWith(ctx, realm, viewer, out)
}

func (n *Normalizer) renameEmptyTopic(terms Narrow) Narrow {
	canonical := n.CanonicalTopic
	if canonical == nil {
		canonical = RenameGeneralChat
	}
	for i, t := range terms {
		if t.Op != OpTopic {
			continue
		}
		if s, ok := AsString(t.Operand); ok {
			terms[i].Operand = String(canonical(s))
		}
		break
	}
	return terms
}

func (n *Normalizer) resolveWith(ctx context.Context, realm model.Realm, viewer *model.Viewer, terms Narrow) (Narrow, error) {
	withIndex := -1
	for i, t := range terms {
		if t.Op != OpWith {
			continue
		}
		if withIndex >= 0 {
			return nil, &CombinationError{Desc: "Duplicate 'with' operators."}
		}
		withIndex = i
	}
	if withIndex < 0 {
		return terms, nil
	}

	withTerm := terms[withIndex]
	rest := make(Narrow, 0, len(terms)-1)
	rest = append(rest, terms[:withIndex]...)
	rest = append(rest, terms[withIndex+1:]...)

	messageID, ok := withMessageID(withTerm.Operand)
	if !ok {
		return nil, BadNarrow("Invalid 'with' operator")
	}

	conv, err := n.access(ctx, realm, viewer, messageID)
	if err != nil {
		if !errors.Is(err, model.ErrNotFound) {
			return nil, fmt.Errorf("resolve with operator: %w", err)
		}
		slog.Debug("with target not accessible", "message_id", messageID)
		if canDefineConversation(rest) {
			return rest, nil
		}
		return nil, BadNarrow("Invalid 'with' operator")
	}

	filtered := make(Narrow, 0, len(rest)+2)
	switch conv.Recipient.Type {
	case model.RecipientChannel:
		filtered = append(filtered,
			Term{Operator: OpChannel.String(), Op: OpChannel, Operand: Int(conv.ChannelID)},
			Term{Operator: OpTopic.String(), Op: OpTopic, Operand: String(conv.Topic)},
		)
	case model.RecipientPersonal, model.RecipientGroup:
		filtered = append(filtered,
			Term{Operator: OpDM.String(), Op: OpDM, Operand: IntList(conv.ParticipantIDs)},
		)
	default:
		return nil, &InternalError{Message: fmt.Sprintf("invalid recipient type %d for message %d", conv.Recipient.Type, messageID)}
	}
	for _, t := range rest {
		switch t.Op {
		case OpChannel, OpTopic, OpDM:
			continue
		}
		filtered = append(filtered, t)
	}
	return filtered, nil
}

func (n *Normalizer) access(ctx context.Context, realm model.Realm, viewer *model.Viewer, messageID int64) (*model.Conversation, error) {
	if n.Access == nil {
		return nil, model.ErrNotFound
	}
	if viewer != nil {
		return n.Access.AccessMessage(ctx, viewer, messageID)
	}
	return n.Access.AccessWebPublicMessage(ctx, realm.ID, messageID)
}

func withMessageID(o Operand) (int64, bool) {
	switch v := o.(type) {
	case Int:
		return int64(v), true
	case String:
		id, err := strconv.ParseInt(strings.TrimSpace(string(v)), 10, 64)
		return id, err == nil
	default:
		return 0, false
	}
}

// canDefineConversation reports whether terms alone pin down a single
// conversation: a dm term, or a channel term together with a topic term.
func canDefineConversation(terms Narrow) bool {
	var channel, topic bool
	for _, t := range terms {
		switch t.Op {
		case OpDM:
			return true
		case OpChannel:
			channel = true
		case OpTopic:
			topic = true
		}
		if channel && topic {
			return true
		}
	}
	return false
}

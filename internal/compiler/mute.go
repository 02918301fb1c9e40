package compiler

import (
	"context"
	"fmt"

	"github.com/roach88/narrow/internal/model"
	"github.com/roach88/narrow/internal/narrow"
	"github.com/roach88/narrow/internal/queryir"
)

// MuteExclusion builds the conditions that hide muted channels and topics
// from a user's view.
type MuteExclusion struct {
	Directory Directory
	Mutes     MuteSource
}

// Conditions returns the mute conditions for viewer. When n names a
// channel, only mutes inside that channel matter: channel mutes are
// skipped and topic mutes are limited to it. An unknown channel is
// ignored since the result only ever excludes rows.
func (m MuteExclusion) Conditions(ctx context.Context, realm model.Realm, viewer model.Viewer, n narrow.Narrow) ([]queryir.Predicate, error) {
	if m.Mutes == nil {
		return nil, nil
	}
	channelID := m.narrowedChannel(ctx, realm.ID, n)

	policies, err := m.Mutes.TopicPolicies(ctx, viewer.UserID)
	if err != nil {
		return nil, fmt.Errorf("topic policies: %w", err)
	}

	var conds []queryir.Predicate
	if channelID == 0 {
		muted, err := m.Mutes.MutedChannels(ctx, viewer.UserID)
		if err != nil {
			return nil, fmt.Errorf("muted channels: %w", err)
		}
		if cond := mutedChannelCondition(muted, policies); cond != nil {
			conds = append(conds, cond)
		}
	}

	var mutedTopics []queryir.Predicate
	for _, p := range policies {
		if p.Visibility != model.TopicMuted {
			continue
		}
		if channelID != 0 && p.ChannelID != channelID {
			continue
		}
		mutedTopics = append(mutedTopics, inTopic(p))
	}
	if len(mutedTopics) > 0 {
		conds = append(conds, queryir.Negate(queryir.AnyOf(mutedTopics...)))
	}
	return conds, nil
}

// mutedChannelCondition excludes muted channels except for topics the
// user explicitly unmuted or follows there.
func mutedChannelCondition(muted []model.Channel, policies []model.TopicPolicy) queryir.Predicate {
	if len(muted) == 0 {
		return nil
	}
	recipients := make([]int64, 0, len(muted))
	for _, ch := range muted {
		recipients = append(recipients, ch.RecipientID)
	}

	alts := []queryir.Predicate{
		queryir.Negate(queryir.In{Left: colRecipient, Values: recipients}),
	}
	for _, p := range policies {
		if p.Visibility != model.TopicUnmuted && p.Visibility != model.TopicFollowed {
			continue
		}
		for _, r := range recipients {
			if r == p.RecipientID {
				alts = append(alts, inTopic(p))
				break
			}
		}
	}
	return queryir.AnyOf(alts...)
}

func inTopic(p model.TopicPolicy) queryir.Predicate {
	return queryir.AllOf(
		queryir.Eq(colRecipient, queryir.Int(p.RecipientID)),
		topicMatch(colTopic, p.Topic),
	)
}

// narrowedChannel returns the id of the channel named by the first
// channel term of n, or 0.
func (m MuteExclusion) narrowedChannel(ctx context.Context, realmID int64, n narrow.Narrow) int64 {
	if m.Directory == nil {
		return 0
	}
	for _, t := range n {
		if t.Op != narrow.OpChannel {
			continue
		}
		ch, err := channelByOperand(ctx, m.Directory, realmID, t.Operand)
		if err != nil {
			return 0
		}
		return ch.ID
	}
	return 0
}

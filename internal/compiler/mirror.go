package compiler

import (
	"context"
	"fmt"
	"regexp"

	"golang.org/x/text/cases"

	"github.com/roach88/narrow/internal/queryir"
)

var (
	mirrorChannelBase = regexp.MustCompile(`^(?:un)*(.+?)(?:\.d)*$`)
	mirrorTopicBase   = regexp.MustCompile(`^(.*?)(?i:\.d)*$`)
)

// mirrorSuffixes bounds the ".d" family matched for a topic. A fixed
// list of equalities plans better than a regular expression.
const mirrorSuffixes = 4

// MirrorPolicy implements the legacy equivalences of mirror realms: a
// channel also matches its "un" prefixed and ".d" suffixed variants, and
// a topic its ".d" suffixed variants.
type MirrorPolicy struct{}

// ChannelBase strips "un" prefixes and ".d" suffixes from a case-folded
// channel name.
func (MirrorPolicy) ChannelBase(name string) string {
	folded := cases.Fold().String(name)
	if m := mirrorChannelBase.FindStringSubmatch(folded); m != nil {
		return m[1]
	}
	return folded
}

// ChannelRecipients returns the recipient ids of every active channel
// equivalent to name.
func (p MirrorPolicy) ChannelRecipients(ctx context.Context, dir Directory, realmID int64, name string) ([]int64, error) {
	family, err := regexp.Compile(`^(?:un)*` + regexp.QuoteMeta(p.ChannelBase(name)) + `(?:\.d)*$`)
	if err != nil {
		return nil, fmt.Errorf("mirror channel pattern: %w", err)
	}
	channels, err := dir.ActiveChannels(ctx, realmID)
	if err != nil {
		return nil, fmt.Errorf("active channels: %w", err)
	}

	ids := []int64{}
	for _, ch := range channels {
		if family.MatchString(cases.Fold().String(ch.Name)) {
			ids = append(ids, ch.RecipientID)
		}
	}
	return ids, nil
}

// TopicNames lists the topics equivalent to topic. The empty instance and
// "personal" are one family.
func (MirrorPolicy) TopicNames(topic string) []string {
	base := topic
	if m := mirrorTopicBase.FindStringSubmatch(topic); m != nil {
		base = m[1]
	}

	bases := []string{base}
	switch base {
	case "", "personal", `(instance "")`:
		bases = []string{"", "personal", `(instance "")`}
	}

	var names []string
	for _, b := range bases {
		name := b
		for i := 0; i <= mirrorSuffixes; i++ {
			names = append(names, name)
			name += ".d"
		}
	}
	return names
}

// TopicCondition matches any topic of the family.
func (p MirrorPolicy) TopicCondition(topic string) queryir.Predicate {
	names := p.TopicNames(topic)
	preds := make([]queryir.Predicate, len(names))
	for i, n := range names {
		preds[i] = topicMatch(colTopic, n)
	}
	return queryir.AnyOf(preds...)
}

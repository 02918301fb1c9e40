package model

import "fmt"

// Per-user message flag bits stored in user_messages.flags.
const (
	FlagRead                         int64 = 1 << 0
	FlagStarred                      int64 = 1 << 1
	FlagCollapsed                    int64 = 1 << 2
	FlagMentioned                    int64 = 1 << 3
	FlagStreamWildcardMentioned      int64 = 1 << 4
	FlagSummarizeInHome              int64 = 1 << 5
	FlagSummarizeInStream            int64 = 1 << 6
	FlagForceExpand                  int64 = 1 << 7
	FlagForceCollapse                int64 = 1 << 8
	FlagHasAlertWord                 int64 = 1 << 9
	FlagHistorical                   int64 = 1 << 10
	FlagIsPrivate                    int64 = 1 << 11
	FlagActiveMobilePushNotification int64 = 1 << 12
	FlagTopicWildcardMentioned       int64 = 1 << 13
	FlagGroupMentioned               int64 = 1 << 14
)

// MentionFlags matches any kind of mention of the user.
const MentionFlags = FlagMentioned | FlagStreamWildcardMentioned | FlagTopicWildcardMentioned | FlagGroupMentioned

// ResolvedTopicPrefix marks a topic as resolved.
const ResolvedTopicPrefix = "✔ "

var flagNames = map[string]int64{
	"read":                            FlagRead,
	"starred":                         FlagStarred,
	"collapsed":                       FlagCollapsed,
	"mentioned":                       FlagMentioned,
	"stream_wildcard_mentioned":       FlagStreamWildcardMentioned,
	"summarize_in_home":               FlagSummarizeInHome,
	"summarize_in_stream":             FlagSummarizeInStream,
	"force_expand":                    FlagForceExpand,
	"force_collapse":                  FlagForceCollapse,
	"has_alert_word":                  FlagHasAlertWord,
	"historical":                      FlagHistorical,
	"is_private":                      FlagIsPrivate,
	"active_mobile_push_notification": FlagActiveMobilePushNotification,
	"topic_wildcard_mentioned":        FlagTopicWildcardMentioned,
	"group_mentioned":                 FlagGroupMentioned,
}

// ParseFlags ORs together the named flag bits.
func ParseFlags(names []string) (int64, error) {
	var flags int64
	for _, name := range names {
		bit, ok := flagNames[name]
		if !ok {
			return 0, fmt.Errorf("unknown message flag %q", name)
		}
		flags |= bit
	}
	return flags, nil
}

package fetch

import (
	"errors"
	"strconv"
	"strings"

	"github.com/roach88/narrow/internal/compiler"
	"github.com/roach88/narrow/internal/model"
	"github.com/roach88/narrow/internal/narrow"
	"github.com/roach88/narrow/internal/queryir"
)

// AnchorSpec is the client's window request. A nil Anchor asks for the
// first unread message.
type AnchorSpec struct {
	Anchor        *int64
	NumBefore     int
	NumAfter      int
	IncludeAnchor bool
}

func (s AnchorSpec) validate() error {
	if s.NumBefore < 0 {
		return &narrow.ValidationError{Field: "num_before", Message: "must not be negative", Code: narrow.ErrCodeValidation}
	}
	if s.NumAfter < 0 {
		return &narrow.ValidationError{Field: "num_after", Message: "must not be negative", Code: narrow.ErrCodeValidation}
	}
	return nil
}

// ParseAnchor reads the anchor parameter. useFirstUnread is the legacy
// flag and wins over raw. The named anchors are oldest, newest and
// first_unread; integers are clamped into [0, model.MaxSentinel].
func ParseAnchor(raw *string, useFirstUnread bool) (*int64, error) {
	if useFirstUnread {
		return nil, nil
	}
	if raw == nil {
		return nil, narrow.BadNarrow("Missing 'anchor' argument.")
	}

	var anchor int64
	switch *raw {
	case "oldest":
		anchor = 0
	case "newest":
		anchor = model.MaxSentinel
	case "first_unread":
		return nil, nil
	default:
		text := strings.TrimSpace(*raw)
		n, err := strconv.ParseInt(text, 10, 64)
		switch {
		case err == nil:
			anchor = min(max(n, 0), model.MaxSentinel)
		case errors.Is(err, strconv.ErrRange):
			anchor = model.MaxSentinel
			if strings.HasPrefix(text, "-") {
				anchor = 0
			}
		default:
			return nil, narrow.BadNarrow("Invalid anchor")
		}
	}
	return &anchor, nil
}

// FirstUnreadQuery finds the oldest unread message of a narrow compiled
// over the per-user base. Muted conversations are skipped unless the
// narrow is a direct message narrow.
func FirstUnreadQuery(c *compiler.Compiled, messageID queryir.Col, mutes []queryir.Predicate) *queryir.Select {
	conds := []queryir.Predicate{queryir.FlagClear(colFlags, model.FlagRead)}
	if !c.IsDMNarrow {
		conds = append(conds, mutes...)
	}
	return c.Select.Filter(conds...).Ordered(1, queryir.Order{Value: messageID})
}

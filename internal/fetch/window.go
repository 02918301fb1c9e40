package fetch

import (
	"github.com/roach88/narrow/internal/model"
	"github.com/roach88/narrow/internal/queryir"
)

// Window is a resolved anchor with the counts to fetch around it.
type Window struct {
	Anchor                int64
	NumBefore             int
	NumAfter              int
	IncludeAnchor         bool
	FirstVisibleMessageID int64
}

// NewWindow resolves spec around anchor. Nothing is newer than a right
// anchor, so NumAfter is dropped there.
func NewWindow(anchor int64, spec AnchorSpec, firstVisible int64) Window {
	w := Window{
		Anchor:                anchor,
		NumBefore:             spec.NumBefore,
		NumAfter:              spec.NumAfter,
		IncludeAnchor:         spec.IncludeAnchor,
		FirstVisibleMessageID: firstVisible,
	}
	if w.AnchoredToRight() {
		w.NumAfter = 0
	}
	return w
}

func (w Window) AnchoredToLeft() bool  { return w.Anchor == 0 }
func (w Window) AnchoredToRight() bool { return w.Anchor >= model.MaxSentinel }

// PlanWindow limits sel to the window. Older messages come from a
// descending select ending before the anchor, newer ones from an
// ascending select starting at it; the anchor row goes to whichever side
// is fetched, the newer one when both are. The newer side starts no
// earlier than the first visible message. With neither side only the
// anchor itself is selected.
func PlanWindow(w Window, sel *queryir.Select, messageID queryir.Col) *queryir.Page {
	needBefore := !w.AnchoredToLeft() && w.NumBefore > 0
	needAfter := !w.AnchoredToRight() && w.NumAfter > 0

	var (
		beforeAnchor, afterAnchor int64
		beforeLimit, afterLimit   int
	)
	switch {
	case needBefore && needAfter:
		beforeAnchor = w.Anchor - 1
		afterAnchor = max(w.Anchor, w.FirstVisibleMessageID)
		beforeLimit = w.NumBefore
		afterLimit = w.NumAfter + 1
	case needBefore:
		beforeAnchor = w.Anchor
		if !w.IncludeAnchor {
			beforeAnchor--
		}
		beforeLimit = w.NumBefore
		if !w.AnchoredToRight() && w.IncludeAnchor {
			beforeLimit++
		}
	case needAfter:
		afterAnchor = w.Anchor
		if !w.IncludeAnchor {
			afterAnchor++
		}
		afterAnchor = max(afterAnchor, w.FirstVisibleMessageID)
		afterLimit = w.NumAfter
		if w.IncludeAnchor {
			afterLimit++
		}
	}

	page := &queryir.Page{OrderBy: "message_id"}
	if needBefore {
		q := sel
		if !w.AnchoredToRight() {
			q = q.Filter(queryir.Le(messageID, queryir.Int(beforeAnchor)))
		}
		page.Parts = append(page.Parts, q.Ordered(beforeLimit, queryir.Order{Value: messageID, Desc: true}))
	}
	if needAfter {
		q := sel
		if !w.AnchoredToLeft() {
			q = q.Filter(queryir.Ge(messageID, queryir.Int(afterAnchor)))
		}
		page.Parts = append(page.Parts, q.Ordered(afterLimit, queryir.Order{Value: messageID}))
	}
	if !needBefore && !needAfter {
		page.Parts = append(page.Parts, sel.Filter(queryir.Eq(messageID, queryir.Int(w.Anchor))))
	}
	return page
}

package fetch

import "github.com/roach88/narrow/internal/model"

// PaginationResult is one trimmed page. Rows ascend by id.
type PaginationResult struct {
	Rows           []model.MessageRow `json:"messages"`
	FoundAnchor    bool               `json:"found_anchor"`
	FoundNewest    bool               `json:"found_newest"`
	FoundOldest    bool               `json:"found_oldest"`
	HistoryLimited bool               `json:"history_limited"`
}

// PostProcess trims the rows of a planned window to exactly NumBefore
// rows older than the anchor, the anchor row, and NumAfter newer rows,
// and reports whether either end of the narrow was reached.
//
// HistoryLimited is only set when the visibility floor hid rows and the
// oldest end was reached. A floor that moved the anchor itself up is not
// reported.
func PostProcess(w Window, rows []model.MessageRow) PaginationResult {
	visible := rows
	if w.FirstVisibleMessageID > 0 {
		visible = make([]model.MessageRow, 0, len(rows))
		for _, r := range rows {
			if r.ID >= w.FirstVisibleMessageID {
				visible = append(visible, r)
			}
		}
	}
	rowsLimited := len(visible) != len(rows)

	numAfter := w.NumAfter
	var before, anchor, after []model.MessageRow
	if w.AnchoredToRight() {
		numAfter = 0
		before = visible
	} else {
		for _, r := range visible {
			switch {
			case r.ID < w.Anchor:
				before = append(before, r)
			case r.ID == w.Anchor:
				anchor = append(anchor, r)
			default:
				after = append(after, r)
			}
		}
	}

	if w.NumBefore > 0 && len(before) > w.NumBefore {
		before = before[len(before)-w.NumBefore:]
	}
	if numAfter > 0 && len(after) > numAfter {
		after = after[:numAfter]
	}

	out := make([]model.MessageRow, 0, len(before)+len(anchor)+len(after))
	out = append(out, before...)
	out = append(out, anchor...)
	out = append(out, after...)

	foundOldest := w.AnchoredToLeft() || len(before) < w.NumBefore
	return PaginationResult{
		Rows:           out,
		FoundAnchor:    len(anchor) == 1,
		FoundNewest:    w.AnchoredToRight() || len(after) < numAfter,
		FoundOldest:    foundOldest,
		HistoryLimited: rowsLimited && foundOldest,
	}
}

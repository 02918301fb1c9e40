package fetch

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/roach88/narrow/internal/model"
)

func rowsOf(ids ...int64) []model.MessageRow {
	rows := make([]model.MessageRow, 0, len(ids))
	for _, id := range ids {
		rows = append(rows, model.MessageRow{ID: id})
	}
	return rows
}

func idsOf(rows []model.MessageRow) []int64 {
	ids := make([]int64, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, r.ID)
	}
	return ids
}

func TestPostProcess(t *testing.T) {
	tests := []struct {
		name   string
		window Window
		rows   []int64
		want   []int64
		anchor bool
		oldest bool
		newest bool
		hist   bool
	}{
		{
			name:   "both sides trimmed to counts",
			window: Window{Anchor: 50, NumBefore: 2, NumAfter: 2},
			rows:   []int64{47, 48, 49, 50, 51, 52, 53},
			want:   []int64{48, 49, 50, 51, 52},
			anchor: true,
		},
		{
			name:   "short sides reach both ends",
			window: Window{Anchor: 50, NumBefore: 5, NumAfter: 5},
			rows:   []int64{49, 50, 51},
			want:   []int64{49, 50, 51},
			anchor: true,
			oldest: true,
			newest: true,
		},
		{
			name:   "missing anchor",
			window: Window{Anchor: 50, NumBefore: 1, NumAfter: 1},
			rows:   []int64{40, 60, 70},
			want:   []int64{40, 60},
		},
		{
			name:   "left anchor is always oldest",
			window: Window{Anchor: 0, NumAfter: 2},
			rows:   []int64{1, 2, 3},
			want:   []int64{1, 2},
			oldest: true,
		},
		{
			name:   "right anchor keeps every row as before",
			window: Window{Anchor: model.MaxSentinel, NumBefore: 3, NumAfter: 9},
			rows:   []int64{7, 8, 9},
			want:   []int64{7, 8, 9},
			newest: true,
		},
		{
			name:   "right anchor with spare capacity finds oldest",
			window: Window{Anchor: model.MaxSentinel, NumBefore: 4},
			rows:   []int64{7, 8, 9},
			want:   []int64{7, 8, 9},
			oldest: true,
			newest: true,
		},
		{
			name:   "zero counts keep only the anchor",
			window: Window{Anchor: 50},
			rows:   []int64{50},
			want:   []int64{50},
			anchor: true,
		},
		{
			name:   "floor hides rows and oldest reached",
			window: Window{Anchor: model.MaxSentinel, NumBefore: 10, FirstVisibleMessageID: 20},
			rows:   []int64{18, 19, 20, 21},
			want:   []int64{20, 21},
			oldest: true,
			newest: true,
			hist:   true,
		},
		{
			name:   "floor hides rows but oldest not reached",
			window: Window{Anchor: model.MaxSentinel, NumBefore: 2, FirstVisibleMessageID: 20},
			rows:   []int64{19, 20, 21, 22},
			want:   []int64{21, 22},
			newest: true,
		},
		{
			// The floor moved the after query up, so nothing was filtered
			// here and the hidden history goes unreported.
			name:   "floor that moved the anchor is not reported",
			window: Window{Anchor: 0, NumAfter: 2, FirstVisibleMessageID: 20},
			rows:   []int64{20, 21},
			want:   []int64{20, 21},
			oldest: true,
		},
		{
			name:   "empty",
			window: Window{Anchor: 50, NumBefore: 3, NumAfter: 3},
			want:   []int64{},
			oldest: true,
			newest: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := PostProcess(tt.window, rowsOf(tt.rows...))
			assert.Equal(t, tt.want, idsOf(got.Rows))
			assert.Equal(t, tt.anchor, got.FoundAnchor, "found_anchor")
			assert.Equal(t, tt.oldest, got.FoundOldest, "found_oldest")
			assert.Equal(t, tt.newest, got.FoundNewest, "found_newest")
			assert.Equal(t, tt.hist, got.HistoryLimited, "history_limited")
		})
	}
}

func TestPostProcess_KeepsRowFields(t *testing.T) {
	flags := model.FlagStarred
	rows := []model.MessageRow{{ID: 5, Flags: &flags, EscapedTopic: "lunch"}}

	got := PostProcess(Window{Anchor: 5}, rows)
	assert.Equal(t, rows, got.Rows)
}

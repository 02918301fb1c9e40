package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/narrow/internal/fetch"
	"github.com/roach88/narrow/internal/model"
	"github.com/roach88/narrow/internal/narrow"
)

func rowIDs(rows []model.MessageRow) []int64 {
	ids := make([]int64, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, r.ID)
	}
	return ids
}

func fetchJSON(t *testing.T, cfg string, args ...string) fetch.FetchedMessages {
	t.Helper()
	out, _, err := execute(t, append([]string{"--config", cfg, "--format", "json", "fetch"}, args...)...)
	require.NoError(t, err, out)
	return decodeData[fetch.FetchedMessages](t, out)
}

func TestFetch_Windows(t *testing.T) {
	cfg := seededConfig(t)

	tests := []struct {
		name       string
		args       []string
		wantIDs    []int64
		wantAnchor int64
		wantFound  [3]bool // anchor, oldest, newest
		history    bool
	}{
		{
			name:       "newest in channel",
			args:       []string{"--user", "10", "--anchor", "newest", "--num-before", "100", `[["channel", "Verona"]]`},
			wantIDs:    []int64{1, 2, 3, 5, 9, 12},
			wantAnchor: model.MaxSentinel,
			wantFound:  [3]bool{false, true, true},
			history:    true,
		},
		{
			name:       "around an id",
			args:       []string{"--user", "10", "--anchor", "5", "--num-before", "1", "--num-after", "1", `[]`},
			wantIDs:    []int64{4, 5, 6},
			wantAnchor: 5,
			wantFound:  [3]bool{true, false, false},
		},
		{
			name:       "first unread skips muted",
			args:       []string{"--user", "10", "--anchor", "first_unread", "--num-before", "1", "--num-after", "1", `[]`},
			wantIDs:    []int64{4, 5, 6},
			wantAnchor: 5,
			wantFound:  [3]bool{true, false, false},
		},
		{
			name:       "legacy first unread flag",
			args:       []string{"--user", "10", "--use-first-unread-anchor", "--anchor", "oldest", "--num-after", "1", `[]`},
			wantIDs:    []int64{5, 6},
			wantAnchor: 5,
			wantFound:  [3]bool{true, false, false},
		},
		{
			name:       "exclude anchor",
			args:       []string{"--user", "10", "--anchor", "5", "--num-after", "2", "--include-anchor=false", `[]`},
			wantIDs:    []int64{6, 7},
			wantAnchor: 5,
			wantFound:  [3]bool{false, false, false},
		},
		{
			name:       "anonymous web-public",
			args:       []string{"--anchor", "oldest", "--num-after", "2", `[["channels", "web-public"]]`},
			wantIDs:    []int64{1, 2},
			wantAnchor: 0,
			wantFound:  [3]bool{false, true, false},
			history:    true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := fetchJSON(t, cfg, tt.args...)
			assert.Equal(t, tt.wantIDs, rowIDs(got.Rows))
			require.NotNil(t, got.Anchor)
			assert.Equal(t, tt.wantAnchor, *got.Anchor)
			assert.Equal(t, tt.wantFound, [3]bool{got.FoundAnchor, got.FoundOldest, got.FoundNewest})
			assert.Equal(t, tt.history, got.IncludeHistory)
		})
	}
}

func TestFetch_ExplicitIDs(t *testing.T) {
	cfg := seededConfig(t)
	got := fetchJSON(t, cfg, "--user", "10", "--ids", "6,4,5", `[]`)

	assert.Equal(t, []int64{4, 5, 6}, rowIDs(got.Rows))
	assert.Nil(t, got.Anchor)
	assert.False(t, got.FoundAnchor)
	assert.False(t, got.FoundOldest)
	assert.False(t, got.FoundNewest)
	for _, r := range got.Rows {
		assert.NotNil(t, r.Flags, "received rows carry flags")
	}
}

func TestFetch_Text(t *testing.T) {
	cfg := seededConfig(t)
	out, _, err := execute(t, "--config", cfg, "fetch", "--user", "10",
		"--anchor", "newest", "--num-before", "1", `[{"operator": "dm", "operand": [11]}]`)
	require.NoError(t, err)

	assert.Contains(t, out, "1 message(s), anchor newest\n")
	assert.Contains(t, out, "  11  flags=")
	assert.Contains(t, out, "found: newest\n")
	assert.Contains(t, out, "include_history=false search=false")
}

func TestFetch_Errors(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		wantCode string
		wantMsg  string
	}{
		{"missing anchor", []string{"--user", "10", `[]`}, narrow.ErrCodeBadNarrow, "Missing 'anchor' argument."},
		{"bad anchor", []string{"--user", "10", "--anchor", "latest", `[]`}, narrow.ErrCodeBadNarrow, "Invalid anchor"},
		{"negative count", []string{"--user", "10", "--anchor", "5", "--num-before=-1", `[]`}, narrow.ErrCodeValidation, "num_before"},
		{"bad narrow", []string{"--user", "10", "--anchor", "5", `[["is", "shiny"]]`}, narrow.ErrCodeBadNarrow, "unknown 'is' operand shiny"},
		{"anonymous flag", []string{"--anchor", "5", `[["channels", "web-public"], ["is", "starred"]]`}, narrow.ErrCodeBadNarrow, "is:starred is not allowed in web-public queries"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := seededConfig(t)
			args := append([]string{"--config", cfg, "--format", "json", "fetch"}, tt.args...)
			out, _, err := execute(t, args...)
			require.Error(t, err)
			assert.Equal(t, ExitFailure, GetExitCode(err))

			got := decodeError(t, out)
			assert.Equal(t, tt.wantCode, got.Code)
			assert.Contains(t, got.Message, tt.wantMsg)
		})
	}
}

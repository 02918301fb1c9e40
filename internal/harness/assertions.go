package harness

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/roach88/narrow/internal/model"
)

// formatAnchor renders a resolved anchor: "none" for explicit id
// fetches, "newest" for the right sentinel, else the id.
func formatAnchor(a *int64) string {
	switch {
	case a == nil:
		return "none"
	case *a >= model.MaxSentinel:
		return "newest"
	default:
		return strconv.FormatInt(*a, 10)
	}
}

func canonicalAnchor(s string) string {
	if s == "oldest" {
		return "0"
	}
	return s
}

// checkStep compares a step's result with its expectations and returns
// one message per mismatch.
func checkStep(step FetchStep, got StepResult) []string {
	e := step.Expect
	if e == nil {
		if got.ErrorCode != "" || got.Error != "" {
			return []string{mismatch(step.Name, "error", "none", got.Error)}
		}
		return nil
	}

	var out []string
	if e.Error != "" || got.Error != "" {
		if got.ErrorCode != e.Error {
			out = append(out, mismatch(step.Name, "error", orNone(e.Error), orNone(got.ErrorCode)+" "+got.Error))
		}
		if e.ErrorContains != "" && !strings.Contains(got.Error, e.ErrorContains) {
			out = append(out, mismatch(step.Name, "error text", fmt.Sprintf("containing %q", e.ErrorContains), got.Error))
		}
		return out
	}

	if e.IDs != nil && !slices.Equal(e.IDs, got.IDs) {
		out = append(out, mismatch(step.Name, "ids", fmt.Sprint(e.IDs), fmt.Sprint(got.IDs)))
	}
	if e.Anchor != nil && canonicalAnchor(*e.Anchor) != formatAnchor(got.Anchor) {
		out = append(out, mismatch(step.Name, "anchor", *e.Anchor, formatAnchor(got.Anchor)))
	}
	if e.Found != nil {
		want := slices.Sorted(slices.Values(e.Found))
		have := slices.Sorted(slices.Values(got.Found))
		if !slices.Equal(want, have) {
			out = append(out, mismatch(step.Name, "found", fmt.Sprint(want), fmt.Sprint(have)))
		}
	}
	if e.IncludeHistory != nil && *e.IncludeHistory != got.IncludeHistory {
		out = append(out, mismatch(step.Name, "include_history", strconv.FormatBool(*e.IncludeHistory), strconv.FormatBool(got.IncludeHistory)))
	}
	if e.Search != nil && *e.Search != got.Search {
		out = append(out, mismatch(step.Name, "search", strconv.FormatBool(*e.Search), strconv.FormatBool(got.Search)))
	}
	return out
}

func mismatch(step, what, want, got string) string {
	return fmt.Sprintf("step %q: %s: expected %s, got %s", step, what, want, got)
}

func orNone(s string) string {
	if s == "" {
		return "none"
	}
	return s
}

package harness

import (
	"fmt"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"
)

// Snapshot renders a result one step per line, in a form stable enough
// for golden comparison.
func Snapshot(name string, r *Result) []byte {
	var buf strings.Builder
	fmt.Fprintf(&buf, "scenario %s\n", name)
	for _, s := range r.Steps {
		if s.Error != "" {
			fmt.Fprintf(&buf, "%s: error %s %s\n", s.Name, orNone(s.ErrorCode), s.Error)
			continue
		}
		found := "-"
		if len(s.Found) > 0 {
			found = strings.Join(s.Found, ",")
		}
		fmt.Fprintf(&buf, "%s: ids=%v anchor=%s found=%s history=%t search=%t\n",
			s.Name, s.IDs, formatAnchor(s.Anchor), found, s.IncludeHistory, s.Search)
	}
	return []byte(buf.String())
}

// RunWithGolden runs the scenario, fails t on any unmet expectation and
// compares the snapshot with testdata/golden/{name}.golden.
func RunWithGolden(t *testing.T, s *Scenario) *Result {
	t.Helper()

	result := Run(t, s)
	for _, err := range result.Errors {
		t.Error(err)
	}
	AssertGolden(t, s.Name, result)
	return result
}

// AssertGolden compares an existing result with its golden file.
func AssertGolden(t *testing.T, name string, result *Result) {
	t.Helper()
	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, Snapshot(name, result))
}

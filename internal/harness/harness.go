package harness

import (
	"context"
	"os"
	"testing"

	"github.com/roach88/narrow/internal/fetch"
	"github.com/roach88/narrow/internal/model"
	"github.com/roach88/narrow/internal/narrow"
	"github.com/roach88/narrow/internal/testutil"
)

// Result is the outcome of a scenario.
type Result struct {
	// Pass is true when every expectation matched.
	Pass bool `json:"pass"`

	Steps []StepResult `json:"steps"`

	// Errors are the failed expectations, one per mismatch.
	Errors []string `json:"errors,omitempty"`
}

// StepResult is what one fetch produced.
type StepResult struct {
	Name           string   `json:"name"`
	IDs            []int64  `json:"ids"`
	Anchor         *int64   `json:"anchor,omitempty"`
	Found          []string `json:"found"`
	IncludeHistory bool     `json:"include_history"`
	Search         bool     `json:"search"`
	ErrorCode      string   `json:"error_code,omitempty"`
	Error          string   `json:"error,omitempty"`
}

func (r *Result) addError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// Run seeds a fresh store, applies the setup and runs every step in
// order. Step failures are recorded, not fatal; a broken seed or setup
// fails t.
func Run(t *testing.T, s *Scenario) *Result {
	t.Helper()

	seed := testutil.DefaultWorld()
	if s.Seed != "" {
		data, err := os.ReadFile(s.Seed)
		if err != nil {
			t.Fatalf("read seed: %v", err)
		}
		seed = data
	}
	w := testutil.LoadWorld(t, seed, s.Realm)

	for _, step := range s.Setup {
		send := step.Send
		w.Send(t, send.Sender, send.Recipient, send.Topic, send.Count, send.Receivers...)
	}

	engine := fetch.New(w.Store, fetch.WithRequestIDs(fetch.NewFixedGenerator(s.RequestID)))
	result := &Result{Pass: true, Steps: make([]StepResult, 0, len(s.Steps))}
	for _, step := range s.Steps {
		var viewer *model.Viewer
		if step.Viewer != 0 {
			viewer = w.Viewer(t, step.Viewer)
		}
		got := runStep(context.Background(), engine, w.Realm, viewer, step)
		result.Steps = append(result.Steps, got)
		for _, mismatch := range checkStep(step, got) {
			result.addError(mismatch)
		}
	}
	return result
}

func runStep(ctx context.Context, engine *fetch.Engine, realm model.Realm, viewer *model.Viewer, step FetchStep) StepResult {
	got := StepResult{Name: step.Name, IDs: []int64{}, Found: []string{}}
	fail := func(err error) StepResult {
		got.ErrorCode = narrow.Code(err)
		got.Error = err.Error()
		return got
	}

	n, err := narrow.ParseNarrow([]byte(step.Narrow))
	if err != nil {
		return fail(err)
	}

	spec := fetch.AnchorSpec{
		NumBefore:     step.NumBefore,
		NumAfter:      step.NumAfter,
		IncludeAnchor: step.IncludeAnchor == nil || *step.IncludeAnchor,
	}
	if step.IDs == nil {
		spec.Anchor, err = fetch.ParseAnchor(step.Anchor, step.UseFirstUnread)
		if err != nil {
			return fail(err)
		}
	}

	res, err := engine.Fetch(ctx, fetch.Request{Realm: realm, Viewer: viewer, Narrow: n}, spec, step.IDs)
	if err != nil {
		return fail(err)
	}

	for _, r := range res.Rows {
		got.IDs = append(got.IDs, r.ID)
	}
	got.Anchor = res.Anchor
	got.IncludeHistory = res.IncludeHistory
	got.Search = res.IsSearch
	for _, f := range []struct {
		name string
		set  bool
	}{
		{FoundAnchor, res.FoundAnchor},
		{FoundOldest, res.FoundOldest},
		{FoundNewest, res.FoundNewest},
		{HistoryLimited, res.HistoryLimited},
	} {
		if f.set {
			got.Found = append(got.Found, f.name)
		}
	}
	return got
}

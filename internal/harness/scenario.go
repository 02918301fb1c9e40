package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"gopkg.in/yaml.v3"
)

// Scenario is a sequence of fetches against one seeded world.
type Scenario struct {
	// Name identifies the scenario and its golden file.
	Name string `yaml:"name"`

	Description string `yaml:"description"`

	// Seed is a YAML seed path, relative to the scenario file. Empty
	// means the default test world.
	Seed string `yaml:"seed,omitempty"`

	// Realm is the realm every step runs in. Default: 1.
	Realm int64 `yaml:"realm,omitempty"`

	// Setup appends messages before the steps run.
	Setup []SendStep `yaml:"setup,omitempty"`

	Steps []FetchStep `yaml:"steps"`

	// RequestID is stamped on every fetch. Default: "scenario".
	RequestID string `yaml:"request_id,omitempty"`
}

// SendStep appends Count messages with fresh ids.
type SendStep struct {
	Send struct {
		Sender    int64   `yaml:"sender"`
		Recipient int64   `yaml:"recipient"`
		Topic     string  `yaml:"topic"`
		Count     int     `yaml:"count"`
		Receivers []int64 `yaml:"receivers"`
	} `yaml:"send"`
}

// FetchStep is one fetch and what it should return.
type FetchStep struct {
	Name string `yaml:"name"`

	// Viewer is a user id; zero is anonymous.
	Viewer int64 `yaml:"viewer,omitempty"`

	// Narrow is the JSON narrow, exactly as a client sends it.
	Narrow string `yaml:"narrow"`

	// Anchor is the raw anchor parameter; nil when absent.
	Anchor         *string `yaml:"anchor,omitempty"`
	UseFirstUnread bool    `yaml:"use_first_unread_anchor,omitempty"`
	NumBefore      int     `yaml:"num_before,omitempty"`
	NumAfter       int     `yaml:"num_after,omitempty"`
	IncludeAnchor  *bool   `yaml:"include_anchor,omitempty"`

	// IDs switches to an explicit id fetch.
	IDs []int64 `yaml:"ids,omitempty"`

	Expect *Expect `yaml:"expect,omitempty"`
}

// Expect lists what a step must produce. Unset fields are not checked.
type Expect struct {
	IDs            []int64  `yaml:"ids,omitempty"`
	Anchor         *string  `yaml:"anchor,omitempty"`
	Found          []string `yaml:"found,omitempty"`
	IncludeHistory *bool    `yaml:"include_history,omitempty"`
	Search         *bool    `yaml:"search,omitempty"`

	// Error is the expected error code; ErrorContains a substring of the
	// error text.
	Error         string `yaml:"error,omitempty"`
	ErrorContains string `yaml:"error_contains,omitempty"`
}

// Found flag names.
const (
	FoundAnchor    = "anchor"
	FoundOldest    = "oldest"
	FoundNewest    = "newest"
	HistoryLimited = "history_limited"
)

var foundNames = []string{FoundAnchor, FoundOldest, FoundNewest, HistoryLimited}

// LoadScenario reads and parses a scenario YAML file. Unknown keys are
// rejected so typos fail loudly. The seed path is resolved against the
// scenario's directory.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if scenario.Seed != "" && !filepath.IsAbs(scenario.Seed) {
		scenario.Seed = filepath.Join(filepath.Dir(path), scenario.Seed)
	}
	if scenario.Realm == 0 {
		scenario.Realm = 1
	}
	if scenario.RequestID == "" {
		scenario.RequestID = "scenario"
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}
	if s.Seed != "" {
		if _, err := os.Stat(s.Seed); err != nil {
			return fmt.Errorf("seed file not found: %s", s.Seed)
		}
	}

	for i, step := range s.Setup {
		if step.Send.Count <= 0 {
			return fmt.Errorf("setup[%d]: send count must be positive", i)
		}
		if step.Send.Sender == 0 || step.Send.Recipient == 0 {
			return fmt.Errorf("setup[%d]: sender and recipient are required", i)
		}
	}

	seen := make(map[string]bool, len(s.Steps))
	for i, step := range s.Steps {
		if step.Name == "" {
			return fmt.Errorf("steps[%d]: name is required", i)
		}
		if seen[step.Name] {
			return fmt.Errorf("steps[%d]: duplicate step name %q", i, step.Name)
		}
		seen[step.Name] = true

		if step.Narrow == "" {
			return fmt.Errorf("steps[%d]: narrow is required (use '[]' for all messages)", i)
		}
		if step.IDs != nil && (step.Anchor != nil || step.UseFirstUnread) {
			return fmt.Errorf("steps[%d]: ids and anchor are exclusive", i)
		}
		if step.Expect == nil {
			continue
		}
		if step.Expect.Error == "" && step.Expect.ErrorContains != "" {
			return fmt.Errorf("steps[%d].expect: error_contains needs error", i)
		}
		for _, f := range step.Expect.Found {
			if !slices.Contains(foundNames, f) {
				return fmt.Errorf("steps[%d].expect: unknown found flag %q", i, f)
			}
		}
	}
	return nil
}

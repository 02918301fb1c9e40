package harness

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScenarios(t *testing.T) {
	paths, err := filepath.Glob(filepath.Join("testdata", "scenarios", "*.yaml"))
	require.NoError(t, err)
	require.NotEmpty(t, paths)

	for _, path := range paths {
		name := strings.TrimSuffix(filepath.Base(path), ".yaml")
		t.Run(name, func(t *testing.T) {
			scenario, err := LoadScenario(path)
			require.NoError(t, err)
			require.Equal(t, name, scenario.Name, "golden files are keyed by scenario name")

			result := RunWithGolden(t, scenario)
			assert.True(t, result.Pass)
			assert.Len(t, result.Steps, len(scenario.Steps))
		})
	}
}

func TestRun_RecordsMismatches(t *testing.T) {
	scenario := &Scenario{
		Name:        "mismatch",
		Description: "Expectations that do not hold",
		Realm:       1,
		RequestID:   "req-1",
		Steps: []FetchStep{
			{
				Name:      "wrong ids",
				Viewer:    10,
				Narrow:    `[["is", "starred"]]`,
				Anchor:    ptr("newest"),
				NumBefore: 10,
				Expect:    &Expect{IDs: []int64{1}},
			},
			{
				Name:   "unexpected error",
				Viewer: 10,
				Narrow: `[["is", "shiny"]]`,
				Anchor: ptr("newest"),
			},
		},
	}

	result := Run(t, scenario)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 2)
	assert.Equal(t, `step "wrong ids": ids: expected [1], got [5]`, result.Errors[0])
	assert.Contains(t, result.Errors[1], `step "unexpected error": error: expected none`)
	assert.Equal(t, "E201", result.Steps[1].ErrorCode)
}

func TestRun_SetupAndCustomSeed(t *testing.T) {
	scenario, err := LoadScenario(writeScenario(t, `
name: tiny
description: A two-user realm.
seed: seed.yaml
setup:
  - send: {sender: 10, recipient: 201, topic: hello, count: 3, receivers: [10, 11]}
steps:
  - name: as bob
    viewer: 11
    narrow: '[["channel", "lobby"]]'
    anchor: oldest
    num_after: 10
    expect:
      ids: [1, 2, 3]
      found: [oldest, newest]
`, tinySeed))
	require.NoError(t, err)

	result := Run(t, scenario)
	assert.Empty(t, result.Errors)
	assert.True(t, result.Pass)
}

const tinySeed = `
realms:
  - {id: 1, name: tiny}
users:
  - {id: 10, realm: 1, email: ann@tiny.test, full_name: Ann, recipient: 110}
  - {id: 11, realm: 1, email: bob@tiny.test, full_name: Bob, recipient: 111}
channels:
  - {id: 1, realm: 1, name: lobby, recipient: 201}
subscriptions:
  - {user: 10, recipient: 201}
  - {user: 11, recipient: 201}
`

func ptr[T any](v T) *T { return &v }

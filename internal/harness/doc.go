// Package harness runs fetch scenarios described in YAML against a seeded
// SQLite store and snapshots the pages they produce.
//
// # Scenario Format
//
//	name: scenario_name
//	description: "What this scenario validates"
//	seed: ../fixtures/world.yaml   # optional; the default test world otherwise
//	realm: 1
//	setup:
//	  - send: {sender: 11, recipient: 202, topic: castle, count: 10, receivers: [10, 11]}
//	steps:
//	  - name: newest
//	    viewer: 10                   # omit for an anonymous web-public fetch
//	    narrow: '[["channel", "Denmark"]]'
//	    anchor: newest
//	    num_before: 3
//	    expect:
//	      ids: [23, 24, 25]
//	      found: [newest]
//	      include_history: true
//	  - name: unknown channel
//	    viewer: 10
//	    narrow: '[["channel", "nowhere"]]'
//	    anchor: newest
//	    expect:
//	      error: E201
//	      error_contains: unknown channel nowhere
//
// Expectations are subset checks: only the keys a step names are
// compared. include_anchor defaults to true. A step with ids fetches
// exactly those messages and takes no anchor.
//
// # Golden Snapshots
//
// RunWithGolden renders every step as one line and compares the result
// with testdata/golden/{name}.golden. Regenerate with:
//
//	go test ./internal/harness -update
package harness

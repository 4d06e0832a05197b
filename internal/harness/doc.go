// Package harness runs graph scenarios and compares their execution traces
// against golden files.
//
// # Scenario Format
//
// Scenarios are YAML files:
//
//	name: frame_rerun
//	description: "FrameNumber reruns every frame, the constant only once"
//	document: docs/frame.cue
//	mode: checked
//	frames: {begin: 1, end: 3}
//	edits:
//	  - frame: 3
//	    op: ["setNodeParam", "k", "value", 10]
//	assertions:
//	  - type: output
//	    frame: 2
//	    node: view
//	    socket: object
//	    equals: 4
//	  - type: executed
//	    frame: 3
//	    nodes: [frame, k, mul, view]
//
// The document path is relative to the scenario file. Edits are applied
// through the session edit queue before the frame they name; op edits use
// the op sequence form, and remove_node and unbind cover removals.
//
// # Assertion Types
//
//   - output: a target socket's value at a frame
//   - executed: the exact nodes computed at a frame, in order
//   - execution_count: how often a node was computed, at one frame or overall
//   - frame_completed: whether a frame completed, checked against both the
//     frame signal and the pass store
//   - failed: the error code a target failed with at a frame
//
// # Deterministic Testing
//
// Every scenario runs against a fresh in-memory store with a fixed run
// token, so traces are identical across runs and safe to compare against
// testdata/golden.
package harness

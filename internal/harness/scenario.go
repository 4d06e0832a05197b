package harness

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/roach88/dopgraph/internal/oplog"
)

// Scenario defines a graph test scenario: a document, a frame range, the
// edits made along the way and assertions on what each frame computed.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Document is the .cue or .json document to load.
	Document string `yaml:"document"`

	// Mode is the replay mode, checked (default) or bulk.
	Mode string `yaml:"mode,omitempty"`

	// Targets are evaluated alongside the view sinks.
	Targets []string `yaml:"targets,omitempty"`

	// Frames is the inclusive frame range to run.
	Frames FrameRange `yaml:"frames"`

	// Edits are applied before the frame they name.
	Edits []EditStep `yaml:"edits,omitempty"`

	// Assertions validate the frame reports and trace.
	Assertions []Assertion `yaml:"assertions"`

	// RunToken is an optional fixed run token. If empty, defaults to
	// "test-run-default".
	RunToken string `yaml:"run_token,omitempty"`
}

// FrameRange is an inclusive range of frame numbers.
type FrameRange struct {
	Begin int `yaml:"begin"`
	End   int `yaml:"end"`
}

// EditStep is one graph edit. Exactly one of Op, RemoveNode and Unbind is
// set.
type EditStep struct {
	// Frame is the frame the edit is applied before.
	Frame int `yaml:"frame"`

	// Op is an op in its JSON array form, e.g.
	// ["setNodeParam", "k", "value", 10].
	Op []any `yaml:"op,omitempty"`

	// RemoveNode removes a node and its links.
	RemoveNode string `yaml:"remove_node,omitempty"`

	// Unbind removes the link into an input socket.
	Unbind *SocketRef `yaml:"unbind,omitempty"`
}

// SocketRef names a node socket.
type SocketRef struct {
	Node   string `yaml:"node"`
	Socket string `yaml:"socket"`
}

// decodeOp converts the YAML op into an oplog.Op.
func (s EditStep) decodeOp() (oplog.Op, error) {
	var op oplog.Op
	data, err := json.Marshal(s.Op)
	if err != nil {
		return op, err
	}
	if err := json.Unmarshal(data, &op); err != nil {
		return op, err
	}
	return op, nil
}

// Assertion validates frame results.
type Assertion struct {
	// Type is one of output, executed, execution_count, frame_completed
	// or failed.
	Type string `yaml:"type"`

	// Frame is the frame asserted on. execution_count treats 0 as every
	// frame.
	Frame int `yaml:"frame,omitempty"`

	// Node is the target or node (output, execution_count, failed).
	Node string `yaml:"node,omitempty"`

	// Socket is the output socket (output).
	Socket string `yaml:"socket,omitempty"`

	// Equals is the expected value (output).
	Equals any `yaml:"equals,omitempty"`

	// Nodes is the exact execution order (executed).
	Nodes []string `yaml:"nodes,omitempty"`

	// Count is the expected number of executions (execution_count).
	Count int `yaml:"count,omitempty"`

	// Completed is the expected completion (frame_completed).
	Completed *bool `yaml:"completed,omitempty"`

	// Code is the expected error code (failed).
	Code string `yaml:"code,omitempty"`
}

// Assertion type constants.
const (
	AssertOutput         = "output"
	AssertExecuted       = "executed"
	AssertExecutionCount = "execution_count"
	AssertFrameCompleted = "frame_completed"
	AssertFailed         = "failed"
)

// LoadScenario reads and parses a scenario YAML file. The document path
// is resolved relative to the scenario file.
func LoadScenario(path string) (*Scenario, error) {
	return LoadScenarioWithBasePath(path, filepath.Dir(path))
}

// LoadScenarioWithBasePath reads and parses a scenario YAML file,
// resolving the document path relative to basePath.
func LoadScenarioWithBasePath(path, basePath string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	// KnownFields catches typos like "assertion:" vs "assertions:".
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if scenario.Document != "" && !filepath.IsAbs(scenario.Document) && basePath != "" {
		scenario.Document = filepath.Join(basePath, scenario.Document)
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
	if s.Document == "" {
		return fmt.Errorf("document is required")
	}
	if _, err := os.Stat(s.Document); os.IsNotExist(err) {
		return fmt.Errorf("document not found: %s", s.Document)
	}
	if _, err := oplog.ParseMode(s.Mode); err != nil {
		return err
	}
	if s.Frames.End < s.Frames.Begin {
		return fmt.Errorf("frames: end %d is before begin %d", s.Frames.End, s.Frames.Begin)
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	for i, step := range s.Edits {
		if step.Frame < s.Frames.Begin || step.Frame > s.Frames.End {
			return fmt.Errorf("edits[%d]: frame %d is outside %d..%d", i, step.Frame, s.Frames.Begin, s.Frames.End)
		}
		set := 0
		if step.Op != nil {
			set++
			if _, err := step.decodeOp(); err != nil {
				return fmt.Errorf("edits[%d].op: %w", i, err)
			}
		}
		if step.RemoveNode != "" {
			set++
		}
		if step.Unbind != nil {
			set++
			if step.Unbind.Node == "" || step.Unbind.Socket == "" {
				return fmt.Errorf("edits[%d].unbind: node and socket are required", i)
			}
		}
		if set != 1 {
			return fmt.Errorf("edits[%d]: exactly one of op, remove_node, unbind is required", i)
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertOutput:
		if a.Node == "" || a.Socket == "" {
			return fmt.Errorf("assertions[%d]: node and socket are required for output", index)
		}
	case AssertExecuted:
		if a.Nodes == nil {
			return fmt.Errorf("assertions[%d]: nodes list is required for executed (use [] for none)", index)
		}
	case AssertExecutionCount:
		if a.Node == "" {
			return fmt.Errorf("assertions[%d]: node is required for execution_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for execution_count", index)
		}
	case AssertFrameCompleted:
		if a.Completed == nil {
			return fmt.Errorf("assertions[%d]: completed is required for frame_completed", index)
		}
	case AssertFailed:
		if a.Node == "" || a.Code == "" {
			return fmt.Errorf("assertions[%d]: node and code are required for failed", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}

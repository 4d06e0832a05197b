package harness

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/dopgraph/internal/store"
	"github.com/roach88/dopgraph/internal/value"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	fmt.Fprintf(&buf, "\nFull trace:\n")
	var executed []string
	for _, event := range e.Trace {
		switch event.Type {
		case EventExecute:
			executed = append(executed, event.Node)
		case EventFrame:
			fmt.Fprintf(&buf, "  frame %d (pass %d) %s: executed [%s]", event.Frame, event.Pass, event.Status, strings.Join(executed, " "))
			for _, target := range sortedKeys(event.Failed) {
				fmt.Fprintf(&buf, " %s=%s", target, event.Failed[target])
			}
			buf.WriteByte('\n')
			executed = nil
		}
	}
	return buf.String()
}

// AssertionContext provides context for evaluating assertions.
type AssertionContext struct {
	Store    *store.Store
	Ctx      context.Context
	RunToken string
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
// The actx parameter provides store access for frame_completed assertions.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errors []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertOutput:
			err = assertOutput(result, assertion)
		case AssertExecuted:
			err = assertExecuted(result, assertion)
		case AssertExecutionCount:
			err = assertExecutionCount(result, assertion)
		case AssertFrameCompleted:
			if actx == nil || actx.Store == nil {
				err = fmt.Errorf("assertion[%d]: frame_completed requires store context", i)
			} else {
				err = assertFrameCompleted(actx, result, assertion)
			}
		case AssertFailed:
			err = assertFailed(result, assertion)
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	return errors
}

func frameNotRun(result *Result, a Assertion) error {
	return &AssertionError{
		Type:     a.Type,
		Expected: fmt.Sprintf("frame %d to have run", a.Frame),
		Actual:   "frame not in scenario range",
		Trace:    result.Trace,
	}
}

// assertOutput checks a target socket's value with value.Equal.
func assertOutput(result *Result, a Assertion) error {
	report, ok := result.Report(a.Frame)
	if !ok {
		return frameNotRun(result, a)
	}
	want, err := value.FromGo(a.Equals)
	if err != nil {
		return fmt.Errorf("output %s.%s: expected value: %w", a.Node, a.Socket, err)
	}
	got, ok := report.Result.Output(a.Node, a.Socket)
	if !ok {
		actual := "no output"
		if err, failed := report.Result.Errors[a.Node]; failed {
			actual = "target failed: " + errorCode(err)
		}
		return &AssertionError{
			Type:     AssertOutput,
			Expected: fmt.Sprintf("%s.%s = %s at frame %d", a.Node, a.Socket, value.Format(want), a.Frame),
			Actual:   actual,
			Trace:    result.Trace,
		}
	}
	if !value.Equal(got, want) {
		return &AssertionError{
			Type:     AssertOutput,
			Expected: fmt.Sprintf("%s.%s = %s at frame %d", a.Node, a.Socket, value.Format(want), a.Frame),
			Actual:   value.Format(got),
			Trace:    result.Trace,
		}
	}
	return nil
}

// assertExecuted checks the exact execution order of a frame.
func assertExecuted(result *Result, a Assertion) error {
	report, ok := result.Report(a.Frame)
	if !ok {
		return frameNotRun(result, a)
	}
	if !slices.Equal(report.Result.Order, a.Nodes) {
		return &AssertionError{
			Type:     AssertExecuted,
			Expected: fmt.Sprintf("frame %d executes %v", a.Frame, a.Nodes),
			Actual:   fmt.Sprintf("%v", report.Result.Order),
			Trace:    result.Trace,
		}
	}
	return nil
}

// assertExecutionCount counts execute events of a node, at one frame or,
// with frame 0, across the run.
func assertExecutionCount(result *Result, a Assertion) error {
	count := 0
	for _, event := range result.Trace {
		if event.Type != EventExecute || event.Node != a.Node {
			continue
		}
		if a.Frame == 0 || event.Frame == a.Frame {
			count++
		}
	}
	if count != a.Count {
		scope := "overall"
		if a.Frame != 0 {
			scope = fmt.Sprintf("at frame %d", a.Frame)
		}
		return &AssertionError{
			Type:     AssertExecutionCount,
			Expected: fmt.Sprintf("%s executed %d time(s) %s", a.Node, a.Count, scope),
			Actual:   fmt.Sprintf("executed %d time(s)", count),
			Trace:    result.Trace,
		}
	}
	return nil
}

// assertFrameCompleted checks completion against the frame signal and the
// frames recorded in the store; the two must agree.
func assertFrameCompleted(actx *AssertionContext, result *Result, a Assertion) error {
	if _, ok := result.Report(a.Frame); !ok {
		return frameNotRun(result, a)
	}
	want := *a.Completed
	signalled := slices.Contains(result.Completed, a.Frame)

	stored, err := actx.Store.CompletedFrames(actx.Ctx, actx.RunToken)
	if err != nil {
		return fmt.Errorf("frame_completed: %w", err)
	}
	recorded := slices.Contains(stored, a.Frame)

	if signalled != want || recorded != want {
		return &AssertionError{
			Type:     AssertFrameCompleted,
			Expected: fmt.Sprintf("frame %d completed=%t", a.Frame, want),
			Actual:   fmt.Sprintf("signalled=%t stored=%t", signalled, recorded),
			Trace:    result.Trace,
		}
	}
	return nil
}

// assertFailed checks the error code of a failed target.
func assertFailed(result *Result, a Assertion) error {
	report, ok := result.Report(a.Frame)
	if !ok {
		return frameNotRun(result, a)
	}
	err, failed := report.Result.Errors[a.Node]
	actual := "target resolved"
	if failed {
		actual = errorCode(err)
		if actual == a.Code {
			return nil
		}
	}
	return &AssertionError{
		Type:     AssertFailed,
		Expected: fmt.Sprintf("%s fails with %s at frame %d", a.Node, a.Code, a.Frame),
		Actual:   actual,
		Trace:    result.Trace,
	}
}

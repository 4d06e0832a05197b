package engine

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes evaluation errors.
type ErrorCode string

const (
	// ErrCodeMissingRequiredInput indicates a required input with no link
	// and no default.
	ErrCodeMissingRequiredInput ErrorCode = "MISSING_REQUIRED_INPUT"

	// ErrCodeNodeExecutionFailed indicates an apply function returned an
	// error or panicked.
	ErrCodeNodeExecutionFailed ErrorCode = "NODE_EXECUTION_FAILED"

	// ErrCodeUnknownType indicates a node whose type is not registered.
	// These are reported as skipped, not as target failures.
	ErrCodeUnknownType ErrorCode = "UNKNOWN_TYPE"

	// ErrCodeCycleDetected indicates a cycle that escaped edge-insertion
	// checks, e.g. from an unchecked bulk load.
	ErrCodeCycleDetected ErrorCode = "CYCLE_DETECTED"

	// ErrCodeTargetNotFound indicates a requested target is not in the graph.
	ErrCodeTargetNotFound ErrorCode = "TARGET_NOT_FOUND"
)

// EvalError is an error raised during a pass. NodeID is the originating
// node, so a consumer failing because its producer failed carries the
// producer's id.
type EvalError struct {
	// Code identifies the error category.
	Code ErrorCode

	// NodeID identifies the node where the error originated.
	NodeID string

	// Socket identifies the input socket for MISSING_REQUIRED_INPUT.
	Socket string

	// Target is the target whose resolution hit the error.
	Target string

	// Cause is the underlying apply error, if any.
	Cause error
}

// Error implements the error interface.
func (e *EvalError) Error() string {
	msg := fmt.Sprintf("%s (node=%s", e.Code, e.NodeID)
	if e.Socket != "" {
		msg += ", socket=" + e.Socket
	}
	if e.Target != "" && e.Target != e.NodeID {
		msg += ", target=" + e.Target
	}
	msg += ")"
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *EvalError) Unwrap() error {
	return e.Cause
}

// IsCode reports whether err wraps an EvalError with the given code.
func IsCode(err error, code ErrorCode) bool {
	var ee *EvalError
	if errors.As(err, &ee) {
		return ee.Code == code
	}
	return false
}

// IsExecutionError returns true if err is a NODE_EXECUTION_FAILED error.
func IsExecutionError(err error) bool {
	return IsCode(err, ErrCodeNodeExecutionFailed)
}

// IsMissingInputError returns true if err is a MISSING_REQUIRED_INPUT error.
func IsMissingInputError(err error) bool {
	return IsCode(err, ErrCodeMissingRequiredInput)
}

// IsCycleError returns true if err is a CYCLE_DETECTED evaluation error.
func IsCycleError(err error) bool {
	return IsCode(err, ErrCodeCycleDetected)
}

// FailedNode returns the originating node id of an evaluation error.
func FailedNode(err error) (string, bool) {
	var ee *EvalError
	if errors.As(err, &ee) {
		return ee.NodeID, true
	}
	return "", false
}

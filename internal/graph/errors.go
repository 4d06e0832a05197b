package graph

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes structural errors.
type ErrorCode string

const (
	// ErrCodeDuplicateID indicates a node id already exists in the graph.
	ErrCodeDuplicateID ErrorCode = "DUPLICATE_ID"

	// ErrCodeNotFound indicates a referenced node does not exist.
	ErrCodeNotFound ErrorCode = "NOT_FOUND"

	// ErrCodeSocketNotFound indicates a referenced socket does not exist.
	ErrCodeSocketNotFound ErrorCode = "SOCKET_NOT_FOUND"

	// ErrCodeEdgeNotFound indicates the edge to remove is not present.
	ErrCodeEdgeNotFound ErrorCode = "EDGE_NOT_FOUND"

	// ErrCodeTypeMismatch indicates incompatible declared socket types.
	ErrCodeTypeMismatch ErrorCode = "TYPE_MISMATCH"

	// ErrCodeCycleDetected indicates an edge or template reference would
	// close a cycle.
	ErrCodeCycleDetected ErrorCode = "CYCLE_DETECTED"

	// ErrCodeUnknownType indicates a type name that is neither registered
	// nor a known template.
	ErrCodeUnknownType ErrorCode = "UNKNOWN_TYPE"

	// ErrCodeBusy indicates a mutation attempted during an evaluation pass.
	ErrCodeBusy ErrorCode = "GRAPH_BUSY"
)

// Error is a structural error raised synchronously by a graph mutation.
// The mutation that produced it was not applied.
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// NodeID identifies the node the error is about, if any.
	NodeID string

	// Socket identifies the socket the error is about, if any.
	Socket string

	// Message is a human-readable description.
	Message string
}

// Error implements the error interface.
func (e *Error) Error() string {
	switch {
	case e.NodeID != "" && e.Socket != "":
		return fmt.Sprintf("%s: %s (node=%s, socket=%s)", e.Code, e.Message, e.NodeID, e.Socket)
	case e.NodeID != "":
		return fmt.Sprintf("%s: %s (node=%s)", e.Code, e.Message, e.NodeID)
	default:
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
}

// IsCode reports whether err wraps a graph Error with the given code.
func IsCode(err error, code ErrorCode) bool {
	var ge *Error
	if errors.As(err, &ge) {
		return ge.Code == code
	}
	return false
}

// IsCycleError returns true if err is a CYCLE_DETECTED graph error.
func IsCycleError(err error) bool {
	return IsCode(err, ErrCodeCycleDetected)
}

// IsBusyError returns true if err is a GRAPH_BUSY graph error.
func IsBusyError(err error) bool {
	return IsCode(err, ErrCodeBusy)
}

func newError(code ErrorCode, nodeID, socket, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		NodeID:  nodeID,
		Socket:  socket,
		Message: fmt.Sprintf(format, args...),
	}
}

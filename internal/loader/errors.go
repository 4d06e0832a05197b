package loader

import (
	"errors"
	"fmt"

	cueerrors "cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
)

// Error codes, shared with the CLI's diagnostics.
const (
	ErrCodeGeneric     = "E001" // Generic/unknown error
	ErrCodeScanError   = "E002" // Directory scan error
	ErrCodeNoFiles     = "E003" // No document files found
	ErrCodeLoadFailed  = "E004" // CUE load failed
	ErrCodeNotFound    = "E005" // Path not found
	ErrCodeBuildFailed = "E006" // CUE build failed
	ErrCodeDecode      = "E007" // JSON script decode failed

	ErrCodeNoGraphs      = "E101" // Document declares no graphs
	ErrCodeNodeType      = "E102" // Node type missing or not a string
	ErrCodeBadLink       = "E103" // Link is not "node.socket"
	ErrCodeBadValue      = "E104" // Param or input value not concrete
	ErrCodeUnknownField  = "E105" // Unrecognized node field
	ErrCodeTemplateCycle = "E106" // Templates instantiate each other
)

// Error is a load or compile failure, positioned in the CUE source when
// the position is known.
type Error struct {
	Code    string
	Path    string // e.g. graph.main.node.add.link.a
	Message string
	Pos     token.Pos
}

func (e *Error) Error() string {
	msg := e.Message
	if e.Path != "" {
		msg = e.Path + ": " + msg
	}
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, msg)
	}
	return fmt.Sprintf("%s: %s", e.Code, msg)
}

// Code returns the code of the first *Error in err's chain, or
// ErrCodeGeneric.
func Code(err error) string {
	var le *Error
	if errors.As(err, &le) {
		return le.Code
	}
	return ErrCodeGeneric
}

// fromCUE wraps the first CUE error with its position.
func fromCUE(code string, err error) *Error {
	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return &Error{Code: code, Message: err.Error()}
	}
	first := errs[0]
	e := &Error{Code: code, Message: first.Error()}
	if pos := cueerrors.Positions(first); len(pos) > 0 {
		e.Pos = pos[0]
	}
	return e
}

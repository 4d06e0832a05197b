package registry

import (
	"fmt"

	"github.com/roach88/dopgraph/internal/value"
)

// Call is the read-only view an ApplyFunc gets of one node execution.
type Call struct {
	NodeID string
	Type   string
	Frame  int

	inputs   map[string]value.Value
	variadic map[string][]value.Value
	params   map[string]value.Value
}

// NewCall assembles a call. variadic holds sub-socket values per prefix in
// index order.
func NewCall(nodeID, typeName string, frame int, inputs map[string]value.Value,
	variadic map[string][]value.Value, params map[string]value.Value) *Call {
	return &Call{
		NodeID:   nodeID,
		Type:     typeName,
		Frame:    frame,
		inputs:   inputs,
		variadic: variadic,
		params:   params,
	}
}

// Input returns a resolved input. Absent inputs read as Null.
func (c *Call) Input(name string) value.Value {
	return value.OrNull(c.inputs[name])
}

// Variadic returns the sub-socket values of a variadic prefix in order.
func (c *Call) Variadic(prefix string) []value.Value {
	return c.variadic[prefix]
}

// Param returns a param. Absent params read as Null.
func (c *Call) Param(name string) value.Value {
	return value.OrNull(c.params[name])
}

// Number returns a numeric input or an error naming the socket.
func (c *Call) Number(name string) (float64, error) {
	v := c.Input(name)
	n, ok := value.AsNumber(v)
	if !ok {
		return 0, fmt.Errorf("input %q: expected number, got %s", name, value.KindOf(v))
	}
	return n, nil
}

// ParamNumber returns a numeric param or an error naming it.
func (c *Call) ParamNumber(name string) (float64, error) {
	v := c.Param(name)
	n, ok := value.AsNumber(v)
	if !ok {
		return 0, fmt.Errorf("param %q: expected number, got %s", name, value.KindOf(v))
	}
	return n, nil
}

// ParamString returns a string param, or "" when it is not a string.
func (c *Call) ParamString(name string) string {
	s, _ := value.AsString(c.Param(name))
	return s
}

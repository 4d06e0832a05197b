// Package testutil provides deterministic helpers for tests: fixed run
// tokens and probe node types that record how the evaluator calls them.
package testutil

import (
	"context"
	"errors"
	"sync"

	"github.com/roach88/dopgraph/internal/graph"
	"github.com/roach88/dopgraph/internal/registry"
	"github.com/roach88/dopgraph/internal/value"
)

// Probe type names.
const (
	// ProbeSource emits its "value" param on "out".
	ProbeSource = "Probe.Source"

	// ProbeJoin emits [a, b] as a list on "out". Both inputs are optional.
	ProbeJoin = "Probe.Join"

	// ProbeNeed requires input "in" and forwards it to "out".
	ProbeNeed = "Probe.Need"

	// ProbeFail always fails with ErrProbeFailed.
	ProbeFail = "Probe.Fail"

	// ProbeHook runs the probe's hook, then forwards "in" to "out".
	ProbeHook = "Probe.Hook"

	// ProbeClock is time dependent and emits the frame on "out".
	ProbeClock = "Probe.Clock"
)

// ErrProbeFailed is the cause returned by ProbeFail nodes.
var ErrProbeFailed = errors.New("probe failure")

// Probe records every apply call made to probe node types.
//
// Thread-safety: Probe is safe for concurrent use.
type Probe struct {
	mu    sync.Mutex
	calls map[string]int
	seen  map[string]map[string]value.Value
	order []string

	// Hook is called by ProbeHook nodes with the node id.
	Hook func(ctx context.Context, nodeID string) error
}

// NewProbe creates an empty probe.
func NewProbe() *Probe {
	return &Probe{
		calls: make(map[string]int),
		seen:  make(map[string]map[string]value.Value),
	}
}

// Calls returns how many times node id was applied.
func (p *Probe) Calls(id string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls[id]
}

// Seen returns the last value input socket of node id received.
func (p *Probe) Seen(id, socket string) value.Value {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.seen[id][socket]
}

// Order returns node ids in apply order across all passes.
func (p *Probe) Order() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.order...)
}

// Reset forgets all recorded calls.
func (p *Probe) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = make(map[string]int)
	p.seen = make(map[string]map[string]value.Value)
	p.order = nil
}

func (p *Probe) record(call *registry.Call, sockets ...string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls[call.NodeID]++
	p.order = append(p.order, call.NodeID)
	seen := make(map[string]value.Value, len(sockets))
	for _, s := range sockets {
		seen[s] = call.Input(s)
	}
	p.seen[call.NodeID] = seen
}

// Register adds the probe types to r.
func (p *Probe) Register(r *registry.Registry) error {
	out := []graph.SocketSpec{{Name: "out"}}
	specs := []registry.TypeSpec{
		{
			Name:    ProbeSource,
			Outputs: out,
			Params:  []graph.ParamSpec{{Name: "value", Default: value.Number(0)}},
			Apply: func(_ context.Context, call *registry.Call) (registry.Outputs, error) {
				p.record(call)
				return registry.Outputs{"out": call.Param("value")}, nil
			},
		},
		{
			Name:    ProbeJoin,
			Inputs:  []graph.SocketSpec{{Name: "a"}, {Name: "b"}},
			Outputs: out,
			Apply: func(_ context.Context, call *registry.Call) (registry.Outputs, error) {
				p.record(call, "a", "b")
				return registry.Outputs{"out": value.NewList(call.Input("a"), call.Input("b"))}, nil
			},
		},
		{
			Name:    ProbeNeed,
			Inputs:  []graph.SocketSpec{{Name: "in", Required: true}},
			Outputs: out,
			Apply: func(_ context.Context, call *registry.Call) (registry.Outputs, error) {
				p.record(call, "in")
				return registry.Outputs{"out": call.Input("in")}, nil
			},
		},
		{
			Name:    ProbeFail,
			Inputs:  []graph.SocketSpec{{Name: "in"}},
			Outputs: out,
			Apply: func(_ context.Context, call *registry.Call) (registry.Outputs, error) {
				p.record(call, "in")
				return nil, ErrProbeFailed
			},
		},
		{
			Name:    ProbeHook,
			Inputs:  []graph.SocketSpec{{Name: "in"}},
			Outputs: out,
			Apply: func(ctx context.Context, call *registry.Call) (registry.Outputs, error) {
				p.record(call, "in")
				if p.Hook != nil {
					if err := p.Hook(ctx, call.NodeID); err != nil {
						return nil, err
					}
				}
				return registry.Outputs{"out": call.Input("in")}, nil
			},
		},
		{
			Name:          ProbeClock,
			Outputs:       out,
			TimeDependent: true,
			Apply: func(_ context.Context, call *registry.Call) (registry.Outputs, error) {
				p.record(call)
				return registry.Outputs{"out": value.Number(call.Frame)}, nil
			},
		},
	}
	for _, spec := range specs {
		if err := r.Register(spec); err != nil {
			return err
		}
	}
	return nil
}

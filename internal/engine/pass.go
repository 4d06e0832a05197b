package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/roach88/dopgraph/internal/graph"
	"github.com/roach88/dopgraph/internal/registry"
	"github.com/roach88/dopgraph/internal/value"
)

// resolution is the memo record of one node in a pass.
type resolution struct {
	outputs registry.Outputs
	err     error
}

// pass is the state of one evaluation pass. It is discarded afterwards.
type pass struct {
	ev       *Evaluator
	g        *graph.Graph
	cache    *Cache
	frame    int
	bindings *graph.Bindings

	visiting map[string]bool
	resolved map[string]resolution
	staged   map[string]*entry
	result   *Result
}

// resolve returns the outputs of id, executing it and its dependencies at
// most once per pass.
func (p *pass) resolve(ctx context.Context, id, target string) (registry.Outputs, error) {
	if r, ok := p.resolved[id]; ok {
		return r.outputs, retarget(r.err, target)
	}
	if p.visiting[id] {
		return nil, &EvalError{Code: ErrCodeCycleDetected, NodeID: id, Target: target,
			Cause: fmt.Errorf("node %s depends on itself", id)}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	n, ok := p.g.Node(id)
	if !ok {
		return nil, &EvalError{Code: ErrCodeTargetNotFound, NodeID: id, Target: target}
	}

	p.visiting[id] = true
	outs, err := p.execute(ctx, n, target)
	delete(p.visiting, id)

	// Cancellation aborts the whole pass; never memoize it as a failure.
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	p.resolved[id] = resolution{outputs: outs, err: err}
	return outs, err
}

// retarget copies a memoized failure so it names the target now asking.
func retarget(err error, target string) error {
	ee, ok := err.(*EvalError)
	if !ok || ee.Target == target {
		return err
	}
	cp := *ee
	cp.Target = target
	return &cp
}

// execute gathers inputs for n and either reuses its cache entry or
// computes fresh outputs.
func (p *pass) execute(ctx context.Context, n *graph.Node, target string) (registry.Outputs, error) {
	if n.Kind == graph.KindNormal && (n.Unresolved || !p.known(n.Type)) {
		return p.skip(n, target), nil
	}

	inputs, err := p.gather(ctx, n, target)
	if err != nil {
		return nil, err
	}

	if ent := p.cache.get(n.ID); p.reusable(n, ent, inputs) {
		p.staged[n.ID] = ent
		p.result.CacheHits++
		return ent.outputs, nil
	}

	start := time.Now()
	outs, err := p.compute(ctx, n, target, inputs)
	if p.ev.observer != nil {
		p.ev.observer.NodeExecuted(n.Type, time.Since(start), err)
	}
	if err != nil {
		p.staged[n.ID] = nil
		return nil, err
	}

	p.result.Order = append(p.result.Order, n.ID)
	p.staged[n.ID] = &entry{
		node:    n,
		rev:     n.Rev(),
		frame:   p.frame,
		inputs:  inputs,
		outputs: outs,
	}
	return outs, nil
}

func (p *pass) known(typeName string) bool {
	if p.ev.types == nil {
		return false
	}
	_, ok := p.ev.types.Lookup(typeName)
	return ok
}

// skip logs an unresolvable node and gives it Null outputs.
func (p *pass) skip(n *graph.Node, target string) registry.Outputs {
	p.ev.logger.Warn("skipping node of unknown type",
		"graph", p.g.Name(),
		"node", n.ID,
		"type", n.Type,
		"target", target,
	)
	p.result.Skipped = append(p.result.Skipped, &EvalError{
		Code:   ErrCodeUnknownType,
		NodeID: n.ID,
		Target: target,
		Cause:  fmt.Errorf("type %q is not registered", n.Type),
	})
	outs := make(registry.Outputs, len(n.Outputs))
	for _, s := range n.Outputs {
		outs[s.Name] = value.Null{}
	}
	return outs
}

// reusable applies the cache reuse rules to a candidate entry.
func (p *pass) reusable(n *graph.Node, ent *entry, inputs []namedValue) bool {
	if ent == nil || ent.node != n || ent.rev != n.Rev() {
		return false
	}
	if n.Options.Has(graph.OptOnce) {
		return true
	}
	if n.TimeDependent && ent.frame != p.frame {
		return false
	}
	return ent.sameInputs(inputs)
}

// gather resolves the values n reads, in a stable order.
//
//   - normal and SubOutput nodes read their own input sockets
//   - SubInput nodes read the owner instance's socket named by their
//     "name" param, falling back to their "defl" param
//   - subgraph instances read the port of the SubOutput bound to each of
//     their output sockets
func (p *pass) gather(ctx context.Context, n *graph.Node, target string) ([]namedValue, error) {
	switch n.Kind {
	case graph.KindSubInput:
		v, err := p.readSubInput(ctx, n, target)
		if err != nil {
			return nil, err
		}
		return []namedValue{{name: graph.PortSocket, v: v}}, nil

	case graph.KindSubgraph:
		out := make([]namedValue, 0, len(n.Outputs))
		for _, s := range n.Outputs {
			v := value.Value(value.Null{})
			if src, ok := p.bindings.OutputSource(n.ID, s.Name); ok {
				outs, err := p.resolve(ctx, src, target)
				if err != nil {
					return nil, err
				}
				v = readSlot(outs, graph.PortSocket)
			}
			out = append(out, namedValue{name: s.Name, v: v})
		}
		return out, nil

	default:
		out := make([]namedValue, 0, len(n.Inputs))
		for _, s := range n.Inputs {
			v, err := p.readInput(ctx, n, s, target)
			if err != nil {
				return nil, err
			}
			out = append(out, namedValue{name: s.Name, v: v})
		}
		return out, nil
	}
}

// readInput reads one input socket: its link, else its default, else Null
// unless the socket is required.
func (p *pass) readInput(ctx context.Context, n *graph.Node, s *graph.Socket, target string) (value.Value, error) {
	if s.Link != nil {
		outs, err := p.resolve(ctx, s.Link.Node, target)
		if err != nil {
			return nil, err
		}
		return readSlot(outs, s.Link.Socket), nil
	}
	if s.HasDefault() {
		return s.Default, nil
	}
	if s.Required {
		return nil, &EvalError{Code: ErrCodeMissingRequiredInput, NodeID: n.ID, Socket: s.Name, Target: target}
	}
	return value.Null{}, nil
}

func (p *pass) readSubInput(ctx context.Context, n *graph.Node, target string) (value.Value, error) {
	defl := value.Value(value.Null{})
	if v, ok := n.Param(graph.ParamDefault); ok {
		defl = value.OrNull(v)
	}
	owner, ok := p.g.Node(n.Owner)
	if !ok || owner.Kind != graph.KindSubgraph {
		return defl, nil
	}
	s := owner.Input(n.ParamString(graph.ParamName))
	if s == nil {
		// Renamed since the instance sockets were synced.
		return defl, nil
	}
	if s.Link == nil && !s.HasDefault() {
		return defl, nil
	}
	return p.readInput(ctx, owner, s, target)
}

// compute produces fresh outputs for n.
func (p *pass) compute(ctx context.Context, n *graph.Node, target string, inputs []namedValue) (registry.Outputs, error) {
	if n.Options.Has(graph.OptMute) {
		return mute(n, inputs), nil
	}

	switch n.Kind {
	case graph.KindSubInput, graph.KindSubOutput:
		return registry.Outputs{graph.PortSocket: lookup(inputs, graph.PortSocket)}, nil
	case graph.KindSubgraph:
		outs := make(registry.Outputs, len(inputs))
		for _, in := range inputs {
			outs[in.name] = in.v
		}
		return outs, nil
	}

	spec, _ := p.ev.types.Lookup(n.Type)
	call := p.newCall(n, inputs)
	outs, err := safeApply(ctx, spec.Apply, call)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &EvalError{Code: ErrCodeNodeExecutionFailed, NodeID: n.ID, Target: target, Cause: err}
	}
	return p.checkOutputs(n, target, outs)
}

// checkOutputs enforces that apply wrote only declared outputs and fills
// missing ones with Null.
func (p *pass) checkOutputs(n *graph.Node, target string, outs registry.Outputs) (registry.Outputs, error) {
	clean := make(registry.Outputs, len(n.Outputs))
	for name := range outs {
		if n.Output(name) == nil {
			return nil, &EvalError{Code: ErrCodeNodeExecutionFailed, NodeID: n.ID, Target: target,
				Cause: fmt.Errorf("apply wrote undeclared output %q", name)}
		}
	}
	for _, s := range n.Outputs {
		clean[s.Name] = value.OrNull(outs[s.Name])
	}
	return clean, nil
}

func (p *pass) newCall(n *graph.Node, inputs []namedValue) *registry.Call {
	byName := make(map[string]value.Value, len(inputs))
	for _, in := range inputs {
		byName[in.name] = in.v
	}
	var variadic map[string][]value.Value
	for _, spec := range n.VariadicSpecs() {
		if variadic == nil {
			variadic = make(map[string][]value.Value)
		}
		subs := n.SubSockets(spec.Name)
		vals := make([]value.Value, len(subs))
		for i, s := range subs {
			vals[i] = value.OrNull(byName[s.Name])
		}
		variadic[spec.Name] = vals
	}
	return registry.NewCall(n.ID, n.Type, p.frame, byName, variadic, n.ParamMap())
}

// safeApply runs apply, turning a panic into an error.
func safeApply(ctx context.Context, apply registry.ApplyFunc, call *registry.Call) (outs registry.Outputs, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("apply panicked: %v", r)
		}
	}()
	return apply(ctx, call)
}

// mute forwards inputs to outputs by position. Extra outputs read Null.
func mute(n *graph.Node, inputs []namedValue) registry.Outputs {
	outs := make(registry.Outputs, len(n.Outputs))
	for i, s := range n.Outputs {
		if i < len(inputs) {
			outs[s.Name] = inputs[i].v
		} else {
			outs[s.Name] = value.Null{}
		}
	}
	return outs
}

func readSlot(outs registry.Outputs, socket string) value.Value {
	return value.OrNull(outs[socket])
}

func lookup(inputs []namedValue, name string) value.Value {
	for _, in := range inputs {
		if in.name == name {
			return in.v
		}
	}
	return value.Null{}
}

package oplog

import (
	"strings"

	"github.com/roach88/dopgraph/internal/graph"
	"github.com/roach88/dopgraph/internal/value"
)

// Export returns ops that rebuild an equivalent graph when replayed into
// an empty graph with the same resolver.
//
// Nodes are emitted producers first, ties broken by insertion order, so
// Checked replay never binds to a node that does not exist yet. Forked
// nodes are not exported: replaying the instance's addNode forks them
// again. Params and input defaults edited on forked nodes are emitted
// after the instance's completeNode, addressed by the forked id.
//
// Params and defaults equal to the type's declared defaults are omitted.
func Export(g *graph.Graph) []Op {
	e := &exporter{g: g, done: make(map[string]bool)}
	for _, n := range g.Nodes() {
		if !n.Forked() {
			e.visit(n)
		}
	}
	return e.ops
}

type exporter struct {
	g    *graph.Graph
	done map[string]bool
	ops  []Op
}

func (e *exporter) visit(n *graph.Node) {
	if e.done[n.ID] {
		return
	}
	e.done[n.ID] = true
	for _, in := range n.Inputs {
		if in.Link == nil {
			continue
		}
		if src, ok := e.g.Node(e.rootOf(in.Link.Node)); ok {
			e.visit(src)
		}
	}
	e.emit(n)
}

// rootOf maps a forked node id to the top-level instance it belongs to.
func (e *exporter) rootOf(id string) string {
	for {
		n, ok := e.g.Node(id)
		if !ok || !n.Forked() {
			return id
		}
		id = n.Owner
	}
}

func (e *exporter) emit(n *graph.Node) {
	layout, hasLayout := e.layout(n)

	e.ops = append(e.ops, AddNode(n.Type, n.ID))
	for _, in := range n.Inputs {
		if in.Link != nil || !in.HasDefault() {
			continue
		}
		if hasLayout && sameAsDeclared(in.Default, inputDefault(layout, in.Name)) {
			continue
		}
		e.ops = append(e.ops, SetNodeInput(n.ID, in.Name, in.Default))
	}
	for _, in := range n.Inputs {
		if in.Link != nil {
			e.ops = append(e.ops, BindNodeInput(n.ID, in.Name, in.Link.Node, in.Link.Socket))
		}
	}
	for _, p := range n.Params {
		if hasLayout && sameAsDeclared(p.Value, paramDefault(layout, p.Name)) {
			continue
		}
		e.ops = append(e.ops, SetNodeParam(n.ID, p.Name, p.Value))
	}
	if n.Options.Has(graph.OptOnce) {
		e.ops = append(e.ops, SetNodeOption(n.ID, OptionOnce))
	}
	if n.Options.Has(graph.OptMute) {
		e.ops = append(e.ops, SetNodeOption(n.ID, OptionMute))
	}
	e.ops = append(e.ops, CompleteNode(n.ID))
	if n.Kind == graph.KindSubgraph {
		e.forkedEdits(n)
	}
	if e.g.IsView(n.ID) {
		e.ops = append(e.ops, MarkView(n.ID))
	}
}

// forkedEdits emits the differences between the forked members of inst
// and the template nodes they were cloned from.
func (e *exporter) forkedEdits(inst *graph.Node) {
	res := e.g.Resolver()
	if res == nil {
		return
	}
	tmpl, ok := res.Template(inst.Type)
	if !ok {
		return
	}
	prefix := inst.ID + "/"
	for _, id := range e.g.Members(inst.ID) {
		m, ok := e.g.Node(id)
		if !ok {
			continue
		}
		orig, ok := tmpl.Node(strings.TrimPrefix(id, prefix))
		if !ok {
			continue
		}
		for _, in := range m.Inputs {
			if in.Link != nil || !in.HasDefault() {
				continue
			}
			if was := orig.Input(in.Name); was != nil && sameAsDeclared(in.Default, was.Default) {
				continue
			}
			e.ops = append(e.ops, SetNodeInput(id, in.Name, in.Default))
		}
		for _, p := range m.Params {
			if was, ok := orig.Param(p.Name); ok && value.Equal(p.Value, was) {
				continue
			}
			e.ops = append(e.ops, SetNodeParam(id, p.Name, p.Value))
		}
		if m.Kind == graph.KindSubgraph {
			e.forkedEdits(m)
		}
	}
}

func (e *exporter) layout(n *graph.Node) (graph.Layout, bool) {
	res := e.g.Resolver()
	if n.Unresolved || res == nil {
		return graph.Layout{}, false
	}
	if n.Kind == graph.KindSubgraph {
		tmpl, ok := res.Template(n.Type)
		if !ok {
			return graph.Layout{}, false
		}
		inputs, outputs := graph.SubnetIO(tmpl)
		return graph.Layout{Kind: graph.KindSubgraph, Inputs: inputs, Outputs: outputs}, true
	}
	return res.Layout(n.Type)
}

func inputDefault(l graph.Layout, name string) value.Value {
	for _, s := range l.Inputs {
		if s.Name == name {
			return s.Default
		}
	}
	return nil
}

func paramDefault(l graph.Layout, name string) value.Value {
	for _, p := range l.Params {
		if p.Name == name {
			return value.OrNull(p.Default)
		}
	}
	return nil
}

// sameAsDeclared treats a missing declaration as "no default", so any
// value set on the node differs from it.
func sameAsDeclared(v, declared value.Value) bool {
	if declared == nil {
		return false
	}
	return value.Equal(v, declared)
}

package graph

import (
	"github.com/roach88/dopgraph/internal/value"
)

// SubnetIO derives an instance's sockets from the top-level SubInput and
// SubOutput nodes of a template, in node order. A SubInput's "type" param
// becomes the socket type and a non-null "defl" param its default. When
// several IO nodes share a name, the first wins.
func SubnetIO(tmpl *Graph) (inputs, outputs []SocketSpec) {
	seenIn := make(map[string]bool)
	seenOut := make(map[string]bool)
	for _, id := range tmpl.order {
		n := tmpl.nodes[id]
		if n.Forked() {
			continue
		}
		name := n.ParamString(ParamName)
		if name == "" {
			continue
		}
		switch n.Kind {
		case KindSubInput:
			if seenIn[name] {
				continue
			}
			seenIn[name] = true
			spec := SocketSpec{Name: name, Type: n.ParamString(ParamType)}
			if defl, ok := n.Param(ParamDefault); ok && !value.IsNull(defl) {
				spec.Default = defl
			}
			inputs = append(inputs, spec)
		case KindSubOutput:
			if seenOut[name] {
				continue
			}
			seenOut[name] = true
			outputs = append(outputs, SocketSpec{Name: name, Type: n.ParamString(ParamType)})
		}
	}
	return inputs, outputs
}

// Binding ties one subgraph instance's sockets to its forked IO nodes.
type Binding struct {
	Instance string

	// Inputs maps an instance input socket to the forked SubInput nodes
	// reading it.
	Inputs map[string][]string

	// Outputs maps an instance output socket to the forked SubOutput node
	// sourcing it.
	Outputs map[string]string
}

// Bindings is a snapshot of every instance binding in a graph. It is
// derived from the current "name" params, so it must be recomputed after
// IO nodes are renamed; the evaluator takes a fresh snapshot each pass.
type Bindings struct {
	byInstance map[string]*Binding
}

// Bindings computes the binding table for all instances in g.
func (g *Graph) Bindings() *Bindings {
	b := &Bindings{byInstance: make(map[string]*Binding)}
	for _, id := range g.order {
		n := g.nodes[id]
		if n.Kind == KindSubgraph {
			b.byInstance[id] = &Binding{
				Instance: id,
				Inputs:   make(map[string][]string),
				Outputs:  make(map[string]string),
			}
		}
	}
	for _, id := range g.order {
		n := g.nodes[id]
		bind, ok := b.byInstance[n.Owner]
		if !ok {
			continue
		}
		name := n.ParamString(ParamName)
		if name == "" {
			continue
		}
		switch n.Kind {
		case KindSubInput:
			bind.Inputs[name] = append(bind.Inputs[name], id)
		case KindSubOutput:
			if _, taken := bind.Outputs[name]; !taken {
				bind.Outputs[name] = id
			}
		}
	}
	return b
}

// Instance returns the binding of one instance.
func (b *Bindings) Instance(id string) (*Binding, bool) {
	bind, ok := b.byInstance[id]
	return bind, ok
}

// OutputSource returns the forked SubOutput node feeding an instance
// output socket.
func (b *Bindings) OutputSource(instance, socket string) (string, bool) {
	bind, ok := b.byInstance[instance]
	if !ok {
		return "", false
	}
	src, ok := bind.Outputs[socket]
	return src, ok
}

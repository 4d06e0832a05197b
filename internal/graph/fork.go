package graph

import (
	"slices"
)

// Fork re-expands an existing subgraph instance from tmpl. The previous
// forked nodes are discarded, the instance sockets are re-derived from the
// template's SubInput and SubOutput nodes, and links on sockets that still
// exist are kept.
//
// Forking an unchanged template again yields the same relative topology.
func (g *Graph) Fork(instanceID string, tmpl *Graph) error {
	return g.edit(func() error {
		return g.refork(instanceID, tmpl)
	})
}

// Refork is Fork with the template looked up by the instance's type name.
func (g *Graph) Refork(instanceID string) error {
	return g.edit(func() error {
		inst, ok := g.nodes[instanceID]
		if !ok {
			return newError(ErrCodeNotFound, instanceID, "", "node does not exist")
		}
		tmpl, ok := g.lookupTemplate(inst.Type)
		if !ok {
			return newError(ErrCodeUnknownType, instanceID, "", "template %q is not known", inst.Type)
		}
		return g.refork(instanceID, tmpl)
	})
}

func (g *Graph) refork(instanceID string, tmpl *Graph) error {
	inst, ok := g.nodes[instanceID]
	if !ok {
		return newError(ErrCodeNotFound, instanceID, "", "node does not exist")
	}
	if inst.Kind != KindSubgraph {
		return newError(ErrCodeUnknownType, instanceID, "", "node is not a subgraph instance")
	}
	if err := g.checkTemplateRecursion(instanceID, tmpl); err != nil {
		return err
	}
	forked, err := g.fork(instanceID, tmpl, []string{g.name})
	if err != nil {
		return err
	}

	old := g.subtree(instanceID)
	delete(old, instanceID)
	for _, n := range forked {
		if _, exists := g.nodes[n.ID]; exists {
			if _, replaced := old[n.ID]; !replaced {
				return newError(ErrCodeDuplicateID, n.ID, "", "forked node id collides with an existing node")
			}
		}
	}

	g.removeNodes(old)
	inputs, outputs := SubnetIO(tmpl)
	syncSockets(inst, inputs, outputs)
	g.insertMembers(instanceID, forked)
	inst.rev++
	return nil
}

// fork clones the top-level nodes of tmpl under the "<instanceID>/"
// namespace and recursively expands nested instances. Nothing is inserted;
// the caller commits the returned nodes. stack holds the template names
// being expanded and guards against self-referencing templates.
func (g *Graph) fork(instanceID string, tmpl *Graph, stack []string) ([]*Node, error) {
	if slices.Contains(stack, tmpl.name) {
		return nil, newError(ErrCodeCycleDetected, instanceID, "",
			"template %q instantiates itself", tmpl.name)
	}
	stack = append(stack, tmpl.name)
	prefix := instanceID + "/"

	var out []*Node
	for _, id := range tmpl.order {
		n := tmpl.nodes[id]
		if n.Forked() {
			continue
		}
		c := n.clone(prefix+n.ID, instanceID)
		for _, in := range c.Inputs {
			if in.Link != nil {
				in.Link.Node = prefix + in.Link.Node
			}
		}
		out = append(out, c)

		if c.Kind != KindSubgraph {
			continue
		}
		sub, ok := g.lookupTemplate(c.Type)
		if !ok {
			sub, ok = tmpl.lookupTemplate(c.Type)
		}
		if !ok {
			// Template removed since the instance was created. Keep the
			// instance with no body; it evaluates to Null outputs.
			continue
		}
		nested, err := g.fork(c.ID, sub, stack)
		if err != nil {
			return nil, err
		}
		out = append(out, nested...)
	}
	return out, nil
}

// checkTemplateRecursion rejects instantiating tmpl inside g when tmpl is
// g, or when tmpl transitively instantiates g.
func (g *Graph) checkTemplateRecursion(instanceID string, tmpl *Graph) error {
	seen := make(map[string]bool)
	stack := []*Graph{tmpl}
	for len(stack) > 0 {
		t := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if t == g || t.name == g.name {
			return newError(ErrCodeCycleDetected, instanceID, "",
				"template %q would instantiate %q inside itself", tmpl.name, g.name)
		}
		if seen[t.name] {
			continue
		}
		seen[t.name] = true
		for _, id := range t.order {
			n := t.nodes[id]
			if n.Kind != KindSubgraph || n.Forked() {
				continue
			}
			if sub, ok := t.lookupTemplate(n.Type); ok {
				stack = append(stack, sub)
			}
		}
	}
	return nil
}

// syncSockets makes the instance's sockets match the template IO. Sockets
// that survive by name keep their links and defaults set on the instance.
func syncSockets(inst *Node, inputs, outputs []SocketSpec) {
	newIn := make([]*Socket, 0, len(inputs))
	for _, spec := range inputs {
		s := spec.socket(inst.ID, Input, spec.Name)
		if old := inst.Input(spec.Name); old != nil {
			s.Link = old.Link
			if old.Default != nil {
				s.Default = old.Default
			}
		}
		newIn = append(newIn, s)
	}
	newOut := make([]*Socket, 0, len(outputs))
	for _, spec := range outputs {
		newOut = append(newOut, spec.socket(inst.ID, Output, spec.Name))
	}
	inst.Inputs = newIn
	inst.Outputs = newOut
}

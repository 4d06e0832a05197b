package graph

// Edge is one output-to-input link, as stored on the destination input.
type Edge struct {
	Src       string `json:"src"`
	SrcSocket string `json:"src_socket"`
	Dst       string `json:"dst"`
	DstSocket string `json:"dst_socket"`
}

// AddEdge links output srcSocket of src to input dstSocket of dst.
//
// Self loops are always rejected, as is any edge whose source already
// depends on the destination. For a subgraph instance that includes the
// forked SubInput nodes bound to dstSocket. Declared types must match unless either
// side is empty or AnyType. A linked input is rebound to the new source.
// On failure the graph is unchanged.
func (g *Graph) AddEdge(src, srcSocket, dst, dstSocket string) error {
	return g.edit(func() error {
		return g.addEdge(src, srcSocket, dst, dstSocket, true)
	})
}

// AddEdgeUnchecked links without the cycle check. Bulk loaders use it and
// must call Validate once loading completes.
func (g *Graph) AddEdgeUnchecked(src, srcSocket, dst, dstSocket string) error {
	return g.edit(func() error {
		return g.addEdge(src, srcSocket, dst, dstSocket, false)
	})
}

func (g *Graph) addEdge(src, srcSocket, dst, dstSocket string, checkCycle bool) error {
	srcNode, ok := g.nodes[src]
	if !ok {
		return newError(ErrCodeSocketNotFound, src, srcSocket, "source node does not exist")
	}
	dstNode, ok := g.nodes[dst]
	if !ok {
		return newError(ErrCodeSocketNotFound, dst, dstSocket, "destination node does not exist")
	}
	out, newOut := srcNode.prepareOutput(srcSocket)
	if out == nil {
		return newError(ErrCodeSocketNotFound, src, srcSocket, "output socket does not exist")
	}
	in, newIn := dstNode.prepareInput(dstSocket)
	if in == nil {
		return newError(ErrCodeSocketNotFound, dst, dstSocket, "input socket does not exist")
	}
	if !typesCompatible(out.Type, in.Type) {
		return newError(ErrCodeTypeMismatch, dst, dstSocket,
			"cannot link %s.%s (%s) to %s.%s (%s)", src, srcSocket, out.Type, dst, dstSocket, in.Type)
	}
	if src == dst {
		return newError(ErrCodeCycleDetected, dst, dstSocket, "self loop")
	}
	if checkCycle {
		for _, reader := range g.readers(dstNode, dstSocket) {
			if g.dependsOn(src, reader) {
				return newError(ErrCodeCycleDetected, dst, dstSocket,
					"%s already depends on %s", src, reader)
			}
		}
	}

	if newOut {
		srcNode.Outputs = append(srcNode.Outputs, out)
	}
	if newIn {
		dstNode.attachInput(in)
	}
	in.Link = &Link{Node: src, Socket: srcSocket}
	dstNode.rev++
	return nil
}

// RemoveEdge unlinks input dstSocket of dst.
func (g *Graph) RemoveEdge(dst, dstSocket string) error {
	return g.edit(func() error {
		n, in, err := g.linkedInput(dst, dstSocket)
		if err != nil {
			return err
		}
		in.Link = nil
		n.rev++
		return nil
	})
}

// RemoveLink removes the edge only if it matches all four endpoints.
func (g *Graph) RemoveLink(src, srcSocket, dst, dstSocket string) error {
	return g.edit(func() error {
		n, in, err := g.linkedInput(dst, dstSocket)
		if err != nil {
			return err
		}
		if in.Link.Node != src || in.Link.Socket != srcSocket {
			return newError(ErrCodeEdgeNotFound, dst, dstSocket,
				"input is linked to %s.%s, not %s.%s", in.Link.Node, in.Link.Socket, src, srcSocket)
		}
		in.Link = nil
		n.rev++
		return nil
	})
}

func (g *Graph) linkedInput(dst, dstSocket string) (*Node, *Socket, error) {
	n, ok := g.nodes[dst]
	if !ok {
		return nil, nil, newError(ErrCodeEdgeNotFound, dst, dstSocket, "node does not exist")
	}
	in := n.Input(dstSocket)
	if in == nil || in.Link == nil {
		return nil, nil, newError(ErrCodeEdgeNotFound, dst, dstSocket, "input is not linked")
	}
	return n, in, nil
}

// Edges returns every link in node order, then input order.
func (g *Graph) Edges() []Edge {
	var out []Edge
	for _, id := range g.order {
		for _, in := range g.nodes[id].Inputs {
			if in.Link != nil {
				out = append(out, Edge{Src: in.Link.Node, SrcSocket: in.Link.Socket, Dst: id, DstSocket: in.Name})
			}
		}
	}
	return out
}

// EdgeCount returns the number of links.
func (g *Graph) EdgeCount() int {
	count := 0
	for _, n := range g.nodes {
		for _, in := range n.Inputs {
			if in.Link != nil {
				count++
			}
		}
	}
	return count
}

// readers returns the nodes that read input socket of n. For a subgraph
// instance these are the instance itself plus the forked SubInput nodes
// bound to the socket.
func (g *Graph) readers(n *Node, socket string) []string {
	out := []string{n.ID}
	if n.Kind != KindSubgraph {
		return out
	}
	for _, mid := range g.members[n.ID] {
		m := g.nodes[mid]
		if m != nil && m.Kind == KindSubInput && m.ParamString(ParamName) == socket {
			out = append(out, mid)
		}
	}
	return out
}

// dependsOn reports whether from transitively reads target.
func (g *Graph) dependsOn(from, target string) bool {
	seen := make(map[string]bool)
	stack := []string{from}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if id == target {
			return true
		}
		if seen[id] {
			continue
		}
		seen[id] = true
		stack = append(stack, g.Dependencies(id)...)
	}
	return false
}

package graph

import (
	"fmt"
	"strings"
)

// Dependencies returns the ids of the nodes whose outputs id reads, in
// input order:
//   - every linked input's producer
//   - for a forked SubInput, whatever feeds the owner instance's socket
//   - for a subgraph instance, only its forked SubOutput nodes; its own
//     input links are read through the SubInputs
func (g *Graph) Dependencies(id string) []string {
	n, ok := g.nodes[id]
	if !ok {
		return nil
	}
	var deps []string
	for _, in := range n.Inputs {
		if n.Kind == KindSubgraph {
			break
		}
		if in.Link != nil {
			if _, ok := g.nodes[in.Link.Node]; ok {
				deps = append(deps, in.Link.Node)
			}
		}
	}
	switch n.Kind {
	case KindSubInput:
		if owner, ok := g.nodes[n.Owner]; ok {
			if in := owner.Input(n.ParamString(ParamName)); in != nil && in.Link != nil {
				if _, ok := g.nodes[in.Link.Node]; ok {
					deps = append(deps, in.Link.Node)
				}
			}
		}
	case KindSubgraph:
		for _, mid := range g.members[id] {
			if m := g.nodes[mid]; m != nil && m.Kind == KindSubOutput {
				deps = append(deps, mid)
			}
		}
	}
	return deps
}

// Validate checks a graph loaded without per-edge cycle checks. It returns
// a CYCLE_DETECTED error describing every cycle found, or nil for a DAG.
func (g *Graph) Validate() error {
	cycles := g.Cycles()
	if len(cycles) == 0 {
		return nil
	}
	parts := make([]string, len(cycles))
	for i, c := range cycles {
		parts[i] = strings.Join(c, " → ")
	}
	return &Error{
		Code:    ErrCodeCycleDetected,
		NodeID:  cycles[0][0],
		Message: fmt.Sprintf("%d cycle(s): %s", len(cycles), strings.Join(parts, "; ")),
	}
}

// Cycles returns every cycle as a data-flow path that starts and ends at
// the same node, e.g. ["a", "b", "a"]. A DAG returns nil.
//
// Strongly connected components are found with Tarjan's algorithm; each
// component with more than one node (or a self loop) is one cycle.
func (g *Graph) Cycles() [][]string {
	succ := g.successors()

	var cycles [][]string
	for _, scc := range tarjanSCC(g.order, succ) {
		if len(scc) > 1 || hasSelfLoop(scc[0], succ) {
			cycles = append(cycles, cyclePath(scc, succ))
		}
	}
	return cycles
}

// successors inverts Dependencies into producer -> consumers.
func (g *Graph) successors() map[string][]string {
	succ := make(map[string][]string, len(g.order))
	for _, id := range g.order {
		for _, dep := range g.Dependencies(id) {
			succ[dep] = append(succ[dep], id)
		}
	}
	return succ
}

func hasSelfLoop(node string, succ map[string][]string) bool {
	for _, next := range succ[node] {
		if next == node {
			return true
		}
	}
	return false
}

// tarjanSCC visits nodes in the given order so results are deterministic.
func tarjanSCC(order []string, succ map[string][]string) [][]string {
	var (
		index   = 0
		stack   []string
		indices = make(map[string]int)
		lowlink = make(map[string]int)
		onStack = make(map[string]bool)
		sccs    [][]string
	)

	var strongConnect func(string)
	strongConnect = func(v string) {
		indices[v] = index
		lowlink[v] = index
		index++
		stack = append(stack, v)
		onStack[v] = true

		for _, w := range succ[v] {
			if _, visited := indices[w]; !visited {
				strongConnect(w)
				lowlink[v] = min(lowlink[v], lowlink[w])
			} else if onStack[w] {
				lowlink[v] = min(lowlink[v], indices[w])
			}
		}

		// v is a root: pop its component
		if lowlink[v] == indices[v] {
			var scc []string
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				scc = append(scc, w)
				if w == v {
					break
				}
			}
			sccs = append(sccs, scc)
		}
	}

	for _, node := range order {
		if _, visited := indices[node]; !visited {
			strongConnect(node)
		}
	}
	return sccs
}

// cyclePath returns the shortest cycle through the component's root,
// found breadth-first within the component.
func cyclePath(scc []string, succ map[string][]string) []string {
	members := make(map[string]bool, len(scc))
	for _, id := range scc {
		members[id] = true
	}
	// The root is popped last.
	start := scc[len(scc)-1]

	parent := make(map[string]string)
	queue := []string{start}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		for _, w := range succ[current] {
			if !members[w] {
				continue
			}
			if w == start {
				path := []string{start}
				for at := current; at != start; at = parent[at] {
					path = append(path, at)
				}
				// path is reversed apart from the leading start
				for i, j := 1, len(path)-1; i < j; i, j = i+1, j-1 {
					path[i], path[j] = path[j], path[i]
				}
				return append(path, start)
			}
			if _, seen := parent[w]; !seen {
				parent[w] = current
				queue = append(queue, w)
			}
		}
	}
	return []string{start}
}

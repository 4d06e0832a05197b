package graph

import (
	"slices"
	"strings"
	"sync"

	"github.com/roach88/dopgraph/internal/value"
)

// Resolver maps type names to node layouts and template graphs.
//
// A type name resolves either to a registered node type (Layout) or to a
// template graph (Template), in that order.
type Resolver interface {
	Layout(typeName string) (Layout, bool)
	Template(name string) (*Graph, bool)
}

// Graph is a named set of nodes linked output-to-input, plus the set of
// view sinks that are always evaluated.
//
// Graph is not safe for concurrent editing. Mutations are serialized
// against BeginPass so that an evaluation pass can never observe a
// half-applied edit.
type Graph struct {
	name     string
	resolver Resolver

	nodes   map[string]*Node
	order   []string
	views   map[string]struct{}
	members map[string][]string // instance id -> forked node ids

	mu   sync.Mutex
	busy bool
}

// New creates an empty graph. resolver may be nil, in which case every
// type name is unknown.
func New(name string, resolver Resolver) *Graph {
	return &Graph{
		name:     name,
		resolver: resolver,
		nodes:    make(map[string]*Node),
		views:    make(map[string]struct{}),
		members:  make(map[string][]string),
	}
}

// Name returns the graph name. Templates are referenced by it.
func (g *Graph) Name() string {
	return g.name
}

// Resolver returns the resolver used for type lookups.
func (g *Graph) Resolver() Resolver {
	return g.resolver
}

// SetResolver replaces the resolver used for type lookups.
func (g *Graph) SetResolver(r Resolver) {
	g.resolver = r
}

// Node returns the node with the given id.
func (g *Graph) Node(id string) (*Node, bool) {
	n, ok := g.nodes[id]
	return n, ok
}

// Nodes returns all nodes in insertion order. Forked nodes follow their
// instance.
func (g *Graph) Nodes() []*Node {
	out := make([]*Node, 0, len(g.order))
	for _, id := range g.order {
		out = append(out, g.nodes[id])
	}
	return out
}

// Len returns the number of nodes, forked nodes included.
func (g *Graph) Len() int {
	return len(g.order)
}

// Members returns the ids of the nodes forked directly for an instance.
func (g *Graph) Members(instanceID string) []string {
	return slices.Clone(g.members[instanceID])
}

// Views returns the view sinks in node order.
func (g *Graph) Views() []string {
	var out []string
	for _, id := range g.order {
		if _, ok := g.views[id]; ok {
			out = append(out, id)
		}
	}
	return out
}

// IsView reports whether id is a view sink.
func (g *Graph) IsView(id string) bool {
	_, ok := g.views[id]
	return ok
}

// BeginPass latches the graph for evaluation. Mutations fail with
// GRAPH_BUSY until EndPass.
func (g *Graph) BeginPass() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.busy {
		return newError(ErrCodeBusy, "", "", "graph %q is already being evaluated", g.name)
	}
	g.busy = true
	return nil
}

// EndPass releases the evaluation latch.
func (g *Graph) EndPass() {
	g.mu.Lock()
	g.busy = false
	g.mu.Unlock()
}

// Busy reports whether an evaluation pass holds the latch.
func (g *Graph) Busy() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.busy
}

// edit runs fn with the latch checked and edits serialized.
func (g *Graph) edit(fn func() error) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.busy {
		return newError(ErrCodeBusy, "", "", "graph %q is being evaluated", g.name)
	}
	return fn()
}

// AddNode creates a node of the given type.
//
// typeName must be a registered node type or a template name known to the
// resolver. A template name creates a subgraph instance and forks the
// template's nodes under the "<id>/" namespace.
func (g *Graph) AddNode(id, typeName string, params map[string]value.Value) (*Node, error) {
	var n *Node
	err := g.edit(func() error {
		var err error
		n, err = g.addNode(id, typeName, params, false)
		return err
	})
	return n, err
}

// AddNodeUnchecked is AddNode for bulk loads. Unknown type names do not
// fail; the node is created unresolved so the rest of the graph stays
// loadable and inspectable.
func (g *Graph) AddNodeUnchecked(id, typeName string, params map[string]value.Value) (*Node, error) {
	var n *Node
	err := g.edit(func() error {
		var err error
		n, err = g.addNode(id, typeName, params, true)
		return err
	})
	return n, err
}

func (g *Graph) addNode(id, typeName string, params map[string]value.Value, unchecked bool) (*Node, error) {
	if _, exists := g.nodes[id]; exists {
		return nil, newError(ErrCodeDuplicateID, id, "", "node id already exists")
	}

	var (
		n      *Node
		forked []*Node
	)
	if layout, ok := g.lookupLayout(typeName); ok {
		n = newNode(id, typeName, layout)
	} else if tmpl, ok := g.lookupTemplate(typeName); ok {
		if err := g.checkTemplateRecursion(id, tmpl); err != nil {
			return nil, err
		}
		inputs, outputs := SubnetIO(tmpl)
		n = newNode(id, typeName, Layout{Kind: KindSubgraph, Inputs: inputs, Outputs: outputs})
		var err error
		forked, err = g.fork(id, tmpl, []string{g.name})
		if err != nil {
			return nil, err
		}
	} else if unchecked {
		n = newNode(id, typeName, Layout{})
		n.Unresolved = true
	} else {
		return nil, newError(ErrCodeUnknownType, id, "", "type %q is neither registered nor a template", typeName)
	}

	for _, name := range value.SortedKeys(mapKeys(params)) {
		n.setParam(name, params[name])
	}

	if err := g.checkFreeIDs(forked); err != nil {
		return nil, err
	}
	g.insert(n)
	g.insertMembers(id, forked)
	return n, nil
}

// RemoveNode removes a node and every link touching it. Removing a
// subgraph instance also removes all of its forked nodes.
func (g *Graph) RemoveNode(id string) error {
	return g.edit(func() error {
		if _, ok := g.nodes[id]; !ok {
			return newError(ErrCodeNotFound, id, "", "node does not exist")
		}
		g.removeNodes(g.subtree(id))
		return nil
	})
}

// subtree returns id plus every node forked for it, at any depth.
func (g *Graph) subtree(id string) map[string]struct{} {
	doomed := map[string]struct{}{id: {}}
	prefix := id + "/"
	for _, nid := range g.order {
		n := g.nodes[nid]
		if n.Owner == id || strings.HasPrefix(n.Owner, prefix) {
			doomed[nid] = struct{}{}
		}
	}
	return doomed
}

func (g *Graph) removeNodes(doomed map[string]struct{}) {
	g.order = slices.DeleteFunc(g.order, func(nid string) bool {
		_, gone := doomed[nid]
		return gone
	})
	for nid := range doomed {
		n := g.nodes[nid]
		delete(g.nodes, nid)
		delete(g.views, nid)
		delete(g.members, nid)
		if n != nil && n.Owner != "" {
			g.members[n.Owner] = slices.DeleteFunc(g.members[n.Owner], func(m string) bool { return m == nid })
		}
	}
	for _, nid := range g.order {
		n := g.nodes[nid]
		for _, in := range n.Inputs {
			if in.Link == nil {
				continue
			}
			if _, gone := doomed[in.Link.Node]; gone {
				in.Link = nil
				n.rev++
			}
		}
	}
}

// SetParam sets a node param and marks the node dirty.
func (g *Graph) SetParam(id, name string, v value.Value) error {
	return g.edit(func() error {
		n, ok := g.nodes[id]
		if !ok {
			return newError(ErrCodeNotFound, id, "", "node does not exist")
		}
		n.setParam(name, v)
		n.rev++
		return nil
	})
}

// SetInputDefault sets the default an unlinked input reads. Variadic
// sub-sockets are created on demand.
func (g *Graph) SetInputDefault(id, socket string, v value.Value) error {
	return g.edit(func() error {
		n, ok := g.nodes[id]
		if !ok {
			return newError(ErrCodeNotFound, id, "", "node does not exist")
		}
		in, isNew := n.prepareInput(socket)
		if in == nil {
			return newError(ErrCodeSocketNotFound, id, socket, "input socket does not exist")
		}
		if isNew {
			n.attachInput(in)
		}
		in.Default = value.OrNull(v)
		n.rev++
		return nil
	})
}

// SetOptions replaces a node's evaluation options.
func (g *Graph) SetOptions(id string, opts Options) error {
	return g.edit(func() error {
		n, ok := g.nodes[id]
		if !ok {
			return newError(ErrCodeNotFound, id, "", "node does not exist")
		}
		if n.Options != opts {
			n.Options = opts
			n.rev++
		}
		return nil
	})
}

// MarkView adds id to the view sinks.
func (g *Graph) MarkView(id string) error {
	return g.edit(func() error {
		if _, ok := g.nodes[id]; !ok {
			return newError(ErrCodeNotFound, id, "", "node does not exist")
		}
		g.views[id] = struct{}{}
		return nil
	})
}

// UnmarkView removes id from the view sinks. Unmarking a node that is not
// a view is a no-op.
func (g *Graph) UnmarkView(id string) error {
	return g.edit(func() error {
		if _, ok := g.nodes[id]; !ok {
			return newError(ErrCodeNotFound, id, "", "node does not exist")
		}
		delete(g.views, id)
		return nil
	})
}

func (g *Graph) insert(n *Node) {
	g.nodes[n.ID] = n
	g.order = append(g.order, n.ID)
}

// insertMembers adds forked nodes right after their instance.
func (g *Graph) insertMembers(instanceID string, forked []*Node) {
	if len(forked) == 0 {
		return
	}
	pos := slices.Index(g.order, instanceID) + 1
	ids := make([]string, len(forked))
	for i, n := range forked {
		g.nodes[n.ID] = n
		ids[i] = n.ID
		g.members[n.Owner] = append(g.members[n.Owner], n.ID)
	}
	g.order = slices.Insert(g.order, pos, ids...)
}

func (g *Graph) checkFreeIDs(nodes []*Node) error {
	for _, n := range nodes {
		if _, exists := g.nodes[n.ID]; exists {
			return newError(ErrCodeDuplicateID, n.ID, "", "forked node id collides with an existing node")
		}
	}
	return nil
}

func (g *Graph) lookupLayout(typeName string) (Layout, bool) {
	if g.resolver == nil {
		return Layout{}, false
	}
	return g.resolver.Layout(typeName)
}

func (g *Graph) lookupTemplate(name string) (*Graph, bool) {
	if g.resolver == nil {
		return nil, false
	}
	return g.resolver.Template(name)
}

func mapKeys(m map[string]value.Value) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	return keys
}

// RenameSocket renames a socket on a node. Links are preserved: an input
// keeps its producer, and every consumer reading a renamed output is
// relinked to the new name.
func (g *Graph) RenameSocket(id string, kind SocketKind, oldName, newName string) error {
	return g.edit(func() error {
		n, ok := g.nodes[id]
		if !ok {
			return newError(ErrCodeNotFound, id, "", "node does not exist")
		}
		sockets := n.Inputs
		if kind == Output {
			sockets = n.Outputs
		}
		s := findSocket(sockets, oldName)
		if s == nil {
			return newError(ErrCodeSocketNotFound, id, oldName, "%s socket does not exist", kind)
		}
		if oldName == newName {
			return nil
		}
		if findSocket(sockets, newName) != nil {
			return newError(ErrCodeDuplicateID, id, newName, "%s socket already exists", kind)
		}
		s.Name = newName
		if kind == Output {
			for _, nid := range g.order {
				for _, in := range g.nodes[nid].Inputs {
					if in.Link != nil && in.Link.Node == id && in.Link.Socket == oldName {
						in.Link.Socket = newName
					}
				}
			}
		}
		n.rev++
		return nil
	})
}

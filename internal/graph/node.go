package graph

import (
	"slices"

	"github.com/roach88/dopgraph/internal/value"
)

// NodeKind tells the evaluator how a node produces its outputs.
type NodeKind int

const (
	// KindNormal nodes run the apply behavior of their registered type.
	KindNormal NodeKind = iota

	// KindSubgraph nodes are template instances. Their outputs are read
	// from the forked SubOutput nodes.
	KindSubgraph

	// KindSubInput nodes read the owner instance's input socket named by
	// their "name" param.
	KindSubInput

	// KindSubOutput nodes pass their "port" input to the owner instance's
	// output socket named by their "name" param.
	KindSubOutput
)

func (k NodeKind) String() string {
	switch k {
	case KindSubgraph:
		return "subgraph"
	case KindSubInput:
		return "subinput"
	case KindSubOutput:
		return "suboutput"
	default:
		return "normal"
	}
}

// Options are per-node evaluation flags.
type Options uint8

const (
	// OptOnce nodes reuse any cached output until their params change.
	OptOnce Options = 1 << iota

	// OptMute nodes forward inputs to outputs by position without applying.
	OptMute
)

// Has reports whether all bits of o2 are set in o.
func (o Options) Has(o2 Options) bool {
	return o&o2 == o2
}

// Well-known param names on SubInput and SubOutput nodes.
const (
	ParamName    = "name"
	ParamType    = "type"
	ParamDefault = "defl"

	// PortSocket is the single data socket of SubInput and SubOutput nodes.
	PortSocket = "port"
)

// Param is one named node parameter.
type Param struct {
	Name  string
	Value value.Value
}

// Layout is everything the graph needs to know about a node type in order
// to create nodes of it.
type Layout struct {
	Kind          NodeKind
	Inputs        []SocketSpec
	Outputs       []SocketSpec
	Params        []ParamSpec
	TimeDependent bool
}

// Node is a named operation with ordered sockets and params.
//
// Nodes are handed out as pointers for inspection. Mutate them only
// through Graph methods, which enforce the latch and keep revisions.
type Node struct {
	ID      string
	Type    string
	Kind    NodeKind
	Inputs  []*Socket
	Outputs []*Socket
	Params  []Param
	Options Options

	// Owner is the id of the subgraph instance this node was forked for.
	// Empty for nodes the user added directly.
	Owner string

	// TimeDependent nodes re-run whenever the frame number changes.
	TimeDependent bool

	// Unresolved marks nodes whose type was unknown at load time. They
	// accept any socket name and are skipped by the evaluator.
	Unresolved bool

	variadic []SocketSpec
	rev      uint64
}

// Rev is a counter bumped on every param, default, option or link change. The
// evaluator compares it against the revision it last executed to decide
// whether the node is dirty.
func (n *Node) Rev() uint64 {
	return n.rev
}

// Forked reports whether the node belongs to a subgraph instance.
func (n *Node) Forked() bool {
	return n.Owner != ""
}

// Input returns the named input socket or nil.
func (n *Node) Input(name string) *Socket {
	return findSocket(n.Inputs, name)
}

// Output returns the named output socket or nil.
func (n *Node) Output(name string) *Socket {
	return findSocket(n.Outputs, name)
}

// Param returns the value of the named param.
func (n *Node) Param(name string) (value.Value, bool) {
	for _, p := range n.Params {
		if p.Name == name {
			return p.Value, true
		}
	}
	return nil, false
}

// ParamString returns the named param as a string, or "" if it is absent
// or not a string.
func (n *Node) ParamString(name string) string {
	v, _ := n.Param(name)
	s, _ := value.AsString(v)
	return s
}

// ParamMap returns a snapshot of the params keyed by name.
func (n *Node) ParamMap() map[string]value.Value {
	out := make(map[string]value.Value, len(n.Params))
	for _, p := range n.Params {
		out[p.Name] = p.Value
	}
	return out
}

// VariadicSpecs returns the variadic input specs declared for this node.
func (n *Node) VariadicSpecs() []SocketSpec {
	return slices.Clone(n.variadic)
}

// SubSockets returns the existing sub-sockets of a variadic prefix in
// index order.
func (n *Node) SubSockets(prefix string) []*Socket {
	type indexed struct {
		idx int
		s   *Socket
	}
	var subs []indexed
	for _, s := range n.Inputs {
		if idx, ok := SubSocketIndex(prefix, s.Name); ok && n.variadicSpec(s.Name) != nil {
			subs = append(subs, indexed{idx, s})
		}
	}
	slices.SortFunc(subs, func(a, b indexed) int { return a.idx - b.idx })
	out := make([]*Socket, len(subs))
	for i, sub := range subs {
		out[i] = sub.s
	}
	return out
}

func (n *Node) setParam(name string, v value.Value) {
	v = value.OrNull(v)
	for i := range n.Params {
		if n.Params[i].Name == name {
			n.Params[i].Value = v
			return
		}
	}
	n.Params = append(n.Params, Param{Name: name, Value: v})
}

func (n *Node) variadicSpec(name string) *SocketSpec {
	for i := range n.variadic {
		if _, ok := SubSocketIndex(n.variadic[i].Name, name); ok {
			return &n.variadic[i]
		}
	}
	return nil
}

// prepareInput finds the named input. When it does not exist yet but
// name is a variadic sub-socket, or the node is unresolved, it returns a
// fresh socket with isNew set. Nothing is attached until attachInput.
func (n *Node) prepareInput(name string) (s *Socket, isNew bool) {
	if s := n.Input(name); s != nil {
		return s, false
	}
	if spec := n.variadicSpec(name); spec != nil {
		return spec.socket(n.ID, Input, name), true
	}
	if n.Unresolved {
		return &Socket{Name: name, Owner: n.ID, Kind: Input}, true
	}
	return nil, false
}

func (n *Node) attachInput(s *Socket) {
	if spec := n.variadicSpec(s.Name); spec != nil {
		n.insertSubSocket(spec.Name, s)
		return
	}
	n.Inputs = append(n.Inputs, s)
}

// prepareOutput finds the named output, or plans one on unresolved nodes.
func (n *Node) prepareOutput(name string) (s *Socket, isNew bool) {
	if s := n.Output(name); s != nil {
		return s, false
	}
	if n.Unresolved {
		return &Socket{Name: name, Owner: n.ID, Kind: Output}, true
	}
	return nil, false
}

// insertSubSocket places s among its siblings in index order, or at the
// end if it is the first sub-socket of its prefix.
func (n *Node) insertSubSocket(prefix string, s *Socket) {
	idx, _ := SubSocketIndex(prefix, s.Name)
	pos := len(n.Inputs)
	seen := false
	for i, in := range n.Inputs {
		other, ok := SubSocketIndex(prefix, in.Name)
		if !ok {
			if seen {
				pos = i
				break
			}
			continue
		}
		seen = true
		if other > idx {
			pos = i
			break
		}
		pos = i + 1
	}
	n.Inputs = slices.Insert(n.Inputs, pos, s)
}

// clone copies the node under a new id. Links are left pointing at the
// original ids; the caller rebinds them.
func (n *Node) clone(id, owner string) *Node {
	out := &Node{
		ID:            id,
		Type:          n.Type,
		Kind:          n.Kind,
		Params:        slices.Clone(n.Params),
		Options:       n.Options,
		Owner:         owner,
		TimeDependent: n.TimeDependent,
		Unresolved:    n.Unresolved,
		variadic:      slices.Clone(n.variadic),
	}
	out.Inputs = make([]*Socket, len(n.Inputs))
	for i, s := range n.Inputs {
		out.Inputs[i] = s.clone(id)
	}
	out.Outputs = make([]*Socket, len(n.Outputs))
	for i, s := range n.Outputs {
		out.Outputs[i] = s.clone(id)
	}
	return out
}

func newNode(id, typeName string, layout Layout) *Node {
	n := &Node{
		ID:            id,
		Type:          typeName,
		Kind:          layout.Kind,
		TimeDependent: layout.TimeDependent,
	}
	for _, spec := range layout.Inputs {
		if spec.Variadic {
			n.variadic = append(n.variadic, spec)
			continue
		}
		n.Inputs = append(n.Inputs, spec.socket(id, Input, spec.Name))
	}
	for _, spec := range layout.Outputs {
		n.Outputs = append(n.Outputs, spec.socket(id, Output, spec.Name))
	}
	for _, p := range layout.Params {
		n.Params = append(n.Params, Param{Name: p.Name, Value: value.OrNull(p.Default)})
	}
	return n
}

func findSocket(sockets []*Socket, name string) *Socket {
	for _, s := range sockets {
		if s.Name == name {
			return s
		}
	}
	return nil
}

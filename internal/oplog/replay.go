package oplog

import (
	"errors"
	"fmt"

	"github.com/roach88/dopgraph/internal/graph"
)

// Mode selects how Replay links edges.
type Mode int

const (
	// Checked links every edge as it is replayed and rejects cycles at
	// the offending op.
	Checked Mode = iota

	// Bulk adds nodes of unknown type as unresolved nodes, links all edges
	// unchecked once every node exists, then validates the whole graph.
	Bulk
)

// String returns the mode name.
func (m Mode) String() string {
	switch m {
	case Checked:
		return "checked"
	case Bulk:
		return "bulk"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// ParseMode parses "checked" or "bulk".
func ParseMode(s string) (Mode, error) {
	switch s {
	case "checked", "":
		return Checked, nil
	case "bulk":
		return Bulk, nil
	default:
		return Checked, fmt.Errorf("unknown replay mode %q (want checked or bulk)", s)
	}
}

// ErrIncomplete is returned when a replay adds a node that no completeNode
// op closes.
var ErrIncomplete = errors.New("node was never completed")

// OpError wraps the error of the op at Index.
type OpError struct {
	Index int
	Op    Op
	Err   error
}

func (e *OpError) Error() string {
	return fmt.Sprintf("op %d %s: %v", e.Index, e.Op, e.Err)
}

func (e *OpError) Unwrap() error {
	return e.Err
}

// Replay applies ops to g in order.
//
// Checked replay stops at the first failing op and returns an *OpError;
// ops before it stay applied. Bulk replay defers every bindNodeInput
// until all other ops are applied and finishes with g.Validate, so a
// cyclic import is reported as a CYCLE_DETECTED graph error.
func Replay(g *graph.Graph, ops []Op, mode Mode) error {
	r := &replayer{g: g, mode: mode, open: make(map[string]bool)}
	var deferred []int
	for i, op := range ops {
		if mode == Bulk && op.Kind == KindBindNodeInput {
			deferred = append(deferred, i)
			continue
		}
		if err := r.apply(op); err != nil {
			return &OpError{Index: i, Op: op, Err: err}
		}
	}
	for _, i := range deferred {
		op := ops[i]
		if err := g.AddEdgeUnchecked(op.Src, op.SrcSocket, op.Node, op.Name); err != nil {
			return &OpError{Index: i, Op: op, Err: err}
		}
	}
	for _, id := range r.order {
		if r.open[id] {
			return fmt.Errorf("replay %s: %s: %w", g.Name(), id, ErrIncomplete)
		}
	}
	if mode == Bulk {
		return g.Validate()
	}
	return nil
}

type replayer struct {
	g     *graph.Graph
	mode  Mode
	open  map[string]bool
	order []string
}

func (r *replayer) apply(op Op) error {
	g := r.g
	switch op.Kind {
	case KindAddNode:
		var err error
		if r.mode == Bulk {
			_, err = g.AddNodeUnchecked(op.Node, op.Type, nil)
		} else {
			_, err = g.AddNode(op.Node, op.Type, nil)
		}
		if err != nil {
			return err
		}
		r.open[op.Node] = true
		r.order = append(r.order, op.Node)
		return nil

	case KindSetNodeParam:
		return g.SetParam(op.Node, op.Name, op.Value)

	case KindSetNodeInput:
		return g.SetInputDefault(op.Node, op.Name, op.Value)

	case KindBindNodeInput:
		return g.AddEdge(op.Src, op.SrcSocket, op.Node, op.Name)

	case KindSetNodeOption:
		return r.setOption(op.Node, op.Name)

	case KindMarkView:
		return g.MarkView(op.Node)

	case KindCompleteNode:
		if _, ok := g.Node(op.Node); !ok {
			return fmt.Errorf("complete %s: node does not exist", op.Node)
		}
		delete(r.open, op.Node)
		return nil

	default:
		return fmt.Errorf("unknown op %q", op.Kind)
	}
}

func (r *replayer) setOption(id, option string) error {
	n, ok := r.g.Node(id)
	if !ok {
		return fmt.Errorf("set option %s on %s: node does not exist", option, id)
	}
	switch option {
	case OptionOnce:
		return r.g.SetOptions(id, n.Options|graph.OptOnce)
	case OptionMute:
		return r.g.SetOptions(id, n.Options|graph.OptMute)
	case OptionView:
		return r.g.MarkView(id)
	default:
		return fmt.Errorf("unknown option %q", option)
	}
}

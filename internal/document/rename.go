package document

import (
	"fmt"

	"github.com/roach88/dopgraph/internal/graph"
	"github.com/roach88/dopgraph/internal/value"
)

// RenameSubnetIO renames the SubInput or SubOutput node ioNodeID of a
// template. Every instance of the template, in any graph, renames the
// matching socket with its links intact, and every forked copy of the IO
// node takes the new name.
//
// Evaluation tolerates the rename between passes because bindings are
// recomputed each pass.
func (d *Document) RenameSubnetIO(templateName, ioNodeID, newName string) error {
	tmpl, ok := d.graphs[templateName]
	if !ok {
		return fmt.Errorf("template %q does not exist", templateName)
	}
	io, ok := tmpl.Node(ioNodeID)
	if !ok {
		return &graph.Error{Code: graph.ErrCodeNotFound, NodeID: ioNodeID, Message: "node does not exist"}
	}
	var kind graph.SocketKind
	switch io.Kind {
	case graph.KindSubInput:
		kind = graph.Input
	case graph.KindSubOutput:
		kind = graph.Output
	default:
		return fmt.Errorf("node %s of %s is not a SubInput or SubOutput", ioNodeID, templateName)
	}
	oldName := io.ParamString(graph.ParamName)
	if oldName == newName {
		return nil
	}

	if err := tmpl.SetParam(ioNodeID, graph.ParamName, value.String(newName)); err != nil {
		return err
	}
	for _, inst := range d.Instances(templateName) {
		n, _ := inst.Graph.Node(inst.NodeID)
		if sockets := socketsOf(n, kind); findName(sockets, oldName) {
			if err := inst.Graph.RenameSocket(inst.NodeID, kind, oldName, newName); err != nil {
				return fmt.Errorf("rename socket on %s in %s: %w", inst.NodeID, inst.Graph.Name(), err)
			}
		}
		copyID := inst.NodeID + "/" + ioNodeID
		if _, ok := inst.Graph.Node(copyID); ok {
			if err := inst.Graph.SetParam(copyID, graph.ParamName, value.String(newName)); err != nil {
				return err
			}
		}
	}
	return nil
}

func socketsOf(n *graph.Node, kind graph.SocketKind) []*graph.Socket {
	if kind == graph.Output {
		return n.Outputs
	}
	return n.Inputs
}

func findName(sockets []*graph.Socket, name string) bool {
	for _, s := range sockets {
		if s.Name == name {
			return true
		}
	}
	return false
}

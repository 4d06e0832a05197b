package oplog

import (
	"encoding/json"
	"fmt"

	"github.com/roach88/dopgraph/internal/document"
	"github.com/roach88/dopgraph/internal/graph"
)

// GraphOps is the op sequence of one named graph.
type GraphOps struct {
	Name string `json:"name"`
	Ops  []Op   `json:"ops"`
}

// Script is the op form of a whole document. Graphs are listed so that
// every template comes before the first graph that instantiates it; the
// main graph is last.
type Script struct {
	Graphs []GraphOps `json:"graphs"`
}

// Graph returns the ops of the named graph.
func (s *Script) Graph(name string) ([]Op, bool) {
	for _, g := range s.Graphs {
		if g.Name == name {
			return g.Ops, true
		}
	}
	return nil, false
}

// ExportDocument exports every graph of d in dependency order.
func ExportDocument(d *document.Document) *Script {
	s := &Script{}
	done := make(map[string]bool)
	var visit func(g *graph.Graph)
	visit = func(g *graph.Graph) {
		if done[g.Name()] {
			return
		}
		done[g.Name()] = true
		for _, n := range g.Nodes() {
			if n.Kind != graph.KindSubgraph || n.Forked() {
				continue
			}
			if tmpl, ok := d.Template(n.Type); ok {
				visit(tmpl)
			}
		}
		s.Graphs = append(s.Graphs, GraphOps{Name: g.Name(), Ops: Export(g)})
	}
	for _, g := range d.Graphs() {
		if g.Name() != document.MainGraph {
			visit(g)
		}
	}
	visit(d.Main())
	return s
}

// ReplayDocument replays every graph of s into d in listed order,
// creating graphs that do not exist yet.
func ReplayDocument(d *document.Document, s *Script, mode Mode) error {
	for _, gops := range s.Graphs {
		g, err := d.GraphOrNew(gops.Name)
		if err != nil {
			return err
		}
		if err := Replay(g, gops.Ops, mode); err != nil {
			return fmt.Errorf("graph %s: %w", gops.Name, err)
		}
	}
	return nil
}

// EncodeScript renders s as indented JSON with one op per line.
func EncodeScript(s *Script) ([]byte, error) {
	out := []byte("{\"graphs\": [")
	for i, g := range s.Graphs {
		if i > 0 {
			out = append(out, ',')
		}
		name, _ := json.Marshal(g.Name)
		ops, err := Encode(g.Ops)
		if err != nil {
			return nil, fmt.Errorf("graph %s: %w", g.Name, err)
		}
		out = append(out, "\n{\"name\": "...)
		out = append(out, name...)
		out = append(out, ", \"ops\": "...)
		out = append(out, trimNewline(ops)...)
		out = append(out, '}')
	}
	out = append(out, "\n]}\n"...)
	return out, nil
}

// DecodeScript parses the JSON form of a script.
func DecodeScript(data []byte) (*Script, error) {
	var s Script
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func trimNewline(b []byte) []byte {
	if n := len(b); n > 0 && b[n-1] == '\n' {
		return b[:n-1]
	}
	return b
}

// Package document holds a named collection of graphs: the main graph plus
// any number of templates that other graphs instantiate by name.
//
// A Document is the graph.Resolver for all of its graphs. Type names
// resolve to registered node types first and to graphs of the document
// second.
package document

import (
	"fmt"
	"slices"

	"github.com/roach88/dopgraph/internal/graph"
	"github.com/roach88/dopgraph/internal/registry"
)

// MainGraph is the name of the graph every document starts with.
const MainGraph = "main"

// Document is a set of graphs sharing one type registry.
type Document struct {
	types  *registry.Registry
	graphs map[string]*graph.Graph
	order  []string
}

// New creates a document with an empty main graph.
func New(types *registry.Registry) *Document {
	d := &Document{
		types:  types,
		graphs: make(map[string]*graph.Graph),
	}
	d.graphs[MainGraph] = graph.New(MainGraph, d)
	d.order = append(d.order, MainGraph)
	return d
}

// Types returns the document's type registry.
func (d *Document) Types() *registry.Registry {
	return d.types
}

// Main returns the main graph.
func (d *Document) Main() *graph.Graph {
	return d.graphs[MainGraph]
}

// Graph returns the named graph.
func (d *Document) Graph(name string) (*graph.Graph, bool) {
	g, ok := d.graphs[name]
	return g, ok
}

// Graphs returns every graph in creation order, main first.
func (d *Document) Graphs() []*graph.Graph {
	out := make([]*graph.Graph, len(d.order))
	for i, name := range d.order {
		out[i] = d.graphs[name]
	}
	return out
}

// NewGraph creates an empty graph. Names must be unique and must not
// shadow a registered node type.
func (d *Document) NewGraph(name string) (*graph.Graph, error) {
	if name == "" {
		return nil, fmt.Errorf("graph name must not be empty")
	}
	if _, exists := d.graphs[name]; exists {
		return nil, fmt.Errorf("graph %q already exists", name)
	}
	if _, isType := d.types.Lookup(name); isType {
		return nil, fmt.Errorf("graph name %q shadows a registered node type", name)
	}
	g := graph.New(name, d)
	d.graphs[name] = g
	d.order = append(d.order, name)
	return g, nil
}

// GraphOrNew returns the named graph, creating it if needed.
func (d *Document) GraphOrNew(name string) (*graph.Graph, error) {
	if g, ok := d.graphs[name]; ok {
		return g, nil
	}
	return d.NewGraph(name)
}

// RemoveGraph deletes a template. Existing instances keep their forked
// bodies until they are reforked. The main graph cannot be removed.
func (d *Document) RemoveGraph(name string) error {
	if name == MainGraph {
		return fmt.Errorf("cannot remove the main graph")
	}
	if _, ok := d.graphs[name]; !ok {
		return fmt.Errorf("graph %q does not exist", name)
	}
	delete(d.graphs, name)
	d.order = slices.DeleteFunc(d.order, func(n string) bool { return n == name })
	return nil
}

// Layout implements graph.Resolver.
func (d *Document) Layout(typeName string) (graph.Layout, bool) {
	if d.types == nil {
		return graph.Layout{}, false
	}
	return d.types.Layout(typeName)
}

// Template implements graph.Resolver.
func (d *Document) Template(name string) (*graph.Graph, bool) {
	g, ok := d.graphs[name]
	return g, ok
}

// Instance locates one subgraph instance node.
type Instance struct {
	Graph  *graph.Graph
	NodeID string
}

// Instances returns every instance of a template across the document,
// forked instances included, in graph then node order.
func (d *Document) Instances(templateName string) []Instance {
	var out []Instance
	for _, g := range d.Graphs() {
		for _, n := range g.Nodes() {
			if n.Kind == graph.KindSubgraph && n.Type == templateName {
				out = append(out, Instance{Graph: g, NodeID: n.ID})
			}
		}
	}
	return out
}

// SyncTemplate reforks every instance of a template so they pick up edits
// made to it. A forked instance is refreshed by reforking its top-level
// ancestor, which re-expands the whole nested body once.
func (d *Document) SyncTemplate(templateName string) error {
	type root struct {
		g  *graph.Graph
		id string
	}
	var roots []root
	seen := make(map[root]bool)
	for _, inst := range d.Instances(templateName) {
		n, ok := inst.Graph.Node(inst.NodeID)
		for ok && n.Forked() {
			n, ok = inst.Graph.Node(n.Owner)
		}
		if !ok {
			continue
		}
		r := root{g: inst.Graph, id: n.ID}
		if !seen[r] {
			seen[r] = true
			roots = append(roots, r)
		}
	}
	for _, r := range roots {
		if err := r.g.Refork(r.id); err != nil {
			return fmt.Errorf("refork %s in %s: %w", r.id, r.g.Name(), err)
		}
	}
	return nil
}

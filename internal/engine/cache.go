package engine

import (
	"sync"

	"github.com/roach88/dopgraph/internal/graph"
	"github.com/roach88/dopgraph/internal/registry"
	"github.com/roach88/dopgraph/internal/value"
)

// namedValue is one recorded input.
type namedValue struct {
	name string
	v    value.Value
}

// entry is the last successful execution of one node.
type entry struct {
	node    *graph.Node // identity: a re-added or re-forked node never reuses
	rev     uint64
	frame   int
	inputs  []namedValue
	outputs registry.Outputs
}

// sameInputs compares recorded inputs by identity, in order.
func (e *entry) sameInputs(inputs []namedValue) bool {
	if len(e.inputs) != len(inputs) {
		return false
	}
	for i := range inputs {
		if e.inputs[i].name != inputs[i].name || !value.Same(e.inputs[i].v, inputs[i].v) {
			return false
		}
	}
	return true
}

// Cache holds the cross-pass outputs of one graph.
type Cache struct {
	mu      sync.Mutex
	entries map[string]*entry
}

func newCache() *Cache {
	return &Cache{entries: make(map[string]*entry)}
}

func (c *Cache) get(id string) *entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.entries[id]
}

// Len returns the number of cached nodes.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Outputs returns the cached outputs of a node.
func (c *Cache) Outputs(id string) (registry.Outputs, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[id]
	if !ok {
		return nil, false
	}
	return e.outputs, true
}

// commit applies a pass's staged updates. A nil staged entry deletes.
// Entries of nodes that no longer exist in g are dropped.
func (c *Cache) commit(g *graph.Graph, staged map[string]*entry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for id, e := range staged {
		if e == nil {
			delete(c.entries, id)
			continue
		}
		c.entries[id] = e
	}
	for id, e := range c.entries {
		if n, ok := g.Node(id); !ok || n != e.node {
			delete(c.entries, id)
		}
	}
}

// Invalidate drops every entry so the next pass re-runs everything.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*entry)
}

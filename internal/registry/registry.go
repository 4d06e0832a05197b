package registry

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/roach88/dopgraph/internal/graph"
	"github.com/roach88/dopgraph/internal/value"
)

// ErrDuplicateType is returned when a type name is registered twice.
var ErrDuplicateType = errors.New("node type already registered")

// ErrInvalidType is returned for a TypeSpec that cannot be registered.
var ErrInvalidType = errors.New("invalid node type")

// Outputs maps output socket names to produced values.
type Outputs map[string]value.Value

// ApplyFunc computes a node's outputs. It must not retain call, mutate
// shared object payloads (see value.Mutate) or touch the graph.
type ApplyFunc func(ctx context.Context, call *Call) (Outputs, error)

// TypeSpec declares a node type.
type TypeSpec struct {
	Name          string
	Kind          graph.NodeKind
	Inputs        []graph.SocketSpec
	Outputs       []graph.SocketSpec
	Params        []graph.ParamSpec
	TimeDependent bool
	Apply         ApplyFunc

	// Doc is a one-line description shown by the CLI.
	Doc string
}

// Layout returns the graph layout of the type.
func (s TypeSpec) Layout() graph.Layout {
	return graph.Layout{
		Kind:          s.Kind,
		Inputs:        s.Inputs,
		Outputs:       s.Outputs,
		Params:        s.Params,
		TimeDependent: s.TimeDependent,
	}
}

// Registry is a concurrency-safe set of node types keyed by name.
type Registry struct {
	mu    sync.RWMutex
	types map[string]TypeSpec
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{types: make(map[string]TypeSpec)}
}

// Register adds a node type. Names are unique; registering one twice
// fails with ErrDuplicateType.
func (r *Registry) Register(spec TypeSpec) error {
	if spec.Name == "" {
		return fmt.Errorf("%w: empty name", ErrInvalidType)
	}
	if spec.Apply == nil && spec.Kind == graph.KindNormal {
		return fmt.Errorf("%w: %s has no apply function", ErrInvalidType, spec.Name)
	}
	if spec.Kind == graph.KindSubgraph {
		return fmt.Errorf("%w: %s: subgraph types come from templates", ErrInvalidType, spec.Name)
	}
	seen := make(map[string]bool)
	for _, s := range spec.Inputs {
		if seen[s.Name] {
			return fmt.Errorf("%w: %s: duplicate input %q", ErrInvalidType, spec.Name, s.Name)
		}
		seen[s.Name] = true
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.types[spec.Name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateType, spec.Name)
	}
	r.types[spec.Name] = spec
	return nil
}

// MustRegister is like Register but panics on error.
func (r *Registry) MustRegister(spec TypeSpec) {
	if err := r.Register(spec); err != nil {
		panic(err)
	}
}

// Lookup returns the named type.
func (r *Registry) Lookup(name string) (TypeSpec, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	spec, ok := r.types[name]
	return spec, ok
}

// Layout returns the graph layout of the named type.
func (r *Registry) Layout(name string) (graph.Layout, bool) {
	spec, ok := r.Lookup(name)
	if !ok {
		return graph.Layout{}, false
	}
	return spec.Layout(), true
}

// Names returns all registered type names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.types))
	for name := range r.types {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

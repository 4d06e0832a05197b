package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/roach88/dopgraph/internal/graph"
	"github.com/roach88/dopgraph/internal/registry"
)

// TypeLookup resolves node type names to their specs.
// Implemented by *registry.Registry.
type TypeLookup interface {
	Lookup(name string) (registry.TypeSpec, bool)
}

// Observer receives pass and node telemetry. Implemented by
// metrics.Collector.
type Observer interface {
	NodeExecuted(typeName string, d time.Duration, err error)
	PassCompleted(res *Result)
}

// Evaluator runs passes over graphs and owns their cross-pass caches.
//
// Thread-safety: Evaluate may be called concurrently for different graphs.
// A second concurrent pass over the same graph fails with GRAPH_BUSY.
type Evaluator struct {
	types    TypeLookup
	clock    *Clock
	logger   *slog.Logger
	observer Observer

	mu     sync.Mutex
	caches map[*graph.Graph]*Cache
}

// Option configures an Evaluator.
type Option func(*Evaluator)

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(e *Evaluator) {
		e.logger = l
	}
}

// WithClock sets the pass clock, e.g. to resume numbering after replay.
func WithClock(c *Clock) Option {
	return func(e *Evaluator) {
		e.clock = c
	}
}

// WithObserver sets the telemetry observer.
func WithObserver(o Observer) Option {
	return func(e *Evaluator) {
		e.observer = o
	}
}

// New creates an evaluator resolving node types through types.
func New(types TypeLookup, opts ...Option) *Evaluator {
	e := &Evaluator{
		types:  types,
		clock:  NewClock(),
		logger: slog.Default(),
		caches: make(map[*graph.Graph]*Cache),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Cache returns the cross-pass cache of g, creating it if needed.
func (e *Evaluator) Cache(g *graph.Graph) *Cache {
	e.mu.Lock()
	defer e.mu.Unlock()
	c, ok := e.caches[g]
	if !ok {
		c = newCache()
		e.caches[g] = c
	}
	return c
}

// Forget drops the cache of g.
func (e *Evaluator) Forget(g *graph.Graph) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.caches, g)
}

// Dirty reports whether node id would run rather than reuse the cache on
// the next pass with unchanged inputs: it has never run, or its params,
// defaults, options or links changed since.
func (e *Evaluator) Dirty(g *graph.Graph, id string) bool {
	n, ok := g.Node(id)
	if !ok {
		return false
	}
	ent := e.Cache(g).get(id)
	return ent == nil || ent.node != n || ent.rev != n.Rev()
}

// DirtyNodes returns every dirty node in node order.
func (e *Evaluator) DirtyNodes(g *graph.Graph) []string {
	var out []string
	for _, n := range g.Nodes() {
		if e.Dirty(g, n.ID) {
			out = append(out, n.ID)
		}
	}
	return out
}

// Evaluate runs one pass over g at the given frame.
//
// With no targets the graph's view sinks are evaluated. Targets resolve in
// order against one shared memo. The returned Result is always non-nil
// unless the graph is busy or ctx is cancelled; its Err joins the errors
// of failed targets, which Evaluate also returns.
//
// On cancellation nothing is committed to the cache and no partial result
// is returned.
func (e *Evaluator) Evaluate(ctx context.Context, g *graph.Graph, targets []string, frame int) (*Result, error) {
	if err := g.BeginPass(); err != nil {
		return nil, err
	}
	defer g.EndPass()

	start := time.Now()
	if len(targets) == 0 {
		targets = g.Views()
	}
	targets = dedupe(targets)

	p := &pass{
		ev:       e,
		g:        g,
		cache:    e.Cache(g),
		frame:    frame,
		bindings: g.Bindings(),
		visiting: make(map[string]bool),
		resolved: make(map[string]resolution),
		staged:   make(map[string]*entry),
		result:   newResult(e.clock.Next(), frame, targets),
	}

	for _, target := range targets {
		if _, ok := g.Node(target); !ok {
			p.result.Errors[target] = &EvalError{Code: ErrCodeTargetNotFound, NodeID: target, Target: target}
			continue
		}
		outs, err := p.resolve(ctx, target, target)
		if ctxErr := ctx.Err(); ctxErr != nil {
			e.logger.Info("pass cancelled",
				"graph", g.Name(),
				"pass", p.result.Pass,
				"frame", frame,
			)
			return nil, fmt.Errorf("pass %d cancelled: %w", p.result.Pass, ctxErr)
		}
		if err != nil {
			p.result.Errors[target] = err
			continue
		}
		p.result.Outputs[target] = outs
	}

	p.cache.commit(g, p.staged)
	p.result.Duration = time.Since(start)

	e.logger.Debug("pass completed",
		"graph", g.Name(),
		"pass", p.result.Pass,
		"frame", frame,
		"targets", len(targets),
		"executed", len(p.result.Order),
		"cache_hits", p.result.CacheHits,
		"failed", len(p.result.Errors),
	)
	if e.observer != nil {
		e.observer.PassCompleted(p.result)
	}
	return p.result, p.result.Err()
}

func dedupe(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}

package engine

import (
	"errors"
	"slices"
	"time"

	"github.com/roach88/dopgraph/internal/registry"
	"github.com/roach88/dopgraph/internal/value"
)

// Result is the outcome of one pass.
type Result struct {
	// Pass is the logical pass number from the evaluator's clock.
	Pass int64

	// Frame is the frame number the pass was evaluated at.
	Frame int

	// Targets are the nodes requested, in resolution order.
	Targets []string

	// Outputs holds the outputs of every target that resolved.
	Outputs map[string]registry.Outputs

	// Errors holds the error of every target that failed.
	Errors map[string]error

	// Order lists the nodes whose outputs were computed this pass, in
	// execution order. Cache hits and skipped nodes are not included.
	Order []string

	// CacheHits counts nodes that reused cached outputs.
	CacheHits int

	// Skipped lists nodes of unknown type that produced Null outputs.
	Skipped []*EvalError

	// Duration is the wall time the pass took. Informational only.
	Duration time.Duration
}

func newResult(pass int64, frame int, targets []string) *Result {
	return &Result{
		Pass:    pass,
		Frame:   frame,
		Targets: targets,
		Outputs: make(map[string]registry.Outputs),
		Errors:  make(map[string]error),
	}
}

// OK reports whether every target resolved.
func (r *Result) OK() bool {
	return len(r.Errors) == 0
}

// Output returns one output value of a resolved target.
func (r *Result) Output(target, socket string) (value.Value, bool) {
	outs, ok := r.Outputs[target]
	if !ok {
		return nil, false
	}
	v, ok := outs[socket]
	return v, ok
}

// Executions returns how many times id appears in the execution order.
func (r *Result) Executions(id string) int {
	count := 0
	for _, n := range r.Order {
		if n == id {
			count++
		}
	}
	return count
}

// Visited returns the number of nodes resolved this pass, executed or
// served from cache.
func (r *Result) Visited() int {
	return len(r.Order) + r.CacheHits
}

// Err joins the target errors in target order, or returns nil.
func (r *Result) Err() error {
	if len(r.Errors) == 0 {
		return nil
	}
	var errs []error
	for _, t := range r.Targets {
		if err, ok := r.Errors[t]; ok {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// FailedTargets returns the failed targets sorted.
func (r *Result) FailedTargets() []string {
	out := make([]string, 0, len(r.Errors))
	for t := range r.Errors {
		out = append(out, t)
	}
	slices.Sort(out)
	return out
}

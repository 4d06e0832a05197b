package nodes

import (
	"context"
	"fmt"
	"math"

	"github.com/roach88/dopgraph/internal/graph"
	"github.com/roach88/dopgraph/internal/parallel"
	"github.com/roach88/dopgraph/internal/registry"
	"github.com/roach88/dopgraph/internal/value"
)

func numericSpecs() []registry.TypeSpec {
	num := func(name string, required bool, defl value.Value) graph.SocketSpec {
		return graph.SocketSpec{Name: name, Type: TypeNumber, Required: required, Default: defl}
	}
	out := []graph.SocketSpec{{Name: "out", Type: TypeNumber}}

	return []registry.TypeSpec{
		{
			Name:    TypeNumericConst,
			Doc:     "emits its value param",
			Outputs: out,
			Params:  []graph.ParamSpec{{Name: "value", Default: value.Number(0)}},
			Apply: func(_ context.Context, call *registry.Call) (registry.Outputs, error) {
				n, err := call.ParamNumber("value")
				if err != nil {
					return nil, err
				}
				return registry.Outputs{"out": value.Number(n)}, nil
			},
		},
		{
			Name:    TypeNumericAdd,
			Doc:     "a + b",
			Inputs:  []graph.SocketSpec{num("a", true, nil), num("b", false, value.Number(0))},
			Outputs: out,
			Apply:   binary(func(a, b float64) float64 { return a + b }),
		},
		{
			Name:    TypeNumericMul,
			Doc:     "a * b",
			Inputs:  []graph.SocketSpec{num("a", true, nil), num("b", false, value.Number(1))},
			Outputs: out,
			Apply:   binary(func(a, b float64) float64 { return a * b }),
		},
		{
			Name:    TypeNumericReduce,
			Doc:     "sum, min or max over a list of numbers",
			Inputs:  []graph.SocketSpec{{Name: "list", Type: TypeList, Required: true}},
			Outputs: out,
			Params:  []graph.ParamSpec{{Name: "op", Default: value.String("sum")}},
			Apply:   reduceList,
		},
	}
}

func binary(op func(a, b float64) float64) registry.ApplyFunc {
	return func(_ context.Context, call *registry.Call) (registry.Outputs, error) {
		a, err := call.Number("a")
		if err != nil {
			return nil, err
		}
		b, err := call.Number("b")
		if err != nil {
			return nil, err
		}
		return registry.Outputs{"out": value.Number(op(a, b))}, nil
	}
}

// reduceOps maps the op param to an identity and an associative combine.
var reduceOps = map[string]struct {
	identity float64
	combine  func(a, b float64) float64
}{
	"sum": {0, func(a, b float64) float64 { return a + b }},
	"min": {math.Inf(1), math.Min},
	"max": {math.Inf(-1), math.Max},
}

func reduceList(ctx context.Context, call *registry.Call) (registry.Outputs, error) {
	list, ok := value.AsList(call.Input("list"))
	if !ok {
		return nil, fmt.Errorf("input %q: expected list, got %s", "list", value.KindOf(call.Input("list")))
	}
	opName := call.ParamString("op")
	op, ok := reduceOps[opName]
	if !ok {
		return nil, fmt.Errorf("param %q: unknown reduction %q", "op", opName)
	}

	fold := func(_ context.Context, acc float64, item value.Value) (float64, error) {
		n, ok := value.AsNumber(item)
		if !ok {
			return 0, fmt.Errorf("list item: expected number, got %s", value.KindOf(item))
		}
		return op.combine(acc, n), nil
	}
	result, err := parallel.Reduce(ctx, list.Items(), op.identity, fold, op.combine, parallel.Options{})
	if err != nil {
		return nil, err
	}
	if list.Len() == 0 && opName != "sum" {
		return registry.Outputs{"out": value.Null{}}, nil
	}
	return registry.Outputs{"out": value.Number(result)}, nil
}

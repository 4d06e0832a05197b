package nodes

import (
	"context"

	"github.com/roach88/dopgraph/internal/graph"
	"github.com/roach88/dopgraph/internal/registry"
	"github.com/roach88/dopgraph/internal/value"
)

// passthrough copies input in to output out.
func passthrough(in, out string) registry.ApplyFunc {
	return func(_ context.Context, call *registry.Call) (registry.Outputs, error) {
		return registry.Outputs{out: call.Input(in)}, nil
	}
}

func structuralSpecs() []registry.TypeSpec {
	ioParams := []graph.ParamSpec{
		{Name: graph.ParamName, Default: value.String("")},
		{Name: graph.ParamType, Default: value.String("")},
	}
	return []registry.TypeSpec{
		{
			Name:    TypeRoute,
			Doc:     "forwards its input unchanged",
			Inputs:  []graph.SocketSpec{{Name: "input"}},
			Outputs: []graph.SocketSpec{{Name: "output"}},
			Apply:   passthrough("input", "output"),
		},
		{
			Name:    TypeToView,
			Doc:     "view sink; forwards the object it displays",
			Inputs:  []graph.SocketSpec{{Name: "object"}},
			Outputs: []graph.SocketSpec{{Name: "object"}},
			Apply:   passthrough("object", "object"),
		},
		{
			// The evaluator feeds port from the owner instance, or from
			// defl when the template is evaluated on its own.
			Name:    TypeSubInput,
			Kind:    graph.KindSubInput,
			Doc:     "subgraph input named by the name param",
			Inputs:  []graph.SocketSpec{},
			Outputs: []graph.SocketSpec{{Name: graph.PortSocket}},
			Params:  append(ioParams, graph.ParamSpec{Name: graph.ParamDefault, Default: value.Null{}}),
			Apply:   passthrough(graph.PortSocket, graph.PortSocket),
		},
		{
			Name:    TypeSubOutput,
			Kind:    graph.KindSubOutput,
			Doc:     "subgraph output named by the name param",
			Inputs:  []graph.SocketSpec{{Name: graph.PortSocket}},
			Outputs: []graph.SocketSpec{{Name: graph.PortSocket}},
			Params:  ioParams,
			Apply:   passthrough(graph.PortSocket, graph.PortSocket),
		},
	}
}

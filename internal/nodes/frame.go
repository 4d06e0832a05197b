package nodes

import (
	"context"

	"github.com/roach88/dopgraph/internal/graph"
	"github.com/roach88/dopgraph/internal/registry"
	"github.com/roach88/dopgraph/internal/value"
)

func frameSpecs() []registry.TypeSpec {
	return []registry.TypeSpec{
		{
			Name:          TypeFrameNumber,
			Doc:           "the current frame number",
			Outputs:       []graph.SocketSpec{{Name: "frame", Type: TypeNumber}},
			TimeDependent: true,
			Apply: func(_ context.Context, call *registry.Call) (registry.Outputs, error) {
				return registry.Outputs{"frame": value.Number(call.Frame)}, nil
			},
		},
	}
}

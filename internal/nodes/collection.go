package nodes

import (
	"context"
	"fmt"

	"github.com/roach88/dopgraph/internal/graph"
	"github.com/roach88/dopgraph/internal/registry"
	"github.com/roach88/dopgraph/internal/value"
)

func collectionSpecs() []registry.TypeSpec {
	return []registry.TypeSpec{
		{
			Name:    TypeMakeString,
			Doc:     "emits its value param as a string",
			Outputs: []graph.SocketSpec{{Name: "out", Type: TypeString}},
			Params:  []graph.ParamSpec{{Name: "value", Default: value.String("")}},
			Apply: func(_ context.Context, call *registry.Call) (registry.Outputs, error) {
				v := call.Param("value")
				if s, ok := value.AsString(v); ok {
					return registry.Outputs{"out": value.String(s)}, nil
				}
				return nil, fmt.Errorf("param %q: expected string, got %s", "value", value.KindOf(v))
			},
		},
		{
			Name:    TypeMakeList,
			Doc:     "collects its item0, item1, ... inputs into a list",
			Inputs:  []graph.SocketSpec{{Name: "item", Variadic: true}},
			Outputs: []graph.SocketSpec{{Name: "list", Type: TypeList}},
			Apply: func(_ context.Context, call *registry.Call) (registry.Outputs, error) {
				return registry.Outputs{"list": value.NewList(call.Variadic("item")...)}, nil
			},
		},
		{
			Name:    TypeListLength,
			Doc:     "number of items in a list",
			Inputs:  []graph.SocketSpec{{Name: "list", Type: TypeList, Required: true}},
			Outputs: []graph.SocketSpec{{Name: "length", Type: TypeNumber}},
			Apply: func(_ context.Context, call *registry.Call) (registry.Outputs, error) {
				list, ok := value.AsList(call.Input("list"))
				if !ok {
					return nil, fmt.Errorf("input %q: expected list, got %s", "list", value.KindOf(call.Input("list")))
				}
				return registry.Outputs{"length": value.Number(list.Len())}, nil
			},
		},
		{
			Name:    TypeMakeDict,
			Doc:     "builds a dict from obj0, obj1, ... keyed by the keys param",
			Inputs:  []graph.SocketSpec{{Name: "obj", Variadic: true}},
			Outputs: []graph.SocketSpec{{Name: "dict", Type: TypeDict}},
			Params:  []graph.ParamSpec{{Name: "keys", Default: value.NewList()}},
			Apply:   makeDict,
		},
	}
}

// makeDict pairs each obj sub-socket with the key at the same position.
// Sockets without a key fall back to their own name.
func makeDict(_ context.Context, call *registry.Call) (registry.Outputs, error) {
	var keys []value.Value
	if l, ok := value.AsList(call.Param("keys")); ok {
		keys = l.Items()
	} else if !value.IsNull(call.Param("keys")) {
		return nil, fmt.Errorf("param %q: expected list, got %s", "keys", value.KindOf(call.Param("keys")))
	}

	d := value.NewDict()
	for i, v := range call.Variadic("obj") {
		key := graph.SubSocketName("obj", i)
		if i < len(keys) {
			s, ok := value.AsString(keys[i])
			if !ok {
				return nil, fmt.Errorf("param %q: key %d is %s, not string", "keys", i, value.KindOf(keys[i]))
			}
			key = s
		}
		d.Set(key, v)
	}
	return registry.Outputs{"dict": value.NewObject(d)}, nil
}

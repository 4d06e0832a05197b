package nodes

import (
	"github.com/roach88/dopgraph/internal/registry"
)

// Built-in type names.
const (
	TypeNumericConst  = "NumericConst"
	TypeNumericAdd    = "NumericAdd"
	TypeNumericMul    = "NumericMul"
	TypeNumericReduce = "NumericReduce"
	TypeMakeString    = "MakeString"
	TypeMakeList      = "MakeList"
	TypeListLength    = "ListLength"
	TypeMakeDict      = "MakeDict"
	TypeFrameNumber   = "FrameNumber"
	TypeRoute         = "Route"
	TypeToView        = "ToView"
	TypeSubInput      = "SubInput"
	TypeSubOutput     = "SubOutput"
)

// Socket type names used by the built-ins.
const (
	TypeNumber = "number"
	TypeString = "string"
	TypeList   = "list"
	TypeDict   = "dict"
)

// Builtins returns the specs of every built-in node type.
func Builtins() []registry.TypeSpec {
	var specs []registry.TypeSpec
	specs = append(specs, numericSpecs()...)
	specs = append(specs, collectionSpecs()...)
	specs = append(specs, frameSpecs()...)
	specs = append(specs, structuralSpecs()...)
	return specs
}

// Register adds every built-in to r.
func Register(r *registry.Registry) error {
	for _, spec := range Builtins() {
		if err := r.Register(spec); err != nil {
			return err
		}
	}
	return nil
}

// NewRegistry returns a registry holding the built-ins.
func NewRegistry() *registry.Registry {
	r := registry.New()
	if err := Register(r); err != nil {
		panic(err) // built-in names are unique
	}
	return r
}

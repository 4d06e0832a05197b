package graph

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/dopgraph/internal/value"
)

// stubResolver serves a few fixed layouts plus whatever templates a test
// registers.
type stubResolver struct {
	layouts   map[string]Layout
	templates map[string]*Graph
}

func newStubResolver() *stubResolver {
	return &stubResolver{
		layouts: map[string]Layout{
			"Const": {
				Outputs: []SocketSpec{{Name: "out", Type: "number"}},
				Params:  []ParamSpec{{Name: "value", Default: value.Number(0)}},
			},
			"Add": {
				Inputs: []SocketSpec{
					{Name: "a", Type: "number", Required: true},
					{Name: "b", Type: "number", Default: value.Number(0)},
				},
				Outputs: []SocketSpec{{Name: "out", Type: "number"}},
			},
			"Text": {
				Outputs: []SocketSpec{{Name: "out", Type: "string"}},
			},
			"List": {
				Inputs:  []SocketSpec{{Name: "item", Variadic: true}},
				Outputs: []SocketSpec{{Name: "list", Type: "list"}},
			},
			"SubInput": {
				Kind:    KindSubInput,
				Outputs: []SocketSpec{{Name: PortSocket}},
				Params: []ParamSpec{
					{Name: ParamName, Default: value.String("input1")},
					{Name: ParamType, Default: value.String("")},
					{Name: ParamDefault, Default: value.Null{}},
				},
			},
			"SubOutput": {
				Kind:    KindSubOutput,
				Inputs:  []SocketSpec{{Name: PortSocket}},
				Outputs: []SocketSpec{{Name: PortSocket}},
				Params: []ParamSpec{
					{Name: ParamName, Default: value.String("output1")},
					{Name: ParamType, Default: value.String("")},
				},
			},
		},
		templates: make(map[string]*Graph),
	}
}

func (r *stubResolver) Layout(typeName string) (Layout, bool) {
	l, ok := r.layouts[typeName]
	return l, ok
}

func (r *stubResolver) Template(name string) (*Graph, bool) {
	g, ok := r.templates[name]
	return g, ok
}

// newTemplate registers an empty template graph.
func (r *stubResolver) newTemplate(name string) *Graph {
	g := New(name, r)
	r.templates[name] = g
	return g
}

func mustAdd(t *testing.T, g *Graph, id, typeName string, params map[string]value.Value) *Node {
	t.Helper()
	n, err := g.AddNode(id, typeName, params)
	require.NoError(t, err)
	return n
}

func mustLink(t *testing.T, g *Graph, src, srcSocket, dst, dstSocket string) {
	t.Helper()
	require.NoError(t, g.AddEdge(src, srcSocket, dst, dstSocket))
}

// buildIncrement registers template "inc": out = x + 1.
func buildIncrement(t *testing.T, r *stubResolver) *Graph {
	t.Helper()
	tmpl := r.newTemplate("inc")
	mustAdd(t, tmpl, "in", "SubInput", map[string]value.Value{ParamName: value.String("x"), ParamType: value.String("number")})
	mustAdd(t, tmpl, "one", "Const", map[string]value.Value{"value": value.Number(1)})
	mustAdd(t, tmpl, "add", "Add", nil)
	mustAdd(t, tmpl, "out", "SubOutput", map[string]value.Value{ParamName: value.String("y")})
	mustLink(t, tmpl, "in", PortSocket, "add", "a")
	mustLink(t, tmpl, "one", "out", "add", "b")
	mustLink(t, tmpl, "add", "out", "out", PortSocket)
	return tmpl
}

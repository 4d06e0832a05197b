package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/dopgraph/internal/value"
)

func TestAddNode_TemplateCreatesInstance(t *testing.T) {
	r := newStubResolver()
	buildIncrement(t, r)
	g := New("main", r)

	inst := mustAdd(t, g, "i1", "inc", nil)

	assert.Equal(t, KindSubgraph, inst.Kind)
	require.NotNil(t, inst.Input("x"))
	assert.Equal(t, "number", inst.Input("x").Type)
	require.NotNil(t, inst.Output("y"))
	assert.Equal(t, []string{"i1/in", "i1/one", "i1/add", "i1/out"}, g.Members("i1"))

	add, ok := g.Node("i1/add")
	require.True(t, ok)
	assert.Equal(t, "i1", add.Owner)
	assert.Equal(t, Link{Node: "i1/in", Socket: PortSocket}, *add.Input("a").Link, "internal links are rebound")
}

func TestFork_Isolation(t *testing.T) {
	r := newStubResolver()
	tmpl := buildIncrement(t, r)
	g := New("main", r)
	mustAdd(t, g, "i1", "inc", nil)
	mustAdd(t, g, "i2", "inc", nil)

	require.NoError(t, g.SetParam("i1/one", "value", value.Number(100)))

	one1, _ := g.Node("i1/one")
	one2, _ := g.Node("i2/one")
	tmplOne, _ := tmpl.Node("one")
	v1, _ := one1.Param("value")
	v2, _ := one2.Param("value")
	vt, _ := tmplOne.Param("value")
	assert.Equal(t, value.Number(100), v1)
	assert.Equal(t, value.Number(1), v2, "sibling instance must be unaffected")
	assert.Equal(t, value.Number(1), vt, "template must be unaffected")
}

func TestFork_NestedTemplatesChainPrefixes(t *testing.T) {
	r := newStubResolver()
	buildIncrement(t, r)
	outer := r.newTemplate("twice")
	mustAdd(t, outer, "in", "SubInput", map[string]value.Value{ParamName: value.String("x")})
	mustAdd(t, outer, "first", "inc", nil)
	mustAdd(t, outer, "second", "inc", nil)
	mustAdd(t, outer, "out", "SubOutput", map[string]value.Value{ParamName: value.String("y")})
	mustLink(t, outer, "in", PortSocket, "first", "x")
	mustLink(t, outer, "first", "y", "second", "x")
	mustLink(t, outer, "second", "y", "out", PortSocket)

	g := New("main", r)
	mustAdd(t, g, "t", "twice", nil)

	for _, id := range []string{"t/first", "t/first/add", "t/second/add", "t/second/out"} {
		_, ok := g.Node(id)
		assert.True(t, ok, "expected forked node %s", id)
	}
	n, _ := g.Node("t/second/add")
	assert.Equal(t, "t/second", n.Owner)
	second, _ := g.Node("t/second")
	assert.Equal(t, "t/first", second.Input("x").Link.Node)
	assert.NoError(t, g.Validate())
}

func TestFork_SelfReferenceRejected(t *testing.T) {
	r := newStubResolver()
	tmpl := r.newTemplate("loop")

	_, err := tmpl.AddNode("again", "loop", nil)
	assert.True(t, IsCycleError(err))
	assert.Equal(t, 0, tmpl.Len())
}

func TestFork_MutualReferenceRejected(t *testing.T) {
	r := newStubResolver()
	a := r.newTemplate("A")
	b := r.newTemplate("B")
	mustAdd(t, a, "b", "B", nil)

	_, err := b.AddNode("a", "A", nil)
	assert.True(t, IsCycleError(err))
}

func TestRefork_SameRelativeTopology(t *testing.T) {
	r := newStubResolver()
	buildIncrement(t, r)
	g := New("main", r)
	mustAdd(t, g, "src", "Const", nil)
	mustAdd(t, g, "i1", "inc", nil)
	mustLink(t, g, "src", "out", "i1", "x")
	before := g.Edges()

	require.NoError(t, g.Refork("i1"))

	assert.Equal(t, before, g.Edges())
	assert.Equal(t, []string{"i1/in", "i1/one", "i1/add", "i1/out"}, g.Members("i1"))
	inst, _ := g.Node("i1")
	assert.Equal(t, "src", inst.Input("x").Link.Node, "outer links survive a refork")
}

func TestRefork_PicksUpTemplateChanges(t *testing.T) {
	r := newStubResolver()
	tmpl := buildIncrement(t, r)
	g := New("main", r)
	mustAdd(t, g, "i1", "inc", nil)

	mustAdd(t, tmpl, "in2", "SubInput", map[string]value.Value{ParamName: value.String("z")})
	require.NoError(t, g.Refork("i1"))

	inst, _ := g.Node("i1")
	assert.NotNil(t, inst.Input("z"))
	_, ok := g.Node("i1/in2")
	assert.True(t, ok)
}

func TestRefork_Errors(t *testing.T) {
	r := newStubResolver()
	g := New("main", r)
	mustAdd(t, g, "c", "Const", nil)

	assert.True(t, IsCode(g.Refork("ghost"), ErrCodeNotFound))
	assert.True(t, IsCode(g.Refork("c"), ErrCodeUnknownType))
}

func TestRemoveNode_InstanceRemovesForkedNodes(t *testing.T) {
	r := newStubResolver()
	buildIncrement(t, r)
	g := New("main", r)
	mustAdd(t, g, "i1", "inc", nil)
	mustAdd(t, g, "i2", "inc", nil)

	require.NoError(t, g.RemoveNode("i1"))

	assert.Equal(t, 5, g.Len(), "only i2 and its body remain")
	_, ok := g.Node("i1/add")
	assert.False(t, ok)
	assert.Empty(t, g.Members("i1"))
}

func TestBindings(t *testing.T) {
	r := newStubResolver()
	buildIncrement(t, r)
	g := New("main", r)
	mustAdd(t, g, "i1", "inc", nil)

	b := g.Bindings()
	bind, ok := b.Instance("i1")
	require.True(t, ok)
	assert.Equal(t, []string{"i1/in"}, bind.Inputs["x"])
	src, ok := b.OutputSource("i1", "y")
	require.True(t, ok)
	assert.Equal(t, "i1/out", src)

	// A rename between passes is visible in the next snapshot.
	require.NoError(t, g.SetParam("i1/out", ParamName, value.String("result")))
	b = g.Bindings()
	_, ok = b.OutputSource("i1", "y")
	assert.False(t, ok)
	src, ok = b.OutputSource("i1", "result")
	assert.True(t, ok)
	assert.Equal(t, "i1/out", src)
}

func TestSubnetIO_Defaults(t *testing.T) {
	r := newStubResolver()
	tmpl := r.newTemplate("t")
	mustAdd(t, tmpl, "a", "SubInput", map[string]value.Value{ParamName: value.String("a"), ParamDefault: value.Number(3)})
	mustAdd(t, tmpl, "dup", "SubInput", map[string]value.Value{ParamName: value.String("a")})
	mustAdd(t, tmpl, "b", "SubInput", map[string]value.Value{ParamName: value.String("b")})

	inputs, outputs := SubnetIO(tmpl)
	require.Len(t, inputs, 2)
	assert.Equal(t, value.Number(3), inputs[0].Default)
	assert.Nil(t, inputs[1].Default)
	assert.Empty(t, outputs)
}

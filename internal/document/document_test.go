package document

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/dopgraph/internal/graph"
	"github.com/roach88/dopgraph/internal/nodes"
	"github.com/roach88/dopgraph/internal/value"
)

// newIncDocument builds a document with template "inc" (y = x + 1) and two
// instances of it in main.
func newIncDocument(t *testing.T) *Document {
	t.Helper()
	d := New(nodes.NewRegistry())
	tmpl, err := d.NewGraph("inc")
	require.NoError(t, err)

	_, err = tmpl.AddNode("in", nodes.TypeSubInput, map[string]value.Value{graph.ParamName: value.String("x")})
	require.NoError(t, err)
	_, err = tmpl.AddNode("add", nodes.TypeNumericAdd, nil)
	require.NoError(t, err)
	require.NoError(t, tmpl.SetInputDefault("add", "b", value.Number(1)))
	_, err = tmpl.AddNode("out", nodes.TypeSubOutput, map[string]value.Value{graph.ParamName: value.String("y")})
	require.NoError(t, err)
	require.NoError(t, tmpl.AddEdge("in", graph.PortSocket, "add", "a"))
	require.NoError(t, tmpl.AddEdge("add", "out", "out", graph.PortSocket))

	main := d.Main()
	_, err = main.AddNode("src", nodes.TypeNumericConst, map[string]value.Value{"value": value.Number(5)})
	require.NoError(t, err)
	for _, id := range []string{"i1", "i2"} {
		_, err = main.AddNode(id, "inc", nil)
		require.NoError(t, err)
		require.NoError(t, main.AddEdge("src", "out", id, "x"))
	}
	_, err = main.AddNode("view", nodes.TypeToView, nil)
	require.NoError(t, err)
	require.NoError(t, main.AddEdge("i1", "y", "view", "object"))
	return d
}

func TestNew_HasMain(t *testing.T) {
	d := New(nodes.NewRegistry())
	assert.Equal(t, MainGraph, d.Main().Name())
	assert.Len(t, d.Graphs(), 1)
	assert.Error(t, d.RemoveGraph(MainGraph))
}

func TestNewGraph_Validation(t *testing.T) {
	d := New(nodes.NewRegistry())

	_, err := d.NewGraph("")
	assert.Error(t, err)
	_, err = d.NewGraph(MainGraph)
	assert.ErrorContains(t, err, "already exists")
	_, err = d.NewGraph(nodes.TypeNumericAdd)
	assert.ErrorContains(t, err, "shadows")

	g1, err := d.GraphOrNew("t")
	require.NoError(t, err)
	g2, err := d.GraphOrNew("t")
	require.NoError(t, err)
	assert.Same(t, g1, g2)
}

func TestResolver(t *testing.T) {
	d := newIncDocument(t)

	_, ok := d.Layout(nodes.TypeNumericAdd)
	assert.True(t, ok)
	_, ok = d.Layout("inc")
	assert.False(t, ok, "templates are not layouts")
	tmpl, ok := d.Template("inc")
	require.True(t, ok)
	assert.Equal(t, "inc", tmpl.Name())
}

func TestInstances(t *testing.T) {
	d := newIncDocument(t)

	insts := d.Instances("inc")
	require.Len(t, insts, 2)
	assert.Equal(t, "i1", insts[0].NodeID)
	assert.Equal(t, "i2", insts[1].NodeID)
}

func TestRenameSubnetIO_Input(t *testing.T) {
	d := newIncDocument(t)
	main := d.Main()

	require.NoError(t, d.RenameSubnetIO("inc", "in", "value"))

	tmpl, _ := d.Graph("inc")
	in, _ := tmpl.Node("in")
	assert.Equal(t, "value", in.ParamString(graph.ParamName))

	for _, id := range []string{"i1", "i2"} {
		inst, _ := main.Node(id)
		assert.Nil(t, inst.Input("x"))
		require.NotNil(t, inst.Input("value"))
		assert.Equal(t, "src", inst.Input("value").Link.Node, "links survive the rename")

		copyNode, _ := main.Node(id + "/in")
		assert.Equal(t, "value", copyNode.ParamString(graph.ParamName))
	}
}

func TestRenameSubnetIO_Output(t *testing.T) {
	d := newIncDocument(t)
	main := d.Main()

	require.NoError(t, d.RenameSubnetIO("inc", "out", "result"))

	view, _ := main.Node("view")
	assert.Equal(t, graph.Link{Node: "i1", Socket: "result"}, *view.Input("object").Link)
	assert.NoError(t, main.Validate())
}

func TestRenameSubnetIO_Errors(t *testing.T) {
	d := newIncDocument(t)

	assert.Error(t, d.RenameSubnetIO("nope", "in", "x"))
	assert.True(t, graph.IsCode(d.RenameSubnetIO("inc", "ghost", "x"), graph.ErrCodeNotFound))
	assert.ErrorContains(t, d.RenameSubnetIO("inc", "add", "x"), "not a SubInput or SubOutput")
	assert.NoError(t, d.RenameSubnetIO("inc", "in", "x"), "renaming to the same name is a no-op")
}

func TestSyncTemplate(t *testing.T) {
	d := newIncDocument(t)
	tmpl, _ := d.Graph("inc")

	_, err := tmpl.AddNode("extra", nodes.TypeSubInput, map[string]value.Value{graph.ParamName: value.String("z")})
	require.NoError(t, err)
	require.NoError(t, d.SyncTemplate("inc"))

	for _, id := range []string{"i1", "i2"} {
		inst, _ := d.Main().Node(id)
		assert.NotNil(t, inst.Input("z"))
		assert.Equal(t, "src", inst.Input("x").Link.Node)
	}
}

func TestSyncTemplate_RefreshesNestedInstances(t *testing.T) {
	d := newIncDocument(t)
	wrap, err := d.NewGraph("wrap")
	require.NoError(t, err)
	_, err = wrap.AddNode("w", "inc", nil)
	require.NoError(t, err)
	_, err = d.Main().AddNode("outer", "wrap", nil)
	require.NoError(t, err)

	_, ok := d.Main().Node("outer/w/extra")
	require.False(t, ok)

	tmpl, _ := d.Graph("inc")
	_, err = tmpl.AddNode("extra", nodes.TypeNumericConst, nil)
	require.NoError(t, err)
	require.NoError(t, d.SyncTemplate("inc"))

	for _, id := range []string{"i1/extra", "outer/w/extra"} {
		_, ok := d.Main().Node(id)
		assert.True(t, ok, "main is missing %s", id)
	}
	_, ok = wrap.Node("w/extra")
	assert.True(t, ok)
	assert.Equal(t, "src", mustNode(t, d.Main(), "i1").Input("x").Link.Node)
}

func mustNode(t *testing.T, g *graph.Graph, id string) *graph.Node {
	t.Helper()
	n, ok := g.Node(id)
	require.True(t, ok, "node %s", id)
	return n
}

package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddEdge_Links(t *testing.T) {
	g := New("main", newStubResolver())
	mustAdd(t, g, "a", "Const", nil)
	mustAdd(t, g, "b", "Add", nil)

	mustLink(t, g, "a", "out", "b", "a")

	b, _ := g.Node("b")
	require.NotNil(t, b.Input("a").Link)
	assert.Equal(t, Link{Node: "a", Socket: "out"}, *b.Input("a").Link)
	assert.Equal(t, []Edge{{Src: "a", SrcSocket: "out", Dst: "b", DstSocket: "a"}}, g.Edges())
}

func TestAddEdge_SocketNotFound(t *testing.T) {
	g := New("main", newStubResolver())
	mustAdd(t, g, "a", "Const", nil)
	mustAdd(t, g, "b", "Add", nil)

	tests := []struct {
		name                   string
		src, srcSock, dst, dstSock string
	}{
		{"missing source node", "ghost", "out", "b", "a"},
		{"missing destination node", "a", "out", "ghost", "a"},
		{"missing output", "a", "nope", "b", "a"},
		{"missing input", "a", "out", "b", "nope"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := g.AddEdge(tt.src, tt.srcSock, tt.dst, tt.dstSock)
			assert.True(t, IsCode(err, ErrCodeSocketNotFound), "got %v", err)
			assert.Equal(t, 0, g.EdgeCount())
		})
	}
}

func TestAddEdge_TypeMismatch(t *testing.T) {
	g := New("main", newStubResolver())
	mustAdd(t, g, "t", "Text", nil)
	mustAdd(t, g, "add", "Add", nil)
	mustAdd(t, g, "list", "List", nil)

	err := g.AddEdge("t", "out", "add", "a")
	assert.True(t, IsCode(err, ErrCodeTypeMismatch))

	// untyped sockets accept anything
	mustLink(t, g, "t", "out", "list", "item0")
}

func TestAddEdge_CycleRejected(t *testing.T) {
	g := New("main", newStubResolver())
	mustAdd(t, g, "x", "Add", nil)
	mustAdd(t, g, "y", "Add", nil)

	mustLink(t, g, "x", "out", "y", "a")
	before := g.EdgeCount()

	err := g.AddEdge("y", "out", "x", "a")
	assert.True(t, IsCycleError(err))
	assert.Equal(t, before, g.EdgeCount(), "graph must be unchanged")
	x, _ := g.Node("x")
	assert.Nil(t, x.Input("a").Link)
}

func TestAddEdge_SelfLoopRejected(t *testing.T) {
	g := New("main", newStubResolver())
	mustAdd(t, g, "x", "Add", nil)

	assert.True(t, IsCycleError(g.AddEdge("x", "out", "x", "a")))
	assert.True(t, IsCycleError(g.AddEdgeUnchecked("x", "out", "x", "a")))
}

func TestAddEdge_LongerCycleRejected(t *testing.T) {
	g := New("main", newStubResolver())
	for _, id := range []string{"a", "b", "c"} {
		mustAdd(t, g, id, "Add", nil)
	}
	mustLink(t, g, "a", "out", "b", "a")
	mustLink(t, g, "b", "out", "c", "a")

	assert.True(t, IsCycleError(g.AddEdge("c", "out", "a", "a")))
	// a diamond is fine
	mustLink(t, g, "a", "out", "c", "b")
}

func TestAddEdge_RebindReplaces(t *testing.T) {
	g := New("main", newStubResolver())
	mustAdd(t, g, "a", "Const", nil)
	mustAdd(t, g, "b", "Const", nil)
	mustAdd(t, g, "sum", "Add", nil)

	mustLink(t, g, "a", "out", "sum", "a")
	mustLink(t, g, "b", "out", "sum", "a")

	assert.Equal(t, 1, g.EdgeCount())
	sum, _ := g.Node("sum")
	assert.Equal(t, "b", sum.Input("a").Link.Node)
}

func TestAddEdge_VariadicSubSockets(t *testing.T) {
	g := New("main", newStubResolver())
	mustAdd(t, g, "a", "Const", nil)
	mustAdd(t, g, "b", "Const", nil)
	mustAdd(t, g, "c", "Const", nil)
	list := mustAdd(t, g, "list", "List", nil)

	mustLink(t, g, "a", "out", "list", "item2")
	mustLink(t, g, "b", "out", "list", "item0")
	mustLink(t, g, "c", "out", "list", "item10")

	subs := list.SubSockets("item")
	require.Len(t, subs, 3)
	assert.Equal(t, "item0", subs[0].Name)
	assert.Equal(t, "item2", subs[1].Name)
	assert.Equal(t, "item10", subs[2].Name)

	err := g.AddEdge("a", "out", "list", "item01")
	assert.True(t, IsCode(err, ErrCodeSocketNotFound), "leading zeros are not sub-socket names")
}

func TestAddEdge_UnresolvedNodesAcceptAnySocket(t *testing.T) {
	g := New("main", newStubResolver())
	mustAdd(t, g, "a", "Const", nil)
	_, err := g.AddNodeUnchecked("plugin", "Plugin.Thing", nil)
	require.NoError(t, err)
	mustAdd(t, g, "sum", "Add", nil)

	mustLink(t, g, "a", "out", "plugin", "whatever")
	mustLink(t, g, "plugin", "result", "sum", "a")
	assert.Equal(t, 2, g.EdgeCount())
}

func TestRemoveEdge(t *testing.T) {
	g := New("main", newStubResolver())
	mustAdd(t, g, "a", "Const", nil)
	mustAdd(t, g, "b", "Add", nil)
	mustLink(t, g, "a", "out", "b", "a")

	assert.True(t, IsCode(g.RemoveEdge("b", "b"), ErrCodeEdgeNotFound))
	assert.True(t, IsCode(g.RemoveEdge("ghost", "a"), ErrCodeEdgeNotFound))
	assert.True(t, IsCode(g.RemoveLink("a", "other", "b", "a"), ErrCodeEdgeNotFound))

	require.NoError(t, g.RemoveLink("a", "out", "b", "a"))
	assert.Equal(t, 0, g.EdgeCount())
	assert.True(t, IsCode(g.RemoveEdge("b", "a"), ErrCodeEdgeNotFound))
}

func TestLinkEdits_BumpConsumerRevision(t *testing.T) {
	g := New("main", newStubResolver())
	a := mustAdd(t, g, "a", "Const", nil)
	b := mustAdd(t, g, "b", "Add", nil)

	rev := b.Rev()
	mustLink(t, g, "a", "out", "b", "a")
	assert.Greater(t, b.Rev(), rev, "linking bumps the consumer")
	assert.Zero(t, a.Rev(), "the producer is untouched")

	rev = b.Rev()
	require.Error(t, g.AddEdge("b", "out", "b", "b"))
	assert.Equal(t, rev, b.Rev(), "a rejected link changes nothing")

	require.NoError(t, g.RemoveEdge("b", "a"))
	assert.Greater(t, b.Rev(), rev)

	mustLink(t, g, "a", "out", "b", "a")
	rev = b.Rev()
	require.NoError(t, g.RemoveLink("a", "out", "b", "a"))
	assert.Greater(t, b.Rev(), rev)

	mustLink(t, g, "a", "out", "b", "a")
	rev = b.Rev()
	require.NoError(t, g.RemoveNode("a"))
	assert.Greater(t, b.Rev(), rev, "a cascading unlink bumps the consumer")
}

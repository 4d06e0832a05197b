package loader

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/dopgraph/internal/engine"
	"github.com/roach88/dopgraph/internal/nodes"
	"github.com/roach88/dopgraph/internal/oplog"
	"github.com/roach88/dopgraph/internal/value"
)

func TestLoadDir_BuildsAndEvaluates(t *testing.T) {
	res, errs := Load("testdata", FailFast)
	require.Empty(t, errs)
	assert.Equal(t, 2, res.FileCount)

	require.Len(t, res.Script.Graphs, 2)
	assert.Equal(t, "inc", res.Script.Graphs[0].Name, "templates come first")
	assert.Equal(t, "main", res.Script.Graphs[1].Name)

	d, err := Build(nodes.NewRegistry(), res.Script, oplog.Checked)
	require.NoError(t, err)

	out, err := engine.New(d.Types()).Evaluate(context.Background(), d.Main(), nil, 0)
	require.NoError(t, err)
	v, ok := out.Output("view", "object")
	require.True(t, ok)
	assert.Equal(t, value.Number(6), v)
}

func TestCompileBytes_OpOrder(t *testing.T) {
	src := `
graph: main: node: {
	view: {type: "ToView", link: object: "add.out", view: true}
	add: {type: "NumericAdd", input: {a: 1, b: 2}, once: true, mute: false}
}
`
	s, errs := CompileBytes("doc.cue", []byte(src), FailFast)
	require.Empty(t, errs)

	ops, ok := s.Graph("main")
	require.True(t, ok)
	assert.Equal(t, []oplog.Op{
		oplog.AddNode("ToView", "view"),
		oplog.CompleteNode("view"),
		oplog.AddNode("NumericAdd", "add"),
		oplog.SetNodeInput("add", "a", value.Number(1)),
		oplog.SetNodeInput("add", "b", value.Number(2)),
		oplog.SetNodeOption("add", oplog.OptionOnce),
		oplog.CompleteNode("add"),
		oplog.BindNodeInput("view", "object", "add", "out"),
		oplog.MarkView("view"),
	}, ops)

	// Binds follow every addNode, so a forward reference replays checked.
	d, err := Build(nodes.NewRegistry(), s, oplog.Checked)
	require.NoError(t, err)
	assert.Equal(t, 1, d.Main().EdgeCount())
}

func TestCompileBytes_Values(t *testing.T) {
	src := `
graph: main: node: c: {
	type: "NumericConst"
	params: {
		value: 2.5
		tags:  ["a", 1, null]
		meta:  {z: true, a: "x"}
	}
}
`
	s, errs := CompileBytes("doc.cue", []byte(src), FailFast)
	require.Empty(t, errs)
	ops, _ := s.Graph("main")
	require.Len(t, ops, 5)

	assert.Equal(t, value.Number(2.5), ops[1].Value)
	assert.Equal(t, `["a",1,null]`, value.Format(ops[2].Value))

	meta, ok := value.AsDict(ops[3].Value)
	require.True(t, ok)
	assert.Equal(t, []string{"z", "a"}, meta.Keys(), "declaration order kept")
	z, _ := meta.Get("z")
	assert.Equal(t, value.Number(1), z)
}

func TestCompileBytes_Errors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		code string
	}{
		{"no graph", `x: 1`, ErrCodeNoGraphs},
		{"missing type", `graph: main: node: a: {params: value: 1}`, ErrCodeNodeType},
		{"empty type", `graph: main: node: a: {type: ""}`, ErrCodeNodeType},
		{"bad link", `graph: main: node: a: {type: "ToView", link: object: "nodot"}`, ErrCodeBadLink},
		{"unknown field", `graph: main: node: a: {type: "ToView", veiw: true}`, ErrCodeUnknownField},
		{"abstract value", `graph: main: node: a: {type: "NumericConst", params: value: number}`, ErrCodeBadValue},
		{"flag not bool", `graph: main: node: a: {type: "ToView", view: "yes"}`, ErrCodeBadValue},
		{"conflict", `graph: main: node: a: {type: "A"}, graph: main: node: a: {type: "B"}`, ErrCodeBuildFailed},
		{"template cycle", `
graph: p: node: q1: {type: "q"}
graph: q: node: p1: {type: "p"}
`, ErrCodeTemplateCycle},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, errs := CompileBytes("doc.cue", []byte(tt.src), FailFast)
			require.Len(t, errs, 1)
			assert.Equal(t, tt.code, Code(errs[0]), errs[0].Error())
		})
	}
}

func TestCompileBytes_ErrorPosition(t *testing.T) {
	src := "graph: main: node: {\n\ta: {type: \"ToView\", link: object: \"nodot\"}\n}\n"
	_, errs := CompileBytes("doc.cue", []byte(src), FailFast)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Error(), "doc.cue:2:")
	assert.Contains(t, errs[0].Error(), "graph.main.node.a.link.object")
}

func TestCompileBytes_CollectAll(t *testing.T) {
	src := `
graph: main: node: {
	a: {params: value: 1}
	b: {type: "NumericConst"}
	c: {type: "ToView", link: object: "b"}
}
graph: other: node: ok: {type: "NumericConst"}
`
	s, errs := CompileBytes("doc.cue", []byte(src), CollectAll)
	require.Len(t, errs, 2)
	assert.Equal(t, ErrCodeNodeType, Code(errs[0]))
	assert.Equal(t, ErrCodeBadLink, Code(errs[1]))

	require.NotNil(t, s)
	_, ok := s.Graph("other")
	assert.True(t, ok, "graphs that compiled are kept")
	_, ok = s.Graph("main")
	assert.False(t, ok)

	_, errs = CompileBytes("doc.cue", []byte(src), FailFast)
	assert.Len(t, errs, 1)
}

func TestLoad_JSONScript(t *testing.T) {
	want, errs := Load("testdata", FailFast)
	require.Empty(t, errs)
	data, err := oplog.EncodeScript(want.Script)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "doc.json")
	require.NoError(t, os.WriteFile(path, data, 0o644))

	got, errs := Load(path, FailFast)
	require.Empty(t, errs)
	assert.Equal(t, want.Script, got.Script)
}

func TestLoad_Failures(t *testing.T) {
	dir := t.TempDir()

	_, errs := Load(filepath.Join(dir, "missing.cue"), FailFast)
	require.Len(t, errs, 1)
	assert.Equal(t, ErrCodeNotFound, Code(errs[0]))

	_, errs = Load(dir, FailFast)
	require.Len(t, errs, 1)
	assert.Equal(t, ErrCodeNoFiles, Code(errs[0]))

	yml := filepath.Join(dir, "doc.yaml")
	require.NoError(t, os.WriteFile(yml, []byte("graph: {}"), 0o644))
	_, errs = Load(yml, FailFast)
	require.Len(t, errs, 1)
	assert.Equal(t, ErrCodeLoadFailed, Code(errs[0]))

	bad := filepath.Join(dir, "doc.json")
	require.NoError(t, os.WriteFile(bad, []byte("{"), 0o644))
	_, errs = Load(bad, FailFast)
	require.Len(t, errs, 1)
	assert.Equal(t, ErrCodeDecode, Code(errs[0]))
}

func TestSplitLink(t *testing.T) {
	node, socket, ok := splitLink("i1/add.out")
	assert.True(t, ok)
	assert.Equal(t, "i1/add", node)
	assert.Equal(t, "out", socket)

	for _, bad := range []string{"", "out", ".out", "add."} {
		_, _, ok := splitLink(bad)
		assert.False(t, ok, bad)
	}
}

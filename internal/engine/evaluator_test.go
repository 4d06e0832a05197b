package engine

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/dopgraph/internal/document"
	"github.com/roach88/dopgraph/internal/graph"
	"github.com/roach88/dopgraph/internal/nodes"
	"github.com/roach88/dopgraph/internal/registry"
	"github.com/roach88/dopgraph/internal/testutil"
	"github.com/roach88/dopgraph/internal/value"
)

type fixture struct {
	doc   *document.Document
	g     *graph.Graph
	probe *testutil.Probe
	ev    *Evaluator
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	reg := nodes.NewRegistry()
	probe := testutil.NewProbe()
	require.NoError(t, probe.Register(reg))
	doc := document.New(reg)
	quiet := slog.New(slog.NewTextHandler(io.Discard, nil))
	return &fixture{
		doc:   doc,
		g:     doc.Main(),
		probe: probe,
		ev:    New(reg, append([]Option{WithLogger(quiet)}, opts...)...),
	}
}

func (f *fixture) add(t *testing.T, id, typeName string, params map[string]value.Value) {
	t.Helper()
	_, err := f.g.AddNode(id, typeName, params)
	require.NoError(t, err)
}

func (f *fixture) link(t *testing.T, src, srcSocket, dst, dstSocket string) {
	t.Helper()
	require.NoError(t, f.g.AddEdge(src, srcSocket, dst, dstSocket))
}

func (f *fixture) eval(t *testing.T, frame int, targets ...string) *Result {
	t.Helper()
	res, err := f.ev.Evaluate(context.Background(), f.g, targets, frame)
	require.NoError(t, err)
	require.NotNil(t, res)
	return res
}

// diamond builds A -> {B, C} -> D.
func (f *fixture) diamond(t *testing.T) {
	t.Helper()
	f.add(t, "A", testutil.ProbeSource, map[string]value.Value{"value": value.Number(1)})
	f.add(t, "B", testutil.ProbeJoin, nil)
	f.add(t, "C", testutil.ProbeJoin, nil)
	f.add(t, "D", testutil.ProbeJoin, nil)
	f.link(t, "A", "out", "B", "a")
	f.link(t, "A", "out", "C", "a")
	f.link(t, "B", "out", "D", "a")
	f.link(t, "C", "out", "D", "b")
}

func num(n float64) map[string]value.Value {
	return map[string]value.Value{"value": value.Number(n)}
}

func TestEvaluate_MemoizesDiamond(t *testing.T) {
	f := newFixture(t)
	f.diamond(t)

	res := f.eval(t, 0, "D")

	assert.Equal(t, 1, res.Executions("A"), "A must execute exactly once")
	assert.Equal(t, 1, f.probe.Calls("A"))
	assert.Equal(t, []string{"A", "B", "C", "D"}, res.Order)
	out, ok := res.Output("D", "out")
	require.True(t, ok)
	assert.Equal(t, "[[1,null],[1,null]]", value.Format(out))
}

func TestEvaluate_Laziness(t *testing.T) {
	f := newFixture(t)
	f.diamond(t)
	f.add(t, "E", testutil.ProbeSource, nil)
	f.add(t, "view", nodes.TypeToView, nil)
	f.link(t, "B", "out", "view", "object")
	require.NoError(t, f.g.MarkView("view"))

	res := f.eval(t, 0)

	assert.Equal(t, []string{"view"}, res.Targets, "no targets means the view sinks")
	assert.NotContains(t, res.Order, "E")
	assert.NotContains(t, res.Order, "C")
	assert.NotContains(t, res.Order, "D")
	assert.Equal(t, 0, f.probe.Calls("E"))
}

func TestEvaluate_DefaultFallback(t *testing.T) {
	f := newFixture(t)
	f.add(t, "need", testutil.ProbeNeed, nil)
	v := value.NewList(value.String("default"))
	require.NoError(t, f.g.SetInputDefault("need", "in", v))

	res := f.eval(t, 0, "need")

	assert.True(t, value.Same(v, f.probe.Seen("need", "in")), "apply must receive exactly the default")
	out, _ := res.Output("need", "out")
	assert.True(t, value.Same(v, out))
}

func TestEvaluate_MissingRequiredInput(t *testing.T) {
	f := newFixture(t)
	f.add(t, "need", testutil.ProbeNeed, nil)
	f.add(t, "after", testutil.ProbeJoin, nil)
	f.link(t, "need", "out", "after", "a")

	res, err := f.ev.Evaluate(context.Background(), f.g, []string{"after"}, 0)

	require.NotNil(t, res)
	assert.True(t, IsMissingInputError(err))
	id, ok := FailedNode(res.Errors["after"])
	require.True(t, ok)
	assert.Equal(t, "need", id, "the error names the originating node")
	assert.Equal(t, 0, f.probe.Calls("need"))
}

func TestEvaluate_IdempotentReevaluation(t *testing.T) {
	f := newFixture(t)
	f.diamond(t)

	first := f.eval(t, 3, "D")
	second := f.eval(t, 3, "D")

	assert.Empty(t, second.Order)
	assert.Equal(t, f.g.Len(), second.CacheHits, "every node is a cache hit")
	assert.Empty(t, f.ev.DirtyNodes(f.g))
	a, _ := first.Output("D", "out")
	b, _ := second.Output("D", "out")
	assert.True(t, value.Same(a, b), "outputs must be identical, not merely equal")
	assert.Greater(t, second.Pass, first.Pass)
}

func TestEvaluate_ParamChangeRerunsNode(t *testing.T) {
	f := newFixture(t)
	f.diamond(t)
	f.eval(t, 0, "D")

	require.NoError(t, f.g.SetParam("A", "value", value.Number(2)))
	assert.Equal(t, []string{"A"}, f.ev.DirtyNodes(f.g))
	res := f.eval(t, 0, "D")

	assert.Equal(t, []string{"A", "B", "C", "D"}, res.Order, "a changed output propagates")
}

func TestEvaluate_SameScalarOutputStopsPropagation(t *testing.T) {
	f := newFixture(t)
	f.diamond(t)
	f.eval(t, 0, "D")

	// Same value, new revision: A re-runs but its Number output is identical.
	require.NoError(t, f.g.SetParam("A", "value", value.Number(1)))
	res := f.eval(t, 0, "D")

	assert.Equal(t, []string{"A"}, res.Order)
	assert.Equal(t, 3, res.CacheHits)
}

func TestEvaluate_RemovalCascadesToDefault(t *testing.T) {
	f := newFixture(t)
	f.add(t, "src", testutil.ProbeSource, num(9))
	f.add(t, "need", testutil.ProbeNeed, nil)
	f.link(t, "src", "out", "need", "in")
	f.eval(t, 0, "need")

	require.NoError(t, f.g.RemoveNode("src"))
	_, err := f.ev.Evaluate(context.Background(), f.g, []string{"need"}, 0)
	assert.True(t, IsMissingInputError(err), "no default: MISSING_REQUIRED_INPUT")

	require.NoError(t, f.g.SetInputDefault("need", "in", value.Number(4)))
	res := f.eval(t, 0, "need")
	out, _ := res.Output("need", "out")
	assert.Equal(t, value.Number(4), out)
}

func TestEvaluate_FailureIsolation(t *testing.T) {
	f := newFixture(t)
	f.add(t, "fail", testutil.ProbeFail, nil)
	f.add(t, "t1", testutil.ProbeJoin, nil)
	f.add(t, "t2", testutil.ProbeSource, num(2))
	f.add(t, "t3", testutil.ProbeJoin, nil)
	f.link(t, "fail", "out", "t1", "a")
	f.link(t, "fail", "out", "t3", "a")

	res, err := f.ev.Evaluate(context.Background(), f.g, []string{"t1", "t2", "t3"}, 0)

	require.Error(t, err)
	require.NotNil(t, res)
	assert.True(t, IsExecutionError(res.Errors["t1"]))
	assert.ErrorIs(t, res.Errors["t1"], testutil.ErrProbeFailed)
	assert.True(t, IsExecutionError(res.Errors["t3"]))
	assert.Equal(t, []string{"t1", "t3"}, res.FailedTargets())
	out, ok := res.Output("t2", "out")
	require.True(t, ok, "sibling target still completes")
	assert.Equal(t, value.Number(2), out)
	assert.Equal(t, 1, f.probe.Calls("fail"), "a failed node runs once per pass")
	assert.Equal(t, 0, f.probe.Calls("t1"))
}

func TestEvaluate_SharedFailureNamesEachTarget(t *testing.T) {
	f := newFixture(t)
	f.add(t, "fail", testutil.ProbeFail, nil)
	f.add(t, "t1", testutil.ProbeJoin, nil)
	f.add(t, "t2", testutil.ProbeJoin, nil)
	f.link(t, "fail", "out", "t1", "a")
	f.link(t, "fail", "out", "t2", "a")

	res, err := f.ev.Evaluate(context.Background(), f.g, []string{"t1", "t2"}, 0)

	require.Error(t, err)
	for _, target := range []string{"t1", "t2"} {
		var ee *EvalError
		require.True(t, errors.As(res.Errors[target], &ee))
		assert.Equal(t, target, ee.Target)
		assert.Equal(t, "fail", ee.NodeID)
		assert.ErrorIs(t, ee, testutil.ErrProbeFailed)
	}
	assert.Equal(t, 1, f.probe.Calls("fail"))
}

func TestEvaluate_FailedNodeRetriedNextPass(t *testing.T) {
	f := newFixture(t)
	f.add(t, "fail", testutil.ProbeFail, nil)
	_, err := f.ev.Evaluate(context.Background(), f.g, []string{"fail"}, 0)
	require.Error(t, err)

	_, err = f.ev.Evaluate(context.Background(), f.g, []string{"fail"}, 0)
	require.Error(t, err)
	assert.Equal(t, 2, f.probe.Calls("fail"), "failures are never cached across passes")
}

func TestEvaluate_CancellationDiscardsPass(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	f.probe.Hook = func(context.Context, string) error {
		cancel()
		return nil
	}
	f.add(t, "src", testutil.ProbeSource, num(1))
	f.add(t, "hook", testutil.ProbeHook, nil)
	f.add(t, "after", testutil.ProbeJoin, nil)
	f.link(t, "src", "out", "hook", "in")
	f.link(t, "hook", "out", "after", "a")

	res, err := f.ev.Evaluate(ctx, f.g, []string{"after"}, 0)

	assert.Nil(t, res, "no partial result")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, f.probe.Calls("after"), "cancellation is observed between node executions")
	assert.Equal(t, 0, f.ev.Cache(f.g).Len(), "nothing committed")
	assert.False(t, f.g.Busy(), "latch released")

	f.probe.Hook = nil
	again := f.eval(t, 0, "after")
	assert.Equal(t, []string{"src", "hook", "after"}, again.Order)
}

func TestEvaluate_TimeDependent(t *testing.T) {
	f := newFixture(t)
	f.add(t, "clock", testutil.ProbeClock, nil)
	f.add(t, "use", testutil.ProbeJoin, nil)
	f.add(t, "static", testutil.ProbeSource, num(1))
	f.link(t, "clock", "out", "use", "a")
	f.link(t, "static", "out", "use", "b")

	f.eval(t, 1, "use")
	same := f.eval(t, 1, "use")
	assert.Empty(t, same.Order, "same frame: nothing re-runs")

	next := f.eval(t, 2, "use")
	assert.Equal(t, []string{"clock", "use"}, next.Order)
	out, _ := next.Output("use", "out")
	assert.Equal(t, "[2,1]", value.Format(out))
}

func TestEvaluate_OnceNodeKeepsFirstResult(t *testing.T) {
	f := newFixture(t)
	f.add(t, "clock", testutil.ProbeClock, nil)
	f.add(t, "once", testutil.ProbeJoin, nil)
	f.link(t, "clock", "out", "once", "a")
	require.NoError(t, f.g.SetOptions("once", graph.OptOnce))

	f.eval(t, 1, "once")
	res := f.eval(t, 2, "once")

	assert.Equal(t, []string{"clock"}, res.Order)
	out, _ := res.Output("once", "out")
	assert.Equal(t, "[1,null]", value.Format(out))

	require.NoError(t, f.g.SetParam("once", "touch", value.Number(1)))
	res = f.eval(t, 2, "once")
	assert.Contains(t, res.Order, "once", "a param change re-runs a once node")
}

func TestEvaluate_MuteForwardsByPosition(t *testing.T) {
	f := newFixture(t)
	f.add(t, "src", testutil.ProbeSource, num(5))
	f.add(t, "muted", testutil.ProbeJoin, nil)
	f.link(t, "src", "out", "muted", "a")
	require.NoError(t, f.g.SetOptions("muted", graph.OptMute))

	res := f.eval(t, 0, "muted")

	out, _ := res.Output("muted", "out")
	assert.Equal(t, value.Number(5), out)
	assert.Equal(t, 0, f.probe.Calls("muted"), "muted nodes do not apply")
	assert.Contains(t, res.Order, "muted")
}

func TestEvaluate_UnknownTypeSkipped(t *testing.T) {
	f := newFixture(t)
	_, err := f.g.AddNodeUnchecked("plugin", "Plugin.Mesh", nil)
	require.NoError(t, err)
	f.add(t, "join", testutil.ProbeJoin, nil)
	f.link(t, "plugin", "mesh", "join", "a")

	res := f.eval(t, 0, "join")

	require.Len(t, res.Skipped, 1)
	assert.Equal(t, "plugin", res.Skipped[0].NodeID)
	assert.Equal(t, ErrCodeUnknownType, res.Skipped[0].Code)
	assert.True(t, value.IsNull(f.probe.Seen("join", "a")))
	assert.NotContains(t, res.Order, "plugin")
}

func TestEvaluate_CycleFromUncheckedLoad(t *testing.T) {
	f := newFixture(t)
	f.add(t, "x", testutil.ProbeJoin, nil)
	f.add(t, "y", testutil.ProbeJoin, nil)
	require.NoError(t, f.g.AddEdgeUnchecked("x", "out", "y", "a"))
	require.NoError(t, f.g.AddEdgeUnchecked("y", "out", "x", "a"))

	_, err := f.ev.Evaluate(context.Background(), f.g, []string{"x"}, 0)
	assert.True(t, IsCycleError(err))
}

func TestEvaluate_TargetNotFound(t *testing.T) {
	f := newFixture(t)
	res, err := f.ev.Evaluate(context.Background(), f.g, []string{"ghost"}, 0)
	require.NotNil(t, res)
	assert.True(t, IsCode(err, ErrCodeTargetNotFound))
}

func TestEvaluate_GraphBusy(t *testing.T) {
	f := newFixture(t)
	f.add(t, "src", testutil.ProbeSource, nil)
	require.NoError(t, f.g.BeginPass())

	_, err := f.ev.Evaluate(context.Background(), f.g, []string{"src"}, 0)
	assert.True(t, graph.IsBusyError(err))
	f.g.EndPass()
}

func TestEvaluate_EditsDuringPassRejected(t *testing.T) {
	f := newFixture(t)
	var editErr error
	f.probe.Hook = func(context.Context, string) error {
		_, editErr = f.g.AddNode("late", testutil.ProbeSource, nil)
		return nil
	}
	f.add(t, "hook", testutil.ProbeHook, nil)

	f.eval(t, 0, "hook")

	assert.True(t, graph.IsBusyError(editErr))
	_, exists := f.g.Node("late")
	assert.False(t, exists)
}

func TestEvaluate_ApplyPanicIsExecutionFailure(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.doc.Types().Register(registry.TypeSpec{
		Name:    "Test.Panic",
		Outputs: []graph.SocketSpec{{Name: "out"}},
		Apply: func(context.Context, *registry.Call) (registry.Outputs, error) {
			panic("kaboom")
		},
	}))
	f.add(t, "p", "Test.Panic", nil)

	_, err := f.ev.Evaluate(context.Background(), f.g, []string{"p"}, 0)
	assert.True(t, IsExecutionError(err))
	assert.ErrorContains(t, err, "kaboom")
}

func TestEvaluate_UndeclaredOutputRejected(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.doc.Types().Register(registry.TypeSpec{
		Name:    "Test.Sneaky",
		Outputs: []graph.SocketSpec{{Name: "out"}},
		Apply: func(context.Context, *registry.Call) (registry.Outputs, error) {
			return registry.Outputs{"out": value.Number(1), "extra": value.Number(2)}, nil
		},
	}))
	f.add(t, "s", "Test.Sneaky", nil)

	_, err := f.ev.Evaluate(context.Background(), f.g, []string{"s"}, 0)
	assert.True(t, IsExecutionError(err))
	assert.ErrorContains(t, err, `undeclared output "extra"`)
}

type recordingObserver struct {
	nodes  int
	passes []*Result
}

func (o *recordingObserver) NodeExecuted(string, time.Duration, error) { o.nodes++ }
func (o *recordingObserver) PassCompleted(res *Result)                 { o.passes = append(o.passes, res) }

func TestEvaluate_Observer(t *testing.T) {
	obs := &recordingObserver{}
	f := newFixture(t, WithObserver(obs))
	f.diamond(t)

	f.eval(t, 0, "D")
	f.eval(t, 0, "D")

	assert.Equal(t, 4, obs.nodes, "cache hits are not executions")
	require.Len(t, obs.passes, 2)
	assert.Equal(t, 4, obs.passes[1].CacheHits)
}

func TestEvaluate_WithClockResumesNumbering(t *testing.T) {
	f := newFixture(t, WithClock(NewClockAt(41)))
	f.add(t, "src", testutil.ProbeSource, nil)

	res := f.eval(t, 0, "src")
	assert.Equal(t, int64(42), res.Pass)
}

func TestEvalError_Message(t *testing.T) {
	err := &EvalError{Code: ErrCodeNodeExecutionFailed, NodeID: "n", Target: "t", Cause: errors.New("bad")}
	assert.Equal(t, "NODE_EXECUTION_FAILED (node=n, target=t): bad", err.Error())

	err = &EvalError{Code: ErrCodeMissingRequiredInput, NodeID: "n", Socket: "in", Target: "n"}
	assert.Equal(t, "MISSING_REQUIRED_INPUT (node=n, socket=in)", err.Error())
}

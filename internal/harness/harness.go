package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"

	"github.com/roach88/dopgraph/internal/engine"
	"github.com/roach88/dopgraph/internal/graph"
	"github.com/roach88/dopgraph/internal/loader"
	"github.com/roach88/dopgraph/internal/nodes"
	"github.com/roach88/dopgraph/internal/oplog"
	"github.com/roach88/dopgraph/internal/session"
	"github.com/roach88/dopgraph/internal/store"
	"github.com/roach88/dopgraph/internal/testutil"
	"github.com/roach88/dopgraph/internal/value"
)

// Harness runs one scenario.
type Harness struct {
	store   *store.Store
	session *session.Session
	logger  *slog.Logger
}

// Run executes a scenario and returns the result.
//
// Each scenario runs in a fresh in-memory store. Execution flow:
//  1. Load the document and replay it into a fresh document
//  2. Save the op script and open a session recording into the store
//  3. For each frame, submit its edits and run it
//  4. Evaluate assertions against the reports, trace and store
func Run(scenario *Scenario) (*Result, error) {
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	loaded, errs := loader.Load(scenario.Document, loader.FailFast)
	if len(errs) > 0 {
		return nil, fmt.Errorf("failed to load document: %w", errors.Join(errs...))
	}
	mode, err := oplog.ParseMode(scenario.Mode)
	if err != nil {
		return nil, err
	}
	types := nodes.NewRegistry()
	doc, err := loader.Build(types, loaded.Script, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to build document: %w", err)
	}

	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()
	if err := st.SaveDocument(ctx, scenario.Name, loaded.Script); err != nil {
		return nil, fmt.Errorf("failed to save document: %w", err)
	}

	sess := session.New(doc,
		session.WithEvaluator(engine.New(types, engine.WithLogger(logger))),
		session.WithLogger(logger),
		session.WithTokenGenerator(testutil.NewFixedTokenGenerator(scenario.RunToken)),
		session.WithRecorder(st),
		session.WithTargets(scenario.Targets...),
	)
	defer sess.Close()

	h := &Harness{store: st, session: sess, logger: logger}
	result := NewResult(sess.Context().RunToken)
	sess.Subscribe(func(frame int) {
		result.Completed = append(result.Completed, frame)
	})

	edits := make(map[int][]EditStep)
	for _, step := range scenario.Edits {
		edits[step.Frame] = append(edits[step.Frame], step)
	}

	for n := scenario.Frames.Begin; n <= scenario.Frames.End; n++ {
		if steps := edits[n]; len(steps) > 0 {
			if err := h.submit(steps); err != nil {
				return nil, fmt.Errorf("frame %d: %w", n, err)
			}
		}
		report, err := sess.RunFrame(ctx, n)
		if report == nil {
			return nil, err
		}
		for _, editErr := range report.EditErrors {
			result.AddError(fmt.Sprintf("frame %d: edit failed: %v", n, editErr))
		}
		result.reports[n] = report
		result.Trace = append(result.Trace, frameTrace(report)...)

		h.logger.Info("frame completed",
			"frame", n,
			"pass", report.Result.Pass,
			"executed", len(report.Result.Order),
			"completed", report.Completed,
		)
	}

	actx := &AssertionContext{
		Store:    st,
		Ctx:      ctx,
		RunToken: result.RunToken,
	}
	for _, errMsg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(errMsg)
	}
	return result, nil
}

// submit queues the frame's edits as one session edit. Consecutive op
// steps replay together, so an addNode can be followed by its
// completeNode.
func (h *Harness) submit(steps []EditStep) error {
	ops := make([]oplog.Op, len(steps))
	for i, step := range steps {
		if step.Op == nil {
			continue
		}
		op, err := step.decodeOp()
		if err != nil {
			return fmt.Errorf("edit %d: %w", i, err)
		}
		ops[i] = op
	}

	return h.session.SubmitGraph(func(g *graph.Graph) error {
		var batch []oplog.Op
		flush := func() error {
			if len(batch) == 0 {
				return nil
			}
			err := oplog.Replay(g, batch, oplog.Checked)
			batch = nil
			return err
		}
		for i, step := range steps {
			switch {
			case step.Op != nil:
				batch = append(batch, ops[i])
			case step.RemoveNode != "":
				if err := flush(); err != nil {
					return err
				}
				if err := g.RemoveNode(step.RemoveNode); err != nil {
					return err
				}
			case step.Unbind != nil:
				if err := flush(); err != nil {
					return err
				}
				if err := g.RemoveEdge(step.Unbind.Node, step.Unbind.Socket); err != nil {
					return err
				}
			}
		}
		return flush()
	})
}

// frameTrace renders a frame report as execute events followed by one
// frame event.
func frameTrace(report *session.FrameReport) []TraceEvent {
	res := report.Result
	events := make([]TraceEvent, 0, len(res.Order)+1)
	for _, id := range res.Order {
		events = append(events, TraceEvent{
			Type:  EventExecute,
			Frame: res.Frame,
			Pass:  res.Pass,
			Node:  id,
		})
	}

	frame := TraceEvent{
		Type:      EventFrame,
		Frame:     res.Frame,
		Pass:      res.Pass,
		Status:    StatusFailed,
		CacheHits: res.CacheHits,
		Outputs:   make(map[string]string),
		Failed:    make(map[string]string),
	}
	if report.Completed {
		frame.Status = StatusCompleted
	}
	for target, outs := range res.Outputs {
		for socket, v := range outs {
			frame.Outputs[target+"."+socket] = value.Format(v)
		}
	}
	for target, err := range res.Errors {
		frame.Failed[target] = errorCode(err)
	}
	return append(events, frame)
}

// errorCode returns the code of an evaluation or graph error.
func errorCode(err error) string {
	var ee *engine.EvalError
	if errors.As(err, &ee) {
		return string(ee.Code)
	}
	var ge *graph.Error
	if errors.As(err, &ge) {
		return string(ge.Code)
	}
	return "ERROR"
}

// sortedKeys returns the keys of m in order.
func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

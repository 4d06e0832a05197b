package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/roach88/dopgraph/internal/document"
	"github.com/roach88/dopgraph/internal/engine"
	"github.com/roach88/dopgraph/internal/graph"
)

// ErrClosed is returned by Submit after Close.
var ErrClosed = errors.New("session closed")

// FrameContext is the per-frame state handed to evaluation.
type FrameContext struct {
	Frame    int
	RunToken string
}

// FrameReport is the outcome of one RunFrame call.
type FrameReport struct {
	Context FrameContext

	// Result is the evaluation pass of the frame.
	Result *engine.Result

	// Completed is true when every view sink resolved.
	Completed bool

	// EditErrors holds errors from edits applied before the pass.
	EditErrors []error
}

// Session drives per-frame evaluation of one graph of a document.
//
// Thread-safety: Submit, Subscribe and Context may be called from any
// goroutine. RunFrame calls are serialized.
type Session struct {
	doc       *document.Document
	graphName string
	targets   []string
	ev        *engine.Evaluator
	tokens    TokenGenerator
	recorder  Recorder
	logger    *slog.Logger
	edits     *editQueue
	tracker   *CompletionTracker

	runMu sync.Mutex

	mu      sync.Mutex
	current FrameContext
	subs    map[int]func(frame int)
	nextSub int
}

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Session) {
		s.logger = l
	}
}

// WithEvaluator sets the evaluator. Defaults to one built from the
// document's registry.
func WithEvaluator(ev *engine.Evaluator) Option {
	return func(s *Session) {
		s.ev = ev
	}
}

// WithTokenGenerator sets the run token source. Defaults to UUIDv7.
func WithTokenGenerator(g TokenGenerator) Option {
	return func(s *Session) {
		s.tokens = g
	}
}

// WithRecorder persists pass and frame records.
func WithRecorder(r Recorder) Option {
	return func(s *Session) {
		s.recorder = r
	}
}

// WithGraph selects the graph to evaluate. Defaults to the main graph.
func WithGraph(name string) Option {
	return func(s *Session) {
		s.graphName = name
	}
}

// WithTargets evaluates the given nodes in addition to the view sinks.
// Frame completion still depends only on the view sinks.
func WithTargets(ids ...string) Option {
	return func(s *Session) {
		s.targets = ids
	}
}

// New creates a session over doc. The run token is drawn once and shared
// by every frame of the session.
func New(doc *document.Document, opts ...Option) *Session {
	s := &Session{
		doc:       doc,
		graphName: document.MainGraph,
		tokens:    UUIDv7Generator{},
		logger:    slog.Default(),
		edits:     newEditQueue(),
		tracker:   NewCompletionTracker(),
		subs:      make(map[int]func(int)),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.ev == nil {
		s.ev = engine.New(doc.Types(), engine.WithLogger(s.logger))
	}
	s.current = FrameContext{RunToken: s.tokens.Generate()}
	return s
}

// Document returns the session's document. Mutate it through Submit while
// frames may be running.
func (s *Session) Document() *document.Document {
	return s.doc
}

// Evaluator returns the session's evaluator.
func (s *Session) Evaluator() *engine.Evaluator {
	return s.ev
}

// Tracker returns the frame completion tracker.
func (s *Session) Tracker() *CompletionTracker {
	return s.tracker
}

// Context returns the frame context of the most recent frame.
func (s *Session) Context() FrameContext {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Pending returns the number of edits waiting for the next frame.
func (s *Session) Pending() int {
	return s.edits.Len()
}

// Submit queues an edit for the next frame.
func (s *Session) Submit(e Edit) error {
	if !s.edits.Enqueue(e) {
		return ErrClosed
	}
	return nil
}

// SubmitGraph queues an edit of the session graph.
func (s *Session) SubmitGraph(fn func(g *graph.Graph) error) error {
	return s.Submit(func(d *document.Document) error {
		g, ok := d.Graph(s.graphName)
		if !ok {
			return fmt.Errorf("graph %q does not exist", s.graphName)
		}
		return fn(g)
	})
}

// Subscribe registers fn to be called with each completed frame number.
// fn runs on the goroutine that ran the frame. The returned function
// unsubscribes.
func (s *Session) Subscribe(fn func(frame int)) (unsubscribe func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subs, id)
	}
}

// Close rejects further edits. Pending edits are dropped.
func (s *Session) Close() {
	s.edits.Close()
}

// Flush applies pending edits without evaluating.
func (s *Session) Flush() []error {
	s.runMu.Lock()
	defer s.runMu.Unlock()
	return s.applyEdits()
}

// RunFrame applies pending edits, then evaluates frame n.
//
// Target failures do not abort the session: the report is returned
// together with the joined target errors, and the next frame evaluates
// again. Completed is false when any view sink failed. A nil report means the pass itself did not run
// (cancelled or graph busy).
func (s *Session) RunFrame(ctx context.Context, n int) (*FrameReport, error) {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	editErrs := s.applyEdits()

	g, ok := s.doc.Graph(s.graphName)
	if !ok {
		return nil, fmt.Errorf("graph %q does not exist", s.graphName)
	}

	s.mu.Lock()
	s.current.Frame = n
	fc := s.current
	s.mu.Unlock()

	var targets []string
	if len(s.targets) > 0 {
		targets = append(g.Views(), s.targets...)
	}
	res, err := s.ev.Evaluate(ctx, g, targets, n)
	if res == nil {
		return nil, fmt.Errorf("frame %d: %w", n, err)
	}

	report := &FrameReport{
		Context:    fc,
		Result:     res,
		Completed:  viewsResolved(g, res),
		EditErrors: editErrs,
	}
	s.tracker.mark(n, report.Completed)
	s.record(ctx, g.Name(), report)

	if report.Completed {
		s.logger.Debug("frame completed", "frame", n, "pass", res.Pass, "run_token", fc.RunToken)
		s.notify(n)
	} else {
		s.logger.Warn("frame failed",
			"frame", n,
			"pass", res.Pass,
			"failed_targets", res.FailedTargets(),
			"run_token", fc.RunToken,
		)
	}
	return report, err
}

// viewsResolved reports whether no view sink of g failed in res.
func viewsResolved(g *graph.Graph, res *engine.Result) bool {
	for _, id := range g.Views() {
		if _, failed := res.Errors[id]; failed {
			return false
		}
	}
	return true
}

// RunFrames runs frames begin through end inclusive. Failed frames are
// reported and the loop moves on; it stops early only when a pass cannot
// run at all, e.g. on cancellation.
func (s *Session) RunFrames(ctx context.Context, begin, end int) ([]*FrameReport, error) {
	if end < begin {
		return nil, fmt.Errorf("frame range %d..%d is empty", begin, end)
	}
	reports := make([]*FrameReport, 0, end-begin+1)
	for n := begin; n <= end; n++ {
		report, err := s.RunFrame(ctx, n)
		if report == nil {
			return reports, err
		}
		reports = append(reports, report)
	}
	return reports, nil
}

// Watch re-runs the current frame whenever edits arrive, until ctx is
// done or the session is closed.
func (s *Session) Watch(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case _, open := <-s.edits.Wait():
			if !open {
				return ErrClosed
			}
			if s.edits.Len() == 0 {
				continue
			}
			if _, err := s.RunFrame(ctx, s.Context().Frame); err != nil {
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					return err
				}
				s.logger.Warn("watch frame failed", "error", err)
			}
		}
	}
}

func (s *Session) applyEdits() []error {
	var errs []error
	for i, e := range s.edits.Drain() {
		if err := e(s.doc); err != nil {
			s.logger.Warn("edit rejected", "index", i, "error", err)
			errs = append(errs, err)
		}
	}
	return errs
}

func (s *Session) notify(frame int) {
	s.mu.Lock()
	fns := make([]func(int), 0, len(s.subs))
	for id := 0; id < s.nextSub; id++ {
		if fn, ok := s.subs[id]; ok {
			fns = append(fns, fn)
		}
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn(frame)
	}
}

func (s *Session) record(ctx context.Context, graphName string, report *FrameReport) {
	if s.recorder == nil {
		return
	}
	res := report.Result
	if err := s.recorder.RecordPass(ctx, newPassRecord(report.Context.RunToken, graphName, res)); err != nil {
		s.logger.Error("record pass", "pass", res.Pass, "error", err)
	}
	frame := FrameRecord{
		RunToken:  report.Context.RunToken,
		Frame:     report.Context.Frame,
		Completed: report.Completed,
		Pass:      res.Pass,
	}
	if err := s.recorder.RecordFrame(ctx, frame); err != nil {
		s.logger.Error("record frame", "frame", frame.Frame, "error", err)
	}
}

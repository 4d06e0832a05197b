package session

import (
	"context"
	"errors"
	"time"

	"github.com/roach88/dopgraph/internal/engine"
)

// Recorder persists what a session did. Implemented by store.Store.
type Recorder interface {
	RecordPass(ctx context.Context, rec PassRecord) error
	RecordFrame(ctx context.Context, rec FrameRecord) error
}

// PassRecord summarizes one evaluation pass.
type PassRecord struct {
	RunToken  string
	Graph     string
	Frame     int
	Pass      int64
	Executed  []string
	CacheHits int

	// Failed maps each failed target to its error message.
	Failed  map[string]string
	Skipped []string

	Duration time.Duration
}

// FrameRecord is the outcome of one frame.
type FrameRecord struct {
	RunToken  string
	Frame     int
	Completed bool
	Pass      int64
}

func newPassRecord(token, graphName string, res *engine.Result) PassRecord {
	rec := PassRecord{
		RunToken:  token,
		Graph:     graphName,
		Frame:     res.Frame,
		Pass:      res.Pass,
		Executed:  res.Order,
		CacheHits: res.CacheHits,
		Duration:  res.Duration,
	}
	if len(res.Errors) > 0 {
		rec.Failed = make(map[string]string, len(res.Errors))
		for t, err := range res.Errors {
			rec.Failed[t] = err.Error()
		}
	}
	for _, s := range res.Skipped {
		rec.Skipped = append(rec.Skipped, s.NodeID)
	}
	return rec
}

// Recorders fans records out to every r in order. All recorders see every
// record; their errors are joined.
func Recorders(rs ...Recorder) Recorder {
	return multiRecorder(rs)
}

type multiRecorder []Recorder

func (m multiRecorder) RecordPass(ctx context.Context, rec PassRecord) error {
	var errs []error
	for _, r := range m {
		if err := r.RecordPass(ctx, rec); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m multiRecorder) RecordFrame(ctx context.Context, rec FrameRecord) error {
	var errs []error
	for _, r := range m {
		if err := r.RecordFrame(ctx, rec); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

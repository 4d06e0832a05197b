package harness

import "github.com/roach88/dopgraph/internal/session"

// Trace event types.
const (
	EventExecute = "execute"
	EventFrame   = "frame"
)

// Frame status values.
const (
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// TraceEvent is one entry of a scenario trace. Execute events name the
// node computed; frame events close a frame with its outcome.
type TraceEvent struct {
	Type      string            `json:"type"`
	Frame     int               `json:"frame"`
	Pass      int64             `json:"pass"`
	Node      string            `json:"node,omitempty"`
	Status    string            `json:"status,omitempty"`
	CacheHits int               `json:"cache_hits,omitempty"`
	Outputs   map[string]string `json:"outputs,omitempty"` // "node.socket" -> formatted value
	Failed    map[string]string `json:"failed,omitempty"`  // target -> error code
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true if every assertion held and every edit applied.
	Pass bool `json:"pass"`

	// Trace holds the execute and frame events in order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains assertion and edit failures. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// Completed lists the frames signalled as completed, in order.
	Completed []int `json:"completed"`

	// RunToken is the token the session recorded under.
	RunToken string `json:"run_token"`

	reports map[int]*session.FrameReport
}

// NewResult creates a new passing result.
func NewResult(runToken string) *Result {
	return &Result{
		Pass:      true,
		Trace:     []TraceEvent{},
		Errors:    []string{},
		Completed: []int{},
		RunToken:  runToken,
		reports:   make(map[int]*session.FrameReport),
	}
}

// AddError adds a failure and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// Report returns the session report of frame n.
func (r *Result) Report(n int) (*session.FrameReport, bool) {
	rep, ok := r.reports[n]
	return rep, ok
}

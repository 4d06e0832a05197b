// Package metrics exposes evaluation counters and latencies as Prometheus
// metrics.
//
// A Collector is an engine.Observer (node executions and passes) and a
// session.Recorder (frames). Each Collector owns its registry, so several
// can coexist in one process and in parallel tests.
package metrics

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/roach88/dopgraph/internal/engine"
	"github.com/roach88/dopgraph/internal/session"
)

const namespace = "dop"

// Status label values.
const (
	StatusOK     = "ok"
	StatusFailed = "failed"
)

// Collector holds the evaluation metrics.
//
// Thread-safety: all operations are thread-safe via Prometheus's internal
// locking.
type Collector struct {
	// PassesTotal counts passes by status (ok, failed).
	PassesTotal *prometheus.CounterVec

	// PassDuration measures pass wall time.
	PassDuration prometheus.Histogram

	// NodeExecutionsTotal counts apply calls by node type and status.
	// Cache hits are not executions.
	NodeExecutionsTotal *prometheus.CounterVec

	// NodeDuration measures apply latency by node type.
	NodeDuration *prometheus.HistogramVec

	// CacheHitsTotal counts nodes served from the cross-pass cache.
	CacheHitsTotal prometheus.Counter

	// SkippedNodesTotal counts nodes skipped for an unknown type.
	SkippedNodesTotal prometheus.Counter

	// FramesTotal counts frames by status (ok, failed).
	FramesTotal *prometheus.CounterVec

	registry *prometheus.Registry
}

// NewCollector creates a Collector registered on a fresh registry.
func NewCollector() *Collector {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Collector{
		PassesTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "passes_total",
				Help:      "Total evaluation passes by status",
			},
			[]string{"status"},
		),
		PassDuration: f.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "pass_duration_seconds",
				Help:      "Evaluation pass duration in seconds",
				Buckets:   []float64{0.0001, 0.001, 0.01, 0.05, 0.1, 0.5, 1, 5},
			},
		),
		NodeExecutionsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "node_executions_total",
				Help:      "Total node apply calls by type and status",
			},
			[]string{"type", "status"},
		),
		NodeDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "node_duration_seconds",
				Help:      "Node apply duration in seconds",
				Buckets:   []float64{0.00001, 0.0001, 0.001, 0.01, 0.1, 1},
			},
			[]string{"type"},
		),
		CacheHitsTotal: f.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_hits_total",
				Help:      "Total nodes that reused cached outputs",
			},
		),
		SkippedNodesTotal: f.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "skipped_nodes_total",
				Help:      "Total nodes skipped because their type is unknown",
			},
		),
		FramesTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "frames_total",
				Help:      "Total frames by status",
			},
			[]string{"status"},
		),
		registry: reg,
	}
}

// Registry returns the Prometheus registry holding the metrics.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// NodeExecuted implements engine.Observer.
func (c *Collector) NodeExecuted(typeName string, d time.Duration, err error) {
	c.NodeExecutionsTotal.WithLabelValues(typeName, status(err == nil)).Inc()
	c.NodeDuration.WithLabelValues(typeName).Observe(d.Seconds())
}

// PassCompleted implements engine.Observer.
func (c *Collector) PassCompleted(res *engine.Result) {
	c.PassesTotal.WithLabelValues(status(res.OK())).Inc()
	c.PassDuration.Observe(res.Duration.Seconds())
	c.CacheHitsTotal.Add(float64(res.CacheHits))
	c.SkippedNodesTotal.Add(float64(len(res.Skipped)))
}

// RecordPass implements session.Recorder. Pass metrics come from
// PassCompleted, so this records nothing.
func (c *Collector) RecordPass(context.Context, session.PassRecord) error {
	return nil
}

// RecordFrame implements session.Recorder.
func (c *Collector) RecordFrame(_ context.Context, rec session.FrameRecord) error {
	c.FramesTotal.WithLabelValues(status(rec.Completed)).Inc()
	return nil
}

// WriteTextfile writes the metrics in the Prometheus text format, e.g. for
// the node exporter textfile collector.
func (c *Collector) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, c.registry); err != nil {
		return fmt.Errorf("write metrics to %s: %w", path, err)
	}
	return nil
}

func status(ok bool) string {
	if ok {
		return StatusOK
	}
	return StatusFailed
}

var (
	_ engine.Observer  = (*Collector)(nil)
	_ session.Recorder = (*Collector)(nil)
)

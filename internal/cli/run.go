package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/dopgraph/internal/engine"
	"github.com/roach88/dopgraph/internal/graph"
	"github.com/roach88/dopgraph/internal/loader"
	"github.com/roach88/dopgraph/internal/metrics"
	"github.com/roach88/dopgraph/internal/session"
	"github.com/roach88/dopgraph/internal/store"
	"github.com/roach88/dopgraph/internal/value"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Database   string
	MetricsOut string
	Mode       string
	Graph      string
	Targets    []string
	From       int
	To         int

	// TokenGenerator allows overriding the run token generator (for testing).
	// If nil, defaults to session.UUIDv7Generator.
	TokenGenerator session.TokenGenerator
}

// FrameSummary is the outcome of one frame as printed by run.
type FrameSummary struct {
	Frame     int               `json:"frame"`
	Pass      int64             `json:"pass"`
	Completed bool              `json:"completed"`
	Executed  []string          `json:"executed"`
	CacheHits int               `json:"cache_hits"`
	Outputs   map[string]string `json:"outputs,omitempty"`
	Failed    map[string]string `json:"failed,omitempty"`
}

// RunResult holds the frames of one run.
type RunResult struct {
	RunToken string         `json:"run_token"`
	Frames   []FrameSummary `json:"frames"`
	Failed   int            `json:"failed"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	return newRunCommand(&RunOptions{RootOptions: rootOpts})
}

func newRunCommand(opts *RunOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <document>",
		Short: "Evaluate a document over a frame range",
		Long: `Evaluate the view sinks of a graph document for each frame in a range.

The document is a .cue file, a directory holding a CUE package, or a .json
op script. With --db, the document, every pass and every frame completion
are recorded under one run token. With --metrics-out, Prometheus metrics
for the run are written in the text exposition format.

Exit codes:
  0 - Every frame completed
  1 - One or more frames failed
  2 - Command error (unreadable document, database error, etc.)

Examples:
  dop run ./scene.cue --from 1 --to 24
  dop run ./scene --db ./dop.db --metrics-out ./dop.prom
  dop run ./scene.json --target view --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDocument(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database for run records")
	cmd.Flags().StringVar(&opts.MetricsOut, "metrics-out", "", "write Prometheus metrics to this file")
	cmd.Flags().StringVar(&opts.Mode, "mode", "checked", "replay mode (checked|bulk)")
	cmd.Flags().StringVar(&opts.Graph, "graph", "", "graph to evaluate (default main)")
	cmd.Flags().StringSliceVar(&opts.Targets, "target", nil, "extra target node ids, evaluated with the view sinks")
	cmd.Flags().IntVar(&opts.From, "from", 1, "first frame")
	cmd.Flags().IntVar(&opts.To, "to", 1, "last frame (inclusive)")

	return cmd
}

func runDocument(opts *RunOptions, path string, cmd *cobra.Command) error {
	logger := newLogger(opts.RootOptions, cmd.ErrOrStderr())
	if opts.To < opts.From {
		return NewExitError(ExitCommandError, fmt.Sprintf("frame range %d..%d is empty", opts.From, opts.To))
	}

	doc, script, err := loadDocument(path, opts.Mode)
	if err != nil {
		return err
	}

	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)
	go func() {
		select {
		case sig := <-sigChan:
			logger.Info("received signal, stopping after the current node", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	collector := metrics.NewCollector()
	recorders := []session.Recorder{collector}
	if opts.Database != "" {
		st, err := store.Open(opts.Database)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to open database", err)
		}
		defer func() {
			if closeErr := st.Close(); closeErr != nil {
				logger.Error("error closing database", "error", closeErr)
			}
		}()
		name := documentName(path)
		if err := st.SaveDocument(ctx, name, script); err != nil {
			return WrapExitError(ExitCommandError, "failed to save document", err)
		}
		logger.Debug("document saved", "db", opts.Database, "document", name)
		recorders = append(recorders, st)
	}

	sessOpts := []session.Option{
		session.WithLogger(logger),
		session.WithEvaluator(engine.New(doc.Types(),
			engine.WithLogger(logger),
			engine.WithObserver(collector),
		)),
		session.WithRecorder(session.Recorders(recorders...)),
		session.WithTargets(opts.Targets...),
	}
	if opts.Graph != "" {
		sessOpts = append(sessOpts, session.WithGraph(opts.Graph))
	}
	if opts.TokenGenerator != nil {
		sessOpts = append(sessOpts, session.WithTokenGenerator(opts.TokenGenerator))
	}
	sess := session.New(doc, sessOpts...)
	defer sess.Close()

	logger.Info("run starting", "document", path, "from", opts.From, "to", opts.To, "run_token", sess.Context().RunToken)
	reports, runErr := sess.RunFrames(ctx, opts.From, opts.To)

	result := RunResult{RunToken: sess.Context().RunToken, Frames: make([]FrameSummary, 0, len(reports))}
	for _, report := range reports {
		summary := summarizeFrame(report)
		if !summary.Completed {
			result.Failed++
		}
		result.Frames = append(result.Frames, summary)
	}

	if opts.MetricsOut != "" {
		if err := collector.WriteTextfile(opts.MetricsOut); err != nil {
			logger.Error("failed to write metrics", "path", opts.MetricsOut, "error", err)
		}
	}

	if err := outputRun(opts, cmd, result); err != nil {
		return err
	}

	// A nil report ends the range early: the pass itself could not run.
	if len(reports) < opts.To-opts.From+1 {
		if errors.Is(runErr, context.Canceled) {
			return WrapExitError(ExitFailure, "run interrupted", runErr)
		}
		return WrapExitError(ExitCommandError, "run stopped", runErr)
	}
	if result.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d frame(s) failed", result.Failed))
	}
	logger.Debug("run finished", "run_token", result.RunToken)
	return nil
}

// documentName returns the store name of the document at path: its base
// name without extension.
func documentName(path string) string {
	base := filepath.Base(filepath.Clean(path))
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func summarizeFrame(report *session.FrameReport) FrameSummary {
	res := report.Result
	s := FrameSummary{
		Frame:     res.Frame,
		Pass:      res.Pass,
		Completed: report.Completed,
		Executed:  append([]string{}, res.Order...),
		CacheHits: res.CacheHits,
		Outputs:   make(map[string]string),
		Failed:    make(map[string]string),
	}
	for target, outs := range res.Outputs {
		for socket, v := range outs {
			s.Outputs[target+"."+socket] = value.Format(v)
		}
	}
	for target, err := range res.Errors {
		s.Failed[target] = errorCode(err)
	}
	return s
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
	return loader.ErrCodeGeneric
}

func outputRun(opts *RunOptions, cmd *cobra.Command, result RunResult) error {
	if opts.Format == "json" {
		response := CLIResponse{Status: "ok", Data: result, RunToken: result.RunToken}
		if result.Failed > 0 {
			response.Status = "error"
			response.Error = &CLIError{
				Code:    "E_FRAME_FAILED",
				Message: fmt.Sprintf("%d frame(s) failed", result.Failed),
			}
		}
		return writeJSON(cmd.OutOrStdout(), response)
	}

	w := cmd.OutOrStdout()
	for _, f := range result.Frames {
		mark := "✓"
		if !f.Completed {
			mark = "✗"
		}
		fmt.Fprintf(w, "%s frame %d (pass %d): %d executed, %d cached\n", mark, f.Frame, f.Pass, len(f.Executed), f.CacheHits)
		for _, key := range sortedKeys(f.Outputs) {
			fmt.Fprintf(w, "    %s = %s\n", key, f.Outputs[key])
		}
		for _, target := range sortedKeys(f.Failed) {
			fmt.Fprintf(w, "    %s failed: %s\n", target, f.Failed[target])
		}
	}
	fmt.Fprintf(w, "\nRun %s: %d frame(s), %d failed\n", result.RunToken, len(result.Frames), result.Failed)
	return nil
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

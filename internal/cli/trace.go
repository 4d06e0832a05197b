package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/dopgraph/internal/session"
	"github.com/roach88/dopgraph/internal/store"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Database string
	RunToken string
	Frame    int // optional - filter to one frame
}

// PassEntry is one recorded evaluation pass.
type PassEntry struct {
	Pass       int64             `json:"pass"`
	Graph      string            `json:"graph"`
	Frame      int               `json:"frame"`
	Executed   []string          `json:"executed"`
	CacheHits  int               `json:"cache_hits"`
	Failed     map[string]string `json:"failed,omitempty"`
	Skipped    []string          `json:"skipped,omitempty"`
	DurationMS float64           `json:"duration_ms"`
}

// FrameEntry is the recorded outcome of one frame.
type FrameEntry struct {
	Frame     int   `json:"frame"`
	Pass      int64 `json:"pass"`
	Completed bool  `json:"completed"`
}

// TraceResult holds the complete trace output.
type TraceResult struct {
	RunToken string       `json:"run_token"`
	Passes   []PassEntry  `json:"passes"`
	Frames   []FrameEntry `json:"frames"`
	Stats    TraceStats   `json:"stats"`
}

// TraceStats holds summary statistics for the run.
type TraceStats struct {
	Passes     int `json:"passes"`
	Executions int `json:"executions"`
	CacheHits  int `json:"cache_hits"`
	Failures   int `json:"failures"`
	Completed  int `json:"completed"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Show what a recorded run computed",
		Long: `Show the passes and frame outcomes a run recorded in the database.

Without --run, lists the run tokens the database holds. With --run, shows
every pass of that run in order: the nodes executed, cache hits and
failed targets, followed by each frame's completion status.

Examples:
  dop trace --db ./dop.db
  dop trace --db ./dop.db --run 01927a3c-...
  dop trace --db ./dop.db --run 01927a3c-... --frame 3 --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.RunToken, "run", "", "run token to trace")
	cmd.Flags().IntVar(&opts.Frame, "frame", 0, "only show this frame")

	return cmd
}

func runTrace(opts *TraceOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	if opts.RunToken == "" {
		return listRuns(ctx, st, opts, cmd)
	}

	passes, err := st.ReadPasses(ctx, opts.RunToken)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read passes", err)
	}
	frames, err := st.ReadFrames(ctx, opts.RunToken)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read frames", err)
	}

	result := buildTrace(opts.RunToken, passes, frames, opts.Frame)

	if opts.Format == "json" {
		return outputTraceJSON(cmd, result)
	}
	return outputTraceText(cmd, result, opts.Verbose)
}

func listRuns(ctx context.Context, st *store.Store, opts *TraceOptions, cmd *cobra.Command) error {
	runs, err := st.Runs(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to list runs", err)
	}
	if opts.Format == "json" {
		return outputTraceJSON(cmd, map[string]any{"runs": runs})
	}
	w := cmd.OutOrStdout()
	if len(runs) == 0 {
		fmt.Fprintln(w, "No runs recorded.")
		return nil
	}
	for _, r := range runs {
		fmt.Fprintln(w, r)
	}
	return nil
}

// buildTrace converts stored records to trace entries. A non-zero frame
// keeps only that frame's passes and outcome.
func buildTrace(runToken string, passes []session.PassRecord, frames []session.FrameRecord, frame int) TraceResult {
	result := TraceResult{
		RunToken: runToken,
		Passes:   []PassEntry{},
		Frames:   []FrameEntry{},
	}
	for _, p := range passes {
		if frame != 0 && p.Frame != frame {
			continue
		}
		executed := p.Executed
		if executed == nil {
			executed = []string{}
		}
		result.Passes = append(result.Passes, PassEntry{
			Pass:       p.Pass,
			Graph:      p.Graph,
			Frame:      p.Frame,
			Executed:   executed,
			CacheHits:  p.CacheHits,
			Failed:     p.Failed,
			Skipped:    p.Skipped,
			DurationMS: float64(p.Duration) / float64(time.Millisecond),
		})
		result.Stats.Passes++
		result.Stats.Executions += len(p.Executed)
		result.Stats.CacheHits += p.CacheHits
		result.Stats.Failures += len(p.Failed)
	}
	for _, f := range frames {
		if frame != 0 && f.Frame != frame {
			continue
		}
		result.Frames = append(result.Frames, FrameEntry{
			Frame:     f.Frame,
			Pass:      f.Pass,
			Completed: f.Completed,
		})
		if f.Completed {
			result.Stats.Completed++
		}
	}
	return result
}

func outputTraceJSON(cmd *cobra.Command, data any) error {
	response := CLIResponse{
		Status: "ok",
		Data:   data,
	}
	if r, ok := data.(TraceResult); ok {
		response.RunToken = r.RunToken
	}

	return writeJSON(cmd.OutOrStdout(), response)
}

func outputTraceText(cmd *cobra.Command, result TraceResult, verbose bool) error {
	w := cmd.OutOrStdout()

	if len(result.Passes) == 0 && len(result.Frames) == 0 {
		fmt.Fprintf(w, "No records found for run: %s\n", result.RunToken)
		return nil
	}

	fmt.Fprintf(w, "Run: %s\n", result.RunToken)
	fmt.Fprintln(w, strings.Repeat("=", 60))

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Passes:")
	fmt.Fprintln(w, strings.Repeat("-", 40))
	for _, p := range result.Passes {
		fmt.Fprintf(w, "  [%d] frame %d %s: %d executed, %d cached\n",
			p.Pass, p.Frame, p.Graph, len(p.Executed), p.CacheHits)
		if verbose && len(p.Executed) > 0 {
			fmt.Fprintf(w, "      executed: %s\n", strings.Join(p.Executed, ", "))
		}
		for _, t := range sortedKeys(p.Failed) {
			fmt.Fprintf(w, "      ✗ %s: %s\n", t, p.Failed[t])
		}
		if len(p.Skipped) > 0 {
			fmt.Fprintf(w, "      skipped: %s\n", strings.Join(p.Skipped, ", "))
		}
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Frames:")
	fmt.Fprintln(w, strings.Repeat("-", 40))
	for _, f := range result.Frames {
		mark := "✗"
		if f.Completed {
			mark = "✓"
		}
		fmt.Fprintf(w, "  %s frame %d (pass %d)\n", mark, f.Frame, f.Pass)
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Stats:")
	fmt.Fprintln(w, strings.Repeat("-", 40))
	fmt.Fprintf(w, "  Passes:      %d\n", result.Stats.Passes)
	fmt.Fprintf(w, "  Executions:  %d\n", result.Stats.Executions)
	fmt.Fprintf(w, "  Cache hits:  %d\n", result.Stats.CacheHits)
	fmt.Fprintf(w, "  Failures:    %d\n", result.Stats.Failures)
	fmt.Fprintf(w, "  Completed:   %d/%d\n", result.Stats.Completed, len(result.Frames))

	return nil
}

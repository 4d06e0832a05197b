package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/dopgraph/internal/store"
	"github.com/roach88/dopgraph/internal/testutil"
)

type runResponse struct {
	Status   string    `json:"status"`
	Data     RunResult `json:"data"`
	Error    *CLIError `json:"error"`
	RunToken string    `json:"run_token"`
}

func executeRun(t *testing.T, format string, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	opts := &RunOptions{
		RootOptions:    &RootOptions{Format: format},
		TokenGenerator: testutil.NewFixedTokenGenerator("run-1"),
	}
	cmd := newRunCommand(opts)
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestRun_FrameRangeJSON(t *testing.T) {
	out, err := executeRun(t, "json", "testdata/frame.cue", "--from", "1", "--to", "3")
	require.NoError(t, err)

	var resp runResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "run-1", resp.RunToken)
	require.Len(t, resp.Data.Frames, 3)

	for i, want := range []string{"2", "4", "6"} {
		f := resp.Data.Frames[i]
		assert.Equal(t, i+1, f.Frame)
		assert.True(t, f.Completed)
		assert.Equal(t, want, f.Outputs["view.object"])
	}
	assert.Equal(t, []string{"frame", "k", "mul", "view"}, resp.Data.Frames[0].Executed)
	assert.Equal(t, []string{"frame", "mul", "view"}, resp.Data.Frames[1].Executed)
	assert.Equal(t, 1, resp.Data.Frames[1].CacheHits)
}

func TestRun_TextOutput(t *testing.T) {
	out, err := executeRun(t, "text", "testdata/frame.cue", "--to", "2")
	require.NoError(t, err)
	assert.Contains(t, out, "✓ frame 1 (pass 1): 4 executed, 0 cached")
	assert.Contains(t, out, "✓ frame 2 (pass 2): 3 executed, 1 cached")
	assert.Contains(t, out, "view.object = 4")
	assert.Contains(t, out, "Run run-1: 2 frame(s), 0 failed")
}

func TestRun_FailedFrameExitCode(t *testing.T) {
	out, err := executeRun(t, "json", "testdata/failure.cue")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp runResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "E_FRAME_FAILED", resp.Error.Code)
	require.Len(t, resp.Data.Frames, 1)

	f := resp.Data.Frames[0]
	assert.False(t, f.Completed)
	assert.Equal(t, "3", f.Outputs["good.object"])
	assert.Equal(t, "MISSING_REQUIRED_INPUT", f.Failed["bad"])
}

func TestRun_Targets(t *testing.T) {
	out, err := executeRun(t, "json", "testdata/frame.cue", "--target", "k")
	require.NoError(t, err)

	var resp runResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.Len(t, resp.Data.Frames, 1)
	f := resp.Data.Frames[0]
	assert.True(t, f.Completed)
	assert.Equal(t, []string{"frame", "k", "mul", "view"}, f.Executed)
	assert.Equal(t, "2", f.Outputs["k.out"])
	assert.Equal(t, "2", f.Outputs["view.object"])
}

func TestRun_TargetsDoNotHideFailedViews(t *testing.T) {
	out, err := executeRun(t, "json", "testdata/failure.cue", "--target", "k")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp runResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.Len(t, resp.Data.Frames, 1)
	f := resp.Data.Frames[0]
	assert.False(t, f.Completed)
	assert.Equal(t, "3", f.Outputs["k.out"])
	assert.Equal(t, "MISSING_REQUIRED_INPUT", f.Failed["bad"])
}

func TestRun_RecordsToDatabaseAndMetrics(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "dop.db")
	promPath := filepath.Join(tmpDir, "dop.prom")

	_, err := executeRun(t, "text", "testdata/frame.cue", "--to", "3",
		"--db", dbPath, "--metrics-out", promPath)
	require.NoError(t, err)

	st, err := store.Open(dbPath)
	require.NoError(t, err)
	defer st.Close()
	ctx := context.Background()

	docs, err := st.Documents(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"frame"}, docs)

	passes, err := st.ReadPasses(ctx, "run-1")
	require.NoError(t, err)
	assert.Len(t, passes, 3)

	completed, err := st.CompletedFrames(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3}, completed)

	prom, err := os.ReadFile(promPath)
	require.NoError(t, err)
	assert.Contains(t, string(prom), `dop_frames_total{status="ok"} 3`)
	assert.Contains(t, string(prom), `dop_cache_hits_total 2`)
}

func TestRun_CommandErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
		msg  string
	}{
		{"missing document", []string{filepath.Join(t.TempDir(), "nope.cue")}, "failed to load document"},
		{"empty range", []string{"testdata/frame.cue", "--from", "3", "--to", "1"}, "is empty"},
		{"bad mode", []string{"testdata/frame.cue", "--mode", "eager"}, "invalid --mode"},
		{"unknown graph", []string{"testdata/frame.cue", "--graph", "missing"}, "run stopped"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := executeRun(t, "text", tt.args...)
			require.Error(t, err)
			assert.Equal(t, ExitCommandError, GetExitCode(err))
			assert.Contains(t, err.Error(), tt.msg)
		})
	}
}

func TestRun_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	cmd := newRunCommand(&RunOptions{
		RootOptions:    &RootOptions{Format: "text"},
		TokenGenerator: testutil.NewFixedTokenGenerator("run-1"),
	})
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"testdata/frame.cue", "--to", "5"})

	err := cmd.ExecuteContext(ctx)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, err.Error(), "run interrupted")
}

func TestDocumentName(t *testing.T) {
	assert.Equal(t, "scene", documentName("/tmp/scene.cue"))
	assert.Equal(t, "scene", documentName("./scene/"))
	assert.Equal(t, "ops", documentName("ops.json"))
}

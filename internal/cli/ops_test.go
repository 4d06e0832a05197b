package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/dopgraph/internal/oplog"
)

func executeOps(t *testing.T, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd := NewOpsCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestOps_Export(t *testing.T) {
	out, err := executeOps(t, "testdata/frame.cue")
	require.NoError(t, err)

	script, err := oplog.DecodeScript([]byte(out))
	require.NoError(t, err)
	ops, ok := script.Graph("main")
	require.True(t, ok)

	var kinds []oplog.Kind
	for _, op := range ops {
		kinds = append(kinds, op.Kind)
	}
	assert.Contains(t, kinds, oplog.KindBindNodeInput)
	assert.Contains(t, kinds, oplog.KindMarkView)
	assert.Equal(t, oplog.KindAddNode, ops[0].Kind)
}

func TestOps_ExportIsReplayable(t *testing.T) {
	dir := t.TempDir()
	scriptPath := filepath.Join(dir, "frame.json")

	out, err := executeOps(t, "testdata/frame.cue", "-o", scriptPath)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ Wrote 1 graph(s)")

	// The exported JSON script runs like the CUE document.
	runOut, err := executeRun(t, "text", scriptPath, "--to", "2")
	require.NoError(t, err)
	assert.Contains(t, runOut, "view.object = 4")

	// Exporting the export is a fixed point.
	again, err := executeOps(t, scriptPath)
	require.NoError(t, err)
	first, err := os.ReadFile(scriptPath)
	require.NoError(t, err)
	assert.Equal(t, string(first), again)
}

func TestOps_SaveAndLoad(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "dop.db")

	saved, err := executeOps(t, "testdata/frame.cue", "--db", dbPath)
	require.NoError(t, err)

	loaded, err := executeOps(t, "--db", dbPath, "--load", "frame")
	require.NoError(t, err)
	assert.Equal(t, saved, loaded)
}

func TestOps_Errors(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "dop.db")
	tests := []struct {
		name string
		args []string
		msg  string
	}{
		{"no input", nil, "a document or --load is required"},
		{"load without db", []string{"--load", "frame"}, "--load requires --db"},
		{"load with document", []string{"--db", dbPath, "--load", "frame", "testdata/frame.cue"}, "takes no document"},
		{"missing stored document", []string{"--db", dbPath, "--load", "nope"}, `failed to load document "nope"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := executeOps(t, tt.args...)
			require.Error(t, err)
			assert.Equal(t, ExitCommandError, GetExitCode(err))
			assert.Contains(t, err.Error(), tt.msg)
		})
	}
}

package cli

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/aqlc/internal/store"
)

// compileToLog compiles the project definitions into a fresh log and
// returns its path and the run ID.
func compileToLog(t *testing.T) (string, string) {
	t.Helper()
	db := filepath.Join(t.TempDir(), "aqlc.db")
	out, err := execute(t, "compile", projectsDefs, "--db", db, "--format", "json")
	require.NoError(t, err)
	return db, decodeCompile(t, out).RunID
}

func decodeReplay(t *testing.T, out string) (CLIResponse, ReplayResult) {
	t.Helper()
	var resp struct {
		CLIResponse
		Data ReplayResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	return resp.CLIResponse, resp.Data
}

func TestReplayLatestRunIsClean(t *testing.T) {
	db, runID := compileToLog(t)

	out, err := execute(t, "replay", "--db", db, "--format", "json")
	require.NoError(t, err)

	resp, result := decodeReplay(t, out)
	assert.Equal(t, "ok", resp.Status)
	assert.True(t, result.AllDeterministic)
	require.Len(t, result.Runs, 1)
	assert.Equal(t, runID, result.Runs[0].RunID)
	assert.Equal(t, 3, result.Runs[0].Checked)
}

func TestReplayText(t *testing.T) {
	db, runID := compileToLog(t)

	out, err := execute(t, "replay", runID, "--db", db)
	require.NoError(t, err)

	assert.Contains(t, out, "✓ run 1")
	assert.Contains(t, out, "3 checked, 0 drifted")
	assert.Contains(t, out, "✓ All runs reproduce")
}

func TestReplayAllRuns(t *testing.T) {
	db, _ := compileToLog(t)
	_, err := execute(t, "compile", projectsDefs, "by-name", "--db", db)
	require.NoError(t, err)

	out, err := execute(t, "replay", "--db", db, "--all", "--format", "json")
	require.NoError(t, err)

	_, result := decodeReplay(t, out)
	require.Len(t, result.Runs, 2)
	assert.Equal(t, int64(1), result.Runs[0].Seq)
	assert.Equal(t, int64(2), result.Runs[1].Seq)
	assert.Equal(t, 1, result.Runs[1].Checked)
}

func TestReplayDetectsDrift(t *testing.T) {
	db, runID := compileToLog(t)

	st, err := store.Open(db)
	require.NoError(t, err)
	_, err = st.DB().ExecContext(context.Background(),
		`UPDATE compilations SET query_hash = 'tampered' WHERE run_id = ? AND name = 'slugs'`, runID)
	require.NoError(t, err)
	require.NoError(t, st.Close())

	out, err := execute(t, "replay", "--db", db, "--format", "json")

	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	resp, result := decodeReplay(t, out)
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeDrift, resp.Error.Code)
	assert.False(t, result.AllDeterministic)
	require.Len(t, result.Runs[0].Drifts, 1)
	drift := result.Runs[0].Drifts[0]
	assert.Equal(t, "slugs", drift.Name)
	assert.Equal(t, "tampered", drift.Recorded)
	assert.Len(t, drift.Replayed, 64)
}

func TestReplayEmptyLog(t *testing.T) {
	db := filepath.Join(t.TempDir(), "empty.db")
	st, err := store.Open(db)
	require.NoError(t, err)
	require.NoError(t, st.Close())

	out, err := execute(t, "replay", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "No runs found")
}

func TestReplayCommandErrors(t *testing.T) {
	db, _ := compileToLog(t)

	tests := []struct {
		name string
		args []string
	}{
		{"missing log", []string{"replay", "--db", filepath.Join(t.TempDir(), "nope.db")}},
		{"no log configured", []string{"replay"}},
		{"unknown run", []string{"replay", "no-such-run", "--db", db}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(t, tt.args...)
			require.Error(t, err)
			assert.Equal(t, ExitCommandError, GetExitCode(err))
		})
	}
}

package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const inlineScenario = `name: inline
description: Inline pipeline
cases:
  - name: names
    pipeline: Project.Select(x => x.Name)
    expect:
      text: |-
        FOR x IN Project
        RETURN x.Name
`

const failingScenario = `name: failing
description: Expects the wrong text
cases:
  - name: wrong
    pipeline: Project.Select(x => x.Name)
    expect:
      text: RETURN nothing
`

func writeScenario(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestTestCommandRunsScenarios(t *testing.T) {
	out, err := execute(t, "test", scenarioDir)
	require.NoError(t, err)

	assert.Contains(t, out, "✓ cli-projects")
	assert.Contains(t, out, "Test Summary: 1 passed, 0 failed, 1 total")
	assert.Contains(t, out, "✓ All scenarios passed")
}

func TestTestCommandUpdateWritesGolden(t *testing.T) {
	dir := t.TempDir()
	path := writeScenario(t, dir, "inline.yaml", inlineScenario)

	out, err := execute(t, "test", path, "--update")
	require.NoError(t, err)
	assert.Contains(t, out, "✓ inline (golden updated)")

	golden, err := os.ReadFile(filepath.Join(dir, "golden", "inline.golden"))
	require.NoError(t, err)
	assert.Contains(t, string(golden), "FOR x IN Project")

	_, err = execute(t, "test", path)
	require.NoError(t, err, "a fresh golden file must match")
}

func TestTestCommandGoldenMismatch(t *testing.T) {
	dir := t.TempDir()
	path := writeScenario(t, dir, "inline.yaml", inlineScenario)
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "golden"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "golden", "inline.golden"), []byte("stale\n"), 0644))

	out, err := execute(t, "test", path)

	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ inline")
	assert.Contains(t, out, "golden file mismatch")
}

func TestTestCommandFailureJSON(t *testing.T) {
	dir := t.TempDir()
	writeScenario(t, dir, "inline.yaml", inlineScenario)
	writeScenario(t, dir, "failing.yaml", failingScenario)

	out, err := execute(t, "test", dir, "--format", "json")

	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp struct {
		Status string     `json:"status"`
		Data   TestResult `json:"data"`
		Error  *CLIError  `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "E_TEST_FAILED", resp.Error.Code)
	assert.Equal(t, 1, resp.Data.Passed)
	assert.Equal(t, 1, resp.Data.Failed)
	assert.Equal(t, 2, resp.Data.Total)
}

func TestTestCommandFilter(t *testing.T) {
	dir := t.TempDir()
	writeScenario(t, dir, "inline.yaml", inlineScenario)
	writeScenario(t, dir, "failing.yaml", failingScenario)

	out, err := execute(t, "test", dir, "--filter", "in*")
	require.NoError(t, err)
	assert.Contains(t, out, "1 total")

	out, err = execute(t, "test", dir, "--filter", "zzz*")
	require.NoError(t, err)
	assert.Contains(t, out, "No scenarios found.")

	_, err = execute(t, "test", dir, "--filter", "[")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestTestCommandBadScenarioFails(t *testing.T) {
	dir := t.TempDir()
	writeScenario(t, dir, "typo.yaml", "name: typo\ncase: []\n")

	out, err := execute(t, "test", dir)

	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "failed to load scenario")
}

func TestTestCommandMissingPath(t *testing.T) {
	_, err := execute(t, "test", filepath.Join(t.TempDir(), "nope"))

	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestFilterScenarios(t *testing.T) {
	files := []string{"a/orders-list.yaml", "a/orders-group.yml", "b/users.yaml"}

	got, err := filterScenarios(files, "orders-*")
	require.NoError(t, err)
	assert.Equal(t, []string{"a/orders-list.yaml", "a/orders-group.yml"}, got)

	got, err = filterScenarios(files, "")
	require.NoError(t, err)
	assert.Equal(t, files, got)
}

func TestGoldenFilePath(t *testing.T) {
	assert.Equal(t, filepath.Join("s", "golden", "projects.golden"), goldenFilePath(filepath.Join("s", "projects.yaml")))
}

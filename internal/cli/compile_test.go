package cli

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/aqlc/internal/querydef"
	"github.com/roach88/aqlc/internal/store"
)

const byNameText = "FOR x IN Project\nFILTER x.Name == @name\nSORT x.Name\nRETURN x.Name"

func decodeCompile(t *testing.T, out string) CompileResult {
	t.Helper()
	var resp struct {
		Status string        `json:"status"`
		Data   CompileResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.Equal(t, "ok", resp.Status)
	return resp.Data
}

func TestCompileText(t *testing.T) {
	out, err := execute(t, "compile", projectsDefs, "by-name")
	require.NoError(t, err)

	assert.Contains(t, out, "✓ Compiled 1 query(s)")
	assert.Contains(t, out, "-- by-name (Project, NormalList)")
	assert.Contains(t, out, byNameText)
	assert.Contains(t, out, "-- bind vars: {name=A}")
}

func TestCompileAllJSON(t *testing.T) {
	out, err := execute(t, "compile", projectsDefs, "--format", "json")
	require.NoError(t, err)

	result := decodeCompile(t, out)
	require.Len(t, result.Queries, 3)
	assert.Equal(t, []string{"by-name", "recent", "slugs"},
		[]string{result.Queries[0].Name, result.Queries[1].Name, result.Queries[2].Name})

	slugs := result.Queries[2]
	assert.Equal(t, "Archive", slugs.Collection)
	assert.Equal(t, "FOR x IN Archive\nRETURN SLUGIFY(x.Name)", slugs.Text)
	assert.Len(t, slugs.Hash, 64)
}

func TestCompileParamOverride(t *testing.T) {
	out, err := execute(t, "compile", projectsDefs, "by-name", "slugs", "-p", "name=B", "--format", "json")
	require.NoError(t, err)

	result := decodeCompile(t, out)
	require.Len(t, result.Queries, 2)
	assert.Equal(t, map[string]any{"name": "B"}, result.Queries[0].BindVars)
}

func TestCompileErrors(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		wantCode string
	}{
		{"undeclared param", []string{projectsDefs, "slugs", "-p", "name=B"}, querydef.ErrCodeInvalidParam},
		{"malformed param", []string{projectsDefs, "-p", "name"}, querydef.ErrCodeInvalidParam},
		{"bad param value", []string{projectsDefs, "recent", "-p", "limit=many"}, querydef.ErrCodeInvalidParam},
		{"unknown query", []string{projectsDefs, "nope"}, querydef.ErrCodeUnknownQuery},
		{"missing definitions", []string{"testdata/defs/nope.yaml"}, querydef.ErrCodeNotFound},
		{"syntax error", []string{invalidDefs, "broken"}, querydef.ErrCodeInvalidPipeline},
		{"unknown stage", []string{invalidDefs, "frobnicate"}, "UNHANDLED_CONSTRUCT"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := execute(t, append([]string{"compile", "--format", "json"}, tt.args...)...)

			require.Error(t, err)
			assert.Equal(t, ExitCommandError, GetExitCode(err))

			var resp CLIResponse
			require.NoError(t, json.Unmarshal([]byte(out), &resp))
			assert.Equal(t, "error", resp.Status)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.wantCode, resp.Error.Code)
		})
	}
}

func TestCompileWritesFiles(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "aql")

	out, err := execute(t, "compile", projectsDefs, "by-name", "-o", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "Wrote 2 file(s)")

	text, err := os.ReadFile(filepath.Join(dir, "by-name.aql"))
	require.NoError(t, err)
	assert.Equal(t, byNameText+"\n", string(text))

	binds, err := os.ReadFile(filepath.Join(dir, "by-name.bindvars.json"))
	require.NoError(t, err)
	assert.Equal(t, `{"name":"A"}`, string(binds))
}

func TestWriteQueryFilesRejectsCollisions(t *testing.T) {
	queries := []CompiledQuery{
		{Name: "By Name", Text: "RETURN 1"},
		{Name: "by-name", Text: "RETURN 2"},
	}

	_, err := writeQueryFiles(t.TempDir(), queries)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "share the file name by-name")
}

func TestWriteQueryFilesEmptyBindVars(t *testing.T) {
	dir := t.TempDir()

	files, err := writeQueryFiles(dir, []CompiledQuery{{Name: "all", Text: "FOR x IN P\nRETURN x"}})
	require.NoError(t, err)
	require.Len(t, files, 2)

	binds, err := os.ReadFile(filepath.Join(dir, "all.bindvars.json"))
	require.NoError(t, err)
	assert.Equal(t, "{}", string(binds))
}

func TestCompileRecordsRun(t *testing.T) {
	db := filepath.Join(t.TempDir(), "aqlc.db")

	out, err := execute(t, "compile", projectsDefs, "--db", db, "--format", "json")
	require.NoError(t, err)
	result := decodeCompile(t, out)
	require.NotEmpty(t, result.RunID)

	st, err := store.Open(db)
	require.NoError(t, err)
	defer st.Close()

	ctx := context.Background()
	run, err := st.ReadRun(ctx, result.RunID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), run.Seq)
	assert.Equal(t, projectsDefs, run.Source)
	assert.Equal(t, 3, run.Compilations)

	comps, err := st.ReadCompilations(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, comps, 3)
	assert.Equal(t, "by-name", comps[0].Name)
	assert.Equal(t, result.Queries[0].Hash, comps[0].QueryHash)
	assert.Equal(t, map[string]string{"name": "string"}, comps[0].ParamTypes)
	assert.Equal(t, "date", comps[1].Fields["Created"])
	assert.Equal(t, "SLUGIFY", comps[2].Functions["Text.Slug"])
}

func TestCompileUsesConfigDB(t *testing.T) {
	dir := t.TempDir()
	db := filepath.Join(dir, "log.db")
	cfg := filepath.Join(dir, "aqlc.yaml")
	require.NoError(t, os.WriteFile(cfg, []byte("db: "+db+"\n"), 0644))

	_, err := execute(t, "compile", projectsDefs, "by-name", "--config", cfg)
	require.NoError(t, err)

	_, err = os.Stat(db)
	assert.NoError(t, err)
}

func TestDeclaredOverrides(t *testing.T) {
	def := &querydef.Definition{Params: []querydef.Param{{Name: "a"}, {Name: "b"}}}

	got := declaredOverrides(def, map[string]string{"a": "1", "c": "3"})

	assert.Equal(t, map[string]string{"a": "1"}, got)
	assert.Nil(t, declaredOverrides(def, nil))
}

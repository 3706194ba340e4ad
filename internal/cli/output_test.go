package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, ExitSuccess},
		{"plain error", errors.New("boom"), ExitFailure},
		{"exit error", NewExitError(ExitCommandError, "bad"), ExitCommandError},
		{"wrapped exit error", errors.Join(errors.New("ctx"), NewExitError(ExitFailure, "x")), ExitFailure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, GetExitCode(tt.err))
		})
	}
}

func TestExitErrorFormat(t *testing.T) {
	inner := errors.New("disk full")
	err := WrapExitError(ExitCommandError, "writing", inner)

	assert.Equal(t, "writing: disk full", err.Error())
	assert.ErrorIs(t, err, inner)
	assert.Equal(t, "bad", NewExitError(ExitFailure, "bad").Error())
}

func TestFormatterJSON(t *testing.T) {
	buf := &bytes.Buffer{}
	f := &OutputFormatter{Format: "json", Writer: buf}

	require.NoError(t, f.Error(ErrCodeCompile, "no good", map[string]any{"node": "x"}))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeCompile, resp.Error.Code)
	assert.Equal(t, "no good", resp.Error.Message)
}

func TestFormatterText(t *testing.T) {
	buf := &bytes.Buffer{}
	f := &OutputFormatter{Format: "text", Writer: buf, Verbose: true}

	require.NoError(t, f.Error("E005", "missing", "path x"))

	assert.Equal(t, "Error [E005]: missing\nDetails: path x\n", buf.String())
}

func TestFormatterFail(t *testing.T) {
	buf := &bytes.Buffer{}
	f := &OutputFormatter{Format: "text", Writer: buf}

	err := f.Fail(ExitCommandError, ErrCodeStore, "locked", nil)

	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, buf.String(), "Error [E009]: locked")
}

func TestFormatterErrors(t *testing.T) {
	errs := []CLIError{
		{Code: "E121", Message: "bad pipeline", Query: "a"},
		{Code: "E123", Message: "no query"},
	}

	text := &bytes.Buffer{}
	require.NoError(t, (&OutputFormatter{Format: "text", Writer: text}).Errors("Compilation failed", errs))
	assert.Contains(t, text.String(), "✗ Compilation failed")
	assert.Contains(t, text.String(), "  a: E121: bad pipeline")
	assert.Contains(t, text.String(), "  E123: no query")

	js := &bytes.Buffer{}
	require.NoError(t, (&OutputFormatter{Format: "json", Writer: js}).Errors("Compilation failed", errs))
	var resp struct {
		Status string     `json:"status"`
		Data   []CLIError `json:"data"`
		Error  *CLIError  `json:"error"`
	}
	require.NoError(t, json.Unmarshal(js.Bytes(), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.Len(t, resp.Data, 2)
	assert.Equal(t, "E121", resp.Error.Code)
}

func TestVerboseLogUsesErrWriter(t *testing.T) {
	out, diag := &bytes.Buffer{}, &bytes.Buffer{}
	f := &OutputFormatter{Format: "json", Writer: out, ErrWriter: diag, Verbose: true}

	f.VerboseLog("loaded %d", 3)

	assert.Empty(t, out.String())
	assert.Equal(t, "loaded 3\n", diag.String())

	quiet := &OutputFormatter{Writer: out}
	quiet.VerboseLog("hidden")
	assert.Empty(t, out.String())
}

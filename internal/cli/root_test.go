package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	projectsDefs = filepath.Join("testdata", "defs", "projects.yaml")
	invalidDefs  = filepath.Join("testdata", "defs", "invalid.yaml")
	advisoryDefs = filepath.Join("testdata", "defs", "advisory.yaml")
	scenarioDir  = filepath.Join("testdata", "scenarios")
)

// execute runs the root command with args and returns stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	out := &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "aqlc", cmd.Use)
	assert.Contains(t, cmd.Long, "AQL")
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	commands := []string{"compile", "validate", "replay", "log", "shell", "test"}

	for _, cmdName := range commands {
		t.Run(cmdName, func(t *testing.T) {
			subCmd, _, err := cmd.Find([]string{cmdName})
			require.NoError(t, err, "Command %s should exist", cmdName)
			require.NotNil(t, subCmd)
			assert.Equal(t, cmdName, subCmd.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()

	verboseFlag := cmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, verboseFlag)
	assert.Equal(t, "v", verboseFlag.Shorthand)
	assert.Equal(t, "false", verboseFlag.DefValue)

	formatFlag := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, formatFlag)
	assert.Equal(t, "", formatFlag.DefValue, "format falls back to the config, then text")

	configFlag := cmd.PersistentFlags().Lookup("config")
	require.NotNil(t, configFlag)
}

func TestCommandFlags(t *testing.T) {
	tests := []struct {
		command   string
		flag      string
		shorthand string
	}{
		{"compile", "param", "p"},
		{"compile", "out-dir", "o"},
		{"compile", "db", ""},
		{"compile", "watch", ""},
		{"replay", "db", ""},
		{"replay", "all", ""},
		{"log", "query", ""},
		{"log", "source-hash", ""},
		{"shell", "definitions", "d"},
		{"shell", "collection", "c"},
		{"test", "update", ""},
		{"test", "filter", ""},
	}

	cmd := NewRootCommand()
	for _, tt := range tests {
		t.Run(tt.command+"/"+tt.flag, func(t *testing.T) {
			sub, _, err := cmd.Find([]string{tt.command})
			require.NoError(t, err)
			f := sub.Flags().Lookup(tt.flag)
			require.NotNil(t, f)
			assert.Equal(t, tt.shorthand, f.Shorthand)
		})
	}
}

func TestInvalidFormat(t *testing.T) {
	_, err := execute(t, "validate", projectsDefs, "--format", "xml")

	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "invalid format")
}

func TestConfigSetsDefaultFormat(t *testing.T) {
	cfg := filepath.Join(t.TempDir(), "aqlc.yaml")
	require.NoError(t, os.WriteFile(cfg, []byte("format: json\n"), 0644))

	out, err := execute(t, "validate", projectsDefs, "--config", cfg)

	require.NoError(t, err)
	assert.Contains(t, out, `"status": "ok"`)
}

func TestFormatFlagOverridesConfig(t *testing.T) {
	cfg := filepath.Join(t.TempDir(), "aqlc.yaml")
	require.NoError(t, os.WriteFile(cfg, []byte("format: json\n"), 0644))

	out, err := execute(t, "validate", projectsDefs, "--config", cfg, "--format", "text")

	require.NoError(t, err)
	assert.Contains(t, out, "definition(s) valid")
}

func TestMissingConfigFlag(t *testing.T) {
	_, err := execute(t, "validate", projectsDefs, "--config", filepath.Join(t.TempDir(), "nope.yaml"))

	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), ErrCodeConfig)
}

package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadScenarioResolvesDefinitions(t *testing.T) {
	s, err := LoadScenario("testdata/scenarios/projects.yaml")
	require.NoError(t, err)

	assert.Equal(t, "projects", s.Name)
	assert.Equal(t, filepath.Join("testdata", "defs", "projects.yaml"), s.Definitions)
	require.Len(t, s.Cases, 7)
	assert.Equal(t, "by-name", s.Cases[0].Name, "name defaults to the query")
	assert.Equal(t, map[string]string{"name": "B"}, s.Cases[0].Params)
	assert.Len(t, s.Assertions, 4)
}

func TestLoadScenarioMissingFile(t *testing.T) {
	_, err := LoadScenario("testdata/scenarios/nope.yaml")
	assert.Error(t, err)
}

func TestLoadScenarioMissingDefinitions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "s.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
name: s
description: d
definitions: nowhere.yaml
cases:
  - query: q
`), 0o644))

	_, err := LoadScenario(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "definitions not found")
}

func TestParseScenarioErrors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"unknown field", "name: a\ndescription: b\ncase: []\n", "field case not found"},
		{"no name", "description: b\ncases: [{name: x, pipeline: Root}]\n", "name is required"},
		{"no description", "name: a\ncases: [{name: x, pipeline: Root}]\n", "description is required"},
		{"no cases", "name: a\ndescription: b\n", "cases list is required"},
		{"empty case", "name: a\ndescription: b\ncases: [{name: x}]\n", "query or pipeline is required"},
		{"both", "name: a\ndescription: b\ndefinitions: d\ncases: [{query: q, pipeline: Root}]\n", "mutually exclusive"},
		{"query without definitions", "name: a\ndescription: b\ncases: [{query: q}]\n", "needs a definitions file"},
		{"unnamed pipeline", "name: a\ndescription: b\ncases: [{pipeline: Root}]\n", "name is required for inline pipelines"},
		{"duplicate", "name: a\ndescription: b\ncases: [{name: x, pipeline: Root}, {name: x, pipeline: Root}]\n", "duplicate case name"},
		{
			"error with text",
			"name: a\ndescription: b\ncases: [{name: x, pipeline: Root, expect: {error: E1, text: t}}]\n",
			"error excludes",
		},
		{
			"unknown assertion",
			"name: a\ndescription: b\ncases: [{name: x, pipeline: Root}]\nassertions: [{type: magic}]\n",
			"unknown assertion type",
		},
		{
			"assertion without case",
			"name: a\ndescription: b\ncases: [{name: x, pipeline: Root}]\nassertions: [{type: text_contains, value: v}]\n",
			"case is required for text_contains",
		},
		{
			"assertion without value",
			"name: a\ndescription: b\ncases: [{name: x, pipeline: Root}]\nassertions: [{type: text_contains, case: x}]\n",
			"value is required",
		},
		{
			"assertion unknown case",
			"name: a\ndescription: b\ncases: [{name: x, pipeline: Root}]\nassertions: [{type: bind_count, case: y}]\n",
			`unknown case "y"`,
		},
		{
			"negative count",
			"name: a\ndescription: b\ncases: [{name: x, pipeline: Root}]\nassertions: [{type: bind_count, case: x, count: -1}]\n",
			"count must be non-negative",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestFindScenarios(t *testing.T) {
	found, err := FindScenarios("testdata")
	require.NoError(t, err)

	assert.Equal(t, []string{
		filepath.Join("testdata", "scenarios", "inline.yaml"),
		filepath.Join("testdata", "scenarios", "projects.yaml"),
	}, found)

	single, err := FindScenarios("testdata/scenarios/projects.yaml")
	require.NoError(t, err)
	assert.Len(t, single, 1)

	_, err = FindScenarios("testdata/nope")
	var nf *ScenarioNotFoundError
	assert.ErrorAs(t, err, &nf)
}

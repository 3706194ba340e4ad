package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/aqlc/internal/ir"
)

// Snapshot captures every case outcome of a scenario run.
// All fields use canonical JSON serialization for deterministic comparison.
type Snapshot struct {
	ScenarioName string       `json:"scenario_name"`
	Cases        []CaseResult `json:"cases"`
}

// toCanonicalMap converts a Snapshot to plain maps for canonical JSON
// serialization.
func (s *Snapshot) toCanonicalMap() map[string]any {
	cases := make([]any, len(s.Cases))
	for i, c := range s.Cases {
		m := map[string]any{"name": c.Name}
		if c.Error != "" {
			m["error"] = c.Error
		} else {
			m["text"] = c.Text
			m["bind_vars"] = c.BindVars
			m["output"] = c.Output
			m["hash"] = c.Hash
		}
		cases[i] = m
	}
	return map[string]any{
		"scenario_name": s.ScenarioName,
		"cases":         cases,
	}
}

// MarshalSnapshot renders a result as canonical JSON.
func MarshalSnapshot(name string, result *Result) ([]byte, error) {
	snapshot := Snapshot{ScenarioName: name, Cases: result.Cases}
	return ir.MarshalCanonical(snapshot.toCanonicalMap())
}

// RunWithGolden executes a scenario and compares its case outcomes against
// a golden file stored in testdata/golden/{scenario.Name}.golden
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if scenario execution fails.
// Test failure (via goldie) occurs if the outcomes don't match the golden file.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares an existing result against a golden file without
// re-running the scenario.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	data, err := MarshalSnapshot(scenarioName, result)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, data)

	return nil
}

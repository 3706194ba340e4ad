package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Scenario defines a conformance scenario: a set of compile cases with
// their expected queries, plus assertions over the whole run.
type Scenario struct {
	// Name uniquely identifies this scenario. It also names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Definitions is an optional query definition file or CUE package.
	// Relative paths are resolved against the scenario file location.
	Definitions string `yaml:"definitions,omitempty"`

	// Functions adds callable mappings on top of the definitions' own.
	Functions map[string]string `yaml:"functions,omitempty"`

	// Cases are compiled in order.
	Cases []Case `yaml:"cases"`

	// Assertions validate the run as a whole.
	// Supported types: text_contains, bind_count, deterministic, replay
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// Case is one compilation. Exactly one of Query and Pipeline is set.
type Case struct {
	// Name labels the case in results. Defaults to Query.
	Name string `yaml:"name,omitempty"`

	// Query names a definition from the scenario's definitions file.
	Query string `yaml:"query,omitempty"`

	// Pipeline is inline lambda text.
	Pipeline string `yaml:"pipeline,omitempty"`

	// Collection is the root collection of an inline pipeline. Defaults to
	// the definitions' collection.
	Collection string `yaml:"collection,omitempty"`

	// Params are textual parameter values. For a query they override the
	// declared values; for a pipeline they are read as YAML scalars.
	Params map[string]string `yaml:"params,omitempty"`

	// Expect specifies the expected outcome.
	Expect Expect `yaml:"expect"`
}

// Expect is the expected compile outcome. Unset fields are not checked.
type Expect struct {
	// Text is the exact query text.
	Text string `yaml:"text,omitempty"`

	// BindVars is compared through canonical JSON, so 10 and 10.0 match
	// and dates match their RFC 3339 form.
	BindVars map[string]any `yaml:"bind_vars,omitempty"`

	// Output is NormalList or SingleOrDefault.
	Output string `yaml:"output,omitempty"`

	// Error is the expected error code, e.g. UNHANDLED_CONSTRUCT or E122.
	Error string `yaml:"error,omitempty"`
}

// Assertion validates the results of a run.
type Assertion struct {
	// Type specifies the assertion type:
	// - "text_contains": Check a case's text contains Value
	// - "bind_count": Check a case has exactly Count bind variables
	// - "deterministic": Check recompiling yields the same hash
	// - "replay": Check a logged run replays without drift
	Type string `yaml:"type"`

	// Case names the case (text_contains, bind_count, deterministic).
	// Empty means every successful case for deterministic.
	Case string `yaml:"case,omitempty"`

	// Value is the expected substring (text_contains).
	Value string `yaml:"value,omitempty"`

	// Count is the expected number of bind variables (bind_count).
	Count int `yaml:"count,omitempty"`

	// Times is the number of recompilations (deterministic). Defaults to 3.
	Times int `yaml:"times,omitempty"`
}

// Assertion type constants.
const (
	AssertTextContains  = "text_contains"
	AssertBindCount     = "bind_count"
	AssertDeterministic = "deterministic"
	AssertReplay        = "replay"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
// The definitions path is resolved relative to the scenario file.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	scenario, err := ParseScenario(data)
	if err != nil {
		return nil, err
	}

	if scenario.Definitions != "" && !filepath.IsAbs(scenario.Definitions) {
		scenario.Definitions = filepath.Join(filepath.Dir(path), scenario.Definitions)
	}
	if scenario.Definitions != "" {
		if _, err := os.Stat(scenario.Definitions); os.IsNotExist(err) {
			return nil, fmt.Errorf("invalid scenario: definitions not found: %s", scenario.Definitions)
		}
	}

	return scenario, nil
}

// ParseScenario parses scenario YAML without touching the filesystem.
func ParseScenario(data []byte) (*Scenario, error) {
	// Reject unknown fields (catches typos like "case:" vs "cases:")
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if len(s.Cases) == 0 {
		return fmt.Errorf("cases list is required and must be non-empty")
	}

	seen := make(map[string]bool, len(s.Cases))
	for i := range s.Cases {
		c := &s.Cases[i]
		switch {
		case c.Query == "" && c.Pipeline == "":
			return fmt.Errorf("cases[%d]: query or pipeline is required", i)
		case c.Query != "" && c.Pipeline != "":
			return fmt.Errorf("cases[%d]: query and pipeline are mutually exclusive", i)
		case c.Query != "" && s.Definitions == "":
			return fmt.Errorf("cases[%d]: query %q needs a definitions file", i, c.Query)
		}
		if c.Name == "" {
			c.Name = c.Query
		}
		if c.Name == "" {
			return fmt.Errorf("cases[%d]: name is required for inline pipelines", i)
		}
		if seen[c.Name] {
			return fmt.Errorf("cases[%d]: duplicate case name %q", i, c.Name)
		}
		seen[c.Name] = true
		if c.Expect.Error != "" && (c.Expect.Text != "" || c.Expect.BindVars != nil || c.Expect.Output != "") {
			return fmt.Errorf("cases[%d].expect: error excludes text, bind_vars and output", i)
		}
	}

	for i, a := range s.Assertions {
		if err := validateAssertion(i, a, seen); err != nil {
			return err
		}
	}

	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a Assertion, cases map[string]bool) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	needCase := func() error {
		if a.Case == "" {
			return fmt.Errorf("assertions[%d]: case is required for %s", index, a.Type)
		}
		return nil
	}

	switch a.Type {
	case AssertTextContains:
		if err := needCase(); err != nil {
			return err
		}
		if a.Value == "" {
			return fmt.Errorf("assertions[%d]: value is required for text_contains", index)
		}
	case AssertBindCount:
		if err := needCase(); err != nil {
			return err
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for bind_count", index)
		}
	case AssertDeterministic:
		if a.Times < 0 {
			return fmt.Errorf("assertions[%d]: times must be non-negative for deterministic", index)
		}
	case AssertReplay:
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	if a.Case != "" && !cases[a.Case] {
		return fmt.Errorf("assertions[%d]: unknown case %q", index, a.Case)
	}
	return nil
}

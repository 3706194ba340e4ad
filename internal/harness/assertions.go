package harness

import (
	"context"
	"fmt"
	"strings"

	"github.com/roach88/aqlc/internal/store"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string // Assertion type for categorization
	Case     string
	Expected string // Human-readable expected outcome
	Actual   string // Human-readable actual outcome
	Text     string // Query text of the case, when there is one
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s", e.Type)
	if e.Case != "" {
		fmt.Fprintf(&buf, " (%s)", e.Case)
	}
	buf.WriteString("\n")
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if e.Text != "" {
		fmt.Fprintf(&buf, "\nQuery:\n%s\n", indent(e.Text))
	}

	return buf.String()
}

// AssertionContext carries what stateful assertions need.
type AssertionContext struct {
	Ctx     context.Context
	Harness *Harness
}

// EvaluateAssertions runs every assertion and returns the failure messages.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var msgs []string
	for i, a := range assertions {
		var err error
		switch a.Type {
		case AssertTextContains:
			err = assertTextContains(result, a)
		case AssertBindCount:
			err = assertBindCount(result, a)
		case AssertDeterministic:
			err = assertDeterministic(result, a, actx)
		case AssertReplay:
			err = assertReplay(result, actx)
		default:
			err = fmt.Errorf("unknown assertion type %q", a.Type)
		}
		if err != nil {
			msgs = append(msgs, fmt.Sprintf("assertions[%d]: %v", i, err))
		}
	}
	return msgs
}

// compiledCase returns the named case, or an AssertionError when it is
// missing or failed to compile.
func compiledCase(result *Result, kind, name string) (*CaseResult, error) {
	cr, ok := result.Case(name)
	if !ok {
		return nil, &AssertionError{Type: kind, Case: name, Expected: "case present", Actual: "no such case"}
	}
	if cr.Error != "" {
		return nil, &AssertionError{Type: kind, Case: name, Expected: "compiled query", Actual: cr.Message}
	}
	return cr, nil
}

// assertTextContains checks the case's query text contains the value.
func assertTextContains(result *Result, a Assertion) error {
	cr, err := compiledCase(result, AssertTextContains, a.Case)
	if err != nil {
		return err
	}
	if !strings.Contains(cr.Text, a.Value) {
		return &AssertionError{
			Type:     AssertTextContains,
			Case:     a.Case,
			Expected: fmt.Sprintf("text containing %q", a.Value),
			Actual:   "not found",
			Text:     cr.Text,
		}
	}
	return nil
}

// assertBindCount checks the number of bind variables.
func assertBindCount(result *Result, a Assertion) error {
	cr, err := compiledCase(result, AssertBindCount, a.Case)
	if err != nil {
		return err
	}
	if len(cr.BindVars) != a.Count {
		return &AssertionError{
			Type:     AssertBindCount,
			Case:     a.Case,
			Expected: fmt.Sprintf("%d bind variables", a.Count),
			Actual:   fmt.Sprintf("%d: %v", len(cr.BindVars), cr.BindVars),
			Text:     cr.Text,
		}
	}
	return nil
}

// assertDeterministic recompiles cases and compares hashes with the first
// compilation.
func assertDeterministic(result *Result, a Assertion, actx *AssertionContext) error {
	times := a.Times
	if times == 0 {
		times = 3
	}

	var targets []*CaseResult
	if a.Case != "" {
		cr, err := compiledCase(result, AssertDeterministic, a.Case)
		if err != nil {
			return err
		}
		targets = append(targets, cr)
	} else {
		for i := range result.Cases {
			if result.Cases[i].Error == "" {
				targets = append(targets, &result.Cases[i])
			}
		}
	}

	for _, cr := range targets {
		c, ok := actx.Harness.scenarioCase(cr.Name)
		if !ok {
			continue
		}
		for n := 0; n < times; n++ {
			_, entry, err := actx.Harness.compile(c)
			if err != nil {
				return &AssertionError{Type: AssertDeterministic, Case: cr.Name, Expected: cr.Hash, Actual: err.Error()}
			}
			if entry.QueryHash != cr.Hash {
				return &AssertionError{
					Type:     AssertDeterministic,
					Case:     cr.Name,
					Expected: cr.Hash,
					Actual:   fmt.Sprintf("%s on recompilation %d", entry.QueryHash, n+1),
					Text:     cr.Text,
				}
			}
		}
	}
	return nil
}

// assertReplay logs every compiled case to a fresh in-memory store and
// replays the run from the log.
func assertReplay(result *Result, actx *AssertionContext) error {
	st, err := store.Open(":memory:")
	if err != nil {
		return fmt.Errorf("replay: %w", err)
	}
	defer st.Close()

	ctx := actx.Ctx
	run, err := st.BeginRun(ctx, actx.Harness.scenario.Name)
	if err != nil {
		return err
	}
	for _, cr := range result.Cases {
		if cr.Error != "" {
			continue
		}
		entry := cr.entry
		entry.RunID = run.ID
		if _, err := st.WriteCompilation(ctx, entry); err != nil {
			return err
		}
	}

	replayed, err := st.Replay(ctx, run.ID, nil)
	if err != nil {
		return err
	}
	if !replayed.Clean() {
		d := replayed.Drifts[0]
		actual := d.Replayed
		if d.Err != nil {
			actual = d.Err.Error()
		}
		return &AssertionError{
			Type:     AssertReplay,
			Case:     d.Name,
			Expected: d.Recorded,
			Actual:   fmt.Sprintf("%s (%d of %d drifted)", actual, len(replayed.Drifts), replayed.Checked),
			Text:     d.Text,
		}
	}
	return nil
}

func (h *Harness) scenarioCase(name string) (Case, bool) {
	for _, c := range h.scenario.Cases {
		if c.Name == name {
			return c, true
		}
	}
	return Case{}, false
}

func indent(s string) string {
	return "    " + strings.ReplaceAll(s, "\n", "\n    ")
}

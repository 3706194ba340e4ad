package harness

import "github.com/roach88/aqlc/internal/store"

// CaseResult is the outcome of one case.
type CaseResult struct {
	Name     string         `json:"name"`
	Text     string         `json:"text,omitempty"`
	BindVars map[string]any `json:"bind_vars,omitempty"`
	Output   string         `json:"output,omitempty"`
	Hash     string         `json:"hash,omitempty"`

	// Error is the error code when compilation failed; Message the full
	// error text.
	Error   string `json:"error,omitempty"`
	Message string `json:"message,omitempty"`

	entry store.Compilation
}

// Result is the outcome of a scenario run.
type Result struct {
	// Pass is true if every expectation and assertion held.
	Pass bool `json:"pass"`

	// Cases holds the case outcomes in scenario order.
	Cases []CaseResult `json:"cases"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
// Used as the starting point for test execution.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Cases:  []CaseResult{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// Case returns the named case result.
func (r *Result) Case(name string) (*CaseResult, bool) {
	for i := range r.Cases {
		if r.Cases[i].Name == name {
			return &r.Cases[i], true
		}
	}
	return nil, false
}

// Package harness provides conformance testing for compiled queries.
//
// A scenario names a definitions file, a list of cases to compile, and
// assertions over the results. Each case either refers to a named query
// from the definitions or carries an inline pipeline.
//
// # Scenario Format
//
//	name: projects
//	description: "Project queries compile to the expected AQL"
//	definitions: ../defs/projects.yaml
//	cases:
//	  - query: by-name
//	    params: { name: B }
//	    expect:
//	      text: |-
//	        FOR x IN Project
//	        FILTER x.Name == @name
//	        RETURN x.Name
//	      bind_vars: { name: B }
//	      output: NormalList
//	  - name: broken
//	    pipeline: Root.Where(x => )
//	    expect:
//	      error: SYNTAX_ERROR
//	assertions:
//	  - type: text_contains
//	    case: by-name
//	    value: "FILTER"
//	  - type: deterministic
//	  - type: replay
//
// # Assertion Types
//
//   - text_contains: The case's query text contains a substring
//   - bind_count: The case has exactly N bind variables
//   - deterministic: Recompiling yields the same query hash
//   - replay: Logging the run and replaying it from the log shows no drift
//
// # Golden Files
//
// RunWithGolden compares the canonical JSON of all case outcomes with
// testdata/golden/{name}.golden. Hashes come from ir.QueryHash, so any
// change to text, bind variables or output behavior shows up in the diff.
package harness

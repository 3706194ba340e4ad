package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/aqlc/internal/compiler"
	"github.com/roach88/aqlc/internal/querydef"
	"github.com/roach88/aqlc/internal/queryir"
)

// QueryValidation is the outcome for one definition.
type QueryValidation struct {
	Name     string     `json:"name"`
	Valid    bool       `json:"valid"`
	Warnings []string   `json:"warnings,omitempty"`
	Errors   []CLIError `json:"errors,omitempty"`
}

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid   bool              `json:"valid"`
	Queries []QueryValidation `json:"queries"`
	Errors  []CLIError        `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <definitions>",
		Short: "Check query definitions without writing output",
		Long: `Check query definitions: schema, parameter values, pipeline text,
and constructs the compiler rejects. Advisory findings such as ordering
after a row limit are reported as warnings and do not fail validation.

Exit codes:
  0 - All definitions are valid
  1 - One or more definitions are invalid
  2 - Command error (definitions not found, etc.)`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	defs, errs := LoadDefinitions(path, opts.config())
	if len(errs) > 0 {
		if errs[0].Code == querydef.ErrCodeNotFound {
			return formatter.Fail(ExitCommandError, errs[0].Code, errs[0].Message, errs[0].Details)
		}
		result := ValidationResult{Valid: false, Queries: []QueryValidation{}, Errors: errs}
		return outputValidation(formatter, result)
	}
	formatter.VerboseLog("Loaded %d definition(s) from %s", len(defs.File.Queries), path)

	result := ValidationResult{Valid: true, Queries: make([]QueryValidation, 0, len(defs.File.Queries))}
	for _, name := range defs.File.Names() {
		qv := validateQuery(defs, name, opts)
		if !qv.Valid {
			result.Valid = false
		}
		result.Queries = append(result.Queries, qv)
	}

	return outputValidation(formatter, result)
}

// validateQuery builds one definition, checks the pipeline and, when no
// blocking finding was made, compiles it.
func validateQuery(defs *Definitions, name string, opts *RootOptions) QueryValidation {
	qv := QueryValidation{Name: name, Valid: true}

	built, err := defs.File.Build(name, nil)
	if err != nil {
		qv.Valid = false
		qv.Errors = append(qv.Errors, toCLIError(name, err))
		return qv
	}

	check := queryir.Validate(built.Expr)
	qv.Warnings = check.Warnings
	if !check.Compilable {
		qv.Valid = false
		return qv
	}

	_, err = compiler.Compile(built.Expr, built.Collection,
		compiler.WithFunctions(defs.Registry),
		compiler.WithLogger(opts.logger()),
	)
	if err != nil {
		qv.Valid = false
		qv.Errors = append(qv.Errors, toCLIError(name, err))
	}
	return qv
}

func outputValidation(formatter *OutputFormatter, result ValidationResult) error {
	if formatter.Format == "json" {
		resp := CLIResponse{Status: "ok", Data: result}
		if !result.Valid {
			resp.Status = "error"
			resp.Error = &CLIError{Code: querydef.ErrCodeInvalidField, Message: "definitions are invalid"}
			if len(result.Errors) > 0 {
				resp.Error = &result.Errors[0]
			}
		}
		if err := formatter.JSON(resp); err != nil {
			return err
		}
	} else {
		outputValidationText(formatter, result)
	}

	if !result.Valid {
		return NewExitError(ExitFailure, "validation failed")
	}
	return nil
}

func outputValidationText(formatter *OutputFormatter, result ValidationResult) {
	w := formatter.Writer

	for _, e := range result.Errors {
		fmt.Fprintf(w, "✗ %s\n", e)
	}
	for _, q := range result.Queries {
		mark := "✓"
		if !q.Valid {
			mark = "✗"
		}
		fmt.Fprintf(w, "%s %s\n", mark, q.Name)
		for _, e := range q.Errors {
			fmt.Fprintf(w, "  error: %s: %s\n", e.Code, e.Message)
		}
		for _, warning := range q.Warnings {
			fmt.Fprintf(w, "  warning: %s\n", warning)
		}
	}

	if result.Valid {
		fmt.Fprintf(w, "\n✓ %d definition(s) valid\n", len(result.Queries))
	} else {
		fmt.Fprintln(w, "\n✗ Validation failed")
	}
}

package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/aqlc/internal/aql"
	"github.com/roach88/aqlc/internal/lambda"
	"github.com/roach88/aqlc/internal/querydef"
)

// Definitions is a loaded definition file with its effective function
// registry.
type Definitions struct {
	File *querydef.File

	// Functions is the merged mapping: config entries overridden by the
	// file's own.
	Functions map[string]string
	Registry  *aql.FunctionRegistry
}

// LoadDefinitions loads a definition file and merges its functions over
// the config's. Every load problem is returned as a CLIError.
func LoadDefinitions(path string, cfg *Config) (*Definitions, []CLIError) {
	f, errs := querydef.Load(path)
	if len(errs) > 0 {
		return nil, toCLIErrors("", errs)
	}

	functions := cfg.MergeFunctions(f.Functions)
	registry, err := cfg.Registry(f.Functions)
	if err != nil {
		return nil, []CLIError{{Code: querydef.ErrCodeInvalidFunction, Message: err.Error()}}
	}
	return &Definitions{File: f, Functions: functions, Registry: registry}, nil
}

// toCLIErrors maps definition and compile errors to CLI errors, keeping
// CUE positions in the details.
func toCLIErrors(query string, errs []error) []CLIError {
	out := make([]CLIError, 0, len(errs))
	for _, err := range errs {
		out = append(out, toCLIError(query, err))
	}
	return out
}

func toCLIError(query string, err error) CLIError {
	var (
		le *querydef.LoadError
		ce *aql.CompileError
		se *lambda.SyntaxError
	)
	switch {
	case errors.As(err, &le):
		e := CLIError{Code: le.Code, Message: le.Message, Query: query}
		if le.Pos.IsValid() {
			e.Details = map[string]any{
				"file":   le.Pos.Filename(),
				"line":   le.Pos.Line(),
				"column": le.Pos.Column(),
			}
		}
		return e
	case errors.As(err, &ce):
		e := CLIError{Code: string(ce.Code), Message: ce.Message, Query: query}
		if ce.Node != "" {
			e.Details = map[string]any{"node": ce.Node}
		}
		return e
	case errors.As(err, &se):
		return CLIError{Code: querydef.ErrCodeInvalidPipeline, Message: se.Error(), Query: query}
	default:
		return CLIError{Code: ErrCodeGeneric, Message: err.Error(), Query: query}
	}
}

// parseParams splits key=value flags.
func parseParams(raw []string) (map[string]string, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	out := make(map[string]string, len(raw))
	for _, kv := range raw {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid param %q: want name=value", kv)
		}
		out[k] = v
	}
	return out, nil
}

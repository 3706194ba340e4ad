package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"time"

	"github.com/roach88/aqlc/internal/aql"
	"github.com/roach88/aqlc/internal/compiler"
	"github.com/roach88/aqlc/internal/ir"
	"github.com/roach88/aqlc/internal/lambda"
	"github.com/roach88/aqlc/internal/querydef"
	"github.com/roach88/aqlc/internal/queryir"
	"github.com/roach88/aqlc/internal/store"
)

// Harness compiles the cases of one scenario.
type Harness struct {
	scenario  *Scenario
	file      *querydef.File
	functions *aql.FunctionRegistry
	mappings  map[string]string
	fields    map[string]queryir.Type
	logger    *slog.Logger
}

// New prepares a harness for a scenario, loading its definitions file.
// A nil logger discards output.
func New(scenario *Scenario, logger *slog.Logger) (*Harness, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	h := &Harness{
		scenario:  scenario,
		functions: aql.DefaultFunctions,
		mappings:  map[string]string{},
		fields:    map[string]queryir.Type{},
		logger:    logger,
	}

	if scenario.Definitions != "" {
		file, errs := querydef.Load(scenario.Definitions)
		if len(errs) > 0 {
			return nil, fmt.Errorf("load definitions: %w", errors.Join(errs...))
		}
		h.file = file
		maps.Copy(h.mappings, file.Functions)
		fields, err := file.FieldTypes()
		if err != nil {
			return nil, err
		}
		h.fields = fields
	}
	maps.Copy(h.mappings, scenario.Functions)

	if len(h.mappings) > 0 {
		r, err := aql.DefaultFunctions.Extend(h.mappings)
		if err != nil {
			return nil, fmt.Errorf("functions: %w", err)
		}
		h.functions = r
	}
	return h, nil
}

// Run executes a scenario and returns the result.
//
// Execution flow:
// 1. Load the definitions file, if any
// 2. Compile every case and check its expectations
// 3. Evaluate assertions against the compiled cases
//
// Compile failures are case outcomes, not errors; Run only fails when the
// scenario itself cannot be set up.
func Run(scenario *Scenario) (*Result, error) {
	h, err := New(scenario, nil)
	if err != nil {
		return nil, err
	}
	return h.Run(context.Background())
}

// Run compiles every case and evaluates the scenario's assertions.
func (h *Harness) Run(ctx context.Context) (*Result, error) {
	result := NewResult()

	for _, c := range h.scenario.Cases {
		cr := h.runCase(c)
		for _, msg := range checkExpect(c, cr) {
			result.AddError(fmt.Sprintf("%s: %s", c.Name, msg))
		}
		result.Cases = append(result.Cases, cr)

		h.logger.Debug("case compiled",
			"scenario", h.scenario.Name,
			"case", c.Name,
			"hash", cr.Hash,
			"error", cr.Error,
		)
	}

	actx := &AssertionContext{Ctx: ctx, Harness: h}
	for _, msg := range EvaluateAssertions(result, h.scenario.Assertions, actx) {
		result.AddError(msg)
	}

	return result, nil
}

func (h *Harness) runCase(c Case) CaseResult {
	cr := CaseResult{Name: c.Name}
	q, entry, err := h.compile(c)
	if err != nil {
		cr.Error = ErrorCode(err)
		cr.Message = err.Error()
		return cr
	}
	cr.Text = q.Text
	cr.BindVars = q.BindVars
	cr.Output = q.Output.String()
	cr.Hash = entry.QueryHash
	cr.entry = entry
	return cr
}

// compile builds and compiles one case, returning the query and the log
// entry describing it.
func (h *Harness) compile(c Case) (*aql.Query, store.Compilation, error) {
	var (
		expr       queryir.Expr
		collection string
		source     string
		params     map[string]any
		paramTypes = map[string]string{}
	)

	if c.Query != "" {
		built, err := h.file.Build(c.Query, c.Params)
		if err != nil {
			return nil, store.Compilation{}, err
		}
		def, _ := h.file.Query(c.Query)
		for _, p := range def.Params {
			paramTypes[p.Name] = p.Type
		}
		expr, collection, source, params = built.Expr, built.Collection, built.Source, built.Params
	} else {
		params = make(map[string]any, len(c.Params))
		for name, raw := range c.Params {
			v, err := querydef.ParseValue(raw, queryir.TypeAny)
			if err != nil {
				return nil, store.Compilation{}, fmt.Errorf("param %s: %w", name, err)
			}
			params[name] = v
		}
		parsed, err := lambda.Parse(c.Pipeline, lambda.Env{Params: params, Fields: h.fields, Location: time.UTC})
		if err != nil {
			return nil, store.Compilation{}, err
		}
		expr, source = parsed, c.Pipeline
		collection = c.Collection
		if collection == "" && h.file != nil {
			collection = h.file.Collection
		}
	}

	q, err := compiler.Compile(expr, collection,
		compiler.WithFunctions(h.functions),
		compiler.WithLogger(h.logger),
	)
	if err != nil {
		return nil, store.Compilation{}, err
	}

	entry, err := store.NewCompilation(c.Name, collection, source, params, q)
	if err != nil {
		return nil, store.Compilation{}, err
	}
	entry.ParamTypes = paramTypes
	entry.Fields = h.fieldNames()
	entry.Functions = h.mappings
	return q, entry, nil
}

func (h *Harness) fieldNames() map[string]string {
	out := make(map[string]string, len(h.fields))
	for name, t := range h.fields {
		out[name] = t.String()
	}
	return out
}

// ErrorCode classifies an error for scenario expectations: compile error
// codes, definition E-codes, or SYNTAX_ERROR for lambda text.
func ErrorCode(err error) string {
	var ce *aql.CompileError
	if errors.As(err, &ce) {
		return string(ce.Code)
	}
	var le *querydef.LoadError
	if errors.As(err, &le) {
		return le.Code
	}
	var se *lambda.SyntaxError
	if errors.As(err, &se) {
		return "SYNTAX_ERROR"
	}
	return "ERROR"
}

// checkExpect compares a case outcome with its expectations.
func checkExpect(c Case, cr CaseResult) []string {
	var msgs []string
	want := c.Expect

	if want.Error != "" {
		if cr.Error != want.Error {
			msgs = append(msgs, fmt.Sprintf("expected error %s, got %s", want.Error, describeOutcome(cr)))
		}
		return msgs
	}
	if cr.Error != "" {
		return append(msgs, fmt.Sprintf("unexpected error: %s", cr.Message))
	}

	if want.Text != "" && want.Text != cr.Text {
		msgs = append(msgs, fmt.Sprintf("text mismatch\n  Expected:\n%s\n  Actual:\n%s", indent(want.Text), indent(cr.Text)))
	}
	if want.BindVars != nil {
		if ok, err := sameCanonical(want.BindVars, cr.BindVars); err != nil {
			msgs = append(msgs, fmt.Sprintf("bind vars: %v", err))
		} else if !ok {
			msgs = append(msgs, fmt.Sprintf("bind vars mismatch: expected %v, got %v", want.BindVars, cr.BindVars))
		}
	}
	if want.Output != "" && want.Output != cr.Output {
		msgs = append(msgs, fmt.Sprintf("output mismatch: expected %s, got %s", want.Output, cr.Output))
	}
	return msgs
}

func describeOutcome(cr CaseResult) string {
	if cr.Error == "" {
		return "success"
	}
	return cr.Error
}

func sameCanonical(a, b map[string]any) (bool, error) {
	ca, err := ir.MarshalCanonical(a)
	if err != nil {
		return false, err
	}
	cb, err := ir.MarshalCanonical(b)
	if err != nil {
		return false, err
	}
	return string(ca) == string(cb), nil
}

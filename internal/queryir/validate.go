package queryir

import "fmt"

// ValidationResult contains the result of checking a pipeline before it is
// handed to the compiler.
type ValidationResult struct {
	// Compilable is false when the pipeline contains a construct the
	// compiler is known to reject.
	Compilable bool

	// Warnings lists every finding, blocking or not.
	Warnings []string
}

// Validate checks a pipeline for constructs that cannot compile and for
// shapes that compile to surprising AQL.
//
// Blocking findings:
//   - Unknown stage kinds
//   - Missing lambdas on stages that require one
//   - Negative Take or Skip counts
//   - Operators without an AQL translation (Xor, Coalesce, Power)
//   - Parameters not bound by any enclosing lambda
//
// Advisory findings:
//   - Ordering applied after a row limit
//   - Equality comparisons against a null literal
//   - Lambda parameters that shadow an enclosing parameter
//   - ThenBy with no preceding ordering
func Validate(e Expr) ValidationResult {
	v := &validator{}
	v.validate(e, nil)
	for _, name := range FreeParams(e) {
		v.reject("parameter %s is not bound by any lambda", name)
	}
	return ValidationResult{
		Compilable: !v.blocked,
		Warnings:   v.warnings,
	}
}

var knownStages = map[StageKind]bool{
	StageWhere:           true,
	StageSelect:          true,
	StageOrderBy:         true,
	StageThenBy:          true,
	StageTake:            true,
	StageSkip:            true,
	StageDistinct:        true,
	StageGroupBy:         true,
	StageSingleOrDefault: true,
}

var untranslatedOps = map[Op]bool{
	OpXor:      true,
	OpCoalesce: true,
	OpPower:    true,
}

type validator struct {
	warnings []string
	blocked  bool
}

func (v *validator) addWarning(format string, args ...any) {
	v.warnings = append(v.warnings, fmt.Sprintf(format, args...))
}

func (v *validator) reject(format string, args ...any) {
	v.blocked = true
	v.addWarning(format, args...)
}

// validate walks e. params holds the lambda parameters in scope.
func (v *validator) validate(e Expr, params []string) {
	switch n := e.(type) {
	case nil:
	case *Query:
		if n != nil {
			v.validate(n.Node, params)
		}
	case *Stage:
		v.validateStage(n, params)
	case *Lambda:
		if n.Param == nil {
			v.reject("lambda without a parameter: %s", Format(n))
			v.validate(n.Body, params)
			return
		}
		for _, p := range params {
			if p == n.Param.Name {
				v.addWarning("parameter %s shadows an enclosing parameter", p)
				break
			}
		}
		v.validate(n.Body, append(params[:len(params):len(params)], n.Param.Name))
	case *Member:
		v.validate(n.Of, params)
	case *Binary:
		if untranslatedOps[n.Op] {
			v.reject("operator %s has no AQL translation: %s", n.Op, Format(n))
		}
		if (n.Op == OpEqual || n.Op == OpNotEqual) && (isNull(n.Left) || isNull(n.Right)) {
			v.addWarning("comparison with null also matches missing attributes: %s", Format(n))
		}
		v.validate(n.Left, params)
		v.validate(n.Right, params)
	case *Unary:
		if untranslatedOps[n.Op] {
			v.reject("operator %s has no AQL translation: %s", n.Op, Format(n))
		}
		v.validate(n.Operand, params)
	case *Call:
		v.validate(n.Receiver, params)
		for _, a := range n.Args {
			v.validate(a, params)
		}
	case *New:
		for _, f := range n.Fields {
			v.validate(f.Value, params)
		}
	}
}

func (v *validator) validateStage(s *Stage, params []string) {
	if !knownStages[s.Kind] {
		v.reject("unknown stage kind %q", s.Kind)
	}

	switch s.Kind {
	case StageWhere, StageSelect, StageOrderBy, StageThenBy, StageGroupBy:
		if s.Fn == nil {
			v.reject("%s requires a lambda", s.Kind)
		}
	case StageTake, StageSkip:
		if s.N < 0 {
			v.reject("%s count must not be negative, got %d", s.Kind, s.N)
		}
	}

	if s.Kind == StageOrderBy {
		if src, ok := Unwrap(s.Source).(*Stage); ok && (src.Kind == StageTake || src.Kind == StageSkip) {
			v.addWarning("%s after %s orders only the limited rows", stageName(s), src.Kind)
		}
	}
	if s.Kind == StageThenBy && !orderedSource(s.Source) {
		v.addWarning("ThenBy without a preceding OrderBy sorts as OrderBy")
	}

	v.validate(s.Source, params)
	if s.Fn != nil {
		v.validate(s.Fn, params)
	}
}

func orderedSource(e Expr) bool {
	src, ok := Unwrap(e).(*Stage)
	return ok && (src.Kind == StageOrderBy || src.Kind == StageThenBy)
}

func isNull(e Expr) bool {
	c, ok := Unwrap(e).(*Const)
	return ok && c.Value == nil
}

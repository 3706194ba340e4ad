package querydef

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roach88/aqlc/internal/aql"
	"github.com/roach88/aqlc/internal/lambda"
	"github.com/roach88/aqlc/internal/queryir"
)

// Query is a definition resolved into a compilable pipeline.
type Query struct {
	Name       string
	Collection string
	Source     string
	Expr       queryir.Expr
	Params     map[string]any
}

// Functions returns the default registry extended with the file's
// function mappings.
func (f *File) Functions() (*aql.FunctionRegistry, error) {
	if len(f.Functions) == 0 {
		return aql.DefaultFunctions, nil
	}
	r, err := aql.DefaultFunctions.Extend(f.Functions)
	if err != nil {
		return nil, newError(ErrCodeInvalidFunction, "%v", err)
	}
	return r, nil
}

// FieldTypes returns the declared member types.
func (f *File) FieldTypes() (map[string]queryir.Type, error) {
	types := make(map[string]queryir.Type, len(f.Fields))
	for name, raw := range f.Fields {
		t, ok := queryir.ParseType(raw)
		if !ok {
			return nil, newError(ErrCodeInvalidType, "field %s: unknown type %q", name, raw)
		}
		types[name] = t
	}
	return types, nil
}

// Build resolves the named query. overrides replaces declared parameter
// values; each override is parsed according to the parameter's type, so
// command-line strings such as "42" or "2024-01-02" are accepted.
func (f *File) Build(name string, overrides map[string]string) (*Query, error) {
	def, ok := f.Query(name)
	if !ok {
		return nil, newError(ErrCodeUnknownQuery, "no query named %q", name)
	}

	fields, err := f.FieldTypes()
	if err != nil {
		return nil, err
	}

	params := make(map[string]any, len(def.Params))
	declared := make(map[string]bool, len(def.Params))
	for _, p := range def.Params {
		declared[p.Name] = true
		t, ok := queryir.ParseType(p.Type)
		if p.Type != "" && !ok {
			return nil, newError(ErrCodeInvalidType, "%s: param %s: unknown type %q", name, p.Name, p.Type)
		}

		v := p.Value
		if raw, ok := overrides[p.Name]; ok {
			v, err = ParseValue(raw, t)
			if err != nil {
				return nil, newError(ErrCodeInvalidParam, "%s: param %s: %v", name, p.Name, err)
			}
		}
		if v == nil {
			return nil, newError(ErrCodeInvalidParam, "%s: param %s has no value", name, p.Name)
		}
		v, err = lambda.Coerce(v, t, time.UTC)
		if err != nil {
			return nil, newError(ErrCodeInvalidParam, "%s: param %s: %v", name, p.Name, err)
		}
		params[p.Name] = v
	}

	var unknown []string
	for k := range overrides {
		if !declared[k] {
			unknown = append(unknown, k)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return nil, newError(ErrCodeInvalidParam, "%s: undeclared params %v", name, unknown)
	}

	expr, err := lambda.Parse(def.Pipeline, lambda.Env{Params: params, Fields: fields})
	if err != nil {
		var se *lambda.SyntaxError
		if errors.As(err, &se) {
			return nil, newError(ErrCodeInvalidPipeline, "%s: %v", name, err)
		}
		return nil, err
	}

	collection := def.Collection
	if collection == "" {
		collection = f.Collection
	}
	return &Query{
		Name:       name,
		Collection: collection,
		Source:     def.Pipeline,
		Expr:       expr,
		Params:     params,
	}, nil
}

// BuildAll resolves every query with its declared values.
func (f *File) BuildAll() ([]*Query, []error) {
	var (
		out  []*Query
		errs []error
	)
	for _, name := range f.Names() {
		q, err := f.Build(name, nil)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		out = append(out, q)
	}
	return out, errs
}

// ParseValue parses a textual parameter value as YAML scalar or flow
// syntax, then applies the type. Strings are taken verbatim.
func ParseValue(raw string, t queryir.Type) (any, error) {
	if t == queryir.TypeString {
		return raw, nil
	}
	var v any
	if err := yaml.Unmarshal([]byte(raw), &v); err != nil {
		return nil, fmt.Errorf("parsing %q: %w", raw, err)
	}
	return lambda.Coerce(v, t, time.UTC)
}

// Package compiler translates query-expression trees into AQL.
//
// Compile walks a pipeline from its last stage back to its source. Each
// stage becomes a pending stack element; a collection node consumes them
// in declaration order once the source is reached. Stages that cannot
// share a loop with stages declared after them open a new nested loop.
// Sequences used as values are hoisted into LET bindings when they do
// not depend on the enclosing row.
//
// Every compilation owns its variable allocator and bind-variable pool,
// so concurrent compilations share nothing and the same input always
// produces the same text and bind variables.
package compiler

import (
	"log/slog"

	"github.com/roach88/aqlc/internal/aql"
	"github.com/roach88/aqlc/internal/queryir"
)

// Option configures a compilation.
type Option func(*options)

type options struct {
	functions *aql.FunctionRegistry
	logger    *slog.Logger
}

// WithFunctions replaces the registry of callable AQL functions.
func WithFunctions(r *aql.FunctionRegistry) Option {
	return func(o *options) {
		if r != nil {
			o.functions = r
		}
	}
}

// WithLogger sets the logger for compile diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// Compile translates root into a query over rootCollection.
//
// root is either a pipeline, whose rows become the result, or a scalar
// sequence terminal such as Count, whose single value becomes the result.
// An unnamed root handle refers to rootCollection.
//
// Errors wrap aql.ErrUnhandledConstruct for shapes with no translation
// and aql.ErrUnconvertibleTerm for values that cannot be rendered.
func Compile(root queryir.Expr, rootCollection string, opts ...Option) (*aql.Query, error) {
	o := options{functions: aql.DefaultFunctions, logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}

	c := newQueryContext(rootCollection, o.functions, o.logger)
	prog := &aql.Program{}

	switch n := queryir.Unwrap(root).(type) {
	case nil:
		return nil, aql.Unconvertible("<nil>", "empty query")
	case *queryir.Call:
		t, err := c.term(n)
		if err != nil {
			return nil, err
		}
		prog.Scalar = t
		prog.Output = aql.SingleOrDefault
	default:
		node, err := c.collection(n, nil, false, "x")
		if err != nil {
			return nil, err
		}
		prog.Root = node
		prog.Output = node.Output
	}
	prog.Lets = c.lets

	q, err := aql.Generate(prog, c.vars)
	if err != nil {
		return nil, err
	}
	o.logger.Debug("query compiled",
		"collection", rootCollection,
		"lets", len(prog.Lets),
		"variables", c.vars.Count(),
		"bind_vars", len(q.BindVars),
		"output", q.Output.String(),
	)
	return q, nil
}

package compiler

import (
	"log/slog"

	"github.com/roach88/aqlc/internal/aql"
	"github.com/roach88/aqlc/internal/queryir"
)

// queryContext is the mutable state of one compilation.
//
// It is created by Compile, threaded through the recursive descent by
// pointer and discarded afterwards. Nothing in it is shared between
// compilations.
type queryContext struct {
	// root names the collection an unnamed root handle refers to.
	root string

	// vars allocates every loop, key, group and hoisted variable.
	vars *aql.Variables

	// stack holds pending stages in discovery order. The walk is
	// outside-in, so the most recently pushed element was declared first.
	stack []aql.StackElement

	// scopes maps the structural identity of a hoisted sequence to its
	// LET variable.
	scopes map[string]*aql.Variable

	// lets are hoisted bindings in dependency order.
	lets []*aql.Let

	functions *aql.FunctionRegistry
	logger    *slog.Logger
}

func newQueryContext(root string, functions *aql.FunctionRegistry, logger *slog.Logger) *queryContext {
	return &queryContext{
		root:      root,
		vars:      aql.NewVariables(),
		scopes:    map[string]*aql.Variable{},
		functions: functions,
		logger:    logger,
	}
}

func (c *queryContext) push(e aql.StackElement) {
	c.stack = append(c.stack, e)
}

// declared drains the build stack and returns its elements in
// declaration order.
func (c *queryContext) declared() []aql.StackElement {
	out := make([]aql.StackElement, len(c.stack))
	for i, e := range c.stack {
		out[len(c.stack)-1-i] = e
	}
	c.stack = nil
	return out
}

// pendingRowConsumers reports whether a stage declared later at this
// level reads row data, so that a projection here must not be merged
// into the same loop.
func (c *queryContext) pendingRowConsumers() bool {
	for _, e := range c.stack {
		switch e.(type) {
		case *aql.Filter, *aql.Select, *aql.Sort, *aql.GroupingNode:
			return true
		}
	}
	return false
}

// pendingRowShaping reports whether anything other than an output
// behavior is pending.
func (c *queryContext) pendingRowShaping() bool {
	for _, e := range c.stack {
		if _, ok := e.(*aql.Output); !ok {
			return true
		}
	}
	return false
}

// pendingGrouping reports whether a grouping is pending at this level.
func (c *queryContext) pendingGrouping() bool {
	for _, e := range c.stack {
		if _, ok := e.(*aql.GroupingNode); ok {
			return true
		}
	}
	return false
}

// handleOf follows a stage chain to its terminal handle.
func handleOf(e queryir.Expr) (string, bool) {
	for {
		switch n := queryir.Unwrap(e).(type) {
		case *queryir.Stage:
			e = n.Source
		case *queryir.Collection:
			return n.Name, true
		case *queryir.Scope:
			return n.Name, true
		default:
			return "", false
		}
	}
}

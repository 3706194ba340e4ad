package compiler

import (
	"regexp"

	"github.com/gobuffalo/flect"

	"github.com/roach88/aqlc/internal/aql"
	"github.com/roach88/aqlc/internal/queryir"
)

// collectionName accepts ArangoDB collection names.
var collectionName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_\-]{0,255}$`)

// collection compiles a pipeline into one FOR loop with its own build
// stack. seed holds elements discovered by an enclosing level that belong
// to this loop, outermost first.
func (c *queryContext) collection(e queryir.Expr, seed []aql.StackElement, bracketed bool, hint string) (*aql.CollectionNode, error) {
	saved := c.stack
	c.stack = append([]aql.StackElement(nil), seed...)
	defer func() { c.stack = saved }()

	src, err := c.source(e)
	if err != nil {
		return nil, err
	}
	elems := c.declared()

	if ref, ok := src.(*aql.CollectionRef); ok && len(elems) == 0 {
		ref.Node.Bracketed = bracketed
		return ref.Node, nil
	}

	node := &aql.CollectionNode{
		Source:    src,
		RowVar:    c.vars.New(rowHint(elems, hint)),
		Bracketed: bracketed,
	}
	if err := node.Consume(elems); err != nil {
		return nil, err
	}
	return node, nil
}

// rowHint names a loop variable after the row parameter of the first
// stage applied to its rows.
func rowHint(elems []aql.StackElement, fallback string) string {
	for _, e := range elems {
		var param string
		switch e := e.(type) {
		case *aql.Filter:
			param = e.RowParam
		case *aql.Select:
			param = e.RowParam
		case *aql.Sort:
			if len(e.Keys) > 0 {
				param = e.Keys[0].RowParam
			}
		case *aql.GroupingNode:
			param = e.KeyParam
		}
		if param != "" {
			return param
		}
	}
	return fallback
}

// source walks a pipeline from its last stage toward its handle, pushing
// stack elements, and returns the compiled source of the innermost loop.
func (c *queryContext) source(e queryir.Expr) (aql.Term, error) {
	switch n := queryir.Unwrap(e).(type) {
	case *queryir.Collection:
		return c.handle(n.Name)
	case *queryir.Scope:
		return c.hoist(n)
	case *queryir.Stage:
		return c.stage(n)
	case nil:
		return nil, aql.Unconvertible("<nil>", "pipeline has no source")
	default:
		// Sequence-valued expressions such as a list member of an
		// enclosing row or a grouped row sequence.
		return c.term(n)
	}
}

func (c *queryContext) handle(name string) (aql.Term, error) {
	if name == "" {
		name = c.root
	}
	if !collectionName.MatchString(name) {
		return nil, aql.Unconvertible(name, "invalid collection name")
	}
	return aql.Raw(aql.QuoteCollection(name)), nil
}

func (c *queryContext) stage(s *queryir.Stage) (aql.Term, error) {
	switch s.Kind {
	case queryir.StageWhere:
		fn, err := requireLambda(s)
		if err != nil {
			return nil, err
		}
		body, err := c.term(fn.Body)
		if err != nil {
			return nil, err
		}
		c.push(&aql.Filter{Body: body, RowParam: fn.Param.Name})

	case queryir.StageSingleOrDefault:
		c.push(&aql.Output{Behavior: aql.SingleOrDefault})
		if s.Fn != nil {
			fn, err := requireLambda(s)
			if err != nil {
				return nil, err
			}
			body, err := c.term(fn.Body)
			if err != nil {
				return nil, err
			}
			c.push(&aql.Filter{Body: body, RowParam: fn.Param.Name})
		}

	case queryir.StageOrderBy, queryir.StageThenBy:
		fn, err := requireLambda(s)
		if err != nil {
			return nil, err
		}
		keys, err := c.sortKeys(fn, s.Descending)
		if err != nil {
			return nil, err
		}
		c.push(&aql.Sort{Keys: keys, Then: s.Kind == queryir.StageThenBy})

	case queryir.StageTake:
		if s.N < 0 {
			return nil, aql.Unhandled(queryir.Format(s), "negative take")
		}
		c.push(&aql.Limit{Offset: 0, Count: s.N})

	case queryir.StageSkip:
		if s.N < 0 {
			return nil, aql.Unhandled(queryir.Format(s), "negative skip")
		}
		c.push(&aql.Limit{Offset: s.N, Count: -1})

	case queryir.StageDistinct:
		if c.pendingRowShaping() {
			return c.boundary(s.Source, []aql.StackElement{&aql.Distinct{}})
		}
		c.push(&aql.Distinct{})

	case queryir.StageSelect:
		fn, err := requireLambda(s)
		if err != nil {
			return nil, err
		}
		body, err := c.term(fn.Body)
		if err != nil {
			return nil, err
		}
		if p, ok := body.(*aql.ParameterRef); ok && p.Name == fn.Param.Name {
			return c.source(s.Source)
		}
		sel := &aql.Select{Body: body, RowParam: fn.Param.Name}
		if c.pendingRowConsumers() {
			return c.boundary(s.Source, []aql.StackElement{sel})
		}
		c.push(sel)

	case queryir.StageGroupBy:
		if c.pendingGrouping() {
			return c.boundary(s, nil)
		}
		return c.groupBy(s)

	default:
		return nil, aql.Unhandled(queryir.Format(s), "no translation for stage %s", s.Kind)
	}
	return c.source(s.Source)
}

// boundary closes the current loop: e compiles into its own bracketed
// collection, which becomes the source of the loop being built.
func (c *queryContext) boundary(e queryir.Expr, seed []aql.StackElement) (aql.Term, error) {
	c.logger.Debug("pipeline boundary", "at", queryir.Format(e))
	node, err := c.collection(e, seed, true, "x")
	if err != nil {
		return nil, err
	}
	return &aql.CollectionRef{Node: node}, nil
}

func (c *queryContext) groupBy(s *queryir.Stage) (aql.Term, error) {
	fn, err := requireLambda(s)
	if err != nil {
		return nil, err
	}
	g := &aql.GroupingNode{KeyParam: fn.Param.Name}

	switch body := queryir.Unwrap(fn.Body).(type) {
	case *queryir.New:
		if len(body.Fields) == 0 {
			return nil, aql.Unhandled(queryir.Format(s), "empty grouping key")
		}
		for _, f := range body.Fields {
			v, err := c.term(f.Value)
			if err != nil {
				return nil, err
			}
			g.Keys = append(g.Keys, aql.GroupKey{Name: f.Name, Value: v, Var: c.vars.New(f.Name)})
		}
	default:
		v, err := c.term(body)
		if err != nil {
			return nil, err
		}
		name := "key"
		if m, ok := body.(*queryir.Member); ok {
			name = m.Name
		}
		g.Keys = []aql.GroupKey{{Name: name, Value: v, Var: c.vars.New(name)}}
		g.Scalar = true
	}

	if err := g.Consume(c.declared()); err != nil {
		return nil, err
	}
	hint := "g"
	if g.Select != nil && g.Select.RowParam != "" {
		hint = g.Select.RowParam
	}
	g.GroupVar = c.vars.New(hint)
	c.push(g)
	return c.source(s.Source)
}

// sortKeys compiles a key selector. An object literal selector sorts by
// each of its members in order.
func (c *queryContext) sortKeys(fn *queryir.Lambda, desc bool) ([]aql.SortKey, error) {
	var exprs []queryir.Expr
	if n, ok := queryir.Unwrap(fn.Body).(*queryir.New); ok {
		for _, f := range n.Fields {
			exprs = append(exprs, f.Value)
		}
	} else {
		exprs = []queryir.Expr{fn.Body}
	}
	keys := make([]aql.SortKey, 0, len(exprs))
	for _, e := range exprs {
		t, err := c.term(e)
		if err != nil {
			return nil, err
		}
		keys = append(keys, aql.SortKey{Term: t, RowParam: fn.Param.Name, Descending: desc})
	}
	return keys, nil
}

func requireLambda(s *queryir.Stage) (*queryir.Lambda, error) {
	if s.Fn == nil || s.Fn.Param == nil {
		return nil, aql.Unhandled(queryir.Format(s), "%s requires a lambda", s.Kind)
	}
	return s.Fn, nil
}

// hoistName derives a LET variable name from a handle name: a camel-cased
// plural, so Client becomes clients.
func hoistName(handle string) string {
	if handle == "" {
		return "rows"
	}
	return flect.Camelize(flect.Pluralize(handle))
}

package aql

import (
	"fmt"
	"strconv"
	"strings"
)

// Params maps a lambda's declared row parameter name to the loop variable
// that represents that row at the current nesting level.
type Params map[string]string

// With returns a copy of p with name bound to value. Inner bindings
// shadow outer ones.
func (p Params) With(name, value string) Params {
	out := make(Params, len(p)+1)
	for k, v := range p {
		out[k] = v
	}
	if name != "" {
		out[name] = value
	}
	return out
}

// renderer serializes one program. It owns the program's bind-variable
// pool and shares the compilation's variable allocator with the grouping
// pass.
type renderer struct {
	binds *BindVars
	vars  *Variables
}

// Generate renders a compiled program to query text and bind variables.
//
// Hoisted bindings render first, in order, followed by the root
// collection or the scalar RETURN. Lines are joined with "\n".
func Generate(p *Program, vars *Variables) (*Query, error) {
	r := &renderer{binds: NewBindVars(), vars: vars}

	var lines []string
	for _, let := range p.Lets {
		let.Node.Bracketed = true
		body, err := r.collection(let.Node, Params{})
		if err != nil {
			return nil, fmt.Errorf("render LET %s: %w", let.Var.Name, err)
		}
		lines = append(lines, "LET "+let.Var.Name+" = "+body)
	}

	switch {
	case p.Root != nil:
		body, err := r.collection(p.Root, Params{})
		if err != nil {
			return nil, err
		}
		lines = append(lines, body)
	case p.Scalar != nil:
		body, err := r.term(p.Scalar, Params{})
		if err != nil {
			return nil, err
		}
		lines = append(lines, "RETURN "+body)
	default:
		return nil, Unconvertible("", "program has no body")
	}

	return &Query{
		Text:     strings.Join(lines, "\n"),
		BindVars: r.binds.Map(),
		Output:   p.Output,
	}, nil
}

func (r *renderer) collection(n *CollectionNode, params Params) (string, error) {
	src, err := r.term(n.Source, params)
	if err != nil {
		return "", err
	}
	row := n.RowVar.Name

	lines := []string{"FOR " + row + " IN " + src}
	clauseLines, err := r.clauses(n.Clauses, params, row)
	if err != nil {
		return "", err
	}
	lines = append(lines, clauseLines...)

	if n.Grouping != nil {
		groupLines, err := r.grouping(n.Grouping, n.RowVar, params)
		if err != nil {
			return "", err
		}
		lines = append(lines, groupLines...)
	} else {
		ret := row
		if n.Select != nil {
			if ret, err = r.term(n.Select.Body, params.With(n.Select.RowParam, row)); err != nil {
				return "", err
			}
		}
		lines = append(lines, returnLine(n.Distinct, ret))
	}

	text := strings.Join(lines, "\n")
	if n.Bracketed {
		return "(\n" + text + "\n)", nil
	}
	return text, nil
}

func returnLine(distinct bool, ret string) string {
	if distinct {
		return "RETURN DISTINCT " + ret
	}
	return "RETURN " + ret
}

func (r *renderer) clauses(cs []Clause, params Params, row string) ([]string, error) {
	var lines []string
	for _, c := range cs {
		switch c := c.(type) {
		case *FilterClause:
			parts := make([]string, 0, len(c.Filters))
			for _, f := range c.Filters {
				s, err := r.term(f.Body, params.With(f.RowParam, row))
				if err != nil {
					return nil, err
				}
				if len(c.Filters) > 1 && f.Body.Compound() {
					s = "(" + s + ")"
				}
				parts = append(parts, s)
			}
			lines = append(lines, "FILTER "+strings.Join(parts, " && "))
		case *Sort:
			keys := make([]string, 0, len(c.Keys))
			for _, k := range c.Keys {
				s, err := r.term(k.Term, params.With(k.RowParam, row))
				if err != nil {
					return nil, err
				}
				if k.Descending {
					s += " DESC"
				}
				keys = append(keys, s)
			}
			lines = append(lines, "SORT "+strings.Join(keys, ", "))
		case *Limit:
			if line := limitLine(c); line != "" {
				lines = append(lines, line)
			}
		}
	}
	return lines, nil
}

func limitLine(l *Limit) string {
	count := l.Count
	if count < 0 {
		if l.Offset == 0 {
			return ""
		}
		count = maxLimit
	}
	if l.Offset > 0 {
		return fmt.Sprintf("LIMIT %d, %d", l.Offset, count)
	}
	return fmt.Sprintf("LIMIT %d", count)
}

func (r *renderer) grouping(g *GroupingNode, outer *Variable, params Params) ([]string, error) {
	g.OuterRowVar = outer
	if err := g.rewrite(r.vars); err != nil {
		return nil, err
	}

	keyParams := params.With(g.KeyParam, outer.Name)
	keys := make([]string, 0, len(g.Keys))
	for _, k := range g.Keys {
		v, err := r.term(k.Value, keyParams)
		if err != nil {
			return nil, err
		}
		keys = append(keys, k.Var.Name+" = "+v)
	}
	line := "COLLECT " + strings.Join(keys, ", ")

	if len(g.Aggregates) > 0 {
		aggs := make([]string, 0, len(g.Aggregates))
		for _, a := range g.Aggregates {
			v, err := r.term(a.Term, params.With(a.RowParam, outer.Name))
			if err != nil {
				return nil, err
			}
			aggs = append(aggs, a.Var.Name+" = "+v)
		}
		line += " AGGREGATE " + strings.Join(aggs, ", ")
	}
	if g.direct {
		line += " INTO " + g.GroupVar.Name + " = " + outer.Name
	}

	lines := []string{line}
	post, err := r.clauses(g.Post, params, g.GroupVar.Name)
	if err != nil {
		return nil, err
	}
	lines = append(lines, post...)

	ret, err := r.term(g.Select.Body, params.With(g.Select.RowParam, g.GroupVar.Name))
	if err != nil {
		return nil, err
	}
	return append(lines, returnLine(g.Distinct, ret)), nil
}

func (r *renderer) wrap(t Term, parent int, right, assoc bool, params Params) (string, error) {
	s, err := r.term(t, params)
	if err != nil {
		return "", err
	}
	if needsParens(parent, t, right, assoc) {
		return "(" + s + ")", nil
	}
	return s, nil
}

func (r *renderer) term(t Term, params Params) (string, error) {
	switch n := t.(type) {
	case *Primitive:
		return n.Text, nil
	case *Constant:
		return "@" + r.binds.AddNewVar(n.Value, n.Name), nil
	case *ParameterRef:
		v, ok := params[n.Name]
		if !ok {
			return "", Unconvertible(n.Name, "row parameter is not bound at this level")
		}
		return v, nil
	case *VariableRef:
		return n.Var.Name, nil
	case *MemberAccess:
		of, err := r.term(n.Of, params)
		if err != nil {
			return "", err
		}
		if n.Of.Compound() {
			of = "(" + of + ")"
		}
		return of + "." + quoteAttribute(n.Name), nil
	case *FunctionCall:
		args, err := r.terms(n.Args, params)
		if err != nil {
			return "", err
		}
		return n.Name + "(" + strings.Join(args, ", ") + ")", nil
	case *InList:
		el, err := r.wrap(n.Element, precIn, false, false, params)
		if err != nil {
			return "", err
		}
		list, err := r.wrap(n.List, precIn, true, false, params)
		if err != nil {
			return "", err
		}
		return el + " IN " + list, nil
	case *Concat:
		if folded, ok := foldConcat(n); ok {
			return r.term(folded, params)
		}
		args, err := r.terms([]Term{n.Left, n.Right}, params)
		if err != nil {
			return "", err
		}
		return "CONCAT(" + strings.Join(args, ", ") + ")", nil
	case *Unary:
		operand, err := r.wrap(n.Operand, precUnary, true, false, params)
		if err != nil {
			return "", err
		}
		return string(n.Op) + operand, nil
	case *Binary:
		p, ok := binaryPrecedence[n.Op]
		if !ok {
			return "", Unhandled(string(n.Op), "unknown binary operator")
		}
		assoc := associative(n.Op)
		l, err := r.wrap(n.Left, p, false, assoc, params)
		if err != nil {
			return "", err
		}
		rt, err := r.wrap(n.Right, p, true, assoc, params)
		if err != nil {
			return "", err
		}
		return l + " " + string(n.Op) + " " + rt, nil
	case *ObjectProjection:
		if len(n.Members) == 0 {
			return "{}", nil
		}
		parts := make([]string, 0, len(n.Members))
		for _, m := range n.Members {
			v, err := r.term(m.Value, params)
			if err != nil {
				return "", err
			}
			parts = append(parts, quoteKey(m.Name)+": "+v)
		}
		return "{ " + strings.Join(parts, ", ") + " }", nil
	case *Aggregate:
		return r.aggregate(n, params)
	case *CollectionRef:
		s, err := r.collection(n.Node, params)
		if err != nil {
			return "", err
		}
		if !n.Node.Bracketed {
			s = "(\n" + s + "\n)"
		}
		return s, nil
	case *GroupingRef:
		return "", Unconvertible("grouping", "a grouping cannot be used as a value")
	case nil:
		return "", Unconvertible("<nil>", "missing term")
	}
	return "", Unconvertible(fmt.Sprintf("%T", t), "unknown term")
}

func (r *renderer) terms(ts []Term, params Params) ([]string, error) {
	out := make([]string, 0, len(ts))
	for _, t := range ts {
		s, err := r.term(t, params)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

// aggregate renders an aggregate that was not extracted by a grouping:
// a row count, or the function applied to a projecting subquery.
func (r *renderer) aggregate(a *Aggregate, params Params) (string, error) {
	if a.Body == nil {
		src, err := r.term(a.Source, params)
		if err != nil {
			return "", err
		}
		return "LENGTH(" + src + ")", nil
	}
	hint := a.RowParam
	if hint == "" {
		hint = "v"
	}
	sub := &CollectionNode{
		Source:    a.Source,
		RowVar:    r.vars.New(hint),
		Select:    &Select{Body: a.Body, RowParam: a.RowParam},
		Bracketed: true,
	}
	s, err := r.collection(sub, params)
	if err != nil {
		return "", err
	}
	return a.Func + "(" + s + ")", nil
}

// foldConcat folds a concatenation of two string constants.
func foldConcat(c *Concat) (Term, bool) {
	l, ok := c.Left.(*Constant)
	if !ok {
		return nil, false
	}
	rt, ok := c.Right.(*Constant)
	if !ok {
		return nil, false
	}
	ls, ok := l.Value.(string)
	if !ok {
		return nil, false
	}
	rs, ok := rt.Value.(string)
	if !ok {
		return nil, false
	}
	name := c.Name
	if name == "" {
		name = l.Name
	}
	return &Constant{Value: ls + rs, Name: name}, true
}

func quoteAttribute(name string) string {
	if IsIdentifier(name) {
		return name
	}
	return "`" + strings.ReplaceAll(name, "`", "\\`") + "`"
}

func quoteKey(name string) string {
	if IsIdentifier(name) {
		return name
	}
	return strconv.Quote(name)
}

// QuoteCollection renders a collection name, backtick-quoting keywords.
func QuoteCollection(name string) string {
	return quoteAttribute(name)
}

package aql

// Rewriter is one tree-rewrite pass over terms.
//
// Rewrite is called on each node before its children. Returning true
// replaces the node with the returned term and skips its children;
// returning false lets Transform descend and rebuild the node from its
// rewritten children.
type Rewriter interface {
	Rewrite(t Term) (Term, bool, error)
}

// RewriterFunc adapts a function to the Rewriter interface.
type RewriterFunc func(t Term) (Term, bool, error)

// Rewrite implements Rewriter.
func (f RewriterFunc) Rewrite(t Term) (Term, bool, error) {
	return f(t)
}

// Shadower is implemented by rewriters whose matches depend on row
// parameter names. Transform calls Shadow when it enters a lambda scope
// binding param; a nil result leaves that scope untouched.
type Shadower interface {
	Shadow(param string) Rewriter
}

// Transform applies r to t and its descendants, including the terms of
// embedded collections and groupings.
//
// The result is t itself when nothing changed, compared structurally, so
// callers can cheaply detect no-op passes.
func Transform(r Rewriter, t Term) (Term, error) {
	if t == nil {
		return nil, nil
	}
	if out, done, err := r.Rewrite(t); err != nil {
		return nil, err
	} else if done {
		return out, nil
	}

	var out Term
	switch n := t.(type) {
	case *Primitive, *Constant, *ParameterRef, *VariableRef:
		return t, nil
	case *MemberAccess:
		of, err := Transform(r, n.Of)
		if err != nil {
			return nil, err
		}
		out = &MemberAccess{Of: of, Name: n.Name}
	case *FunctionCall:
		args, err := transformAll(r, n.Args)
		if err != nil {
			return nil, err
		}
		out = &FunctionCall{Name: n.Name, Args: args}
	case *InList:
		el, err := Transform(r, n.Element)
		if err != nil {
			return nil, err
		}
		list, err := Transform(r, n.List)
		if err != nil {
			return nil, err
		}
		out = &InList{Element: el, List: list}
	case *Concat:
		l, err := Transform(r, n.Left)
		if err != nil {
			return nil, err
		}
		rt, err := Transform(r, n.Right)
		if err != nil {
			return nil, err
		}
		out = &Concat{Left: l, Right: rt, Name: n.Name}
	case *Unary:
		op, err := Transform(r, n.Operand)
		if err != nil {
			return nil, err
		}
		out = &Unary{Op: n.Op, Operand: op}
	case *Binary:
		l, err := Transform(r, n.Left)
		if err != nil {
			return nil, err
		}
		rt, err := Transform(r, n.Right)
		if err != nil {
			return nil, err
		}
		out = &Binary{Op: n.Op, Left: l, Right: rt}
	case *ObjectProjection:
		members := make([]Member, len(n.Members))
		for i, m := range n.Members {
			v, err := Transform(r, m.Value)
			if err != nil {
				return nil, err
			}
			members[i] = Member{Name: m.Name, Value: v}
		}
		out = &ObjectProjection{Members: members}
	case *Aggregate:
		src, err := Transform(r, n.Source)
		if err != nil {
			return nil, err
		}
		body, err := transformIn(r, n.RowParam, n.Body)
		if err != nil {
			return nil, err
		}
		out = &Aggregate{Func: n.Func, Source: src, RowParam: n.RowParam, Body: body}
	case *CollectionRef:
		node, err := transformCollection(r, n.Node)
		if err != nil {
			return nil, err
		}
		if node == n.Node {
			return t, nil
		}
		return &CollectionRef{Node: node}, nil
	case *GroupingRef:
		g, err := transformGrouping(r, n.Node)
		if err != nil {
			return nil, err
		}
		if g == n.Node {
			return t, nil
		}
		return &GroupingRef{Node: g}, nil
	default:
		return t, nil
	}

	if Equal(out, t) {
		return t, nil
	}
	return out, nil
}

func transformAll(r Rewriter, ts []Term) ([]Term, error) {
	out := make([]Term, len(ts))
	for i, t := range ts {
		v, err := Transform(r, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// transformIn transforms t inside a lambda scope binding param.
func transformIn(r Rewriter, param string, t Term) (Term, error) {
	if t == nil {
		return nil, nil
	}
	if s, ok := r.(Shadower); ok && param != "" {
		r = s.Shadow(param)
		if r == nil {
			return t, nil
		}
	}
	return Transform(r, t)
}

func transformClauses(r Rewriter, cs []Clause) ([]Clause, bool, error) {
	out := make([]Clause, len(cs))
	changed := false
	for i, c := range cs {
		switch c := c.(type) {
		case *FilterClause:
			fc := &FilterClause{Filters: make([]*Filter, len(c.Filters))}
			same := true
			for j, f := range c.Filters {
				body, err := transformIn(r, f.RowParam, f.Body)
				if err != nil {
					return nil, false, err
				}
				if body != f.Body {
					same = false
					fc.Filters[j] = &Filter{Body: body, RowParam: f.RowParam}
				} else {
					fc.Filters[j] = f
				}
			}
			if same {
				out[i] = c
			} else {
				out[i] = fc
				changed = true
			}
		case *Sort:
			s := &Sort{Keys: make([]SortKey, len(c.Keys)), Then: c.Then}
			same := true
			for j, k := range c.Keys {
				term, err := transformIn(r, k.RowParam, k.Term)
				if err != nil {
					return nil, false, err
				}
				if term != k.Term {
					same = false
				}
				s.Keys[j] = SortKey{Term: term, RowParam: k.RowParam, Descending: k.Descending}
			}
			if same {
				out[i] = c
			} else {
				out[i] = s
				changed = true
			}
		default:
			out[i] = c
		}
	}
	return out, changed, nil
}

func transformSelect(r Rewriter, s *Select) (*Select, error) {
	if s == nil {
		return nil, nil
	}
	body, err := transformIn(r, s.RowParam, s.Body)
	if err != nil {
		return nil, err
	}
	if body == s.Body {
		return s, nil
	}
	return &Select{Body: body, RowParam: s.RowParam}, nil
}

func transformCollection(r Rewriter, n *CollectionNode) (*CollectionNode, error) {
	src, err := Transform(r, n.Source)
	if err != nil {
		return nil, err
	}
	clauses, clausesChanged, err := transformClauses(r, n.Clauses)
	if err != nil {
		return nil, err
	}
	sel, err := transformSelect(r, n.Select)
	if err != nil {
		return nil, err
	}
	var g *GroupingNode
	if n.Grouping != nil {
		if g, err = transformGrouping(r, n.Grouping); err != nil {
			return nil, err
		}
	}
	if src == n.Source && !clausesChanged && sel == n.Select && g == n.Grouping {
		return n, nil
	}
	cp := *n
	cp.Source = src
	cp.Clauses = clauses
	cp.Select = sel
	cp.Grouping = g
	return &cp, nil
}

func transformGrouping(r Rewriter, g *GroupingNode) (*GroupingNode, error) {
	cp := *g
	changed := false

	cp.Keys = make([]GroupKey, len(g.Keys))
	for i, k := range g.Keys {
		v, err := transformIn(r, g.KeyParam, k.Value)
		if err != nil {
			return nil, err
		}
		if v != k.Value {
			changed = true
		}
		cp.Keys[i] = GroupKey{Name: k.Name, Value: v, Var: k.Var}
	}

	cp.Aggregates = make([]AggregateBinding, len(g.Aggregates))
	for i, a := range g.Aggregates {
		cp.Aggregates[i] = a
		v, err := transformIn(r, a.RowParam, a.Term)
		if err != nil {
			return nil, err
		}
		if fc, ok := v.(*FunctionCall); ok && fc != a.Term {
			cp.Aggregates[i].Term = fc
			changed = true
		}
	}

	post, postChanged, err := transformClauses(r, g.Post)
	if err != nil {
		return nil, err
	}
	cp.Post = post

	sel, err := transformSelect(r, g.Select)
	if err != nil {
		return nil, err
	}
	cp.Select = sel

	if !changed && !postChanged && sel == g.Select {
		return g, nil
	}
	return &cp, nil
}

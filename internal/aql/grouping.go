package aql

// aggregateFuncs are the aggregate functions COLLECT ... AGGREGATE accepts.
var aggregateFuncs = map[string]bool{
	"LENGTH":  true,
	"COUNT":   true,
	"MAX":     true,
	"MIN":     true,
	"AVERAGE": true,
	"SUM":     true,
}

// IsAggregateFunc reports whether name is an extractable aggregate.
func IsAggregateFunc(name string) bool {
	return aggregateFuncs[name]
}

// PrimaryKey is the reserved document key attribute.
const PrimaryKey = "_key"

// groupRewriter rewrites one group body, where param is the body's
// declared group parameter.
type groupRewriter struct {
	g     *GroupingNode
	param string
	vars  *Variables
}

func (w *groupRewriter) Shadow(param string) Rewriter {
	if param == w.param {
		return nil
	}
	return w
}

func (w *groupRewriter) isGroup(t Term) bool {
	p, ok := t.(*ParameterRef)
	return ok && p.Name == w.param
}

func (w *groupRewriter) Rewrite(t Term) (Term, bool, error) {
	switch n := t.(type) {
	case *ParameterRef:
		if n.Name == w.param {
			w.g.direct = true
			return Ref(w.g.GroupVar), true, nil
		}
	case *MemberAccess:
		if n.Name == PrimaryKey && w.isGroup(n.Of) {
			return w.fullKey(), true, nil
		}
		if inner, ok := n.Of.(*MemberAccess); ok && inner.Name == PrimaryKey && w.isGroup(inner.Of) {
			out, err := w.keyMember(n.Name)
			return out, err == nil, err
		}
	case *Aggregate:
		if w.isGroup(n.Source) {
			return Ref(w.extract(n, "")), true, nil
		}
	case *FunctionCall:
		if (n.Name == "LENGTH" || n.Name == "COUNT") && len(n.Args) == 1 && w.isGroup(n.Args[0]) {
			return Ref(w.extract(&Aggregate{Func: "LENGTH", Source: n.Args[0]}, "")), true, nil
		}
	case *ObjectProjection:
		members := make([]Member, len(n.Members))
		for i, m := range n.Members {
			if agg, ok := m.Value.(*Aggregate); ok && w.isGroup(agg.Source) {
				members[i] = Member{Name: m.Name, Value: Ref(w.extract(agg, m.Name))}
				continue
			}
			v, err := Transform(w, m.Value)
			if err != nil {
				return nil, false, err
			}
			members[i] = Member{Name: m.Name, Value: v}
		}
		out := &ObjectProjection{Members: members}
		if Equal(out, n) {
			return n, true, nil
		}
		return out, true, nil
	}
	return nil, false, nil
}

// fullKey re-assembles the whole grouping key from its bound variables.
func (w *groupRewriter) fullKey() Term {
	if w.g.Scalar && len(w.g.Keys) == 1 {
		return Ref(w.g.Keys[0].Var)
	}
	members := make([]Member, len(w.g.Keys))
	for i, k := range w.g.Keys {
		members[i] = Member{Name: k.Name, Value: Ref(k.Var)}
	}
	return &ObjectProjection{Members: members}
}

func (w *groupRewriter) keyMember(name string) (Term, error) {
	if w.g.Scalar && len(w.g.Keys) == 1 {
		return &MemberAccess{Of: Ref(w.g.Keys[0].Var), Name: name}, nil
	}
	for _, k := range w.g.Keys {
		if k.Name == name {
			return Ref(k.Var), nil
		}
	}
	return nil, Unconvertible(w.param+"."+PrimaryKey+"."+name, "grouping key has no member %q", name)
}

// extract records an aggregate over the grouped rows and returns the
// variable bound to it. Structurally equal aggregates share a variable.
func (w *groupRewriter) extract(agg *Aggregate, hint string) *Variable {
	var term *FunctionCall
	if agg.Body == nil {
		term = Call("LENGTH", Raw("1"))
	} else {
		term = Call(agg.Func, agg.Body)
	}
	for _, a := range w.g.Aggregates {
		if a.RowParam == agg.RowParam && Equal(a.Term, term) {
			return a.Var
		}
	}
	if hint == "" {
		hint = "aggr" + term.Name
	}
	v := w.vars.New(hint)
	w.g.Aggregates = append(w.g.Aggregates, AggregateBinding{Var: v, Term: term, RowParam: agg.RowParam})
	return v
}

// rewrite runs the grouping pass once, in place, over the group's select
// and post-group clauses.
func (g *GroupingNode) rewrite(vars *Variables) error {
	if g.rewritten {
		return nil
	}
	g.rewritten = true

	if g.Select == nil {
		g.Select = &Select{Body: Ref(g.GroupVar)}
		g.direct = true
	}

	for _, c := range g.Post {
		switch c := c.(type) {
		case *FilterClause:
			for _, f := range c.Filters {
				body, err := Transform(&groupRewriter{g: g, param: f.RowParam, vars: vars}, f.Body)
				if err != nil {
					return err
				}
				f.Body = body
			}
		case *Sort:
			for i, k := range c.Keys {
				term, err := Transform(&groupRewriter{g: g, param: k.RowParam, vars: vars}, k.Term)
				if err != nil {
					return err
				}
				c.Keys[i].Term = term
			}
		}
	}

	body, err := Transform(&groupRewriter{g: g, param: g.Select.RowParam, vars: vars}, g.Select.Body)
	if err != nil {
		return err
	}
	g.Select = &Select{Body: body, RowParam: g.Select.RowParam}
	return nil
}

package compiler

import (
	"reflect"
	"strings"
	"time"

	"github.com/roach88/aqlc/internal/aql"
	"github.com/roach88/aqlc/internal/queryir"
)

// binaryOps maps host operators to AQL operators. Logical and bitwise
// conjunctions both lower to the boolean operators.
var binaryOps = map[queryir.Op]aql.Operator{
	queryir.OpAnd:                aql.OpAnd,
	queryir.OpAndAlso:            aql.OpAnd,
	queryir.OpOr:                 aql.OpOr,
	queryir.OpOrElse:             aql.OpOr,
	queryir.OpEqual:              aql.OpEq,
	queryir.OpNotEqual:           aql.OpNe,
	queryir.OpLessThan:           aql.OpLt,
	queryir.OpLessThanOrEqual:    aql.OpLe,
	queryir.OpGreaterThan:        aql.OpGt,
	queryir.OpGreaterThanOrEqual: aql.OpGe,
	queryir.OpAdd:                aql.OpAdd,
	queryir.OpSubtract:           aql.OpSub,
	queryir.OpMultiply:           aql.OpMul,
	queryir.OpDivide:             aql.OpDiv,
	queryir.OpModulo:             aql.OpMod,
}

var unaryOps = map[queryir.Op]aql.Operator{
	queryir.OpNot:    aql.OpNot,
	queryir.OpNegate: aql.OpMinus,
}

// aggregates maps sequence terminals to AQL aggregate functions.
var aggregates = map[string]string{
	"Sum":     "SUM",
	"Min":     "MIN",
	"Max":     "MAX",
	"Average": "AVERAGE",
}

// dateUnits maps date arithmetic methods to DATE_ADD units.
var dateUnits = map[string]string{
	"DateTime.AddYears":        "years",
	"DateTime.AddMonths":       "months",
	"DateTime.AddDays":         "days",
	"DateTime.AddHours":        "hours",
	"DateTime.AddMinutes":      "minutes",
	"DateTime.AddSeconds":      "seconds",
	"DateTime.AddMilliseconds": "milliseconds",
}

var stringFuncs = map[string]string{
	"String.ToLower": "LOWER",
	"String.ToUpper": "UPPER",
	"String.Trim":    "TRIM",
}

// likeEscaper escapes LIKE wildcards in a literal pattern fragment.
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// term translates a value expression.
func (c *queryContext) term(e queryir.Expr) (aql.Term, error) {
	switch n := e.(type) {
	case *queryir.Query, *queryir.Collection, *queryir.Scope, *queryir.Stage:
		return c.sequence(e)
	case *queryir.Const:
		name := n.Name
		if name == "" {
			name = "c"
		}
		return &aql.Constant{Value: n.Value, Name: name}, nil
	case *queryir.Param:
		return &aql.ParameterRef{Name: n.Name}, nil
	case *queryir.Member:
		return c.member(n)
	case *queryir.Binary:
		return c.binary(n)
	case *queryir.Unary:
		op, ok := unaryOps[n.Op]
		if !ok {
			return nil, aql.Unhandled(queryir.Format(n), "no translation for operator %s", n.Op)
		}
		operand, err := c.term(n.Operand)
		if err != nil {
			return nil, err
		}
		return &aql.Unary{Op: op, Operand: operand}, nil
	case *queryir.Call:
		return c.call(n)
	case *queryir.New:
		return c.object(n)
	case *queryir.Lambda:
		return nil, aql.Unconvertible(queryir.Format(n), "a lambda cannot be used as a value")
	case nil:
		return nil, aql.Unconvertible("<nil>", "missing expression")
	}
	return nil, aql.Unconvertible(queryir.Format(e), "no translation for %T", e)
}

func (c *queryContext) terms(es []queryir.Expr) ([]aql.Term, error) {
	out := make([]aql.Term, 0, len(es))
	for _, e := range es {
		t, err := c.term(e)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

func (c *queryContext) member(m *queryir.Member) (aql.Term, error) {
	of, err := c.term(m.Of)
	if err != nil {
		return nil, err
	}
	switch {
	case m.Name == "Key":
		return &aql.MemberAccess{Of: of, Name: aql.PrimaryKey}, nil
	case m.Name == "Length" && typeOf(m.Of) == queryir.TypeString:
		return aql.Call("CHAR_LENGTH", of), nil
	case (m.Name == "Count" || m.Name == "Length") && typeOf(m.Of) == queryir.TypeList:
		return aql.Call("LENGTH", of), nil
	}
	return &aql.MemberAccess{Of: of, Name: m.Name}, nil
}

func (c *queryContext) binary(b *queryir.Binary) (aql.Term, error) {
	l, err := c.term(b.Left)
	if err != nil {
		return nil, err
	}
	r, err := c.term(b.Right)
	if err != nil {
		return nil, err
	}
	if b.Op == queryir.OpAdd && (typeOf(b.Left) == queryir.TypeString || typeOf(b.Right) == queryir.TypeString) {
		return aql.NewConcat(l, r, ""), nil
	}
	op, ok := binaryOps[b.Op]
	if !ok {
		return nil, aql.Unhandled(queryir.Format(b), "no translation for operator %s", b.Op)
	}
	return &aql.Binary{Op: op, Left: l, Right: r}, nil
}

func (c *queryContext) object(n *queryir.New) (aql.Term, error) {
	seen := make(map[string]bool, len(n.Fields))
	members := make([]aql.Member, 0, len(n.Fields))
	for _, f := range n.Fields {
		if seen[f.Name] {
			return nil, aql.Unhandled(queryir.Format(n), "duplicate member %q", f.Name)
		}
		seen[f.Name] = true
		v, err := c.term(f.Value)
		if err != nil {
			return nil, err
		}
		members = append(members, aql.Member{Name: f.Name, Value: v})
	}
	return &aql.ObjectProjection{Members: members}, nil
}

// call translates a method or function call. Static sequence methods take
// their receiver as the first argument.
func (c *queryContext) call(n *queryir.Call) (aql.Term, error) {
	recv, args := n.Receiver, n.Args
	if recv == nil && strings.HasPrefix(n.Method, "Enumerable.") && len(args) > 0 {
		recv, args = args[0], args[1:]
	}

	if unit, ok := dateUnits[n.Method]; ok {
		if recv == nil || len(args) != 1 {
			return nil, aql.Unhandled(queryir.Format(n), "%s takes one argument", n.Method)
		}
		d, err := c.term(recv)
		if err != nil {
			return nil, err
		}
		amount, err := c.term(args[0])
		if err != nil {
			return nil, err
		}
		return aql.Call("DATE_ADD", d, amount, aql.Raw(`"`+unit+`"`)), nil
	}
	if fn, ok := stringFuncs[n.Method]; ok && recv != nil && len(args) == 0 {
		s, err := c.term(recv)
		if err != nil {
			return nil, err
		}
		return aql.Call(fn, s), nil
	}

	switch n.Method {
	case "List.Contains", "Enumerable.Contains":
		if recv == nil || len(args) != 1 {
			return nil, aql.Unhandled(queryir.Format(n), "Contains takes one argument")
		}
		list, err := c.term(recv)
		if err != nil {
			return nil, err
		}
		el, err := c.term(args[0])
		if err != nil {
			return nil, err
		}
		return &aql.InList{Element: el, List: list}, nil

	case "String.Contains":
		return c.stringCall(n, recv, args, func(s, p aql.Term) aql.Term {
			return aql.Call("CONTAINS", s, p)
		})

	case "String.StartsWith":
		return c.stringCall(n, recv, args, func(s, p aql.Term) aql.Term {
			pattern := aql.NewConcat(likePattern(p), &aql.Constant{Value: "%", Name: "percent"}, "startsWith")
			return &aql.Binary{Op: aql.OpLike, Left: s, Right: pattern}
		})

	case "String.EndsWith":
		return c.stringCall(n, recv, args, func(s, p aql.Term) aql.Term {
			pattern := aql.NewConcat(&aql.Constant{Value: "%", Name: "percent"}, likePattern(p), "endsWith")
			return &aql.Binary{Op: aql.OpLike, Left: s, Right: pattern}
		})

	case "Enumerable.Any":
		seq, err := c.filtered(recv, args)
		if err != nil {
			return nil, err
		}
		return &aql.Binary{Op: aql.OpGt, Left: aql.Call("LENGTH", seq), Right: aql.Raw("0")}, nil

	case "Enumerable.Count":
		if len(args) == 0 {
			src, err := c.sequence(recv)
			if err != nil {
				return nil, err
			}
			return &aql.Aggregate{Func: "LENGTH", Source: src}, nil
		}
		seq, err := c.filtered(recv, args)
		if err != nil {
			return nil, err
		}
		return aql.Call("LENGTH", seq), nil

	case "Enumerable.Sum", "Enumerable.Min", "Enumerable.Max", "Enumerable.Average":
		return c.aggregate(n, recv, args)

	case "Enumerable.FirstOrDefault", "Enumerable.SingleOrDefault", "Enumerable.First", "Enumerable.Single":
		seq, err := c.filtered(recv, args)
		if err != nil {
			return nil, err
		}
		return aql.Call("FIRST", seq), nil
	}

	name, ok := c.functions.Lookup(n.Method)
	if !ok {
		return nil, aql.Unhandled(queryir.Format(n), "no translation for method %s", n.Method)
	}
	all := args
	if recv != nil {
		all = append([]queryir.Expr{recv}, args...)
	}
	ts, err := c.terms(all)
	if err != nil {
		return nil, err
	}
	return aql.Call(name, ts...), nil
}

func (c *queryContext) stringCall(n *queryir.Call, recv queryir.Expr, args []queryir.Expr, build func(s, p aql.Term) aql.Term) (aql.Term, error) {
	if recv == nil || len(args) != 1 {
		return nil, aql.Unhandled(queryir.Format(n), "%s takes one argument", n.Method)
	}
	s, err := c.term(recv)
	if err != nil {
		return nil, err
	}
	p, err := c.term(args[0])
	if err != nil {
		return nil, err
	}
	return build(s, p), nil
}

// likePattern escapes wildcards in a literal LIKE fragment. Computed
// fragments are used as is.
func likePattern(t aql.Term) aql.Term {
	if k, ok := t.(*aql.Constant); ok {
		if s, ok := k.Value.(string); ok {
			return &aql.Constant{Value: likeEscaper.Replace(s), Name: k.Name}
		}
	}
	return t
}

// filtered compiles recv, narrowed by an optional predicate, as a sequence.
func (c *queryContext) filtered(recv queryir.Expr, args []queryir.Expr) (aql.Term, error) {
	if recv == nil {
		return nil, aql.Unhandled("", "sequence method without a sequence")
	}
	if len(args) == 0 {
		return c.sequence(recv)
	}
	pred, ok := args[0].(*queryir.Lambda)
	if !ok || len(args) > 1 {
		return nil, aql.Unhandled(queryir.Format(args[0]), "expected a single predicate")
	}
	return c.sequence(&queryir.Stage{Kind: queryir.StageWhere, Source: recv, Fn: pred})
}

func (c *queryContext) aggregate(n *queryir.Call, recv queryir.Expr, args []queryir.Expr) (aql.Term, error) {
	fn := aggregates[strings.TrimPrefix(n.Method, "Enumerable.")]
	if recv == nil {
		return nil, aql.Unhandled(queryir.Format(n), "%s without a sequence", n.Method)
	}
	src, err := c.sequence(recv)
	if err != nil {
		return nil, err
	}
	if len(args) == 0 {
		return aql.Call(fn, src), nil
	}
	sel, ok := args[0].(*queryir.Lambda)
	if !ok || sel.Param == nil || len(args) > 1 {
		return nil, aql.Unhandled(queryir.Format(n), "%s expects a selector", n.Method)
	}
	body, err := c.term(sel.Body)
	if err != nil {
		return nil, err
	}
	return &aql.Aggregate{Func: fn, Source: src, RowParam: sel.Param.Name, Body: body}, nil
}

// sequence translates a sequence used as a value. Handles and closed
// pipelines over a handle are hoisted into LET bindings and shared by
// structural identity; pipelines that read the enclosing row are compiled
// in place as subqueries.
func (c *queryContext) sequence(e queryir.Expr) (aql.Term, error) {
	e = queryir.Unwrap(e)
	switch n := e.(type) {
	case *queryir.Collection, *queryir.Scope:
		return c.hoist(n)
	case *queryir.Stage:
		if _, ok := handleOf(n); ok && len(queryir.FreeParams(n)) == 0 {
			return c.hoist(n)
		}
		node, err := c.collection(n, nil, true, "x")
		if err != nil {
			return nil, err
		}
		return &aql.CollectionRef{Node: node}, nil
	case nil:
		return nil, aql.Unconvertible("<nil>", "missing sequence")
	}
	return c.term(e)
}

func (c *queryContext) hoist(e queryir.Expr) (aql.Term, error) {
	key := queryir.Format(e)
	if v, ok := c.scopes[key]; ok {
		return aql.Ref(v), nil
	}
	handle, _ := handleOf(e)
	if handle == "" {
		handle = c.root
	}
	v := c.vars.New(hoistName(handle))
	c.scopes[key] = v

	var node *aql.CollectionNode
	switch e.(type) {
	case *queryir.Collection, *queryir.Scope:
		src, err := c.handle(handle)
		if err != nil {
			return nil, err
		}
		node = &aql.CollectionNode{Source: src, RowVar: c.vars.New(firstLower(handle)), Bracketed: true}
	default:
		var err error
		if node, err = c.collection(e, nil, true, firstLower(handle)); err != nil {
			return nil, err
		}
	}
	c.lets = append(c.lets, &aql.Let{Var: v, Node: node})
	c.logger.Debug("hoisted sequence", "var", v.Name, "source", key)
	return aql.Ref(v), nil
}

func firstLower(s string) string {
	if s == "" {
		return "x"
	}
	return strings.ToLower(s[:1])
}

// typeOf infers the static type of an expression where it matters for
// translation. Unknown types are TypeAny.
func typeOf(e queryir.Expr) queryir.Type {
	switch n := e.(type) {
	case *queryir.Const:
		return typeOfValue(n.Value)
	case *queryir.Member:
		return n.Type
	case *queryir.Param:
		return n.Type
	case *queryir.Binary:
		switch n.Op {
		case queryir.OpAdd:
			if typeOf(n.Left) == queryir.TypeString || typeOf(n.Right) == queryir.TypeString {
				return queryir.TypeString
			}
			return queryir.TypeNumber
		case queryir.OpSubtract, queryir.OpMultiply, queryir.OpDivide, queryir.OpModulo:
			return queryir.TypeNumber
		}
		return queryir.TypeBool
	case *queryir.Unary:
		if n.Op == queryir.OpNot {
			return queryir.TypeBool
		}
		return queryir.TypeNumber
	case *queryir.Call:
		if _, ok := stringFuncs[n.Method]; ok {
			return queryir.TypeString
		}
		if _, ok := dateUnits[n.Method]; ok {
			return queryir.TypeDate
		}
	case *queryir.New:
		return queryir.TypeObject
	case *queryir.Query, *queryir.Stage, *queryir.Collection, *queryir.Scope:
		return queryir.TypeList
	}
	return queryir.TypeAny
}

func typeOfValue(v any) queryir.Type {
	switch v.(type) {
	case nil:
		return queryir.TypeAny
	case string:
		return queryir.TypeString
	case bool:
		return queryir.TypeBool
	case time.Time:
		return queryir.TypeDate
	case []byte:
		return queryir.TypeString
	}
	switch reflect.TypeOf(v).Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return queryir.TypeNumber
	case reflect.Slice, reflect.Array:
		return queryir.TypeList
	case reflect.Map, reflect.Struct:
		return queryir.TypeObject
	}
	return queryir.TypeAny
}

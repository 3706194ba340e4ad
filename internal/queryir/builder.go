package queryir

// From starts a pipeline over the named collection.
//
// Example:
//
//	q := queryir.From("Project").
//	    Where(queryir.Fn("x", func(x *queryir.Param) queryir.Expr {
//	        return queryir.Eq(x.Get("Name"), queryir.Val("A"))
//	    })).
//	    Select(queryir.Fn("x", func(x *queryir.Param) queryir.Expr {
//	        return x.Get("Name")
//	    }))
func From(collection string) *Query {
	return &Query{Node: &Collection{Name: collection}}
}

// Root starts a pipeline over the collection named at compile time.
func Root() *Query {
	return From("")
}

// ScopeOf returns a handle to a sequence defined outside the pipeline.
func ScopeOf(collection string) *Query {
	return &Query{Node: &Scope{Name: collection}}
}

// Over starts a pipeline over a sequence-valued expression, such as a
// list member of the current row or a grouped row sequence.
func Over(seq Expr) *Query {
	return &Query{Node: seq}
}

func (q *Query) stage(kind StageKind, fn *Lambda, n int, desc bool) *Query {
	return &Query{Node: &Stage{Kind: kind, Source: q.Node, Fn: fn, N: n, Descending: desc}}
}

// Where filters rows by a predicate.
func (q *Query) Where(pred *Lambda) *Query { return q.stage(StageWhere, pred, 0, false) }

// Select projects each row.
func (q *Query) Select(proj *Lambda) *Query { return q.stage(StageSelect, proj, 0, false) }

// OrderBy sorts ascending, replacing any earlier sort at this level.
func (q *Query) OrderBy(key *Lambda) *Query { return q.stage(StageOrderBy, key, 0, false) }

// OrderByDescending sorts descending, replacing any earlier sort at this level.
func (q *Query) OrderByDescending(key *Lambda) *Query { return q.stage(StageOrderBy, key, 0, true) }

// ThenBy adds an ascending secondary sort key.
func (q *Query) ThenBy(key *Lambda) *Query { return q.stage(StageThenBy, key, 0, false) }

// ThenByDescending adds a descending secondary sort key.
func (q *Query) ThenByDescending(key *Lambda) *Query { return q.stage(StageThenBy, key, 0, true) }

// Take limits the number of rows.
func (q *Query) Take(n int) *Query { return q.stage(StageTake, nil, n, false) }

// Skip drops the first n rows.
func (q *Query) Skip(n int) *Query { return q.stage(StageSkip, nil, n, false) }

// Distinct removes duplicate rows.
func (q *Query) Distinct() *Query { return q.stage(StageDistinct, nil, 0, false) }

// GroupBy groups rows by a key selector.
func (q *Query) GroupBy(key *Lambda) *Query { return q.stage(StageGroupBy, key, 0, false) }

// SingleOrDefault marks the result as a single optional row.
// pred may be nil.
func (q *Query) SingleOrDefault(pred *Lambda) *Query {
	return q.stage(StageSingleOrDefault, pred, 0, false)
}

// Stage applies an arbitrary stage kind. Kinds the compiler does not
// recognize are rejected at compile time.
func (q *Query) Stage(kind StageKind, fn *Lambda) *Query { return q.stage(kind, fn, 0, false) }

func (q *Query) terminal(method string, fn *Lambda) *Call {
	c := &Call{Method: "Enumerable." + method, Receiver: q}
	if fn != nil {
		c.Args = []Expr{fn}
	}
	return c
}

// Any tests whether any row matches pred. pred may be nil.
func (q *Query) Any(pred *Lambda) *Call { return q.terminal("Any", pred) }

// Count counts rows matching pred. pred may be nil.
func (q *Query) Count(pred *Lambda) *Call { return q.terminal("Count", pred) }

// Sum sums sel over the rows.
func (q *Query) Sum(sel *Lambda) *Call { return q.terminal("Sum", sel) }

// Min returns the minimum of sel over the rows.
func (q *Query) Min(sel *Lambda) *Call { return q.terminal("Min", sel) }

// Max returns the maximum of sel over the rows.
func (q *Query) Max(sel *Lambda) *Call { return q.terminal("Max", sel) }

// Average returns the mean of sel over the rows.
func (q *Query) Average(sel *Lambda) *Call { return q.terminal("Average", sel) }

// FirstOrDefault returns the first row matching pred, or null.
func (q *Query) FirstOrDefault(pred *Lambda) *Call { return q.terminal("FirstOrDefault", pred) }

// Fn builds a lambda with an untyped parameter.
func Fn(param string, body func(x *Param) Expr) *Lambda {
	return FnOf(param, TypeAny, body)
}

// FnOf builds a lambda whose parameter has a known type.
func FnOf(param string, t Type, body func(x *Param) Expr) *Lambda {
	p := &Param{Name: param, Type: t}
	return &Lambda{Param: p, Body: body(p)}
}

// Val is a literal value.
func Val(v any) *Const { return &Const{Value: v} }

// Named is a captured value bound under a preferred name.
func Named(name string, v any) *Const { return &Const{Value: v, Name: name} }

// Get accesses an untyped member.
func Get(of Expr, name string) *Member { return &Member{Of: of, Name: name} }

// GetT accesses a member of known type.
func GetT(of Expr, name string, t Type) *Member { return &Member{Of: of, Name: name, Type: t} }

// Get accesses an untyped member of the row.
func (p *Param) Get(name string) *Member { return Get(p, name) }

// Str accesses a string member of the row.
func (p *Param) Str(name string) *Member { return GetT(p, name, TypeString) }

// List accesses a list member of the row.
func (p *Param) List(name string) *Member { return GetT(p, name, TypeList) }

// Date accesses a date member of the row.
func (p *Param) Date(name string) *Member { return GetT(p, name, TypeDate) }

// Get accesses an untyped nested member.
func (m *Member) Get(name string) *Member { return Get(m, name) }

func bin(op Op, l, r Expr) *Binary { return &Binary{Op: op, Left: l, Right: r} }

func Eq(l, r Expr) *Binary  { return bin(OpEqual, l, r) }
func Ne(l, r Expr) *Binary  { return bin(OpNotEqual, l, r) }
func Lt(l, r Expr) *Binary  { return bin(OpLessThan, l, r) }
func Le(l, r Expr) *Binary  { return bin(OpLessThanOrEqual, l, r) }
func Gt(l, r Expr) *Binary  { return bin(OpGreaterThan, l, r) }
func Ge(l, r Expr) *Binary  { return bin(OpGreaterThanOrEqual, l, r) }
func And(l, r Expr) *Binary { return bin(OpAndAlso, l, r) }
func Or(l, r Expr) *Binary  { return bin(OpOrElse, l, r) }
func Add(l, r Expr) *Binary { return bin(OpAdd, l, r) }
func Sub(l, r Expr) *Binary { return bin(OpSubtract, l, r) }
func Mul(l, r Expr) *Binary { return bin(OpMultiply, l, r) }
func Div(l, r Expr) *Binary { return bin(OpDivide, l, r) }
func Mod(l, r Expr) *Binary { return bin(OpModulo, l, r) }

// Not negates a boolean expression.
func Not(e Expr) *Unary { return &Unary{Op: OpNot, Operand: e} }

// Neg negates a number.
func Neg(e Expr) *Unary { return &Unary{Op: OpNegate, Operand: e} }

// F is one object literal member.
func F(name string, v Expr) Field { return Field{Name: name, Value: v} }

// Obj is an object literal.
func Obj(fields ...Field) *New { return &New{Fields: fields} }

// Method calls a method on a receiver.
func Method(method string, recv Expr, args ...Expr) *Call {
	return &Call{Method: method, Receiver: recv, Args: args}
}

// Func calls a static function such as "Aql.Trim".
func Func(callable string, args ...Expr) *Call {
	return &Call{Method: callable, Args: args}
}

// Contains tests list membership.
func Contains(list, elem Expr) *Call { return Method("List.Contains", list, elem) }

// StartsWith tests a string prefix.
func StartsWith(s, prefix Expr) *Call { return Method("String.StartsWith", s, prefix) }

// AddDays shifts a date by a number of days.
func AddDays(date, days Expr) *Call { return Method("DateTime.AddDays", date, days) }

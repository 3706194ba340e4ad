// Package lambda parses query pipelines written as text.
//
// The notation mirrors the fluent builder in package queryir:
//
//	Project.Where(x => x.Name == $name).OrderBy(x => x.Name).Select(x => x.Name)
//
// Supported forms:
//   - Sources: a collection name, Root for the compile-time root
//     collection, scope(Name) for a shared outer sequence
//   - Stages: Where, Select, OrderBy[Descending], ThenBy[Descending],
//     GroupBy, Take(n), Skip(n), Distinct(), SingleOrDefault([pred])
//   - Terminals: Any, Count, Sum, Min, Max, Average, FirstOrDefault
//   - Literals: numbers, "strings", true, false, null, [lists], date("...")
//   - Parameters: $name, resolved from Env.Params as named bind values
//   - Objects: new { A = x.A, B = x.B }
//   - Static calls: Aql.Trim(x.Name) and other registered callables
package lambda

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/roach88/aqlc/internal/queryir"
)

// MaxNestingDepth bounds expression nesting.
const MaxNestingDepth = 100

// Env supplies the values and field types a pipeline text refers to.
type Env struct {
	// Params holds the values of $name references.
	Params map[string]any

	// Fields maps member names to their static type. Members not listed
	// are untyped.
	Fields map[string]queryir.Type

	// Location is used for date literals without a zone. Defaults to UTC.
	Location *time.Location
}

// SyntaxError lists every problem found while parsing.
type SyntaxError struct {
	Problems []string
}

func (e *SyntaxError) Error() string {
	return "lambda: " + strings.Join(e.Problems, "; ")
}

var stageMethods = map[string]struct {
	kind queryir.StageKind
	desc bool
}{
	"Where":             {queryir.StageWhere, false},
	"Select":            {queryir.StageSelect, false},
	"OrderBy":           {queryir.StageOrderBy, false},
	"OrderByDescending": {queryir.StageOrderBy, true},
	"ThenBy":            {queryir.StageThenBy, false},
	"ThenByDescending":  {queryir.StageThenBy, true},
	"GroupBy":           {queryir.StageGroupBy, false},
	"Take":              {queryir.StageTake, false},
	"Skip":              {queryir.StageSkip, false},
	"Distinct":          {queryir.StageDistinct, false},
	"SingleOrDefault":   {queryir.StageSingleOrDefault, false},
}

var terminalMethods = map[string]bool{
	"Any":            true,
	"Count":          true,
	"Sum":            true,
	"Min":            true,
	"Max":            true,
	"Average":        true,
	"FirstOrDefault": true,
}

var stringMethods = map[string]bool{
	"StartsWith": true,
	"EndsWith":   true,
	"ToLower":    true,
	"ToUpper":    true,
	"Trim":       true,
}

var dateMethods = map[string]bool{
	"AddYears":        true,
	"AddMonths":       true,
	"AddDays":         true,
	"AddHours":        true,
	"AddMinutes":      true,
	"AddSeconds":      true,
	"AddMilliseconds": true,
}

// Parse parses a pipeline or scalar expression.
func Parse(input string, env Env) (queryir.Expr, error) {
	p := newParser(input, env)
	e := p.parseExpression()
	if len(p.errors) == 0 && p.curToken.Type != EOF {
		p.addError("unexpected %s after expression", p.describe())
	}
	if len(p.errors) > 0 {
		return nil, &SyntaxError{Problems: p.errors}
	}
	return e, nil
}

// Parser is a recursive-descent parser over a Lexer.
type Parser struct {
	l         *Lexer
	curToken  Token
	peekToken Token
	errors    []string
	depth     int
	env       Env
	params    []*queryir.Param
}

func newParser(input string, env Env) *Parser {
	if env.Location == nil {
		env.Location = time.UTC
	}
	p := &Parser{l: NewLexer(input), env: env}
	p.nextToken()
	p.nextToken()
	return p
}

func (p *Parser) nextToken() {
	p.curToken = p.peekToken
	p.peekToken = p.l.NextToken()
}

func (p *Parser) addError(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	p.errors = append(p.errors, fmt.Sprintf("line %d, column %d: %s",
		p.curToken.Line, p.curToken.Column, msg))
}

func (p *Parser) describe() string {
	switch p.curToken.Type {
	case EOF:
		return "end of input"
	case IDENT, INT, FLOAT:
		return strconv.Quote(p.curToken.Literal)
	default:
		return p.curToken.Type.String()
	}
}

// expect consumes a token of type t or records an error.
func (p *Parser) expect(t TokenType) bool {
	if p.curToken.Type != t {
		p.addError("expected %s, got %s", t, p.describe())
		return false
	}
	p.nextToken()
	return true
}

func (p *Parser) lookupParam(name string) *queryir.Param {
	for i := len(p.params) - 1; i >= 0; i-- {
		if p.params[i].Name == name {
			return p.params[i]
		}
	}
	return nil
}

func (p *Parser) parseExpression() queryir.Expr {
	p.depth++
	defer func() { p.depth-- }()
	if p.depth > MaxNestingDepth {
		p.addError("maximum nesting depth (%d) exceeded", MaxNestingDepth)
		return nil
	}

	if p.curToken.Type == IDENT && p.peekToken.Type == ARROW {
		return p.parseLambda()
	}
	return p.parseBinary(0)
}

func (p *Parser) parseLambda() *queryir.Lambda {
	param := &queryir.Param{Name: p.curToken.Literal}
	p.nextToken()
	p.nextToken()

	p.params = append(p.params, param)
	body := p.parseExpression()
	p.params = p.params[:len(p.params)-1]

	return &queryir.Lambda{Param: param, Body: body}
}

var binaryLevels = []map[TokenType]queryir.Op{
	{OR: queryir.OpOrElse},
	{AND: queryir.OpAndAlso},
	{EQ: queryir.OpEqual, NE: queryir.OpNotEqual},
	{LT: queryir.OpLessThan, LE: queryir.OpLessThanOrEqual, GT: queryir.OpGreaterThan, GE: queryir.OpGreaterThanOrEqual},
	{PLUS: queryir.OpAdd, MINUS: queryir.OpSubtract},
	{STAR: queryir.OpMultiply, SLASH: queryir.OpDivide, PERCENT: queryir.OpModulo},
}

// parseBinary parses left-associative operators from binaryLevels[level]
// upward.
func (p *Parser) parseBinary(level int) queryir.Expr {
	if level == len(binaryLevels) {
		return p.parseUnary()
	}
	left := p.parseBinary(level + 1)
	for {
		op, ok := binaryLevels[level][p.curToken.Type]
		if !ok || left == nil {
			return left
		}
		p.nextToken()
		right := p.parseBinary(level + 1)
		if right == nil {
			return nil
		}
		left = &queryir.Binary{Op: op, Left: left, Right: right}
	}
}

func (p *Parser) parseUnary() queryir.Expr {
	switch p.curToken.Type {
	case NOT:
		p.nextToken()
		operand := p.parseUnary()
		if operand == nil {
			return nil
		}
		return queryir.Not(operand)
	case MINUS:
		p.nextToken()
		operand := p.parseUnary()
		if operand == nil {
			return nil
		}
		if c, ok := operand.(*queryir.Const); ok && c.Name == "" {
			switch v := c.Value.(type) {
			case int:
				return queryir.Val(-v)
			case float64:
				return queryir.Val(-v)
			}
		}
		return queryir.Neg(operand)
	}
	return p.parsePostfix(p.parsePrimary())
}

func (p *Parser) parsePostfix(e queryir.Expr) queryir.Expr {
	for e != nil && p.curToken.Type == DOT {
		p.nextToken()
		if p.curToken.Type != IDENT {
			p.addError("expected member name, got %s", p.describe())
			return nil
		}
		name := p.curToken.Literal
		p.nextToken()

		if p.curToken.Type != LPAREN {
			e = queryir.GetT(e, name, p.env.Fields[name])
			continue
		}
		args, ok := p.parseArgs()
		if !ok {
			return nil
		}
		e = p.method(e, name, args)
	}
	return e
}

// parseArgs parses a parenthesized argument list.
func (p *Parser) parseArgs() ([]queryir.Expr, bool) {
	p.nextToken()
	var args []queryir.Expr
	for p.curToken.Type != RPAREN {
		if len(args) > 0 && !p.expect(COMMA) {
			return nil, false
		}
		arg := p.parseExpression()
		if arg == nil {
			return nil, false
		}
		args = append(args, arg)
	}
	p.nextToken()
	return args, true
}

// method builds a method call on recv.
func (p *Parser) method(recv queryir.Expr, name string, args []queryir.Expr) queryir.Expr {
	if st, ok := stageMethods[name]; ok {
		return p.stage(recv, name, st.kind, st.desc, args)
	}
	if terminalMethods[name] {
		c := &queryir.Call{Method: "Enumerable." + name, Receiver: recv}
		if len(args) > 1 {
			p.addError("%s takes at most one argument", name)
			return nil
		}
		if len(args) == 1 {
			fn, ok := args[0].(*queryir.Lambda)
			if !ok {
				p.addError("%s expects a lambda", name)
				return nil
			}
			c.Args = []queryir.Expr{fn}
		}
		return c
	}

	switch {
	case name == "Contains" && isSequence(recv):
		return queryir.Method("List.Contains", recv, args...)
	case name == "Contains" || stringMethods[name]:
		return queryir.Method("String."+name, recv, args...)
	case dateMethods[name]:
		return queryir.Method("DateTime."+name, recv, args...)
	}

	if len(args) > 0 {
		if fn, ok := args[0].(*queryir.Lambda); ok && isSequence(recv) {
			return &queryir.Stage{Kind: queryir.StageKind(name), Source: recv, Fn: fn}
		}
	}
	return queryir.Method("Object."+name, recv, args...)
}

func (p *Parser) stage(recv queryir.Expr, name string, kind queryir.StageKind, desc bool, args []queryir.Expr) queryir.Expr {
	s := &queryir.Stage{Kind: kind, Source: recv, Descending: desc}
	switch kind {
	case queryir.StageTake, queryir.StageSkip:
		if len(args) != 1 {
			p.addError("%s takes one count argument", name)
			return nil
		}
		var n int
		c, ok := args[0].(*queryir.Const)
		if ok {
			n, ok = c.Value.(int)
		}
		if !ok {
			p.addError("%s count must be an integer literal", name)
			return nil
		}
		s.N = n
	case queryir.StageDistinct:
		if len(args) != 0 {
			p.addError("Distinct takes no arguments")
			return nil
		}
	case queryir.StageSingleOrDefault:
		if len(args) > 1 {
			p.addError("SingleOrDefault takes at most one argument")
			return nil
		}
		if len(args) == 1 {
			fn, ok := args[0].(*queryir.Lambda)
			if !ok {
				p.addError("SingleOrDefault expects a lambda")
				return nil
			}
			s.Fn = fn
		}
	default:
		if len(args) != 1 {
			p.addError("%s takes one lambda argument", name)
			return nil
		}
		fn, ok := args[0].(*queryir.Lambda)
		if !ok {
			p.addError("%s expects a lambda", name)
			return nil
		}
		s.Fn = fn
	}
	return s
}

func (p *Parser) parsePrimary() queryir.Expr {
	tok := p.curToken
	switch tok.Type {
	case INT:
		p.nextToken()
		n, err := strconv.Atoi(tok.Literal)
		if err != nil {
			p.addError("invalid integer %s", tok.Literal)
			return nil
		}
		return queryir.Val(n)
	case FLOAT:
		p.nextToken()
		f, err := strconv.ParseFloat(tok.Literal, 64)
		if err != nil {
			p.addError("invalid number %s", tok.Literal)
			return nil
		}
		return queryir.Val(f)
	case STRING:
		p.nextToken()
		return queryir.Val(tok.Literal)
	case TRUE, FALSE:
		p.nextToken()
		return queryir.Val(tok.Type == TRUE)
	case NULL:
		p.nextToken()
		return queryir.Val(nil)
	case DOLLAR:
		return p.parseNamed()
	case LPAREN:
		p.nextToken()
		e := p.parseExpression()
		if e == nil || !p.expect(RPAREN) {
			return nil
		}
		return e
	case LBRACKET:
		return p.parseList()
	case NEW:
		return p.parseObject()
	case IDENT:
		return p.parseIdent()
	case ILLEGAL:
		p.addError("illegal token %q", tok.Literal)
		return nil
	default:
		p.addError("unexpected %s", p.describe())
		return nil
	}
}

func (p *Parser) parseNamed() queryir.Expr {
	p.nextToken()
	if p.curToken.Type != IDENT {
		p.addError("expected parameter name after $")
		return nil
	}
	name := p.curToken.Literal
	v, ok := p.env.Params[name]
	if !ok {
		p.addError("parameter $%s has no value", name)
		return nil
	}
	p.nextToken()
	return queryir.Named(name, v)
}

func (p *Parser) parseList() queryir.Expr {
	p.nextToken()
	values := []any{}
	for p.curToken.Type != RBRACKET {
		if len(values) > 0 && !p.expect(COMMA) {
			return nil
		}
		e := p.parseUnary()
		c, ok := e.(*queryir.Const)
		if !ok {
			if e != nil {
				p.addError("list elements must be literals")
			}
			return nil
		}
		values = append(values, c.Value)
	}
	p.nextToken()
	return queryir.Val(values)
}

func (p *Parser) parseObject() queryir.Expr {
	p.nextToken()
	if !p.expect(LBRACE) {
		return nil
	}
	obj := &queryir.New{}
	for p.curToken.Type != RBRACE {
		if len(obj.Fields) > 0 && !p.expect(COMMA) {
			return nil
		}
		if p.curToken.Type != IDENT {
			p.addError("expected field name, got %s", p.describe())
			return nil
		}
		name := p.curToken.Literal
		p.nextToken()
		if !p.expect(ASSIGN) {
			return nil
		}
		v := p.parseExpression()
		if v == nil {
			return nil
		}
		obj.Fields = append(obj.Fields, queryir.F(name, v))
	}
	p.nextToken()
	return obj
}

func (p *Parser) parseIdent() queryir.Expr {
	name := p.curToken.Literal
	p.nextToken()

	if param := p.lookupParam(name); param != nil {
		return param
	}

	switch {
	case name == "date" && p.curToken.Type == LPAREN:
		return p.parseDate()
	case name == "scope" && p.curToken.Type == LPAREN:
		p.nextToken()
		if p.curToken.Type != IDENT {
			p.addError("expected scope name, got %s", p.describe())
			return nil
		}
		s := &queryir.Scope{Name: p.curToken.Literal}
		p.nextToken()
		if !p.expect(RPAREN) {
			return nil
		}
		return s
	case name == "Root":
		return &queryir.Collection{}
	}

	// NS.Fn(args) is a static call unless Fn is a pipeline method.
	if p.curToken.Type == DOT && p.peekToken.Type == IDENT {
		method := p.peekToken.Literal
		_, isStage := stageMethods[method]
		if !isStage && !terminalMethods[method] && p.isCallAhead() {
			p.nextToken()
			p.nextToken()
			args, ok := p.parseArgs()
			if !ok {
				return nil
			}
			return queryir.Func(name+"."+method, args...)
		}
	}
	return &queryir.Collection{Name: name}
}

// isCallAhead reports whether the token after peekToken opens an argument
// list, using a scratch lexer positioned after peekToken.
func (p *Parser) isCallAhead() bool {
	scratch := *p.l
	return scratch.NextToken().Type == LPAREN
}

func (p *Parser) parseDate() queryir.Expr {
	p.nextToken()
	if p.curToken.Type != STRING {
		p.addError("date expects a string literal, got %s", p.describe())
		return nil
	}
	raw := p.curToken.Literal
	t, err := ParseDate(raw, p.env.Location)
	if err != nil {
		p.addError("invalid date %q: %v", raw, err)
		return nil
	}
	p.nextToken()
	if !p.expect(RPAREN) {
		return nil
	}
	return queryir.Val(t)
}

func isSequence(e queryir.Expr) bool {
	switch n := queryir.Unwrap(e).(type) {
	case *queryir.Collection, *queryir.Scope, *queryir.Stage:
		return true
	case *queryir.Member:
		return n.Type == queryir.TypeList
	case *queryir.Const:
		if n.Value == nil {
			return false
		}
		k := reflect.TypeOf(n.Value).Kind()
		return k == reflect.Slice || k == reflect.Array
	}
	return false
}

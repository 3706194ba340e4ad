package queryir

// Expr is a node of a host-side query pipeline.
//
// This is a sealed interface - only types in this package implement it.
// The marker method pattern prevents external implementations and enables
// exhaustive type switches in the compiler.
//
// Expression nodes fall into three groups:
//   - Sequence terminals: Collection, Scope
//   - Staged operations: Stage (Where, Select, OrderBy, ...)
//   - Scalar expressions: Param, Const, Member, Binary, Unary, Call, New, Lambda
//
// A Query wraps any of these and is itself an Expr, so pipelines compose
// inside lambdas (a predicate may close over another pipeline).
type Expr interface {
	exprNode() // Marker method - seals interface to this package
}

// Type is the coarse static type of a scalar expression.
//
// Translation rules that depend on the operand type (string length,
// string concatenation, list membership) consult it. TypeAny means the
// type is unknown and no type-directed rule applies.
type Type int

const (
	TypeAny Type = iota
	TypeString
	TypeNumber
	TypeBool
	TypeDate
	TypeList
	TypeObject
)

// String returns the lowercase type name used in schemas.
func (t Type) String() string {
	switch t {
	case TypeString:
		return "string"
	case TypeNumber:
		return "number"
	case TypeBool:
		return "bool"
	case TypeDate:
		return "date"
	case TypeList:
		return "list"
	case TypeObject:
		return "object"
	default:
		return "any"
	}
}

// ParseType maps a schema type name to a Type.
// Unknown names return TypeAny and false.
func ParseType(name string) (Type, bool) {
	switch name {
	case "string":
		return TypeString, true
	case "number", "int", "float":
		return TypeNumber, true
	case "bool":
		return TypeBool, true
	case "date":
		return TypeDate, true
	case "list":
		return TypeList, true
	case "object":
		return TypeObject, true
	case "any":
		return TypeAny, true
	default:
		return TypeAny, false
	}
}

// Op identifies a unary or binary operator kind.
//
// The compiler translates operator kinds through a static table. Kinds
// without a translation (Xor, Coalesce, Power) exist so that pipelines
// using them are rejected instead of silently miscompiled.
type Op int

const (
	OpAnd Op = iota
	OpAndAlso
	OpOr
	OpOrElse
	OpEqual
	OpNotEqual
	OpLessThan
	OpLessThanOrEqual
	OpGreaterThan
	OpGreaterThanOrEqual
	OpAdd
	OpSubtract
	OpMultiply
	OpDivide
	OpModulo
	OpNot
	OpNegate
	OpXor
	OpCoalesce
	OpPower
)

var opNames = map[Op]string{
	OpAnd:                "And",
	OpAndAlso:            "AndAlso",
	OpOr:                 "Or",
	OpOrElse:             "OrElse",
	OpEqual:              "Equal",
	OpNotEqual:           "NotEqual",
	OpLessThan:           "LessThan",
	OpLessThanOrEqual:    "LessThanOrEqual",
	OpGreaterThan:        "GreaterThan",
	OpGreaterThanOrEqual: "GreaterThanOrEqual",
	OpAdd:                "Add",
	OpSubtract:           "Subtract",
	OpMultiply:           "Multiply",
	OpDivide:             "Divide",
	OpModulo:             "Modulo",
	OpNot:                "Not",
	OpNegate:             "Negate",
	OpXor:                "Xor",
	OpCoalesce:           "Coalesce",
	OpPower:              "Power",
}

// String returns the operator kind name.
func (o Op) String() string {
	if name, ok := opNames[o]; ok {
		return name
	}
	return "Op(?)"
}

// StageKind names a staged pipeline operation.
//
// It is a string rather than a closed enum: the compiler recognizes the
// kinds declared below and rejects anything else with an unhandled
// construct error.
type StageKind string

const (
	StageWhere           StageKind = "Where"
	StageSelect          StageKind = "Select"
	StageOrderBy         StageKind = "OrderBy"
	StageThenBy          StageKind = "ThenBy"
	StageTake            StageKind = "Take"
	StageSkip            StageKind = "Skip"
	StageDistinct        StageKind = "Distinct"
	StageGroupBy         StageKind = "GroupBy"
	StageSingleOrDefault StageKind = "SingleOrDefault"
)

// Collection is a named collection handle.
//
// It terminates a pipeline. An empty Name stands for the root collection
// passed to the compiler entry point.
type Collection struct {
	Name string
}

func (*Collection) exprNode() {}

// Scope is a handle to a sequence defined outside the pipeline being
// compiled.
//
// Referenced from inside a lambda, a scope sequence is hoisted once as a
// shared LET binding rather than re-evaluated per reference.
type Scope struct {
	Name string
}

func (*Scope) exprNode() {}

// Stage is one staged pipeline operation applied to Source.
//
// Field usage by kind:
//   - Where, Select, OrderBy, ThenBy, GroupBy: Fn
//   - SingleOrDefault: Fn optional
//   - Take, Skip: N
//   - OrderBy, ThenBy: Descending
//   - Distinct: none
type Stage struct {
	Kind       StageKind
	Source     Expr
	Fn         *Lambda
	N          int
	Descending bool
}

func (*Stage) exprNode() {}

// Lambda is a single-parameter function over a row.
type Lambda struct {
	Param *Param
	Body  Expr
}

func (*Lambda) exprNode() {}

// Param is a lambda-bound row parameter.
type Param struct {
	Name string
	Type Type
}

func (*Param) exprNode() {}

// Const is a literal or captured value.
//
// Name is the preferred bind-variable name. Literals leave it empty and
// get the default; captured values carry the name they were captured under.
type Const struct {
	Value any
	Name  string
}

func (*Const) exprNode() {}

// Member is a field access on Of.
type Member struct {
	Of   Expr
	Name string
	Type Type
}

func (*Member) exprNode() {}

// Binary is a binary operator application.
type Binary struct {
	Op    Op
	Left  Expr
	Right Expr
}

func (*Binary) exprNode() {}

// Unary is a unary operator application.
type Unary struct {
	Op      Op
	Operand Expr
}

func (*Unary) exprNode() {}

// Call is a method or function call.
//
// Method is the callable identity, "<Type>.<Name>", for example
// "String.StartsWith", "Enumerable.Any" or "Aql.Trim". Receiver is nil
// for static calls.
type Call struct {
	Method   string
	Receiver Expr
	Args     []Expr
}

func (*Call) exprNode() {}

// Field is one member of an object literal.
type Field struct {
	Name  string
	Value Expr
}

// New is an object literal with ordered members.
type New struct {
	Fields []Field
}

func (*New) exprNode() {}

// Query is a composable pipeline value.
//
// Node is the outermost pipeline node. Queries are immutable: each builder
// method returns a new Query wrapping a new Stage.
type Query struct {
	Node Expr
}

func (*Query) exprNode() {}

// Unwrap strips Query wrappers from e.
func Unwrap(e Expr) Expr {
	for {
		q, ok := e.(*Query)
		if !ok || q == nil {
			return e
		}
		e = q.Node
	}
}

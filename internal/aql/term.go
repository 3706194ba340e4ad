package aql

// Term is a compiled scalar or boolean AQL expression.
//
// This is a sealed interface - only types in this package implement it.
// Terms are immutable once built; rewrite passes produce new terms and
// return the input unchanged when nothing was rewritten.
//
// Compound reports whether the term is an operator application that may
// need parentheses when nested under another operator.
type Term interface {
	Compound() bool
	termNode() // Marker method - seals interface to this package
}

// Primitive is verbatim AQL text, such as a numeric literal, a collection
// name or a fixed function argument. User values never become Primitives.
type Primitive struct {
	Text string
}

// Constant is a value rendered as a bind variable.
type Constant struct {
	Value any
	Name  string // preferred bind-variable name
}

// ParameterRef refers to a lambda-bound row parameter by its declared name.
// The renderer maps it to the loop variable representing that row.
type ParameterRef struct {
	Name string
}

// MemberAccess is attribute access, rendered as Of.Name.
type MemberAccess struct {
	Of   Term
	Name string
}

// FunctionCall is a call to an AQL function, rendered as NAME(a, b).
type FunctionCall struct {
	Name string
	Args []Term
}

// InList is a membership test, rendered as Element IN List.
type InList struct {
	Element Term
	List    Term
}

// Concat is string concatenation. Two string constants fold into a single
// bind variable; anything else renders as CONCAT(l, r).
type Concat struct {
	Left  Term
	Right Term
	Name  string // preferred bind-variable name for the folded constant
}

// Unary is a prefix operator application.
type Unary struct {
	Op      Operator
	Operand Term
}

// Binary is an infix operator application.
type Binary struct {
	Op    Operator
	Left  Term
	Right Term
}

// Member is one member of an ObjectProjection.
type Member struct {
	Name  string
	Value Term
}

// ObjectProjection is an object literal with ordered members.
type ObjectProjection struct {
	Members []Member
}

// Aggregate applies an aggregate function to a sequence.
//
// Body is evaluated per row with RowParam bound to the row; a nil Body
// counts rows. Inside a grouping, aggregates over the grouped rows are
// extracted into COLLECT ... AGGREGATE; elsewhere they render as a
// function over a subquery.
type Aggregate struct {
	Func     string
	Source   Term
	RowParam string
	Body     Term
}

// VariableRef refers to a query variable.
type VariableRef struct {
	Var *Variable
}

// CollectionRef embeds a compiled sub-pipeline.
type CollectionRef struct {
	Node *CollectionNode
}

// GroupingRef embeds a compiled grouping. It is produced when a rewrite
// pass descends into a collection's grouping.
type GroupingRef struct {
	Node *GroupingNode
}

func (*Primitive) Compound() bool        { return false }
func (*Constant) Compound() bool         { return false }
func (*ParameterRef) Compound() bool     { return false }
func (*MemberAccess) Compound() bool     { return false }
func (*FunctionCall) Compound() bool     { return false }
func (*InList) Compound() bool           { return true }
func (*Concat) Compound() bool           { return false }
func (*Unary) Compound() bool            { return true }
func (*Binary) Compound() bool           { return true }
func (*ObjectProjection) Compound() bool { return false }
func (*Aggregate) Compound() bool        { return false }
func (*VariableRef) Compound() bool      { return false }
func (*CollectionRef) Compound() bool    { return false }
func (*GroupingRef) Compound() bool      { return false }

func (*Primitive) termNode()        {}
func (*Constant) termNode()         {}
func (*ParameterRef) termNode()     {}
func (*MemberAccess) termNode()     {}
func (*FunctionCall) termNode()     {}
func (*InList) termNode()           {}
func (*Concat) termNode()           {}
func (*Unary) termNode()            {}
func (*Binary) termNode()           {}
func (*ObjectProjection) termNode() {}
func (*Aggregate) termNode()        {}
func (*VariableRef) termNode()      {}
func (*CollectionRef) termNode()    {}
func (*GroupingRef) termNode()      {}

// Variable is a legalized, de-duplicated AQL identifier.
// Variables compare by identity: two variables are the same only if they
// come from the same allocation.
type Variable struct {
	Name string
}

// Raw is shorthand for a Primitive.
func Raw(text string) *Primitive { return &Primitive{Text: text} }

// Call is shorthand for a FunctionCall.
func Call(name string, args ...Term) *FunctionCall {
	return &FunctionCall{Name: name, Args: args}
}

// Ref is shorthand for a VariableRef.
func Ref(v *Variable) *VariableRef { return &VariableRef{Var: v} }

// NewConcat builds a concatenation, folding two string constants into a
// single constant named name.
func NewConcat(l, r Term, name string) Term {
	c := &Concat{Left: l, Right: r, Name: name}
	if folded, ok := foldConcat(c); ok {
		return folded
	}
	return c
}

package aql

// Operator is an AQL operator token.
type Operator string

const (
	OpOr    Operator = "||"
	OpAnd   Operator = "&&"
	OpEq    Operator = "=="
	OpNe    Operator = "!="
	OpLike  Operator = "LIKE"
	OpLt    Operator = "<"
	OpLe    Operator = "<="
	OpGt    Operator = ">"
	OpGe    Operator = ">="
	OpAdd   Operator = "+"
	OpSub   Operator = "-"
	OpMul   Operator = "*"
	OpDiv   Operator = "/"
	OpMod   Operator = "%"
	OpNot   Operator = "!"
	OpMinus Operator = "-"
)

// Binding strength, lowest first, following the AQL operator precedence
// table.
const (
	precOr = iota + 1
	precAnd
	precEquality
	precIn
	precRelational
	precAdditive
	precMultiplicative
	precUnary
	precAtom
)

var binaryPrecedence = map[Operator]int{
	OpOr:   precOr,
	OpAnd:  precAnd,
	OpEq:   precEquality,
	OpNe:   precEquality,
	OpLike: precEquality,
	OpLt:   precRelational,
	OpLe:   precRelational,
	OpGt:   precRelational,
	OpGe:   precRelational,
	OpAdd:  precAdditive,
	OpSub:  precAdditive,
	OpMul:  precMultiplicative,
	OpDiv:  precMultiplicative,
	OpMod:  precMultiplicative,
}

// IsBinary reports whether op is a known binary operator.
func IsBinary(op Operator) bool {
	_, ok := binaryPrecedence[op]
	return ok
}

func associative(op Operator) bool {
	switch op {
	case OpOr, OpAnd, OpAdd, OpMul:
		return true
	}
	return false
}

func precedence(t Term) int {
	switch n := t.(type) {
	case *Binary:
		if p, ok := binaryPrecedence[n.Op]; ok {
			return p
		}
		return precOr
	case *InList:
		return precIn
	case *Unary:
		return precUnary
	}
	return precAtom
}

// needsParens reports whether child must be parenthesized as an operand of
// an operator with the given precedence.
func needsParens(parent int, child Term, right bool, assoc bool) bool {
	if !child.Compound() {
		return false
	}
	p := precedence(child)
	if p < parent {
		return true
	}
	return p == parent && right && !assoc
}

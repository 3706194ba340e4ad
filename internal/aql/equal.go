package aql

import "reflect"

// Equal reports whether two terms are structurally equal.
//
// Variables compare by identity, constants by value and preferred name,
// and embedded collections or groupings by node identity. Everything else
// compares member-wise.
func Equal(a, b Term) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	switch x := a.(type) {
	case *Primitive:
		y, ok := b.(*Primitive)
		return ok && x.Text == y.Text
	case *Constant:
		y, ok := b.(*Constant)
		return ok && x.Name == y.Name && reflect.DeepEqual(x.Value, y.Value)
	case *ParameterRef:
		y, ok := b.(*ParameterRef)
		return ok && x.Name == y.Name
	case *MemberAccess:
		y, ok := b.(*MemberAccess)
		return ok && x.Name == y.Name && Equal(x.Of, y.Of)
	case *FunctionCall:
		y, ok := b.(*FunctionCall)
		return ok && x.Name == y.Name && equalAll(x.Args, y.Args)
	case *InList:
		y, ok := b.(*InList)
		return ok && Equal(x.Element, y.Element) && Equal(x.List, y.List)
	case *Concat:
		y, ok := b.(*Concat)
		return ok && x.Name == y.Name && Equal(x.Left, y.Left) && Equal(x.Right, y.Right)
	case *Unary:
		y, ok := b.(*Unary)
		return ok && x.Op == y.Op && Equal(x.Operand, y.Operand)
	case *Binary:
		y, ok := b.(*Binary)
		return ok && x.Op == y.Op && Equal(x.Left, y.Left) && Equal(x.Right, y.Right)
	case *ObjectProjection:
		y, ok := b.(*ObjectProjection)
		if !ok || len(x.Members) != len(y.Members) {
			return false
		}
		for i := range x.Members {
			if x.Members[i].Name != y.Members[i].Name || !Equal(x.Members[i].Value, y.Members[i].Value) {
				return false
			}
		}
		return true
	case *Aggregate:
		y, ok := b.(*Aggregate)
		return ok && x.Func == y.Func && x.RowParam == y.RowParam &&
			Equal(x.Source, y.Source) && Equal(x.Body, y.Body)
	case *VariableRef:
		y, ok := b.(*VariableRef)
		return ok && x.Var == y.Var
	case *CollectionRef:
		y, ok := b.(*CollectionRef)
		return ok && x.Node == y.Node
	case *GroupingRef:
		y, ok := b.(*GroupingRef)
		return ok && x.Node == y.Node
	}
	return false
}

func equalAll(a, b []Term) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !Equal(a[i], b[i]) {
			return false
		}
	}
	return true
}

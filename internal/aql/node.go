package aql

import "fmt"

// OutputBehavior tells the execution layer how to shape the result rows.
// It is carried out of band; it never changes the query text.
type OutputBehavior int

const (
	// NormalList returns all rows.
	NormalList OutputBehavior = iota

	// SingleOrDefault returns the first row or null.
	SingleOrDefault
)

// String returns the behavior name.
func (o OutputBehavior) String() string {
	if o == SingleOrDefault {
		return "SingleOrDefault"
	}
	return "NormalList"
}

// ParseOutputBehavior is the inverse of String.
func ParseOutputBehavior(s string) (OutputBehavior, error) {
	switch s {
	case "NormalList", "":
		return NormalList, nil
	case "SingleOrDefault":
		return SingleOrDefault, nil
	}
	return NormalList, fmt.Errorf("unknown output behavior %q", s)
}

// StackElement is a pending pipeline stage awaiting the collection or
// grouping node that consumes it.
//
// This is a sealed interface. Elements are consumed in declaration order.
type StackElement interface {
	stackElement()
}

// Clause is a row-level clause rendered between FOR and RETURN.
type Clause interface {
	clause()
}

// Filter keeps rows where Body holds. RowParam is the predicate's
// declared row parameter.
type Filter struct {
	Body     Term
	RowParam string
}

// Select projects each row to Body.
type Select struct {
	Body     Term
	RowParam string
}

// SortKey is one key of a SORT clause.
type SortKey struct {
	Term       Term
	RowParam   string
	Descending bool
}

// Sort orders rows. Then marks a secondary key that extends the active
// sort instead of replacing it.
type Sort struct {
	Keys []SortKey
	Then bool
}

// Limit keeps Count rows after skipping Offset. A negative Count means
// no upper bound.
type Limit struct {
	Offset int
	Count  int
}

// Output sets the result's output behavior.
type Output struct {
	Behavior OutputBehavior
}

// Distinct removes duplicate result rows.
type Distinct struct{}

// FilterClause is a run of consecutive filters rendered as one FILTER line.
type FilterClause struct {
	Filters []*Filter
}

func (*Filter) stackElement()       {}
func (*Select) stackElement()       {}
func (*Sort) stackElement()         {}
func (*Limit) stackElement()        {}
func (*Output) stackElement()       {}
func (*Distinct) stackElement()     {}
func (*GroupingNode) stackElement() {}

func (*FilterClause) clause() {}
func (*Sort) clause()         {}
func (*Limit) clause()        {}

// maxLimit stands in for "no upper bound" in LIMIT offset, count.
const maxLimit = 9007199254740991

// appendClause adds a filter, sort or limit to cs in declaration order.
//
// Consecutive filters merge into one FILTER line. A replacing sort drops
// earlier sorts that no limit depends on; a secondary sort extends the
// latest sort. A limit following a limit composes into one window.
func appendClause(cs []Clause, e StackElement) []Clause {
	switch e := e.(type) {
	case *Filter:
		if len(cs) > 0 {
			if fc, ok := cs[len(cs)-1].(*FilterClause); ok {
				fc.Filters = append(fc.Filters, e)
				return cs
			}
		}
		return append(cs, &FilterClause{Filters: []*Filter{e}})
	case *Sort:
		if e.Then {
			for i := len(cs) - 1; i >= 0; i-- {
				if _, ok := cs[i].(*Limit); ok {
					break
				}
				if s, ok := cs[i].(*Sort); ok {
					s.Keys = append(s.Keys, e.Keys...)
					return cs
				}
			}
		}
		kept := cs[:0:0]
		limited := false
		for i := len(cs) - 1; i >= 0; i-- {
			if _, ok := cs[i].(*Limit); ok {
				limited = true
			}
			if _, ok := cs[i].(*Sort); ok && !limited {
				continue
			}
			kept = append(kept, cs[i])
		}
		for i, j := 0, len(kept)-1; i < j; i, j = i+1, j-1 {
			kept[i], kept[j] = kept[j], kept[i]
		}
		return append(kept, &Sort{Keys: append([]SortKey(nil), e.Keys...)})
	case *Limit:
		if len(cs) > 0 {
			if prev, ok := cs[len(cs)-1].(*Limit); ok {
				cs[len(cs)-1] = composeLimit(prev, e)
				return cs
			}
		}
		return append(cs, &Limit{Offset: e.Offset, Count: e.Count})
	}
	return cs
}

func composeLimit(first, then *Limit) *Limit {
	out := &Limit{Offset: first.Offset + then.Offset, Count: then.Count}
	if first.Count >= 0 {
		remaining := first.Count - then.Offset
		if remaining < 0 {
			remaining = 0
		}
		if out.Count < 0 || remaining < out.Count {
			out.Count = remaining
		}
	}
	return out
}

// CollectionNode is one FOR loop: a source, its row variable and the
// clauses applied to it.
//
// Grouping and Select are mutually exclusive: a grouping renders its own
// RETURN. A bracketed node renders parenthesized so it can serve as
// another node's source or as a term.
type CollectionNode struct {
	Source    Term
	RowVar    *Variable
	Clauses   []Clause
	Select    *Select
	Grouping  *GroupingNode
	Distinct  bool
	Output    OutputBehavior
	Bracketed bool
}

// Consume attaches pending stack elements, given in declaration order.
func (n *CollectionNode) Consume(elems []StackElement) error {
	for _, e := range elems {
		switch e := e.(type) {
		case *Filter, *Sort, *Limit:
			if n.Grouping != nil {
				return Unhandled("", "row clause after grouping reached the enclosing collection")
			}
			n.Clauses = appendClause(n.Clauses, e)
		case *Select:
			if n.Select != nil || n.Grouping != nil {
				return Unhandled("", "collection already has a projection")
			}
			n.Select = e
		case *Distinct:
			if n.Grouping != nil {
				return Unhandled("", "distinct before grouping")
			}
			n.Distinct = true
		case *Output:
			n.Output = e.Behavior
		case *GroupingNode:
			if n.Select != nil || n.Grouping != nil || n.Distinct {
				return Unhandled("", "grouping over a projected collection")
			}
			n.Grouping = e
			if e.Output != NormalList {
				n.Output = e.Output
			}
		default:
			return Unhandled(fmt.Sprintf("%T", e), "unknown stack element")
		}
	}
	return nil
}

// GroupKey is one member of a grouping key projection. Var binds the key
// in COLLECT and replaces later references to the key member.
type GroupKey struct {
	Name  string
	Value Term
	Var   *Variable
}

// AggregateBinding is an aggregate extracted into COLLECT ... AGGREGATE.
type AggregateBinding struct {
	Var      *Variable
	Term     *FunctionCall
	RowParam string
}

// GroupingNode is a COLLECT over its enclosing collection's rows.
//
// KeyParam is the key selector's row parameter. Scalar marks a key
// selector that was not an object literal; its single key stands for the
// whole key. Aggregates is filled only by the rewrite pass.
type GroupingNode struct {
	Keys        []GroupKey
	KeyParam    string
	Scalar      bool
	GroupVar    *Variable
	Aggregates  []AggregateBinding
	Select      *Select
	Post        []Clause
	Distinct    bool
	Output      OutputBehavior
	OuterRowVar *Variable

	direct    bool
	rewritten bool
}

// Consume attaches the stages declared after the grouping, in
// declaration order. The first projection becomes the group's RETURN;
// filters, sorts and limits apply to groups.
func (g *GroupingNode) Consume(elems []StackElement) error {
	for _, e := range elems {
		switch e := e.(type) {
		case *Filter, *Sort, *Limit:
			g.Post = appendClause(g.Post, e)
		case *Select:
			if g.Select != nil {
				return Unhandled("", "grouping already has a projection")
			}
			g.Select = e
		case *Distinct:
			g.Distinct = true
		case *Output:
			g.Output = e.Behavior
		case *GroupingNode:
			return Unhandled("", "nested grouping without a boundary")
		default:
			return Unhandled(fmt.Sprintf("%T", e), "unknown stack element")
		}
	}
	return nil
}

// DirectAccess reports whether the rewritten group body references the
// grouped rows themselves, which requires INTO.
func (g *GroupingNode) DirectAccess() bool {
	return g.direct
}

// Let is a hoisted LET binding.
type Let struct {
	Var  *Variable
	Node *CollectionNode
}

// Program is a compiled query ready for rendering: hoisted bindings
// followed by either a root collection or a scalar RETURN.
type Program struct {
	Lets   []*Let
	Root   *CollectionNode
	Scalar Term
	Output OutputBehavior
}

// Query is the compiler's output triple.
type Query struct {
	Text     string
	BindVars map[string]any
	Output   OutputBehavior
}

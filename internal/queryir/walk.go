package queryir

import "sort"

// Walk visits e and its children depth-first, parent before children.
// If fn returns false the children of that node are skipped.
func Walk(e Expr, fn func(Expr) bool) {
	if e == nil || !fn(e) {
		return
	}
	switch n := e.(type) {
	case *Query:
		if n != nil {
			Walk(n.Node, fn)
		}
	case *Stage:
		Walk(n.Source, fn)
		if n.Fn != nil {
			Walk(n.Fn, fn)
		}
	case *Lambda:
		if n.Param != nil {
			Walk(n.Param, fn)
		}
		Walk(n.Body, fn)
	case *Member:
		Walk(n.Of, fn)
	case *Binary:
		Walk(n.Left, fn)
		Walk(n.Right, fn)
	case *Unary:
		Walk(n.Operand, fn)
	case *Call:
		if n.Receiver != nil {
			Walk(n.Receiver, fn)
		}
		for _, a := range n.Args {
			Walk(a, fn)
		}
	case *New:
		for _, f := range n.Fields {
			Walk(f.Value, fn)
		}
	}
}

// FreeParams returns the sorted names of parameters referenced in e that
// are not bound by a lambda inside e.
//
// A pipeline with no free parameters is closed: it can be evaluated once,
// independently of any enclosing row.
func FreeParams(e Expr) []string {
	free := map[string]bool{}
	collectFree(e, map[string]int{}, free)
	names := make([]string, 0, len(free))
	for name := range free {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func collectFree(e Expr, bound map[string]int, free map[string]bool) {
	switch n := e.(type) {
	case nil:
	case *Param:
		if bound[n.Name] == 0 {
			free[n.Name] = true
		}
	case *Lambda:
		if n.Param != nil {
			bound[n.Param.Name]++
			defer func() { bound[n.Param.Name]-- }()
		}
		collectFree(n.Body, bound, free)
	case *Query:
		if n != nil {
			collectFree(n.Node, bound, free)
		}
	case *Stage:
		collectFree(n.Source, bound, free)
		if n.Fn != nil {
			collectFree(n.Fn, bound, free)
		}
	case *Member:
		collectFree(n.Of, bound, free)
	case *Binary:
		collectFree(n.Left, bound, free)
		collectFree(n.Right, bound, free)
	case *Unary:
		collectFree(n.Operand, bound, free)
	case *Call:
		collectFree(n.Receiver, bound, free)
		for _, a := range n.Args {
			collectFree(a, bound, free)
		}
	case *New:
		for _, f := range n.Fields {
			collectFree(f.Value, bound, free)
		}
	}
}

// Package queryir provides the host-side query pipeline representation
// consumed by the AQL compiler.
//
// A pipeline is a tree of Expr nodes built with the fluent helpers in this
// package (From, Where, Select, ...) or parsed from text by the lambda
// package. The compiler never evaluates a pipeline: it reads the tree and
// emits an AQL query.
//
// SEALED INTERFACES:
//
// Expr is a sealed interface using the marker method pattern. Only types
// in this package implement it, so the compiler can switch exhaustively:
//
//	switch n := e.(type) {
//	case *Stage:
//	    // staged operation
//	case *Collection, *Scope:
//	    // sequence terminal
//	default:
//	    // scalar expression
//	}
//
// IDENTITY:
//
// Format renders a pipeline in a compact notation. Two pipelines with the
// same Format compile to the same AQL fragment, so the compiler keys
// hoisted LET bindings on it.
//
// VALIDATION:
//
// Validate reports constructs the compiler rejects before compilation is
// attempted, plus advisory findings for shapes that compile to surprising
// AQL.
package queryir

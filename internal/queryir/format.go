package queryir

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

var opSymbols = map[Op]string{
	OpAnd:                "&",
	OpAndAlso:            "&&",
	OpOr:                 "|",
	OpOrElse:             "||",
	OpEqual:              "==",
	OpNotEqual:           "!=",
	OpLessThan:           "<",
	OpLessThanOrEqual:    "<=",
	OpGreaterThan:        ">",
	OpGreaterThanOrEqual: ">=",
	OpAdd:                "+",
	OpSubtract:           "-",
	OpMultiply:           "*",
	OpDivide:             "/",
	OpModulo:             "%",
	OpXor:                "^",
	OpCoalesce:           "??",
	OpPower:              "**",
	OpNot:                "!",
	OpNegate:             "-",
}

// Format renders an expression in a compact host-like notation.
//
// The output is used in diagnostics and as the structural identity of
// hoisted scope sequences: two expressions with the same Format compile
// to the same query fragment.
func Format(e Expr) string {
	var b strings.Builder
	format(&b, e)
	return b.String()
}

func format(b *strings.Builder, e Expr) {
	switch n := e.(type) {
	case nil:
		b.WriteString("<nil>")
	case *Query:
		if n == nil {
			b.WriteString("<nil>")
			return
		}
		format(b, n.Node)
	case *Collection:
		if n.Name == "" {
			b.WriteString("Root")
			return
		}
		fmt.Fprintf(b, "Collection(%s)", n.Name)
	case *Scope:
		fmt.Fprintf(b, "Scope(%s)", n.Name)
	case *Stage:
		format(b, n.Source)
		b.WriteByte('.')
		b.WriteString(stageName(n))
		b.WriteByte('(')
		switch {
		case n.Kind == StageTake || n.Kind == StageSkip:
			b.WriteString(strconv.Itoa(n.N))
		case n.Fn != nil:
			format(b, n.Fn)
		}
		b.WriteByte(')')
	case *Lambda:
		if n.Param != nil {
			b.WriteString(n.Param.Name)
		}
		b.WriteString(" => ")
		format(b, n.Body)
	case *Param:
		b.WriteString(n.Name)
	case *Const:
		if n.Name != "" {
			b.WriteString("$")
			b.WriteString(n.Name)
			b.WriteByte('=')
		}
		b.WriteString(formatValue(n.Value))
	case *Member:
		format(b, n.Of)
		b.WriteByte('.')
		b.WriteString(n.Name)
	case *Binary:
		b.WriteByte('(')
		format(b, n.Left)
		b.WriteByte(' ')
		b.WriteString(symbol(n.Op))
		b.WriteByte(' ')
		format(b, n.Right)
		b.WriteByte(')')
	case *Unary:
		b.WriteString(symbol(n.Op))
		format(b, n.Operand)
	case *Call:
		name := n.Method
		if n.Receiver != nil {
			format(b, n.Receiver)
			b.WriteByte('.')
			if i := strings.LastIndexByte(name, '.'); i >= 0 {
				name = name[i+1:]
			}
		}
		b.WriteString(name)
		b.WriteByte('(')
		for i, a := range n.Args {
			if i > 0 {
				b.WriteString(", ")
			}
			format(b, a)
		}
		b.WriteByte(')')
	case *New:
		b.WriteString("new { ")
		for i, f := range n.Fields {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(f.Name)
			b.WriteString(" = ")
			format(b, f.Value)
		}
		b.WriteString(" }")
	default:
		fmt.Fprintf(b, "<%T>", e)
	}
}

func stageName(s *Stage) string {
	if s.Descending && (s.Kind == StageOrderBy || s.Kind == StageThenBy) {
		return string(s.Kind) + "Descending"
	}
	return string(s.Kind)
}

func symbol(op Op) string {
	if s, ok := opSymbols[op]; ok {
		return s
	}
	return op.String()
}

func formatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return "null"
	case string:
		return strconv.Quote(val)
	case bool, int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return fmt.Sprintf("%v", val)
	case float32:
		return formatFloat(float64(val), 32)
	case float64:
		return formatFloat(val, 64)
	case time.Time:
		return "date(" + strconv.Quote(val.Format(time.RFC3339Nano)) + ")"
	default:
		return fmt.Sprintf("%#v", val)
	}
}

// formatFloat keeps a fraction or exponent on every float, so 1.0 and the
// integer 1 format differently.
func formatFloat(f float64, bits int) string {
	s := strconv.FormatFloat(f, 'g', -1, bits)
	if !strings.ContainsAny(s, ".eIN") {
		s += ".0"
	}
	return s
}

package queryir

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFormat(t *testing.T) {
	name := Fn("x", func(x *Param) Expr { return x.Get("Name") })

	tests := []struct {
		name string
		expr Expr
		want string
	}{
		{"nil", nil, "<nil>"},
		{"root", Root(), "Root"},
		{"collection", From("Project"), "Collection(Project)"},
		{"scope", ScopeOf("Client"), "Scope(Client)"},
		{
			"where take",
			From("Project").
				Where(Fn("x", func(x *Param) Expr { return Eq(x.Get("Name"), Val("A")) })).
				Take(5),
			`Collection(Project).Where(x => (x.Name == "A")).Take(5)`,
		},
		{"descending", Root().OrderByDescending(name), "Root.OrderByDescending(x => x.Name)"},
		{"then by", Root().OrderBy(name).ThenBy(name), "Root.OrderBy(x => x.Name).ThenBy(x => x.Name)"},
		{"distinct", Root().Distinct(), "Root.Distinct()"},
		{"terminal", Root().Count(nil), "Root.Count()"},
		{"terminal with lambda", Root().Any(name), "Root.Any(x => x.Name)"},
		{"named constant", Named("min", 2), "$min=2"},
		{"null", Val(nil), "null"},
		{"integral float", Val(1.0), "1.0"},
		{"fractional float", Val(2.5), "2.5"},
		{"float32", Val(float32(0.5)), "0.5"},
		{"large float", Val(1e21), "1e+21"},
		{"date", Val(time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)), `date("2024-01-02T00:00:00Z")`},
		{"not", Not(GetT(&Param{Name: "x"}, "Active", TypeBool)), "!x.Active"},
		{"static call", Func("Aql.Trim", Get(&Param{Name: "x"}, "A")), "Aql.Trim(x.A)"},
		{"method call", StartsWith(Get(&Param{Name: "x"}, "A"), Val("p")), `x.A.StartsWith("p")`},
		{
			"object",
			Obj(F("A", Get(&Param{Name: "x"}, "A")), F("N", Val(1))),
			"new { A = x.A, N = 1 }",
		},
		{"comparison", Le(Val(1), Ge(Val(2), Val(3))), "(1 <= (2 >= 3))"},
		{"arithmetic", Mod(Div(Val(8), Val(4)), Val(3)), "((8 / 4) % 3)"},
		{"untranslated operator", &Binary{Op: OpPower, Left: Val(2), Right: Val(3)}, "(2 ** 3)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Format(tt.expr))
		})
	}
}

func TestFormatIsStructural(t *testing.T) {
	build := func() Expr {
		return ScopeOf("Client").Where(Fn("c", func(c *Param) Expr { return c.Get("Active") }))
	}

	assert.Equal(t, Format(build()), Format(build()))
	assert.NotEqual(t, Format(build()), Format(ScopeOf("Client")))
}

func TestFormatDistinguishesNumericKinds(t *testing.T) {
	tier := func(v any) Expr {
		return ScopeOf("Client").Where(Fn("c", func(c *Param) Expr { return Eq(c.Get("Tier"), Val(v)) }))
	}

	assert.NotEqual(t, Format(tier(1)), Format(tier(1.0)))
	assert.Equal(t, Format(tier(1.0)), Format(tier(float64(1))))
}

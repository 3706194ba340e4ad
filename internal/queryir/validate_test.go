package queryir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate_CompilablePipeline(t *testing.T) {
	q := From("Project").
		Where(Fn("x", func(x *Param) Expr { return Eq(x.Get("Name"), Val("A")) })).
		OrderBy(Fn("x", func(x *Param) Expr { return x.Get("Name") })).
		Take(10).
		Select(Fn("x", func(x *Param) Expr { return x.Get("Name") }))

	result := Validate(q)

	assert.True(t, result.Compilable)
	assert.Empty(t, result.Warnings)
}

func TestValidate_Blocking(t *testing.T) {
	tests := []struct {
		name    string
		expr    Expr
		warning string
	}{
		{"unknown stage", Root().Stage("Reverse", nil), `unknown stage kind "Reverse"`},
		{"missing lambda", Root().Where(nil), "Where requires a lambda"},
		{"negative take", Root().Take(-1), "Take count must not be negative, got -1"},
		{
			"untranslated operator",
			Root().Where(Fn("x", func(x *Param) Expr { return &Binary{Op: OpXor, Left: x.Get("A"), Right: x.Get("B")} })),
			"operator Xor has no AQL translation",
		},
		{
			"unbound parameter",
			Root().Where(Fn("x", func(x *Param) Expr { return Eq(x.Get("A"), &Param{Name: "y"}) })),
			"parameter y is not bound by any lambda",
		},
		{"lambda without parameter", Root().Where(&Lambda{Body: Val(true)}), "lambda without a parameter"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Validate(tt.expr)

			assert.False(t, result.Compilable)
			require.NotEmpty(t, result.Warnings)
			assert.Contains(t, result.Warnings[0], tt.warning)
		})
	}
}

func TestValidate_Advisory(t *testing.T) {
	key := Fn("x", func(x *Param) Expr { return x.Get("Name") })

	tests := []struct {
		name    string
		expr    Expr
		warning string
	}{
		{"order after take", Root().Take(5).OrderByDescending(key), "OrderByDescending after Take orders only the limited rows"},
		{"then by without order", Root().ThenBy(key), "ThenBy without a preceding OrderBy"},
		{
			"null comparison",
			Root().Where(Fn("x", func(x *Param) Expr { return Ne(x.Get("Owner"), Val(nil)) })),
			"comparison with null also matches missing attributes",
		},
		{
			"shadowed parameter",
			Root().Where(Fn("x", func(x *Param) Expr {
				return Over(x.List("Items")).Any(Fn("x", func(i *Param) Expr { return i.Get("Ok") }))
			})),
			"parameter x shadows an enclosing parameter",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Validate(tt.expr)

			assert.True(t, result.Compilable)
			require.Len(t, result.Warnings, 1)
			assert.Contains(t, result.Warnings[0], tt.warning)
		})
	}
}

func TestValidate_Nil(t *testing.T) {
	result := Validate(nil)
	assert.True(t, result.Compilable)
	assert.Empty(t, result.Warnings)
}

package aql

import (
	"strings"
	"testing"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLegalize(t *testing.T) {
	tests := []struct {
		name      string
		preferred string
		want      string
	}{
		{"plain", "count", "count"},
		{"strips punctuation", "first-name!", "firstname"},
		{"strips spaces and unicode", "grüße welt", "grewelt"},
		{"keeps underscores and digits", "a_1", "a_1"},
		{"empty falls back", "", FallbackName},
		{"nothing legal falls back", "-- !", FallbackName},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Legalize(tt.preferred))
		})
	}
}

func TestLegalizeTruncates(t *testing.T) {
	long := strings.Repeat("a", MaxIdentifierLength+50)
	assert.Len(t, Legalize(long), MaxIdentifierLength)
}

func TestBindVarsCollisionPolicy(t *testing.T) {
	b := NewBindVars()

	assert.Equal(t, "c", b.AddNewVar(1, "c"))
	assert.Equal(t, "c0", b.AddNewVar(2, "c"))
	assert.Equal(t, "c1", b.AddNewVar(3, "c"))
	assert.Equal(t, "name", b.AddNewVar("x", "name"))

	assert.Equal(t, []string{"c", "c0", "c1", "name"}, b.Names())
	assert.Equal(t, map[string]any{"c": 1, "c0": 2, "c1": 3, "name": "x"}, b.Map())
	assert.Equal(t, 4, b.Len())
}

func TestBindVarsDefaultName(t *testing.T) {
	b := NewBindVars()
	assert.Equal(t, "p", b.AddNewVar(1, ""))
	assert.Equal(t, "p0", b.AddNewVar(2, "!!"))
}

func TestBindVarsSuffixRespectsMaxLength(t *testing.T) {
	b := NewBindVars()
	long := strings.Repeat("v", MaxIdentifierLength)

	first := b.AddNewVar(1, long)
	second := b.AddNewVar(2, long)

	assert.Len(t, first, MaxIdentifierLength)
	assert.Len(t, second, MaxIdentifierLength)
	assert.NotEqual(t, first, second)
	assert.True(t, strings.HasSuffix(second, "0"))
}

func TestBindVarsMapIsCopy(t *testing.T) {
	b := NewBindVars()
	b.AddNewVar(1, "c")

	m := b.Map()
	m["c"] = 99

	assert.Equal(t, 1, b.Map()["c"])
}

func TestBindVarsNamesAreUniqueAndLegal(t *testing.T) {
	f := gofakeit.New(7)
	b := NewBindVars()
	seen := map[string]bool{}

	for i := 0; i < 500; i++ {
		preferred := f.RandomString([]string{f.Word(), f.Name(), f.Emoji(), f.Word() + "-" + f.Word(), ""})
		name := b.AddNewVar(i, preferred)

		require.False(t, seen[name], "duplicate name %q", name)
		seen[name] = true
		assert.Equal(t, Legalize(name), name)
		assert.LessOrEqual(t, len(name), MaxIdentifierLength)
	}
	assert.Equal(t, 500, b.Len())
}

func TestVariablesAvoidKeywords(t *testing.T) {
	v := NewVariables()

	assert.Equal(t, "FOR0", v.New("FOR").Name)
	assert.Equal(t, "filter0", v.New("filter").Name)
	assert.Equal(t, "x", v.New("x").Name)
	assert.Equal(t, "x0", v.New("x").Name)
	assert.Equal(t, 4, v.Count())
}

func TestVariablesLeadingDigit(t *testing.T) {
	v := NewVariables()
	assert.Equal(t, "p1st", v.New("1st").Name)
	assert.Equal(t, "p", v.New("").Name)
	assert.Equal(t, "p0", v.New("$").Name)
}

func TestVariablesAreDistinctByIdentity(t *testing.T) {
	v := NewVariables()
	a := v.New("a")
	b := v.New("a")

	assert.NotSame(t, a, b)
	assert.False(t, Equal(Ref(a), Ref(b)))
	assert.True(t, Equal(Ref(a), Ref(a)))
}

func TestVariablesAreValidIdentifiers(t *testing.T) {
	f := gofakeit.New(11)
	v := NewVariables()

	for i := 0; i < 300; i++ {
		preferred := f.RandomString([]string{f.Word(), f.Noun(), f.Verb(), f.Digit() + f.Word(), "RETURN", "sort"})
		got := v.New(preferred)
		assert.True(t, IsIdentifier(got.Name), "not an identifier: %q from %q", got.Name, preferred)
	}
}

func TestIsKeyword(t *testing.T) {
	assert.True(t, IsKeyword("FOR"))
	assert.True(t, IsKeyword("for"))
	assert.True(t, IsKeyword("Collect"))
	assert.False(t, IsKeyword("Project"))
}

func TestIsIdentifier(t *testing.T) {
	assert.True(t, IsIdentifier("Project"))
	assert.True(t, IsIdentifier("_key"))
	assert.True(t, IsIdentifier("a1"))
	assert.False(t, IsIdentifier("1a"))
	assert.False(t, IsIdentifier("my-coll"))
	assert.False(t, IsIdentifier("return"))
	assert.False(t, IsIdentifier(""))
}

package ir

import (
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueryHashDeterminism(t *testing.T) {
	binds := map[string]any{"c": "A", "c0": 2}

	a, err := QueryHash("FOR x IN Project\nRETURN x", binds, "NormalList")
	require.NoError(t, err)
	b, err := QueryHash("FOR x IN Project\nRETURN x", map[string]any{"c0": 2, "c": "A"}, "NormalList")
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.Len(t, a, 64)
	_, err = hex.DecodeString(a)
	assert.NoError(t, err)
}

func TestQueryHashChangesWithInput(t *testing.T) {
	base := MustQueryHash("RETURN 1", nil, "NormalList")

	assert.NotEqual(t, base, MustQueryHash("RETURN 2", nil, "NormalList"))
	assert.NotEqual(t, base, MustQueryHash("RETURN 1", nil, "SingleOrDefault"))
	assert.NotEqual(t, base, MustQueryHash("RETURN 1", map[string]any{"c": 1}, "NormalList"))
}

func TestNumericBindVarsHashEqually(t *testing.T) {
	assert.Equal(t,
		MustQueryHash("RETURN @c", map[string]any{"c": 2}, "NormalList"),
		MustQueryHash("RETURN @c", map[string]any{"c": 2.0}, "NormalList"),
	)
}

func TestSourceHash(t *testing.T) {
	a, err := SourceHash("Root.Take(5)", "Project", nil)
	require.NoError(t, err)
	b, err := SourceHash("Root.Take(5)", "Project", map[string]any{})
	require.NoError(t, err)
	c, err := SourceHash("Root.Take(5)", "Client", nil)
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}

func TestDomainSeparation(t *testing.T) {
	data := []byte(`{}`)
	assert.NotEqual(t, hashWithDomain(DomainQuery, data), hashWithDomain(DomainSource, data))
}

func TestHashWithDomainNullSeparator(t *testing.T) {
	// Without the separator these two would hash the same bytes.
	assert.NotEqual(t,
		hashWithDomain("ab", []byte("c")),
		hashWithDomain("a", []byte("bc")),
	)
}

func TestQueryHashErrors(t *testing.T) {
	_, err := QueryHash("RETURN @c", map[string]any{"c": func() {}}, "NormalList")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "QueryHash")

	assert.Panics(t, func() {
		MustQueryHash("RETURN @c", map[string]any{"c": make(chan int)}, "NormalList")
	})
}

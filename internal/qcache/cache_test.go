package qcache

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/aqlc/internal/aql"
	"github.com/roach88/aqlc/internal/queryir"
)

func byName(value any) *queryir.Query {
	return queryir.From("Project").Where(queryir.Fn("x", func(x *queryir.Param) queryir.Expr {
		return queryir.Eq(x.Get("Name"), queryir.Named("name", value))
	}))
}

func TestCacheHitsOnEqualPipelines(t *testing.T) {
	c, err := New(10, nil)
	require.NoError(t, err)

	first, err := c.Compile(byName("A"), "")
	require.NoError(t, err)
	second, err := c.Compile(byName("A"), "")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, Stats{Hits: 1, Misses: 1, Entries: 1}, c.Stats())
}

func TestCacheDistinguishesConstants(t *testing.T) {
	c, err := New(10, nil)
	require.NoError(t, err)

	a, err := c.Compile(byName("A"), "")
	require.NoError(t, err)
	b, err := c.Compile(byName("B"), "")
	require.NoError(t, err)

	assert.Equal(t, "A", a.BindVars["name"])
	assert.Equal(t, "B", b.BindVars["name"])
	assert.Equal(t, int64(2), c.Stats().Misses)
}

func TestCacheDistinguishesTypes(t *testing.T) {
	c, err := New(10, nil)
	require.NoError(t, err)

	concat := func(t queryir.Type) queryir.Expr {
		return queryir.Root().Select(queryir.Fn("x", func(x *queryir.Param) queryir.Expr {
			return queryir.Add(queryir.GetT(x, "A", t), queryir.GetT(x, "B", t))
		}))
	}

	strs, err := c.Compile(concat(queryir.TypeString), "Project")
	require.NoError(t, err)
	nums, err := c.Compile(concat(queryir.TypeNumber), "Project")
	require.NoError(t, err)

	assert.Contains(t, strs.Text, "CONCAT(x.A, x.B)")
	assert.Contains(t, nums.Text, "x.A + x.B")
}

func TestCacheReturnsCopies(t *testing.T) {
	c, err := New(10, nil)
	require.NoError(t, err)

	q, err := c.Compile(byName("A"), "")
	require.NoError(t, err)
	q.BindVars["name"] = "mutated"

	again, err := c.Compile(byName("A"), "")
	require.NoError(t, err)
	assert.Equal(t, "A", again.BindVars["name"])
}

func TestCacheDoesNotStoreErrors(t *testing.T) {
	c, err := New(10, nil)
	require.NoError(t, err)

	bad := queryir.Root().Stage("Reverse", nil)
	for i := 0; i < 2; i++ {
		_, err := c.Compile(bad, "Project")
		require.Error(t, err)
		assert.True(t, aql.IsUnhandled(err))
	}
	assert.Equal(t, 0, c.Stats().Entries)
}

func TestCacheBypassesUnhashableConstants(t *testing.T) {
	c, err := New(10, nil)
	require.NoError(t, err)

	q, err := c.Compile(byName(func() {}), "")
	require.NoError(t, err)
	assert.Contains(t, q.Text, "@name")
	assert.Equal(t, 0, c.Stats().Entries)
	assert.Equal(t, int64(1), c.Stats().Misses)
}

func TestCacheUsesRegistry(t *testing.T) {
	ext, err := aql.DefaultFunctions.Extend(map[string]string{"Text.Slug": "SLUGIFY"})
	require.NoError(t, err)
	c, err := New(10, ext)
	require.NoError(t, err)

	q, err := c.Compile(queryir.Root().Select(queryir.Fn("x", func(x *queryir.Param) queryir.Expr {
		return queryir.Func("Text.Slug", x.Get("Name"))
	})), "Project")
	require.NoError(t, err)

	assert.Contains(t, q.Text, "RETURN SLUGIFY(x.Name)")
}

func TestCachePurge(t *testing.T) {
	c, err := New(10, nil)
	require.NoError(t, err)

	_, err = c.Compile(byName("A"), "")
	require.NoError(t, err)
	c.Purge()

	assert.Equal(t, 0, c.Stats().Entries)
	assert.Equal(t, int64(1), c.Stats().Misses)
}

func TestCacheConcurrentUse(t *testing.T) {
	c, err := New(0, nil)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			q, err := c.Compile(byName("A"), "")
			assert.NoError(t, err)
			assert.Equal(t, "FOR x IN Project\nFILTER x.Name == @name\nRETURN x", q.Text)
		}()
	}
	wg.Wait()

	stats := c.Stats()
	assert.Equal(t, int64(16), stats.Hits+stats.Misses)
	assert.Equal(t, 1, stats.Entries)
}

package qcache

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/aqlc/internal/compiler"
	"github.com/roach88/aqlc/internal/lambda"
	"github.com/roach88/aqlc/internal/testutil"
)

func TestCacheMatchesCompilerOnRandomPipelines(t *testing.T) {
	c, err := New(128, nil)
	require.NoError(t, err)
	g := testutil.NewPipelineGenerator(9)

	var pipelines []testutil.Pipeline
	for i := 0; i < 100; i++ {
		pipelines = append(pipelines, g.Next())
	}

	// The second pass is served from the cache.
	for pass := 0; pass < 2; pass++ {
		for _, p := range pipelines {
			expr, err := lambda.Parse(p.Text, lambda.Env{Params: p.Params})
			require.NoError(t, err, p.Text)

			cached, err := c.Compile(expr, "Orders")
			require.NoError(t, err, p.Text)
			direct, err := compiler.Compile(expr, "Orders")
			require.NoError(t, err, p.Text)

			assert.Equal(t, direct, cached, p.Text)
		}
	}

	stats := c.Stats()
	assert.Equal(t, int64(200), stats.Hits+stats.Misses)
	assert.GreaterOrEqual(t, stats.Hits, int64(100))
	assert.LessOrEqual(t, stats.Entries, 100)
}

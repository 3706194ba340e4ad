package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/aqlc/internal/lambda"
	"github.com/roach88/aqlc/internal/testutil"
)

func TestCompileRandomPipelinesIsDeterministic(t *testing.T) {
	g := testutil.NewPipelineGenerator(1)

	for i := 0; i < 300; i++ {
		p := g.Next()
		env := lambda.Env{Params: p.Params}

		first, err := lambda.Parse(p.Text, env)
		require.NoError(t, err, p.Text)
		second, err := lambda.Parse(p.Text, env)
		require.NoError(t, err, p.Text)

		a, err := Compile(first, "Project")
		require.NoError(t, err, p.Text)
		b, err := Compile(second, "Project")
		require.NoError(t, err, p.Text)

		assert.Equal(t, a, b, p.Text)
		assert.Contains(t, a.Text, "FOR ", p.Text)
		assert.NotContains(t, a.Text, "$", p.Text)
		for name, v := range p.Params {
			assert.Equal(t, v, a.BindVars[name], p.Text)
		}
	}
}

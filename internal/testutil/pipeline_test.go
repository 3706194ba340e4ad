package testutil

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPipelineGeneratorIsSeeded(t *testing.T) {
	a := NewPipelineGenerator(42)
	b := NewPipelineGenerator(42)

	for i := 0; i < 50; i++ {
		assert.Equal(t, a.Next(), b.Next())
	}
}

func TestPipelineParamsAreReferenced(t *testing.T) {
	g := NewPipelineGenerator(3)

	for i := 0; i < 200; i++ {
		p := g.Next()
		assert.True(t, strings.HasPrefix(p.Text, "Root"), p.Text)
		for name := range p.Params {
			assert.Contains(t, p.Text, "$"+name)
		}
	}
}

// Package testutil generates random query pipelines for property tests.
package testutil

import (
	"fmt"
	"strings"

	"github.com/brianvoe/gofakeit/v6"
)

// Fields are the document members generated pipelines refer to.
var Fields = []string{"Name", "Total", "Status", "Region", "Score"}

// Pipeline is generated pipeline text with the values of the $params it
// references.
type Pipeline struct {
	Text   string
	Params map[string]any
}

// PipelineGenerator builds random pipelines that parse and compile. The
// same seed yields the same sequence.
type PipelineGenerator struct {
	faker *gofakeit.Faker
}

// NewPipelineGenerator returns a generator seeded with seed.
func NewPipelineGenerator(seed int64) *PipelineGenerator {
	return &PipelineGenerator{faker: gofakeit.New(seed)}
}

// Next returns a pipeline over Root with up to four stages and an
// optional projection.
func (g *PipelineGenerator) Next() Pipeline {
	f := g.faker
	p := Pipeline{Params: map[string]any{}}

	var b strings.Builder
	b.WriteString("Root")

	ordered := false
	for i, n := 0, f.Number(0, 4); i < n; i++ {
		row := g.row()
		switch f.Number(0, 4) {
		case 0:
			name := fmt.Sprintf("p%d", len(p.Params))
			p.Params[name] = g.value()
			fmt.Fprintf(&b, ".Where(%s => %s.%s == $%s)", row, row, g.field(), name)
		case 1:
			fmt.Fprintf(&b, ".Where(%s => %s.%s > %d && %s.%s != null)", row, row, g.field(), f.Number(0, 100), row, g.field())
		case 2:
			method := f.RandomString([]string{"OrderBy", "OrderByDescending"})
			if ordered {
				method = f.RandomString([]string{"ThenBy", "ThenByDescending"})
			}
			ordered = true
			fmt.Fprintf(&b, ".%s(%s => %s.%s)", method, row, row, g.field())
		case 3:
			fmt.Fprintf(&b, ".Take(%d)", f.Number(1, 50))
			ordered = false
		default:
			fmt.Fprintf(&b, ".Skip(%d)", f.Number(1, 50))
			ordered = false
		}
	}

	row := g.row()
	switch f.Number(0, 3) {
	case 0:
		fmt.Fprintf(&b, ".Select(%s => %s.%s)", row, row, g.field())
	case 1:
		first, second := g.field(), g.field()
		fmt.Fprintf(&b, ".Select(%s => new { A = %s.%s, B = %s.%s })", row, row, first, row, second)
		if f.Bool() {
			b.WriteString(".Distinct()")
		}
	case 2:
		fmt.Fprintf(&b, ".GroupBy(%s => %s.%s).Select(g => g.Key)", row, row, g.field())
	}

	p.Text = b.String()
	return p
}

func (g *PipelineGenerator) row() string {
	return g.faker.RandomString([]string{"x", "row", "doc", "p"})
}

func (g *PipelineGenerator) field() string {
	return g.faker.RandomString(Fields)
}

func (g *PipelineGenerator) value() any {
	if g.faker.Bool() {
		return g.faker.Word()
	}
	return g.faker.Number(-1000, 1000)
}
